// Package buildvars holds the values injected at link time, e.g.:
//
//	go build -ldflags "-X github.com/xaionaro-go/videoio/pkg/buildvars.Version=v0.1.0"
package buildvars

import (
	"strconv"
	"time"
)

var (
	GitCommit       string
	Version         string
	BuildDateString string
	BuildDate       *time.Time
)

func init() {
	parseBuildDate()
}

func parseBuildDate() {
	unixTS, err := strconv.ParseInt(BuildDateString, 10, 64)
	if err != nil {
		return
	}
	buildDate := time.Unix(unixTS, 0)
	BuildDate = &buildDate
}
