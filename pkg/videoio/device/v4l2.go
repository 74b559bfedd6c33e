package device

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/facebookincubator/go-belt/tool/logger"
)

// V4L2 finds the Video4Linux device nodes.
type V4L2 struct {
	DevDir string
}

var _ Enumerator = V4L2{}

func (e V4L2) Devices(ctx context.Context) ([]string, error) {
	devDir := e.DevDir
	if devDir == "" {
		devDir = "/dev"
	}

	entries, err := os.ReadDir(devDir)
	if err != nil {
		return nil, fmt.Errorf("unable to read directory '%s': %w", devDir, err)
	}

	type node struct {
		path  string
		index int
	}
	var nodes []node
	for _, entry := range entries {
		suffix, ok := strings.CutPrefix(entry.Name(), "video")
		if !ok {
			continue
		}
		index, err := strconv.Atoi(suffix)
		if err != nil {
			logger.Tracef(ctx, "skipping '%s'", entry.Name())
			continue
		}
		nodes = append(nodes, node{path: filepath.Join(devDir, entry.Name()), index: index})
	}
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].index < nodes[j].index
	})

	result := make([]string, 0, len(nodes))
	for _, n := range nodes {
		result = append(result, n.path)
	}
	return result, nil
}

func (V4L2) DefaultInputFormat() string {
	return "v4l2"
}

func (e V4L2) DefaultDevice(ctx context.Context) (string, error) {
	return firstDevice(ctx, e)
}
