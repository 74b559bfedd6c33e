package device

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	child_process_manager "github.com/AgustinSRG/go-child-process-manager"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/videoio/pkg/xpath"
)

// Listing enumerates devices by running "ffmpeg -list_devices true" with
// the given input format and parsing what it prints.
type Listing struct {
	InputFormat string
	FFmpegPath  string
	Parse       func([]byte) []string
}

var _ Enumerator = Listing{}

func (e Listing) Devices(ctx context.Context) ([]string, error) {
	ffmpegPath := e.FFmpegPath
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	ffmpegPath, err := xpath.GetExecPath(ffmpegPath)
	if err != nil {
		return nil, fmt.Errorf("unable to find ffmpeg: %w", err)
	}
	args := []string{"-hide_banner", "-f", e.InputFormat, "-list_devices", "true", "-i", ""}
	logger.Debugf(ctx, "running '%s %s'", ffmpegPath, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := child_process_manager.ConfigureCommand(cmd); err != nil {
		logger.Errorf(ctx, "unable to configure the command so that the process will die automatically: %v", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("unable to start '%s': %w", ffmpegPath, err)
	}
	if err := child_process_manager.AddChildProcess(cmd.Process); err != nil {
		logger.Debugf(ctx, "unable to register the command to be auto-killed: %v", err)
	}

	// ffmpeg exits with a failure after listing, so only the output matters
	waitErr := cmd.Wait()
	devices := e.Parse(output.Bytes())
	if len(devices) == 0 && waitErr != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	logger.Debugf(ctx, "found devices: %v (exit: %v)", devices, waitErr)
	return devices, nil
}

func (e Listing) DefaultInputFormat() string {
	return e.InputFormat
}

func (e Listing) DefaultDevice(ctx context.Context) (string, error) {
	return firstDevice(ctx, e)
}

var (
	logPrefix       = regexp.MustCompile(`^\[[^\]]*\]\s?`)
	avfIndexedName  = regexp.MustCompile(`^\[(\d+)\]\s+(.+)$`)
	dshowQuotedName = regexp.MustCompile(`^\s*"(.+)"(?:\s+\((\w+(?:,\s*\w+)*)\))?\s*$`)
)

func stripLogPrefix(line string) string {
	return logPrefix.ReplaceAllString(strings.TrimRight(line, "\r"), "")
}

// ParseAVFoundation extracts the video device names from an avfoundation listing.
func ParseAVFoundation(output []byte) []string {
	var (
		result  []string
		inVideo bool
	)
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := stripLogPrefix(scanner.Text())
		switch {
		case strings.Contains(line, "video devices:"):
			inVideo = true
			continue
		case strings.Contains(line, "audio devices:"):
			inVideo = false
			continue
		}
		if !inVideo {
			continue
		}
		if m := avfIndexedName.FindStringSubmatch(line); m != nil {
			result = append(result, strings.TrimSpace(m[2]))
		}
	}
	return result
}

// ParseDShow extracts the video device names from a dshow listing; both
// the sectioned (older) and the annotated (newer) layouts are supported.
func ParseDShow(output []byte) []string {
	var (
		result  []string
		section string
	)
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := stripLogPrefix(scanner.Text())
		switch {
		case strings.Contains(line, "DirectShow video devices"):
			section = "video"
			continue
		case strings.Contains(line, "DirectShow audio devices"):
			section = "audio"
			continue
		case strings.Contains(line, "Alternative name"):
			continue
		}

		m := dshowQuotedName.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		kinds := m[2]
		switch {
		case kinds != "":
			if strings.Contains(kinds, "video") {
				result = append(result, m[1])
			}
		case section == "video":
			result = append(result, m[1])
		}
	}
	return result
}
