package xpath

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	p, err := Expand("~/videoio.yaml")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, "videoio.yaml"), p)

	p, err = Expand("/tmp/videoio.yaml")
	require.NoError(t, err)
	require.Equal(t, "/tmp/videoio.yaml", p)
}

func TestGetExecPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on executable bits")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "fake-ffmpeg")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0755))

	p, err := GetExecPath(bin)
	require.NoError(t, err)
	require.Equal(t, bin, p)

	_, err = GetExecPath(filepath.Join(dir, "missing"))
	require.Error(t, err)
}
