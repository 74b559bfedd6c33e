package device

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

const avfoundationListing = `[AVFoundation indev @ 0x7fb5b1c04880] AVFoundation video devices:
[AVFoundation indev @ 0x7fb5b1c04880] [0] FaceTime HD Camera
[AVFoundation indev @ 0x7fb5b1c04880] [1] Capture screen 0
[AVFoundation indev @ 0x7fb5b1c04880] AVFoundation audio devices:
[AVFoundation indev @ 0x7fb5b1c04880] [0] MacBook Pro Microphone
: Input/output error
`

const dshowListingOld = "[dshow @ 000001] DirectShow video devices (some may be both video and audio devices)\r\n" +
	"[dshow @ 000001]  \"Integrated Camera\"\r\n" +
	"[dshow @ 000001]     Alternative name \"@device_pnp_\\\\?\\usb#vid_04f2\"\r\n" +
	"[dshow @ 000001]  \"OBS Virtual Camera\"\r\n" +
	"[dshow @ 000001] DirectShow audio devices\r\n" +
	"[dshow @ 000001]  \"Microphone (Realtek Audio)\"\r\n"

const dshowListingNew = `[dshow @ 000001] "Integrated Camera" (video)
[dshow @ 000001]   Alternative name "@device_pnp_\\?\usb#vid_04f2"
[dshow @ 000001] "Microphone (Realtek Audio)" (audio)
[dshow @ 000001] "Capture Card" (audio, video)
dummy: Immediate exit requested
`

func TestParseAVFoundation(t *testing.T) {
	require.Equal(t, []string{"FaceTime HD Camera", "Capture screen 0"}, ParseAVFoundation([]byte(avfoundationListing)))
	require.Empty(t, ParseAVFoundation([]byte("ffmpeg: command failed")))
}

func TestParseDShow(t *testing.T) {
	require.Equal(t, []string{"Integrated Camera", "OBS Virtual Camera"}, ParseDShow([]byte(dshowListingOld)))
	require.Equal(t, []string{"Integrated Camera", "Capture Card"}, ParseDShow([]byte(dshowListingNew)))
}

func TestV4L2(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"video10", "video2", "video0", "videoX", "null", "vhci"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600))
	}

	e := V4L2{DevDir: dir}
	require.Equal(t, "v4l2", e.DefaultInputFormat())

	devices, err := e.Devices(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "video0"),
		filepath.Join(dir, "video2"),
		filepath.Join(dir, "video10"),
	}, devices)

	def, err := e.DefaultDevice(context.Background())
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "video0"), def)

	_, err = V4L2{DevDir: t.TempDir()}.DefaultDevice(context.Background())
	require.ErrorIs(t, err, ErrNoDevice)

	_, err = V4L2{DevDir: filepath.Join(dir, "missing")}.Devices(context.Background())
	require.Error(t, err)
}

func TestListing(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script in place of ffmpeg")
	}

	dir := t.TempDir()
	listingPath := filepath.Join(dir, "listing.txt")
	require.NoError(t, os.WriteFile(listingPath, []byte(avfoundationListing), 0o600))
	fakeFFmpeg := filepath.Join(dir, "ffmpeg")
	require.NoError(t, os.WriteFile(fakeFFmpeg, []byte("#!/bin/sh\ncat '"+listingPath+"' >&2\nexit 1\n"), 0o700))

	e := Listing{
		InputFormat: "avfoundation",
		FFmpegPath:  fakeFFmpeg,
		Parse:       ParseAVFoundation,
	}
	require.Equal(t, "avfoundation", e.DefaultInputFormat())

	devices, err := e.Devices(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"FaceTime HD Camera", "Capture screen 0"}, devices)

	def, err := e.DefaultDevice(context.Background())
	require.NoError(t, err)
	require.Equal(t, "FaceTime HD Camera", def)

	_, err = Listing{FFmpegPath: filepath.Join(dir, "missing"), Parse: ParseDShow}.Devices(context.Background())
	require.Error(t, err)
}

func TestNone(t *testing.T) {
	var e Enumerator = none{}
	devices, err := e.Devices(context.Background())
	require.NoError(t, err)
	require.Empty(t, devices)
	require.Empty(t, e.DefaultInputFormat())
	_, err = e.DefaultDevice(context.Background())
	require.ErrorIs(t, err, ErrNoDevice)
}

func TestDefault(t *testing.T) {
	e := Default()
	require.NotNil(t, e)
	if runtime.GOOS == "linux" {
		require.Equal(t, "v4l2", e.DefaultInputFormat())
	}
}
