package commands

import (
	"errors"
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/spf13/cobra"
	"github.com/xaionaro-go/videoio/pkg/videoio/decoder"
	"github.com/xaionaro-go/videoio/pkg/videoio/types"
)

var (
	Frames = &cobra.Command{
		Use:   "frames <location> <output dir>",
		Short: "dump the frames as PNG images",
		Args:  cobra.ExactArgs(2),
		RunE:  frames,
	}
	framesFlags struct {
		inputFlags
		Seek  string
		Skip  int
		Limit int
	}
)

func init() {
	addInputFlags(Frames.Flags(), &framesFlags.inputFlags)
	Frames.Flags().StringVar(&framesFlags.Seek, "seek", "", "start at this position (e.g. '1m30s')")
	Frames.Flags().IntVar(&framesFlags.Skip, "skip", 0, "skip this many frames (after seeking)")
	Frames.Flags().IntVar(&framesFlags.Limit, "limit", 0, "stop after this many frames (0 is unlimited)")
}

func frames(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	location, outDir := args[0], args[1]

	seekTo, err := parseSeek(framesFlags.Seek)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("unable to create '%s': %w", outDir, err)
	}

	d, err := framesFlags.open(ctx, location, decoder.Config{OutputPixelFormat: "rgba"})
	if err != nil {
		return err
	}
	defer d.Close()

	if seekTo > 0 {
		if err := d.Seek(ctx, seekTo); err != nil {
			return err
		}
	}
	if framesFlags.Skip > 0 {
		skipped, err := d.SkipFrames(ctx, framesFlags.Skip)
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("unable to skip %d frames: %w", framesFlags.Skip, err)
		}
		logger.Debugf(ctx, "skipped %d frames", skipped)
	}

	written := 0
	for framesFlags.Limit <= 0 || written < framesFlags.Limit {
		frame, err := d.ReadFrame(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("unable to read frame #%d: %w", written, err)
		}

		path := filepath.Join(outDir, fmt.Sprintf("frame_%06d.png", written))
		if err := writePNG(path, frame); err != nil {
			return err
		}
		logger.Tracef(ctx, "wrote %s (%s)", path, frame)
		written++
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d frames to %s\n", written, outDir)
	return nil
}

func writePNG(path string, frame *types.Frame) (_err error) {
	img, err := frame.Image()
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create '%s': %w", path, err)
	}
	defer func() {
		if err := f.Close(); err != nil && _err == nil {
			_err = fmt.Errorf("unable to close '%s': %w", path, err)
		}
	}()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("unable to encode '%s': %w", path, err)
	}
	return nil
}
