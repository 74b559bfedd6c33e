package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/spf13/cobra"
	"github.com/xaionaro-go/videoio/pkg/videoio"
	"github.com/xaionaro-go/videoio/pkg/videoio/decoder"
)

var (
	Transcode = &cobra.Command{
		Use:   "transcode <input> <output>",
		Short: "decode the video stream and encode it into another file",
		Args:  cobra.ExactArgs(2),
		RunE:  transcode,
	}
	transcodeFlags struct {
		inputFlags
		Format      string
		Codec       string
		BitRate     string
		PixelFormat string
		GOPSize     int
		Options     optionsFlag
		Limit       int
	}
)

func init() {
	addInputFlags(Transcode.Flags(), &transcodeFlags.inputFlags)
	Transcode.Flags().StringVar(&transcodeFlags.Format, "format", "", "the output container (guessed from the file name by default)")
	Transcode.Flags().StringVar(&transcodeFlags.Codec, "codec", "", "the video encoder")
	Transcode.Flags().StringVar(&transcodeFlags.BitRate, "bitrate", "", "the target bit rate, e.g. '2M' or '800k'")
	Transcode.Flags().StringVar(&transcodeFlags.PixelFormat, "pix-fmt", "", "the pixel format the encoder works in")
	Transcode.Flags().IntVar(&transcodeFlags.GOPSize, "gop", 0, "the distance between key frames")
	Transcode.Flags().Var(&transcodeFlags.Options, "codec-option", "an encoder option, may be repeated")
	Transcode.Flags().IntVar(&transcodeFlags.Limit, "limit", 0, "stop after this many frames (0 is unlimited)")
}

func parseBitRate(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	v, _, err := humanize.ParseSI(s)
	if err != nil {
		return 0, fmt.Errorf("unable to parse the bit rate '%s': %w", s, err)
	}
	return int64(v), nil
}

func transcode(cmd *cobra.Command, args []string) (_err error) {
	ctx := cmd.Context()
	inputLocation, outputLocation := args[0], args[1]

	bitRate, err := parseBitRate(transcodeFlags.BitRate)
	if err != nil {
		return err
	}

	d, err := transcodeFlags.open(ctx, inputLocation, decoder.Config{OutputPixelFormat: "yuv420p"})
	if err != nil {
		return err
	}
	defer d.Close()

	cfg := videoio.EncoderConfigFor(d.StreamInfo(), d.OutputPixelFormat())
	cfg.Width, cfg.Height = d.Width(), d.Height()
	cfg.FormatName = transcodeFlags.Format
	cfg.CodecName = transcodeFlags.Codec
	cfg.BitRate = bitRate
	cfg.PixelFormat = transcodeFlags.PixelFormat
	cfg.GOPSize = transcodeFlags.GOPSize
	cfg.CodecOptions = transcodeFlags.Options.Items()

	e, err := videoRuntime.OpenOutput(ctx, outputLocation, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if _err != nil {
			if err := e.Close(); err != nil {
				logger.Errorf(ctx, "unable to close '%s': %v", outputLocation, err)
			}
		}
	}()

	for transcodeFlags.Limit <= 0 || e.FramesWritten() < uint64(transcodeFlags.Limit) {
		frame, err := d.ReadFrame(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("unable to read frame #%d: %w", e.FramesWritten(), err)
		}
		if err := e.Encode(ctx, frame); err != nil {
			return fmt.Errorf("unable to encode frame #%d: %w", e.FramesWritten(), err)
		}
	}
	if err := e.Finish(ctx); err != nil {
		return err
	}

	stats := e.Stats()
	fmt.Fprintf(
		cmd.OutOrStdout(),
		"encoded %d frames with %s into %s (%s)\n",
		stats.FramesWritten, e.CodecName(), outputLocation, humanize.IBytes(stats.BytesWritten),
	)
	return nil
}
