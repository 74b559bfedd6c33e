package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/spf13/cobra"
	"github.com/xaionaro-go/videoio/pkg/videoio/decoder"
	"github.com/xaionaro-go/videoio/pkg/videoio/types"
)

var (
	Probe = &cobra.Command{
		Use:   "probe <location>",
		Short: "print the streams of a file, URL or device",
		Args:  cobra.ExactArgs(1),
		RunE:  probe,
	}
	probeFlags inputFlags
)

func init() {
	addInputFlags(Probe.Flags(), &probeFlags)
}

func probe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	location := args[0]

	if probeFlags.Camera {
		d, err := probeFlags.open(ctx, location, decoder.Config{})
		if err != nil {
			return err
		}
		defer d.Close()
		printStreamInfo(cmd.OutOrStdout(), d.StreamInfo())
		return nil
	}

	input, err := videoRuntime.Probe(ctx, location, probeFlags.inputOptions(decoder.Config{}))
	if err != nil {
		return err
	}
	defer func() {
		if err := input.Close(); err != nil {
			logger.Errorf(ctx, "unable to close '%s': %v", location, err)
		}
	}()

	out := cmd.OutOrStdout()
	if input.Adapter != nil && input.Adapter.IsSeekable() {
		if size, err := input.Adapter.Size(); err == nil {
			fmt.Fprintf(out, "size: %s\n", humanize.IBytes(uint64(size)))
		}
	}
	if fc := input.FormatContext; fc != nil && fc.InputFormat() != nil {
		fmt.Fprintf(out, "format: %s\n", fc.InputFormat().Name())
	}
	for _, info := range input.Streams {
		printStreamInfo(out, info)
	}
	return nil
}

func printStreamInfo(out io.Writer, info types.StreamInfo) {
	fmt.Fprintf(out, "stream #%d: %s %s", info.Index, info.MediaType, info.CodecName)
	if info.IsVideo() {
		fmt.Fprintf(out, " %dx%d %s", info.Width, info.Height, info.PixelFormat)
		if info.FrameRate.Num() > 0 && info.FrameRate.Den() > 0 {
			fmt.Fprintf(out, " %.3f fps", float64(info.FrameRate.Num())/float64(info.FrameRate.Den()))
		}
	}
	if info.BitRate > 0 {
		fmt.Fprintf(out, " %s", humanize.SIWithDigits(float64(info.BitRate), 1, "bit/s"))
	}
	if info.Duration > 0 {
		fmt.Fprintf(out, " duration:%v", info.Duration.Round(time.Millisecond))
		if !info.DurationTrusted {
			fmt.Fprintf(out, "(untrusted)")
		}
	}
	if info.FrameCount > 0 {
		fmt.Fprintf(out, " frames:%s", humanize.Comma(info.FrameCount))
		if !info.FrameCountTrusted {
			fmt.Fprintf(out, "(estimated)")
		}
	}
	fmt.Fprintln(out)
}
