package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/xaionaro-go/videoio/pkg/videoio/decoder"
)

var (
	Count = &cobra.Command{
		Use:   "count <location>",
		Short: "print the number of frames and the duration",
		Args:  cobra.ExactArgs(1),
		RunE:  count,
	}
	countFlags inputFlags
)

func init() {
	addInputFlags(Count.Flags(), &countFlags)
}

func count(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	d, err := countFlags.open(ctx, args[0], decoder.Config{})
	if err != nil {
		return err
	}
	defer d.Close()

	frames, err := d.TotalFrames(ctx)
	if err != nil {
		return fmt.Errorf("unable to count the frames: %w", err)
	}
	duration, err := d.Duration(ctx)
	if err != nil {
		return fmt.Errorf("unable to get the duration: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "frames: %d\nduration: %v\n", frames, duration.Round(time.Millisecond))
	return nil
}
