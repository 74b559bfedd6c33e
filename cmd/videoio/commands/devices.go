package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xaionaro-go/videoio/pkg/videoio/device"
)

var Devices = &cobra.Command{
	Use:   "devices",
	Short: "list the video capture devices",
	Args:  cobra.NoArgs,
	RunE:  devices,
}

func devices(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	inputFormat := videoRuntime.DefaultInputFormat()
	if inputFormat == "" {
		fmt.Fprintln(out, "video capture is not supported on this platform")
		return nil
	}
	fmt.Fprintf(out, "input format: %s\n", inputFormat)

	list, err := videoRuntime.Devices(ctx)
	if err != nil {
		return fmt.Errorf("unable to list the devices: %w", err)
	}
	defaultDevice, err := videoRuntime.DefaultDevice(ctx)
	if err != nil && !errors.Is(err, device.ErrNoDevice) {
		return fmt.Errorf("unable to get the default device: %w", err)
	}

	for _, name := range list {
		mark := " "
		if name == defaultDevice {
			mark = "*"
		}
		fmt.Fprintf(out, "%s %s\n", mark, name)
	}
	if len(list) == 0 {
		fmt.Fprintln(out, "no devices found")
	}
	return nil
}
