package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/xaionaro-go/videoio/pkg/videoio"
	"github.com/xaionaro-go/videoio/pkg/videoio/streamadapter"
)

var GenerateConfig = &cobra.Command{
	Use:   "generate-config",
	Short: "write a config with the defaults into the --config path",
	Args:  cobra.NoArgs,
	RunE:  generateConfig,
}

func generateConfig(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfgPath, err := getConfigPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("file '%s' already exists", cfgPath)
	}

	cfg := videoio.Config{
		BufferSize:        streamadapter.DefaultBufferSize,
		OutputPixelFormat: "rgb24",
		Camera: videoio.CameraConfig{
			InputFormat: videoRuntime.DefaultInputFormat(),
		},
	}
	if err := videoio.WriteConfigToPath(ctx, cfgPath, cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", cfgPath)
	return nil
}
