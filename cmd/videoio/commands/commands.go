package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/spf13/cobra"
	"github.com/xaionaro-go/videoio/pkg/videoio"
	"github.com/xaionaro-go/videoio/pkg/xpath"
)

const appName = "videoio"

var (
	// Access these variables only from a main package:

	Root = &cobra.Command{
		Use:          appName,
		Short:        "read, write and inspect videos and capture devices",
		SilenceUsage: true,
	}

	flags = Flags{
		LoggerLevel: logger.LevelWarning,
	}

	videoRuntime *videoio.Runtime
	sessionCtx   context.Context
	closeContext func()
)

type Flags struct {
	LoggerLevel  logger.Level
	LogFile      string
	SentryDSN    string
	LogstashAddr string
	NetPprofAddr string
	ConfigPath   string
}

const defaultConfigPath = "~/.videoio.yaml"

func init() {
	Root.PersistentFlags().Var(&flags.LoggerLevel, "log-level", "logging level")
	Root.PersistentFlags().StringVar(&flags.LogFile, "log-file", "", "also write the log into this file")
	Root.PersistentFlags().StringVar(&flags.SentryDSN, "sentry-dsn", "", "report errors to Sentry at this DSN")
	Root.PersistentFlags().StringVar(&flags.LogstashAddr, "logstash-addr", "", "ship the log to logstash at this address, e.g. 'tcp://127.0.0.1:5000'")
	Root.PersistentFlags().StringVar(&flags.NetPprofAddr, "go-net-pprof-addr", "", "serve net/http/pprof and /metrics at this address")
	Root.PersistentFlags().StringVar(&flags.ConfigPath, "config", defaultConfigPath, "the path to the config file")

	Root.AddCommand(Probe)
	Root.AddCommand(Count)
	Root.AddCommand(Frames)
	Root.AddCommand(Transcode)
	Root.AddCommand(Devices)
	Root.AddCommand(GenerateConfig)
	Root.AddCommand(Version)

	Root.PersistentPreRunE = setupSession
	cobra.OnFinalize(closeSession)
}

func setupSession(cmd *cobra.Command, args []string) error {
	ctx, closeFn, err := getContext(cmd.Context(), flags)
	if err != nil {
		return err
	}
	closeContext = closeFn
	sessionCtx = ctx
	cmd.SetContext(ctx)
	logger.Debugf(ctx, "log-level: %v", flags.LoggerLevel)

	var cfg videoio.Config
	if cmd != GenerateConfig {
		cfg, err = readConfig(ctx)
		if err != nil {
			return err
		}
	}
	rt, err := videoio.Init(ctx, cfg)
	if err != nil {
		return fmt.Errorf("unable to initialize: %w", err)
	}
	videoRuntime = rt
	return nil
}

func getConfigPath() (string, error) {
	cfgPath, err := xpath.Expand(flags.ConfigPath)
	if err != nil {
		return "", fmt.Errorf("unable to expand '%s': %w", flags.ConfigPath, err)
	}
	return cfgPath, nil
}

func readConfig(ctx context.Context) (videoio.Config, error) {
	var cfg videoio.Config
	cfgPath, err := getConfigPath()
	if err != nil {
		return cfg, err
	}

	if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) && !Root.PersistentFlags().Changed("config") {
		logger.Debugf(ctx, "config '%s' does not exist, using the defaults", cfgPath)
		return cfg, nil
	}

	if err := videoio.ReadConfigFromPath(cfgPath, &cfg); err != nil {
		return cfg, err
	}
	logger.Debugf(ctx, "cfg == %#+v", cfg)
	return cfg, nil
}

func closeSession() {
	ctx := sessionCtx
	if ctx == nil {
		return
	}
	logger.Debug(ctx, "end")
	if videoRuntime != nil {
		if err := videoRuntime.Close(); err != nil {
			logger.Errorf(ctx, "unable to close the runtime: %v", err)
		}
		videoRuntime = nil
	}
	belt.Flush(ctx)
	sessionCtx = nil
	if closeContext != nil {
		closeContext()
		closeContext = nil
	}
}
