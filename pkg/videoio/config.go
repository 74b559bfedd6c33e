package videoio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/goccy/go-yaml"
	"github.com/xaionaro-go/datacounter"
	"github.com/xaionaro-go/videoio/pkg/videoio/device"
	"github.com/xaionaro-go/videoio/pkg/videoio/types"
)

type CameraConfig struct {
	Device      string                `yaml:"device,omitempty"`
	InputFormat string                `yaml:"input_format,omitempty"`
	Options     types.DictionaryItems `yaml:"options,omitempty"`
}

type OutputConfig struct {
	FormatName  string `yaml:"format,omitempty"`
	CodecName   string `yaml:"codec,omitempty"`
	BitRate     int64  `yaml:"bitrate,omitempty"`
	GOPSize     int    `yaml:"gop_size,omitempty"`
	PixelFormat string `yaml:"pixel_format,omitempty"`
}

type Config struct {
	// BufferSize is the I/O buffer of the stream adapters
	// (streamadapter.DefaultBufferSize if zero).
	BufferSize int `yaml:"buffer_size,omitempty"`

	// OutputPixelFormat is the default layout of decoded frames.
	OutputPixelFormat string `yaml:"output_pixel_format,omitempty"`

	MaxConsecutiveErrors int `yaml:"max_consecutive_errors,omitempty"`

	Camera CameraConfig `yaml:"camera,omitempty"`
	Output OutputConfig `yaml:"output,omitempty"`

	// Enumerator overrides the platform device enumerator.
	Enumerator device.Enumerator `yaml:"-"`
}

func (cfg Config) validate() error {
	if cfg.BufferSize < 0 {
		return types.ErrInvalidOption{Key: "buffer_size", Value: fmt.Sprint(cfg.BufferSize), Reason: "cannot be negative"}
	}
	if _, err := types.ParsePixelFormat(cfg.OutputPixelFormat, types.DefaultPixelFormat); err != nil {
		return err
	}
	if _, err := types.ParsePixelFormat(cfg.Output.PixelFormat, types.DefaultPixelFormat); err != nil {
		return err
	}
	return nil
}

var _ io.Reader = (*Config)(nil)
var _ io.ReaderFrom = (*Config)(nil)
var _ io.WriterTo = (*Config)(nil)

func (cfg *Config) Read(
	b []byte,
) (int, error) {
	return len(b), yaml.Unmarshal(b, cfg)
}

func (cfg *Config) ReadFrom(
	r io.Reader,
) (int64, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return int64(len(b)), fmt.Errorf("unable to read: %w", err)
	}

	n, err := cfg.Read(b)
	return int64(n), err
}

func (cfg Config) WriteTo(
	w io.Writer,
) (int64, error) {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return 0, fmt.Errorf("unable to serialize the config: %w", err)
	}

	counter := datacounter.NewWriterCounter(w)
	_, err = io.Copy(counter, bytes.NewReader(b))
	return int64(counter.Count()), err
}

func ReadConfigFromPath(
	cfgPath string,
	cfg *Config,
) error {
	b, err := os.ReadFile(cfgPath)
	if err != nil {
		return fmt.Errorf("unable to read file '%s': %w", cfgPath, err)
	}

	if _, err := cfg.Read(b); err != nil {
		return fmt.Errorf("unable to parse '%s': %w", cfgPath, err)
	}
	return nil
}

func WriteConfigToPath(
	ctx context.Context,
	cfgPath string,
	cfg Config,
) error {
	pathNew := cfgPath + ".new"
	f, err := os.OpenFile(pathNew, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0640)
	if err != nil {
		return fmt.Errorf("unable to open the file '%s': %w", pathNew, err)
	}
	_, err = cfg.WriteTo(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("unable to write data to file '%s': %w", pathNew, err)
	}
	err = os.Rename(pathNew, cfgPath)
	if err != nil {
		return fmt.Errorf("cannot move '%s' to '%s': %w", pathNew, cfgPath, err)
	}
	logger.Debugf(ctx, "wrote to '%s' config %#+v", cfgPath, cfg)
	return nil
}
