package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/xaionaro-go/videoio/pkg/videoio/types"
)

// optionsFlag collects repeated "key=value" flags into libav options.
type optionsFlag types.DictionaryItems

var _ pflag.Value = (*optionsFlag)(nil)

func (f *optionsFlag) String() string {
	return types.DictionaryItems(*f).String()
}

func (f *optionsFlag) Set(s string) error {
	key, value, ok := strings.Cut(s, "=")
	if !ok || key == "" {
		return fmt.Errorf("expected 'key=value', got '%s'", s)
	}
	*f = append(*f, types.DictionaryItem{Key: key, Value: value})
	return nil
}

func (f *optionsFlag) Type() string {
	return "key=value"
}

func (f *optionsFlag) Items() types.DictionaryItems {
	return types.DictionaryItems(*f)
}

// addInputFlags registers the flags that control how inputs are opened.
func addInputFlags(flagSet *pflag.FlagSet, opts *inputFlags) {
	flagSet.StringVar(&opts.FormatName, "input-format", "", "force the input format (e.g. 'v4l2', 'mpegts')")
	flagSet.Var(&opts.Options, "input-option", "a demuxer/device option, may be repeated")
	flagSet.IntVar(&opts.StreamIndex, "stream", -1, "the index of the video stream (the first one if negative)")
	flagSet.BoolVar(&opts.Camera, "camera", false, "treat the location as a capture device name ('' means the default device)")
}

type inputFlags struct {
	FormatName  string
	Options     optionsFlag
	StreamIndex int
	Camera      bool
}
