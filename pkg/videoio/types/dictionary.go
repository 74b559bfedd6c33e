package types

import (
	"fmt"
	"strings"

	"github.com/asticode/go-astiav"
)

type DictionaryItem struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

type DictionaryItems []DictionaryItem

// ToAstiav returns nil if there are no items; the caller owns the result.
func (items DictionaryItems) ToAstiav() (*astiav.Dictionary, error) {
	if len(items) == 0 {
		return nil, nil
	}

	dict := astiav.NewDictionary()
	for _, item := range items {
		if err := dict.Set(item.Key, item.Value, 0); err != nil {
			dict.Free()
			return nil, ErrInvalidOption{Key: item.Key, Value: item.Value, Reason: err.Error()}
		}
	}
	return dict, nil
}

func (items DictionaryItems) Get(key string) (string, bool) {
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].Key == key {
			return items[i].Value, true
		}
	}
	return "", false
}

func (items DictionaryItems) String() string {
	var parts []string
	for _, item := range items {
		parts = append(parts, fmt.Sprintf("%s=%s", item.Key, item.Value))
	}
	return strings.Join(parts, ",")
}

// UnconsumedOptions returns an error describing the first entry libav left
// in the dictionary after an open call, which means nobody recognised it.
func UnconsumedOptions(dict *astiav.Dictionary) error {
	if dict == nil {
		return nil
	}
	entry := dict.Get("", nil, astiav.NewDictionaryFlags(astiav.DictionaryFlagIgnoreSuffix))
	if entry == nil {
		return nil
	}
	return ErrInvalidOption{
		Key:    entry.Key(),
		Value:  entry.Value(),
		Reason: "the option was not recognized",
	}
}
