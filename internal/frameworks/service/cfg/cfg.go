// Package cfg decodes [http.services.<name>] and interceptor profile tables
// into typed config structs.
package cfg

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"
)

// ErrUnusedKeys is returned by DecodeStrict when input has keys the target
// does not declare.
var ErrUnusedKeys = errors.New("unused config keys")

// Setter is implemented by config structs that fill in their own defaults.
type Setter interface {
	ApplyDefaults()
}

// Decode decodes input into c and then applies defaults when c is a Setter.
// Duration fields accept strings such as "30s"; string slice fields accept a
// comma separated string.
func Decode(input map[string]any, c any) error {
	return decode(input, c, nil)
}

// DecodeWithUnused is Decode that also returns the keys no field consumed,
// sorted.
func DecodeWithUnused(input map[string]any, c any) ([]string, error) {
	var md mapstructure.Metadata
	if err := decode(input, c, &md); err != nil {
		return nil, err
	}
	unused := md.Unused
	sort.Strings(unused)
	return unused, nil
}

// DecodeStrict fails with ErrUnusedKeys when any input key goes unused.
func DecodeStrict(input map[string]any, c any) error {
	unused, err := DecodeWithUnused(input, c)
	if err != nil {
		return err
	}
	if len(unused) > 0 {
		return fmt.Errorf("%w: %v", ErrUnusedKeys, unused)
	}
	return nil
}

func decode(input map[string]any, c any, md *mapstructure.Metadata) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata: md,
		Result:   c,
		TagName:  "mapstructure",
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(input); err != nil {
		return err
	}
	if s, ok := c.(Setter); ok {
		s.ApplyDefaults()
	}
	return nil
}
