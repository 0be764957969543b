package domain

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// DecodeParams copies resolved node data into a typed parameter struct. Field
// names follow the json tags and scalar types are coerced where possible.
func DecodeParams(data map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create params decoder: %w", err)
	}

	if err := decoder.Decode(data); err != nil {
		return fmt.Errorf("invalid node parameters: %w", err)
	}

	return nil
}
