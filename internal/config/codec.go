// Package config provides the viper/mapstructure decode-hook glue
// used to unmarshal pool and health-check configuration: durations,
// byte sizes (for the shared-memory region size) and URLs all decode
// from plain strings the way the rest of the control plane expects.
package config

import (
	"net/url"
	"reflect"

	"github.com/inhies/go-bytesize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Unmarshal unmarshals the config into a struct, with the tags on its
// fields properly set. It composes StringToTimeDurationHookFunc,
// StringToByteSizeHookFunc and StringToUrlHookFunc as decode hooks.
func Unmarshal(v *viper.Viper, rawVal interface{}, opts ...viper.DecoderConfigOption) error {
	return v.Unmarshal(
		rawVal,
		append(
			opts,
			viper.DecodeHook(
				mapstructure.ComposeDecodeHookFunc(
					mapstructure.StringToTimeDurationHookFunc(),
					StringToByteSizeHookFunc(),
					StringToUrlHookFunc(),
				),
			),
		)...,
	)
}

// StringToByteSizeHookFunc returns a DecodeHookFunc that converts a
// size string (e.g. "64KiB") to bytesize.ByteSize.
func StringToByteSizeHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		if t != reflect.TypeOf(bytesize.B) {
			return data, nil
		}

		sDec, err := bytesize.Parse(data.(string))
		if err != nil {
			return nil, err
		}
		return sDec, nil
	}
}

// StringToUrlHookFunc returns a DecodeHookFunc that converts strings
// to url.URL.
func StringToUrlHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		if t != reflect.TypeOf(url.URL{}) {
			return data, nil
		}

		sDec, err := url.Parse(data.(string))
		if err != nil {
			return nil, err
		}
		return sDec, nil
	}
}
