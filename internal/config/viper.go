package config

import (
	"github.com/spf13/viper"
)

// readViper parses TOML, YAML or JSON: global knobs at the top level and an
// ordered `processes` array.
func readViper(path, typ string) (*fileConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType(typ)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, err
	}
	return &fc, nil
}
