package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// LoadFile reads a YAML override file on top of Default().
// Keys absent from the file keep their default values; lists replace the default list.
func LoadFile(path string) (EvaluationConfig, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return EvaluationConfig{}, fmt.Errorf("error reading evaluation config file: %w", err)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return EvaluationConfig{}, fmt.Errorf("error unmarshaling evaluation config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return EvaluationConfig{}, fmt.Errorf("invalid evaluation config: %w", err)
	}

	return cfg.Clone(), nil
}

// Load returns Default() when path is empty and LoadFile(path) otherwise
func Load(path string) (EvaluationConfig, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}
