package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// OverlayDotEnv copies KEY=VALUE pairs from a .env file into the process
// environment. Variables already set win. A missing file is not an error.
func OverlayDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		// Missing .env should not kill startup
		return nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return err
	}

	for _, key := range v.AllKeys() {
		name := strings.ToUpper(key)
		if _, ok := os.LookupEnv(name); ok {
			continue
		}
		_ = os.Setenv(name, v.GetString(key))
	}
	return nil
}
