package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Load loads configuration from .env file and environment variables
// prefix: Environment variable prefix (e.g. "CMSWEB_")
// target: Pointer to the config struct to load into
// defaults: dotted keys (e.g. "server.port") applied before any source
func Load(prefix string, target interface{}, defaults map[string]any) error {
	return LoadFile(".env", prefix, target, defaults)
}

// LoadFile is Load with an explicit dotenv path. An empty path skips the file.
func LoadFile(envFile, prefix string, target interface{}, defaults map[string]any) error {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// 1. Load from .env file (if exists)
	if envFile != "" {
		fv := viper.New()
		fv.SetConfigFile(envFile)
		fv.SetConfigType("env")
		if err := fv.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to read %s: %w", envFile, err)
			}
		} else {
			// viper lower-cases dotenv keys; treat them like process env.
			for _, key := range fv.AllKeys() {
				setFromEnv(v, prefix, strings.ToUpper(key), fv.GetString(key))
			}
		}
	}

	// 2. Load from environment variables
	// Viper's AutomaticEnv doesn't work well with Unmarshal if keys aren't known (e.g. no config file).
	// Iterate env vars and populate viper directly; process env wins over the file.
	for _, envStr := range os.Environ() {
		pair := strings.SplitN(envStr, "=", 2)
		if len(pair) != 2 {
			continue
		}
		setFromEnv(v, prefix, pair[0], pair[1])
	}

	// 3. Unmarshal into struct
	if err := v.Unmarshal(target); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return nil
}

// setFromEnv maps CMSWEB_STORAGE_DRIVER -> storage.driver.
func setFromEnv(v *viper.Viper, prefix, key, value string) {
	prefixUpper := strings.ToUpper(prefix)
	if !strings.HasPrefix(key, prefixUpper) {
		return
	}
	propKey := strings.TrimPrefix(key, prefixUpper)
	propKey = strings.ToLower(strings.ReplaceAll(propKey, "_", "."))
	// Remove leading dot if any (e.g. if prefix didn't include underscore but env did)
	propKey = strings.TrimPrefix(propKey, ".")
	if propKey == "" {
		return
	}
	v.Set(propKey, value)
}
