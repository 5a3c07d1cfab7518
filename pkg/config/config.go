package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Load loads configuration from a .env file and environment variables.
// prefix: Environment variable prefix (e.g. "BUNJSON_")
// target: Pointer to the config struct to load into
func Load(prefix string, target interface{}) error {
	return LoadFrom(prefix, ".env", target)
}

// LoadFrom is Load with an explicit env file path. Environment variables win
// over the file. Fields already set on target are kept unless overridden.
//
// Keys map to nested fields by underscore: BUNJSON_LOG_LEVEL -> log.level.
func LoadFrom(prefix, envFile string, target interface{}) error {
	v := viper.New()

	// 1. Load from .env file (if exists)
	if envFile != "" {
		if err := loadEnvFile(v, prefix, envFile); err != nil {
			return err
		}
	}

	// 2. Load from environment variables
	// Viper's AutomaticEnv doesn't work well with Unmarshal if keys aren't known (e.g. no config file).
	// Iterate env vars and populate viper instead.
	for _, envStr := range os.Environ() {
		pair := strings.SplitN(envStr, "=", 2)
		if len(pair) != 2 {
			continue
		}
		setPrefixed(v, prefix, pair[0], pair[1])
	}

	// 3. Unmarshal into struct
	if err := v.Unmarshal(target); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return nil
}

func loadEnvFile(v *viper.Viper, prefix, path string) error {
	if _, err := os.Stat(path); err != nil {
		// The file is optional
		return nil
	}

	fileCfg := viper.New()
	fileCfg.SetConfigFile(path)
	fileCfg.SetConfigType("env")
	if err := fileCfg.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	// dotenv keys come back lower-cased (bunjson_log_level)
	for _, key := range fileCfg.AllKeys() {
		setPrefixed(v, prefix, key, fileCfg.GetString(key))
	}
	return nil
}

// setPrefixed maps BUNJSON_DB_FILE -> db.file when key carries prefix
func setPrefixed(v *viper.Viper, prefix, key, value string) {
	prefixUpper := strings.ToUpper(prefix)
	keyUpper := strings.ToUpper(key)
	if !strings.HasPrefix(keyUpper, prefixUpper) {
		return
	}

	propKey := strings.TrimPrefix(keyUpper, prefixUpper)
	propKey = strings.ToLower(strings.ReplaceAll(propKey, "_", "."))
	// Remove leading dot if any (e.g. if prefix didn't include underscore but env did)
	propKey = strings.TrimPrefix(propKey, ".")
	if propKey == "" {
		return
	}

	v.Set(propKey, value)
}
