package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// LoadFromUserConfig reads ~/.repocontext/config.json and promotes its values
// to environment variables so OPENAI_*/QDRANT_* settings are visible to every
// client. Missing file and unresolvable home are both non-errors.
func LoadFromUserConfig() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	configPath := filepath.Join(home, ".repocontext", "config.json")
	file, err := os.Open(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	var cfg map[string]string
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return err
	}

	for key, value := range cfg {
		if value == "" {
			continue
		}
		// Values from the config file take precedence over existing env vars.
		_ = os.Setenv(key, value)
	}

	return nil
}
