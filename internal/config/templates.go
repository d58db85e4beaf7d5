package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "server":
		return serverTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const serverTemplate = `addr = ":8080"
service_id = "metabridge-api"
cors_origins = ["http://localhost:3000"]
api_token = ""

pairing_code_ttl_seconds = 60
reconnect_window_seconds = 300
sweep_interval_ms = 1000
pairing_max_attempts = 5
pairing_attempt_window_seconds = 60

# Leave empty to keep the fleet in memory only.
store_path = ""
`
