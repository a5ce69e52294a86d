package config

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// ErrMissingAPIKey is returned when neither the environment nor the env file carries the key.
var ErrMissingAPIKey = errors.New("api key not found")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// LoadAPIKey resolves the service credential: environment variable first, then the first
// matching KEY=value line of envFile.
func LoadAPIKey(key, envFile string) (string, error) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v, nil
	}

	if envFile != "" {
		v, err := lookupEnvFile(envFile, key)
		if err != nil {
			return "", err
		}
		if v != "" {
			return v, nil
		}
	}

	return "", fmt.Errorf("%w: set %s in the environment or in %s", ErrMissingAPIKey, key, envFile)
}

func lookupEnvFile(path, key string) (string, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read env file %s: %w", path, err)
	}
	raw = bytes.TrimPrefix(raw, utf8BOM)

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Lines are parsed one at a time so the first definition wins.
		values, err := godotenv.Unmarshal(line)
		if err != nil {
			continue
		}
		if v, ok := values[key]; ok {
			v = strings.Trim(strings.TrimSpace(v), `"'`)
			if v != "" {
				return v, nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan env file %s: %w", path, err)
	}

	return "", nil
}
