package cliutil

import (
	"bufio"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// EnvFileVariable names the environment variable that overrides the default .env path.
const EnvFileVariable = "SHARETOKEN_ENV_FILE"

// DefaultEnvPath returns the .env file the tools read before parsing flags.
func DefaultEnvPath() string {
	if path := os.Getenv(EnvFileVariable); path != "" {
		return path
	}
	return ".env"
}

// LoadEnvFile sets KEY=VALUE pairs from path into the environment. Variables
// that are already set win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			log.Printf("warning: invalid line %d in %s", lineNum, filepath.Base(path))
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
		if key == "" {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			log.Printf("warning: set env %s: %v", key, err)
		}
	}
	return scanner.Err()
}

// ReloadDefaults fills flags that are still empty from their environment
// variables, for use after a second .env file has been loaded.
func ReloadDefaults(bindings map[string]*string) {
	for key, value := range bindings {
		if value != nil && *value == "" {
			*value = os.Getenv(key)
		}
	}
}

// EnvOr returns the value of the environment variable key, or fallback when unset or empty.
func EnvOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
