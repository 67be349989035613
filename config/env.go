package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
)

var dotenvOnce sync.Once

// loadDotEnv pulls a .env file into the process environment if one
// exists. Missing files are fine; real env vars always win because
// godotenv never overwrites keys that are already set.
func loadDotEnv() {
	dotenvOnce.Do(func() {
		_ = godotenv.Load()
	})
}

// EnvString reads a string option from the environment.
func EnvString(key string) (string, bool) {
	loadDotEnv()
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// EnvInt reads an integer option from the environment.
func EnvInt(key string) (int, bool, error) {
	loadDotEnv()
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s=%q: %w", key, value, err)
	}
	return parsed, true, nil
}
