package main

import (
	"bufio"
	"os"
	"strings"
)

// Config carries the process configuration, read from the environment with
// the defaults a local run expects.
type Config struct {
	Port           string
	DBPath         string
	RedisAddr      string
	StaticDir      string
	SeedSampleData bool
}

func LoadConfig() Config {
	cfg := Config{
		Port:      "3001",
		DBPath:    "./tasklist.db",
		StaticDir: "./public",
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("STATIC_DIR"); v != "" {
		cfg.StaticDir = v
	}
	cfg.SeedSampleData = os.Getenv("SEED_SAMPLE_DATA") == "true"
	return cfg
}

// LoadEnv loads environment variables from a .env file. A missing file is
// not an error; already-set variables are not overridden.
func LoadEnv(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
		if _, exists := os.LookupEnv(key); !exists {
			os.Setenv(key, value)
		}
	}

	return scanner.Err()
}
