package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"
)

// Config holds all service configuration
type Config struct {
	// Browser configuration
	ChromiumPath string
	ServerPort   string
	MaxBrowsers  int

	// Login session lifecycle
	LoginWindow        time.Duration // how long a user gets to finish a login
	SweepInterval      time.Duration // how often expired sessions are swept
	GCGrace            time.Duration // how long terminal sessions stay in memory
	CookiePollInterval time.Duration

	// Redis configuration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SnapshotTTL   time.Duration // retention of completed-session snapshots

	// SQLite configuration
	DataDir string
}

func Load() (*Config, error) {
	chromiumPath, err := findChromium()
	if err != nil {
		return nil, err
	}

	return &Config{
		ChromiumPath: chromiumPath,
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		MaxBrowsers:  getEnvAsInt("MAX_BROWSERS", 5),

		LoginWindow:        getEnvAsDuration("LOGIN_WINDOW", 5*time.Minute),
		SweepInterval:      getEnvAsDuration("SWEEP_INTERVAL", 10*time.Second),
		GCGrace:            getEnvAsDuration("GC_GRACE", 60*time.Second),
		CookiePollInterval: getEnvAsDuration("COOKIE_POLL_INTERVAL", 2*time.Second),

		// Redis defaults
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		SnapshotTTL:   getEnvAsDuration("SNAPSHOT_TTL", 1*time.Hour),

		DataDir: getEnv("DATA_DIR", "./data"),
	}, nil
}

func getEnv(key string, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return intVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return duration
}

// Function to find the Chromium binary path
func findChromium() (string, error) {

	// Check if CHROMIUM_PATH environment variable is set
	customPath := os.Getenv("CHROMIUM_PATH")
	if customPath != "" {

		// Validate the custom path exists
		if !fileExists(customPath) {
			return "", fmt.Errorf("chromium binary not found at path: %s", customPath)
		}

		// Validate the custom path is executable
		if !isExecutable(customPath) {
			return "", fmt.Errorf("chromium binary found but not executable: %s", customPath)
		}
		return customPath, nil
	}

	// Get common paths for this OS
	currentOS := runtime.GOOS
	paths := getChromiumPaths(currentOS)

	for _, path := range paths {
		if fileExists(path) && isExecutable(path) {
			return path, nil
		}
	}

	return "", fmt.Errorf("chromium not found in common paths for %s, set CHROMIUM_PATH environment variable", currentOS)
}

// getChromiumPaths returns common Chromium installation paths based on OS.
func getChromiumPaths(operatingSystem string) []string {
	if operatingSystem == "darwin" {
		return []string{
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		}
	}

	if operatingSystem == "linux" {
		return []string{
			"/usr/bin/chromium-browser",
			"/usr/bin/chromium",
			"/snap/bin/chromium",
		}
	}

	// Unsupported OS
	return []string{}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode()&0111 != 0
}
