package main

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Port               string        `yaml:"port"`
	SocketPort         string        `yaml:"socketPort"`
	LogLevel           string        `yaml:"logLevel"`
	DataDir            string        `yaml:"dataDir"`
	StateFile          string        `yaml:"stateFile"`
	Difficulty         int           `yaml:"difficulty"`
	VoteThreshold      float64       `yaml:"voteThreshold"`
	RateLimitPerMinute int           `yaml:"rateLimitPerMinute"`
	MaxBodySizeBytes   int64         `yaml:"maxBodySizeBytes"`
	ShutdownTimeout    time.Duration `yaml:"shutdownTimeout"`
	NodeAuthSecret     string        `yaml:"nodeAuthSecret"`
	RequireNodeAuth    bool          `yaml:"requireNodeAuth"`
}

// Default values
const (
	DefaultDifficulty         = 2
	DefaultVoteThreshold      = 0.5
	DefaultRateLimitPerMinute = 100
	DefaultMaxBodySizeBytes   = 1 << 20 // 1MB
	DefaultDataDir            = "./data"
	DefaultStateFile          = "system_state.json"
	DefaultShutdownTimeout    = 30 * time.Second
)

// LoadConfig builds the configuration in three layers: built-in defaults,
// then an optional YAML file named by CONFIG_FILE, then environment
// variable overrides.
func LoadConfig() *Config {
	cfg := &Config{
		Port:               "8080",
		SocketPort:         "9999",
		LogLevel:           "info",
		DataDir:            DefaultDataDir,
		StateFile:          DefaultStateFile,
		Difficulty:         DefaultDifficulty,
		VoteThreshold:      DefaultVoteThreshold,
		RateLimitPerMinute: DefaultRateLimitPerMinute,
		MaxBodySizeBytes:   DefaultMaxBodySizeBytes,
		ShutdownTimeout:    DefaultShutdownTimeout,
		NodeAuthSecret:     "demo-secret",
		RequireNodeAuth:    false,
	}

	if configFile := os.Getenv("CONFIG_FILE"); configFile != "" {
		if data, err := os.ReadFile(configFile); err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil && logger != nil {
				logger.Warn("Failed to parse config file, continuing with defaults", "file", configFile, "error", err)
			}
		} else if logger != nil {
			logger.Warn("Failed to read config file, continuing with defaults", "file", configFile, "error", err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}

	if socketPort := os.Getenv("SOCKET_PORT"); socketPort != "" {
		cfg.SocketPort = socketPort
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		cfg.LogLevel = logLevel
	}

	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		cfg.DataDir = dataDir
	}

	if stateFile := os.Getenv("STATE_FILE"); stateFile != "" {
		cfg.StateFile = stateFile
	}

	if difficultyEnv := os.Getenv("DIFFICULTY"); difficultyEnv != "" {
		if difficulty, err := strconv.Atoi(difficultyEnv); err == nil && difficulty >= 0 {
			cfg.Difficulty = difficulty
		}
	}

	if thresholdEnv := os.Getenv("VOTE_THRESHOLD"); thresholdEnv != "" {
		if threshold, err := strconv.ParseFloat(thresholdEnv, 64); err == nil && threshold > 0 && threshold <= 1 {
			cfg.VoteThreshold = threshold
		}
	}

	if rateLimitEnv := os.Getenv("RATE_LIMIT_PER_MINUTE"); rateLimitEnv != "" {
		if rateLimit, err := strconv.Atoi(rateLimitEnv); err == nil && rateLimit > 0 {
			cfg.RateLimitPerMinute = rateLimit
		}
	}

	if maxBodyEnv := os.Getenv("MAX_BODY_SIZE_BYTES"); maxBodyEnv != "" {
		if maxBody, err := strconv.ParseInt(maxBodyEnv, 10, 64); err == nil && maxBody > 0 {
			cfg.MaxBodySizeBytes = maxBody
		}
	}

	if shutdownTimeout := os.Getenv("SHUTDOWN_TIMEOUT"); shutdownTimeout != "" {
		if duration, err := time.ParseDuration(shutdownTimeout); err == nil {
			cfg.ShutdownTimeout = duration
		}
	}

	if secret := os.Getenv("NODE_AUTH_SECRET"); secret != "" {
		cfg.NodeAuthSecret = secret
	}

	if required := os.Getenv("REQUIRE_NODE_AUTH"); required != "" {
		cfg.RequireNodeAuth = required == "true"
	}
}
