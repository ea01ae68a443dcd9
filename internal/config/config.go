package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the CityForge server
type Config struct {
	Server  ServerConfig
	World   WorldConfig
	Assets  AssetsConfig
	Water   WaterConfig
	Saves   SavesConfig
	Logging LoggingConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	Environment  string
	// FrameRate is the pipeline tick rate in frames per second.
	FrameRate int
}

// WorldConfig holds the simulation tuning source and animation mode
type WorldConfig struct {
	// TuningPath points to an optional YAML file overriding the built-in
	// defaults; a missing file means defaults.
	TuningPath string
	Animate    bool
}

// AssetsConfig holds the asset catalog location
type AssetsConfig struct {
	Root string
}

// WaterConfig describes the optional water mask image and the world
// rectangle it stretches over
type WaterConfig struct {
	MaskPath string
	MinX     float64
	MinZ     float64
	MaxX     float64
	MaxZ     float64
}

// SavesConfig holds persistence locations
type SavesConfig struct {
	// FilePath is the default quick-save JSON document.
	FilePath string
	// SlotDBPath is the sqlite database holding named save slots.
	SlotDBPath string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string
	OutputPath string
	// Profiling enables per-pass rebuild timing.
	Profiling bool
}

// Load reads configuration from environment variables and .env file
// It returns a Config struct with all settings populated
// The .env file is loaded from the current working directory
func Load() (*Config, error) {
	// Environment variables can still be set directly without a .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found (this is OK if using environment variables): %v", err)
	}

	config := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getDurationEnv("SERVER_IDLE_TIMEOUT", 60*time.Second),
			Environment:  getEnv("ENVIRONMENT", "development"),
			FrameRate:    getIntEnv("FRAME_RATE", 30),
		},
		World: WorldConfig{
			TuningPath: getEnv("TUNING_PATH", ""),
			Animate:    getBoolEnv("SPAWN_ANIMATION", true),
		},
		Assets: AssetsConfig{
			Root: getEnv("ASSETS_ROOT", "assets"),
		},
		Water: WaterConfig{
			MaskPath: getEnv("WATER_MASK_PATH", ""),
			MinX:     getFloatEnv("WATER_MIN_X", -2048),
			MinZ:     getFloatEnv("WATER_MIN_Z", -2048),
			MaxX:     getFloatEnv("WATER_MAX_X", 2048),
			MaxZ:     getFloatEnv("WATER_MAX_Z", 2048),
		},
		Saves: SavesConfig{
			FilePath:   getEnv("SAVE_FILE_PATH", "save.json"),
			SlotDBPath: getEnv("SAVE_SLOT_DB", "saves/slots.db"),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			OutputPath: getEnv("LOG_OUTPUT_PATH", ""),
			Profiling:  getBoolEnv("PROFILING", false),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate checks that the configuration values are usable
func (c *Config) Validate() error {
	if c.Server.FrameRate < 1 || c.Server.FrameRate > 240 {
		return fmt.Errorf("FRAME_RATE must be between 1 and 240")
	}
	if c.Water.MaxX <= c.Water.MinX || c.Water.MaxZ <= c.Water.MinZ {
		return fmt.Errorf("water rectangle is degenerate")
	}
	if c.Saves.FilePath == "" {
		return fmt.Errorf("SAVE_FILE_PATH must not be empty")
	}
	return nil
}

// Addr returns the host:port the server binds to
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// FrameInterval returns the duration of one pipeline tick
func (c *ServerConfig) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.FrameRate)
}

// IsDevelopment returns true if running in development mode
func (c *ServerConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// Helper functions for environment variable access

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: invalid integer value for %s: %s, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return intValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Printf("Warning: invalid float value for %s: %s, using default: %g", key, value, defaultValue)
		return defaultValue
	}
	return floatValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Warning: invalid boolean value for %s: %s, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return boolValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Warning: invalid duration value for %s: %s, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return duration
}
