package worker

import (
	"fmt"
	"time"
)

// Config holds the configuration for the background task runner.
type Config struct {
	// TaskTimeout is the maximum time a single run of a task may take.
	// The run's context is canceled once it is exceeded.
	// Default: 1 minute
	TaskTimeout time.Duration

	// ShutdownTimeout is how long Stop waits for in-flight runs.
	// Default: 10 seconds
	ShutdownTimeout time.Duration

	// MinInterval is the shortest schedule Register accepts.
	// Default: 1 second
	MinInterval time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		TaskTimeout:     time.Minute,
		ShutdownTimeout: 10 * time.Second,
		MinInterval:     time.Second,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.TaskTimeout < time.Second {
		return fmt.Errorf("task timeout must be at least 1 second, got %v", c.TaskTimeout)
	}
	if c.ShutdownTimeout < time.Second {
		return fmt.Errorf("shutdown timeout must be at least 1 second, got %v", c.ShutdownTimeout)
	}
	if c.MinInterval <= 0 {
		return fmt.Errorf("min interval must be positive, got %v", c.MinInterval)
	}
	return nil
}
