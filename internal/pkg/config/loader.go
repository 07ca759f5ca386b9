// Package config provides fail-open environment loaders and validators.
//
// Every loader returns a ConfigLoadResult instead of an error: a value that is
// missing yields the default silently, a value that fails to parse or validate
// yields the default together with a warning. Components collect the warnings,
// log them and export them through ConfigMetrics.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ConfigLoadResult represents the result of loading a configuration value.
//
// Example:
//
//	result := LoadEnvDuration("FETCH_TIMEOUT", 30*time.Second, ValidatePositiveDuration)
//	if result.FallbackApplied {
//	    for _, warning := range result.Warnings {
//	        logger.Warn("configuration fallback", slog.String("warning", warning))
//	    }
//	}
//	timeout := result.Value.(time.Duration)
type ConfigLoadResult struct {
	Value           interface{}
	Warnings        []string
	FallbackApplied bool
}

// loadEnv is the shared fail-open loading path for all typed loaders.
func loadEnv[T any](envKey string, defaultValue T, parse func(string) (T, error), validator func(T) error) ConfigLoadResult {
	raw := os.Getenv(envKey)
	if raw == "" {
		return ConfigLoadResult{Value: defaultValue}
	}

	parsed, err := parse(raw)
	if err == nil && validator != nil {
		err = validator(parsed)
	}
	if err != nil {
		return ConfigLoadResult{
			Value:           defaultValue,
			Warnings:        []string{fmt.Sprintf("Invalid %s='%s': %v, falling back to default '%v'", envKey, raw, err, defaultValue)},
			FallbackApplied: true,
		}
	}
	return ConfigLoadResult{Value: parsed}
}

// LoadEnvString returns the environment value or defaultValue when unset. No validation.
func LoadEnvString(envKey, defaultValue string) string {
	if value := os.Getenv(envKey); value != "" {
		return value
	}
	return defaultValue
}

// LoadEnvWithFallback loads a string and falls back to defaultValue when validator rejects it.
// A nil validator accepts any value.
//
// Example:
//
//	result := LoadEnvWithFallback("INGEST_CRON_SCHEDULE", "*/5 * * * *", ValidateCronSchedule)
//	schedule := result.Value.(string)
func LoadEnvWithFallback(envKey, defaultValue string, validator func(string) error) ConfigLoadResult {
	return loadEnv(envKey, defaultValue, func(s string) (string, error) { return s, nil }, validator)
}

// LoadEnvDuration loads a Go duration string ("30s", "5m").
func LoadEnvDuration(envKey string, defaultValue time.Duration, validator func(time.Duration) error) ConfigLoadResult {
	return loadEnv(envKey, defaultValue, time.ParseDuration, validator)
}

// LoadEnvInt loads a base-10 integer.
func LoadEnvInt(envKey string, defaultValue int, validator func(int) error) ConfigLoadResult {
	return loadEnv(envKey, defaultValue, func(s string) (int, error) {
		v, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, fmt.Errorf("invalid integer format")
		}
		return v, nil
	}, validator)
}

// LoadEnvFloat loads a decimal number such as a similarity threshold.
func LoadEnvFloat(envKey string, defaultValue float64, validator func(float64) error) ConfigLoadResult {
	return loadEnv(envKey, defaultValue, func(s string) (float64, error) {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number format")
		}
		return v, nil
	}, validator)
}

// LoadEnvBool loads a boolean accepted by strconv.ParseBool ("1", "true", "F", ...).
func LoadEnvBool(envKey string, defaultValue bool) ConfigLoadResult {
	return loadEnv(envKey, defaultValue, func(s string) (bool, error) {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return false, fmt.Errorf("invalid boolean format, expected 'true' or 'false'")
		}
		return v, nil
	}, nil)
}

// Collector accumulates the warnings of several loads so a component can
// report them once.
//
// Example:
//
//	var c config.Collector
//	cfg.BatchSize = c.Int("INGEST_BATCH_SIZE", cfg.BatchSize, nil)
//	cfg.Cooldown = c.Duration("FEED_COOLDOWN", cfg.Cooldown, config.ValidatePositiveDuration)
//	for _, w := range c.Warnings { logger.Warn(w) }
type Collector struct {
	Warnings []string
	Fields   []string
}

func (c *Collector) record(field string, r ConfigLoadResult) {
	if r.FallbackApplied {
		c.Warnings = append(c.Warnings, r.Warnings...)
		c.Fields = append(c.Fields, field)
	}
}

// String loads a validated string.
func (c *Collector) String(envKey, def string, validator func(string) error) string {
	r := LoadEnvWithFallback(envKey, def, validator)
	c.record(envKey, r)
	return r.Value.(string)
}

// Duration loads a validated duration.
func (c *Collector) Duration(envKey string, def time.Duration, validator func(time.Duration) error) time.Duration {
	r := LoadEnvDuration(envKey, def, validator)
	c.record(envKey, r)
	return r.Value.(time.Duration)
}

// Int loads a validated integer.
func (c *Collector) Int(envKey string, def int, validator func(int) error) int {
	r := LoadEnvInt(envKey, def, validator)
	c.record(envKey, r)
	return r.Value.(int)
}

// Float loads a validated float.
func (c *Collector) Float(envKey string, def float64, validator func(float64) error) float64 {
	r := LoadEnvFloat(envKey, def, validator)
	c.record(envKey, r)
	return r.Value.(float64)
}

// Bool loads a boolean.
func (c *Collector) Bool(envKey string, def bool) bool {
	r := LoadEnvBool(envKey, def)
	c.record(envKey, r)
	return r.Value.(bool)
}

// FallbackApplied reports whether any load fell back to its default.
func (c *Collector) FallbackApplied() bool {
	return len(c.Warnings) > 0
}
