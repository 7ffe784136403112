package config

import (
	"errors"
	"fmt"
	"time"
)

// BotConfig holds dispatch and handler settings.
type BotConfig struct {
	EventTimeout time.Duration

	// Per-user dispatch limit (token bucket).
	UserRateBurst  float64
	UserRateRefill float64 // tokens per second

	// Per-user limit on completion calls made by the conversational fallback.
	LLMRateBurst  float64
	LLMRateRefill float64 // tokens per hour
	LLMRateDaily  int     // 0 disables the daily cap

	// HistoryLimit is the number of turns kept per channel for the fallback.
	HistoryLimit int

	PendingTTL           time.Duration
	PendingSweepSchedule string
}

// DefaultBotConfig returns the values used when nothing is set.
func DefaultBotConfig() BotConfig {
	return BotConfig{
		EventTimeout:         EventProcessing,
		UserRateBurst:        10,
		UserRateRefill:       0.5,
		LLMRateBurst:         20,
		LLMRateRefill:        30,
		LLMRateDaily:         200,
		HistoryLimit:         10,
		PendingTTL:           PendingRequestTTL,
		PendingSweepSchedule: PendingSweepSchedule,
	}
}

func loadBotConfig() BotConfig {
	d := DefaultBotConfig()
	return BotConfig{
		EventTimeout:         getDurationEnv(EnvEventTimeout, d.EventTimeout),
		UserRateBurst:        getFloatEnv(EnvUserRateBurst, d.UserRateBurst),
		UserRateRefill:       getFloatEnv(EnvUserRateRefill, d.UserRateRefill),
		LLMRateBurst:         getFloatEnv(EnvLLMRateBurst, d.LLMRateBurst),
		LLMRateRefill:        getFloatEnv(EnvLLMRateRefill, d.LLMRateRefill),
		LLMRateDaily:         getIntEnv(EnvLLMRateDaily, d.LLMRateDaily),
		HistoryLimit:         getIntEnv(EnvHistoryLimit, d.HistoryLimit),
		PendingTTL:           getDurationEnv(EnvPendingTTL, d.PendingTTL),
		PendingSweepSchedule: getEnv(EnvPendingSchedule, d.PendingSweepSchedule),
	}
}

// Validate checks value ranges.
func (c BotConfig) Validate() error {
	var errs []error

	if c.EventTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvEventTimeout, c.EventTimeout))
	}
	if c.UserRateBurst <= 0 || c.UserRateRefill <= 0 {
		errs = append(errs, errors.New("user rate limit burst and refill must be positive"))
	}
	if c.LLMRateBurst <= 0 || c.LLMRateRefill <= 0 {
		errs = append(errs, errors.New("LLM rate limit burst and refill must be positive"))
	}
	if c.LLMRateDaily < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative, got %d", EnvLLMRateDaily, c.LLMRateDaily))
	}
	if c.HistoryLimit < 2 {
		errs = append(errs, fmt.Errorf("%s must hold at least one exchange, got %d", EnvHistoryLimit, c.HistoryLimit))
	}
	if c.PendingTTL <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvPendingTTL, c.PendingTTL))
	}
	if c.PendingSweepSchedule == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvPendingSchedule))
	}

	return errors.Join(errs...)
}
