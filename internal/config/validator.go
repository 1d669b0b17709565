package config

import (
	"fmt"
	"strings"

	"github.com/sk2233/spineview/internal/logging"
)

// ValidationError is a single invalid field.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Validate returns every invalid value in c.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError
	add := func(field string, value any, msg string) {
		errs = append(errs, ValidationError{Field: field, Value: value, Message: msg})
	}

	if c.Window.Width <= 0 {
		add("window.width", c.Window.Width, "must be positive")
	}
	if c.Window.Height <= 0 {
		add("window.height", c.Window.Height, "must be positive")
	}
	if c.Window.DeviceScale < 0 {
		add("window.device_scale", c.Window.DeviceScale, "must not be negative")
	}

	if c.Timings.PollIntervalMs <= 0 {
		add("timings.poll_interval_ms", c.Timings.PollIntervalMs, "must be positive")
	}
	if c.Timings.ReadyTimeoutMs < c.Timings.PollIntervalMs {
		add("timings.ready_timeout_ms", c.Timings.ReadyTimeoutMs, "must not be shorter than the poll interval")
	}
	for field, val := range map[string]int{
		"timings.loop_start_delay_ms":   c.Timings.LoopStartDelayMs,
		"timings.switch_settle_ms":      c.Timings.SwitchSettleMs,
		"timings.reschedule_backoff_ms": c.Timings.RescheduleBackoffMs,
		"timings.start_stagger_ms":      c.Timings.StartStaggerMs,
	} {
		if val < 0 {
			add(field, val, "must not be negative")
		}
	}

	if c.Control.Enabled && c.Control.Addr == "" {
		add("control.addr", c.Control.Addr, "is required when control is enabled")
	}

	if !logging.ValidLevel(c.Logging.Level) {
		add("logging.level", c.Logging.Level, "must be one of debug, info, warn, error")
	}
	if c.Logging.FeedLimit < 0 {
		add("logging.feed_limit", c.Logging.FeedLimit, "must not be negative")
	}

	seen := make(map[string]bool)
	for i, item := range c.Characters {
		prefix := fmt.Sprintf("characters[%d]", i)
		switch {
		case item.ID == "":
			add(prefix+".id", item.ID, "is required")
		case seen[item.ID]:
			add(prefix+".id", item.ID, "is duplicated")
		}
		seen[item.ID] = true
		if item.Atlas == "" {
			add(prefix+".atlas", item.Atlas, "is required")
		}
		if item.Skeleton == "" {
			add(prefix+".skeleton", item.Skeleton, "is required")
		}
		if item.Scale <= 0 {
			add(prefix+".scale", item.Scale, "must be positive")
		}
		if item.Canvas.Width <= 0 || item.Canvas.Height <= 0 {
			add(prefix+".canvas", item.Canvas, "must have a positive size")
		}
	}
	return errs
}
