// Package alert implements the threshold rule engine: condition evaluation,
// severity levels, cooldown gating, and notification dispatch.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/pulseboard/pulseboard/internal/metrics"
	"github.com/pulseboard/pulseboard/internal/store"
)

// Notification is one outbound push message.
type Notification struct {
	Title    string
	Message  string
	Priority int
}

// Notifier delivers notifications. Implemented by the Pushover client.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// RuleStore is the slice of the store the engine reads rules from and logs
// dispatched alerts to.
type RuleStore interface {
	ListEnabledAlertRulesByMonitor(ctx context.Context, monitorID int64) ([]store.AlertRule, error)
	InsertAlertEvent(ctx context.Context, ruleID, monitorID int64, value float64, level, message string) error
}

// StateStore tracks transient per-rule alert state: whether the rule is
// currently firing and whether it is inside its cooldown window.
type StateStore interface {
	InCooldown(ctx context.Context, ruleID int64) bool
	StartCooldown(ctx context.Context, ruleID int64, window time.Duration)
	SetFiring(ctx context.Context, ruleID int64)
	ClearFiring(ctx context.Context, ruleID int64)
}

// Engine evaluates a monitor's enabled rules against each newly computed value.
type Engine struct {
	rules    RuleStore
	state    StateStore
	notifier Notifier
	logger   *slog.Logger
}

func NewEngine(rules RuleStore, state StateStore, notifier Notifier, logger *slog.Logger) *Engine {
	return &Engine{
		rules:    rules,
		state:    state,
		notifier: notifier,
		logger:   logger.With("component", "alert"),
	}
}

// Check evaluates every enabled rule of the monitor against value. A
// triggered rule outside its cooldown window dispatches at most one
// notification and opens a new window.
func (e *Engine) Check(ctx context.Context, m store.Monitor, value float64) {
	rules, err := e.rules.ListEnabledAlertRulesByMonitor(ctx, m.ID)
	if err != nil {
		e.logger.Error("list alert rules failed", "monitor_id", m.ID, "error", err)
		return
	}

	for _, rule := range rules {
		cond, err := ParseCondition(rule.Condition)
		if err != nil {
			// Conditions are validated at save time; a bad stored one is data damage.
			e.logger.Error("stored condition unparseable", "rule_id", rule.ID, "error", err)
			continue
		}

		if !cond.Match(value) {
			e.state.ClearFiring(ctx, rule.ID)
			continue
		}

		level, err := ParseLevel(rule.Level)
		if err != nil {
			e.logger.Error("stored level invalid", "rule_id", rule.ID, "error", err)
			continue
		}

		e.state.SetFiring(ctx, rule.ID)

		if e.state.InCooldown(ctx, rule.ID) {
			metrics.AlertsSuppressedTotal.WithLabelValues(string(level)).Inc()
			e.logger.Debug("alert suppressed by cooldown", "rule_id", rule.ID, "monitor", m.Name)
			continue
		}

		window := level.DefaultCooldown()
		if rule.CooldownSeconds > 0 {
			window = time.Duration(rule.CooldownSeconds) * time.Second
		}

		msg := renderMessage(m, rule, value)
		n := Notification{
			Title:    fmt.Sprintf("[%s] %s", level, rule.Name),
			Message:  msg,
			Priority: level.Priority(),
		}

		if err := e.notifier.Notify(ctx, n); err != nil {
			metrics.AlertsFailedTotal.WithLabelValues(string(level)).Inc()
			e.logger.Error("notification dispatch failed", "rule_id", rule.ID, "error", err)
			// No cooldown on failure so the next tick retries.
			continue
		}

		metrics.AlertsSentTotal.WithLabelValues(string(level)).Inc()
		e.state.StartCooldown(ctx, rule.ID, window)

		if err := e.rules.InsertAlertEvent(ctx, rule.ID, m.ID, value, string(level), msg); err != nil {
			e.logger.Error("record alert event failed", "rule_id", rule.ID, "error", err)
		}

		e.logger.Info("alert dispatched",
			"rule", rule.Name, "monitor", m.Name, "level", string(level), "value", value)
	}
}

func renderMessage(m store.Monitor, rule store.AlertRule, value float64) string {
	formatted := humanize.CommafWithDigits(value, m.DecimalPlaces)
	if m.Unit != "" {
		formatted += " " + m.Unit
	}
	return fmt.Sprintf("%s is %s (condition: %s)", m.Name, formatted, rule.Condition)
}
