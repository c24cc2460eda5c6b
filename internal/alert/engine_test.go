package alert

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseboard/pulseboard/internal/store"
)

type fakeRuleStore struct {
	rules  []store.AlertRule
	events []store.AlertEvent
}

func (f *fakeRuleStore) ListEnabledAlertRulesByMonitor(context.Context, int64) ([]store.AlertRule, error) {
	return f.rules, nil
}

func (f *fakeRuleStore) InsertAlertEvent(_ context.Context, ruleID, monitorID int64, value float64, level, message string) error {
	f.events = append(f.events, store.AlertEvent{
		RuleID: ruleID, MonitorID: monitorID, Value: value, Level: level, Message: message,
	})
	return nil
}

type fakeState struct {
	cooldowns map[int64]time.Duration
	firing    map[int64]bool
}

func newFakeState() *fakeState {
	return &fakeState{
		cooldowns: make(map[int64]time.Duration),
		firing:    make(map[int64]bool),
	}
}

func (f *fakeState) InCooldown(_ context.Context, ruleID int64) bool {
	_, ok := f.cooldowns[ruleID]
	return ok
}

func (f *fakeState) StartCooldown(_ context.Context, ruleID int64, window time.Duration) {
	f.cooldowns[ruleID] = window
}

func (f *fakeState) SetFiring(_ context.Context, ruleID int64)   { f.firing[ruleID] = true }
func (f *fakeState) ClearFiring(_ context.Context, ruleID int64) { delete(f.firing, ruleID) }

type fakeNotifier struct {
	sent []Notification
	err  error
}

func (f *fakeNotifier) Notify(_ context.Context, n Notification) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, n)
	return nil
}

func testMonitor() store.Monitor {
	return store.Monitor{ID: 1, Name: "cpu load", Unit: "%", DecimalPlaces: 1}
}

func rule(id int64, condition, level string, cooldownSeconds int) store.AlertRule {
	return store.AlertRule{
		ID: id, MonitorID: 1, Name: "load high", Condition: condition,
		Level: level, Enabled: true, CooldownSeconds: cooldownSeconds,
	}
}

func TestCheckDispatchesOnBreach(t *testing.T) {
	rules := &fakeRuleStore{rules: []store.AlertRule{rule(10, "value > 90", "high", 0)}}
	state := newFakeState()
	notifier := &fakeNotifier{}
	engine := NewEngine(rules, state, notifier, slog.Default())

	engine.Check(context.Background(), testMonitor(), 95)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "[high] load high", notifier.sent[0].Title)
	assert.Equal(t, 1, notifier.sent[0].Priority)
	assert.Contains(t, notifier.sent[0].Message, "cpu load is 95 %")
	assert.True(t, state.firing[10])
	assert.Equal(t, LevelHigh.DefaultCooldown(), state.cooldowns[10])
	require.Len(t, rules.events, 1)
	assert.Equal(t, "high", rules.events[0].Level)
}

func TestCheckSuppressedInsideCooldown(t *testing.T) {
	rules := &fakeRuleStore{rules: []store.AlertRule{rule(10, "value > 90", "medium", 0)}}
	state := newFakeState()
	state.StartCooldown(context.Background(), 10, time.Minute)
	notifier := &fakeNotifier{}
	engine := NewEngine(rules, state, notifier, slog.Default())

	engine.Check(context.Background(), testMonitor(), 95)

	assert.Empty(t, notifier.sent)
	assert.Empty(t, rules.events)
	assert.True(t, state.firing[10], "firing flag still tracks the breach")
}

func TestCheckClearsFiringWhenRecovered(t *testing.T) {
	rules := &fakeRuleStore{rules: []store.AlertRule{rule(10, "value > 90", "low", 0)}}
	state := newFakeState()
	state.SetFiring(context.Background(), 10)
	notifier := &fakeNotifier{}
	engine := NewEngine(rules, state, notifier, slog.Default())

	engine.Check(context.Background(), testMonitor(), 50)

	assert.Empty(t, notifier.sent)
	assert.False(t, state.firing[10])
}

func TestCheckCustomCooldownOverridesLevelDefault(t *testing.T) {
	rules := &fakeRuleStore{rules: []store.AlertRule{rule(10, "value > 90", "critical", 45)}}
	state := newFakeState()
	notifier := &fakeNotifier{}
	engine := NewEngine(rules, state, notifier, slog.Default())

	engine.Check(context.Background(), testMonitor(), 99)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, 2, notifier.sent[0].Priority)
	assert.Equal(t, 45*time.Second, state.cooldowns[10])
}

func TestCheckNoCooldownOnDeliveryFailure(t *testing.T) {
	rules := &fakeRuleStore{rules: []store.AlertRule{rule(10, "value > 90", "high", 0)}}
	state := newFakeState()
	notifier := &fakeNotifier{err: errors.New("pushover down")}
	engine := NewEngine(rules, state, notifier, slog.Default())

	engine.Check(context.Background(), testMonitor(), 95)

	assert.Empty(t, state.cooldowns, "failed delivery must not open a cooldown window")
	assert.Empty(t, rules.events)
}

func TestCheckSkipsBadStoredRule(t *testing.T) {
	rules := &fakeRuleStore{rules: []store.AlertRule{
		rule(10, "garbage", "high", 0),
		rule(11, "value > 90", "nonsense", 0),
		rule(12, "value > 90", "low", 0),
	}}
	state := newFakeState()
	notifier := &fakeNotifier{}
	engine := NewEngine(rules, state, notifier, slog.Default())

	engine.Check(context.Background(), testMonitor(), 95)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "[low] load high", notifier.sent[0].Title)
}
