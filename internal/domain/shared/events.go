// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Every event is published only after the critical
// section that produced it has committed.
const (
	// Progress events
	EventPointsAwarded     EventType = "progress.points_awarded"
	EventPointsRemoved     EventType = "progress.points_removed"
	EventLevelUp           EventType = "progress.level_up"
	EventStreakUpdated     EventType = "progress.streak_updated"
	EventStreakReset       EventType = "progress.streak_reset"
	EventPeriodPointsReset EventType = "progress.period_points_reset"

	// Goal events
	EventGoalAchieved EventType = "goal.achieved"

	// Habit events
	EventHabitEntryChanged EventType = "habit.entry_changed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// PointsAwardedEvent is emitted after points were added to a user's ledger.
type PointsAwardedEvent struct {
	BaseEvent
	UserID      string `json:"user_id"`
	Points      int    `json:"points"`
	Source      string `json:"source"` // "action" or "goal_bonus"
	ActionID    string `json:"action_id,omitempty"`
	TotalPoints int    `json:"total_points"`
	Experience  int    `json:"experience"`
	Level       int    `json:"level"`
}

// Payload implements Event interface.
func (e PointsAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.UserID,
		"points":       e.Points,
		"source":       e.Source,
		"action_id":    e.ActionID,
		"total_points": e.TotalPoints,
		"experience":   e.Experience,
		"level":        e.Level,
	}
}

// NewPointsAwardedEvent creates a new PointsAwardedEvent.
func NewPointsAwardedEvent(userID string, points int, source, actionID string, total, experience, level int) PointsAwardedEvent {
	return PointsAwardedEvent{
		BaseEvent:   NewBaseEvent(EventPointsAwarded, userID),
		UserID:      userID,
		Points:      points,
		Source:      source,
		ActionID:    actionID,
		TotalPoints: total,
		Experience:  experience,
		Level:       level,
	}
}

// PointsRemovedEvent is emitted after points were taken back from a user.
type PointsRemovedEvent struct {
	BaseEvent
	UserID      string `json:"user_id"`
	Requested   int    `json:"requested"`
	ActionID    string `json:"action_id,omitempty"`
	TotalPoints int    `json:"total_points"`
	Experience  int    `json:"experience"`
	Level       int    `json:"level"`
}

// Payload implements Event interface.
func (e PointsRemovedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.UserID,
		"requested":    e.Requested,
		"action_id":    e.ActionID,
		"total_points": e.TotalPoints,
		"experience":   e.Experience,
		"level":        e.Level,
	}
}

// NewPointsRemovedEvent creates a new PointsRemovedEvent.
func NewPointsRemovedEvent(userID string, requested int, actionID string, total, experience, level int) PointsRemovedEvent {
	return PointsRemovedEvent{
		BaseEvent:   NewBaseEvent(EventPointsRemoved, userID),
		UserID:      userID,
		Requested:   requested,
		ActionID:    actionID,
		TotalPoints: total,
		Experience:  experience,
		Level:       level,
	}
}

// LevelUpEvent is emitted once per level gained.
type LevelUpEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	NewLevel int    `json:"new_level"`
	Bonus    int    `json:"bonus"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"new_level": e.NewLevel,
		"bonus":     e.Bonus,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(userID string, newLevel, bonus int) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, userID),
		UserID:    userID,
		NewLevel:  newLevel,
		Bonus:     bonus,
	}
}

// StreakUpdatedEvent is emitted when an award changes the user's streak.
type StreakUpdatedEvent struct {
	BaseEvent
	UserID    string `json:"user_id"`
	OldStreak int    `json:"old_streak"`
	NewStreak int    `json:"new_streak"`
}

// Payload implements Event interface.
func (e StreakUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":    e.UserID,
		"old_streak": e.OldStreak,
		"new_streak": e.NewStreak,
	}
}

// NewStreakUpdatedEvent creates a new StreakUpdatedEvent.
func NewStreakUpdatedEvent(userID string, oldStreak, newStreak int) StreakUpdatedEvent {
	return StreakUpdatedEvent{
		BaseEvent: NewBaseEvent(EventStreakUpdated, userID),
		UserID:    userID,
		OldStreak: oldStreak,
		NewStreak: newStreak,
	}
}

// StreakResetEvent is emitted when reconciliation decays a streak to zero.
type StreakResetEvent struct {
	BaseEvent
	UserID       string    `json:"user_id"`
	LostStreak   int       `json:"lost_streak"`
	LastActivity time.Time `json:"last_activity"`
}

// Payload implements Event interface.
func (e StreakResetEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":       e.UserID,
		"lost_streak":   e.LostStreak,
		"last_activity": e.LastActivity.Format("2006-01-02"),
	}
}

// NewStreakResetEvent creates a new StreakResetEvent.
func NewStreakResetEvent(userID string, lostStreak int, lastActivity time.Time) StreakResetEvent {
	return StreakResetEvent{
		BaseEvent:    NewBaseEvent(EventStreakReset, userID),
		UserID:       userID,
		LostStreak:   lostStreak,
		LastActivity: lastActivity,
	}
}

// PeriodPointsResetEvent is emitted after a bulk reset of a periodic counter.
type PeriodPointsResetEvent struct {
	BaseEvent
	Period   string `json:"period"`
	Affected int64  `json:"affected"`
}

// Payload implements Event interface.
func (e PeriodPointsResetEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"period":   e.Period,
		"affected": e.Affected,
	}
}

// NewPeriodPointsResetEvent creates a new PeriodPointsResetEvent.
func NewPeriodPointsResetEvent(period string, affected int64) PeriodPointsResetEvent {
	return PeriodPointsResetEvent{
		BaseEvent: NewBaseEvent(EventPeriodPointsReset, "ledger"),
		Period:    period,
		Affected:  affected,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Goal Events
// ═══════════════════════════════════════════════════════════════════════════

// GoalAchievedEvent is emitted exactly once per goal.
type GoalAchievedEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	GoalID        int64  `json:"goal_id"`
	AchievementID int64  `json:"achievement_id"`
	Title         string `json:"title"`
	TargetPoints  int    `json:"target_points"`
	BonusPoints   int    `json:"bonus_points"`
	RewardType    string `json:"reward_type"`
	RewardName    string `json:"reward_name,omitempty"`
}

// Payload implements Event interface.
func (e GoalAchievedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"goal_id":        e.GoalID,
		"achievement_id": e.AchievementID,
		"title":          e.Title,
		"target_points":  e.TargetPoints,
		"bonus_points":   e.BonusPoints,
		"reward_type":    e.RewardType,
		"reward_name":    e.RewardName,
	}
}

// NewGoalAchievedEvent creates a new GoalAchievedEvent.
func NewGoalAchievedEvent(userID string, goalID, achievementID int64, title string, target, bonus int, rewardType, rewardName string) GoalAchievedEvent {
	return GoalAchievedEvent{
		BaseEvent:     NewBaseEvent(EventGoalAchieved, userID),
		UserID:        userID,
		GoalID:        goalID,
		AchievementID: achievementID,
		Title:         title,
		TargetPoints:  target,
		BonusPoints:   bonus,
		RewardType:    rewardType,
		RewardName:    rewardName,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Habit Events
// ═══════════════════════════════════════════════════════════════════════════

// HabitEntryChangedEvent is emitted when a habit entry count changes.
type HabitEntryChangedEvent struct {
	BaseEvent
	UserID  string    `json:"user_id"`
	HabitID int64     `json:"habit_id"`
	Date    time.Time `json:"date"`
	Count   int       `json:"count"`
}

// Payload implements Event interface.
func (e HabitEntryChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":  e.UserID,
		"habit_id": e.HabitID,
		"date":     e.Date.Format("2006-01-02"),
		"count":    e.Count,
	}
}

// NewHabitEntryChangedEvent creates a new HabitEntryChangedEvent.
func NewHabitEntryChangedEvent(userID string, habitID int64, date time.Time, count int) HabitEntryChangedEvent {
	return HabitEntryChangedEvent{
		BaseEvent: NewBaseEvent(EventHabitEntryChanged, userID),
		UserID:    userID,
		HabitID:   habitID,
		Date:      date,
		Count:     count,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

