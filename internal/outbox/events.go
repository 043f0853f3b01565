package outbox

import "time"

// Topic is the Kafka topic carrying all session ledger events. Messages are
// keyed by user id so one user's events stay totally ordered.
const Topic = "sauna_session_events"

// Event types recorded by the ledger repository.
const (
	EventSessionAppended = "session.appended"
	EventSessionRemoved  = "session.removed"
	EventDayReplaced     = "day.replaced"
	EventDayMetaUpdated  = "day.meta_updated"
)

// SessionAppended is emitted after a session is appended to a day.
type SessionAppended struct {
	EventUID   string    `json:"event_uid"`
	UserID     string    `json:"user_id"`
	Date       string    `json:"date"`
	Order      int       `json:"order"`
	Minutes    int       `json:"minutes"`
	OccurredAt time.Time `json:"occurred_at"`
}

// SessionRemoved is emitted after a session is deleted and the day renumbered.
type SessionRemoved struct {
	EventUID   string    `json:"event_uid"`
	UserID     string    `json:"user_id"`
	Date       string    `json:"date"`
	Order      int       `json:"order"`
	Remaining  int       `json:"remaining"`
	OccurredAt time.Time `json:"occurred_at"`
}

// DayReplaced is emitted after a wholesale replacement of a day's sessions.
type DayReplaced struct {
	EventUID   string    `json:"event_uid"`
	UserID     string    `json:"user_id"`
	Date       string    `json:"date"`
	Count      int       `json:"count"`
	OccurredAt time.Time `json:"occurred_at"`
}

// DayMetaUpdated is emitted after the day metadata triple changes.
type DayMetaUpdated struct {
	EventUID           string    `json:"event_uid"`
	UserID             string    `json:"user_id"`
	Date               string    `json:"date"`
	FacilityName       *string   `json:"facility_name"`
	ConditionRating    *int      `json:"condition_rating"`
	SatisfactionRating *int      `json:"satisfaction_rating"`
	OccurredAt         time.Time `json:"occurred_at"`
}
