package domain

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"time"
)

var (
	// ErrInvalidDate is returned when a date key is malformed or names an
	// impossible calendar date.
	ErrInvalidDate = errors.New("invalid date key")
	// ErrInvalidMinutes is returned when a minutes value does not round to a
	// positive integer.
	ErrInvalidMinutes = errors.New("invalid minutes value")
	// ErrInvalidIndex is returned when a delete target is out of range for
	// the day's session list.
	ErrInvalidIndex = errors.New("invalid session index")
)

// SessionRecord is one recorded sauna visit. Order is the 1-based position
// within the day's list and stays dense across edits.
type SessionRecord struct {
	UserID    string
	Date      string
	Order     int
	Minutes   int
	CreatedAt time.Time
}

// DayMeta is the per-day metadata triple. A nil field means absent.
type DayMeta struct {
	FacilityName       *string
	ConditionRating    *int
	SatisfactionRating *int
}

// MetaPatch carries day metadata fields supplied with an append. A field
// whose Set flag is false inherits the day's current value; a set field
// overwrites it, even when the new value is absent.
type MetaPatch struct {
	FacilityName    *string
	FacilitySet     bool
	Condition       *int
	ConditionSet    bool
	Satisfaction    *int
	SatisfactionSet bool
}

// Empty reports whether the patch carries no fields at all.
func (p MetaPatch) Empty() bool {
	return !p.FacilitySet && !p.ConditionSet && !p.SatisfactionSet
}

// Apply merges the patch over the day's current metadata.
func (p MetaPatch) Apply(current DayMeta) DayMeta {
	merged := current
	if p.FacilitySet {
		merged.FacilityName = p.FacilityName
	}
	if p.ConditionSet {
		merged.ConditionRating = p.Condition
	}
	if p.SatisfactionSet {
		merged.SatisfactionRating = p.Satisfaction
	}
	return merged
}

// dateKeyPattern mirrors the shape check the clients perform. The pattern
// alone admits dates like 2024-02-30, so ValidateDateKey also parses.
var dateKeyPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])-(0[1-9]|[12]\d|3[01])$`)

// ValidateDateKey checks that key is a canonical YYYY-MM-DD string naming a
// real calendar date.
func ValidateDateKey(key string) error {
	if !dateKeyPattern.MatchString(key) {
		return ErrInvalidDate
	}
	if _, err := time.Parse("2006-01-02", key); err != nil {
		return ErrInvalidDate
	}
	return nil
}

// RoundMinutes rounds a raw minutes value to the nearest integer and rejects
// anything that does not end up strictly positive.
func RoundMinutes(raw float64) (int, error) {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0, ErrInvalidMinutes
	}
	n := int(math.Round(raw))
	if n <= 0 {
		return 0, ErrInvalidMinutes
	}
	return n, nil
}

// CleanMinutesList rounds each value and keeps only positive finite results.
// Invalid entries are dropped silently, never rejected.
func CleanMinutesList(raw []float64) []int {
	out := make([]int, 0, len(raw))
	for _, v := range raw {
		n, err := RoundMinutes(v)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

// NormalizeRating coerces arbitrary rating input to an integer in [1,5] or
// absent. Numeric input is truncated toward zero, not rounded; anything out
// of range or non-numeric normalizes to nil rather than clamping.
func NormalizeRating(value interface{}) *int {
	var n int
	switch v := value.(type) {
	case nil:
		return nil
	case int:
		n = v
	case int64:
		n = int(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		n = int(v)
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
			return nil
		}
		n = int(parsed)
	default:
		return nil
	}
	if n < 1 || n > 5 {
		return nil
	}
	return &n
}

// NormalizeFacility maps empty or missing facility names to absent.
func NormalizeFacility(name *string) *string {
	if name == nil || *name == "" {
		return nil
	}
	return name
}
