package api

import (
	"encoding/json"

	"example.com/saunalog/internal/domain"
)

// AppendSessionRequest is the payload for POST /v1/days/{date}/sessions.
type AppendSessionRequest struct {
	Minutes float64      `json:"minutes"`
	Meta    *MetaPayload `json:"meta"`
}

// MetaPayload distinguishes metadata fields that were present in the request
// body from fields that were omitted: omitted fields inherit the day's
// current value, present fields overwrite it even when null.
type MetaPayload struct {
	facilityName    *string
	facilitySet     bool
	condition       interface{}
	conditionSet    bool
	satisfaction    interface{}
	satisfactionSet bool
}

// UnmarshalJSON records which keys were present alongside their values.
func (m *MetaPayload) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["facility_name"]; ok {
		m.facilitySet = true
		var value interface{}
		if err := json.Unmarshal(v, &value); err != nil {
			return err
		}
		if s, ok := value.(string); ok {
			m.facilityName = &s
		}
	}
	if v, ok := raw["condition_rating"]; ok {
		m.conditionSet = true
		if err := json.Unmarshal(v, &m.condition); err != nil {
			return err
		}
	}
	if v, ok := raw["satisfaction_rating"]; ok {
		m.satisfactionSet = true
		if err := json.Unmarshal(v, &m.satisfaction); err != nil {
			return err
		}
	}
	return nil
}

// Patch converts the payload to a domain patch, normalizing ratings and the
// facility name. A nil payload yields an empty patch.
func (m *MetaPayload) Patch() domain.MetaPatch {
	if m == nil {
		return domain.MetaPatch{}
	}
	patch := domain.MetaPatch{
		FacilitySet:     m.facilitySet,
		ConditionSet:    m.conditionSet,
		SatisfactionSet: m.satisfactionSet,
	}
	if m.facilitySet {
		patch.FacilityName = domain.NormalizeFacility(m.facilityName)
	}
	if m.conditionSet {
		patch.Condition = domain.NormalizeRating(m.condition)
	}
	if m.satisfactionSet {
		patch.Satisfaction = domain.NormalizeRating(m.satisfaction)
	}
	return patch
}

// AppendSessionResponse describes the response body for append.
type AppendSessionResponse struct {
	Date  string `json:"date"`
	Order int    `json:"order"`
}

// ReplaceSessionsRequest is the payload for PUT /v1/days/{date}/sessions.
type ReplaceSessionsRequest struct {
	Sessions []float64 `json:"sessions"`
}

// SessionListResponse packages a day's minute values in session order.
type SessionListResponse struct {
	Date     string `json:"date"`
	Sessions []int  `json:"sessions"`
}

// SetDayMetaRequest is the payload for PUT /v1/days/{date}/meta. Rating
// fields accept arbitrary JSON and normalize out-of-range or non-numeric
// input to absent.
type SetDayMetaRequest struct {
	FacilityName       *string     `json:"facility_name"`
	ConditionRating    interface{} `json:"condition_rating"`
	SatisfactionRating interface{} `json:"satisfaction_rating"`
}

// MetaView exposes the day metadata triple. Absent fields render as null.
type MetaView struct {
	FacilityName       *string `json:"facility_name"`
	ConditionRating    *int    `json:"condition_rating"`
	SatisfactionRating *int    `json:"satisfaction_rating"`
}

// DayListResponse packages the dates that have at least one session.
type DayListResponse struct {
	Items []string `json:"items"`
}

// AverageResponse carries the overall per-session average.
type AverageResponse struct {
	AverageMinutes float64 `json:"average_minutes"`
}

// FacilityListResponse packages distinct facility names.
type FacilityListResponse struct {
	Items []string `json:"items"`
}

func toMetaView(meta domain.DayMeta) MetaView {
	return MetaView{
		FacilityName:       meta.FacilityName,
		ConditionRating:    meta.ConditionRating,
		SatisfactionRating: meta.SatisfactionRating,
	}
}
