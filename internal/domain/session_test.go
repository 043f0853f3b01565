package domain

import (
	"errors"
	"testing"
)

func TestValidateDateKey(t *testing.T) {
	valid := []string{"2024-01-01", "2024-02-29", "1999-12-31", "2025-06-15"}
	for _, key := range valid {
		if err := ValidateDateKey(key); err != nil {
			t.Fatalf("expected %q to be valid, got %v", key, err)
		}
	}

	invalid := []string{
		"",
		"2024-2-1",
		"2024/02/01",
		"24-02-01",
		"2024-00-10",
		"2024-13-01",
		"2024-01-32",
		"2024-02-30", // day out of range for February
		"2023-02-29", // not a leap year
		"2024-01-01T00:00:00Z",
	}
	for _, key := range invalid {
		if err := ValidateDateKey(key); !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("expected %q to be rejected, got %v", key, err)
		}
	}
}

func TestRoundMinutes(t *testing.T) {
	cases := []struct {
		in   float64
		want int
		ok   bool
	}{
		{10, 10, true},
		{10.4, 10, true},
		{10.5, 11, true},
		{0.6, 1, true},
		{0.4, 0, false},
		{0, 0, false},
		{-5, 0, false},
	}
	for _, tc := range cases {
		got, err := RoundMinutes(tc.in)
		if tc.ok {
			if err != nil {
				t.Fatalf("RoundMinutes(%v): unexpected error %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("RoundMinutes(%v) = %d, want %d", tc.in, got, tc.want)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidMinutes) {
			t.Fatalf("RoundMinutes(%v): expected ErrInvalidMinutes, got %v", tc.in, err)
		}
	}
}

func TestCleanMinutesListDropsInvalidEntries(t *testing.T) {
	got := CleanMinutesList([]float64{10, -3, 0, 12.6, 0.2, 45})
	want := []int{10, 13, 45}
	if len(got) != len(want) {
		t.Fatalf("expected %v got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v got %v", want, got)
		}
	}
}

func TestNormalizeRating(t *testing.T) {
	cases := []struct {
		name string
		in   interface{}
		want *int
	}{
		{"in range int", 3, intPtr(3)},
		{"json number", float64(5), intPtr(5)},
		{"truncates toward zero", 4.9, intPtr(4)},
		{"too high", 6, nil},
		{"too low", 0, nil},
		{"negative", -1, nil},
		{"numeric string", "2", intPtr(2)},
		{"numeric string truncated", "3.7", intPtr(3)},
		{"non-numeric string", "abc", nil},
		{"empty string", "", nil},
		{"nil", nil, nil},
		{"bool", true, nil},
	}
	for _, tc := range cases {
		got := NormalizeRating(tc.in)
		if (got == nil) != (tc.want == nil) {
			t.Fatalf("%s: NormalizeRating(%v) = %v, want %v", tc.name, tc.in, got, tc.want)
		}
		if got != nil && *got != *tc.want {
			t.Fatalf("%s: NormalizeRating(%v) = %d, want %d", tc.name, tc.in, *got, *tc.want)
		}
	}
}

func TestMetaPatchApply(t *testing.T) {
	facility := "Forest Sauna"
	current := DayMeta{FacilityName: &facility, ConditionRating: intPtr(4)}

	// empty patch inherits everything
	merged := MetaPatch{}.Apply(current)
	if merged.FacilityName == nil || *merged.FacilityName != facility {
		t.Fatalf("empty patch should inherit facility, got %v", merged.FacilityName)
	}
	if merged.ConditionRating == nil || *merged.ConditionRating != 4 {
		t.Fatalf("empty patch should inherit condition, got %v", merged.ConditionRating)
	}

	// a set field overwrites, even to absent
	merged = MetaPatch{FacilitySet: true, FacilityName: nil}.Apply(current)
	if merged.FacilityName != nil {
		t.Fatalf("set nil facility should clear, got %v", *merged.FacilityName)
	}
	if merged.ConditionRating == nil {
		t.Fatal("unset condition should survive")
	}

	merged = MetaPatch{SatisfactionSet: true, Satisfaction: intPtr(5)}.Apply(current)
	if merged.SatisfactionRating == nil || *merged.SatisfactionRating != 5 {
		t.Fatalf("set satisfaction should overwrite, got %v", merged.SatisfactionRating)
	}
}

func intPtr(v int) *int { return &v }
