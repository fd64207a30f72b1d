package dateutil

import (
	"testing"
	"time"
)

func TestDate(t *testing.T) {
	input := time.Date(2025, 1, 15, 23, 30, 45, 123456789, time.FixedZone("MSK", 3*60*60))
	expected := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	result := Date(input)

	if !result.Equal(expected) {
		t.Errorf("Date(%v) = %v, want %v", input, result, expected)
	}
	if result.Location() != time.UTC {
		t.Errorf("Date(%v) location = %v, want UTC", input, result.Location())
	}
}

func TestAddDays_CrossesMonth(t *testing.T) {
	result := AddDays(NewDate(2018, time.August, 31), 3)
	expected := NewDate(2018, time.September, 3)

	if !result.Equal(expected) {
		t.Errorf("AddDays() = %v, want %v", result, expected)
	}
}

func TestISOWeekday(t *testing.T) {
	tests := []struct {
		name  string
		input time.Time
		want  int
	}{
		{"Monday", NewDate(2025, 1, 13), 1},
		{"Friday", NewDate(2025, 1, 17), 5},
		{"Saturday", NewDate(2025, 1, 18), 6},
		{"Sunday", NewDate(2025, 1, 19), 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ISOWeekday(tt.input); got != tt.want {
				t.Errorf("ISOWeekday(%v) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsWeekend(t *testing.T) {
	tests := []struct {
		name  string
		input time.Time
		want  bool
	}{
		{"Friday", NewDate(2025, 1, 17), false},
		{"Saturday", NewDate(2025, 1, 18), true},
		{"Sunday", NewDate(2025, 1, 19), true},
		{"Monday", NewDate(2025, 1, 20), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsWeekend(tt.input); got != tt.want {
				t.Errorf("IsWeekend(%v) = %v, want %v", tt.input.Format("Mon"), got, tt.want)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{"ISO date", "2018-08-29", NewDate(2018, 8, 29), false},
		{"Dotted date", "29.08.2018", NewDate(2018, 8, 29), false},
		{"Timestamp", "2018-08-29T15:04:05Z", NewDate(2018, 8, 29), false},
		{"Garbage", "not a date", time.Time{}, true},
		{"Empty", "", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.input)

			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDate(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseExpression(t *testing.T) {
	// Wednesday
	now := time.Date(2018, 8, 29, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{"today", "today", NewDate(2018, 8, 29), false},
		{"tomorrow", "Tomorrow", NewDate(2018, 8, 30), false},
		{"yesterday", "yesterday", NewDate(2018, 8, 28), false},
		{"bare weekday later this week", "friday", NewDate(2018, 8, 31), false},
		{"bare weekday matching today", "wednesday", NewDate(2018, 8, 29), false},
		{"next weekday matching today", "next wednesday", NewDate(2018, 9, 5), false},
		{"abbreviated weekday", "mon", NewDate(2018, 9, 3), false},
		{"ISO date", "2018-09-14", NewDate(2018, 9, 14), false},
		{"month and day", "september 3", NewDate(2018, 9, 3), false},
		{"short month, day and year", "Jan 22 2019", NewDate(2019, 1, 22), false},
		{"slash form", "9/17", NewDate(2018, 9, 17), false},
		{"unknown", "the day after never", time.Time{}, true},
		{"empty", "   ", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseExpression(tt.input, now)

			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseExpression(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("ParseExpression(%q) = %v, want %v",
					tt.input, got.Format("2006-01-02 Mon"), tt.want.Format("2006-01-02 Mon"))
			}
		})
	}
}
