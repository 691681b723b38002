package prefetch

import (
	"testing"
	"time"
)

func at(hour int) time.Time {
	return time.Date(2026, 3, 10, hour, 30, 0, 0, time.UTC)
}

func TestInQuietHoursWrapsMidnight(t *testing.T) {
	tests := []struct {
		hour int
		want bool
	}{
		{21, false},
		{22, true},
		{23, true},
		{0, true},
		{3, true},
		{5, true},
		{6, false},
		{12, false},
	}

	for _, tt := range tests {
		if got := InQuietHours(at(tt.hour), 22, 6); got != tt.want {
			t.Errorf("InQuietHours(%02d:30, 22, 6) = %t, want %t", tt.hour, got, tt.want)
		}
	}
}

func TestInQuietHoursSameDayWindow(t *testing.T) {
	if !InQuietHours(at(14), 13, 17) {
		t.Error("14:30 should be inside 13-17")
	}
	if InQuietHours(at(17), 13, 17) {
		t.Error("17:30 should be outside 13-17, end is exclusive")
	}
	if InQuietHours(at(9), 13, 17) {
		t.Error("09:30 should be outside 13-17")
	}
}

func TestInQuietHoursDisabledWhenEqual(t *testing.T) {
	for hour := 0; hour < 24; hour++ {
		if InQuietHours(at(hour), 0, 0) {
			t.Fatalf("equal start and end should disable quiet hours, fired at %02d:30", hour)
		}
	}
}
