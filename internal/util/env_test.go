package util

import (
	"testing"
	"time"
)

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"on", false, true},
		{"false", true, false},
		{"0", true, false},
		{"off", true, false},
		{"", true, true},
		{"garbage", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("TEST_BOOL", tt.value)
			if got := ParseBoolEnv("TEST_BOOL", tt.def); got != tt.want {
				t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.want)
			}
		})
	}
}

func TestParseDurationEnv(t *testing.T) {
	t.Setenv("TEST_DUR", "90s")
	if got := ParseDurationEnv("TEST_DUR", time.Minute); got != 90*time.Second {
		t.Errorf("got %v", got)
	}
	t.Setenv("TEST_DUR", "not-a-duration")
	if got := ParseDurationEnv("TEST_DUR", time.Minute); got != time.Minute {
		t.Errorf("invalid value did not fall back: %v", got)
	}
	t.Setenv("TEST_DUR", "")
	if got := ParseDurationEnv("TEST_DUR", time.Hour); got != time.Hour {
		t.Errorf("empty value did not fall back: %v", got)
	}
}

func TestParseIntEnv(t *testing.T) {
	t.Setenv("TEST_INT", "7")
	if got := ParseIntEnv("TEST_INT", 3); got != 7 {
		t.Errorf("got %d", got)
	}
	t.Setenv("TEST_INT", "seven")
	if got := ParseIntEnv("TEST_INT", 3); got != 3 {
		t.Errorf("invalid value did not fall back: %d", got)
	}
}
