package parser

import (
	"errors"
	"testing"
	"time"

	"toursync/internal/model"
)

func TestParseTimeMillis(t *testing.T) {
	noon := time.Date(2013, 5, 27, 12, 0, 0, 0, time.UTC).UnixMilli()

	tests := []struct {
		in   string
		want int64
	}{
		{"2013-05-27T12:00:00Z", noon},
		{"2013-05-27T12:00:00.500Z", noon + 500},
		{"2013-05-27T12:00:00+00:00", noon},
		{"2013-05-27T14:00:00+0200", noon},
		{"2013-05-27T12:00:00", noon},
		{"  2013-05-27T12:00:00Z  ", noon},
	}

	for _, tt := range tests {
		got, err := parseTimeMillis(tt.in)
		if err != nil {
			t.Errorf("parseTimeMillis(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseTimeMillis(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseTimeMillisInvalid(t *testing.T) {
	for _, in := range []string{"", "yesterday", "27.05.2013 12:00", "1369656000"} {
		got, err := parseTimeMillis(in)
		if !errors.Is(err, ErrInvalidStartTime) {
			t.Errorf("parseTimeMillis(%q) err = %v, want ErrInvalidStartTime", in, err)
		}
		if got != model.NoTime {
			t.Errorf("parseTimeMillis(%q) = %d, want NoTime", in, got)
		}
	}
}

func TestParseFloat(t *testing.T) {
	if got := parseFloat(" 47.5 "); got != 47.5 {
		t.Errorf("parseFloat = %v, want 47.5", got)
	}
	if got := parseFloat("n/a"); model.IsSet(got) {
		t.Errorf("parseFloat(n/a) = %v, want unset", got)
	}
}
