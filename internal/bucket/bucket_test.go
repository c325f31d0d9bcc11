package bucket

import (
	"errors"
	"math"
	"testing"

	"github.com/nuuskamummu/sqlite3-partitioner/internal/vterrors"
)

func TestParseInterval(t *testing.T) {
	cases := []struct {
		text       string
		wantCount  uint32
		wantUnit   Unit
		wantSecond int64
	}{
		{"1 hour", 1, Hour, 3600},
		{"24 hours", 24, Hour, 86400},
		{"1 day", 1, Day, 86400},
		{"7 days", 7, Day, 7 * 86400},
		{"  3   HOUR  ", 3, Hour, 3 * 3600},
	}

	for _, tc := range cases {
		iv, err := ParseInterval(tc.text)
		if err != nil {
			t.Fatalf("ParseInterval(%q): unexpected error: %v", tc.text, err)
		}
		if iv.Count != tc.wantCount || iv.Unit != tc.wantUnit || iv.Seconds != tc.wantSecond {
			t.Errorf("ParseInterval(%q) = %+v, want count=%d unit=%v seconds=%d", tc.text, iv, tc.wantCount, tc.wantUnit, tc.wantSecond)
		}
	}
}

func TestParseIntervalRejectsInvalid(t *testing.T) {
	cases := []string{"", "1", "hour", "0 hour", "-1 hour", "1 week", "1hour"}
	for _, text := range cases {
		if _, err := ParseInterval(text); !errors.Is(err, vterrors.ErrInvalidInterval) {
			t.Errorf("ParseInterval(%q): expected ErrInvalidInterval, got %v", text, err)
		}
	}
}

func TestBucketize(t *testing.T) {
	iv := Interval{Seconds: 3600}

	cases := []struct {
		ts   int64
		want int64
	}{
		{0, 0},
		{3599, 0},
		{3600, 3600},
		{3601, 3600},
		{-1, -3600},
		{-3600, -3600},
		{-3601, -7200},
	}

	for _, tc := range cases {
		if got := Bucketize(tc.ts, iv); got != tc.want {
			t.Errorf("Bucketize(%d, 1h) = %d, want %d", tc.ts, got, tc.want)
		}
	}
}

func TestNextBucket(t *testing.T) {
	iv := Interval{Seconds: 3600}
	if got := NextBucket(0, iv); got != 3600 {
		t.Errorf("NextBucket(0) = %d, want 3600", got)
	}
	if got := NextBucket(math.MaxInt64-10, iv); got != math.MaxInt64 {
		t.Errorf("NextBucket saturation = %d, want MaxInt64", got)
	}
}

func TestNextBucketChecked(t *testing.T) {
	iv := Interval{Seconds: 3600}
	if _, err := NextBucketChecked(math.MaxInt64-10, iv); !errors.Is(err, vterrors.ErrTimestampOutOfRange) {
		t.Errorf("expected ErrTimestampOutOfRange on overflow, got %v", err)
	}
	got, err := NextBucketChecked(0, iv)
	if err != nil || got != 3600 {
		t.Errorf("NextBucketChecked(0) = (%d, %v), want (3600, nil)", got, err)
	}
}

func TestFromSeconds(t *testing.T) {
	if iv := FromSeconds(86400); iv.Unit != Day || iv.Count != 1 {
		t.Errorf("FromSeconds(86400) = %+v, want 1 day", iv)
	}
	if iv := FromSeconds(3600); iv.Unit != Hour || iv.Count != 1 {
		t.Errorf("FromSeconds(3600) = %+v, want 1 hour", iv)
	}
	if iv := FromSeconds(7200); iv.Unit != Hour || iv.Count != 2 {
		t.Errorf("FromSeconds(7200) = %+v, want 2 hour", iv)
	}
}
