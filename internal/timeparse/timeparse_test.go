package timeparse

import "testing"

func TestParseEpoch(t *testing.T) {
	epoch, err := Parse("1700000000")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if epoch != 1700000000 {
		t.Errorf("expected 1700000000, got %d", epoch)
	}
}

func TestParseLayouts(t *testing.T) {
	cases := []struct {
		text string
		want int64
	}{
		{"2023-11-14 22:13:20", 1700000000},
		{"2023-11-14", 1699920000},
		{"2023-11-14T22:13:20Z", 1700000000},
	}
	for _, c := range cases {
		got, err := Parse(c.text)
		if err != nil {
			t.Errorf("Parse(%q): %v", c.text, err)
			continue
		}
		if got != c.want {
			t.Errorf("Parse(%q) = %d, want %d", c.text, got, c.want)
		}
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := Parse("   "); err == nil {
		t.Error("expected error for empty timestamp")
	}
}

func TestParseUnrecognized(t *testing.T) {
	if _, err := Parse("not a date"); err == nil {
		t.Error("expected error for unrecognized format")
	}
}

func TestFormatRoundTrip(t *testing.T) {
	formatted := Format(1700000000)
	epoch, err := Parse(formatted)
	if err != nil {
		t.Fatalf("Parse(Format(...)): %v", err)
	}
	if epoch != 1700000000 {
		t.Errorf("round trip mismatch: got %d", epoch)
	}
}
