package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalizeLimit(t *testing.T) {
	cases := map[int]int{
		-1:  DefaultLimit,
		0:   DefaultLimit,
		10:  10,
		100: 100,
		500: MaxLimit,
	}
	for input, want := range cases {
		if got := NormalizeLimit(input); got != want {
			t.Fatalf("NormalizeLimit(%d) = %d, want %d", input, got, want)
		}
	}
}

func TestLimitWithBuffer(t *testing.T) {
	if got := LimitWithBuffer(10); got != 11 {
		t.Fatalf("LimitWithBuffer(10) = %d, want 11", got)
	}
	if got := LimitWithBuffer(0); got != DefaultLimit+1 {
		t.Fatalf("LimitWithBuffer(0) = %d, want %d", got, DefaultLimit+1)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	original := Cursor{
		CreatedAt: time.Date(2026, 9, 1, 10, 30, 0, 123456789, time.UTC),
		ID:        uuid.New(),
	}

	parsed, err := ParseCursor(EncodeCursor(original))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !parsed.CreatedAt.Equal(original.CreatedAt) {
		t.Fatalf("timestamp drift: %s != %s", parsed.CreatedAt, original.CreatedAt)
	}
	if parsed.ID != original.ID {
		t.Fatalf("id drift: %s != %s", parsed.ID, original.ID)
	}
}

func TestParseCursorEmpty(t *testing.T) {
	cursor, err := ParseCursor("  ")
	if err != nil {
		t.Fatalf("blank cursor: %v", err)
	}
	if cursor != nil {
		t.Fatalf("expected nil cursor for blank input")
	}
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	for _, input := range []string{"not-base64!!", "bm8tc2VwYXJhdG9y", "MjAyNi0wMS0wMXxub3QtYS11dWlk"} {
		if _, err := ParseCursor(input); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}
