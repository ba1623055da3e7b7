package payout

import (
	"testing"
	"time"
)

func mustLocation(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Africa/Accra")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func TestNextCutoffBeforeFirstWindow(t *testing.T) {
	loc := mustLocation(t)
	now := time.Date(2025, 3, 10, 6, 30, 0, 0, loc)

	got := NextCutoff(now, loc, []int{8, 16})
	want := time.Date(2025, 3, 10, 8, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("NextCutoff = %v, want %v", got, want)
	}
}

func TestNextCutoffBetweenWindows(t *testing.T) {
	loc := mustLocation(t)
	now := time.Date(2025, 3, 10, 11, 0, 0, 0, loc)

	got := NextCutoff(now, loc, []int{8, 16})
	want := time.Date(2025, 3, 10, 16, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("NextCutoff = %v, want %v", got, want)
	}
}

func TestNextCutoffAfterLastWindowRollsOver(t *testing.T) {
	loc := mustLocation(t)
	now := time.Date(2025, 3, 10, 19, 45, 0, 0, loc)

	got := NextCutoff(now, loc, []int{8, 16})
	want := time.Date(2025, 3, 11, 8, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("NextCutoff = %v, want %v", got, want)
	}
}

func TestNextCutoffIsStrictlyAfterNow(t *testing.T) {
	loc := mustLocation(t)
	// a request landing exactly at the cutoff belongs to the next window
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, loc)

	got := NextCutoff(now, loc, []int{8, 16})
	want := time.Date(2025, 3, 10, 16, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("NextCutoff = %v, want %v", got, want)
	}
}

func TestNextCutoffUnsortedHours(t *testing.T) {
	loc := mustLocation(t)
	now := time.Date(2025, 3, 10, 6, 0, 0, 0, loc)

	got := NextCutoff(now, loc, []int{16, 8})
	want := time.Date(2025, 3, 10, 8, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("NextCutoff = %v, want %v", got, want)
	}
}

func TestBatchIDRoundTrips(t *testing.T) {
	loc := mustLocation(t)
	cutoff := time.Date(2025, 3, 10, 16, 0, 0, 0, loc)

	id := BatchID(cutoff)
	parsed, err := time.Parse(time.RFC3339, id)
	if err != nil {
		t.Fatalf("batch id %q is not RFC3339: %v", id, err)
	}
	if !parsed.Equal(cutoff) {
		t.Fatalf("parsed batch id = %v, want %v", parsed, cutoff)
	}
}
