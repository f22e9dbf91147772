// Copyright 2026 The Burrow Authors
// SPDX-License-Identifier: Apache-2.0

package cron

import (
	"strings"
	"testing"
	"time"
)

func mustParse(t *testing.T, expression string) Schedule {
	t.Helper()
	schedule, err := Parse(expression)
	if err != nil {
		t.Fatalf("Parse(%q): %v", expression, err)
	}
	return schedule
}

func mustNext(t *testing.T, schedule Schedule, after time.Time, location *time.Location) time.Time {
	t.Helper()
	next, err := schedule.Next(after, location)
	if err != nil {
		t.Fatalf("Next(%v): %v", after, err)
	}
	return next
}

func utc(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

func TestParseValid(t *testing.T) {
	expressions := []string{
		"* * * * *",
		"0 9 * * *",
		"*/15 0-6 1,15 * 1-5",
		"30 3 * * 0",
		"0 0 1 1 *",
		"5,10,15 * * * *",
		"0-30/5 * * * *",
	}
	for _, expression := range expressions {
		t.Run(expression, func(t *testing.T) {
			if _, err := Parse(expression); err != nil {
				t.Errorf("Parse(%q) = %v, want nil", expression, err)
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		wantErr    string
	}{
		{"too_few_fields", "* * * *", "expected 5 fields"},
		{"too_many_fields", "* * * * * *", "expected 5 fields"},
		{"empty", "", "expected 5 fields"},
		{"minute_out_of_range", "60 * * * *", "out of range"},
		{"hour_out_of_range", "* 24 * * *", "out of range"},
		{"day_zero", "* * 0 * *", "out of range"},
		{"month_out_of_range", "* * * 13 *", "out of range"},
		{"dow_out_of_range", "* * * * 7", "out of range"},
		{"zero_step", "*/0 * * * *", "step must be positive"},
		{"reversed_range", "5-3 * * * *", "range start 5 > end 3"},
		{"non_numeric", "abc * * * *", "invalid value"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Parse(test.expression)
			if err == nil {
				t.Fatalf("Parse(%q) = nil, want error containing %q", test.expression, test.wantErr)
			}
			if !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("Parse(%q) = %q, want error containing %q", test.expression, err, test.wantErr)
			}
		})
	}
}

func TestNextDaily(t *testing.T) {
	schedule := mustParse(t, "0 9 * * *")

	// Ran yesterday at 09:00; next run is today at 09:00, and the
	// run after that is tomorrow at 09:00.
	yesterday := utc(2026, time.March, 1, 9, 0)
	next := mustNext(t, schedule, yesterday, time.UTC)
	if want := utc(2026, time.March, 2, 9, 0); !next.Equal(want) {
		t.Errorf("Next = %v, want %v", next, want)
	}
	following := mustNext(t, schedule, next, time.UTC)
	if want := utc(2026, time.March, 3, 9, 0); !following.Equal(want) {
		t.Errorf("Next = %v, want %v", following, want)
	}
}

func TestNextStrictlyAfter(t *testing.T) {
	schedule := mustParse(t, "0 9 * * *")
	exactly := utc(2026, time.March, 2, 9, 0)
	next := mustNext(t, schedule, exactly, time.UTC)
	if want := utc(2026, time.March, 3, 9, 0); !next.Equal(want) {
		t.Errorf("Next at exact match = %v, want %v (strictly after)", next, want)
	}
}

func TestNextInTimezone(t *testing.T) {
	location, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("timezone database unavailable: %v", err)
	}

	schedule := mustParse(t, "0 9 * * *")
	lastRun := time.Date(2026, time.March, 1, 9, 0, 0, 0, location)
	next := mustNext(t, schedule, lastRun, location)

	want := time.Date(2026, time.March, 2, 9, 0, 0, 0, location)
	if !next.Equal(want) {
		t.Errorf("Next = %v, want %v", next, want)
	}
	if next.Hour() != 9 {
		t.Errorf("Next fires at local hour %d, want 9", next.Hour())
	}
}

func TestNextAcrossDSTTransition(t *testing.T) {
	location, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("timezone database unavailable: %v", err)
	}

	// DST starts 2026-03-08 in the US. The 09:00 local schedule must
	// still fire at 09:00 local on both sides of the transition.
	schedule := mustParse(t, "0 9 * * *")
	before := time.Date(2026, time.March, 7, 9, 0, 0, 0, location)
	next := mustNext(t, schedule, before, location)
	if next.Hour() != 9 || next.Day() != 8 {
		t.Errorf("Next across DST = %v, want March 8 09:00 local", next)
	}
}

func TestNextWeekday(t *testing.T) {
	// 2026-03-01 is a Sunday. "30 8 * * 1-5" should fire Monday 08:30.
	schedule := mustParse(t, "30 8 * * 1-5")
	next := mustNext(t, schedule, utc(2026, time.March, 1, 0, 0), time.UTC)
	if want := utc(2026, time.March, 2, 8, 30); !next.Equal(want) {
		t.Errorf("Next = %v, want %v", next, want)
	}
}

func TestNextStepMinutes(t *testing.T) {
	schedule := mustParse(t, "*/15 * * * *")
	next := mustNext(t, schedule, utc(2026, time.March, 1, 10, 7), time.UTC)
	if want := utc(2026, time.March, 1, 10, 15); !next.Equal(want) {
		t.Errorf("Next = %v, want %v", next, want)
	}
}

func TestNextImpossibleSchedule(t *testing.T) {
	schedule := mustParse(t, "0 0 31 2 *")
	if _, err := schedule.Next(utc(2026, time.January, 1, 0, 0), time.UTC); err == nil {
		t.Fatal("Next for Feb 31 = nil error, want search-limit error")
	}
}

func TestNextNilLocationIsUTC(t *testing.T) {
	schedule := mustParse(t, "0 9 * * *")
	next := mustNext(t, schedule, utc(2026, time.March, 1, 10, 0), nil)
	if want := utc(2026, time.March, 2, 9, 0); !next.Equal(want) {
		t.Errorf("Next = %v, want %v", next, want)
	}
}
