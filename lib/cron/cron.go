// Copyright 2026 The Burrow Authors
// SPDX-License-Identifier: Apache-2.0

// Package cron parses standard 5-field cron expressions and computes
// the next occurrence of a schedule in a given timezone. It supports
// wildcards, values, lists, ranges, and steps (*, V, V,V, V-V, */N,
// V-V/N) — the subset the task scheduler accepts for scheduled task
// definitions.
package cron

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Schedule is a parsed cron expression. Use Parse to create one, then
// Next to compute the next matching time.
type Schedule struct {
	minutes     fieldSet
	hours       fieldSet
	daysOfMonth fieldSet
	months      fieldSet
	daysOfWeek  fieldSet
}

// fieldSet uses a uint64 as a compact set of integers 0-63, enough for
// every cron field domain.
type fieldSet uint64

func (f fieldSet) has(value int) bool { return f&(1<<uint(value)) != 0 }
func (f *fieldSet) add(value int)     { *f |= 1 << uint(value) }

// Parse parses a 5-field cron expression (minute, hour, day-of-month,
// month, day-of-week). Returns an error if the expression is malformed
// or contains out-of-range values.
func Parse(expression string) (Schedule, error) {
	fields := strings.Fields(expression)
	if len(fields) != 5 {
		return Schedule{}, fmt.Errorf("cron: expected 5 fields, got %d", len(fields))
	}

	minutes, err := parseField(fields[0], 0, 59)
	if err != nil {
		return Schedule{}, fmt.Errorf("cron: minute field: %w", err)
	}
	hours, err := parseField(fields[1], 0, 23)
	if err != nil {
		return Schedule{}, fmt.Errorf("cron: hour field: %w", err)
	}
	daysOfMonth, err := parseField(fields[2], 1, 31)
	if err != nil {
		return Schedule{}, fmt.Errorf("cron: day-of-month field: %w", err)
	}
	months, err := parseField(fields[3], 1, 12)
	if err != nil {
		return Schedule{}, fmt.Errorf("cron: month field: %w", err)
	}
	daysOfWeek, err := parseField(fields[4], 0, 6)
	if err != nil {
		return Schedule{}, fmt.Errorf("cron: day-of-week field: %w", err)
	}

	return Schedule{
		minutes:     minutes,
		hours:       hours,
		daysOfMonth: daysOfMonth,
		months:      months,
		daysOfWeek:  daysOfWeek,
	}, nil
}

// Next returns the earliest time strictly after t that matches the
// schedule, evaluated in the given location. A nil location means UTC.
//
// Returns an error if no matching time exists within 4 years of t,
// which prevents infinite loops on impossible schedules like Feb 31.
func (s Schedule) Next(t time.Time, location *time.Location) (time.Time, error) {
	if location == nil {
		location = time.UTC
	}

	// Start from the next whole minute after t, in the schedule's
	// location.
	t = t.In(location).Truncate(time.Minute).Add(time.Minute)

	// 4 years covers the full leap cycle.
	limit := t.AddDate(4, 0, 0)

	for t.Before(limit) {
		if !s.months.has(int(t.Month())) {
			t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, location)
			continue
		}

		// Day matching: wildcard fields produce full bitsets, so
		// checking both fields with AND gives standard behavior for
		// the common case of at most one restricted day field.
		if !s.daysOfMonth.has(t.Day()) || !s.daysOfWeek.has(int(t.Weekday())) {
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, location)
			continue
		}

		if !s.hours.has(t.Hour()) {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, location)
			continue
		}

		if !s.minutes.has(t.Minute()) {
			t = t.Add(time.Minute)
			continue
		}

		return t, nil
	}

	return time.Time{}, fmt.Errorf("cron: no matching time within 4 years of %s", t.Format(time.RFC3339))
}

// parseField parses one cron field into a fieldSet. A field is a
// comma-separated list of terms.
func parseField(field string, minimum, maximum int) (fieldSet, error) {
	var result fieldSet
	for _, term := range strings.Split(field, ",") {
		bits, err := parseTerm(term, minimum, maximum)
		if err != nil {
			return 0, err
		}
		result |= bits
	}
	if result == 0 {
		return 0, fmt.Errorf("field %q produces empty set", field)
	}
	return result, nil
}

// parseTerm parses a single term: *, */N, V, V-V, or V-V/N.
func parseTerm(term string, minimum, maximum int) (fieldSet, error) {
	parts := strings.SplitN(term, "/", 2)
	rangeExpression := parts[0]
	step := 1
	if len(parts) == 2 {
		parsed, err := strconv.Atoi(parts[1])
		if err != nil {
			return 0, fmt.Errorf("invalid step %q: %w", parts[1], err)
		}
		if parsed <= 0 {
			return 0, fmt.Errorf("step must be positive, got %d", parsed)
		}
		step = parsed
	}

	var rangeStart, rangeEnd int
	switch {
	case rangeExpression == "*":
		rangeStart, rangeEnd = minimum, maximum
	case strings.ContainsRune(rangeExpression, '-'):
		dashIndex := strings.IndexByte(rangeExpression, '-')
		var err error
		rangeStart, err = strconv.Atoi(rangeExpression[:dashIndex])
		if err != nil {
			return 0, fmt.Errorf("invalid range start %q: %w", rangeExpression[:dashIndex], err)
		}
		rangeEnd, err = strconv.Atoi(rangeExpression[dashIndex+1:])
		if err != nil {
			return 0, fmt.Errorf("invalid range end %q: %w", rangeExpression[dashIndex+1:], err)
		}
		if rangeStart > rangeEnd {
			return 0, fmt.Errorf("range start %d > end %d", rangeStart, rangeEnd)
		}
	default:
		value, err := strconv.Atoi(rangeExpression)
		if err != nil {
			return 0, fmt.Errorf("invalid value %q: %w", rangeExpression, err)
		}
		rangeStart, rangeEnd = value, value
	}

	if rangeStart < minimum || rangeEnd > maximum {
		return 0, fmt.Errorf("value out of range [%d-%d]: got %d-%d", minimum, maximum, rangeStart, rangeEnd)
	}

	var result fieldSet
	for value := rangeStart; value <= rangeEnd; value += step {
		result.add(value)
	}
	return result, nil
}
