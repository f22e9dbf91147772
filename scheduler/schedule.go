// Copyright 2026 The Burrow Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"fmt"
	"strconv"
	"time"

	"github.com/burrow-systems/burrow/lib/cron"
	"github.com/burrow-systems/burrow/lib/schema"
)

// nextRun computes a task's next run time strictly after from.
//
//   - cron: the next matching time in location.
//   - interval: from plus the schedule's millisecond offset, so a slow
//     run pushes the next one out rather than stacking.
//   - once: the scheduled RFC 3339 time on initial computation; nil
//     after the task has run.
func nextRun(kind schema.ScheduleKind, schedule string, from time.Time, location *time.Location, hasRun bool) (*time.Time, error) {
	switch kind {
	case schema.ScheduleCron:
		expression, err := cron.Parse(schedule)
		if err != nil {
			return nil, fmt.Errorf("cron schedule %q: %w", schedule, err)
		}
		next, err := expression.Next(from, location)
		if err != nil {
			return nil, fmt.Errorf("cron schedule %q: %w", schedule, err)
		}
		return &next, nil

	case schema.ScheduleInterval:
		millis, err := strconv.ParseInt(schedule, 10, 64)
		if err != nil || millis <= 0 {
			return nil, fmt.Errorf("interval schedule %q: must be a positive millisecond count", schedule)
		}
		next := from.Add(time.Duration(millis) * time.Millisecond)
		return &next, nil

	case schema.ScheduleOnce:
		if hasRun {
			return nil, nil
		}
		at, err := time.Parse(time.RFC3339, schedule)
		if err != nil {
			return nil, fmt.Errorf("once schedule %q: %w", schedule, err)
		}
		return &at, nil
	}
	return nil, fmt.Errorf("unknown schedule kind %q", kind)
}
