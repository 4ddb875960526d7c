// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routing

import (
	"time"

	"github.com/AleutianAI/AleutianTriage/services/triage/datatypes"
	"github.com/AleutianAI/AleutianTriage/services/triage/tagging"
)

const (
	// DefaultBaseSLAMinutes applies when neither the taxonomy nor the
	// team defines a base SLA.
	DefaultBaseSLAMinutes = 60.0

	// MinSLAMinutes floors the adjusted SLA so multipliers can never
	// produce an unactionable deadline.
	MinSLAMinutes = 5.0
)

// priorityMultiplier tightens or relaxes the SLA per priority.
func priorityMultiplier(p datatypes.Priority) float64 {
	switch p {
	case datatypes.PriorityCritical:
		return 0.4
	case datatypes.PriorityHigh:
		return 0.6
	case datatypes.PriorityLow:
		return 1.5
	default:
		return 1.0
	}
}

// AdjustedSLAMinutes computes the response deadline in minutes:
//
//	base * priority * window * load, floored at MinSLAMinutes
//
// where window is 1.0 inside business hours and 1.5 outside, and load
// is 1.0 plus the team's utilization excess over 0.8.
func AdjustedSLAMinutes(base float64, p datatypes.Priority, at time.Time, cal *tagging.Calendar, utilization float64) float64 {
	if base <= 0 {
		base = DefaultBaseSLAMinutes
	}
	adjusted := base * priorityMultiplier(p)

	if cal == nil {
		cal = tagging.NewCalendar(nil)
	}
	if !cal.InBusinessHours(at) {
		adjusted *= 1.5
	}

	if excess := utilization - 0.8; excess > 0 {
		adjusted *= 1.0 + excess
	}

	if adjusted < MinSLAMinutes {
		adjusted = MinSLAMinutes
	}
	return adjusted
}
