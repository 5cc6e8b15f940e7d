// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"sort"
	"time"
)

// Segment is a maximal interval during which the derived status was
// constant.
type Segment struct {
	Status Status    `json:"status"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

// Duration is End minus Start.
func (s Segment) Duration() time.Duration { return s.End.Sub(s.Start) }

// Transition marks a change of derived status.
type Transition struct {
	At   time.Time `json:"at"`
	From Status    `json:"from"`
	To   Status    `json:"to"`
}

// Report summarizes one employee over a window.
type Report struct {
	EmployeeID  string        `json:"employee_id"`
	From        time.Time     `json:"from"`
	To          time.Time     `json:"to"`
	Present     time.Duration `json:"present"`
	Away        time.Duration `json:"away"`
	Offline     time.Duration `json:"offline"`
	Segments    []Segment     `json:"segments"`
	Transitions []Transition  `json:"transitions"`
}

// Timeline replays Derive continuously over [from, to) and returns
// the resulting segments in order. Events received after to are
// ignored. To get a correct status at from, pass events reaching back
// at least OfflineTimeout before it.
func (p Policy) Timeline(events []Event, from, to time.Time) []Segment {
	if !to.After(from) {
		return nil
	}

	sorted := make([]Event, 0, len(events))
	for _, event := range events {
		if !event.ReceivedAt.After(to) {
			sorted = append(sorted, event)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[j].Newer(sorted[i])
	})

	var segments []Segment
	add := func(status Status, start, end time.Time) {
		if start.Before(from) {
			start = from
		}
		if end.After(to) {
			end = to
		}
		if !end.After(start) {
			return
		}
		if count := len(segments); count > 0 {
			last := &segments[count-1]
			if last.Status == status && last.End.Equal(start) {
				last.End = end
				return
			}
		}
		segments = append(segments, Segment{Status: status, Start: start, End: end})
	}

	if len(sorted) == 0 {
		add(StatusOffline, from, to)
		return segments
	}
	add(StatusOffline, from, sorted[0].ReceivedAt)

	for index, event := range sorted {
		start := event.ReceivedAt
		end := to
		if index+1 < len(sorted) {
			end = sorted[index+1].ReceivedAt
		}
		awayAt := start.Add(p.AwayTimeout)
		offlineAt := start.Add(p.OfflineTimeout)

		if event.Status == ReportPresent {
			add(StatusPresent, start, earliest(awayAt, end))
			add(StatusAway, awayAt, earliest(offlineAt, end))
		} else {
			add(StatusAway, start, earliest(offlineAt, end))
		}
		add(StatusOffline, offlineAt, end)
	}
	return segments
}

// BuildReport runs Timeline and totals it.
func (p Policy) BuildReport(employeeID string, events []Event, from, to time.Time) Report {
	report := Report{
		EmployeeID:  employeeID,
		From:        from,
		To:          to,
		Segments:    p.Timeline(events, from, to),
		Transitions: []Transition{},
	}
	for index, segment := range report.Segments {
		switch segment.Status {
		case StatusPresent:
			report.Present += segment.Duration()
		case StatusAway:
			report.Away += segment.Duration()
		case StatusOffline:
			report.Offline += segment.Duration()
		}
		if index > 0 {
			report.Transitions = append(report.Transitions, Transition{
				At:   segment.Start,
				From: report.Segments[index-1].Status,
				To:   segment.Status,
			})
		}
	}
	if report.Segments == nil {
		report.Segments = []Segment{}
	}
	return report
}

func earliest(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
