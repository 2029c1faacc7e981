package api

import (
	"context"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/jay8860/DD-TaskDashboardClone/domain"
	"github.com/jay8860/DD-TaskDashboardClone/due"
)

const (
	calendarProductID = "-//taskboard//calendar feed//EN"
	calendarName      = "Task Dashboard"
	timedEventLength  = time.Hour
)

// CalendarFeed renders every task with a scheduled or deadline date as an
// iCalendar document. A scheduled date with a time becomes a one hour event in
// loc; anything else is an all-day event on the scheduled date, or failing
// that the deadline.
func (s *Service) CalendarFeed(ctx context.Context, loc *time.Location) (string, error) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return "", err
	}
	now := s.now()

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(calendarProductID)
	cal.SetXWRCalName(calendarName)

	for _, t := range tasks {
		day, ok := domain.ParseDate(t.ScheduledDate)
		scheduled := ok
		if !ok {
			if day, ok = domain.ParseDate(t.DeadlineDate); !ok {
				continue
			}
		}

		ev := cal.AddEvent(t.ID + "@taskboard")
		ev.SetDtStampTime(now)
		ev.SetSummary(strings.TrimSpace("#" + t.TaskNumber + " " + t.AssignedAgency))
		if start, ok := scheduledStart(day, t.ScheduledTime, loc); scheduled && ok {
			ev.SetStartAt(start)
			ev.SetEndAt(start.Add(timedEventLength))
		} else {
			ev.SetAllDayStartAt(day)
			ev.SetAllDayEndAt(day.AddDate(0, 0, 1))
		}
		if desc := eventDescription(t, due.StatusFor(t, now)); desc != "" {
			ev.SetDescription(desc)
		}
	}
	return cal.Serialize(), nil
}

func scheduledStart(day time.Time, clock string, loc *time.Location) (time.Time, bool) {
	if clock == "" {
		return time.Time{}, false
	}
	hm, err := time.Parse(domain.ClockLayout, clock)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hm.Hour(), hm.Minute(), 0, 0, loc), true
}

func eventDescription(t domain.Task, status domain.Status) string {
	var lines []string
	if t.Description != "" {
		lines = append(lines, "Description: "+t.Description)
	}
	if t.Priority != "" {
		lines = append(lines, "Priority: "+t.Priority)
	}
	lines = append(lines, "Status: "+string(status))
	return strings.Join(lines, "\n")
}
