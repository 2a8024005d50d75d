package events

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/waply/waply-web/internal/upstream"
)

// Filter is one of the three mutually exclusive date-range filters.
type Filter string

const (
	FilterToday Filter = "today"
	FilterWeek  Filter = "this week"
	FilterMonth Filter = "this month"
)

// ParseFilter maps the route's filter parameter to a Filter, defaulting to
// today for anything unrecognized.
func ParseFilter(param string) Filter {
	switch param {
	case "this-week":
		return FilterWeek
	case "this-month":
		return FilterMonth
	default:
		return FilterToday
	}
}

// Param returns the value used in the events route query string.
func (f Filter) Param() string {
	return strings.ReplaceAll(string(f), " ", "-")
}

// BackendParam returns the value the backend expects: the last word of the
// filter name (today, week, month).
func (f Filter) BackendParam() string {
	words := strings.Fields(string(f))
	return words[len(words)-1]
}

// Label returns the filter's display name with the first letter capitalized.
func (f Filter) Label() string {
	s := string(f)
	return strings.ToUpper(s[:1]) + s[1:]
}

// titleLimit is the rune count beyond which titles are truncated.
const titleLimit = 14

// Durations assumed for the occupancy window. The server carries no end
// time, so the window is a display heuristic only.
const (
	meetingWindow  = 30 * time.Minute
	reminderWindow = 10 * time.Minute
)

// FormatDate renders a date as "19th Nov, 2024", optionally without the
// year.
func FormatDate(t time.Time, includeYear bool) string {
	day := t.Day()
	suffix := "th"
	switch day {
	case 1, 21, 31:
		suffix = "st"
	case 2, 22:
		suffix = "nd"
	case 3, 23:
		suffix = "rd"
	}
	out := fmt.Sprintf("%d%s %s", day, suffix, t.Format("Jan"))
	if includeYear {
		out += fmt.Sprintf(", %d", t.Year())
	}
	return out
}

// DateRange is the display-only label of the active filter's window.
type DateRange struct {
	Start string
	End   string
}

// RangeFor computes the filter's date-range label from the given day.
// Today shows a single date; the week window is today through today+6; the
// month window is a fixed today through today+30, not calendar-month-aware.
func RangeFor(f Filter, now time.Time) DateRange {
	switch f {
	case FilterWeek:
		return DateRange{
			Start: FormatDate(now, false),
			End:   FormatDate(now.AddDate(0, 0, 6), true),
		}
	case FilterMonth:
		return DateRange{
			Start: FormatDate(now, false),
			End:   FormatDate(now.AddDate(0, 0, 30), true),
		}
	default:
		return DateRange{Start: FormatDate(now, true)}
	}
}

// Label renders the range as shown in the filter bar.
func (r DateRange) Label() string {
	if r.End == "" {
		return r.Start
	}
	return r.Start + " - " + r.End
}

// TruncateTitle limits a task description to 14 runes, appending an ellipsis
// when it was longer.
func TruncateTitle(s string) string {
	runes := []rune(s)
	if len(runes) <= titleLimit {
		return s
	}
	return string(runes[:titleLimit]) + "…"
}

// Window returns the reminder's displayed occupancy window: the next
// occurrence through +30 minutes for meetings, +10 minutes otherwise.
func Window(r upstream.Reminder) (time.Time, time.Time) {
	start := r.NextOccurrence
	if r.IsMeeting() {
		return start, start.Add(meetingWindow)
	}
	return start, start.Add(reminderWindow)
}

// FormatTimeRange renders an occupancy window as "10:00 AM - 10:30 AM".
func FormatTimeRange(start, end time.Time) string {
	return start.Format("03:04 PM") + " - " + end.Format("03:04 PM")
}

// Group is one calendar day's reminders in a week/month view.
type Group struct {
	Date  time.Time
	Items []upstream.Reminder
}

// Label renders the group's date header.
func (g Group) Label() string {
	return FormatDate(g.Date, true)
}

// GroupByDate partitions reminders by the local calendar date of their next
// occurrence. Server order is preserved within a day; groups are ordered
// chronologically.
func GroupByDate(reminders []upstream.Reminder, loc *time.Location) []Group {
	byDay := make(map[time.Time]*Group)
	for _, r := range reminders {
		t := r.NextOccurrence.In(loc)
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
		g, ok := byDay[day]
		if !ok {
			g = &Group{Date: day}
			byDay[day] = g
		}
		g.Items = append(g.Items, r)
	}

	groups := make([]Group, 0, len(byDay))
	for _, g := range byDay {
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Date.Before(groups[j].Date)
	})
	return groups
}
