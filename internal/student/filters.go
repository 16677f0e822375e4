package student

import "time"

// JoinedFilter is one date_of_joining choice on the operator list.
type JoinedFilter struct {
	Key   string
	Label string
}

var JoinedFilters = []JoinedFilter{
	{Key: "", Label: "Any date"},
	{Key: "today", Label: "Today"},
	{Key: "past_7_days", Label: "Past 7 days"},
	{Key: "this_month", Label: "This month"},
	{Key: "this_year", Label: "This year"},
}

// JoinedRange resolves a JoinedFilter key to a [from, before) date range
// relative to today. ok is false for "" and unknown keys.
func JoinedRange(key string, today time.Time) (from, before time.Time, ok bool) {
	d := dateOnly(today)
	tomorrow := d.AddDate(0, 0, 1)

	switch key {
	case "today":
		return d, tomorrow, true
	case "past_7_days":
		return d.AddDate(0, 0, -7), tomorrow, true
	case "this_month":
		first := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
		return first, first.AddDate(0, 1, 0), true
	case "this_year":
		first := time.Date(d.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		return first, first.AddDate(1, 0, 0), true
	}
	return time.Time{}, time.Time{}, false
}
