package harvest

import "time"

// SplitWindow cuts [start, end] into one-day query windows. Each window
// spans exactly 24 hours and consecutive windows share their boundary
// day, so a record submitted on a boundary is fetched twice rather than
// never; the store's dedup absorbs the overlap. The sequence is
// deterministic and restartable from any sub-window.
func SplitWindow(start, end time.Time) []Window {
	var out []Window
	for s := start; !s.After(end); s = s.AddDate(0, 0, 1) {
		out = append(out, Window{Start: s, End: s.AddDate(0, 0, 1)})
	}
	return out
}

// MonthWindows cuts [start, end] into calendar month ranges. Month
// boundaries come from calendar arithmetic, so month lengths and leap
// years are exact. The first range starts at start and the last range
// ends at end; every other range covers a full month.
func MonthWindows(start, end time.Time) []Window {
	var out []Window
	cur := start
	for !cur.After(end) {
		firstOfNext := time.Date(cur.Year(), cur.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
		monthEnd := firstOfNext.AddDate(0, 0, -1)
		e := monthEnd
		if e.After(end) {
			e = end
		}
		out = append(out, Window{Start: cur, End: e})
		cur = firstOfNext
	}
	return out
}
