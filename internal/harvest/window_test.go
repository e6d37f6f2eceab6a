package harvest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSplitWindowCoversEveryDay(t *testing.T) {
	t.Parallel()

	start := day(2025, time.January, 1)
	end := day(2025, time.January, 10)

	windows := SplitWindow(start, end)
	require.Len(t, windows, 10)

	covered := map[string]bool{}
	for _, w := range windows {
		require.Equal(t, w.Start.AddDate(0, 0, 1), w.End)
		covered[w.Start.Format("2006-01-02")] = true
	}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		require.True(t, covered[d.Format("2006-01-02")], "day %s not covered", d.Format("2006-01-02"))
	}
}

func TestSplitWindowNeighborsOverlapByOneDay(t *testing.T) {
	t.Parallel()

	windows := SplitWindow(day(2025, time.March, 1), day(2025, time.March, 5))
	for i := 1; i < len(windows); i++ {
		require.Equal(t, windows[i-1].End, windows[i].Start)
	}
}

func TestSplitWindowDeterministicAndRestartable(t *testing.T) {
	t.Parallel()

	start := day(2025, time.February, 1)
	end := day(2025, time.February, 20)

	first := SplitWindow(start, end)
	second := SplitWindow(start, end)
	require.Equal(t, first, second)

	// Restarting from an intermediate window yields the same tail.
	tail := SplitWindow(first[5].Start, end)
	require.Equal(t, first[5:], tail)
}

func TestSplitWindowSingleDay(t *testing.T) {
	t.Parallel()

	windows := SplitWindow(day(2025, time.June, 3), day(2025, time.June, 3))
	require.Len(t, windows, 1)
	require.Equal(t, day(2025, time.June, 3), windows[0].Start)
	require.Equal(t, day(2025, time.June, 4), windows[0].End)
}

func TestSplitWindowPreservesTimeOfDay(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC)
	end := time.Date(2025, time.January, 6, 12, 0, 0, 0, time.UTC)

	windows := SplitWindow(start, end)
	require.Len(t, windows, 6)
	require.Equal(t, start, windows[0].Start)
	require.Equal(t, end, windows[5].Start)
}

func TestMonthWindowsCalendarExact(t *testing.T) {
	t.Parallel()

	windows := MonthWindows(day(2024, time.January, 1), day(2024, time.April, 15))
	require.Len(t, windows, 4)

	// 2024 is a leap year.
	require.Equal(t, day(2024, time.February, 1), windows[1].Start)
	require.Equal(t, day(2024, time.February, 29), windows[1].End)

	require.Equal(t, day(2024, time.March, 31), windows[2].End)

	// Final range is clamped to the requested end.
	require.Equal(t, day(2024, time.April, 1), windows[3].Start)
	require.Equal(t, day(2024, time.April, 15), windows[3].End)
}

func TestMonthWindowsMidMonthStart(t *testing.T) {
	t.Parallel()

	windows := MonthWindows(day(2025, time.November, 20), day(2025, time.December, 31))
	require.Len(t, windows, 2)
	require.Equal(t, day(2025, time.November, 20), windows[0].Start)
	require.Equal(t, day(2025, time.November, 30), windows[0].End)
	require.Equal(t, day(2025, time.December, 1), windows[1].Start)
	require.Equal(t, day(2025, time.December, 31), windows[1].End)
}
