package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stanstork/schedule-api/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestExpand_ThreeDailyOccurrences(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)

	got := Expand(start, end, models.RepeatDaily, day(2024, 1, 1), day(2024, 1, 3))

	require.Len(t, got, 3)
	assert.True(t, got[0].Equal(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)))
	assert.True(t, got[1].Equal(time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)))
	assert.True(t, got[2].Equal(time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)))
}

func TestExpand_CountAndTimeOfDay(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("ICT", 7*60*60)
	start := time.Date(2024, 2, 20, 7, 45, 30, 0, loc)
	end := start.Add(90 * time.Minute)

	tests := []struct {
		name string
		from time.Time
		to   time.Time
		want int
	}{
		{"single day", day(2024, 3, 1), day(2024, 3, 1), 1},
		{"across leap day", day(2024, 2, 27), day(2024, 3, 2), 5},
		{"across year end", day(2024, 12, 30), day(2025, 1, 2), 4},
		{"full year", day(2025, 1, 1), day(2025, 12, 31), 365},
		{"longer than the accepted ceiling", day(2024, 1, 1), day(2026, 1, 1), 732},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Expand(start, end, models.RepeatDaily, tt.from, tt.to)
			require.Len(t, got, tt.want)
			assert.Equal(t, tt.want, DaySpan(tt.from, tt.to))
			for i, ts := range got {
				assert.Equal(t, 7, ts.Hour(), "entry %d", i)
				assert.Equal(t, 45, ts.Minute(), "entry %d", i)
				assert.Equal(t, 30, ts.Second(), "entry %d", i)
				assert.Equal(t, loc.String(), ts.Location().String(), "entry %d", i)
				if i > 0 {
					assert.True(t, ts.After(got[i-1]), "entry %d not ascending", i)
				}
			}
		})
	}
}

func TestExpand_RangeBoundsIgnoreTimeOfDay(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	// Late start bound, early end bound: still both dates count.
	got := Expand(start, end, models.RepeatDaily,
		time.Date(2024, 5, 1, 23, 59, 0, 0, time.UTC),
		time.Date(2024, 5, 2, 0, 1, 0, 0, time.UTC))

	require.Len(t, got, 2)
	assert.True(t, got[0].Equal(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)))
	assert.True(t, got[1].Equal(time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)))
}

func TestExpand_KeepsWallClockAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}

	start := time.Date(2024, 3, 9, 8, 0, 0, 0, loc)
	end := start.Add(30 * time.Minute)

	got := Expand(start, end, models.RepeatDaily, day(2024, 3, 9), day(2024, 3, 11))

	require.Len(t, got, 3)
	for _, ts := range got {
		assert.Equal(t, 8, ts.Hour())
	}
}

func TestExpand_EmptyResults(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	tests := []struct {
		name       string
		baseStart  time.Time
		baseEnd    time.Time
		repeatType models.RepeatType
		from, to   time.Time
	}{
		{"end before start", start, end, models.RepeatDaily, day(2024, 1, 5), day(2024, 1, 4)},
		{"weekly is not expanded", start, end, models.RepeatWeekly, day(2024, 1, 1), day(2024, 2, 1)},
		{"monthly is not expanded", start, end, models.RepeatMonthly, day(2024, 1, 1), day(2024, 6, 1)},
		{"unknown type", start, end, models.RepeatType("hourly"), day(2024, 1, 1), day(2024, 1, 2)},
		{"zero-length base", start, start, models.RepeatDaily, day(2024, 1, 1), day(2024, 1, 2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Expand(tt.baseStart, tt.baseEnd, tt.repeatType, tt.from, tt.to)
			assert.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}

func TestExpand_Deterministic(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	a := Expand(start, end, models.RepeatDaily, day(2024, 1, 1), day(2024, 1, 10))
	b := Expand(start, end, models.RepeatDaily, day(2024, 1, 1), day(2024, 1, 10))
	assert.Equal(t, a, b)
}

func TestExpandEvent(t *testing.T) {
	t.Parallel()

	ev := &models.Event{
		ID:        "e1",
		StartDate: time.Date(2024, 4, 1, 18, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 4, 1, 19, 0, 0, 0, time.UTC),
		Repeat: &models.Repeat{
			Type:    models.RepeatDaily,
			EndDate: day(2024, 4, 4),
		},
	}

	ExpandEvent(ev, ev.StartDate)
	require.Len(t, ev.Repeat.Dates, 4)
	assert.True(t, ev.Repeat.Dates[3].Equal(time.Date(2024, 4, 4, 18, 0, 0, 0, time.UTC)))

	single := &models.Event{ID: "e2"}
	ExpandEvent(single, time.Now())
	assert.Nil(t, single.Repeat)
}

func TestOccurrences(t *testing.T) {
	t.Parallel()

	base := models.Event{
		ID:        "e1",
		StartDate: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 1, 10, 45, 0, 0, time.UTC),
	}

	t.Run("single event", func(t *testing.T) {
		occ := Occurrences(base)
		require.Len(t, occ, 1)
		assert.Equal(t, models.Occurrence{EventID: "e1", Start: base.StartDate, End: base.EndDate}, occ[0])
	})

	t.Run("repeating event keeps duration", func(t *testing.T) {
		ev := base
		ev.Repeat = &models.Repeat{
			Type: models.RepeatDaily,
			Dates: []time.Time{
				time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC),
				time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC),
			},
		}
		occ := Occurrences(ev)
		require.Len(t, occ, 2)
		for i, o := range occ {
			assert.Equal(t, "e1", o.EventID)
			assert.True(t, o.Start.Equal(ev.Repeat.Dates[i]))
			assert.Equal(t, 45*time.Minute, o.End.Sub(o.Start))
		}
	})

	t.Run("repeat without dates falls back to base", func(t *testing.T) {
		ev := base
		ev.Repeat = &models.Repeat{Type: models.RepeatWeekly}
		occ := Occurrences(ev)
		require.Len(t, occ, 1)
		assert.True(t, occ[0].Start.Equal(base.StartDate))
	})
}

func TestDaySpan(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, DaySpan(day(2024, 1, 2), day(2024, 1, 1)))
	assert.Equal(t, 1, DaySpan(day(2024, 1, 1), day(2024, 1, 1)))
	assert.Equal(t, 366, DaySpan(day(2024, 1, 1), day(2024, 12, 31)))
}
