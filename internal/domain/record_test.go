package domain

import (
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyRecord(t *testing.T) {
	date := time.Date(2019, time.March, 3, 0, 0, 0, 0, time.UTC)
	rec := EmptyRecord(date, "N", []string{"meier2007_baffin", "meier2007_bering"})

	assert.True(t, math.IsNaN(rec.TotalExtentKm2))
	assert.True(t, math.IsNaN(rec.TotalAreaKm2))
	assert.True(t, math.IsNaN(rec.NotImagedKm2))
	assert.Equal(t, 1.0, rec.Missing)
	assert.Equal(t, SourceNone, rec.Source)
	assert.False(t, rec.HasData())

	require.Len(t, rec.Regional, 2)
	for _, rs := range rec.Regional {
		assert.True(t, math.IsNaN(rs.ExtentKm2))
		assert.Equal(t, Unobserved, rs.Outcome)
	}
}

func TestHasData(t *testing.T) {
	assert.False(t, StatRecord{}.HasData())
	assert.True(t, StatRecord{Filenames: []string{"nt_20190302_f18_nrt_n.bin"}}.HasData())
}

func TestRound3(t *testing.T) {
	assert.Equal(t, 1.234, Round3(1.2344))
	assert.Equal(t, 1.235, Round3(1.2345))
	assert.Equal(t, -2.5, Round3(-2.4999))
	assert.True(t, math.IsNaN(Round3(math.NaN())))
}

func TestClock(t *testing.T) {
	at := time.Date(2019, time.March, 3, 15, 4, 5, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(at))
	defer SetClock(nil)

	assert.Equal(t, at, Now())
	assert.Equal(t, time.Date(2019, time.March, 3, 0, 0, 0, 0, time.UTC), Today())
	assert.Equal(t, time.Date(2019, time.March, 2, 0, 0, 0, 0, time.UTC), Yesterday())
	assert.Equal(t, "20190303150405", Timestamp())
}

func TestEachDay(t *testing.T) {
	start := time.Date(2019, time.February, 27, 0, 0, 0, 0, time.UTC)
	end := time.Date(2019, time.March, 2, 0, 0, 0, 0, time.UTC)

	days := EachDay(start, end)
	require.Len(t, days, 4)
	assert.Equal(t, start, days[0])
	assert.Equal(t, time.Date(2019, time.February, 28, 0, 0, 0, 0, time.UTC), days[1])
	assert.Equal(t, time.Date(2019, time.March, 1, 0, 0, 0, 0, time.UTC), days[2])
	assert.Equal(t, end, days[3])

	assert.Empty(t, EachDay(end, start))
	assert.Len(t, EachDay(start, start), 1)
}

func TestMonthStartAndDaysSince(t *testing.T) {
	d := time.Date(2019, time.March, 17, 13, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2019, time.March, 1, 0, 0, 0, 0, time.UTC), MonthStart(d))

	epoch := time.Date(2019, time.March, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 16, DaysSince(epoch, d))
	assert.Equal(t, 0, DaysSince(epoch, epoch))
}
