package timeslot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	cases := []struct {
		in   string
		want Clock
	}{
		{"9 AM", 9 * Hour},
		{"9AM", 9 * Hour},
		{"9:30 am", 9*Hour + 30},
		{"12 AM", 0},
		{"12:15 PM", 12*Hour + 15},
		{"2 PM", 14 * Hour},
		{" 2:00 pm ", 14 * Hour},
		{"14:00", 14 * Hour},
		{"09:00", 9 * Hour},
		{"0:00", 0},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseClock(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseClock_Invalid(t *testing.T) {
	for _, in := range []string{"", "noon", "13 PM", "0 AM", "9:60", "24:00", "9:5 AM", "9:00 XM"} {
		_, err := ParseClock(in)
		assert.Error(t, err, in)
	}
}

func TestSameTime(t *testing.T) {
	assert.True(t, SameTime("2 PM", "2:00 PM"))
	assert.True(t, SameTime("2 pm", "14:00"))
	assert.False(t, SameTime("2 PM", "2:30 PM"))
	assert.False(t, SameTime("garbage", "garbage"))
	assert.False(t, SameTime("2 PM", ""))
}

func TestClockFormatting(t *testing.T) {
	assert.Equal(t, "9:00 AM", MustParseClock("09:00").String())
	assert.Equal(t, "12:00 PM", MustParseClock("12:00").String())
	assert.Equal(t, "12:30 AM", MustParseClock("0:30").String())
	assert.Equal(t, "14:05", MustParseClock("2:05 PM").Canonical())
}

func TestInterval_Overlaps(t *testing.T) {
	a := Interval{Start: 10 * Hour, End: 11 * Hour}
	b := Interval{Start: 10*Hour + 30, End: 11*Hour + 30}
	c := Interval{Start: 11 * Hour, End: 12 * Hour}

	assert.True(t, a.Overlaps(b))
	assert.True(t, b.Overlaps(a))
	assert.False(t, a.Overlaps(c), "touching boundary is not an overlap")
	assert.False(t, c.Overlaps(a))
	assert.True(t, a.Overlaps(a))
}

func TestInterval_Hourly(t *testing.T) {
	iv, err := NewInterval("09:00", "12:00")
	require.NoError(t, err)
	assert.Equal(t, []Interval{
		{Start: 9 * Hour, End: 10 * Hour},
		{Start: 10 * Hour, End: 11 * Hour},
		{Start: 11 * Hour, End: 12 * Hour},
	}, iv.Hourly())

	short, err := NewInterval("09:00", "09:45")
	require.NoError(t, err)
	assert.Equal(t, []Interval{{Start: 9 * Hour, End: 9*Hour + 45}}, short.Hourly())

	ragged, err := NewInterval("9:30 AM", "11:00 AM")
	require.NoError(t, err)
	assert.Equal(t, []Interval{
		{Start: 9*Hour + 30, End: 10*Hour + 30},
		{Start: 10*Hour + 30, End: 11 * Hour},
	}, ragged.Hourly())
}

func TestNewInterval_Rejects(t *testing.T) {
	_, err := NewInterval("10:00", "10:00")
	assert.Error(t, err)
	_, err = NewInterval("11:00", "10:00")
	assert.Error(t, err)
	_, err = NewInterval("bad", "10:00")
	assert.Error(t, err)
}

func TestNewInterval_MidnightEnd(t *testing.T) {
	for _, end := range []string{"12 AM", "12:00 AM", "24:00", "00:00"} {
		iv, err := NewInterval("11 PM", end)
		require.NoError(t, err, end)
		assert.Equal(t, Interval{Start: 23 * Hour, End: 24 * Hour}, iv, end)
	}

	iv, err := NewInterval("10 PM", "12 AM")
	require.NoError(t, err)
	require.Len(t, iv.Hourly(), 2)
	assert.Equal(t, "12:00 AM", iv.End.String())
	assert.Equal(t, "24:00", iv.End.Canonical())

	_, err = NewInterval("24:00", "12 AM")
	assert.Error(t, err, "midnight only closes a range")
	_, err = ParseClock("24:00")
	assert.Error(t, err)
}

func TestKeyAndDates(t *testing.T) {
	d, err := ParseDate("2024-05-01")
	require.NoError(t, err)

	k1, err := NewKey("D1", d, "10 AM")
	require.NoError(t, err)
	k2, err := NewKey("D1", d, "10:00 AM")
	require.NoError(t, err)
	k3, err := NewKey("D2", d, "10:00 AM")
	require.NoError(t, err)

	assert.True(t, k1.Equal(k2))
	assert.False(t, k1.Equal(k3))
	assert.Equal(t, "D1/2024-05-01/10:00", k1.String())

	now := time.Date(2024, 5, 1, 18, 0, 0, 0, time.Local)
	assert.False(t, InPast(d, now))
	assert.True(t, InPast(d, now.AddDate(0, 0, 1)))

	_, err = ParseDate("01/05/2024")
	assert.Error(t, err)
}
