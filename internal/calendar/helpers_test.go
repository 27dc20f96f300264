package calendar

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querycal/internal/model"
)

func TestParseTime(t *testing.T) {
	utc := time.UTC
	cases := []struct {
		name string
		in   model.Value
		want time.Time
		ok   bool
	}{
		{"rfc3339", model.String("2023-01-05T10:30:00+02:00"), time.Date(2023, 1, 5, 8, 30, 0, 0, utc), true},
		{"rfc3339 fraction", model.String("2023-01-05T10:30:00.250Z"), time.Date(2023, 1, 5, 10, 30, 0, 250e6, utc), true},
		{"sql datetime", model.String("2023-01-05 10:30:00"), time.Date(2023, 1, 5, 10, 30, 0, 0, utc), true},
		{"date only", model.String(" 2023-01-05 "), time.Date(2023, 1, 5, 0, 0, 0, 0, utc), true},
		{"minutes", model.String("2023-01-05T10:30"), time.Date(2023, 1, 5, 10, 30, 0, 0, utc), true},
		{"epoch millis", model.Number(1672913400000), time.Date(2023, 1, 5, 10, 10, 0, 0, utc), true},
		{"time value", model.Time(time.Date(2023, 1, 5, 0, 0, 0, 0, utc)), time.Date(2023, 1, 5, 0, 0, 0, 0, utc), true},
		{"garbage", model.String("soon"), time.Time{}, false},
		{"empty", model.String("  "), time.Time{}, false},
		{"null", model.Null(), time.Time{}, false},
		{"bool", model.Bool(true), time.Time{}, false},
		{"object", model.ObjectValue([]any{1}), time.Time{}, false},
		{"zero time", model.Time(time.Time{}), time.Time{}, false},
		{"epoch micros", model.Number(1.7e15), time.Time{}, false},
		{"epoch beyond int64", model.Number(1e19), time.Time{}, false},
		{"infinity", model.Number(math.Inf(-1)), time.Time{}, false},
		{"nan", model.Number(math.NaN()), time.Time{}, false},
		{"time past 9999", model.Time(time.Date(10000, 1, 1, 0, 0, 0, 0, utc)), time.Time{}, false},
		{"last representable day", model.String("9999-12-31"), time.Date(9999, 12, 31, 0, 0, 0, 0, utc), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseTime(tc.in, nil)
			require.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.True(t, tc.want.Equal(got), "got %s want %s", got, tc.want)
			}
		})
	}
}

func TestCleanColumnName(t *testing.T) {
	assert.Equal(t, "Created At", CleanColumnName("created_at"))
	assert.Equal(t, "Country", CleanColumnName("country::filter"))
	assert.Equal(t, "Event Type", CleanColumnName("event-type::multi-filter"))
	assert.Equal(t, "Start", CleanColumnName("  start  "))
	assert.Equal(t, "UserID", CleanColumnName("userID"))
	assert.Equal(t, "", CleanColumnName(""))
}

func TestLabels(t *testing.T) {
	labels := Labels([]model.Column{{Name: "start_date", Type: "datetime"}, {Name: "title", Type: "string"}})
	assert.Equal(t, map[string]string{"start_date": "Start Date", "title": "Title"}, labels)
}

func TestColorForSkipsUsedColors(t *testing.T) {
	first := ColorFor("team", nil)
	assert.Equal(t, first, ColorFor("team", map[string]struct{}{}))

	second := ColorFor("team", map[string]struct{}{first: {}})
	assert.NotEqual(t, first, second)
	assert.Contains(t, Palette, second)
}

func TestColorForExhaustedPalette(t *testing.T) {
	used := make(map[string]struct{}, len(Palette))
	for _, c := range Palette {
		used[c] = struct{}{}
	}
	assert.Equal(t, ColorFor("team", nil), ColorFor("team", used))
}

func TestPaletteColorsAreHex(t *testing.T) {
	require.NotEmpty(t, Palette)
	for _, c := range Palette {
		assert.True(t, ValidColor(c), c)
	}
}

func TestColorsMerge(t *testing.T) {
	base := Colors{"a": "#000000", "b": "#111111"}
	merged := base.Merge(Colors{"b": "#ffffff", "c": "#222222"})
	assert.Equal(t, Colors{"a": "#000000", "b": "#ffffff", "c": "#222222"}, merged)
	assert.Equal(t, "#111111", base["b"])

	assert.NotNil(t, Colors(nil).Clone())
}

func TestValidColor(t *testing.T) {
	assert.True(t, ValidColor("#abc"))
	assert.True(t, ValidColor("#A1B2C3"))
	assert.False(t, ValidColor("abc"))
	assert.False(t, ValidColor("#12345"))
	assert.False(t, ValidColor("#zzzzzz"))
}

func TestOptionsNormalizeAndValidate(t *testing.T) {
	var o Options
	o.Normalize()
	assert.Equal(t, ViewMonth, o.View)
	assert.Equal(t, "sunday", o.FirstDayOfWeek)
	assert.NotNil(t, o.GroupColors)
	assert.NoError(t, o.Validate())

	o = DefaultOptions()
	o.View = " Week "
	o.FirstDayOfWeek = "Monday"
	o.Normalize()
	assert.NoError(t, o.Validate())
	assert.Equal(t, 1, WeekdayIndex(o.FirstDayOfWeek))

	o.View = "year"
	assert.Error(t, o.Validate())

	o = DefaultOptions()
	o.FirstDayOfWeek = "someday"
	assert.Error(t, o.Validate())

	o = DefaultOptions()
	o.GroupColors = Colors{"Work": "red"}
	assert.Error(t, o.Validate())
}
