package calendar

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/username/cycle-day-bot/pkg/dateutil"
	"go.uber.org/zap"
)

type testDefinition struct {
	name       string
	start      time.Time
	end        time.Time
	overrides  []Exclusion
	exclusions []Exclusion
	cycleSize  int
}

func (d testDefinition) Name() string            { return d.name }
func (d testDefinition) StartDate() time.Time    { return d.start }
func (d testDefinition) EndDate() time.Time      { return d.end }
func (d testDefinition) Overrides() []Exclusion  { return d.overrides }
func (d testDefinition) Exclusions() []Exclusion { return d.exclusions }
func (d testDefinition) CycleSize() int          { return d.cycleSize }

func date(month time.Month, day int) time.Time {
	year := 2018
	if month < time.August {
		year = 2019
	}
	return dateutil.NewDate(year, month, day)
}

func newTestCalendar(t *testing.T, overrides, exclusions []Exclusion) *Calendar {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	return New(testDefinition{
		name:       "2018-2019",
		start:      date(time.August, 29),
		end:        date(time.June, 14),
		overrides:  overrides,
		exclusions: exclusions,
		cycleSize:  8,
	}, logger)
}

func mustDayOn(t *testing.T, cal *Calendar, d time.Time) Day {
	t.Helper()
	day, err := cal.DayOn(d)
	if err != nil {
		t.Fatalf("DayOn(%s) error = %v", dateutil.Key(d), err)
	}
	return day
}

func TestCalendar_NoExclusions(t *testing.T) {
	cal := newTestCalendar(t, nil, nil)

	tests := []struct {
		name string
		date time.Time
		want Day
	}{
		{"first day of term", date(time.August, 29), StandardDay{Number: 1}},
		{"Friday of first week", date(time.August, 31), StandardDay{Number: 3}},
		{"Saturday", date(time.September, 1), Weekend()},
		{"Sunday", date(time.September, 2), Weekend()},
		{"Monday after weekend", date(time.September, 3), StandardDay{Number: 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustDayOn(t, cal, tt.date)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DayOn(%s) = %#v, want %#v", dateutil.Key(tt.date), got, tt.want)
			}
		})
	}
}

func TestCalendar_HolidayDoesNotAdvance(t *testing.T) {
	cal := newTestCalendar(t, nil, []Exclusion{
		NewSingleDayExclusion(date(time.August, 30), NewHoliday("Teacher Day")),
	})

	if got := mustDayOn(t, cal, date(time.August, 30)); got != (Holiday{Description: "Teacher Day (No School)"}) {
		t.Errorf("DayOn(08-30) = %#v, want Teacher Day holiday", got)
	}
	if got := mustDayOn(t, cal, date(time.August, 31)); got != (StandardDay{Number: 2}) {
		t.Errorf("DayOn(08-31) = %#v, want Day 2", got)
	}
	if got := mustDayOn(t, cal, date(time.September, 3)); got != (StandardDay{Number: 3}) {
		t.Errorf("DayOn(09-03) = %#v, want Day 3", got)
	}
}

func TestCalendar_NextNonHoliday(t *testing.T) {
	cal := newTestCalendar(t, nil, []Exclusion{
		NewSingleDayExclusion(date(time.August, 30), NewHoliday("Teacher Day")),
		NewSingleDayExclusion(date(time.September, 4), HalfDay{Blocks: []string{"A", "C"}}),
	})

	tests := []struct {
		name string
		from time.Time
		want time.Time
	}{
		{"skips holiday", date(time.August, 29), date(time.August, 31)},
		{"skips weekend", date(time.August, 31), date(time.September, 3)},
		{"half day counts as school", date(time.September, 3), date(time.September, 4)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cal.NextNonHoliday(tt.from)
			if err != nil {
				t.Fatalf("NextNonHoliday() error = %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("NextNonHoliday(%s) = %s, want %s",
					dateutil.Key(tt.from), dateutil.Key(got), dateutil.Key(tt.want))
			}
		})
	}
}

func TestCalendar_NextNonHoliday_StopsAtTermEnd(t *testing.T) {
	cal := newTestCalendar(t, nil, []Exclusion{
		NewExclusion(date(time.June, 13), date(time.June, 14), NewHoliday("Last Days")),
	})

	for _, from := range []time.Time{date(time.June, 12), date(time.June, 14)} {
		if _, err := cal.NextNonHoliday(from); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("NextNonHoliday(%s) error = %v, want ErrOutOfRange", dateutil.Key(from), err)
		}
	}
}

func TestCalendar_OutOfRange(t *testing.T) {
	cal := newTestCalendar(t, nil, nil)

	for _, d := range []time.Time{date(time.August, 28), date(time.June, 15), dateutil.NewDate(2030, 1, 1)} {
		if _, err := cal.DayOn(d); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("DayOn(%s) error = %v, want ErrOutOfRange", dateutil.Key(d), err)
		}
		if _, err := cal.Excluded(d); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("Excluded(%s) error = %v, want ErrOutOfRange", dateutil.Key(d), err)
		}
	}
}

func TestCalendar_Includes(t *testing.T) {
	cal := newTestCalendar(t, nil, nil)

	for d := date(time.August, 20); d.Before(date(time.June, 20)); d = dateutil.AddDays(d, 1) {
		want := !d.Before(cal.StartDate()) && !d.After(cal.EndDate())
		if got := cal.Includes(d); got != want {
			t.Fatalf("Includes(%s) = %v, want %v", dateutil.Key(d), got, want)
		}
	}
}

func TestCalendar_CycleWraps(t *testing.T) {
	cal := newTestCalendar(t, nil, nil)

	// Wed 08-29 is Day 1; eight school days later is Mon 09-10
	if got := mustDayOn(t, cal, date(time.September, 7)); got != (StandardDay{Number: 8}) {
		t.Errorf("DayOn(09-07) = %#v, want Day 8", got)
	}
	if got := mustDayOn(t, cal, date(time.September, 10)); got != (StandardDay{Number: 1}) {
		t.Errorf("DayOn(09-10) = %#v, want Day 1", got)
	}
}

func TestCalendar_CycleSizeFromDefinition(t *testing.T) {
	cal := New(testDefinition{start: date(time.August, 29), end: date(time.June, 14), cycleSize: 3}, nil)

	if got := mustDayOn(t, cal, date(time.September, 3)); got != (StandardDay{Number: 1}) {
		t.Errorf("DayOn(09-03) = %#v, want Day 1 with a 3-day cycle", got)
	}

	def := New(testDefinition{start: date(time.August, 29), end: date(time.June, 14)}, nil)
	if def.CycleSize() != DefaultCycleSize {
		t.Errorf("CycleSize() = %d, want %d", def.CycleSize(), DefaultCycleSize)
	}
}

func TestCalendar_OverridePrecedence(t *testing.T) {
	cal := newTestCalendar(t,
		[]Exclusion{
			NewSingleDayExclusion(date(time.September, 14), NewHoliday("Gas Explosion")),
			NewSingleDayExclusion(date(time.September, 17), StandardDay{Number: 2}),
		},
		[]Exclusion{
			NewSingleDayExclusion(date(time.September, 14), HalfDay{Blocks: []string{"A"}}),
			NewSingleDayExclusion(date(time.September, 15), NewHoliday("Saturday Event")),
		})

	if got := mustDayOn(t, cal, date(time.September, 14)); got != (Holiday{Description: "Gas Explosion (No School)"}) {
		t.Errorf("DayOn(09-14) = %#v, want override holiday", got)
	}
	if got := mustDayOn(t, cal, date(time.September, 17)); got != (StandardDay{Number: 2}) {
		t.Errorf("DayOn(09-17) = %#v, want override Day 2", got)
	}
	// Exclusions beat the weekend rule
	if got := mustDayOn(t, cal, date(time.September, 15)); got != (Holiday{Description: "Saturday Event (No School)"}) {
		t.Errorf("DayOn(09-15) = %#v, want exclusion holiday", got)
	}
}

func TestCalendar_FirstMatchingExclusionWins(t *testing.T) {
	cal := newTestCalendar(t, nil, []Exclusion{
		NewExclusion(date(time.December, 24), date(time.January, 1), NewHoliday("Winter Break")),
		NewSingleDayExclusion(date(time.December, 25), NewHoliday("Christmas")),
	})

	if got := mustDayOn(t, cal, date(time.December, 25)); got != (Holiday{Description: "Winter Break (No School)"}) {
		t.Errorf("DayOn(12-25) = %#v, want the earlier exclusion", got)
	}
}

func TestCalendar_OverrideStillAdvancesCycle(t *testing.T) {
	cal := newTestCalendar(t, []Exclusion{
		NewSingleDayExclusion(date(time.August, 30), NewHoliday("Snow Day")),
	}, nil)

	if got := mustDayOn(t, cal, date(time.August, 31)); got != (StandardDay{Number: 3}) {
		t.Errorf("DayOn(08-31) = %#v, want Day 3 (overrides do not pause the cycle)", got)
	}
}

func TestCalendar_Excluded(t *testing.T) {
	cal := newTestCalendar(t,
		[]Exclusion{NewSingleDayExclusion(date(time.September, 5), NewHoliday("Override"))},
		[]Exclusion{NewSingleDayExclusion(date(time.September, 4), NewHoliday("Exclusion"))})

	tests := []struct {
		date time.Time
		want bool
	}{
		{date(time.September, 4), true},
		{date(time.September, 5), false},
		{date(time.September, 8), false},
	}

	for _, tt := range tests {
		got, err := cal.Excluded(tt.date)
		if err != nil {
			t.Fatalf("Excluded(%s) error = %v", dateutil.Key(tt.date), err)
		}
		if got != tt.want {
			t.Errorf("Excluded(%s) = %v, want %v", dateutil.Key(tt.date), got, tt.want)
		}
	}
}

func TestCalendar_WeekendClosure(t *testing.T) {
	cal := newTestCalendar(t, nil, []Exclusion{
		NewSingleDayExclusion(date(time.October, 19), HalfDay{Blocks: []string{"A", "C", "E", "G"}}),
	})

	for d := cal.StartDate(); !d.After(cal.EndDate()); d = dateutil.AddDays(d, 1) {
		if !dateutil.IsWeekend(d) {
			continue
		}
		if got := mustDayOn(t, cal, d); got != Weekend() {
			t.Fatalf("DayOn(%s) = %#v, want Weekend", dateutil.Key(d), got)
		}
	}
}

func TestCalendar_CorrelationCache(t *testing.T) {
	cal := newTestCalendar(t, nil, []Exclusion{
		NewSingleDayExclusion(date(time.September, 4), NewHoliday("Holiday")),
	})

	if len(cal.correlations) != 1 {
		t.Fatalf("fresh calendar has %d correlations, want 1", len(cal.correlations))
	}

	mustDayOn(t, cal, date(time.September, 12))
	if len(cal.correlations) != 2 {
		t.Errorf("after one miss: %d correlations, want 2", len(cal.correlations))
	}

	// Holidays and weekends are resolved before the cycle and are not cached
	mustDayOn(t, cal, date(time.September, 4))
	mustDayOn(t, cal, date(time.September, 8))
	if len(cal.correlations) != 2 {
		t.Errorf("after holiday/weekend lookups: %d correlations, want 2", len(cal.correlations))
	}

	// Earlier date re-anchors at the term start
	mustDayOn(t, cal, date(time.September, 5))
	if len(cal.correlations) != 3 {
		t.Errorf("after backfill lookup: %d correlations, want 3", len(cal.correlations))
	}
	if _, ok := cal.correlations["2018-09-05"]; !ok {
		t.Errorf("correlation for 2018-09-05 not recorded")
	}
	if _, ok := cal.correlations["2018-09-06"]; ok {
		t.Errorf("intermediate date 2018-09-06 must not be cached")
	}
}

func TestCalendar_DeterministicAcrossCacheStates(t *testing.T) {
	exclusions := []Exclusion{
		NewSingleDayExclusion(date(time.August, 30), NewHoliday("Teacher Day")),
		NewSingleDayExclusion(date(time.October, 19), HalfDay{Blocks: []string{"A", "C"}}),
		NewExclusion(date(time.November, 21), date(time.November, 23), NewHoliday("Thanksgiving")),
		NewExclusion(date(time.December, 24), date(time.January, 1), NewHoliday("Winter Break")),
		NewSingleDayExclusion(date(time.January, 22), ExamDay{TestBlocks: []string{"B", "F"}}),
	}

	forward := newTestCalendar(t, nil, exclusions)
	backward := newTestCalendar(t, nil, exclusions)
	sparse := newTestCalendar(t, nil, exclusions)

	var dates []time.Time
	for d := forward.StartDate(); !d.After(forward.EndDate()); d = dateutil.AddDays(d, 1) {
		dates = append(dates, d)
	}

	want := make(map[string]Day, len(dates))
	for _, d := range dates {
		want[dateutil.Key(d)] = mustDayOn(t, forward, d)
	}
	for i := len(dates) - 1; i >= 0; i-- {
		if got := mustDayOn(t, backward, dates[i]); !reflect.DeepEqual(got, want[dateutil.Key(dates[i])]) {
			t.Fatalf("backward DayOn(%s) = %#v, want %#v", dateutil.Key(dates[i]), got, want[dateutil.Key(dates[i])])
		}
	}
	for i := 0; i < len(dates); i += 37 {
		d := dates[(i*13)%len(dates)]
		first := mustDayOn(t, sparse, d)
		second := mustDayOn(t, sparse, d)
		if !reflect.DeepEqual(first, second) || !reflect.DeepEqual(first, want[dateutil.Key(d)]) {
			t.Fatalf("sparse DayOn(%s) = %#v then %#v, want %#v", dateutil.Key(d), first, second, want[dateutil.Key(d)])
		}
	}
}

func TestCalendar_CycleAdvancesOnSchoolDaysOnly(t *testing.T) {
	exclusions := []Exclusion{
		NewSingleDayExclusion(date(time.October, 8), NewHoliday("Columbus Day")),
		NewSingleDayExclusion(date(time.October, 19), HalfDay{Blocks: []string{"A", "C"}}),
		NewExclusion(date(time.November, 21), date(time.November, 23), NewHoliday("Thanksgiving")),
	}
	cal := newTestCalendar(t, nil, exclusions)

	expected := 1
	for d := cal.StartDate(); d.Before(date(time.December, 20)); d = dateutil.AddDays(d, 1) {
		excluded, err := cal.Excluded(d)
		if err != nil {
			t.Fatalf("Excluded() error = %v", err)
		}
		if !d.Equal(cal.StartDate()) && !excluded && !dateutil.IsWeekend(d) {
			expected = expected%cal.CycleSize() + 1
		}

		got := mustDayOn(t, cal, d)
		standard, ok := got.(StandardDay)
		if !ok {
			continue
		}
		if standard.Number != expected {
			t.Fatalf("DayOn(%s) = Day %d, want Day %d", dateutil.Key(d), standard.Number, expected)
		}
		if standard.Number < 1 || standard.Number > cal.CycleSize() {
			t.Fatalf("DayOn(%s) = Day %d outside 1..%d", dateutil.Key(d), standard.Number, cal.CycleSize())
		}
	}
}

func TestCalendar_IgnoresTimeOfDay(t *testing.T) {
	cal := newTestCalendar(t, nil, nil)

	late := time.Date(2018, 8, 31, 23, 59, 0, 0, time.FixedZone("EDT", -4*60*60))
	if got := mustDayOn(t, cal, late); got != (StandardDay{Number: 3}) {
		t.Errorf("DayOn(%v) = %#v, want Day 3", late, got)
	}
}

func TestCalendar_ConcurrentLookups(t *testing.T) {
	cal := newTestCalendar(t, nil, nil)
	want := mustDayOn(t, newTestCalendar(t, nil, nil), date(time.March, 15))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := cal.DayOn(date(time.March, 15))
			if err != nil || got != want {
				t.Errorf("DayOn() = %#v, %v; want %#v", got, err, want)
			}
		}()
	}
	wg.Wait()
}
