package calendar

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/username/cycle-day-bot/pkg/dateutil"
	"go.uber.org/zap"
)

// DefaultCycleSize is the rotation length used when a definition does not
// carry one
const DefaultCycleSize = 8

// ErrOutOfRange is returned for dates outside the term
var ErrOutOfRange = errors.New("date out of range")

// Definition is the parsed term definition a Calendar is built from
type Definition interface {
	Name() string
	StartDate() time.Time
	EndDate() time.Time
	Overrides() []Exclusion
	Exclusions() []Exclusion
	CycleSize() int
}

// Calendar resolves dates in a term to cycle days.
//
// Overrides win over exclusions, exclusions win over weekends, and every
// remaining date is a StandardDay computed by replaying school days from the
// nearest known correlation. Only exclusions stop the counter from
// advancing; an override on a weekday still counts as a school day.
type Calendar struct {
	name       string
	startDate  time.Time
	endDate    time.Time
	overrides  []Exclusion
	exclusions []Exclusion
	cycleSize  int
	logger     *zap.Logger

	// correlations maps date key → known cycle number on that date.
	// Entries are only ever added.
	correlations map[string]int
	mu           sync.RWMutex
}

// New creates a Calendar from a definition
func New(def Definition, logger *zap.Logger) *Calendar {
	if logger == nil {
		logger = zap.NewNop()
	}

	cycleSize := def.CycleSize()
	if cycleSize <= 0 {
		cycleSize = DefaultCycleSize
	}

	start := dateutil.Date(def.StartDate())

	return &Calendar{
		name:         def.Name(),
		startDate:    start,
		endDate:      dateutil.Date(def.EndDate()),
		overrides:    append([]Exclusion(nil), def.Overrides()...),
		exclusions:   append([]Exclusion(nil), def.Exclusions()...),
		cycleSize:    cycleSize,
		logger:       logger,
		correlations: map[string]int{dateutil.Key(start): 1},
	}
}

// Name returns the display name of the term
func (c *Calendar) Name() string {
	return c.name
}

// StartDate returns the first date of the term
func (c *Calendar) StartDate() time.Time {
	return c.startDate
}

// EndDate returns the last date of the term
func (c *Calendar) EndDate() time.Time {
	return c.endDate
}

// CycleSize returns the number of days in the rotation
func (c *Calendar) CycleSize() int {
	return c.cycleSize
}

// Includes reports whether date falls within the term
func (c *Calendar) Includes(date time.Time) bool {
	d := dateutil.Date(date)
	return !d.Before(c.startDate) && !d.After(c.endDate)
}

// Excluded reports whether any exclusion covers date. Overrides are not
// consulted.
func (c *Calendar) Excluded(date time.Time) (bool, error) {
	if !c.Includes(date) {
		return false, c.outOfRange(date)
	}
	return c.excluded(dateutil.Date(date)), nil
}

// DayOn resolves the Day for date
func (c *Calendar) DayOn(date time.Time) (Day, error) {
	if !c.Includes(date) {
		return nil, c.outOfRange(date)
	}
	d := dateutil.Date(date)

	for _, list := range [][]Exclusion{c.overrides, c.exclusions} {
		for _, exclusion := range list {
			if exclusion.Includes(d) {
				return exclusion.IncludedDay(), nil
			}
		}
	}

	if dateutil.IsWeekend(d) {
		return Weekend(), nil
	}

	number := c.iterateForDay(d)

	c.mu.Lock()
	c.correlations[dateutil.Key(d)] = number
	c.mu.Unlock()

	return StandardDay{Number: number}, nil
}

// NextNonHoliday returns the first date after date that does not resolve to
// a Holiday. It fails with ErrOutOfRange when the term ends first.
func (c *Calendar) NextNonHoliday(date time.Time) (time.Time, error) {
	d := dateutil.Date(date)
	for {
		d = dateutil.AddDays(d, 1)
		if d.After(c.endDate) {
			return time.Time{}, fmt.Errorf("%w: no school day after %s before term end %s",
				ErrOutOfRange, dateutil.Key(date), dateutil.Key(c.endDate))
		}

		day, err := c.DayOn(d)
		if err != nil {
			return time.Time{}, err
		}
		if !IsHoliday(day) {
			return d, nil
		}
	}
}

func (c *Calendar) excluded(date time.Time) bool {
	for _, exclusion := range c.exclusions {
		if exclusion.Includes(date) {
			return true
		}
	}
	return false
}

// mostRecentCorrelation walks back from date to the closest cached entry.
// The seed at startDate bounds the walk for any in-term date.
func (c *Calendar) mostRecentCorrelation(date time.Time) (time.Time, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for d := date; !d.Before(c.startDate); d = dateutil.AddDays(d, -1) {
		if number, ok := c.correlations[dateutil.Key(d)]; ok {
			return d, number
		}
	}
	return c.startDate, 1
}

func (c *Calendar) iterateForDay(date time.Time) int {
	anchor, day := c.mostRecentCorrelation(date)

	steps := 0
	for d := anchor; d.Before(date); {
		d = dateutil.AddDays(d, 1)
		steps++
		if c.excluded(d) || dateutil.IsWeekend(d) {
			continue
		}
		day++
		if day > c.cycleSize {
			day = 1
		}
	}

	if steps > 0 {
		c.logger.Debug("Replayed cycle from correlation",
			zap.String("anchor", dateutil.Key(anchor)),
			zap.String("date", dateutil.Key(date)),
			zap.Int("steps", steps),
			zap.Int("day", day))
	}

	return day
}

func (c *Calendar) outOfRange(date time.Time) error {
	return fmt.Errorf("%w: %s not in %s..%s", ErrOutOfRange,
		dateutil.Key(date), dateutil.Key(c.startDate), dateutil.Key(c.endDate))
}
