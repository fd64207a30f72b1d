package definition

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/samber/mo"
	"github.com/username/cycle-day-bot/internal/calendar"
	"github.com/username/cycle-day-bot/pkg/dateutil"
)

// ErrMalformedDefinition is returned when a definition document cannot be
// parsed into a complete definition
var ErrMalformedDefinition = errors.New("malformed calendar definition")

// ClockTime is a wall-clock time of day
type ClockTime struct {
	Hour   int
	Minute int
}

func (t ClockTime) String() string {
	return fmt.Sprintf("%d:%02d", t.Hour, t.Minute)
}

// TimeRange is a class period
type TimeRange struct {
	Start ClockTime
	End   ClockTime
}

func (r TimeRange) String() string {
	return r.Start.String() + "-" + r.End.String()
}

// Definition is a parsed term definition document
type Definition struct {
	name           string
	startDate      time.Time
	endDate        time.Time
	blocks         []string
	periods        []TimeRange
	semesters      []calendar.DateRange
	cycleSize      int
	dayBlocks      [][]string
	examDayPeriods []TimeRange
	halfDayPeriods []TimeRange
	exclusions     []calendar.Exclusion
	overrides      []calendar.Exclusion
}

// rawDefinition mirrors the JSON document
type rawDefinition struct {
	Name           string          `json:"name"`
	StartDate      string          `json:"start_date"`
	EndDate        string          `json:"end_date"`
	Blocks         []string        `json:"blocks"`
	Periods        [][][]int       `json:"periods"`
	Semesters      [][]string      `json:"semesters"`
	CycleSize      int             `json:"cycle_size"`
	DayBlocks      [][]string      `json:"day_blocks"`
	ExamDayPeriods [][][]int       `json:"exam_day_periods"`
	HalfDayPeriods [][][]int       `json:"half_day_periods"`
	Exclusions     []rawExclusion  `json:"exclusions"`
	Overrides      []rawExclusion  `json:"overrides"`
}

type rawExclusion struct {
	Type        string   `json:"type"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	Date        string   `json:"date"`
	Description *string  `json:"description"`
	Blocks      []string `json:"blocks"`
	DayNumber   *int     `json:"day_number"`
}

// Parse parses a definition document. Sections that are absent stay empty;
// anything present must be well formed.
func Parse(data []byte) (*Definition, error) {
	var raw rawDefinition
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDefinition, err)
	}

	def := &Definition{
		name:      raw.Name,
		blocks:    raw.Blocks,
		cycleSize: raw.CycleSize,
		dayBlocks: raw.DayBlocks,
	}

	var err error
	if raw.StartDate != "" {
		if def.startDate, err = parseDate("start_date", raw.StartDate); err != nil {
			return nil, err
		}
	}
	if raw.EndDate != "" {
		if def.endDate, err = parseDate("end_date", raw.EndDate); err != nil {
			return nil, err
		}
	}

	if def.periods, err = parseTimeRanges("periods", raw.Periods); err != nil {
		return nil, err
	}
	if def.examDayPeriods, err = parseTimeRanges("exam_day_periods", raw.ExamDayPeriods); err != nil {
		return nil, err
	}
	if def.halfDayPeriods, err = parseTimeRanges("half_day_periods", raw.HalfDayPeriods); err != nil {
		return nil, err
	}

	for i, pair := range raw.Semesters {
		if len(pair) != 2 {
			return nil, fmt.Errorf("%w: semesters[%d] must have two dates", ErrMalformedDefinition, i)
		}
		start, err := parseDate(fmt.Sprintf("semesters[%d]", i), pair[0])
		if err != nil {
			return nil, err
		}
		end, err := parseDate(fmt.Sprintf("semesters[%d]", i), pair[1])
		if err != nil {
			return nil, err
		}
		def.semesters = append(def.semesters, calendar.NewDateRange(start, end))
	}

	if def.exclusions, err = parseExclusions("exclusions", raw.Exclusions); err != nil {
		return nil, err
	}
	if def.overrides, err = parseExclusions("overrides", raw.Overrides); err != nil {
		return nil, err
	}

	return def, nil
}

// Validate checks that the definition is complete enough to build a Calendar
func (d *Definition) Validate() error {
	if d.startDate.IsZero() {
		return fmt.Errorf("%w: start_date is required", ErrMalformedDefinition)
	}
	if d.endDate.IsZero() {
		return fmt.Errorf("%w: end_date is required", ErrMalformedDefinition)
	}
	if d.endDate.Before(d.startDate) {
		return fmt.Errorf("%w: end_date %s is before start_date %s", ErrMalformedDefinition,
			dateutil.Key(d.endDate), dateutil.Key(d.startDate))
	}
	if d.cycleSize < 0 {
		return fmt.Errorf("%w: cycle_size must not be negative", ErrMalformedDefinition)
	}
	if len(d.dayBlocks) > 0 && len(d.dayBlocks) != d.CycleSize() {
		return fmt.Errorf("%w: day_blocks has %d entries, cycle_size is %d",
			ErrMalformedDefinition, len(d.dayBlocks), d.CycleSize())
	}

	for _, list := range [][]calendar.Exclusion{d.overrides, d.exclusions} {
		for _, exclusion := range list {
			if standard, ok := exclusion.IncludedDay().(calendar.StandardDay); ok {
				if standard.Number < 1 || standard.Number > d.CycleSize() {
					return fmt.Errorf("%w: day_number %d outside 1..%d on %s", ErrMalformedDefinition,
						standard.Number, d.CycleSize(), dateutil.Key(exclusion.Start))
				}
			}
		}
	}

	return nil
}

// Name returns the display name of the term
func (d *Definition) Name() string { return d.name }

// StartDate returns the first date of the term
func (d *Definition) StartDate() time.Time { return d.startDate }

// EndDate returns the last date of the term
func (d *Definition) EndDate() time.Time { return d.endDate }

// Blocks returns every block letter in the schedule
func (d *Definition) Blocks() []string { return append([]string(nil), d.blocks...) }

// Periods returns the regular period times
func (d *Definition) Periods() []TimeRange { return append([]TimeRange(nil), d.periods...) }

// ExamDayPeriods returns the period times used on exam days
func (d *Definition) ExamDayPeriods() []TimeRange { return append([]TimeRange(nil), d.examDayPeriods...) }

// HalfDayPeriods returns the period times used on half days
func (d *Definition) HalfDayPeriods() []TimeRange { return append([]TimeRange(nil), d.halfDayPeriods...) }

// Exclusions returns the regular exclusions in document order
func (d *Definition) Exclusions() []calendar.Exclusion {
	return append([]calendar.Exclusion(nil), d.exclusions...)
}

// Overrides returns the manual overrides in document order
func (d *Definition) Overrides() []calendar.Exclusion {
	return append([]calendar.Exclusion(nil), d.overrides...)
}

// CycleSize returns the rotation length, falling back to the calendar default
func (d *Definition) CycleSize() int {
	if d.cycleSize <= 0 {
		return calendar.DefaultCycleSize
	}
	return d.cycleSize
}

// BlocksOfDay returns the blocks meeting on cycle day number (1-based)
func (d *Definition) BlocksOfDay(number int) ([]string, error) {
	if number < 1 || number > len(d.dayBlocks) {
		return nil, fmt.Errorf("no blocks defined for day %d", number)
	}
	return append([]string(nil), d.dayBlocks[number-1]...), nil
}

// Semesters returns the semester date ranges
func (d *Definition) Semesters() []calendar.DateRange {
	return append([]calendar.DateRange(nil), d.semesters...)
}

// SemesterCount returns the number of semesters
func (d *Definition) SemesterCount() int { return len(d.semesters) }

// SemesterOf returns the 1-based semester containing date
func (d *Definition) SemesterOf(date time.Time) mo.Option[int] {
	for i, semester := range d.semesters {
		if semester.Includes(date) {
			return mo.Some(i + 1)
		}
	}
	return mo.None[int]()
}

func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(dateutil.DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: invalid date %q", ErrMalformedDefinition, field, value)
	}
	return t, nil
}

// parseTimeRanges parses [[[h, m], [h, m]], ...]
func parseTimeRanges(field string, raw [][][]int) ([]TimeRange, error) {
	ranges := make([]TimeRange, 0, len(raw))
	for i, pair := range raw {
		if len(pair) != 2 {
			return nil, fmt.Errorf("%w: %s[%d] must have a start and an end", ErrMalformedDefinition, field, i)
		}
		start, err := parseClock(pair[0])
		if err != nil {
			return nil, fmt.Errorf("%w: %s[%d]: %v", ErrMalformedDefinition, field, i, err)
		}
		end, err := parseClock(pair[1])
		if err != nil {
			return nil, fmt.Errorf("%w: %s[%d]: %v", ErrMalformedDefinition, field, i, err)
		}
		ranges = append(ranges, TimeRange{Start: start, End: end})
	}
	return ranges, nil
}

func parseClock(raw []int) (ClockTime, error) {
	if len(raw) != 2 {
		return ClockTime{}, fmt.Errorf("time must be [hour, minute], got %v", raw)
	}
	if raw[0] < 0 || raw[0] > 23 || raw[1] < 0 || raw[1] > 59 {
		return ClockTime{}, fmt.Errorf("time %d:%02d out of range", raw[0], raw[1])
	}
	return ClockTime{Hour: raw[0], Minute: raw[1]}, nil
}

func parseExclusions(field string, raw []rawExclusion) ([]calendar.Exclusion, error) {
	exclusions := make([]calendar.Exclusion, 0, len(raw))
	for i, obj := range raw {
		exclusion, err := parseExclusion(obj)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", field, i, err)
		}
		exclusions = append(exclusions, exclusion)
	}
	return exclusions, nil
}

type exclusionParser func(obj rawExclusion) (calendar.Exclusion, error)

var exclusionParsers = map[string]exclusionParser{
	"holiday": func(obj rawExclusion) (calendar.Exclusion, error) {
		start, err := requireDate("start_date", obj.StartDate)
		if err != nil {
			return calendar.Exclusion{}, err
		}
		end, err := requireDate("end_date", obj.EndDate)
		if err != nil {
			return calendar.Exclusion{}, err
		}
		description, err := requireDescription(obj)
		if err != nil {
			return calendar.Exclusion{}, err
		}
		return calendar.NewExclusion(start, end, calendar.NewHoliday(description)), nil
	},
	"half_day": func(obj rawExclusion) (calendar.Exclusion, error) {
		date, err := requireDate("date", obj.Date)
		if err != nil {
			return calendar.Exclusion{}, err
		}
		if obj.Blocks == nil {
			return calendar.Exclusion{}, fmt.Errorf("%w: half_day requires blocks", ErrMalformedDefinition)
		}
		return calendar.NewSingleDayExclusion(date, calendar.HalfDay{Blocks: obj.Blocks}), nil
	},
	"exam_day": func(obj rawExclusion) (calendar.Exclusion, error) {
		date, err := requireDate("date", obj.Date)
		if err != nil {
			return calendar.Exclusion{}, err
		}
		if obj.Blocks == nil {
			return calendar.Exclusion{}, fmt.Errorf("%w: exam_day requires blocks", ErrMalformedDefinition)
		}
		return calendar.NewSingleDayExclusion(date, calendar.ExamDay{TestBlocks: obj.Blocks}), nil
	},
	"unknown": func(obj rawExclusion) (calendar.Exclusion, error) {
		date, err := requireDate("date", obj.Date)
		if err != nil {
			return calendar.Exclusion{}, err
		}
		description, err := requireDescription(obj)
		if err != nil {
			return calendar.Exclusion{}, err
		}
		return calendar.NewSingleDayExclusion(date, calendar.NewUnknownDay(description)), nil
	},
	"standard_day": func(obj rawExclusion) (calendar.Exclusion, error) {
		date, err := requireDate("date", obj.Date)
		if err != nil {
			return calendar.Exclusion{}, err
		}
		if obj.DayNumber == nil {
			return calendar.Exclusion{}, fmt.Errorf("%w: standard_day requires day_number", ErrMalformedDefinition)
		}
		return calendar.NewSingleDayExclusion(date, calendar.StandardDay{Number: *obj.DayNumber}), nil
	},
}

func parseExclusion(obj rawExclusion) (calendar.Exclusion, error) {
	parse, ok := exclusionParsers[obj.Type]
	if !ok {
		return calendar.Exclusion{}, fmt.Errorf("%w: unknown exclusion type %q", ErrMalformedDefinition, obj.Type)
	}
	return parse(obj)
}

func requireDate(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: %s is required", ErrMalformedDefinition, field)
	}
	return parseDate(field, value)
}

func requireDescription(obj rawExclusion) (string, error) {
	if obj.Description == nil {
		return "", fmt.Errorf("%w: %s requires description", ErrMalformedDefinition, obj.Type)
	}
	return *obj.Description, nil
}
