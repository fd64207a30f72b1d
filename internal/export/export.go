// Package export renders a term as an iCalendar feed
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"
	"github.com/username/cycle-day-bot/internal/calendar"
	"github.com/username/cycle-day-bot/pkg/dateutil"
	"go.uber.org/zap"
)

const productID = "-//cycle-day-bot//Cycle Days//EN"

// Resolver is the part of the calendar the exporter needs
type Resolver interface {
	Name() string
	StartDate() time.Time
	EndDate() time.Time
	DayOn(date time.Time) (calendar.Day, error)
}

// Exporter builds iCalendar documents for a term
type Exporter struct {
	resolver Resolver
	logger   *zap.Logger
}

// NewExporter creates a new Exporter
func NewExporter(resolver Resolver, logger *zap.Logger) *Exporter {
	return &Exporter{
		resolver: resolver,
		logger:   logger,
	}
}

// Build returns a calendar with one all-day event per weekday of the term
func (e *Exporter) Build(stamp time.Time) (*ical.Calendar, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropName, e.resolver.Name())

	start := dateutil.Date(e.resolver.StartDate())
	end := dateutil.Date(e.resolver.EndDate())

	events := 0
	for d := start; !d.After(end); d = dateutil.AddDays(d, 1) {
		if dateutil.IsWeekend(d) {
			continue
		}

		day, err := e.resolver.DayOn(d)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", dateutil.Key(d), err)
		}

		event := ical.NewEvent()
		event.Props.SetText(ical.PropUID, EventUID(e.resolver.Name(), d))
		event.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
		event.Props.SetDate(ical.PropDateTimeStart, d)
		event.Props.SetDate(ical.PropDateTimeEnd, dateutil.AddDays(d, 1))
		event.Props.SetText(ical.PropSummary, day.String())
		event.Props.SetText(ical.PropCategories, day.Type().String())
		if calendar.IsHoliday(day) {
			event.Props.SetText(ical.PropTransparency, "TRANSPARENT")
		}

		cal.Children = append(cal.Children, event.Component)
		events++
	}

	e.logger.Info("Calendar export built",
		zap.String("term", e.resolver.Name()),
		zap.Int("events", events))

	return cal, nil
}

// Write encodes the term calendar to w
func (e *Exporter) Write(w io.Writer, stamp time.Time) error {
	cal, err := e.Build(stamp)
	if err != nil {
		return err
	}
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}
	return nil
}

// EventUID derives a stable UID for the event of term on date, so
// re-exports update subscribed calendars in place
func EventUID(term string, date time.Time) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(term+"|"+dateutil.Key(date))).String()
}
