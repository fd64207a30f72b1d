package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/username/cycle-day-bot/internal/calendar"
	"github.com/username/cycle-day-bot/pkg/dateutil"
	"go.uber.org/zap"
)

// Resolver answers day lookups for the served term
type Resolver interface {
	Name() string
	StartDate() time.Time
	EndDate() time.Time
	CycleSize() int
	DayOn(date time.Time) (calendar.Day, error)
	NextNonHoliday(date time.Time) (time.Time, error)
}

// Schedule exposes the block layout of the term
type Schedule interface {
	BlocksOfDay(number int) ([]string, error)
}

// Exporter writes the term as an iCalendar feed
type Exporter interface {
	Write(w io.Writer, stamp time.Time) error
}

// Handler holds the dependencies of the HTTP handlers
type Handler struct {
	resolver Resolver
	schedule Schedule
	exporter Exporter
	location *time.Location
	now      func() time.Time
	logger   *zap.Logger
}

// NewHandler creates a new Handler. "today" is resolved in loc.
func NewHandler(resolver Resolver, schedule Schedule, exporter Exporter, loc *time.Location, logger *zap.Logger) *Handler {
	if loc == nil {
		loc = time.Local
	}
	return &Handler{
		resolver: resolver,
		schedule: schedule,
		exporter: exporter,
		location: loc,
		now:      time.Now,
		logger:   logger,
	}
}

// DayResponse describes the schedule of one date
type DayResponse struct {
	Date        string   `json:"date"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Number      int      `json:"number,omitempty"`
	Blocks      []string `json:"blocks,omitempty"`
}

// NextResponse is the next school day after a date
type NextResponse struct {
	From string      `json:"from"`
	Next DayResponse `json:"next"`
}

// CycleResponse lists the blocks meeting on a cycle day
type CycleResponse struct {
	Number int      `json:"number"`
	Blocks []string `json:"blocks"`
}

// HealthResponse reports service liveness
type HealthResponse struct {
	Status string `json:"status"`
	Term   string `json:"term"`
	Start  string `json:"start_date"`
	End    string `json:"end_date"`
}

// ErrorResponse is returned for failed requests
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Term:   h.resolver.Name(),
		Start:  dateutil.Key(h.resolver.StartDate()),
		End:    dateutil.Key(h.resolver.EndDate()),
	})
}

// GetDay handles GET /api/v1/days/{date}
func (h *Handler) GetDay(w http.ResponseWriter, r *http.Request) {
	date, err := h.dateParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date", err)
		return
	}

	resp, err := h.dayResponse(date)
	if err != nil {
		h.writeLookupError(w, date, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetNextDay handles GET /api/v1/days/{date}/next
func (h *Handler) GetNextDay(w http.ResponseWriter, r *http.Request) {
	date, err := h.dateParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date", err)
		return
	}

	next, err := h.resolver.NextNonHoliday(date)
	if err != nil {
		h.writeLookupError(w, date, err)
		return
	}

	resp, err := h.dayResponse(next)
	if err != nil {
		h.writeLookupError(w, next, err)
		return
	}
	writeJSON(w, http.StatusOK, NextResponse{From: dateutil.Key(date), Next: resp})
}

// GetCycleDay handles GET /api/v1/cycle/{number}
func (h *Handler) GetCycleDay(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid day number", err)
		return
	}
	if number < 1 || number > h.resolver.CycleSize() {
		writeError(w, http.StatusNotFound,
			fmt.Sprintf("days run from 1 to %d", h.resolver.CycleSize()), nil)
		return
	}

	blocks, err := h.schedule.BlocksOfDay(number)
	if err != nil {
		writeError(w, http.StatusNotFound, "blocks not published", err)
		return
	}
	writeJSON(w, http.StatusOK, CycleResponse{Number: number, Blocks: blocks})
}

// GetICS handles GET /api/v1/calendar.ics
func (h *Handler) GetICS(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.exporter.Write(&buf, h.now()); err != nil {
		h.logger.Error("Failed to export calendar", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to export calendar", nil)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar.ics"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *Handler) dateParam(r *http.Request) (time.Time, error) {
	raw := chi.URLParam(r, "date")
	if strings.EqualFold(raw, "today") {
		return dateutil.Date(h.now().In(h.location)), nil
	}
	return dateutil.ParseDate(raw)
}

func (h *Handler) dayResponse(date time.Time) (DayResponse, error) {
	day, err := h.resolver.DayOn(date)
	if err != nil {
		return DayResponse{}, err
	}

	resp := DayResponse{
		Date:        dateutil.Key(date),
		Type:        day.Type().String(),
		Description: day.String(),
	}
	switch d := day.(type) {
	case calendar.StandardDay:
		resp.Number = d.Number
		if blocks, err := h.schedule.BlocksOfDay(d.Number); err == nil {
			resp.Blocks = blocks
		}
	case calendar.HalfDay:
		resp.Blocks = d.Blocks
	case calendar.ExamDay:
		resp.Blocks = d.TestBlocks
	}
	return resp, nil
}

func (h *Handler) writeLookupError(w http.ResponseWriter, date time.Time, err error) {
	if errors.Is(err, calendar.ErrOutOfRange) {
		writeError(w, http.StatusNotFound,
			fmt.Sprintf("%s is outside of %s", dateutil.Key(date), h.resolver.Name()), err)
		return
	}
	h.logger.Error("Failed to resolve day", zap.String("date", dateutil.Key(date)), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "failed to resolve day", nil)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
