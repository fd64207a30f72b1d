package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samber/mo"
	"github.com/username/cycle-day-bot/internal/calendar"
	"github.com/username/cycle-day-bot/pkg/dateutil"
	"go.uber.org/zap"
)

const displayLayout = "Monday, January 2, 2006"

// Resolver answers day lookups for the current term
type Resolver interface {
	Name() string
	CycleSize() int
	Includes(date time.Time) bool
	DayOn(date time.Time) (calendar.Day, error)
	NextNonHoliday(date time.Time) (time.Time, error)
}

// Schedule exposes the block layout of the term definition
type Schedule interface {
	Blocks() []string
	BlocksOfDay(number int) ([]string, error)
	SemesterOf(date time.Time) mo.Option[int]
}

// Store holds per-student schedules and chat identity links
type Store interface {
	ReadSchedule(ctx context.Context, handle string, semester int, blocks []string) (map[string]string, error)
	RegisterAssociation(ctx context.Context, userID, handle string) error
	AssociatedHandle(ctx context.Context, userID string) (mo.Option[string], error)
}

// Bot turns chat commands into replies
type Bot struct {
	resolver Resolver
	schedule Schedule
	store    Store
	logger   *zap.Logger
}

// New creates a new Bot. store may be nil when personal commands are not
// needed.
func New(resolver Resolver, schedule Schedule, store Store, logger *zap.Logger) *Bot {
	return &Bot{
		resolver: resolver,
		schedule: schedule,
		store:    store,
		logger:   logger,
	}
}

// Day handles the "day" command: a cycle number, or a date expression
// resolved relative to now
func (b *Bot) Day(args []string, now time.Time) string {
	if len(args) == 0 {
		return `:question: Provide a day number or a date expression (like "tomorrow")`
	}

	if number, err := strconv.Atoi(args[0]); err == nil && strconv.Itoa(number) == args[0] {
		return b.DayNumber(number)
	}
	if _, err := strconv.ParseFloat(args[0], 64); err == nil && strings.Contains(args[0], ".") {
		return ":-1: In this rotation, there is no in between."
	}

	date, err := dateutil.ParseExpression(strings.Join(args, " "), now)
	if err != nil {
		return ":thinking: I don't know what you mean."
	}
	return b.DayOn(date)
}

// DayNumber lists the blocks that meet on a cycle day
func (b *Bot) DayNumber(number int) string {
	if number < 1 || number > b.resolver.CycleSize() {
		return fmt.Sprintf(":question: There is no Day %d. Days run from 1 to %d.", number, b.resolver.CycleSize())
	}

	blocks, err := b.schedule.BlocksOfDay(number)
	if err != nil {
		return fmt.Sprintf(":shrug: The blocks for Day %d have not been published.", number)
	}
	return fmt.Sprintf("Day %d has blocks %s", number, strings.Join(blocks, ", "))
}

// DayOn describes what happens on date
func (b *Bot) DayOn(date time.Time) string {
	day, err := b.resolver.DayOn(date)
	if errors.Is(err, calendar.ErrOutOfRange) {
		return fmt.Sprintf(":calendar: %s is outside of %s.", date.Format(displayLayout), b.resolver.Name())
	}
	if err != nil {
		b.logger.Error("Failed to resolve day", zap.Time("date", date), zap.Error(err))
		return ":warning: Something went wrong looking up that day."
	}
	return b.describe(date, day)
}

func (b *Bot) describe(date time.Time, day calendar.Day) string {
	when := date.Format(displayLayout)

	switch d := day.(type) {
	case calendar.StandardDay:
		blocks, err := b.schedule.BlocksOfDay(d.Number)
		if err != nil {
			return fmt.Sprintf("%s is a Day %d", when, d.Number)
		}
		return fmt.Sprintf("%s is a Day %d (blocks %s)", when, d.Number, strings.Join(blocks, ", "))
	case calendar.Holiday:
		return fmt.Sprintf("%s has no classes: %s", when, d.Description)
	case calendar.HalfDay:
		return fmt.Sprintf("%s is a half day with blocks %s", when, strings.Join(d.Blocks, ", "))
	case calendar.ExamDay:
		return fmt.Sprintf("%s is an exam day for blocks %s", when, strings.Join(d.TestBlocks, ", "))
	case calendar.UnknownDay:
		return fmt.Sprintf("%s has an unknown schedule: %s", when, d.Description)
	default:
		return fmt.Sprintf("%s is %s", when, day)
	}
}

// Personalize links a chat user to a school handle
func (b *Bot) Personalize(ctx context.Context, userID, handle string) (string, error) {
	if b.store == nil {
		return "", errors.New("personal schedules are not configured")
	}
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return ":question: Tell me your school handle, like `personalize jdoe`.", nil
	}

	if err := b.store.RegisterAssociation(ctx, userID, handle); err != nil {
		return "", err
	}
	return fmt.Sprintf(":white_check_mark: Linked you to %s.", handle), nil
}

// MyDay lists the user's classes on the current school day. On a holiday it
// looks ahead to the next school day.
func (b *Bot) MyDay(ctx context.Context, userID string, now time.Time) (string, error) {
	if b.store == nil {
		return "", errors.New("personal schedules are not configured")
	}

	handle, err := b.store.AssociatedHandle(ctx, userID)
	if err != nil {
		return "", err
	}
	if handle.IsAbsent() {
		return ":wave: I don't know who you are yet. Use `personalize <handle>` first.", nil
	}

	date := dateutil.Date(now)
	if !b.resolver.Includes(date) {
		return fmt.Sprintf(":calendar: Today is outside of %s.", b.resolver.Name()), nil
	}

	day, err := b.resolver.DayOn(date)
	if err != nil {
		return "", err
	}

	var prefix string
	if calendar.IsHoliday(day) {
		next, err := b.resolver.NextNonHoliday(date)
		if errors.Is(err, calendar.ErrOutOfRange) {
			return fmt.Sprintf(":tada: No more school days in %s.", b.resolver.Name()), nil
		}
		if err != nil {
			return "", err
		}
		prefix = fmt.Sprintf("No school today (%s). ", day)
		date = next
		if day, err = b.resolver.DayOn(date); err != nil {
			return "", err
		}
	}

	semester := b.schedule.SemesterOf(date)
	if semester.IsAbsent() {
		return prefix + fmt.Sprintf("%s is not in any semester.", date.Format(displayLayout)), nil
	}

	classes, err := b.store.ReadSchedule(ctx, handle.MustGet(), semester.MustGet(), b.schedule.Blocks())
	if err != nil {
		return "", err
	}

	blocks := b.meetingBlocks(day)
	lines := []string{prefix + b.describe(date, day)}
	for _, block := range blocks {
		class := classes[block]
		if class == "" {
			class = "free"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", block, class))
	}

	b.logger.Debug("Personal schedule resolved",
		zap.String("user_id", userID),
		zap.String("date", dateutil.Key(date)),
		zap.Int("blocks", len(blocks)))

	return strings.Join(lines, "\n"), nil
}

func (b *Bot) meetingBlocks(day calendar.Day) []string {
	switch d := day.(type) {
	case calendar.StandardDay:
		blocks, err := b.schedule.BlocksOfDay(d.Number)
		if err != nil {
			return nil
		}
		return blocks
	case calendar.HalfDay:
		return d.Blocks
	case calendar.ExamDay:
		return d.TestBlocks
	case calendar.Holiday, calendar.UnknownDay:
		return nil
	default:
		return nil
	}
}

// Agenda describes each date from start through end, one line per date
func (b *Bot) Agenda(start, end time.Time) []string {
	var lines []string
	for d := dateutil.Date(start); !d.After(dateutil.Date(end)); d = dateutil.AddDays(d, 1) {
		lines = append(lines, b.DayOn(d))
	}
	return lines
}
