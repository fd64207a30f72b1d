package daemon

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/username/cycle-day-bot/pkg/dateutil"
	"go.uber.org/zap"
)

// DayTeller describes the schedule of a date in chat form
type DayTeller interface {
	DayOn(date time.Time) string
}

// Schedule controls when and how the daily announcement is made
type Schedule struct {
	DailyHour   int            // Hour of the announcement (0-23)
	DailyMinute int            // Minute of the announcement (0-59)
	Location    *time.Location // Zone the daily time and "today" are read in
	SystemTray  bool           // Show system tray icon
	Prefix      string         // Prepended to every announcement
}

// Daemon represents the daemon process
type Daemon struct {
	teller   DayTeller
	out      io.Writer
	schedule Schedule
	logger   *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	trayApp  *TrayApp
	now      func() time.Time

	mu               sync.Mutex // Protect against concurrent announcements
	lastRunDate      string     // Track last announced date to avoid duplicates
	lastRunTime      time.Time
	lastAnnouncement string
}

// NewScheduledDaemon creates a new daemon that announces the day once a day
func NewScheduledDaemon(teller DayTeller, out io.Writer, schedule Schedule, logger *zap.Logger) *Daemon {
	ctx, cancel := context.WithCancel(context.Background())

	if schedule.Location == nil {
		schedule.Location = time.Local
	}

	return &Daemon{
		teller:   teller,
		out:      out,
		schedule: schedule,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		now:      time.Now,
	}
}

// Start starts the daemon
func (d *Daemon) Start() error {
	// Initialize system tray if enabled (Windows only)
	if d.schedule.SystemTray {
		d.logger.Info("Initializing system tray")
		trayApp, err := NewTrayApp(d, d.logger)
		if err != nil {
			d.logger.Warn("Failed to initialize system tray", zap.Error(err))
			// Fall back to non-tray mode
			return d.startWithoutTray()
		}
		d.trayApp = trayApp
		// Run tray (blocks until Quit)
		d.trayApp.Run()
		return nil
	}

	d.logger.Info("Running without system tray")
	return d.startWithoutTray()
}

func (d *Daemon) startWithoutTray() error {
	d.runScheduledLogic()
	return nil
}

// runScheduledLogic runs the announcement loop (called from tray or standalone)
func (d *Daemon) runScheduledLogic() {
	d.logger.Info("Daemon scheduled logic started",
		zap.Int("daily_hour", d.schedule.DailyHour),
		zap.Int("daily_minute", d.schedule.DailyMinute),
		zap.String("timezone", d.schedule.Location.String()))

	// Announce immediately if the scheduled time already passed today
	now := d.now().In(d.schedule.Location)
	if d.scheduledPassed(now) {
		d.logger.Info("Scheduled time already passed today, announcing now",
			zap.Time("current_time", now))
		d.announce(false)
	}

	nextRun := d.calculateNextRun(d.now())
	d.logger.Info("Next announcement scheduled",
		zap.Time("next_run", nextRun),
		zap.Duration("wait_duration", nextRun.Sub(d.now())))

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// Check every minute if it's time to run
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			d.logger.Info("Daemon stopped", zap.Any("status", d.GetStatus()))
			if d.trayApp != nil {
				d.trayApp.Stop()
			}
			return

		case sig := <-sigChan:
			d.logger.Info("Received signal, shutting down",
				zap.String("signal", sig.String()))
			d.Stop()

		case tick := <-ticker.C:
			if !d.shouldRunAt(tick) {
				continue
			}
			if d.announce(false) {
				nextRun = d.calculateNextRun(tick)
				d.logger.Info("Next announcement scheduled",
					zap.Time("next_run", nextRun),
					zap.Duration("wait_duration", nextRun.Sub(tick)))
			}
		}
	}
}

// Stop stops the daemon
func (d *Daemon) Stop() {
	d.cancel()
}

// AnnounceNow announces today's schedule immediately, even if it was
// already announced (called from tray menu)
func (d *Daemon) AnnounceNow() {
	d.logger.Info("Manual announcement triggered")
	d.announce(true)
}

// GetStatus returns daemon status
func (d *Daemon) GetStatus() map[string]interface{} {
	d.mu.Lock()
	defer d.mu.Unlock()

	status := map[string]interface{}{
		"running":  d.ctx.Err() == nil,
		"next_run": d.calculateNextRun(d.now()).Format(time.RFC3339),
		"timezone": d.schedule.Location.String(),
	}
	if d.lastRunDate != "" {
		status["last_run_date"] = d.lastRunDate
		status["last_run_time"] = d.lastRunTime.Format(time.RFC3339)
		status["last_announcement"] = d.lastAnnouncement
	}
	return status
}

// StatusText renders GetStatus for the tray "Today" dialog
func (d *Daemon) StatusText() string {
	status := d.GetStatus()

	last, ok := status["last_announcement"].(string)
	if !ok {
		last = "Nothing announced yet"
	}
	return fmt.Sprintf("%s\n\nNext announcement: %s", last, status["next_run"])
}

// announce writes today's schedule to the output. Returns false when
// nothing was announced.
func (d *Daemon) announce(force bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now().In(d.schedule.Location)
	today := dateutil.Date(now)
	todayStr := dateutil.Key(today)

	if !force && d.lastRunDate == todayStr {
		d.logger.Debug("Already announced today, skipping",
			zap.String("last_run_date", d.lastRunDate),
			zap.Time("last_run_time", d.lastRunTime))
		return false
	}

	message := d.schedule.Prefix + d.teller.DayOn(today)
	if _, err := fmt.Fprintln(d.out, message); err != nil {
		d.logger.Error("Failed to write announcement", zap.Error(err))
		if d.trayApp != nil {
			d.trayApp.ShowNotification("Announcement Failed", fmt.Sprintf("Error: %v", err))
		}
		return false
	}

	d.lastRunDate = todayStr
	d.lastRunTime = now
	d.lastAnnouncement = message

	d.logger.Info("Day announced",
		zap.String("date", todayStr),
		zap.String("message", message))
	if d.trayApp != nil {
		d.trayApp.SetStatus(message)
	}
	return true
}

func (d *Daemon) scheduledPassed(now time.Time) bool {
	scheduledToday := time.Date(now.Year(), now.Month(), now.Day(),
		d.schedule.DailyHour, d.schedule.DailyMinute, 0, 0, d.schedule.Location)
	return !now.Before(scheduledToday)
}

// calculateNextRun calculates the next scheduled run time after now
func (d *Daemon) calculateNextRun(now time.Time) time.Time {
	local := now.In(d.schedule.Location)

	today := time.Date(local.Year(), local.Month(), local.Day(),
		d.schedule.DailyHour, d.schedule.DailyMinute, 0, 0, d.schedule.Location)

	// If target time already passed today, schedule for tomorrow
	if !local.Before(today) {
		return today.AddDate(0, 0, 1)
	}
	return today
}

// shouldRunAt checks if the announcement is due at the given time
func (d *Daemon) shouldRunAt(now time.Time) bool {
	local := now.In(d.schedule.Location)
	return local.Hour() == d.schedule.DailyHour &&
		local.Minute() == d.schedule.DailyMinute
}
