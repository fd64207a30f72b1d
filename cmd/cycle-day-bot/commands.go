package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/username/cycle-day-bot/internal/api"
	"github.com/username/cycle-day-bot/internal/calendar"
	"github.com/username/cycle-day-bot/internal/daemon"
	"github.com/username/cycle-day-bot/internal/export"
	"github.com/username/cycle-day-bot/pkg/dateutil"
	"go.uber.org/zap"
)

func dayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "day <number|date expression>",
		Short: "Show the blocks of a cycle day or the schedule of a date",
		Example: `  cycle-day-bot day 3
  cycle-day-bot day tomorrow
  cycle-day-bot day next monday`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := initializeApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			fmt.Fprintln(cmd.OutOrStdout(), a.bot.Day(args, time.Now().In(a.cfg.Daemon.GetLocation())))
			return nil
		},
	}
}

func nextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next [date expression]",
		Short: "Show the next school day after a date (default today)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := initializeApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			loc := a.cfg.Daemon.GetLocation()
			from := dateutil.Today(loc)
			if len(args) > 0 {
				if from, err = dateutil.ParseExpression(strings.Join(args, " "), time.Now().In(loc)); err != nil {
					return err
				}
			}

			next, err := a.calendar.NextNonHoliday(from)
			if errors.Is(err, calendar.ErrOutOfRange) {
				fmt.Fprintf(cmd.OutOrStdout(), "No school days after %s in %s.\n", dateutil.Key(from), a.calendar.Name())
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), a.bot.DayOn(next))
			return nil
		},
	}
}

func weekCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "week [start date expression]",
		Short: "Show the schedule of several consecutive days",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 1 {
				return fmt.Errorf("--days must be positive")
			}

			a, err := initializeApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			loc := a.cfg.Daemon.GetLocation()
			start := dateutil.Today(loc)
			if len(args) > 0 {
				if start, err = dateutil.ParseExpression(strings.Join(args, " "), time.Now().In(loc)); err != nil {
					return err
				}
			}

			for _, line := range a.bot.Agenda(start, dateutil.AddDays(start, days-1)) {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "Number of days to show")
	return cmd
}

func myDayCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "myday",
		Short: "Show your classes for today",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := initializeApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			reply, err := a.bot.MyDay(cmd.Context(), userID, time.Now().In(a.cfg.Daemon.GetLocation()))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "Chat user ID")
	cmd.MarkFlagRequired("user")
	return cmd
}

func personalizeCmd() *cobra.Command {
	var userID, handle string

	cmd := &cobra.Command{
		Use:   "personalize",
		Short: "Link a chat user to a school handle",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := initializeApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			reply, err := a.bot.Personalize(cmd.Context(), userID, handle)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "Chat user ID")
	cmd.Flags().StringVar(&handle, "handle", "", "School handle")
	cmd.MarkFlagRequired("user")
	return cmd
}

func scheduleCmd() *cobra.Command {
	var handle string
	var semester int

	cmd := &cobra.Command{
		Use:     "schedule BLOCK=CLASS...",
		Short:   "Replace a student's classes for a semester",
		Example: `  cycle-day-bot schedule --handle jdoe --semester 1 A=Calculus C=Chemistry`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			classes := make(map[string]string, len(args))
			for _, arg := range args {
				block, class, ok := strings.Cut(arg, "=")
				if !ok || block == "" {
					return fmt.Errorf("expected BLOCK=CLASS, got %q", arg)
				}
				classes[strings.ToUpper(block)] = class
			}

			a, err := initializeApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			if semester < 1 || semester > a.definition.SemesterCount() {
				return fmt.Errorf("semester must be between 1 and %d", a.definition.SemesterCount())
			}
			known := make(map[string]bool)
			for _, block := range a.definition.Blocks() {
				known[block] = true
			}
			for block := range classes {
				if !known[block] {
					return fmt.Errorf("unknown block %q", block)
				}
			}

			if err := a.store.SaveSchedule(cmd.Context(), handle, semester, classes); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %d classes for %s (semester %d)\n", len(classes), handle, semester)
			return nil
		},
	}

	cmd.Flags().StringVar(&handle, "handle", "", "School handle")
	cmd.Flags().IntVar(&semester, "semester", 1, "Semester number")
	cmd.MarkFlagRequired("handle")
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the day lookup HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := initializeApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			handler := api.NewHandler(a.calendar, a.definition,
				export.NewExporter(a.calendar, logger), a.cfg.Daemon.GetLocation(), logger)
			router := api.NewRouter(handler, a.cfg.Server.AllowedOrigins)

			return api.Serve(ctx, a.cfg.Server.Addr, router, logger)
		},
	}
}

func daemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Announce the school day every morning",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := initializeApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			hour, minute := a.cfg.Daemon.GetDailyTime()
			d := daemon.NewScheduledDaemon(a.bot, cmd.OutOrStdout(), daemon.Schedule{
				DailyHour:   hour,
				DailyMinute: minute,
				Location:    a.cfg.Daemon.GetLocation(),
				SystemTray:  a.cfg.Daemon.SystemTray,
				Prefix:      a.cfg.Bot.Prefix,
			}, logger)

			logger.Info("Starting daemon", zap.String("term", a.calendar.Name()))
			return d.Start()
		},
	}
}

func exportCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the term as an iCalendar file",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := initializeApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			var w io.Writer = cmd.OutOrStdout()
			if outPath != "" && outPath != "-" {
				if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
					return fmt.Errorf("failed to create output directory: %w", err)
				}
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer f.Close()
				w = f
			}

			return export.NewExporter(a.calendar, logger).Write(w, time.Now())
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "-", "Output file (- for stdout)")
	return cmd
}
