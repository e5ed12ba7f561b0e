// ABOUTME: Scheduled sync daemon
// ABOUTME: Runs sync passes on a cron schedule, never overlapping, with a rotated log file
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
	"github.com/harperreed/gappsync/handlers"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

const defaultSchedule = "@every 15m"

// Scheduler triggers sync passes from cron. A tick that fires while the
// previous pass is still running is skipped.
type Scheduler struct {
	cron        *cron.Cron
	runner      handlers.Runner
	logger      *log.Logger
	maxOverride int
	ctx         context.Context
}

// NewScheduler creates a scheduler around a sync runner.
func NewScheduler(runner handlers.Runner, logger *log.Logger, maxOverride int) *Scheduler {
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron:        cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		runner:      runner,
		logger:      logger,
		maxOverride: maxOverride,
		ctx:         context.Background(),
	}
}

// Schedule registers the sync pass under a cron spec such as "@every 15m" or "*/10 * * * *".
func (s *Scheduler) Schedule(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

// Start begins firing ticks. Passes run with ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
	s.logger.Info("sync scheduler started")
}

// Stop stops the scheduler and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("sync scheduler stopped")
}

func (s *Scheduler) tick() {
	entry, err := s.runner.Run(s.ctx, s.maxOverride)
	if err != nil {
		s.logger.Warn("scheduled sync failed", "err", err)
		return
	}
	s.logger.Info("scheduled sync finished",
		"created", entry.Created,
		"updated", entry.Updated,
		"deleted", entry.Deleted,
		"processed", entry.Processed,
	)
}

// cronLogger adapts the structured logger to cron's logging interface.
type cronLogger struct {
	logger *log.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.logger.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.logger.Error(msg, append(keysAndValues, "err", err)...)
}

// NewDaemonCommand creates the daemon command.
func NewDaemonCommand(opts *RootOptions) *cobra.Command {
	var (
		schedule     string
		maxProcessed int
		logFile      string
	)

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run sync passes on a schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rotated := &lumberjack.Logger{
				Filename:   logFile,
				MaxSize:    10,
				MaxBackups: 3,
				MaxAge:     28,
			}
			defer func() { _ = rotated.Close() }()

			logger, err := newLogger(io.MultiWriter(cmd.ErrOrStderr(), rotated), opts.LogLevel)
			if err != nil {
				return err
			}
			opts.Logger = logger

			database, err := opts.openDatabase()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			scheduler := NewScheduler(opts.newJob(database), logger, maxProcessed)
			if err := scheduler.Schedule(schedule); err != nil {
				return err
			}

			logger.Info("daemon starting", "schedule", schedule, "db", opts.DBPath, "log_file", logFile)
			scheduler.Start(ctx)
			<-ctx.Done()
			scheduler.Stop()
			return nil
		},
	}

	cmd.Flags().StringVar(&schedule, "schedule", envOr("GAPPSYNC_SCHEDULE", defaultSchedule), "cron schedule for sync passes")
	cmd.Flags().IntVar(&maxProcessed, "max-processed", 0, "override the per-run contact budget")
	cmd.Flags().StringVar(&logFile, "log-file", filepath.Join(xdg.StateHome, "gappsync", "daemon.log"), "rotated daemon log file")
	return cmd
}
