// Package scheduler runs the once-per-day summary job. A minute-granularity
// cron tick polls the wall clock; the decision of whether to fire is a pure
// function of (current local time, last run date, configured trigger), which
// keeps it testable without real timers and drift-free across DST shifts and
// restarts. Restarting near the trigger time may re-run a date, which is
// harmless because summary writes are idempotent by (group, date).
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jpereira/zapchive/pkg/zapchive/archive"
)

// SummaryRunner generates and stores the summary for one (group, date).
// Implemented by summarize.Pipeline.
type SummaryRunner interface {
	GenerateAndStore(ctx context.Context, groupJID, date string) (string, error)
}

// GroupSource lists the groups with traffic inside a UTC range.
// Implemented by archive.Store.
type GroupSource interface {
	GetGroupsWithMessagesOnDate(startUTC, endUTC int64) ([]string, error)
}

// Config configures the daily scheduler.
type Config struct {
	// Enabled turns the daily job on/off.
	Enabled bool `yaml:"enabled"`

	// TriggerTime is the local time-of-day to fire, "HH:MM".
	TriggerTime string `yaml:"trigger_time"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		TriggerTime: "03:00",
	}
}

// Scheduler polls every minute and fires the summary job once per local day.
type Scheduler struct {
	cfg    Config
	loc    *time.Location
	groups GroupSource
	runner SummaryRunner
	logger *slog.Logger

	cron *cron.Cron

	mu sync.Mutex
	// lastRunDate is the local calendar date most recently handled.
	// Process-local: a restart resets it, and the idempotent summary
	// writes absorb the extra run.
	lastRunDate string
	// now is swappable for tests.
	now func() time.Time
}

// New creates a scheduler. loc is the timezone the trigger time and day
// boundaries are evaluated in.
func New(cfg Config, loc *time.Location, groups GroupSource, runner SummaryRunner, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	if cfg.TriggerTime == "" {
		cfg.TriggerTime = DefaultConfig().TriggerTime
	}
	return &Scheduler{
		cfg:    cfg,
		loc:    loc,
		groups: groups,
		runner: runner,
		logger: logger.With("component", "scheduler"),
		now:    time.Now,
	}
}

// Start registers the minute tick. Idempotent transition Idle -> Active.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.cfg.Enabled {
		s.logger.Info("daily scheduler disabled")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return
	}

	s.cron = cron.New()
	_, _ = s.cron.AddFunc("* * * * *", func() { s.Tick(ctx) })
	s.cron.Start()

	s.logger.Info("daily scheduler started",
		"trigger_time", s.cfg.TriggerTime,
		"timezone", s.loc.String(),
	)
}

// Stop cancels future ticks. In-flight work finishes naturally.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c != nil {
		c.Stop()
		s.logger.Info("daily scheduler stopped")
	}
}

// Tick evaluates one poll. Exported so a tick can be driven directly in tests
// or forced from an operator command.
func (s *Scheduler) Tick(ctx context.Context) {
	s.mu.Lock()
	date, fire := Evaluate(s.now().In(s.loc), s.cfg.TriggerTime, s.lastRunDate)
	if fire {
		// The date is marked handled before the run: per-group failures are
		// logged and retried on demand, never by re-firing the whole day.
		s.lastRunDate = date
	}
	s.mu.Unlock()

	if !fire {
		return
	}

	s.runDaily(ctx, date)
}

// Evaluate decides whether the daily job should fire for the tick at nowLocal.
// Returns yesterday's local calendar date and true when the local time-of-day
// matches the trigger minute and that date has not been handled yet.
func Evaluate(nowLocal time.Time, triggerTime, lastRunDate string) (date string, fire bool) {
	if nowLocal.Format("15:04") != triggerTime {
		return "", false
	}
	yesterday := nowLocal.AddDate(0, 0, -1).Format("2006-01-02")
	if yesterday == lastRunDate {
		return "", false
	}
	return yesterday, true
}

// runDaily summarizes every group with traffic on date, sequentially. One
// group's failure is logged and does not abort the rest.
func (s *Scheduler) runDaily(ctx context.Context, date string) {
	startUTC, endUTC, err := archive.ResolveDayRangeUTC(date, s.loc)
	if err != nil {
		s.logger.Error("daily run: bad date", "date", date, "error", err)
		return
	}

	jids, err := s.groups.GetGroupsWithMessagesOnDate(startUTC, endUTC)
	if err != nil {
		s.logger.Error("daily run: group discovery failed", "date", date, "error", err)
		return
	}

	s.logger.Info("daily summary run", "date", date, "groups", len(jids))

	for _, jid := range jids {
		if _, err := s.runner.GenerateAndStore(ctx, jid, date); err != nil {
			s.logger.Error("daily summary failed for group",
				"group", jid,
				"date", date,
				"error", err,
			)
			continue
		}
	}
}
