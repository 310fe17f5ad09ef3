package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/noah-isme/training-progress-api/internal/models"
	"github.com/noah-isme/training-progress-api/internal/observability"
	"github.com/noah-isme/training-progress-api/internal/repository"
)

const (
	defaultMetricsSchedule = "@every 5m"
	metricsSessionLimit    = 50
	metricsRunTimeout      = 2 * time.Minute
)

// ProgressMetricsJob periodically publishes per-session overall status gauges.
type ProgressMetricsJob struct {
	sessions repository.SessionRepository
	queries  ProgressQueryService
	schedule string
	logger   zerolog.Logger
}

// NewProgressMetricsJob constructs the job. An empty schedule falls back to every five minutes.
func NewProgressMetricsJob(sessions repository.SessionRepository, queries ProgressQueryService, schedule string, logger zerolog.Logger) *ProgressMetricsJob {
	if schedule == "" {
		schedule = defaultMetricsSchedule
	}
	return &ProgressMetricsJob{
		sessions: sessions,
		queries:  queries,
		schedule: schedule,
		logger:   logger.With().Str("component", "progress_metrics_job").Logger(),
	}
}

// Start registers the job with a cron scheduler that stops when ctx is cancelled.
func (j *ProgressMetricsJob) Start(ctx context.Context) error {
	logger := cronLogger{logger: j.logger}
	scheduler := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	if _, err := scheduler.AddFunc(j.schedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, metricsRunTimeout)
		defer cancel()
		if err := j.RunOnce(runCtx); err != nil {
			j.logger.Error().Err(err).Msg("progress metrics refresh failed")
		}
	}); err != nil {
		return fmt.Errorf("schedule progress metrics job: %w", err)
	}

	scheduler.Start()
	j.logger.Info().Str("schedule", j.schedule).Msg("progress metrics job started")

	go func() {
		<-ctx.Done()
		<-scheduler.Stop().Done()
	}()
	return nil
}

// RunOnce recomputes the gauges for the most recently created sessions.
func (j *ProgressMetricsJob) RunOnce(ctx context.Context) error {
	sessions, err := j.sessions.ListRecent(ctx, metricsSessionLimit)
	if err != nil {
		return err
	}

	gauge := observability.SessionStudentsByStatus()
	gauge.Reset()

	refreshed := 0
	for _, session := range sessions {
		summary, err := j.queries.GetSessionSummary(ctx, session.ID)
		if err != nil {
			j.logger.Warn().Err(err).Uint("session_id", session.ID).Msg("skipping session in metrics refresh")
			continue
		}

		label := strconv.FormatUint(uint64(session.ID), 10)
		for _, status := range models.OverallStatuses {
			gauge.WithLabelValues(label, string(status)).Set(float64(summary.StatusCounts[status]))
		}
		refreshed++
	}

	j.logger.Debug().Int("sessions", refreshed).Msg("progress metrics refreshed")
	return nil
}

// cronLogger routes the scheduler's own messages into the job's zerolog stream.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
