package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/noah-isme/training-progress-api/internal/models"
	"github.com/noah-isme/training-progress-api/internal/observability"
	"github.com/noah-isme/training-progress-api/internal/progress"
	"github.com/noah-isme/training-progress-api/internal/repository"
)

const defaultBulkConcurrency = 8

// BulkItem is one entry of a bulk progress update.
type BulkItem struct {
	Key   repository.ProgressKey
	Patch progress.Patch
}

// BulkResult reports the outcome of a single bulk entry. Exactly one of Progress and Err is set.
type BulkResult struct {
	Index    int
	Key      repository.ProgressKey
	Progress *models.ComponentProgress
	Err      error
}

// ProgressStore owns component progress records and serialises writers per key.
type ProgressStore interface {
	Get(ctx context.Context, key repository.ProgressKey) (models.ComponentProgress, error)
	Update(ctx context.Context, key repository.ProgressKey, patch progress.Patch, actor Actor) (models.ComponentProgress, error)
	BulkUpdate(ctx context.Context, items []BulkItem, actor Actor) []BulkResult
}

type progressStore struct {
	repo            repository.ComponentProgressRepository
	catalog         ComponentCatalog
	sink            ProgressEventSink
	logger          zerolog.Logger
	tracer          trace.Tracer
	sanitizer       *bluemonday.Policy
	locks           *keyedMutex
	bulkConcurrency int
	now             func() time.Time
}

// NewProgressStore constructs the progress store. sink may be nil when nothing listens for transitions.
func NewProgressStore(repo repository.ComponentProgressRepository, catalog ComponentCatalog, sink ProgressEventSink, bulkConcurrency int, logger zerolog.Logger) ProgressStore {
	if bulkConcurrency <= 0 {
		bulkConcurrency = defaultBulkConcurrency
	}

	return &progressStore{
		repo:            repo,
		catalog:         catalog,
		sink:            sink,
		logger:          logger.With().Str("component", "progress_store").Logger(),
		tracer:          otel.Tracer("github.com/noah-isme/training-progress-api/internal/service/progress"),
		sanitizer:       bluemonday.StrictPolicy(),
		locks:           newKeyedMutex(),
		bulkConcurrency: bulkConcurrency,
		now:             time.Now,
	}
}

func validKey(key repository.ProgressKey) error {
	if key.SessionID == 0 || key.EnrollmentID == 0 || key.ComponentID == 0 {
		return fmt.Errorf("%w: session, enrollment and component ids are required", progress.ErrValidation)
	}
	return nil
}

func (s *progressStore) Get(ctx context.Context, key repository.ProgressKey) (models.ComponentProgress, error) {
	if err := validKey(key); err != nil {
		return models.ComponentProgress{}, err
	}

	record, err := s.repo.Get(ctx, key)
	if err != nil {
		return models.ComponentProgress{}, notFound(err, "progress for enrollment %d component %d", key.EnrollmentID, key.ComponentID)
	}
	return record, nil
}

func (s *progressStore) Update(ctx context.Context, key repository.ProgressKey, patch progress.Patch, actor Actor) (models.ComponentProgress, error) {
	attrs := []attribute.KeyValue{
		attribute.Int("progress.session_id", int(key.SessionID)),
		attribute.Int("progress.enrollment_id", int(key.EnrollmentID)),
		attribute.Int("progress.component_id", int(key.ComponentID)),
	}
	spanCtx, span := s.tracer.Start(ctx, "progress.update", trace.WithAttributes(attrs...))
	defer span.End()

	started := time.Now()
	record, err := s.update(spanCtx, key, patch, actor)
	observability.ProgressUpdateLatency().Observe(time.Since(started).Seconds())
	if err != nil {
		span.RecordError(err)
		if !progress.IsDomainError(err) {
			span.SetStatus(codes.Error, "progress update failed")
		}
		return models.ComponentProgress{}, err
	}
	return record, nil
}

func (s *progressStore) update(ctx context.Context, key repository.ProgressKey, patch progress.Patch, actor Actor) (models.ComponentProgress, error) {
	if err := validKey(key); err != nil {
		return models.ComponentProgress{}, err
	}
	if patch.IsEmpty() {
		return models.ComponentProgress{}, fmt.Errorf("%w: patch carries no changes", progress.ErrValidation)
	}

	component, err := s.catalog.Component(ctx, key.SessionID, key.ComponentID)
	if err != nil {
		return models.ComponentProgress{}, err
	}

	patch = s.sanitize(patch)

	unlock := s.locks.Lock(key)
	defer unlock()

	var transitions []progress.Transition
	updated, err := s.repo.Mutate(ctx, key, func(record *models.ComponentProgress) error {
		next, applied, applyErr := progress.Apply(component, *record, patch, s.now().UTC())
		if applyErr != nil {
			return applyErr
		}
		*record = next
		transitions = applied
		return nil
	})
	if err != nil {
		return models.ComponentProgress{}, notFound(err, "progress for enrollment %d component %d", key.EnrollmentID, key.ComponentID)
	}

	s.emit(ctx, updated, transitions, actor)
	return updated, nil
}

func (s *progressStore) sanitize(patch progress.Patch) progress.Patch {
	if patch.InstructorNotes != nil {
		clean := s.stripMarkup(*patch.InstructorNotes)
		patch.InstructorNotes = &clean
	}
	if patch.ParticipantFeedback != nil {
		clean := s.stripMarkup(*patch.ParticipantFeedback)
		patch.ParticipantFeedback = &clean
	}
	return patch
}

// stripMarkup drops tags but keeps the text verbatim; the policy's entity escaping is undone.
func (s *progressStore) stripMarkup(text string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(text)))
}

func (s *progressStore) emit(ctx context.Context, record models.ComponentProgress, transitions []progress.Transition, actor Actor) {
	if s.sink == nil || len(transitions) == 0 {
		return
	}

	events := make([]models.ProgressEvent, 0, len(transitions))
	for _, transition := range transitions {
		event := models.ProgressEvent{
			EventID:        uuid.NewString(),
			SessionID:      record.SessionID,
			EnrollmentID:   record.EnrollmentID,
			ComponentID:    record.ComponentID,
			PreviousStatus: transition.From,
			NewStatus:      transition.To,
			Attempts:       record.Attempts,
			ActorID:        actor.ID,
			OccurredAt:     transition.At,
			Metadata: datatypes.JSONMap{
				"actor_role":        actor.Role,
				"attendance_status": string(record.AttendanceStatus),
			},
		}
		if transition.To.IsTerminal() && record.Score != nil {
			score := *record.Score
			event.Score = &score
			if record.Passed != nil {
				event.Metadata["passed"] = *record.Passed
			}
		}
		events = append(events, event)
	}

	if err := s.sink.Publish(ctx, events); err != nil {
		s.logger.Warn().Err(err).
			Uint("session_id", record.SessionID).
			Uint("enrollment_id", record.EnrollmentID).
			Uint("component_id", record.ComponentID).
			Msg("failed to publish progress events")
	}
}

func (s *progressStore) BulkUpdate(ctx context.Context, items []BulkItem, actor Actor) []BulkResult {
	results := make([]BulkResult, len(items))

	// entries sharing a key keep their input order; distinct keys run in parallel
	groups := make(map[repository.ProgressKey][]int)
	order := make([]repository.ProgressKey, 0, len(items))
	for index, item := range items {
		results[index] = BulkResult{Index: index, Key: item.Key}
		if _, seen := groups[item.Key]; !seen {
			order = append(order, item.Key)
		}
		groups[item.Key] = append(groups[item.Key], index)
	}

	var group errgroup.Group
	group.SetLimit(s.bulkConcurrency)

	for _, key := range order {
		indexes := groups[key]
		group.Go(func() error {
			for _, index := range indexes {
				record, err := s.Update(ctx, items[index].Key, items[index].Patch, actor)
				if err != nil {
					results[index].Err = err
					continue
				}
				updated := record
				results[index].Progress = &updated
			}
			return nil
		})
	}
	_ = group.Wait()

	succeeded, failed := 0, 0
	for _, result := range results {
		if result.Err != nil {
			failed++
		} else {
			succeeded++
		}
	}
	observability.ProgressBulkEntriesTotal().WithLabelValues("succeeded").Add(float64(succeeded))
	observability.ProgressBulkEntriesTotal().WithLabelValues("failed").Add(float64(failed))

	s.logger.Info().
		Int("entries", len(items)).
		Int("succeeded", succeeded).
		Int("failed", failed).
		Msg("bulk progress update processed")

	return results
}
