// Package lifecycle owns the puzzle session state machine.
//
// Sessions move NotStarted -> InProgress -> Completed and never backwards.
// The Manager holds no locks: all cross-request coordination goes through the
// store's atomic CreateSession and CompareAndSetSession, and the Conflict and
// StaleState races those report are reconciled here by re-reading.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mcoot/puzzlegame/internal/dependencies/clock"
	"github.com/mcoot/puzzlegame/internal/dependencies/ids"
	"github.com/mcoot/puzzlegame/internal/model"
	"github.com/mcoot/puzzlegame/internal/storage"
)

const tracerName = "github.com/mcoot/puzzlegame/internal/services/lifecycle"

// maxStartAttempts bounds create retries when a conflicting session vanishes
// (completed) between our create and the re-read
const maxStartAttempts = 3

// CompletionPolicy decides how a repeated complete on a finished session behaves
type CompletionPolicy string

const (
	// CompletionIdempotent returns the already-completed session unchanged
	CompletionIdempotent CompletionPolicy = "idempotent"
	// CompletionStrict rejects repeated completion with ErrInvalidTransition
	CompletionStrict CompletionPolicy = "strict"
)

// ParseCompletionPolicy converts a config value into a CompletionPolicy
func ParseCompletionPolicy(s string) (CompletionPolicy, error) {
	switch p := CompletionPolicy(s); p {
	case CompletionIdempotent, CompletionStrict:
		return p, nil
	case "":
		return CompletionIdempotent, nil
	default:
		return "", fmt.Errorf("%w: unknown completion policy %q", model.ErrInvalidArgument, s)
	}
}

// EventPublisher receives session transitions after they are persisted
type EventPublisher interface {
	PublishSessionEvent(ctx context.Context, event model.SessionEvent)
}

type noopPublisher struct{}

func (noopPublisher) PublishSessionEvent(context.Context, model.SessionEvent) {}

// Config holds configuration for the lifecycle manager
type Config struct {
	CompletionPolicy CompletionPolicy
}

// DefaultConfig returns default lifecycle configuration
func DefaultConfig() Config {
	return Config{CompletionPolicy: CompletionIdempotent}
}

// StartResult is the outcome of Start
type StartResult struct {
	Session *model.PuzzleSession
	// Created is false when an existing in-progress session was returned
	Created bool
}

// Option customises a Manager
type Option func(*Manager)

// WithPublisher sets the publisher notified of session transitions
func WithPublisher(p EventPublisher) Option {
	return func(m *Manager) {
		if p != nil {
			m.publisher = p
		}
	}
}

// WithTracerProvider overrides the global OpenTelemetry tracer provider
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(m *Manager) {
		if tp != nil {
			m.tracer = tp.Tracer(tracerName)
		}
	}
}

// Manager enforces session state transitions on top of a SessionStore
type Manager struct {
	store     storage.SessionStore
	clock     clock.Clock
	ids       ids.Generator
	publisher EventPublisher
	policy    CompletionPolicy
	tracer    trace.Tracer
	logger    *slog.Logger
}

// New creates a new lifecycle Manager
func New(
	store storage.SessionStore,
	clock clock.Clock,
	ids ids.Generator,
	cfg Config,
	logger *slog.Logger,
	opts ...Option,
) *Manager {
	if cfg.CompletionPolicy == "" {
		cfg.CompletionPolicy = DefaultConfig().CompletionPolicy
	}
	m := &Manager{
		store:     store,
		clock:     clock,
		ids:       ids,
		publisher: noopPublisher{},
		policy:    cfg.CompletionPolicy,
		tracer:    otel.Tracer(tracerName),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Policy returns the completion policy this manager applies
func (m *Manager) Policy() CompletionPolicy {
	return m.policy
}

// now is truncated to milliseconds so every backend round-trips timestamps exactly
func (m *Manager) now() time.Time {
	return m.clock.Now().UTC().Truncate(time.Millisecond)
}

// Start returns the owner's in-progress session for ref, creating one if none exists
func (m *Manager) Start(ctx context.Context, owner model.OwnerID, ref model.PuzzleRef) (*StartResult, error) {
	ctx, span := m.tracer.Start(ctx, "lifecycle.Start", trace.WithAttributes(
		attribute.String("session.owner", string(owner)),
		attribute.String("puzzle.ref", string(ref)),
	))
	defer span.End()

	result, err := m.start(ctx, owner, ref)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("session.id", string(result.Session.ID)),
		attribute.Bool("session.created", result.Created),
	)
	return result, nil
}

func (m *Manager) start(ctx context.Context, owner model.OwnerID, ref model.PuzzleRef) (*StartResult, error) {
	if owner == "" {
		return nil, fmt.Errorf("%w: owner is required", model.ErrInvalidArgument)
	}
	if ref == "" {
		return nil, fmt.Errorf("%w: puzzle_ref is required", model.ErrInvalidArgument)
	}

	for attempt := 1; attempt <= maxStartAttempts; attempt++ {
		existing, err := m.store.FindActiveSession(ctx, owner, ref)
		if err == nil {
			if existing.State != model.SessionStateInProgress {
				return nil, fmt.Errorf("%w: active session %s is %s", model.ErrInvalidState, existing.ID, existing.State)
			}
			return &StartResult{Session: existing}, nil
		}
		if !errors.Is(err, model.ErrSessionNotFound) {
			return nil, err
		}

		now := m.now()
		session := &model.PuzzleSession{
			ID:        model.SessionID(m.ids.NewID()),
			Owner:     owner,
			PuzzleRef: ref,
			State:     model.SessionStateInProgress,
			StartedAt: &now,
		}

		created, err := m.store.CreateSession(ctx, session)
		if err == nil {
			m.logger.Info("session started",
				slog.String("session_id", string(created.ID)),
				slog.String("owner", string(owner)),
				slog.String("puzzle_ref", string(ref)),
			)
			m.publish(ctx, model.EventSessionStarted, created)
			return &StartResult{Session: created, Created: true}, nil
		}
		if !errors.Is(err, model.ErrConflict) {
			m.logger.Error("failed to create session",
				slog.String("owner", string(owner)),
				slog.String("puzzle_ref", string(ref)),
				slog.String("error", err.Error()),
			)
			return nil, err
		}

		// Someone else just created it; the next find_active picks it up
		m.logger.Debug("session create conflicted, re-reading",
			slog.String("owner", string(owner)),
			slog.String("puzzle_ref", string(ref)),
			slog.Int("attempt", attempt),
		)
	}

	m.logger.Warn("session start conflict unresolved",
		slog.String("owner", string(owner)),
		slog.String("puzzle_ref", string(ref)),
	)
	return nil, model.ErrConflict
}

// Complete moves an in-progress session to completed
func (m *Manager) Complete(ctx context.Context, id model.SessionID) (*model.PuzzleSession, error) {
	ctx, span := m.tracer.Start(ctx, "lifecycle.Complete", trace.WithAttributes(
		attribute.String("session.id", string(id)),
		attribute.String("completion.policy", string(m.policy)),
	))
	defer span.End()

	session, err := m.complete(ctx, id)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	return session, nil
}

func (m *Manager) complete(ctx context.Context, id model.SessionID) (*model.PuzzleSession, error) {
	current, err := m.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	switch current.State {
	case model.SessionStateInProgress:
	case model.SessionStateCompleted:
		return m.alreadyCompleted(current)
	default:
		return nil, fmt.Errorf("%w: session %s is %s", model.ErrInvalidTransition, id, current.State)
	}

	completedAt := m.now()
	if current.StartedAt != nil && completedAt.Before(*current.StartedAt) {
		completedAt = *current.StartedAt
	}

	updated, err := m.store.CompareAndSetSession(ctx, id, model.SessionStateInProgress, model.SessionUpdate{
		State:       model.SessionStateCompleted,
		CompletedAt: &completedAt,
	})
	switch {
	case err == nil:
		m.logger.Info("session completed",
			slog.String("session_id", string(id)),
			slog.String("owner", string(updated.Owner)),
			slog.String("puzzle_ref", string(updated.PuzzleRef)),
		)
		m.publish(ctx, model.EventSessionCompleted, updated)
		return updated, nil
	case errors.Is(err, model.ErrStaleState):
		// Lost the race to a concurrent transition; reconcile against what won
		latest, err := m.store.GetSession(ctx, id)
		if err != nil {
			return nil, err
		}
		if latest.State == model.SessionStateCompleted {
			return m.alreadyCompleted(latest)
		}
		return nil, fmt.Errorf("%w: session %s is %s", model.ErrInvalidTransition, id, latest.State)
	default:
		return nil, err
	}
}

func (m *Manager) alreadyCompleted(session *model.PuzzleSession) (*model.PuzzleSession, error) {
	if m.policy == CompletionStrict {
		return nil, fmt.Errorf("%w: session %s is already completed", model.ErrInvalidTransition, session.ID)
	}
	return session, nil
}

// Detail reads a session and derives its elapsed time
func (m *Manager) Detail(ctx context.Context, id model.SessionID) (*model.SessionDetail, error) {
	ctx, span := m.tracer.Start(ctx, "lifecycle.Detail", trace.WithAttributes(
		attribute.String("session.id", string(id)),
	))
	defer span.End()

	session, err := m.store.GetSession(ctx, id)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	return &model.SessionDetail{
		Session: session,
		Elapsed: session.Elapsed(m.clock.Now()),
	}, nil
}

// Active returns the owner's non-completed session for ref with its elapsed
// time, or model.ErrSessionNotFound
func (m *Manager) Active(ctx context.Context, owner model.OwnerID, ref model.PuzzleRef) (*model.SessionDetail, error) {
	ctx, span := m.tracer.Start(ctx, "lifecycle.Active", trace.WithAttributes(
		attribute.String("session.owner", string(owner)),
		attribute.String("puzzle.ref", string(ref)),
	))
	defer span.End()

	session, err := m.store.FindActiveSession(ctx, owner, ref)
	if err != nil {
		if !errors.Is(err, model.ErrSessionNotFound) {
			recordError(span, err)
		}
		return nil, err
	}
	return &model.SessionDetail{
		Session: session,
		Elapsed: session.Elapsed(m.clock.Now()),
	}, nil
}

func (m *Manager) publish(ctx context.Context, eventType model.EventType, session *model.PuzzleSession) {
	m.publisher.PublishSessionEvent(ctx, model.SessionEvent{
		Type:      eventType,
		Timestamp: m.clock.Now(),
		Session:   session.Clone(),
	})
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
