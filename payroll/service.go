/*
service.go - Entry point for every payroll operation

PURPOSE:
  Service bundles the collaborators every payroll operation needs and is the
  only place state changes happen. Run transitions, pay-line edits, benefit
  postings and refund payments all go through it.

CONCURRENCY:
  Work that touches a run holds that run's entry in Locks for its whole
  read-check-write cycle, so two callers on the same run serialize and the
  second one sees the first one's result. Different runs proceed in
  parallel. Store.WithTx makes each operation all-or-nothing, and
  Store.UpdateRun's version check catches writers outside this process.

  ┌──────────┐   capability   ┌──────────┐  lock(run)  ┌──────────────────┐
  │  caller  │ ─────────────▶ │ Service  │ ──────────▶ │ Store.WithTx     │
  └──────────┘     check      └──────────┘             │  read, validate, │
                                                       │  ledger, update  │
                                                       └──────────────────┘

SEE ALSO:
  - run.go: run lifecycle
  - paylines.go: pay line upsert and corrective edit
  - benefits.go: ancillary benefit review and posting
  - refunds.go: refund payment
*/
package payroll

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/payroll-engine/generic"
)

type Service struct {
	Store        Store
	Engine       *ExceptionEngine
	Capabilities generic.Capabilities[Operation]
	Locks        *generic.KeyedMutex
	Clock        generic.Clock
	Logger       *zap.Logger

	// NewID generates record ids. Defaults to random UUIDs.
	NewID func() string
}

// Option customizes a Service.
type Option func(*Service)

func WithClock(c generic.Clock) Option { return func(s *Service) { s.Clock = c } }

func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.Logger = l } }

func WithCapabilities(c generic.Capabilities[Operation]) Option {
	return func(s *Service) { s.Capabilities = c }
}

func WithIDGenerator(fn func() string) Option { return func(s *Service) { s.NewID = fn } }

func NewService(store Store, engine *ExceptionEngine, opts ...Option) *Service {
	s := &Service{
		Store:        store,
		Engine:       engine,
		Capabilities: DefaultCapabilities,
		Locks:        generic.NewKeyedMutex(),
		Clock:        generic.SystemClock,
		Logger:       zap.NewNop(),
		NewID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Engine == nil {
		s.Engine = NewExceptionEngine(MinimumWagePolicy{Default: generic.ZeroMoney})
	}
	return s
}

func (s *Service) now() time.Time { return s.Clock().UTC() }

// authorize checks the capability table and that the actor is identified.
func (s *Service) authorize(op Operation, actor generic.Actor) error {
	if err := s.Capabilities.Check(op, actor.Role); err != nil {
		return err
	}
	if actor.ID == "" {
		return generic.Required("actor_id")
	}
	return nil
}

// logFailure records a refused operation. Caller mistakes are logged at
// debug; anything else (storage, bugs) at error.
func (s *Service) logFailure(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	if generic.IsClientError(err) || generic.IsNotFound(err) || generic.IsRetryable(err) {
		s.Logger.Debug(msg, fields...)
		return
	}
	s.Logger.Error(msg, fields...)
}

// lockRun serializes work on one run.
func (s *Service) lockRun(id RunID) func() {
	return s.Locks.Lock("run:" + string(id))
}

// getRun reads a run, mapping absence to NotFoundError.
func getRun(ctx context.Context, store Store, id RunID) (*PayrollRun, error) {
	run, err := store.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, runNotFound(id)
	}
	return run, nil
}
