package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/p-shah256/resume-optimizer/pkg/errors"
	"github.com/p-shah256/resume-optimizer/pkg/logger"
	"github.com/p-shah256/resume-optimizer/pkg/types"
)

const DefaultWriteTimeout = 10 * time.Second

// Artifact is one blob to persist for a request.
type Artifact struct {
	Prefix      string
	Filename    string
	ContentType string
	Data        []byte
}

// Persister writes artifacts best-effort. Each artifact is written
// independently under its own timeout; a failed write is logged as a
// StorageFailure and never affects the others or the caller.
type Persister struct {
	store   Store
	history History
	timeout time.Duration

	pending sync.WaitGroup
}

func NewPersister(store Store, history History, timeout time.Duration) *Persister {
	if store == nil {
		store = Nop{}
	}
	if history == nil {
		history = Nop{}
	}
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	return &Persister{store: store, history: history, timeout: timeout}
}

// Go runs fn in the background with a context that keeps ctx's values but
// not its cancellation, so writes outlive the request that started them.
// Each write inside fn is still bounded by the write timeout.
func (p *Persister) Go(ctx context.Context, fn func(ctx context.Context)) {
	ctx = context.WithoutCancel(ctx)
	p.pending.Add(1)
	go func() {
		defer p.pending.Done()
		fn(ctx)
	}()
}

// Wait blocks until every write started with Go has finished.
func (p *Persister) Wait() {
	p.pending.Wait()
}

// Save writes all artifacts concurrently, named with the shared timestamp
// at, and returns how many succeeded.
func (p *Persister) Save(ctx context.Context, at time.Time, artifacts ...Artifact) int {
	log := logger.FromContext(ctx).With("component", "storage", "operation", "save")

	var written atomic.Int32
	var g errgroup.Group
	for _, a := range artifacts {
		g.Go(func() error {
			name := ArtifactName(a.Prefix, at, a.Filename)
			wctx, cancel := context.WithTimeout(ctx, p.timeout)
			defer cancel()

			if err := p.store.Put(wctx, name, a.ContentType, a.Data); err != nil {
				serr := errors.E(errors.StorageFailure, "storage.put", err).WithKey(name)
				log.Warn("artifact not persisted", "name", name, "error", serr)
				return nil
			}
			written.Add(1)
			log.Debug("artifact persisted", "name", name, "bytes", len(a.Data))
			return nil
		})
	}
	// goroutines swallow their errors
	_ = g.Wait()
	return int(written.Load())
}

// Record stores a history row, logging any failure.
func (p *Persister) Record(ctx context.Context, rec types.OptimizationRecord) bool {
	wctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.history.Record(wctx, rec); err != nil {
		logger.FromContext(ctx).Warn("history record not persisted",
			"component", "storage",
			"id", rec.ID,
			"error", errors.E(errors.StorageFailure, "storage.record", err))
		return false
	}
	return true
}
