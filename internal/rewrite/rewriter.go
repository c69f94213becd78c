// Package rewrite asks a text generator to tailor resume sections to a job
// description and validates what comes back.
package rewrite

import (
	"context"
	"fmt"
	"time"

	"github.com/p-shah256/resume-optimizer/pkg/errors"
	"github.com/p-shah256/resume-optimizer/pkg/logger"
	"github.com/p-shah256/resume-optimizer/pkg/types"
)

// Generator is a text-generation backend.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

const DefaultTimeout = 30 * time.Second

type Result struct {
	Sections  *types.SectionMap
	Fallbacks []types.Fallback
	Attempts  int
}

type Rewriter struct {
	gen     Generator
	retry   RetryPolicy
	timeout time.Duration
	guard   LineGuard
}

type Option func(*Rewriter)

func WithRetryPolicy(p RetryPolicy) Option {
	return func(r *Rewriter) { r.retry = p }
}

// WithTimeout bounds each generator call.
func WithTimeout(d time.Duration) Option {
	return func(r *Rewriter) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithLineGuard(g LineGuard) Option {
	return func(r *Rewriter) { r.guard = g }
}

func New(gen Generator, opts ...Option) *Rewriter {
	r := &Rewriter{
		gen:     gen,
		retry:   DefaultRetryPolicy(),
		timeout: DefaultTimeout,
		guard:   LineGuardOn,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rewrite returns a map with the same keys as secs. Generator failures and
// unparseable replies are retried per the retry policy; a parseable reply
// that misses keys is accepted with per-key fallbacks.
func (r *Rewriter) Rewrite(ctx context.Context, secs *types.SectionMap, jobDescription string) (*Result, error) {
	const op = "rewrite.rewrite"
	log := logger.FromContext(ctx).With("component", "rewrite", "operation", "rewrite")

	if secs.Len() == 0 {
		return &Result{Sections: types.NewSectionMap()}, nil
	}

	system, user, err := buildPrompt(secs, jobDescription)
	if err != nil {
		return nil, errors.E(errors.RewriteUnavailable, op, err)
	}

	var (
		lastErr  error
		lastKind errors.Kind
		attempts = r.retry.attempts()
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := r.retry.wait(ctx, attempt-1); err != nil {
				return nil, errors.E(errors.RewriteUnavailable, op, err).WithDetail("request cancelled")
			}
		}

		start := time.Now()
		raw, err := r.generate(ctx, system, user)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.E(errors.RewriteUnavailable, op, ctx.Err()).WithDetail("request cancelled")
			}
			log.Warn("generator call failed",
				"attempt", attempt,
				"duration_ms", time.Since(start).Milliseconds(),
				"error", err)
			lastErr, lastKind = err, errors.RewriteUnavailable
			continue
		}
		log.Info("received generator response",
			"attempt", attempt,
			"duration_ms", time.Since(start).Milliseconds(),
			"response_length", len(raw))

		out, fallbacks, err := Validate(secs, raw, r.guard)
		if err != nil {
			// the raw body stays in the logs only
			log.Warn("malformed generator response", "attempt", attempt, "error", err, "content", raw)
			lastErr, lastKind = err, errors.MalformedResponse
			continue
		}

		for _, fb := range fallbacks {
			log.Info("kept original section", "key", fb.Key, "reason", fb.Reason)
		}
		return &Result{Sections: out, Fallbacks: fallbacks, Attempts: attempt}, nil
	}

	log.Error("rewrite failed", "attempts", attempts, "kind", lastKind.String(), "error", lastErr)
	e := errors.E(lastKind, op, lastErr)
	detail := fmt.Sprintf("gave up after %d attempts", attempts)
	var ve *errors.Error
	if lastKind == errors.MalformedResponse && errors.As(lastErr, &ve) && ve.Detail != "" {
		detail += ": " + ve.Detail
	}
	return nil, e.WithDetail(detail)
}

func (r *Rewriter) generate(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.gen.Generate(ctx, system, user)
}

// Passthrough returns sections unchanged. It stands in for a Rewriter when
// no generator is configured.
type Passthrough struct{}

func (Passthrough) Rewrite(ctx context.Context, secs *types.SectionMap, _ string) (*Result, error) {
	logger.FromContext(ctx).Debug("rewriting disabled, passing sections through", "component", "rewrite")
	return &Result{Sections: secs.Clone()}, nil
}
