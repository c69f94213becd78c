// Package app wires configuration into a ready optimizer service. Both
// binaries share it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/p-shah256/resume-optimizer/internal/config"
	"github.com/p-shah256/resume-optimizer/internal/llm"
	"github.com/p-shah256/resume-optimizer/internal/matching"
	"github.com/p-shah256/resume-optimizer/internal/optimizer"
	"github.com/p-shah256/resume-optimizer/internal/rewrite"
	"github.com/p-shah256/resume-optimizer/internal/storage"
)

type App struct {
	Service *optimizer.Service
	Backend storage.Backend
	// History is nil when the backend cannot list records.
	History storage.HistoryReader

	client llm.Client
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	ext, err := cfg.Extractor()
	if err != nil {
		return nil, err
	}
	renderOpts, err := cfg.RenderOptions()
	if err != nil {
		return nil, err
	}

	a := &App{}
	var rewriter optimizer.Rewriter = rewrite.Passthrough{}
	if !strings.EqualFold(cfg.LLM.Provider, llm.ProviderNone) {
		a.client, err = llm.New(ctx, cfg.LLMConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
		guard := rewrite.LineGuardOff
		if cfg.LLM.LineGuard {
			guard = rewrite.LineGuardOn
		}
		policy := rewrite.DefaultRetryPolicy()
		policy.MaxAttempts = cfg.LLM.Attempts
		rewriter = rewrite.New(a.client,
			rewrite.WithRetryPolicy(policy),
			rewrite.WithTimeout(cfg.LLM.Timeout),
			rewrite.WithLineGuard(guard))
	} else {
		slog.Warn("LLM provider disabled, sections pass through unchanged", "component", "app")
	}

	a.Backend, err = storage.Open(ctx, cfg.StorageConfig())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	if hr, ok := a.Backend.(storage.HistoryReader); ok {
		a.History = hr
	}

	a.Service = optimizer.New(optimizer.Options{
		Extractor:      ext,
		Rewriter:       rewriter,
		Render:         renderOpts,
		Persister:      storage.NewPersister(a.Backend, a.Backend, cfg.Storage.WriteTimeout),
		Matcher:        matching.NewMatcher(),
		MaxUploadBytes: cfg.MaxUploadBytes(),
	})

	slog.Info("Optimizer ready",
		"component", "app",
		"provider", cfg.LLM.Provider,
		"storage", cfg.Storage.Driver,
		"heading_rule", cfg.Sections.HeadingRule)
	return a, nil
}

// Close waits for pending artifact writes, then releases the LLM client and
// the storage backend.
func (a *App) Close() error {
	if a.Service != nil {
		a.Service.Wait()
	}
	var errs []string
	if a.client != nil {
		if err := a.client.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if a.Backend != nil {
		if err := a.Backend.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close: %s", strings.Join(errs, "; "))
	}
	return nil
}
