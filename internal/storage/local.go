package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/p-shah256/resume-optimizer/pkg/types"
)

const historyFile = "history.jsonl"

// Local writes artifacts as files under a directory and appends history
// records to history.jsonl there.
type Local struct {
	dir string
	mu  sync.Mutex
}

func NewLocal(dir string) (*Local, error) {
	if dir == "" {
		return nil, fmt.Errorf("local storage: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", dir, err)
	}
	return &Local{dir: dir}, nil
}

func (l *Local) Put(ctx context.Context, name, _ string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if name != filepath.Base(name) || name == "." || name == ".." {
		return fmt.Errorf("invalid artifact name %q", name)
	}

	// write to a temp file first so readers never see a partial artifact
	path := filepath.Join(l.dir, name)
	tmp, err := os.CreateTemp(l.dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to move %s into place: %w", name, err)
	}
	return nil
}

func (l *Local) Record(ctx context.Context, rec types.OptimizationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal history record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(filepath.Join(l.dir, historyFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open history file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append history record: %w", err)
	}
	return nil
}

// Recent reads history.jsonl and returns up to limit records, newest first.
func (l *Local) Recent(ctx context.Context, limit int) ([]types.OptimizationRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(filepath.Join(l.dir, historyFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open history file: %w", err)
	}
	defer f.Close()

	var all []types.OptimizationRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec types.OptimizationRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		all = append(all, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}

	var out []types.OptimizationRecord
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (l *Local) Close() error { return nil }
