package storage

import (
	"context"
	"sync"

	"github.com/p-shah256/resume-optimizer/pkg/types"
)

type MemoryObject struct {
	Name        string
	ContentType string
	Data        []byte
}

// Memory keeps artifacts and history in process. It backs STORAGE_DRIVER=memory
// for local runs.
type Memory struct {
	mu      sync.Mutex
	objects []MemoryObject
	records []types.OptimizationRecord
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Put(ctx context.Context, name, contentType string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := make([]byte, len(data))
	copy(cp, data)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects = append(m.objects, MemoryObject{Name: name, ContentType: contentType, Data: cp})
	return nil
}

func (m *Memory) Record(ctx context.Context, rec types.OptimizationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *Memory) Objects() []MemoryObject {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MemoryObject, len(m.objects))
	copy(out, m.objects)
	return out
}

func (m *Memory) Records() []types.OptimizationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.OptimizationRecord, len(m.records))
	copy(out, m.records)
	return out
}

// Recent returns up to limit records, newest first.
func (m *Memory) Recent(ctx context.Context, limit int) ([]types.OptimizationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.OptimizationRecord
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
