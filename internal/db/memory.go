package db

import (
	"context"
	"strings"
	"sync"

	"tradingapi/internal/trading"
)

// MemoryPositions is the in-process position store used when no bucket is
// configured.
type MemoryPositions struct {
	mu        sync.RWMutex
	positions []trading.Position
}

func (m *MemoryPositions) LoadPositions(context.Context) ([]trading.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]trading.Position, len(m.positions))
	copy(out, m.positions)
	return out, nil
}

func (m *MemoryPositions) SavePositions(_ context.Context, positions []trading.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions = append([]trading.Position(nil), positions...)
	return nil
}

type MemoryTradeLog struct {
	mu      sync.RWMutex
	entries []trading.LogEntry
}

func (m *MemoryTradeLog) Append(_ context.Context, entries ...trading.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entries...)
	return nil
}

func (m *MemoryTradeLog) Recent(_ context.Context, limit int) ([]trading.LogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		return []trading.LogEntry{}, nil
	}
	start := max(len(m.entries)-limit, 0)
	return append([]trading.LogEntry(nil), m.entries[start:]...), nil
}

func (m *MemoryTradeLog) ForDay(_ context.Context, day string) ([]trading.LogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []trading.LogEntry
	for _, e := range m.entries {
		if strings.HasPrefix(e.RecordedAt.UTC().Format("2006-01-02"), day) {
			out = append(out, e)
		}
	}
	return out, nil
}

var (
	_ trading.PositionStore = &MemoryPositions{}
	_ trading.TradeLog      = &MemoryTradeLog{}
)
