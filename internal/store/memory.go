package store

import "sync"

// Memory is an in-process Store for tests and ephemeral runs.
type Memory struct {
	mu       sync.Mutex
	games    map[uint64][]byte
	revealed map[RevealedMark]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		games:    make(map[uint64][]byte),
		revealed: make(map[RevealedMark]struct{}),
	}
}

func (m *Memory) SaveGame(id uint64, record []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(record))
	copy(cp, record)
	m.games[id] = cp
	return nil
}

func (m *Memory) MarkRevealed(gameID uint64, owner string, cell uint8) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revealed[RevealedMark{GameID: gameID, Owner: owner, Cell: cell}] = struct{}{}
	return nil
}

func (m *Memory) LoadGames() ([]GameRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]GameRecord, 0, len(m.games))
	for id, rec := range m.games {
		out = append(out, GameRecord{ID: id, Data: rec})
	}
	return out, nil
}

func (m *Memory) LoadRevealed() ([]RevealedMark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RevealedMark, 0, len(m.revealed))
	for mark := range m.revealed {
		out = append(out, mark)
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
