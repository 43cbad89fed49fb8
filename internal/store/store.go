// Package store persists game records and revealed-cell marks. Records are
// stored as the bit-exact binary encoding produced by the protocol codec;
// the store never interprets them.
package store

// GameRecord is one persisted game.
type GameRecord struct {
	ID   uint64
	Data []byte
}

// RevealedMark is one row of the monotone revealed-cell set.
type RevealedMark struct {
	GameID uint64
	Owner  string
	Cell   uint8
}

// Store is the persistence surface consumed by the engine (writes) and the
// bootstrap path (reads).
type Store interface {
	SaveGame(id uint64, record []byte) error
	MarkRevealed(gameID uint64, owner string, cell uint8) error
	LoadGames() ([]GameRecord, error)
	LoadRevealed() ([]RevealedMark, error)
	Close() error
}
