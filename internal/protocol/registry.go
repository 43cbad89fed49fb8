package protocol

// Registry is the arena of game records addressed by integer id, plus the
// monotone revealed-cell set keyed (game, board owner, cell index). It holds
// no locking of its own; the engine serializes access.
type Registry struct {
	games    map[uint64]*Game
	nextID   uint64
	revealed map[revealKey]struct{}
}

type revealKey struct {
	game  uint64
	owner Address
	cell  uint8
}

func NewRegistry() *Registry {
	return &Registry{
		games:    make(map[uint64]*Game),
		revealed: make(map[revealKey]struct{}),
	}
}

// Add assigns the next id and stores the record.
func (r *Registry) Add(g *Game) uint64 {
	g.ID = r.nextID
	r.games[g.ID] = g
	r.nextID++
	return g.ID
}

func (r *Registry) Get(id uint64) (*Game, bool) {
	g, ok := r.games[id]
	return g, ok
}

// Count returns the number of games ever created.
func (r *Registry) Count() uint64 { return r.nextID }

// Revealed reports whether a cell of the given board owner was resolved.
func (r *Registry) Revealed(game uint64, owner Address, cell uint8) bool {
	_, ok := r.revealed[revealKey{game, owner, cell}]
	return ok
}

// MarkRevealed records a resolved cell. The flag is monotone.
func (r *Registry) MarkRevealed(game uint64, owner Address, cell uint8) {
	r.revealed[revealKey{game, owner, cell}] = struct{}{}
}

// Restore re-inserts a persisted record, keeping the id counter ahead of it.
func (r *Registry) Restore(g *Game) {
	r.games[g.ID] = g
	if g.ID >= r.nextID {
		r.nextID = g.ID + 1
	}
}
