package protocol

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/holiman/uint256"

	"battleship-ledger/internal/escrow"
)

// Params are the protocol constants, fixed at engine construction.
type Params struct {
	MinStake *uint256.Int
	// TimeoutDuration is the forfeiture deadline in seconds. The boundary
	// is inclusive: elapsed >= duration is claimable.
	TimeoutDuration uint64
	// WinThreshold is the hit count that ends the game. 17 covers the full
	// fleet.
	WinThreshold uint8
}

// Store receives write-through persistence of accepted mutations. A nil
// store keeps the engine purely in-memory.
type Store interface {
	SaveGame(id uint64, record []byte) error
	MarkRevealed(gameID uint64, owner string, cell uint8) error
}

// ShotVerifier checks a zero-knowledge reveal proof against a committed
// root. Wired optionally; plain Merkle reveals never touch it.
type ShotVerifier interface {
	VerifyShot(root *big.Int, x, y, hit uint8, proof []byte) (bool, error)
}

// Engine is the state machine coordinator. One mutex serializes every
// operation, standing in for the totally-ordered ledger of the design:
// each operation runs as one indivisible transaction against its game.
type Engine struct {
	mu sync.Mutex

	params   Params
	reg      *Registry
	escrow   *escrow.Escrow
	clock    clock.Clock
	sink     Sink
	store    Store
	verifier ShotVerifier
}

func NewEngine(params Params, esc *escrow.Escrow, clk clock.Clock, sink Sink) *Engine {
	if sink == nil {
		sink = NopSink{}
	}
	return &Engine{
		params: params,
		reg:    NewRegistry(),
		escrow: esc,
		clock:  clk,
		sink:   sink,
	}
}

// SetStore attaches write-through persistence. Call before serving traffic.
func (e *Engine) SetStore(s Store) { e.store = s }

// SetShotVerifier enables the zero-knowledge reveal path.
func (e *Engine) SetShotVerifier(v ShotVerifier) { e.verifier = v }

// Restore reloads persisted records and revealed-cell marks.
func (e *Engine) Restore(records [][]byte, marks []RevealedMark) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, rec := range records {
		g, err := DecodeGame(rec)
		if err != nil {
			return fmt.Errorf("restore game: %w", err)
		}
		e.reg.Restore(g)
	}
	for _, m := range marks {
		e.reg.MarkRevealed(m.GameID, Address(m.Owner), m.Cell)
	}
	return nil
}

// RevealedMark mirrors one row of the revealed-cell set for restore.
type RevealedMark struct {
	GameID uint64
	Owner  string
	Cell   uint8
}

func (e *Engine) now() uint64 {
	return uint64(e.clock.Now().Unix())
}

// persist writes the record through to the store. Persistence errors are
// surfaced so the caller knows the ledger copy may be stale, but the
// in-memory mutation already happened and stands.
func (e *Engine) persist(g *Game) error {
	if e.store == nil {
		return nil
	}
	return e.store.SaveGame(g.ID, EncodeGame(g))
}

func (e *Engine) persistReveal(id uint64, owner Address, cell uint8) error {
	if e.store == nil {
		return nil
	}
	return e.store.MarkRevealed(id, string(owner), cell)
}

// --- read-only queries ---

// GetGame returns a copy of the record.
func (e *Engine) GetGame(id uint64) (Game, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	g, ok := e.reg.Get(id)
	if !ok {
		return Game{}, fmt.Errorf("%w: game %d", ErrNotFound, id)
	}
	return g.clone(), nil
}

// GameCount returns the number of games ever created.
func (e *Engine) GameCount() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reg.Count()
}

func (e *Engine) TimeoutDuration() uint64 { return e.params.TimeoutDuration }

func (e *Engine) HouseBalance() *uint256.Int { return e.escrow.HouseBalance() }

func (e *Engine) HouseFeeBps() uint64 { return e.escrow.FeeBps() }

func (e *Engine) Owner() Address { return e.escrow.Owner() }

// WithdrawHouse moves accumulated fees to the target account. Owner only.
func (e *Engine) WithdrawHouse(caller, to Address, amount *uint256.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.escrow.WithdrawHouse(caller, to, amount); err != nil {
		if err == escrow.ErrNotOwner {
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		return fmt.Errorf("%w: %v", ErrPayoutFailed, err)
	}
	return nil
}
