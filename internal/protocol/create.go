package protocol

import (
	"fmt"

	"github.com/holiman/uint256"
)

// CreateGame escrows the caller's stake and allocates a new game in
// WaitingForOpponent. Returns the new id; on a persistence error the id is
// still returned, since the stake moved and the in-memory game stands.
func (e *Engine) CreateGame(caller Address, stake *uint256.Int) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if stake == nil || stake.Lt(e.params.MinStake) {
		return 0, fmt.Errorf("%w: minimum is %s", ErrInsufficientStake, e.params.MinStake.Dec())
	}
	if err := e.escrow.Stake(caller, stake); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrEscrowFailed, err)
	}

	g := &Game{
		Player1:      caller,
		Player1Root:  newZeroRoot(),
		Player2Root:  newZeroRoot(),
		StakeAmount:  new(uint256.Int).Set(stake),
		Status:       WaitingForOpponent,
		LastMoveTime: e.now(),
	}
	id := e.reg.Add(g)
	e.emit(EventGameCreated, map[string]string{
		"id":    u64s(id),
		"by":    string(caller),
		"stake": stake.Dec(),
	})
	return id, e.persist(g)
}

// JoinGame escrows a matching stake from a second player and moves the game
// to WaitingForCommitments.
func (e *Engine) JoinGame(caller Address, id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.reg.Get(id)
	if !ok {
		return fmt.Errorf("%w: game %d", ErrNotFound, id)
	}
	if g.Status != WaitingForOpponent {
		return fmt.Errorf("%w: cannot join in %s", ErrInvalidState, g.Status)
	}
	if caller == g.Player1 {
		return fmt.Errorf("%w: creator cannot join own game", ErrUnauthorized)
	}
	if err := e.escrow.Stake(caller, g.StakeAmount); err != nil {
		return fmt.Errorf("%w: %v", ErrEscrowFailed, err)
	}

	g.Player2 = caller
	g.Status = WaitingForCommitments
	g.LastMoveTime = e.now()
	if err := e.persist(g); err != nil {
		return err
	}

	e.emit(EventGameJoined, map[string]string{
		"id":     u64s(id),
		"joined": string(caller),
	})
	return nil
}
