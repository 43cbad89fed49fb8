package protocol

import (
	"fmt"
	"strconv"

	"battleship-ledger/internal/merkle"
)

// Attack targets one opponent cell. It records the pending attack and hands
// the turn to the defender, who now owes a reveal for exactly that cell.
func (e *Engine) Attack(caller Address, id uint64, x, y uint8) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.reg.Get(id)
	if !ok {
		return fmt.Errorf("%w: game %d", ErrNotFound, id)
	}
	if g.Status != InProgress {
		return fmt.Errorf("%w: cannot attack in %s", ErrInvalidState, g.Status)
	}
	if g.HasPending {
		return fmt.Errorf("%w: attack on (%d,%d) awaits reveal", ErrInvalidState, g.PendingX, g.PendingY)
	}
	if caller != g.CurrentTurn {
		return fmt.Errorf("%w: not your turn", ErrUnauthorized)
	}
	if x > 9 || y > 9 {
		return fmt.Errorf("%w: (%d,%d)", ErrOutOfBounds, x, y)
	}
	defender := g.opponent(caller)
	cell := uint8(merkle.Index(x, y))
	if e.reg.Revealed(id, defender, cell) {
		return fmt.Errorf("%w: cell (%d,%d) already resolved", ErrAlreadyDone, x, y)
	}

	g.PendingX = x
	g.PendingY = y
	g.HasPending = true
	g.CurrentTurn = defender
	g.LastMoveTime = e.now()
	if err := e.persist(g); err != nil {
		return err
	}

	e.emit(EventAttackMade, map[string]string{
		"id": u64s(id),
		"by": string(caller),
		"x":  strconv.Itoa(int(x)),
		"y":  strconv.Itoa(int(y)),
	})
	return nil
}
