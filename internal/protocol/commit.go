package protocol

import (
	"fmt"
	"math/big"
)

func newZeroRoot() *big.Int { return new(big.Int) }

// CommitBoard sets the caller's board commitment root, exactly once. When
// both roots are in, the game moves to InProgress and the first attacker is
// picked by the parity of the enabling timestamp. That timestamp can be
// influenced by whoever lands the second commit, so this is pseudo-random
// at best, not a fairness guarantee.
func (e *Engine) CommitBoard(caller Address, id uint64, root *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.reg.Get(id)
	if !ok {
		return fmt.Errorf("%w: game %d", ErrNotFound, id)
	}
	if g.Status != WaitingForCommitments {
		return fmt.Errorf("%w: cannot commit in %s", ErrInvalidState, g.Status)
	}
	if !g.isPlayer(caller) {
		return fmt.Errorf("%w: not a player", ErrUnauthorized)
	}
	if root == nil || root.Sign() == 0 {
		return fmt.Errorf("%w: zero commitment root", ErrProofInvalid)
	}
	if g.rootOf(caller).Sign() != 0 {
		return fmt.Errorf("%w: board already committed", ErrAlreadyDone)
	}

	now := e.now()
	if caller == g.Player1 {
		g.Player1Root = new(big.Int).Set(root)
	} else {
		g.Player2Root = new(big.Int).Set(root)
	}
	g.LastMoveTime = now

	bothCommitted := g.Player1Root.Sign() != 0 && g.Player2Root.Sign() != 0
	if bothCommitted {
		g.Status = InProgress
		if now%2 == 0 {
			g.CurrentTurn = g.Player1
		} else {
			g.CurrentTurn = g.Player2
		}
	}
	if err := e.persist(g); err != nil {
		return err
	}

	attrs := map[string]string{
		"id": u64s(id),
		"by": string(caller),
	}
	if bothCommitted {
		attrs["firstTurn"] = string(g.CurrentTurn)
	}
	e.emit(EventBoardCommitted, attrs)
	return nil
}
