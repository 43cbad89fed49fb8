package protocol

import (
	"fmt"
	"math/big"
	"strconv"

	"battleship-ledger/internal/merkle"
)

// Reveal answers the pending attack. The defender discloses the targeted
// cell together with its salt and Merkle proof; a valid reveal marks the
// cell, credits the attacker on a hit, and returns the turn to the
// revealer. A failed reveal leaves the pending attack untouched so the
// defender can retry with a corrected proof.
func (e *Engine) Reveal(caller Address, id uint64, x, y uint8, isHit bool, salt *big.Int, proof []*big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, err := e.revealPreflight(caller, id, x, y)
	if err != nil {
		return err
	}

	bit := uint8(0)
	if isHit {
		bit = 1
	}
	leaf := merkle.LeafHash(x, y, bit, salt)
	if !merkle.Verify(g.rootOf(caller), leaf, proof, merkle.Index(x, y)) {
		return fmt.Errorf("%w: merkle verification failed", ErrProofInvalid)
	}

	return e.settleReveal(g, caller, x, y, isHit)
}

// RevealZK answers the pending attack with a zero-knowledge shot proof
// instead of the salt and sibling path, so not even the cell salt leaves
// the defender. State effects are identical to Reveal.
func (e *Engine) RevealZK(caller Address, id uint64, x, y uint8, isHit bool, proof []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.verifier == nil {
		return fmt.Errorf("%w: zk reveals not enabled", ErrInvalidState)
	}
	g, err := e.revealPreflight(caller, id, x, y)
	if err != nil {
		return err
	}

	bit := uint8(0)
	if isHit {
		bit = 1
	}
	ok, err := e.verifier.VerifyShot(g.rootOf(caller), x, y, bit, proof)
	if err != nil || !ok {
		return fmt.Errorf("%w: shot proof rejected", ErrProofInvalid)
	}

	return e.settleReveal(g, caller, x, y, isHit)
}

// revealPreflight checks phase, role and coordinate agreement. The caller
// must be the defender holding the turn, and (x,y) must match the pending
// attack exactly.
func (e *Engine) revealPreflight(caller Address, id uint64, x, y uint8) (*Game, error) {
	g, ok := e.reg.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: game %d", ErrNotFound, id)
	}
	if g.Status != InProgress || !g.HasPending {
		return nil, fmt.Errorf("%w: no pending attack", ErrInvalidState)
	}
	if caller != g.CurrentTurn || !g.isPlayer(caller) {
		return nil, fmt.Errorf("%w: reveal is owed by the defender", ErrUnauthorized)
	}
	if x != g.PendingX || y != g.PendingY {
		return nil, fmt.Errorf("%w: reveal for (%d,%d), pending attack is (%d,%d)",
			ErrProofInvalid, x, y, g.PendingX, g.PendingY)
	}
	return g, nil
}

func (e *Engine) settleReveal(g *Game, caller Address, x, y uint8, isHit bool) error {
	attacker := g.opponent(caller)
	cell := uint8(merkle.Index(x, y))

	e.reg.MarkRevealed(g.ID, caller, cell)
	if isHit {
		if attacker == g.Player1 {
			g.Player1Hits++
		} else {
			g.Player2Hits++
		}
	}
	g.HasPending = false
	g.PendingX = 0
	g.PendingY = 0
	g.CurrentTurn = caller
	g.LastMoveTime = e.now()

	if err := e.persist(g); err != nil {
		return err
	}
	if err := e.persistReveal(g.ID, caller, cell); err != nil {
		return err
	}

	e.emit(EventCellRevealed, map[string]string{
		"id":  u64s(g.ID),
		"by":  string(caller),
		"x":   strconv.Itoa(int(x)),
		"y":   strconv.Itoa(int(y)),
		"hit": strconv.FormatBool(isHit),
	})
	return nil
}
