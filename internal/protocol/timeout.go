package protocol

import "fmt"

// TimedOutParty is the pure arbitration rule: given a game and a caller, it
// names the counterparty that has missed its obligation, or "" when none
// exists. In the commitment phase the due party is the opponent whose root
// is still zero; in progress it is the holder of the turn (that player owes
// the next attack or reveal), claimable only by the other side.
func TimedOutParty(g *Game, caller Address) Address {
	if !g.isPlayer(caller) {
		return ""
	}
	switch g.Status {
	case WaitingForCommitments:
		opp := g.opponent(caller)
		if g.rootOf(opp).Sign() == 0 {
			return opp
		}
	case InProgress:
		if g.CurrentTurn != caller {
			return g.CurrentTurn
		}
	}
	return ""
}

// Expired reports whether the forfeiture deadline has passed. Inclusive
// boundary: elapsed == duration is claimable.
func Expired(g *Game, now, duration uint64) bool {
	return now >= g.LastMoveTime && now-g.LastMoveTime >= duration
}

// ClaimTimeout forfeits the game against an unresponsive counterparty and
// pays the full escrowed pot to the caller.
func (e *Engine) ClaimTimeout(caller Address, id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.reg.Get(id)
	if !ok {
		return fmt.Errorf("%w: game %d", ErrNotFound, id)
	}
	if g.Status != WaitingForCommitments && g.Status != InProgress {
		return fmt.Errorf("%w: cannot claim timeout in %s", ErrInvalidState, g.Status)
	}
	if !g.isPlayer(caller) {
		return fmt.Errorf("%w: not a player", ErrUnauthorized)
	}
	due := TimedOutParty(g, caller)
	if due == "" {
		return fmt.Errorf("%w: no obligated counterparty", ErrNoTimeoutParty)
	}
	if !Expired(g, e.now(), e.params.TimeoutDuration) {
		return fmt.Errorf("%w: %d seconds required", ErrTimeoutNotReached, e.params.TimeoutDuration)
	}

	stakes := uint64(2)
	if g.Player2 == "" {
		stakes = 1
	}
	pot, err := e.escrow.SettleForfeit(caller, g.StakeAmount, stakes)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPayoutFailed, err)
	}

	g.Status = Forfeited
	g.Winner = caller
	g.LastMoveTime = e.now()
	if err := e.persist(g); err != nil {
		return err
	}

	e.emit(EventGameForfeited, map[string]string{
		"id":       u64s(id),
		"timedOut": string(due),
		"winner":   string(caller),
		"pot":      pot.Dec(),
	})
	return nil
}
