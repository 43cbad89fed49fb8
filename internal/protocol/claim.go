package protocol

import "fmt"

// ClaimVictory ends the game once the caller's hit counter reaches the win
// threshold. The pot is split into payout and house fee; the transfer and
// the transition succeed or fail together.
func (e *Engine) ClaimVictory(caller Address, id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.reg.Get(id)
	if !ok {
		return fmt.Errorf("%w: game %d", ErrNotFound, id)
	}
	if g.Status != InProgress {
		return fmt.Errorf("%w: cannot claim in %s", ErrInvalidState, g.Status)
	}
	if !g.isPlayer(caller) {
		return fmt.Errorf("%w: not a player", ErrUnauthorized)
	}
	if g.hitsOf(caller) < e.params.WinThreshold {
		return fmt.Errorf("%w: %d of %d hits", ErrThresholdNotMet, g.hitsOf(caller), e.params.WinThreshold)
	}

	fee, payout, err := e.escrow.SettleVictory(caller, g.StakeAmount)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPayoutFailed, err)
	}

	g.Status = Finished
	g.Winner = caller
	g.LastMoveTime = e.now()
	if err := e.persist(g); err != nil {
		return err
	}

	e.emit(EventGameWon, map[string]string{
		"id":     u64s(id),
		"winner": string(caller),
		"payout": payout.Dec(),
		"fee":    fee.Dec(),
	})
	return nil
}

// Resign forfeits voluntarily. Before an opponent joins it simply refunds
// the creator; afterwards the opponent takes the full pot, fee-free, and
// the game ends Forfeited.
func (e *Engine) Resign(caller Address, id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.reg.Get(id)
	if !ok {
		return fmt.Errorf("%w: game %d", ErrNotFound, id)
	}
	if g.Status != WaitingForOpponent && g.Status != WaitingForCommitments && g.Status != InProgress {
		return fmt.Errorf("%w: cannot resign in %s", ErrInvalidState, g.Status)
	}
	if !g.isPlayer(caller) {
		return fmt.Errorf("%w: not a player", ErrUnauthorized)
	}

	if g.Status == WaitingForOpponent {
		if _, err := e.escrow.SettleForfeit(caller, g.StakeAmount, 1); err != nil {
			return fmt.Errorf("%w: %v", ErrPayoutFailed, err)
		}
		g.Status = Forfeited
		g.LastMoveTime = e.now()
		if err := e.persist(g); err != nil {
			return err
		}
		e.emit(EventGameForfeited, map[string]string{
			"id":       u64s(id),
			"resigned": string(caller),
		})
		return nil
	}

	winner := g.opponent(caller)
	pot, err := e.escrow.SettleForfeit(winner, g.StakeAmount, 2)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPayoutFailed, err)
	}

	g.Status = Forfeited
	g.Winner = winner
	g.LastMoveTime = e.now()
	if err := e.persist(g); err != nil {
		return err
	}

	e.emit(EventGameForfeited, map[string]string{
		"id":       u64s(id),
		"resigned": string(caller),
		"winner":   string(winner),
		"pot":      pot.Dec(),
	})
	return nil
}
