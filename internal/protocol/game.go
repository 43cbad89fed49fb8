// Package protocol implements the on-ledger Battleship core: the game
// registry, the turn/ownership state machine, stake settlement hooks and
// timeout arbitration. Every operation is one atomic step against exactly
// one game record; a failed precondition leaves the record unchanged.
package protocol

import (
	"math/big"

	"github.com/holiman/uint256"

	"battleship-ledger/internal/escrow"
)

// Address aliases the ledger identity type.
type Address = escrow.Address

// Status is the game lifecycle phase. Transitions are strictly forward.
type Status uint8

const (
	WaitingForOpponent Status = iota
	WaitingForCommitments
	InProgress
	Finished
	Forfeited
)

func (s Status) String() string {
	switch s {
	case WaitingForOpponent:
		return "waiting_for_opponent"
	case WaitingForCommitments:
		return "waiting_for_commitments"
	case InProgress:
		return "in_progress"
	case Finished:
		return "finished"
	case Forfeited:
		return "forfeited"
	}
	return "unknown"
}

// Game is the aggregate record of one match. Field order matches the
// persisted record layout.
type Game struct {
	ID          uint64       `json:"id"`
	Player1     Address      `json:"player1"`
	Player2     Address      `json:"player2"`
	Player1Root *big.Int     `json:"player1Root"`
	Player2Root *big.Int     `json:"player2Root"`
	StakeAmount *uint256.Int `json:"stakeAmount"`
	CurrentTurn Address      `json:"currentTurn"`
	Player1Hits uint8        `json:"player1Hits"`
	Player2Hits uint8        `json:"player2Hits"`
	// LastMoveTime is the timestamp (unix seconds) of the most recent
	// accepted operation; it drives the forfeiture timeout.
	LastMoveTime uint64  `json:"lastMoveTime"`
	Status       Status  `json:"status"`
	Winner       Address `json:"winner"`
	PendingX     uint8   `json:"pendingAttackX"`
	PendingY     uint8   `json:"pendingAttackY"`
	HasPending   bool    `json:"hasPendingAttack"`
}

// isPlayer reports whether addr is one of the two joined parties.
func (g *Game) isPlayer(addr Address) bool {
	return addr == g.Player1 || (g.Player2 != "" && addr == g.Player2)
}

// opponent returns the other player. Caller must already be a player.
func (g *Game) opponent(addr Address) Address {
	if addr == g.Player1 {
		return g.Player2
	}
	return g.Player1
}

// rootOf returns the committed root of the given player, zero if uncommitted.
func (g *Game) rootOf(addr Address) *big.Int {
	if addr == g.Player1 {
		return g.Player1Root
	}
	return g.Player2Root
}

// hitsOf returns the attack hit counter of the given player.
func (g *Game) hitsOf(addr Address) uint8 {
	if addr == g.Player1 {
		return g.Player1Hits
	}
	return g.Player2Hits
}

// clone copies the record so queries never hand out the mutable instance.
func (g *Game) clone() Game {
	cp := *g
	if g.Player1Root != nil {
		cp.Player1Root = new(big.Int).Set(g.Player1Root)
	}
	if g.Player2Root != nil {
		cp.Player2Root = new(big.Int).Set(g.Player2Root)
	}
	if g.StakeAmount != nil {
		cp.StakeAmount = new(uint256.Int).Set(g.StakeAmount)
	}
	return cp
}
