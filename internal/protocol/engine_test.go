package protocol

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"battleship-ledger/internal/escrow"
	"battleship-ledger/internal/game"
	"battleship-ledger/internal/merkle"
)

const (
	p1 = Address("hive:alice")
	p2 = Address("hive:bob")
)

func eth(n uint64) *uint256.Int {
	wei := uint256.NewInt(1_000_000_000_000_000_000)
	return new(uint256.Int).Mul(wei, uint256.NewInt(n))
}

type fixture struct {
	engine *Engine
	book   *escrow.Book
	esc    *escrow.Escrow
	clk    *clock.Mock
	events *Recorder
}

func newFixture(t *testing.T, threshold uint8) *fixture {
	t.Helper()
	book := escrow.NewBook()
	esc := escrow.New(book, "vault", "hive:owner", 100)
	clk := clock.NewMock()
	rec := &Recorder{}
	eng := NewEngine(Params{
		MinStake:        uint256.NewInt(1),
		TimeoutDuration: 600,
		WinThreshold:    threshold,
	}, esc, clk, rec)
	book.Deposit(p1, eth(10))
	book.Deposit(p2, eth(10))
	return &fixture{engine: eng, book: book, esc: esc, clk: clk, events: rec}
}

type secret struct {
	board game.Board
	salt  *big.Int
	tree  *merkle.Tree
}

func commitBoard(t *testing.T, saltSeed int64) secret {
	t.Helper()
	var b game.Board
	for c := 0; c < 5; c++ {
		b.Cells[0][c] = 1
	}
	for c := 0; c < 4; c++ {
		b.Cells[2][c] = 1
	}
	for c := 0; c < 3; c++ {
		b.Cells[4][c] = 1
	}
	for c := 5; c < 8; c++ {
		b.Cells[4][c] = 1
	}
	b.Cells[6][9] = 1
	b.Cells[7][9] = 1
	require.NoError(t, b.Validate())

	salt := big.NewInt(saltSeed)
	tree, err := merkle.Build(b.Flatten(), salt)
	require.NoError(t, err)
	return secret{board: b, salt: salt, tree: tree}
}

func (s secret) reveal(t *testing.T, x, y uint8) (bool, *big.Int, []*big.Int) {
	t.Helper()
	idx := merkle.Index(x, y)
	proof, err := s.tree.Prove(idx)
	require.NoError(t, err)
	hit := s.board.Cells[y][x] == 1
	return hit, merkle.CellSalt(s.salt, idx), proof
}

// startGame walks create/join/commit for both sides and forces the first
// turn to player1 via timestamp parity.
func startGame(t *testing.T, f *fixture) (uint64, secret, secret) {
	t.Helper()
	id, err := f.engine.CreateGame(p1, eth(1))
	require.NoError(t, err)
	require.NoError(t, f.engine.JoinGame(p2, id))

	s1 := commitBoard(t, 1111)
	s2 := commitBoard(t, 2222)
	require.NoError(t, f.engine.CommitBoard(p1, id, s1.tree.Root()))
	f.clk.Add(2 * time.Second) // keep the enabling timestamp even
	require.NoError(t, f.engine.CommitBoard(p2, id, s2.tree.Root()))

	g, err := f.engine.GetGame(id)
	require.NoError(t, err)
	require.Equal(t, InProgress, g.Status)
	require.Equal(t, p1, g.CurrentTurn)
	return id, s1, s2
}

func TestCreateGame(t *testing.T) {
	f := newFixture(t, 17)

	id, err := f.engine.CreateGame(p1, eth(1))
	require.NoError(t, err)
	require.Equal(t, uint64(0), id)
	require.Equal(t, uint64(1), f.engine.GameCount())

	g, err := f.engine.GetGame(id)
	require.NoError(t, err)
	require.Equal(t, WaitingForOpponent, g.Status)
	require.Equal(t, p1, g.Player1)
	require.Zero(t, g.Player1Root.Sign())
	require.Zero(t, g.Player2Root.Sign())
	require.Equal(t, eth(1), g.StakeAmount)
	require.Equal(t, eth(1), f.book.Balance("vault"))

	require.Equal(t, EventGameCreated, f.events.Events[0].Type)
}

func TestCreateGameInsufficientStake(t *testing.T) {
	f := newFixture(t, 17)
	_, err := f.engine.CreateGame(p1, uint256.NewInt(0))
	require.ErrorIs(t, err, ErrInsufficientStake)
	_, err = f.engine.CreateGame(p1, nil)
	require.ErrorIs(t, err, ErrInsufficientStake)
	require.Equal(t, uint64(0), f.engine.GameCount())
}

func TestCreateGameEscrowFailed(t *testing.T) {
	f := newFixture(t, 17)
	_, err := f.engine.CreateGame("hive:broke", eth(1))
	require.ErrorIs(t, err, ErrEscrowFailed)
	require.Equal(t, uint64(0), f.engine.GameCount())
}

func TestJoinGame(t *testing.T) {
	f := newFixture(t, 17)
	id, err := f.engine.CreateGame(p1, eth(1))
	require.NoError(t, err)

	require.ErrorIs(t, f.engine.JoinGame(p2, 99), ErrNotFound)
	require.ErrorIs(t, f.engine.JoinGame(p1, id), ErrUnauthorized)
	require.ErrorIs(t, f.engine.JoinGame("hive:broke", id), ErrEscrowFailed)

	require.NoError(t, f.engine.JoinGame(p2, id))
	g, err := f.engine.GetGame(id)
	require.NoError(t, err)
	require.Equal(t, WaitingForCommitments, g.Status)
	require.Equal(t, p2, g.Player2)
	require.Equal(t, eth(2), f.book.Balance("vault"))

	require.ErrorIs(t, f.engine.JoinGame(p2, id), ErrInvalidState)
}

func TestCommitBoardGating(t *testing.T) {
	f := newFixture(t, 17)
	id, err := f.engine.CreateGame(p1, eth(1))
	require.NoError(t, err)
	s1 := commitBoard(t, 1)

	// wrong phase
	require.ErrorIs(t, f.engine.CommitBoard(p1, id, s1.tree.Root()), ErrInvalidState)

	require.NoError(t, f.engine.JoinGame(p2, id))
	require.ErrorIs(t, f.engine.CommitBoard("hive:carol", id, s1.tree.Root()), ErrUnauthorized)
	require.ErrorIs(t, f.engine.CommitBoard(p1, id, new(big.Int)), ErrProofInvalid)

	require.NoError(t, f.engine.CommitBoard(p1, id, s1.tree.Root()))
	g, err := f.engine.GetGame(id)
	require.NoError(t, err)
	require.Equal(t, WaitingForCommitments, g.Status, "one commitment must not start the game")
	require.Empty(t, g.CurrentTurn)

	// write-once
	require.ErrorIs(t, f.engine.CommitBoard(p1, id, s1.tree.Root()), ErrAlreadyDone)

	s2 := commitBoard(t, 2)
	require.NoError(t, f.engine.CommitBoard(p2, id, s2.tree.Root()))
	g, err = f.engine.GetGame(id)
	require.NoError(t, err)
	require.Equal(t, InProgress, g.Status)
	require.True(t, g.CurrentTurn == p1 || g.CurrentTurn == p2)
}

func TestFirstTurnParity(t *testing.T) {
	f := newFixture(t, 17)

	id, err := f.engine.CreateGame(p1, eth(1))
	require.NoError(t, err)
	require.NoError(t, f.engine.JoinGame(p2, id))
	s1 := commitBoard(t, 1)
	s2 := commitBoard(t, 2)
	require.NoError(t, f.engine.CommitBoard(p1, id, s1.tree.Root()))

	f.clk.Add(3 * time.Second) // odd enabling timestamp
	require.NoError(t, f.engine.CommitBoard(p2, id, s2.tree.Root()))
	g, err := f.engine.GetGame(id)
	require.NoError(t, err)
	require.Equal(t, p2, g.CurrentTurn)
}

func TestAttackGating(t *testing.T) {
	f := newFixture(t, 17)
	id, s1, s2 := startGame(t, f)

	require.ErrorIs(t, f.engine.Attack(p1, 99, 0, 0), ErrNotFound)
	require.ErrorIs(t, f.engine.Attack(p2, id, 0, 0), ErrUnauthorized)
	require.ErrorIs(t, f.engine.Attack(p1, id, 10, 0), ErrOutOfBounds)
	require.ErrorIs(t, f.engine.Attack(p1, id, 0, 10), ErrOutOfBounds)

	require.NoError(t, f.engine.Attack(p1, id, 3, 4))
	g, err := f.engine.GetGame(id)
	require.NoError(t, err)
	require.True(t, g.HasPending)
	require.Equal(t, uint8(3), g.PendingX)
	require.Equal(t, uint8(4), g.PendingY)
	require.Equal(t, p2, g.CurrentTurn, "turn flips to the defender")

	// second attack before reveal
	require.ErrorIs(t, f.engine.Attack(p1, id, 5, 5), ErrInvalidState)
	require.ErrorIs(t, f.engine.Attack(p2, id, 5, 5), ErrInvalidState)

	// resolve, play the turn back to p1, then the same cell is a duplicate
	hit, salt, proof := s2.reveal(t, 3, 4)
	require.NoError(t, f.engine.Reveal(p2, id, 3, 4, hit, salt, proof))
	require.NoError(t, f.engine.Attack(p2, id, 6, 6))
	hit, salt, proof = s1.reveal(t, 6, 6)
	require.NoError(t, f.engine.Reveal(p1, id, 6, 6, hit, salt, proof))
	require.ErrorIs(t, f.engine.Attack(p1, id, 3, 4), ErrAlreadyDone)
}

func TestRevealFlow(t *testing.T) {
	f := newFixture(t, 17)
	id, _, s2 := startGame(t, f)

	// (3,4) is water on the fixture board; (0,0) is ship
	require.NoError(t, f.engine.Attack(p1, id, 0, 0))

	hit, salt, proof := s2.reveal(t, 0, 0)
	require.True(t, hit)

	// wrong caller (attacker cannot reveal)
	require.ErrorIs(t, f.engine.Reveal(p1, id, 0, 0, hit, salt, proof), ErrUnauthorized)
	// coordinate mismatch
	require.ErrorIs(t, f.engine.Reveal(p2, id, 1, 0, hit, salt, proof), ErrProofInvalid)
	// lying about the bit
	require.ErrorIs(t, f.engine.Reveal(p2, id, 0, 0, false, salt, proof), ErrProofInvalid)

	// pending attack survives failed reveals
	g, err := f.engine.GetGame(id)
	require.NoError(t, err)
	require.True(t, g.HasPending)

	require.NoError(t, f.engine.Reveal(p2, id, 0, 0, hit, salt, proof))
	g, err = f.engine.GetGame(id)
	require.NoError(t, err)
	require.False(t, g.HasPending)
	require.Equal(t, uint8(1), g.Player1Hits)
	require.Zero(t, g.Player2Hits)
	require.Equal(t, p2, g.CurrentTurn, "revealer becomes the next attacker")

	// replaying the reveal outside a pending attack
	require.ErrorIs(t, f.engine.Reveal(p2, id, 0, 0, hit, salt, proof), ErrInvalidState)
}

func TestRevealRejectsProofForOtherRoot(t *testing.T) {
	f := newFixture(t, 17)
	id, s1, _ := startGame(t, f)

	require.NoError(t, f.engine.Attack(p1, id, 0, 0))

	// proof valid against player1's tree, not the defender's root
	hit, salt, proof := s1.reveal(t, 0, 0)
	require.ErrorIs(t, f.engine.Reveal(p2, id, 0, 0, hit, salt, proof), ErrProofInvalid)
}

func TestMissDoesNotCountAsHit(t *testing.T) {
	f := newFixture(t, 17)
	id, _, s2 := startGame(t, f)

	require.NoError(t, f.engine.Attack(p1, id, 9, 9))
	hit, salt, proof := s2.reveal(t, 9, 9)
	require.False(t, hit)
	require.NoError(t, f.engine.Reveal(p2, id, 9, 9, hit, salt, proof))

	g, err := f.engine.GetGame(id)
	require.NoError(t, err)
	require.Zero(t, g.Player1Hits)
}

func TestClaimVictoryThreshold(t *testing.T) {
	f := newFixture(t, 2)
	id, s1, s2 := startGame(t, f)

	// p1 hits (0,0); p2 misses (9,9); p1 hits (1,0) -> threshold 2 reached
	require.NoError(t, f.engine.Attack(p1, id, 0, 0))
	hit, salt, proof := s2.reveal(t, 0, 0)
	require.NoError(t, f.engine.Reveal(p2, id, 0, 0, hit, salt, proof))

	// threshold-1 fails
	require.ErrorIs(t, f.engine.ClaimVictory(p1, id), ErrThresholdNotMet)

	require.NoError(t, f.engine.Attack(p2, id, 9, 9))
	hit, salt, proof = s1.reveal(t, 9, 9)
	require.NoError(t, f.engine.Reveal(p1, id, 9, 9, hit, salt, proof))

	require.NoError(t, f.engine.Attack(p1, id, 1, 0))
	hit, salt, proof = s2.reveal(t, 1, 0)
	require.NoError(t, f.engine.Reveal(p2, id, 1, 0, hit, salt, proof))

	require.ErrorIs(t, f.engine.ClaimVictory("hive:carol", id), ErrUnauthorized)
	require.ErrorIs(t, f.engine.ClaimVictory(p2, id), ErrThresholdNotMet)
	require.NoError(t, f.engine.ClaimVictory(p1, id))

	g, err := f.engine.GetGame(id)
	require.NoError(t, err)
	require.Equal(t, Finished, g.Status)
	require.Equal(t, p1, g.Winner)

	// payout: pot 2e18, fee 100bps = 2e16, payout 1.98e18
	require.Equal(t, uint256.NewInt(20_000_000_000_000_000), f.engine.HouseBalance())
	want := new(uint256.Int).Add(eth(9), uint256.NewInt(1_980_000_000_000_000_000))
	require.Equal(t, want, f.book.Balance(p1))

	// terminal records are immutable
	require.ErrorIs(t, f.engine.ClaimVictory(p1, id), ErrInvalidState)
	require.ErrorIs(t, f.engine.Attack(p1, id, 5, 5), ErrInvalidState)
	require.ErrorIs(t, f.engine.ClaimTimeout(p2, id), ErrInvalidState)
}

func TestClaimTimeoutCommitPhase(t *testing.T) {
	f := newFixture(t, 17)
	id, err := f.engine.CreateGame(p1, eth(1))
	require.NoError(t, err)
	require.NoError(t, f.engine.JoinGame(p2, id))

	s1 := commitBoard(t, 1)
	require.NoError(t, f.engine.CommitBoard(p1, id, s1.tree.Root()))

	// p2 never commits; p1 can claim once the deadline passes
	require.ErrorIs(t, f.engine.ClaimTimeout(p1, id), ErrTimeoutNotReached)
	// p2 has no timed-out counterparty (p1 committed)
	require.ErrorIs(t, f.engine.ClaimTimeout(p2, id), ErrNoTimeoutParty)

	f.clk.Add(599 * time.Second)
	require.ErrorIs(t, f.engine.ClaimTimeout(p1, id), ErrTimeoutNotReached)
	f.clk.Add(1 * time.Second) // exactly the boundary
	require.NoError(t, f.engine.ClaimTimeout(p1, id))

	g, err := f.engine.GetGame(id)
	require.NoError(t, err)
	require.Equal(t, Forfeited, g.Status)
	require.Equal(t, p1, g.Winner)
	// full double-stake pot, no fee
	require.Equal(t, new(uint256.Int).Add(eth(9), eth(2)), f.book.Balance(p1))
	require.True(t, f.engine.HouseBalance().IsZero())
}

func TestClaimTimeoutInProgress(t *testing.T) {
	f := newFixture(t, 17)
	id, _, _ := startGame(t, f)

	// p1 holds the turn and stalls; only p2 may claim
	f.clk.Add(600 * time.Second)
	require.ErrorIs(t, f.engine.ClaimTimeout(p1, id), ErrNoTimeoutParty)
	require.NoError(t, f.engine.ClaimTimeout(p2, id))

	g, err := f.engine.GetGame(id)
	require.NoError(t, err)
	require.Equal(t, Forfeited, g.Status)
	require.Equal(t, p2, g.Winner)
}

func TestClaimTimeoutPendingReveal(t *testing.T) {
	f := newFixture(t, 17)
	id, _, _ := startGame(t, f)

	require.NoError(t, f.engine.Attack(p1, id, 3, 4))
	// defender owes the reveal and stalls
	f.clk.Add(600 * time.Second)
	require.ErrorIs(t, f.engine.ClaimTimeout(p2, id), ErrNoTimeoutParty)
	require.NoError(t, f.engine.ClaimTimeout(p1, id))
}

func TestClaimTimeoutWrongPhase(t *testing.T) {
	f := newFixture(t, 17)
	id, err := f.engine.CreateGame(p1, eth(1))
	require.NoError(t, err)
	f.clk.Add(6000 * time.Second)
	require.ErrorIs(t, f.engine.ClaimTimeout(p1, id), ErrInvalidState)
	require.ErrorIs(t, f.engine.ClaimTimeout("hive:carol", id), ErrInvalidState)
}

func TestResign(t *testing.T) {
	f := newFixture(t, 17)
	id, _, _ := startGame(t, f)

	require.ErrorIs(t, f.engine.Resign("hive:carol", id), ErrUnauthorized)
	require.NoError(t, f.engine.Resign(p1, id))

	g, err := f.engine.GetGame(id)
	require.NoError(t, err)
	require.Equal(t, Forfeited, g.Status)
	require.Equal(t, p2, g.Winner)
	require.Equal(t, new(uint256.Int).Add(eth(9), eth(2)), f.book.Balance(p2))

	require.ErrorIs(t, f.engine.Resign(p1, id), ErrInvalidState)
}

func TestResignBeforeJoinRefunds(t *testing.T) {
	f := newFixture(t, 17)
	id, err := f.engine.CreateGame(p1, eth(1))
	require.NoError(t, err)
	require.NoError(t, f.engine.Resign(p1, id))

	g, err := f.engine.GetGame(id)
	require.NoError(t, err)
	require.Equal(t, Forfeited, g.Status)
	require.Empty(t, g.Winner)
	require.Equal(t, eth(10), f.book.Balance(p1))
}

func TestEndToEndScenario(t *testing.T) {
	f := newFixture(t, 17)
	id, _, s2 := startGame(t, f)

	require.NoError(t, f.engine.Attack(p1, id, 3, 4))
	g, err := f.engine.GetGame(id)
	require.NoError(t, err)
	require.True(t, g.HasPending)
	require.Equal(t, p2, g.CurrentTurn)

	// the fixture board has water at (3,4); test the hit path on (0,0) too
	hit, salt, proof := s2.reveal(t, 3, 4)
	require.NoError(t, f.engine.Reveal(p2, id, 3, 4, hit, salt, proof))

	g, err = f.engine.GetGame(id)
	require.NoError(t, err)
	require.False(t, g.HasPending)
	require.Equal(t, p2, g.CurrentTurn)

	types := []string{}
	for _, ev := range f.events.Events {
		types = append(types, ev.Type)
	}
	require.Equal(t, []string{
		EventGameCreated, EventGameJoined,
		EventBoardCommitted, EventBoardCommitted,
		EventAttackMade, EventCellRevealed,
	}, types)
}

// stubVerifier answers every shot proof the same way and records the root
// it was asked about.
type stubVerifier struct {
	ok   bool
	err  error
	root *big.Int
}

func (v *stubVerifier) VerifyShot(root *big.Int, x, y, hit uint8, proof []byte) (bool, error) {
	v.root = root
	return v.ok, v.err
}

func TestRevealZKMirrorsReveal(t *testing.T) {
	f := newFixture(t, 17)
	id, _, s2 := startGame(t, f)

	require.NoError(t, f.engine.Attack(p1, id, 0, 0))

	// the zk path is opt-in
	require.ErrorIs(t, f.engine.RevealZK(p2, id, 0, 0, true, []byte{1}), ErrInvalidState)

	v := &stubVerifier{ok: true}
	f.engine.SetShotVerifier(v)
	require.NoError(t, f.engine.RevealZK(p2, id, 0, 0, true, []byte{1}))
	require.Zero(t, v.root.Cmp(s2.tree.Root()), "proof must be checked against the defender's root")

	// state effects match a plain reveal exactly
	g, err := f.engine.GetGame(id)
	require.NoError(t, err)
	require.False(t, g.HasPending)
	require.Equal(t, uint8(1), g.Player1Hits)
	require.Zero(t, g.Player2Hits)
	require.Equal(t, p2, g.CurrentTurn, "revealer becomes the next attacker")

	// the revealed cell is spent for follow-up attacks, like a plain reveal
	require.NoError(t, f.engine.Attack(p2, id, 6, 6))
	require.NoError(t, f.engine.RevealZK(p1, id, 6, 6, false, []byte{1}))
	require.ErrorIs(t, f.engine.Attack(p1, id, 0, 0), ErrAlreadyDone)
}

func TestRevealZKRejectionKeepsPending(t *testing.T) {
	f := newFixture(t, 17)
	id, _, _ := startGame(t, f)
	require.NoError(t, f.engine.Attack(p1, id, 3, 4))

	f.engine.SetShotVerifier(&stubVerifier{ok: false})
	require.ErrorIs(t, f.engine.RevealZK(p2, id, 3, 4, false, []byte{1}), ErrProofInvalid)

	f.engine.SetShotVerifier(&stubVerifier{err: errors.New("malformed proof")})
	require.ErrorIs(t, f.engine.RevealZK(p2, id, 3, 4, false, []byte{1}), ErrProofInvalid)

	// gating mirrors the plain reveal path
	f.engine.SetShotVerifier(&stubVerifier{ok: true})
	require.ErrorIs(t, f.engine.RevealZK(p1, id, 3, 4, false, []byte{1}), ErrUnauthorized)
	require.ErrorIs(t, f.engine.RevealZK(p2, id, 5, 5, false, []byte{1}), ErrProofInvalid)

	g, err := f.engine.GetGame(id)
	require.NoError(t, err)
	require.True(t, g.HasPending, "failed zk reveals leave the pending attack")
	require.Zero(t, g.Player1Hits)
}

// failingStore simulates a broken persistence backend.
type failingStore struct{}

func (failingStore) SaveGame(uint64, []byte) error { return errors.New("disk full") }
func (failingStore) MarkRevealed(uint64, string, uint8) error { return nil }

func TestCreateGameSurvivesPersistFailure(t *testing.T) {
	f := newFixture(t, 17)
	f.engine.SetStore(failingStore{})

	// the stake moved and the game exists, so the id comes back with the
	// persistence error instead of being swallowed
	id, err := f.engine.CreateGame(p1, eth(1))
	require.Error(t, err)

	g, gerr := f.engine.GetGame(id)
	require.NoError(t, gerr)
	require.Equal(t, WaitingForOpponent, g.Status)
	require.Equal(t, p1, g.Player1)
	require.Equal(t, eth(1), f.book.Balance("vault"))
	require.Equal(t, EventGameCreated, f.events.Events[0].Type)
}

func TestWithdrawHouseThroughEngine(t *testing.T) {
	f := newFixture(t, 17)
	require.ErrorIs(t, f.engine.WithdrawHouse(p1, p1, uint256.NewInt(1)), ErrUnauthorized)
	require.ErrorIs(t, f.engine.WithdrawHouse("hive:owner", "hive:owner", uint256.NewInt(1)), ErrPayoutFailed)
	require.Equal(t, Address("hive:owner"), f.engine.Owner())
	require.Equal(t, uint64(100), f.engine.HouseFeeBps())
	require.Equal(t, uint64(600), f.engine.TimeoutDuration())
}
