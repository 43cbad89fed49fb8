// Package escrow holds stakes and performs pot/fee arithmetic. All amounts
// use 256-bit unsigned integers; the fee is computed in basis points with
// truncation toward zero.
package escrow

import (
	"errors"
	"sync"

	"github.com/holiman/uint256"
)

// Address identifies a party on the ledger.
type Address string

// Ledger is the atomic fund-transfer primitive the protocol builds on.
// A transfer either fully succeeds or leaves both accounts untouched.
type Ledger interface {
	Transfer(from, to Address, amount *uint256.Int) error
}

var (
	ErrInsufficientFunds = errors.New("escrow: insufficient funds")
	ErrNotOwner          = errors.New("escrow: caller is not the owner")
	ErrBadAmount         = errors.New("escrow: amount must be positive")
)

// Book is an in-memory Ledger keeping one balance per account.
type Book struct {
	mu       sync.Mutex
	balances map[Address]*uint256.Int
}

func NewBook() *Book {
	return &Book{balances: make(map[Address]*uint256.Int)}
}

// Deposit credits an account. Used by the dev faucet and tests.
func (b *Book) Deposit(acct Address, amount *uint256.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur, ok := b.balances[acct]
	if !ok {
		cur = uint256.NewInt(0)
		b.balances[acct] = cur
	}
	cur.Add(cur, amount)
}

// Balance returns a copy of the account balance.
func (b *Book) Balance(acct Address) *uint256.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, ok := b.balances[acct]; ok {
		return new(uint256.Int).Set(cur)
	}
	return uint256.NewInt(0)
}

func (b *Book) Transfer(from, to Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrBadAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	src, ok := b.balances[from]
	if !ok || src.Lt(amount) {
		return ErrInsufficientFunds
	}
	dst, ok := b.balances[to]
	if !ok {
		dst = uint256.NewInt(0)
		b.balances[to] = dst
	}
	src.Sub(src, amount)
	dst.Add(dst, amount)
	return nil
}

// Escrow custodies active stakes in a vault account and tracks the house
// balance accumulated from victory fee skims.
type Escrow struct {
	ledger Ledger
	vault  Address
	owner  Address
	feeBps uint64

	mu    sync.Mutex
	house *uint256.Int
}

func New(ledger Ledger, vault, owner Address, feeBps uint64) *Escrow {
	return &Escrow{
		ledger: ledger,
		vault:  vault,
		owner:  owner,
		feeBps: feeBps,
		house:  uint256.NewInt(0),
	}
}

func (e *Escrow) Owner() Address { return e.owner }
func (e *Escrow) FeeBps() uint64 { return e.feeBps }
func (e *Escrow) Vault() Address { return e.vault }

// HouseBalance returns a copy of the accumulated fees.
func (e *Escrow) HouseBalance() *uint256.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return new(uint256.Int).Set(e.house)
}

// Stake draws a player's stake into the vault.
func (e *Escrow) Stake(player Address, amount *uint256.Int) error {
	return e.ledger.Transfer(player, e.vault, amount)
}

// SplitPot computes (pot, fee, payout) for a double-stake victory:
// pot = 2*stake, fee = pot*feeBps/10000 truncated, payout = pot - fee.
func (e *Escrow) SplitPot(stake *uint256.Int) (pot, fee, payout *uint256.Int) {
	pot = new(uint256.Int).Add(stake, stake)
	fee = new(uint256.Int).Mul(pot, uint256.NewInt(e.feeBps))
	fee.Div(fee, uint256.NewInt(10000))
	payout = new(uint256.Int).Sub(pot, fee)
	return pot, fee, payout
}

// SettleVictory pays the winner pot minus fee and credits the fee to the
// house. The fee stays in the vault; only the counter moves.
func (e *Escrow) SettleVictory(winner Address, stake *uint256.Int) (fee, payout *uint256.Int, err error) {
	_, fee, payout = e.SplitPot(stake)
	if err := e.ledger.Transfer(e.vault, winner, payout); err != nil {
		return nil, nil, err
	}
	e.mu.Lock()
	e.house.Add(e.house, fee)
	e.mu.Unlock()
	return fee, payout, nil
}

// SettleForfeit pays the full escrowed pot (stake times the number of
// staked players) to the claimant. No fee is skimmed on forfeiture.
func (e *Escrow) SettleForfeit(to Address, stake *uint256.Int, stakes uint64) (*uint256.Int, error) {
	pot := new(uint256.Int).Mul(stake, uint256.NewInt(stakes))
	if err := e.ledger.Transfer(e.vault, to, pot); err != nil {
		return nil, err
	}
	return pot, nil
}

// WithdrawHouse moves accumulated fees out of the vault. Owner only.
func (e *Escrow) WithdrawHouse(caller, to Address, amount *uint256.Int) error {
	if caller != e.owner {
		return ErrNotOwner
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if amount == nil || amount.IsZero() {
		return ErrBadAmount
	}
	if e.house.Lt(amount) {
		return ErrInsufficientFunds
	}
	if err := e.ledger.Transfer(e.vault, to, amount); err != nil {
		return err
	}
	e.house.Sub(e.house, amount)
	return nil
}
