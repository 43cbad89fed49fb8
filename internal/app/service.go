// Package app holds the player-side helpers: building a board commitment
// and producing reveal material for the protocol operations. Nothing here
// touches shared state; secrets stay with the player.
package app

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"battleship-ledger/internal/game"
	"battleship-ledger/internal/merkle"
	"battleship-ledger/internal/zk"
)

// Secret is the defender-side state needed to answer attacks.
type Secret struct {
	Board   game.Board   `json:"board"`
	SaltHex string       `json:"salt_hex"`
	Tree    *merkle.Tree `json:"tree"`
}

type CommitResult struct {
	RootHex string
	Secret  Secret
}

func InitBoard() (game.Board, error) {
	return game.GenerateRandomBoard()
}

// Commit validates the board and builds the salted commitment tree.
func Commit(b game.Board) (*CommitResult, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	saltBytes := make([]byte, 31) // keep the master salt below the BN254 modulus
	if _, err := rand.Read(saltBytes); err != nil {
		return nil, err
	}
	salt := new(big.Int).SetBytes(saltBytes)

	t, err := merkle.Build(b.Flatten(), salt)
	if err != nil {
		return nil, err
	}

	sec := Secret{
		Board:   b,
		SaltHex: fmt.Sprintf("0x%x", salt),
		Tree:    t,
	}
	return &CommitResult{
		RootHex: fmt.Sprintf("0x%x", t.Root()),
		Secret:  sec,
	}, nil
}

// RevealPayload is the material a defender submits for a plain reveal.
type RevealPayload struct {
	X       uint8    `json:"x"`
	Y       uint8    `json:"y"`
	Hit     bool     `json:"hit"`
	SaltHex string   `json:"salt_hex"`
	Proof   []string `json:"proof"`
}

// ProveReveal discloses one cell: its occupancy, its derived salt and the
// Merkle sibling path.
func ProveReveal(sec Secret, x, y uint8) (*RevealPayload, error) {
	if x > 9 || y > 9 {
		return nil, fmt.Errorf("row/col out of range")
	}
	master, err := ParseHex(sec.SaltHex)
	if err != nil {
		return nil, err
	}
	if sec.Tree == nil {
		return nil, fmt.Errorf("secret has no commitment tree")
	}

	idx := merkle.Index(x, y)
	proof, err := sec.Tree.Prove(idx)
	if err != nil {
		return nil, err
	}
	proofHex := make([]string, len(proof))
	for i, p := range proof {
		proofHex[i] = fmt.Sprintf("0x%x", p)
	}

	return &RevealPayload{
		X:       x,
		Y:       y,
		Hit:     sec.Board.Cells[y][x] == 1,
		SaltHex: fmt.Sprintf("0x%x", merkle.CellSalt(master, idx)),
		Proof:   proofHex,
	}, nil
}

// ProveRevealZK produces a groth16 shot proof instead of disclosing the
// cell salt.
func ProveRevealZK(sec Secret, keysDir string, x, y uint8) (hit bool, proof []byte, err error) {
	if x > 9 || y > 9 {
		return false, nil, fmt.Errorf("row/col out of range")
	}
	master, err := ParseHex(sec.SaltHex)
	if err != nil {
		return false, nil, err
	}
	if sec.Tree == nil {
		return false, nil, fmt.Errorf("secret has no commitment tree")
	}

	idx := merkle.Index(x, y)
	path, err := sec.Tree.Prove(idx)
	if err != nil {
		return false, nil, err
	}

	bit := sec.Board.Cells[y][x]
	proofBin, err := zk.ProveShot(keysDir, bit, x, y, merkle.CellSalt(master, idx), path, sec.Tree.Root())
	if err != nil {
		return false, nil, err
	}
	return bit == 1, proofBin, nil
}

// ParseHex parses a 0x-prefixed big integer.
func ParseHex(s string) (*big.Int, error) {
	if len(s) < 3 || (s[:2] != "0x" && s[:2] != "0X") {
		return nil, fmt.Errorf("missing 0x prefix in %q", s)
	}
	n, ok := new(big.Int).SetString(s[2:], 16)
	if !ok {
		return nil, fmt.Errorf("cannot parse hex value %q", s)
	}
	return n, nil
}
