// Package merkle implements the salted board commitment: a fixed 128-leaf
// MiMC Merkle tree over the 100 cells of a 10x10 board, with single-cell
// inclusion proofs. Committer and verifier share the exact same leaf and
// node hashing, which is the wire-compatibility contract of the protocol.
package merkle

import (
	"errors"
	"math/big"

	bnmimc "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

const (
	// BoardCells is the number of real leaves (10x10 board).
	BoardCells = 100
	// TreeSize is the padded leaf count, next power of two >= BoardCells.
	TreeSize = 128
	// Depth is the proof length for a TreeSize tree.
	Depth = 7
)

var (
	ErrIndexOutOfRange = errors.New("merkle: index out of range")
	ErrBadLeafCount    = errors.New("merkle: expected exactly 100 cells")
	ErrBadCellValue    = errors.New("merkle: cell value must be 0 or 1")
)

// --- encode BN254 field elements as 32-byte big-endian ---
func feBytes(x *big.Int) []byte {
	b := x.Bytes()
	if len(b) == 32 {
		return b
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

func bytesToFE(b []byte) *big.Int { return new(big.Int).SetBytes(b) }

// HashNode is the two-input compression H(left, right) used at every level,
// consistent with the in-circuit MiMC.
func HashNode(left, right *big.Int) *big.Int {
	h := bnmimc.NewMiMC()
	h.Write(feBytes(left))
	h.Write(feBytes(right))
	return bytesToFE(h.Sum(nil))
}

// LeafHash binds coordinates, occupancy and salt into one cell commitment:
//
//	leaf(x, y, v, salt) = H(H(H(x, y), v), salt)
func LeafHash(x, y, value uint8, salt *big.Int) *big.Int {
	xy := HashNode(new(big.Int).SetUint64(uint64(x)), new(big.Int).SetUint64(uint64(y)))
	xv := HashNode(xy, new(big.Int).SetUint64(uint64(value)))
	return HashNode(xv, salt)
}

// CellSalt derives the per-cell salt from the committed master salt.
// Revealing one cell's salt must not weaken the other 99 commitments.
func CellSalt(master *big.Int, index int) *big.Int {
	return HashNode(master, new(big.Int).SetInt64(int64(index)))
}

// Index maps board coordinates to the leaf position.
func Index(x, y uint8) int { return int(y)*10 + int(x) }

// Coords is the inverse of Index.
func Coords(index int) (x, y uint8) {
	return uint8(index % 10), uint8(index / 10)
}

// Tree is a fixed-size binary Merkle tree stored level-by-level.
// Levels[0] holds the leaves, Levels[Depth][0] the root.
type Tree struct {
	Levels [][]*big.Int `json:"levels"`
}

// Build commits to the 100 cells in index order. Per-cell salts are derived
// from the master salt; indices 100..127 are padded with the zero element.
func Build(cells []uint8, salt *big.Int) (*Tree, error) {
	if len(cells) != BoardCells {
		return nil, ErrBadLeafCount
	}

	L0 := make([]*big.Int, TreeSize)
	for i := 0; i < TreeSize; i++ {
		if i >= BoardCells {
			L0[i] = new(big.Int)
			continue
		}
		if cells[i] != 0 && cells[i] != 1 {
			return nil, ErrBadCellValue
		}
		x, y := Coords(i)
		L0[i] = LeafHash(x, y, cells[i], CellSalt(salt, i))
	}

	levels := [][]*big.Int{L0}
	n := TreeSize
	for n > 1 {
		prev := levels[len(levels)-1]
		up := make([]*big.Int, n/2)
		for i := range up {
			up[i] = HashNode(prev[2*i], prev[2*i+1])
		}
		levels = append(levels, up)
		n /= 2
	}
	return &Tree{Levels: levels}, nil
}

// Root returns a copy of the tree root.
func (t *Tree) Root() *big.Int {
	return new(big.Int).Set(t.Levels[len(t.Levels)-1][0])
}

// Prove returns the ordered sibling list for a real cell index.
func (t *Tree) Prove(index int) ([]*big.Int, error) {
	if index < 0 || index >= BoardCells {
		return nil, ErrIndexOutOfRange
	}
	proof := make([]*big.Int, 0, Depth)
	cur := index
	for level := 0; level < Depth; level++ {
		sib := cur + 1
		if cur%2 == 1 {
			sib = cur - 1
		}
		proof = append(proof, new(big.Int).Set(t.Levels[level][sib]))
		cur /= 2
	}
	return proof, nil
}

// Verify replays the parity walk from leaf to root. Indices >= 100 are
// rejected so padding leaves can never be presented as board cells, and the
// proof must match the tree depth exactly.
func Verify(root, leaf *big.Int, proof []*big.Int, index int) bool {
	if root == nil || leaf == nil {
		return false
	}
	if index < 0 || index >= BoardCells {
		return false
	}
	if len(proof) != Depth {
		return false
	}
	cur := new(big.Int).Set(leaf)
	idx := index
	for _, sib := range proof {
		if sib == nil {
			return false
		}
		if idx%2 == 0 {
			cur = HashNode(cur, sib)
		} else {
			cur = HashNode(sib, cur)
		}
		idx /= 2
	}
	return cur.Cmp(root) == 0
}
