package zk

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

const MerkleDepth = 7 // 128 leaves

// ShotCircuit proves that the committed board holds Hit at (X, Y) without
// disclosing the cell salt. The leaf recomputed in-circuit matches the
// off-circuit commitment: leaf = H(H(H(x,y),bit),salt), and the Merkle walk
// uses the direction bits of index = y*10 + x.
type ShotCircuit struct {
	Bit  frontend.Variable              `gnark:",secret"`
	Salt frontend.Variable              `gnark:",secret"`
	Path [MerkleDepth]frontend.Variable `gnark:",secret"`

	Root frontend.Variable `gnark:",public"`
	X    frontend.Variable `gnark:",public"`
	Y    frontend.Variable `gnark:",public"`
	Hit  frontend.Variable `gnark:",public"`
}

func (c *ShotCircuit) Define(api frontend.API) error {
	api.AssertIsBoolean(c.Bit)
	api.AssertIsEqual(c.Hit, c.Bit) // reveal only Hit = Bit
	api.AssertIsLessOrEqual(c.X, 9)
	api.AssertIsLessOrEqual(c.Y, 9)

	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}

	// leaf = H(H(H(x,y),bit),salt)
	h.Reset()
	h.Write(c.X, c.Y)
	curr := h.Sum()
	h.Reset()
	h.Write(curr, c.Bit)
	curr = h.Sum()
	h.Reset()
	h.Write(curr, c.Salt)
	curr = h.Sum()

	// index bits drive the parity walk; index < 100 < 2^7 always fits
	idx := api.Add(api.Mul(c.Y, 10), c.X)
	dir := api.ToBinary(idx, MerkleDepth)

	for i := 0; i < MerkleDepth; i++ {
		h.Reset()
		isRight := dir[i]

		left := api.Select(isRight, c.Path[i], curr)
		right := api.Select(isRight, curr, c.Path[i])

		h.Write(left, right)
		curr = h.Sum()
	}

	api.AssertIsEqual(curr, c.Root)
	return nil
}
