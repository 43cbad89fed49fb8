// Package game holds the player-side board model. Fleet shape is validated
// here before commitment; the protocol core only ever sees the Merkle root.
package game

import (
	"errors"
	"math/rand"
	"sort"
)

// Board is a 10x10 grid. Cell: 0=water, 1=ship.
type Board struct {
	Cells [10][10]uint8 `json:"cells"`
}

// ShipSizes is the fixed fleet composition, 17 occupied cells in total.
var ShipSizes = []int{5, 4, 3, 3, 2}

// TotalShipCells is the number of occupied cells of a valid fleet.
const TotalShipCells = 17

var (
	ErrNonBinaryCell = errors.New("board has non-binary cell")
	ErrBentShip      = errors.New("ship is not a straight line")
	ErrWrongFleet    = errors.New("fleet composition must be {5,4,3,3,2}")
	ErrTouchingShips = errors.New("ships may not touch, diagonals included")
)

// Validate checks binary cells, straight ships, exact fleet composition and
// the no-adjacency rule (diagonals included).
func (b *Board) Validate() error {
	for r := 0; r < 10; r++ {
		for c := 0; c < 10; c++ {
			if v := b.Cells[r][c]; v != 0 && v != 1 {
				return ErrNonBinaryCell
			}
		}
	}

	// Label orthogonally-connected components and record their lengths.
	var label [10][10]int
	lengths := []int{}
	for r := 0; r < 10; r++ {
		for c := 0; c < 10; c++ {
			if b.Cells[r][c] != 1 || label[r][c] != 0 {
				continue
			}
			id := len(lengths) + 1
			cells := floodFill(b, &label, r, c, id)
			if !isStraight(cells) {
				return ErrBentShip
			}
			lengths = append(lengths, len(cells))
		}
	}

	sort.Sort(sort.Reverse(sort.IntSlice(lengths)))
	if len(lengths) != len(ShipSizes) {
		return ErrWrongFleet
	}
	for i, L := range ShipSizes {
		if lengths[i] != L {
			return ErrWrongFleet
		}
	}

	// Diagonal neighbors of a ship cell must belong to the same ship.
	for r := 0; r < 10; r++ {
		for c := 0; c < 10; c++ {
			if b.Cells[r][c] != 1 {
				continue
			}
			for dr := -1; dr <= 1; dr++ {
				for dc := -1; dc <= 1; dc++ {
					nr, nc := r+dr, c+dc
					if nr < 0 || nr > 9 || nc < 0 || nc > 9 {
						continue
					}
					if b.Cells[nr][nc] == 1 && label[nr][nc] != label[r][c] {
						return ErrTouchingShips
					}
				}
			}
		}
	}
	return nil
}

type cell struct{ r, c int }

func floodFill(b *Board, label *[10][10]int, r, c, id int) []cell {
	stack := []cell{{r, c}}
	label[r][c] = id
	out := []cell{}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, cur)
		for _, d := range [4]cell{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
			nr, nc := cur.r+d.r, cur.c+d.c
			if nr < 0 || nr > 9 || nc < 0 || nc > 9 {
				continue
			}
			if b.Cells[nr][nc] == 1 && label[nr][nc] == 0 {
				label[nr][nc] = id
				stack = append(stack, cell{nr, nc})
			}
		}
	}
	return out
}

func isStraight(cells []cell) bool {
	if len(cells) < 2 {
		return true
	}
	sameRow, sameCol := true, true
	for _, cc := range cells[1:] {
		if cc.r != cells[0].r {
			sameRow = false
		}
		if cc.c != cells[0].c {
			sameCol = false
		}
	}
	return sameRow || sameCol
}

// Flatten returns the cells in leaf index order: index = y*10 + x, where
// y is the row and x the column.
func (b *Board) Flatten() []uint8 {
	out := make([]uint8, 100)
	k := 0
	for r := 0; r < 10; r++ {
		for c := 0; c < 10; c++ {
			out[k] = b.Cells[r][c]
			k++
		}
	}
	return out
}

// GenerateRandomBoard places the standard fleet respecting the adjacency rule.
func GenerateRandomBoard() (Board, error) {
	var b Board
	tries := 0
	for _, L := range ShipSizes {
	retry:
		if tries > 10000 {
			return Board{}, errors.New("failed to place ships")
		}
		tries++
		vert := rand.Intn(2) == 0
		r := rand.Intn(10)
		c := rand.Intn(10)
		dr, dc := 0, 1
		if vert {
			dr, dc = 1, 0
		}
		if r+dr*(L-1) > 9 || c+dc*(L-1) > 9 {
			goto retry
		}
		for i := 0; i < L; i++ {
			if blocked(&b, r+dr*i, c+dc*i) {
				goto retry
			}
		}
		for i := 0; i < L; i++ {
			b.Cells[r+dr*i][c+dc*i] = 1
		}
	}
	return b, nil
}

// blocked reports whether the cell or any of its 8 neighbors is occupied.
func blocked(b *Board, r, c int) bool {
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			nr, nc := r+dr, c+dc
			if nr < 0 || nr > 9 || nc < 0 || nc > 9 {
				continue
			}
			if b.Cells[nr][nc] == 1 {
				return true
			}
		}
	}
	return false
}
