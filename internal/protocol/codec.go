package protocol

import (
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

// Binary record codec. The layout is a wire contract and must be reproduced
// bit-for-bit by any compatible implementation:
//
//	id:u64 | player1:addr | player2:addr | player1_root:hash32 |
//	player2_root:hash32 | stake_amount:u256 | current_turn:addr |
//	player1_hits:u8 | player2_hits:u8 | last_move_time:u64 | status:u8 |
//	winner:addr | pending_attack_x:u8 | pending_attack_y:u8 |
//	has_pending_attack:u8
//
// Addresses are u16 length-prefixed UTF-8; hashes and u256 are 32-byte
// big-endian. All integers are big-endian.

var errTruncatedRecord = errors.New("protocol: truncated game record")

func fe32(x *big.Int) []byte {
	out := make([]byte, 32)
	if x != nil {
		b := x.Bytes()
		copy(out[32-len(b):], b)
	}
	return out
}

// EncodeGame serializes the record.
func EncodeGame(g *Game) []byte {
	out := make([]byte, 0, 160+len(g.Player1)+len(g.Player2)+len(g.CurrentTurn)+len(g.Winner))

	w8 := func(x byte) { out = append(out, x) }
	w64 := func(x uint64) {
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], x)
		out = append(out, tmp[:]...)
	}
	writeAddr := func(a Address) {
		var tmp [2]byte
		binary.BigEndian.PutUint16(tmp[:], uint16(len(a)))
		out = append(out, tmp[:]...)
		out = append(out, a...)
	}

	w64(g.ID)
	writeAddr(g.Player1)
	writeAddr(g.Player2)
	out = append(out, fe32(g.Player1Root)...)
	out = append(out, fe32(g.Player2Root)...)
	stake := g.StakeAmount
	if stake == nil {
		stake = uint256.NewInt(0)
	}
	b32 := stake.Bytes32()
	out = append(out, b32[:]...)
	writeAddr(g.CurrentTurn)
	w8(g.Player1Hits)
	w8(g.Player2Hits)
	w64(g.LastMoveTime)
	w8(byte(g.Status))
	writeAddr(g.Winner)
	w8(g.PendingX)
	w8(g.PendingY)
	if g.HasPending {
		w8(1)
	} else {
		w8(0)
	}
	return out
}

type reader struct {
	b   []byte
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil || len(r.b) < n {
		r.err = errTruncatedRecord
		return nil
	}
	out := r.b[:n]
	r.b = r.b[n:]
	return out
}

func (r *reader) u8() byte {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) u64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (r *reader) addr() Address {
	lb := r.take(2)
	if lb == nil {
		return ""
	}
	n := int(binary.BigEndian.Uint16(lb))
	return Address(r.take(n))
}

func (r *reader) hash32() *big.Int {
	b := r.take(32)
	if b == nil {
		return new(big.Int)
	}
	return new(big.Int).SetBytes(b)
}

// DecodeGame reconstructs a record, ensuring no trailing bytes remain.
func DecodeGame(data []byte) (*Game, error) {
	r := &reader{b: data}
	g := &Game{}
	g.ID = r.u64()
	g.Player1 = r.addr()
	g.Player2 = r.addr()
	g.Player1Root = r.hash32()
	g.Player2Root = r.hash32()
	stakeBytes := r.take(32)
	if stakeBytes != nil {
		g.StakeAmount = new(uint256.Int).SetBytes(stakeBytes)
	}
	g.CurrentTurn = r.addr()
	g.Player1Hits = r.u8()
	g.Player2Hits = r.u8()
	g.LastMoveTime = r.u64()
	g.Status = Status(r.u8())
	g.Winner = r.addr()
	g.PendingX = r.u8()
	g.PendingY = r.u8()
	g.HasPending = r.u8() == 1
	if r.err != nil {
		return nil, r.err
	}
	if len(r.b) != 0 {
		return nil, errors.New("protocol: trailing bytes in game record")
	}
	return g, nil
}
