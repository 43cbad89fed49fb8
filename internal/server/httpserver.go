// Package server exposes the game engine over HTTP. Handlers translate
// JSON requests into engine operations and sentinel errors into status
// codes; all game rules live in the protocol package.
package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/holiman/uint256"
	"github.com/rs/zerolog"

	"battleship-ledger/internal/app"
	"battleship-ledger/internal/escrow"
	"battleship-ledger/internal/game"
	"battleship-ledger/internal/protocol"
)

type Server struct {
	Engine *protocol.Engine
	// Book is the dev ledger backing the faucet and balance queries. Nil
	// disables both endpoints.
	Book *escrow.Book
	Log  zerolog.Logger
}

func New(engine *protocol.Engine, book *escrow.Book, log zerolog.Logger) *Server {
	return &Server{Engine: engine, Book: book, Log: log}
}

func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/create", s.handleCreate)
	mux.HandleFunc("/v1/join", s.handleJoin)
	mux.HandleFunc("/v1/commit", s.handleCommit)
	mux.HandleFunc("/v1/attack", s.handleAttack)
	mux.HandleFunc("/v1/reveal", s.handleReveal)
	mux.HandleFunc("/v1/reveal_zk", s.handleRevealZK)
	mux.HandleFunc("/v1/claim", s.handleClaim)
	mux.HandleFunc("/v1/timeout", s.handleTimeout)
	mux.HandleFunc("/v1/resign", s.handleResign)
	mux.HandleFunc("/v1/withdraw", s.handleWithdraw)

	mux.HandleFunc("/v1/game", s.handleGame)
	mux.HandleFunc("/v1/stats", s.handleStats)
	mux.HandleFunc("/v1/board", s.handleBoard)

	mux.HandleFunc("/v1/faucet", s.handleFaucet)
	mux.HandleFunc("/v1/balance", s.handleBalance)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

// statusFor maps the protocol error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, protocol.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, protocol.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, protocol.ErrInvalidState),
		errors.Is(err, protocol.ErrAlreadyDone),
		errors.Is(err, protocol.ErrTimeoutNotReached),
		errors.Is(err, protocol.ErrNoTimeoutParty),
		errors.Is(err, protocol.ErrThresholdNotMet):
		return http.StatusConflict
	case errors.Is(err, protocol.ErrOutOfBounds),
		errors.Is(err, protocol.ErrProofInvalid),
		errors.Is(err, protocol.ErrInsufficientStake),
		errors.Is(err, protocol.ErrEscrowFailed):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// caller reads the acting player identity. Header auth is a dev stand-in
// for ledger transaction signatures.
func caller(r *http.Request) (protocol.Address, error) {
	p := strings.TrimSpace(r.Header.Get("X-Player"))
	if p == "" {
		return "", fmt.Errorf("missing X-Player header")
	}
	return protocol.Address(p), nil
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return false
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// gameView is the JSON projection of a game record.
type gameView struct {
	ID           uint64 `json:"id"`
	Player1      string `json:"player1"`
	Player2      string `json:"player2,omitempty"`
	Player1Root  string `json:"player1Root"`
	Player2Root  string `json:"player2Root"`
	StakeAmount  string `json:"stakeAmount"`
	CurrentTurn  string `json:"currentTurn,omitempty"`
	Player1Hits  uint8  `json:"player1Hits"`
	Player2Hits  uint8  `json:"player2Hits"`
	LastMoveTime uint64 `json:"lastMoveTime"`
	Status       string `json:"status"`
	Winner       string `json:"winner,omitempty"`
	PendingX     uint8  `json:"pendingAttackX"`
	PendingY     uint8  `json:"pendingAttackY"`
	HasPending   bool   `json:"hasPendingAttack"`
}

func viewOf(g protocol.Game) gameView {
	return gameView{
		ID:           g.ID,
		Player1:      string(g.Player1),
		Player2:      string(g.Player2),
		Player1Root:  fmt.Sprintf("0x%x", g.Player1Root),
		Player2Root:  fmt.Sprintf("0x%x", g.Player2Root),
		StakeAmount:  g.StakeAmount.Dec(),
		CurrentTurn:  string(g.CurrentTurn),
		Player1Hits:  g.Player1Hits,
		Player2Hits:  g.Player2Hits,
		LastMoveTime: g.LastMoveTime,
		Status:       g.Status.String(),
		Winner:       string(g.Winner),
		PendingX:     g.PendingX,
		PendingY:     g.PendingY,
		HasPending:   g.HasPending,
	}
}

// === Game lifecycle ===

type createReq struct {
	Stake string `json:"stake"` // decimal
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	from, err := caller(r)
	if err != nil {
		writeJSON(w, 400, map[string]string{"error": err.Error()})
		return
	}
	var req createReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, 400, map[string]string{"error": "bad json"})
		return
	}
	stake, err := uint256.FromDecimal(req.Stake)
	if err != nil {
		writeJSON(w, 400, map[string]string{"error": "invalid stake amount"})
		return
	}
	id, err := s.Engine.CreateGame(from, stake)
	if err != nil {
		writeErr(w, err)
		return
	}
	s.Log.Info().Uint64("game", id).Str("creator", string(from)).Msg("game created")
	writeJSON(w, 200, map[string]any{"id": id})
}

type gameIDReq struct {
	ID uint64 `json:"id"`
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	s.simpleAction(w, r, "game joined", func(from protocol.Address, req gameIDReq) error {
		return s.Engine.JoinGame(from, req.ID)
	})
}

type commitReq struct {
	ID      uint64 `json:"id"`
	RootHex string `json:"rootHex"`
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	from, err := caller(r)
	if err != nil {
		writeJSON(w, 400, map[string]string{"error": err.Error()})
		return
	}
	var req commitReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, 400, map[string]string{"error": "bad json"})
		return
	}
	root, err := app.ParseHex(req.RootHex)
	if err != nil {
		writeJSON(w, 400, map[string]string{"error": err.Error()})
		return
	}
	if err := s.Engine.CommitBoard(from, req.ID, root); err != nil {
		writeErr(w, err)
		return
	}
	s.Log.Info().Uint64("game", req.ID).Str("player", string(from)).Msg("board committed")
	writeJSON(w, 200, map[string]string{"status": "committed"})
}

type attackReq struct {
	ID uint64 `json:"id"`
	X  uint8  `json:"x"`
	Y  uint8  `json:"y"`
}

func (s *Server) handleAttack(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	from, err := caller(r)
	if err != nil {
		writeJSON(w, 400, map[string]string{"error": err.Error()})
		return
	}
	var req attackReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, 400, map[string]string{"error": "bad json"})
		return
	}
	if err := s.Engine.Attack(from, req.ID, req.X, req.Y); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, 200, map[string]string{"status": "attack pending"})
}

type revealReq struct {
	ID      uint64   `json:"id"`
	X       uint8    `json:"x"`
	Y       uint8    `json:"y"`
	Hit     bool     `json:"hit"`
	SaltHex string   `json:"saltHex"`
	Proof   []string `json:"proof"`
}

func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	from, err := caller(r)
	if err != nil {
		writeJSON(w, 400, map[string]string{"error": err.Error()})
		return
	}
	var req revealReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, 400, map[string]string{"error": "bad json"})
		return
	}
	salt, err := app.ParseHex(req.SaltHex)
	if err != nil {
		writeJSON(w, 400, map[string]string{"error": err.Error()})
		return
	}
	path, err := parseProof(req.Proof)
	if err != nil {
		writeJSON(w, 400, map[string]string{"error": err.Error()})
		return
	}
	if err := s.Engine.Reveal(from, req.ID, req.X, req.Y, req.Hit, salt, path); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{"status": "revealed", "hit": req.Hit})
}

func parseProof(hexes []string) ([]*big.Int, error) {
	out := make([]*big.Int, len(hexes))
	for i, h := range hexes {
		n, err := app.ParseHex(h)
		if err != nil {
			return nil, fmt.Errorf("proof element %d: %w", i, err)
		}
		out[i] = n
	}
	return out, nil
}

type revealZKReq struct {
	ID       uint64 `json:"id"`
	X        uint8  `json:"x"`
	Y        uint8  `json:"y"`
	Hit      bool   `json:"hit"`
	ProofB64 string `json:"proofB64"`
}

func (s *Server) handleRevealZK(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	from, err := caller(r)
	if err != nil {
		writeJSON(w, 400, map[string]string{"error": err.Error()})
		return
	}
	var req revealZKReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, 400, map[string]string{"error": "bad json"})
		return
	}
	proof, err := base64.StdEncoding.DecodeString(req.ProofB64)
	if err != nil || len(proof) == 0 {
		writeJSON(w, 400, map[string]string{"error": "invalid proofB64"})
		return
	}
	if err := s.Engine.RevealZK(from, req.ID, req.X, req.Y, req.Hit, proof); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{"status": "revealed", "hit": req.Hit})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	s.simpleAction(w, r, "victory claimed", func(from protocol.Address, req gameIDReq) error {
		return s.Engine.ClaimVictory(from, req.ID)
	})
}

func (s *Server) handleTimeout(w http.ResponseWriter, r *http.Request) {
	s.simpleAction(w, r, "timeout claimed", func(from protocol.Address, req gameIDReq) error {
		return s.Engine.ClaimTimeout(from, req.ID)
	})
}

func (s *Server) handleResign(w http.ResponseWriter, r *http.Request) {
	s.simpleAction(w, r, "resigned", func(from protocol.Address, req gameIDReq) error {
		return s.Engine.Resign(from, req.ID)
	})
}

// simpleAction factors the POST-with-game-id handlers.
func (s *Server) simpleAction(w http.ResponseWriter, r *http.Request, msg string, op func(protocol.Address, gameIDReq) error) {
	if !requirePost(w, r) {
		return
	}
	from, err := caller(r)
	if err != nil {
		writeJSON(w, 400, map[string]string{"error": err.Error()})
		return
	}
	var req gameIDReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, 400, map[string]string{"error": "bad json"})
		return
	}
	if err := op(from, req); err != nil {
		writeErr(w, err)
		return
	}
	s.Log.Info().Uint64("game", req.ID).Str("player", string(from)).Msg(msg)
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

type withdrawReq struct {
	To     string `json:"to"`
	Amount string `json:"amount"` // decimal
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	from, err := caller(r)
	if err != nil {
		writeJSON(w, 400, map[string]string{"error": err.Error()})
		return
	}
	var req withdrawReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, 400, map[string]string{"error": "bad json"})
		return
	}
	amount, err := uint256.FromDecimal(req.Amount)
	if err != nil {
		writeJSON(w, 400, map[string]string{"error": "invalid amount"})
		return
	}
	if err := s.Engine.WithdrawHouse(from, protocol.Address(req.To), amount); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, 200, map[string]string{"status": "withdrawn"})
}

// === Reads ===

func (s *Server) handleGame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id, err := strconv.ParseUint(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		writeJSON(w, 400, map[string]string{"error": "invalid id"})
		return
	}
	g, err := s.Engine.GetGame(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, 200, viewOf(g))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, 200, map[string]any{
		"games":          s.Engine.GameCount(),
		"timeoutSeconds": s.Engine.TimeoutDuration(),
		"feeBps":         s.Engine.HouseFeeBps(),
		"houseBalance":   s.Engine.HouseBalance().Dec(),
		"owner":          string(s.Engine.Owner()),
	})
}

// handleBoard generates a fresh random valid board for clients without
// their own placement logic.
func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	b, err := game.GenerateRandomBoard()
	if err != nil {
		writeJSON(w, 500, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, 200, b)
}

// === Dev faucet ===

type faucetReq struct {
	Amount string `json:"amount"` // decimal
}

func (s *Server) handleFaucet(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if s.Book == nil {
		writeJSON(w, 404, map[string]string{"error": "faucet disabled"})
		return
	}
	from, err := caller(r)
	if err != nil {
		writeJSON(w, 400, map[string]string{"error": err.Error()})
		return
	}
	var req faucetReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, 400, map[string]string{"error": "bad json"})
		return
	}
	amount, err := uint256.FromDecimal(req.Amount)
	if err != nil {
		writeJSON(w, 400, map[string]string{"error": "invalid amount"})
		return
	}
	s.Book.Deposit(from, amount)
	writeJSON(w, 200, map[string]string{"balance": s.Book.Balance(from).Dec()})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.Book == nil {
		writeJSON(w, 404, map[string]string{"error": "balances disabled"})
		return
	}
	acct := strings.TrimSpace(r.URL.Query().Get("account"))
	if acct == "" {
		writeJSON(w, 400, map[string]string{"error": "missing account"})
		return
	}
	writeJSON(w, 200, map[string]string{"balance": s.Book.Balance(escrow.Address(acct)).Dec()})
}

// === CORS ===

func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,X-Player")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
