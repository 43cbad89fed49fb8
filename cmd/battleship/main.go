package main

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"battleship-ledger/internal/app"
	"battleship-ledger/internal/config"
	"battleship-ledger/internal/escrow"
	"battleship-ledger/internal/game"
	"battleship-ledger/internal/protocol"
	"battleship-ledger/internal/server"
	"battleship-ledger/internal/store"
	"battleship-ledger/internal/zk"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	switch os.Args[1] {
	case "serve":
		cmdServe()
	case "init":
		cmdInit()
	case "commit":
		cmdCommit()
	case "prove":
		cmdProve()
	case "prove-zk":
		cmdProveZK()
	default:
		usage()
	}
}

func usage() {
	fmt.Print(`Battleship ledger CLI

Commands:
  serve                                          run the game server (env-configured)
  init     --out board.json                      generate a random valid board
  commit   --board board.json --secret secret.json
  prove    --secret secret.json --x X --y Y --out reveal.json
  prove-zk --secret secret.json --keys ./keys --x X --y Y --out reveal.json

`)
}

func cmdServe() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	minStake, err := cfg.MinStakeAmount()
	if err != nil {
		log.Fatal(err)
	}

	book := escrow.NewBook()
	esc := escrow.New(book, "vault", escrow.Address(cfg.Owner), cfg.FeeBps)
	engine := protocol.NewEngine(protocol.Params{
		MinStake:        minStake,
		TimeoutDuration: cfg.TimeoutSeconds,
		WinThreshold:    cfg.WinThreshold,
	}, esc, clock.New(), protocol.LogSink{Log: logger})

	if cfg.DBPath != "" {
		db, err := store.Open(cfg.DBPath)
		if err != nil {
			log.Fatal(err)
		}
		defer db.Close()

		games, err := db.LoadGames()
		if err != nil {
			log.Fatal(err)
		}
		marks, err := db.LoadRevealed()
		if err != nil {
			log.Fatal(err)
		}
		records := make([][]byte, len(games))
		for i, g := range games {
			records[i] = g.Data
		}
		restored := make([]protocol.RevealedMark, len(marks))
		for i, m := range marks {
			restored[i] = protocol.RevealedMark{GameID: m.GameID, Owner: m.Owner, Cell: m.Cell}
		}
		if err := engine.Restore(records, restored); err != nil {
			log.Fatal(err)
		}
		engine.SetStore(db)
		logger.Info().Str("db", cfg.DBPath).Int("games", len(games)).Msg("state restored")
	}

	if err := zk.EnsureShotKeys(cfg.KeysDir); err != nil {
		log.Fatal(err)
	}
	engine.SetShotVerifier(zk.NewVerifier(cfg.KeysDir))

	srv := server.New(engine, book, logger)
	mux := http.NewServeMux()
	srv.Routes(mux)
	logger.Info().Str("addr", cfg.Addr).Msg("serving")
	log.Fatal(http.ListenAndServe(cfg.Addr, server.WithCORS(mux)))
}

func cmdInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	out := fs.String("out", "board.json", "output board file")
	_ = fs.Parse(os.Args[2:])

	b, err := app.InitBoard()
	if err != nil {
		log.Fatal(err)
	}
	if err := saveJSON(*out, b); err != nil {
		log.Fatal(err)
	}
	fmt.Println("wrote", *out)
}

func cmdCommit() {
	fs := flag.NewFlagSet("commit", flag.ExitOnError)
	boardPath := fs.String("board", "board.json", "board file")
	secretPath := fs.String("secret", "secret.json", "defender secret state")
	_ = fs.Parse(os.Args[2:])

	var b game.Board
	if err := loadJSON(*boardPath, &b); err != nil {
		log.Fatal(err)
	}
	res, err := app.Commit(b)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("ROOT:", res.RootHex)
	if err := saveJSON(*secretPath, &res.Secret); err != nil {
		log.Fatal(err)
	}
	fmt.Println("wrote", *secretPath)
}

func cmdProve() {
	fs := flag.NewFlagSet("prove", flag.ExitOnError)
	secretPath := fs.String("secret", "secret.json", "defender secret state")
	x := fs.Int("x", 0, "column [0..9]")
	y := fs.Int("y", 0, "row [0..9]")
	out := fs.String("out", "reveal.json", "reveal payload output")
	_ = fs.Parse(os.Args[2:])

	var sec app.Secret
	if err := loadJSON(*secretPath, &sec); err != nil {
		log.Fatal(err)
	}
	if *x < 0 || *x > 9 || *y < 0 || *y > 9 {
		log.Fatal("x/y out of range")
	}

	payload, err := app.ProveReveal(sec, uint8(*x), uint8(*y))
	if err != nil {
		log.Fatal(err)
	}
	if err := saveJSON(*out, payload); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("wrote %s (%s)\n", *out, hitOrMiss(payload.Hit))
}

func cmdProveZK() {
	fs := flag.NewFlagSet("prove-zk", flag.ExitOnError)
	secretPath := fs.String("secret", "secret.json", "defender secret state")
	keysDir := fs.String("keys", "./keys", "keys directory")
	x := fs.Int("x", 0, "column [0..9]")
	y := fs.Int("y", 0, "row [0..9]")
	out := fs.String("out", "reveal.json", "reveal payload output")
	_ = fs.Parse(os.Args[2:])

	var sec app.Secret
	if err := loadJSON(*secretPath, &sec); err != nil {
		log.Fatal(err)
	}
	if *x < 0 || *x > 9 || *y < 0 || *y > 9 {
		log.Fatal("x/y out of range")
	}
	if err := zk.EnsureShotKeys(*keysDir); err != nil {
		log.Fatal(err)
	}

	hit, proof, err := app.ProveRevealZK(sec, *keysDir, uint8(*x), uint8(*y))
	if err != nil {
		log.Fatal(err)
	}
	payload := map[string]any{
		"x":        *x,
		"y":        *y,
		"hit":      hit,
		"proofB64": base64.StdEncoding.EncodeToString(proof),
	}
	if err := saveJSON(*out, payload); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("wrote %s (%s)\n", *out, hitOrMiss(hit))
}

func hitOrMiss(hit bool) string {
	if hit {
		return "HIT"
	}
	return "MISS"
}

func saveJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func loadJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(v)
}
