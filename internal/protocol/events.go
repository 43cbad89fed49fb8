package protocol

import (
	"strconv"

	"github.com/rs/zerolog"
)

// Event is the notification emitted after every accepted state change,
// consumed by indexers and the UI collaborator.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

const (
	EventGameCreated    = "GameCreated"
	EventGameJoined     = "GameJoined"
	EventBoardCommitted = "BoardCommitted"
	EventAttackMade     = "AttackMade"
	EventCellRevealed   = "CellRevealed"
	EventGameWon        = "GameWon"
	EventGameForfeited  = "GameForfeited"
)

// Sink receives protocol events. Emission happens after the state mutation
// of an accepted operation, never for a rejected one.
type Sink interface {
	Emit(ev Event)
}

// NopSink drops events.
type NopSink struct{}

func (NopSink) Emit(Event) {}

// LogSink writes events through zerolog.
type LogSink struct {
	Log zerolog.Logger
}

func (s LogSink) Emit(ev Event) {
	e := s.Log.Info().Str("event", ev.Type)
	for k, v := range ev.Attributes {
		e = e.Str(k, v)
	}
	e.Msg("protocol event")
}

// Recorder keeps events in order, for tests.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Emit(ev Event) { r.Events = append(r.Events, ev) }

func u64s(n uint64) string { return strconv.FormatUint(n, 10) }

func (e *Engine) emit(typ string, attrs map[string]string) {
	e.sink.Emit(Event{Type: typ, Attributes: attrs})
}
