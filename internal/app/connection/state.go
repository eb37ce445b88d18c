package connection

import (
	"encoding/json"
	"fmt"
	"time"
)

// Phase is the coarse connection state shown to the renderer.
type Phase int

const (
	Disconnected Phase = iota
	Connecting
	Connected
	ReconnectPending
)

func (p Phase) String() string {
	switch p {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case ReconnectPending:
		return "reconnect_pending"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// ParsePhase is the inverse of Phase.String.
func ParsePhase(name string) (Phase, error) {
	for p := Disconnected; p <= ReconnectPending; p++ {
		if p.String() == name {
			return p, nil
		}
	}
	return Disconnected, fmt.Errorf("unknown connection phase %q", name)
}

// State is an immutable view of the manager's connection state. Delay is only
// set while a retry is pending. Attempt counts connect attempts since the last
// successful connect.
type State struct {
	Phase   Phase
	Delay   time.Duration
	Attempt int
}

func (s State) String() string {
	if s.Phase == ReconnectPending {
		return fmt.Sprintf("%s(%s)", s.Phase, s.Delay)
	}
	return s.Phase.String()
}

type stateJSON struct {
	Phase   string `json:"phase"`
	DelayMS int64  `json:"delay_ms"`
	Attempt int    `json:"attempt"`
}

// MarshalJSON renders the phase by name and the delay in milliseconds.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(stateJSON{
		Phase:   s.Phase.String(),
		DelayMS: s.Delay.Milliseconds(),
		Attempt: s.Attempt,
	})
}

func (s *State) UnmarshalJSON(data []byte) error {
	var raw stateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p, err := ParsePhase(raw.Phase)
	if err != nil {
		return err
	}
	*s = State{Phase: p, Delay: time.Duration(raw.DelayMS) * time.Millisecond, Attempt: raw.Attempt}
	return nil
}
