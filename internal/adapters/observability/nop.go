package observability

import "github.com/ghalamif/BrewFlow/internal/ports"

// Nop is an Observability that records nothing.
type Nop struct{}

func (Nop) LogInfo(string, ...ports.Field)         {}
func (Nop) LogWarn(string, ...ports.Field)         {}
func (Nop) LogError(string, error, ...ports.Field) {}
func (Nop) IncCounter(string, float64)             {}
func (Nop) ObserveLatency(string, float64)         {}
func (Nop) SetGauge(string, float64)               {}
func (Nop) RecordRejectedFrame(string, error)      {}

var _ ports.Observability = Nop{}
