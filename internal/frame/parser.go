// Package frame decodes raw controller telemetry frames.
//
// A frame is a comma-separated UTF-8 line with seven positional fields:
//
//	state_name, description, weight_grams, pressure_bars, duty_cycle_percent, flow_rate_gps, brew_temp_c
//
// Whitespace around each field is ignored and fields past the seventh are dropped.
package frame

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ghalamif/BrewFlow/internal/domain"
)

// FieldCount is the number of positional fields in a frame.
const FieldCount = 7

const (
	fieldState = iota
	fieldDescription
	fieldWeight
	fieldPressure
	fieldDutyCycle
	fieldFlowRate
	fieldTemperature
)

var (
	// ErrMalformedFrame reports a frame with fewer than FieldCount fields.
	ErrMalformedFrame = errors.New("frame: malformed frame")
	// ErrInvalidNumber reports a numeric field that does not parse as a float.
	ErrInvalidNumber = errors.New("frame: invalid number")
)

// ParseError describes why a frame was rejected. It matches ErrMalformedFrame or
// ErrInvalidNumber under errors.Is.
type ParseError struct {
	Kind error
	// FieldCount is set for ErrMalformedFrame.
	FieldCount int
	// FieldIndex is the zero-based position of the bad field for ErrInvalidNumber.
	FieldIndex int
	Value      string
}

func (e *ParseError) Error() string {
	if errors.Is(e.Kind, ErrMalformedFrame) {
		return fmt.Sprintf("%v: got %d fields, want %d", e.Kind, e.FieldCount, FieldCount)
	}
	return fmt.Sprintf("%v: field %d (%s) = %q", e.Kind, e.FieldIndex, FieldName(e.FieldIndex), e.Value)
}

func (e *ParseError) Unwrap() error { return e.Kind }

// Reason is a short label for metrics.
func (e *ParseError) Reason() string {
	if errors.Is(e.Kind, ErrMalformedFrame) {
		return "malformed_frame"
	}
	return "invalid_number"
}

var fieldNames = [FieldCount]string{
	"state_name",
	"description",
	"weight_grams",
	"pressure_bars",
	"duty_cycle_percent",
	"flow_rate_gps",
	"brew_temp_c",
}

// FieldName returns the wire name of the field at index i.
func FieldName(i int) string {
	if i < 0 || i >= FieldCount {
		return "unknown"
	}
	return fieldNames[i]
}

// Parse decodes raw into a Sample. Either every field decodes or an error is
// returned and no Sample is produced. The returned Sample has Seq unset; sequence
// numbers belong to whoever observes arrival order.
func Parse(raw string) (domain.Sample, error) {
	fields := strings.Split(raw, ",")
	if len(fields) < FieldCount {
		return domain.Sample{}, &ParseError{Kind: ErrMalformedFrame, FieldCount: len(fields)}
	}
	fields = fields[:FieldCount]
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	var nums [FieldCount]float64
	for i := fieldWeight; i < FieldCount; i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil || !isDecimal(fields[i]) || math.IsNaN(v) || math.IsInf(v, 0) {
			return domain.Sample{}, &ParseError{Kind: ErrInvalidNumber, FieldIndex: i, Value: fields[i]}
		}
		nums[i] = v
	}

	name := strings.ToLower(fields[fieldState])
	return domain.Sample{
		StateName:        name,
		State:            domain.ParseState(name),
		Description:      fields[fieldDescription],
		WeightGrams:      nums[fieldWeight],
		PressureBars:     nums[fieldPressure],
		DutyCyclePercent: nums[fieldDutyCycle],
		FlowRateGPS:      nums[fieldFlowRate],
		BrewTempC:        nums[fieldTemperature],
	}, nil
}

// Format renders s back into wire form using the shortest float representation
// that round-trips through Parse.
func Format(s domain.Sample) string {
	parts := []string{
		s.StateName,
		s.Description,
		formatFloat(s.WeightGrams),
		formatFloat(s.PressureBars),
		formatFloat(s.DutyCyclePercent),
		formatFloat(s.FlowRateGPS),
		formatFloat(s.BrewTempC),
	}
	return strings.Join(parts, ",")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// isDecimal reports whether s is a plain decimal float: an optional sign,
// digits with at most one point, and an optional exponent. It rules out the
// nan, inf and hex forms strconv also accepts.
func isDecimal(s string) bool {
	s = strings.TrimLeft(s, "+-")
	mantissa, exp, hasExp := strings.Cut(strings.ToLower(s), "e")
	whole, frac, _ := strings.Cut(mantissa, ".")
	if !allDigits(whole) || !allDigits(frac) || whole+frac == "" {
		return false
	}
	if !hasExp {
		return true
	}
	if len(exp) > 0 && (exp[0] == '+' || exp[0] == '-') {
		exp = exp[1:]
	}
	return exp != "" && allDigits(exp)
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
