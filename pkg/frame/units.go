package frame

import (
	"fmt"
	"strings"
)

// Unit is the display unit for temperature channels.
type Unit int

const (
	Celsius Unit = iota
	Fahrenheit
)

func (u Unit) String() string {
	switch u {
	case Celsius:
		return "celsius"
	case Fahrenheit:
		return "fahrenheit"
	default:
		return "unknown"
	}
}

// Symbol returns the unit suffix used in labels.
func (u Unit) Symbol() string {
	if u == Fahrenheit {
		return "°F"
	}
	return "°C"
}

// ParseUnit accepts "celsius"/"c" and "fahrenheit"/"f".
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "c", "celsius":
		return Celsius, nil
	case "f", "fahrenheit":
		return Fahrenheit, nil
	}
	return Celsius, fmt.Errorf("unknown unit %q", s)
}

// ToFahrenheit converts Celsius to Fahrenheit.
func ToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

// Convert returns v in the requested unit. Only temperature channels are
// converted; stored values are always Celsius.
func Convert(c Channel, v float64, u Unit) float64 {
	if u == Fahrenheit && c.IsTemperature() {
		return ToFahrenheit(v)
	}
	return v
}

// ConvertSeries converts a series in place and returns it.
func ConvertSeries(c Channel, series []float64, u Unit) []float64 {
	if u != Fahrenheit || !c.IsTemperature() {
		return series
	}
	for i, v := range series {
		series[i] = ToFahrenheit(v)
	}
	return series
}
