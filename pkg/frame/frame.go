package frame

import (
	"fmt"
	"strings"
	"time"
)

const (
	// NumIR is the number of infrared temperature sensors on the board.
	NumIR = 8
	// NumTC is the number of thermocouples (pad and caliper).
	NumTC = 2
	// NumFields is the number of comma-separated fields in one wire record.
	NumFields = 1 + NumIR + NumTC + 3
)

// Thermocouple indexes.
const (
	TCPad     = 0
	TCCaliper = 1
)

// Frame is one decoded multi-channel reading.
type Frame struct {
	RelativeTime  float64   // Device clock in seconds since boot
	HostTime      time.Time // Wall-clock time of receipt
	IR            [NumIR]float64
	TC            [NumTC]float64 // TCPad, TCCaliper
	Load          float64
	BrakePressure float64
	RotorRPM      float64
}

// Channel identifies one numeric quantity of a Frame.
type Channel int

// Channels in wire and export order.
const (
	Time Channel = iota
	IR1
	IR2
	IR3
	IR4
	IR5
	IR6
	IR7
	IR8
	Pad
	Caliper
	Load
	BrakePressure
	RotorRPM

	NumChannels = int(RotorRPM) + 1
)

var channelNames = [NumChannels]string{
	"Time",
	"IR1", "IR2", "IR3", "IR4", "IR5", "IR6", "IR7", "IR8",
	"PAD", "Caliper",
	"Load", "Brake_Pressure", "Rotor_RPM",
}

// Channels returns all channels in frame order.
func Channels() []Channel {
	out := make([]Channel, NumChannels)
	for i := range out {
		out[i] = Channel(i)
	}
	return out
}

// String returns the export header name of the channel.
func (c Channel) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Channel(%d)", int(c))
	}
	return channelNames[c]
}

// Valid reports whether c names a known channel.
func (c Channel) Valid() bool {
	return c >= 0 && int(c) < NumChannels
}

// IsTemperature reports whether the channel carries a temperature in Celsius.
func (c Channel) IsTemperature() bool {
	return c >= IR1 && c <= Caliper
}

// IRChannel returns the channel of infrared sensor i (0-based).
func IRChannel(i int) Channel {
	return IR1 + Channel(i)
}

// ParseChannel resolves a channel by its header name, case-insensitively.
// "tc_pad" and "tc_caliper" are accepted as aliases.
func ParseChannel(name string) (Channel, error) {
	n := strings.TrimSpace(name)
	for i, cn := range channelNames {
		if strings.EqualFold(cn, n) {
			return Channel(i), nil
		}
	}
	switch strings.ToLower(n) {
	case "tc_pad":
		return Pad, nil
	case "tc_caliper":
		return Caliper, nil
	}
	return 0, fmt.Errorf("unknown channel %q", name)
}

// Value returns the value of channel c.
func (f *Frame) Value(c Channel) float64 {
	switch {
	case c == Time:
		return f.RelativeTime
	case c >= IR1 && c <= IR8:
		return f.IR[c-IR1]
	case c == Pad:
		return f.TC[TCPad]
	case c == Caliper:
		return f.TC[TCCaliper]
	case c == Load:
		return f.Load
	case c == BrakePressure:
		return f.BrakePressure
	case c == RotorRPM:
		return f.RotorRPM
	}
	return 0
}

// Values returns all channel values in frame order.
func (f *Frame) Values() [NumChannels]float64 {
	var out [NumChannels]float64
	for i := range out {
		out[i] = f.Value(Channel(i))
	}
	return out
}

// SetValue sets channel c to v.
func (f *Frame) SetValue(c Channel, v float64) {
	switch {
	case c == Time:
		f.RelativeTime = v
	case c >= IR1 && c <= IR8:
		f.IR[c-IR1] = v
	case c == Pad:
		f.TC[TCPad] = v
	case c == Caliper:
		f.TC[TCCaliper] = v
	case c == Load:
		f.Load = v
	case c == BrakePressure:
		f.BrakePressure = v
	case c == RotorRPM:
		f.RotorRPM = v
	}
}
