package frame

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Delimiter separates fields on the wire and in export files.
const Delimiter = ","

var (
	// ErrFieldCount is returned when a line does not carry exactly NumFields fields.
	ErrFieldCount = errors.New("invalid field count")
	// ErrNumericParse is returned when a field is not a floating-point number.
	ErrNumericParse = errors.New("invalid numeric field")
)

// DecodeError describes why a wire line was rejected.
type DecodeError struct {
	Line  string
	Field int // 0-based field index, -1 when the whole line is at fault
	Count int // number of fields found
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Field >= 0 {
		return fmt.Sprintf("decode field %d: %v", e.Field+1, e.Err)
	}
	return fmt.Sprintf("decode: %v: expected %d fields, got %d", e.Err, NumFields, e.Count)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Reason returns a short label for metrics.
func (e *DecodeError) Reason() string {
	if errors.Is(e.Err, ErrFieldCount) {
		return "field_count"
	}
	return "numeric"
}

// Decode parses one wire record received at the given host time.
// Format: ms,ir1..ir8,tc_pad,tc_caliper,load,brake_pressure,rotor_rpm
// Example: 123456,25.1,25.3,24.9,25.0,25.2,25.4,25.1,24.8,30.5,28.2,112.5,3.4,850
func Decode(line string, received time.Time) (Frame, error) {
	line = strings.TrimSpace(line)
	parts := strings.Split(line, Delimiter)
	if len(parts) != NumFields {
		return Frame{}, &DecodeError{Line: line, Field: -1, Count: len(parts), Err: ErrFieldCount}
	}

	var values [NumFields]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Frame{}, &DecodeError{
				Line:  line,
				Field: i,
				Count: len(parts),
				Err:   fmt.Errorf("%w: %q", ErrNumericParse, p),
			}
		}
		values[i] = v
	}

	f := Frame{
		RelativeTime:  values[0] / 1000,
		HostTime:      received,
		Load:          values[1+NumIR+NumTC],
		BrakePressure: values[2+NumIR+NumTC],
		RotorRPM:      values[3+NumIR+NumTC],
	}
	copy(f.IR[:], values[1:1+NumIR])
	copy(f.TC[:], values[1+NumIR:1+NumIR+NumTC])

	return f, nil
}

// Encode renders f as a wire record without the trailing newline.
// The timestamp is written as integer milliseconds.
func Encode(f Frame) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(int64(math.Round(f.RelativeTime*1000)), 10))
	for c := IR1; c <= RotorRPM; c++ {
		b.WriteString(Delimiter)
		b.WriteString(FormatValue(f.Value(c)))
	}
	return b.String()
}

// FormatValue formats a channel value with the shortest representation that
// parses back to the same float64.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
