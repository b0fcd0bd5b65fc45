package frame

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	received := time.Date(2025, 3, 14, 10, 20, 30, 456_000_000, time.UTC)

	tests := []struct {
		name      string
		line      string
		want      Frame
		wantErr   error
		wantField int
	}{
		{
			name: "valid line",
			line: "123456,25.1,25.2,25.3,25.4,25.5,25.6,25.7,25.8,30.5,28.25,112.5,3.4,850",
			want: Frame{
				RelativeTime:  123.456,
				HostTime:      received,
				IR:            [NumIR]float64{25.1, 25.2, 25.3, 25.4, 25.5, 25.6, 25.7, 25.8},
				TC:            [NumTC]float64{30.5, 28.25},
				Load:          112.5,
				BrakePressure: 3.4,
				RotorRPM:      850,
			},
		},
		{
			name: "trailing CRLF and negative values",
			line: "0,-1,-2,-3,-4,-5,-6,-7,-8,-9,-10,-11.5,-0.25,0\r\n",
			want: Frame{
				RelativeTime:  0,
				HostTime:      received,
				IR:            [NumIR]float64{-1, -2, -3, -4, -5, -6, -7, -8},
				TC:            [NumTC]float64{-9, -10},
				Load:          -11.5,
				BrakePressure: -0.25,
				RotorRPM:      0,
			},
		},
		{
			name: "exponent notation",
			line: "1e3,1,2,3,4,5,6,7,8,9,10,1.5e2,2E-1,3",
			want: Frame{
				RelativeTime:  1,
				HostTime:      received,
				IR:            [NumIR]float64{1, 2, 3, 4, 5, 6, 7, 8},
				TC:            [NumTC]float64{9, 10},
				Load:          150,
				BrakePressure: 0.2,
				RotorRPM:      3,
			},
		},
		{
			name:      "too few fields",
			line:      "1,2,3,4,5,6,7,8,9,10,11,12,13",
			wantErr:   ErrFieldCount,
			wantField: -1,
		},
		{
			name:      "too many fields",
			line:      "1,2,3,4,5,6,7,8,9,10,11,12,13,14,15",
			wantErr:   ErrFieldCount,
			wantField: -1,
		},
		{
			name:      "empty line",
			line:      "",
			wantErr:   ErrFieldCount,
			wantField: -1,
		},
		{
			name:      "non-numeric timestamp",
			line:      "abc,2,3,4,5,6,7,8,9,10,11,12,13,14",
			wantErr:   ErrNumericParse,
			wantField: 0,
		},
		{
			name:      "non-numeric rpm",
			line:      "1,2,3,4,5,6,7,8,9,10,11,12,13,fast",
			wantErr:   ErrNumericParse,
			wantField: 13,
		},
		{
			name:      "empty field",
			line:      "1,2,3,4,5,,7,8,9,10,11,12,13,14",
			wantErr:   ErrNumericParse,
			wantField: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.line, received)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				var de *DecodeError
				require.True(t, errors.As(err, &de))
				assert.Equal(t, tt.wantField, de.Field)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want.RelativeTime, got.RelativeTime, 1e-12)
			assert.Equal(t, tt.want.HostTime, got.HostTime)
			assert.Equal(t, tt.want.IR, got.IR)
			assert.Equal(t, tt.want.TC, got.TC)
			assert.Equal(t, tt.want.Load, got.Load)
			assert.Equal(t, tt.want.BrakePressure, got.BrakePressure)
			assert.Equal(t, tt.want.RotorRPM, got.RotorRPM)
		})
	}
}

func TestDecode_FieldCounts(t *testing.T) {
	for n := 0; n <= 20; n++ {
		if n == NumFields {
			continue
		}
		fields := make([]string, n)
		for i := range fields {
			fields[i] = "1"
		}
		_, err := Decode(strings.Join(fields, ","), time.Now())
		assert.ErrorIs(t, err, ErrFieldCount, "count %d", n)
	}
}

func TestDecodeError_Reason(t *testing.T) {
	_, err := Decode("1,2", time.Now())
	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "field_count", de.Reason())
	assert.Contains(t, de.Error(), "expected 14 fields, got 2")

	_, err = Decode("x,2,3,4,5,6,7,8,9,10,11,12,13,14", time.Now())
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "numeric", de.Reason())
	assert.Contains(t, de.Error(), "field 1")
}

func TestEncode_DecodeRoundTrip(t *testing.T) {
	f := Frame{
		RelativeTime:  98.765,
		IR:            [NumIR]float64{20.5, 21, 22.125, 23, 24, 25, 26, 27.75},
		TC:            [NumTC]float64{150.5, 80.25},
		Load:          1200.5,
		BrakePressure: 12.75,
		RotorRPM:      2400,
	}

	line := Encode(f)
	assert.Equal(t, "98765,20.5,21,22.125,23,24,25,26,27.75,150.5,80.25,1200.5,12.75,2400", line)

	got, err := Decode(line, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, f.Values(), got.Values())
}
