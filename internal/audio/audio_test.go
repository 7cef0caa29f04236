package audio

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samples(p []byte) []int16 {
	out := make([]int16, len(p)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(p[i*2:]))
	}
	return out
}

func TestSquare_SilentWhenOff(t *testing.T) {
	s := NewSquare(8, 2)

	p := make([]byte, 16)
	n, err := s.Read(p)
	require.NoError(t, err)
	assert.Equal(t, 16, n)
	assert.Equal(t, make([]int16, 8), samples(p))
}

func TestSquare_Wave(t *testing.T) {
	s := NewSquare(8, 2) // period of 4 samples
	s.SetTone(true)

	p := make([]byte, 16)
	_, err := s.Read(p)
	require.NoError(t, err)

	hi, lo := amplitude, -amplitude
	assert.Equal(t, []int16{hi, hi, lo, lo, hi, hi, lo, lo}, samples(p))
}

func TestSquare_ReadsWholeSamples(t *testing.T) {
	s := NewSquare(SampleRate, Frequency)

	n, err := s.Read(make([]byte, 5))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestNewSquare_MinimumPeriod(t *testing.T) {
	s := NewSquare(100, 1000)
	assert.Equal(t, 2, s.period)
}
