// Package audio plays the buzzer: a square wave that sounds while the
// machine's sound timer is running.
package audio

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"github.com/ebitengine/oto/v3"
)

const (
	SampleRate = 44100
	Frequency  = 440

	amplitude = int16(0x1FFF)
)

// Square is a mono signed 16-bit little-endian square wave. It produces
// silence while the tone is off.
type Square struct {
	on     atomic.Bool
	period int
	pos    int
}

func NewSquare(sampleRate, frequency int) *Square {
	period := sampleRate / frequency
	if period < 2 {
		period = 2
	}
	return &Square{period: period}
}

func (s *Square) SetTone(on bool) {
	s.on.Store(on)
}

// Read fills p with whole samples. The oto player calls it from its own
// goroutine, so only the on flag is shared.
func (s *Square) Read(p []byte) (int, error) {
	on := s.on.Load()

	n := len(p) &^ 1
	for i := 0; i < n; i += 2 {
		var sample int16
		if on {
			sample = amplitude
			if s.pos >= s.period/2 {
				sample = -amplitude
			}
		}
		s.pos = (s.pos + 1) % s.period

		binary.LittleEndian.PutUint16(p[i:], uint16(sample))
	}

	return n, nil
}

// Tone streams a Square through the system audio device.
type Tone struct {
	ctx    *oto.Context
	player *oto.Player
	square *Square
}

func NewTone() (*Tone, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   SampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create audio context: %w", err)
	}
	<-ready

	square := NewSquare(SampleRate, Frequency)
	player := ctx.NewPlayer(square)
	player.Play()

	return &Tone{
		ctx:    ctx,
		player: player,
		square: square,
	}, nil
}

func (t *Tone) SetTone(on bool) {
	t.square.SetTone(on)
}

func (t *Tone) Close() error {
	t.square.SetTone(false)
	if err := t.player.Close(); err != nil {
		return fmt.Errorf("failed to close audio player: %w", err)
	}
	return nil
}
