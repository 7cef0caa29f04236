// Package hal holds what every frontend shares: the sentinel errors the
// machine loop reacts to, the keypad layout and the cycle clock.
package hal

import (
	"errors"
	"fmt"
	"time"
	"unicode"

	"github.com/kapitanov/chip8kit/internal/vm"
)

var (
	ErrReboot = errors.New("reboot")
	ErrQuit   = errors.New("quit")
)

// Frontend is a complete host for the machine.
type Frontend interface {
	vm.HAL

	// Run calls loop on whichever goroutine the frontend does not need for
	// itself and returns once loop returns or the frontend is closed.
	Run(loop func() error) error
	Close() error
}

// Speaker turns a tone on or off.
type Speaker interface {
	SetTone(on bool)
}

// Silent is a Speaker that does nothing.
type Silent struct{}

func (Silent) SetTone(bool) {}

// Options configures a frontend.
type Options struct {
	Scale   int          // window pixels per machine pixel
	Rate    int          // machine cycles per second
	Speaker Speaker      // nil means Silent
	Overlay bool         // draw registers next to the screen, where supported
	Status  func() vm.Registers
}

func (o Options) SpeakerOrSilent() Speaker {
	if o.Speaker == nil {
		return Silent{}
	}
	return o.Speaker
}

// Physical                Logical
// ================        =================
// | 1 | 2 | 3 | 4 |       | 1 | 2 | 3 | C |
// | q | w | e | r |       | 4 | 5 | 6 | D |
// | a | s | d | f |  <=>  | 7 | 8 | 9 | E |
// | z | x | c | v |       | A | 0 | B | F |
// ================        =================
var layout = [vm.KeyCount]rune{
	vm.Key0: 'x',
	vm.Key1: '1',
	vm.Key2: '2',
	vm.Key3: '3',
	vm.Key4: 'q',
	vm.Key5: 'w',
	vm.Key6: 'e',
	vm.Key7: 'a',
	vm.Key8: 's',
	vm.Key9: 'd',
	vm.KeyA: 'z',
	vm.KeyB: 'c',
	vm.KeyC: '4',
	vm.KeyD: 'r',
	vm.KeyE: 'f',
	vm.KeyF: 'v',
}

// KeyForRune maps a character of the physical layout to its keypad key.
func KeyForRune(r rune) (vm.Key, bool) {
	r = unicode.ToLower(r)
	for key, c := range layout {
		if c == r {
			return vm.Key(key), true
		}
	}
	return 0, false
}

// RuneForKey is the inverse of KeyForRune.
func RuneForKey(key vm.Key) rune {
	return layout[key&0x0F]
}

// Pacer releases one machine cycle per tick.
type Pacer struct {
	ticker *time.Ticker
}

func NewPacer(rate int) (*Pacer, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("invalid cycle rate %d", rate)
	}
	return &Pacer{ticker: time.NewTicker(time.Second / time.Duration(rate))}, nil
}

func (p *Pacer) Wait() {
	<-p.ticker.C
}

func (p *Pacer) Stop() {
	p.ticker.Stop()
}
