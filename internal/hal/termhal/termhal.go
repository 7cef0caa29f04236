// Package termhal runs the machine inside a terminal: stdin in raw mode for
// keys, ANSI half blocks for pixels, two machine rows per text row.
package termhal

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/term"

	"github.com/kapitanov/chip8kit/internal/hal"
	"github.com/kapitanov/chip8kit/internal/vm"
)

// Terminals only report key presses, so a key counts as held for this long
// after its last press (auto-repeat keeps it alive while the key is down).
const holdDuration = 150 * time.Millisecond

const (
	ctrlC     = 0x03
	backspace = 0x08
	escape    = 0x1b
	del       = 0x7f
)

type HAL struct {
	in       *os.File
	out      io.Writer
	oldState *term.State

	pacer   *hal.Pacer
	speaker hal.Speaker
	now     func() time.Time

	mu       sync.Mutex
	deadline [vm.KeyCount]time.Time

	held   [vm.KeyCount]bool
	quit   atomic.Bool
	reboot atomic.Bool

	frame bytes.Buffer
}

var _ hal.Frontend = (*HAL)(nil)

// New puts in into raw mode. Both in and out must be terminals.
func New(opts hal.Options, in, out *os.File) (*HAL, error) {
	if !term.IsTerminal(int(in.Fd())) || !term.IsTerminal(int(out.Fd())) {
		return nil, fmt.Errorf("term backend needs an interactive terminal")
	}

	if width, height, err := term.GetSize(int(out.Fd())); err == nil {
		if width < vm.ScreenWidth || height < vm.ScreenHeight/2 {
			slog.Warn("terminal is smaller than the screen", "width", width, "height", height)
		}
	}

	h, err := newHAL(opts, out, time.Now)
	if err != nil {
		return nil, err
	}

	oldState, err := term.MakeRaw(int(in.Fd()))
	if err != nil {
		h.pacer.Stop()
		return nil, fmt.Errorf("failed to set raw mode: %w", err)
	}
	h.in = in
	h.oldState = oldState

	// Clear and hide the cursor
	fmt.Fprint(out, "\x1b[2J\x1b[?25l")
	return h, nil
}

func newHAL(opts hal.Options, out io.Writer, now func() time.Time) (*HAL, error) {
	pacer, err := hal.NewPacer(opts.Rate)
	if err != nil {
		return nil, err
	}

	return &HAL{
		out:     out,
		pacer:   pacer,
		speaker: opts.SpeakerOrSilent(),
		now:     now,
	}, nil
}

// Run starts reading stdin and calls loop on the current goroutine.
func (h *HAL) Run(loop func() error) error {
	if h.in != nil {
		go h.readStdin()
	}
	return loop()
}

func (h *HAL) Close() error {
	h.pacer.Stop()
	h.speaker.SetTone(false)

	fmt.Fprint(h.out, "\x1b[?25h\x1b[0m\r\n")
	if h.oldState != nil {
		if err := term.Restore(int(h.in.Fd()), h.oldState); err != nil {
			return fmt.Errorf("failed to restore terminal: %w", err)
		}
		h.oldState = nil
	}
	return nil
}

func (h *HAL) readStdin() {
	buf := make([]byte, 16)
	for {
		n, err := h.in.Read(buf)
		for _, b := range buf[:n] {
			h.handleByte(b)
		}
		if err != nil {
			slog.Debug("hal: stdin closed", "err", err)
			h.quit.Store(true)
			return
		}
	}
}

func (h *HAL) handleByte(b byte) {
	switch b {
	case ctrlC, escape:
		h.quit.Store(true)
		return
	case backspace, del:
		h.reboot.Store(true)
		return
	}

	key, ok := hal.KeyForRune(rune(b))
	if !ok {
		return
	}

	h.mu.Lock()
	h.deadline[key] = h.now().Add(holdDuration)
	h.mu.Unlock()
}

func (h *HAL) ReadInput(keyDown func(vm.Key), keyUp func(vm.Key)) error {
	if h.quit.Load() {
		return hal.ErrQuit
	}
	if h.reboot.Swap(false) {
		h.held = [vm.KeyCount]bool{}
		return hal.ErrReboot
	}

	now := h.now()
	h.mu.Lock()
	deadline := h.deadline
	h.mu.Unlock()

	for i := range deadline {
		down := now.Before(deadline[i])
		if down == h.held[i] {
			continue
		}
		if down {
			keyDown(vm.Key(i))
		} else {
			keyUp(vm.Key(i))
		}
		h.held[i] = down
	}

	return nil
}

func (h *HAL) Draw(gfx []uint8) error {
	h.frame.Reset()
	render(&h.frame, gfx)
	if _, err := h.out.Write(h.frame.Bytes()); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

func (h *HAL) SetSound(on bool) error {
	h.speaker.SetTone(on)
	return nil
}

func (h *HAL) WaitForNextFrame() error {
	h.pacer.Wait()
	return nil
}

var halfBlocks = [4]string{
	0b00: " ",
	0b10: "▀", // upper half
	0b01: "▄", // lower half
	0b11: "█", // full block
}

// render writes the frame starting at the top-left corner of the terminal.
func render(buf *bytes.Buffer, gfx []uint8) {
	buf.WriteString("\x1b[H")
	for y := 0; y < vm.ScreenHeight; y += 2 {
		for x := 0; x < vm.ScreenWidth; x++ {
			top := gfx[y*vm.ScreenWidth+x] & 1
			bottom := gfx[(y+1)*vm.ScreenWidth+x] & 1
			buf.WriteString(halfBlocks[top<<1|bottom])
		}
		buf.WriteString("\r\n")
	}
}
