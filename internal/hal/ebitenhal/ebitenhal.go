// Package ebitenhal is the Ebiten frontend. Ebiten owns the main goroutine;
// the machine loop runs beside it and hands frames over under a lock.
package ebitenhal

import (
	"errors"
	"fmt"
	"image/color"
	"sync"
	"sync/atomic"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"golang.org/x/image/font/basicfont"

	"github.com/kapitanov/chip8kit/internal/hal"
	"github.com/kapitanov/chip8kit/internal/vm"
)

const overlayWidth = 168

var (
	bgColor = color.RGBA{0x00, 0x00, 0x00, 0xff}
	fgColor = color.RGBA{0xbe, 0xa7, 0x00, 0xff}
)

var keymap = [vm.KeyCount]ebiten.Key{
	vm.Key0: ebiten.KeyX,
	vm.Key1: ebiten.KeyDigit1,
	vm.Key2: ebiten.KeyDigit2,
	vm.Key3: ebiten.KeyDigit3,
	vm.Key4: ebiten.KeyQ,
	vm.Key5: ebiten.KeyW,
	vm.Key6: ebiten.KeyE,
	vm.Key7: ebiten.KeyA,
	vm.Key8: ebiten.KeyS,
	vm.Key9: ebiten.KeyD,
	vm.KeyA: ebiten.KeyZ,
	vm.KeyB: ebiten.KeyC,
	vm.KeyC: ebiten.KeyDigit4,
	vm.KeyD: ebiten.KeyR,
	vm.KeyE: ebiten.KeyF,
	vm.KeyF: ebiten.KeyV,
}

type HAL struct {
	opts    hal.Options
	pacer   *hal.Pacer
	speaker hal.Speaker

	mu     sync.Mutex
	pixels []byte // RGBA, written by Draw, read by the game
	status vm.Registers
	keys   [vm.KeyCount]bool // physical state, written by the game

	seen   [vm.KeyCount]bool // state last reported to the machine
	quit   atomic.Bool
	reboot atomic.Bool
	done   chan struct{}
}

var _ hal.Frontend = (*HAL)(nil)

func New(opts hal.Options) (*HAL, error) {
	pacer, err := hal.NewPacer(opts.Rate)
	if err != nil {
		return nil, err
	}

	h := &HAL{
		opts:    opts,
		pacer:   pacer,
		speaker: opts.SpeakerOrSilent(),
		pixels:  make([]byte, vm.ScreenWidth*vm.ScreenHeight*4),
		done:    make(chan struct{}),
	}
	fill(h.pixels, make([]uint8, vm.ScreenWidth*vm.ScreenHeight))
	return h, nil
}

func (h *HAL) Run(loop func() error) error {
	errc := make(chan error, 1)
	go func() {
		defer close(h.done)
		errc <- loop()
	}()

	width, height := h.layout()
	ebiten.SetWindowSize(width, height)
	ebiten.SetWindowTitle("CHIP-8")
	ebiten.SetRunnableOnUnfocused(true)

	if err := ebiten.RunGame(&game{h: h}); err != nil && !errors.Is(err, ebiten.Termination) {
		h.quit.Store(true)
		<-errc
		return fmt.Errorf("ebiten: %w", err)
	}

	// Window closed: let the machine loop notice and wind down.
	h.quit.Store(true)
	return <-errc
}

func (h *HAL) Close() error {
	h.pacer.Stop()
	h.speaker.SetTone(false)
	return nil
}

func (h *HAL) ReadInput(keyDown func(vm.Key), keyUp func(vm.Key)) error {
	if h.quit.Load() {
		return hal.ErrQuit
	}
	if h.reboot.Swap(false) {
		h.seen = [vm.KeyCount]bool{}
		return hal.ErrReboot
	}

	h.mu.Lock()
	keys := h.keys
	h.mu.Unlock()

	for i, down := range keys {
		if down == h.seen[i] {
			continue
		}
		if down {
			keyDown(vm.Key(i))
		} else {
			keyUp(vm.Key(i))
		}
		h.seen[i] = down
	}

	return nil
}

func (h *HAL) Draw(gfx []uint8) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	fill(h.pixels, gfx)
	if h.opts.Overlay && h.opts.Status != nil {
		h.status = h.opts.Status()
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

func (h *HAL) layout() (int, int) {
	width := vm.ScreenWidth * h.opts.Scale
	if h.opts.Overlay {
		width += overlayWidth
	}
	return width, vm.ScreenHeight * h.opts.Scale
}

// fill converts a frame buffer into RGBA pixels.
func fill(dst []byte, gfx []uint8) {
	for i, pixel := range gfx {
		c := bgColor
		if pixel != 0 {
			c = fgColor
		}
		dst[i*4+0] = c.R
		dst[i*4+1] = c.G
		dst[i*4+2] = c.B
		dst[i*4+3] = c.A
	}
}

// game adapts HAL to ebiten.Game; HAL.Draw already means something else.
type game struct {
	h      *HAL
	screen *ebiten.Image
}

func (g *game) Update() error {
	select {
	case <-g.h.done:
		return ebiten.Termination
	default:
	}

	if ebiten.IsKeyPressed(ebiten.KeyEscape) {
		g.h.quit.Store(true)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
		g.h.reboot.Store(true)
	}

	g.h.mu.Lock()
	for key, k := range keymap {
		g.h.keys[key] = ebiten.IsKeyPressed(k)
	}
	g.h.mu.Unlock()

	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	if g.screen == nil {
		g.screen = ebiten.NewImage(vm.ScreenWidth, vm.ScreenHeight)
	}

	g.h.mu.Lock()
	g.screen.WritePixels(g.h.pixels)
	status := g.h.status
	g.h.mu.Unlock()

	screen.Fill(bgColor)

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(g.h.opts.Scale), float64(g.h.opts.Scale))
	screen.DrawImage(g.screen, op)

	if g.h.opts.Overlay {
		x := vm.ScreenWidth*g.h.opts.Scale + 8
		for i, line := range statusLines(status) {
			text.Draw(screen, line, basicfont.Face7x13, x, 16+i*14, fgColor)
		}
	}
}

func (g *game) Layout(_, _ int) (int, int) {
	return g.h.layout()
}

func statusLines(r vm.Registers) []string {
	lines := []string{
		fmt.Sprintf("PC %04X  I %04X", r.PC, r.I),
		fmt.Sprintf("SP %02X DT %02X ST %02X", r.SP, r.DT, r.ST),
	}
	for i := 0; i < vm.RegisterCount; i += 2 {
		lines = append(lines, fmt.Sprintf("V%X %02X    V%X %02X", i, r.V[i], i+1, r.V[i+1]))
	}
	return lines
}
