// Package sdlhal is the SDL2 frontend.
package sdlhal

import (
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/kapitanov/chip8kit/internal/hal"
	"github.com/kapitanov/chip8kit/internal/vm"
	"github.com/veandco/go-sdl2/sdl"
)

const (
	bgColor = uint32(0x000000)
	fgColor = uint32(0xbea700)
)

type HAL struct {
	window          *sdl.Window
	renderer        *sdl.Renderer
	texture         *sdl.Texture
	backBuffer      []uint32
	backBufferPitch int

	pacer   *hal.Pacer
	speaker hal.Speaker
}

var _ hal.Frontend = (*HAL)(nil)

func New(opts hal.Options) (*HAL, error) {
	pacer, err := hal.NewPacer(opts.Rate)
	if err != nil {
		return nil, err
	}

	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return nil, fmt.Errorf("failed to init sdl: %w", err)
	}

	width, height := int32(vm.ScreenWidth*opts.Scale), int32(vm.ScreenHeight*opts.Scale)
	window, err := sdl.CreateWindow("CHIP-8", sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED, width, height, sdl.WINDOW_SHOWN)
	if err != nil {
		return nil, fmt.Errorf("failed to create sdl window: %w", err)
	}
	slog.Debug("hal: create window", "width", width, "height", height)

	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED)
	if err != nil {
		return nil, fmt.Errorf("failed to create sdl renderer: %w", err)
	}
	err = renderer.SetLogicalSize(width, height)
	if err != nil {
		return nil, fmt.Errorf("failed to resize sdl renderer: %w", err)
	}
	slog.Debug("hal: create renderer")

	texture, err := renderer.CreateTexture(sdl.PIXELFORMAT_ARGB8888, sdl.TEXTUREACCESS_STREAMING, vm.ScreenWidth, vm.ScreenHeight)
	if err != nil {
		return nil, fmt.Errorf("failed to create sdl texture: %w", err)
	}
	slog.Debug("hal: create texture")

	return &HAL{
		window:          window,
		renderer:        renderer,
		texture:         texture,
		backBuffer:      make([]uint32, vm.ScreenWidth*vm.ScreenHeight),
		backBufferPitch: int(vm.ScreenWidth) * int(unsafe.Sizeof(uint32(0))),
		pacer:           pacer,
		speaker:         opts.SpeakerOrSilent(),
	}, nil
}

// Run calls loop directly: SDL wants its events pumped on the thread that
// created the window, and main keeps that thread locked.
func (h *HAL) Run(loop func() error) error {
	return loop()
}

func (h *HAL) Close() error {
	h.pacer.Stop()
	h.speaker.SetTone(false)

	if err := h.texture.Destroy(); err != nil {
		slog.Error("failed to destroy sdl texture", "err", err)
	}

	if err := h.renderer.Destroy(); err != nil {
		slog.Error("failed to destroy sdl renderer", "err", err)
	}

	if err := h.window.Destroy(); err != nil {
		slog.Error("failed to destroy sdl window", "err", err)
	}

	sdl.Quit()
	return nil
}

func (h *HAL) ReadInput(keyDown func(vm.Key), keyUp func(vm.Key)) error {
	for e := sdl.PollEvent(); e != nil; e = sdl.PollEvent() {
		switch e.GetType() {
		case sdl.QUIT:
			slog.Debug("hal: exit requested")
			return hal.ErrQuit

		case sdl.KEYDOWN:
			if err := h.processKeyDown(e.(*sdl.KeyboardEvent), keyDown); err != nil {
				return err
			}

		case sdl.KEYUP:
			h.processKeyUp(e.(*sdl.KeyboardEvent), keyUp)
		}
	}

	return nil
}

func (h *HAL) processKeyDown(e *sdl.KeyboardEvent, callback func(vm.Key)) error {
	switch e.Keysym.Scancode {
	case sdl.SCANCODE_BACKSPACE:
		return hal.ErrReboot
	case sdl.SCANCODE_ESCAPE:
		return hal.ErrQuit
	}

	key, ok := keyMap(e)
	if ok {
		callback(key)
	}

	return nil
}

func (h *HAL) processKeyUp(e *sdl.KeyboardEvent, callback func(vm.Key)) {
	key, ok := keyMap(e)
	if ok {
		callback(key)
	}
}

// keyMap works on scancodes so the layout follows key positions, not labels.
func keyMap(e *sdl.KeyboardEvent) (vm.Key, bool) {
	key, ok := scancodes[e.Keysym.Scancode]
	return key, ok
}

var scancodes = map[sdl.Scancode]vm.Key{
	sdl.SCANCODE_X: vm.Key0,
	sdl.SCANCODE_1: vm.Key1,
	sdl.SCANCODE_2: vm.Key2,
	sdl.SCANCODE_3: vm.Key3,
	sdl.SCANCODE_Q: vm.Key4,
	sdl.SCANCODE_W: vm.Key5,
	sdl.SCANCODE_E: vm.Key6,
	sdl.SCANCODE_A: vm.Key7,
	sdl.SCANCODE_S: vm.Key8,
	sdl.SCANCODE_D: vm.Key9,
	sdl.SCANCODE_Z: vm.KeyA,
	sdl.SCANCODE_C: vm.KeyB,
	sdl.SCANCODE_4: vm.KeyC,
	sdl.SCANCODE_R: vm.KeyD,
	sdl.SCANCODE_F: vm.KeyE,
	sdl.SCANCODE_V: vm.KeyF,
}

func (h *HAL) Draw(gfx []uint8) error {
	for i, pixel := range gfx {
		color := bgColor
		if pixel != 0 {
			color = fgColor
		}
		h.backBuffer[i] = color
	}

	backBufferPtr := unsafe.Pointer(&h.backBuffer[0])
	if err := h.texture.Update(nil, backBufferPtr, h.backBufferPitch); err != nil {
		return fmt.Errorf("failed to update sdl texture: %w", err)
	}

	if err := h.renderer.Clear(); err != nil {
		return fmt.Errorf("failed to clear sdl renderer: %w", err)
	}

	if err := h.renderer.Copy(h.texture, nil, nil); err != nil {
		return fmt.Errorf("failed to copy sdl texture to renderer: %w", err)
	}

	h.renderer.Present()
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
