package vm

import (
	"context"
	"log/slog"
)

// HAL is the machine's view of its host: a renderer, an input layer, a tone
// generator and a clock.
type HAL interface {
	ReadInput(keyDown func(Key), keyUp func(Key)) error
	Draw(gfx []uint8) error
	SetSound(on bool) error
	WaitForNextFrame() error
}

// Run drives the machine until the HAL, the context or the program stops it.
// The HAL's own errors are returned unchanged so callers can react to them.
func (vm *VM) Run(ctx context.Context, hal HAL) error {
	sound := false
	looped := false

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		pc := vm.pc
		op := Decode(vm.fetchOpcode()).Op
		if err := vm.Step(); err != nil {
			return err
		}

		// A jump onto itself is how most programs halt. Keep stepping so the
		// timers run out, but say so once.
		if op == Op1NNN && vm.pc == pc {
			if !looped {
				slog.Info("program looped", "pc", pc)
				looped = true
			}
		} else {
			looped = false
		}

		if err := vm.present(hal, &sound); err != nil {
			return err
		}

		if err := hal.ReadInput(vm.KeyDown, vm.KeyUp); err != nil {
			return err
		}

		if err := hal.WaitForNextFrame(); err != nil {
			return err
		}
	}
}

// present hands a dirty frame to the renderer and forwards sound edges.
func (vm *VM) present(hal HAL, sound *bool) error {
	if vm.NeedsRedraw() {
		if err := hal.Draw(vm.Frame()); err != nil {
			return err
		}
		vm.ClearRedraw()
	}

	if on := vm.SoundActive(); on != *sound {
		if err := hal.SetSound(on); err != nil {
			return err
		}
		*sound = on
	}

	return nil
}
