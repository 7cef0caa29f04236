package vm

import "fmt"

type Key uint8

const (
	Key0 = Key(iota)
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	KeyA
	KeyB
	KeyC
	KeyD
	KeyE
	KeyF
)

func (k Key) String() string {
	return fmt.Sprintf("%X", uint8(k)&0x0F)
}

// Keypad is the state of the 16-key hex keypad. Only the input layer writes
// to it; the executor reads it.
type Keypad struct {
	down [KeyCount]bool
}

// Set records a key transition. Keys above 0xF are ignored.
func (kp *Keypad) Set(key Key, down bool) {
	if int(key) >= KeyCount {
		return
	}
	kp.down[key] = down
}

// IsDown reports whether key is held. Only the low nibble of key is used,
// matching how the executor addresses keys through a register.
func (kp *Keypad) IsDown(key Key) bool {
	return kp.down[key&0x0F]
}

// Lowest returns the lowest-numbered key currently held.
func (kp *Keypad) Lowest() (Key, bool) {
	for i, down := range kp.down {
		if down {
			return Key(i), true
		}
	}
	return 0, false
}

func (kp *Keypad) reset() {
	kp.down = [KeyCount]bool{}
}
