package vm

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestVM loads the given opcode words at ProgramStart.
func newTestVM(t *testing.T, words ...uint16) *VM {
	t.Helper()

	program := make([]byte, 0, len(words)*2)
	for _, w := range words {
		program = append(program, byte(w>>8), byte(w))
	}

	vm := New(WithRand(rand.NewPCG(1, 2)))
	require.NoError(t, vm.Load(program))
	return vm
}

func TestNew(t *testing.T) {
	vm := New()

	r := vm.Registers()
	assert.Equal(t, ProgramStart, r.PC)
	assert.Equal(t, uint16(0), r.I)
	assert.Equal(t, uint8(0), r.SP)
	assert.Equal(t, [RegisterCount]uint8{}, r.V)

	if diff := cmp.Diff(chip8Font[:], vm.memory[:len(chip8Font)]); diff != "" {
		t.Errorf("font: (-want, +got)\n%s", diff)
	}
	assert.Len(t, vm.Frame(), ScreenWidth*ScreenHeight)
	assert.False(t, vm.SoundActive())
}

func TestVM_Load(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{name: "empty", size: 0},
		{name: "fits", size: MaxProgramSize},
		{name: "one byte too large", size: MaxProgramSize + 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := New()
			program := make([]byte, tt.size)
			for i := range program {
				program[i] = 0xAB
			}

			err := vm.Load(program)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrProgramTooLarge)
				return
			}
			require.NoError(t, err)
			if tt.size > 0 {
				assert.Equal(t, uint8(0xAB), vm.Peek(ProgramStart))
				assert.Equal(t, uint8(0xAB), vm.Peek(MemorySize-1))
			}
		})
	}
}

func TestVM_LoadRejectedLeavesMachineUntouched(t *testing.T) {
	vm := newTestVM(t, 0x6005, 0x7005)
	require.NoError(t, vm.Step())
	before := vm.Registers()
	memBefore := vm.memory

	err := vm.Load(make([]byte, MaxProgramSize+1))
	require.ErrorIs(t, err, ErrProgramTooLarge)

	assert.Equal(t, before, vm.Registers())
	assert.Equal(t, memBefore, vm.memory)
}

func TestVM_Reset(t *testing.T) {
	vm := newTestVM(t, 0x6005, 0xA300, 0xF055)
	for range 3 {
		require.NoError(t, vm.Step())
	}
	vm.KeyDown(Key7)
	require.Equal(t, uint8(5), vm.Peek(0x300))

	vm.Reset()

	r := vm.Registers()
	assert.Equal(t, ProgramStart, r.PC)
	assert.Equal(t, uint8(0), r.V[0])
	assert.Equal(t, uint16(0), r.I)
	assert.Equal(t, uint8(0), vm.Peek(0x300))
	assert.Equal(t, uint8(0x60), vm.Peek(ProgramStart), "program is reloaded")
	assert.False(t, vm.keypad.IsDown(Key7))
}

func TestVM_RoundTrip(t *testing.T) {
	vm := newTestVM(t, 0x6005, 0x7005)

	require.NoError(t, vm.Step())
	require.NoError(t, vm.Step())

	r := vm.Registers()
	assert.Equal(t, uint8(10), r.V[0])
	assert.Equal(t, uint16(0x204), r.PC)
}

func TestVM_Timers(t *testing.T) {
	// V0 = 5; DT = V0; ST = V0; V1 = DT
	vm := newTestVM(t, 0x6005, 0xF015, 0xF018, 0xF107)

	require.NoError(t, vm.Step())
	require.NoError(t, vm.Step())
	assert.Equal(t, uint8(4), vm.Registers().DT, "timer ticks after dispatch")

	require.NoError(t, vm.Step())
	assert.Equal(t, uint8(4), vm.Registers().ST)
	assert.True(t, vm.SoundActive())

	require.NoError(t, vm.Step())
	assert.Equal(t, uint8(3), vm.Registers().V[1])
}

func TestVM_SoundStopsWhenTimerRunsOut(t *testing.T) {
	// V0 = 2; ST = V0; then spin
	vm := newTestVM(t, 0x6002, 0xF018, 0x1204)

	require.NoError(t, vm.Step())
	require.NoError(t, vm.Step())
	assert.True(t, vm.SoundActive())

	require.NoError(t, vm.Step())
	assert.False(t, vm.SoundActive())
	assert.Equal(t, uint8(0), vm.Registers().ST)
}

func TestVM_StackOverflow(t *testing.T) {
	// CALL 0x200 forever
	vm := newTestVM(t, 0x2200)

	for range StackSize {
		require.NoError(t, vm.Step())
	}
	before := vm.Registers()

	err := vm.Step()
	require.ErrorIs(t, err, ErrStackOverflow)

	var fault *Fault
	require.True(t, errors.As(err, &fault))
	assert.Equal(t, uint16(0x200), fault.PC)
	assert.Equal(t, uint16(0x2200), fault.Opcode)
	assert.Equal(t, before, vm.Registers(), "faulting instruction has no effect")
	assert.Len(t, vm.Stack(), StackSize)
}

func TestVM_StackUnderflow(t *testing.T) {
	// V0 = 3; ST = V0; RET
	vm := newTestVM(t, 0x6003, 0xF018, 0x00EE)
	require.NoError(t, vm.Step())
	require.NoError(t, vm.Step())
	before := vm.Registers()

	err := vm.Step()
	require.ErrorIs(t, err, ErrStackUnderflow)
	assert.Equal(t, before, vm.Registers(), "timers do not tick on a fault")
	assert.Equal(t, uint16(0x204), vm.Registers().PC)
}

func TestVM_CallAndReturn(t *testing.T) {
	// 0x200: CALL 0x206
	// 0x202: LD V1, 0x01
	// 0x204: JP 0x204
	// 0x206: LD V0, 0x42
	// 0x208: RET
	vm := newTestVM(t, 0x2206, 0x6101, 0x1204, 0x6042, 0x00EE)

	require.NoError(t, vm.Step())
	assert.Equal(t, uint16(0x206), vm.Registers().PC)
	assert.Equal(t, []uint16{0x202}, vm.Stack())

	require.NoError(t, vm.Step())
	require.NoError(t, vm.Step())
	assert.Equal(t, uint16(0x202), vm.Registers().PC)
	assert.Empty(t, vm.Stack())

	require.NoError(t, vm.Step())
	r := vm.Registers()
	assert.Equal(t, uint8(0x42), r.V[0])
	assert.Equal(t, uint8(0x01), r.V[1])
}

func TestVM_FetchWrapsAtEndOfMemory(t *testing.T) {
	vm := New()
	vm.memory[MemorySize-1] = 0x60
	vm.memory[0] = 0xF0 // first font byte doubles as the low byte
	vm.pc = MemorySize - 1

	require.NoError(t, vm.Step())
	assert.Equal(t, uint8(0xF0), vm.Registers().V[0])
}

func TestVM_Keys(t *testing.T) {
	vm := New()

	vm.KeyDown(KeyA)
	assert.True(t, vm.keypad.IsDown(KeyA))

	vm.KeyUp(KeyA)
	assert.False(t, vm.keypad.IsDown(KeyA))

	// out of range keys are ignored
	vm.KeyDown(Key(0x1F))
	_, ok := vm.keypad.Lowest()
	assert.False(t, ok)
}
