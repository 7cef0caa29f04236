package vm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
)

const (
	MemorySize    = 4096
	StackSize     = 16
	RegisterCount = 16
	ScreenWidth   = 64
	ScreenHeight  = 32
	KeyCount      = 16

	ProgramStart    = uint16(0x200)
	MaxProgramSize  = MemorySize - int(ProgramStart)
	InstructionSize = 2

	addressMask = MemorySize - 1
	flagReg     = 0x0F
)

var (
	ErrProgramTooLarge = errors.New("program too large")
	ErrStackOverflow   = errors.New("stack overflow")
	ErrStackUnderflow  = errors.New("stack underflow")
)

// Fault is returned by Step when an instruction cannot be executed. The
// machine state is left exactly as it was before the instruction.
type Fault struct {
	PC     uint16
	Opcode uint16
	Err    error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%v at 0x%04x (opcode 0x%04x)", f.Err, f.PC, f.Opcode)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// KeyWait selects how FX0A behaves.
type KeyWait uint8

const (
	// KeyWaitPoll stores the current state of key V[X] into V[X] and moves on.
	KeyWaitPoll KeyWait = iota
	// KeyWaitBlock repeats FX0A until a key is held, then stores its number.
	KeyWaitBlock
)

// Registers is a snapshot of the register file.
type Registers struct {
	V  [RegisterCount]uint8
	I  uint16
	PC uint16
	SP uint8
	DT uint8
	ST uint8
}

type VM struct {
	memory    [MemorySize]uint8    // Memory (4k)
	registers [RegisterCount]uint8 // V registers (V0-VF)

	stack [StackSize]uint16 // Stack
	sp    uint8             // Stack pointer

	pc    uint16 // Program counter
	index uint16 // Index register

	delayTimer uint8 // Delay timer
	soundTimer uint8 // Sound timer

	display Display
	keypad  Keypad

	rand    *rand.Rand
	keyWait KeyWait

	program []byte
}

type Option func(*VM)

// WithRand makes RND draw from src.
func WithRand(src rand.Source) Option {
	return func(vm *VM) {
		vm.rand = rand.New(src)
	}
}

func WithKeyWait(mode KeyWait) Option {
	return func(vm *VM) {
		vm.keyWait = mode
	}
}

// New returns a powered-on machine with the font loaded and no program.
func New(opts ...Option) *VM {
	vm := &VM{}
	for _, opt := range opts {
		opt(vm)
	}
	if vm.rand == nil {
		vm.rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	vm.initialize()
	return vm
}

// Load copies program into memory at ProgramStart and resets the machine.
// A program that does not fit is rejected and the machine is not touched.
func (vm *VM) Load(program []byte) error {
	if len(program) > MaxProgramSize {
		return fmt.Errorf("%w: %d bytes, at most %d fit", ErrProgramTooLarge, len(program), MaxProgramSize)
	}

	vm.program = append([]byte(nil), program...)
	vm.initialize()
	return nil
}

// Reset restores the power-on state and reloads the last loaded program.
func (vm *VM) Reset() {
	vm.initialize()
}

func (vm *VM) initialize() {
	vm.pc = ProgramStart
	vm.index = 0
	vm.sp = 0

	// Clear the display
	vm.display.Clear()

	// Clear the stack, keypad, and V registers
	slog.Debug("clear stack", "n", len(vm.stack))
	vm.stack = [StackSize]uint16{}

	slog.Debug("clear keypad", "n", KeyCount)
	vm.keypad.reset()

	slog.Debug("clear registers", "n", len(vm.registers))
	vm.registers = [RegisterCount]uint8{}

	// Clear memory
	slog.Debug("clear memory", "n", len(vm.memory))
	vm.memory = [MemorySize]uint8{}

	// Load font set into memory
	slog.Debug("load font", "at", fmt.Sprintf("0x%04x", 0), "n", len(chip8Font))
	copy(vm.memory[0:], chip8Font[:])

	// Load program into memory
	if len(vm.program) > 0 {
		slog.Info("load program", "at", fmt.Sprintf("0x%04x", ProgramStart), "n", len(vm.program))
		copy(vm.memory[ProgramStart:], vm.program)
	}

	// Reset timers
	vm.delayTimer = 0
	vm.soundTimer = 0
}

// Step runs one fetch, decode, execute and timer cycle.
func (vm *VM) Step() error {
	pc := vm.pc
	opcode := vm.fetchOpcode()
	vm.pc += InstructionSize

	instr := Decode(opcode)
	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		slog.Debug(
			"exec",
			"pc", fmt.Sprintf("0x%04x", pc),
			"opcode", fmt.Sprintf("0x%04x", opcode),
			"instr", instr.String(),
		)
	}

	if err := vm.execute(instr); err != nil {
		vm.pc = pc
		return &Fault{PC: pc, Opcode: opcode, Err: err}
	}

	// Update timers
	if vm.delayTimer > 0 {
		vm.delayTimer--
	}

	if vm.soundTimer > 0 {
		vm.soundTimer--
	}

	return nil
}

func (vm *VM) fetchOpcode() uint16 {
	hi := vm.read(vm.pc)
	lo := vm.read(vm.pc + 1)

	opcode := uint16(hi)<<8 | uint16(lo) // Op code is two bytes
	return opcode
}

// Addresses are reduced modulo the memory size.
func (vm *VM) read(addr uint16) uint8 {
	return vm.memory[addr&addressMask]
}

func (vm *VM) write(addr uint16, value uint8) {
	vm.memory[addr&addressMask] = value
}

// Peek returns the memory byte at addr modulo the memory size.
func (vm *VM) Peek(addr uint16) uint8 {
	return vm.read(addr)
}

func (vm *VM) Registers() Registers {
	return Registers{
		V:  vm.registers,
		I:  vm.index,
		PC: vm.pc,
		SP: vm.sp,
		DT: vm.delayTimer,
		ST: vm.soundTimer,
	}
}

// Stack returns a copy of the return addresses currently on the stack,
// oldest first.
func (vm *VM) Stack() []uint16 {
	return append([]uint16(nil), vm.stack[:vm.sp]...)
}

// Frame exposes the frame buffer, row-major, one byte per pixel. The slice
// is only valid until the next Step.
func (vm *VM) Frame() []uint8 {
	return vm.display.Pixels()
}

func (vm *VM) NeedsRedraw() bool {
	return vm.display.Dirty()
}

// ClearRedraw is called by the renderer after it consumed a frame.
func (vm *VM) ClearRedraw() {
	vm.display.MarkClean()
}

func (vm *VM) KeyDown(key Key) {
	vm.keypad.Set(key, true)
}

func (vm *VM) KeyUp(key Key) {
	vm.keypad.Set(key, false)
}

// SoundActive reports whether the sound timer is running.
func (vm *VM) SoundActive() bool {
	return vm.soundTimer > 0
}
