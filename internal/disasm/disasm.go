// Package disasm renders CHIP-8 programs as one assembler line per opcode
// word. Nothing is executed: every 2-byte word is treated as an instruction,
// including words that are really sprite or table data.
package disasm

import (
	"bufio"
	"fmt"
	"io"
	"iter"

	"github.com/kapitanov/chip8kit/internal/vm"
)

// Line is one disassembled word.
type Line struct {
	Address     uint16
	Instruction vm.Instruction
}

// String formats the line as "ADDR 0x0000: CLS".
func (l Line) String() string {
	return fmt.Sprintf("ADDR 0x%04x: %s", l.Address, l.Instruction)
}

// Lines yields the program word by word. Addresses start at base. A trailing
// odd byte is decoded as the high byte of a word whose low byte is zero.
// The sequence can be ranged over any number of times.
func Lines(program []byte, base uint16) iter.Seq[Line] {
	return func(yield func(Line) bool) {
		for i := 0; i < len(program); i += vm.InstructionSize {
			opcode := uint16(program[i]) << 8
			if i+1 < len(program) {
				opcode |= uint16(program[i+1])
			}

			line := Line{
				Address:     base + uint16(i),
				Instruction: vm.Decode(opcode),
			}
			if !yield(line) {
				return
			}
		}
	}
}

// Write disassembles program into w, one line per word.
func Write(w io.Writer, program []byte, base uint16) error {
	bw := bufio.NewWriter(w)
	for line := range Lines(program, base) {
		if _, err := fmt.Fprintln(bw, line); err != nil {
			return fmt.Errorf("write line at 0x%04x: %w", line.Address, err)
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}
