package vm

import "fmt"

// Op identifies one instruction of the CHIP-8 instruction set.
type Op uint8

const (
	OpUnknown Op = iota
	Op0NNN       // SYS addr, ignored
	Op00E0       // CLS
	Op00EE       // RET
	Op1NNN       // JP addr
	Op2NNN       // CALL addr
	Op3XNN       // SE Vx, byte
	Op4XNN       // SNE Vx, byte
	Op5XY0       // SE Vx, Vy
	Op6XNN       // LD Vx, byte
	Op7XNN       // ADD Vx, byte
	Op8XY0       // LD Vx, Vy
	Op8XY1       // OR Vx, Vy
	Op8XY2       // AND Vx, Vy
	Op8XY3       // XOR Vx, Vy
	Op8XY4       // ADD Vx, Vy
	Op8XY5       // SUB Vx, Vy
	Op8XY6       // SHR Vx, Vy
	Op8XY7       // SUBN Vx, Vy
	Op8XYE       // SHL Vx, Vy
	Op9XY0       // SNE Vx, Vy
	OpANNN       // LD I, addr
	OpBNNN       // JP V0, addr
	OpCXNN       // RND Vx, byte
	OpDXYN       // DRW Vx, Vy, nibble
	OpEX9E       // SKP Vx
	OpEXA1       // SKNP Vx
	OpFX07       // LD Vx, DT
	OpFX0A       // LD Vx, K
	OpFX15       // LD DT, Vx
	OpFX18       // LD ST, Vx
	OpFX1E       // ADD I, Vx
	OpFX29       // LD F, Vx
	OpFX33       // LD B, Vx
	OpFX55       // LD [I], Vx
	OpFX65       // LD Vx, [I]
)

// Instruction is a decoded opcode. All fields are plain bit slices of Opcode.
type Instruction struct {
	Op     Op
	Opcode uint16

	Class uint8  // top nibble
	X     uint8  // register index, bits 8-11
	Y     uint8  // register index, bits 4-7
	N     uint8  // 4-bit immediate
	NN    uint8  // 8-bit immediate
	NNN   uint16 // 12-bit address
}

// Decode extracts the operand fields of opcode and identifies its Op.
// It never fails: words outside the instruction set decode to OpUnknown.
func Decode(opcode uint16) Instruction {
	return Instruction{
		Op:     decodeOp(opcode),
		Opcode: opcode,
		Class:  uint8(opcode >> 12),
		X:      uint8((opcode & 0x0F00) >> 8),
		Y:      uint8((opcode & 0x00F0) >> 4),
		N:      uint8(opcode & 0x000F),
		NN:     uint8(opcode & 0x00FF),
		NNN:    opcode & 0x0FFF,
	}
}

func decodeOp(opcode uint16) Op {
	switch opcode & 0xF000 {
	case 0x0000:
		switch opcode & 0x00FF {
		case 0x00E0:
			return Op00E0
		case 0x00EE:
			return Op00EE
		}
		// 0NNN - COSMAC machine code routine
		return Op0NNN

	case 0x1000:
		return Op1NNN

	case 0x2000:
		return Op2NNN

	case 0x3000:
		return Op3XNN

	case 0x4000:
		return Op4XNN

	case 0x5000:
		return Op5XY0

	case 0x6000:
		return Op6XNN

	case 0x7000:
		return Op7XNN

	case 0x8000:
		switch opcode & 0x000F {
		case 0x0000:
			return Op8XY0
		case 0x0001:
			return Op8XY1
		case 0x0002:
			return Op8XY2
		case 0x0003:
			return Op8XY3
		case 0x0004:
			return Op8XY4
		case 0x0005:
			return Op8XY5
		case 0x0006:
			return Op8XY6
		case 0x0007:
			return Op8XY7
		case 0x000E:
			return Op8XYE
		}

	case 0x9000:
		return Op9XY0

	case 0xA000:
		return OpANNN

	case 0xB000:
		return OpBNNN

	case 0xC000:
		return OpCXNN

	case 0xD000:
		return OpDXYN

	case 0xE000:
		switch opcode & 0x00FF {
		case 0x009E:
			return OpEX9E
		case 0x00A1:
			return OpEXA1
		}

	case 0xF000:
		switch opcode & 0x00FF {
		case 0x0007:
			return OpFX07
		case 0x000A:
			return OpFX0A
		case 0x0015:
			return OpFX15
		case 0x0018:
			return OpFX18
		case 0x001E:
			return OpFX1E
		case 0x0029:
			return OpFX29
		case 0x0033:
			return OpFX33
		case 0x0055:
			return OpFX55
		case 0x0065:
			return OpFX65
		}
	}

	return OpUnknown
}

// String renders the instruction in assembler notation, e.g. "LD I, 0x2f0".
func (in Instruction) String() string {
	switch in.Op {
	case Op0NNN:
		return fmt.Sprintf("SYS 0x%03x", in.NNN)
	case Op00E0:
		return "CLS"
	case Op00EE:
		return "RET"
	case Op1NNN:
		return fmt.Sprintf("JP 0x%03x", in.NNN)
	case Op2NNN:
		return fmt.Sprintf("CALL 0x%03x", in.NNN)
	case Op3XNN:
		return fmt.Sprintf("SE V[%X], 0x%02x", in.X, in.NN)
	case Op4XNN:
		return fmt.Sprintf("SNE V[%X], 0x%02x", in.X, in.NN)
	case Op5XY0:
		return fmt.Sprintf("SE V[%X], V[%X]", in.X, in.Y)
	case Op6XNN:
		return fmt.Sprintf("LD V[%X], 0x%02x", in.X, in.NN)
	case Op7XNN:
		return fmt.Sprintf("ADD V[%X], 0x%02x", in.X, in.NN)
	case Op8XY0:
		return in.registerPair("LD")
	case Op8XY1:
		return in.registerPair("OR")
	case Op8XY2:
		return in.registerPair("AND")
	case Op8XY3:
		return in.registerPair("XOR")
	case Op8XY4:
		return in.registerPair("ADD")
	case Op8XY5:
		return in.registerPair("SUB")
	case Op8XY6:
		return in.registerPair("SHR")
	case Op8XY7:
		return in.registerPair("SUBN")
	case Op8XYE:
		return in.registerPair("SHL")
	case Op9XY0:
		return in.registerPair("SNE")
	case OpANNN:
		return fmt.Sprintf("LD I, 0x%03x", in.NNN)
	case OpBNNN:
		return fmt.Sprintf("JP V[0], 0x%03x", in.NNN)
	case OpCXNN:
		return fmt.Sprintf("RND V[%X], 0x%02x", in.X, in.NN)
	case OpDXYN:
		return fmt.Sprintf("DRW V[%X], V[%X], 0x%x", in.X, in.Y, in.N)
	case OpEX9E:
		return fmt.Sprintf("SKP V[%X]", in.X)
	case OpEXA1:
		return fmt.Sprintf("SKNP V[%X]", in.X)
	case OpFX07:
		return fmt.Sprintf("LD V[%X], DT", in.X)
	case OpFX0A:
		return fmt.Sprintf("LD V[%X], K", in.X)
	case OpFX15:
		return fmt.Sprintf("LD DT, V[%X]", in.X)
	case OpFX18:
		return fmt.Sprintf("LD ST, V[%X]", in.X)
	case OpFX1E:
		return fmt.Sprintf("ADD I, V[%X]", in.X)
	case OpFX29:
		return fmt.Sprintf("LD F, V[%X]", in.X)
	case OpFX33:
		return fmt.Sprintf("LD B, V[%X]", in.X)
	case OpFX55:
		return fmt.Sprintf("LD [I], V[%X]", in.X)
	case OpFX65:
		return fmt.Sprintf("LD V[%X], [I]", in.X)
	case OpUnknown:
		return fmt.Sprintf("UNKNOWN 0x%04X", in.Opcode)
	}

	return fmt.Sprintf("UNKNOWN 0x%04X", in.Opcode)
}

func (in Instruction) registerPair(mnemonic string) string {
	return fmt.Sprintf("%s V[%X], V[%X]", mnemonic, in.X, in.Y)
}
