package vm

// execute applies one decoded instruction. PC already points past it.
// An instruction that returns an error must not have changed any state.
func (vm *VM) execute(in Instruction) error {
	v := &vm.registers

	switch in.Op {
	case Op00E0:
		vm.display.Clear()

	case Op00EE:
		if vm.sp == 0 {
			return ErrStackUnderflow
		}
		vm.sp--
		vm.pc = vm.stack[vm.sp]

	case Op1NNN:
		vm.pc = in.NNN

	case Op2NNN:
		if int(vm.sp) >= StackSize {
			return ErrStackOverflow
		}
		vm.stack[vm.sp] = vm.pc
		vm.sp++
		vm.pc = in.NNN

	case Op3XNN:
		if v[in.X] == in.NN {
			vm.pc += InstructionSize
		}

	case Op4XNN:
		if v[in.X] != in.NN {
			vm.pc += InstructionSize
		}

	case Op5XY0:
		if v[in.X] == v[in.Y] {
			vm.pc += InstructionSize
		}

	case Op6XNN:
		v[in.X] = in.NN

	case Op7XNN:
		// No carry generated
		v[in.X] += in.NN

	case Op8XY0:
		v[in.X] = v[in.Y]

	case Op8XY1:
		v[in.X] |= v[in.Y]

	case Op8XY2:
		v[in.X] &= v[in.Y]

	case Op8XY3:
		v[in.X] ^= v[in.Y]

	case Op8XY4:
		x, y := v[in.X], v[in.Y]
		v[flagReg] = boolToFlag(uint16(x)+uint16(y) > 0xFF)
		// VF may be the destination itself; the sum wins then.
		v[in.X] = x + y

	case Op8XY5:
		x, y := v[in.X], v[in.Y]
		v[flagReg] = boolToFlag(x > y)
		v[in.X] = x - y

	case Op8XY6:
		// VY is ignored
		x := v[in.X]
		v[flagReg] = x & 0x01
		v[in.X] = x >> 1

	case Op8XY7:
		x, y := v[in.X], v[in.Y]
		v[flagReg] = boolToFlag(y > x)
		v[in.X] = y - x

	case Op8XYE:
		x := v[in.X]
		v[flagReg] = x >> 7
		v[in.X] = x << 1

	case Op9XY0:
		if v[in.X] != v[in.Y] {
			vm.pc += InstructionSize
		}

	case OpANNN:
		vm.index = in.NNN

	case OpBNNN:
		vm.pc = in.NNN + uint16(v[0])

	case OpCXNN:
		v[in.X] = uint8(vm.rand.UintN(256)) & in.NN

	case OpDXYN:
		sprite := make([]uint8, in.N)
		for row := range sprite {
			sprite[row] = vm.read(vm.index + uint16(row))
		}
		collision := vm.display.DrawSprite(sprite, v[in.X], v[in.Y])
		v[flagReg] = boolToFlag(collision)

	case OpEX9E:
		if vm.keypad.IsDown(Key(v[in.X])) {
			vm.pc += InstructionSize
		}

	case OpEXA1:
		if !vm.keypad.IsDown(Key(v[in.X])) {
			vm.pc += InstructionSize
		}

	case OpFX07:
		v[in.X] = vm.delayTimer

	case OpFX0A:
		vm.waitKey(in.X)

	case OpFX15:
		vm.delayTimer = v[in.X]

	case OpFX18:
		vm.soundTimer = v[in.X]

	case OpFX1E:
		vm.index += uint16(v[in.X])

	case OpFX29:
		vm.index = uint16(v[in.X]) * FontGlyphSize

	case OpFX33:
		x := v[in.X]
		vm.write(vm.index, x/100)
		vm.write(vm.index+1, (x/10)%10)
		vm.write(vm.index+2, x%10)

	case OpFX55:
		for i := uint16(0); i <= uint16(in.X); i++ {
			vm.write(vm.index+i, v[i])
		}

	case OpFX65:
		for i := uint16(0); i <= uint16(in.X); i++ {
			v[i] = vm.read(vm.index + i)
		}

	case Op0NNN, OpUnknown:
		// Ignored, PC has already moved on.
	}

	return nil
}

func (vm *VM) waitKey(x uint8) {
	switch vm.keyWait {
	case KeyWaitBlock:
		key, ok := vm.keypad.Lowest()
		if !ok {
			vm.pc -= InstructionSize
			return
		}
		vm.registers[x] = uint8(key)

	case KeyWaitPoll:
		vm.registers[x] = boolToFlag(vm.keypad.IsDown(Key(vm.registers[x])))
	}
}

func boolToFlag(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
