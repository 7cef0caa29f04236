package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kapitanov/chip8kit/internal/hal"
	"github.com/kapitanov/chip8kit/internal/vm"
)

func writeROM(t *testing.T, program []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.ch8")
	require.NoError(t, os.WriteFile(path, program, 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDisasmCmd(t *testing.T) {
	path := writeROM(t, []byte{0x00, 0xE0, 0xA2, 0xF0})

	out, err := execute(t, "disasm", path)
	require.NoError(t, err)
	assert.Equal(t, "ADDR 0x0000: CLS\nADDR 0x0002: LD I, 0x2f0\n", out)
}

func TestDisasmCmd_Base(t *testing.T) {
	path := writeROM(t, []byte{0x12, 0x00})

	out, err := execute(t, "disasm", "--base", "512", path)
	require.NoError(t, err)
	assert.Equal(t, "ADDR 0x0200: JP 0x200\n", out)
}

func TestDisasmCmd_OutputFile(t *testing.T) {
	path := writeROM(t, []byte{0x00, 0xEE})
	output := filepath.Join(t.TempDir(), "out.txt")

	out, err := execute(t, "disasm", "-o", output, path)
	require.NoError(t, err)
	assert.Empty(t, out)

	bs, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "ADDR 0x0000: RET\n", string(bs))
}

func TestDisasmCmd_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := execute(t, "disasm", filepath.Join(t.TempDir(), "nope.ch8"))
		require.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("too large", func(t *testing.T) {
		path := writeROM(t, make([]byte, vm.MaxProgramSize+1))
		_, err := execute(t, "disasm", path)
		require.ErrorIs(t, err, vm.ErrProgramTooLarge)
	})

	t.Run("bad log format", func(t *testing.T) {
		path := writeROM(t, []byte{0x00, 0xE0})
		_, err := execute(t, "--log-format", "xml", "disasm", path)
		require.Error(t, err)
	})
}

func TestSetupLogging(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, setupLogging(&buf, false, "json"))
	require.NoError(t, setupLogging(&buf, true, "text"))
	require.Error(t, setupLogging(&buf, false, "yaml"))
}

func TestParseKeyWait(t *testing.T) {
	mode, err := parseKeyWait("poll")
	require.NoError(t, err)
	assert.Equal(t, vm.KeyWaitPoll, mode)

	mode, err = parseKeyWait("block")
	require.NoError(t, err)
	assert.Equal(t, vm.KeyWaitBlock, mode)

	_, err = parseKeyWait("wait")
	require.Error(t, err)
}

func TestNewFrontend_Errors(t *testing.T) {
	_, err := newFrontend("sdl", hal.Options{Scale: 0, Rate: 600})
	require.Error(t, err)

	_, err = newFrontend("vga", hal.Options{Scale: 1, Rate: 600})
	require.Error(t, err)
}

// scriptedHAL returns the queued errors from ReadInput one by one.
type scriptedHAL struct {
	errs []error
}

func (h *scriptedHAL) ReadInput(func(vm.Key), func(vm.Key)) error {
	if len(h.errs) == 0 {
		return nil
	}
	err := h.errs[0]
	h.errs = h.errs[1:]
	return err
}

func (*scriptedHAL) Draw([]uint8) error      { return nil }
func (*scriptedHAL) SetSound(bool) error     { return nil }
func (*scriptedHAL) WaitForNextFrame() error { return nil }

func TestRunMachine(t *testing.T) {
	// V0 += 1; JP 0x200
	machine := vm.New()
	require.NoError(t, machine.Load([]byte{0x70, 0x01, 0x12, 0x00}))

	h := &scriptedHAL{errs: []error{nil, nil, nil, hal.ErrReboot, hal.ErrQuit}}
	require.NoError(t, runMachine(context.Background(), machine, h))

	// four steps before the reboot, one after it
	assert.Equal(t, uint8(1), machine.Registers().V[0])
}

func TestRunMachine_Fault(t *testing.T) {
	machine := vm.New()
	require.NoError(t, machine.Load([]byte{0x00, 0xEE}))

	err := runMachine(context.Background(), machine, &scriptedHAL{})
	require.ErrorIs(t, err, vm.ErrStackUnderflow)
}

func TestRunMachine_Canceled(t *testing.T) {
	machine := vm.New()
	require.NoError(t, machine.Load([]byte{0x12, 0x00}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, runMachine(ctx, machine, &scriptedHAL{}))
}
