package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kapitanov/chip8kit/internal/audio"
	"github.com/kapitanov/chip8kit/internal/disasm"
	"github.com/kapitanov/chip8kit/internal/hal"
	"github.com/kapitanov/chip8kit/internal/hal/ebitenhal"
	"github.com/kapitanov/chip8kit/internal/hal/sdlhal"
	"github.com/kapitanov/chip8kit/internal/hal/termhal"
	"github.com/kapitanov/chip8kit/internal/vm"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           filepath.Base(os.Args[0]),
		Short:         "CHIP-8 virtual machine and disassembler",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	verbose := cmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose logging")
	logFormat := cmd.PersistentFlags().String("log-format", "text", "log format: text or json")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return setupLogging(cmd.ErrOrStderr(), *verbose, *logFormat)
	}

	cmd.AddCommand(newRunCmd(), newDisasmCmd())
	return cmd
}

func setupLogging(w io.Writer, verbose bool, format string) error {
	loggerOpts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if verbose {
		loggerOpts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	switch format {
	case "text":
		handler = slog.NewTextHandler(w, loggerOpts)
	case "json":
		handler = slog.NewJSONHandler(w, loggerOpts)
	default:
		return fmt.Errorf("unknown log format %q", format)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

type runOptions struct {
	backend string
	scale   int
	rate    int
	mute    bool
	seed    uint64
	keyWait string
	overlay bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run PATH_TO_ROM_FILE",
		Short: "Run emulator",
		Args:  cobra.ExactArgs(1),
	}

	cmd.Flags().StringVarP(&opts.backend, "backend", "b", "sdl", "frontend: sdl, ebiten or term")
	cmd.Flags().IntVar(&opts.scale, "scale", 16, "window pixels per screen pixel")
	cmd.Flags().IntVar(&opts.rate, "rate", 600, "instructions per second")
	cmd.Flags().BoolVar(&opts.mute, "mute", false, "disable sound")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "seed for RND, random when unset")
	cmd.Flags().StringVar(&opts.keyWait, "key-wait", "poll", "FX0A behaviour: poll or block")
	cmd.Flags().BoolVar(&opts.overlay, "overlay", false, "show registers beside the screen (ebiten only)")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		path := args[0]
		bs, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("unable to load file %q: %w", path, err)
		}

		keyWait, err := parseKeyWait(opts.keyWait)
		if err != nil {
			return err
		}

		vmOpts := []vm.Option{vm.WithKeyWait(keyWait)}
		if cmd.Flags().Changed("seed") {
			vmOpts = append(vmOpts, vm.WithRand(rand.NewPCG(opts.seed, opts.seed)))
		}

		machine := vm.New(vmOpts...)
		if err := machine.Load(bs); err != nil {
			return fmt.Errorf("unable to load program %q: %w", path, err)
		}

		var speaker hal.Speaker = hal.Silent{}
		if !opts.mute {
			tone, err := audio.NewTone()
			if err != nil {
				slog.Warn("sound disabled", "err", err)
			} else {
				defer tone.Close()
				speaker = tone
			}
		}

		front, err := newFrontend(opts.backend, hal.Options{
			Scale:   opts.scale,
			Rate:    opts.rate,
			Speaker: speaker,
			Overlay: opts.overlay,
			Status:  machine.Registers,
		})
		if err != nil {
			return fmt.Errorf("unable to initialize hal: %w", err)
		}
		defer front.Close()

		return front.Run(func() error {
			return runMachine(cmd.Context(), machine, front)
		})
	}

	return cmd
}

func parseKeyWait(s string) (vm.KeyWait, error) {
	switch s {
	case "poll":
		return vm.KeyWaitPoll, nil
	case "block":
		return vm.KeyWaitBlock, nil
	default:
		return 0, fmt.Errorf("unknown key-wait mode %q", s)
	}
}

func newFrontend(backend string, opts hal.Options) (hal.Frontend, error) {
	if opts.Scale <= 0 {
		return nil, fmt.Errorf("invalid scale %d", opts.Scale)
	}

	switch backend {
	case "sdl":
		h, err := sdlhal.New(opts)
		if err != nil {
			return nil, err
		}
		return h, nil

	case "ebiten":
		h, err := ebitenhal.New(opts)
		if err != nil {
			return nil, err
		}
		return h, nil

	case "term":
		h, err := termhal.New(opts, os.Stdin, os.Stdout)
		if err != nil {
			return nil, err
		}
		return h, nil

	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}

// runMachine restarts the program on reboot and stops on quit.
func runMachine(ctx context.Context, machine *vm.VM, h vm.HAL) error {
	for {
		err := machine.Run(ctx, h)

		if errors.Is(err, hal.ErrQuit) || errors.Is(err, context.Canceled) {
			return nil
		}

		if errors.Is(err, hal.ErrReboot) {
			slog.Info("reboot")
			machine.Reset()
			continue
		}

		return err
	}
}

func newDisasmCmd() *cobra.Command {
	var (
		base   uint16
		output string
	)

	cmd := &cobra.Command{
		Use:   "disasm PATH_TO_ROM_FILE",
		Short: "Disassemble a program without running it",
		Args:  cobra.ExactArgs(1),
	}

	cmd.Flags().Uint16Var(&base, "base", 0, "address of the first byte")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")

	cmd.RunE = func(cmd *cobra.Command, args []string) (err error) {
		path := args[0]
		bs, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("unable to load file %q: %w", path, err)
		}

		if len(bs) > vm.MaxProgramSize {
			return fmt.Errorf("unable to disassemble %q: %w", path, vm.ErrProgramTooLarge)
		}

		w := cmd.OutOrStdout()
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("unable to create %q: %w", output, err)
			}
			defer func() {
				if cerr := f.Close(); cerr != nil && err == nil {
					err = fmt.Errorf("unable to close %q: %w", output, cerr)
				}
			}()
			w = f
		}

		return disasm.Write(w, bs, base)
	}

	return cmd
}
