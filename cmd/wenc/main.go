// Command wenc is the driver for the wen language: it compiles and runs
// scripts, disassembles compiled chunks, and hosts an interactive REPL.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/wenlang/wen/pkg/compiler"
	"github.com/wenlang/wen/pkg/corelib"
	"github.com/wenlang/wen/pkg/debug"
	"github.com/wenlang/wen/pkg/heap"
	"github.com/wenlang/wen/pkg/vm"
)

const version = "0.1.0"

func main() {
	cmd := &cli.Command{
		Name:    "wenc",
		Usage:   "run, compile, and inspect wen scripts",
		Version: version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "print a full error stack trace on failure"},
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "run a wen source file",
				ArgsUsage: "<file>",
				Action:    runCommand,
			},
			{
				Name:   "repl",
				Usage:  "start an interactive session",
				Action: replCommand,
			},
			{
				Name:      "disasm",
				Usage:     "disassemble a wen source file's compiled chunk",
				ArgsUsage: "<file>",
				Action:    disasmCommand,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() == 0 {
				return replCommand(ctx, cmd)
			}
			return runFile(cmd.Args().First(), cmd.Bool("verbose"))
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

func runCommand(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() == 0 {
		return errors.New("需要一个文件名。")
	}
	return runFile(cmd.Args().First(), cmd.Bool("verbose"))
}

func disasmCommand(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() == 0 {
		return errors.New("需要一个文件名。")
	}
	data, err := os.ReadFile(cmd.Args().First())
	if err != nil {
		return errors.Wrap(err, "读取文件失败")
	}
	h := heap.New(nil)
	fn, err := compiler.Compile(h, string(data))
	if err != nil {
		return errors.Wrap(err, "编译失败")
	}
	debug.DisassembleChunk(os.Stdout, fn.Chunk, cmd.Args().First())
	return nil
}

func runFile(path string, verbose bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "读取文件失败")
	}

	logger := newLogger(verbose)
	defer logger.Sync()

	h := heap.New(nil)
	machine := vm.New(h, logger)
	corelib.Register(machine)

	result, err := machine.Interpret(string(data))
	if err != nil {
		printRuntimeError(err, verbose)
	}
	if result == vm.InterpretCompileError {
		os.Exit(65)
	}
	if result == vm.InterpretRuntimeError {
		os.Exit(70)
	}
	return nil
}

func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	return logger
}

func printRuntimeError(err error, verbose bool) {
	if verbose {
		if _, ok := err.(*vm.RuntimeError); ok {
			err = errors.WithStack(err)
		}
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		return
	}
	fmt.Fprintln(os.Stderr, err)
}

func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintln(os.Stderr, err)
	return 1
}
