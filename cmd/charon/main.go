// Command charon runs a Charon program, compiling it in memory first if
// the given file is source rather than a pre-compiled bytecode container.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/0x264/charon/pkg/bytecode"
	"github.com/0x264/charon/pkg/charon"
	"github.com/0x264/charon/pkg/diag"
	"github.com/0x264/charon/pkg/ffi"
	"github.com/0x264/charon/pkg/vm"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:      "charon",
		Usage:     "run a Charon program",
		ArgsUsage: "<file>",
		Action:    run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		diag.Fatalf("%v", err)
	}
}

func run(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("usage: charon <file>")
	}
	path := cmd.Args().First()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var code []byte
	if charon.IsBytecode(data) {
		code = data
	} else {
		code, err = charon.CompileSource(data)
		if err != nil {
			return fmt.Errorf("%s: %s", path, charon.FormatError(data, err))
		}
	}

	program, err := bytecode.NewLoader(code).Load()
	if err != nil {
		return fmt.Errorf("loading bytecode: %w", err)
	}

	machine, err := vm.New(program, ffi.Globals(os.Stdout))
	if err != nil {
		return fmt.Errorf("starting vm: %w", err)
	}
	defer machine.Close()

	if err := machine.Exec(); err != nil {
		return err
	}
	return nil
}
