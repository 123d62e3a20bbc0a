// Command charond disassembles a compiled Charon bytecode container into a
// readable instruction listing.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/0x264/charon/pkg/bytecode"
	"github.com/0x264/charon/pkg/diag"
	"github.com/0x264/charon/pkg/disasm"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:      "charond",
		Usage:     "disassemble a Charon bytecode file",
		ArgsUsage: "<file.charonbc>",
		Action:    run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		diag.Fatalf("%v", err)
	}
}

func run(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("usage: charond <file.charonbc>")
	}
	path := cmd.Args().First()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	program, err := bytecode.NewLoader(data).Load()
	if err != nil {
		return fmt.Errorf("loading bytecode: %w", err)
	}

	return disasm.Disassemble(os.Stdout, program)
}
