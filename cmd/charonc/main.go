// Command charonc compiles a Charon source file into a bytecode container.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/0x264/charon/pkg/charon"
	"github.com/0x264/charon/pkg/diag"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:      "charonc",
		Usage:     "compile a Charon source file to bytecode",
		ArgsUsage: "<source.charon>",
		Action:    run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		diag.Fatalf("%v", err)
	}
}

func run(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("usage: charonc <source.charon>")
	}
	inputPath := cmd.Args().First()

	source, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", inputPath, err)
	}

	code, err := charon.CompileSource(source)
	if err != nil {
		return fmt.Errorf("%s: %s", inputPath, charon.FormatError(source, err))
	}

	outputPath := outputPathFor(inputPath)
	if err := os.WriteFile(outputPath, code, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outputPath, err)
	}

	fmt.Printf("wrote %s\n", outputPath)
	return nil
}

func outputPathFor(inputPath string) string {
	ext := filepath.Ext(inputPath)
	stem := strings.TrimSuffix(filepath.Base(inputPath), ext)
	return stem + ".charonbc"
}
