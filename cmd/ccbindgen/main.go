// Command ccbindgen emits C++ bindings for a Rust crate: a C++ header plus
// the Rust thunk file, from a serialized IR snapshot produced by the rustc
// front-end.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/crubit/bindgen/internal/config"
	"github.com/crubit/bindgen/internal/errors"
	"github.com/crubit/bindgen/internal/ir"
	"github.com/crubit/bindgen/internal/pipeline"
)

var (
	irPath      string
	configPath  string
	outAPI      string
	outImpl     string
	sourceCrate string
)

func main() {
	root := &cobra.Command{
		Use:   "ccbindgen",
		Short: "Generate C++ bindings for a Rust crate",
		RunE:  run,
	}
	root.Flags().StringVar(&irPath, "ir", "", "path to the serialized IR snapshot (JSON)")
	root.Flags().StringVar(&configPath, "config", "", "path to the YAML configuration block")
	root.Flags().StringVar(&sourceCrate, "crate", "", "source crate label when no config file is given")
	root.Flags().StringVar(&outAPI, "out-api", "", "output path of the C++ header (stdout when empty)")
	root.Flags().StringVar(&outImpl, "out-impl", "", "output path of the Rust thunk file (stdout when empty)")

	if err := root.Execute(); err != nil {
		errColor := color.New(color.FgRed, color.Bold)
		errColor.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if irPath == "" {
		return fmt.Errorf("--ir is required")
	}
	data, err := os.ReadFile(irPath)
	if err != nil {
		return err
	}
	snapshot, err := ir.DecodeSnapshot(data)
	if err != nil {
		return err
	}
	var cfg *config.Config
	if configPath != "" {
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
	} else {
		cfg = config.Default(sourceCrate)
	}
	reporter := errors.NewReporter(func(rep *errors.Report) {
		errors.Render(os.Stderr, rep)
		os.Exit(1)
	})
	result, err := pipeline.Run(pipeline.CcFromRust, cfg, snapshot, reporter)
	if err != nil {
		return err
	}
	errors.RenderAll(os.Stderr, result.Reports)
	if err := writeOut(outAPI, result.API); err != nil {
		return err
	}
	return writeOut(outImpl, result.APIImpl)
}

func writeOut(path, content string) error {
	if path == "" {
		_, err := os.Stdout.WriteString(content)
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
