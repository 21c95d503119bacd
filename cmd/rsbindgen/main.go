// Command rsbindgen emits Rust bindings for a C++ translation unit: a Rust
// API module plus the C++ thunk file, from a serialized IR snapshot produced
// by the clang front-end.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/crubit/bindgen/internal/config"
	"github.com/crubit/bindgen/internal/db"
	"github.com/crubit/bindgen/internal/errors"
	"github.com/crubit/bindgen/internal/ir"
	"github.com/crubit/bindgen/internal/pipeline"
	"github.com/crubit/bindgen/internal/rsgen"
)

var (
	irPath     string
	configPath string
	outAPI     string
	outImpl    string
	sourceCrate string
)

func main() {
	root := &cobra.Command{
		Use:   "rsbindgen",
		Short: "Generate Rust bindings for a C++ library",
	}
	root.PersistentFlags().StringVar(&irPath, "ir", "", "path to the serialized IR snapshot (JSON)")
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to the YAML configuration block")
	root.PersistentFlags().StringVar(&sourceCrate, "crate", "", "source library label when no config file is given")

	gen := &cobra.Command{
		Use:   "generate",
		Short: "Run the pipeline and write the api and api_impl streams",
		RunE:  runGenerate,
	}
	gen.Flags().StringVar(&outAPI, "out-api", "", "output path of the Rust API module (stdout when empty)")
	gen.Flags().StringVar(&outImpl, "out-impl", "", "output path of the C++ thunk file (stdout when empty)")
	root.AddCommand(gen)

	root.AddCommand(&cobra.Command{
		Use:   "inspect",
		Short: "Interactively inspect the bindings generated for single items",
		RunE:  runInspect,
	})

	if err := root.Execute(); err != nil {
		errColor := color.New(color.FgRed, color.Bold)
		errColor.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func loadInputs() (*config.Config, *ir.Snapshot, error) {
	if irPath == "" {
		return nil, nil, fmt.Errorf("--ir is required")
	}
	data, err := os.ReadFile(irPath)
	if err != nil {
		return nil, nil, err
	}
	snapshot, err := ir.DecodeSnapshot(data)
	if err != nil {
		return nil, nil, err
	}
	var cfg *config.Config
	if configPath != "" {
		cfg, err = config.Load(configPath)
		if err != nil {
			return nil, nil, err
		}
	} else {
		cfg = config.Default(sourceCrate)
	}
	return cfg, snapshot, nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, snapshot, err := loadInputs()
	if err != nil {
		return err
	}
	reporter := errors.NewReporter(func(rep *errors.Report) {
		errors.Render(os.Stderr, rep)
		os.Exit(1)
	})
	result, err := pipeline.Run(pipeline.RustFromCc, cfg, snapshot, reporter)
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

// runInspect is a small interactive loop over the snapshot: type an item
// name, see the snippet the generator would emit for it.
func runInspect(cmd *cobra.Command, args []string) error {
	cfg, snapshot, err := loadInputs()
	if err != nil {
		return err
	}
	reporter := errors.NewReporter(func(rep *errors.Report) {
		errors.Render(os.Stderr, rep)
	})
	gen := rsgen.NewGenerator(snapshot, cfg)
	database := db.New(snapshot, cfg, reporter, gen.Generate)

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(func(prefix string) []string {
		var out []string
		for _, item := range snapshot.Items() {
			if strings.HasPrefix(item.LocalName(), prefix) {
				out = append(out, item.LocalName())
			}
		}
		return out
	})

	heading := color.New(color.FgCyan, color.Bold)
	for {
		input, err := line.Prompt("inspect> ")
		if err != nil {
			return nil
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if input == "quit" || input == "exit" {
			return nil
		}
		line.AppendHistory(input)
		found := false
		for _, item := range snapshot.Items() {
			if item.LocalName() != input {
				continue
			}
			found = true
			snippet, err := database.Snippet(item.ID())
			if err != nil {
				errors.Render(os.Stderr, toReport(err))
				continue
			}
			if snippet == nil || snippet.IsEmpty() {
				fmt.Println("(no output)")
				continue
			}
			heading.Println("-- main api --")
			fmt.Print(snippet.MainAPI.String())
			if !snippet.Details.IsEmpty() {
				heading.Println("-- details --")
				fmt.Print(snippet.Details.String())
			}
			if !snippet.Thunks.IsEmpty() {
				heading.Println("-- thunks --")
				fmt.Print(snippet.Thunks.String())
			}
		}
		if !found {
			fmt.Printf("no item named %q\n", input)
		}
	}
}

func toReport(err error) *errors.Report {
	if rep, ok := errors.AsReport(err); ok {
		return rep
	}
	return errors.NewGeneric("inspect", err)
}
