package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Zachacious/go-kitgen/internal/assembler"
	"github.com/Zachacious/go-kitgen/internal/config"
	"github.com/Zachacious/go-kitgen/internal/logging"
	"github.com/Zachacious/go-kitgen/internal/pipeline"
	"github.com/Zachacious/go-kitgen/internal/watch"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

// These variables are set at build time by the Makefile's ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type generateFlags struct {
	config   string
	out      string
	schema   string
	format   string
	logLevel string
	pretty   bool
	watch    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		for _, hint := range errors.GetAllHints(err) {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
		}
		var invalid *assembler.InvalidDocumentError
		if errors.As(err, &invalid) {
			os.Stderr.Write(invalid.Doc)
			fmt.Fprintln(os.Stderr)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "kitgen",
		Short: "kitgen turns decorated endpoint types into container wiring and an API schema.",
		Long: `kitgen reads a Go project laid out by convention (endpoints, middleware and a
container builder), rewrites its decorator comments into plain Go, registers
every endpoint and middleware in the container builder and writes an
OpenAPI or Swagger 2.0 document describing the endpoints.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newGenerateCmd(), newVersionCmd())
	return rootCmd
}

func newGenerateCmd() *cobra.Command {
	var f generateFlags
	cmd := &cobra.Command{
		Use:   "generate [path]",
		Short: "Transform the project and write the schema document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			return generate(cmd.Context(), root, f, cmd.Flags().Changed("pretty"))
		},
	}
	cmd.Flags().StringVarP(&f.config, "config", "c", "", "config file (default <path>/.kitgen.yaml)")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "output directory for the transformed tree")
	cmd.Flags().StringVar(&f.schema, "schema", "", "output file for the schema document (.json, .yaml or .yml)")
	cmd.Flags().StringVar(&f.format, "format", "", "schema format: swagger2 or openapi3")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "log level: trace, debug, info, warn or error")
	cmd.Flags().BoolVar(&f.pretty, "pretty", false, "human readable log output")
	cmd.Flags().BoolVarP(&f.watch, "watch", "w", false, "regenerate whenever sources change")
	return cmd
}

func (f generateFlags) overrides(prettySet bool) map[string]any {
	o := make(map[string]any)
	set := func(key, value string) {
		if value != "" {
			o[key] = value
		}
	}
	set("output.dir", f.out)
	set("output.schema", f.schema)
	set("output.format", f.format)
	set("log.level", f.logLevel)
	if prettySet {
		o["log.pretty"] = f.pretty
	}
	return o
}

func generate(ctx context.Context, root string, f generateFlags, prettySet bool) error {
	cfg, err := config.Load(root, f.config, f.overrides(prettySet))
	if err != nil {
		return err
	}
	log := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Pretty)

	if _, err := pipeline.Run(ctx, root, cfg, log); err != nil {
		if !f.watch {
			return err
		}
		log.Error().Err(err).Msg("generation failed")
	}
	if !f.watch {
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	outDir := cfg.Output.Dir
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(root, outDir)
	}
	w, err := watch.New(root, []string{outDir}, watch.DefaultDebounce, log)
	if err != nil {
		return err
	}
	log.Info().Str("root", root).Msg("watching for changes")
	return w.Run(ctx, func(ctx context.Context) error {
		cfg, err := config.Load(root, f.config, f.overrides(prettySet))
		if err != nil {
			return err
		}
		_, err = pipeline.Run(ctx, root, cfg, log)
		return err
	})
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of kitgen",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("kitgen version %s\n", version)
			fmt.Printf("commit: %s\n", commit)
			fmt.Printf("built at: %s\n", date)
		},
	}
}
