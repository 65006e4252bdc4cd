// Command jexlate applies a transformation template to a stream of JSON
// records: NDJSON in on stdin, NDJSON out on stdout.
//
//	jexlate -t template.json < records.ndjson > transformed.ndjson
//	jexlate -t template.yaml --on-error continue < records.ndjson
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/FirebrandTech/jexlate"
	"github.com/FirebrandTech/jexlate/pkg/ext"
)

var (
	flagTemplate string
	flagOnError  string
	flagCompact  bool
)

var rootCmd = &cobra.Command{
	Use:   "jexlate",
	Short: "Transform NDJSON records through a jexlate template",
	Long: "jexlate reads JSON records from stdin, transforms each one through the\n" +
		"template given with --template, and writes the results as NDJSON to stdout.\n\n" +
		"With --on-error continue, failing records are skipped and their errors\n" +
		"reported to stderr after the stream ends; the default stops at the first\n" +
		"failing record.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := loadEngine(flagTemplate)
		if err != nil {
			return err
		}

		var streamOpts []jexlate.StreamOption
		var collected []error
		switch flagOnError {
		case "throw":
		case "continue":
			streamOpts = append(streamOpts, jexlate.OnErrorContinue(), jexlate.WithErrorCollector(&collected))
		default:
			return fmt.Errorf("--on-error must be throw or continue, got %q", flagOnError)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		enc := json.NewEncoder(os.Stdout)
		if !flagCompact {
			enc.SetIndent("", "  ")
		}
		for res := range engine.ParseStream(ctx, os.Stdin, streamOpts...) {
			if res.Err != nil {
				return res.Err
			}
			if err := enc.Encode(res.Value); err != nil {
				return err
			}
		}

		for _, err := range collected {
			fmt.Fprintln(os.Stderr, errPrefix()+err.Error())
		}
		if len(collected) > 0 {
			return fmt.Errorf("%d record(s) failed", len(collected))
		}
		return nil
	},
}

func loadEngine(path string) (*jexlate.Engine, error) {
	if path == "" {
		return nil, fmt.Errorf("--template is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	opts := ext.WithAll()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return jexlate.NewFromYAML(data, opts...)
	default:
		return jexlate.NewFromJSON(data, opts...)
	}
}

func errPrefix() string {
	if isatty.IsTerminal(os.Stderr.Fd()) {
		return color.New(color.FgRed, color.Bold).Sprint("error: ")
	}
	return "error: "
}

func main() {
	rootCmd.Flags().StringVarP(&flagTemplate, "template", "t", "", "template file (.json, .yaml or .yml)")
	rootCmd.Flags().StringVar(&flagOnError, "on-error", "throw", "failure policy: throw or continue")
	rootCmd.Flags().BoolVar(&flagCompact, "compact", true, "compact JSON output")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errPrefix()+err.Error())
		os.Exit(1)
	}
}
