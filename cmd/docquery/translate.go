package main

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/docquery/core/query"
	"github.com/relabs-tech/docquery/core/schema"
)

type translateOptions struct {
	Format   string
	Validate bool
}

var translateFormats = []string{"json", "yaml"}

func newTranslateCommand() *cobra.Command {
	opts := &translateOptions{}

	cmd := &cobra.Command{
		Use:   "translate [file]",
		Short: "Translate a semantic query into a MongoDB filter",
		Long: `Translate reads a semantic query as JSON from file, or from stdin if no file is
given, and prints the native MongoDB filter.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return runTranslate(opts, in, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "json", "output format (json|yaml)")
	cmd.Flags().BoolVar(&opts.Validate, "validate", true, "validate the query against the query schema first")
	return cmd
}

func runTranslate(opts *translateOptions, in io.Reader, out io.Writer) error {
	if !isValidFormat(opts.Format) {
		return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, translateFormats)
	}

	input, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("cannot read query: %w", err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(input, &raw); err != nil {
		return fmt.Errorf("query is not a JSON object: %w", err)
	}

	if opts.Validate {
		validator, err := schema.NewValidator(nil, nil)
		if err != nil {
			return err
		}
		if err := validator.ValidateQuery(raw); err != nil {
			return err
		}
	}

	filter, err := query.TranslateMap(raw)
	if err != nil {
		return err
	}

	switch opts.Format {
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(filter); err != nil {
			return err
		}
		return enc.Close()
	default:
		data, err := json.MarshalIndent(filter, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
}

func isValidFormat(format string) bool {
	for _, f := range translateFormats {
		if f == format {
			return true
		}
	}
	return false
}
