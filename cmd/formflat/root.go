package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dgallion1/formflat/internal/normalize"
	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
)

type options struct {
	delimiter   string
	maxDepth    int
	lenientRows bool
	pretty      bool
}

// rootCmd normalizes one document offline. File uploads are never
// attempted, so file answers come back with a null url.
func rootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "formflat [file]",
		Short: "Normalize a form submission document",
		Long: `Read a form submission JSON document from a file, or from stdin when no
file is given, and print its normalized form.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNormalize(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.delimiter, "delimiter", "d", normalize.DefaultDelimiter, "Label path delimiter")
	cmd.Flags().IntVar(&opts.maxDepth, "max-depth", normalize.DefaultMaxDepth, "Maximum nesting depth")
	cmd.Flags().BoolVar(&opts.lenientRows, "lenient-rows", false, "Expand any array rows member, not only Repeat groups")
	cmd.Flags().BoolVarP(&opts.pretty, "pretty", "p", false, "Indent the output")
	return cmd
}

func runNormalize(cmd *cobra.Command, args []string, opts options) error {
	body, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	n := normalize.New(normalize.Options{
		Delimiter:   opts.delimiter,
		MaxDepth:    opts.maxDepth,
		LenientRows: opts.lenientRows,
	}, nil, nil, nil)

	result, err := n.Transform(cmd.Context(), body)
	if err != nil {
		return fmt.Errorf("normalize: %w", err)
	}
	out, err := normalize.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if opts.pretty {
		out = pretty.PrettyOptions(out, &pretty.Options{Indent: "  ", Width: 80})
	} else {
		out = append(out, '\n')
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	body, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return body, nil
}
