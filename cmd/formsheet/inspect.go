package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formsheet/pkg/answers"
	"github.com/goliatone/go-formsheet/pkg/section"
	"github.com/goliatone/go-formsheet/pkg/submission"
)

func (a *app) newFlattenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flatten [answers.json]",
		Short: "Print the row a JSON answers document would produce",
		Long: `Reads an accumulated answers document (a file, or stdin when the
argument is "-" or missing) and prints one cell per line, exactly as it would
be appended to the sheet.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if len(args) == 0 || args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("read answers: %w", err)
			}
			return printRow(cmd.OutOrStdout(), data)
		},
	}
}

func printRow(out io.Writer, data []byte) error {
	value, err := answers.Parse(data)
	if err != nil {
		return submission.Wrap(submission.CodeMalformedInput, "parse answers", err)
	}
	row, err := submission.BuildRow(value)
	if err != nil {
		return err
	}
	for _, cell := range row {
		if _, err := fmt.Fprintln(out, cell); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) newSectionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sections",
		Short: "List the form sections in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalogue, err := section.Default()
			if err != nil {
				return err
			}
			return printSections(cmd.OutOrStdout(), catalogue)
		},
	}
}

func printSections(out io.Writer, catalogue *section.Catalogue) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tKEY\tTITLE\tREQUIRED\tFIELDS")
	for i, sec := range catalogue.Sections() {
		required := "no"
		if sec.Required {
			required = "yes"
		}
		names := make([]string, 0, len(sec.Fields))
		for _, field := range sec.Fields {
			names = append(names, field.Name)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i+1, sec.Key, sec.Title, required, strings.Join(names, ", "))
	}
	return w.Flush()
}
