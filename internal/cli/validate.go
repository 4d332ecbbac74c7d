package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/syssam/cayenne/mapping"
)

// ValidationReport is the result of the validate command.
type ValidationReport struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// NewValidateCommand returns the validate command.
func NewValidateCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a data map for consistency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := root.formatter(cmd)
			data, err := os.ReadFile(root.DataMap)
			if err != nil {
				return WrapExitError(ExitCommandError, "read data map", err)
			}
			var m mapping.DataMap
			dec := yaml.NewDecoder(bytes.NewReader(data))
			dec.KnownFields(true)
			if err := dec.Decode(&m); err != nil {
				return WrapExitError(ExitCommandError, "parse data map", err)
			}
			m.ApplyDefaults()
			res := m.Validate()
			report := ValidationReport{Valid: res.OK()}
			for _, p := range res.Errors {
				report.Errors = append(report.Errors, p.String())
			}
			for _, p := range res.Warnings {
				report.Warnings = append(report.Warnings, p.String())
			}
			text := func(w io.Writer) {
				for _, s := range report.Errors {
					fmt.Fprintf(w, "error: %s\n", s)
				}
				for _, s := range report.Warnings {
					fmt.Fprintf(w, "warning: %s\n", s)
				}
				if report.Valid {
					fmt.Fprintf(w, "%s: %d entities, no errors\n", root.DataMap, len(m.Entities))
				}
			}
			if !report.Valid {
				return f.failure(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(report.Errors)), report, text)
			}
			return f.result(report, text)
		},
	}
}
