package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetcast/internal/backend"
	"github.com/JonMunkholm/sheetcast/internal/batch"
	"github.com/JonMunkholm/sheetcast/internal/messaging"
	"github.com/JonMunkholm/sheetcast/internal/processor"
	"github.com/JonMunkholm/sheetcast/internal/template"
)

// ErrRejected is returned when at least one source was not accepted.
var ErrRejected = errors.New("validation rejected")

// sourceReport is the JSON form of one batch.Report.
type sourceReport struct {
	Source  string                 `json:"source"`
	Error   string                 `json:"error,omitempty"`
	Outcome processor.Outcome      `json:"outcome"`
	Rows    []processor.RowOutcome `json:"rows"`
}

func newValidateCommand() *cobra.Command {
	var (
		templatePath string
		jobs         int
		format       string
		delimiter    string
		rejectedOnly bool
	)

	cmd := &cobra.Command{
		Use:   "validate --template FILE [CSV...]",
		Short: "Validate CSV files against a template",
		Long: `Validate CSV files against a YAML template.

Files are validated concurrently. The command exits non-zero when any file
or row is rejected.`,
		Example: `  # Validate two files
  sheetcast validate --template customers.yaml jan.csv feb.csv

  # Semicolon separated input, JSON report
  sheetcast validate -t customers.yaml --delimiter ';' --format json export.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "json" {
				return fmt.Errorf("unknown format %q: want text or json", format)
			}
			comma, size := utf8.DecodeRuneInString(delimiter)
			if size == 0 || size != len(delimiter) {
				return fmt.Errorf("delimiter %q must be a single character", delimiter)
			}

			tpl, err := template.LoadFile(templatePath)
			if err != nil {
				return err
			}
			spec, err := tpl.Apply(template.NewConfig(nil))
			if err != nil {
				return fmt.Errorf("template %s: %w", tpl.Name(), err)
			}

			p := processor.New(backend.CSV{Comma: comma}, spec,
				processor.WithLogger(slog.Default().With("template", tpl.Name())))

			sources := make([]batch.Source, len(args))
			for i, path := range args {
				sources[i] = batch.Source{Name: path, Source: path}
			}

			reports, err := batch.Run(cmd.Context(), p, sources, jobs)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == "json" {
				err = writeJSONReports(out, reports, rejectedOnly)
			} else {
				err = writeTextReports(out, reports, rejectedOnly)
			}
			if err != nil {
				return err
			}

			rejected := 0
			for _, r := range reports {
				if !r.Accepted() {
					rejected++
				}
			}
			if rejected > 0 {
				return fmt.Errorf("%w: %d of %d files", ErrRejected, rejected, len(reports))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&templatePath, "template", "t", "", "template file (required)")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "files validated at once (0 uses GOMAXPROCS)")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text or json")
	cmd.Flags().StringVarP(&delimiter, "delimiter", "d", ",", "CSV field delimiter")
	cmd.Flags().BoolVar(&rejectedOnly, "rejected-only", false, "report rejected rows only")
	cmd.MarkFlagRequired("template")

	return cmd
}

func writeJSONReports(w io.Writer, reports []batch.Report, rejectedOnly bool) error {
	out := make([]sourceReport, len(reports))
	for i, r := range reports {
		rows := r.Rows
		if rejectedOnly {
			rows = r.Rejected()
		}
		if rows == nil {
			rows = []processor.RowOutcome{}
		}
		out[i] = sourceReport{Source: r.Name, Outcome: r.Outcome, Rows: rows}
		if r.Err != nil {
			out[i].Error = r.Err.Error()
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeTextReports(w io.Writer, reports []batch.Report, rejectedOnly bool) error {
	for _, r := range reports {
		if r.Err != nil {
			if _, err := fmt.Fprintf(w, "%s: error: %v\n", r.Name, r.Err); err != nil {
				return err
			}
			continue
		}

		status := "accepted"
		if !r.Accepted() {
			status = "rejected"
		}
		rejected := r.Rejected()
		if _, err := fmt.Fprintf(w, "%s: %s (%d rows, %d rejected)\n", r.Name, status, len(r.Rows), len(rejected)); err != nil {
			return err
		}

		for _, m := range r.Outcome.Messages {
			if _, err := fmt.Fprintf(w, "  %s\n", formatMessage(m)); err != nil {
				return err
			}
		}
		rows := r.Rows
		if rejectedOnly {
			rows = rejected
		}
		for _, row := range rows {
			for _, m := range row.Messages {
				if _, err := fmt.Fprintf(w, "  %s\n", formatMessage(m)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// formatMessage renders a message as "<location> <SEVERITY> <code> [data]".
func formatMessage(m messaging.Message) string {
	loc := "sheet"
	if d := m.ScopeData; d != nil {
		if d.Row > 0 {
			loc = fmt.Sprintf("row %d col %s", d.Row, d.Col)
		} else {
			loc = "col " + d.Col
		}
	}

	s := fmt.Sprintf("%s %s %s", loc, m.Severity, m.Code)
	if m.CodeData != nil {
		if data, err := json.Marshal(m.CodeData); err == nil {
			s += " " + string(data)
		}
	}
	return s
}
