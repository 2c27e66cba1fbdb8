package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/curricheck/internal/analysis"
	"github.com/verte-zerg/curricheck/internal/apperr"
	"github.com/verte-zerg/curricheck/internal/model"
	"github.com/verte-zerg/curricheck/internal/present"
	"github.com/verte-zerg/curricheck/internal/session"
	"github.com/verte-zerg/curricheck/internal/sheet"
	"github.com/verte-zerg/curricheck/internal/store"
)

const (
	formatText     = "text"
	formatJSON     = "json"
	formatMarkdown = "markdown"
	formatHTML     = "html"

	terminalWidthBackup = 100
	previewCellWidth    = 28
)

var (
	checkFormat  string
	checkOut     string
	previewWidth int
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <file.xlsx>",
		Short: "Analyze a workbook without the TUI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args[0], checkFormat, checkOut)
		},
	}
	cmd.Flags().StringVar(&checkFormat, "format", formatText, "output format: text, json, markdown, html")
	cmd.Flags().StringVarP(&checkOut, "out", "o", "", "write the report to a file instead of stdout")
	return cmd
}

func newPreviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview <file.xlsx>",
		Short: "Print the first sheet of a workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := loadDataset(args[0])
			if err != nil {
				return userError(err)
			}
			width := previewWidth
			if !cmd.Flags().Changed("cell-width") {
				width = previewCellLimit(terminalWidth())
			}
			writeLines(cmd.OutOrStdout(), previewLines(present.Dataset(ds), width))
			return nil
		},
	}
	cmd.Flags().IntVar(&previewWidth, "cell-width", previewCellWidth, "maximum cell width (0 disables truncation)")
	return cmd
}

func runCheck(cmd *cobra.Command, path, format, out string) error {
	if !validFormat(format) {
		return fmt.Errorf("--format must be one of text, json, markdown, html")
	}
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	history, closeHistory := openHistory(cfg)
	defer closeHistory()

	report, pairs, err := checkFile(cmd.Context(), newClient(cfg), history, path)
	if err != nil {
		return userError(err)
	}

	w := cmd.OutOrStdout()
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil {
				logErrf("failed to close output file: %v\n", cerr)
			}
		}()
		w = f
	}
	return writeReport(w, format, report, pairs)
}

// checkFile loads path into a fresh session, analyzes it and records the
// attempt in history when one is given.
func checkFile(ctx context.Context, analyzer analysis.Analyzer, history *store.Store, path string) (present.Report, []model.RedundancyPair, error) {
	file, err := readUpload(path)
	if err != nil {
		return present.Report{}, nil, err
	}
	sess := session.New()
	if err := sess.Upload(file, sheet.Parse); err != nil {
		return present.Report{}, nil, err
	}

	startedAt := time.Now()
	err = sess.Analyze(ctx, analyzer)
	snap := sess.Snapshot()
	if history != nil {
		rec := store.NewRecord(file.Name, startedAt, time.Now(), snap.Pairs, err)
		if _, herr := history.InsertAnalysis(ctx, rec); herr != nil {
			logErrf("failed to record history: %v\n", herr)
		}
	}
	if err != nil {
		return present.Report{}, nil, err
	}

	summary, err := present.Summarize(snap.Pairs)
	if err != nil {
		return present.Report{}, nil, err
	}
	return present.Report{
		FileName: file.Name,
		Dataset:  present.Dataset(snap.Dataset),
		Results:  present.Results(snap.Pairs),
		Summary:  summary,
	}, snap.Pairs, nil
}

func readUpload(path string) (model.UploadedFile, error) {
	name := filepath.Base(path)
	if err := sheet.ValidateName(name); err != nil {
		return model.UploadedFile{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return model.UploadedFile{}, apperr.Validation(fmt.Sprintf("Could not read %s: %v", name, err))
	}
	return model.UploadedFile{Name: name, Data: data}, nil
}

func loadDataset(path string) (model.TabularDataset, error) {
	file, err := readUpload(path)
	if err != nil {
		return model.TabularDataset{}, err
	}
	return sheet.Parse(file)
}

type jsonPair struct {
	Pair       [2]string `json:"pair"`
	Similarity float64   `json:"similarity"`
}

type jsonReport struct {
	File         string     `json:"file"`
	Redundancies []jsonPair `json:"redundancies"`
	Summary      struct {
		Count  int     `json:"count"`
		Mean   float64 `json:"mean"`
		Median float64 `json:"median"`
		Min    float64 `json:"min"`
		Max    float64 `json:"max"`
	} `json:"summary"`
}

func writeReport(w io.Writer, format string, report present.Report, pairs []model.RedundancyPair) error {
	switch format {
	case formatJSON:
		out := jsonReport{File: report.FileName, Redundancies: make([]jsonPair, 0, len(pairs))}
		for _, p := range pairs {
			out.Redundancies = append(out.Redundancies, jsonPair{Pair: [2]string{p.First, p.Second}, Similarity: p.Similarity})
		}
		out.Summary.Count = report.Summary.Count
		out.Summary.Mean = report.Summary.Mean
		out.Summary.Median = report.Summary.Median
		out.Summary.Min = report.Summary.Min
		out.Summary.Max = report.Summary.Max
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case formatMarkdown:
		_, err := io.WriteString(w, present.Markdown(report))
		return err
	case formatHTML:
		_, err := io.WriteString(w, present.HTML(present.Markdown(report)))
		return err
	default:
		writeLines(w, textLines(report))
		return nil
	}
}

func textLines(report present.Report) []string {
	if report.Results.Empty() {
		return []string{report.Results.Placeholder}
	}
	lines := append([]string(nil), report.Results.Lines...)
	return append(lines, "", report.Summary.Line())
}

func previewLines(view present.DatasetView, maxCellWidth int) []string {
	if view.Empty() {
		return []string{view.Placeholder}
	}
	return present.FormatTable(view.Header, view.Body, nil, maxCellWidth)
}

func previewCellLimit(width int) int {
	limit := width / 4
	if limit < previewCellWidth {
		return previewCellWidth
	}
	return limit
}

func validFormat(format string) bool {
	switch format {
	case formatText, formatJSON, formatMarkdown, formatHTML:
		return true
	}
	return false
}

// userError converts err into its user-facing message.
func userError(err error) error {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		return err
	}
	return fmt.Errorf("%s", apperr.UserMessage(err))
}

func writeLines(w io.Writer, lines []string) {
	if _, err := io.WriteString(w, strings.Join(lines, "\n")+"\n"); err != nil {
		logErrln("failed to write output:", err)
	}
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}
