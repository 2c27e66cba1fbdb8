package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/curricheck/internal/config"
	"github.com/verte-zerg/curricheck/internal/model"
	"github.com/verte-zerg/curricheck/internal/present"
	"github.com/verte-zerg/curricheck/internal/store"
)

const historyMessageWidth = 48

var (
	historySince string
	historyLast  int
	historyID    string
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past analyses",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().StringVar(&historySince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&historyLast, "last", 0, "limit to last N analyses")
	cmd.Flags().StringVar(&historyID, "id", "", "show the pairs of one analysis")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	if historyLast < 0 {
		return fmt.Errorf("--last must be >= 0")
	}
	filter, err := parseHistoryFilter(historySince, historyLast)
	if err != nil {
		return err
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	w := cmd.OutOrStdout()
	if historyID != "" {
		pairs, err := st.ListPairs(cmd.Context(), historyID)
		if err != nil {
			return fmt.Errorf("failed to load pairs: %w", err)
		}
		view := present.Results(pairs)
		if view.Empty() {
			writeLines(w, []string{view.Placeholder})
			return nil
		}
		writeLines(w, view.Lines)
		return nil
	}

	records, err := st.ListAnalyses(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	writeHistory(w, records)
	return nil
}

func parseHistoryFilter(since string, last int) (model.HistoryConfig, error) {
	filter := model.HistoryConfig{Last: last}
	since = strings.TrimSpace(since)
	if since == "" {
		return filter, nil
	}
	parsed, err := time.ParseInLocation("2006-01-02", since, time.Local)
	if err != nil {
		return model.HistoryConfig{}, fmt.Errorf("invalid --since value: %w", err)
	}
	filter.Since = &parsed
	return filter, nil
}

func writeHistory(w io.Writer, records []model.AnalysisRecord) {
	if len(records) == 0 {
		writeLines(w, []string{"No analyses recorded."})
		return
	}
	headers := []string{"ID", "When", "File", "Outcome", "Pairs", "Duration", "Message"}
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.ID,
			rec.AnalyzedAt.Local().Format("2006-01-02 15:04"),
			rec.FileName,
			rec.Outcome,
			strconv.Itoa(rec.PairCount),
			(time.Duration(rec.DurationMs) * time.Millisecond).String(),
			rec.Message,
		})
	}
	right := map[int]bool{4: true, 5: true}
	writeLines(w, present.FormatTable(headers, rows, right, historyMessageWidth))
}
