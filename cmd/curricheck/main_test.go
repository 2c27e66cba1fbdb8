package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/curricheck/internal/analysis"
	"github.com/verte-zerg/curricheck/internal/config"
	"github.com/verte-zerg/curricheck/internal/model"
	"github.com/verte-zerg/curricheck/internal/present"
	"github.com/verte-zerg/curricheck/internal/sheet/sheettest"
	"github.com/verte-zerg/curricheck/internal/store"
)

func newService(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Post("/check_redundancy", func(w http.ResponseWriter, req *http.Request) {
		if _, _, err := req.FormFile("file"); err != nil {
			http.Error(w, `{"error":"missing file"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func writeCourses(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "courses.xlsx")
	require.NoError(t, os.WriteFile(path, sheettest.Courses(t).Data, 0o644))
	return path
}

func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv(config.EnvEndpoint, "")
	t.Setenv(config.EnvTimeout, "")
}

func TestCheckFileRecordsHistory(t *testing.T) {
	srv := newService(t, http.StatusOK, `{"redundancies":[{"pair":["Math101","Math102"],"similarity":0.87}]}`)
	history, err := store.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = history.Close() })

	client := analysis.NewClient(srv.URL + "/check_redundancy")
	report, pairs, err := checkFile(context.Background(), client, history, writeCourses(t))
	require.NoError(t, err)
	assert.Equal(t, []model.RedundancyPair{{First: "Math101", Second: "Math102", Similarity: 0.87}}, pairs)
	assert.Equal(t, "courses.xlsx", report.FileName)
	assert.Equal(t, []string{"Math", "Physics"}, report.Dataset.Header)
	assert.Equal(t, []string{"Math101 ↔ Math102 (0.87)"}, report.Results.Lines)

	records, err := history.ListAnalyses(context.Background(), model.HistoryConfig{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, store.OutcomeOK, records[0].Outcome)
	assert.Equal(t, 1, records[0].PairCount)
}

func TestCheckFileServiceErrorIsRecorded(t *testing.T) {
	srv := newService(t, http.StatusBadRequest, `{"error":"Unsupported layout"}`)
	history, err := store.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = history.Close() })

	_, _, err = checkFile(context.Background(), analysis.NewClient(srv.URL+"/check_redundancy"), history, writeCourses(t))
	require.Error(t, err)
	assert.EqualError(t, userError(err), "Error: Unsupported layout")

	records, err := history.ListAnalyses(context.Background(), model.HistoryConfig{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, store.OutcomeError, records[0].Outcome)
	assert.Equal(t, "Error: Unsupported layout", records[0].Message)
}

func TestCheckFileRejectsWrongExtension(t *testing.T) {
	calls := 0
	analyzer := analysis.AnalyzerFunc(func(context.Context, model.UploadedFile) ([]model.RedundancyPair, error) {
		calls++
		return nil, nil
	})
	_, _, err := checkFile(context.Background(), analyzer, nil, filepath.Join(t.TempDir(), "courses.csv"))
	require.Error(t, err)
	assert.EqualError(t, userError(err), "Only .xlsx files are supported.")
	assert.Zero(t, calls)
}

func TestWriteReportFormats(t *testing.T) {
	pairs := []model.RedundancyPair{{First: "a", Second: "b", Similarity: 0.5}}
	summary, err := present.Summarize(pairs)
	require.NoError(t, err)
	report := present.Report{
		FileName: "courses.xlsx",
		Dataset:  present.DatasetView{Header: []string{"Course"}, Body: [][]string{{"a"}, {"b"}}},
		Results:  present.Results(pairs),
		Summary:  summary,
	}

	var text bytes.Buffer
	require.NoError(t, writeReport(&text, formatText, report, pairs))
	assert.Equal(t, "a ↔ b (0.50)\n\n1 redundant pair · mean 0.50 · median 0.50 · min 0.50 · max 0.50\n", text.String())

	var raw bytes.Buffer
	require.NoError(t, writeReport(&raw, formatJSON, report, pairs))
	var decoded jsonReport
	require.NoError(t, json.Unmarshal(raw.Bytes(), &decoded))
	assert.Equal(t, []jsonPair{{Pair: [2]string{"a", "b"}, Similarity: 0.5}}, decoded.Redundancies)
	assert.Equal(t, 1, decoded.Summary.Count)

	var md bytes.Buffer
	require.NoError(t, writeReport(&md, formatMarkdown, report, pairs))
	assert.Contains(t, md.String(), "## Redundant Course Pairs")

	var page bytes.Buffer
	require.NoError(t, writeReport(&page, formatHTML, report, pairs))
	assert.Contains(t, page.String(), "<table>")
	assert.Contains(t, page.String(), "<title>Curriculum Redundancy Report</title>")
}

func TestWriteReportWithoutPairs(t *testing.T) {
	report := present.Report{Results: present.Results(nil)}
	var text bytes.Buffer
	require.NoError(t, writeReport(&text, formatText, report, nil))
	assert.Equal(t, present.NoRedundanciesText+"\n", text.String())

	var raw bytes.Buffer
	require.NoError(t, writeReport(&raw, formatJSON, report, nil))
	assert.Contains(t, raw.String(), `"redundancies": []`)
}

func TestPreviewLines(t *testing.T) {
	assert.Equal(t, []string{present.NoDataText}, previewLines(present.DatasetView{Placeholder: present.NoDataText}, 10))
	lines := previewLines(present.DatasetView{Header: []string{"Math", "Physics"}, Body: [][]string{{"Math101", "Phys101"}}}, 0)
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[2], "Math101"))
	assert.Equal(t, previewCellWidth, previewCellLimit(40))
	assert.Equal(t, 50, previewCellLimit(200))
}

func TestParseHistoryFilter(t *testing.T) {
	filter, err := parseHistoryFilter("", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, filter.Last)
	assert.Nil(t, filter.Since)

	filter, err = parseHistoryFilter("2026-01-02", 0)
	require.NoError(t, err)
	require.NotNil(t, filter.Since)
	assert.Equal(t, 2026, filter.Since.Year())

	_, err = parseHistoryFilter("yesterday", 0)
	assert.Error(t, err)
}

func TestWriteHistory(t *testing.T) {
	var empty bytes.Buffer
	writeHistory(&empty, nil)
	assert.Equal(t, "No analyses recorded.\n", empty.String())

	var out bytes.Buffer
	writeHistory(&out, []model.AnalysisRecord{{
		ID:         "abc",
		FileName:   "courses.xlsx",
		AnalyzedAt: time.Date(2026, 1, 2, 3, 4, 0, 0, time.Local),
		DurationMs: 1500,
		Outcome:    store.OutcomeOK,
		PairCount:  2,
	}})
	assert.Contains(t, out.String(), "courses.xlsx")
	assert.Contains(t, out.String(), "2026-01-02 03:04")
	assert.Contains(t, out.String(), "1.5s")
}

func TestResolveConfigLayers(t *testing.T) {
	isolateEnv(t)
	path := config.DefaultConfigPath()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`
[service]
endpoint = "http://file.example/check_redundancy"
field = "upload"
timeout = "5s"

[history]
enabled = false
`), 0o644))
	t.Setenv(config.EnvTimeout, "7s")

	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--field", "workbook"}))
	cfg, err := resolveConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "http://file.example/check_redundancy", cfg.Endpoint)
	assert.Equal(t, "workbook", cfg.Field)
	assert.Equal(t, 7*time.Second, cfg.Timeout)
	assert.False(t, cfg.HistoryEnabled)
}

func TestResolveConfigDefaults(t *testing.T) {
	isolateEnv(t)
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags(nil))
	cfg, err := resolveConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, analysis.DefaultEndpoint, cfg.Endpoint)
	assert.Equal(t, analysis.DefaultField, cfg.Field)
	assert.Equal(t, analysis.DefaultTimeout, cfg.Timeout)
	assert.True(t, cfg.HistoryEnabled)
}

func TestResolveConfigRejectsBadEndpoint(t *testing.T) {
	isolateEnv(t)
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--endpoint", "ftp://nope"}))
	_, err := resolveConfig(cmd)
	assert.Error(t, err)
}

func TestDefaultConfigTemplateIsValidTOML(t *testing.T) {
	var decoded config.FileConfig
	_, err := toml.Decode(defaultConfigTemplate(), &decoded)
	require.NoError(t, err)
	assert.Nil(t, decoded.Service.Endpoint)
}

func TestNewClientCarriesResolvedEndpoint(t *testing.T) {
	client := newClient(model.Config{Endpoint: "http://svc.example/check_redundancy", Field: "file"})
	assert.Equal(t, "http://svc.example/check_redundancy", client.Endpoint())
}

func TestDefaultConfigTemplateTimeout(t *testing.T) {
	assert.Equal(t, 30*time.Second, analysis.DefaultTimeout)
	assert.Contains(t, defaultConfigTemplate(), `# timeout = "30s"`)
}
