package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gsheet "google.golang.org/api/sheets/v4"

	"housefin/internal/config"
	ports "housefin/internal/sheets"
)

const testSpreadsheet = "sheet-id"

// fakeSheets emulates the subset of the Sheets v4 REST API the client uses.
type fakeSheets struct {
	mu        sync.Mutex
	titles    []string
	values    map[string][][]any
	appends   int
	addSheets int
}

func newFakeSheets(titles ...string) *fakeSheets {
	return &fakeSheets{titles: titles, values: map[string][][]any{}}
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := "/v4/spreadsheets/" + testSpreadsheet
	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && path == prefix:
		ss := gsheet.Spreadsheet{}
		for _, t := range f.titles {
			ss.Sheets = append(ss.Sheets, &gsheet.Sheet{Properties: &gsheet.SheetProperties{Title: t}})
		}
		_ = json.NewEncoder(w).Encode(ss)

	case r.Method == http.MethodPost && path == prefix+":batchUpdate":
		var req gsheet.BatchUpdateSpreadsheetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, rq := range req.Requests {
			if rq.AddSheet != nil {
				f.titles = append(f.titles, rq.AddSheet.Properties.Title)
				f.addSheets++
			}
		}
		_, _ = w.Write([]byte(`{}`))

	case strings.HasPrefix(path, prefix+"/values/"):
		rng := strings.TrimPrefix(path, prefix+"/values/")
		switch r.Method {
		case http.MethodPost:
			rng = strings.TrimSuffix(rng, ":append")
			sheet := sheetOf(rng)
			var vr gsheet.ValueRange
			if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			f.values[sheet] = append(f.values[sheet], vr.Values...)
			f.appends++
			n := len(f.values[sheet])
			_ = json.NewEncoder(w).Encode(gsheet.AppendValuesResponse{
				Updates: &gsheet.UpdateValuesResponse{UpdatedRange: fmt.Sprintf("'%s'!A%d:F%d", sheet, n, n)},
			})
		case http.MethodPut:
			sheet := sheetOf(rng)
			var vr gsheet.ValueRange
			if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if len(f.values[sheet]) == 0 {
				f.values[sheet] = vr.Values
			} else {
				f.values[sheet][0] = vr.Values[0]
			}
			_, _ = w.Write([]byte(`{}`))
		case http.MethodGet:
			// only single-column F reads are issued
			var col [][]any
			for _, row := range f.values[sheetOf(rng)] {
				if len(row) > 5 {
					col = append(col, []any{row[5]})
				} else {
					col = append(col, []any{})
				}
			}
			_ = json.NewEncoder(w).Encode(gsheet.ValueRange{Values: col})
		}

	default:
		http.NotFound(w, r)
	}
}

func sheetOf(rng string) string {
	if i := strings.LastIndex(rng, "!"); i >= 0 {
		rng = rng[:i]
	}
	rng = strings.TrimSuffix(strings.TrimPrefix(rng, "'"), "'")
	return strings.ReplaceAll(rng, "''", "'")
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Options{
		SpreadsheetID: testSpreadsheet,
		SheetName:     "Contributions",
		Endpoint:      srv.URL + "/",
	})
	require.NoError(t, err)
	return c
}

func testRow(id string) ports.Row {
	return ports.Row{
		ID:          id,
		Date:        time.Date(2024, 3, 5, 18, 30, 0, 0, time.UTC),
		Username:    "alice",
		Description: "rice",
		Amount:      "42.50",
	}
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Options{CredentialsJSON: "{}"})
	require.Error(t, err)
	assert.Equal(t, "missing GOOGLE_SPREADSHEET_ID", err.Error())
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(context.Background(), Options{SpreadsheetID: "id"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing service account credentials")
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Options{
		SpreadsheetID:   "id",
		CredentialsFile: filepath.Join(t.TempDir(), "missing.json"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read service account file")
}

func TestNewFromConfig_UsesWorkerSettings(t *testing.T) {
	cfg := &config.Config{
		GoogleSheetName:          "Contributions",
		GoogleServiceAccountFile: filepath.Join(t.TempDir(), "missing.json"),
	}
	_, err := NewFromConfig(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GOOGLE_SPREADSHEET_ID")

	cfg.GoogleSpreadsheetID = "id"
	_, err = NewFromConfig(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read service account file")
}

func TestAppendContribution_CreatesYearSheet(t *testing.T) {
	fake := newFakeSheets("Other")
	c := newTestClient(t, fake)

	ref, err := c.AppendContribution(context.Background(), testRow("c-1"))
	require.NoError(t, err)

	assert.Equal(t, "'2024 Contributions'!A2:F2", ref)
	assert.Equal(t, 1, fake.addSheets)
	rows := fake.values["2024 Contributions"]
	require.Len(t, rows, 2)
	assert.Equal(t, "Date", rows[0][0])
	assert.Equal(t, []any{"2024-03-05", float64(3), "alice", "rice", "42.50", "c-1"}, rows[1])
}

func TestAppendContribution_ExistingSheetAndDuplicates(t *testing.T) {
	fake := newFakeSheets("2024 Contributions")
	fake.values["2024 Contributions"] = [][]any{ports.Header}
	c := newTestClient(t, fake)
	ctx := context.Background()

	first, err := c.AppendContribution(ctx, testRow("c-1"))
	require.NoError(t, err)
	_, err = c.AppendContribution(ctx, testRow("c-2"))
	require.NoError(t, err)
	again, err := c.AppendContribution(ctx, testRow("c-1"))
	require.NoError(t, err)

	assert.Equal(t, 0, fake.addSheets)
	assert.Equal(t, 2, fake.appends)
	assert.Equal(t, first, again)
	assert.Len(t, fake.values["2024 Contributions"], 3)
}

func TestAppendContribution_Rejects(t *testing.T) {
	c := &Client{spreadsheetID: "test"}

	_, err := c.AppendContribution(context.Background(), ports.Row{})
	assert.Error(t, err)

	_, err = c.AppendContribution(context.Background(), testRow("c-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not initialized")
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base     string
		year     int
		expected string
	}{
		{"Contributions", 2024, "2024 Contributions"},
		{"2023 Contributions", 2024, "2023 Contributions"},
		{"  Spese  ", 2025, "2025 Spese"},
		{"", 2025, ""},
		{"1800 Old", 2025, "2025 1800 Old"},
	}

	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			if got := yearPrefixedName(tt.base, tt.year); got != tt.expected {
				t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.expected)
			}
		})
	}
}

func TestA1Quoting(t *testing.T) {
	assert.Equal(t, "'2024 Contributions'!A:F", a1("2024 Contributions", "A:F"))
	assert.Equal(t, "'Bob''s'!F:F", a1("Bob's", "F:F"))
	assert.Equal(t, "'X'!A3:F3", rowRange("X", 3))
}
