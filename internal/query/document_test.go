package query

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querycal/internal/config"
	"querycal/internal/model"
)

const queryResultJSON = `{
  "query_result": {
    "data": {
      "rows": [
        {"name": "Launch", "starts_at": "2023-01-05T10:00:00Z", "team": "Eng", "budget": 12.5},
        {"name": "Retro", "starts_at": "2023-01-06", "team": null, "meta": {"room": "B"}},
        "not an object",
        {"name": "Offsite", "starts_at": 1672704000000, "team": "Ops", "remote": true}
      ]
    }
  }
}`

func TestParseJSONRows(t *testing.T) {
	res, err := ParseJSONRows([]byte(queryResultJSON), "query_result.data.rows")
	require.NoError(t, err)

	require.Len(t, res.Rows, 3)
	assert.Equal(t, []model.Column{
		{Name: "name", Type: "string"},
		{Name: "starts_at", Type: "datetime"},
		{Name: "team", Type: "string"},
		{Name: "budget", Type: "number"},
		{Name: "meta", Type: "object"},
		{Name: "remote", Type: "boolean"},
	}, res.Columns)

	assert.Equal(t, model.String("Launch"), res.Rows[0].Get("name"))
	assert.Equal(t, model.Number(12.5), res.Rows[0].Get("budget"))
	assert.True(t, res.Rows[1].Get("team").IsNull())
	assert.True(t, res.Rows[1].Get("meta").IsObject())
	assert.Equal(t, `{"room":"B"}`, res.Rows[1].Get("meta").String())
	assert.Equal(t, model.Bool(true), res.Rows[2].Get("remote"))
}

func TestParseJSONRowsRootArray(t *testing.T) {
	res, err := ParseJSONRows([]byte(`[{"a": 1}, {"b": "x"}]`), "")
	require.NoError(t, err)
	assert.Len(t, res.Rows, 2)
	assert.Len(t, res.Columns, 2)
}

func TestParseJSONRowsErrors(t *testing.T) {
	_, err := ParseJSONRows([]byte(`{not json`), "")
	assert.Error(t, err)

	_, err = ParseJSONRows([]byte(`{"rows": {}}`), "rows")
	assert.Error(t, err)

	_, err = ParseJSONRows([]byte(`{"rows": []}`), "missing")
	assert.Error(t, err)
}

func TestParseCSVRows(t *testing.T) {
	body := "\ufefftitle, start ,end,owner\n" +
		"Launch,2023-01-05,2023-01-06,alice\n" +
		"Retro,2023-01-06,,42\n" +
		"Short row,2023-01-07\n"

	res, err := ParseCSVRows([]byte(body))
	require.NoError(t, err)

	assert.Equal(t, []model.Column{
		{Name: "title", Type: "string"},
		{Name: "start", Type: "datetime"},
		{Name: "end", Type: "datetime"},
		{Name: "owner", Type: "string"},
	}, res.Columns)
	require.Len(t, res.Rows, 3)
	assert.True(t, res.Rows[1].Get("end").IsNull())
	assert.Equal(t, model.Number(42), res.Rows[1].Get("owner"))
	assert.True(t, res.Rows[2].Get("owner").IsNull())
}

func TestParseCSVRowsKeepsNonFiniteAsText(t *testing.T) {
	res, err := ParseCSVRows([]byte("title,start,score\nMeeting,2023-01-05,NaN\nOffsite,2023-01-06,-Infinity\nReview,2023-01-07,1e3\n"))
	require.NoError(t, err)

	require.Len(t, res.Rows, 3)
	assert.Equal(t, model.String("NaN"), res.Rows[0].Get("score"))
	assert.Equal(t, model.String("-Infinity"), res.Rows[1].Get("score"))
	assert.Equal(t, model.Number(1000), res.Rows[2].Get("score"))

	_, err = json.Marshal(res.Rows)
	require.NoError(t, err)
}

func TestParseCSVRowsEmpty(t *testing.T) {
	_, err := ParseCSVRows(nil)
	assert.Error(t, err)

	res, err := ParseCSVRows([]byte("a,b\n"))
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.Equal(t, []model.Column{{Name: "a", Type: "string"}, {Name: "b", Type: "string"}}, res.Columns)
}

func TestJSONSourceFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rows.json" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(queryResultJSON))
	}))
	defer srv.Close()

	src, err := New(config.SourceConfig{Kind: config.SourceJSON, URL: srv.URL + "/rows.json", RowsPath: "query_result.data.rows"}, time.UTC)
	require.NoError(t, err)

	res, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Rows, 3)

	bad, err := New(config.SourceConfig{Kind: config.SourceJSON, URL: srv.URL + "/missing.json"}, time.UTC)
	require.NoError(t, err)
	_, err = bad.Fetch(context.Background())
	assert.Error(t, err)
}

func TestCSVSourceFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.csv")
	require.NoError(t, os.WriteFile(path, []byte("title,start\nA,2023-01-01\n"), 0o600))

	src, err := New(config.SourceConfig{Kind: config.SourceCSV, Path: path}, time.UTC)
	require.NoError(t, err)

	res, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Rows, 1)

	missing := &CSVSource{Path: filepath.Join(t.TempDir(), "nope.csv")}
	_, err = missing.Fetch(context.Background())
	assert.Error(t, err)
}

func TestNewRejectsUnknownKind(t *testing.T) {
	_, err := New(config.SourceConfig{Kind: "sql"}, time.UTC)
	assert.Error(t, err)
}
