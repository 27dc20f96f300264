package query

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"

	"querycal/internal/calendar"
	appLog "querycal/internal/log"
	"querycal/internal/model"
)

// maxDocumentBytes bounds how much of a remote document is read.
const maxDocumentBytes = 64 << 20

var httpClient = &http.Client{Timeout: 15 * time.Second}

// readDocument loads a JSON/CSV payload from url when set, else from path.
func readDocument(ctx context.Context, url, path string) ([]byte, error) {
	if url == "" {
		if path == "" {
			return nil, errors.New("no url or path configured")
		}
		data, err := os.ReadFile(path)
		return data, errors.Wrapf(err, "read %s", path)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}

	appLog.Debug("document fetch start", "url", redactURL(url))
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch %s", redactURL(url))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("fetch %s: %s", redactURL(url), resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	return body, errors.Wrap(err, "read body")
}

// columnSet accumulates columns in first-seen order and types each one by
// its first non-null value.
type columnSet struct {
	index   map[string]int
	columns []model.Column
}

func newColumnSet() *columnSet {
	return &columnSet{index: make(map[string]int)}
}

func (c *columnSet) observe(name string, v model.Value) {
	i, ok := c.index[name]
	if !ok {
		i = len(c.columns)
		c.index[name] = i
		c.columns = append(c.columns, model.Column{Name: name})
	}
	if c.columns[i].Type != "" || v.IsNull() {
		return
	}
	c.columns[i].Type = columnType(v)
}

// list returns the columns; columns that only ever held nulls are typed
// "string".
func (c *columnSet) list() []model.Column {
	for i := range c.columns {
		if c.columns[i].Type == "" {
			c.columns[i].Type = model.KindString.String()
		}
	}
	return c.columns
}

func columnType(v model.Value) string {
	if v.Kind == model.KindString {
		if _, ok := calendar.ParseTime(v, time.UTC); ok {
			return model.KindTime.String()
		}
	}
	return v.Kind.String()
}
