package query

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	appLog "querycal/internal/log"
	"querycal/internal/model"
)

// JSONSource reads rows from a JSON document. RowsPath is a gjson path to
// an array of objects; when empty the document root must be that array.
type JSONSource struct {
	URL      string
	Path     string
	RowsPath string
}

func (s *JSONSource) Fetch(ctx context.Context) (*model.Result, error) {
	body, err := readDocument(ctx, s.URL, s.Path)
	if err != nil {
		return nil, err
	}
	res, err := ParseJSONRows(body, s.RowsPath)
	if err != nil {
		return nil, err
	}
	appLog.Info("json source loaded", "rows", len(res.Rows), "columns", len(res.Columns))
	return res, nil
}

// ParseJSONRows converts the array selected by rowsPath into a result.
// Array elements that are not objects are ignored. Column order follows
// the first appearance of each key.
func ParseJSONRows(body []byte, rowsPath string) (*model.Result, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("invalid JSON document")
	}

	arr := gjson.ParseBytes(body)
	if rowsPath != "" {
		arr = arr.Get(rowsPath)
	}
	if !arr.IsArray() {
		return nil, errors.Errorf("rows path %q does not select an array", rowsPath)
	}

	cols := newColumnSet()
	rows := make([]model.Row, 0)
	arr.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			return true
		}
		row := make(model.Row)
		item.ForEach(func(key, value gjson.Result) bool {
			v := jsonValue(value)
			row[key.String()] = v
			cols.observe(key.String(), v)
			return true
		})
		rows = append(rows, row)
		return true
	})

	return &model.Result{
		Rows:        rows,
		Columns:     cols.list(),
		RetrievedAt: time.Now(),
	}, nil
}

func jsonValue(r gjson.Result) model.Value {
	switch r.Type {
	case gjson.String:
		return model.String(r.Str)
	case gjson.Number:
		return model.Number(r.Num)
	case gjson.True:
		return model.Bool(true)
	case gjson.False:
		return model.Bool(false)
	case gjson.JSON:
		return model.ObjectValue(r.Value())
	default:
		return model.Null()
	}
}
