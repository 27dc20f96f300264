package query

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	appLog "querycal/internal/log"
	"querycal/internal/model"
)

// CSVSource reads rows from a CSV document whose first record is the
// header.
type CSVSource struct {
	URL  string
	Path string
}

func (s *CSVSource) Fetch(ctx context.Context) (*model.Result, error) {
	body, err := readDocument(ctx, s.URL, s.Path)
	if err != nil {
		return nil, err
	}
	res, err := ParseCSVRows(body)
	if err != nil {
		return nil, err
	}
	appLog.Info("csv source loaded", "rows", len(res.Rows), "columns", len(res.Columns))
	return res, nil
}

// ParseCSVRows converts a CSV payload into a result. Empty cells become
// null and numeric cells numbers; everything else stays a string.
func ParseCSVRows(body []byte) (*model.Result, error) {
	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, errors.New("empty CSV document")
	}
	if err != nil {
		return nil, errors.Wrap(err, "read CSV header")
	}

	cols := newColumnSet()
	for i, name := range header {
		name = strings.TrimSpace(name)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		header[i] = name
		cols.observe(name, model.Null())
	}

	rows := make([]model.Row, 0)
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read CSV record %d", len(rows)+1)
		}
		row := make(model.Row, len(header))
		for i, name := range header {
			v := model.Null()
			if i < len(rec) {
				v = csvValue(rec[i])
			}
			row[name] = v
			cols.observe(name, v)
		}
		rows = append(rows, row)
	}

	return &model.Result{
		Rows:        rows,
		Columns:     cols.list(),
		RetrievedAt: time.Now(),
	}, nil
}

func csvValue(cell string) model.Value {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return model.Null()
	}
	// ParseFloat also accepts NaN and Inf spellings; those stay text.
	if f, err := strconv.ParseFloat(cell, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return model.Number(f)
	}
	return model.String(cell)
}
