// Package query provides the result sources whose rows are projected onto
// the calendar: subscribed ICS feeds, JSON documents and CSV files.
package query

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"querycal/internal/config"
	"querycal/internal/model"
)

// Source produces a fresh query result on every Fetch.
type Source interface {
	Fetch(ctx context.Context) (*model.Result, error)
}

// New builds the source described by cfg. loc is the zone for ICS
// expansion windows.
func New(cfg config.SourceConfig, loc *time.Location) (Source, error) {
	switch cfg.Kind {
	case config.SourceICS:
		return NewICSSource(cfg, loc), nil
	case config.SourceJSON:
		return &JSONSource{URL: cfg.URL, Path: cfg.Path, RowsPath: cfg.RowsPath}, nil
	case config.SourceCSV:
		return &CSVSource{URL: cfg.URL, Path: cfg.Path}, nil
	default:
		return nil, errors.Errorf("unknown source kind %q", cfg.Kind)
	}
}
