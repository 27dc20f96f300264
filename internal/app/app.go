// Package app ties a query source, the binder and the persisted editor
// options together. It is shared by the HTTP API and the refresh loop.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"querycal/internal/binder"
	"querycal/internal/calendar"
	"querycal/internal/config"
	appLog "querycal/internal/log"
	"querycal/internal/metrics"
	"querycal/internal/model"
	"querycal/internal/query"
)

// App holds the latest query result and re-binds it whenever the result
// or the options change. Binding happens under mu so a snapshot never
// pairs a result with options from a different moment.
type App struct {
	source  query.Source
	binder  *binder.Binder
	metrics *metrics.Metrics

	cfgPath string

	mu     sync.RWMutex
	cfg    *config.Config
	result *model.Result
}

// New builds an App. cfgPath may be empty, in which case option updates
// are kept in memory only.
func New(cfg *config.Config, cfgPath string, src query.Source, m *metrics.Metrics) *App {
	b := binder.New(ResolveLocation(cfg.Timezone))
	if m != nil {
		b.OnProject = m.ObserveProjection
	}
	return &App{
		source:  src,
		binder:  b,
		metrics: m,
		cfgPath: cfgPath,
		cfg:     cfg,
	}
}

// Refresh fetches a new result from the source and binds it. On failure
// the previous result stays in place.
func (a *App) Refresh(ctx context.Context) (binder.Snapshot, error) {
	start := time.Now()
	res, err := a.source.Fetch(ctx)
	if a.metrics != nil {
		a.metrics.RefreshSeconds.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		a.countRefresh("error")
		return binder.Snapshot{}, errors.Wrap(err, "refresh source")
	}
	a.countRefresh("ok")

	a.mu.Lock()
	a.result = res
	snap := a.binder.Bind(res, a.cfg.Calendar)
	a.mu.Unlock()

	appLog.Info("refresh completed",
		"rows", len(res.Rows),
		"groups", len(snap.Sources),
		"generation", snap.Generation,
		"took", time.Since(start).Round(time.Millisecond),
	)
	return snap, nil
}

// Snapshot returns the event sources for the current result and options.
func (a *App) Snapshot() binder.Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.binder.Bind(a.result, a.cfg.Calendar)
}

// Columns returns the columns of the current result.
func (a *App) Columns() []model.Column {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.result.GetColumns()
}

// Options returns a copy of the current editor options.
func (a *App) Options() calendar.Options {
	a.mu.RLock()
	defer a.mu.RUnlock()
	opts := a.cfg.Calendar
	opts.GroupColors = opts.GroupColors.Clone()
	return opts
}

// UpdateOptions validates and stores new editor options, persisting them
// to the config file when one is configured, and returns the resulting
// snapshot.
func (a *App) UpdateOptions(opts calendar.Options) (binder.Snapshot, error) {
	opts.Normalize()
	if err := opts.Validate(); err != nil {
		return binder.Snapshot{}, err
	}

	a.mu.Lock()
	prev := a.cfg.Calendar
	a.cfg.Calendar = opts
	if a.cfgPath != "" {
		if err := a.cfg.Save(a.cfgPath); err != nil {
			a.cfg.Calendar = prev
			a.mu.Unlock()
			return binder.Snapshot{}, errors.Wrap(err, "save options")
		}
	}
	snap := a.binder.Bind(a.result, opts)
	a.mu.Unlock()

	appLog.Info("calendar options updated",
		"title", opts.Mapping.Title,
		"start", opts.Mapping.Start,
		"end", opts.Mapping.End,
		"group_by", opts.Mapping.GroupBy,
		"view", opts.View,
	)
	return snap, nil
}

// ResetColors drops all generated color assignments.
func (a *App) ResetColors() {
	a.binder.Reset()
}

func (a *App) countRefresh(outcome string) {
	if a.metrics != nil {
		a.metrics.Refreshes.WithLabelValues(outcome).Inc()
	}
}

// ResolveLocation loads an IANA zone, falling back to time.Local.
func ResolveLocation(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}
