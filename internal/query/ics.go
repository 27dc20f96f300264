package query

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/pkg/errors"

	"querycal/internal/config"
	appLog "querycal/internal/log"
	"querycal/internal/model"
)

// ICS result columns.
var icsColumns = []model.Column{
	{Name: "calendar", Type: "string"},
	{Name: "uid", Type: "string"},
	{Name: "summary", Type: "string"},
	{Name: "description", Type: "string"},
	{Name: "location", Type: "string"},
	{Name: "all_day", Type: "boolean"},
	{Name: "start", Type: "datetime"},
	{Name: "end", Type: "datetime"},
}

// ICSSource exposes the occurrences of subscribed ICS feeds as rows, one
// row per occurrence inside [now-backfill, now+horizon].
type ICSSource struct {
	Feeds        []Feed
	HorizonDays  int
	BackfillDays int
	Location     *time.Location

	fetcher *feedFetcher
	now     func() time.Time
}

// NewICSSource builds an ICS source from config. Feeds without a URL are
// dropped; feeds without an ID fall back to their name, then their URL.
func NewICSSource(cfg config.SourceConfig, loc *time.Location) *ICSSource {
	feeds := make([]Feed, 0, len(cfg.ICS))
	for _, c := range cfg.ICS {
		if c.URL == "" {
			continue
		}
		id := c.ID
		if id == "" {
			id = c.Name
		}
		if id == "" {
			id = c.URL
		}
		feeds = append(feeds, Feed{ID: id, URL: c.URL})
	}
	if loc == nil {
		loc = time.Local
	}
	return &ICSSource{
		Feeds:        feeds,
		HorizonDays:  cfg.HorizonDays,
		BackfillDays: cfg.BackfillDays,
		Location:     loc,
		fetcher:      newFeedFetcher(cfg.CacheDir),
		now:          time.Now,
	}
}

// Fetch downloads, parses and expands every feed. Individual feed failures
// are logged and skipped; Fetch fails only when feeds are configured and
// none of them produced a body.
func (s *ICSSource) Fetch(ctx context.Context) (*model.Result, error) {
	now := s.now().In(s.Location)
	w := window{
		Start:    now.AddDate(0, 0, -s.BackfillDays),
		End:      now.AddDate(0, 0, s.HorizonDays),
		Location: s.Location,
	}

	bodies, errs := s.fetcher.fetchAll(ctx, s.Feeds)
	if len(bodies) == 0 && len(errs) > 0 {
		// pkg/errors has no Join.
		return nil, errors.Wrap(stderrors.Join(errs...), "no ICS feed could be fetched")
	}

	var events []vevent
	for _, b := range bodies {
		parsed, err := parseFeed(b.Feed, b.Body)
		if err != nil {
			appLog.Error("ics parse failed", err, "id", b.Feed.ID, "from_cache", b.FromCache)
			continue
		}
		events = append(events, parsed...)
	}

	occs := expand(events, w)
	rows := make([]model.Row, 0, len(occs))
	for _, o := range occs {
		rows = append(rows, occurrenceRow(o))
	}

	appLog.Info("ics source loaded",
		"feeds", len(s.Feeds),
		"failed", len(errs),
		"events", len(events),
		"rows", len(rows),
	)

	return &model.Result{
		Rows:        rows,
		Columns:     icsColumns,
		RetrievedAt: time.Now(),
	}, nil
}

func occurrenceRow(o occurrence) model.Row {
	return model.Row{
		"calendar":    model.String(o.Event.Feed.ID),
		"uid":         model.String(o.Event.UID),
		"summary":     model.String(o.Event.Summary),
		"description": model.String(o.Event.Description),
		"location":    model.String(o.Event.Location),
		"all_day":     model.Bool(o.Event.AllDay),
		"start":       model.Time(o.Start),
		"end":         model.Time(o.End),
	}
}
