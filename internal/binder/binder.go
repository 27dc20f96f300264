package binder

import (
	"maps"
	"sync"
	"time"

	"querycal/internal/calendar"
	appLog "querycal/internal/log"
	"querycal/internal/model"
)

// Snapshot is one generation of projected output plus the display flags
// the calendar widget needs. Snapshots are replaced, never modified.
type Snapshot struct {
	Sources        []model.EventSource `json:"sources"`
	Colors         calendar.Colors     `json:"colors"`
	Labels         map[string]string   `json:"labels"`
	View           string              `json:"view"`
	FirstDayOfWeek string              `json:"first_day_of_week"`
	ShowTooltip    bool                `json:"show_tooltip"`
	ShowPopover    bool                `json:"show_popover"`
	Generation     uint64              `json:"generation"`
	ComputedAt     time.Time           `json:"computed_at"`
}

// Binder re-runs the projector whenever the bound result or the mapping
// changes and carries color assignments from one run to the next.
type Binder struct {
	projector calendar.Projector

	mu          sync.Mutex
	colors      calendar.Colors
	lastResult  *model.Result
	lastMapping calendar.Mapping
	lastPinned  calendar.Colors
	snapshot    *Snapshot
	generation  uint64

	// OnProject is called after every recomputation; used for metrics.
	OnProject func(rows int, sources []model.EventSource)
}

// New returns a Binder that reads zone-less timestamps in loc.
func New(loc *time.Location) *Binder {
	return &Binder{
		projector: calendar.Projector{Location: loc},
		colors:    calendar.Colors{},
	}
}

// Bind returns the snapshot for result under opts. The projector only runs
// when result is a different value than last time, or the mapping or the
// pinned colors changed; display flags are refreshed either way.
func (b *Binder) Bind(result *model.Result, opts calendar.Options) Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.snapshot != nil && result == b.lastResult && opts.Mapping == b.lastMapping && maps.Equal(opts.GroupColors, b.lastPinned) {
		snap := *b.snapshot
		applyDisplay(&snap, opts)
		return snap
	}

	prior := b.colors.Merge(opts.GroupColors)
	sources, colors := b.projector.Project(result.Data(), opts.Mapping, prior)

	b.generation++
	b.colors = generatedOnly(colors.Clone(), b.colors, opts.GroupColors)
	b.lastResult = result
	b.lastMapping = opts.Mapping
	b.lastPinned = opts.GroupColors.Clone()

	snap := &Snapshot{
		Sources:    sources,
		Colors:     colors.Clone(),
		Labels:     calendar.Labels(result.GetColumns()),
		Generation: b.generation,
		ComputedAt: time.Now(),
	}
	applyDisplay(snap, opts)
	b.snapshot = snap

	events := 0
	for _, s := range sources {
		events += len(s.Events)
	}
	appLog.Debug("calendar projected",
		"generation", b.generation,
		"rows", len(result.Data()),
		"groups", len(sources),
		"events", events,
		"configured", opts.Mapping.Configured(),
	)
	if b.OnProject != nil {
		b.OnProject(len(result.Data()), sources)
	}

	return *snap
}

// Current returns the most recent snapshot, if any.
func (b *Binder) Current() (Snapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.snapshot == nil {
		return Snapshot{}, false
	}
	return *b.snapshot, true
}

// Colors returns a copy of the generated color assignments. Pinned colors
// are not included; they live in the options.
func (b *Binder) Colors() calendar.Colors {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.colors.Clone()
}

// Reset forgets all color assignments and forces the next Bind to project.
func (b *Binder) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.colors = calendar.Colors{}
	b.snapshot = nil
	b.lastResult = nil
}

// generatedOnly strips pinned keys from colors, restoring the generated
// color a key had before it was pinned, so unpinning falls back to it.
func generatedOnly(colors, before, pinned calendar.Colors) calendar.Colors {
	for key := range pinned {
		if c, ok := before[key]; ok {
			colors[key] = c
		} else {
			delete(colors, key)
		}
	}
	return colors
}

func applyDisplay(s *Snapshot, opts calendar.Options) {
	s.View = opts.View
	s.FirstDayOfWeek = opts.FirstDayOfWeek
	s.ShowTooltip = opts.ShowTooltip
	s.ShowPopover = opts.ShowPopover
}
