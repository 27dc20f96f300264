package calendar

import (
	"time"

	"querycal/internal/model"
)

// DefaultGroup is the key of the single implicit group used when no
// grouping column is mapped.
const DefaultGroup = "All"

// Mapping assigns result columns to calendar roles. An empty string means
// the role is not mapped.
type Mapping struct {
	Title   string `yaml:"title" json:"title"`
	Start   string `yaml:"start" json:"start"`
	End     string `yaml:"end,omitempty" json:"end,omitempty"`
	GroupBy string `yaml:"group_by,omitempty" json:"group_by,omitempty"`
}

// Configured reports whether both required roles are mapped.
func (m Mapping) Configured() bool {
	return m.Title != "" && m.Start != ""
}

// Projector turns rows into colored event sources. Location is used for
// date strings that carry no zone; nil means UTC.
type Projector struct {
	Location *time.Location
}

// Project runs a Projector with UTC as the zone for naive timestamps.
func Project(rows []model.Row, m Mapping, prior Colors) ([]model.EventSource, Colors) {
	return Projector{}.Project(rows, m, prior)
}

// Project groups rows by the mapped grouping column (or into the single
// group "All"), assigns each group a color and builds its events.
//
// Groups appear in the order their key is first seen in rows. Colors
// already present in prior are kept; new keys get a generated color and
// the returned map is prior plus those additions. prior itself is never
// modified. Rows with a missing title, or a missing or unparseable start,
// or an unparseable end, are skipped. A group whose rows were all skipped
// is still returned with an empty event list.
//
// When Title or Start is not mapped, Project returns no sources and prior
// as given.
func (p Projector) Project(rows []model.Row, m Mapping, prior Colors) ([]model.EventSource, Colors) {
	if !m.Configured() {
		return []model.EventSource{}, prior
	}

	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}

	groups := groupRows(rows, m.GroupBy)
	colors := prior.Clone()
	used := colors.inUse()

	sources := make([]model.EventSource, 0, len(groups))
	for _, g := range groups {
		color, ok := colors[g.key]
		if !ok {
			color = ColorFor(g.key, used)
			colors[g.key] = color
			used[color] = struct{}{}
		}
		sources = append(sources, model.EventSource{
			Group:  g.key,
			Color:  color,
			Events: buildEvents(g.rows, m, loc),
		})
	}
	return sources, colors
}

// groupID distinguishes groups. Scalars group by their string form;
// object values group by pointer identity, so two equal-looking objects
// form two groups that share one key (and therefore one color).
type groupID struct {
	key string
	obj *model.Object
}

type group struct {
	key  string
	rows []model.Row
}

func groupRows(rows []model.Row, groupBy string) []*group {
	if groupBy == "" {
		return []*group{{key: DefaultGroup, rows: rows}}
	}

	index := make(map[groupID]*group)
	ordered := make([]*group, 0)
	for _, row := range rows {
		v := row.Get(groupBy)
		id := groupID{key: GroupKey(v)}
		if v.IsObject() {
			id.obj = v.Obj
		}
		g, ok := index[id]
		if !ok {
			g = &group{key: id.key}
			index[id] = g
			ordered = append(ordered, g)
		}
		g.rows = append(g.rows, row)
	}
	return ordered
}

// GroupKey returns the key a grouping value is known by.
func GroupKey(v model.Value) string {
	return v.String()
}

func buildEvents(rows []model.Row, m Mapping, loc *time.Location) []model.CalendarEvent {
	events := make([]model.CalendarEvent, 0, len(rows))
	for _, row := range rows {
		if ev, ok := rowEvent(row, m, loc); ok {
			events = append(events, ev)
		}
	}
	return events
}

func rowEvent(row model.Row, m Mapping, loc *time.Location) (model.CalendarEvent, bool) {
	title := row.Get(m.Title)
	if title.IsNull() {
		return model.CalendarEvent{}, false
	}
	start, ok := ParseTime(row.Get(m.Start), loc)
	if !ok {
		return model.CalendarEvent{}, false
	}

	ev := model.CalendarEvent{
		Title:  title.String(),
		Start:  start,
		Fields: row,
	}

	if m.End != "" {
		if raw := row.Get(m.End); !raw.IsNull() {
			end, ok := ParseTime(raw, loc)
			if !ok {
				return model.CalendarEvent{}, false
			}
			ev.End = &end
		}
	}
	return ev, true
}
