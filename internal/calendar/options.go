package calendar

import (
	"fmt"
	"strings"
)

// Supported calendar views.
const (
	ViewMonth = "month"
	ViewWeek  = "week"
	ViewDay   = "day"
	ViewList  = "list"
)

var weekdays = []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// Options is everything the editor panel can change. Only Mapping and
// GroupColors influence projection; the rest is passed through to the
// calendar widget.
type Options struct {
	Mapping Mapping `yaml:"mapping" json:"mapping"`

	// View is the initial calendar view: month, week, day or list.
	View string `yaml:"view" json:"view"`

	// FirstDayOfWeek is a lower-case English weekday name.
	FirstDayOfWeek string `yaml:"first_day_of_week" json:"first_day_of_week"`

	ShowTooltip bool `yaml:"show_tooltip" json:"show_tooltip"`
	ShowPopover bool `yaml:"show_popover" json:"show_popover"`

	// GroupColors are colors the user pinned to specific group keys. They
	// take precedence over generated assignments.
	GroupColors Colors `yaml:"group_colors,omitempty" json:"group_colors,omitempty"`
}

// DefaultOptions returns the options of a freshly created widget.
func DefaultOptions() Options {
	return Options{
		View:           ViewMonth,
		FirstDayOfWeek: "sunday",
		ShowTooltip:    true,
		ShowPopover:    false,
		GroupColors:    Colors{},
	}
}

// Normalize fills empty fields with defaults and lower-cases enum values.
func (o *Options) Normalize() {
	o.View = strings.ToLower(strings.TrimSpace(o.View))
	if o.View == "" {
		o.View = ViewMonth
	}
	o.FirstDayOfWeek = strings.ToLower(strings.TrimSpace(o.FirstDayOfWeek))
	if o.FirstDayOfWeek == "" {
		o.FirstDayOfWeek = "sunday"
	}
	if o.GroupColors == nil {
		o.GroupColors = Colors{}
	}
}

// Validate reports the first invalid option value.
func (o Options) Validate() error {
	switch o.View {
	case ViewMonth, ViewWeek, ViewDay, ViewList:
	default:
		return fmt.Errorf("unknown view %q", o.View)
	}
	if WeekdayIndex(o.FirstDayOfWeek) < 0 {
		return fmt.Errorf("unknown first day of week %q", o.FirstDayOfWeek)
	}
	for key, c := range o.GroupColors {
		if !ValidColor(c) {
			return fmt.Errorf("group %q: invalid color %q", key, c)
		}
	}
	return nil
}

// WeekdayIndex returns 0 for sunday through 6 for saturday, or -1.
func WeekdayIndex(name string) int {
	for i, d := range weekdays {
		if d == name {
			return i
		}
	}
	return -1
}
