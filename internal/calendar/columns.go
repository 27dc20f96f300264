package calendar

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"querycal/internal/model"
)

var titleCaser = cases.Title(language.English, cases.NoLower)

// CleanColumnName turns a raw column identifier such as "created_at" or
// "country::filter" into a display label ("Created At", "Country").
func CleanColumnName(name string) string {
	if i := strings.Index(name, "::"); i > 0 {
		name = name[:i]
	}
	name = strings.Map(func(r rune) rune {
		if r == '_' || r == '-' {
			return ' '
		}
		return r
	}, name)
	name = strings.Join(strings.Fields(name), " ")
	return titleCaser.String(name)
}

// Labels returns the cleaned label for every column, keyed by column name.
func Labels(columns []model.Column) map[string]string {
	out := make(map[string]string, len(columns))
	for _, c := range columns {
		out[c.Name] = CleanColumnName(c.Name)
	}
	return out
}
