// Package templates renders discussion post titles and bodies from the
// operator-configurable template strings.
package templates

import (
	"regexp"
	"strconv"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{([a-z_]+)\}`)

// Vars maps placeholder names to their substitution values.
type Vars map[string]string

// Render substitutes `{name}` placeholders in text. Placeholders without a
// value are left untouched so a typo in a template degrades visibly instead
// of panicking or rendering an empty string.
func Render(text string, vars Vars) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := match[1 : len(match)-1]
		if value, ok := vars[name]; ok {
			return value
		}
		return match
	})
}

// Discussion is one prior episode discussion referenced from a post body.
type Discussion struct {
	Episode int
	URL     string
}

const (
	tableRows    = 13
	tableColumns = 4
)

// DiscussionTable renders the cross-reference table of prior discussions as
// markdown. Episodes fill columns of up to 13 rows; only the most recent
// four columns are kept so long-running shows stay readable.
func DiscussionTable(discussions []Discussion, formats map[string]string) string {
	if len(discussions) == 0 {
		return formats["discussion_none"]
	}

	cell := formats["discussion"]
	header := formats["discussion_header"]
	align := formats["discussion_align"]
	if align == "" {
		align = ":-:"
	}

	var columns [][]string
	var current []string
	for _, d := range discussions {
		current = append(current, Render(cell, Vars{
			"episode": strconv.Itoa(d.Episode),
			"link":    d.URL,
		}))
		if len(current) == tableRows {
			columns = append(columns, current)
			current = nil
		}
	}
	if len(current) > 0 {
		columns = append(columns, current)
	}
	if len(columns) > tableColumns {
		columns = columns[len(columns)-tableColumns:]
	}

	var b strings.Builder
	for i := range columns {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(header)
	}
	b.WriteByte('\n')
	for i := range columns {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(align)
	}
	for row := 0; row < tableRows; row++ {
		wrote := false
		var line strings.Builder
		for col, column := range columns {
			if col > 0 {
				line.WriteByte('|')
			}
			if row < len(column) {
				line.WriteString(column[row])
				wrote = true
			}
		}
		if !wrote {
			break
		}
		b.WriteByte('\n')
		b.WriteString(line.String())
	}
	return b.String()
}

// SpoilerNote returns the source-material spoiler reminder, or an empty
// string for anime-original shows.
func SpoilerNote(hasSource bool, formats map[string]string) string {
	if !hasSource {
		return ""
	}
	return formats["spoiler"]
}

// AliasLine renders the "also known as" line, or an empty string when the
// show has no recorded aliases.
func AliasLine(aliases []string, formats map[string]string) string {
	if len(aliases) == 0 {
		return ""
	}
	return Render(formats["aliases"], Vars{"aliases": strings.Join(aliases, ", ")})
}
