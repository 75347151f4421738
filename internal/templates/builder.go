package templates

import (
	"strconv"
	"strings"

	"airpost/internal/config"
	"airpost/internal/store"
)

// Builder renders the configured post and megathread templates for concrete
// shows and episodes.
type Builder struct {
	post config.Post
	mega config.Megathread
}

// NewBuilder returns a Builder bound to the templates in cfg.
func NewBuilder(cfg *config.Config) *Builder {
	return &Builder{post: cfg.Post, mega: cfg.Megathread}
}

func showVars(show *store.Show, episode int) Vars {
	vars := Vars{
		"show_name": show.Name,
		"episode":   strconv.Itoa(episode),
	}
	if show.NameEN != "" {
		vars["show_name_en"] = show.NameEN
	}
	return vars
}

// PostTitle renders the standalone discussion title. Shows with a distinct
// English name use the with_en variant; movies use the movie variants.
func (b *Builder) PostTitle(show *store.Show, episode int) string {
	template := b.post.Title
	switch {
	case show.IsMovie() && show.NameEN != "":
		template = b.post.MovieTitleWithEN
	case show.IsMovie():
		template = b.post.MovieTitle
	case show.NameEN != "":
		template = b.post.TitleWithEN
	}
	return Render(template, showVars(show, episode))
}

// PostBody renders the standalone discussion body with spoiler note, alias
// line, and cross-reference table filled in.
func (b *Builder) PostBody(show *store.Show, episode int, aliases []string, discussions []Discussion) string {
	vars := showVars(show, episode)
	vars["spoiler"] = SpoilerNote(show.HasSource, b.post.Formats)
	vars["aliases"] = AliasLine(aliases, b.post.Formats)
	vars["discussions"] = DiscussionTable(discussions, b.post.Formats)
	return collapseBlankRuns(Render(b.post.Body, vars))
}

// MegathreadTitle renders the rolling megathread title.
func (b *Builder) MegathreadTitle(show *store.Show) string {
	template := b.mega.Title
	if show.NameEN != "" {
		template = b.mega.TitleWithEN
	}
	return Render(template, showVars(show, 0))
}

// MegathreadBody renders the megathread body with the episode comment table.
func (b *Builder) MegathreadBody(show *store.Show, discussions []Discussion) string {
	vars := showVars(show, 0)
	vars["discussions"] = DiscussionTable(discussions, b.post.Formats)
	return collapseBlankRuns(Render(b.mega.Body, vars))
}

// MegathreadComment renders the per-episode comment posted under a megathread.
func (b *Builder) MegathreadComment(show *store.Show, episode int) string {
	return Render(b.mega.Comment, showVars(show, episode))
}

// collapseBlankRuns squeezes the gaps left by empty optional sections so a
// show without aliases does not render three consecutive blank lines.
func collapseBlankRuns(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	blanks := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			blanks++
			if blanks > 1 {
				continue
			}
			out = append(out, "")
			continue
		}
		blanks = 0
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
