package tui

import (
	"fmt"
	"strings"

	"ostplayer/internal/catalog"
	"ostplayer/internal/player"
	"ostplayer/pkg/models"

	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"
)

const defaultBarWidth = 40

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("250"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("62"))
	artistStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	starStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	sectionStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	noticeStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// section is one titled card grid
type section struct {
	title   string
	entries []catalog.Entry
}

// buildSections returns the Featured and Popular grids narrowed by query,
// dropping the ones left empty. A catalog that flags no track as either
// gets a single grid holding every track.
func buildSections(cat *catalog.Catalog, query string) []section {
	all := []section{
		{title: "Featured", entries: cat.Featured()},
		{title: "Popular", entries: cat.Popular()},
	}
	if len(all[0].entries) == 0 && len(all[1].entries) == 0 {
		all = []section{{title: "All tracks", entries: cat.Search("")}}
	}
	return lo.FilterMap(all, func(s section, _ int) (section, bool) {
		s.entries = catalog.Narrow(s.entries, query)
		return s, len(s.entries) > 0
	})
}

// layout holds the screen rows that accept clicks; progressRow is -1 while
// the now-playing panel is hidden
type layout struct {
	cardRows    []int // screen row of each card, by cursor position
	progressRow int
}

// layout mirrors the row order of View
func (m model) layout() layout {
	l := layout{progressRow: -1}
	row := 3 // header, filter, blank
	if len(m.cards) == 0 {
		row += 2
	}
	for _, s := range m.sections {
		row++ // title
		for range s.entries {
			l.cardRows = append(l.cardRows, row)
			row++
		}
		row++ // blank
	}
	if m.view.Display.PanelVisible {
		l.progressRow = row + 1
	}
	return l
}

// cardAt returns the cursor position of the card drawn on row y, or -1
func (l layout) cardAt(y int) int {
	return lo.IndexOf(l.cardRows, y)
}

func barWidth(termWidth int) int {
	return min(max(termWidth-20, 10), 60)
}

func (m model) View() string {
	var lines []string

	lines = append(lines, headerStyle.Render(fmt.Sprintf("OST Player  %d tracks", m.view.Catalog)))
	if m.filtering || m.filter.Value() != "" {
		lines = append(lines, m.filter.View())
	} else {
		lines = append(lines, helpStyle.Render("press / to filter"))
	}
	lines = append(lines, "")

	if len(m.cards) == 0 {
		lines = append(lines, artistStyle.Render("  No tracks match"), "")
	}
	pos := 0
	for _, s := range m.sections {
		lines = append(lines, sectionStyle.Render(s.title))
		for _, e := range s.entries {
			lines = append(lines, m.renderCard(pos, e))
			pos++
		}
		lines = append(lines, "")
	}

	if m.view.Display.PanelVisible {
		lines = append(lines, m.renderNowPlaying())
		lines = append(lines, m.renderProgress())
	}
	lines = append(lines, m.renderStatus())

	if n := m.view.Notice; n != nil {
		lines = append(lines, noticeStyle.Render(n.Message))
	} else {
		lines = append(lines, "")
	}
	lines = append(lines, m.help.View(m.keys))

	if m.width > 0 {
		clip := lipgloss.NewStyle().MaxWidth(m.width)
		for i := range lines {
			lines[i] = clip.Render(lines[i])
		}
	}
	return strings.Join(lines, "\n")
}

func (m model) renderCard(pos int, e catalog.Entry) string {
	marker := "  "
	if m.view.Selected && e.Index == m.view.State.CurrentIndex {
		if m.view.State.Playing {
			marker = "▶ "
		} else {
			marker = "♪ "
		}
	}

	title := fmt.Sprintf("%-28s", truncate(e.Track.Title, 28))
	if pos == m.cursor {
		title = selectedStyle.Render(title)
	}

	return fmt.Sprintf("%s%s %s %s ⏱ %5s",
		marker,
		title,
		artistStyle.Render(fmt.Sprintf("%-20s", truncate(e.Track.Artist, 20))),
		starStyle.Render(stars(e.Track.Rating)),
		e.Track.DurationLabel,
	)
}

func (m model) renderNowPlaying() string {
	d := m.view.Display
	return titleStyle.Render(d.Title) + artistStyle.Render("  "+d.Artist)
}

func (m model) renderProgress() string {
	d := m.view.Display
	return fmt.Sprintf("%s %s / %s", m.progress.ViewAs(d.Progress), d.ElapsedLabel, d.DurationLabel)
}

func (m model) renderStatus() string {
	s := m.view.State

	parts := []string{statusLabel(s)}
	if s.Shuffle {
		parts = append(parts, "shuffle")
	}
	if s.Repeat {
		parts = append(parts, "repeat")
	}
	parts = append(parts, fmt.Sprintf("vol %d%%", int(s.Volume*100+0.5)))
	if !m.view.Display.PanelVisible && m.view.Selected {
		parts = append(parts, m.view.Display.Title)
	}
	return statusStyle.Render(strings.Join(parts, " · "))
}

func statusLabel(s player.State) string {
	switch s.Status {
	case player.StatusPlaying:
		return "▶ playing"
	case player.StatusLoading:
		return "… loading"
	case player.StatusError:
		return "✖ error"
	case player.StatusReady:
		return "❚❚ paused"
	default:
		return "■ stopped"
	}
}

func stars(rating int) string {
	rating = min(max(rating, 0), models.MaxRating)
	return strings.Repeat("★", rating) + strings.Repeat("☆", models.MaxRating-rating)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
