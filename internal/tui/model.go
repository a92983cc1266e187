// Package tui renders the catalog and the now-playing panel in the terminal
// and turns keys and mouse clicks into player operations.
package tui

import (
	"context"

	"ostplayer/internal/catalog"
	"ostplayer/internal/player"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// viewMsg carries a state change pushed by the machine
type viewMsg player.View

// opResultMsg carries the state after an operation started from the UI
type opResultMsg player.View

// subscriptionClosedMsg means the machine dropped our listener
type subscriptionClosedMsg struct{}

type model struct {
	ctx     context.Context
	machine *player.Machine
	updates <-chan player.View

	view     player.View
	sections []section       // non-empty sections after filtering
	cards    []catalog.Entry // every card in screen order; the cursor indexes this
	cursor   int

	filter    textinput.Model
	filtering bool

	keys     keyMap
	help     help.Model
	progress progress.Model

	gestured bool
	width    int
	height   int
}

func newModel(ctx context.Context, machine *player.Machine) model {
	filter := textinput.New()
	filter.Placeholder = "title or artist"
	filter.Prompt = "/ "
	filter.CharLimit = 100
	filter.Cursor.SetMode(cursor.CursorStatic)

	bar := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	bar.Width = defaultBarWidth

	m := model{
		ctx:      ctx,
		machine:  machine,
		view:     machine.View(),
		filter:   filter,
		keys:     defaultKeyMap(),
		help:     help.New(),
		progress: bar,
	}
	m.applyFilter()
	m.cursor = m.cardFor(m.view.State.CurrentIndex)
	return m
}

func (m model) Init() tea.Cmd {
	return waitForView(m.updates)
}

// waitForView blocks until the machine publishes a new view
func waitForView(updates <-chan player.View) tea.Cmd {
	if updates == nil {
		return nil
	}
	return func() tea.Msg {
		view, ok := <-updates
		if !ok {
			return subscriptionClosedMsg{}
		}
		return viewMsg(view)
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case viewMsg:
		m.view = player.View(msg)
		return m, waitForView(m.updates)

	case opResultMsg:
		m.view = player.View(msg)
		return m, nil

	case subscriptionClosedMsg:
		// The listener is dropped when we fall behind; pick up the current state
		m.updates = m.machine.Subscribe()
		m.view = m.machine.View()
		return m, waitForView(m.updates)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.progress.Width = barWidth(msg.Width)
		return m, nil

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.KeyMsg:
		if m.filtering {
			return m.handleFilterKey(msg)
		}
		return m.handleKey(msg)
	}

	return m, nil
}

func (m model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		if m.filter.Value() != "" {
			m.filter.SetValue("")
			m.applyFilter()
		} else {
			m.filtering = false
			m.filter.Blur()
		}
		return m, nil
	case "enter", "up", "down", "tab", "shift+tab":
		m.filtering = false
		m.filter.Blur()
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	}

	// Space and every other key belong to the input while it has focus
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.applyFilter()
	return m, cmd
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Filter):
		m.filtering = true
		return m, m.filter.Focus()

	case key.Matches(msg, m.keys.NextCard):
		if len(m.cards) > 0 {
			m.cursor = (m.cursor + 1) % len(m.cards)
		}
		return m.gesture(nil)

	case key.Matches(msg, m.keys.PrevCard):
		if len(m.cards) > 0 {
			m.cursor = (m.cursor - 1 + len(m.cards)) % len(m.cards)
		}
		return m.gesture(nil)

	case key.Matches(msg, m.keys.PlayCard):
		if len(m.cards) == 0 {
			return m.gesture(nil)
		}
		return m.selectCard(m.cursor)

	case key.Matches(msg, m.keys.Toggle):
		return m.gesture(m.machine.TogglePlay)

	case key.Matches(msg, m.keys.Next):
		return m.gesture(m.machine.Next)

	case key.Matches(msg, m.keys.Previous):
		return m.gesture(m.machine.Previous)

	case key.Matches(msg, m.keys.Shuffle):
		return m.gesture(func(context.Context) { m.machine.ToggleShuffle() })

	case key.Matches(msg, m.keys.Repeat):
		return m.gesture(func(context.Context) { m.machine.ToggleRepeat() })

	case key.Matches(msg, m.keys.VolumeUp):
		return m.gesture(func(context.Context) { m.machine.VolumeUp() })

	case key.Matches(msg, m.keys.VolumeDown):
		return m.gesture(func(context.Context) { m.machine.VolumeDown() })

	case key.Matches(msg, m.keys.Seek):
		fraction := float64(msg.Runes[0]-'0') / 10
		return m.gesture(func(context.Context) { m.machine.Seek(fraction) })

	case key.Matches(msg, m.keys.Close):
		return m.gesture(func(context.Context) { m.machine.HidePanel() })
	}

	return m, nil
}

func (m model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
		return m, nil
	}

	l := m.layout()
	switch {
	case l.progressRow >= 0 && msg.Y == l.progressRow && msg.X < m.progress.Width:
		fraction := 0.0
		if m.progress.Width > 1 {
			fraction = float64(msg.X) / float64(m.progress.Width-1)
		}
		return m.gesture(func(context.Context) { m.machine.Seek(fraction) })

	case l.cardAt(msg.Y) >= 0:
		return m.selectCard(l.cardAt(msg.Y))
	}

	return m.gesture(nil)
}

// gesture runs op and, on the first user input, records the interaction
// afterwards so the player can unlock playback. A first Space therefore only
// unlocks.
func (m model) gesture(op func(context.Context)) (tea.Model, tea.Cmd) {
	return m.run(op, false)
}

// selectCard focuses the card at pos and plays its track. Picking a card is
// itself the unlocking input, so the track starts on the first selection.
func (m model) selectCard(pos int) (tea.Model, tea.Cmd) {
	m.cursor = pos
	return m.run(m.playIndex(m.cards[pos].Index), true)
}

func (m model) run(op func(context.Context), unlockFirst bool) (tea.Model, tea.Cmd) {
	first := !m.gestured
	m.gestured = true
	if op == nil && !first {
		return m, nil
	}

	ctx, machine := m.ctx, m.machine
	return m, func() tea.Msg {
		if first && unlockFirst {
			machine.Interact(ctx)
		}
		if op != nil {
			op(ctx)
		}
		if first && !unlockFirst {
			machine.Interact(ctx)
		}
		return opResultMsg(machine.View())
	}
}

// playIndex loads a card's track and plays it once the source is accepted
func (m model) playIndex(index int) func(context.Context) {
	machine := m.machine
	return func(ctx context.Context) {
		if machine.LoadTrack(ctx, index) {
			machine.Play(ctx)
		}
	}
}

func (m *model) applyFilter() {
	m.sections = buildSections(m.machine.Catalog(), m.filter.Value())
	var cards []catalog.Entry
	for _, s := range m.sections {
		cards = append(cards, s.entries...)
	}
	m.cards = cards
	if m.cursor >= len(m.cards) {
		m.cursor = max(0, len(m.cards)-1)
	}
}

// cardFor returns the first card position showing catalog index, or 0
func (m model) cardFor(index int) int {
	for i, e := range m.cards {
		if e.Index == index {
			return i
		}
	}
	return 0
}
