package cards

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/andrei-cloud/go_hce/internal/store"
)

type cardPickerModel struct {
	cards     []store.Card
	active    int64
	cursor    int
	done      bool
	cancelled bool
}

// newCardPickerModel creates a picker with the cursor on the active card.
func newCardPickerModel(cards []store.Card, active int64) cardPickerModel {
	m := cardPickerModel{cards: cards, active: active}
	for i, c := range cards {
		if c.ID == active {
			m.cursor = i
		}
	}

	return m
}

// Init initializes the model.
func (m cardPickerModel) Init() tea.Cmd {
	return nil
}

// Update handles messages and updates the model state.
func (m cardPickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "ctrl+c", "q", "esc":
		m.cancelled = true

		return m, tea.Quit
	case "enter":
		if m.cards[m.cursor].Enabled {
			m.done = true

			return m, tea.Quit
		}
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.cards)-1 {
			m.cursor++
		}
	case "home", "g":
		m.cursor = 0
	case "end", "G":
		m.cursor = len(m.cards) - 1
	}

	return m, nil
}

// selected returns the card under the cursor.
func (m cardPickerModel) selected() store.Card {
	return m.cards[m.cursor]
}

// View renders the current state of the model.
func (m cardPickerModel) View() string {
	if m.done {
		return fmt.Sprintf("Selected card %d\n", m.selected().ID)
	}
	if m.cancelled {
		return "Operation cancelled.\n"
	}

	s := "Select Active Card\n"
	s += strings.Repeat("=", 50) + "\n\n"

	for i, c := range m.cards {
		selector := "  ○ "
		if i == m.cursor {
			selector = "  ● "
		}
		note := ""
		if c.ID == m.active {
			note = " (active)"
		}
		if !c.Enabled {
			note += " (disabled)"
		}
		s += fmt.Sprintf("%s%d  %s  %s  %s%s\n",
			selector, c.ID, c.Network, c.MaskedPAN(), c.Expiry, note)
	}

	s += "\nNavigation:\n"
	s += "  ↑/↓ or j/k: Move\n"
	s += "  Enter: Activate card\n"
	s += "  q or Ctrl+C: Quit\n"

	return s
}

// runCardPicker starts the interactive picker and returns the chosen id.
func runCardPicker(cards []store.Card, active int64) (int64, bool, error) {
	p := tea.NewProgram(newCardPickerModel(cards, active))
	finalModel, err := p.Run()
	if err != nil {
		return 0, false, err
	}

	m := finalModel.(cardPickerModel)
	if m.cancelled || !m.done {
		return 0, false, nil
	}

	return m.selected().ID, true, nil
}
