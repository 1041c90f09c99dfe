// Package dashboard is a bubbletea terminal view of trainer iteration
// progress: iterations completed and their rate per minute, positions
// generated, champion/candidate average length, the champion's win rate,
// and the most recent iteration lines, fed by iteration summaries pushed
// from the trainer loop. It does not show games/sec, batch sizes or the
// candidate's win rate.
package dashboard

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/brensch/alphasnake/internal/trainer"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	promotedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	statStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// Event is one update pushed to the dashboard: either a completed
// iteration summary or a raw log line (heartbeat, warning, etc).
type Event struct {
	Summary *trainer.Summary
	Log     string
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func waitForEvent(events <-chan Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return ev
	}
}

type uiModel struct {
	events    <-chan Event
	start     time.Time
	completed int
	positions int
	best      trainer.Summary
	recent    []string
	quitting  bool
}

// New constructs the bubbletea program reading from events. Run it with
// p := tea.NewProgram(dashboard.New(events)); p.Run().
func New(events <-chan Event) tea.Model {
	return uiModel{events: events, start: time.Now()}
}

func (m uiModel) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), tickCmd())
}

func (m uiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
	case tickMsg:
		return m, tickCmd()
	case Event:
		if msg.Summary != nil {
			m.completed++
			m.positions += msg.Summary.PositionsGenerated
			m.best = *msg.Summary
			line := fmt.Sprintf("iter %d: games=%d pos=%d promoted=%v best_len=%.1f cand_len=%.1f",
				msg.Summary.Iteration, msg.Summary.GamesPlayed, msg.Summary.PositionsGenerated,
				msg.Summary.Promoted, msg.Summary.BestAvgLength, msg.Summary.CandidateAvgLength)
			m.recent = append([]string{line}, m.recent...)
		} else if msg.Log != "" {
			m.recent = append([]string{msg.Log}, m.recent...)
		}
		if len(m.recent) > 12 {
			m.recent = m.recent[:12]
		}
		return m, waitForEvent(m.events)
	}
	return m, nil
}

func (m uiModel) View() string {
	if m.quitting {
		return ""
	}
	elapsed := time.Since(m.start)
	itersPerMin := 0.0
	if elapsed.Minutes() > 0 {
		itersPerMin = float64(m.completed) / elapsed.Minutes()
	}

	s := titleStyle.Render("AlphaSnake trainer") + "\n\n"
	s += statStyle.Render(fmt.Sprintf("Iterations:      %d (%.2f/min)\n", m.completed, itersPerMin))
	s += statStyle.Render(fmt.Sprintf("Positions:       %d\n", m.positions))
	s += fmt.Sprintf("Best avg length: %.2f\n", m.best.BestAvgLength)
	s += fmt.Sprintf("Cand avg length: %.2f\n", m.best.CandidateAvgLength)
	s += fmt.Sprintf("Best win rate:   %.3f\n", m.best.BestWinRate)
	s += statStyle.Render(fmt.Sprintf("Elapsed:         %s\n\n", elapsed.Round(time.Second)))

	s += "Recent:\n"
	for _, line := range m.recent {
		if strings.Contains(line, "promoted=true") {
			s += promotedStyle.Render(line) + "\n"
		} else {
			s += line + "\n"
		}
	}
	s += "\nPress q to quit.\n"
	return s
}
