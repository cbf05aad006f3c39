package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/microcom/cyberquest/internal/handlers"
	"github.com/microcom/cyberquest/pkg/game"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	progressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	choiceStyle   = lipgloss.NewStyle().PaddingLeft(2)
	selectedStyle = lipgloss.NewStyle().PaddingLeft(2).Bold(true).Foreground(lipgloss.Color("212"))
	feedbackStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("114"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle     = lipgloss.NewStyle().Faint(true)
)

// turnMsg carries an API response back into the update loop.
type turnMsg struct {
	turn *handlers.TurnResponse
	err  error
}

// ConsoleUI is the BubbleTea model that runs the UI.
type ConsoleUI struct {
	config   *ConsoleConfig
	client   *apiClient
	turn     *handlers.TurnResponse
	viewport viewport.Model
	selected int
	ready    bool
	width    int
	height   int
	loading  bool
	err      error
}

func NewConsoleUI(cfg *ConsoleConfig, client *apiClient, turn *handlers.TurnResponse) *ConsoleUI {
	return &ConsoleUI{
		config: cfg,
		client: client,
		turn:   turn,
	}
}

func (ui *ConsoleUI) Init() tea.Cmd {
	return nil
}

func (ui *ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		ui.width = msg.Width
		ui.height = msg.Height
		if !ui.ready {
			ui.viewport = viewport.New(msg.Width, msg.Height-2)
			ui.ready = true
		} else {
			ui.viewport.Width = msg.Width
			ui.viewport.Height = msg.Height - 2
		}
		ui.viewport.SetContent(ui.renderTurn())

	case tea.KeyMsg:
		return ui.handleKey(msg)

	case turnMsg:
		ui.loading = false
		ui.err = msg.err
		if msg.turn != nil {
			// Rejected turns re-present the current state, so the
			// response is always safe to display as-is.
			ui.turn = msg.turn
			ui.selected = 0
		}
		ui.viewport.SetContent(ui.renderTurn())
		ui.viewport.GotoTop()
	}

	var cmd tea.Cmd
	ui.viewport, cmd = ui.viewport.Update(msg)
	return ui, cmd
}

func (ui *ConsoleUI) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if ui.loading {
		return ui, nil
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return ui, tea.Quit

	case "r":
		if ui.terminal() {
			ui.loading = true
			return ui, ui.callAPI(func() (*handlers.TurnResponse, error) {
				return ui.client.start(ui.config.UserID, ui.config.PlayerName)
			})
		}

	case "up", "k":
		if ui.hasChoices() && ui.selected > 0 {
			ui.selected--
			ui.viewport.SetContent(ui.renderTurn())
		}

	case "down", "j":
		if ui.hasChoices() && ui.selected < len(ui.turn.Choices)-1 {
			ui.selected++
			ui.viewport.SetContent(ui.renderTurn())
		}

	case "enter":
		return ui.confirm()
	}

	return ui, nil
}

func (ui *ConsoleUI) confirm() (tea.Model, tea.Cmd) {
	switch {
	case ui.hasChoices():
		choice := ui.turn.Choices[ui.selected]
		itemID := ui.turn.ItemID
		ui.loading = true
		return ui, ui.callAPI(func() (*handlers.TurnResponse, error) {
			return ui.client.answer(ui.config.UserID, itemID, choice.OptionID)
		})

	case ui.feedback():
		itemID := ui.turn.ItemID
		ui.loading = true
		return ui, ui.callAPI(func() (*handlers.TurnResponse, error) {
			return ui.client.advance(ui.config.UserID, itemID)
		})
	}
	return ui, nil
}

func (ui *ConsoleUI) callAPI(fn func() (*handlers.TurnResponse, error)) tea.Cmd {
	return func() tea.Msg {
		turn, err := fn()
		return turnMsg{turn: turn, err: err}
	}
}

func (ui *ConsoleUI) hasChoices() bool {
	return ui.turn != nil && len(ui.turn.Choices) > 0 && !ui.terminal()
}

func (ui *ConsoleUI) feedback() bool {
	if ui.turn == nil {
		return false
	}
	return ui.turn.Outcome == game.OutcomeCorrect || ui.turn.Outcome == game.OutcomeIncorrect
}

func (ui *ConsoleUI) terminal() bool {
	if ui.turn == nil {
		return false
	}
	switch ui.turn.Outcome {
	case game.OutcomeWon, game.OutcomeLost, game.OutcomeEnded:
		return true
	}
	return false
}

func (ui *ConsoleUI) renderTurn() string {
	if ui.turn == nil {
		return "Waiting for the first turn..."
	}

	width := ui.width
	if width <= 0 {
		width = 80
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("CyberQuest") + "\n")
	if ui.turn.Progress != "" {
		b.WriteString(progressStyle.Render(ui.turn.Progress) + "\n")
	}
	b.WriteString("\n")

	switch {
	case ui.terminal():
		b.WriteString(ui.renderEnding(width))
	case ui.feedback():
		header := "Incorrect."
		if ui.turn.Outcome == game.OutcomeCorrect {
			header = "Correct!"
		}
		b.WriteString(titleStyle.Render(header) + "\n")
		if ui.turn.Feedback != "" {
			b.WriteString(feedbackStyle.Render(wordwrap.String(ui.turn.Feedback, width-4)) + "\n")
		}
	default:
		if ui.turn.Prompt != "" {
			b.WriteString(wordwrap.String(ui.turn.Prompt, width-2) + "\n\n")
		}
		if ui.turn.Feedback != "" {
			b.WriteString(feedbackStyle.Render(wordwrap.String(ui.turn.Feedback, width-4)) + "\n\n")
		}
		for i, choice := range ui.turn.Choices {
			line := fmt.Sprintf("%s) %s", choice.Label, choice.Text)
			if i == ui.selected {
				b.WriteString(selectedStyle.Render("> "+line) + "\n")
			} else {
				b.WriteString(choiceStyle.Render("  "+line) + "\n")
			}
		}
	}

	if ui.err != nil {
		b.WriteString("\n" + errorStyle.Render(ui.err.Error()) + "\n")
	}
	return b.String()
}

func (ui *ConsoleUI) renderEnding(width int) string {
	var b strings.Builder
	switch ui.turn.Outcome {
	case game.OutcomeWon:
		b.WriteString(titleStyle.Render(fmt.Sprintf("You win! %d correct answers.", ui.turn.Correct)) + "\n")
	case game.OutcomeLost:
		b.WriteString(titleStyle.Render(fmt.Sprintf("Game over! %d wrong answers.", ui.turn.Wrong)) + "\n")
	case game.OutcomeEnded:
		b.WriteString(wordwrap.String(ui.turn.Prompt, width-2) + "\n")
		if len(ui.turn.Tags) > 0 {
			b.WriteString(helpStyle.Render("Tags: "+strings.Join(ui.turn.Tags, ", ")) + "\n")
		}
		b.WriteString(helpStyle.Render(fmt.Sprintf("Score: %d", ui.turn.Score)) + "\n")
	}
	return b.String()
}

func (ui *ConsoleUI) View() string {
	if !ui.ready {
		return "Initializing..."
	}

	help := "enter: select  up/down: move  q: quit"
	if ui.terminal() {
		help = "r: play again  q: quit"
	} else if ui.feedback() {
		help = "enter: next question  q: quit"
	}
	if ui.loading {
		help = "..."
	}

	return ui.viewport.View() + "\n" + helpStyle.Render(help)
}
