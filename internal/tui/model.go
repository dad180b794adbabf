package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"media-resolver/internal/resolver"
	"media-resolver/pkg/models"
)

// Model represents the main application state
type Model struct {
	state     State
	urlInput  textinput.Model
	table     table.Model
	engine    *resolver.Engine
	storage   models.Storage
	format    models.FileFormat
	resolving bool
	lastError string
	result    *models.ResolutionResult
	width     int
	height    int
	styles    Styles
}

// State represents different screens/states of the TUI
type State int

const (
	MainMenu State = iota
	ResolveScreen
	ResultScreen
	History
	Help
)

// resolveDoneMsg carries the outcome of a resolution back to Update
type resolveDoneMsg struct {
	result *models.ResolutionResult
	err    error
}

// Styles holds all the styling for the TUI
type Styles struct {
	title        lipgloss.Style
	subtitle     lipgloss.Style
	menuItem     lipgloss.Style
	selectedItem lipgloss.Style
	input        lipgloss.Style
	success      lipgloss.Style
	errorText    lipgloss.Style
	statusBar    lipgloss.Style
	table        lipgloss.Style
}

// InitialModel creates the initial model for the TUI
func InitialModel(engine *resolver.Engine, storage models.Storage) Model {
	// Initialize text input
	ti := textinput.New()
	ti.Placeholder = "Enter media URL..."
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 50

	// Initialize table
	columns := []table.Column{
		{Title: "Platform", Width: 12},
		{Title: "Filename", Width: 32},
		{Title: "Format", Width: 8},
		{Title: "Status", Width: 10},
		{Title: "Provider", Width: 12},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows([]table.Row{}),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	// Initialize styles
	styles := Styles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			PaddingTop(1).
			PaddingBottom(1),
		subtitle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			PaddingBottom(1),
		menuItem: lipgloss.NewStyle().
			PaddingLeft(2).
			PaddingRight(2).
			Margin(0, 1),
		selectedItem: lipgloss.NewStyle().
			PaddingLeft(2).
			PaddingRight(2).
			Margin(0, 1).
			Background(lipgloss.Color("#7D56F4")).
			Foreground(lipgloss.Color("#FFFFFF")),
		input: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(1),
		success: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")),
		errorText: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87")),
		statusBar: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Background(lipgloss.Color("#F8F8F8")).
			Padding(0, 1),
		table: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")),
	}

	return Model{
		state:    MainMenu,
		urlInput: ti,
		table:    t,
		engine:   engine,
		storage:  storage,
		format:   models.FormatMP4,
		styles:   styles,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case resolveDoneMsg:
		m.resolving = false
		if msg.err != nil {
			m.lastError = msg.err.Error()
			m.result = nil
		} else {
			m.lastError = ""
			m.result = msg.result
		}
		m.state = ResultScreen
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.state == ResolveScreen && msg.String() == "q" {
				break
			}
			return m, tea.Quit

		case "esc":
			if m.state != MainMenu && !m.resolving {
				m.state = MainMenu
				return m, nil
			}

		case "1":
			if m.state == MainMenu {
				m.state = ResolveScreen
				m.urlInput.Focus()
				return m, textinput.Blink
			}

		case "2":
			if m.state == MainMenu {
				m.state = History
				m.refreshHistory()
				return m, nil
			}

		case "3":
			if m.state == MainMenu {
				m.state = Help
				return m, nil
			}

		case "tab":
			if m.state == ResolveScreen {
				m.format = nextFormat(m.format)
				return m, nil
			}

		case "enter":
			if m.state == ResolveScreen && m.urlInput.Value() != "" && !m.resolving {
				m.resolving = true
				url := m.urlInput.Value()
				m.urlInput.SetValue("")
				return m, m.resolveCmd(url)
			}
			if m.state == ResultScreen {
				m.state = MainMenu
				return m, nil
			}
		}
	}

	// Update components based on current state
	switch m.state {
	case ResolveScreen:
		m.urlInput, cmd = m.urlInput.Update(msg)
	case History:
		m.table, cmd = m.table.Update(msg)
	}

	return m, cmd
}

// resolveCmd runs the resolution off the update loop
func (m Model) resolveCmd(url string) tea.Cmd {
	engine := m.engine
	req := &models.ResolutionRequest{
		URL:    url,
		Format: m.format,
	}
	return func() tea.Msg {
		result, err := engine.Resolve(context.Background(), req, "tui")
		return resolveDoneMsg{result: result, err: err}
	}
}

// View renders the UI
func (m Model) View() string {
	switch m.state {
	case MainMenu:
		return m.renderMainMenu()
	case ResolveScreen:
		return m.renderResolveScreen()
	case ResultScreen:
		return m.renderResult()
	case History:
		return m.renderHistory()
	case Help:
		return m.renderHelp()
	default:
		return m.renderMainMenu()
	}
}

func (m Model) renderMainMenu() string {
	title := m.styles.title.Render("Media Resolver TUI")
	subtitle := m.styles.subtitle.Render("Resolve media URLs into direct download links")

	menu := []string{
		"1. Resolve URL",
		"2. History",
		"3. Help",
		"",
		"q. Quit",
	}

	var menuItems []string
	for _, item := range menu {
		if item == "" {
			menuItems = append(menuItems, "")
		} else {
			menuItems = append(menuItems, m.styles.menuItem.Render(item))
		}
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		title,
		subtitle,
		"",
		strings.Join(menuItems, "\n"),
	)

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m Model) renderResolveScreen() string {
	title := m.styles.title.Render("Resolve URL")

	inputLabel := "Enter media URL:"
	input := m.styles.input.Render(m.urlInput.View())

	formatLine := fmt.Sprintf("Output format: %s (Tab to cycle)", m.format)

	status := "Press Enter to resolve • ESC to go back"
	if m.resolving {
		status = "Resolving, please wait..."
	}

	instructions := []string{
		"Supported platforms:",
		"• YouTube: https://www.youtube.com/watch?v=...",
		"• TikTok: https://www.tiktok.com/@user/video/...",
		"• Instagram, Twitter/X, Facebook, Reddit, Vimeo, Twitch,",
		"  SoundCloud, Spotify",
		"",
		status,
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		inputLabel,
		input,
		"",
		formatLine,
		"",
		strings.Join(instructions, "\n"),
	)

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m Model) renderResult() string {
	title := m.styles.title.Render("Result")

	var body string
	if m.lastError != "" {
		body = m.styles.errorText.Render("Failed: " + m.lastError)
	} else if m.result != nil {
		lines := []string{
			m.styles.success.Render("Resolved via " + m.result.Provider),
			"",
			"Filename: " + m.result.Filename,
			"Size:     " + m.result.FileSize,
			"URL:      " + m.result.DownloadURL,
		}
		body = strings.Join(lines, "\n")
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		body,
		"",
		"Enter or ESC to go back",
	)

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m Model) renderHistory() string {
	title := m.styles.title.Render("History")

	tableView := m.styles.table.Render(m.table.View())

	instructions := "↑/↓ to navigate • ESC to go back"

	content := lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		tableView,
		"",
		instructions,
	)

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m Model) renderHelp() string {
	title := m.styles.title.Render("Help")

	helpText := []string{
		"Media Resolver TUI Help",
		"",
		"Navigation:",
		"• Use number keys to select menu items",
		"• ESC to go back to main menu",
		"• q or Ctrl+C to quit",
		"",
		"Resolving:",
		"• Enter a media URL and press Enter",
		"• Tab cycles the output format (MP4, MP3, JPEG, PNG, WEBP)",
		"• Direct media links resolve without contacting any provider",
		"",
		"Features:",
		"• Ordered provider fallback with automatic retry",
		"• Resolution history tracking",
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		strings.Join(helpText, "\n"),
		"",
		"ESC to go back",
	)

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m *Model) refreshHistory() {
	if m.storage == nil {
		return
	}

	records, err := m.storage.ListRecords(models.HistoryFilter{Limit: 50})
	if err != nil {
		return
	}

	var rows []table.Row
	for _, rec := range records {
		rows = append(rows, table.Row{
			string(rec.Platform),
			rec.Filename,
			string(rec.Format),
			rec.Status,
			rec.Provider,
		})
	}
	m.table.SetRows(rows)
}

func nextFormat(f models.FileFormat) models.FileFormat {
	order := []models.FileFormat{
		models.FormatMP4,
		models.FormatMP3,
		models.FormatJPEG,
		models.FormatPNG,
		models.FormatWEBP,
	}
	for i, cur := range order {
		if cur == f {
			return order[(i+1)%len(order)]
		}
	}
	return models.FormatMP4
}
