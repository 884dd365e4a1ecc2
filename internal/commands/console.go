package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/loopmsg/loopconsole/internal/client"
	"github.com/loopmsg/loopconsole/internal/config"
	"github.com/loopmsg/loopconsole/internal/coordinator"
)

var (
	consoleWatch    bool
	consoleInterval time.Duration
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Render every participant's view at once",
	Long: `Refresh all participants and render their feeds side by side, each with
its pending bot reply (if any). With --watch the view re-renders on an
interval until interrupted (press q to quit).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConsole()
	},
}

func init() {
	consoleCmd.Flags().BoolVar(&consoleWatch, "watch", false, "Re-render on an interval")
	consoleCmd.Flags().DurationVar(&consoleInterval, "interval", 5*time.Second, "Watch refresh interval")
}

func runConsole() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	coord, err := newCoordinator(cfg)
	if err != nil {
		return err
	}

	r := newConsoleRenderer(cfg, coord)

	if !consoleWatch {
		view, err := r.refreshAndRender(terminalWidth())
		if err != nil {
			return err
		}
		fmt.Println(view)
		return nil
	}

	model := consoleModel{renderer: r, interval: consoleInterval, width: terminalWidth()}
	_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}

func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}

// consoleRenderer turns coordinator state into a styled multi-panel view. It
// caches each participant's last fetched feed so an unchanged refresh still
// has content to show.
type consoleRenderer struct {
	cfg    *config.Config
	coord  *coordinator.Coordinator
	styles consoleStyles

	feeds    map[string][]client.Message
	outcomes map[string]*coordinator.RefreshResult
}

type consoleStyles struct {
	panel   lipgloss.Style
	title   lipgloss.Style
	when    lipgloss.Style
	bot     lipgloss.Style
	self    lipgloss.Style
	pending lipgloss.Style
	status  lipgloss.Style
	warning lipgloss.Style
	empty   lipgloss.Style
}

func newConsoleRenderer(cfg *config.Config, coord *coordinator.Coordinator) *consoleRenderer {
	return &consoleRenderer{
		cfg:   cfg,
		coord: coord,
		styles: consoleStyles{
			panel:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
			title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
			when:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
			bot:     lipgloss.NewStyle().Foreground(lipgloss.Color("159")),
			self:    lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
			pending: lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("214")),
			status:  lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
			warning: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
			empty:   lipgloss.NewStyle().Faint(true),
		},
		feeds:    make(map[string][]client.Message),
		outcomes: make(map[string]*coordinator.RefreshResult),
	}
}

// refreshAndRender runs a full refresh cycle for every participant and
// renders the result. Per-participant failures surface inside that
// participant's panel instead of aborting the whole view.
func (r *consoleRenderer) refreshAndRender(width int) (string, error) {
	warnings := make(map[string]string)
	for _, id := range r.coord.Participants() {
		ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
		result, err := r.coord.PublishThenFetch(ctx, id.Key)
		cancel()
		if err != nil {
			warnings[id.Key] = err.Error()
			continue
		}
		r.outcomes[id.Key] = result
		if result.Outcome == coordinator.OutcomeUpdated {
			r.feeds[id.Key] = result.Messages
		}
		if result.PublishErr != nil {
			warnings[id.Key] = fmt.Sprintf("publish: %v", result.PublishErr)
		}
	}
	return r.render(width, warnings), nil
}

func (r *consoleRenderer) render(width int, warnings map[string]string) string {
	participants := r.coord.Participants()
	if len(participants) == 0 {
		return r.styles.empty.Render("No participants configured.")
	}

	panelWidth := width/len(participants) - 4
	if panelWidth < 24 {
		panelWidth = width - 4
	}

	panels := make([]string, 0, len(participants))
	for _, id := range participants {
		panels = append(panels, r.renderPanel(id, panelWidth, warnings[id.Key]))
	}

	// Stack vertically when the terminal cannot fit panels side by side.
	if panelWidth >= width-4 {
		return lipgloss.JoinVertical(lipgloss.Left, panels...)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, panels...)
}

func (r *consoleRenderer) renderPanel(id coordinator.Identity, width int, warning string) string {
	var b strings.Builder
	b.WriteString(r.styles.title.Render(labelFor(r.cfg, id.Key)))
	b.WriteString("\n")

	feed := r.feeds[id.Key]
	if len(feed) == 0 {
		b.WriteString(r.styles.empty.Render("(no messages)"))
		b.WriteString("\n")
	}
	for _, msg := range feed {
		style := r.styles.self
		who := "you"
		if msg.Audience == client.AudienceBotToUser {
			style = r.styles.bot
			who = "bot"
		}
		b.WriteString(r.styles.when.Render(formatWhen(msg.CreatedAt)))
		b.WriteString(" ")
		b.WriteString(style.Render(fmt.Sprintf("%-3s %s", who, truncateText(msg.Content, width-26))))
		b.WriteString("\n")
	}

	if text, ok := r.coord.Preview(id.Key); ok {
		b.WriteString(r.styles.pending.Render("pending: " + truncateText(text, width-12)))
		b.WriteString("\n")
	}

	if warning != "" {
		b.WriteString(r.styles.warning.Render(truncateText(warning, width-4)))
		b.WriteString("\n")
	}

	if result, ok := r.outcomes[id.Key]; ok && result.Outcome == coordinator.OutcomeUnchanged {
		b.WriteString(r.styles.status.Render("no new updates since " + result.CheckedAt.Local().Format("15:04:05")))
		b.WriteString("\n")
	}

	return r.styles.panel.Width(width).Render(strings.TrimRight(b.String(), "\n"))
}

// Watch mode.

type consoleTickMsg time.Time

type consoleRefreshedMsg struct {
	view string
	err  error
}

type consoleModel struct {
	renderer *consoleRenderer
	interval time.Duration
	width    int
	view     string
	err      error
}

func (m consoleModel) Init() tea.Cmd {
	return m.refreshCmd()
}

func (m consoleModel) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		view, err := m.renderer.refreshAndRender(m.width)
		return consoleRefreshedMsg{view: view, err: err}
	}
}

func (m consoleModel) scheduleTick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return consoleTickMsg(t)
	})
}

func (m consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m, m.refreshCmd()
		}
		return m, nil
	case consoleTickMsg:
		return m, m.refreshCmd()
	case consoleRefreshedMsg:
		m.view = msg.view
		m.err = msg.err
		return m, m.scheduleTick()
	default:
		return m, nil
	}
}

func (m consoleModel) View() string {
	footer := "\n  q quit · r refresh now"
	if m.err != nil {
		return m.view + "\n" + "error: " + m.err.Error() + footer
	}
	if m.view == "" {
		return "Refreshing..." + footer
	}
	return m.view + footer
}
