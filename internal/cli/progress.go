package cli

import (
	"context"
	"errors"
	"fmt"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/raphaelgruber/designscan/internal/client"
	"github.com/raphaelgruber/designscan/internal/jobs"
	"github.com/raphaelgruber/designscan/internal/models"
)

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status     lipgloss.Color
	Success    lipgloss.Color
	Error      lipgloss.Color
	Hint       lipgloss.Color
	ProgressBg lipgloss.Color
}

var defaultTheme = Theme{
	Status:     lipgloss.Color("#5FAFD7"), // light blue
	Success:    lipgloss.Color("#00D787"), // green
	Error:      lipgloss.Color("#FF005F"), // red
	Hint:       lipgloss.Color("#6C6C6C"), // dim gray
	ProgressBg: lipgloss.Color("#3A3A3A"), // dark gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// snapshotMsg carries one snapshot from the event stream.
type snapshotMsg jobs.Snapshot

// streamDoneMsg is sent when the event stream ends.
type streamDoneMsg struct {
	job *models.Job
	err error
}

// progressModel is the bubbletea model for job progress.
type progressModel struct {
	jobID    string
	job      *models.Job
	progress progress.Model
	theme    Theme
	done     bool
	quitting bool
	err      error
}

func newProgressModel(job *models.Job) progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return progressModel{
		jobID:    job.ID,
		job:      job,
		progress: prog,
		theme:    defaultTheme,
	}
}

func (m progressModel) Init() tea.Cmd {
	return m.progress.Init()
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case snapshotMsg:
		job := msg.Job
		m.job = &job
		if msg.Kind == jobs.SnapshotTerminal {
			m.done = true
			m.err = jobError(&job)
			return m, tea.Quit
		}
		return m, nil

	case streamDoneMsg:
		if m.done {
			return m, nil
		}
		if msg.job != nil {
			m.job = msg.job
		}
		m.done = true
		switch {
		case msg.err != nil:
			m.err = fmt.Errorf("event stream: %w", msg.err)
		default:
			m.err = jobError(m.job)
		}
		return m, tea.Quit

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m progressModel) renderContent() string {
	if m.done || m.quitting {
		return m.finalView()
	}
	if m.job == nil {
		return "Waiting for job status...\n"
	}

	p := m.job.Progress
	var pct float64
	if p.TotalItems > 0 {
		pct = float64(p.AnalyzedItems) / float64(p.TotalItems)
	}

	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.job.Status))
	bar := m.progress.ViewAs(pct)
	counts := fmt.Sprintf("%d/%d frames", p.AnalyzedItems, p.TotalItems)
	current := ""
	if p.CurrentItemName != "" {
		current = " " + p.CurrentItemName
	}
	hint := m.theme.hintStyle().Render("Press Ctrl+C to continue in background")

	return fmt.Sprintf("%s %s %s%s\n%s\n", status, bar, counts, current, hint)
}

func (m progressModel) finalView() string {
	if m.quitting {
		msg := fmt.Sprintf("\nJob %s continues in background.\nUse 'designscan watch %s' to resume.\n",
			m.jobID, m.jobID)
		return m.theme.hintStyle().Render(msg)
	}
	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Job failed: %s\n", m.err))
	}

	out := m.theme.completedStyle().Render("✓ Completed") + "\n\n"
	if m.job != nil && m.job.Result != nil {
		out += resultSummary(m.job.Result)
	}
	return out
}

// jobError turns a failed job into an error. Nil for anything else.
func jobError(job *models.Job) error {
	if job == nil || job.Status != models.JobStatusFailed {
		return nil
	}
	if job.Error != nil && *job.Error != "" {
		return errors.New(*job.Error)
	}
	return errors.New("job failed with unknown error")
}

// RunJobProgress shows an interactive progress bar fed by the job's event stream.
// Returns nil on success or Ctrl+C (job keeps running), error on job failure.
func RunJobProgress(ctx context.Context, c *client.Client, job *models.Job) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newProgressModel(job))
	go func() {
		final, err := c.Watch(ctx, job.ID, func(s jobs.Snapshot) error {
			p.Send(snapshotMsg(s))
			return nil
		})
		if ctx.Err() != nil {
			return
		}
		p.Send(streamDoneMsg{job: final, err: err})
	}()

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("progress UI error: %w", err)
	}

	if m, ok := finalModel.(progressModel); ok {
		if m.quitting {
			return nil
		}
		return m.err
	}
	return nil
}
