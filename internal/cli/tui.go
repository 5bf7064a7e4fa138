package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/pairnull/pkg/pipeline"
	"github.com/matzehuels/pairnull/pkg/randomize"
)

var (
	tuiHeaderStyle = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	tuiDimStyle    = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// Messages
// =============================================================================

type (
	runStartMsg    randomize.StartInfo
	runProgressMsg randomize.Progress
	runFinishMsg   struct {
		res *randomize.Result
		err error
	}
	pipelineDoneMsg struct{ err error }
)

// teaObserver forwards engine events to a running program.
type teaObserver struct {
	p *tea.Program
}

func (o teaObserver) OnStart(_ context.Context, info randomize.StartInfo) {
	o.p.Send(runStartMsg(info))
}

func (o teaObserver) OnProgress(_ context.Context, p randomize.Progress) {
	o.p.Send(runProgressMsg(p))
}

func (o teaObserver) OnFinish(_ context.Context, res *randomize.Result, err error) {
	o.p.Send(runFinishMsg{res: res, err: err})
}

// =============================================================================
// RunModel - Live search progress
// =============================================================================

// RunModel is the bubbletea model showing a search as it runs. With several
// replicates it shows the most recent report of whichever replicate sent it.
type RunModel struct {
	Title      string
	Replicates int
	Info       randomize.StartInfo
	Last       randomize.Progress
	Finished   int
	Converged  int
	Started    bool
	Done       bool
	Err        error

	cancel context.CancelFunc
}

// NewRunModel creates a run model. cancel is called when the user quits.
func NewRunModel(title string, replicates int, cancel context.CancelFunc) RunModel {
	return RunModel{Title: title, Replicates: max(replicates, 1), cancel: cancel}
}

func (m RunModel) Init() tea.Cmd {
	return nil
}

func (m RunModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case runStartMsg:
		m.Info = randomize.StartInfo(msg)
		m.Last = randomize.Progress{Scores: m.Info.Initial, Best: m.Info.Initial}
		m.Started = true
	case runProgressMsg:
		m.Last = randomize.Progress(msg)
	case runFinishMsg:
		m.Finished++
		if msg.res != nil {
			m.Last.Tries = msg.res.Tries
			m.Last.Accepted = msg.res.Accepted
			m.Last.Refills = msg.res.Refills
			m.Last.Scores = msg.res.Scores
			if msg.res.Converged() {
				m.Converged++
			}
		}
	case pipelineDoneMsg:
		m.Done = true
		m.Err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m RunModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render(m.Title))
	b.WriteString("\n")
	b.WriteString(tuiDimStyle.Render("q quit"))
	b.WriteString("\n\n")

	if !m.Started {
		b.WriteString(tuiDimStyle.Render("  loading inputs and building candidate pool..."))
		b.WriteString("\n")
		return b.String()
	}

	fmt.Fprintf(&b, "  %s %d × %d points, %s, pool %d\n\n",
		StyleDim.Render("inputs"), m.Info.N1, m.Info.N2, m.Info.CRS, m.Info.PoolSize)

	tol := m.Info.Tolerance
	cats := []struct {
		name          string
		current, best float64
	}{
		{"x1 self", m.Last.Scores.Self1, m.Last.Best.Self1},
		{"x2 self", m.Last.Scores.Self2, m.Last.Best.Self2},
		{"cross", m.Last.Scores.Cross, m.Last.Best.Cross},
	}
	rows := make([][]string, len(cats))
	for i, c := range cats {
		rows[i] = []string{c.name, formatScore(c.current), formatScore(c.best), formatScore(tol)}
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Category", "Current", "Best", "Tolerance").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return tuiHeaderStyle
			}
			if col == 1 && row < len(cats) && cats[row].current <= tol {
				return StyleSuccess
			}
			if col == 3 {
				return tuiDimStyle
			}
			return lipgloss.NewStyle().Foreground(colorWhite)
		})
	b.WriteString(t.Render())
	b.WriteString("\n\n")

	tries := fmt.Sprintf("%d/%d tries", m.Last.Tries, m.Info.MaxTries)
	parts := []string{tries, fmt.Sprintf("%d accepted", m.Last.Accepted), fmt.Sprintf("%d refills", m.Last.Refills)}
	if m.Last.Temperature > 0 {
		parts = append(parts, fmt.Sprintf("T=%.2g", m.Last.Temperature))
	}
	if m.Last.Elapsed > 0 {
		parts = append(parts, m.Last.Elapsed.Round(100*time.Millisecond).String())
	}
	b.WriteString("  " + tuiDimStyle.Render(strings.Join(parts, " · ")))
	b.WriteString("\n")
	if m.Replicates > 1 {
		fmt.Fprintf(&b, "  %s\n", tuiDimStyle.Render(fmt.Sprintf("replicates %d/%d finished, %d converged",
			m.Finished, m.Replicates, m.Converged)))
	}
	return b.String()
}

func formatScore(v float64) string {
	return fmt.Sprintf("%.5f", v)
}

// =============================================================================
// Runner
// =============================================================================

type executeResult struct {
	res *pipeline.Result
	err error
}

// runWithTUI executes the pipeline while a RunModel renders its progress.
func runWithTUI(ctx context.Context, runner *pipeline.Runner, opts pipeline.Options) (*pipeline.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	title := fmt.Sprintf("Randomizing %s and %s", opts.X1Path, opts.X2Path)
	p := tea.NewProgram(NewRunModel(title, opts.Replicates, cancel), tea.WithOutput(os.Stderr))
	opts.Run.Observer = teaObserver{p: p}

	done := make(chan executeResult, 1)
	go func() {
		res, err := runner.Execute(ctx, opts)
		done <- executeResult{res: res, err: err}
		p.Send(pipelineDoneMsg{err: err})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return nil, fmt.Errorf("progress view: %w", err)
	}
	out := <-done
	return out.res, out.err
}

// =============================================================================
// Helpers
// =============================================================================

func formatRelativeTime(t time.Time) string {
	diff := time.Since(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("Jan 2, 2006")
	}
}
