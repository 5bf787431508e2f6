// Package tui renders conversion progress as a terminal UI.
//
// It follows the bubbletea Elm architecture: the conversion runs in a
// goroutine and feeds messages into the program, one per completed
// package entry; the model only holds display state. Pressing q or
// ctrl+c cancels the conversion, which stops at the next document
// boundary.
package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	bionic "github.com/proudgenius/bionic-reading-epub-converter"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).MarginBottom(1)
	entryStyle  = lipgloss.NewStyle().Faint(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	footerStyle = lipgloss.NewStyle().Faint(true).MarginTop(1)
)

// progressMsg carries one converter progress event into the UI.
type progressMsg bionic.ProgressEvent

// doneMsg signals that the conversion goroutine has finished.
type doneMsg struct {
	err error
}

type model struct {
	bar      progress.Model
	output   string
	entry    string
	done     int
	total    int
	err      error
	finished bool
	aborting bool
	cancel   context.CancelFunc
}

func newModel(output string, cancel context.CancelFunc) model {
	return model{
		bar:    progress.New(progress.WithDefaultGradient()),
		output: output,
		cancel: cancel,
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressMsg:
		m.done = msg.Done
		m.total = msg.Total
		m.entry = msg.Entry
		return m, nil

	case doneMsg:
		m.finished = true
		m.err = msg.err
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if !m.aborting {
				m.aborting = true
				m.cancel()
			}
			// Quit arrives via doneMsg once the converter stops.
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.bar.Width = msg.Width - 4
		return m, nil
	}
	return m, nil
}

func (m model) View() string {
	if m.finished {
		if m.err != nil {
			return errorStyle.Render("Conversion failed: "+m.err.Error()) + "\n"
		}
		return okStyle.Render("Converted to "+m.output) + "\n"
	}

	pct := 0.0
	if m.total > 0 {
		pct = float64(m.done) / float64(m.total)
	}

	view := titleStyle.Render("Bionic Reading Converter") + "\n" +
		m.bar.ViewAs(pct) + "\n" +
		entryStyle.Render(fmt.Sprintf("%3.f%%  %s", pct*100, truncateEntry(m.entry)))

	footer := "press q to abort"
	if m.aborting {
		footer = "aborting after the current document..."
	}
	return view + "\n" + footerStyle.Render(footer) + "\n"
}

// truncateEntry shortens long entry paths, keeping the trailing portion
// which carries the file name.
func truncateEntry(entry string) string {
	if len(entry) <= 50 {
		return entry
	}
	return "..." + entry[len(entry)-47:]
}

// Run converts inPath to outPath while displaying progress, blocking
// until the conversion finishes or is aborted.
func Run(inPath, outPath string, opts *bionic.Options) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := tea.NewProgram(newModel(outPath, cancel))

	opts.Progress = func(ev bionic.ProgressEvent) {
		p.Send(progressMsg(ev))
	}
	conv := bionic.NewConverter(opts)
	go func() {
		p.Send(doneMsg{err: conv.ConvertFile(ctx, inPath, outPath)})
	}()

	final, err := p.Run()
	if err != nil {
		return err
	}
	if fm, ok := final.(model); ok {
		return fm.err
	}
	return nil
}
