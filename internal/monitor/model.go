// Package monitor provides a live, read-only terminal view of decoded frames.
package monitor

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/analogrec/internal/decoder"
	"github.com/verte-zerg/analogrec/internal/device"
	"github.com/verte-zerg/analogrec/internal/model"
)

// DefaultRefresh is the polling period used when none is given.
const DefaultRefresh = 20 * time.Millisecond

const (
	minBarWidth     = 10
	defaultBarWidth = 40
	labelWidth      = 10
)

// Source yields one decoded frame per call.
type Source interface {
	Poll() (model.Frame, error)
}

// Options configures the monitor view.
type Options struct {
	Refresh  time.Duration
	StopCode uint16
	Library  string
}

type tickMsg time.Time

// Model implements the Bubble Tea monitor UI.
type Model struct {
	source   Source
	refresh  time.Duration
	stopCode uint16
	library  string

	width  int
	height int
	bar    progress.Model

	frame      model.Frame
	peaks      map[uint16]float32
	polls      int
	readErrors int
	lastErr    error
	stopped    bool
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C89A3A"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	idleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

// NewModel constructs a monitor model reading from source.
func NewModel(source Source, opts Options) *Model {
	refresh := opts.Refresh
	if refresh <= 0 {
		refresh = DefaultRefresh
	}
	bar := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	bar.Width = defaultBarWidth
	return &Model{
		source:   source,
		refresh:  refresh,
		stopCode: opts.StopCode,
		library:  opts.Library,
		bar:      bar,
		peaks:    map[uint16]float32{},
	}
}

// Run starts the monitor program and blocks until it exits.
func Run(source Source, opts Options) error {
	program := tea.NewProgram(NewModel(source, opts), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run monitor: %w", err)
	}
	return nil
}

// Stopped reports whether the monitor exited because the stop key was seen.
func (m *Model) Stopped() bool {
	return m.stopped
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.tick()
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = barWidth(msg.Width)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}
		return m, nil
	case tickMsg:
		m.poll()
		if m.stopped {
			return m, tea.Quit
		}
		return m, m.tick()
	default:
		return m, nil
	}
}

func (m *Model) poll() {
	frame, err := m.source.Poll()
	m.polls++
	m.frame = frame
	m.lastErr = err
	if errors.Is(err, decoder.ErrReadFailed) {
		m.readErrors++
	}
	for _, slot := range frame {
		if slot.Value > m.peaks[slot.Code] {
			m.peaks[slot.Code] = slot.Value
		}
	}
	if frame.Contains(m.stopCode) {
		m.stopped = true
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Analog monitor"))
	if m.library != "" {
		b.WriteString(footerStyle.Render("  " + m.library))
	}
	b.WriteString("\n\n")
	if len(m.frame) == 0 {
		b.WriteString(idleStyle.Render("no keys pressed"))
		b.WriteByte('\n')
	}
	for _, slot := range m.frame {
		b.WriteString(m.renderSlot(slot))
		b.WriteByte('\n')
	}
	if m.lastErr != nil {
		b.WriteString(errorStyle.Render(m.lastErr.Error()))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m *Model) renderSlot(slot model.KeySlot) string {
	label := fmt.Sprintf("%-*s", labelWidth, device.KeyName(slot.Code))
	return fmt.Sprintf("%s %s %.3f  peak %.3f",
		labelStyle.Render(label),
		m.bar.ViewAs(float64(slot.Value)),
		slot.Value,
		m.peaks[slot.Code],
	)
}

func (m *Model) renderFooter() string {
	segments := []string{
		fmt.Sprintf("Polls %d", m.polls),
		fmt.Sprintf("Read errors %d", m.readErrors),
		fmt.Sprintf("Quit: q or %s", device.KeyName(m.stopCode)),
	}
	return footerStyle.Render(strings.Join(segments, "  "))
}

func barWidth(termWidth int) int {
	width := termWidth - labelWidth - len(" 0.000  peak 0.000") - 2
	if width < minBarWidth {
		return minBarWidth
	}
	return width
}
