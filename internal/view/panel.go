package view

import (
	"fmt"
	"strings"
	"sync"

	"github.com/kode4food/runstream/internal/channel"
	"github.com/kode4food/runstream/internal/execution"
	"github.com/kode4food/runstream/pkg/api"
)

type (
	// Panel combines a run snapshot with the channel status it is being
	// observed through
	Panel struct {
		mu        sync.Mutex
		run       execution.Run
		conn      channel.Status
		minimized bool
		maxLines  int
		barWidth  int
	}

	// PanelOption configures a Panel
	PanelOption func(*Panel)
)

const (
	DefaultMaxLines = 10
	DefaultBarWidth = 20

	timeFormat = "15:04:05"
)

// WithMaxLines limits how many log lines an expanded panel shows
func WithMaxLines(n int) PanelOption {
	return func(p *Panel) {
		p.maxLines = n
	}
}

// WithBarWidth sets the width of the progress bar in cells
func WithBarWidth(n int) PanelOption {
	return func(p *Panel) {
		p.barWidth = n
	}
}

// NewPanel creates an expanded Panel with no run
func NewPanel(opts ...PanelOption) *Panel {
	p := &Panel{
		conn:     channel.StatusIdle,
		maxLines: DefaultMaxLines,
		barWidth: DefaultBarWidth,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetRun replaces the displayed run
func (p *Panel) SetRun(r execution.Run) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.run = r
}

// SetChannel records the channel status
func (p *Panel) SetChannel(st channel.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conn = st
}

// SetMinimized collapses or expands the panel
func (p *Panel) SetMinimized(minimized bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.minimized = minimized
}

// Minimized reports whether the panel is collapsed
func (p *Panel) Minimized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.minimized
}

// View renders the panel
func (p *Panel) View() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	header := p.header()
	if p.minimized {
		return header
	}

	lines := []string{header, p.progressBar()}
	if p.run.Message != "" {
		lines = append(lines, p.run.Message)
	}
	if entries := p.logLines(); len(entries) > 0 {
		lines = append(lines, "", strings.Join(entries, "\n"))
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func (p *Panel) header() string {
	title := titleStyle.Render("Execution")
	if p.run.FlowID != "" {
		title = titleStyle.Render("Flow " + string(p.run.FlowID))
	}

	status := p.run.Status
	if status == "" {
		status = api.StatusIdle
	}
	parts := []string{
		title,
		styleFor(statusStyles, string(status)).Render(string(status)),
	}
	if status != api.StatusIdle {
		parts = append(parts, fmt.Sprintf("%d%%", p.run.Progress))
	}

	label := ConnectionLabel(p.conn)
	parts = append(parts, styleFor(connectionStyles, label).Render(
		"["+label+"]",
	))
	return strings.Join(parts, " ")
}

func (p *Panel) progressBar() string {
	if p.barWidth <= 0 {
		return ""
	}
	filled := p.run.Progress * p.barWidth / execution.MaxProgress
	filled = min(max(filled, 0), p.barWidth)
	bar := strings.Repeat("█", filled) +
		mutedStyle.Render(strings.Repeat("░", p.barWidth-filled))
	return styleFor(statusStyles, string(p.run.Status)).Render(bar)
}

func (p *Panel) logLines() []string {
	entries := p.run.Log
	if p.maxLines > 0 && len(entries) > p.maxLines {
		entries = entries[len(entries)-p.maxLines:]
	}

	res := make([]string, 0, len(entries))
	for _, e := range entries {
		sev := string(e.Severity)
		line := fmt.Sprintf("%s %s %s",
			mutedStyle.Render(e.Timestamp.Format(timeFormat)),
			styleFor(severityStyles, sev).Render(fmt.Sprintf("%-8s", sev)),
			e.Message,
		)
		if e.NodeID != "" {
			line += mutedStyle.Render(" (" + e.NodeID + ")")
		}
		res = append(res, line)
	}
	return res
}

// ConnectionLabel names a channel status for display. A channel whose
// reconnect attempts are exhausted is "disconnected", which is never
// rendered like a failed run
func ConnectionLabel(st channel.Status) string {
	switch st {
	case channel.StatusOpen:
		return "live"
	case channel.StatusConnecting:
		return "connecting"
	case channel.StatusReconnecting:
		return "reconnecting"
	case channel.StatusDisconnected:
		return "disconnected"
	default:
		return "offline"
	}
}
