package main

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/image/draw"

	browserbridge "github.com/embedkit/browser-bridge"
	"github.com/embedkit/browser-bridge/bridge"
	"github.com/embedkit/browser-bridge/browser"
	"github.com/embedkit/browser-bridge/engine"
	"github.com/embedkit/browser-bridge/enginesim"
	"github.com/embedkit/browser-bridge/input"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const pollEvery = 50 * time.Millisecond

// frameTop is the number of terminal rows above the page area (title + URL
// bar), used to map mouse rows onto the page.
const frameTop = 2

type viewerModel struct {
	// start brings the bridge up off the TUI goroutine; built in
	// newViewerModel so the closure captures the flags.
	start tea.Cmd

	b    *bridge.Bridge
	view *bridge.View

	urlbar     textinput.Model
	urlFocused bool

	// img is the latest frame downscaled to the terminal cell grid, two
	// page rows per terminal row.
	img    *image.RGBA
	seq    uint64
	termW  int
	termH  int
	err    error
	closed bool
}

type tickMsg struct{}

type startedMsg struct {
	b    *bridge.Bridge
	view *bridge.View
	err  error
}

func newViewerModel(cfg engine.Config, url string, width, height int) *viewerModel {
	ti := textinput.New()
	ti.Placeholder = "https://..."
	ti.Prompt = "url: "
	ti.SetValue(url)
	ti.Width = 60

	m := &viewerModel{urlbar: ti}
	m.start = func() tea.Msg {
		b, err := bridge.New(enginesim.New(enginesim.Options{}), cfg)
		if err != nil {
			return startedMsg{err: err}
		}
		v, err := b.OpenBrowser(browser.Options{
			Viewport: browserbridge.Size{Width: width, Height: height},
			URL:      url,
		})
		if err != nil {
			return startedMsg{err: err}
		}
		return startedMsg{b: b, view: v}
	}
	return m
}

func (m *viewerModel) Init() tea.Cmd {
	return tea.Batch(m.start, tick())
}

func tick() tea.Cmd {
	return tea.Tick(pollEvery, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m *viewerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case startedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.b = msg.b
		m.view = msg.view

	case tea.WindowSizeMsg:
		m.termW = msg.Width
		m.termH = msg.Height

	case tickMsg:
		m.poll()
		if m.closed {
			return m, tea.Sequence(m.teardown, tea.Quit)
		}
		return m, tick()

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		m.handleMouse(msg)
	}

	if m.urlFocused {
		var cmd tea.Cmd
		m.urlbar, cmd = m.urlbar.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *viewerModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Sequence(m.teardown, tea.Quit)

	case "tab":
		m.urlFocused = !m.urlFocused
		if m.urlFocused {
			m.urlbar.Focus()
		} else {
			m.urlbar.Blur()
		}
		return m, nil
	}

	if m.urlFocused {
		switch msg.String() {
		case "enter":
			if m.view != nil {
				if err := m.view.Navigate(m.urlbar.Value()); err != nil {
					m.err = err
				}
			}
			m.urlFocused = false
			m.urlbar.Blur()
			return m, nil
		case "esc":
			m.urlFocused = false
			m.urlbar.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.urlbar, cmd = m.urlbar.Update(msg)
		return m, cmd
	}

	// Page-focused keys forward to the browsing context.
	if m.view == nil {
		return m, nil
	}
	switch msg.String() {
	case "up":
		m.view.Dispatch(input.ScrollEvent{X: 0.5, Y: 0.5, DeltaY: -40})
	case "down":
		m.view.Dispatch(input.ScrollEvent{X: 0.5, Y: 0.5, DeltaY: 40})
	case "enter":
		m.sendKey('\r', 13, msg.Alt)
	case "backspace":
		m.sendKey(0, 8, msg.Alt)
	default:
		if len(msg.Runes) == 1 {
			r := msg.Runes[0]
			m.sendKey(r, int(r), msg.Alt)
		}
	}
	return m, nil
}

func (m *viewerModel) sendKey(r rune, code int, alt bool) {
	var mods browserbridge.Modifiers
	if alt {
		mods |= browserbridge.ModAlt
	}
	m.view.Dispatch(input.KeyEvent{Rune: r, Code: code, Down: true, Modifiers: mods})
	m.view.Dispatch(input.KeyEvent{Rune: r, Code: code, Down: false, Modifiers: mods})
}

func (m *viewerModel) handleMouse(msg tea.MouseMsg) {
	if m.view == nil || m.termW == 0 {
		return
	}
	rows := m.pageRows()
	if rows <= 0 {
		return
	}
	fx := float64(msg.X) / float64(m.termW-1)
	fy := float64(msg.Y-frameTop) / float64(rows-1)

	var action browserbridge.MouseAction
	switch msg.Action {
	case tea.MouseActionPress:
		action = browserbridge.MouseDown
	case tea.MouseActionRelease:
		action = browserbridge.MouseUp
	default:
		action = browserbridge.MouseMove
	}
	button := browserbridge.MouseLeft
	switch msg.Button {
	case tea.MouseButtonMiddle:
		button = browserbridge.MouseMiddle
	case tea.MouseButtonRight:
		button = browserbridge.MouseRight
	}

	m.view.Dispatch(input.PointerEvent{X: fx, Y: fy, Button: button, Action: action})
}

// pageRows is how many terminal rows the page area gets.
func (m *viewerModel) pageRows() int {
	return m.termH - frameTop - 1 // minus the help line
}

// poll fetches the latest frame and downscales it to the cell grid. Poll
// also pumps the engine under the cooperative policy, so the TUI's tick is
// the host event loop.
func (m *viewerModel) poll() {
	if m.view == nil {
		return
	}
	if m.view.State() == browser.StateClosed {
		m.closed = true
		return
	}

	buf, ok := m.view.Poll()
	if !ok {
		return
	}
	defer buf.Release()

	if buf.Seq() == m.seq || m.termW <= 0 || m.pageRows() <= 0 {
		return
	}
	m.seq = buf.Seq()

	dst := image.NewRGBA(image.Rect(0, 0, m.termW, m.pageRows()*2))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), buf.RGBA(), buf.RGBA().Bounds(), draw.Src, nil)
	m.img = dst
}

func (m *viewerModel) teardown() tea.Msg {
	if m.b == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go keepPumping(ctx, m.b)
	m.b.CloseAll(ctx)
	m.b.Shutdown(ctx)
	return nil
}

func (m *viewerModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("browse"))
	if m.view != nil {
		b.WriteString(" ")
		b.WriteString(statusStyle.Render(fmt.Sprintf("%s  frame %d", m.view.State(), m.seq)))
	}
	if m.err != nil {
		b.WriteString(" ")
		b.WriteString(errorStyle.Render(m.err.Error()))
	}
	b.WriteString("\n")
	b.WriteString(m.urlbar.View())
	b.WriteString("\n")

	if m.img != nil {
		b.WriteString(renderHalfBlocks(m.img))
	} else {
		b.WriteString("Waiting for first frame...\n")
	}

	b.WriteString(helpStyle.Render("tab url bar • arrows scroll • ctrl+c quit"))
	return b.String()
}

// renderHalfBlocks maps two image rows onto one terminal row using the
// upper-half-block glyph: foreground is the top pixel, background the
// bottom one.
func renderHalfBlocks(img *image.RGBA) string {
	bounds := img.Bounds()
	var b strings.Builder
	for y := bounds.Min.Y; y+1 < bounds.Max.Y; y += 2 {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			top := img.RGBAAt(x, y)
			bot := img.RGBAAt(x, y+1)
			style := lipgloss.NewStyle().
				Foreground(lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", top.R, top.G, top.B))).
				Background(lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", bot.R, bot.G, bot.B)))
			b.WriteString(style.Render("▀"))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func runInteractive(cfg engine.Config, url string, width, height int) error {
	p := tea.NewProgram(newViewerModel(cfg, url, width, height),
		tea.WithAltScreen(), tea.WithMouseAllMotion())
	_, err := p.Run()
	return err
}
