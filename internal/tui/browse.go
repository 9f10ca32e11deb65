// Package tui is the interactive catalog browser.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/and161185/jokbo/internal/catalog"
	"github.com/and161185/jokbo/internal/options"
	"github.com/and161185/jokbo/internal/ui"
)

// Messages
type changedMsg struct{}

type doneMsg struct{ err error }

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	activeTab   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")).Underline(true)
	inactiveTab = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	rowStyle    = lipgloss.NewStyle()
	cursorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	faint       = lipgloss.NewStyle().Faint(true)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

const help = "type: search · tab: sort · ←/→: page · ctrl+s: semester · ctrl+g: grade · ctrl+k: category · ctrl+o: major · ctrl+p: professor · ↑/↓: move · enter: open · esc: quit"

// choice cycles through a filter's values; "" means no filter.
type choice struct {
	values []string
	idx    int
}

func newChoice(opts []options.Option) choice {
	c := choice{values: []string{""}}
	for _, o := range opts {
		if o.Value != options.None {
			c.values = append(c.values, o.Value)
		}
	}
	return c
}

func (c *choice) next() string {
	c.idx = (c.idx + 1) % len(c.values)
	return c.values[c.idx]
}

// Model drives a catalog.View. Fetches run as commands; the view reports state
// changes through a channel the model keeps listening on.
type Model struct {
	ctx     context.Context
	view    *catalog.View
	updates chan struct{}

	semester  choice
	grade     choice
	category  choice
	major     choice
	keyword   []rune
	professor []rune
	profFocus bool // typing edits the professor filter instead of the keyword
	cursor    int
	st        catalog.State
	chosen    int64
	width     int
}

// New builds the model and its view. now fixes the semester choices.
func New(ctx context.Context, src catalog.Fetcher, now time.Time, opts ...catalog.Option) *Model {
	m := &Model{ctx: ctx, updates: make(chan struct{}, 1)}
	opts = append(opts, catalog.WithOnChange(func(catalog.State) {
		select {
		case m.updates <- struct{}{}:
		default:
		}
	}))
	m.view = catalog.New(src, opts...)
	m.semester = newChoice(options.SemesterLabels(now))
	m.grade = newChoice(options.Grades())
	m.category = newChoice(options.Categories())
	m.major = newChoice(options.Majors())
	m.st = m.view.State()
	return m
}

// Chosen is the material picked with enter, 0 if the user quit.
func (m *Model) Chosen() int64 { return m.chosen }

// State is the last rendered catalog state.
func (m *Model) State() catalog.State { return m.st }

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.run(m.view.Load), m.wait())
}

func (m *Model) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.updates:
			return changedMsg{}
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) run(fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg { return doneMsg{err: fn(m.ctx)} }
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case changedMsg:
		m.st = m.view.State()
		if m.cursor >= len(m.st.Items) {
			m.cursor = max(0, len(m.st.Items)-1)
		}
		return m, m.wait()
	case doneMsg:
		// failures already show up as State.Err
		if msg.err != nil && !errors.Is(msg.err, catalog.ErrClosed) {
			m.st = m.view.State()
		}
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+c":
		m.view.Close()
		return m, tea.Quit
	case "enter":
		if m.cursor < len(m.st.Items) {
			m.chosen = m.st.Items[m.cursor].ID
			m.view.Close()
			return m, tea.Quit
		}
		return m, nil
	case "up":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down":
		if m.cursor < len(m.st.Items)-1 {
			m.cursor++
		}
		return m, nil
	case "tab":
		next := nextSort(m.st.Sort)
		m.st.Sort = next
		return m, m.run(func(ctx context.Context) error { return m.view.SetSort(ctx, next) })
	case "left", "right":
		p := m.st.Page - 1
		if msg.String() == "right" {
			p = m.st.Page + 1
		}
		return m, m.run(func(ctx context.Context) error { return m.view.GoToPage(ctx, p) })
	case "ctrl+s":
		f := m.st.Filter
		f.Semester = m.semester.next()
		return m, m.applyFilter(f)
	case "ctrl+g":
		f := m.st.Filter
		f.Grade = m.grade.next()
		return m, m.applyFilter(f)
	case "ctrl+k":
		f := m.st.Filter
		f.Category = m.category.next()
		return m, m.applyFilter(f)
	case "ctrl+o":
		f := m.st.Filter
		f.Major = m.major.next()
		return m, m.applyFilter(f)
	case "ctrl+p":
		m.profFocus = !m.profFocus
		return m, nil
	}

	text := &m.keyword
	if m.profFocus {
		text = &m.professor
	}
	switch msg.Type {
	case tea.KeyBackspace:
		if len(*text) == 0 {
			return m, nil
		}
		*text = (*text)[:len(*text)-1]
	case tea.KeyRunes:
		*text = append(*text, msg.Runes...)
	case tea.KeySpace:
		*text = append(*text, ' ')
	default:
		return m, nil
	}
	if m.profFocus {
		f := m.st.Filter
		f.Professor = string(m.professor)
		return m, m.applyFilter(f)
	}
	m.view.SetKeyword(m.ctx, string(m.keyword))
	return m, nil
}

// applyFilter shows f right away; only a semester change makes the view fetch.
func (m *Model) applyFilter(f catalog.Filter) tea.Cmd {
	m.st.Filter = f
	return m.run(func(ctx context.Context) error { return m.view.ApplyFilter(ctx, f) })
}

func orAll(v, all string) string {
	if v == "" {
		return all
	}
	return v
}

func nextSort(s catalog.Sort) catalog.Sort {
	for i, x := range catalog.Sorts {
		if x == s {
			return catalog.Sorts[(i+1)%len(catalog.Sorts)]
		}
	}
	return catalog.SortLatest
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("족보 찾기"))
	b.WriteString("\n")
	b.WriteString(ui.Input(string(m.keyword), "검색어를 입력하세요", !m.profFocus))
	b.WriteString(" ")
	b.WriteString(ui.Input(string(m.professor), "교수명", m.profFocus))
	b.WriteString("\n")

	tabs := make([]string, len(catalog.Sorts))
	for i, s := range catalog.Sorts {
		if s == m.st.Sort {
			tabs[i] = activeTab.Render(string(s))
		} else {
			tabs[i] = inactiveTab.Render(string(s))
		}
	}
	f := m.st.Filter
	b.WriteString(strings.Join(tabs, "  "))
	b.WriteString("   ")
	b.WriteString(faint.Render(strings.Join([]string{
		orAll(f.Semester, "전체 학기"),
		orAll(f.Grade, "전체 학년"),
		orAll(f.Category, "전체 구분"),
		orAll(f.Major, "전체 전공"),
	}, " · ")))
	b.WriteString("\n\n")

	switch {
	case m.st.Err != "":
		b.WriteString(errStyle.Render(m.st.Err))
		b.WriteString("\n")
	case m.st.Loading && len(m.st.Items) == 0:
		b.WriteString(faint.Render("불러오는 중..."))
		b.WriteString("\n")
	case len(m.st.Items) == 0:
		b.WriteString(faint.Render("검색 결과가 없습니다."))
		b.WriteString("\n")
	}
	for i, it := range m.st.Items {
		line := fmt.Sprintf("%-30s %d-%d  %s  %s  %s  리뷰 %d  다운로드 %d",
			it.Title, it.Year, it.Semester, it.ProfessorName, it.Grade, it.CourseDivision, it.ReviewCount, it.DownloadCount)
		if i == m.cursor {
			b.WriteString(cursorStyle.Render("> " + line))
		} else {
			b.WriteString(rowStyle.Render("  " + line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	pages := make([]string, len(m.st.Pages))
	for i, p := range m.st.Pages {
		if p == m.st.Page {
			pages[i] = activeTab.Render(fmt.Sprint(p))
		} else {
			pages[i] = fmt.Sprint(p)
		}
	}
	b.WriteString(fmt.Sprintf("< %s >  %s\n", strings.Join(pages, " "), faint.Render(fmt.Sprintf("총 %d건", m.st.TotalCount))))
	b.WriteString(faint.Render(help))
	b.WriteString("\n")
	return b.String()
}

// Run shows the browser until the user quits or picks a material, and returns the
// picked id (0 when none).
func Run(ctx context.Context, src catalog.Fetcher, opts ...catalog.Option) (int64, error) {
	m := New(ctx, src, time.Now(), opts...)
	if _, err := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen()).Run(); err != nil {
		return 0, fmt.Errorf("browse: %w", err)
	}
	return m.Chosen(), nil
}
