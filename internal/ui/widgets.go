// Package ui renders the shared terminal widgets and implements the dialogs and
// file saving the views depend on.
package ui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/and161185/jokbo/internal/options"
)

// Theme is the palette every widget draws with.
type Theme struct {
	Primary  lipgloss.Style
	Muted    lipgloss.Style
	Label    lipgloss.Style
	Title    lipgloss.Style
	Error    lipgloss.Style
	Fill     lipgloss.Style
	Outline  lipgloss.Style
	Field    lipgloss.Style
	Focused  lipgloss.Style
	Selected lipgloss.Style
}

// DefaultTheme mirrors the web client's primary-600 accent.
func DefaultTheme() Theme {
	primary := lipgloss.Color("63")
	gray := lipgloss.Color("245")
	box := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	return Theme{
		Primary:  lipgloss.NewStyle().Foreground(primary),
		Muted:    lipgloss.NewStyle().Foreground(gray),
		Label:    lipgloss.NewStyle().Foreground(primary).Width(labelWidth),
		Title:    lipgloss.NewStyle().Bold(true).Foreground(primary),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Fill:     lipgloss.NewStyle().Padding(0, 2).Bold(true).Foreground(lipgloss.Color("231")).Background(primary),
		Outline:  box.BorderForeground(primary).Foreground(primary),
		Field:    box.BorderForeground(gray),
		Focused:  box.BorderForeground(primary),
		Selected: lipgloss.NewStyle().Bold(true).Foreground(primary),
	}
}

const labelWidth = 14

var th = DefaultTheme()

// Button renders a filled or outlined button.
func Button(text string, outline bool) string {
	if outline {
		return th.Outline.Render(text)
	}
	return th.Fill.Render(text)
}

// Input renders a text field; an empty value shows the placeholder.
func Input(value, placeholder string, focused bool) string {
	style := th.Field
	if focused {
		style = th.Focused
	}
	if value == "" {
		return style.Render(th.Muted.Render(placeholder))
	}
	return style.Render(value)
}

// LabelField lays a fixed-width label out left of body.
func LabelField(label, body string) string {
	return lipgloss.JoinHorizontal(lipgloss.Center, th.Label.Render(label), body)
}

// StarRating draws five stars with round(rating) of them filled.
func StarRating(rating float64) string {
	n := int(math.Round(rating))
	n = max(0, min(5, n))
	return th.Primary.Render(strings.Repeat("★", n)) + th.Muted.Render(strings.Repeat("☆", 5-n))
}

// Dropdown is a single-choice list. Selected is -1 until something is chosen.
type Dropdown struct {
	Options     []options.Option
	Selected    int
	Placeholder string
	Disabled    bool

	open   bool
	cursor int
}

// NewDropdown selects the option whose value is value, if any.
func NewDropdown(opts []options.Option, value, placeholder string) *Dropdown {
	d := &Dropdown{Options: opts, Selected: -1, Placeholder: placeholder}
	for i, o := range opts {
		if o.Value == value {
			d.Selected, d.cursor = i, i
		}
	}
	return d
}

// Toggle opens or closes the list. A disabled dropdown stays closed.
func (d *Dropdown) Toggle() {
	if d.Disabled {
		return
	}
	d.open = !d.open
}

// Open reports whether the list is shown.
func (d *Dropdown) Open() bool { return d.open }

// Move shifts the cursor by delta, wrapping around.
func (d *Dropdown) Move(delta int) {
	if len(d.Options) == 0 {
		return
	}
	d.cursor = ((d.cursor+delta)%len(d.Options) + len(d.Options)) % len(d.Options)
}

// Choose selects the option under the cursor and closes the list.
func (d *Dropdown) Choose() (options.Option, bool) {
	if d.Disabled || len(d.Options) == 0 {
		return options.Option{}, false
	}
	d.Selected = d.cursor
	d.open = false
	return d.Options[d.Selected], true
}

// Value is the selected value, "" when none.
func (d *Dropdown) Value() string {
	if d.Selected < 0 || d.Selected >= len(d.Options) {
		return ""
	}
	return d.Options[d.Selected].Value
}

// View renders the closed field and, when open, the option list under it.
func (d *Dropdown) View() string {
	head := d.Value()
	if head == "" {
		head = th.Muted.Render(d.Placeholder)
	}
	arrow := "▾"
	if d.open {
		arrow = "▴"
	}
	style := th.Field
	if d.open {
		style = th.Focused
	}
	if d.Disabled {
		return style.Render(head)
	}
	field := style.Render(head + " " + arrow)
	if !d.open {
		return field
	}
	rows := make([]string, len(d.Options))
	for i, o := range d.Options {
		if i == d.cursor {
			rows[i] = th.Selected.Render("> " + o.Value)
		} else {
			rows[i] = "  " + o.Value
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, field, strings.Join(rows, "\n"))
}
