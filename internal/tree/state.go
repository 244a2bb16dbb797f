// Copyright 2025 Joseph Cumines

package tree

import (
	"fmt"
	"strings"
)

const (
	interactiveHeader = "# id|window|control_type|name|value|shortcut|coords|focus"
	scrollableHeader  = "# id|window|control_type|name|coords|h_scroll|h_percent|v_scroll|v_percent|focus"
)

// String renders an app as a single line.
func (a App) String() string {
	return fmt.Sprintf("Name: %s | Status: %s | Size: (%d,%d) | Handle: %d",
		a.Name, a.Status, a.Box.Width(), a.Box.Height(), a.Handle)
}

// AppsString renders apps one per line, or "" when there are none.
func AppsString(apps []App) string {
	lines := make([]string, len(apps))
	for i, a := range apps {
		lines[i] = a.String()
	}
	return strings.Join(lines, "\n")
}

// InteractiveString renders the interactive nodes with ids from zero, or ""
// when there are none.
func (s *State) InteractiveString() string {
	if len(s.Interactive) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(interactiveHeader)
	for i, n := range s.Interactive {
		fmt.Fprintf(&b, "\n%d|%s|%s|%s|%s|%s|%s|%t",
			i, n.AppName, n.ControlType, n.Name, n.Value, n.Shortcut, n.Center, n.IsFocused)
	}
	return b.String()
}

// ScrollableString renders the scrollable nodes with ids continuing after the
// interactive ones, or "" when there are none.
func (s *State) ScrollableString() string {
	if len(s.Scrollable) == 0 {
		return ""
	}
	base := len(s.Interactive)
	var b strings.Builder
	b.WriteString(scrollableHeader)
	for i, n := range s.Scrollable {
		fmt.Fprintf(&b, "\n%d|%s|%s|%s|%s|%t|%s|%t|%s|%t",
			base+i, n.AppName, n.ControlType, n.Name, n.Center,
			n.HorizontalScrollable, percent(n.HorizontalScrollPercent),
			n.VerticalScrollable, percent(n.VerticalScrollPercent),
			n.IsFocused)
	}
	return b.String()
}

// InformativeString renders page text one entry per line.
func (s *State) InformativeString() string {
	lines := make([]string, len(s.Informative))
	for i, n := range s.Informative {
		lines[i] = n.Text
	}
	return strings.Join(lines, "\n")
}

func percent(v float64) string {
	if v < 0 {
		return "0.0"
	}
	return fmt.Sprintf("%.1f", v)
}
