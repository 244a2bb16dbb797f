// Copyright 2025 Joseph Cumines
//
// Package uia models a snapshot of the Windows UI Automation control view.
//
// A snapshot is captured on the Windows host (see Snapshotter) and decoded into
// an Element tree that can be inspected on any platform.

package uia

import (
	"fmt"
	"strings"
)

// Rect is a screen rectangle in physical pixels (left/top inclusive, right/bottom exclusive).
type Rect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// Width of the rectangle, never negative.
func (r Rect) Width() int { return max(r.Right-r.Left, 0) }

// Height of the rectangle, never negative.
func (r Rect) Height() int { return max(r.Bottom-r.Top, 0) }

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool { return r.Width() == 0 || r.Height() == 0 }

// Area in square pixels.
func (r Rect) Area() int { return r.Width() * r.Height() }

// Center returns the integer midpoint.
func (r Rect) Center() (x, y int) {
	return (r.Left + r.Right) / 2, (r.Top + r.Bottom) / 2
}

// Intersect returns the overlap of r and o, or the zero Rect when they do not overlap.
func (r Rect) Intersect(o Rect) Rect {
	out := Rect{
		Left:   max(r.Left, o.Left),
		Top:    max(r.Top, o.Top),
		Right:  min(r.Right, o.Right),
		Bottom: min(r.Bottom, o.Bottom),
	}
	if out.Right <= out.Left || out.Bottom <= out.Top {
		return Rect{}
	}
	return out
}

// Contains reports whether the point lies within r (edges inclusive).
func (r Rect) Contains(x, y int) bool {
	return r.Left <= x && x <= r.Right && r.Top <= y && y <= r.Bottom
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", r.Left, r.Top, r.Right, r.Bottom)
}

// ScrollInfo mirrors the ScrollPattern properties. Percentages are -1 when the
// axis cannot scroll.
type ScrollInfo struct {
	HorizontallyScrollable  bool    `json:"horizontallyScrollable"`
	HorizontalScrollPercent float64 `json:"horizontalScrollPercent"`
	VerticallyScrollable    bool    `json:"verticallyScrollable"`
	VerticalScrollPercent   float64 `json:"verticalScrollPercent"`
}

// WindowVisualState values reported by the WindowPattern.
const (
	WindowNormal    = "Normal"
	WindowMaximized = "Maximized"
	WindowMinimized = "Minimized"
)

// WindowInfo mirrors the WindowPattern properties.
type WindowInfo struct {
	IsModal     bool   `json:"isModal"`
	VisualState string `json:"visualState"`
}

// Element is one node of the control view.
type Element struct {
	Scroll               *ScrollInfo `json:"scroll,omitempty"`
	Window               *WindowInfo `json:"window,omitempty"`
	Name                 string      `json:"name"`
	AutomationID         string      `json:"automationId"`
	ClassName            string      `json:"className"`
	ControlType          string      `json:"controlType"`
	LocalizedControlType string      `json:"localizedControlType"`
	AcceleratorKey       string      `json:"acceleratorKey"`
	Value                string      `json:"value"`
	DefaultAction        string      `json:"defaultAction"`
	ProcessName          string      `json:"processName,omitempty"`
	RuntimeID            []int       `json:"runtimeId,omitempty"`
	Children             []*Element  `json:"children,omitempty"`
	BoundingRect         Rect        `json:"boundingRect"`
	NativeWindowHandle   int64       `json:"nativeWindowHandle"`
	IsOffscreen          bool        `json:"isOffscreen"`
	IsEnabled            bool        `json:"isEnabled"`
	IsKeyboardFocusable  bool        `json:"isKeyboardFocusable"`
	HasKeyboardFocus     bool        `json:"hasKeyboardFocus"`
	IsControlElement     bool        `json:"isControlElement"`
}

// FirstChild returns the first child or nil.
func (e *Element) FirstChild() *Element {
	if e == nil || len(e.Children) == 0 {
		return nil
	}
	return e.Children[0]
}

// IsWindow reports whether the element is a WindowControl.
func (e *Element) IsWindow() bool { return e != nil && e.ControlType == "WindowControl" }

// IsModal reports whether the element is a window with a modal WindowPattern.
func (e *Element) IsModal() bool { return e != nil && e.Window != nil && e.Window.IsModal }

// RuntimeKey returns a comparable key for the runtime id.
func (e *Element) RuntimeKey() string {
	if e == nil || len(e.RuntimeID) == 0 {
		return ""
	}
	parts := make([]string, len(e.RuntimeID))
	for i, v := range e.RuntimeID {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ".")
}

// Walk visits e and its descendants depth first until fn returns false.
func (e *Element) Walk(fn func(*Element) bool) bool {
	if e == nil {
		return true
	}
	if !fn(e) {
		return false
	}
	for _, c := range e.Children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// ControlTypeName converts a UIA programmatic name ("ControlType.Button") to the
// conventional control name ("ButtonControl").
func ControlTypeName(programmatic string) string {
	name := strings.TrimPrefix(programmatic, "ControlType.")
	if name == "" {
		return ""
	}
	if strings.HasSuffix(name, "Control") {
		return name
	}
	return name + "Control"
}
