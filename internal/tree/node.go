// Copyright 2025 Joseph Cumines

package tree

import (
	"fmt"

	"github.com/joeycumines/windows-mcp/internal/uia"
)

// Center is a click target in screen coordinates.
type Center struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c Center) String() string { return fmt.Sprintf("(%d,%d)", c.X, c.Y) }

func centerOf(r uia.Rect) Center {
	x, y := r.Center()
	return Center{X: x, Y: y}
}

// ElementNode is an interactive element.
type ElementNode struct {
	Name        string   `json:"name"`
	ControlType string   `json:"controlType"`
	Value       string   `json:"value"`
	Shortcut    string   `json:"shortcut"`
	AppName     string   `json:"appName"`
	RuntimeID   string   `json:"runtimeId,omitempty"`
	Box         uia.Rect `json:"box"`
	Center      Center   `json:"center"`
	IsFocused   bool     `json:"isFocused"`
}

// ScrollNode is a scrollable container.
type ScrollNode struct {
	Name                    string   `json:"name"`
	AppName                 string   `json:"appName"`
	ControlType             string   `json:"controlType"`
	Box                     uia.Rect `json:"box"`
	Center                  Center   `json:"center"`
	HorizontalScrollPercent float64  `json:"horizontalScrollPercent"`
	VerticalScrollPercent   float64  `json:"verticalScrollPercent"`
	HorizontalScrollable    bool     `json:"horizontalScrollable"`
	VerticalScrollable      bool     `json:"verticalScrollable"`
	IsFocused               bool     `json:"isFocused"`
}

// TextNode is informative text found inside a browser page.
type TextNode struct {
	Text string `json:"text"`
}

// DOMInfo describes the scroll position of the browser document.
type DOMInfo struct {
	HorizontalScrollPercent float64 `json:"horizontalScrollPercent"`
	VerticalScrollPercent   float64 `json:"verticalScrollPercent"`
	HorizontalScrollable    bool    `json:"horizontalScrollable"`
	VerticalScrollable      bool    `json:"verticalScrollable"`
}

func domInfoFrom(s *uia.ScrollInfo) *DOMInfo {
	info := &DOMInfo{}
	if s == nil {
		return info
	}
	info.HorizontalScrollable = s.HorizontallyScrollable
	info.VerticalScrollable = s.VerticallyScrollable
	if s.HorizontallyScrollable {
		info.HorizontalScrollPercent = s.HorizontalScrollPercent
	}
	if s.VerticallyScrollable {
		info.VerticalScrollPercent = s.VerticalScrollPercent
	}
	return info
}
