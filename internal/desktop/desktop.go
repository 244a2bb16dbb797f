// Copyright 2025 Joseph Cumines
//
// Package desktop translates tool calls into input simulation, window
// management and UI Automation calls against the live Windows desktop.

package desktop

import (
	"context"
	"errors"
	"fmt"

	"github.com/joeycumines/windows-mcp/internal/tree"
)

var (
	// ErrInvalidArgument wraps every validation failure. No OS action is
	// performed when it is returned.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnsupportedPlatform is returned by native primitives outside Windows.
	ErrUnsupportedPlatform = errors.New("desktop: unsupported platform")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// Point is a screen coordinate in physical pixels.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Point) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

// MouseButton names a mouse button.
type MouseButton string

const (
	ButtonLeft   MouseButton = "left"
	ButtonRight  MouseButton = "right"
	ButtonMiddle MouseButton = "middle"
)

// Valid reports whether b is a known button.
func (b MouseButton) Valid() bool {
	switch b {
	case ButtonLeft, ButtonRight, ButtonMiddle:
		return true
	}
	return false
}

// Scroll axes and directions.
const (
	ScrollVertical   = "vertical"
	ScrollHorizontal = "horizontal"

	DirectionUp    = "up"
	DirectionDown  = "down"
	DirectionLeft  = "left"
	DirectionRight = "right"
)

// ClickRequest clicks at Loc.
type ClickRequest struct {
	Button MouseButton `json:"button"`
	Loc    Point       `json:"loc"`
	Clicks int         `json:"clicks"`
}

// TypeRequest types Text into the field at Loc.
type TypeRequest struct {
	Text       string `json:"text"`
	Loc        Point  `json:"loc"`
	Clear      bool   `json:"clear"`
	PressEnter bool   `json:"pressEnter"`
}

// ScrollRequest scrolls at Loc, or at the cursor when Loc is nil.
type ScrollRequest struct {
	Loc        *Point `json:"loc,omitempty"`
	Type       string `json:"type"`
	Direction  string `json:"direction"`
	WheelTimes int    `json:"wheelTimes"`
}

// ResizeRequest moves and resizes the named app, or the active app when Name
// is empty.
type ResizeRequest struct {
	Name string `json:"name,omitempty"`
	Loc  Point  `json:"loc"`
	Size Point  `json:"size"`
}

// CommandResult is the outcome of a PowerShell command.
type CommandResult struct {
	Output   string `json:"output"`
	ExitCode int    `json:"exitCode"`
}

// StateRequest controls what State captures.
type StateRequest struct {
	UseVision bool `json:"useVision"`
	UseDOM    bool `json:"useDom"`
}

// State is the desktop state at a point in time.
type State struct {
	Tree *tree.State `json:"tree"`
	// Screenshot holds an annotated PNG when vision was requested.
	Screenshot []byte `json:"screenshot,omitempty"`
}

// SystemInfo describes the host.
type SystemInfo struct {
	WindowsVersion string `json:"windowsVersion"`
	Language       string `json:"language"`
	Encoding       string `json:"encoding"`
	ScreenWidth    int    `json:"screenWidth"`
	ScreenHeight   int    `json:"screenHeight"`
}

// Desktop is the set of operations backing the MCP tools.
//
// Operations that return a message report outcomes the agent can act on
// (such as an unknown application) as text rather than as errors.
type Desktop interface {
	Click(ctx context.Context, req ClickRequest) error
	Type(ctx context.Context, req TypeRequest) error
	Scroll(ctx context.Context, req ScrollRequest) (string, error)
	Drag(ctx context.Context, to Point) error
	Move(ctx context.Context, to Point) error
	Shortcut(ctx context.Context, shortcut string) error
	LaunchApp(ctx context.Context, name string) (string, error)
	ResizeApp(ctx context.Context, req ResizeRequest) (string, error)
	SwitchApp(ctx context.Context, name string) (string, error)
	ExecuteCommand(ctx context.Context, command string) (*CommandResult, error)
	State(ctx context.Context, req StateRequest) (*State, error)
	SystemInfo(ctx context.Context) (*SystemInfo, error)
}

// Input synthesizes mouse and keyboard events.
type Input interface {
	MoveTo(x, y int) error
	CursorPos() (Point, error)
	Button(b MouseButton, down bool) error
	// Wheel sends delta wheel units (120 per notch).
	Wheel(delta int, horizontal bool) error
	Key(vk uint16, down bool) error
	TypeRune(r rune) error
}

// Windows manages top-level windows by native handle.
type Windows interface {
	Foreground() (int64, error)
	Title(handle int64) (string, error)
	SetForeground(handle int64) error
	Restore(handle int64) error
	MoveWindow(handle int64, x, y, width, height int) error
	ScreenSize() (width, height int, err error)
}

// ValidateScroll returns the message reported for an axis and direction that
// do not belong together, or "" when they are compatible.
func ValidateScroll(axis, direction string) (string, error) {
	switch axis {
	case ScrollVertical:
		if direction == DirectionUp || direction == DirectionDown {
			return "", nil
		}
	case ScrollHorizontal:
		if direction == DirectionLeft || direction == DirectionRight {
			return "", nil
		}
	default:
		return "", invalidf("unknown scroll type %q", axis)
	}
	return "Invalid direction.", nil
}
