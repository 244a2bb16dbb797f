// Copyright 2025 Joseph Cumines
//
// Snapshot capture over System.Windows.Automation

package uia

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/joeycumines/windows-mcp/internal/powershell"
)

//go:embed snapshot.ps1
var snapshotScript string

// Defaults bounding a single snapshot.
const (
	DefaultMaxDepth    = 48
	DefaultMaxElements = 6000
	// DefaultMaxRetries matches the number of attempts made per capture; the UIA
	// provider of a busy application fails intermittently.
	DefaultMaxRetries = 3
)

// Snapshot is the control view captured at a point in time.
type Snapshot struct {
	CapturedAt time.Time `json:"capturedAt"`
	Root       *Element  `json:"root"`
	// Foreground is the native handle of the foreground window.
	Foreground int64 `json:"foreground"`
}

// TopLevel returns the direct children of the desktop root.
func (s *Snapshot) TopLevel() []*Element {
	if s == nil || s.Root == nil {
		return nil
	}
	return s.Root.Children
}

// Source produces snapshots.
type Source interface {
	Capture(ctx context.Context) (*Snapshot, error)
}

// Snapshotter captures snapshots by running an embedded PowerShell script.
type Snapshotter struct {
	runner      powershell.Runner
	logger      *slog.Logger
	now         func() time.Time
	MaxDepth    int
	MaxElements int
	MaxRetries  int
}

// NewSnapshotter returns a Snapshotter using runner.
func NewSnapshotter(runner powershell.Runner, logger *slog.Logger) *Snapshotter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Snapshotter{
		runner:      runner,
		logger:      logger,
		now:         time.Now,
		MaxDepth:    DefaultMaxDepth,
		MaxElements: DefaultMaxElements,
		MaxRetries:  DefaultMaxRetries,
	}
}

// Capture runs the snapshot script, retrying failed runs.
func (s *Snapshotter) Capture(ctx context.Context) (*Snapshot, error) {
	script := fmt.Sprintf("$MaxDepth = %d\n$MaxElements = %d\n%s", s.MaxDepth, s.MaxElements, snapshotScript)
	attempts := max(s.MaxRetries, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := s.runner.Run(ctx, script)
		if err == nil && res.ExitCode != 0 {
			err = fmt.Errorf("snapshot script exited with status %d: %s", res.ExitCode, truncate(res.Output, 200))
		}
		if err == nil {
			var snap *Snapshot
			snap, err = Decode([]byte(res.Output))
			if err == nil {
				snap.CapturedAt = s.now()
				return snap, nil
			}
		}
		lastErr = err
		if errors.Is(err, powershell.ErrTimeout) {
			break
		}
		s.logger.Debug("uia snapshot failed", "attempt", attempt, "error", err)
	}
	return nil, fmt.Errorf("uia snapshot failed after retries: %w", lastErr)
}

// rawElement is the compact wire form emitted by snapshot.ps1. Elements are
// listed in pre-order with the index of their parent (-1 for the root).
type rawElement struct {
	S   *rawScroll `json:"s"`
	W   *rawWindow `json:"w"`
	N   string     `json:"n"`
	A   string     `json:"a"`
	C   string     `json:"c"`
	T   string     `json:"t"`
	L   string     `json:"l"`
	AK  string     `json:"ak"`
	V   string     `json:"v"`
	DA  string     `json:"da"`
	PN  string     `json:"pn"`
	ID  []int      `json:"id"`
	R   []int      `json:"r"`
	I   int        `json:"i"`
	P   int        `json:"p"`
	H   int64      `json:"h"`
	O   bool       `json:"o"`
	E   bool       `json:"e"`
	K   bool       `json:"k"`
	F   bool       `json:"f"`
	CE  bool       `json:"ce"`
}

type rawScroll struct {
	HS bool    `json:"hs"`
	HP float64 `json:"hp"`
	VS bool    `json:"vs"`
	VP float64 `json:"vp"`
}

type rawWindow struct {
	ST string `json:"st"`
	M  bool   `json:"m"`
}

type rawSnapshot struct {
	Elements   []rawElement `json:"elements"`
	Foreground int64        `json:"foreground"`
}

// Decode parses the script output into a Snapshot.
func Decode(data []byte) (*Snapshot, error) {
	var raw rawSnapshot
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	if len(raw.Elements) == 0 {
		return nil, errors.New("snapshot contains no elements")
	}

	nodes := make([]*Element, len(raw.Elements))
	var root *Element
	for i, r := range raw.Elements {
		if r.I != i {
			return nil, fmt.Errorf("snapshot element %d has index %d", i, r.I)
		}
		e := &Element{
			Name:                 r.N,
			AutomationID:         r.A,
			ClassName:            r.C,
			ControlType:          ControlTypeName(r.T),
			LocalizedControlType: r.L,
			AcceleratorKey:       r.AK,
			Value:                r.V,
			DefaultAction:        r.DA,
			ProcessName:          r.PN,
			RuntimeID:            r.ID,
			NativeWindowHandle:   r.H,
			IsOffscreen:          r.O,
			IsEnabled:            r.E,
			IsKeyboardFocusable:  r.K,
			HasKeyboardFocus:     r.F,
			IsControlElement:     r.CE,
		}
		if len(r.R) == 4 {
			e.BoundingRect = Rect{Left: r.R[0], Top: r.R[1], Right: r.R[2], Bottom: r.R[3]}
		}
		if r.S != nil {
			e.Scroll = &ScrollInfo{
				HorizontallyScrollable:  r.S.HS,
				HorizontalScrollPercent: r.S.HP,
				VerticallyScrollable:    r.S.VS,
				VerticalScrollPercent:   r.S.VP,
			}
		}
		if r.W != nil {
			e.Window = &WindowInfo{IsModal: r.W.M, VisualState: r.W.ST}
		}
		nodes[i] = e

		switch {
		case r.P < 0:
			if root != nil {
				return nil, errors.New("snapshot has more than one root")
			}
			root = e
		case r.P >= i:
			return nil, fmt.Errorf("snapshot element %d references later parent %d", i, r.P)
		default:
			parent := nodes[r.P]
			parent.Children = append(parent.Children, e)
		}
	}
	if root == nil {
		return nil, errors.New("snapshot has no root")
	}
	return &Snapshot{Root: root, Foreground: raw.Foreground}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
