// Copyright 2025 Joseph Cumines
//
// Package tree classifies a UI Automation snapshot into the elements an agent
// can act on: interactive controls, scrollable containers and page text.

package tree

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/joeycumines/windows-mcp/internal/uia"
)

// ErrNoSnapshot is returned when a snapshot has no root.
var ErrNoSnapshot = errors.New("tree: empty snapshot")

// App is a top-level application window.
type App struct {
	Name        string   `json:"name"`
	ProcessName string   `json:"processName,omitempty"`
	Status      string   `json:"status"`
	Box         uia.Rect `json:"box"`
	Handle      int64    `json:"handle"`
	IsBrowser   bool     `json:"isBrowser"`
}

// State is the classified desktop tree.
type State struct {
	ActiveApp   *App          `json:"activeApp,omitempty"`
	DOM         *DOMInfo      `json:"dom,omitempty"`
	Apps        []App         `json:"apps"`
	Interactive []ElementNode `json:"interactive"`
	Scrollable  []ScrollNode  `json:"scrollable"`
	Informative []TextNode    `json:"informative"`
}

// Builder turns snapshots into States.
type Builder struct {
	logger *slog.Logger
	// Screen bounds every element box. Zero disables screen clamping.
	Screen uia.Rect
	// Parallelism bounds concurrent window traversals.
	Parallelism int
}

// NewBuilder returns a Builder clamping to screen.
func NewBuilder(screen uia.Rect, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{logger: logger, Screen: screen, Parallelism: runtime.GOMAXPROCS(0)}
}

// Apps lists the application windows of snap, along with the active one.
func Apps(snap *uia.Snapshot) (apps []App, active *App) {
	for _, e := range snap.TopLevel() {
		app, ok := appOf(e)
		if !ok {
			continue
		}
		apps = append(apps, app)
	}
	for i := range apps {
		if apps[i].Handle != 0 && apps[i].Handle == snap.Foreground {
			a := apps[i]
			active = &a
			break
		}
	}
	return apps, active
}

func appOf(e *uia.Element) (App, bool) {
	if e.Window == nil || excludedAppClasses.has(e.ClassName) {
		return App{}, false
	}
	name := windowName(e)
	if name == "" {
		return App{}, false
	}
	status := e.Window.VisualState
	if status == "" {
		status = uia.WindowNormal
	}
	if e.IsOffscreen && status != uia.WindowMinimized {
		return App{}, false
	}
	return App{
		Name:        name,
		ProcessName: e.ProcessName,
		Status:      status,
		Box:         e.BoundingRect,
		Handle:      e.NativeWindowHandle,
		IsBrowser:   isBrowser(e),
	}, true
}

// Build classifies snap. With useDOM only nodes inside a browser document are
// reported.
func (b *Builder) Build(ctx context.Context, snap *uia.Snapshot, useDOM bool) (*State, error) {
	if snap == nil || snap.Root == nil {
		return nil, ErrNoSnapshot
	}
	apps, active := Apps(snap)
	state := &State{
		ActiveApp:   active,
		Apps:        apps,
		Interactive: []ElementNode{},
		Scrollable:  []ScrollNode{},
		Informative: []TextNode{},
	}

	others := make(map[int64]struct{})
	for _, a := range apps {
		if active == nil || a.Handle != active.Handle {
			others[a.Handle] = struct{}{}
		}
	}
	var windows []*uia.Element
	for _, e := range snap.TopLevel() {
		if _, ok := others[e.NativeWindowHandle]; ok && e.NativeWindowHandle != 0 {
			continue
		}
		if active != nil && e.ClassName == "Progman" {
			continue
		}
		windows = append(windows, e)
	}

	results := make([]*walker, len(windows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(b.Parallelism, 1))
	for i, w := range windows {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			wk := &walker{
				screen:    b.Screen,
				window:    w.BoundingRect,
				appName:   windowName(w),
				browser:   isBrowser(w),
				dom:       []ElementNode{},
				native:    []ElementNode{},
				scroll:    []ScrollNode{},
				informant: []TextNode{},
			}
			wk.visit(w, false)
			results[i] = wk
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, wk := range results {
		if useDOM {
			if !wk.browser {
				continue
			}
			state.Interactive = append(state.Interactive, wk.dom...)
		} else {
			state.Interactive = append(state.Interactive, wk.native...)
			state.Interactive = append(state.Interactive, wk.dom...)
		}
		state.Scrollable = append(state.Scrollable, wk.scroll...)
		state.Informative = append(state.Informative, wk.informant...)
		if state.DOM == nil && wk.domInfo != nil {
			state.DOM = wk.domInfo
		}
	}
	b.logger.Debug("tree built",
		slog.Int("windows", len(windows)),
		slog.Int("interactive", len(state.Interactive)),
		slog.Int("scrollable", len(state.Scrollable)),
		slog.Bool("dom", useDOM))
	return state, nil
}

// walker collects nodes for one top-level window.
type walker struct {
	domInfo   *DOMInfo
	appName   string
	dom       []ElementNode
	native    []ElementNode
	scroll    []ScrollNode
	informant []TextNode
	screen    uia.Rect
	window    uia.Rect
	domBox    uia.Rect
	browser   bool
}

// clamp bounds r to limit and to the screen.
func (w *walker) clamp(limit, r uia.Rect) uia.Rect {
	out := limit.Intersect(r)
	if !w.screen.Empty() {
		out = out.Intersect(w.screen)
	}
	return out
}

func (w *walker) node(e *uia.Element, box uia.Rect) ElementNode {
	return ElementNode{
		Name:        strings.TrimSpace(e.Name),
		ControlType: titleCase(e.LocalizedControlType),
		Value:       strings.TrimSpace(e.Value),
		Shortcut:    e.AcceleratorKey,
		AppName:     w.appName,
		RuntimeID:   e.RuntimeKey(),
		Box:         box,
		Center:      centerOf(box),
		IsFocused:   e.HasKeyboardFocus,
	}
}

func (w *walker) visit(e *uia.Element, inDOM bool) {
	if skipOffscreen(e) {
		return
	}
	if isScrollable(e) {
		box := w.clamp(w.window, e.BoundingRect)
		name := strings.TrimSpace(e.Name)
		if name == "" {
			name = e.AutomationID
		}
		if name == "" {
			name = titleCase(e.LocalizedControlType)
		}
		if name == "" {
			name = "''"
		}
		info := domInfoFrom(e.Scroll)
		w.scroll = append(w.scroll, ScrollNode{
			Name:                    name,
			AppName:                 w.appName,
			ControlType:             titleCase(e.LocalizedControlType),
			Box:                     box,
			Center:                  centerOf(box),
			HorizontalScrollable:    info.HorizontalScrollable,
			HorizontalScrollPercent: info.HorizontalScrollPercent,
			VerticalScrollable:      info.VerticalScrollable,
			VerticalScrollPercent:   info.VerticalScrollPercent,
			IsFocused:               e.HasKeyboardFocus,
		})
	}
	if isInteractive(e, w.browser) {
		if w.browser && inDOM {
			w.dom = append(w.dom, w.node(e, w.clamp(w.domBox, e.BoundingRect)))
			w.correctDOM(e)
		} else {
			w.native = append(w.native, w.node(e, w.clamp(w.window, e.BoundingRect)))
		}
	} else if isInformative(e) {
		if text := strings.TrimSpace(e.Name); text != "" {
			w.informant = append(w.informant, TextNode{Text: text})
		}
	}

	n := len(e.Children)
	for i := range n {
		// native UIs read right to left, the DOM in document order
		child := e.Children[n-1-i]
		if inDOM {
			child = e.Children[i]
		}
		switch {
		case w.browser && child.AutomationID == rootWebAreaID:
			w.domBox = child.BoundingRect
			w.domInfo = domInfoFrom(child.Scroll)
			w.visit(child, true)
		case child.IsWindow():
			if !child.IsOffscreen {
				if inDOM {
					if float64(child.BoundingRect.Width()) > domCoverRatio*float64(w.domBox.Width()) {
						w.dom = w.dom[:0]
					}
				} else if child.IsModal() {
					w.native = w.native[:0]
				}
			}
			w.visit(child, inDOM)
		default:
			w.visit(child, inDOM)
		}
	}
}

// correctDOM rewrites the node just appended for e when the DOM structure
// wraps the real target.
func (w *walker) correctDOM(e *uia.Element) {
	pop := func() { w.dom = w.dom[:len(w.dom)-1] }
	switch {
	case wraps(e, "list item", "link"), wraps(e, "item", "link"):
		pop()
	case e.ControlType == "GroupControl":
		pop()
		if !isKeyboardFocusable(e) {
			return
		}
		child := e
		for child.FirstChild() != nil {
			if interactiveControlTypes.has(child.ControlType) {
				return
			}
			child = child.FirstChild()
		}
		if child.ControlType != "TextControl" {
			return
		}
		box := w.clamp(w.domBox, e.BoundingRect)
		w.dom = append(w.dom, ElementNode{
			Name:        strings.TrimSpace(child.Name),
			ControlType: e.LocalizedControlType,
			Value:       strings.TrimSpace(e.Value),
			Shortcut:    e.AcceleratorKey,
			AppName:     w.appName,
			RuntimeID:   e.RuntimeKey(),
			Box:         box,
			Center:      centerOf(box),
			IsFocused:   e.HasKeyboardFocus,
		})
	case wraps(e, "link", "heading"):
		pop()
		heading := e.FirstChild()
		box := w.clamp(w.domBox, heading.BoundingRect)
		w.dom = append(w.dom, ElementNode{
			Name:        strings.TrimSpace(heading.Name),
			ControlType: "Link",
			Value:       strings.TrimSpace(heading.Name),
			Shortcut:    heading.AcceleratorKey,
			AppName:     w.appName,
			RuntimeID:   heading.RuntimeKey(),
			Box:         box,
			Center:      centerOf(box),
			IsFocused:   heading.HasKeyboardFocus,
		})
	}
}
