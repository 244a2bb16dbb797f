// Copyright 2025 Joseph Cumines

package tree

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/joeycumines/windows-mcp/internal/uia"
)

func isVisible(e *uia.Element) bool {
	if e.BoundingRect.Empty() || !e.IsControlElement {
		return false
	}
	return !e.IsOffscreen || e.ControlType == "EditControl"
}

func hasDefaultAction(e *uia.Element) bool {
	return defaultActions.has(strings.ToLower(strings.TrimSpace(e.DefaultAction)))
}

func isKeyboardFocusable(e *uia.Element) bool {
	return focusableControlTypes.has(e.ControlType) || e.IsKeyboardFocusable
}

func isDecorativeImage(e *uia.Element) bool {
	return e.ControlType == "ImageControl" &&
		(strings.EqualFold(e.LocalizedControlType, "graphic") || !e.IsKeyboardFocusable)
}

func isInformative(e *uia.Element) bool {
	return informativeControlTypes.has(e.ControlType) && isVisible(e) && e.IsEnabled && !isDecorativeImage(e)
}

func isScrollable(e *uia.Element) bool {
	if interactiveControlTypes.has(e.ControlType) || informativeControlTypes.has(e.ControlType) || e.IsOffscreen {
		return false
	}
	return e.Scroll != nil && e.Scroll.VerticallyScrollable
}

func isInteractive(e *uia.Element, browser bool) bool {
	switch {
	case browser && (e.ControlType == "DataItemControl" || e.ControlType == "ListItemControl") && !isKeyboardFocusable(e):
		return false
	case !browser && e.ControlType == "ImageControl" && isKeyboardFocusable(e):
		return true
	case interactiveControlTypes.has(e.ControlType) || documentControlTypes.has(e.ControlType):
		return isVisible(e) && e.IsEnabled && (!isDecorativeImage(e) || isKeyboardFocusable(e))
	case browser && e.ControlType == "GroupControl":
		return isVisible(e) && e.IsEnabled && (hasDefaultAction(e) || isKeyboardFocusable(e))
	}
	return false
}

// wraps reports whether e has the localized type parent and its first child
// has the localized type child.
func wraps(e *uia.Element, parent, child string) bool {
	if !strings.EqualFold(e.LocalizedControlType, parent) {
		return false
	}
	first := e.FirstChild()
	return first != nil && strings.EqualFold(first.LocalizedControlType, child)
}

func skipOffscreen(e *uia.Element) bool {
	return e.IsOffscreen &&
		!offscreenTraversedTypes.has(e.ControlType) &&
		!offscreenTraversedClasses.has(e.ClassName)
}

// windowName returns the display name of a top-level element.
func windowName(e *uia.Element) string {
	switch e.ClassName {
	case "Progman":
		return "Desktop"
	case "Shell_TrayWnd", "Shell_SecondaryTrayWnd":
		return "Taskbar"
	case "Microsoft.UI.Content.PopupWindowSiteBridge":
		return "Context Menu"
	}
	return strings.TrimSpace(e.Name)
}

func isBrowser(e *uia.Element) bool {
	name := strings.TrimSuffix(strings.ToLower(e.ProcessName), ".exe")
	return browserProcesses.has(name) || e.ClassName == "MozillaWindowClass"
}

// titleCase upper-cases the first letter of every word.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
