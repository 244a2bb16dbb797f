// Copyright 2025 Joseph Cumines

package tree

// stringSet is a small membership helper.
type stringSet map[string]struct{}

func newSet(values ...string) stringSet {
	s := make(stringSet, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

func (s stringSet) has(v string) bool {
	_, ok := s[v]
	return ok
}

var interactiveControlTypes = newSet(
	"ButtonControl",
	"ListItemControl",
	"MenuItemControl",
	"EditControl",
	"CheckBoxControl",
	"RadioButtonControl",
	"ComboBoxControl",
	"HyperlinkControl",
	"SplitButtonControl",
	"TabItemControl",
	"TreeItemControl",
	"DataItemControl",
	"HeaderItemControl",
	"SpinnerControl",
	"SliderControl",
)

var documentControlTypes = newSet("DocumentControl")

var informativeControlTypes = newSet(
	"TextControl",
	"ImageControl",
	"StatusBarControl",
)

// focusableControlTypes are treated as keyboard focusable regardless of the
// provider's IsKeyboardFocusable.
var focusableControlTypes = newSet(
	"EditControl",
	"ButtonControl",
	"CheckBoxControl",
	"RadioButtonControl",
	"TabItemControl",
)

// Offscreen elements of these types are still traversed.
var offscreenTraversedTypes = newSet("GroupControl", "EditControl", "TitleBarControl")

// Offscreen elements of these classes are still traversed.
var offscreenTraversedClasses = newSet("Popup", "Windows.UI.Core.CoreComponentInputSource")

// defaultActions are lowercase LegacyIAccessible default actions that make a
// browser group interactive.
var defaultActions = newSet("click", "press", "jump", "check", "uncheck", "double click", "toggle", "expand")

// browserProcesses are lowercase process names whose windows host a web DOM.
var browserProcesses = newSet("chrome", "msedge", "firefox", "brave", "opera", "vivaldi", "iexplore")

// excludedAppClasses are shell windows that are never listed as apps.
var excludedAppClasses = newSet("Progman", "Shell_TrayWnd", "Shell_SecondaryTrayWnd")

// rootWebAreaID is the automation id of a browser's document root.
const rootWebAreaID = "RootWebArea"

// domCoverRatio is the share of the DOM width a window must exceed to be
// treated as covering the page.
const domCoverRatio = 0.8
