// Copyright 2025 Joseph Cumines

//go:build windows

package desktop

import (
	"fmt"
	"unicode/utf16"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procSendInput           = user32.NewProc("SendInput")
	procSetCursorPos        = user32.NewProc("SetCursorPos")
	procGetCursorPos        = user32.NewProc("GetCursorPos")
	procGetSystemMetrics    = user32.NewProc("GetSystemMetrics")
	procGetForegroundWindow = user32.NewProc("GetForegroundWindow")
	procGetWindowTextW      = user32.NewProc("GetWindowTextW")
	procGetWindowTextLength = user32.NewProc("GetWindowTextLengthW")
	procSetForegroundWindow = user32.NewProc("SetForegroundWindow")
	procShowWindow          = user32.NewProc("ShowWindow")
	procMoveWindow          = user32.NewProc("MoveWindow")
)

const (
	inputMouse    = 0
	inputKeyboard = 1

	mouseLeftDown   = 0x0002
	mouseLeftUp     = 0x0004
	mouseRightDown  = 0x0008
	mouseRightUp    = 0x0010
	mouseMiddleDown = 0x0020
	mouseMiddleUp   = 0x0040
	mouseWheel      = 0x0800
	mouseHWheel     = 0x1000

	keyExtended = 0x0001
	keyUp       = 0x0002
	keyUnicode  = 0x0004

	smCXScreen = 0
	smCYScreen = 1

	swRestore = 9
)

// mouseInput is MOUSEINPUT, the largest member of the INPUT union.
type mouseInput struct {
	dx        int32
	dy        int32
	mouseData uint32
	flags     uint32
	time      uint32
	extraInfo uintptr
}

// keybdInput is KEYBDINPUT.
type keybdInput struct {
	vk        uint16
	scan      uint16
	flags     uint32
	time      uint32
	extraInfo uintptr
}

type rawInput struct {
	typ uint32
	mi  mouseInput
}

func sendInputs(inputs []rawInput) error {
	if len(inputs) == 0 {
		return nil
	}
	n, _, err := procSendInput.Call(
		uintptr(len(inputs)),
		uintptr(unsafe.Pointer(&inputs[0])),
		unsafe.Sizeof(inputs[0]),
	)
	if int(n) != len(inputs) {
		return fmt.Errorf("SendInput: sent %d of %d: %w", n, len(inputs), err)
	}
	return nil
}

func keyboard(k keybdInput) rawInput {
	in := rawInput{typ: inputKeyboard}
	*(*keybdInput)(unsafe.Pointer(&in.mi)) = k
	return in
}

// extendedKeys need KEYEVENTF_EXTENDEDKEY to be distinguished from the numpad.
var extendedKeys = map[uint16]bool{
	0x21: true, 0x22: true, 0x23: true, 0x24: true,
	0x25: true, 0x26: true, 0x27: true, 0x28: true,
	0x2D: true, 0x2E: true, 0x5B: true, 0x5C: true, 0x5D: true,
	0xA3: true, 0xA5: true, 0x6F: true, 0x90: true,
}

type nativeInput struct{}

// NativeInput returns the SendInput based Input.
func NativeInput() Input { return nativeInput{} }

func (nativeInput) MoveTo(x, y int) error {
	if r, _, err := procSetCursorPos.Call(uintptr(x), uintptr(y)); r == 0 {
		return fmt.Errorf("SetCursorPos: %w", err)
	}
	return nil
}

func (nativeInput) CursorPos() (Point, error) {
	var pt struct{ X, Y int32 }
	if r, _, err := procGetCursorPos.Call(uintptr(unsafe.Pointer(&pt))); r == 0 {
		return Point{}, fmt.Errorf("GetCursorPos: %w", err)
	}
	return Point{X: int(pt.X), Y: int(pt.Y)}, nil
}

func (nativeInput) Button(b MouseButton, down bool) error {
	var flags uint32
	switch b {
	case ButtonLeft:
		flags = mouseLeftUp
		if down {
			flags = mouseLeftDown
		}
	case ButtonRight:
		flags = mouseRightUp
		if down {
			flags = mouseRightDown
		}
	case ButtonMiddle:
		flags = mouseMiddleUp
		if down {
			flags = mouseMiddleDown
		}
	default:
		return invalidf("unknown button %q", b)
	}
	return sendInputs([]rawInput{{typ: inputMouse, mi: mouseInput{flags: flags}}})
}

func (nativeInput) Wheel(delta int, horizontal bool) error {
	flags := uint32(mouseWheel)
	if horizontal {
		flags = mouseHWheel
	}
	return sendInputs([]rawInput{{typ: inputMouse, mi: mouseInput{flags: flags, mouseData: uint32(int32(delta))}}})
}

func (nativeInput) Key(vk uint16, down bool) error {
	var flags uint32
	if !down {
		flags |= keyUp
	}
	if extendedKeys[vk] {
		flags |= keyExtended
	}
	return sendInputs([]rawInput{keyboard(keybdInput{vk: vk, flags: flags})})
}

func (nativeInput) TypeRune(r rune) error {
	if r == '\n' {
		return sendInputs([]rawInput{
			keyboard(keybdInput{vk: vkReturn}),
			keyboard(keybdInput{vk: vkReturn, flags: keyUp}),
		})
	}
	units := utf16.Encode([]rune{r})
	inputs := make([]rawInput, 0, 2*len(units))
	for _, u := range units {
		inputs = append(inputs,
			keyboard(keybdInput{scan: u, flags: keyUnicode}),
			keyboard(keybdInput{scan: u, flags: keyUnicode | keyUp}),
		)
	}
	return sendInputs(inputs)
}

type nativeWindows struct{}

// NativeWindows returns the user32 based Windows.
func NativeWindows() Windows { return nativeWindows{} }

func (nativeWindows) Foreground() (int64, error) {
	r, _, _ := procGetForegroundWindow.Call()
	return int64(r), nil
}

func (nativeWindows) Title(handle int64) (string, error) {
	n, _, _ := procGetWindowTextLength.Call(uintptr(handle))
	if n == 0 {
		return "", nil
	}
	buf := make([]uint16, n+1)
	r, _, err := procGetWindowTextW.Call(uintptr(handle), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if r == 0 {
		return "", fmt.Errorf("GetWindowTextW: %w", err)
	}
	return windows.UTF16ToString(buf[:r]), nil
}

func (nativeWindows) SetForeground(handle int64) error {
	if r, _, err := procSetForegroundWindow.Call(uintptr(handle)); r == 0 {
		return fmt.Errorf("SetForegroundWindow: %w", err)
	}
	return nil
}

func (nativeWindows) Restore(handle int64) error {
	// the return value is the previous visibility, not success
	_, _, _ = procShowWindow.Call(uintptr(handle), swRestore)
	return nil
}

func (nativeWindows) MoveWindow(handle int64, x, y, width, height int) error {
	if r, _, err := procMoveWindow.Call(uintptr(handle), uintptr(x), uintptr(y), uintptr(width), uintptr(height), 1); r == 0 {
		return fmt.Errorf("MoveWindow: %w", err)
	}
	return nil
}

func (nativeWindows) ScreenSize() (int, int, error) {
	w, _, _ := procGetSystemMetrics.Call(smCXScreen)
	h, _, _ := procGetSystemMetrics.Call(smCYScreen)
	if w == 0 || h == 0 {
		return 0, 0, fmt.Errorf("GetSystemMetrics: screen size unavailable")
	}
	return int(w), int(h), nil
}
