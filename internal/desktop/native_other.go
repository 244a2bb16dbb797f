// Copyright 2025 Joseph Cumines

//go:build !windows

package desktop

type nativeInput struct{}

// NativeInput returns an Input that fails with ErrUnsupportedPlatform.
func NativeInput() Input { return nativeInput{} }

func (nativeInput) MoveTo(int, int) error          { return ErrUnsupportedPlatform }
func (nativeInput) CursorPos() (Point, error)      { return Point{}, ErrUnsupportedPlatform }
func (nativeInput) Button(MouseButton, bool) error { return ErrUnsupportedPlatform }
func (nativeInput) Wheel(int, bool) error          { return ErrUnsupportedPlatform }
func (nativeInput) Key(uint16, bool) error         { return ErrUnsupportedPlatform }
func (nativeInput) TypeRune(rune) error            { return ErrUnsupportedPlatform }

type nativeWindows struct{}

// NativeWindows returns a Windows that fails with ErrUnsupportedPlatform.
func NativeWindows() Windows { return nativeWindows{} }

func (nativeWindows) Foreground() (int64, error)                 { return 0, ErrUnsupportedPlatform }
func (nativeWindows) Title(int64) (string, error)                { return "", ErrUnsupportedPlatform }
func (nativeWindows) SetForeground(int64) error                  { return ErrUnsupportedPlatform }
func (nativeWindows) Restore(int64) error                        { return ErrUnsupportedPlatform }
func (nativeWindows) MoveWindow(int64, int, int, int, int) error { return ErrUnsupportedPlatform }
func (nativeWindows) ScreenSize() (int, int, error)              { return 0, 0, ErrUnsupportedPlatform }
