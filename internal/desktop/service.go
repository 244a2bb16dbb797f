// Copyright 2025 Joseph Cumines

package desktop

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/joeycumines/windows-mcp/internal/powershell"
	"github.com/joeycumines/windows-mcp/internal/screen"
	"github.com/joeycumines/windows-mcp/internal/tree"
	"github.com/joeycumines/windows-mcp/internal/uia"
)

const (
	wheelDelta = 120

	defaultMoveSteps   = 20
	defaultStepDelay   = 10 * time.Millisecond
	defaultClickDelay  = 50 * time.Millisecond
	defaultActionPause = 100 * time.Millisecond
)

// Options configures a Service. Input, Windows and Shell are required.
type Options struct {
	Input    Input
	Windows  Windows
	Shell    powershell.Runner
	Source   uia.Source
	Capturer screen.Capturer
	Logger   *slog.Logger
}

// Service implements Desktop on top of the native primitives.
type Service struct {
	info     *SystemInfo
	input    Input
	windows  Windows
	shell    powershell.Runner
	source   uia.Source
	capturer screen.Capturer
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
	mu       sync.Mutex
	infoMu   sync.Mutex
	// MoveSteps is the number of intermediate cursor positions of a move.
	MoveSteps   int
	StepDelay   time.Duration
	ClickDelay  time.Duration
	ActionPause time.Duration
}

var _ Desktop = (*Service)(nil)

// NewService returns a Service.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	source := opts.Source
	if source == nil {
		source = uia.NewSnapshotter(opts.Shell, logger)
	}
	capturer := opts.Capturer
	if capturer == nil {
		capturer = screen.NewCapturer(opts.Shell)
	}
	return &Service{
		input:       opts.Input,
		windows:     opts.Windows,
		shell:       opts.Shell,
		source:      source,
		capturer:    capturer,
		logger:      logger,
		sleep:       sleepContext,
		MoveSteps:   defaultMoveSteps,
		StepDelay:   defaultStepDelay,
		ClickDelay:  defaultClickDelay,
		ActionPause: defaultActionPause,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Click implements Desktop.
func (s *Service) Click(ctx context.Context, req ClickRequest) error {
	if req.Button == "" {
		req.Button = ButtonLeft
	}
	if !req.Button.Valid() {
		return invalidf("unknown button %q", req.Button)
	}
	if req.Clicks < 1 || req.Clicks > 3 {
		return invalidf("clicks must be 1, 2 or 3, got %d", req.Clicks)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.click(ctx, req)
}

func (s *Service) click(ctx context.Context, req ClickRequest) error {
	if err := s.input.MoveTo(req.Loc.X, req.Loc.Y); err != nil {
		return fmt.Errorf("click: move: %w", err)
	}
	for i := range req.Clicks {
		if i > 0 {
			if err := s.sleep(ctx, s.ClickDelay); err != nil {
				return err
			}
		}
		if err := s.press(req.Button); err != nil {
			return fmt.Errorf("click: %w", err)
		}
	}
	return nil
}

func (s *Service) press(b MouseButton) error {
	if err := s.input.Button(b, true); err != nil {
		return err
	}
	return s.input.Button(b, false)
}

// Type implements Desktop.
func (s *Service) Type(ctx context.Context, req TypeRequest) error {
	if !utf8.ValidString(req.Text) {
		return invalidf("text is not valid UTF-8")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.click(ctx, ClickRequest{Loc: req.Loc, Button: ButtonLeft, Clicks: 1}); err != nil {
		return fmt.Errorf("type: %w", err)
	}
	if req.Clear {
		if err := s.sleep(ctx, s.ActionPause); err != nil {
			return err
		}
		if err := s.chord([]uint16{vkControl, 'A'}); err != nil {
			return fmt.Errorf("type: select all: %w", err)
		}
		if err := s.chord([]uint16{vkBack}); err != nil {
			return fmt.Errorf("type: clear: %w", err)
		}
	}
	for _, r := range req.Text {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.input.TypeRune(r); err != nil {
			return fmt.Errorf("type: %w", err)
		}
	}
	if req.PressEnter {
		if err := s.chord([]uint16{vkReturn}); err != nil {
			return fmt.Errorf("type: enter: %w", err)
		}
	}
	return nil
}

// Scroll implements Desktop.
func (s *Service) Scroll(ctx context.Context, req ScrollRequest) (string, error) {
	if req.Type == "" {
		req.Type = ScrollVertical
	}
	if req.Direction == "" {
		req.Direction = DirectionDown
	}
	if req.WheelTimes < 1 {
		return "", invalidf("wheel_times must be at least 1, got %d", req.WheelTimes)
	}
	msg, err := ValidateScroll(req.Type, req.Direction)
	if err != nil || msg != "" {
		return msg, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if req.Loc != nil {
		if err := s.input.MoveTo(req.Loc.X, req.Loc.Y); err != nil {
			return "", fmt.Errorf("scroll: move: %w", err)
		}
	}
	delta := wheelDelta
	if req.Direction == DirectionDown || req.Direction == DirectionLeft {
		delta = -wheelDelta
	}
	horizontal := req.Type == ScrollHorizontal
	for i := range req.WheelTimes {
		if i > 0 {
			if err := s.sleep(ctx, s.StepDelay); err != nil {
				return "", err
			}
		}
		if err := s.input.Wheel(delta, horizontal); err != nil {
			return "", fmt.Errorf("scroll: %w", err)
		}
	}
	return "", nil
}

// Drag implements Desktop.
func (s *Service) Drag(ctx context.Context, to Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.input.Button(ButtonLeft, true); err != nil {
		return fmt.Errorf("drag: press: %w", err)
	}
	moveErr := s.glide(ctx, to)
	// always release, even when the move failed part way
	if err := s.input.Button(ButtonLeft, false); err != nil && moveErr == nil {
		return fmt.Errorf("drag: release: %w", err)
	}
	if moveErr != nil {
		return fmt.Errorf("drag: %w", moveErr)
	}
	return nil
}

// Move implements Desktop.
func (s *Service) Move(ctx context.Context, to Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.glide(ctx, to); err != nil {
		return fmt.Errorf("move: %w", err)
	}
	return nil
}

// glide moves the cursor to the target in MoveSteps steps.
func (s *Service) glide(ctx context.Context, to Point) error {
	from, err := s.input.CursorPos()
	if err != nil {
		return err
	}
	steps := max(s.MoveSteps, 1)
	for i := 1; i <= steps; i++ {
		x := from.X + (to.X-from.X)*i/steps
		y := from.Y + (to.Y-from.Y)*i/steps
		if err := s.input.MoveTo(x, y); err != nil {
			return err
		}
		if i < steps {
			if err := s.sleep(ctx, s.StepDelay); err != nil {
				return err
			}
		}
	}
	return nil
}

// Shortcut implements Desktop.
func (s *Service) Shortcut(_ context.Context, shortcut string) error {
	keys, err := ParseShortcut(shortcut)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.chord(keys); err != nil {
		return fmt.Errorf("shortcut %s: %w", shortcut, err)
	}
	return nil
}

// chord presses keys in order and releases them in reverse. Keys pressed
// before a failure are still released.
func (s *Service) chord(keys []uint16) error {
	pressed := 0
	var err error
	for _, k := range keys {
		if err = s.input.Key(k, true); err != nil {
			break
		}
		pressed++
	}
	for i := pressed - 1; i >= 0; i-- {
		if rerr := s.input.Key(keys[i], false); rerr != nil && err == nil {
			err = rerr
		}
	}
	return err
}

// LaunchApp implements Desktop.
func (s *Service) LaunchApp(ctx context.Context, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", invalidf("name is required to launch an application")
	}
	apps, err := listStartApps(ctx, s.shell)
	if err != nil {
		return "", err
	}
	names := make([]string, len(apps))
	for i, a := range apps {
		names[i] = a.Name
	}
	idx := bestMatch(name, names)
	if idx < 0 {
		return fmt.Sprintf("Application %s not found in start menu.", name), nil
	}
	app := apps[idx]
	res, err := s.shell.Run(ctx, "Start-Process "+powershell.Quote(`shell:AppsFolder\`+app.AppID))
	if err != nil {
		return "", fmt.Errorf("launch %s: %w", app.Name, err)
	}
	if res.ExitCode != 0 {
		return fmt.Sprintf("Failed to launch %s: %s", app.Name, strings.TrimSpace(res.Output)), nil
	}
	s.logger.Debug("launched application", slog.String("name", app.Name), slog.String("appId", app.AppID))
	return fmt.Sprintf("%s launched.", app.Name), nil
}

// findApp resolves name against the open apps, or returns the active app
// when name is empty.
func (s *Service) findApp(ctx context.Context, name string) (*tree.App, error) {
	snap, err := s.source.Capture(ctx)
	if err != nil {
		return nil, err
	}
	apps, active := tree.Apps(snap)
	if strings.TrimSpace(name) == "" {
		return active, nil
	}
	names := make([]string, len(apps))
	for i, a := range apps {
		names[i] = a.Name
	}
	if idx := bestMatch(name, names); idx >= 0 {
		return &apps[idx], nil
	}
	return nil, nil
}

// SwitchApp implements Desktop.
func (s *Service) SwitchApp(ctx context.Context, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", invalidf("name is required to switch application")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	app, err := s.findApp(ctx, name)
	if err != nil {
		return "", fmt.Errorf("switch: %w", err)
	}
	if app == nil {
		return fmt.Sprintf("Application %s not found.", name), nil
	}
	if app.Status == uia.WindowMinimized {
		if err := s.windows.Restore(app.Handle); err != nil {
			return "", fmt.Errorf("switch: restore %s: %w", app.Name, err)
		}
	}
	if err := s.windows.SetForeground(app.Handle); err != nil {
		return "", fmt.Errorf("switch: %s: %w", app.Name, err)
	}
	return fmt.Sprintf("Switched to %s window.", app.Name), nil
}

// ResizeApp implements Desktop.
func (s *Service) ResizeApp(ctx context.Context, req ResizeRequest) (string, error) {
	if req.Size.X <= 0 || req.Size.Y <= 0 {
		return "", invalidf("window_size must be positive, got [%d, %d]", req.Size.X, req.Size.Y)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	app, err := s.findApp(ctx, req.Name)
	if err != nil {
		return "", fmt.Errorf("resize: %w", err)
	}
	if app == nil {
		if req.Name == "" {
			return "No active app found.", nil
		}
		return fmt.Sprintf("Application %s not found.", req.Name), nil
	}
	if app.Status != uia.WindowNormal {
		if err := s.windows.Restore(app.Handle); err != nil {
			return "", fmt.Errorf("resize: restore %s: %w", app.Name, err)
		}
	}
	if err := s.windows.MoveWindow(app.Handle, req.Loc.X, req.Loc.Y, req.Size.X, req.Size.Y); err != nil {
		return "", fmt.Errorf("resize: %s: %w", app.Name, err)
	}
	return fmt.Sprintf("%s resized to %dx%d at %s.", app.Name, req.Size.X, req.Size.Y, req.Loc), nil
}

// ExecuteCommand implements Desktop.
func (s *Service) ExecuteCommand(ctx context.Context, command string) (*CommandResult, error) {
	if strings.TrimSpace(command) == "" {
		return nil, invalidf("command is empty")
	}
	res, err := s.shell.Run(ctx, command)
	if err != nil {
		return nil, err
	}
	return &CommandResult{Output: res.Output, ExitCode: res.ExitCode}, nil
}

// SystemInfo implements Desktop. A successful read is cached.
func (s *Service) SystemInfo(ctx context.Context) (*SystemInfo, error) {
	s.infoMu.Lock()
	defer s.infoMu.Unlock()
	if s.info != nil {
		info := *s.info
		return &info, nil
	}
	info, err := s.readSystemInfo(ctx)
	if err != nil {
		return nil, err
	}
	s.info = info
	out := *info
	return &out, nil
}

// State implements Desktop.
func (s *Service) State(ctx context.Context, req StateRequest) (*State, error) {
	info, err := s.SystemInfo(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.source.Capture(ctx)
	if err != nil {
		return nil, fmt.Errorf("state: %w", err)
	}
	bounds := uia.Rect{Right: info.ScreenWidth, Bottom: info.ScreenHeight}
	ts, err := tree.NewBuilder(bounds, s.logger).Build(ctx, snap, req.UseDOM)
	if err != nil {
		return nil, fmt.Errorf("state: %w", err)
	}
	state := &State{Tree: ts}
	if req.UseVision {
		img, err := s.capturer.Capture(ctx)
		if err != nil {
			return nil, fmt.Errorf("state: %w", err)
		}
		labels := make([]screen.Label, len(ts.Interactive))
		for i, n := range ts.Interactive {
			labels[i] = screen.Label{
				Text: fmt.Sprint(i),
				Box:  image.Rect(n.Box.Left, n.Box.Top, n.Box.Right, n.Box.Bottom),
			}
		}
		annotated := screen.Annotate(img, labels, screen.DefaultPadding)
		if state.Screenshot, err = screen.EncodePNG(screen.Fit(annotated)); err != nil {
			return nil, fmt.Errorf("state: %w", err)
		}
	}
	return state, nil
}
