// Copyright 2025 Joseph Cumines

package remote

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	longrunningpb "cloud.google.com/go/longrunning/autogen/longrunningpb"
	"github.com/joeycumines/windows-mcp/internal/desktop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Method names of the Desktop service.
const (
	MethodClick          = "Click"
	MethodType           = "Type"
	MethodScroll         = "Scroll"
	MethodDrag           = "Drag"
	MethodMove           = "Move"
	MethodShortcut       = "Shortcut"
	MethodLaunchApp      = "LaunchApp"
	MethodResizeApp      = "ResizeApp"
	MethodSwitchApp      = "SwitchApp"
	MethodExecuteCommand = "ExecuteCommand"
	MethodState          = "State"
	MethodSystemInfo     = "SystemInfo"
)

// methodHandler handles one decoded request.
type methodHandler func(ctx context.Context, in *structpb.Struct) (proto.Message, error)

// desktopService is the HandlerType of the service descriptor.
type desktopService interface {
	handle(ctx context.Context, method string, in *structpb.Struct) (proto.Message, error)
}

// Agent serves a desktop.Desktop over gRPC.
type Agent struct {
	desktop  desktop.Desktop
	ops      *OperationStore
	health   *health.Server
	logger   *slog.Logger
	handlers map[string]methodHandler
}

// NewAgent returns an Agent backed by d.
func NewAgent(d desktop.Desktop, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Agent{
		desktop: d,
		ops:     NewOperationStore(logger),
		health:  health.NewServer(),
		logger:  logger,
	}
	a.handlers = map[string]methodHandler{
		MethodClick:          a.click,
		MethodType:           a.typeText,
		MethodScroll:         a.scroll,
		MethodDrag:           a.drag,
		MethodMove:           a.move,
		MethodShortcut:       a.shortcut,
		MethodLaunchApp:      a.launchApp,
		MethodResizeApp:      a.resizeApp,
		MethodSwitchApp:      a.switchApp,
		MethodExecuteCommand: a.executeCommand,
		MethodState:          a.state,
		MethodSystemInfo:     a.systemInfo,
	}
	return a
}

// Operations returns the store backing ExecuteCommand.
func (a *Agent) Operations() *OperationStore { return a.ops }

// Register registers the Desktop, Operations and health services on s.
func (a *Agent) Register(s *grpc.Server) {
	s.RegisterService(serviceDesc(), a)
	longrunningpb.RegisterOperationsServer(s, a.ops)
	healthpb.RegisterHealthServer(s, a.health)
	a.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	a.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
}

// Shutdown marks the agent as not serving.
func (a *Agent) Shutdown() {
	a.health.Shutdown()
}

// NewServer returns a gRPC server with the agent registered, request logging
// and message limits large enough for screenshots.
func NewServer(a *Agent, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.MaxRecvMsgSize(maxMessageSize),
		grpc.MaxSendMsgSize(maxMessageSize),
		grpc.ChainUnaryInterceptor(LoggingInterceptor(a.logger)),
	}, opts...)
	s := grpc.NewServer(opts...)
	a.Register(s)
	return s
}

// LoggingInterceptor logs each unary call with its status code.
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		level := slog.LevelDebug
		if err != nil {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "rpc",
			slog.String("method", info.FullMethod),
			slog.String("code", status.Code(err).String()),
			slog.Duration("duration", time.Since(start)))
		return resp, err
	}
}

func (a *Agent) handle(ctx context.Context, method string, in *structpb.Struct) (proto.Message, error) {
	h, ok := a.handlers[method]
	if !ok {
		return nil, status.Errorf(codes.Unimplemented, "method %s not implemented", method)
	}
	out, err := h(ctx, in)
	if err != nil {
		return nil, toStatus(err)
	}
	return out, nil
}

func serviceDesc() *grpc.ServiceDesc {
	methods := []string{
		MethodClick, MethodType, MethodScroll, MethodDrag, MethodMove, MethodShortcut,
		MethodLaunchApp, MethodResizeApp, MethodSwitchApp, MethodExecuteCommand,
		MethodState, MethodSystemInfo,
	}
	desc := &grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*desktopService)(nil),
		Streams:     []grpc.StreamDesc{},
		Metadata:    "windowsmcp/v1/desktop.proto",
	}
	for _, m := range methods {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{MethodName: m, Handler: unaryHandler(m)})
	}
	return desc
}

func unaryHandler(method string) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		svc := srv.(desktopService)
		if interceptor == nil {
			return svc.handle(ctx, method, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return svc.handle(ctx, method, req.(*structpb.Struct))
		})
	}
}

func decode[T any](in *structpb.Struct) (T, error) {
	var v T
	if err := fromStruct(in, &v); err != nil {
		return v, fmt.Errorf("%w: %v", desktop.ErrInvalidArgument, err)
	}
	return v, nil
}

func message(msg string) (proto.Message, error) {
	return toStruct(textMessage{Message: msg})
}

func empty() (proto.Message, error) {
	return &structpb.Struct{}, nil
}

func (a *Agent) click(ctx context.Context, in *structpb.Struct) (proto.Message, error) {
	req, err := decode[desktop.ClickRequest](in)
	if err != nil {
		return nil, err
	}
	if err := a.desktop.Click(ctx, req); err != nil {
		return nil, err
	}
	return empty()
}

func (a *Agent) typeText(ctx context.Context, in *structpb.Struct) (proto.Message, error) {
	req, err := decode[desktop.TypeRequest](in)
	if err != nil {
		return nil, err
	}
	if err := a.desktop.Type(ctx, req); err != nil {
		return nil, err
	}
	return empty()
}

func (a *Agent) scroll(ctx context.Context, in *structpb.Struct) (proto.Message, error) {
	req, err := decode[desktop.ScrollRequest](in)
	if err != nil {
		return nil, err
	}
	msg, err := a.desktop.Scroll(ctx, req)
	if err != nil {
		return nil, err
	}
	return message(msg)
}

func (a *Agent) drag(ctx context.Context, in *structpb.Struct) (proto.Message, error) {
	req, err := decode[pointMessage](in)
	if err != nil {
		return nil, err
	}
	if err := a.desktop.Drag(ctx, desktop.Point{X: req.To.X, Y: req.To.Y}); err != nil {
		return nil, err
	}
	return empty()
}

func (a *Agent) move(ctx context.Context, in *structpb.Struct) (proto.Message, error) {
	req, err := decode[pointMessage](in)
	if err != nil {
		return nil, err
	}
	if err := a.desktop.Move(ctx, desktop.Point{X: req.To.X, Y: req.To.Y}); err != nil {
		return nil, err
	}
	return empty()
}

func (a *Agent) shortcut(ctx context.Context, in *structpb.Struct) (proto.Message, error) {
	req, err := decode[shortcutMessage](in)
	if err != nil {
		return nil, err
	}
	if err := a.desktop.Shortcut(ctx, req.Shortcut); err != nil {
		return nil, err
	}
	return empty()
}

func (a *Agent) launchApp(ctx context.Context, in *structpb.Struct) (proto.Message, error) {
	req, err := decode[nameMessage](in)
	if err != nil {
		return nil, err
	}
	msg, err := a.desktop.LaunchApp(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	return message(msg)
}

func (a *Agent) resizeApp(ctx context.Context, in *structpb.Struct) (proto.Message, error) {
	req, err := decode[desktop.ResizeRequest](in)
	if err != nil {
		return nil, err
	}
	msg, err := a.desktop.ResizeApp(ctx, req)
	if err != nil {
		return nil, err
	}
	return message(msg)
}

func (a *Agent) switchApp(ctx context.Context, in *structpb.Struct) (proto.Message, error) {
	req, err := decode[nameMessage](in)
	if err != nil {
		return nil, err
	}
	msg, err := a.desktop.SwitchApp(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	return message(msg)
}

// executeCommand starts the command as an operation. The returned message is
// a *longrunningpb.Operation rather than a Struct.
func (a *Agent) executeCommand(ctx context.Context, in *structpb.Struct) (proto.Message, error) {
	req, err := decode[commandMessage](in)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Command) == "" {
		return nil, fmt.Errorf("%w: command is empty", desktop.ErrInvalidArgument)
	}
	md, err := toStruct(req)
	if err != nil {
		return nil, err
	}
	return a.ops.Start(md, func(ctx context.Context) (proto.Message, error) {
		res, err := a.desktop.ExecuteCommand(ctx, req.Command)
		if err != nil {
			return nil, err
		}
		return toStruct(res)
	})
}

func (a *Agent) state(ctx context.Context, in *structpb.Struct) (proto.Message, error) {
	req, err := decode[desktop.StateRequest](in)
	if err != nil {
		return nil, err
	}
	st, err := a.desktop.State(ctx, req)
	if err != nil {
		return nil, err
	}
	return toStruct(st)
}

func (a *Agent) systemInfo(ctx context.Context, _ *structpb.Struct) (proto.Message, error) {
	info, err := a.desktop.SystemInfo(ctx)
	if err != nil {
		return nil, err
	}
	return toStruct(info)
}
