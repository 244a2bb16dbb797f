// Copyright 2025 Joseph Cumines

package remote

import (
	"context"
	"fmt"
	"time"

	longrunningpb "cloud.google.com/go/longrunning/autogen/longrunningpb"
	"github.com/joeycumines/windows-mcp/internal/desktop"
	"github.com/joeycumines/windows-mcp/internal/server/tools"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// DefaultPollInterval is how often ExecuteCommand polls its operation.
const DefaultPollInterval = 100 * time.Millisecond

// DialConfig describes how to reach an agent.
type DialConfig struct {
	Addr     string
	CertFile string
	TLS      bool
}

// Client implements desktop.Desktop against a remote agent.
type Client struct {
	conn         grpc.ClientConnInterface
	ops          longrunningpb.OperationsClient
	health       healthpb.HealthClient
	closer       func() error
	PollInterval time.Duration
}

var _ desktop.Desktop = (*Client)(nil)

// Dial connects to the agent at cfg.Addr. The connection is established
// lazily, on first use.
func Dial(cfg DialConfig, opts ...grpc.DialOption) (*Client, error) {
	var creds credentials.TransportCredentials
	if cfg.TLS {
		creds = credentials.NewTLS(nil)
		if cfg.CertFile != "" {
			var err error
			creds, err = credentials.NewClientTLSFromFile(cfg.CertFile, "")
			if err != nil {
				return nil, fmt.Errorf("failed to load TLS cert: %w", err)
			}
		}
	} else {
		creds = insecure.NewCredentials()
	}

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(maxMessageSize), grpc.MaxCallSendMsgSize(maxMessageSize)),
	}, opts...)
	conn, err := grpc.NewClient(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	c := NewClient(conn)
	c.closer = conn.Close
	return c, nil
}

// NewClient wraps an existing connection. Close does not close conn.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{
		conn:         conn,
		ops:          longrunningpb.NewOperationsClient(conn),
		health:       healthpb.NewHealthClient(conn),
		PollInterval: DefaultPollInterval,
	}
}

// Close releases the connection if the client owns it.
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

// Ping checks the agent's health service.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return err
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("agent is %s", resp.GetStatus())
	}
	return nil
}

func (c *Client) invoke(ctx context.Context, method string, req any, out proto.Message) error {
	in, err := toStruct(req)
	if err != nil {
		return err
	}
	if err := c.conn.Invoke(ctx, fullMethod(method), in, out); err != nil {
		return fromStatus(err)
	}
	return nil
}

func (c *Client) call(ctx context.Context, method string, req, resp any) error {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, method, req, out); err != nil {
		return err
	}
	if resp == nil {
		return nil
	}
	return fromStruct(out, resp)
}

func (c *Client) callMessage(ctx context.Context, method string, req any) (string, error) {
	var resp textMessage
	if err := c.call(ctx, method, req, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Click implements desktop.Desktop.
func (c *Client) Click(ctx context.Context, req desktop.ClickRequest) error {
	return c.call(ctx, MethodClick, req, nil)
}

// Type implements desktop.Desktop.
func (c *Client) Type(ctx context.Context, req desktop.TypeRequest) error {
	return c.call(ctx, MethodType, req, nil)
}

// Scroll implements desktop.Desktop.
func (c *Client) Scroll(ctx context.Context, req desktop.ScrollRequest) (string, error) {
	return c.callMessage(ctx, MethodScroll, req)
}

// Drag implements desktop.Desktop.
func (c *Client) Drag(ctx context.Context, to desktop.Point) error {
	return c.call(ctx, MethodDrag, pointMessage{To: pointJSON{X: to.X, Y: to.Y}}, nil)
}

// Move implements desktop.Desktop.
func (c *Client) Move(ctx context.Context, to desktop.Point) error {
	return c.call(ctx, MethodMove, pointMessage{To: pointJSON{X: to.X, Y: to.Y}}, nil)
}

// Shortcut implements desktop.Desktop.
func (c *Client) Shortcut(ctx context.Context, shortcut string) error {
	return c.call(ctx, MethodShortcut, shortcutMessage{Shortcut: shortcut}, nil)
}

// LaunchApp implements desktop.Desktop.
func (c *Client) LaunchApp(ctx context.Context, name string) (string, error) {
	return c.callMessage(ctx, MethodLaunchApp, nameMessage{Name: name})
}

// ResizeApp implements desktop.Desktop.
func (c *Client) ResizeApp(ctx context.Context, req desktop.ResizeRequest) (string, error) {
	return c.callMessage(ctx, MethodResizeApp, req)
}

// SwitchApp implements desktop.Desktop.
func (c *Client) SwitchApp(ctx context.Context, name string) (string, error) {
	return c.callMessage(ctx, MethodSwitchApp, nameMessage{Name: name})
}

// ExecuteCommand implements desktop.Desktop. It starts the command on the
// agent and polls the operation until it is done. If ctx ends first the
// operation is cancelled.
func (c *Client) ExecuteCommand(ctx context.Context, command string) (*desktop.CommandResult, error) {
	op := new(longrunningpb.Operation)
	if err := c.invoke(ctx, MethodExecuteCommand, commandMessage{Command: command}, op); err != nil {
		return nil, err
	}

	if !op.GetDone() {
		done, err := tools.PollUntilComplete(ctx, c.ops, op.GetName(), c.PollInterval)
		if done == nil {
			c.cancel(op.GetName())
			return nil, fromStatus(err)
		}
		op = done
	}

	if e := op.GetError(); e != nil {
		return nil, fromStatus(status.ErrorProto(e))
	}
	resp := new(structpb.Struct)
	if packed := op.GetResponse(); packed != nil {
		if err := packed.UnmarshalTo(resp); err != nil {
			return nil, fmt.Errorf("unexpected operation response: %w", err)
		}
	}
	var res desktop.CommandResult
	if err := fromStruct(resp, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) cancel(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _ = c.ops.CancelOperation(ctx, &longrunningpb.CancelOperationRequest{Name: name})
}

// State implements desktop.Desktop.
func (c *Client) State(ctx context.Context, req desktop.StateRequest) (*desktop.State, error) {
	var st desktop.State
	if err := c.call(ctx, MethodState, req, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// SystemInfo implements desktop.Desktop.
func (c *Client) SystemInfo(ctx context.Context) (*desktop.SystemInfo, error) {
	var info desktop.SystemInfo
	if err := c.call(ctx, MethodSystemInfo, struct{}{}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}
