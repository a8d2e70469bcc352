package rollservice

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client calls dice.v1.DiceService.
type Client struct {
	conn *grpc.ClientConn
}

// Dial creates a Client for addr over an insecure transport. The
// connection is established lazily on the first call.
//
// Precondition: addr must be a "host:port" string.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("rollservice: creating client for %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Roll rolls spec on the server and returns the total.
func (c *Client) Roll(ctx context.Context, spec string) (uint64, error) {
	out := new(wrapperspb.UInt64Value)
	if err := c.conn.Invoke(ctx, rollMethod, wrapperspb.String(spec), out); err != nil {
		return 0, err
	}
	return out.GetValue(), nil
}

// Validate asks the server whether spec is a valid expression.
func (c *Client) Validate(ctx context.Context, spec string) error {
	return c.conn.Invoke(ctx, validateMethod, wrapperspb.String(spec), new(emptypb.Empty))
}

// WaitForHealth blocks until the server reports SERVING for ServiceName or
// ctx ends.
func (c *Client) WaitForHealth(ctx context.Context) error {
	healthClient := healthpb.NewHealthClient(c.conn)
	backoff := 50 * time.Millisecond
	for {
		callCtx, cancel := context.WithTimeout(ctx, time.Second)
		resp, err := healthClient.Check(callCtx, &healthpb.HealthCheckRequest{Service: ServiceName})
		cancel()
		if err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("rollservice: waiting for health: %w", ctx.Err())
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, time.Second)
	}
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// ErrorReason extracts the ErrorInfo reason and, for syntax errors, the
// byte offset from an error returned by Roll or Validate. offset is -1 when
// absent; ok is false when err carries no dice ErrorInfo.
func ErrorReason(err error) (reason string, offset int, ok bool) {
	st, isStatus := status.FromError(err)
	if !isStatus {
		return "", -1, false
	}
	for _, d := range st.Details() {
		info, isInfo := d.(*errdetails.ErrorInfo)
		if !isInfo || info.GetDomain() != ErrorDomain {
			continue
		}
		offset = -1
		if raw, has := info.GetMetadata()["offset"]; has {
			if n, err := strconv.Atoi(raw); err == nil {
				offset = n
			}
		}
		return info.GetReason(), offset, true
	}
	return "", -1, false
}
