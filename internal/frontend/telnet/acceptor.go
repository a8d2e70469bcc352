package telnet

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/diceroll/internal/config"
)

// SessionHandler processes a connected Telnet session.
// Implementations run the command loop for a single client and return when
// the client quits, the connection fails, or ctx is cancelled.
type SessionHandler interface {
	HandleSession(ctx context.Context, conn *Conn) error
}

// Acceptor listens for Telnet connections on a TCP port and dispatches
// each connection to a SessionHandler on its own goroutine.
type Acceptor struct {
	cfg     config.TelnetConfig
	handler SessionHandler
	logger  *zap.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[*Conn]struct{}
	running  bool
	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewAcceptor creates a Telnet acceptor with the given configuration.
//
// Precondition: handler and logger must be non-nil.
// Postcondition: Returns an Acceptor ready to be started with ListenAndServe.
func NewAcceptor(cfg config.TelnetConfig, handler SessionHandler, logger *zap.Logger) *Acceptor {
	return &Acceptor{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		conns:   make(map[*Conn]struct{}),
		quit:    make(chan struct{}),
	}
}

// ListenAndServe starts the TCP listener and accepts connections until Stop
// is called. It returns nil after Stop, including when Stop ran first.
//
// Precondition: The acceptor must not already be running.
func (a *Acceptor) ListenAndServe() error {
	start := time.Now()
	if a.stopped() {
		return nil
	}

	listener, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.cfg.Addr(), err)
	}

	a.mu.Lock()
	if a.stopped() {
		a.mu.Unlock()
		listener.Close()
		return nil
	}
	a.listener = listener
	a.running = true
	a.mu.Unlock()

	a.logger.Info("telnet acceptor listening",
		zap.String("addr", listener.Addr().String()),
		zap.Duration("startup", time.Since(start)),
	)

	for {
		raw, err := listener.Accept()
		if err != nil {
			select {
			case <-a.quit:
				return nil
			default:
				a.logger.Error("accepting connection", zap.Error(err))
				continue
			}
		}

		a.mu.Lock()
		if a.stopped() {
			a.mu.Unlock()
			raw.Close()
			return nil
		}
		a.wg.Add(1)
		a.mu.Unlock()
		go a.handleConn(raw)
	}
}

func (a *Acceptor) stopped() bool {
	select {
	case <-a.quit:
		return true
	default:
		return false
	}
}

func (a *Acceptor) handleConn(raw net.Conn) {
	defer a.wg.Done()
	start := time.Now()

	conn := NewConn(uuid.NewString(), raw, a.cfg.ReadTimeout, a.cfg.WriteTimeout)
	log := a.logger.With(
		zap.String("session_id", conn.ID),
		zap.String("remote_addr", raw.RemoteAddr().String()),
	)
	log.Info("client connected")

	if !a.track(conn, true) {
		conn.Close()
		log.Info("client dropped during shutdown")
		return
	}
	defer func() {
		a.track(conn, false)
		conn.Close()
	}()

	if err := conn.Negotiate(); err != nil {
		log.Error("telnet negotiation failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-a.quit:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := a.handler.HandleSession(ctx, conn); err != nil {
		log.Debug("session ended",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
		return
	}
	log.Info("session ended cleanly", zap.Duration("duration", time.Since(start)))
}

// track adds or removes c from the open set. Adding fails once Stop has
// begun, since Stop has already closed every connection it knows about.
func (a *Acceptor) track(c *Conn, add bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !add {
		delete(a.conns, c)
		return true
	}
	if a.stopped() {
		return false
	}
	a.conns[c] = struct{}{}
	return true
}

// Stop closes the listener and every open session, then waits for session
// goroutines to finish. Sessions blocked in ReadLine are released by the
// connection close. Stop may be called before ListenAndServe, in which case
// ListenAndServe returns nil without serving. Calls after the first are no-ops.
func (a *Acceptor) Stop() {
	a.stopOnce.Do(func() {
		a.mu.Lock()
		a.running = false
		close(a.quit)
		if a.listener != nil {
			a.listener.Close()
		}
		for c := range a.conns {
			c.Close()
		}
		a.mu.Unlock()

		a.wg.Wait()
		a.logger.Info("telnet acceptor stopped")
	})
}

// Addr returns the actual listening address, or empty string if not yet listening.
func (a *Acceptor) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return ""
}

// IsRunning returns whether the acceptor is currently accepting connections.
func (a *Acceptor) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// Sessions returns the number of open sessions.
func (a *Acceptor) Sessions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.conns)
}
