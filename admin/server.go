// Copyright 2026 The GSMS Authors
// SPDX-License-Identifier: Apache-2.0

package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// connTimeout bounds one request/response exchange.
const connTimeout = 10 * time.Second

// OpStatus asks for the bridge's current counters.
const OpStatus = "status"

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding: sorted map keys, smallest integer encoding, no
// indefinite-length items.
var encMode cbor.EncMode

// decMode accepts standard CBOR; unknown fields are ignored for
// forward compatibility.
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("admin: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("admin: CBOR decoder initialization failed: " + err.Error())
	}
}

// Request is one admin command.
type Request struct {
	Op string `cbor:"op"`
}

// Status is the payload of a successful status response.
type Status struct {
	ActiveListeners int   `cbor:"active_listeners"`
	Users           int   `cbor:"users"`
	UptimeSeconds   int64 `cbor:"uptime_seconds"`
}

// Response is the reply to one Request. Exactly one of Status or
// Error is set.
type Response struct {
	Status *Status `cbor:"status,omitempty"`
	Error  string  `cbor:"error,omitempty"`
}

// ListenerSource reports the number of live room listeners.
// *subscription.Manager satisfies it.
type ListenerSource interface {
	Stats() (activeListeners int)
}

// UserCounter reports the number of stored user records. *store.Store
// satisfies it.
type UserCounter interface {
	Count(ctx context.Context) (int, error)
}

// Config holds configuration for creating a Server.
type Config struct {
	// SocketPath is where the Unix socket is created. Required. A
	// stale socket file from a previous run is removed.
	SocketPath string

	// Subscriptions reports listener counts. Required.
	Subscriptions ListenerSource

	// Users reports record counts. Required.
	Users UserCounter

	// Logger receives structured log output. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Server answers status requests on a local Unix socket.
type Server struct {
	listener      net.Listener
	subscriptions ListenerSource
	users         UserCounter
	logger        *slog.Logger
	started       time.Time
	wg            sync.WaitGroup
}

// Listen creates the socket and starts serving.
func Listen(cfg Config) (*Server, error) {
	if cfg.SocketPath == "" {
		return nil, fmt.Errorf("admin: SocketPath is required")
	}
	if cfg.Subscriptions == nil {
		return nil, fmt.Errorf("admin: Subscriptions is required")
	}
	if cfg.Users == nil {
		return nil, fmt.Errorf("admin: Users is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.Remove(cfg.SocketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("admin: removing stale socket: %w", err)
	}
	listener, err := net.Listen("unix", cfg.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("admin: listening on %s: %w", cfg.SocketPath, err)
	}

	s := &Server{
		listener:      listener,
		subscriptions: cfg.Subscriptions,
		users:         cfg.Users,
		logger:        logger,
		started:       time.Now(),
	}
	s.wg.Add(1)
	go s.acceptLoop()

	logger.Info("admin socket listening", "path", cfg.SocketPath)
	return s, nil
}

// Close stops accepting connections and waits for in-flight requests.
func (s *Server) Close() error {
	err := s.listener.Close()
	s.wg.Wait()
	return err
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.logger.Error("admin accept failed", "error", err)
			}
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(connTimeout))

	var request Request
	if err := decMode.NewDecoder(conn).Decode(&request); err != nil {
		s.logger.Warn("admin request not decoded", "error", err)
		return
	}

	response := s.handle(request)
	if err := encMode.NewEncoder(conn).Encode(response); err != nil {
		s.logger.Warn("admin response not written", "error", err)
	}
}

func (s *Server) handle(request Request) Response {
	switch request.Op {
	case OpStatus:
		ctx, cancel := context.WithTimeout(context.Background(), connTimeout)
		defer cancel()
		users, err := s.users.Count(ctx)
		if err != nil {
			return Response{Error: fmt.Sprintf("counting users: %v", err)}
		}
		return Response{Status: &Status{
			ActiveListeners: s.subscriptions.Stats(),
			Users:           users,
			UptimeSeconds:   int64(time.Since(s.started).Seconds()),
		}}
	default:
		return Response{Error: fmt.Sprintf("unknown op %q", request.Op)}
	}
}
