// Package transport owns the network-facing side of the broker: the TLS
// listener that feeds accepted connections into sessions, and the UDP
// responder for LAN discovery.
package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/dmitrijs2005/chatrelay/internal/logging"
	"github.com/dmitrijs2005/chatrelay/internal/server/config"
	"github.com/dmitrijs2005/chatrelay/internal/server/registry"
	"github.com/dmitrijs2005/chatrelay/internal/server/services"
	"github.com/dmitrijs2005/chatrelay/internal/server/session"
)

// Server accepts TLS connections and runs one session per connection.
type Server struct {
	addr      string
	tlsConfig *tls.Config
	logger    logging.Logger

	users    *services.UserService
	messages *services.MessageService
	groups   *services.GroupService
	registry *registry.Registry
}

func NewServer(cfg *config.Config, l logging.Logger, users *services.UserService,
	messages *services.MessageService, groups *services.GroupService, reg *registry.Registry) (*Server, error) {

	cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
	if err != nil {
		return nil, fmt.Errorf("error loading server certificate: %w", err)
	}

	return &Server{
		addr: cfg.EndpointAddr,
		tlsConfig: &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		},
		logger:   l.With("module", "server"),
		users:    users,
		messages: messages,
		groups:   groups,
		registry: reg,
	}, nil
}

// Run listens on the configured address and accepts until ctx is canceled.
// It returns after every session goroutine has finished.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("error starting listener: %w", err)
	}

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	s.logger.Info(ctx, "server listening", "addr", ln.Addr().String())

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Warn(ctx, "accept failed", "error", err)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.serveConn(ctx, conn)
		}()
	}

	wg.Wait()
	s.logger.Info(ctx, "server stopped")
	return nil
}

// serveConn completes the TLS handshake and hands the connection to a
// session. A failed handshake is a client problem, logged and dropped.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	tlsConn := tls.Server(conn, s.tlsConfig)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		s.logger.Debug(ctx, "tls handshake failed", "remote", conn.RemoteAddr().String(), "error", err)
		conn.Close()
		return
	}

	session.New(tlsConn, s.logger, s.users, s.messages, s.groups, s.registry).Run(ctx)
}
