package webserver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/stake-plus/landvote/src/api/config"
	"github.com/stake-plus/landvote/src/services/core"
)

var _ core.Module = (*Server)(nil)

// Server runs the HTTP API as a service module, serving TLS from a
// hot-reloaded certificate when SSL is enabled.
type Server struct {
	cfg     config.Config
	handler http.Handler

	srv      *http.Server
	reloader *TLSReloader
	addr     net.Addr
}

func NewServer(cfg config.Config, handler http.Handler) *Server {
	return &Server{cfg: cfg, handler: handler}
}

func (s *Server) Name() string { return "http" }

// Start binds the listener before returning so port conflicts fail startup.
func (s *Server) Start(context.Context) error {
	s.srv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if s.cfg.EnableSSL {
		reloader, err := NewTLSReloader(s.cfg.SSLCert, s.cfg.SSLKey)
		if err != nil {
			return fmt.Errorf("tls: %w", err)
		}
		s.reloader = reloader
		s.srv.TLSConfig = reloader.GetConfig()
	}

	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		if s.reloader != nil {
			s.reloader.Close()
		}
		return err
	}
	s.addr = ln.Addr()

	go func() {
		var err error
		if s.reloader != nil {
			err = s.srv.ServeTLS(ln, "", "")
		} else {
			err = s.srv.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http: %v", err)
		}
	}()
	log.Printf("LandVote API listening on %s (tls=%v)", s.addr, s.reloader != nil)
	return nil
}

// Addr is the bound listener address; valid after Start.
func (s *Server) Addr() net.Addr { return s.addr }

func (s *Server) Stop(ctx context.Context) {
	if s.srv != nil {
		shutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutCtx); err != nil {
			log.Printf("http: shutdown: %v", err)
		}
	}
	if s.reloader != nil {
		s.reloader.Close()
	}
}
