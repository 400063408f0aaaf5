package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/bft-labs/obsrelay/internal/ports"
)

// Server runs the API over plain HTTP and, when configured, HTTPS.
type Server struct {
	servers []*http.Server
	tls     map[*http.Server][2]string
	bound   []string
	logger  ports.Logger
}

// NewServer creates listeners for addr and, when certFile is set, tlsAddr.
func NewServer(handler http.Handler, addr, tlsAddr, certFile, keyFile string, logger ports.Logger) *Server {
	s := &Server{tls: make(map[*http.Server][2]string), logger: logger}
	s.servers = append(s.servers, &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second})
	if tlsAddr != "" && certFile != "" && keyFile != "" {
		srv := &http.Server{Addr: tlsAddr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
		s.servers = append(s.servers, srv)
		s.tls[srv] = [2]string{certFile, keyFile}
	}
	return s
}

// Start binds every listener and serves in the background. errs receives
// unexpected serve errors.
func (s *Server) Start(errs chan<- error) error {
	for _, srv := range s.servers {
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			_ = s.Shutdown(context.Background())
			return fmt.Errorf("listen %s: %w", srv.Addr, err)
		}
		s.bound = append(s.bound, ln.Addr().String())
		files, isTLS := s.tls[srv]
		s.logger.Info("http listener ready", ports.String("address", ln.Addr().String()), ports.Bool("tls", isTLS))
		go func(srv *http.Server, ln net.Listener) {
			var err error
			if isTLS {
				err = srv.ServeTLS(ln, files[0], files[1])
			} else {
				err = srv.Serve(ln)
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) && errs != nil {
				errs <- err
			}
		}(srv, ln)
	}
	return nil
}

// Shutdown stops every listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	for _, srv := range s.servers {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Addrs returns the bound listener addresses after Start.
func (s *Server) Addrs() []string {
	return append([]string(nil), s.bound...)
}
