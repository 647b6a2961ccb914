package wsserver

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/neopult/neopult/logger"
)

// basePort plus the channel number gives the per-channel listen port, per
// spec.md's channel-configuration section ("WebSocket endpoint per channel").
const basePort = 4200

// ListenAddr returns the address a channel's control plane binds to,
// following the teacher's httpServer field's ReadTimeout/WriteTimeout
// pattern of keeping transport-layer concerns next to the server that owns
// them.
func ListenAddr(host string, channel int) string {
	return host + ":" + strconv.Itoa(basePort+channel)
}

// Run starts the HTTP server and blocks until ctx is canceled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:         s.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  writeWait,
		WriteTimeout: writeWait,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WSInfow("control plane listening", "addr", s.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}
