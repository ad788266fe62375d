// Package httpapi serves the status snapshot, the board, training curves
// and a live websocket feed over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/grpc/statusserver"
)

// Config holds the HTTP server settings
type Config struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	StreamInterval time.Duration `mapstructure:"stream_interval"`
	AccessLog      bool          `mapstructure:"access_log"`
}

// Server exposes a status Source over HTTP
type Server struct {
	source   statusserver.Source
	config   Config
	logger   zerolog.Logger
	router   *mux.Router
	upgrader websocket.Upgrader
}

// NewServer creates the router. Routes:
//
//	GET  /healthz
//	GET  /api/status
//	GET  /api/grid[?color=1]
//	GET  /api/history/{team}
//	POST /api/control/{pause|resume}
//	GET  /charts/{team}
//	GET  /ws
func NewServer(source statusserver.Source, config Config, logger zerolog.Logger) *Server {
	if config.StreamInterval < statusserver.MinWatchInterval {
		config.StreamInterval = statusserver.MinWatchInterval
	}
	s := &Server{
		source: source,
		config: config,
		logger: logger.With().Str("component", "http_api").Logger(),
		router: mux.NewRouter(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/grid", s.handleGrid).Methods("GET")
	api.HandleFunc("/history/{team}", s.handleHistory).Methods("GET")
	api.HandleFunc("/control/{action:pause|resume}", s.handleControl).Methods("POST")
	s.router.HandleFunc("/charts/{team}", s.handleCharts).Methods("GET")
	s.router.HandleFunc("/ws", s.handleWebsocket).Methods("GET")
	return s
}

// Handler returns the router wrapped with panic recovery and, if enabled,
// combined access logging
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	if s.config.AccessLog {
		h = handlers.CombinedLoggingHandler(s.logger, h)
	}
	return handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{s.logger}))(h)
}

// ListenAndServe serves until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("address", addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.logger.Info().Msg("Shutting down HTTP server")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

// writeProto writes m as protobuf JSON, the same encoding the gRPC gateway uses
func (s *Server) writeProto(w http.ResponseWriter, status int, m proto.Message) {
	body, err := protojson.Marshal(m)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

type recoveryLogger struct {
	logger zerolog.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error().Interface("panic", v).Msg("Recovered from panic in HTTP handler")
}
