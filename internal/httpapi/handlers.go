package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/core"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/grpc/statusserver"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	out, err := statusserver.SnapshotToStruct(s.source.Snapshot())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeProto(w, http.StatusOK, out)
}

func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	color := r.URL.Query().Get("color") == "1"
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(s.source.Snapshot().World.Render(color)))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	team, err := core.ParseTeam(mux.Vars(r)["team"])
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stats, ok := s.source.History(team)
	if !ok {
		s.writeError(w, http.StatusNotFound, "no controller for team "+team.String())
		return
	}
	out, err := statusserver.StatsToStruct(stats)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeProto(w, http.StatusOK, out)
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	action := mux.Vars(r)["action"]
	var err error
	switch action {
	case "pause":
		err = s.source.Pause()
	case "resume":
		err = s.source.Resume()
	}
	if err != nil {
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}
	s.logger.Info().Str("action", action).Msg("Control request applied")
	s.handleStatus(w, r)
}

// handleWebsocket pushes a status snapshot every StreamInterval until the
// client disconnects
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	// Reading is mandatory to notice when the socket is closed client side
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func() error {
		out, err := statusserver.SnapshotToStruct(s.source.Snapshot())
		if err != nil {
			return err
		}
		body, err := protojson.Marshal(out)
		if err != nil {
			return err
		}
		_ = conn.SetWriteDeadline(time.Now().Add(s.config.StreamInterval * 4))
		return conn.WriteMessage(websocket.TextMessage, body)
	}

	ticker := time.NewTicker(s.config.StreamInterval)
	defer ticker.Stop()
	for {
		if err := send(); err != nil {
			s.logger.Debug().Err(err).Msg("Websocket write failed")
			return
		}
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
