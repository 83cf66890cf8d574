// Package admin serves the loopback-only operator API: world state, war
// history and approval, indexed events and on-demand snapshots.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"outpost.gg/internal/persistence/indexdb"
	plog "outpost.gg/internal/persistence/log"
	"outpost.gg/internal/protocol"
	"outpost.gg/internal/sim/world"
)

// Index is the read model behind history queries. It may be nil.
type Index interface {
	WarHistory(ctx context.Context, factionID string, limit int) ([]indexdb.WarRow, error)
	Events(ctx context.Context, q indexdb.EventQuery) ([]indexdb.EventRow, error)
}

type Auditor interface {
	WriteAudit(plog.AuditEntry) error
}

type Server struct {
	world *world.World
	index Index
	audit Auditor
	log   *log.Logger

	// AllowRemote disables the loopback check (tests, trusted networks).
	AllowRemote bool
}

func NewServer(w *world.World, index Index, audit Auditor, logger *log.Logger) *Server {
	return &Server{world: w, index: index, audit: audit, log: logger}
}

func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /admin/v1/state", s.guard(s.state))
	mux.HandleFunc("GET /admin/v1/wars", s.guard(s.wars))
	mux.HandleFunc("POST /admin/v1/wars/{id}/approve", s.guard(s.decideWar(true)))
	mux.HandleFunc("POST /admin/v1/wars/{id}/deny", s.guard(s.decideWar(false)))
	mux.HandleFunc("GET /admin/v1/events", s.guard(s.events))
	mux.HandleFunc("POST /admin/v1/snapshot", s.guard(s.snapshot))
}

func (s *Server) guard(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.AllowRemote && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func (s *Server) state(rw http.ResponseWriter, r *http.Request) {
	var view world.StateView
	err := s.world.Do(r.Context(), func(w *world.World) error {
		view = w.State()
		return nil
	})
	if err != nil {
		writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, view)
}

// wars serves the indexed history when an index is configured, otherwise
// the wars currently held by the world.
func (s *Server) wars(rw http.ResponseWriter, r *http.Request) {
	faction := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("faction")))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if s.index != nil {
		rows, err := s.index.WarHistory(r.Context(), faction, limit)
		if err != nil {
			writeError(rw, err)
			return
		}
		writeJSON(rw, http.StatusOK, map[string]any{"source": "index", "wars": rows})
		return
	}
	var out []world.WarView
	err := s.world.Do(r.Context(), func(w *world.World) error {
		for _, wv := range w.State().Wars {
			if faction == "" || wv.AttackerID == faction || wv.DefenderID == faction {
				out = append(out, wv)
			}
		}
		return nil
	})
	if err != nil {
		writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"source": "world", "wars": out})
}

func (s *Server) decideWar(approve bool) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		err := s.world.Do(r.Context(), func(w *world.World) error {
			if approve {
				return w.AdminApproveWar(id)
			}
			return w.AdminDenyWar(id)
		})
		if err != nil {
			writeError(rw, err)
			return
		}
		action := "war.deny"
		if approve {
			action = "war.approve"
		}
		s.record(r, action, id, nil)
		writeJSON(rw, http.StatusOK, map[string]any{"war_id": id, "approved": approve})
	}
}

func (s *Server) events(rw http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		http.Error(rw, "no index configured", http.StatusNotFound)
		return
	}
	q := r.URL.Query()
	since, _ := strconv.ParseInt(q.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(q.Get("limit"))
	rows, err := s.index.Events(r.Context(), indexdb.EventQuery{
		FactionID:   strings.ToUpper(strings.TrimSpace(q.Get("faction"))),
		Kind:        q.Get("kind"),
		SinceCursor: since,
		Limit:       limit,
	})
	if err != nil {
		writeError(rw, err)
		return
	}
	out := make([]json.RawMessage, 0, len(rows))
	for _, row := range rows {
		out = append(out, json.RawMessage(row.RawJSON))
	}
	writeJSON(rw, http.StatusOK, map[string]any{"events": out})
}

func (s *Server) snapshot(rw http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	tick, err := s.world.RequestSnapshot(ctx)
	if err != nil {
		writeError(rw, err)
		return
	}
	s.record(r, "snapshot", "", map[string]any{"tick": tick})
	writeJSON(rw, http.StatusAccepted, map[string]any{"tick": tick})
}

func (s *Server) record(r *http.Request, action, target string, details map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.WriteAudit(plog.AuditEntry{
		Time:    time.Now().UTC(),
		WorldID: s.world.ID(),
		Actor:   r.RemoteAddr,
		Action:  action,
		Target:  target,
		Details: details,
	})
	if err != nil && s.log != nil {
		s.log.Printf("[admin] audit write failed: %v", err)
	}
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func writeError(rw http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch code := protocol.CodeOf(err); {
	case errors.Is(err, world.ErrStopped), errors.Is(err, world.ErrSnapshotBusy):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		status = http.StatusGatewayTimeout
	case code == protocol.ErrBadRequest:
		status = http.StatusBadRequest
	case code == protocol.ErrNoPermission:
		status = http.StatusForbidden
	case code == protocol.ErrInvalidTarget:
		status = http.StatusNotFound
	case code == protocol.ErrConflict, code == protocol.ErrBlocked:
		status = http.StatusConflict
	}
	writeJSON(rw, status, map[string]any{"error": err.Error(), "code": protocol.CodeOf(err)})
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
