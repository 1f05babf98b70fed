// Package api implements the operator status/control HTTP+JSON API as a
// plain net/http mux.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/tiiuae/rmacs/internal/rmacs"
)

// StatusProvider is the subset of the client/server drivers the API
// needs to answer GET /v1/status.
type StatusProvider interface {
	State() rmacs.ClientState
	OperatingFrequency() int
}

// ServerStatusProvider is the orchestrator-side equivalent of
// StatusProvider; nil when this process does not run the server FSM.
type ServerStatusProvider interface {
	State() rmacs.ServerState
	OperatingFrequency() int
	Ledger() *rmacs.Ledger
}

// Broadcaster triggers an immediate periodic operating-frequency
// broadcast, for POST /v1/broadcast.
type Broadcaster interface {
	BroadcastOperatingFrequency()
}

// dedupSizer reports the processed-message-id set's current size.
type dedupSizer interface {
	Len() int
}

// Server is the operator HTTP+JSON API.
type Server struct {
	client      StatusProvider
	server      ServerStatusProvider // nil unless orchestrator_node
	broadcaster Broadcaster          // nil unless orchestrator_node
	dedup       dedupSizer
	logger      *slog.Logger
}

// New builds the API's http.Handler. server and broadcaster may be nil
// on a non-orchestrator node.
func New(client StatusProvider, server ServerStatusProvider, broadcaster Broadcaster, dedup dedupSizer, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{client: client, server: server, broadcaster: broadcaster, dedup: dedup, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/ledger", s.handleLedger)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("POST /v1/broadcast", s.handleBroadcast)
	return mux
}

// LedgerEntry is one frequency's ledger row as exposed over the API.
type LedgerEntry struct {
	Freq           int              `json:"freq"`
	Nodes          map[string]int   `json:"nodes"`
	AverageQuality *float64         `json:"average_quality"`
}

func (s *Server) handleLedger(w http.ResponseWriter, _ *http.Request) {
	if s.server == nil {
		http.Error(w, "this node does not run the orchestrator role", http.StatusNotFound)
		return
	}

	snapshot := s.server.Ledger().Snapshot()
	out := make([]LedgerEntry, 0, len(snapshot))
	for _, e := range snapshot {
		nodes := make(map[string]int, len(e.Nodes))
		for device, nq := range e.Nodes {
			nodes[device] = nq.Quality
		}
		out = append(out, LedgerEntry{Freq: e.Freq, Nodes: nodes, AverageQuality: e.AverageQuality})
	}

	writeJSON(w, out)
}

// StatusResponse is the GET /v1/status body.
type StatusResponse struct {
	ClientState     string `json:"client_state"`
	OperatingFreq   int    `json:"operating_freq"`
	ServerState     string `json:"server_state,omitempty"`
	OrchestratorRun bool   `json:"orchestrator_running"`
	DedupSetSize    int    `json:"dedup_set_size"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		ClientState:     s.client.State().String(),
		OperatingFreq:   s.client.OperatingFrequency(),
		OrchestratorRun: s.server != nil,
	}
	if s.server != nil {
		resp.ServerState = s.server.State().String()
	}
	if s.dedup != nil {
		resp.DedupSetSize = s.dedup.Len()
	}

	writeJSON(w, resp)
}

func (s *Server) handleBroadcast(w http.ResponseWriter, _ *http.Request) {
	if s.broadcaster == nil {
		http.Error(w, "this node does not run the orchestrator role", http.StatusNotFound)
		return
	}

	s.broadcaster.BroadcastOperatingFrequency()
	writeJSON(w, map[string]string{"status": "broadcast triggered"})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// NewHTTPServer wraps handler in an *http.Server with a ReadHeaderTimeout
// to guard against slow-header DoS.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
