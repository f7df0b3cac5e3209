package main

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/op/go-logging"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rlite-go/normal/internal/ipcp"
)

// ControlServer answers HTTP requests over the control socket,
// mirroring the teacher's daemon/control.ControlServer: one handler
// method per route, registered on an internal http.ServeMux.
type ControlServer struct {
	engine *ipcp.Engine
	log    *logging.Logger
	mux    *http.ServeMux
}

func NewControlServer(engine *ipcp.Engine, log *logging.Logger) *ControlServer {
	s := &ControlServer{engine: engine, log: log, mux: http.NewServeMux()}
	s.mux.HandleFunc("/config", s.handleConfig)
	s.mux.HandleFunc("/pduft", s.handlePDUFT)
	return s
}

func (s *ControlServer) Serve(l net.Listener) error {
	return http.Serve(l, s.mux)
}

type configRequest struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (s *ControlServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req configRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := s.engine.Config(req.Name, req.Value); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(err.Error()))
		return
	}
	w.WriteHeader(http.StatusOK)
}

type pduftRequest struct {
	Addr      uint64 `json:"addr"`
	LocalPort uint32 `json:"local_port"`
}

func (s *ControlServer) handlePDUFT(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPut:
		var req pduftRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNotImplemented)
		w.Write([]byte("pduft_set must be called in-process: ipcpctl cannot name a live *dtp.Flow over the wire"))
	case http.MethodDelete:
		w.WriteHeader(http.StatusNotImplemented)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func registerCollector(engine *ipcp.Engine) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(engine.Metrics())
	return reg
}
