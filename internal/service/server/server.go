package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"proof_bridge/internal/protocol/router"
	"proof_bridge/internal/service/background"
	"proof_bridge/internal/transport/wsport"
	"proof_bridge/internal/utils/log"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type (
	// HttpServer exposes the background to content contexts. Each websocket
	// on /port is one privileged port.
	HttpServer struct {
		addr       string
		background *router.Background
		service    *background.Service
	}

	healthResponse struct {
		Ready bool `json:"ready"`
		Ports int  `json:"ports"`
	}
)

func NewHttpServer(addr string, bg *router.Background, svc *background.Service) *HttpServer {
	return &HttpServer{
		addr:       addr,
		background: bg,
		service:    svc,
	}
}

func (s *HttpServer) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/port", s.HandlePortWS()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.Health()).Methods(http.MethodGet)
	r.HandleFunc("/stores/{name}", s.GetStore()).Methods(http.MethodGet)
	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *HttpServer) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HttpServer) HandlePortWS() http.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("upgrade failed", zap.Error(err))
			return
		}

		conn := wsport.New(ws)
		detach := s.background.Attach(conn)
		log.Debug("port attached", zap.String("remote", r.RemoteAddr))

		go func() {
			<-conn.Done()
			detach()
			log.Debug("port detached", zap.String("remote", r.RemoteAddr))
		}()
	}
}

func (s *HttpServer) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Ready: s.service.Ready(),
			Ports: s.background.Ports(),
		}
		status := http.StatusOK
		if !resp.Ready {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}

// GetStore dumps the cached copy of a partition.
func (s *HttpServer) GetStore() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["name"]

		value, ok := s.service.Store().Cached(name)
		if !ok {
			http.Error(w, "store not loaded", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, value)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error("marshal response failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}
