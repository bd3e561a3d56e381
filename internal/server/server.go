// Package server exposes the capture and download triggers over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pwnholic/slidecap/internal"
	"github.com/pwnholic/slidecap/internal/capture"
)

// Session is the part of capture.Session the server drives.
type Session interface {
	Capture(ctx context.Context) (string, error)
	Bundle(ctx context.Context) (string, []byte, error)
	Stats() capture.Stats
}

type Server struct {
	addr    string
	session Session
	log     *internal.Logger
	router  *chi.Mux
	http    *http.Server
}

func New(addr string, session Session, log *internal.Logger) *Server {
	if log == nil {
		log = internal.GetDefaultLogger()
	}
	s := &Server{addr: addr, session: session, log: log.With("http")}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Post("/capture", s.handleCapture)
	r.Post("/finalize", s.handleFinalize)
	r.Get("/status", s.handleStatus)
	s.router = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks until ctx is canceled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.http = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening on %s", s.addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	name, err := s.session.Capture(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"name":  name,
		"stats": s.session.Stats(),
	})
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	filename, data, err := s.session.Bundle(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType(filename))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Stats())
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, capture.ErrNoSlide):
		status = http.StatusNotFound
	case errors.Is(err, capture.ErrBusy):
		status = http.StatusConflict
	case errors.Is(err, capture.ErrNothingCaptured):
		status = http.StatusUnprocessableEntity
	}
	s.log.Debug("%s %s -> %d (%s): %v", r.Method, r.URL.Path, status, middleware.GetReqID(r.Context()), err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func contentType(filename string) string {
	if strings.HasSuffix(filename, ".pdf") {
		return "application/pdf"
	}
	return "application/zip"
}
