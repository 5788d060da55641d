package app

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gravyprompts/discovery/auth"
	"github.com/gravyprompts/discovery/health"
	"github.com/gravyprompts/discovery/observe"
	"github.com/gravyprompts/discovery/router"
)

// Handler returns the HTTP surface of the instance.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /templates", a.handleSearch)
	mux.HandleFunc("GET /templates/popular", a.handlePopular)
	mux.HandleFunc("GET /templates/{id}", a.handleLookup)
	mux.HandleFunc("POST /templates/{id}/invalidate", a.handleInvalidate)
	health.RegisterHandlers(mux, a.Health)
	return auth.Middleware(a.Authenticator, a.Logger)(mux)
}

// Serve listens on the configured address until ctx is done, then shuts
// down gracefully.
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Config.Service.Addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	a.Logger.Info(ctx, "listening", observe.Field{Key: "addr", Value: srv.Addr})

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Config.Service.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// requestQuery reads the query string and the caller identity. Anonymous
// callers are keyed by client address for rate limiting.
func requestQuery(r *http.Request) router.Query {
	requester := auth.RequesterID(r.Context())
	q := router.QueryFromValues(r.URL.Query(), requester)
	if requester == "" {
		q.RequestKey = clientAddr(r)
	}
	return q
}

func (a *App) handleSearch(w http.ResponseWriter, r *http.Request) {
	res, err := a.Router.Search(r.Context(), requestQuery(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *App) handlePopular(w http.ResponseWriter, r *http.Request) {
	res, err := a.Router.Popular(r.Context(), requestQuery(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *App) handleLookup(w http.ResponseWriter, r *http.Request) {
	t, err := a.Router.Lookup(r.Context(), r.PathValue("id"), auth.RequesterID(r.Context()))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (a *App) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	if !auth.IdentityFromContext(r.Context()).IsAdmin() {
		writeJSON(w, http.StatusForbidden, errorBody{Error: "admin access required"})
		return
	}
	if err := a.Router.Invalidate(r.Context(), r.PathValue("id")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type errorBody struct {
	Error string `json:"error"`
}

func (a *App) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, router.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too many requests"})
	case errors.Is(err, router.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "template not found"})
	default:
		a.Logger.Error(r.Context(), "request failed",
			observe.Field{Key: "path", Value: r.URL.Path},
			observe.Err(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// clientAddr is the first X-Forwarded-For hop, else the peer address.
func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
