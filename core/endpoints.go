package core

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"beta.service/api"
	sm "beta.service/models"
)

const (
	DefaultAddr = ":8080"

	maxRequestBytes = 1 << 20
)

func GetHttpServer(sc *ServiceContext) *http.Server {
	addr := DefaultAddr
	readTimeout, writeTimeout := 10*time.Second, 30*time.Second
	if sc.Config != nil {
		addr = sc.Config.HTTP.Addr
		readTimeout, writeTimeout = sc.Config.HTTP.ReadTimeout, sc.Config.HTTP.WriteTimeout
	}

	server := &http.Server{
		Addr:           addr,
		Handler:        NewRouter(sc),
		ReadTimeout:    readTimeout,
		WriteTimeout:   writeTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	// in flight requests see the shutdown signal
	if sc.Context != nil {
		server.BaseContext = func(net.Listener) context.Context { return sc.Context }
	}

	return server
}

func NewRouter(sc *ServiceContext) chi.Router {
	router := chi.NewRouter()

	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(sc.requestLogger)

	router.Get("/api/ping", ping)
	router.Get("/api/resources", sc.resources)
	router.Post("/api/beta", sc.beta)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return router
}

// requestLogger logs and counts every request by its route pattern
func (sc *ServiceContext) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		elapsed := time.Since(started)
		requestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		requestDuration.WithLabelValues(route).Observe(elapsed.Seconds())

		sc.Logger.Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Dur("elapsed", elapsed).
			Msg("handled request")
	})
}

func ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "pong"})
}

func (sc *ServiceContext) resources(w http.ResponseWriter, r *http.Request) {
	res := sm.GetBetaSettingsResources(sc.Config)
	writeJSON(w, http.StatusOK, sm.GetServiceResponseOk(&res))
}

func (sc *ServiceContext) beta(w http.ResponseWriter, r *http.Request) {
	var req sm.BetaRequest

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, sm.GetServiceResponseError[sm.BetaResponse]("invalid request body: "+err.Error()))
		return
	}

	res, err := sc.RunBetaEstimate(r.Context(), req)
	if err != nil {
		writeJSON(w, StatusForError(err), sm.GetServiceResponseError[sm.BetaResponse](err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, sm.GetServiceResponseOk(res))
}

// StatusForError maps the error taxonomy onto http status codes
func StatusForError(err error) int {
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrInvalidCoefficient), errors.Is(err, ErrInvalidColumn):
		return http.StatusBadRequest
	case errors.Is(err, api.ErrSymbolNotFound):
		return http.StatusNotFound
	case errors.Is(err, api.ErrNoDataInRange),
		errors.Is(err, ErrInsufficientData),
		errors.Is(err, ErrDegenerateVariance),
		errors.Is(err, ErrInvalidSeries):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
