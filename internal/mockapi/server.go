// Package mockapi is an in-memory stand-in for the storefront backend. It answers in the same mix of
// response envelopes the real backend uses, deduplicates order creation on the idempotency key and
// can be told to fail upcoming requests.
package mockapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/grocery-storefront/internal/apiclient"
)

// envelope is the response wrapper a resource answers with.
type envelope int

const (
	// {"success": true, "data": ...}
	envelopeSuccess envelope = iota
	// {"data": ...}
	envelopeData
	// {"deliveries": [...]} and {"delivery": {...}}
	envelopeNamed
	// the entity or array itself
	envelopeBare
)

var envelopes = map[string]envelope{
	apiclient.ResourceOrders:     envelopeSuccess,
	apiclient.ResourcePayments:   envelopeSuccess,
	apiclient.ResourceUsers:      envelopeData,
	apiclient.ResourceDeliveries: envelopeNamed,
	apiclient.ResourceProducts:   envelopeBare,
}

type Options struct {
	// RequireToken rejects requests without a bearer token with 401.
	RequireToken bool
}

type Server struct {
	store *Store
	opts  Options

	mu        sync.Mutex
	failCode  int
	failCount int
}

func NewServer(store *Store, opts Options) *Server {
	return &Server{store: store, opts: opts}
}

// FailNext makes the next count resource requests answer with status.
func (s *Server) FailNext(status, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCode = status
	s.failCount = count
}

func (s *Server) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	router.Post("/admin/faults", s.handleFaults)

	router.Group(func(r chi.Router) {
		r.Use(s.injectFaults)
		if s.opts.RequireToken {
			r.Use(requireToken)
		}

		for resource := range envelopes {
			r.Route("/"+resource, func(r chi.Router) {
				r.Get("/", s.handleList(resource))
				if resource == apiclient.ResourceOrders {
					r.Post("/", s.handleCreateOrder)
				} else {
					r.Post("/", s.handleCreate(resource))
				}
				r.Get("/{id}", s.handleGet(resource))
				r.Patch("/{id}", s.handlePatch(resource))
				r.Delete("/{id}", s.handleDelete(resource))
			})
		}
	})
	return router
}

type faultRequest struct {
	Status int `json:"status"`
	Count  int `json:"count"`
}

func (s *Server) handleFaults(w http.ResponseWriter, r *http.Request) {
	var req faultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid fault request")
		return
	}
	if req.Count > 0 && (req.Status < 400 || req.Status > 599) {
		respondWithError(w, http.StatusBadRequest, "status must be a 4xx or 5xx code")
		return
	}
	s.FailNext(req.Status, req.Count)
	log.Info().Int("status", req.Status).Int("count", req.Count).Msg("mockapi: faults configured")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) injectFaults(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		code := 0
		if s.failCount > 0 {
			s.failCount--
			code = s.failCode
		}
		s.mu.Unlock()

		if code != 0 {
			log.Warn().Int("status", code).Str("path", r.URL.Path).Msg("mockapi: injected failure")
			respondWithError(w, code, "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			respondWithError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleList(resource string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondWithRecords(w, resource, http.StatusOK, s.store.List(resource, r.URL.Query()))
	}
}

func (s *Server) handleGet(resource string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := s.store.Get(resource, chi.URLParam(r, "id"))
		if err != nil {
			respondWithStoreError(w, err)
			return
		}
		respondWithRecord(w, resource, http.StatusOK, rec)
	}
}

func (s *Server) handleCreate(resource string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := decodeRecord(w, r)
		if !ok {
			return
		}
		respondWithRecord(w, resource, http.StatusCreated, s.store.Insert(resource, rec))
	}
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	rec, ok := decodeRecord(w, r)
	if !ok {
		return
	}

	key := r.Header.Get(apiclient.IdempotencyHeader)
	if key == "" {
		key = text(rec["idempotencyKey"])
	}

	created, replayed, err := s.store.CreateOrder(rec, key)
	if err != nil {
		respondWithStoreError(w, err)
		return
	}

	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
		log.Info().Str("idempotency_key", key).Msg("mockapi: replayed order creation")
	}
	respondWithRecord(w, apiclient.ResourceOrders, status, created)
}

func (s *Server) handlePatch(resource string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patch, ok := decodeRecord(w, r)
		if !ok {
			return
		}
		rec, err := s.store.Patch(resource, chi.URLParam(r, "id"), patch)
		if err != nil {
			respondWithStoreError(w, err)
			return
		}
		respondWithRecord(w, resource, http.StatusOK, rec)
	}
}

func (s *Server) handleDelete(resource string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.store.Delete(resource, chi.URLParam(r, "id")); err != nil {
			respondWithStoreError(w, err)
			return
		}
		if envelopes[resource] == envelopeSuccess {
			respondWithJSON(w, http.StatusOK, map[string]any{"success": true})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// decodeRecord keeps numbers as json.Number so ids and prices survive unchanged.
func decodeRecord(w http.ResponseWriter, r *http.Request) (Record, bool) {
	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()

	var rec Record
	if err := decoder.Decode(&rec); err != nil || rec == nil {
		respondWithError(w, http.StatusBadRequest, "request body must be a JSON object")
		return nil, false
	}
	return rec, true
}

func respondWithRecords(w http.ResponseWriter, resource string, code int, records []Record) {
	switch envelopes[resource] {
	case envelopeSuccess:
		respondWithJSON(w, code, map[string]any{"success": true, "data": records})
	case envelopeData:
		respondWithJSON(w, code, map[string]any{"data": records})
	case envelopeNamed:
		respondWithJSON(w, code, map[string]any{resource: records})
	default:
		respondWithJSON(w, code, records)
	}
}

func respondWithRecord(w http.ResponseWriter, resource string, code int, rec Record) {
	switch envelopes[resource] {
	case envelopeSuccess:
		respondWithJSON(w, code, map[string]any{"success": true, "data": rec})
	case envelopeData:
		respondWithJSON(w, code, map[string]any{"data": rec})
	case envelopeNamed:
		respondWithJSON(w, code, map[string]any{strings.TrimSuffix(resource, "ies") + "y": rec})
	default:
		respondWithJSON(w, code, rec)
	}
}

func respondWithStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidRecord):
		respondWithError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		log.Error().Err(err).Msg("mockapi: store failure")
		respondWithError(w, http.StatusInternalServerError, "internal error")
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]any{"success": false, "message": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		log.Error().Err(err).Msg("mockapi: failed to encode response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(buf.Bytes())
}
