package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ticketdesk/auth-service/internal/http/response"
	"github.com/ticketdesk/auth-service/internal/observability"
)

const idempotencyHeader = "Idempotency-Key"

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// IdempotencyStore remembers the first response produced under a key so
// retries replay it instead of re-running the handler.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: ttl}
}

// Middleware returns the idempotency guard for one route. Requests without an
// Idempotency-Key header pass through untouched. A key whose first request is
// still executing gets 409 rather than a duplicate execution.
func (s *IdempotencyStore) Middleware(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(idempotencyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			redisKey := "idem:" + route + ":" + key

			ok, err := s.client.SetNX(r.Context(), redisKey, "pending", s.ttl).Result()
			if err != nil {
				// Idempotency is best effort: a dead store must not block the
				// request.
				observability.RecordIdempotencyOutcome(r.Context(), route, "backend_error")
				slog.Warn("idempotency store unavailable", "route", route, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				raw, err := s.client.Get(r.Context(), redisKey).Bytes()
				if err != nil && !errors.Is(err, redis.Nil) {
					observability.RecordIdempotencyOutcome(r.Context(), route, "backend_error")
					slog.Warn("idempotency lookup failed", "route", route, "error", err)
					next.ServeHTTP(w, r)
					return
				}
				var stored storedResponse
				if err == nil && json.Unmarshal(raw, &stored) == nil && stored.Status != 0 {
					observability.RecordIdempotencyOutcome(r.Context(), route, "replay")
					if stored.ContentType != "" {
						w.Header().Set("Content-Type", stored.ContentType)
					}
					w.Header().Set("Idempotency-Replayed", "true")
					w.WriteHeader(stored.Status)
					_, _ = w.Write(stored.Body)
					return
				}
				observability.RecordIdempotencyOutcome(r.Context(), route, "in_flight")
				response.Error(w, r, http.StatusConflict, "IDEMPOTENCY_CONFLICT",
					"a request with this idempotency key is still in progress", nil)
				return
			}

			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			stored := storedResponse{
				Status:      rec.status,
				ContentType: rec.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
			}
			payload, err := json.Marshal(stored)
			if err == nil {
				err = s.client.Set(r.Context(), redisKey, payload, s.ttl).Err()
			}
			if err != nil {
				slog.Warn("idempotency store write failed", "route", route, "error", err)
				// Drop the pending marker so a retry is not stuck behind it.
				_ = s.client.Del(r.Context(), redisKey).Err()
				observability.RecordIdempotencyOutcome(r.Context(), route, "store_failed")
				return
			}
			observability.RecordIdempotencyOutcome(r.Context(), route, "stored")
		})
	}
}

type responseRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (r *responseRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(p []byte) (int, error) {
	r.body.Write(p)
	return r.ResponseWriter.Write(p)
}
