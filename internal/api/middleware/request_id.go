// SPDX-License-Identifier: MIT

// Package middleware provides the HTTP ingress middleware stack.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/md2site/md2site/internal/log"
)

// HeaderRequestID carries the correlation ID on requests and responses.
const HeaderRequestID = "X-Request-ID"

// RequestID assigns every request a correlation ID. An incoming
// X-Request-ID is honored so traces stay linked across proxies.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(HeaderRequestID)
		if reqID == "" {
			reqID = uuid.New().String()
		}
		w.Header().Set(HeaderRequestID, reqID)
		ctx := log.ContextWithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
