// SPDX-License-Identifier: MIT

package api

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"

	"github.com/md2site/md2site/internal/log"
)

// requireToken guards mutating endpoints with a bearer token. With no
// token configured the endpoints stay open, which is the expected
// setup behind a trusted reverse proxy.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := s.holder.Get().APIToken
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		presented := bearerToken(r)
		if presented == "" ||
			subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			logger := log.WithComponentFromContext(r.Context(), "api")
			logger.Warn().
				Str("event", "auth.denied").
				Str("path", r.URL.Path).
				Str("remote_ip", s.clientIP(r)).
				Msg("invalid or missing API token")
			w.Header().Set("WWW-Authenticate", `Bearer realm="md2site"`)
			writeError(w, http.StatusUnauthorized, "invalid or missing API token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// tokenValid reports whether the request is allowed to see protected
// resources. True when no token is configured.
func (s *Server) tokenValid(r *http.Request) bool {
	token := s.holder.Get().APIToken
	if token == "" {
		return true
	}
	presented := bearerToken(r)
	return presented != "" &&
		subtle.ConstantTimeCompare([]byte(presented), []byte(token)) == 1
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return auth[len(prefix):]
	}
	return ""
}

// clientIP returns the caller's IP. X-Forwarded-For is only honored
// when the direct peer is inside a trusted proxy CIDR; otherwise a
// client could spoof its address through the header.
func (s *Server) clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	peer := net.ParseIP(host)
	if peer == nil || !s.isTrustedProxy(peer) {
		return host
	}

	fwd := r.Header.Get("X-Forwarded-For")
	if fwd == "" {
		return host
	}
	// The last hop is the one the trusted proxy appended.
	parts := strings.Split(fwd, ",")
	candidate := strings.TrimSpace(parts[len(parts)-1])
	if net.ParseIP(candidate) != nil {
		return candidate
	}
	return host
}

func (s *Server) isTrustedProxy(ip net.IP) bool {
	for _, cidr := range s.holder.Get().TrustedProxies {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
