package http

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/aretw0/switchboard/pkg/domain"
)

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recoverer turns a panic at the adapter boundary into a 500 response.
func (a *Adapter) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			a.logger.Error("http handler panicked",
				"path", r.URL.Path,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			a.writeError(w, domain.SerializationFault(fmt.Errorf("handler panicked: %v", rec)))
		}()
		next.ServeHTTP(w, r)
	})
}

func (a *Adapter) requireOpen(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.lc.IsOpen() {
			a.writeError(w, domain.TransportUnavailable())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authenticate checks the configured access token and passes the presented
// token through to actions either way.
func (a *Adapter) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if a.token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(a.token)) != 1 {
			a.logger.Warn("unauthorized request", "remote", r.RemoteAddr, "path", r.URL.Path)
			a.writeJSON(w, http.StatusUnauthorized, messageBody("unauthorized"))
			return
		}
		if token != "" {
			r = r.WithContext(domain.WithToken(r.Context(), token))
		}
		next.ServeHTTP(w, r)
	})
}

func extractToken(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[len("bearer "):])
	}
	return strings.TrimSpace(r.URL.Query().Get(tokenParam))
}

func (a *Adapter) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.limiter.Allow(clientKey(r), time.Now()) {
			w.Header().Set("Retry-After", "1")
			a.writeJSON(w, http.StatusTooManyRequests, messageBody("rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (a *Adapter) deadline(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.timeout <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
