package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/JonMunkholm/grapher/internal/config"
	"github.com/JonMunkholm/grapher/internal/logging"
)

// Auth error codes, in the style of the catalog's user error codes.
const (
	CodeMissingKey = "AUTH001"
	CodeInvalidKey = "AUTH002"
)

// APIKeyAuth guards the dataset mutation routes. With cfg.RequireAPIKey set, a
// request must present one of cfg.APIKeys, either in X-API-Key or as an
// "Authorization: Bearer" token. Without it the middleware is a pass-through.
func APIKeyAuth(cfg config.SecurityConfig) func(http.Handler) http.Handler {
	if !cfg.RequireAPIKey {
		return func(next http.Handler) http.Handler { return next }
	}
	keys := newKeySet(cfg.APIKeys)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := presentedKey(r)
			switch {
			case !ok:
				w.Header().Set("WWW-Authenticate", `Bearer realm="grapher"`)
				rejectKey(w, r, http.StatusUnauthorized, CodeMissingKey, "An API key is required to change datasets")
			case !keys.contains(key):
				rejectKey(w, r, http.StatusForbidden, CodeInvalidKey, "The API key is not valid")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// presentedKey returns the key from X-API-Key, falling back to a bearer token.
func presentedKey(r *http.Request) (string, bool) {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key, true
	}
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// keySet holds SHA-256 digests of the accepted keys. Digests have a fixed
// length, so comparisons take the same time whatever key is presented.
type keySet [][sha256.Size]byte

func newKeySet(keys []string) keySet {
	set := make(keySet, 0, len(keys))
	for _, k := range keys {
		set = append(set, sha256.Sum256([]byte(k)))
	}
	return set
}

// contains checks every key, not just until the first match.
func (s keySet) contains(key string) bool {
	sum := sha256.Sum256([]byte(key))
	match := 0
	for i := range s {
		match |= subtle.ConstantTimeCompare(sum[:], s[i][:])
	}
	return match == 1
}

func rejectKey(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	logging.FromContext(r.Context()).Warn("api key rejected",
		"code", code,
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   http.StatusText(status),
		"message": message,
		"code":    code,
	})
}
