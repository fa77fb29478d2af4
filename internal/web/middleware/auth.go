package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/JonMunkholm/crmimport/internal/logging"
)

// authFailure is one way a request can fail key checks.
type authFailure struct {
	status int
	msg    string
	code   string
}

var (
	errMissingKey = authFailure{http.StatusUnauthorized, "missing API key", "AUTH_MISSING_KEY"}
	errInvalidKey = authFailure{http.StatusForbidden, "invalid API key", "AUTH_INVALID_KEY"}
)

// APIKeyAuth guards the run API with the X-API-Key header. A missing key
// answers 401 and an unknown key 403. Mount it only when keys are configured.
func APIKeyAuth(keys []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get("X-API-Key")

			switch {
			case presented == "":
				reject(w, r, errMissingKey)
			case !keyMatches(presented, keys):
				reject(w, r, errInvalidKey)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func reject(w http.ResponseWriter, r *http.Request, f authFailure) {
	logging.WithFields(r.Context(),
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
		"code", f.code,
	).Warn("api request rejected", "reason", f.msg)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": f.msg, "code": f.code})
}

// keyMatches compares against every key in constant time, so response
// timing does not depend on which key (if any) matched.
func keyMatches(presented string, keys []string) bool {
	match := 0
	for _, k := range keys {
		match |= subtle.ConstantTimeCompare([]byte(presented), []byte(k))
	}
	return match == 1
}
