package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/craftmall/communication/internal/store"
)

func (s *App) errorHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				var panicError error
				switch e := err.(type) {
				case error:
					panicError = e
				default:
					panicError = fmt.Errorf("%v", e)
				}
				s.log.Errorw("panic serving request", "path", r.URL.Path, "error", panicError)
				errResp := NewInternalServerError(panicError)
				w.Header().Set("Connection", "close")
				s.writeJson(w, errResp.StatusCode, errResp)
				return
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// internalAuth guards service-to-service endpoints with the shared secret
// header. This is peer trust, not end-user authentication.
func (s *App) internalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		secret := r.Header.Get(store.InternalSecretHeader)
		if subtle.ConstantTimeCompare([]byte(secret), []byte(s.internalSecret)) != 1 {
			errResp := NewForbiddenError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		next(w, r)
	}
}
