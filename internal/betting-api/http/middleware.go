package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/venispagina998/telegram-betting-app/internal/betting-api/auth"
)

type ctxKey int

const identityKey ctxKey = iota

// identityFrom recupera a identidade autenticada do contexto da request
func identityFrom(ctx context.Context) *auth.Identity {
	ident, _ := ctx.Value(identityKey).(*auth.Identity)
	return ident
}

// withAuth valida o initData do header Authorization e injeta a identidade
// no contexto. Qualquer falha vira 401 genérico; o tipo interno do erro
// só aparece em log e métrica.
func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" {
			authFailures.WithLabelValues("missing_credentials").Inc()
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}

		ident, err := s.verifier.Verify(raw)
		if err != nil {
			kind := authErrorKind(err)
			authFailures.WithLabelValues(kind).Inc()
			s.log.Warn("auth rejected", zap.String("kind", kind), zap.Error(err))
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, ident)))
	})
}

func authErrorKind(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingHash):
		return "missing_hash"
	case errors.Is(err, auth.ErrInvalidHash):
		return "invalid_hash"
	case errors.Is(err, auth.ErrMalformedData):
		return "malformed_data"
	case errors.Is(err, auth.ErrMalformedUser):
		return "malformed_user"
	case errors.Is(err, auth.ErrExpired):
		return "expired"
	default:
		return "unknown"
	}
}

// withCORS libera o acesso do Mini App, espelhando o gateway
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
