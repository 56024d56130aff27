package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Erros internos de autenticação. Todos viram 401 na borda HTTP,
// mas o tipo distinto aparece em log e métrica.
var (
	ErrMissingHash   = errors.New("no hash provided")
	ErrInvalidHash   = errors.New("invalid hash")
	ErrMalformedData = errors.New("malformed init data")
	ErrMalformedUser = errors.New("malformed user field")
	ErrExpired       = errors.New("auth data expired")
	ErrNotConfigured = errors.New("bot token not configured")
)

// Identity é o chamador autenticado, extraído do initData do Telegram.
type Identity struct {
	UserID       int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Username     string `json:"username"`
	LanguageCode string `json:"language_code"`
	StartParam   string `json:"start_param"`
	IsAdmin      bool   `json:"-"`
}

// Verifier valida o initData assinado do Telegram Web App.
// secret key = SHA256(bot token); MAC = HMAC-SHA256 sobre a check-string.
type Verifier struct {
	secretKey []byte
	maxAge    time.Duration // 0 desabilita a checagem de idade
	admins    map[int64]struct{}
	now       func() time.Time
}

// NewVerifier constrói o verificador. Token ausente falha aqui,
// na subida do serviço, e não a cada request.
func NewVerifier(botToken string, maxAge time.Duration, adminIDs []int64) (*Verifier, error) {
	if botToken == "" {
		return nil, ErrNotConfigured
	}

	key := sha256.Sum256([]byte(botToken))

	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}

	return &Verifier{
		secretKey: key[:],
		maxAge:    maxAge,
		admins:    admins,
		now:       time.Now,
	}, nil
}

// Verify valida a assinatura do initData e projeta a identidade do chamador.
func (v *Verifier) Verify(initData string) (*Identity, error) {
	fields, err := parseInitData(initData)
	if err != nil {
		return nil, err
	}

	receivedHash, ok := fields["hash"]
	if !ok || receivedHash == "" {
		return nil, ErrMissingHash
	}
	delete(fields, "hash")

	if !hmac.Equal([]byte(v.sign(fields)), []byte(receivedHash)) {
		return nil, ErrInvalidHash
	}

	if err := v.checkAuthDate(fields["auth_date"]); err != nil {
		return nil, err
	}

	userJSON, ok := fields["user"]
	if !ok {
		userJSON = "{}"
	}
	var ident Identity
	if err := json.Unmarshal([]byte(userJSON), &ident); err != nil {
		return nil, ErrMalformedUser
	}

	_, ident.IsAdmin = v.admins[ident.UserID]

	return &ident, nil
}

// sign monta a check-string "k=v" ordenada por chave, unida por "&",
// e calcula o HMAC-SHA256 em hex
func (v *Verifier) sign(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+fields[k])
	}

	mac := hmac.New(sha256.New, v.secretKey)
	mac.Write([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(mac.Sum(nil))
}

// checkAuthDate rejeita auth_date negativo sempre; com maxAge > 0
// rejeita também payloads mais velhos que a janela
func (v *Verifier) checkAuthDate(raw string) error {
	if raw == "" {
		raw = "0"
	}
	authDate, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return ErrMalformedData
	}
	if authDate < 0 {
		return ErrExpired
	}
	if v.maxAge > 0 && v.now().Sub(time.Unix(authDate, 0)) > v.maxAge {
		return ErrExpired
	}
	return nil
}

// parseInitData faz o parse estrito de "k1=v1&k2=v2&...".
// Par sem "=" ou chave vazia é erro, nunca estado parcial.
func parseInitData(raw string) (map[string]string, error) {
	if raw == "" {
		return nil, ErrMalformedData
	}

	fields := make(map[string]string)
	for _, item := range strings.Split(raw, "&") {
		k, val, found := strings.Cut(item, "=")
		if !found || k == "" {
			return nil, ErrMalformedData
		}
		fields[k] = val
	}
	return fields, nil
}
