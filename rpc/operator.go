package rpc

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// ScopeMint authorizes ledger_mint.
const ScopeMint = "ledger:mint"

// JWTConfig configures operator bearer tokens. Operator methods are disabled
// when Secret is empty.
type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience string
	MaxSkew  time.Duration
}

var errOperatorDisabled = errors.New("operator authentication not configured")

type operatorAuth struct {
	cfg    JWTConfig
	secret []byte
}

func newOperatorAuth(cfg JWTConfig) *operatorAuth {
	if cfg.MaxSkew <= 0 {
		cfg.MaxSkew = time.Minute
	}
	return &operatorAuth{cfg: cfg, secret: []byte(strings.TrimSpace(cfg.Secret))}
}

// require checks the bearer token on r and that it grants scope.
func (a *operatorAuth) require(r *http.Request, scope string) error {
	if a == nil || len(a.secret) == 0 {
		return errOperatorDisabled
	}
	raw := extractBearer(r.Header.Get("Authorization"))
	if raw == "" {
		return errors.New("missing bearer token")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(a.cfg.MaxSkew),
		jwt.WithExpirationRequired(),
	}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.cfg.Issuer))
	}
	if a.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(a.cfg.Audience))
	}
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return errors.New("invalid token")
	}
	for _, granted := range extractScopes(claims) {
		if granted == scope {
			return nil
		}
	}
	return fmt.Errorf("token lacks scope %q", scope)
}

func extractScopes(claims jwt.MapClaims) []string {
	switch v := claims["scope"].(type) {
	case string:
		return strings.Fields(v)
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, entry := range v {
			if s, ok := entry.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func extractBearer(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
