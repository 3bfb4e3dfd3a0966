package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"playcourt/internal/config"
)

// Identity is the authenticated caller attached to the request context.
type Identity struct {
	UserID int64
	Name   string
	Admin  bool
}

type identityKey struct{}

// IdentityFrom extracts the caller identity set by the auth middleware.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// Auth authenticates requests with a static API key and resolves the key
// to the user it acts as.
type Auth struct {
	cfg       config.APIAuthConfig
	keysByKey map[string]config.APIClientKey
	limiter   *rateLimiter
}

func NewAuth(cfg config.APIConfig) *Auth {
	m := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		m[k.Key] = k
	}
	return &Auth{
		cfg:       cfg.Auth,
		keysByKey: m,
		limiter:   newRateLimiter(cfg.RateLimit),
	}
}

func (a *Auth) headerName() string {
	h := strings.TrimSpace(strings.ToLower(a.cfg.HeaderAPIKey))
	if h == "" {
		h = "x-api-key"
	}
	return h
}

// Wrap enforces auth and per-key rate limiting before the handler runs.
func (a *Auth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := a.authenticate(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}

		if !a.limiter.allow(a.limiterKey(r)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey{}, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

var (
	errMissingAPIKey = errors.New("missing api key header")
	errInvalidAPIKey = errors.New("invalid api key")
)

func (a *Auth) authenticate(r *http.Request) (Identity, error) {
	if !a.cfg.Enabled {
		// Dev mode: trust the caller-supplied user id.
		userID, _ := strconv.ParseInt(strings.TrimSpace(r.Header.Get("x-user-id")), 10, 64)
		return Identity{UserID: userID, Name: "dev", Admin: true}, nil
	}

	apiKey := strings.TrimSpace(r.Header.Get(a.headerName()))
	if apiKey == "" {
		return Identity{}, errMissingAPIKey
	}

	client, ok := a.keysByKey[apiKey]
	if !ok || subtle.ConstantTimeCompare([]byte(client.Key), []byte(apiKey)) != 1 {
		return Identity{}, errInvalidAPIKey
	}

	return Identity{UserID: client.UserID, Name: client.Name, Admin: client.Admin}, nil
}

func (a *Auth) limiterKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(a.headerName())); apiKey != "" {
		return apiKey
	}
	return remoteHost(r)
}
