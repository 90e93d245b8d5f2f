package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"

	"donortrack/internal/activity"
	"donortrack/internal/store"
)

// AuthConfig enables bearer auth when JWTSecret is set. With no secret the
// API is open and X-Actor-Id, if present, names the actor for the activity log.
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

func (c AuthConfig) enabled() bool { return strings.TrimSpace(c.JWTSecret) != "" }

func (c AuthConfig) ttl() time.Duration {
	if c.TokenTTL > 0 {
		return c.TokenTTL
	}
	return 12 * time.Hour
}

type jwtClaims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles,omitempty"`
}

// authenticateJWT verifies an HS256 token and returns its subject.
func authenticateJWT(token string, secret string) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &jwtClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	if !parsed.Valid {
		return "", errors.New("invalid token")
	}
	if claims.Subject == "" {
		return "", errors.New("subject claim required")
	}
	return claims.Subject, nil
}

func signToken(cfg AuthConfig, subject string, roles []string, now time.Time) (string, time.Time, error) {
	expires := now.Add(cfg.ttl())
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			Issuer:    "donortrack",
		},
		Roles: roles,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
	return signed, expires, err
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// publicPaths never require a token.
func publicPaths(basePath string) []string {
	return []string{
		path.Join(basePath, "health"),
		path.Join(basePath, "auth/login"),
		path.Join(basePath, "openapi.json"),
	}
}

func newAuthMiddleware(basePath string, cfg AuthConfig) func(http.Handler) http.Handler {
	public := map[string]bool{}
	for _, p := range publicPaths(basePath) {
		public[p] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !strings.HasPrefix(req.URL.Path, basePath) || public[req.URL.Path] {
				next.ServeHTTP(w, req)
				return
			}
			if !cfg.enabled() {
				if actor := strings.TrimSpace(req.Header.Get("X-Actor-Id")); actor != "" {
					req = req.WithContext(activity.WithActor(req.Context(), actor))
				}
				next.ServeHTTP(w, req)
				return
			}
			token, ok := bearerToken(strings.TrimSpace(req.Header.Get("Authorization")))
			if !ok {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil))
				return
			}
			subject, err := authenticateJWT(token, cfg.JWTSecret)
			if err != nil {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
				return
			}
			next.ServeHTTP(w, req.WithContext(activity.WithActor(req.Context(), subject)))
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.GetStatus())
	_ = json.NewEncoder(w).Encode(err)
}

// registerLogin issues a token for a username: PMMs known to the store get
// the pmm role, everyone else is a coordinator.
func registerLogin(api huma.API, st *store.Store, cfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Issue a bearer token for a username",
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body LoginRequest
	}) (*response[LoginResponse], error) {
		username := strings.TrimSpace(input.Body.Username)
		if username == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "username is required", map[string]any{"field": "username"})
		}
		if !cfg.enabled() {
			return nil, newAPIError(http.StatusBadRequest, "auth_disabled", "authentication is not configured on this server", nil)
		}
		pmms, err := st.ListPMMs(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		roles := []string{"coordinator"}
		for _, p := range pmms {
			if p == username {
				roles = []string{"pmm"}
				break
			}
		}
		token, expires, err := signToken(cfg, username, roles, time.Now())
		if err != nil {
			return nil, handleError(err)
		}
		return ok(LoginResponse{Token: token, ExpiresAt: expires.UTC().Format(time.RFC3339), Roles: roles}), nil
	})
}
