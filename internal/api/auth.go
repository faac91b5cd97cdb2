package api

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	// SessionCookieName carries a signed admin session
	SessionCookieName = "tanks_admin"

	// SessionDuration is how long an admin login lasts
	SessionDuration = 24 * time.Hour

	CookieHTTPOnly = true
	CookieSameSite = http.SameSiteLaxMode
)

// AdminGuard protects game control (new game, pause, resume) behind a shared token.
// A disabled guard (empty token) lets every request through.
type AdminGuard struct {
	token     string
	secretKey []byte
	log       zerolog.Logger
	now       func() time.Time
}

// NewAdminGuard creates a guard for token; cookies are signed with a per-process key
func NewAdminGuard(token string, logger zerolog.Logger) *AdminGuard {
	secretKey := make([]byte, 32)
	if _, err := rand.Read(secretKey); err != nil {
		logger.Warn().Err(err).Msg("failed to generate session key, deriving from token")
		sum := sha256.Sum256([]byte("tanks-admin:" + token))
		secretKey = sum[:]
	}
	return &AdminGuard{
		token:     token,
		secretKey: secretKey,
		log:       logger.With().Str("component", "auth").Logger(),
		now:       time.Now,
	}
}

// Enabled reports whether a token is configured
func (g *AdminGuard) Enabled() bool {
	return g != nil && g.token != ""
}

// Authorized checks the bearer token, X-Admin-Token header, token query parameter or session cookie
func (g *AdminGuard) Authorized(r *http.Request) bool {
	if !g.Enabled() {
		return true
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return g.checkToken(strings.TrimPrefix(auth, "Bearer "))
	}
	if t := r.Header.Get("X-Admin-Token"); t != "" {
		return g.checkToken(t)
	}
	if t := r.URL.Query().Get("token"); t != "" {
		return g.checkToken(t)
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return g.validCookie(cookie.Value) == nil
	}
	return false
}

func (g *AdminGuard) checkToken(t string) bool {
	return hmac.Equal([]byte(t), []byte(g.token))
}

// Middleware rejects unauthorized requests with 401
func (g *AdminGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Authorized(r) {
			RecordConnectionRejected("unauthorized")
			writeError(w, "admin authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// encodeCookie signs an expiry time: base64(expiry.signature)
func (g *AdminGuard) encodeCookie(expires time.Time) string {
	payload := strconv.FormatInt(expires.Unix(), 10)
	return base64.URLEncoding.EncodeToString([]byte(payload + "." + g.sign(payload)))
}

func (g *AdminGuard) sign(payload string) string {
	mac := hmac.New(sha256.New, g.secretKey)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// validCookie verifies the signature and expiry of a session cookie
func (g *AdminGuard) validCookie(value string) error {
	decoded, err := base64.URLEncoding.DecodeString(value)
	if err != nil {
		return errors.New("invalid cookie encoding")
	}

	parts := strings.SplitN(string(decoded), ".", 2)
	if len(parts) != 2 {
		return errors.New("invalid cookie format")
	}
	if !hmac.Equal([]byte(parts[1]), []byte(g.sign(parts[0]))) {
		return errors.New("invalid cookie signature")
	}

	expires, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return errors.New("invalid cookie expiry")
	}
	if g.now().Unix() >= expires {
		return errors.New("session expired")
	}
	return nil
}

// HandleLogin exchanges {"token": "..."} for a session cookie
func (g *AdminGuard) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request", http.StatusBadRequest)
		return
	}
	if !g.Enabled() || !g.checkToken(req.Token) {
		RecordConnectionRejected("unauthorized")
		writeError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	expires := g.now().Add(SessionDuration)
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    g.encodeCookie(expires),
		Path:     "/",
		MaxAge:   int(SessionDuration.Seconds()),
		HttpOnly: CookieHTTPOnly,
		Secure:   r.TLS != nil,
		SameSite: CookieSameSite,
	})
	g.log.Info().Str("ip", GetClientIP(r)).Msg("admin session created")
	writeJSON(w, AuthStatus{Authenticated: true, Required: true, ExpiresAt: expires.Unix()})
}

// HandleLogout clears the session cookie
func (g *AdminGuard) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: CookieHTTPOnly,
		SameSite: CookieSameSite,
	})
	writeJSON(w, AuthStatus{Authenticated: !g.Enabled(), Required: g.Enabled()})
}

// AuthStatus returns the current authentication status
type AuthStatus struct {
	Authenticated bool  `json:"authenticated"`
	Required      bool  `json:"required"`
	ExpiresAt     int64 `json:"expiresAt,omitempty"`
}

// HandleAuthStatus reports whether the caller may use control routes
func (g *AdminGuard) HandleAuthStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, AuthStatus{Authenticated: g.Authorized(r), Required: g.Enabled()})
}
