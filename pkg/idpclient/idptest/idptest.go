// Package idptest runs an in-process identity provider with real TOTP
// semantics for tests. It speaks the same wire surface idpclient consumes:
// password sign-in, factor listing, enroll, challenge, verify and unenroll.
//
// Access tokens are signed HS256 JWTs to match what a real provider issues;
// nothing in the gateway ever parses them, they are validated here only.
package idptest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
)

// ServiceKey is the API key the fake provider expects on every request.
const ServiceKey = "idptest-service-key"

// User is a provider-side identity seeded into the fake.
type User struct {
	ID       string
	Email    string
	Password string
}

// Factor is a registered TOTP factor, including its shared secret so tests
// can compute valid codes.
type Factor struct {
	ID           string
	Type         string
	FriendlyName string
	Status       string
	Secret       string
}

type challenge struct {
	factorID string
	userID   string
	expires  time.Time
}

// Server is the fake provider. All exported methods are safe for concurrent
// use with in-flight HTTP traffic.
type Server struct {
	mu         sync.Mutex
	srv        *httptest.Server
	signingKey []byte

	usersByEmail map[string]*User
	usersByID    map[string]*User
	tokens       map[string]string // access token -> user id
	factors      map[string][]*Factor
	challenges   map[string]*challenge

	failStatus int // when non-zero every request fails with this status
}

// New starts a fake provider and registers shutdown with t.Cleanup.
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		signingKey:   []byte("idptest-signing-key-0001"),
		usersByEmail: make(map[string]*User),
		usersByID:    make(map[string]*User),
		tokens:       make(map[string]string),
		factors:      make(map[string][]*Factor),
		challenges:   make(map[string]*challenge),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", s.handleToken)
	mux.HandleFunc("GET /user", s.handleGetUser)
	mux.HandleFunc("GET /factors", s.handleListFactors)
	mux.HandleFunc("POST /factors", s.handleEnroll)
	mux.HandleFunc("POST /factors/{id}/challenge", s.handleChallenge)
	mux.HandleFunc("POST /factors/{id}/verify", s.handleVerify)
	mux.HandleFunc("DELETE /factors/{id}", s.handleUnenroll)

	s.srv = httptest.NewServer(s.gate(mux))
	t.Cleanup(s.srv.Close)
	return s
}

// URL returns the provider base URL.
func (s *Server) URL() string { return s.srv.URL }

// AddUser seeds an identity and returns it with a generated id.
func (s *Server) AddUser(email, password string) User {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := &User{ID: uuid.NewString(), Email: email, Password: password}
	s.usersByEmail[email] = u
	s.usersByID[u.ID] = u
	return *u
}

// SeedVerifiedFactor registers an already-verified TOTP factor for a user,
// as if enrollment and first verification happened in the past.
func (s *Server) SeedVerifiedFactor(userID, friendlyName string) Factor {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      friendlyName,
		AccountName: s.usersByID[userID].Email,
	})
	if err != nil {
		panic(err)
	}

	f := &Factor{
		ID:           uuid.NewString(),
		Type:         "totp",
		FriendlyName: friendlyName,
		Status:       "verified",
		Secret:       key.Secret(),
	}
	s.factors[userID] = append(s.factors[userID], f)
	return *f
}

// CurrentCode computes the valid TOTP code for a factor right now.
func (s *Server) CurrentCode(t testing.TB, factorID string) string {
	t.Helper()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, fs := range s.factors {
		for _, f := range fs {
			if f.ID == factorID {
				code, err := totp.GenerateCode(f.Secret, time.Now())
				if err != nil {
					t.Fatalf("generate totp code: %v", err)
				}
				return code
			}
		}
	}
	t.Fatalf("unknown factor %q", factorID)
	return ""
}

// TokenFor mints a valid bearer token for a user without a sign-in round trip.
func (s *Server) TokenFor(t testing.TB, userID string) string {
	t.Helper()

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.usersByID[userID]
	if !ok {
		t.Fatalf("unknown user %q", userID)
	}
	return s.issueToken(u)
}

// FactorsFor returns copies of a user's registered factors.
func (s *Server) FactorsFor(userID string) []Factor {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Factor, 0, len(s.factors[userID]))
	for _, f := range s.factors[userID] {
		out = append(out, *f)
	}
	return out
}

// RemoveFactors drops all of a user's factors provider-side without touching
// gateway state. Used to manufacture drift in tests.
func (s *Server) RemoveFactors(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.factors, userID)
}

// FailWith makes every subsequent request fail with the given status.
// Pass 0 to restore normal behaviour.
func (s *Server) FailWith(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStatus = status
}

// issueToken signs a short-lived HS256 access token. Caller holds s.mu.
func (s *Server) issueToken(u *User) string {
	claims := jwt.MapClaims{
		"sub":   u.ID,
		"email": u.Email,
		"iss":   "idptest",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"iat":   time.Now().Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		panic(err)
	}
	s.tokens[signed] = u.ID
	return signed
}

// gate enforces the service key and the forced-failure switch before any
// endpoint logic runs.
func (s *Server) gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		fail := s.failStatus
		s.mu.Unlock()

		if fail != 0 {
			writeErr(w, fail, "server_error", "forced failure")
			return
		}
		if r.Header.Get("apikey") != ServiceKey {
			writeErr(w, http.StatusUnauthorized, "invalid_api_key", "missing or invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authed resolves the bearer token on r. The signature is checked as a real
// provider would before the token map is consulted.
func (s *Server) authed(r *http.Request) (*User, bool) {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if raw == "" {
		return nil, false
	}

	_, err := jwt.Parse(raw, func(tok *jwt.Token) (any, error) {
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.tokens[raw]
	if !ok {
		return nil, false
	}
	u, ok := s.usersByID[userID]
	return u, ok
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("grant_type") != "password" {
		writeErr(w, http.StatusBadRequest, "unsupported_grant_type", "only password grant is supported")
		return
	}

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_request", "malformed body")
		return
	}

	s.mu.Lock()
	u, ok := s.usersByEmail[req.Email]
	if !ok || u.Password != req.Password {
		s.mu.Unlock()
		writeErr(w, http.StatusBadRequest, "invalid_credentials", "Invalid login credentials")
		return
	}
	token := s.issueToken(u)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "bearer",
		"user":         map[string]string{"id": u.ID, "email": u.Email},
	})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, ok := s.authed(r)
	if !ok {
		writeErr(w, http.StatusUnauthorized, "bad_jwt", "invalid or expired token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": u.ID, "email": u.Email})
}

func (s *Server) handleListFactors(w http.ResponseWriter, r *http.Request) {
	u, ok := s.authed(r)
	if !ok {
		writeErr(w, http.StatusUnauthorized, "bad_jwt", "invalid or expired token")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]map[string]string, 0)
	verifiedTOTP := make([]map[string]string, 0)
	for _, f := range s.factors[u.ID] {
		wire := map[string]string{
			"id":            f.ID,
			"factor_type":   f.Type,
			"friendly_name": f.FriendlyName,
			"status":        f.Status,
		}
		all = append(all, wire)
		if f.Type == "totp" && f.Status == "verified" {
			verifiedTOTP = append(verifiedTOTP, wire)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"all": all, "totp": verifiedTOTP})
}

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	u, ok := s.authed(r)
	if !ok {
		writeErr(w, http.StatusUnauthorized, "bad_jwt", "invalid or expired token")
		return
	}

	var req struct {
		FactorType   string `json:"factor_type"`
		FriendlyName string `json:"friendly_name"`
		Issuer       string `json:"issuer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FactorType != "totp" {
		writeErr(w, http.StatusBadRequest, "invalid_request", "only totp enrollment is supported")
		return
	}

	issuer := req.Issuer
	if issuer == "" {
		issuer = "idptest"
	}
	key, err := totp.Generate(totp.GenerateOpts{Issuer: issuer, AccountName: u.Email})
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "server_error", "totp generation failed")
		return
	}

	f := &Factor{
		ID:           uuid.NewString(),
		Type:         "totp",
		FriendlyName: req.FriendlyName,
		Status:       "unverified",
		Secret:       key.Secret(),
	}

	s.mu.Lock()
	s.factors[u.ID] = append(s.factors[u.ID], f)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"id":   f.ID,
		"type": f.Type,
		"totp": map[string]string{"secret": f.Secret, "uri": key.URL()},
	})
}

func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	u, ok := s.authed(r)
	if !ok {
		writeErr(w, http.StatusUnauthorized, "bad_jwt", "invalid or expired token")
		return
	}

	factorID := r.PathValue("id")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lookupFactor(u.ID, factorID) == nil {
		writeErr(w, http.StatusNotFound, "mfa_factor_not_found", "factor not found")
		return
	}

	ch := &challenge{
		factorID: factorID,
		userID:   u.ID,
		expires:  time.Now().Add(5 * time.Minute),
	}
	id := uuid.NewString()
	s.challenges[id] = ch

	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	u, ok := s.authed(r)
	if !ok {
		writeErr(w, http.StatusUnauthorized, "bad_jwt", "invalid or expired token")
		return
	}

	var req struct {
		ChallengeID string `json:"challenge_id"`
		Code        string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_request", "malformed body")
		return
	}

	factorID := r.PathValue("id")

	s.mu.Lock()
	ch, ok := s.challenges[req.ChallengeID]
	if !ok || ch.factorID != factorID || ch.userID != u.ID || time.Now().After(ch.expires) {
		s.mu.Unlock()
		writeErr(w, http.StatusUnprocessableEntity, "mfa_challenge_expired", "challenge not found or expired")
		return
	}
	delete(s.challenges, req.ChallengeID)

	f := s.lookupFactor(u.ID, factorID)
	if f == nil {
		s.mu.Unlock()
		writeErr(w, http.StatusNotFound, "mfa_factor_not_found", "factor not found")
		return
	}

	if !totp.Validate(req.Code, f.Secret) {
		s.mu.Unlock()
		writeErr(w, http.StatusUnprocessableEntity, "mfa_verification_failed", "Invalid TOTP code entered")
		return
	}

	f.Status = "verified"
	token := s.issueToken(u)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": token,
		"token_type":   "bearer",
	})
}

func (s *Server) handleUnenroll(w http.ResponseWriter, r *http.Request) {
	u, ok := s.authed(r)
	if !ok {
		writeErr(w, http.StatusUnauthorized, "bad_jwt", "invalid or expired token")
		return
	}

	factorID := r.PathValue("id")

	s.mu.Lock()
	defer s.mu.Unlock()

	fs := s.factors[u.ID]
	for i, f := range fs {
		if f.ID == factorID {
			s.factors[u.ID] = append(fs[:i], fs[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]string{"id": factorID})
			return
		}
	}
	writeErr(w, http.StatusNotFound, "mfa_factor_not_found", "factor not found")
}

// lookupFactor finds a user's factor. Caller holds s.mu.
func (s *Server) lookupFactor(userID, factorID string) *Factor {
	for _, f := range s.factors[userID] {
		if f.ID == factorID {
			return f
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, errCode, msg string) {
	writeJSON(w, code, map[string]string{"error_code": errCode, "msg": msg})
}
