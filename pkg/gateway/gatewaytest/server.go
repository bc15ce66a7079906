// Package gatewaytest provides an in-memory backend speaking the gateway
// protocol, with failure injection for resilience tests.
//
//	srv := gatewaytest.New(t)
//	srv.AddUser("jane@example.com", "secret")
//	c, _ := gateway.New(srv.URL)
//
// Failures are injected with FailNext (status codes), SetDown (connections
// are dropped without a response) and SetLatency (slow responses).
package gatewaytest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/ssokit/pkg/gateway"
	"github.com/dmitrymomot/ssokit/pkg/identity"
	"github.com/dmitrymomot/ssokit/pkg/requestid"
)

// User is an account known to the fake backend.
type User struct {
	ID          uuid.UUID
	Email       string
	Password    string
	DisplayName string
	Superuser   bool
}

type grant struct {
	userID    uuid.UUID
	expiresAt time.Time
}

// Server is the fake backend. All methods are safe for concurrent use.
type Server struct {
	URL string

	srv *httptest.Server

	mu            sync.Mutex
	users         map[string]*User
	access        map[string]grant
	refresh       map[string]uuid.UUID
	tables        map[string][]map[string]any
	invitations   map[string]*identity.Invitation
	impersonating map[uuid.UUID]uuid.UUID
	calls         map[string]int
	requestIDs    map[string]string

	failStatus []int
	down       bool
	latency    time.Duration
	tokenTTL   time.Duration
	seq        int
}

// New starts a fake backend that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		users:         make(map[string]*User),
		access:        make(map[string]grant),
		refresh:       make(map[string]uuid.UUID),
		tables:        make(map[string][]map[string]any),
		invitations:   make(map[string]*identity.Invitation),
		impersonating: make(map[uuid.UUID]uuid.UUID),
		calls:         make(map[string]int),
		requestIDs:    make(map[string]string),
		tokenTTL:      time.Hour,
	}

	s.srv = httptest.NewServer(s.routes())
	s.URL = s.srv.URL
	t.Cleanup(s.srv.Close)
	return s
}

// Close shuts the server down.
func (s *Server) Close() {
	s.srv.Close()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.count, s.inject)

	r.Route("/auth/v1", func(r chi.Router) {
		r.Get("/health", s.health)
		r.Post("/token", s.token)
		r.Post("/signup", s.signup)
		r.Get("/user", s.user)
		r.Post("/logout", s.logout)
	})

	r.Route("/rest/v1", func(r chi.Router) {
		r.Post("/rpc/{name}", s.rpc)
		r.Get("/{resource}", s.selectRows)
		r.Post("/{resource}", s.insertRows)
		r.Patch("/{resource}", s.updateRows)
		r.Delete("/{resource}", s.deleteRows)
	})

	return r
}

// AddUser registers an account without a membership.
func (s *Server) AddUser(email, password string) *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(email, password, "")
}

// SetSuperuser grants or revokes superuser rights.
func (s *Server) SetSuperuser(email string, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[strings.ToLower(email)]; ok {
		u.Superuser = on
	}
}

// AddOrganization stores an organization, assigning an id when missing.
func (s *Server) AddOrganization(org identity.Organization) identity.Organization {
	if org.ID == uuid.Nil {
		org.ID = uuid.New()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[gateway.ResourceOrganizations] = append(s.tables[gateway.ResourceOrganizations], toRow(org))
	return org
}

// AddMembership joins a user to an organization.
func (s *Server) AddMembership(userID, orgID uuid.UUID, role identity.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[gateway.ResourceMemberships] = append(s.tables[gateway.ResourceMemberships],
		toRow(gateway.Membership{UserID: userID, OrganizationID: orgID, Role: role}))
}

// AddInvitation stores an invitation, filling id, token and expiry when
// missing.
func (s *Server) AddInvitation(inv identity.Invitation) identity.Invitation {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	if inv.Token == "" {
		inv.Token = uuid.NewString()
	}
	if inv.ExpiresAt.IsZero() {
		inv.ExpiresAt = time.Now().Add(7 * 24 * time.Hour)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := inv
	s.invitations[inv.Token] = &stored
	return inv
}

// Invitation returns the stored invitation for token.
func (s *Server) Invitation(token string) (identity.Invitation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invitations[token]
	if !ok {
		return identity.Invitation{}, false
	}
	return *inv, true
}

// Identity returns the identity the backend would resolve for email.
func (s *Server) Identity(email string) (identity.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[strings.ToLower(email)]
	if !ok {
		return identity.Identity{}, false
	}
	return s.identityLocked(u), true
}

// Rows returns a copy of a table.
func (s *Server) Rows(table string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, 0, len(s.tables[table]))
	for _, row := range s.tables[table] {
		out = append(out, copyRow(row))
	}
	return out
}

// Impersonating returns the organization a user is impersonating.
func (s *Server) Impersonating(userID uuid.UUID) (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.impersonating[userID]
	return id, ok
}

// IssueSession mints a session for an existing user without a round trip.
func (s *Server) IssueSession(email string) identity.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[strings.ToLower(email)]
	if !ok {
		panic(fmt.Sprintf("gatewaytest: unknown user %q", email))
	}
	at, rt, exp := s.mintLocked(u.ID)
	return identity.Session{AccessToken: at, RefreshToken: rt, ExpiresAt: exp}
}

// ExpireAccessTokens makes every issued access token expired. Refresh
// tokens stay valid.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	past := time.Now().Add(-time.Minute)
	for k, g := range s.access {
		g.expiresAt = past
		s.access[k] = g
	}
}

// RevokeRefreshTokens invalidates every issued refresh token.
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh = make(map[string]uuid.UUID)
}

// SetTokenTTL sets the lifetime of newly issued access tokens.
func (s *Server) SetTokenTTL(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenTTL = d
}

// FailNext makes the next n requests fail with status.
func (s *Server) FailNext(n, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for range n {
		s.failStatus = append(s.failStatus, status)
	}
}

// SetDown drops every connection without a response while on.
func (s *Server) SetDown(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = on
}

// SetLatency delays every response.
func (s *Server) SetLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
}

// Calls reports how many requests hit "METHOD /path", for example
// "POST /auth/v1/token".
func (s *Server) Calls(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[key]
}

// LastRequestID returns the request id header of the latest "METHOD /path"
// call.
func (s *Server) LastRequestID(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requestIDs[key]
}

// ResetCalls zeroes the call counters.
func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = make(map[string]int)
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		key := r.Method + " " + r.URL.Path
		s.calls[key]++
		s.requestIDs[key] = r.Header.Get(requestid.Header)
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		down, latency := s.down, s.latency
		status := 0
		if !down && len(s.failStatus) > 0 {
			status, s.failStatus = s.failStatus[0], s.failStatus[1:]
		}
		s.mu.Unlock()

		if down {
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					_ = conn.Close()
					return
				}
			}
			panic(http.ErrAbortHandler)
		}

		if latency > 0 {
			select {
			case <-time.After(latency):
			case <-r.Context().Done():
				return
			}
		}

		if status != 0 {
			writeError(w, status, "injected_failure", "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, "invalid_request", "malformed form")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var userID uuid.UUID
	switch r.PostForm.Get("grant_type") {
	case "password":
		u, ok := s.users[strings.ToLower(r.PostForm.Get("username"))]
		if !ok || u.Password != r.PostForm.Get("password") {
			writeOAuthError(w, "invalid_grant", "Invalid login credentials")
			return
		}
		userID = u.ID
	case "refresh_token":
		rt := r.PostForm.Get("refresh_token")
		id, ok := s.refresh[rt]
		if !ok {
			writeOAuthError(w, "invalid_grant", "Invalid Refresh Token: Refresh Token Not Found")
			return
		}
		delete(s.refresh, rt)
		userID = id
	default:
		writeOAuthError(w, "unsupported_grant_type", "unsupported grant type")
		return
	}

	s.writeTokensLocked(w, userID)
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var p gateway.SignUpParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "malformed body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[strings.ToLower(p.Email)]; exists {
		writeError(w, http.StatusUnprocessableEntity, "user_already_exists", "User already registered")
		return
	}
	if len(p.Password) < 6 {
		writeError(w, http.StatusUnprocessableEntity, "weak_password", "Password should be at least 6 characters")
		return
	}

	u := s.addUserLocked(p.Email, p.Password, p.DisplayName)
	s.writeTokensLocked(w, u.ID)
}

func (s *Server) user(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.authenticateLocked(w, r, true)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.identityLocked(u))
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.authenticateLocked(w, r, true)
	if !ok {
		return
	}
	for k, g := range s.access {
		if g.userID == u.ID {
			delete(s.access, k)
		}
	}
	for k, id := range s.refresh {
		if id == u.ID {
			delete(s.refresh, k)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) selectRows(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.authenticateLocked(w, r, false); !ok {
		return
	}

	resource := chi.URLParam(r, "resource")
	filters := parseFilters(r)
	out := []map[string]any{}
	for _, row := range s.tables[resource] {
		if matches(row, filters) {
			out = append(out, copyRow(row))
		}
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) insertRows(w http.ResponseWriter, r *http.Request) {
	var row map[string]any
	if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "malformed body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.authenticateLocked(w, r, false); !ok {
		return
	}

	if id, _ := row["id"].(string); id == "" || id == uuid.Nil.String() {
		row["id"] = uuid.NewString()
	}
	resource := chi.URLParam(r, "resource")
	s.tables[resource] = append(s.tables[resource], row)
	writeJSON(w, http.StatusCreated, []map[string]any{copyRow(row)})
}

func (s *Server) updateRows(w http.ResponseWriter, r *http.Request) {
	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "malformed body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.authenticateLocked(w, r, false); !ok {
		return
	}

	filters := parseFilters(r)
	out := []map[string]any{}
	for _, row := range s.tables[chi.URLParam(r, "resource")] {
		if !matches(row, filters) {
			continue
		}
		for k, v := range patch {
			row[k] = v
		}
		out = append(out, copyRow(row))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) deleteRows(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.authenticateLocked(w, r, false); !ok {
		return
	}

	resource := chi.URLParam(r, "resource")
	filters := parseFilters(r)
	kept := s.tables[resource][:0]
	for _, row := range s.tables[resource] {
		if !matches(row, filters) {
			kept = append(kept, row)
		}
	}
	s.tables[resource] = kept
	w.WriteHeader(http.StatusNoContent)
}

// authenticateLocked resolves the bearer token. Without a token it fails
// only when required; a present but expired or unknown token always fails.
func (s *Server) authenticateLocked(w http.ResponseWriter, r *http.Request, required bool) (*User, bool) {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if raw == "" || raw == r.Header.Get("Authorization") {
		if required {
			writeError(w, http.StatusUnauthorized, "no_authorization", "This endpoint requires a Bearer token")
			return nil, false
		}
		return nil, true
	}

	g, ok := s.access[raw]
	if !ok {
		writeError(w, http.StatusUnauthorized, "bad_jwt", "invalid JWT: unable to parse or verify signature")
		return nil, false
	}
	if !time.Now().Before(g.expiresAt) {
		writeError(w, http.StatusUnauthorized, "PGRST301", "JWT expired")
		return nil, false
	}

	for _, u := range s.users {
		if u.ID == g.userID {
			return u, true
		}
	}
	writeError(w, http.StatusUnauthorized, "user_not_found", "User from sub claim in JWT does not exist")
	return nil, false
}

func (s *Server) addUserLocked(email, password, displayName string) *User {
	u := &User{ID: uuid.New(), Email: email, Password: password, DisplayName: displayName}
	s.users[strings.ToLower(email)] = u
	return u
}

func (s *Server) mintLocked(userID uuid.UUID) (string, string, time.Time) {
	s.seq++
	at := fmt.Sprintf("at-%d-%s", s.seq, uuid.NewString())
	rt := fmt.Sprintf("rt-%d-%s", s.seq, uuid.NewString())
	exp := time.Now().Add(s.tokenTTL)
	s.access[at] = grant{userID: userID, expiresAt: exp}
	s.refresh[rt] = userID
	return at, rt, exp
}

func (s *Server) writeTokensLocked(w http.ResponseWriter, userID uuid.UUID) {
	at, rt, _ := s.mintLocked(userID)
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  at,
		"refresh_token": rt,
		"token_type":    "bearer",
		"expires_in":    int64(s.tokenTTL / time.Second),
	})
}

func (s *Server) identityLocked(u *User) identity.Identity {
	id := identity.Identity{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName}
	for _, m := range s.tables[gateway.ResourceMemberships] {
		if fmt.Sprint(m["user_id"]) != u.ID.String() {
			continue
		}
		if orgID, err := uuid.Parse(fmt.Sprint(m["organization_id"])); err == nil {
			id.OrganizationID = orgID
		}
		id.Role = identity.Role(fmt.Sprint(m["role"]))
		break
	}
	if u.Superuser {
		id.Role = identity.RoleSuperAdmin
	}
	return id
}

func (s *Server) memberRoleLocked(userID, orgID uuid.UUID) (identity.Role, bool) {
	for _, m := range s.tables[gateway.ResourceMemberships] {
		if fmt.Sprint(m["user_id"]) == userID.String() && fmt.Sprint(m["organization_id"]) == orgID.String() {
			return identity.Role(fmt.Sprint(m["role"])), true
		}
	}
	return "", false
}

func (s *Server) organizationLocked(id uuid.UUID) (identity.Organization, bool) {
	for _, row := range s.tables[gateway.ResourceOrganizations] {
		if fmt.Sprint(row["id"]) != id.String() {
			continue
		}
		var org identity.Organization
		data, _ := json.Marshal(row)
		if err := json.Unmarshal(data, &org); err != nil {
			return identity.Organization{}, false
		}
		return org, true
	}
	return identity.Organization{}, false
}

func parseFilters(r *http.Request) map[string]string {
	out := make(map[string]string)
	for k, vs := range r.URL.Query() {
		switch k {
		case "select", "order", "limit":
			continue
		}
		if len(vs) > 0 && strings.HasPrefix(vs[0], "eq.") {
			out[k] = strings.TrimPrefix(vs[0], "eq.")
		}
	}
	return out
}

func matches(row map[string]any, filters map[string]string) bool {
	for col, want := range filters {
		v, ok := row[col]
		if !ok || fmt.Sprint(v) != want {
			return false
		}
	}
	return true
}

func toRow(v any) map[string]any {
	data, _ := json.Marshal(v)
	row := make(map[string]any)
	_ = json.Unmarshal(data, &row)
	return row
}

func copyRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "message": message})
}

func writeOAuthError(w http.ResponseWriter, code, description string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": code, "error_description": description})
}
