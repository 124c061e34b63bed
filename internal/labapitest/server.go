// Package labapitest runs an in-process reservation API for tests. It speaks
// the same wire contract as the real server: OAuth2 form login, bearer JWTs,
// FastAPI-style error bodies and soft-deleting reservations.
package labapitest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	jwt "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultUsername = "admin"
	DefaultPassword = "admin123"
)

type user struct {
	id       int64
	username string
	hash     []byte
	fullName string
	email    string
}

type reservation struct {
	ID         int64      `json:"id"`
	LabName    string     `json:"lab_name"`
	ReservedBy string     `json:"reserved_by"`
	Purpose    string     `json:"purpose"`
	StartTime  time.Time  `json:"start_time"`
	Active     bool       `json:"active"`
	CreatedAt  time.Time  `json:"created_at"`
	OwnerID    int64      `json:"owner_id"`
	deletedAt  *time.Time
}

type reservationIn struct {
	LabName    *string `json:"lab_name"`
	ReservedBy *string `json:"reserved_by"`
	Purpose    *string `json:"purpose"`
	StartTime  *string `json:"start_time"`
	Active     *bool   `json:"active"`
}

type auditEntry struct {
	ID          int64     `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	UserID      int64     `json:"user_id"`
	Action      string    `json:"action"`
	TargetModel string    `json:"target_model"`
	TargetID    int64     `json:"target_id"`
	Details     *string   `json:"details"`
}

type forced struct {
	status int
	detail string
}

// Server is a fake reservation API. Create it with New and stop it with Close.
type Server struct {
	URL string

	srv *httptest.Server

	mu           sync.Mutex
	secret       []byte
	users        map[string]*user
	reservations []*reservation
	audit        []auditEntry
	nextID       int64
	failures     []forced
	chatField    string
	chatAnswer   string

	requests atomic.Int64
	paths    sync.Map
}

// New starts a server seeded with the DefaultUsername/DefaultPassword account.
func New() *Server {
	s := &Server{
		secret:     []byte("labapitest-secret"),
		users:      make(map[string]*user),
		nextID:     1,
		chatField:  "respuesta",
		chatAnswer: "El laboratorio más reservado es Lab A.",
	}
	s.addUser(DefaultUsername, DefaultPassword, "Administrator", "admin@lab.test")
	s.srv = httptest.NewServer(s.routes())
	s.URL = s.srv.URL
	return s
}

func (s *Server) Close() {
	s.srv.Close()
}

// Client returns an HTTP client wired to the server.
func (s *Server) Client() *http.Client {
	return s.srv.Client()
}

// Requests reports how many requests reached the server.
func (s *Server) Requests() int {
	return int(s.requests.Load())
}

// RequestsTo reports how many requests reached path, e.g. "/reservations/".
func (s *Server) RequestsTo(path string) int {
	v, ok := s.paths.Load(path)
	if !ok {
		return 0
	}
	return int(v.(*atomic.Int64).Load())
}

// ExpireTokens invalidates every token issued so far.
func (s *Server) ExpireTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secret = append(s.secret, 'x')
}

// Fail makes the next authenticated request answer status with detail.
func (s *Server) Fail(status int, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, forced{status: status, detail: detail})
}

// SetChatReply sets the field name and text of /chat-ia answers. An empty
// field answers with an empty object.
func (s *Server) SetChatReply(field, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatField = field
	s.chatAnswer = answer
}

// Token issues a valid token for username without a login round trip.
func (s *Server) Token(username string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, err := s.sign(username)
	if err != nil {
		panic(err)
	}
	return token
}

func (s *Server) addUser(username, password, fullName, email string) *user {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	u := &user{
		id:       int64(len(s.users) + 1),
		username: username,
		hash:     hash,
		fullName: fullName,
		email:    email,
	}
	s.users[username] = u
	return u
}

func (s *Server) routes() http.Handler {
	root := chi.NewRouter()
	root.Use(s.count)

	root.Post("/auth/token", s.login)
	root.Post("/auth/register", s.register)

	root.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/reservations/", s.listReservations)
		r.Post("/reservations/", s.createReservation)
		r.Get("/reservations/analysis/popular-times", s.popularTimes)
		r.Get("/reservations/{id}", s.getReservation)
		r.Put("/reservations/{id}", s.updateReservation)
		r.Delete("/reservations/{id}", s.deleteReservation)
		r.Post("/chat-ia", s.chat)
		r.Get("/audit/", s.listAudit)
	})
	return root
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		v, _ := s.paths.LoadOrStore(r.URL.Path, new(atomic.Int64))
		v.(*atomic.Int64).Add(1)
		next.ServeHTTP(w, r)
	})
}

type ctxKey struct{}

func withUser(r *http.Request, u *user) context.Context {
	return context.WithValue(r.Context(), ctxKey{}, u)
}

func userFrom(r *http.Request) *user {
	return r.Context().Value(ctxKey{}).(*user)
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		s.mu.Lock()
		u, err := s.verify(raw)
		var failure *forced
		if err == nil && len(s.failures) > 0 {
			failure = &s.failures[0]
			s.failures = s.failures[1:]
		}
		s.mu.Unlock()

		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeDetail(w, http.StatusUnauthorized, "No se pudieron validar las credenciales")
			return
		}
		if failure != nil {
			writeDetail(w, failure.status, failure.detail)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r, u)))
	})
}

func (s *Server) sign(username string) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// verify must be called with s.mu held.
func (s *Server) verify(raw string) (*user, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	u, ok := s.users[claims.Subject]
	if !ok {
		return nil, errors.New("unknown user")
	}
	return u, nil
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid form")
		return
	}
	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")
	if username == "" || password == "" {
		writeValidation(w, "body", "username", "field required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok || bcrypt.CompareHashAndPassword(u.hash, []byte(password)) != nil {
		writeDetail(w, http.StatusUnauthorized, "Usuario o contraseña incorrectos")
		return
	}
	s.writeToken(w, http.StatusOK, u.username)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
		Email    string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.users[payload.Username]; taken {
		writeDetail(w, http.StatusBadRequest, "El nombre de usuario ya existe")
		return
	}
	u := s.addUser(payload.Username, payload.Password, payload.FullName, payload.Email)
	s.writeToken(w, http.StatusCreated, u.username)
}

// writeToken must be called with s.mu held.
func (s *Server) writeToken(w http.ResponseWriter, status int, username string) {
	token, err := s.sign(username)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, status, map[string]string{"access_token": token, "token_type": "bearer"})
}

func (s *Server) listReservations(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r)
	labName := strings.ToLower(r.URL.Query().Get("lab_name"))
	var day string
	if raw := r.URL.Query().Get("start_date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeValidation(w, "query", "start_date", "Input should be a valid date")
			return
		}
		day = parsed.Format("2006-01-02")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*reservation{}
	for _, res := range s.reservations {
		if res.OwnerID != u.id || res.deletedAt != nil {
			continue
		}
		if labName != "" && !strings.Contains(strings.ToLower(res.LabName), labName) {
			continue
		}
		if day != "" && res.StartTime.Format("2006-01-02") != day {
			continue
		}
		out = append(out, res)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createReservation(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r)
	in, ok := decodeReservation(w, r)
	if !ok {
		return
	}
	if in.LabName == nil || in.ReservedBy == nil || in.Purpose == nil || in.StartTime == nil {
		writeValidation(w, "body", "lab_name", "field required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	res := &reservation{
		ID:        s.nextID,
		CreatedAt: time.Now().UTC(),
		OwnerID:   u.id,
		Active:    true,
	}
	s.nextID++
	if err := apply(res, in); err != nil {
		writeValidation(w, "body", "start_time", err.Error())
		return
	}
	s.reservations = append(s.reservations, res)
	s.record(u.id, "create", res.ID)
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) getReservation(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.find(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) updateReservation(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeReservation(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.find(w, r)
	if !ok {
		return
	}
	updated := *res
	if err := apply(&updated, in); err != nil {
		writeValidation(w, "body", "start_time", err.Error())
		return
	}
	*res = updated
	s.record(userFrom(r).id, "update", res.ID)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) deleteReservation(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.find(w, r)
	if !ok {
		return
	}
	now := time.Now().UTC()
	res.deletedAt = &now
	s.record(userFrom(r).id, "delete", res.ID)
	w.WriteHeader(http.StatusNoContent)
}

// find must be called with s.mu held.
func (s *Server) find(w http.ResponseWriter, r *http.Request) (*reservation, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeValidation(w, "path", "id", "Input should be a valid integer")
		return nil, false
	}
	u := userFrom(r)
	for _, res := range s.reservations {
		if res.ID == id && res.OwnerID == u.id && res.deletedAt == nil {
			return res, true
		}
	}
	writeDetail(w, http.StatusNotFound, "Reserva no encontrada o sin permisos")
	return nil, false
}

func (s *Server) popularTimes(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hours := map[int]int{}
	labs := map[string]int{}
	for _, res := range s.reservations {
		if res.deletedAt != nil {
			continue
		}
		hours[res.StartTime.Hour()]++
		labs[res.LabName]++
	}

	type hourCount struct {
		Hour  float64 `json:"hour"`
		Count int     `json:"count"`
	}
	type labCount struct {
		LabName string `json:"lab_name"`
		Count   int    `json:"count"`
	}
	popularHours := []hourCount{}
	for h, c := range hours {
		popularHours = append(popularHours, hourCount{Hour: float64(h), Count: c})
	}
	sort.Slice(popularHours, func(i, j int) bool { return popularHours[i].Hour < popularHours[j].Hour })
	popularLabs := []labCount{}
	for name, c := range labs {
		popularLabs = append(popularLabs, labCount{LabName: name, Count: c})
	}
	sort.Slice(popularLabs, func(i, j int) bool {
		if popularLabs[i].Count != popularLabs[j].Count {
			return popularLabs[i].Count > popularLabs[j].Count
		}
		return popularLabs[i].LabName < popularLabs[j].LabName
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"popular_hours": popularHours,
		"popular_labs":  popularLabs,
	})
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	s.mu.Lock()
	field, answer := s.chatField, s.chatAnswer
	s.mu.Unlock()
	if field == "" {
		writeJSON(w, http.StatusOK, map[string]string{})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{field: answer})
}

func (s *Server) listAudit(w http.ResponseWriter, r *http.Request) {
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := []auditEntry{}
	for i := len(s.audit) - 1; i >= 0; i-- {
		out = append(out, s.audit[i])
	}
	if skip > len(out) {
		skip = len(out)
	}
	out = out[skip:]
	if limit >= 0 && limit < len(out) {
		out = out[:limit]
	}
	writeJSON(w, http.StatusOK, out)
}

// record must be called with s.mu held.
func (s *Server) record(userID int64, action string, targetID int64) {
	s.audit = append(s.audit, auditEntry{
		ID:          int64(len(s.audit) + 1),
		Timestamp:   time.Now().UTC(),
		UserID:      userID,
		Action:      action,
		TargetModel: "reservation",
		TargetID:    targetID,
	})
}

func decodeReservation(w http.ResponseWriter, r *http.Request) (reservationIn, bool) {
	var in reservationIn
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON")
		return in, false
	}
	if in.LabName != nil && len([]rune(*in.LabName)) < 3 {
		writeValidation(w, "body", "lab_name", "String should have at least 3 characters")
		return in, false
	}
	return in, true
}

func apply(res *reservation, in reservationIn) error {
	if in.LabName != nil {
		res.LabName = *in.LabName
	}
	if in.ReservedBy != nil {
		res.ReservedBy = *in.ReservedBy
	}
	if in.Purpose != nil {
		res.Purpose = *in.Purpose
	}
	if in.Active != nil {
		res.Active = *in.Active
	}
	if in.StartTime != nil {
		t, err := time.Parse(time.RFC3339Nano, *in.StartTime)
		if err != nil {
			return errors.New("Input should be a valid datetime")
		}
		res.StartTime = t.UTC()
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeValidation(w http.ResponseWriter, loc, field, msg string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"detail": []map[string]any{{"loc": []string{loc, field}, "msg": msg, "type": "value_error"}},
	})
}
