// Package mockapi is an in-memory stand-in for the EcoSort backend. It serves
// the same routes and envelopes so the smoke runner can be exercised without
// a database, and lets tests force failures per route.
package mockapi

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ecosort/smoke/internal/models"
)

type fault struct {
	status    int
	malformed bool
}

type Server struct {
	log *slog.Logger
	now func() time.Time

	mu              sync.Mutex
	users           []models.User
	classifications []models.Classification
	trucks          map[string]*models.Truck
	faults          map[string]fault
	calls           []string
}

func New(l *slog.Logger) *Server {
	return &Server{
		log:    l,
		now:    func() time.Time { return time.Now().UTC() },
		trucks: map[string]*models.Truck{},
		faults: map[string]fault{},
	}
}

// Fail makes every subsequent method+path request answer with status and an
// error envelope.
func (s *Server) Fail(method, path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[method+" "+path] = fault{status: status}
}

// Malformed makes method+path answer 200 with a body that is not JSON.
func (s *Server) Malformed(method, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[method+" "+path] = fault{status: http.StatusOK, malformed: true}
}

// Calls returns the requests seen so far as "METHOD /path", in order.
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// SeedUser stores u as if it had been created earlier.
func (s *Server) SeedUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	s.users = append(s.users, u)
}

// Routes served, relative to the mount point.
const (
	pathHealth          = "/health"
	pathUsers           = "/users"
	pathClassifications = "/waste-classifications"
	pathStats           = "/waste-classifications/stats"
	pathTrucks          = "/trucks"
)

var knownPaths = map[string]bool{
	pathHealth: true, pathUsers: true, pathClassifications: true, pathStats: true, pathTrucks: true,
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.withJSON, s.withAccessLog, instrument, recoverer, s.withFaults)
	r.Get(pathHealth, s.handleHealth)
	r.Get(pathUsers, s.listUsers)
	r.Post(pathUsers, s.createUser)
	r.Get(pathClassifications, s.listClassifications)
	r.Post(pathClassifications, s.createClassification)
	r.Get(pathStats, s.stats)
	r.Get(pathTrucks, s.listTrucks)
	r.Post(pathTrucks, s.upsertTruck)
	return r
}

func (s *Server) withJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// recoverer turns handler panics into a 500 envelope
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				writeErr(w, http.StatusInternalServerError, "internal")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		start := time.Now()
		defer func() {
			s.log.Info("http", slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.Int("status", sw.code), slog.String("request_id", r.Header.Get("X-Request-ID")), slog.String("duration", time.Since(start).String()))
		}()
		next.ServeHTTP(sw, r)
	})
}

// withFaults records the call and short-circuits injected failures.
func (s *Server) withFaults(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + routePath(r)
		s.mu.Lock()
		s.calls = append(s.calls, key)
		f, ok := s.faults[key]
		s.mu.Unlock()
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		if f.malformed {
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(`{"success": true, "data": `))
			return
		}
		writeErr(w, f.status, http.StatusText(f.status))
	})
}

// routePath strips any mount prefix so faults and calls are keyed by API path.
func routePath(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePath != "" {
		return rc.RoutePath
	}
	p := r.URL.Path
	if i := strings.Index(p, "/api/"); i >= 0 {
		return p[i+len("/api"):]
	}
	return p
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.Envelope[any]{Success: false, Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, models.Health{
		Status:      "success",
		Message:     "Database is connected and working!",
		Database:    "memory",
		Collections: []string{"users", "wasteclassifications", "trucklocations"},
		Timestamp:   s.now().Format(time.RFC3339),
	})
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	email, role := r.URL.Query().Get("email"), r.URL.Query().Get("role")
	s.mu.Lock()
	out := make([]models.User, 0, len(s.users))
	for i := len(s.users) - 1; i >= 0; i-- {
		u := s.users[i]
		if (email == "" || u.Email == email) && (role == "" || u.Role == role) {
			out = append(out, u)
		}
	}
	s.mu.Unlock()
	n := len(out)
	writeJSON(w, http.StatusOK, models.Envelope[[]models.User]{Success: true, Count: &n, Data: out})
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var in models.UserPayload
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.Name == "" || in.Email == "" {
		writeErr(w, http.StatusBadRequest, "name and email are required")
		return
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			writeErr(w, http.StatusConflict, "User with this email already exists")
			return
		}
	}
	role := in.Role
	if role == "" {
		role = models.RoleUser
	}
	u := models.User{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(in.Name),
		Email:       email,
		PhoneNumber: in.PhoneNumber,
		Address:     in.Address,
		Role:        role,
		CreatedAt:   s.now(),
	}
	s.users = append(s.users, u)
	writeJSON(w, http.StatusCreated, models.Envelope[models.User]{Success: true, Data: u})
}

func (s *Server) listClassifications(w http.ResponseWriter, r *http.Request) {
	userID, wasteType := r.URL.Query().Get("userId"), r.URL.Query().Get("wasteType")
	s.mu.Lock()
	out := make([]models.Classification, 0, len(s.classifications))
	for i := len(s.classifications) - 1; i >= 0 && len(out) < 50; i-- {
		c := s.classifications[i]
		if (userID == "" || c.UserID == userID) && (wasteType == "" || c.WasteType == wasteType) {
			out = append(out, c)
		}
	}
	s.mu.Unlock()
	n := len(out)
	writeJSON(w, http.StatusOK, models.Envelope[[]models.Classification]{Success: true, Count: &n, Data: out})
}

func (s *Server) createClassification(w http.ResponseWriter, r *http.Request) {
	var in struct {
		models.ClassificationPayload
		Confidence *float64 `json:"confidence"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.WasteType == "" || in.Confidence == nil {
		writeErr(w, http.StatusBadRequest, "wasteType and confidence are required")
		return
	}
	c := models.Classification{
		ID:          uuid.NewString(),
		WasteType:   in.WasteType,
		Confidence:  *in.Confidence,
		ImageURL:    in.ImageURL,
		UserID:      in.UserID,
		Location:    in.Location,
		Weight:      in.Weight,
		BarcodeData: in.BarcodeData,
		CreatedAt:   s.now(),
	}
	s.mu.Lock()
	s.classifications = append(s.classifications, c)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, models.Envelope[models.Classification]{Success: true, Data: c})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	type agg struct {
		count      int
		confidence float64
		weight     float64
	}
	groups := map[string]*agg{}
	var matched []models.Classification
	s.mu.Lock()
	for _, c := range s.classifications {
		if userID != "" && c.UserID != userID {
			continue
		}
		matched = append(matched, c)
		g := groups[c.WasteType]
		if g == nil {
			g = &agg{}
			groups[c.WasteType] = g
		}
		g.count++
		g.confidence += c.Confidence
		g.weight += c.Weight
	}
	s.mu.Unlock()

	out := models.Stats{TotalCount: len(matched), ByType: []models.TypeStat{}}
	for t, g := range groups {
		out.ByType = append(out.ByType, models.TypeStat{
			WasteType:     t,
			Count:         g.count,
			AvgConfidence: round2(g.confidence / float64(g.count)),
			TotalWeight:   round2(g.weight),
		})
	}
	sort.Slice(out.ByType, func(i, j int) bool { return out.ByType[i].WasteType < out.ByType[j].WasteType })
	for i := len(matched) - 1; i >= 0 && len(out.Recent) < 10; i-- {
		c := matched[i]
		out.Recent = append(out.Recent, models.RecentClassification{ID: c.ID, WasteType: c.WasteType, Confidence: c.Confidence, CreatedAt: c.CreatedAt})
	}
	writeJSON(w, http.StatusOK, models.Envelope[models.Stats]{Success: true, Data: out})
}

func (s *Server) listTrucks(w http.ResponseWriter, r *http.Request) {
	status, truckID := r.URL.Query().Get("status"), r.URL.Query().Get("truckId")
	s.mu.Lock()
	out := make([]models.Truck, 0, len(s.trucks))
	for _, t := range s.trucks {
		if (status == "" || t.Status == status) && (truckID == "" || t.TruckID == truckID) {
			out = append(out, *t)
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].LastUpdated.After(out[j].LastUpdated) })
	n := len(out)
	writeJSON(w, http.StatusOK, models.Envelope[[]models.Truck]{Success: true, Count: &n, Data: out})
}

func (s *Server) upsertTruck(w http.ResponseWriter, r *http.Request) {
	var in struct {
		models.TruckPayload
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
		WasteLoad *float64 `json:"wasteLoad"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.TruckID == "" || in.TruckName == "" || in.Latitude == nil || in.Longitude == nil || in.WasteLoad == nil || in.WasteType == "" {
		writeErr(w, http.StatusBadRequest, "truckId, truckName, latitude, longitude, wasteLoad, and wasteType are required")
		return
	}
	status := in.Status
	if status == "" {
		status = models.TruckActive
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trucks[in.TruckID]
	if !ok {
		t = &models.Truck{ID: uuid.NewString(), TruckID: in.TruckID}
		s.trucks[in.TruckID] = t
	}
	t.TruckName = in.TruckName
	t.Latitude = *in.Latitude
	t.Longitude = *in.Longitude
	t.Status = status
	t.WasteLoad = *in.WasteLoad
	t.WasteType = in.WasteType
	t.Route = in.Route
	t.Speed = in.Speed
	t.LastUpdated = s.now()
	writeJSON(w, http.StatusOK, models.Envelope[models.Truck]{Success: true, Data: *t})
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
