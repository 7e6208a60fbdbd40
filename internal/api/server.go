// Package api exposes the progress engine over HTTP. Every route under /v1
// acts on behalf of the owner named by the bearer token's subject.
package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"golang.org/x/sync/singleflight"

	"github.com/abhisek/sous/internal/app"
)

// Server holds the engine and tracks which owners have been loaded into it.
type Server struct {
	engine  *app.Engine
	version string

	loads  singleflight.Group
	mu     sync.Mutex
	loaded map[string]bool
}

func NewServer(e *app.Engine, version string) *Server {
	return &Server{engine: e, version: version, loaded: make(map[string]bool)}
}

func (s *Server) isLoaded(ownerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded[ownerID]
}

// ensureLoaded reads the owner's state from persistence the first time the
// owner is seen. Concurrent first requests for one owner share a single
// load; other owners are not held up by it.
func (s *Server) ensureLoaded(ctx context.Context, ownerID string) error {
	if s.isLoaded(ownerID) {
		return nil
	}
	// The load outlives the request that started it when others join.
	ctx = context.WithoutCancel(ctx)
	_, err, _ := s.loads.Do(ownerID, func() (any, error) {
		if s.isLoaded(ownerID) {
			return nil, nil
		}
		if err := s.engine.Load(ctx, ownerID); err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.loaded[ownerID] = true
		s.mu.Unlock()
		return nil, nil
	})
	return err
}

func (s *Server) ownerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.ensureLoaded(r.Context(), OwnerFrom(r.Context())); err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Routes builds the router. Requests under /v1 require a bearer token signed
// with secret.
func (s *Server) Routes(secret string) *mux.Router {
	r := mux.NewRouter()

	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/version", s.versionInfo).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(JWTAuthMiddleware(secret))
	v1.Use(s.ownerMiddleware)

	v1.HandleFunc("/summary", s.summary).Methods(http.MethodGet)

	v1.HandleFunc("/goals", s.listGoals).Methods(http.MethodGet)
	v1.HandleFunc("/goals", s.createGoal).Methods(http.MethodPost)
	v1.HandleFunc("/goals/{goal}", s.getGoal).Methods(http.MethodGet)
	v1.HandleFunc("/goals/{goal}", s.updateGoal).Methods(http.MethodPatch)
	v1.HandleFunc("/goals/{goal}", s.deleteGoal).Methods(http.MethodDelete)
	v1.HandleFunc("/goals/{goal}/visibility", s.setVisibility).Methods(http.MethodPut)

	v1.HandleFunc("/goals/{goal}/milestones", s.addMilestone).Methods(http.MethodPost)
	v1.HandleFunc("/goals/{goal}/milestones/{milestone}", s.renameMilestone).Methods(http.MethodPatch)
	v1.HandleFunc("/goals/{goal}/milestones/{milestone}", s.removeMilestone).Methods(http.MethodDelete)
	v1.HandleFunc("/goals/{goal}/milestones/{milestone}/toggle", s.toggleMilestone).Methods(http.MethodPost)

	v1.HandleFunc("/goals/{goal}/resources", s.addResource).Methods(http.MethodPost)
	v1.HandleFunc("/goals/{goal}/resources/{resource}", s.removeResource).Methods(http.MethodDelete)

	v1.HandleFunc("/skills", s.listSkills).Methods(http.MethodGet)
	v1.HandleFunc("/skills", s.assessSkill).Methods(http.MethodPost)
	v1.HandleFunc("/skills/{skill}", s.getSkill).Methods(http.MethodGet)
	v1.HandleFunc("/skills/{skill}/practice", s.recordPractice).Methods(http.MethodPost)
	v1.HandleFunc("/skills/{skill}/endorsements", s.endorse).Methods(http.MethodPost)
	v1.HandleFunc("/skills/{skill}/endorsements", s.withdrawEndorsement).Methods(http.MethodDelete)
	v1.HandleFunc("/skills/{skill}/assessment", s.getAssessment).Methods(http.MethodGet)
	v1.HandleFunc("/skills/{skill}/assessment", s.applyAssessment).Methods(http.MethodPut)
	v1.HandleFunc("/skills/{skill}/assessment/refresh", s.refreshAssessment).Methods(http.MethodPost)

	v1.HandleFunc("/timeline", s.timeline).Methods(http.MethodGet)

	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok", "service": "sous"}, http.StatusOK)
}

func (s *Server) versionInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"version": s.version}, http.StatusOK)
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.engine.Summary(OwnerFrom(r.Context())), http.StatusOK)
}
