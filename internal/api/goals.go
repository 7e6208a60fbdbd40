package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/abhisek/sous/internal/goals"
	"github.com/abhisek/sous/internal/progress"
)

type createGoalRequest struct {
	goals.GoalInput

	// Derived or server-assigned; present only to be rejected.
	Progress *int    `json:"progress,omitempty"`
	ID       *string `json:"id,omitempty"`
}

type visibilityRequest struct {
	Public bool `json:"public"`
}

type milestoneRequest struct {
	Title string `json:"title"`
}

// goalView decorates a goal with its derived state.
type goalView struct {
	progress.Goal
	State     progress.GoalState `json:"state"`
	Completed int                `json:"completed_milestones"`
}

func viewGoal(g progress.Goal) goalView {
	return goalView{Goal: g, State: g.State(), Completed: g.CompletedCount()}
}

func (s *Server) listGoals(w http.ResponseWriter, r *http.Request) {
	list := s.engine.Goals.Goals(OwnerFrom(r.Context()))
	out := make([]goalView, 0, len(list))
	for _, g := range list {
		out = append(out, viewGoal(g))
	}
	writeJSON(w, out, http.StatusOK)
}

func (s *Server) getGoal(w http.ResponseWriter, r *http.Request) {
	g, err := s.engine.Goals.Goal(OwnerFrom(r.Context()), mux.Vars(r)["goal"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, viewGoal(g), http.StatusOK)
}

func (s *Server) createGoal(w http.ResponseWriter, r *http.Request) {
	var req createGoalRequest
	if !decode(w, r, &req) {
		return
	}
	switch {
	case req.Progress != nil:
		writeError(w, &progress.InvariantViolation{Field: "progress", Reason: "derived from milestones"})
		return
	case req.ID != nil:
		writeError(w, &progress.InvariantViolation{Field: "id", Reason: "assigned by the server"})
		return
	}

	g, err := s.engine.Goals.CreateGoal(r.Context(), OwnerFrom(r.Context()), req.GoalInput)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, viewGoal(g), http.StatusCreated)
}

func (s *Server) updateGoal(w http.ResponseWriter, r *http.Request) {
	var patch goals.GoalPatch
	if !decode(w, r, &patch) {
		return
	}
	g, err := s.engine.Goals.UpdateGoal(r.Context(), OwnerFrom(r.Context()), mux.Vars(r)["goal"], patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, viewGoal(g), http.StatusOK)
}

func (s *Server) deleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Goals.DeleteGoal(r.Context(), OwnerFrom(r.Context()), mux.Vars(r)["goal"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setVisibility(w http.ResponseWriter, r *http.Request) {
	var req visibilityRequest
	if !decode(w, r, &req) {
		return
	}
	g, err := s.engine.Goals.SetVisibility(r.Context(), OwnerFrom(r.Context()), mux.Vars(r)["goal"], req.Public)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, viewGoal(g), http.StatusOK)
}

func (s *Server) addMilestone(w http.ResponseWriter, r *http.Request) {
	var req milestoneRequest
	if !decode(w, r, &req) {
		return
	}
	m, err := s.engine.Tracker.AddMilestone(r.Context(), OwnerFrom(r.Context()), mux.Vars(r)["goal"], req.Title)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, m, http.StatusCreated)
}

func (s *Server) toggleMilestone(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	g, err := s.engine.Tracker.ToggleMilestone(r.Context(), OwnerFrom(r.Context()), vars["goal"], vars["milestone"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, viewGoal(g), http.StatusOK)
}

func (s *Server) renameMilestone(w http.ResponseWriter, r *http.Request) {
	var req milestoneRequest
	if !decode(w, r, &req) {
		return
	}
	vars := mux.Vars(r)
	if err := s.engine.Tracker.RenameMilestone(r.Context(), OwnerFrom(r.Context()), vars["goal"], vars["milestone"], req.Title); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) removeMilestone(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	g, err := s.engine.Tracker.RemoveMilestone(r.Context(), OwnerFrom(r.Context()), vars["goal"], vars["milestone"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, viewGoal(g), http.StatusOK)
}

func (s *Server) addResource(w http.ResponseWriter, r *http.Request) {
	var req goals.ResourceInput
	if !decode(w, r, &req) {
		return
	}
	res, err := s.engine.Goals.AddResource(r.Context(), OwnerFrom(r.Context()), mux.Vars(r)["goal"], req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, res, http.StatusCreated)
}

func (s *Server) removeResource(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.engine.Goals.RemoveResource(r.Context(), OwnerFrom(r.Context()), vars["goal"], vars["resource"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseDate accepts RFC 3339 timestamps or plain YYYY-MM-DD dates.
func parseDate(s string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
