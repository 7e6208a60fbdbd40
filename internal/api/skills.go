package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/abhisek/sous/internal/progress"
	"github.com/abhisek/sous/internal/skills"
)

type assessSkillRequest struct {
	Name  string `json:"name"`
	Level int    `json:"level"`
}

type skillView struct {
	progress.Skill
	Stars  int    `json:"stars"`
	Rating string `json:"rating"`
}

func viewSkill(sk progress.Skill) skillView {
	r := skills.RenderLevel(sk.Level)
	return skillView{Skill: sk, Stars: r.Stars, Rating: r.String()}
}

func (s *Server) listSkills(w http.ResponseWriter, r *http.Request) {
	list := s.engine.Skills.Skills(OwnerFrom(r.Context()))
	out := make([]skillView, 0, len(list))
	for _, sk := range list {
		out = append(out, viewSkill(sk))
	}
	writeJSON(w, out, http.StatusOK)
}

func (s *Server) getSkill(w http.ResponseWriter, r *http.Request) {
	sk, err := s.engine.Skills.Skill(OwnerFrom(r.Context()), mux.Vars(r)["skill"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, viewSkill(sk), http.StatusOK)
}

func (s *Server) assessSkill(w http.ResponseWriter, r *http.Request) {
	var req assessSkillRequest
	if !decode(w, r, &req) {
		return
	}
	sk, err := s.engine.Skills.AssessSkill(r.Context(), OwnerFrom(r.Context()), req.Name, req.Level)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, viewSkill(sk), http.StatusCreated)
}

func (s *Server) recordPractice(w http.ResponseWriter, r *http.Request) {
	var req skills.Practice
	if !decode(w, r, &req) {
		return
	}
	sk, err := s.engine.Skills.RecordPractice(r.Context(), OwnerFrom(r.Context()), mux.Vars(r)["skill"], req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, viewSkill(sk), http.StatusOK)
}

func (s *Server) endorse(w http.ResponseWriter, r *http.Request) {
	sk, err := s.engine.Skills.EndorseSkill(r.Context(), OwnerFrom(r.Context()), mux.Vars(r)["skill"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, viewSkill(sk), http.StatusOK)
}

func (s *Server) withdrawEndorsement(w http.ResponseWriter, r *http.Request) {
	sk, err := s.engine.Skills.WithdrawEndorsement(r.Context(), OwnerFrom(r.Context()), mux.Vars(r)["skill"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, viewSkill(sk), http.StatusOK)
}

func (s *Server) getAssessment(w http.ResponseWriter, r *http.Request) {
	owner, id := OwnerFrom(r.Context()), mux.Vars(r)["skill"]
	if _, err := s.engine.Skills.Skill(owner, id); err != nil {
		writeError(w, err)
		return
	}
	res, ok := s.engine.Skills.Assessment(owner, id)
	if !ok {
		writeJSON(w, errorResponse{Error: "no assessment yet"}, http.StatusNotFound)
		return
	}
	writeJSON(w, res, http.StatusOK)
}

func (s *Server) applyAssessment(w http.ResponseWriter, r *http.Request) {
	var req progress.AssessmentResult
	if !decode(w, r, &req) {
		return
	}
	owner, id := OwnerFrom(r.Context()), mux.Vars(r)["skill"]
	if err := s.engine.Skills.ApplyAssessment(owner, id, req); err != nil {
		writeError(w, err)
		return
	}
	res, _ := s.engine.Skills.Assessment(owner, id)
	writeJSON(w, res, http.StatusOK)
}

func (s *Server) refreshAssessment(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Skills.Refresh(r.Context(), OwnerFrom(r.Context()), mux.Vars(r)["skill"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, res, http.StatusOK)
}
