// Package skills tracks an owner's skills, their levels, practice and
// endorsements.
package skills

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/sous/internal/assess"
	"github.com/abhisek/sous/internal/progress"
	"github.com/abhisek/sous/internal/store"
	"github.com/abhisek/sous/internal/timeline"
)

// package-level logger; can be replaced via SetLogger
var logger = slog.New(slog.NewTextHandler(os.Stderr, nil))

// SetLogger installs a logger for the skills package. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// ErrNoRecommender is returned by Refresh when no recommender is configured.
var ErrNoRecommender = errors.New("no assessment recommender configured")

// Recommender produces an assessment for a skill.
type Recommender interface {
	Assess(ctx context.Context, req assess.Request) (*progress.AssessmentResult, error)
}

// Practice is a logged practice session. Level, when set, is the level the
// owner reached during the session.
type Practice struct {
	Hours float64 `json:"hours"`
	Level *int    `json:"level,omitempty"`
}

type ownerSkills struct {
	writeMu sync.Mutex

	skills      map[string]*progress.Skill
	order       []string
	assessments map[string]progress.AssessmentResult
}

// Service is the skill assessment engine.
type Service struct {
	repo        store.SkillRepo
	timeline    *timeline.Timeline
	recommender Recommender
	now         func() time.Time

	mu     sync.Mutex
	owners map[string]*ownerSkills
}

// NewService creates a skill service. The recommender may be nil, in which
// case Refresh is unavailable.
func NewService(repo store.SkillRepo, tl *timeline.Timeline, rec Recommender) *Service {
	return &Service{
		repo:        repo,
		timeline:    tl,
		recommender: rec,
		now:         time.Now,
		owners:      make(map[string]*ownerSkills),
	}
}

func (s *Service) owner(ownerID string) *ownerSkills {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.owners[ownerID]
	if !ok {
		o = &ownerSkills{
			skills:      make(map[string]*progress.Skill),
			assessments: make(map[string]progress.AssessmentResult),
		}
		s.owners[ownerID] = o
	}
	return o
}

// loaded returns the owner's state without creating it. Callers hold s.mu.
func (s *Service) loaded(ownerID string) (*ownerSkills, bool) {
	o, ok := s.owners[ownerID]
	return o, ok
}

func checkOwner(ownerID string) error {
	if ownerID == "" {
		return &progress.InvariantViolation{Field: "owner_id", Reason: "must not be empty"}
	}
	return nil
}

// Load replaces the owner's local skills with what persistence holds.
// Cached assessments are kept for skills that still exist.
func (s *Service) Load(ctx context.Context, ownerID string) ([]progress.Skill, error) {
	if err := checkOwner(ownerID); err != nil {
		return nil, err
	}
	o := s.owner(ownerID)
	o.writeMu.Lock()
	defer o.writeMu.Unlock()

	fetched, err := s.repo.FetchSkills(ctx, ownerID)
	if err != nil {
		return nil, &progress.PersistenceError{Op: "fetch skills", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	o.skills = make(map[string]*progress.Skill, len(fetched))
	o.order = o.order[:0]
	out := make([]progress.Skill, 0, len(fetched))
	for _, sk := range fetched {
		o.skills[sk.ID] = &sk
		o.order = append(o.order, sk.ID)
		out = append(out, sk.Clone())
	}
	for id := range o.assessments {
		if _, ok := o.skills[id]; !ok {
			delete(o.assessments, id)
		}
	}
	return out, nil
}

// Skill returns a copy of one skill.
func (s *Service) Skill(ownerID, skillID string) (progress.Skill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.loaded(ownerID)
	if !ok {
		return progress.Skill{}, &progress.NotFoundError{Kind: "skill", ID: skillID}
	}
	sk, ok := o.skills[skillID]
	if !ok {
		return progress.Skill{}, &progress.NotFoundError{Kind: "skill", ID: skillID}
	}
	return sk.Clone(), nil
}

// Skills returns copies of the owner's skills in creation order.
func (s *Service) Skills(ownerID string) []progress.Skill {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.loaded(ownerID)
	if !ok {
		return []progress.Skill{}
	}
	out := make([]progress.Skill, 0, len(o.order))
	for _, id := range o.order {
		out = append(out, o.skills[id].Clone())
	}
	return out
}

// AssessSkill records the owner's first self-assessment of a skill, creating
// it with an initial checkpoint. If a skill with the same name exists it is
// returned unchanged.
func (s *Service) AssessSkill(ctx context.Context, ownerID, name string, level int) (progress.Skill, error) {
	if err := checkOwner(ownerID); err != nil {
		return progress.Skill{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return progress.Skill{}, &progress.InvariantViolation{Field: "name", Reason: "must not be empty"}
	}
	if !progress.ValidLevel(level) {
		return progress.Skill{}, &progress.InvariantViolation{Field: "level", Reason: fmt.Sprintf("%d outside %d..%d", level, progress.MinLevel, progress.MaxLevel)}
	}

	o := s.owner(ownerID)
	o.writeMu.Lock()
	defer o.writeMu.Unlock()

	s.mu.Lock()
	for _, id := range o.order {
		if strings.EqualFold(o.skills[id].Name, name) {
			existing := o.skills[id].Clone()
			s.mu.Unlock()
			return existing, nil
		}
	}
	now := s.now().UTC()
	sk := progress.Skill{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Name:        name,
		Level:       level,
		Checkpoints: []progress.Checkpoint{{Date: now, Level: level}},
		CreatedAt:   now,
	}
	stored := sk.Clone()
	o.skills[sk.ID] = &stored
	o.order = append(o.order, sk.ID)
	s.mu.Unlock()

	if _, err := s.repo.SaveSkill(ctx, sk.Clone()); err != nil {
		s.mu.Lock()
		delete(o.skills, sk.ID)
		o.order = slices.DeleteFunc(o.order, func(id string) bool { return id == sk.ID })
		s.mu.Unlock()
		logger.Warn("skills: create failed, rolled back", slog.String("skill", sk.ID), slog.Any("err", err))
		return progress.Skill{}, &progress.PersistenceError{Op: "save skill", Err: err}
	}
	return sk, nil
}

// RecordPractice adds practice hours and, when the session reached a new
// level, appends a checkpoint. A level gain is recorded on the timeline.
func (s *Service) RecordPractice(ctx context.Context, ownerID, skillID string, p Practice) (progress.Skill, error) {
	if p.Hours < 0 || math.IsNaN(p.Hours) || math.IsInf(p.Hours, 0) {
		return progress.Skill{}, &progress.InvariantViolation{Field: "hours", Reason: "must be a non-negative number"}
	}
	if p.Level != nil && !progress.ValidLevel(*p.Level) {
		return progress.Skill{}, &progress.InvariantViolation{Field: "level", Reason: fmt.Sprintf("%d outside %d..%d", *p.Level, progress.MinLevel, progress.MaxLevel)}
	}

	return s.commit(ctx, ownerID, skillID, func(sk *progress.Skill) ([]progress.Achievement, error) {
		sk.PracticedHours += p.Hours
		if p.Level == nil || *p.Level == sk.Level {
			return nil, nil
		}
		from := sk.Level
		sk.Level = *p.Level
		sk.Checkpoints = append(sk.Checkpoints, progress.Checkpoint{Date: s.now().UTC(), Level: sk.Level})
		if sk.Level < from {
			return nil, nil
		}
		return []progress.Achievement{{
			Title:       "Levelled up: " + sk.Name,
			Description: fmt.Sprintf("%s went from %d to %d", sk.Name, from, sk.Level),
			Type:        progress.AchievementEarned,
		}}, nil
	})
}

// EndorseSkill adds one endorsement.
func (s *Service) EndorseSkill(ctx context.Context, ownerID, skillID string) (progress.Skill, error) {
	return s.commit(ctx, ownerID, skillID, func(sk *progress.Skill) ([]progress.Achievement, error) {
		sk.Endorsements++
		return []progress.Achievement{{
			Title:       "Endorsed for " + sk.Name,
			Description: fmt.Sprintf("%d endorsements so far", sk.Endorsements),
			Type:        progress.AchievementSocial,
		}}, nil
	})
}

// WithdrawEndorsement removes one endorsement. The count never drops below
// zero; withdrawing from zero is a no-op.
func (s *Service) WithdrawEndorsement(ctx context.Context, ownerID, skillID string) (progress.Skill, error) {
	sk, err := s.Skill(ownerID, skillID)
	if err != nil {
		return progress.Skill{}, err
	}
	if sk.Endorsements == 0 {
		return sk, nil
	}
	return s.commit(ctx, ownerID, skillID, func(sk *progress.Skill) ([]progress.Achievement, error) {
		sk.Endorsements = max(0, sk.Endorsements-1)
		return nil, nil
	})
}

// ApplyAssessment caches an externally computed assessment for a skill,
// replacing any previous one. It never changes the skill's level.
func (s *Service) ApplyAssessment(ownerID, skillID string, r progress.AssessmentResult) error {
	if r.SkillID != "" && r.SkillID != skillID {
		return &progress.InvariantViolation{Field: "skill_id", Reason: "assessment is for a different skill"}
	}
	if !progress.ValidLevel(r.SuggestedLevel) {
		return &progress.InvariantViolation{Field: "suggested_level", Reason: fmt.Sprintf("%d outside %d..%d", r.SuggestedLevel, progress.MinLevel, progress.MaxLevel)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.loaded(ownerID)
	if !ok {
		return &progress.NotFoundError{Kind: "skill", ID: skillID}
	}
	sk, ok := o.skills[skillID]
	if !ok {
		return &progress.NotFoundError{Kind: "skill", ID: skillID}
	}
	r.SkillID = skillID
	r.CurrentLevel = sk.Level
	if r.AssessedAt.IsZero() {
		r.AssessedAt = s.now().UTC()
	}
	r.RecommendedPractice = slices.Clone(r.RecommendedPractice)
	o.assessments[skillID] = r
	return nil
}

// Assessment returns the cached assessment for a skill, if any.
func (s *Service) Assessment(ownerID, skillID string) (progress.AssessmentResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.loaded(ownerID)
	if !ok {
		return progress.AssessmentResult{}, false
	}
	r, ok := o.assessments[skillID]
	r.RecommendedPractice = slices.Clone(r.RecommendedPractice)
	return r, ok
}

// Refresh asks the recommender for a fresh assessment and caches it.
func (s *Service) Refresh(ctx context.Context, ownerID, skillID string) (progress.AssessmentResult, error) {
	if s.recommender == nil {
		return progress.AssessmentResult{}, ErrNoRecommender
	}
	sk, err := s.Skill(ownerID, skillID)
	if err != nil {
		return progress.AssessmentResult{}, err
	}

	res, err := s.recommender.Assess(ctx, assess.Request{Skill: sk})
	if err != nil {
		return progress.AssessmentResult{}, fmt.Errorf("assess %s: %w", sk.Name, err)
	}
	if err := s.ApplyAssessment(ownerID, skillID, *res); err != nil {
		return progress.AssessmentResult{}, err
	}
	out, _ := s.Assessment(ownerID, skillID)
	return out, nil
}

// commit applies fn to a working copy of the skill, persists it with any
// produced timeline entries, and restores the prior state if the save fails.
func (s *Service) commit(ctx context.Context, ownerID, skillID string, fn func(*progress.Skill) ([]progress.Achievement, error)) (progress.Skill, error) {
	if err := checkOwner(ownerID); err != nil {
		return progress.Skill{}, err
	}
	s.mu.Lock()
	o, ok := s.loaded(ownerID)
	s.mu.Unlock()
	if !ok {
		return progress.Skill{}, &progress.NotFoundError{Kind: "skill", ID: skillID}
	}
	o.writeMu.Lock()
	defer o.writeMu.Unlock()

	s.mu.Lock()
	cur, ok := o.skills[skillID]
	if !ok {
		s.mu.Unlock()
		return progress.Skill{}, &progress.NotFoundError{Kind: "skill", ID: skillID}
	}
	prior := cur.Clone()
	working := cur.Clone()
	emitted, err := fn(&working)
	if err != nil {
		s.mu.Unlock()
		return progress.Skill{}, err
	}
	for i := range emitted {
		emitted[i].OwnerID = ownerID
		emitted[i].SkillID = skillID
	}
	staged, err := s.timeline.Stage(emitted...)
	if err != nil {
		s.mu.Unlock()
		return progress.Skill{}, err
	}
	*cur = working
	s.mu.Unlock()

	if _, err := s.repo.SaveSkill(ctx, working.Clone(), staged...); err != nil {
		s.mu.Lock()
		*cur = prior
		s.mu.Unlock()
		ids := make([]string, len(staged))
		for i, a := range staged {
			ids[i] = a.ID
		}
		s.timeline.Rollback(ownerID, ids...)
		logger.Warn("skills: save failed, rolled back", slog.String("skill", skillID), slog.Any("err", err))
		return progress.Skill{}, &progress.PersistenceError{Op: "save skill", Err: err}
	}
	return working.Clone(), nil
}
