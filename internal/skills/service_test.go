package skills

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/sous/internal/assess"
	"github.com/abhisek/sous/internal/progress"
	"github.com/abhisek/sous/internal/timeline"
)

const owner = "alice"

type fakeRepo struct {
	saved     map[string]progress.Skill
	emitted   []progress.Achievement
	saveCalls int
	saveErr   error
}

func (r *fakeRepo) FetchSkills(_ context.Context, ownerID string) ([]progress.Skill, error) {
	var out []progress.Skill
	for _, s := range r.saved {
		if s.OwnerID == ownerID {
			out = append(out, s.Clone())
		}
	}
	return out, nil
}

func (r *fakeRepo) SaveSkill(_ context.Context, s progress.Skill, emitted ...progress.Achievement) (progress.Skill, error) {
	r.saveCalls++
	if r.saveErr != nil {
		return progress.Skill{}, r.saveErr
	}
	if r.saved == nil {
		r.saved = make(map[string]progress.Skill)
	}
	r.saved[s.ID] = s.Clone()
	r.emitted = append(r.emitted, emitted...)
	return s, nil
}

type stubRecommender struct {
	res *progress.AssessmentResult
	err error
	got assess.Request
}

func (s *stubRecommender) Assess(_ context.Context, req assess.Request) (*progress.AssessmentResult, error) {
	s.got = req
	return s.res, s.err
}

func newService(t *testing.T, rec Recommender) (*Service, *fakeRepo, *timeline.Timeline) {
	t.Helper()
	repo := &fakeRepo{}
	tl := timeline.New(nil)
	s := NewService(repo, tl, rec)
	s.now = func() time.Time { return time.Date(2026, 7, 1, 18, 0, 0, 0, time.UTC) }
	return s, repo, tl
}

func count(tl *timeline.Timeline, typ progress.AchievementType) int {
	n := 0
	for range tl.Query(owner, timeline.Filter{Categories: []progress.AchievementType{typ}}) {
		n++
	}
	return n
}

func intPtr(v int) *int { return &v }

func TestAssessSkill_CreatesOnce(t *testing.T) {
	s, repo, _ := newService(t, nil)
	ctx := context.Background()

	sk, err := s.AssessSkill(ctx, owner, "Knife skills", 30)
	require.NoError(t, err)
	assert.Equal(t, 30, sk.Level)
	require.Len(t, sk.Checkpoints, 1)
	assert.Equal(t, 30, sk.Checkpoints[0].Level)
	assert.Equal(t, 1, repo.saveCalls)

	again, err := s.AssessSkill(ctx, owner, "knife SKILLS", 90)
	require.NoError(t, err)
	assert.Equal(t, sk.ID, again.ID)
	assert.Equal(t, 30, again.Level)
	assert.Equal(t, 1, repo.saveCalls)
	assert.Len(t, s.Skills(owner), 1)
}

func TestAssessSkill_Validation(t *testing.T) {
	s, repo, _ := newService(t, nil)
	ctx := context.Background()

	for _, tc := range []struct {
		name  string
		level int
	}{{"", 10}, {"Sauces", -1}, {"Sauces", 101}} {
		_, err := s.AssessSkill(ctx, owner, tc.name, tc.level)
		assert.True(t, progress.IsInvariantViolation(err), "%q/%d", tc.name, tc.level)
	}
	assert.Zero(t, repo.saveCalls)
}

func TestAssessSkill_PersistenceFailure(t *testing.T) {
	s, repo, _ := newService(t, nil)
	repo.saveErr = errors.New("disk full")

	_, err := s.AssessSkill(context.Background(), owner, "Sauces", 10)
	assert.True(t, progress.IsPersistence(err))
	assert.Empty(t, s.Skills(owner))
}

func TestRecordPractice(t *testing.T) {
	s, repo, tl := newService(t, nil)
	ctx := context.Background()
	sk, err := s.AssessSkill(ctx, owner, "Bread", 20)
	require.NoError(t, err)

	sk, err = s.RecordPractice(ctx, owner, sk.ID, Practice{Hours: 1.5})
	require.NoError(t, err)
	assert.Equal(t, 1.5, sk.PracticedHours)
	assert.Len(t, sk.Checkpoints, 1)

	sk, err = s.RecordPractice(ctx, owner, sk.ID, Practice{Hours: 2, Level: intPtr(20)})
	require.NoError(t, err)
	assert.Len(t, sk.Checkpoints, 1, "same level adds no checkpoint")
	assert.Zero(t, count(tl, progress.AchievementEarned))

	sk, err = s.RecordPractice(ctx, owner, sk.ID, Practice{Hours: 1, Level: intPtr(35)})
	require.NoError(t, err)
	assert.Equal(t, 35, sk.Level)
	assert.Equal(t, 4.5, sk.PracticedHours)
	require.Len(t, sk.Checkpoints, 2)
	assert.Equal(t, 35, sk.Checkpoints[1].Level)
	assert.Equal(t, 1, count(tl, progress.AchievementEarned))
	require.Len(t, repo.emitted, 1)
	assert.Equal(t, sk.ID, repo.emitted[0].SkillID)

	// A drop is recorded but not celebrated.
	sk, err = s.RecordPractice(ctx, owner, sk.ID, Practice{Level: intPtr(25)})
	require.NoError(t, err)
	assert.Len(t, sk.Checkpoints, 3)
	assert.Equal(t, 1, count(tl, progress.AchievementEarned))

	_, err = s.RecordPractice(ctx, owner, sk.ID, Practice{Hours: -1})
	assert.True(t, progress.IsInvariantViolation(err))
	_, err = s.RecordPractice(ctx, owner, sk.ID, Practice{Level: intPtr(120)})
	assert.True(t, progress.IsInvariantViolation(err))
	_, err = s.RecordPractice(ctx, owner, "missing", Practice{Hours: 1})
	assert.True(t, progress.IsNotFound(err))
}

func TestRecordPractice_RollbackOnFailure(t *testing.T) {
	s, repo, tl := newService(t, nil)
	ctx := context.Background()
	sk, err := s.AssessSkill(ctx, owner, "Bread", 20)
	require.NoError(t, err)

	repo.saveErr = errors.New("timeout")
	_, err = s.RecordPractice(ctx, owner, sk.ID, Practice{Hours: 3, Level: intPtr(50)})
	require.True(t, progress.IsPersistence(err))

	got, err := s.Skill(owner, sk.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, got.Level)
	assert.Zero(t, got.PracticedHours)
	assert.Len(t, got.Checkpoints, 1)
	assert.Zero(t, count(tl, progress.AchievementEarned))
}

func TestEndorsementsNeverNegative(t *testing.T) {
	s, _, tl := newService(t, nil)
	ctx := context.Background()
	sk, err := s.AssessSkill(ctx, owner, "Plating", 50)
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(3, 5))
	want := 0
	for i := 0; i < 300; i++ {
		if rng.IntN(3) == 0 {
			sk, err = s.EndorseSkill(ctx, owner, sk.ID)
			want++
		} else {
			sk, err = s.WithdrawEndorsement(ctx, owner, sk.ID)
			want = max(0, want-1)
		}
		require.NoError(t, err)
		require.GreaterOrEqual(t, sk.Endorsements, 0)
		require.Equal(t, want, sk.Endorsements)
	}

	assert.Positive(t, count(tl, progress.AchievementSocial))
}

func TestWithdrawFromZeroIsNoop(t *testing.T) {
	s, repo, _ := newService(t, nil)
	ctx := context.Background()
	sk, err := s.AssessSkill(ctx, owner, "Plating", 50)
	require.NoError(t, err)
	calls := repo.saveCalls

	sk, err = s.WithdrawEndorsement(ctx, owner, sk.ID)
	require.NoError(t, err)
	assert.Zero(t, sk.Endorsements)
	assert.Equal(t, calls, repo.saveCalls)
}

func TestApplyAssessment_IsAdvisory(t *testing.T) {
	s, _, _ := newService(t, nil)
	ctx := context.Background()
	sk, err := s.AssessSkill(ctx, owner, "Sauces", 40)
	require.NoError(t, err)

	_, ok := s.Assessment(owner, sk.ID)
	assert.False(t, ok)

	require.NoError(t, s.ApplyAssessment(owner, sk.ID, progress.AssessmentResult{
		SuggestedLevel: 55, Feedback: "Good emulsions", RecommendedPractice: []string{"Hollandaise"},
	}))
	r, ok := s.Assessment(owner, sk.ID)
	require.True(t, ok)
	assert.Equal(t, 55, r.SuggestedLevel)
	assert.Equal(t, 40, r.CurrentLevel)
	assert.Equal(t, sk.ID, r.SkillID)

	got, _ := s.Skill(owner, sk.ID)
	assert.Equal(t, 40, got.Level, "suggestion must not be applied")

	require.NoError(t, s.ApplyAssessment(owner, sk.ID, progress.AssessmentResult{SuggestedLevel: 60}))
	r, _ = s.Assessment(owner, sk.ID)
	assert.Equal(t, 60, r.SuggestedLevel)

	err = s.ApplyAssessment(owner, "missing", progress.AssessmentResult{SuggestedLevel: 1})
	assert.True(t, progress.IsNotFound(err))
	err = s.ApplyAssessment(owner, sk.ID, progress.AssessmentResult{SkillID: "other", SuggestedLevel: 1})
	assert.True(t, progress.IsInvariantViolation(err))
	err = s.ApplyAssessment(owner, sk.ID, progress.AssessmentResult{SuggestedLevel: 200})
	assert.True(t, progress.IsInvariantViolation(err))
}

func TestRefresh(t *testing.T) {
	rec := &stubRecommender{res: &progress.AssessmentResult{
		SuggestedLevel: 48, Feedback: "Nice dice", RecommendedPractice: []string{"Mirepoix"},
	}}
	s, _, _ := newService(t, rec)
	ctx := context.Background()
	sk, err := s.AssessSkill(ctx, owner, "Knife skills", 35)
	require.NoError(t, err)

	r, err := s.Refresh(ctx, owner, sk.ID)
	require.NoError(t, err)
	assert.Equal(t, 48, r.SuggestedLevel)
	assert.Equal(t, "Knife skills", rec.got.Skill.Name)

	cached, ok := s.Assessment(owner, sk.ID)
	require.True(t, ok)
	assert.Equal(t, r, cached)

	rec.err = errors.New("provider down")
	_, err = s.Refresh(ctx, owner, sk.ID)
	require.Error(t, err)
	cached, _ = s.Assessment(owner, sk.ID)
	assert.Equal(t, 48, cached.SuggestedLevel, "failed refresh keeps the previous assessment")
}

func TestRefresh_NoRecommender(t *testing.T) {
	s, _, _ := newService(t, nil)
	sk, err := s.AssessSkill(context.Background(), owner, "Knife skills", 35)
	require.NoError(t, err)
	_, err = s.Refresh(context.Background(), owner, sk.ID)
	assert.ErrorIs(t, err, ErrNoRecommender)
}

func TestLoad(t *testing.T) {
	s, repo, _ := newService(t, nil)
	ctx := context.Background()
	sk, err := s.AssessSkill(ctx, owner, "Bread", 20)
	require.NoError(t, err)
	require.NoError(t, s.ApplyAssessment(owner, sk.ID, progress.AssessmentResult{SuggestedLevel: 30}))

	fresh := NewService(repo, timeline.New(nil), nil)
	skills, err := fresh.Load(ctx, owner)
	require.NoError(t, err)
	require.Len(t, skills, 1)
	assert.Equal(t, "Bread", skills[0].Name)

	_, err = s.Load(ctx, owner)
	require.NoError(t, err)
	_, ok := s.Assessment(owner, sk.ID)
	assert.True(t, ok, "assessments survive reload for existing skills")
}

func TestReads_DoNotCreateOwnerState(t *testing.T) {
	s, _, _ := newService(t, nil)

	assert.Empty(t, s.Skills("bob"))
	_, err := s.Skill("bob", "missing")
	assert.True(t, progress.IsNotFound(err))
	_, ok := s.Assessment("bob", "missing")
	assert.False(t, ok)
	err = s.ApplyAssessment("bob", "missing", progress.AssessmentResult{SuggestedLevel: 40})
	assert.True(t, progress.IsNotFound(err))

	assert.NotContains(t, s.owners, "bob")
}

func TestCommit_RejectsEmptyOwner(t *testing.T) {
	s, repo, _ := newService(t, nil)
	ctx := context.Background()

	_, err := s.RecordPractice(ctx, "", "sk-1", Practice{Hours: 1})
	assert.True(t, progress.IsInvariantViolation(err))
	_, err = s.EndorseSkill(ctx, "", "sk-1")
	assert.True(t, progress.IsInvariantViolation(err))
	_, err = s.WithdrawEndorsement(ctx, "", "sk-1")
	assert.True(t, progress.IsInvariantViolation(err))

	assert.Zero(t, repo.saveCalls)
	assert.Empty(t, s.owners)
}
