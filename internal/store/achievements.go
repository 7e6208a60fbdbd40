package store

import (
	"context"
	"database/sql"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/sous/internal/progress"
)

// FetchAchievements returns the owner's timeline in insertion order.
func (s *Store) FetchAchievements(ctx context.Context, ownerID string, opts QueryOpts) ([]progress.Achievement, error) {
	b := builder()
	sel := b.Select("id", "sequence", "owner_id", "title", "description", "date", "type", "icon", "goal_id", "skill_id").
		From(b.Table("achievements")).
		Where(entsql.EQ("owner_id", ownerID)).
		OrderBy("sequence")

	if !opts.From.IsZero() {
		sel = sel.Where(entsql.GTE("date", toNanos(opts.From)))
	}
	if !opts.To.IsZero() {
		sel = sel.Where(entsql.LTE("date", toNanos(opts.To)))
	}
	if opts.Limit > 0 {
		sel = sel.Limit(opts.Limit)
	}

	query, args := sel.Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query achievements: %w", err)
	}
	defer rows.Close()

	var out []progress.Achievement
	for rows.Next() {
		var (
			a               progress.Achievement
			date            int64
			typ             string
			goalID, skillID sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.Sequence, &a.OwnerID, &a.Title, &a.Description,
			&date, &typ, &a.Icon, &goalID, &skillID); err != nil {
			return nil, fmt.Errorf("scan achievement: %w", err)
		}
		a.Date = fromNanos(date)
		a.Type = progress.AchievementType(typ)
		a.GoalID = goalID.String
		a.SkillID = skillID.String
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate achievements: %w", err)
	}
	return out, nil
}

// AppendAchievement stores a single achievement and returns it with its
// persisted sequence.
func (s *Store) AppendAchievement(ctx context.Context, a progress.Achievement) (progress.Achievement, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		seq, err := s.insertAchievement(ctx, tx, a)
		a.Sequence = seq
		return err
	})
	if err != nil {
		return progress.Achievement{}, err
	}
	return a, nil
}

func (s *Store) insertAchievement(ctx context.Context, tx *sql.Tx, a progress.Achievement) (int64, error) {
	seq, err := s.seq.Next(ctx, tx)
	if err != nil {
		return 0, err
	}

	query, args := builder().Insert("achievements").
		Columns("id", "sequence", "owner_id", "title", "description", "date", "type", "icon", "goal_id", "skill_id").
		Values(a.ID, seq, a.OwnerID, a.Title, a.Description, toNanos(a.Date),
			string(a.Type), a.Icon, nullString(a.GoalID), nullString(a.SkillID)).
		Query()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("insert achievement %s: %w", a.ID, err)
	}
	return seq, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
