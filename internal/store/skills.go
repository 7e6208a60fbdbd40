package store

import (
	"context"
	"database/sql"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/sous/internal/progress"
)

// FetchSkills loads the owner's skills with their checkpoint history.
func (s *Store) FetchSkills(ctx context.Context, ownerID string) ([]progress.Skill, error) {
	b := builder()
	query, args := b.Select("id", "owner_id", "name", "level", "endorsements", "practiced_hours", "created_at").
		From(b.Table("skills")).
		Where(entsql.EQ("owner_id", ownerID)).
		OrderBy("created_at", "id").
		Query()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query skills: %w", err)
	}

	var skills []progress.Skill
	index := make(map[string]int)
	for rows.Next() {
		var (
			sk      progress.Skill
			created int64
		)
		if err := rows.Scan(&sk.ID, &sk.OwnerID, &sk.Name, &sk.Level,
			&sk.Endorsements, &sk.PracticedHours, &created); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan skill: %w", err)
		}
		sk.CreatedAt = fromNanos(created)
		index[sk.ID] = len(skills)
		skills = append(skills, sk)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate skills: %w", err)
	}
	rows.Close()

	if len(skills) == 0 {
		return nil, nil
	}

	ids := make([]any, len(skills))
	for i, sk := range skills {
		ids[i] = sk.ID
	}

	query, args = b.Select("skill_id", "date", "level").
		From(b.Table("skill_checkpoints")).
		Where(entsql.In("skill_id", ids...)).
		OrderBy("skill_id", "position").
		Query()
	crows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query checkpoints: %w", err)
	}
	defer crows.Close()

	for crows.Next() {
		var (
			skillID string
			date    int64
			cp      progress.Checkpoint
		)
		if err := crows.Scan(&skillID, &date, &cp.Level); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		cp.Date = fromNanos(date)
		i := index[skillID]
		skills[i].Checkpoints = append(skills[i].Checkpoints, cp)
	}
	if err := crows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}
	return skills, nil
}

// SaveSkill upserts a skill, rewrites its checkpoints and appends emitted
// achievements in one transaction.
func (s *Store) SaveSkill(ctx context.Context, sk progress.Skill, emitted ...progress.Achievement) (progress.Skill, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		b := builder()
		query, args := b.Insert("skills").
			Columns("id", "owner_id", "name", "level", "endorsements", "practiced_hours", "created_at").
			Values(sk.ID, sk.OwnerID, sk.Name, sk.Level, sk.Endorsements, sk.PracticedHours, toNanos(sk.CreatedAt)).
			OnConflict(entsql.ConflictColumns("id"), entsql.ResolveWithNewValues()).
			Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert skill: %w", err)
		}

		query, args = b.Delete("skill_checkpoints").Where(entsql.EQ("skill_id", sk.ID)).Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("clear checkpoints: %w", err)
		}
		for i, cp := range sk.Checkpoints {
			query, args = b.Insert("skill_checkpoints").
				Columns("skill_id", "position", "date", "level").
				Values(sk.ID, i, toNanos(cp.Date), cp.Level).
				Query()
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("insert checkpoint: %w", err)
			}
		}

		for _, a := range emitted {
			if _, err := s.insertAchievement(ctx, tx, a); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return progress.Skill{}, fmt.Errorf("save skill %s: %w", sk.ID, err)
	}
	return sk, nil
}
