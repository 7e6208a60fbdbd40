package store

import (
	"context"
	"database/sql"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/sous/internal/progress"
)

var goalColumns = []string{
	"id", "owner_id", "title", "category", "description",
	"deadline", "progress", "public", "created_at", "updated_at",
}

// FetchGoals loads the owner's goals with milestones and resources.
func (s *Store) FetchGoals(ctx context.Context, ownerID string) ([]progress.Goal, error) {
	b := builder()
	query, args := b.Select(goalColumns...).
		From(b.Table("goals")).
		Where(entsql.EQ("owner_id", ownerID)).
		OrderBy("created_at", "id").
		Query()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query goals: %w", err)
	}

	var goals []progress.Goal
	index := make(map[string]int)
	for rows.Next() {
		var (
			g                progress.Goal
			category         string
			deadline         sql.NullInt64
			public           int
			created, updated int64
		)
		if err := rows.Scan(&g.ID, &g.OwnerID, &g.Title, &category, &g.Description,
			&deadline, &g.Progress, &public, &created, &updated); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		g.Category = progress.Category(category)
		g.Deadline = timePtr(deadline)
		g.Public = public != 0
		g.CreatedAt = fromNanos(created)
		g.UpdatedAt = fromNanos(updated)
		index[g.ID] = len(goals)
		goals = append(goals, g)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate goals: %w", err)
	}
	rows.Close()

	if len(goals) == 0 {
		return nil, nil
	}

	ids := make([]any, len(goals))
	for i, g := range goals {
		ids[i] = g.ID
	}

	if err := s.loadMilestones(ctx, ids, goals, index); err != nil {
		return nil, err
	}
	if err := s.loadResources(ctx, ids, goals, index); err != nil {
		return nil, err
	}
	return goals, nil
}

func (s *Store) loadMilestones(ctx context.Context, ids []any, goals []progress.Goal, index map[string]int) error {
	b := builder()
	query, args := b.Select("goal_id", "id", "title", "completed", "completed_at").
		From(b.Table("milestones")).
		Where(entsql.In("goal_id", ids...)).
		OrderBy("goal_id", "position").
		Query()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query milestones: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			goalID    string
			m         progress.Milestone
			completed int
			at        sql.NullInt64
		)
		if err := rows.Scan(&goalID, &m.ID, &m.Title, &completed, &at); err != nil {
			return fmt.Errorf("scan milestone: %w", err)
		}
		m.Completed = completed != 0
		m.CompletedAt = timePtr(at)
		i := index[goalID]
		goals[i].Milestones = append(goals[i].Milestones, m)
	}
	return rows.Err()
}

func (s *Store) loadResources(ctx context.Context, ids []any, goals []progress.Goal, index map[string]int) error {
	b := builder()
	query, args := b.Select("goal_id", "id", "type", "title", "url").
		From(b.Table("resources")).
		Where(entsql.In("goal_id", ids...)).
		OrderBy("goal_id", "position").
		Query()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query resources: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			goalID string
			r      progress.Resource
			typ    string
		)
		if err := rows.Scan(&goalID, &r.ID, &typ, &r.Title, &r.URL); err != nil {
			return fmt.Errorf("scan resource: %w", err)
		}
		r.Type = progress.ResourceType(typ)
		i := index[goalID]
		goals[i].Resources = append(goals[i].Resources, r)
	}
	return rows.Err()
}

// SaveGoal upserts g, rewrites its milestones and resources, and appends any
// emitted achievements, all in one transaction.
func (s *Store) SaveGoal(ctx context.Context, g progress.Goal, emitted ...progress.Achievement) (progress.Goal, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		b := builder()
		query, args := b.Insert("goals").
			Columns(goalColumns...).
			Values(g.ID, g.OwnerID, g.Title, string(g.Category), g.Description,
				nullNanos(g.Deadline), g.Progress, boolInt(g.Public),
				toNanos(g.CreatedAt), toNanos(g.UpdatedAt)).
			OnConflict(entsql.ConflictColumns("id"), entsql.ResolveWithNewValues()).
			Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert goal: %w", err)
		}

		for _, table := range []string{"milestones", "resources"} {
			query, args = b.Delete(table).Where(entsql.EQ("goal_id", g.ID)).Query()
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}

		for i, m := range g.Milestones {
			query, args = b.Insert("milestones").
				Columns("id", "goal_id", "position", "title", "completed", "completed_at").
				Values(m.ID, g.ID, i, m.Title, boolInt(m.Completed), nullNanos(m.CompletedAt)).
				Query()
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("insert milestone %s: %w", m.ID, err)
			}
		}

		for i, r := range g.Resources {
			query, args = b.Insert("resources").
				Columns("id", "goal_id", "position", "type", "title", "url").
				Values(r.ID, g.ID, i, string(r.Type), r.Title, r.URL).
				Query()
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("insert resource %s: %w", r.ID, err)
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
		return progress.Goal{}, fmt.Errorf("save goal %s: %w", g.ID, err)
	}
	return g, nil
}

// RemoveGoal deletes a goal; milestones and resources go with it.
func (s *Store) RemoveGoal(ctx context.Context, ownerID, goalID string) error {
	query, args := builder().Delete("goals").
		Where(entsql.And(
			entsql.EQ("id", goalID),
			entsql.EQ("owner_id", ownerID),
		)).
		Query()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("remove goal %s: %w", goalID, err)
	}
	return nil
}
