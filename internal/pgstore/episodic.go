package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/cogmem/cogmem/internal/domain"
)

// Episodic is the Postgres/pgvector-backed domain.EpisodicStore.
type Episodic struct {
	db *pgxpool.Pool
}

func NewEpisodic(db *pgxpool.Pool) *Episodic {
	return &Episodic{db: db}
}

func (s *Episodic) Create(ctx context.Context, e *domain.Episode) error {
	var embedding *pgvector.Vector
	if len(e.Embedding) > 0 {
		v := pgvector.NewVector(e.Embedding)
		embedding = &v
	}

	toolsJSON, err := json.Marshal(e.ToolsUsed)
	if err != nil {
		return fmt.Errorf("marshal tools_used: %w", err)
	}

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO episodes (
			id, created_at, agent_id, project_id,
			task_description, solution_summary, solution_detail, episode_type, outcome, success_score,
			duration_ms, tokens_used,
			files_touched, entities_created, entities_modified, queries_made, tools_used,
			embedding, access_count, pattern_value
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9, $10,
			$11, $12,
			$13, $14, $15, $16, $17,
			$18, $19, $20
		)`,
		e.ID, e.CreatedAt, e.AgentID, e.ProjectID,
		e.TaskDescription, e.SolutionSummary, e.SolutionDetail, e.EpisodeType, e.Outcome, e.SuccessScore,
		e.DurationMs, e.TokensUsed,
		e.FilesTouched, e.EntitiesCreated, e.EntitiesModified, e.QueriesMade, toolsJSON,
		embedding, e.AccessCount, e.PatternValue,
	)
	if err != nil {
		return fmt.Errorf("pgstore: create episode: %w", err)
	}
	return nil
}

const episodeColumns = `id, created_at, agent_id, project_id,
	task_description, solution_summary, solution_detail, episode_type, outcome, success_score,
	duration_ms, tokens_used,
	files_touched, entities_created, entities_modified, queries_made, tools_used,
	access_count, pattern_value`

func scanEpisode(row pgx.Row) (*domain.Episode, error) {
	e := &domain.Episode{}
	var toolsJSON []byte
	if err := row.Scan(
		&e.ID, &e.CreatedAt, &e.AgentID, &e.ProjectID,
		&e.TaskDescription, &e.SolutionSummary, &e.SolutionDetail, &e.EpisodeType, &e.Outcome, &e.SuccessScore,
		&e.DurationMs, &e.TokensUsed,
		&e.FilesTouched, &e.EntitiesCreated, &e.EntitiesModified, &e.QueriesMade, &toolsJSON,
		&e.AccessCount, &e.PatternValue,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if len(toolsJSON) > 0 {
		if err := json.Unmarshal(toolsJSON, &e.ToolsUsed); err != nil {
			return nil, fmt.Errorf("unmarshal tools_used: %w", err)
		}
	}
	return e, nil
}

func scanEpisodeRows(rows pgx.Rows) ([]domain.Episode, error) {
	defer rows.Close()
	var out []domain.Episode
	for rows.Next() {
		var e domain.Episode
		var toolsJSON []byte
		if err := rows.Scan(
			&e.ID, &e.CreatedAt, &e.AgentID, &e.ProjectID,
			&e.TaskDescription, &e.SolutionSummary, &e.SolutionDetail, &e.EpisodeType, &e.Outcome, &e.SuccessScore,
			&e.DurationMs, &e.TokensUsed,
			&e.FilesTouched, &e.EntitiesCreated, &e.EntitiesModified, &e.QueriesMade, &toolsJSON,
			&e.AccessCount, &e.PatternValue,
		); err != nil {
			return nil, err
		}
		if len(toolsJSON) > 0 {
			if err := json.Unmarshal(toolsJSON, &e.ToolsUsed); err != nil {
				return nil, fmt.Errorf("unmarshal tools_used: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Episodic) GetByID(ctx context.Context, id uuid.UUID) (*domain.Episode, error) {
	row := s.db.QueryRow(ctx, `SELECT `+episodeColumns+` FROM episodes WHERE id = $1`, id)
	return scanEpisode(row)
}

func (s *Episodic) FindSimilar(ctx context.Context, queryVec []float32, k int, minSuccessScore float32) ([]domain.EpisodeWithScore, error) {
	if k <= 0 {
		k = 10
	}
	vec := pgvector.NewVector(queryVec)

	rows, err := s.db.Query(ctx,
		`SELECT `+episodeColumns+`, 1 - (embedding <=> $1) AS score
		 FROM episodes
		 WHERE embedding IS NOT NULL AND success_score >= $2
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		vec, minSuccessScore, k,
	)
	if err != nil {
		return nil, fmt.Errorf("pgstore: find_similar episodes: %w", err)
	}
	defer rows.Close()

	var out []domain.EpisodeWithScore
	for rows.Next() {
		var e domain.EpisodeWithScore
		var toolsJSON []byte
		if err := rows.Scan(
			&e.ID, &e.CreatedAt, &e.AgentID, &e.ProjectID,
			&e.TaskDescription, &e.SolutionSummary, &e.SolutionDetail, &e.EpisodeType, &e.Outcome, &e.SuccessScore,
			&e.DurationMs, &e.TokensUsed,
			&e.FilesTouched, &e.EntitiesCreated, &e.EntitiesModified, &e.QueriesMade, &toolsJSON,
			&e.AccessCount, &e.PatternValue,
			&e.Score,
		); err != nil {
			return nil, fmt.Errorf("pgstore: scan find_similar row: %w", err)
		}
		if len(toolsJSON) > 0 {
			_ = json.Unmarshal(toolsJSON, &e.ToolsUsed)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Episodic) FindByKeyword(ctx context.Context, tokens []string, k int) ([]domain.Episode, error) {
	if k <= 0 {
		k = 10
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+episodeColumns+`
		 FROM episodes
		 WHERE to_tsvector('english', task_description || ' ' || solution_summary)
		       @@ to_tsquery('english', $1)
		 ORDER BY ts_rank(to_tsvector('english', task_description || ' ' || solution_summary),
		                   to_tsquery('english', $1)) DESC,
		          created_at DESC
		 LIMIT $2`,
		tsOrQuery(tokens), k,
	)
	if err != nil {
		return nil, fmt.Errorf("pgstore: find_by_keyword: %w", err)
	}
	return scanEpisodeRows(rows)
}

func (s *Episodic) FindByEntities(ctx context.Context, paths []string, k int) ([]domain.Episode, error) {
	if k <= 0 {
		k = 10
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+episodeColumns+`
		 FROM episodes
		 WHERE files_touched && $1 OR entities_modified && $1
		 ORDER BY success_score DESC, created_at DESC
		 LIMIT $2`,
		paths, k,
	)
	if err != nil {
		return nil, fmt.Errorf("pgstore: find_by_entities: %w", err)
	}
	return scanEpisodeRows(rows)
}

func (s *Episodic) FindByFilesTouched(ctx context.Context, files []string, excludeID uuid.UUID, k int) ([]domain.Episode, error) {
	if k <= 0 {
		k = 10
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+episodeColumns+`
		 FROM episodes
		 WHERE files_touched && $1 AND id != $2 AND success_score >= 0.5
		 ORDER BY success_score DESC, created_at DESC
		 LIMIT $3`,
		files, excludeID, k,
	)
	if err != nil {
		return nil, fmt.Errorf("pgstore: find_by_files_touched: %w", err)
	}
	return scanEpisodeRows(rows)
}

func (s *Episodic) List(ctx context.Context, olderThan time.Time) ([]domain.Episode, error) {
	var rows pgx.Rows
	var err error
	if olderThan.IsZero() {
		rows, err = s.db.Query(ctx, `SELECT `+episodeColumns+` FROM episodes ORDER BY created_at ASC`)
	} else {
		rows, err = s.db.Query(ctx, `SELECT `+episodeColumns+` FROM episodes WHERE created_at < $1 ORDER BY created_at ASC`, olderThan)
	}
	if err != nil {
		return nil, fmt.Errorf("pgstore: list episodes: %w", err)
	}
	return scanEpisodeRows(rows)
}

func (s *Episodic) IncrementAccessCount(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `UPDATE episodes SET access_count = access_count + 1 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Episodic) RaisePatternValue(ctx context.Context, id uuid.UUID, newValue float32) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE episodes SET pattern_value = GREATEST(pattern_value, $1) WHERE id = $2`,
		newValue, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Episodic) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM episodes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Episodic) LinkToSymbols(ctx context.Context, episodeID uuid.UUID, unitIDs []uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pgstore: begin link_to_symbols: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, unitID := range unitIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO episode_symbol_links (episode_id, unit_id) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			episodeID, unitID,
		); err != nil {
			return fmt.Errorf("pgstore: link_to_symbols: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *Episodic) Count(ctx context.Context) (domain.EpisodicStats, error) {
	var stats domain.EpisodicStats
	err := s.db.QueryRow(ctx,
		`SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE outcome = 'success'),
			COUNT(*) FILTER (WHERE outcome = 'failure'),
			COALESCE(AVG(success_score), 0)
		 FROM episodes`,
	).Scan(&stats.Total, &stats.Successful, &stats.Failed, &stats.AverageSuccessRate)
	if err != nil {
		return domain.EpisodicStats{}, fmt.Errorf("pgstore: count episodes: %w", err)
	}
	return stats, nil
}

var _ domain.EpisodicStore = (*Episodic)(nil)
