package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cogmem/cogmem/internal/domain"
)

// Procedural is the Postgres-backed domain.ProceduralStore.
type Procedural struct {
	db *pgxpool.Pool
}

func NewProcedural(db *pgxpool.Pool) *Procedural {
	return &Procedural{db: db}
}

const patternColumns = `id, pattern_type, name, description, context,
	supporting_episode_ids, times_applied, times_succeeded, success_rate,
	confidence, last_applied_at,
	created_at, updated_at`

func scanPattern(row pgx.Row) (*domain.Pattern, error) {
	p := &domain.Pattern{}
	if err := row.Scan(
		&p.ID, &p.PatternType, &p.Name, &p.Description, &p.Context,
		&p.SupportingEpisodeIDs, &p.TimesApplied, &p.TimesSucceeded, &p.SuccessRate,
		&p.Confidence, &p.LastAppliedAt,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func scanPatternRows(rows pgx.Rows) ([]domain.Pattern, error) {
	defer rows.Close()
	var out []domain.Pattern
	for rows.Next() {
		var p domain.Pattern
		if err := rows.Scan(
			&p.ID, &p.PatternType, &p.Name, &p.Description, &p.Context,
			&p.SupportingEpisodeIDs, &p.TimesApplied, &p.TimesSucceeded, &p.SuccessRate,
			&p.Confidence, &p.LastAppliedAt,
			&p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Procedural) Create(ctx context.Context, p *domain.Pattern) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Confidence == 0 {
		p.Confidence = 0.5
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO patterns (
			id, pattern_type, name, description, context,
			supporting_episode_ids, times_applied, times_succeeded, success_rate,
			confidence, last_applied_at,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11,
			$12, $13
		)`,
		p.ID, p.PatternType, p.Name, p.Description, p.Context,
		p.SupportingEpisodeIDs, p.TimesApplied, p.TimesSucceeded, p.SuccessRate,
		p.Confidence, p.LastAppliedAt,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("pgstore: create pattern: %w", err)
	}
	return nil
}

func (s *Procedural) GetByID(ctx context.Context, id uuid.UUID) (*domain.Pattern, error) {
	row := s.db.QueryRow(ctx, `SELECT `+patternColumns+` FROM patterns WHERE id = $1`, id)
	return scanPattern(row)
}

// FindByContext ranks patterns by full-text similarity between query and the
// stored context field, the pgstore analogue of
// internal/tier/procedural.JaccardContext.
func (s *Procedural) FindByContext(ctx context.Context, query string, limit int) ([]domain.Pattern, error) {
	if limit <= 0 {
		limit = 10
	}
	tokens := make([]string, 0)
	word := ""
	for _, r := range query {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			word += string(r)
			continue
		}
		if word != "" {
			tokens = append(tokens, word)
			word = ""
		}
	}
	if word != "" {
		tokens = append(tokens, word)
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+patternColumns+`
		 FROM patterns
		 WHERE to_tsvector('english', context || ' ' || name) @@ to_tsquery('english', $1)
		 ORDER BY ts_rank(to_tsvector('english', context || ' ' || name), to_tsquery('english', $1)) DESC,
		          confidence DESC
		 LIMIT $2`,
		tsOrQuery(tokens), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("pgstore: find_by_context: %w", err)
	}
	return scanPatternRows(rows)
}

func (s *Procedural) Update(ctx context.Context, p *domain.Pattern) error {
	p.UpdatedAt = time.Now()
	tag, err := s.db.Exec(ctx,
		`UPDATE patterns SET
			pattern_type = $1, name = $2, description = $3, context = $4,
			supporting_episode_ids = $5, times_applied = $6, times_succeeded = $7, success_rate = $8,
			confidence = $9, last_applied_at = $10, updated_at = $11
		 WHERE id = $12`,
		p.PatternType, p.Name, p.Description, p.Context,
		p.SupportingEpisodeIDs, p.TimesApplied, p.TimesSucceeded, p.SuccessRate,
		p.Confidence, p.LastAppliedAt, p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("pgstore: update pattern: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Procedural) All(ctx context.Context) ([]domain.Pattern, error) {
	rows, err := s.db.Query(ctx, `SELECT `+patternColumns+` FROM patterns ORDER BY confidence DESC, updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("pgstore: all patterns: %w", err)
	}
	return scanPatternRows(rows)
}

func (s *Procedural) Stats(ctx context.Context) (domain.ProceduralStats, error) {
	var stats domain.ProceduralStats
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(AVG(success_rate), 0), COALESCE(AVG(confidence), 0) FROM patterns`,
	).Scan(&stats.Count, &stats.AverageSuccessRate, &stats.AverageConfidence)
	if err != nil {
		return domain.ProceduralStats{}, fmt.Errorf("pgstore: procedural stats: %w", err)
	}
	return stats, nil
}

var _ domain.ProceduralStore = (*Procedural)(nil)
