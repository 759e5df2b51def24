package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/cogmem/cogmem/internal/domain"
)

// Semantic is the Postgres/pgvector-backed domain.SemanticStore.
type Semantic struct {
	db *pgxpool.Pool
}

func NewSemantic(db *pgxpool.Pool) *Semantic {
	return &Semantic{db: db}
}

const unitColumns = `id, project_id, unit_type, name, qualified_name, file_path,
	start_line, end_line, start_column, end_column,
	signature, body, docstring, visibility, modifiers, parameters, return_type,
	summary, purpose,
	cyclomatic, cognitive, nesting, lines, has_tests, has_documentation, test_coverage,
	created_at, updated_at`

func scanUnit(row pgx.Row) (*domain.SemanticUnit, error) {
	u := &domain.SemanticUnit{}
	if err := row.Scan(
		&u.ID, &u.ProjectID, &u.UnitType, &u.Name, &u.QualifiedName, &u.FilePath,
		&u.StartLine, &u.EndLine, &u.StartColumn, &u.EndColumn,
		&u.Signature, &u.Body, &u.Docstring, &u.Visibility, &u.Modifiers, &u.Parameters, &u.ReturnType,
		&u.Summary, &u.Purpose,
		&u.Complexity.Cyclomatic, &u.Complexity.Cognitive, &u.Complexity.Nesting, &u.Complexity.Lines,
		&u.HasTests, &u.HasDocumentation, &u.TestCoverage,
		&u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func scanUnitRows(rows pgx.Rows) ([]domain.SemanticUnit, error) {
	defer rows.Close()
	var out []domain.SemanticUnit
	for rows.Next() {
		var u domain.SemanticUnit
		if err := rows.Scan(
			&u.ID, &u.ProjectID, &u.UnitType, &u.Name, &u.QualifiedName, &u.FilePath,
			&u.StartLine, &u.EndLine, &u.StartColumn, &u.EndColumn,
			&u.Signature, &u.Body, &u.Docstring, &u.Visibility, &u.Modifiers, &u.Parameters, &u.ReturnType,
			&u.Summary, &u.Purpose,
			&u.Complexity.Cyclomatic, &u.Complexity.Cognitive, &u.Complexity.Nesting, &u.Complexity.Lines,
			&u.HasTests, &u.HasDocumentation, &u.TestCoverage,
			&u.CreatedAt, &u.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Semantic) UpsertUnit(ctx context.Context, u *domain.SemanticUnit) error {
	var embedding *pgvector.Vector
	if len(u.Embedding) > 0 {
		v := pgvector.NewVector(u.Embedding)
		embedding = &v
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	err := s.db.QueryRow(ctx,
		`INSERT INTO semantic_units (
			id, project_id, unit_type, name, qualified_name, file_path,
			start_line, end_line, start_column, end_column,
			signature, body, docstring, visibility, modifiers, parameters, return_type,
			summary, purpose, embedding,
			cyclomatic, cognitive, nesting, lines, has_tests, has_documentation, test_coverage,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17,
			$18, $19, $20,
			$21, $22, $23, $24, $25, $26, $27,
			$28, $29
		)
		ON CONFLICT (project_id, qualified_name) DO UPDATE SET
			unit_type = EXCLUDED.unit_type, name = EXCLUDED.name, file_path = EXCLUDED.file_path,
			start_line = EXCLUDED.start_line, end_line = EXCLUDED.end_line,
			start_column = EXCLUDED.start_column, end_column = EXCLUDED.end_column,
			signature = EXCLUDED.signature, body = EXCLUDED.body, docstring = EXCLUDED.docstring,
			visibility = EXCLUDED.visibility, modifiers = EXCLUDED.modifiers,
			parameters = EXCLUDED.parameters, return_type = EXCLUDED.return_type,
			summary = EXCLUDED.summary, purpose = EXCLUDED.purpose, embedding = EXCLUDED.embedding,
			cyclomatic = EXCLUDED.cyclomatic, cognitive = EXCLUDED.cognitive,
			nesting = EXCLUDED.nesting, lines = EXCLUDED.lines,
			has_tests = EXCLUDED.has_tests, has_documentation = EXCLUDED.has_documentation,
			test_coverage = EXCLUDED.test_coverage, updated_at = EXCLUDED.updated_at
		RETURNING id`,
		u.ID, u.ProjectID, u.UnitType, u.Name, u.QualifiedName, u.FilePath,
		u.StartLine, u.EndLine, u.StartColumn, u.EndColumn,
		u.Signature, u.Body, u.Docstring, u.Visibility, u.Modifiers, u.Parameters, u.ReturnType,
		u.Summary, u.Purpose, embedding,
		u.Complexity.Cyclomatic, u.Complexity.Cognitive, u.Complexity.Nesting, u.Complexity.Lines,
		u.HasTests, u.HasDocumentation, u.TestCoverage,
		u.CreatedAt, u.UpdatedAt,
	).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("pgstore: upsert_unit: %w", err)
	}
	return nil
}

func (s *Semantic) GetUnit(ctx context.Context, id uuid.UUID) (*domain.SemanticUnit, error) {
	row := s.db.QueryRow(ctx, `SELECT `+unitColumns+` FROM semantic_units WHERE id = $1`, id)
	return scanUnit(row)
}

func (s *Semantic) FindByQualifiedName(ctx context.Context, projectID uuid.UUID, name string) (*domain.SemanticUnit, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+unitColumns+` FROM semantic_units WHERE project_id = $1 AND qualified_name = $2`,
		projectID, name,
	)
	return scanUnit(row)
}

func (s *Semantic) UnitsInFile(ctx context.Context, projectID uuid.UUID, path string) ([]domain.SemanticUnit, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+unitColumns+` FROM semantic_units WHERE project_id = $1 AND file_path = $2 ORDER BY start_line`,
		projectID, path,
	)
	if err != nil {
		return nil, fmt.Errorf("pgstore: units_in_file: %w", err)
	}
	return scanUnitRows(rows)
}

// SearchSimilar applies spec.md §4.4's bonus formula in SQL: base cosine
// similarity, +0.1 has_documentation, +0.1 has_tests, +0.2·test_coverage,
// -0.1 if cyclomatic>10, clamped to [0,1].
func (s *Semantic) SearchSimilar(ctx context.Context, queryVec []float32, k int, threshold float64) ([]domain.UnitWithScore, error) {
	if k <= 0 {
		k = 10
	}
	vec := pgvector.NewVector(queryVec)

	rows, err := s.db.Query(ctx,
		`SELECT `+unitColumns+`,
			GREATEST(0, LEAST(1,
				(1 - (embedding <=> $1))
				+ (CASE WHEN has_documentation THEN 0.1 ELSE 0 END)
				+ (CASE WHEN has_tests THEN 0.1 ELSE 0 END)
				+ 0.2 * COALESCE(test_coverage, 0)
				- (CASE WHEN cyclomatic > 10 THEN 0.1 ELSE 0 END)
			)) AS score
		 FROM semantic_units
		 WHERE embedding IS NOT NULL AND (1 - (embedding <=> $1)) >= $2
		 ORDER BY score DESC
		 LIMIT $3`,
		vec, threshold, k,
	)
	if err != nil {
		return nil, fmt.Errorf("pgstore: search_similar units: %w", err)
	}
	defer rows.Close()

	var out []domain.UnitWithScore
	for rows.Next() {
		var u domain.UnitWithScore
		if err := rows.Scan(
			&u.ID, &u.ProjectID, &u.UnitType, &u.Name, &u.QualifiedName, &u.FilePath,
			&u.StartLine, &u.EndLine, &u.StartColumn, &u.EndColumn,
			&u.Signature, &u.Body, &u.Docstring, &u.Visibility, &u.Modifiers, &u.Parameters, &u.ReturnType,
			&u.Summary, &u.Purpose,
			&u.Complexity.Cyclomatic, &u.Complexity.Cognitive, &u.Complexity.Nesting, &u.Complexity.Lines,
			&u.HasTests, &u.HasDocumentation, &u.TestCoverage,
			&u.CreatedAt, &u.UpdatedAt,
			&u.Score,
		); err != nil {
			return nil, fmt.Errorf("pgstore: scan search_similar row: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Semantic) AllUnits(ctx context.Context, projectID uuid.UUID) ([]domain.SemanticUnit, error) {
	var rows pgx.Rows
	var err error
	if projectID == uuid.Nil {
		rows, err = s.db.Query(ctx, `SELECT `+unitColumns+` FROM semantic_units ORDER BY qualified_name`)
	} else {
		rows, err = s.db.Query(ctx, `SELECT `+unitColumns+` FROM semantic_units WHERE project_id = $1 ORDER BY qualified_name`, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("pgstore: all_units: %w", err)
	}
	return scanUnitRows(rows)
}

func (s *Semantic) AddDependency(ctx context.Context, d *domain.Dependency) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO dependencies (id, source_id, target_id, dependency_type, is_direct, is_runtime, is_dev, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (source_id, target_id, dependency_type) DO UPDATE SET
			is_direct = EXCLUDED.is_direct, is_runtime = EXCLUDED.is_runtime, is_dev = EXCLUDED.is_dev, metadata = EXCLUDED.metadata
		 RETURNING id`,
		d.ID, d.SourceID, d.TargetID, d.DependencyType, d.IsDirect, d.IsRuntime, d.IsDev, d.Metadata, d.CreatedAt,
	).Scan(&d.ID)
	if err != nil {
		return fmt.Errorf("pgstore: add_dependency: %w", err)
	}
	return nil
}

const depColumns = `id, source_id, target_id, dependency_type, is_direct, is_runtime, is_dev, metadata, created_at`

func scanDepRows(rows pgx.Rows) ([]domain.Dependency, error) {
	defer rows.Close()
	var out []domain.Dependency
	for rows.Next() {
		var d domain.Dependency
		if err := rows.Scan(&d.ID, &d.SourceID, &d.TargetID, &d.DependencyType, &d.IsDirect, &d.IsRuntime, &d.IsDev, &d.Metadata, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Semantic) DependenciesOf(ctx context.Context, id uuid.UUID) ([]domain.Dependency, error) {
	rows, err := s.db.Query(ctx, `SELECT `+depColumns+` FROM dependencies WHERE source_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("pgstore: dependencies_of: %w", err)
	}
	return scanDepRows(rows)
}

func (s *Semantic) DependentsOf(ctx context.Context, id uuid.UUID) ([]domain.Dependency, error) {
	rows, err := s.db.Query(ctx, `SELECT `+depColumns+` FROM dependencies WHERE target_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("pgstore: dependents_of: %w", err)
	}
	return scanDepRows(rows)
}

func (s *Semantic) AllDependencies(ctx context.Context, projectID uuid.UUID) ([]domain.Dependency, error) {
	rows, err := s.db.Query(ctx,
		`SELECT d.id, d.source_id, d.target_id, d.dependency_type, d.is_direct, d.is_runtime, d.is_dev, d.metadata, d.created_at
		 FROM dependencies d
		 JOIN semantic_units u ON u.id = d.source_id
		 WHERE u.project_id = $1`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("pgstore: all_dependencies: %w", err)
	}
	return scanDepRows(rows)
}

func (s *Semantic) Stats(ctx context.Context, projectID uuid.UUID) (domain.SemanticStats, error) {
	var stats domain.SemanticStats
	err := s.db.QueryRow(ctx,
		`SELECT
			COUNT(*) FILTER (WHERE project_id = $1 OR $1 = '00000000-0000-0000-0000-000000000000'),
			COUNT(*) FILTER (WHERE NOT has_tests AND (project_id = $1 OR $1 = '00000000-0000-0000-0000-000000000000')),
			COUNT(*) FILTER (WHERE NOT has_documentation AND (project_id = $1 OR $1 = '00000000-0000-0000-0000-000000000000'))
		 FROM semantic_units`,
		projectID,
	).Scan(&stats.UnitCount, &stats.UntestedCount, &stats.UndocumentedCount)
	if err != nil {
		return domain.SemanticStats{}, fmt.Errorf("pgstore: semantic stats: %w", err)
	}

	if err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM dependencies d
		 JOIN semantic_units u ON u.id = d.source_id
		 WHERE u.project_id = $1 OR $1 = '00000000-0000-0000-0000-000000000000'`,
		projectID,
	).Scan(&stats.DependencyCount); err != nil {
		return domain.SemanticStats{}, fmt.Errorf("pgstore: semantic dependency stats: %w", err)
	}

	return stats, nil
}

var _ domain.SemanticStore = (*Semantic)(nil)
