package felt

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	// Registers the postgres driver for sqlx connections.
	_ "github.com/lib/pq"
	"github.com/zoobzio/astql/postgres"
	"github.com/zoobzio/soy"
)

// Archive is the optional long-term Postgres store of emitted turns,
// backed by soy with pgvector signatures for similarity queries. The
// operational state lives in the JSON StateStore; the archive exists for
// history that outlives the bounded emission cache.
type Archive struct {
	emissions *soy.Soy[CachedEmission]
	db        *sqlx.DB
}

// NewArchive creates a soy-backed archive on an open database handle.
func NewArchive(db *sqlx.DB) (*Archive, error) {
	renderer := postgres.New()

	emissions, err := soy.New[CachedEmission](db, "emissions", renderer)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize emissions table: %w", err)
	}

	return &Archive{
		emissions: emissions,
		db:        db,
	}, nil
}

// Record persists one emitted turn.
func (a *Archive) Record(ctx context.Context, e CachedEmission) error {
	if _, err := a.emissions.Insert().Exec(ctx, &e); err != nil {
		return fmt.Errorf("failed to insert emission: %w", err)
	}
	return nil
}

// SimilarEmissions finds archived emissions ordered by signature distance
// to the query, nearest first.
func (a *Archive) SimilarEmissions(ctx context.Context, query FeltSignature, limit int) ([]CachedEmission, error) {
	rows, err := a.emissions.Query().
		WhereNotNull("signature").
		OrderByExpr("signature", "<->", "query_signature", "asc").
		Limit(limit).
		Exec(ctx, map[string]any{"query_signature": Vector(query)})
	if err != nil {
		return nil, fmt.Errorf("failed to search emissions: %w", err)
	}

	out := make([]CachedEmission, len(rows))
	for i, r := range rows {
		out[i] = *r
	}
	return out, nil
}

// FamilyEmissions loads the most recent archived emissions of a family.
func (a *Archive) FamilyEmissions(ctx context.Context, familyID string, limit int) ([]CachedEmission, error) {
	rows, err := a.emissions.Query().
		Where("family_id", "=", "family_id").
		OrderBy("timestamp", "desc").
		Limit(limit).
		Exec(ctx, map[string]any{"family_id": familyID})
	if err != nil {
		return nil, fmt.Errorf("failed to get family emissions: %w", err)
	}

	out := make([]CachedEmission, len(rows))
	for i, r := range rows {
		out[i] = *r
	}
	return out, nil
}

// Close closes the underlying database connection.
func (a *Archive) Close() error {
	return a.db.Close()
}
