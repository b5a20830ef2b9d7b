package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/brojonat/tokenforge/service/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

const buildsTable = "token_builds"

// DefaultListLimit applies when ListBuilds is called without a limit.
const DefaultListLimit = 50

// ErrBuildNotFound is returned by GetBuild when no record has the given id.
var ErrBuildNotFound = errors.New("build record not found")

// Store persists build records. It only ever sees public data: addresses,
// blockhashes and counts. Envelopes and keys are never stored.
type Store struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
}

// NewStore creates a new Store with the given database connection pool.
// If m is nil, no metrics are recorded.
func NewStore(pool *pgxpool.Pool, m *metrics.Metrics) *Store {
	return &Store{pool: pool, metrics: m}
}

// Build is a record of one successfully built transaction.
type Build struct {
	ID                   int64     `json:"id"`
	Operation            string    `json:"operation"`
	Network              string    `json:"network"`
	Payer                string    `json:"payer"`
	Mint                 string    `json:"mint"`
	Blockhash            string    `json:"blockhash"`
	LastValidBlockHeight int64     `json:"last_valid_block_height"`
	InstructionCount     int32     `json:"instruction_count"`
	CreatedAccounts      []string  `json:"created_accounts"`
	Encoding             string    `json:"encoding"`
	CreatedAt            time.Time `json:"created_at"`
}

// CreateBuildParams contains the parameters for recording a build.
type CreateBuildParams struct {
	Operation            string
	Network              string
	Payer                string
	Mint                 string
	Blockhash            string
	LastValidBlockHeight int64
	InstructionCount     int32
	CreatedAccounts      []string
	Encoding             string
}

// ListBuildsParams filters and paginates build records. Empty filters match
// everything.
type ListBuildsParams struct {
	Payer     string
	Operation string
	Mint      string
	Limit     int32
	Offset    int32
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	start := time.Now()
	_, err := s.pool.Exec(ctx, schema)
	s.record("migrate", start, err)
	if err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// CreateBuild inserts a build record.
func (s *Store) CreateBuild(ctx context.Context, params CreateBuildParams) (*Build, error) {
	created := params.CreatedAccounts
	if created == nil {
		created = []string{}
	}

	start := time.Now()
	row := s.pool.QueryRow(ctx, `
		INSERT INTO token_builds (
			operation, network, payer, mint, blockhash,
			last_valid_block_height, instruction_count, created_accounts, encoding
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+buildColumns,
		params.Operation,
		params.Network,
		params.Payer,
		params.Mint,
		params.Blockhash,
		params.LastValidBlockHeight,
		params.InstructionCount,
		created,
		params.Encoding,
	)
	build, err := scanBuild(row)
	s.record("create_build", start, err)
	if err != nil {
		return nil, err
	}
	return build, nil
}

// GetBuild retrieves a build record by id.
func (s *Store) GetBuild(ctx context.Context, id int64) (*Build, error) {
	start := time.Now()
	build, err := scanBuild(s.pool.QueryRow(ctx, `SELECT `+buildColumns+` FROM token_builds WHERE id = $1`, id))
	s.record("get_build", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBuildNotFound
	}
	if err != nil {
		return nil, err
	}
	return build, nil
}

// ListBuilds returns matching build records, newest first.
func (s *Store) ListBuilds(ctx context.Context, params ListBuildsParams) ([]*Build, error) {
	if params.Limit <= 0 {
		params.Limit = DefaultListLimit
	}
	where, args := params.filter()
	args = append(args, params.Limit, params.Offset)
	query := fmt.Sprintf(`SELECT %s FROM token_builds%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		buildColumns, where, len(args)-1, len(args))

	start := time.Now()
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		s.record("list_builds", start, err)
		return nil, err
	}
	builds, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Build, error) {
		return scanBuild(row)
	})
	s.record("list_builds", start, err)
	if err != nil {
		return nil, err
	}
	return builds, nil
}

// CountBuilds counts matching build records. Limit and Offset are ignored.
func (s *Store) CountBuilds(ctx context.Context, params ListBuildsParams) (int64, error) {
	where, args := params.filter()

	start := time.Now()
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM token_builds`+where, args...).Scan(&count)
	s.record("count_builds", start, err)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteBuildsOlderThan removes records created before the cutoff and
// returns how many were deleted.
func (s *Store) DeleteBuildsOlderThan(ctx context.Context, before time.Time) (int64, error) {
	start := time.Now()
	tag, err := s.pool.Exec(ctx, `DELETE FROM token_builds WHERE created_at < $1`, before)
	s.record("delete_builds", start, err)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const buildColumns = `id, operation, network, payer, mint, blockhash,
	last_valid_block_height, instruction_count, created_accounts, encoding, created_at`

func scanBuild(row pgx.Row) (*Build, error) {
	var b Build
	err := row.Scan(
		&b.ID,
		&b.Operation,
		&b.Network,
		&b.Payer,
		&b.Mint,
		&b.Blockhash,
		&b.LastValidBlockHeight,
		&b.InstructionCount,
		&b.CreatedAccounts,
		&b.Encoding,
		&b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (p ListBuildsParams) filter() (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("payer", p.Payer)
	add("operation", p.Operation)
	add("mint", p.Mint)

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *Store) record(operation string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.RecordDBQuery(operation, buildsTable, time.Since(start).Seconds(), err)
	}
}
