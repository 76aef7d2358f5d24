package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/strangelove-ventures/cctp-vault-orchestrator/types"
)

//go:embed schema.sql
var schema string

const columns = `id, direction, user_address, source_chain, dest_chain, amount, pool_id, position,
	status, source_tx_hash, attestation_message, attestation_proof, dest_tx_hash, error_message,
	created_at, updated_at`

var _ Store = (*PostgresStore)(nil)

// PostgresStore is the durable transfer store.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresStore connects, pings and migrates the schema.
func NewPostgresStore(ctx context.Context, cfg types.DatabaseSettings) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if cfg.MaxConns > 0 {
		config.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &PostgresStore{pool: pool, now: time.Now}, nil
}

func (s *PostgresStore) Create(ctx context.Context, rec *types.TransferRecord) (*types.TransferRecord, bool, error) {
	position, err := marshalPosition(rec.Position)
	if err != nil {
		return nil, false, err
	}

	query := `INSERT INTO transfers (` + columns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT DO NOTHING
		RETURNING ` + columns

	// A conflicting withdraw may finish between the insert and the lookup, so try twice.
	for attempt := 0; attempt < 2; attempt++ {
		created, err := scanRecord(s.pool.QueryRow(ctx, query,
			rec.ID,
			string(rec.Direction),
			rec.UserAddress,
			rec.SourceChain,
			rec.DestChain,
			rec.Amount,
			int64(rec.PoolID),
			position,
			string(rec.Status),
			rec.SourceTxHash,
			rec.AttestationMessage,
			rec.AttestationProof,
			rec.DestTxHash,
			rec.ErrorMessage,
			rec.CreatedAt,
			rec.UpdatedAt,
		))
		if err == nil {
			return created, true, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, false, types.NewPersistenceError(err, "failed to create transfer %s", rec.ID)
		}

		existing, err := s.GetByNaturalKey(ctx, rec.Direction, rec.NaturalKey())
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, false, nil
		}
	}
	return nil, false, types.NewValidationError("transfer %s conflicts with an existing record", rec.ID)
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*types.TransferRecord, error) {
	rec, err := scanRecord(s.pool.QueryRow(ctx, `SELECT `+columns+` FROM transfers WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewNotFoundError("transfer %s not found", id)
		}
		return nil, types.NewPersistenceError(err, "failed to get transfer %s", id)
	}
	return rec, nil
}

func (s *PostgresStore) GetByNaturalKey(ctx context.Context, direction types.Direction, key string) (*types.TransferRecord, error) {
	var query string
	switch direction {
	case types.Deposit:
		query = `SELECT ` + columns + ` FROM transfers WHERE direction = 'deposit' AND source_tx_hash = $1`
	case types.Withdraw:
		query = `SELECT ` + columns + ` FROM transfers
			WHERE direction = 'withdraw' AND user_address = $1 AND status NOT IN ('completed', 'failed')`
	default:
		return nil, types.NewValidationError("unknown direction %q", direction)
	}

	rec, err := scanRecord(s.pool.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewPersistenceError(err, "failed to get %s by %s", direction, key)
	}
	return rec, nil
}

// Transition locks the row, applies the patch to the locked state and writes it back in one transaction.
func (s *PostgresStore) Transition(ctx context.Context, id string, p types.Patch) (*types.TransferRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, types.NewPersistenceError(err, "failed to begin transaction")
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	rec, err := scanRecord(tx.QueryRow(ctx, `SELECT `+columns+` FROM transfers WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewNotFoundError("transfer %s not found", id)
		}
		return nil, types.NewPersistenceError(err, "failed to lock transfer %s", id)
	}

	// postgres keeps microseconds; the returned record must match what a later read sees
	if err := types.ApplyPatch(rec, p, s.now().UTC().Truncate(time.Microsecond)); err != nil {
		return nil, err
	}

	position, err := marshalPosition(rec.Position)
	if err != nil {
		return nil, err
	}
	_, err = tx.Exec(ctx, `UPDATE transfers SET
			source_chain = $2, position = $3, status = $4, source_tx_hash = $5,
			attestation_message = $6, attestation_proof = $7, dest_tx_hash = $8,
			error_message = $9, updated_at = $10
		WHERE id = $1`,
		rec.ID,
		rec.SourceChain,
		position,
		string(rec.Status),
		rec.SourceTxHash,
		rec.AttestationMessage,
		rec.AttestationProof,
		rec.DestTxHash,
		rec.ErrorMessage,
		rec.UpdatedAt,
	)
	if err != nil {
		return nil, types.NewPersistenceError(err, "failed to update transfer %s", id)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, types.NewPersistenceError(err, "failed to commit transfer %s", id)
	}
	return rec, nil
}

func (s *PostgresStore) ListResumable(ctx context.Context, f Filter) ([]*types.TransferRecord, error) {
	var (
		where []string
		args  []any
	)
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		args = append(args, statuses)
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if len(f.Directions) > 0 {
		directions := make([]string, len(f.Directions))
		for i, d := range f.Directions {
			directions[i] = string(d)
		}
		args = append(args, directions)
		where = append(where, fmt.Sprintf("direction = ANY($%d)", len(args)))
	}
	if f.RequireSourceTx {
		where = append(where, "source_tx_hash <> ''")
	}

	query := `SELECT ` + columns + ` FROM transfers`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at, id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, types.NewPersistenceError(err, "failed to list resumable transfers")
	}
	defer rows.Close()

	var out []*types.TransferRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, types.NewPersistenceError(err, "failed to scan transfer")
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewPersistenceError(err, "failed to list resumable transfers")
	}
	return out, nil
}

func (s *PostgresStore) Backend() Backend { return Backend{Name: BackendPostgres} }

func (s *PostgresStore) Close() { s.pool.Close() }

func scanRecord(row pgx.Row) (*types.TransferRecord, error) {
	var (
		rec       types.TransferRecord
		direction string
		status    string
		poolID    int64
		position  []byte
	)
	err := row.Scan(
		&rec.ID,
		&direction,
		&rec.UserAddress,
		&rec.SourceChain,
		&rec.DestChain,
		&rec.Amount,
		&poolID,
		&position,
		&status,
		&rec.SourceTxHash,
		&rec.AttestationMessage,
		&rec.AttestationProof,
		&rec.DestTxHash,
		&rec.ErrorMessage,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Direction = types.Direction(direction)
	rec.Status = types.Status(status)
	rec.PoolID = uint64(poolID)
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	if len(position) > 0 {
		rec.Position = &types.Position{}
		if err := json.Unmarshal(position, rec.Position); err != nil {
			return nil, fmt.Errorf("failed to decode position of %s: %w", rec.ID, err)
		}
	}
	return &rec, nil
}

func marshalPosition(p *types.Position) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	bz, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode position: %w", err)
	}
	return bz, nil
}
