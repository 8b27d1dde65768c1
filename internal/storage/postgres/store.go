package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"

	"swapScope/internal/storage"
)

// Store provides Postgres persistence for transaction records.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the transactions table when it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS transactions (
			id                  text PRIMARY KEY,
			chain_id            bigint NOT NULL,
			hash                text NOT NULL,
			from_address        text NOT NULL,
			kind                text NOT NULL,
			summary             text NOT NULL,
			input_symbol        text,
			output_symbol       text,
			input_raw           text,
			output_raw          text,
			token               text,
			spender             text,
			status              text NOT NULL,
			submitted_at        timestamptz NOT NULL,
			finalized_at        timestamptz,
			block_number        bigint,
			gas_used            bigint,
			realized_input_raw  text,
			realized_output_raw text,
			updated_at          timestamptz NOT NULL DEFAULT now()
		)
	`)
	return err
}

// Put inserts or updates a record by id.
func (s *Store) Put(ctx context.Context, rec storage.Record) error {
	if rec.ID == "" {
		return fmt.Errorf("record has no id")
	}
	var finalized interface{}
	if !rec.FinalizedAt.IsZero() {
		finalized = rec.FinalizedAt
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO transactions (
			id, chain_id, hash, from_address, kind, summary,
			input_symbol, output_symbol, input_raw, output_raw,
			token, spender, status, submitted_at, finalized_at,
			block_number, gas_used, realized_input_raw, realized_output_raw, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,now())
		ON CONFLICT (id)
		DO UPDATE SET
			status = EXCLUDED.status,
			finalized_at = EXCLUDED.finalized_at,
			block_number = EXCLUDED.block_number,
			gas_used = EXCLUDED.gas_used,
			realized_input_raw = EXCLUDED.realized_input_raw,
			realized_output_raw = EXCLUDED.realized_output_raw,
			updated_at = now()
	`,
		rec.ID,
		int64(rec.ChainID),
		rec.Hash.Hex(),
		rec.From.Hex(),
		string(rec.Kind),
		rec.Summary,
		rec.InputSymbol,
		rec.OutputSymbol,
		rec.InputRaw,
		rec.OutputRaw,
		rec.Token.Hex(),
		rec.Spender.Hex(),
		string(rec.Status),
		rec.SubmittedAt,
		finalized,
		int64(rec.BlockNumber),
		int64(rec.GasUsed),
		rec.RealizedInputRaw,
		rec.RealizedOutputRaw,
	)
	return err
}

// Update rewrites an existing record.
func (s *Store) Update(ctx context.Context, rec storage.Record) error {
	return s.Put(ctx, rec)
}

// Pending returns the records still awaiting a receipt, oldest first. It
// lets a long-running process finalize submissions that short-lived
// commands writing to the same database left behind.
func (s *Store) Pending(ctx context.Context) ([]storage.Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, chain_id, hash, from_address, kind, summary,
		       input_symbol, output_symbol, input_raw, output_raw,
		       token, spender, status, submitted_at
		FROM transactions
		WHERE status = $1
		ORDER BY submitted_at
	`, string(storage.StatusPending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []storage.Record
	for rows.Next() {
		var (
			rec     storage.Record
			chainID int64
			hash    string
			from    string
			kind    string
			token   string
			spender string
			status  string
		)
		if err := rows.Scan(&rec.ID, &chainID, &hash, &from, &kind, &rec.Summary,
			&rec.InputSymbol, &rec.OutputSymbol, &rec.InputRaw, &rec.OutputRaw,
			&token, &spender, &status, &rec.SubmittedAt); err != nil {
			return nil, err
		}
		rec.ChainID = uint64(chainID)
		rec.Hash = common.HexToHash(hash)
		rec.From = common.HexToAddress(from)
		rec.Kind = storage.Kind(kind)
		rec.Token = common.HexToAddress(token)
		rec.Spender = common.HexToAddress(spender)
		rec.Status = storage.Status(status)
		pending = append(pending, rec)
	}
	return pending, rows.Err()
}
