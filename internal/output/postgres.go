package output

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresWriteTimeout = 5 * time.Second

// PostgresOutput stores every record as a row of (topic, payload jsonb).
type PostgresOutput struct {
	pool  *pgxpool.Pool
	table string
}

func NewPostgresOutput(ctx context.Context, dsn, table string) (*PostgresOutput, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error pinging database: %w", err)
	}
	if table == "" {
		table = "realtime_events"
	}
	p := &PostgresOutput{pool: pool, table: pgx.Identifier{table}.Sanitize()}
	if err := p.createTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *PostgresOutput) createTable(ctx context.Context) error {
	query := fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            id          BIGSERIAL PRIMARY KEY,
            topic       TEXT NOT NULL,
            payload     JSONB NOT NULL,
            received_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )
    `, p.table)
	if _, err := p.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create %s: %w", p.table, err)
	}
	return nil
}

func (p *PostgresOutput) WriteMessage(topic string, msg []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), postgresWriteTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (topic, payload) VALUES ($1, $2)`, p.table)
	if _, err := p.pool.Exec(ctx, query, topic, string(msg)); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", p.table, err)
	}
	return nil
}

func (p *PostgresOutput) Close() error {
	p.pool.Close()
	return nil
}
