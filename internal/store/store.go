// Package store provides a Postgres-backed implementation of
// chain.BlockStore, the durable half of the header chain.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/keato/chainpeer/internal/chain"
	"github.com/keato/chainpeer/internal/wire"
	_ "github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

// Config is the connection configuration, loaded from a JSON file with
// environment-variable overrides layered on top.
type Config struct {
	Host     string `json:"db_host"`
	Port     int    `json:"db_port"`
	User     string `json:"db_user"`
	Password string `json:"db_password"`
	Name     string `json:"db_name"`
}

// LoadConfig reads cfg from path (if non-empty) and then applies any
// HEADERSTORE_DB_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if v := os.Getenv("HEADERSTORE_DB_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("HEADERSTORE_DB_USER"); v != "" {
		cfg.User = v
	}
	if v := os.Getenv("HEADERSTORE_DB_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv("HEADERSTORE_DB_NAME"); v != "" {
		cfg.Name = v
	}
	if v := os.Getenv("HEADERSTORE_DB_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err != nil {
			return nil, fmt.Errorf("invalid HEADERSTORE_DB_PORT: %s", v)
		}
		cfg.Port = port
	}

	return &cfg, nil
}

// Postgres is a chain.BlockStore backed by a single "headers" table.
type Postgres struct {
	conn *sql.DB
}

// New opens a connection using explicit parameters.
func New(host string, port int, user, password, dbname string) (*Postgres, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname,
	)
	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Postgres{conn: conn}, nil
}

// NewFromConfig opens a connection using cfg.
func NewFromConfig(cfg *Config) (*Postgres, error) {
	return New(cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name)
}

// Migrate creates the headers table if it does not already exist.
func (p *Postgres) Migrate() error {
	_, err := p.conn.Exec(schemaSQL)
	return err
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() error {
	return p.conn.Close()
}

var _ chain.BlockStore = (*Postgres)(nil)

func (p *Postgres) ByHash(ctx context.Context, hash wire.Hash32) (chain.StoredBlock, error) {
	row := p.conn.QueryRowContext(ctx,
		`SELECT height, hash, version, prev_hash, merkle_root, timestamp, bits, nonce
		 FROM headers WHERE hash = $1`, hash[:])
	return scanRow(row)
}

func (p *Postgres) ByHeight(ctx context.Context, height uint32) (chain.StoredBlock, error) {
	row := p.conn.QueryRowContext(ctx,
		`SELECT height, hash, version, prev_hash, merkle_root, timestamp, bits, nonce
		 FROM headers WHERE height = $1`, height)
	return scanRow(row)
}

func (p *Postgres) Latest(ctx context.Context) (chain.StoredBlock, error) {
	row := p.conn.QueryRowContext(ctx,
		`SELECT height, hash, version, prev_hash, merkle_root, timestamp, bits, nonce
		 FROM headers ORDER BY height DESC LIMIT 1`)
	return scanRow(row)
}

func (p *Postgres) Append(ctx context.Context, b chain.StoredBlock) error {
	var parentID interface{}
	if b.Height > 0 {
		parentID = b.Height - 1
	}
	_, err := p.conn.ExecContext(ctx,
		`INSERT INTO headers (height, hash, version, prev_hash, merkle_root, timestamp, bits, nonce, parent_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT DO NOTHING`,
		b.Height, b.Hash[:], b.Header.Version, b.Header.PrevBlock[:], b.Header.MerkleRoot[:],
		time.Unix(int64(b.Header.Timestamp), 0), b.Header.Bits, b.Header.Nonce, parentID,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRow(row rowScanner) (chain.StoredBlock, error) {
	var (
		height     uint32
		hashBytes  []byte
		version    uint32
		prevBytes  []byte
		merkleBytes []byte
		ts         time.Time
		bits       uint32
		nonce      uint32
	)
	err := row.Scan(&height, &hashBytes, &version, &prevBytes, &merkleBytes, &ts, &bits, &nonce)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return chain.StoredBlock{}, chain.ErrNotFound
		}
		return chain.StoredBlock{}, err
	}

	var hash, prev, merkle wire.Hash32
	copy(hash[:], hashBytes)
	copy(prev[:], prevBytes)
	copy(merkle[:], merkleBytes)

	return chain.StoredBlock{
		Height: height,
		Hash:   hash,
		Header: wire.Block{
			Version:    version,
			PrevBlock:  prev,
			MerkleRoot: merkle,
			Timestamp:  uint32(ts.Unix()),
			Bits:       bits,
			Nonce:      nonce,
		},
	}, nil
}
