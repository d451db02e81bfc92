package connpool

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/kartikbazzad/bunbase/opbridge/internal/config"
	"github.com/kartikbazzad/bunbase/opbridge/internal/resource"
)

// PGXFactory is the resource.Factory for the "pgx" driver named in
// db.<name>.factory. It dials single *pgx.Conn resources rather than
// handing back a pgxpool, since this package's own Pool owns the
// pooling — each connpool entry stays a named pool of validated
// back-end connections, not a pool of pools.
type PGXFactory struct {
	dsn string
}

// NewPGXFactory builds a Factory that dials dbc.Connection (a postgres
// DSN) on Create.
func NewPGXFactory(dbc config.DBConfig) (resource.Factory, error) {
	if dbc.Connection == "" {
		return nil, fmt.Errorf("pgx factory: db connection string is empty")
	}
	return &PGXFactory{dsn: dbc.Connection}, nil
}

func (f *PGXFactory) Create() (any, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := pgx.Connect(ctx, f.dsn)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (f *PGXFactory) Destroy(r any) error {
	conn := r.(*pgx.Conn)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return conn.Close(ctx)
}

// Validate issues the trivial probe calls for ("select 1").
func (f *PGXFactory) Validate(r any) bool {
	conn, ok := r.(*pgx.Conn)
	if !ok || conn == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var one int
	if err := conn.QueryRow(ctx, "select 1").Scan(&one); err != nil {
		return false
	}
	return one == 1
}
