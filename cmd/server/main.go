// Command server runs the operation pipeline broker: it loads
// configuration, wires the connection pool, data source pool, and RPC
// registry, applies any pending schema migrations, and serves the
// idaCall / restCall / dataSourceLoader routes.
package main

import (
	"fmt"
	"os"

	"github.com/kartikbazzad/bunbase/opbridge/internal/app"
	"github.com/kartikbazzad/bunbase/opbridge/internal/config"
	"github.com/kartikbazzad/bunbase/opbridge/internal/connpool"
	"github.com/kartikbazzad/bunbase/opbridge/internal/datasource"
	"github.com/kartikbazzad/bunbase/opbridge/internal/descriptor"
	"github.com/kartikbazzad/bunbase/opbridge/internal/logger"
	"github.com/kartikbazzad/bunbase/opbridge/internal/registry"
)

func main() {
	cfg, err := config.Load("BUNBASE_")
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	log := logger.Get()

	if err := bootstrapSchema(cfg, log); err != nil {
		log.Error("schema bootstrap failed", "error", err)
		os.Exit(1)
	}

	conns := connpool.NewManager(cfg)
	conns.RegisterFactory("pgx", connpool.NewPGXFactory)
	defer conns.CloseAll()

	descriptors := descriptor.NewStore(cfg.DataSource.Path)
	pools := datasource.NewPoolManager(descriptors, conns, cfg.DataSource.Path, cfg.DataSource.StrictSQLFiltering, log)
	rpcRegistry := registry.NewRPC()

	a := app.New(cfg, log, conns, descriptors, pools, rpcRegistry)
	router := a.Router()

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Info("listening", "addr", addr)
	if err := router.Run(addr); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}
