// cmd/inventory-service/main.go
package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"inventory/internal/pkg/bootstrap"
	"inventory/internal/pkg/logger"
	"inventory/internal/service/inventory/infrastructure"
	"inventory/internal/service/inventory/interfaces"
)

const serviceName = "inventory-service"

func main() {
	app := &cli.App{
		Name:  serviceName,
		Usage: "product inventory, shopping cart claims and checkout",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the YAML config file",
				EnvVars: []string{"CONFIG_FILE"},
			},
		},
		Before: func(c *cli.Context) error {
			cfg, err := bootstrap.Init(c.String("config"))
			if err != nil {
				return err
			}
			logger.Init(cfg.App.Name, cfg.App.LogLevel)
			return nil
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "start the HTTP service",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "create or update the MySQL tables",
				Action: migrate,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("inventory-service exited with error")
	}
}

func serve(c *cli.Context) error {
	cfg := bootstrap.GetCurrentConfig()

	deps, err := buildDependencies(cfg)
	if err != nil {
		deps.close(c.Context)
		return err
	}

	handler := interfaces.NewInventoryHandler(deps.service, nil)
	return bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: cfg.App.Name,
		Port:        cfg.App.Port,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			handler.RegisterRoutes(appCtx.Mux)
		},
		Closers: deps.closers,
	})
}

func migrate(c *cli.Context) error {
	cfg := bootstrap.GetCurrentConfig()

	db, err := infrastructure.OpenMySQL(mysqlOptions(cfg))
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := infrastructure.Migrate(db); err != nil {
		return err
	}
	log.Info().Str("database", cfg.Infra.MySQL.Database).Msg("Migration complete")
	return nil
}
