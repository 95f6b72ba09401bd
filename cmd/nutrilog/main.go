/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tomoncle/nutrilog/api"
	"github.com/tomoncle/nutrilog/catalog"
	"github.com/tomoncle/nutrilog/config"
	"github.com/tomoncle/nutrilog/database"
	"github.com/tomoncle/nutrilog/utils"
	"github.com/uptrace/bun"
)

var logger = utils.NewLogger("NUTRILOG")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logger.WithError(err).Error("command failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string
	root := &cobra.Command{
		Use:           "nutrilog",
		Short:         "Nutrition logging backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", config.DefaultFile, "configuration file")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg.ApplyLogging()
		return cfg, nil
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Connect, migrate and serve the HTTP API",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := load()
				if err != nil {
					return err
				}
				db, err := connect(cmd.Context(), cfg, false)
				if err != nil {
					return err
				}
				defer closeDB()

				server := api.NewServer(db, api.Options{Mode: cfg.Server.Mode, DefaultLimit: cfg.Server.DefaultLimit})
				return server.ListenAndServe(cmd.Context(), cfg.Server.Addr)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create the tables and apply pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := load()
				if err != nil {
					return err
				}
				if _, err := connect(cmd.Context(), cfg, true); err != nil {
					return err
				}
				defer closeDB()
				logger.Info("migrations applied")
				return nil
			},
		},
		&cobra.Command{
			Use:   "seed [file]",
			Short: "Upsert the food catalog by name",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := load()
				if err != nil {
					return err
				}
				path := cfg.Database.Catalog.File
				if len(args) == 1 {
					path = args[0]
				}
				db, err := connect(cmd.Context(), cfg, true)
				if err != nil {
					return err
				}
				defer closeDB()

				n, err := catalog.SeedFile(cmd.Context(), db, path)
				if err != nil {
					return err
				}
				logger.WithField("foods", n).WithField("file", path).Info("catalog seeded")
				return nil
			},
		},
		newForeignKeyCmd(load),
	)
	return root
}

const defaultForeignKeyFile = "configs/foreign_keys.yml"

func newForeignKeyCmd(load func() (*config.Config, error)) *cobra.Command {
	policy := func() (*database.ConfigurableForeignKeyManager, error) {
		cfg, err := load()
		if err != nil {
			return nil, err
		}
		return database.LoadForeignKeyPolicy(database.GetLogger(), cfg.Database.ForeignKeyFile)
	}

	fk := &cobra.Command{
		Use:   "fk",
		Short: "Inspect the foreign key policy",
	}
	fk.AddCommand(
		&cobra.Command{
			Use:   "export [file]",
			Short: "Write the active foreign key policy as YAML",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				fkm, err := policy()
				if err != nil {
					return err
				}
				out := defaultForeignKeyFile
				if len(args) == 1 {
					out = args[0]
				}
				if err := fkm.ExportToConfig(out); err != nil {
					return err
				}
				logger.WithField("file", out).WithField("constraints", len(fkm.ListAllConstraints())).Info("foreign key policy exported")
				return nil
			},
		},
		&cobra.Command{
			Use:   "check",
			Short: "Validate the foreign key policy and list its constraints",
			RunE: func(_ *cobra.Command, _ []string) error {
				fkm, err := policy()
				if err != nil {
					return err
				}
				source := fkm.GetConfigPath()
				if source == "" {
					source = "built-in"
				}
				for _, c := range fkm.ListAllConstraints() {
					logger.WithField("on_delete", c.DeleteAction()).
						WithField("references", c.ReferenceTable+"."+c.ReferenceColumn).
						Info(c.Table + "." + c.Column)
				}
				logger.WithField("source", source).Info("foreign key policy is valid")
				return nil
			},
		},
	)
	return fk
}

// connect opens the global database. forceMigrate runs migrations even when
// the configuration skips them on startup.
func connect(ctx context.Context, cfg *config.Config, forceMigrate bool) (*bun.DB, error) {
	dbCfg := cfg.DatabaseConfig()
	if forceMigrate {
		dbCfg.DataMigrateConfig.EnableMigrateOnStartup = true
	}
	if dbCfg.DataMigrateConfig.EnableMigrateOnStartup && dbCfg.DataInitConfig.AutoInitOnMigration {
		if err := database.RegisterMigration(catalog.SeedMigration(dbCfg.DataInitConfig.Filepath)); err != nil {
			return nil, err
		}
	}
	return database.InitDB(ctx, dbCfg)
}

func closeDB() {
	if err := database.CloseDB(); err != nil {
		logger.WithError(err).Warn("failed to close database")
	}
}
