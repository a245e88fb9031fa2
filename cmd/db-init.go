/*
Copyright © 2025 Ambor <saltbo@foxmail.com>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/eslsoft/intentd/internal/adapter/audit"
	"github.com/eslsoft/intentd/internal/app"
	"github.com/eslsoft/intentd/internal/infrastructure/config"
	"github.com/eslsoft/intentd/internal/infrastructure/database"
	"github.com/eslsoft/intentd/internal/infrastructure/server"
)

// dbInitCmd applies the definition store migrations and creates the audit tables.
var dbInitCmd = &cobra.Command{
	Use:   "db-init",
	Short: "Apply database migrations",
	Long:  "Creates the definition, sentence and trigger tables with their change notification triggers, then the audit tables. The sqlite3 audit driver needs a CGO_ENABLED=1 build.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrations(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(dbInitCmd)
}

func runMigrations(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := server.NewLogger(cfg)
	if err != nil {
		return err
	}
	pool, cleanup, err := database.NewConnection(cfg, logger)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer cleanup()
	auditDB, auditCleanup, err := database.NewAuditDB(cfg)
	if err != nil {
		return fmt.Errorf("audit db connect: %w", err)
	}
	defer auditCleanup()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	applied, err := database.Migrate(ctx, pool)
	if err != nil {
		return err
	}
	if err := audit.NewStore(auditDB.DB, auditDB.Driver).Migrate(ctx); err != nil {
		return err
	}
	logger.WithField("files", applied).Info("database migration complete")
	return nil
}

// migrateAll runs the same migrations on an initialized container.
func migrateAll(ctx context.Context, container *app.Container) error {
	applied, err := database.Migrate(ctx, container.Pool)
	if err != nil {
		return err
	}
	if err := container.AuditStore.Migrate(ctx); err != nil {
		return err
	}
	container.Logger.WithField("files", applied).Info("database migration complete")
	return nil
}
