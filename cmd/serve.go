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
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eslsoft/intentd/internal/app"
)

const serveMigrateKey = "serve.migrate"

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the connect RPC server, the change listener and the build worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		container, cleanup, err := app.Initialize()
		if err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
		defer cleanup()
		logger := container.Logger
		cfg := container.Config

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if viper.GetBool(serveMigrateKey) {
			if err := migrateAll(ctx, container); err != nil {
				return err
			}
		}
		if !container.Configuration.InitRepository(ctx) {
			return errors.New("configuration cache initialization failed")
		}

		p := pool.New().WithErrors().WithContext(ctx).WithCancelOnError()
		p.Go(func(ctx context.Context) error {
			return ignoreCanceled(container.Notifier.Start(ctx))
		})
		if cfg.Build.WorkerEnabled {
			p.Go(func(ctx context.Context) error {
				return ignoreCanceled(container.Worker.Run(ctx, cfg.Build.Interval))
			})
		}
		p.Go(func(ctx context.Context) error {
			errCh := make(chan error, 1)
			go func() { errCh <- container.Server.Start() }()
			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				logger.Info("shutdown requested")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return container.Server.Shutdown(shutdownCtx)
			}
		})
		return p.Wait()
	},
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "HTTP port (overrides server.http_port)")
	serveCmd.Flags().Bool("migrate", false, "apply database migrations before serving")
	serveCmd.Flags().Bool("build-worker", true, "run the model build worker")

	bindFlagToViper(serveMigrateKey, serveCmd.Flags().Lookup("migrate"))
	bindFlagToViper("build.worker_enabled", serveCmd.Flags().Lookup("build-worker"))
	serveCmd.PreRun = func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("port") {
			bindFlagToViper("server.http_port", cmd.Flags().Lookup("port"))
		}
	}
}
