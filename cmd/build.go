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
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eslsoft/intentd/internal/app"
	intentdv1 "github.com/eslsoft/intentd/pkg/api/intentd/v1"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Queue a model build, or drain queued builds locally with --run-once",
	RunE: func(cmd *cobra.Command, args []string) error {
		runOnce, _ := cmd.Flags().GetBool("run-once")
		if runOnce {
			return drainBuilds(cmd)
		}

		namespace, _ := cmd.Flags().GetString("namespace")
		application, _ := cmd.Flags().GetString("app")
		language, _ := cmd.Flags().GetString("language")
		if namespace == "" || application == "" {
			return errors.New("--namespace and --app are required")
		}
		res, err := newRemoteClient(cmd).TriggerBuild(cmd.Context(), &intentdv1.TriggerBuildRequest{
			Namespace:       namespace,
			ApplicationName: application,
			Language:        language,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

// drainBuilds processes one batch of pending triggers in this process.
func drainBuilds(cmd *cobra.Command) error {
	container, cleanup, err := app.Initialize()
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer cleanup()

	ctx := cmd.Context()
	if !container.Configuration.InitRepository(ctx) {
		return errors.New("configuration cache initialization failed")
	}
	done, err := container.Worker.RunOnce(ctx)
	cmd.Printf("builds completed: %d\n", done)
	return err
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringP("namespace", "n", "", "application namespace")
	buildCmd.Flags().StringP("app", "a", "", "application name")
	buildCmd.Flags().StringP("language", "l", "", "limit the build to one locale")
	buildCmd.Flags().Bool("run-once", false, "process pending build triggers locally and exit")
	addClientFlags(buildCmd)
}
