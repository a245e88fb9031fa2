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
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/eslsoft/intentd/internal/adapter/connectrpc"
)

func bindFlagToViper(key string, flag *pflag.Flag) {
	if flag == nil {
		return
	}
	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// addClientFlags registers the flags of commands that call a running server.
// Keys live under the command name so each command keeps its own binding.
func addClientFlags(cmd *cobra.Command) {
	cmd.Flags().String("addr", "http://localhost:8080", "intentd server base URL")
	cmd.Flags().Duration("timeout", 30*time.Second, "request timeout")
	bindFlagToViper(cmd.Name()+".addr", cmd.Flags().Lookup("addr"))
	bindFlagToViper(cmd.Name()+".timeout", cmd.Flags().Lookup("timeout"))
}

func newRemoteClient(cmd *cobra.Command) *connectrpc.Client {
	httpClient := &http.Client{Timeout: viper.GetDuration(cmd.Name() + ".timeout")}
	return connectrpc.NewClient(httpClient, viper.GetString(cmd.Name()+".addr"))
}

// normalizeValues trims entries and drops blanks; nil when nothing is left.
func normalizeValues(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	result := make([]string, 0, len(values))
	for _, value := range values {
		v := strings.TrimSpace(value)
		if v == "" {
			continue
		}
		result = append(result, v)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
