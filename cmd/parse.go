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
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	intentdv1 "github.com/eslsoft/intentd/pkg/api/intentd/v1"
)

const (
	parseNamespaceKey = "parse.namespace"
	parseAppKey       = "parse.application"
	parseLanguageKey  = "parse.language"
	parseStatesKey    = "parse.states"
	parseIntentsKey   = "parse.intents"
	parseRegisterKey  = "parse.register"
	parseCheckKey     = "parse.check_consistency"
)

var parseCmd = &cobra.Command{
	Use:   "parse [text...]",
	Short: "Classify sentences against a running server",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		namespace := strings.TrimSpace(viper.GetString(parseNamespaceKey))
		application := strings.TrimSpace(viper.GetString(parseAppKey))
		if namespace == "" || application == "" {
			return errors.New("--namespace and --app are required")
		}

		req := &intentdv1.ParseRequest{
			Namespace:       namespace,
			ApplicationName: application,
			Queries:         args,
			Context: intentdv1.QueryContext{
				Language:         viper.GetString(parseLanguageKey),
				ClientID:         "intentd-cli",
				RegisterQuery:    viper.GetBool(parseRegisterKey),
				CheckConsistency: viper.GetBool(parseCheckKey),
			},
			States: normalizeValues(viper.GetStringSlice(parseStatesKey)),
		}
		for _, intent := range normalizeValues(viper.GetStringSlice(parseIntentsKey)) {
			req.IntentsSubset = append(req.IntentsSubset, intentdv1.IntentQualifier{Intent: intent})
		}

		res, err := newRemoteClient(cmd).Parse(cmd.Context(), req)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().StringP("namespace", "n", "", "application namespace")
	parseCmd.Flags().StringP("app", "a", "", "application name")
	parseCmd.Flags().StringP("language", "l", "", "request locale, e.g. en or fr-CA")
	parseCmd.Flags().StringSlice("state", nil, "dialog states, comma separated or repeated")
	parseCmd.Flags().StringSlice("intent", nil, "restrict to these qualified intents")
	parseCmd.Flags().Bool("register", false, "register the sentence as unvalidated")
	parseCmd.Flags().Bool("check-consistency", false, "fail when the classification differs from the validated sentence")
	addClientFlags(parseCmd)

	bindFlagToViper(parseNamespaceKey, parseCmd.Flags().Lookup("namespace"))
	bindFlagToViper(parseAppKey, parseCmd.Flags().Lookup("app"))
	bindFlagToViper(parseLanguageKey, parseCmd.Flags().Lookup("language"))
	bindFlagToViper(parseStatesKey, parseCmd.Flags().Lookup("state"))
	bindFlagToViper(parseIntentsKey, parseCmd.Flags().Lookup("intent"))
	bindFlagToViper(parseRegisterKey, parseCmd.Flags().Lookup("register"))
	bindFlagToViper(parseCheckKey, parseCmd.Flags().Lookup("check-consistency"))
}
