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
	"text/tabwriter"

	"github.com/spf13/cobra"

	intentdv1 "github.com/eslsoft/intentd/pkg/api/intentd/v1"
)

var sentencesCmd = &cobra.Command{
	Use:   "sentences",
	Short: "List classified sentences with a CEL filter",
	Example: `  intentd sentences -n acme -a bank --filter "status == 'validated' && text.startsWith('send')"
  intentd sentences -n acme -a bank --filter "status in ['model', 'validated']" --order-by "updated_at desc"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		namespace, _ := cmd.Flags().GetString("namespace")
		application, _ := cmd.Flags().GetString("app")
		filter, _ := cmd.Flags().GetString("filter")
		orderBy, _ := cmd.Flags().GetString("order-by")
		page, _ := cmd.Flags().GetInt32("page")
		pageSize, _ := cmd.Flags().GetInt32("page-size")
		asJSON, _ := cmd.Flags().GetBool("json")
		if namespace == "" || application == "" {
			return errors.New("--namespace and --app are required")
		}

		res, err := newRemoteClient(cmd).ListSentences(cmd.Context(), &intentdv1.ListSentencesRequest{
			Namespace:       namespace,
			ApplicationName: application,
			Pagination:      &intentdv1.PaginationRequest{PageNo: page, PageSize: pageSize},
			Filter:          filter,
			OrderBy:         orderBy,
		})
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd.OutOrStdout(), res)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TEXT\tLANGUAGE\tINTENT\tSTATUS\tPROBABILITY")
		for _, s := range res.Sentences {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.3f\n", s.Text, s.Language, s.IntentID, s.Status, s.LastIntentProbability)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		cmd.Printf("page %d, %d of %d sentences\n", res.Pagination.PageNo, len(res.Sentences), res.Pagination.Total)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sentencesCmd)

	sentencesCmd.Flags().StringP("namespace", "n", "", "application namespace")
	sentencesCmd.Flags().StringP("app", "a", "", "application name")
	sentencesCmd.Flags().String("filter", "", "CEL filter over status, language, intent_id, text, entity_type, last_intent_probability, updated_at")
	sentencesCmd.Flags().String("order-by", "", "order keys, e.g. \"text asc, updated_at desc\"")
	sentencesCmd.Flags().Int32("page", 1, "page number")
	sentencesCmd.Flags().Int32("page-size", 20, "page size")
	sentencesCmd.Flags().Bool("json", false, "print the raw response")
	addClientFlags(sentencesCmd)
}
