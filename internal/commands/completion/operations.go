// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package completion

import (
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/flowgate/internal/airflow/api"
)

// CompleteOperationNames completes the operation argument of call and tools.
func CompleteOperationNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		var completions []string
		for _, op := range api.Operations() {
			completions = append(completions, op.Name+"\t"+op.Description)
		}
		return completions, cobra.ShellCompDirectiveNoFileComp
	})
}

// CompleteCategories completes --category values.
func CompleteCategories(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		var categories []string
		for _, op := range api.Operations() {
			if !slices.Contains(categories, op.Category) {
				categories = append(categories, op.Category)
			}
		}
		return categories, cobra.ShellCompDirectiveNoFileComp
	})
}

// CompleteOutputFormats completes --output values.
func CompleteOutputFormats(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		return []string{
			"json\tIndented JSON",
			"yaml\tYAML",
		}, cobra.ShellCompDirectiveNoFileComp
	})
}

// CompleteArgs completes --arg values for the operation named by args[0].
// Before "=" it offers parameter names; after "dag_id=" it offers workflow
// identifiers fetched from the server.
func CompleteArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		op, ok := api.Lookup(args[0])
		if !ok {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}

		key, _, hasValue := strings.Cut(toComplete, "=")
		if !hasValue {
			var completions []string
			for _, p := range op.Params {
				completions = append(completions, p.Name+"=\t"+p.Description)
			}
			return completions, cobra.ShellCompDirectiveNoFileComp | cobra.ShellCompDirectiveNoSpace
		}

		if key != "dag_id" {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		dagIDs, err := getDAGIDs()
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		completions := make([]string, 0, len(dagIDs))
		for _, id := range dagIDs {
			completions = append(completions, key+"="+id)
		}
		return completions, cobra.ShellCompDirectiveNoFileComp
	})
}
