// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

var (
	taxonomyCmd = &cobra.Command{
		Use:   "taxonomy",
		Short: "Inspect the incident category taxonomy",
	}
	taxonomyListCmd = &cobra.Command{
		Use:   "list",
		Short: "List every category with priority and routing hints",
		Run: func(cmd *cobra.Command, args []string) {
			getJSON(serverURL() + "/v1/taxonomy")
		},
	}
	taxonomyGetCmd = &cobra.Command{
		Use:   "get [id]",
		Short: "Show one category with its ancestors and children",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			getJSON(fmt.Sprintf("%s/v1/taxonomy/%s", serverURL(), args[0]))
		},
	}
	taxonomySearchCmd = &cobra.Command{
		Use:   "search [keyword]",
		Short: "Find categories by keyword",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			getJSON(serverURL() + "/v1/taxonomy/search?q=" + url.QueryEscape(args[0]))
		},
	}

	teamsCmd = &cobra.Command{
		Use:   "teams",
		Short: "List resolution teams with live load and utilization",
		Run: func(cmd *cobra.Command, args []string) {
			getJSON(serverURL() + "/v1/teams")
		},
	}
)

func init() {
	taxonomyCmd.AddCommand(taxonomyListCmd)
	taxonomyCmd.AddCommand(taxonomyGetCmd)
	taxonomyCmd.AddCommand(taxonomySearchCmd)
	rootCmd.AddCommand(taxonomyCmd)
	rootCmd.AddCommand(teamsCmd)
}
