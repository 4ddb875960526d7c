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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type submitRequest struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Source        string    `json:"source"`
	Priority      string    `json:"priority"`
	Timestamp     time.Time `json:"timestamp"`
	AffectedUsers int       `json:"affected_users,omitempty"`
}

type classifyRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Source      string `json:"source,omitempty"`
	Priority    string `json:"priority,omitempty"`
}

var (
	rootCmd = &cobra.Command{
		Use:   "triage",
		Short: "A CLI for the incident triage service",
		Long: `Triage submits banking operations incidents to the triage daemon,
inspects classification and routing decisions, and manages incident state.`,
	}

	serverFlag string

	submitCmd = &cobra.Command{
		Use:   "submit [id]",
		Short: "Submit an incident for classification and routing",
		Long: `Submits an incident to the triage daemon. The daemon classifies it,
derives tags, routes it to a team, and arms the escalation timers.`,
		Args: cobra.ExactArgs(1),
		Run:  runSubmitCommand,
	}
	submitTitle    string
	submitDesc     string
	submitSource   string
	submitPriority string
	submitUsers    int

	classifyCmd = &cobra.Command{
		Use:   "classify",
		Short: "Classify incident text without persisting anything",
		Run:   runClassifyCommand,
	}
	classifyTitle  string
	classifyDesc   string
	classifySource string

	getCmd = &cobra.Command{
		Use:   "get [id]",
		Short: "Show the full triage record for an incident",
		Args:  cobra.ExactArgs(1),
		Run:   runGetCommand,
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List incidents, optionally filtered by status",
		Run:   runListCommand,
	}
	listStatus string

	resolveCmd = &cobra.Command{
		Use:   "resolve [id]",
		Short: "Mark an incident resolved and release its team capacity",
		Args:  cobra.ExactArgs(1),
		Run:   runTransitionCommand("resolve"),
	}
	closeCmd = &cobra.Command{
		Use:   "close [id]",
		Short: "Close an incident",
		Args:  cobra.ExactArgs(1),
		Run:   runTransitionCommand("close"),
	}
	transitionActor string
	transitionNote  string

	auditCmd = &cobra.Command{
		Use:   "audit [id]",
		Short: "Show the audit trail for an incident",
		Args:  cobra.ExactArgs(1),
		Run:   runAuditCommand,
	}

	tagCmd = &cobra.Command{
		Use:   "tag [id]",
		Short: "Add or remove tags on an incident",
		Args:  cobra.ExactArgs(1),
		Run:   runTagCommand,
	}
	tagAdd      []string
	tagRemove   []string
	tagActor    string
	tagOverride bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "",
		"Triage daemon base URL (default http://localhost:12310)")

	submitCmd.Flags().StringVarP(&submitTitle, "title", "t", "", "Incident title")
	submitCmd.Flags().StringVarP(&submitDesc, "description", "d", "", "Incident description")
	submitCmd.Flags().StringVarP(&submitSource, "source", "s", "", "Reporting system, e.g. atm, siem")
	submitCmd.Flags().StringVarP(&submitPriority, "priority", "p", "", "critical, high, medium, or low")
	submitCmd.Flags().IntVar(&submitUsers, "affected-users", 0, "Estimated affected users")
	rootCmd.AddCommand(submitCmd)

	classifyCmd.Flags().StringVarP(&classifyTitle, "title", "t", "", "Incident title")
	classifyCmd.Flags().StringVarP(&classifyDesc, "description", "d", "", "Incident description")
	classifyCmd.Flags().StringVarP(&classifySource, "source", "s", "", "Reporting system")
	rootCmd.AddCommand(classifyCmd)

	rootCmd.AddCommand(getCmd)

	listCmd.Flags().StringVar(&listStatus, "status", "", "Filter: open, resolved, or closed")
	rootCmd.AddCommand(listCmd)

	resolveCmd.Flags().StringVar(&transitionActor, "actor", "", "Operator recorded in the audit trail")
	resolveCmd.Flags().StringVar(&transitionNote, "note", "", "Resolution note")
	closeCmd.Flags().StringVar(&transitionActor, "actor", "", "Operator recorded in the audit trail")
	closeCmd.Flags().StringVar(&transitionNote, "note", "", "Closing note")
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(closeCmd)

	rootCmd.AddCommand(auditCmd)

	tagCmd.Flags().StringSliceVar(&tagAdd, "add", nil, "Tags to add (repeatable)")
	tagCmd.Flags().StringSliceVar(&tagRemove, "remove", nil, "Tags to remove (repeatable)")
	tagCmd.Flags().StringVar(&tagActor, "actor", "", "Operator recorded in the audit trail")
	tagCmd.Flags().BoolVar(&tagOverride, "override", false, "Permit removal of system tags")
	rootCmd.AddCommand(tagCmd)
}

// serverURL resolves the daemon base URL from flag, env, config file, then
// the default port, in that order.
func serverURL() string {
	if serverFlag != "" {
		return strings.TrimRight(serverFlag, "/")
	}
	if env := os.Getenv("TRIAGE_SERVER_URL"); env != "" {
		return strings.TrimRight(env, "/")
	}
	if config.ServerURL != "" {
		return strings.TrimRight(config.ServerURL, "/")
	}
	return "http://localhost:12310"
}

func runSubmitCommand(cmd *cobra.Command, args []string) {
	req := submitRequest{
		ID:            args[0],
		Title:         submitTitle,
		Description:   submitDesc,
		Source:        submitSource,
		Priority:      submitPriority,
		Timestamp:     time.Now().UTC(),
		AffectedUsers: submitUsers,
	}
	postJSON(serverURL()+"/v1/incidents", req)
}

func runClassifyCommand(cmd *cobra.Command, args []string) {
	req := classifyRequest{
		Title:       classifyTitle,
		Description: classifyDesc,
		Source:      classifySource,
	}
	postJSON(serverURL()+"/v1/classify", req)
}

func runGetCommand(cmd *cobra.Command, args []string) {
	getJSON(fmt.Sprintf("%s/v1/incidents/%s", serverURL(), args[0]))
}

func runListCommand(cmd *cobra.Command, args []string) {
	url := serverURL() + "/v1/incidents"
	if listStatus != "" {
		url += "?status=" + listStatus
	}
	getJSON(url)
}

func runTransitionCommand(action string) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		body := map[string]string{"actor": transitionActor, "note": transitionNote}
		postJSON(fmt.Sprintf("%s/v1/incidents/%s/%s", serverURL(), args[0], action), body)
	}
}

func runAuditCommand(cmd *cobra.Command, args []string) {
	getJSON(fmt.Sprintf("%s/v1/incidents/%s/audit", serverURL(), args[0]))
}

func runTagCommand(cmd *cobra.Command, args []string) {
	body := map[string]any{
		"add":      tagAdd,
		"remove":   tagRemove,
		"actor":    tagActor,
		"override": tagOverride,
	}
	patchJSON(fmt.Sprintf("%s/v1/incidents/%s/tags", serverURL(), args[0]), body)
}

func postJSON(url string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Fatalf("could not encode the request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewBuffer(body))
	if err != nil {
		log.Fatalf("Failed to reach the triage daemon at %s: %v", url, err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			log.Println("Failed to close the triage daemon response")
		}
	}(resp.Body)
	printResponse(resp)
}

func patchJSON(url string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Fatalf("could not encode the request: %v", err)
	}
	req, err := http.NewRequest(http.MethodPatch, url, bytes.NewBuffer(body))
	if err != nil {
		log.Fatalf("could not build the request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("Failed to reach the triage daemon at %s: %v", url, err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			log.Println("Failed to close the triage daemon response")
		}
	}(resp.Body)
	printResponse(resp)
}

func getJSON(url string) {
	resp, err := http.Get(url)
	if err != nil {
		log.Fatalf("Failed to reach the triage daemon at %s: %v", url, err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			log.Println("Failed to close the triage daemon response")
		}
	}(resp.Body)
	printResponse(resp)
}

func printResponse(resp *http.Response) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Failed to read the triage daemon response: %v", err)
	}
	if resp.StatusCode >= 400 {
		fmt.Fprintf(os.Stderr, "The triage daemon returned status %d:\n%s\n",
			resp.StatusCode, string(raw))
		os.Exit(1)
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		fmt.Println(string(raw))
		return
	}
	fmt.Println(pretty.String())
}
