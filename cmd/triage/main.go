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
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config holds the CLI's optional file configuration.
type Config struct {
	ServerURL string `mapstructure:"server_url"`
}

var config Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		home, err := os.UserHomeDir()
		if err != nil {
			return
		}
		configFilePath := filepath.Join(home, ".triage", "config.yaml")
		if _, err := os.Stat(configFilePath); err != nil {
			// No config file is fine; flags and env cover everything.
			return
		}
		v := viper.New()
		v.SetConfigFile(configFilePath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			log.Fatalf("Error reading %s: %v", configFilePath, err)
		}
		if err := v.Unmarshal(&config); err != nil {
			log.Fatalf("Error parsing %s: %v", configFilePath, err)
		}
	}
}
