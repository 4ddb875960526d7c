// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianTriage/services/triage/classify"
	"github.com/AleutianAI/AleutianTriage/services/triage/datatypes"
)

// HealthCheck reports liveness plus the learned model version in play.
func HealthCheck(predictor classify.Predictor) gin.HandlerFunc {
	started := time.Now()
	return func(c *gin.Context) {
		resp := gin.H{
			"status": "ok",
			"uptime": time.Since(started).Round(time.Second).String(),
		}
		if predictor != nil {
			resp["model_version"] = predictor.Version()
		}
		c.JSON(http.StatusOK, resp)
	}
}

// ClassifyRequest is the dry-run classification body.
type ClassifyRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Source      string    `json:"source"`
	Priority    string    `json:"priority"`
	Timestamp   time.Time `json:"timestamp"`
}

// ClassifyDryRun classifies text without creating an incident; used by
// operators to preview where a report would land.
func ClassifyDryRun(engine *classify.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ClassifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		priority, err := datatypes.ParsePriority(req.Priority)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		inc := &datatypes.Incident{
			ID:          "dry-run",
			Title:       req.Title,
			Description: req.Description,
			Source:      req.Source,
			Timestamp:   req.Timestamp,
			Priority:    priority,
		}
		inc.EnsureDefaults()

		cls, err := engine.Classify(c.Request.Context(), inc)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if cls == nil {
			c.JSON(http.StatusOK, gin.H{"classification": nil,
				"note": "no category cleared the confidence floor"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"classification": cls})
	}
}
