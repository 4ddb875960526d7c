// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianTriage/services/triage/classify"
	"github.com/AleutianAI/AleutianTriage/services/triage/directory"
	"github.com/AleutianAI/AleutianTriage/services/triage/events"
	"github.com/AleutianAI/AleutianTriage/services/triage/handlers"
	"github.com/AleutianAI/AleutianTriage/services/triage/pipeline"
	"github.com/AleutianAI/AleutianTriage/services/triage/taxonomy"
)

// Deps carries everything the route table needs.
type Deps struct {
	Pipeline  *pipeline.Pipeline
	Engine    *classify.Engine
	Registry  *taxonomy.Registry
	Directory *directory.Directory
	Hub       *events.Hub
	Predictor classify.Predictor

	// IngestRate caps POST /v1/incidents; nil disables limiting.
	IngestRate *rate.Limiter

	// PersistTaxonomy runs after each taxonomy mutation; nil skips
	// snapshot persistence.
	PersistTaxonomy func()
}

// SetupRoutes wires the full HTTP surface.
func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", handlers.HealthCheck(deps.Predictor))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		incidents := v1.Group("/incidents")
		{
			incidents.POST("", rateLimited(deps.IngestRate), handlers.CreateIncident(deps.Pipeline))
			incidents.GET("", handlers.ListIncidents(deps.Pipeline))
			incidents.GET("/:id", handlers.GetIncident(deps.Pipeline))
			incidents.POST("/:id/resolve", handlers.ResolveIncident(deps.Pipeline))
			incidents.POST("/:id/close", handlers.CloseIncident(deps.Pipeline))
			incidents.PATCH("/:id/tags", handlers.UpdateIncidentTags(deps.Pipeline))
			incidents.GET("/:id/audit", handlers.GetIncidentAudit(deps.Pipeline))
		}

		v1.POST("/classify", handlers.ClassifyDryRun(deps.Engine))

		taxonomies := v1.Group("/taxonomy")
		{
			taxonomies.GET("", handlers.ListTaxonomies(deps.Registry))
			taxonomies.GET("/search", handlers.SearchTaxonomies(deps.Registry))
			taxonomies.GET("/:id", handlers.GetTaxonomy(deps.Registry))
			taxonomies.POST("", handlers.CreateTaxonomy(deps.Registry, deps.PersistTaxonomy))
			taxonomies.PUT("/:id", handlers.UpdateTaxonomy(deps.Registry, deps.PersistTaxonomy))
			taxonomies.DELETE("/:id", handlers.DeleteTaxonomy(deps.Registry, deps.PersistTaxonomy))
		}

		teams := v1.Group("/teams")
		{
			teams.GET("", handlers.ListTeams(deps.Directory))
			teams.GET("/:id", handlers.GetTeam(deps.Directory))
		}

		if deps.Hub != nil {
			v1.GET("/events/ws", deps.Hub.Handler())
		}
	}
}

// rateLimited sheds ingest load once the configured rate is exceeded.
func rateLimited(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter != nil && !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				gin.H{"error": "ingest rate exceeded, retry later"})
			return
		}
		c.Next()
	}
}
