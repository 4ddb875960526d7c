// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the HTTP surface of the triage service.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianTriage/pkg/validation"
	"github.com/AleutianAI/AleutianTriage/services/triage/datatypes"
	"github.com/AleutianAI/AleutianTriage/services/triage/pipeline"
	"github.com/AleutianAI/AleutianTriage/services/triage/storage/badgerstore"
	"github.com/AleutianAI/AleutianTriage/services/triage/tagging"
)

// TriageRequest is the POST /v1/incidents body.
type TriageRequest struct {
	ID            string    `json:"id" binding:"required"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Source        string    `json:"source"`
	Priority      string    `json:"priority"`
	Timestamp     time.Time `json:"timestamp"`
	AffectedUsers int       `json:"affected_users"`
}

// TransitionRequest is the resolve/close body.
type TransitionRequest struct {
	Actor string `json:"actor"`
	Note  string `json:"note"`
}

// TagUpdateRequest is the tags body.
type TagUpdateRequest struct {
	Add    []string `json:"add"`
	Remove []string `json:"remove"`
	Actor  string   `json:"actor"`

	// Override permits removal of system tags.
	Override bool `json:"override"`
}

// CreateIncident triages a new incident end to end and returns the
// persisted record.
func CreateIncident(p *pipeline.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TriageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := validation.ValidateIncidentInput(req.ID, req.Title, req.Description); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		priority, err := datatypes.ParsePriority(req.Priority)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		inc := &datatypes.Incident{
			ID:            req.ID,
			Title:         req.Title,
			Description:   req.Description,
			Source:        req.Source,
			Timestamp:     req.Timestamp,
			Priority:      priority,
			AffectedUsers: req.AffectedUsers,
		}
		rec, err := p.Triage(c.Request.Context(), inc)
		if err != nil {
			switch {
			case errors.Is(err, pipeline.ErrAlreadyExists):
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			default:
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			}
			return
		}
		c.JSON(http.StatusCreated, rec)
	}
}

// GetIncident returns one record by id.
func GetIncident(p *pipeline.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := p.Get(c.Param("id"))
		if err != nil {
			notFoundOrError(c, err)
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

// ListIncidents returns all records, optionally filtered by ?status=.
func ListIncidents(p *pipeline.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := badgerstore.Status(c.Query("status"))
		switch status {
		case "", badgerstore.StatusOpen, badgerstore.StatusResolved, badgerstore.StatusClosed:
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status " + string(status)})
			return
		}
		recs, err := p.List(status)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if recs == nil {
			recs = []*badgerstore.Record{}
		}
		c.JSON(http.StatusOK, gin.H{"incidents": recs, "count": len(recs)})
	}
}

// ResolveIncident marks an open incident resolved.
func ResolveIncident(p *pipeline.Pipeline) gin.HandlerFunc {
	return transitionHandler(p.Resolve)
}

// CloseIncident closes an open or resolved incident.
func CloseIncident(p *pipeline.Pipeline) gin.HandlerFunc {
	return transitionHandler(p.Close)
}

func transitionHandler(fn func(ctx context.Context, id, actor, note string) (*badgerstore.Record, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		// The body is optional; actor and note default to empty.
		var req TransitionRequest
		_ = c.ShouldBindJSON(&req)
		rec, err := fn(c.Request.Context(), c.Param("id"), req.Actor, req.Note)
		if err != nil {
			switch {
			case errors.Is(err, pipeline.ErrBadTransition):
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			default:
				notFoundOrError(c, err)
			}
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

// UpdateIncidentTags applies manual tag edits.
func UpdateIncidentTags(p *pipeline.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TagUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		rec, err := p.UpdateTags(c.Request.Context(), c.Param("id"), req.Add, req.Remove, req.Actor, req.Override)
		if err != nil {
			switch {
			case errors.Is(err, tagging.ErrInvalidTag), errors.Is(err, tagging.ErrDuplicateTag), errors.Is(err, tagging.ErrTagLimit):
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			case errors.Is(err, tagging.ErrProtectedTag):
				c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			default:
				notFoundOrError(c, err)
			}
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

// GetIncidentAudit returns the audit trail in write order.
func GetIncidentAudit(p *pipeline.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		trail, err := p.AuditTrail(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if trail == nil {
			trail = []badgerstore.AuditEntry{}
		}
		c.JSON(http.StatusOK, gin.H{"audit": trail, "count": len(trail)})
	}
}

func notFoundOrError(c *gin.Context, err error) {
	if errors.Is(err, badgerstore.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
