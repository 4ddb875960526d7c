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
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianTriage/services/triage/directory"
	"github.com/AleutianAI/AleutianTriage/services/triage/taxonomy"
)

// ListTaxonomies returns the full taxonomy catalog.
func ListTaxonomies(reg *taxonomy.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		nodes := reg.All()
		c.JSON(http.StatusOK, gin.H{"taxonomies": nodes, "count": len(nodes)})
	}
}

// GetTaxonomy returns one node with its ancestor path and children.
func GetTaxonomy(reg *taxonomy.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		node, err := reg.Get(id)
		if err != nil {
			taxonomyError(c, err)
			return
		}
		path, _ := reg.AncestorPath(id)
		ancestors := make([]string, 0, len(path))
		for _, a := range path {
			if a.ID != id {
				ancestors = append(ancestors, a.ID)
			}
		}
		children, _ := reg.Children(id)
		childIDs := make([]string, 0, len(children))
		for _, ch := range children {
			childIDs = append(childIDs, ch.ID)
		}
		c.JSON(http.StatusOK, gin.H{
			"taxonomy":  node,
			"ancestors": ancestors,
			"children":  childIDs,
		})
	}
}

// CreateTaxonomy adds a node to the live catalog. persist, when set,
// writes a catalog snapshot after the mutation.
func CreateTaxonomy(reg *taxonomy.Registry, persist func()) gin.HandlerFunc {
	return func(c *gin.Context) {
		var node taxonomy.Taxonomy
		if err := c.ShouldBindJSON(&node); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := reg.Add(&node); err != nil {
			taxonomyError(c, err)
			return
		}
		if persist != nil {
			persist()
		}
		c.JSON(http.StatusCreated, node)
	}
}

// UpdateTaxonomy replaces a node in the live catalog.
func UpdateTaxonomy(reg *taxonomy.Registry, persist func()) gin.HandlerFunc {
	return func(c *gin.Context) {
		var node taxonomy.Taxonomy
		if err := c.ShouldBindJSON(&node); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		node.ID = c.Param("id")
		if err := reg.Update(&node); err != nil {
			taxonomyError(c, err)
			return
		}
		if persist != nil {
			persist()
		}
		c.JSON(http.StatusOK, node)
	}
}

// DeleteTaxonomy removes a node; children are re-parented.
func DeleteTaxonomy(reg *taxonomy.Registry, persist func()) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := reg.Remove(c.Param("id")); err != nil {
			taxonomyError(c, err)
			return
		}
		if persist != nil {
			persist()
		}
		c.Status(http.StatusNoContent)
	}
}

// SearchTaxonomies matches ?q= against keywords, or ?text= against the
// compiled diagnostic patterns.
func SearchTaxonomies(reg *taxonomy.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		if q := c.Query("q"); q != "" {
			c.JSON(http.StatusOK, gin.H{"taxonomies": reg.SearchByKeyword(q)})
			return
		}
		if text := c.Query("text"); text != "" {
			c.JSON(http.StatusOK, gin.H{"taxonomies": reg.SearchByPattern(text)})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "q or text query parameter required"})
	}
}

// TeamView decorates a team with its live load figures.
type TeamView struct {
	*directory.Team
	Load        int     `json:"load"`
	Utilization float64 `json:"utilization"`
}

// ListTeams returns every team with live load.
func ListTeams(dir *directory.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		teams := dir.All()
		views := make([]TeamView, 0, len(teams))
		for _, team := range teams {
			views = append(views, TeamView{
				Team:        team,
				Load:        dir.Load(team.ID),
				Utilization: dir.Utilization(team.ID),
			})
		}
		c.JSON(http.StatusOK, gin.H{"teams": views, "count": len(views)})
	}
}

// GetTeam returns one team with live load.
func GetTeam(dir *directory.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		team, err := dir.Get(c.Param("id"))
		if err != nil {
			if errors.Is(err, directory.ErrTeamNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, TeamView{
			Team:        team,
			Load:        dir.Load(team.ID),
			Utilization: dir.Utilization(team.ID),
		})
	}
}

func taxonomyError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, taxonomy.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, taxonomy.ErrDuplicateID):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, taxonomy.ErrMissingParent), errors.Is(err, taxonomy.ErrCycle):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}
