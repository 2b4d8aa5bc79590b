package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/recollect-labs/recollect/internal/cluster"
	"github.com/recollect-labs/recollect/internal/helpers"
	"github.com/recollect-labs/recollect/internal/store"
)

// Clusterer runs the clustering pipeline for a raw session.
type Clusterer interface {
	Cluster(ctx context.Context, session cluster.HistorySession, userID string, force bool) (*cluster.ClusteringResult, error)
}

type SessionsHandler struct {
	Orchestrator Clusterer
	Store        *store.Store
	Results      cluster.ResultStore
	// CurrentSessionGap is the window after a session's end inside which a
	// recompute is forced: the session may still be growing, so a cached
	// result would go stale immediately.
	CurrentSessionGap time.Duration
}

func (h *SessionsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.POST("/cluster", h.clusterSession)
	g.GET("", h.list)
	g.GET("/:identifier", h.get)
}

func (h *SessionsHandler) clusterSession(c echo.Context) error {
	userID := c.Get("user_id").(string)

	var req ClusterSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.SessionIdentifier == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session_identifier required")
	}
	if len(req.Items) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "session has no items to cluster")
	}

	force := c.QueryParam("force") == "true"
	if !force && h.CurrentSessionGap > 0 && time.Since(req.EndTime) <= h.CurrentSessionGap {
		force = true
	}

	session := cluster.HistorySession{
		SessionIdentifier: req.SessionIdentifier,
		StartTime:         req.StartTime,
		EndTime:           req.EndTime,
		Items:             backfillURLFeatures(req.Items),
	}

	result, err := h.Orchestrator.Cluster(c.Request().Context(), session, userID, force)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

func (h *SessionsHandler) get(c echo.Context) error {
	userID := c.Get("user_id").(string)
	canonicalID := cluster.CanonicalSessionID(userID, c.Param("identifier"))

	result, found, err := h.Results.GetClusteringResult(c.Request().Context(), canonicalID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !found {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return c.JSON(http.StatusOK, result)
}

func (h *SessionsHandler) list(c echo.Context) error {
	userID := c.Get("user_id").(string)
	sessions, err := h.Store.ListSessions(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if sessions == nil {
		sessions = []store.SessionSummary{}
	}
	return c.JSON(http.StatusOK, sessions)
}

// backfillURLFeatures fills hostname, cleaned pathname and search query
// from the raw URL for items the extension sent without them.
func backfillURLFeatures(items []cluster.HistoryItem) []cluster.HistoryItem {
	out := make([]cluster.HistoryItem, len(items))
	for i, item := range items {
		if item.URLHostname == "" || item.URLPathnameClean == "" {
			if features, err := helpers.ExtractURLFeatures(item.URL); err == nil {
				if item.URLHostname == "" {
					item.URLHostname = features.Hostname
				}
				if item.URLPathnameClean == "" {
					item.URLPathnameClean = features.PathnameClean
				}
				if item.URLSearchQuery == "" {
					item.URLSearchQuery = features.SearchQuery
				}
			}
		}
		out[i] = item
	}
	return out
}
