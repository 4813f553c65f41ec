package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/marmos91/tinymmo/pkg/server"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "tinymmo",
		"time":    time.Now().UTC(),
	})
}

func (s *Server) getStatus(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	status, err := s.backend.Status(ctx)
	if err != nil {
		loopError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tick":           status.Tick,
		"sessions":       status.Sessions,
		"capacity":       status.Capacity,
		"tick_rate":      status.TickRate,
		"timeout_ticks":  status.TimeoutTicks,
		"started_at":     status.StartedAt,
		"uptime_seconds": status.Uptime.Seconds(),
		"ledger_enabled": s.ledger != nil,
	})
}

func (s *Server) getClients(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	clients, err := s.backend.Clients(ctx)
	if err != nil {
		loopError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   len(clients),
		"clients": clients,
	})
}

func (s *Server) getClient(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	client, found, err := s.backend.Client(ctx, id)
	if err != nil {
		loopError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "client not found"})
		return
	}
	c.JSON(http.StatusOK, client)
}

func (s *Server) kickClient(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	found, err := s.backend.Kick(ctx, id)
	if err != nil {
		loopError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "client not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": "kicked"})
}

func (s *Server) getClientHistory(c *gin.Context) {
	if !s.requireLedger(c) {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	records, err := s.ledger.BySession(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":      id,
		"records": records,
	})
}

func (s *Server) getLedger(c *gin.Context) {
	if !s.requireLedger(c) {
		return
	}

	limit := defaultLedgerLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxLedgerLimit)
	}

	records, err := s.ledger.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   len(records),
		"records": records,
	})
}

func (s *Server) requireLedger(c *gin.Context) bool {
	if s.ledger == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "ledger disabled"})
		return false
	}
	return true
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid client id"})
		return uuid.Nil, false
	}
	return id, true
}

// loopError maps a failed round trip to the server loop to a response.
func loopError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, server.ErrServerClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server is shutting down"})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "server loop did not respond"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
