package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	tickv1 "github.com/Mohd-Saddam/fx-ohlc-microservice/internal/domain/tick/v1"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/interval"
)

const defaultSymbol = "EURUSD"

// Window caps and row limits per granularity, matching the retention and
// resolution of each aggregate.
var queryLimits = map[interval.Granularity]struct {
	maxWindow    time.Duration
	defaultLimit int
	maxLimit     int
}{
	interval.GranularityMinute:    {maxWindow: 7 * 24 * time.Hour, defaultLimit: 1000, maxLimit: 10000},
	interval.GranularityHour:      {maxWindow: 180 * 24 * time.Hour, defaultLimit: 1000, maxLimit: 10000},
	interval.GranularityDay:       {maxWindow: 3650 * 24 * time.Hour, defaultLimit: 365, maxLimit: 3650},
	interval.GranularityCustomDay: {maxWindow: 3650 * 24 * time.Hour, defaultLimit: 365, maxLimit: 3650},
}

type rangeQuery struct {
	symbol string
	start  time.Time
	end    time.Time
	limit  int
}

func (s *Server) parseRangeQuery(c *gin.Context, g interval.Granularity) (rangeQuery, bool) {
	limits := queryLimits[g]

	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start must be an RFC 3339 timestamp"})
		return rangeQuery{}, false
	}
	end, err := time.Parse(time.RFC3339, c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end must be an RFC 3339 timestamp"})
		return rangeQuery{}, false
	}
	if !end.After(start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end must be after start"})
		return rangeQuery{}, false
	}
	if end.Sub(start) > limits.maxWindow {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("time range too large, maximum is %s", limits.maxWindow),
		})
		return rangeQuery{}, false
	}

	symbol := c.DefaultQuery("symbol", defaultSymbol)
	if len(symbol) > tickv1.MaxSymbolLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol too long"})
		return rangeQuery{}, false
	}

	limit := limits.defaultLimit
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > limits.maxLimit {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("limit must be between 1 and %d", limits.maxLimit),
			})
			return rangeQuery{}, false
		}
	}

	return rangeQuery{symbol: symbol, start: start, end: end, limit: limit}, true
}

func (s *Server) ohlcHandler(g interval.Granularity) gin.HandlerFunc {
	return func(c *gin.Context) {
		q, ok := s.parseRangeQuery(c, g)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, s.service.QueryRange(q.symbol, g, q.start, q.end, q.limit))
	}
}

// handleCustomDayOHLC serves the custom-day aggregate. Only the configured
// day start hour is materialized, so any other requested hour is rejected
// rather than answered with wrong buckets.
func (s *Server) handleCustomDayOHLC(c *gin.Context) {
	if raw := c.Query("day_start_hour"); raw != "" {
		hour, err := strconv.Atoi(raw)
		if err != nil || hour < 0 || hour > 23 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "day_start_hour must be between 0 and 23"})
			return
		}
		if hour != s.dayStartHour {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("only day_start_hour=%d is materialized", s.dayStartHour),
			})
			return
		}
	}

	q, ok := s.parseRangeQuery(c, interval.GranularityCustomDay)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.service.QueryRange(q.symbol, interval.GranularityCustomDay, q.start, q.end, q.limit))
}

func (s *Server) handleCreateTick(c *gin.Context) {
	var tick tickv1.Tick
	if err := c.ShouldBindJSON(&tick); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.service.Ingest(tick); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, tick)
}

func (s *Server) handleCreateTicksBulk(c *gin.Context) {
	var ticks []tickv1.Tick
	if err := c.ShouldBindJSON(&ticks); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	accepted := 0
	var firstErr string
	for _, tick := range ticks {
		if err := s.service.Ingest(tick); err != nil {
			if firstErr == "" {
				firstErr = err.Error()
			}
			continue
		}
		accepted++
	}

	resp := gin.H{"accepted": accepted, "rejected": len(ticks) - accepted}
	if firstErr != "" {
		resp["first_error"] = firstErr
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleTickHistory(c *gin.Context) {
	symbol := c.DefaultQuery("symbol", defaultSymbol)

	filter := tickv1.Filter{Symbol: symbol}
	if raw := c.Query("start"); raw != "" {
		start, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start must be an RFC 3339 timestamp"})
			return
		}
		filter.From = &start
	}
	if raw := c.Query("end"); raw != "" {
		end, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "end must be an RFC 3339 timestamp"})
			return
		}
		filter.To = &end
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		filter.Limit = limit
	}

	ticks, err := s.service.TickHistory(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ticks)
}

func (s *Server) handleLatestTick(c *gin.Context) {
	symbol := c.DefaultQuery("symbol", defaultSymbol)

	tick, err := s.service.LatestTick(c.Request.Context(), symbol)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if tick == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no ticks persisted for symbol"})
		return
	}
	c.JSON(http.StatusOK, tick)
}

// Correction endpoints edit the durable tick log. Already materialized
// aggregates keep the old values until restart; the response warns about it.
const correctionNote = "aggregates recorded before this correction are not recomputed"

func (s *Server) handleUpdateTick(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}
	ts, err := time.Parse(time.RFC3339, c.Query("time"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "time must be an RFC 3339 timestamp"})
		return
	}

	var body struct {
		Price float64 `json:"price"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := s.service.UpdateTick(c.Request.Context(), symbol, ts, body.Price)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !updated {
		c.JSON(http.StatusNotFound, gin.H{"error": "no tick persisted at that symbol and time"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"time":    ts,
		"symbol":  symbol,
		"price":   body.Price,
		"warning": correctionNote,
	})
}

func (s *Server) handleDeleteTickRange(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}
	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start must be an RFC 3339 timestamp"})
		return
	}
	end, err := time.Parse(time.RFC3339, c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end must be an RFC 3339 timestamp"})
		return
	}
	if !end.After(start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end must be after start"})
		return
	}

	deleted, err := s.service.DeleteTickRange(c.Request.Context(), symbol, start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted, "warning": correctionNote})
}

func (s *Server) handleDeleteTick(c *gin.Context) {
	symbol := c.Param("symbol")
	ts, err := time.Parse(time.RFC3339, c.Param("time"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "time must be an RFC 3339 timestamp"})
		return
	}

	deleted, err := s.service.DeleteTick(c.Request.Context(), symbol, ts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "no tick persisted at that symbol and time"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": 1, "warning": correctionNote})
}

func (s *Server) handleWSStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.service.SubscriptionStats())
}
