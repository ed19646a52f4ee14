package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"broker-gate/internal/order"
	"broker-gate/pkg/broker"
)

// orderPayload is the wire shape of an order submission. Quantities and
// prices arrive as strings so no precision is lost in transit.
type orderPayload struct {
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	Qty           string `json:"qty"`
	LimitPrice    string `json:"limit_price"`
	TimeInForce   string `json:"time_in_force"`
	ExtendedHours bool   `json:"extended_hours"`
}

func (p orderPayload) toRequest() (broker.OrderRequest, error) {
	symbol := strings.TrimSpace(p.Symbol)
	if symbol == "" {
		return broker.OrderRequest{}, errors.New("symbol is required")
	}

	side := broker.Side(strings.ToLower(p.Side))
	if side != broker.SideBuy && side != broker.SideSell {
		return broker.OrderRequest{}, errors.New("side must be buy or sell")
	}

	ordType := broker.OrderType(strings.ToLower(p.Type))
	if ordType == "" {
		ordType = broker.OrderTypeMarket
	}
	if ordType != broker.OrderTypeMarket && ordType != broker.OrderTypeLimit {
		return broker.OrderRequest{}, errors.New("type must be market or limit")
	}

	qty, err := decimal.NewFromString(p.Qty)
	if err != nil || !qty.IsPositive() {
		return broker.OrderRequest{}, errors.New("qty must be a positive number")
	}

	limitPrice := decimal.Zero
	if ordType == broker.OrderTypeLimit {
		limitPrice, err = decimal.NewFromString(p.LimitPrice)
		if err != nil || !limitPrice.IsPositive() {
			return broker.OrderRequest{}, errors.New("limit_price must be a positive number for limit orders")
		}
	}

	return broker.OrderRequest{
		Symbol:        symbol,
		Side:          side,
		Type:          ordType,
		Qty:           qty,
		LimitPrice:    limitPrice,
		TimeInForce:   broker.TimeInForce(strings.ToLower(p.TimeInForce)),
		ExtendedHours: p.ExtendedHours,
	}, nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"venue":   s.Meta.Venue,
		"paper":   s.Meta.Paper,
		"version": s.Meta.Version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// submitOrder validates and forwards an order to the broker.
func (s *Server) submitOrder(c *gin.Context) {
	var payload orderPayload
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "INVALID_PAYLOAD",
			"error": "invalid request payload",
		})
		return
	}

	req, err := payload.toRequest()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "INVALID_ORDER",
			"error": err.Error(),
		})
		return
	}

	res, err := s.Orders.Submit(c.Request.Context(), req)
	if err != nil {
		var riskErr *order.RiskError
		if errors.As(err, &riskErr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"code":       "RISK_REJECTED",
				"error":      order.JoinMessages(riskErr.Violations),
				"violations": riskErr.Violations,
			})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{
			"code":  "BROKER_ERROR",
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, res)
}

// validateOrder runs the risk pipeline without submitting.
func (s *Server) validateOrder(c *gin.Context) {
	var payload orderPayload
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "INVALID_PAYLOAD",
			"error": "invalid request payload",
		})
		return
	}

	req, err := payload.toRequest()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "INVALID_ORDER",
			"error": err.Error(),
		})
		return
	}

	violations := s.Orders.Validate(c.Request.Context(), req)
	c.JSON(http.StatusOK, gin.H{
		"approved":   len(violations) == 0,
		"violations": violations,
	})
}

// listOrderAudits returns recent submission attempts.
func (s *Server) listOrderAudits(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	audits, err := s.Orders.RecentAudits(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":  "INTERNAL_ERROR",
			"error": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"audits": audits, "count": len(audits)})
}

// getAsset resolves one symbol through the cache-first asset service.
func (s *Server) getAsset(c *gin.Context) {
	symbol := c.Param("symbol")
	info, err := s.Assets.GetAssetInfo(c.Request.Context(), symbol)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":  "INTERNAL_ERROR",
			"error": err.Error(),
		})
		return
	}
	if info == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"code":  "ASSET_NOT_FOUND",
			"error": "asset not found",
		})
		return
	}
	c.JSON(http.StatusOK, info)
}

// searchAssets matches cached tradable assets.
func (s *Server) searchAssets(c *gin.Context) {
	query := c.Query("q")
	if strings.TrimSpace(query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "MISSING_QUERY",
			"error": "query parameter q is required",
		})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	assets, err := s.Assets.Search(c.Request.Context(), query, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":  "INTERNAL_ERROR",
			"error": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"assets": assets, "count": len(assets)})
}

// getPolicy exposes the active risk policy and rule order.
func (s *Server) getPolicy(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"policy": s.Risk.Policy(),
		"rules":  s.Risk.Rules(),
	})
}
