// Package order submits validated orders to the broker and keeps the audit
// trail.
package order

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"broker-gate/internal/events"
	"broker-gate/internal/monitor"
	"broker-gate/internal/risk"
	"broker-gate/pkg/broker"
	"broker-gate/pkg/db"
)

// Validator runs the pre-trade pipeline; an empty result approves the order.
type Validator interface {
	ValidateOrder(ctx context.Context, req broker.OrderRequest) []risk.Violation
}

// RiskError is returned when validation rejects an order. It carries every
// violated rule so the caller can surface all reasons at once.
type RiskError struct {
	Violations []risk.Violation
}

func (e *RiskError) Error() string {
	return "order rejected: " + JoinMessages(e.Violations)
}

// JoinMessages concatenates violation messages in rule order.
func JoinMessages(violations []risk.Violation) string {
	msgs := make([]string, 0, len(violations))
	for _, v := range violations {
		msgs = append(msgs, v.Message)
	}
	return strings.Join(msgs, "; ")
}

// Service is the order pipeline: validate, forward to the broker, audit.
type Service struct {
	Validator Validator
	Broker    broker.OrderSubmitter
	Queries   *db.Queries
	Bus       *events.Bus
}

// NewService wires the pipeline.
func NewService(validator Validator, submitter broker.OrderSubmitter, database *db.Database, bus *events.Bus) *Service {
	return &Service{
		Validator: validator,
		Broker:    submitter,
		Queries:   database.Queries(),
		Bus:       bus,
	}
}

// Validate runs the risk pipeline without submitting anything.
func (s *Service) Validate(ctx context.Context, req broker.OrderRequest) []risk.Violation {
	normalize(&req)
	return s.Validator.ValidateOrder(ctx, req)
}

// Submit validates the order and forwards it to the broker. A non-empty
// violation list is a hard rejection: nothing is sent upstream and the
// returned RiskError carries every violation. Every attempt, whatever its
// outcome, leaves one audit row.
func (s *Service) Submit(ctx context.Context, req broker.OrderRequest) (*broker.OrderResult, error) {
	normalize(&req)

	if violations := s.Validator.ValidateOrder(ctx, req); len(violations) > 0 {
		s.audit(ctx, req, db.AuditStatusRejected, JoinMessages(violations), "")
		monitor.RecordOrder(db.AuditStatusRejected)
		s.publish(events.EventOrderRejected, req)
		return nil, &RiskError{Violations: violations}
	}

	start := time.Now()
	res, err := s.Broker.SubmitOrder(ctx, req)
	monitor.RecordBrokerRequest("submit_order", time.Since(start))
	if err != nil {
		s.audit(ctx, req, db.AuditStatusFailed, err.Error(), "")
		monitor.RecordOrder(db.AuditStatusFailed)
		s.publish(events.EventOrderSubmitFailed, req)
		return nil, fmt.Errorf("submit order %s: %w", req.Symbol, err)
	}

	s.audit(ctx, req, db.AuditStatusAccepted, "", res.OrderID)
	monitor.RecordOrder(db.AuditStatusAccepted)
	s.publish(events.EventOrderAccepted, *res)
	return res, nil
}

// RecentAudits lists the newest audit rows.
func (s *Service) RecentAudits(ctx context.Context, limit int) ([]db.OrderAudit, error) {
	return s.Queries.ListOrderAudits(ctx, limit)
}

func (s *Service) audit(ctx context.Context, req broker.OrderRequest, status, detail, brokerOrderID string) {
	a := db.OrderAudit{
		ID:            uuid.NewString(),
		Symbol:        req.Symbol,
		Side:          string(req.Side),
		OrderType:     string(req.Type),
		Qty:           req.Qty,
		LimitPrice:    req.LimitPrice,
		TimeInForce:   string(req.TimeInForce),
		ExtendedHours: req.ExtendedHours,
		Status:        status,
		Violations:    detail,
		BrokerOrderID: brokerOrderID,
	}
	if err := s.Queries.CreateOrderAudit(ctx, a); err != nil {
		log.Printf("order: audit write failed for %s: %v", req.Symbol, err)
	}
}

func (s *Service) publish(e events.Event, payload any) {
	if s.Bus != nil {
		s.Bus.Publish(e, payload)
	}
}

func normalize(req *broker.OrderRequest) {
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.TimeInForce == "" {
		req.TimeInForce = broker.TIFDay
	}
	if req.ClientID == "" {
		req.ClientID = uuid.NewString()
	}
}
