package order

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"broker-gate/internal/risk"
	"broker-gate/pkg/broker"
	"broker-gate/pkg/db"
)

type fakeValidator struct {
	violations []risk.Violation
	lastReq    broker.OrderRequest
}

func (f *fakeValidator) ValidateOrder(ctx context.Context, req broker.OrderRequest) []risk.Violation {
	f.lastReq = req
	return f.violations
}

type fakeSubmitter struct {
	result *broker.OrderResult
	err    error
	calls  int
}

func (f *fakeSubmitter) SubmitOrder(ctx context.Context, req broker.OrderRequest) (*broker.OrderResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	res := *f.result
	res.ClientID = req.ClientID
	return &res, nil
}

func newTestDB(t *testing.T) *db.Database {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.ApplyMigrations(database); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return database
}

func qty(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestSubmitAcceptedOrder(t *testing.T) {
	database := newTestDB(t)
	submitter := &fakeSubmitter{result: &broker.OrderResult{OrderID: "ord-123", Status: "accepted"}}
	svc := NewService(&fakeValidator{}, submitter, database, nil)

	res, err := svc.Submit(context.Background(), broker.OrderRequest{
		Symbol: "aapl", Side: broker.SideBuy,
		Type: broker.OrderTypeMarket, Qty: qty("10"),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.OrderID != "ord-123" {
		t.Errorf("order id = %q, want ord-123", res.OrderID)
	}

	audits, err := svc.RecentAudits(context.Background(), 10)
	if err != nil {
		t.Fatalf("audits: %v", err)
	}
	if len(audits) != 1 {
		t.Fatalf("got %d audit rows, want 1", len(audits))
	}
	a := audits[0]
	if a.Status != db.AuditStatusAccepted {
		t.Errorf("status = %q, want accepted", a.Status)
	}
	if a.Symbol != "AAPL" {
		t.Errorf("symbol = %q, want normalized AAPL", a.Symbol)
	}
	if a.BrokerOrderID != "ord-123" {
		t.Errorf("broker order id = %q", a.BrokerOrderID)
	}
}

func TestSubmitRejectedOrderNeverReachesBroker(t *testing.T) {
	database := newTestDB(t)
	submitter := &fakeSubmitter{result: &broker.OrderResult{OrderID: "ord-999"}}
	validator := &fakeValidator{violations: []risk.Violation{
		{Rule: risk.RuleMaxShareQuantity, Message: "Order quantity 1000000 exceeds maximum 10000 shares"},
		{Rule: risk.RuleSymbolBlocklist, Message: "Symbol GME is blocked for trading"},
	}}
	svc := NewService(validator, submitter, database, nil)

	_, err := svc.Submit(context.Background(), broker.OrderRequest{
		Symbol: "GME", Side: broker.SideBuy,
		Type: broker.OrderTypeMarket, Qty: qty("1000000"),
	})
	if err == nil {
		t.Fatal("expected a rejection error")
	}

	var riskErr *RiskError
	if !errors.As(err, &riskErr) {
		t.Fatalf("error type = %T, want *RiskError", err)
	}
	if len(riskErr.Violations) != 2 {
		t.Errorf("violations = %d, want 2", len(riskErr.Violations))
	}
	if !strings.Contains(err.Error(), "exceeds maximum 10000 shares") ||
		!strings.Contains(err.Error(), "blocked for trading") {
		t.Errorf("error message missing joined violations: %q", err.Error())
	}
	if submitter.calls != 0 {
		t.Errorf("broker calls = %d, want 0 for rejected order", submitter.calls)
	}

	audits, err := svc.RecentAudits(context.Background(), 10)
	if err != nil {
		t.Fatalf("audits: %v", err)
	}
	if len(audits) != 1 || audits[0].Status != db.AuditStatusRejected {
		t.Fatalf("audits = %+v, want one rejected row", audits)
	}
	if !strings.Contains(audits[0].Violations, "; ") {
		t.Errorf("audit violations not joined: %q", audits[0].Violations)
	}
}

func TestSubmitBrokerFailureAudited(t *testing.T) {
	database := newTestDB(t)
	submitter := &fakeSubmitter{err: errors.New("502 bad gateway")}
	svc := NewService(&fakeValidator{}, submitter, database, nil)

	_, err := svc.Submit(context.Background(), broker.OrderRequest{
		Symbol: "AAPL", Side: broker.SideSell,
		Type: broker.OrderTypeLimit, Qty: qty("5"), LimitPrice: qty("190.50"),
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	var riskErr *RiskError
	if errors.As(err, &riskErr) {
		t.Fatal("broker failure must not be a RiskError")
	}

	audits, err := svc.RecentAudits(context.Background(), 10)
	if err != nil {
		t.Fatalf("audits: %v", err)
	}
	if len(audits) != 1 || audits[0].Status != db.AuditStatusFailed {
		t.Fatalf("audits = %+v, want one failed row", audits)
	}
}

func TestSubmitNormalizesRequest(t *testing.T) {
	database := newTestDB(t)
	validator := &fakeValidator{}
	submitter := &fakeSubmitter{result: &broker.OrderResult{OrderID: "ord-1"}}
	svc := NewService(validator, submitter, database, nil)

	res, err := svc.Submit(context.Background(), broker.OrderRequest{
		Symbol: "  tsla ", Side: broker.SideBuy,
		Type: broker.OrderTypeMarket, Qty: qty("1"),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if validator.lastReq.Symbol != "TSLA" {
		t.Errorf("validator saw symbol %q, want TSLA", validator.lastReq.Symbol)
	}
	if validator.lastReq.TimeInForce != broker.TIFDay {
		t.Errorf("time in force = %q, want day default", validator.lastReq.TimeInForce)
	}
	if res.ClientID == "" {
		t.Error("client id was not generated")
	}
}

func TestValidateDoesNotSubmitOrAudit(t *testing.T) {
	database := newTestDB(t)
	submitter := &fakeSubmitter{result: &broker.OrderResult{OrderID: "ord-1"}}
	validator := &fakeValidator{violations: []risk.Violation{
		{Rule: risk.RuleSymbolBlocklist, Message: "Symbol GME is blocked for trading"},
	}}
	svc := NewService(validator, submitter, database, nil)

	violations := svc.Validate(context.Background(), broker.OrderRequest{
		Symbol: "gme", Side: broker.SideBuy, Type: broker.OrderTypeMarket, Qty: qty("1"),
	})
	if len(violations) != 1 {
		t.Fatalf("violations = %+v, want 1", violations)
	}
	if submitter.calls != 0 {
		t.Errorf("broker calls = %d, want 0", submitter.calls)
	}

	audits, err := svc.RecentAudits(context.Background(), 10)
	if err != nil {
		t.Fatalf("audits: %v", err)
	}
	if len(audits) != 0 {
		t.Errorf("audits = %+v, want none for dry-run validation", audits)
	}
}

func TestJoinMessages(t *testing.T) {
	got := JoinMessages([]risk.Violation{
		{Message: "first"},
		{Message: "second"},
	})
	if got != "first; second" {
		t.Errorf("JoinMessages = %q", got)
	}
	if JoinMessages(nil) != "" {
		t.Error("JoinMessages(nil) should be empty")
	}
}
