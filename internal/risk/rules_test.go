package risk

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"broker-gate/pkg/broker"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestMaxOrderNotionalRule(t *testing.T) {
	rule := &MaxOrderNotionalRule{Threshold: d("10000")}

	tests := []struct {
		name          string
		req           broker.OrderRequest
		currentPrice  decimal.Decimal
		wantViolation bool
	}{
		{
			name: "limit order under threshold",
			req: broker.OrderRequest{
				Symbol: "AAPL", Type: broker.OrderTypeLimit,
				Qty: d("10"), LimitPrice: d("100"),
			},
			wantViolation: false,
		},
		{
			name: "limit order over threshold",
			req: broker.OrderRequest{
				Symbol: "AAPL", Type: broker.OrderTypeLimit,
				Qty: d("200"), LimitPrice: d("100"),
			},
			wantViolation: true,
		},
		{
			name: "limit order exactly at threshold passes",
			req: broker.OrderRequest{
				Symbol: "AAPL", Type: broker.OrderTypeLimit,
				Qty: d("100"), LimitPrice: d("100"),
			},
			wantViolation: false,
		},
		{
			name: "market order uses current price",
			req: broker.OrderRequest{
				Symbol: "AAPL", Type: broker.OrderTypeMarket, Qty: d("200"),
			},
			currentPrice:  d("100"),
			wantViolation: true,
		},
		{
			name: "market order with unknown price is skipped",
			req: broker.OrderRequest{
				Symbol: "AAPL", Type: broker.OrderTypeMarket, Qty: d("1000000"),
			},
			currentPrice:  decimal.Zero,
			wantViolation: false,
		},
		{
			name: "fractional quantity computes exact notional",
			req: broker.OrderRequest{
				Symbol: "AAPL", Type: broker.OrderTypeLimit,
				Qty: d("0.1"), LimitPrice: d("100000.01"),
			},
			// 0.1 * 100000.01 = 10000.001 > 10000
			wantViolation: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := rule.Evaluate(tt.req, tt.currentPrice)
			if got := v != nil; got != tt.wantViolation {
				t.Errorf("violation = %v, want %v (got %+v)", got, tt.wantViolation, v)
			}
		})
	}
}

func TestMaxOrderNotionalRuleMessage(t *testing.T) {
	rule := &MaxOrderNotionalRule{Threshold: d("10000")}
	req := broker.OrderRequest{
		Symbol: "AAPL", Type: broker.OrderTypeLimit,
		Qty: d("200"), LimitPrice: d("100"),
	}

	v := rule.Evaluate(req, decimal.Zero)
	if v == nil {
		t.Fatal("expected a violation")
	}
	want := "Order notional $20000.00 exceeds maximum $10000.00"
	if v.Message != want {
		t.Errorf("message = %q, want %q", v.Message, want)
	}
	if v.Rule != RuleMaxOrderNotional {
		t.Errorf("rule = %q, want %q", v.Rule, RuleMaxOrderNotional)
	}
}

func TestMaxShareQuantityRule(t *testing.T) {
	rule := &MaxShareQuantityRule{MaxShares: d("10000")}

	if v := rule.Evaluate(broker.OrderRequest{Symbol: "AAPL", Qty: d("10000")}, decimal.Zero); v != nil {
		t.Errorf("quantity at the cap should pass, got %+v", v)
	}

	v := rule.Evaluate(broker.OrderRequest{Symbol: "AAPL", Qty: d("1000000")}, decimal.Zero)
	if v == nil {
		t.Fatal("expected a violation")
	}
	want := "Order quantity 1000000 exceeds maximum 10000 shares"
	if v.Message != want {
		t.Errorf("message = %q, want %q", v.Message, want)
	}
}

func TestSymbolListRules(t *testing.T) {
	allow := &SymbolWhitelistRule{Allowed: toSymbolSet([]string{"aapl", "MSFT"})}
	block := &SymbolBlocklistRule{Blocked: toSymbolSet([]string{"GME"})}

	tests := []struct {
		name   string
		rule   Rule
		symbol string
		want   bool
	}{
		{"whitelisted symbol passes", allow, "AAPL", false},
		{"whitelist is case-insensitive", allow, "msft", false},
		{"non-whitelisted symbol rejected", allow, "TSLA", true},
		{"blocked symbol rejected", block, "GME", true},
		{"blocklist is case-insensitive", block, "gme", true},
		{"unlisted symbol passes blocklist", block, "AAPL", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := tt.rule.Evaluate(broker.OrderRequest{Symbol: tt.symbol}, decimal.Zero)
			if got := v != nil; got != tt.want {
				t.Errorf("violation = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTradingHoursRule(t *testing.T) {
	newRule := func(t *testing.T, regularOnly bool, at time.Time) *TradingHoursRule {
		t.Helper()
		rule, err := NewTradingHoursRule(regularOnly)
		if err != nil {
			t.Fatalf("NewTradingHoursRule: %v", err)
		}
		rule.now = func() time.Time { return at }
		return rule
	}

	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	// 2026-03-02 is a Monday, 2026-03-07 a Saturday.
	monday := func(h, m int) time.Time { return time.Date(2026, 3, 2, h, m, 0, 0, loc) }

	tests := []struct {
		name        string
		regularOnly bool
		at          time.Time
		extended    bool
		wantMsg     string
	}{
		{"mid-session passes", false, monday(12, 0), false, ""},
		{"open boundary passes", false, monday(9, 30), false, ""},
		{"close boundary rejected", false, monday(16, 0), false, "Order submitted outside the regular session (09:30-16:00 ET)"},
		{"pre-market rejected without extended hours", false, monday(5, 0), false, "Order submitted outside the regular session (09:30-16:00 ET)"},
		{"pre-market passes with extended hours", false, monday(5, 0), true, ""},
		{"after-hours passes with extended hours", false, monday(18, 30), true, ""},
		{"overnight rejected even extended", false, monday(3, 59), true, "Order submitted outside the extended session (04:00-20:00 ET)"},
		{"regular-only policy ignores extended flag", true, monday(5, 0), true, "Order submitted outside the regular session (09:30-16:00 ET)"},
		{"saturday rejected", false, time.Date(2026, 3, 7, 12, 0, 0, 0, loc), false, "Orders are not allowed on weekends"},
		{"sunday rejected", false, time.Date(2026, 3, 8, 12, 0, 0, 0, loc), true, "Orders are not allowed on weekends"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := newRule(t, tt.regularOnly, tt.at)
			v := rule.Evaluate(broker.OrderRequest{Symbol: "AAPL", ExtendedHours: tt.extended}, decimal.Zero)
			if tt.wantMsg == "" {
				if v != nil {
					t.Errorf("expected pass, got %+v", v)
				}
				return
			}
			if v == nil {
				t.Fatalf("expected violation %q, got pass", tt.wantMsg)
			}
			if v.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", v.Message, tt.wantMsg)
			}
		})
	}
}

func TestTradingHoursRuleUsesExchangeZone(t *testing.T) {
	rule, err := NewTradingHoursRule(false)
	if err != nil {
		t.Fatalf("NewTradingHoursRule: %v", err)
	}
	// 17:00 UTC on a Monday is 12:00 in New York (EST, winter).
	rule.now = func() time.Time { return time.Date(2026, 1, 5, 17, 0, 0, 0, time.UTC) }

	if v := rule.Evaluate(broker.OrderRequest{Symbol: "AAPL"}, decimal.Zero); v != nil {
		t.Errorf("expected pass at 12:00 ET, got %+v", v)
	}
}

func TestBuildRulesOrder(t *testing.T) {
	policy := Policy{
		MaxOrderNotional: 50000,
		MaxShareQuantity: 10000,
		AllowedSymbols:   []string{"AAPL"},
		BlockedSymbols:   []string{"GME"},
	}

	rules, err := BuildRules(policy)
	if err != nil {
		t.Fatalf("BuildRules: %v", err)
	}

	want := []string{
		RuleMaxOrderNotional,
		RuleMaxShareQuantity,
		RuleSymbolWhitelist,
		RuleSymbolBlocklist,
		RuleTradingHours,
	}
	if len(rules) != len(want) {
		t.Fatalf("got %d rules, want %d", len(rules), len(want))
	}
	for i, name := range want {
		if rules[i].Name() != name {
			t.Errorf("rules[%d] = %s, want %s", i, rules[i].Name(), name)
		}
	}
}

func TestBuildRulesEmptyPolicyKeepsTradingHours(t *testing.T) {
	rules, err := BuildRules(Policy{})
	if err != nil {
		t.Fatalf("BuildRules: %v", err)
	}
	if len(rules) != 1 || rules[0].Name() != RuleTradingHours {
		t.Fatalf("expected only the trading hours rule, got %d rules", len(rules))
	}
}
