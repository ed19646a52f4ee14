package risk

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"broker-gate/pkg/broker"
)

// Rule is one pre-trade check. Evaluate returns at most one violation and
// never errors for business failures; currentPrice may be zero when no
// quote was available.
type Rule interface {
	Name() string
	Evaluate(req broker.OrderRequest, currentPrice decimal.Decimal) *Violation
}

// BuildRules assembles the ordered rule set from the policy. The returned
// slice is fixed for the lifetime of the service instance.
func BuildRules(policy Policy) ([]Rule, error) {
	var rules []Rule

	if policy.MaxOrderNotional > 0 {
		rules = append(rules, &MaxOrderNotionalRule{
			Threshold: decimal.NewFromFloat(policy.MaxOrderNotional),
		})
	}
	if policy.MaxShareQuantity > 0 {
		rules = append(rules, &MaxShareQuantityRule{
			MaxShares: decimal.NewFromFloat(policy.MaxShareQuantity),
		})
	}
	if len(policy.AllowedSymbols) > 0 {
		rules = append(rules, &SymbolWhitelistRule{Allowed: toSymbolSet(policy.AllowedSymbols)})
	}
	if len(policy.BlockedSymbols) > 0 {
		rules = append(rules, &SymbolBlocklistRule{Blocked: toSymbolSet(policy.BlockedSymbols)})
	}

	hours, err := NewTradingHoursRule(policy.RegularHoursOnly)
	if err != nil {
		return nil, fmt.Errorf("build trading hours rule: %w", err)
	}
	rules = append(rules, hours)

	return rules, nil
}

func toSymbolSet(symbols []string) map[string]struct{} {
	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		set[strings.ToUpper(strings.TrimSpace(s))] = struct{}{}
	}
	return set
}

// MaxOrderNotionalRule rejects orders whose dollar exposure exceeds the
// threshold. Market orders without a known price are skipped (fail-open).
type MaxOrderNotionalRule struct {
	Threshold decimal.Decimal
}

func (r *MaxOrderNotionalRule) Name() string { return RuleMaxOrderNotional }

func (r *MaxOrderNotionalRule) Evaluate(req broker.OrderRequest, currentPrice decimal.Decimal) *Violation {
	price := currentPrice
	if req.Type == broker.OrderTypeLimit {
		price = req.LimitPrice
	}
	if price.IsZero() || price.IsNegative() {
		// No usable price; the notional cannot be computed.
		return nil
	}

	notional := req.Qty.Mul(price)
	if notional.GreaterThan(r.Threshold) {
		return &Violation{
			Rule:    RuleMaxOrderNotional,
			Message: fmt.Sprintf("Order notional $%s exceeds maximum $%s", notional.StringFixed(2), r.Threshold.StringFixed(2)),
		}
	}
	return nil
}

// MaxShareQuantityRule caps share quantity regardless of order type.
type MaxShareQuantityRule struct {
	MaxShares decimal.Decimal
}

func (r *MaxShareQuantityRule) Name() string { return RuleMaxShareQuantity }

func (r *MaxShareQuantityRule) Evaluate(req broker.OrderRequest, _ decimal.Decimal) *Violation {
	if req.Qty.GreaterThan(r.MaxShares) {
		return &Violation{
			Rule:    RuleMaxShareQuantity,
			Message: fmt.Sprintf("Order quantity %s exceeds maximum %s shares", req.Qty.String(), r.MaxShares.String()),
		}
	}
	return nil
}

// SymbolWhitelistRule allows only configured symbols. Matching is
// case-insensitive.
type SymbolWhitelistRule struct {
	Allowed map[string]struct{}
}

func (r *SymbolWhitelistRule) Name() string { return RuleSymbolWhitelist }

func (r *SymbolWhitelistRule) Evaluate(req broker.OrderRequest, _ decimal.Decimal) *Violation {
	if _, ok := r.Allowed[strings.ToUpper(req.Symbol)]; !ok {
		return &Violation{
			Rule:    RuleSymbolWhitelist,
			Message: fmt.Sprintf("Symbol %s is not in the allowed list", strings.ToUpper(req.Symbol)),
		}
	}
	return nil
}

// SymbolBlocklistRule rejects configured symbols. Matching is
// case-insensitive.
type SymbolBlocklistRule struct {
	Blocked map[string]struct{}
}

func (r *SymbolBlocklistRule) Name() string { return RuleSymbolBlocklist }

func (r *SymbolBlocklistRule) Evaluate(req broker.OrderRequest, _ decimal.Decimal) *Violation {
	if _, ok := r.Blocked[strings.ToUpper(req.Symbol)]; ok {
		return &Violation{
			Rule:    RuleSymbolBlocklist,
			Message: fmt.Sprintf("Symbol %s is blocked for trading", strings.ToUpper(req.Symbol)),
		}
	}
	return nil
}

// Session windows in exchange-local civil time.
var (
	regularOpen   = clockMinutes(9, 30)
	regularClose  = clockMinutes(16, 0)
	extendedOpen  = clockMinutes(4, 0)
	extendedClose = clockMinutes(20, 0)
)

func clockMinutes(h, m int) int { return h*60 + m }

// TradingHoursRule checks the wall clock in the exchange's time zone at
// validation time. Weekends always violate. Extended-hours orders are
// checked against the widened 04:00-20:00 window unless the policy forces
// regular hours only.
type TradingHoursRule struct {
	RegularHoursOnly bool
	Location         *time.Location

	// now is overridable in tests.
	now func() time.Time
}

// NewTradingHoursRule builds the rule for the US equity session.
func NewTradingHoursRule(regularHoursOnly bool) (*TradingHoursRule, error) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return nil, fmt.Errorf("load exchange time zone: %w", err)
	}
	return &TradingHoursRule{
		RegularHoursOnly: regularHoursOnly,
		Location:         loc,
		now:              time.Now,
	}, nil
}

func (r *TradingHoursRule) Name() string { return RuleTradingHours }

func (r *TradingHoursRule) Evaluate(req broker.OrderRequest, _ decimal.Decimal) *Violation {
	local := r.now().In(r.Location)

	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return &Violation{
			Rule:    RuleTradingHours,
			Message: "Orders are not allowed on weekends",
		}
	}

	minutes := clockMinutes(local.Hour(), local.Minute())
	open, close := regularOpen, regularClose
	window := "regular session (09:30-16:00 ET)"
	if req.ExtendedHours && !r.RegularHoursOnly {
		open, close = extendedOpen, extendedClose
		window = "extended session (04:00-20:00 ET)"
	}

	if minutes < open || minutes >= close {
		return &Violation{
			Rule:    RuleTradingHours,
			Message: fmt.Sprintf("Order submitted outside the %s", window),
		}
	}
	return nil
}
