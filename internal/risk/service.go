package risk

import (
	"context"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"broker-gate/internal/monitor"
	"broker-gate/pkg/broker"
)

// AssetProvider resolves tradability metadata. A nil asset with a nil error
// means the symbol could not be resolved anywhere (upstream and cache).
type AssetProvider interface {
	GetAssetInfo(ctx context.Context, symbol string) (*broker.Asset, error)
}

// QuoteProvider returns the current mid price for a symbol.
type QuoteProvider interface {
	GetMid(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Service runs the pre-trade validation pipeline. The rule set is built
// once at construction and is immutable afterwards, so concurrent
// ValidateOrder calls share no mutable state.
type Service struct {
	policy Policy
	rules  []Rule
	assets AssetProvider
	quotes QuoteProvider
}

// NewService builds the rule set from the policy and wires collaborators.
func NewService(policy Policy, assets AssetProvider, quotes QuoteProvider) (*Service, error) {
	rules, err := BuildRules(policy)
	if err != nil {
		return nil, fmt.Errorf("build risk rules: %w", err)
	}

	names := make([]string, 0, len(rules))
	for _, r := range rules {
		names = append(names, r.Name())
	}
	log.Printf("risk service initialized with rules: %v", names)

	return &Service{
		policy: policy,
		rules:  rules,
		assets: assets,
		quotes: quotes,
	}, nil
}

// Rules exposes the configured rule names for the policy endpoint.
func (s *Service) Rules() []string {
	names := make([]string, 0, len(s.rules))
	for _, r := range s.rules {
		names = append(names, r.Name())
	}
	return names
}

// Policy returns the static policy this instance was built from.
func (s *Service) Policy() Policy { return s.policy }

// ValidateOrder runs every configured check against the request and returns
// all violations in rule order. An empty result means the order passes.
// Business failures never surface as errors; upstream failures are absorbed
// per the fail-open/fail-stale policies of the collaborators.
func (s *Service) ValidateOrder(ctx context.Context, req broker.OrderRequest) []Violation {
	var violations []Violation

	if s.policy.RequireTradable {
		asset, err := s.assets.GetAssetInfo(ctx, req.Symbol)
		switch {
		case err != nil:
			// A local cache failure is not an answer about the symbol.
			// Skip the asset checks rather than misreporting it missing.
			log.Printf("risk: asset lookup %s failed, skipping asset checks: %v", req.Symbol, err)

		case asset == nil:
			// The symbol resolves nowhere; nothing meaningful to validate
			// against, so short-circuit.
			v := Violation{
				Rule:    RuleAssetNotFound,
				Message: fmt.Sprintf("Asset %s could not be found", req.Symbol),
			}
			monitor.RecordValidation(1)
			monitor.RecordViolation(RuleAssetNotFound)
			return []Violation{v}

		default:
			violations = append(violations, s.checkAsset(req, asset)...)
		}
	}

	// Market orders have no limit price; use the quote midpoint. On quote
	// failure proceed with a zero price so notional checks skip themselves.
	currentPrice := decimal.Zero
	if req.Type == broker.OrderTypeMarket {
		mid, err := s.quotes.GetMid(ctx, req.Symbol)
		if err != nil {
			log.Printf("risk: quote lookup %s failed, proceeding without price: %v", req.Symbol, err)
		} else {
			currentPrice = mid
			violations = append(violations, s.checkPriceBounds(mid)...)
		}
	}

	for _, rule := range s.rules {
		if v := rule.Evaluate(req, currentPrice); v != nil {
			violations = append(violations, *v)
		}
	}

	monitor.RecordValidation(len(violations))
	for _, v := range violations {
		monitor.RecordViolation(v.Rule)
	}
	return violations
}

func (s *Service) checkAsset(req broker.OrderRequest, asset *broker.Asset) []Violation {
	var out []Violation
	if !asset.Tradable {
		out = append(out, Violation{
			Rule:    RuleAssetNotTradable,
			Message: fmt.Sprintf("Asset %s is not tradable", req.Symbol),
		})
	}
	if isFractional(req.Qty) && !asset.Fractionable {
		out = append(out, Violation{
			Rule:    RuleFractionalNotSupported,
			Message: fmt.Sprintf("Asset %s does not support fractional quantities", req.Symbol),
		})
	}
	if s.policy.RequireFractionable && !asset.Fractionable {
		out = append(out, Violation{
			Rule:    RuleFractionalRequired,
			Message: fmt.Sprintf("Asset %s is not fractionable but policy requires it", req.Symbol),
		})
	}
	return out
}

func (s *Service) checkPriceBounds(price decimal.Decimal) []Violation {
	var out []Violation
	if s.policy.MinPrice > 0 && price.LessThan(decimal.NewFromFloat(s.policy.MinPrice)) {
		out = append(out, Violation{
			Rule:    RulePriceTooLow,
			Message: fmt.Sprintf("Price $%s is below the minimum $%.2f", price.StringFixed(2), s.policy.MinPrice),
		})
	}
	if s.policy.MaxPrice > 0 && price.GreaterThan(decimal.NewFromFloat(s.policy.MaxPrice)) {
		out = append(out, Violation{
			Rule:    RulePriceTooHigh,
			Message: fmt.Sprintf("Price $%s is above the maximum $%.2f", price.StringFixed(2), s.policy.MaxPrice),
		})
	}
	return out
}

func isFractional(qty decimal.Decimal) bool {
	return !qty.Equal(qty.Truncate(0))
}
