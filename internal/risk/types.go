package risk

import (
	"broker-gate/pkg/config"
)

// Rule names, used as stable tags in violations and metrics.
const (
	RuleMaxOrderNotional       = "MaxOrderNotional"
	RuleMaxShareQuantity       = "MaxShareQuantity"
	RuleSymbolWhitelist        = "SymbolWhitelist"
	RuleSymbolBlocklist        = "SymbolBlocklist"
	RuleTradingHours           = "TradingHours"
	RuleAssetNotFound          = "AssetNotFound"
	RuleAssetNotTradable       = "AssetNotTradable"
	RuleFractionalNotSupported = "FractionalNotSupported"
	RuleFractionalRequired     = "FractionalRequired"
	RulePriceTooLow            = "PriceTooLow"
	RulePriceTooHigh           = "PriceTooHigh"
)

// Violation is a single rule's determination that an order fails a check.
// It is a value, built fresh per validation call and never persisted.
type Violation struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Policy aliases the static configuration the rule set is built from.
type Policy = config.RiskPolicy
