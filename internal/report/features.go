package report

import (
	"slices"
	"strings"
)

// FeatureNames lists the Web3 sub-features in report order.
var FeatureNames = []string{"defi", "nft", "dao", "smart_contract"}

var featureKeywords = map[string][]string{
	"defi":           {"defi", "decentralized finance", "去中心化金融", "yield farming", "liquidity mining", "amm"},
	"nft":            {"nft", "non-fungible token", "非同质化代币", "opensea", "collectibles"},
	"dao":            {"dao", "decentralized autonomous organization", "去中心化自治组织", "governance"},
	"smart_contract": {"smart contract", "智能合约", "solidity", "contract development"},
}

// Features flags each Web3 sub-feature whose keywords appear in text,
// ignoring case. It needs no model and is used to cross-check enrichments.
func Features(text string) map[string]bool {
	lower := strings.ToLower(text)
	out := make(map[string]bool, len(FeatureNames))
	for _, name := range FeatureNames {
		out[name] = slices.ContainsFunc(featureKeywords[name], func(kw string) bool {
			return strings.Contains(lower, kw)
		})
	}
	return out
}

// featureCounts lays counts out in FeatureNames order.
func featureCounts(counts map[string]int) []Count {
	out := make([]Count, 0, len(FeatureNames))
	for _, name := range FeatureNames {
		out = append(out, Count{Key: name, Count: counts[name]})
	}
	return out
}
