package crawler

import (
	"slices"
	"strings"

	"github.com/sells-group/jobinsight/internal/model"
)

// DefaultVocabulary is the Web3 keyword set used to decide relevance.
var DefaultVocabulary = []string{
	"web3", "blockchain", "区块链", "比特币", "bitcoin", "ethereum", "以太坊",
	"defi", "nft", "dao", "智能合约", "smart contract", "dapp", "cryptocurrency",
	"加密货币", "solidity", "rust", "move", "cosmos", "polkadot", "polygon",
	"binance", "metamask", "uniswap", "opensea", "compound", "aave",
}

// Filter decides topical relevance by case-insensitive substring
// containment. Short keywords such as "dao" or "move" also match inside
// unrelated words; recall is preferred over precision here.
type Filter struct {
	keywords []string
	lowered  []string
}

// NewFilter builds a filter over keywords, or DefaultVocabulary when empty.
func NewFilter(keywords []string) *Filter {
	if len(keywords) == 0 {
		keywords = DefaultVocabulary
	}
	f := &Filter{}
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		f.keywords = append(f.keywords, k)
		f.lowered = append(f.lowered, strings.ToLower(k))
	}
	return f
}

// IsRelevant reports whether text contains any keyword.
func (f *Filter) IsRelevant(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, k := range f.lowered {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// ExtractTags returns the keywords found in text, sorted and deduplicated,
// in the vocabulary's own casing.
func (f *Filter) ExtractTags(text string) []string {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)
	var found []string
	for i, k := range f.lowered {
		if strings.Contains(lower, k) {
			found = append(found, f.keywords[i])
		}
	}
	slices.Sort(found)
	return slices.Compact(found)
}

// Mark sets IsRelevant and MatchedKeywords on p and reports relevance.
func (f *Filter) Mark(p *model.Posting) bool {
	text := p.RelevanceText()
	p.IsRelevant = f.IsRelevant(text)
	if p.IsRelevant {
		p.MatchedKeywords = f.ExtractTags(text)
	} else {
		p.MatchedKeywords = nil
	}
	return p.IsRelevant
}
