package model

import "time"

// Enrichment is the structured record extracted from a posting by a
// text-generation model. Exactly one exists per processed posting.
type Enrichment struct {
	PostingID        int64     `json:"posting_id"`
	Skills           []string  `json:"skills"`
	Experience       string    `json:"experience"`
	Education        string    `json:"education"`
	Responsibilities []string  `json:"responsibilities"`
	Category         string    `json:"category"`
	Seniority        string    `json:"seniority"`
	Remote           bool      `json:"remote"`
	DeFi             bool      `json:"defi"`
	NFT              bool      `json:"nft"`
	DAO              bool      `json:"dao"`
	SmartContract    bool      `json:"smart_contract"`
	Confidence       float64   `json:"confidence"`
	Model            string    `json:"model"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// DefaultEnrichment returns the sentinel record used whenever generation or
// parsing fails: empty fields, all flags false and zero confidence.
func DefaultEnrichment() Enrichment {
	return Enrichment{
		Skills:           []string{},
		Responsibilities: []string{},
	}
}

// IsDefault reports whether e carries no extracted information.
func (e Enrichment) IsDefault() bool {
	return e.Confidence == 0 && e.Category == "" && len(e.Skills) == 0
}

// Features lists the Web3 sub-feature flags that are set.
func (e Enrichment) Features() []string {
	var out []string
	if e.DeFi {
		out = append(out, "defi")
	}
	if e.NFT {
		out = append(out, "nft")
	}
	if e.DAO {
		out = append(out, "dao")
	}
	if e.SmartContract {
		out = append(out, "smart_contract")
	}
	return out
}
