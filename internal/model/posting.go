package model

import "time"

// DefaultCurrency is assumed for every platform that does not advertise one.
const DefaultCurrency = "CNY"

// CompanyInfo holds the company facts shown on a posting's detail page.
type CompanyInfo struct {
	Size     string `json:"size,omitempty"`
	Industry string `json:"industry,omitempty"`
}

// Posting is a job posting as discovered by the crawler. Once stored it is
// immutable apart from the Processed flag.
type Posting struct {
	ID              int64       `json:"id"`
	Title           string      `json:"title"`
	Company         string      `json:"company"`
	Location        string      `json:"location"`
	SalaryText      string      `json:"salary_text"`
	SalaryMin       *int        `json:"salary_min,omitempty"` // monthly
	SalaryMax       *int        `json:"salary_max,omitempty"` // monthly
	Currency        string      `json:"currency"`
	ExperienceLevel string      `json:"experience_level"`
	Tags            []string    `json:"tags"`
	SourceURL       string      `json:"source_url"`
	SourcePlatform  string      `json:"source_platform"`
	IsRelevant      bool        `json:"is_relevant"`
	MatchedKeywords []string    `json:"matched_keywords"`
	Description     string      `json:"description,omitempty"`
	Requirements    string      `json:"requirements,omitempty"`
	CompanyInfo     CompanyInfo `json:"company_info"`
	Processed       bool        `json:"processed"`
	CrawledAt       time.Time   `json:"crawled_at"`
}

// PostingDetail is the extra text scraped from a posting's detail page.
type PostingDetail struct {
	Description  string      `json:"description"`
	Requirements string      `json:"requirements"`
	CompanyInfo  CompanyInfo `json:"company_info"`
}

// Empty reports whether nothing was extracted from the detail page.
func (d PostingDetail) Empty() bool {
	return d.Description == "" && d.Requirements == "" && d.CompanyInfo == (CompanyInfo{})
}

// ApplyDetail merges detail page fields into the posting. Empty detail fields
// never overwrite values already present.
func (p *Posting) ApplyDetail(d PostingDetail) {
	if d.Description != "" {
		p.Description = d.Description
	}
	if d.Requirements != "" {
		p.Requirements = d.Requirements
	}
	if d.CompanyInfo.Size != "" {
		p.CompanyInfo.Size = d.CompanyInfo.Size
	}
	if d.CompanyInfo.Industry != "" {
		p.CompanyInfo.Industry = d.CompanyInfo.Industry
	}
}

// RelevanceText is the text the relevance filter inspects.
func (p *Posting) RelevanceText() string {
	text := p.Title + " " + p.Company
	for _, t := range p.Tags {
		text += " " + t
	}
	return text
}

// Stats summarizes the contents of the store.
type Stats struct {
	Total       int `json:"total"`
	Relevant    int `json:"relevant"`
	Today       int `json:"today"`
	Unprocessed int `json:"unprocessed"`
	Processed   int `json:"processed"`
}

// ReportRow is a posting joined with its enrichment, if any.
type ReportRow struct {
	Posting    Posting     `json:"posting"`
	Enrichment *Enrichment `json:"enrichment,omitempty"`
}
