package crawler

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/jobinsight/internal/model"
)

// Source is a recruiting site the crawler can search.
type Source interface {
	Platform() string
	SearchURL(keyword string, page int) string
	ParseListings(html string) []model.Posting
	ParseDetail(html string) model.PostingDetail
}

// SiteSpec declares how to search a site and where each field lives in its
// markup. SearchURL may contain the placeholders {query} and {page}.
type SiteSpec struct {
	Name      string `yaml:"name"`
	Platform  string `yaml:"platform"`
	BaseURL   string `yaml:"base_url"`
	SearchURL string `yaml:"search_url"`
	Currency  string `yaml:"currency"`
	Encoding  string `yaml:"encoding"`

	Items      Chain `yaml:"items"`
	Title      Chain `yaml:"title"`
	Link       Chain `yaml:"link"`
	Company    Chain `yaml:"company"`
	Salary     Chain `yaml:"salary"`
	Location   Chain `yaml:"location"`
	Experience Chain `yaml:"experience"`
	Tags       Chain `yaml:"tags"`

	Detail DetailSpec `yaml:"detail"`
}

// DetailSpec locates fields on a posting's detail page.
type DetailSpec struct {
	Description  Chain `yaml:"description"`
	Requirements Chain `yaml:"requirements"`
	CompanySize  Chain `yaml:"company_size"`
	Industry     Chain `yaml:"industry"`
}

// Validate checks the fields every site needs.
func (s SiteSpec) Validate() error {
	var missing []string
	if s.Platform == "" {
		missing = append(missing, "platform")
	}
	if s.SearchURL == "" {
		missing = append(missing, "search_url")
	}
	if len(s.Items) == 0 {
		missing = append(missing, "items")
	}
	if len(s.Title) == 0 {
		missing = append(missing, "title")
	}
	if len(missing) > 0 {
		return eris.Errorf("crawler: site %q missing %s", s.Name, strings.Join(missing, ", "))
	}
	if s.BaseURL != "" {
		if _, err := url.Parse(s.BaseURL); err != nil {
			return eris.Wrapf(err, "crawler: site %q base_url", s.Name)
		}
	}
	return nil
}

// Site is a Source driven entirely by a SiteSpec.
type Site struct {
	spec SiteSpec
	base *url.URL
}

// NewSite validates spec and builds a Site.
func NewSite(spec SiteSpec) (*Site, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if spec.Currency == "" {
		spec.Currency = model.DefaultCurrency
	}
	s := &Site{spec: spec}
	if spec.BaseURL != "" {
		s.base, _ = url.Parse(spec.BaseURL)
	}
	return s, nil
}

// Spec returns the site's declaration.
func (s *Site) Spec() SiteSpec { return s.spec }

// Platform implements Source.
func (s *Site) Platform() string { return s.spec.Platform }

// SearchURL implements Source.
func (s *Site) SearchURL(keyword string, page int) string {
	r := strings.NewReplacer(
		"{query}", url.QueryEscape(keyword),
		"{page}", strconv.Itoa(page),
	)
	return r.Replace(s.spec.SearchURL)
}

// ParseListings extracts postings from a search results page. A failure
// inside one item is logged and only that item is skipped.
func (s *Site) ParseListings(html string) []model.Posting {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		zap.L().Warn("crawler: parse listing page", zap.String("platform", s.spec.Platform), zap.Error(err))
		return nil
	}

	var postings []model.Posting
	s.spec.Items.Find(doc.Selection).Each(func(i int, item *goquery.Selection) {
		p, err := s.parseItem(item)
		if err != nil {
			zap.L().Warn("crawler: skip listing item",
				zap.String("platform", s.spec.Platform),
				zap.Int("index", i),
				zap.Error(err),
			)
			return
		}
		if p.Title == "" && p.SourceURL == "" {
			return
		}
		postings = append(postings, p)
	})
	return postings
}

func (s *Site) parseItem(item *goquery.Selection) (p model.Posting, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("crawler: panic parsing item: %v", r)
		}
	}()

	p = model.Posting{
		Title:           s.spec.Title.Text(item),
		Company:         s.spec.Company.Text(item),
		SalaryText:      s.spec.Salary.Text(item),
		Location:        s.spec.Location.Text(item),
		ExperienceLevel: s.spec.Experience.Text(item),
		Tags:            s.spec.Tags.Texts(item),
		Currency:        s.spec.Currency,
		SourcePlatform:  s.spec.Platform,
	}
	p.SalaryMin, p.SalaryMax = ParseSalary(p.SalaryText)

	link := s.spec.Link.Attr(item, "href")
	if link == "" {
		link = s.spec.Title.Attr(item, "href")
	}
	p.SourceURL = s.resolve(link)
	return p, nil
}

// ParseDetail extracts the detail page fields. Requirements fall back to the
// description when the site has no separate requirements block.
func (s *Site) ParseDetail(html string) (d model.PostingDetail) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Warn("crawler: panic parsing detail page",
				zap.String("platform", s.spec.Platform),
				zap.String("panic", fmt.Sprint(r)),
			)
			d = model.PostingDetail{}
		}
	}()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		zap.L().Warn("crawler: parse detail page", zap.String("platform", s.spec.Platform), zap.Error(err))
		return model.PostingDetail{}
	}
	root := doc.Selection
	spec := s.spec.Detail

	d.Description = spec.Description.Text(root)
	d.Requirements = spec.Requirements.Text(root)
	if d.Requirements == "" {
		d.Requirements = d.Description
	}
	d.CompanyInfo.Size = spec.CompanySize.Text(root)
	d.CompanyInfo.Industry = spec.Industry.Text(root)
	return d
}

func (s *Site) resolve(link string) string {
	if link == "" {
		return ""
	}
	ref, err := url.Parse(link)
	if err != nil {
		return ""
	}
	if ref.IsAbs() || s.base == nil {
		return ref.String()
	}
	return s.base.ResolveReference(ref).String()
}
