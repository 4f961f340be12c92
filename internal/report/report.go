// Package report aggregates stored postings and their enrichments into the
// figures the analyze command prints and exports.
package report

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/sells-group/jobinsight/internal/model"
)

// TopN bounds every ranked list in a report.
const TopN = 20

// Count is one ranked key.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Amount is a key with an average value, used for salary rankings.
type Amount struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

// SalaryStats describes postings with both salary bounds. Values are monthly.
type SalaryStats struct {
	Count   int     `json:"count"`
	MeanMin float64 `json:"mean_min"`
	MeanMax float64 `json:"mean_max"`
	Median  float64 `json:"median"` // of range midpoints
	StdDev  float64 `json:"std_dev"`
	P25     float64 `json:"p25"`
	P75     float64 `json:"p75"`
	P90     float64 `json:"p90"`
	Buckets []Count `json:"buckets"`
}

// Report is the full aggregation over the store.
type Report struct {
	GeneratedAt time.Time `json:"generated_at"`
	Total       int       `json:"total"`
	Relevant    int       `json:"relevant"`
	Processed   int       `json:"processed"`
	Enriched    int       `json:"enriched"`

	Salary        SalaryStats `json:"salary"`
	Platforms     []Count     `json:"platforms"`
	Categories    []Count     `json:"categories"`
	Seniority     []Count     `json:"seniority"`
	Skills        []Count     `json:"skills"`
	Locations     []Count     `json:"locations"`
	Web3Locations []Count     `json:"web3_locations"`
	Companies     []Count     `json:"companies"`
	Web3Companies []Count     `json:"web3_companies"`
	TopPaying     []Amount    `json:"top_paying_companies"`
	Features      []Count     `json:"features"`
	KeywordHits   []Count     `json:"keyword_features"`

	RemoteShare    float64 `json:"remote_share"`
	MeanConfidence float64 `json:"mean_confidence"`
}

// salaryBuckets are upper bounds in monthly CNY; the last bucket is open.
var salaryBuckets = []struct {
	label string
	upper int
}{
	{"<10K", 10000},
	{"10-20K", 20000},
	{"20-30K", 30000},
	{"30-50K", 50000},
	{"50K+", math.MaxInt},
}

// Build aggregates rows. Only enrichments that are not the default record
// count toward categories, seniority, skills, features and confidence.
func Build(rows []model.ReportRow, now time.Time) *Report {
	r := &Report{GeneratedAt: now.UTC(), Total: len(rows)}

	platforms := counter{}
	categories := counter{}
	seniority := counter{}
	skills := counter{}
	locations := counter{}
	web3Locations := counter{}
	companies := counter{}
	web3Companies := counter{}
	features := counter{}
	keywordHits := counter{}

	var mids, mins, maxs []float64
	paying := map[string][]float64{}
	remote := 0
	confidence := 0.0

	for _, row := range rows {
		p := row.Posting
		if p.IsRelevant {
			r.Relevant++
		}
		if p.Processed {
			r.Processed++
		}
		platforms.add(p.SourcePlatform)
		city := City(p.Location)
		locations.add(city)
		companies.add(p.Company)
		if p.IsRelevant {
			web3Locations.add(city)
			web3Companies.add(p.Company)
		}

		for name, hit := range Features(postingText(&p)) {
			if hit {
				keywordHits[name]++
			}
		}

		if p.SalaryMin != nil && p.SalaryMax != nil {
			lo, hi := float64(*p.SalaryMin), float64(*p.SalaryMax)
			mid := (lo + hi) / 2
			mins = append(mins, lo)
			maxs = append(maxs, hi)
			mids = append(mids, mid)
			if p.Company != "" {
				paying[p.Company] = append(paying[p.Company], mid)
			}
		}

		e := row.Enrichment
		if e == nil || e.IsDefault() {
			continue
		}
		r.Enriched++
		categories.add(e.Category)
		seniority.add(e.Seniority)
		for _, s := range e.Skills {
			skills.add(s)
		}
		for _, f := range e.Features() {
			features.add(f)
		}
		if e.Remote {
			remote++
		}
		confidence += e.Confidence
	}

	r.Salary = salaryStats(mins, maxs, mids)
	r.Platforms = platforms.top(TopN)
	r.Categories = categories.top(TopN)
	r.Seniority = seniority.top(TopN)
	r.Skills = skills.top(TopN)
	r.Locations = locations.top(TopN)
	r.Web3Locations = web3Locations.top(TopN)
	r.Companies = companies.top(TopN)
	r.Web3Companies = web3Companies.top(TopN)
	r.TopPaying = topPaying(paying, TopN)

	r.Features = featureCounts(features)
	r.KeywordHits = featureCounts(keywordHits)

	if r.Enriched > 0 {
		r.RemoteShare = float64(remote) / float64(r.Enriched)
		r.MeanConfidence = confidence / float64(r.Enriched)
	}
	return r
}

func postingText(p *model.Posting) string {
	return strings.Join([]string{p.Title, strings.Join(p.Tags, " "), p.Description, p.Requirements}, " ")
}

// City is the part of a location before the district separator, e.g.
// "上海·浦东新区" gives "上海".
func City(location string) string {
	loc := strings.TrimSpace(location)
	if i := strings.IndexAny(loc, "·-･ "); i > 0 {
		loc = loc[:i]
	}
	return loc
}

func salaryStats(mins, maxs, mids []float64) SalaryStats {
	s := SalaryStats{Count: len(mids), Buckets: make([]Count, len(salaryBuckets))}
	for i, b := range salaryBuckets {
		s.Buckets[i].Key = b.label
	}
	if len(mids) == 0 {
		return s
	}

	s.MeanMin = mean(mins)
	s.MeanMax = mean(maxs)

	sorted := slices.Clone(mids)
	slices.Sort(sorted)
	s.Median = quantile(sorted, 0.5)
	s.P25 = quantile(sorted, 0.25)
	s.P75 = quantile(sorted, 0.75)
	s.P90 = quantile(sorted, 0.90)
	s.StdDev = stddev(mids)

	for _, m := range mids {
		for i, b := range salaryBuckets {
			if m < float64(b.upper) {
				s.Buckets[i].Count++
				break
			}
		}
	}
	return s
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the sample standard deviation; zero for fewer than two values.
func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	ss := 0.0
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

// quantile interpolates linearly between closest ranks of a sorted slice.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func topPaying(paying map[string][]float64, n int) []Amount {
	out := make([]Amount, 0, len(paying))
	for company, mids := range paying {
		out = append(out, Amount{Key: company, Value: mean(mids)})
	}
	slices.SortFunc(out, func(a, b Amount) int {
		if c := cmp.Compare(b.Value, a.Value); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

type counter map[string]int

func (c counter) add(key string) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}
	c[key]++
}

// top returns the n most frequent keys, ties broken by key.
func (c counter) top(n int) []Count {
	out := make([]Count, 0, len(c))
	for k, v := range c {
		out = append(out, Count{Key: k, Count: v})
	}
	slices.SortFunc(out, func(a, b Count) int {
		if d := cmp.Compare(b.Count, a.Count); d != 0 {
			return d
		}
		return cmp.Compare(a.Key, b.Key)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
