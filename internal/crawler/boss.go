package crawler

// BossPlatform is the platform label stored on Boss Zhipin postings.
const BossPlatform = "Boss直聘"

// BossSpec returns the selector chains for Boss Zhipin (zhipin.com). City
// 100010000 searches nationwide.
func BossSpec() SiteSpec {
	return SiteSpec{
		Name:      "boss",
		Platform:  BossPlatform,
		BaseURL:   "https://www.zhipin.com",
		SearchURL: "https://www.zhipin.com/web/geek/job?query={query}&city=100010000&page={page}",
		Currency:  "CNY",

		Items:      Sel(".job-card-wrapper", ".job-card-body"),
		Title:      Sel(".job-name a", ".job-title a", ".job-name"),
		Link:       Sel(".job-name a", ".job-title a", "a.job-card-left"),
		Company:    Sel(".company-name a", ".company-name"),
		Salary:     Sel(".salary", ".job-limit .red"),
		Location:   Sel(".job-area", ".job-limit .gray"),
		Experience: Sel(".job-limit", ".job-desc"),
		Tags:       Sel(".tag-list .tag", ".job-desc .tag", ".tag-list li"),

		Detail: DetailSpec{
			Description:  Sel(".job-detail-section", ".detail-content"),
			Requirements: Sel(".job-detail .text", ".detail-content .text"),
			CompanySize:  Sel(".company-info .gray"),
			Industry:     Sel(".company-info .company-industry"),
		},
	}
}

// NewBoss builds the Boss Zhipin source.
func NewBoss() *Site {
	s, err := NewSite(BossSpec())
	if err != nil {
		panic(err)
	}
	return s
}
