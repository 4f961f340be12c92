package crawler

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

type sourcesFile struct {
	Sites []SiteSpec `yaml:"sites"`
}

// LoadSiteSpecs reads additional site declarations from a YAML file of the
// form:
//
//	sites:
//	  - name: example
//	    platform: Example
//	    search_url: https://jobs.example.com/search?q={query}&p={page}
//	    items: [".result", ".job"]
//	    title: ".title"
//	    link:
//	      - selector: "a.title"
//	        attr: href
func LoadSiteSpecs(path string) ([]SiteSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "crawler: read sources %s", path)
	}

	var f sourcesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "crawler: parse sources %s", path)
	}
	for i, s := range f.Sites {
		if err := s.Validate(); err != nil {
			return nil, eris.Wrapf(err, "crawler: sources %s entry %d", path, i)
		}
	}
	return f.Sites, nil
}

// LoadSources builds a Site for every declaration in path.
func LoadSources(path string) ([]*Site, error) {
	specs, err := LoadSiteSpecs(path)
	if err != nil {
		return nil, err
	}
	sites := make([]*Site, 0, len(specs))
	for _, spec := range specs {
		s, err := NewSite(spec)
		if err != nil {
			return nil, err
		}
		sites = append(sites, s)
	}
	return sites, nil
}
