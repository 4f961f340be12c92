package crawler

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Rule is one CSS selector, optionally reading an attribute instead of the
// element text. In YAML a rule is either a bare selector string or a map
// with selector and attr keys.
type Rule struct {
	Selector string `yaml:"selector"`
	Attr     string `yaml:"attr,omitempty"`
}

// UnmarshalYAML accepts both the scalar and the mapping form.
func (r *Rule) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		r.Selector = node.Value
		r.Attr = ""
		return nil
	}
	type plain Rule
	var p plain
	if err := node.Decode(&p); err != nil {
		return eris.Wrap(err, "crawler: decode rule")
	}
	*r = Rule(p)
	return nil
}

func (r Rule) value(s *goquery.Selection) string {
	if r.Attr != "" {
		return strings.TrimSpace(s.AttrOr(r.Attr, ""))
	}
	return cleanText(s.Text())
}

// Chain is an ordered list of fallback rules. The first rule that produces a
// non-empty value wins; when every rule misses the field is empty.
type Chain []Rule

// UnmarshalYAML accepts a single rule in place of a list.
func (c *Chain) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode, yaml.MappingNode:
		var r Rule
		if err := node.Decode(&r); err != nil {
			return err
		}
		*c = Chain{r}
		return nil
	}
	var rules []Rule
	if err := node.Decode(&rules); err != nil {
		return eris.Wrap(err, "crawler: decode chain")
	}
	*c = rules
	return nil
}

// Sel builds a chain of plain text selectors.
func Sel(selectors ...string) Chain {
	c := make(Chain, len(selectors))
	for i, s := range selectors {
		c[i] = Rule{Selector: s}
	}
	return c
}

// Text returns the first non-empty value under root.
func (c Chain) Text(root *goquery.Selection) string {
	for _, r := range c {
		if r.Selector == "" {
			continue
		}
		if v := r.value(root.Find(r.Selector).First()); v != "" {
			return v
		}
	}
	return ""
}

// Attr returns the first non-empty attribute name under root, ignoring any
// Attr set on the rules themselves.
func (c Chain) Attr(root *goquery.Selection, name string) string {
	for _, r := range c {
		if r.Selector == "" {
			continue
		}
		if v := strings.TrimSpace(root.Find(r.Selector).First().AttrOr(name, "")); v != "" {
			return v
		}
	}
	return ""
}

// Texts returns the values of every element matched by the first rule that
// yields at least one non-empty value.
func (c Chain) Texts(root *goquery.Selection) []string {
	for _, r := range c {
		if r.Selector == "" {
			continue
		}
		var out []string
		root.Find(r.Selector).Each(func(_ int, s *goquery.Selection) {
			if v := r.value(s); v != "" {
				out = append(out, v)
			}
		})
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// Find returns the elements matched by the first rule that matches anything.
func (c Chain) Find(root *goquery.Selection) *goquery.Selection {
	for _, r := range c {
		if r.Selector == "" {
			continue
		}
		if s := root.Find(r.Selector); s.Length() > 0 {
			return s
		}
	}
	return root.Slice(0, 0)
}

// cleanText collapses runs of whitespace.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
