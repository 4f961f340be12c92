package enrich

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/sells-group/jobinsight/internal/model"
)

// ExtractJSONObject returns the first balanced {...} object in raw. Braces
// inside JSON strings do not count. Markdown code fences around the object
// are ignored.
func ExtractJSONObject(raw string) (string, bool) {
	s := stripFences(raw)
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func stripFences(s string) string {
	var b strings.Builder
	for line := range strings.Lines(s) {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		b.WriteString(line)
	}
	return b.String()
}

// stripControl drops C0 controls, DEL and C1 controls. Models occasionally
// emit raw newlines inside string values, which JSON rejects.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r <= 0x1f || (r >= 0x7f && r <= 0x9f) {
			return -1
		}
		return r
	}, s)
}

// ParseResponse turns raw model output into an Enrichment. It reports false,
// with DefaultEnrichment, when no JSON object can be recovered.
func ParseResponse(raw string) (model.Enrichment, bool) {
	obj, ok := ExtractJSONObject(raw)
	if !ok {
		return model.DefaultEnrichment(), false
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(stripControl(obj)), &fields); err != nil {
		return model.DefaultEnrichment(), false
	}

	e := model.DefaultEnrichment()
	e.Skills = toList(fields["skills"])
	e.Experience = toText(fields["experience"])
	e.Education = toText(fields["education"])
	e.Responsibilities = toList(fields["responsibilities"])
	e.Category = toText(fields["category"])
	e.Seniority = toText(fields["seniority"])
	e.Remote = toBool(fields["remote"])
	e.DeFi = toBool(fields["defi"])
	e.NFT = toBool(fields["nft"])
	e.DAO = toBool(fields["dao"])
	e.SmartContract = toBool(fields["smart_contract"])
	e.Confidence = toConfidence(fields["confidence"])
	return e, true
}

func splitList(r rune) bool {
	switch r {
	case ',', '，', '、', ';', '；', '\n':
		return true
	}
	return false
}

func toList(v any) []string {
	out := []string{}
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if s := toText(item); s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, part := range strings.FieldsFunc(t, splitList) {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func toText(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []any:
		return strings.Join(toList(t), "、")
	}
	return ""
}

func toBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "y", "1", "是":
			return true
		}
	}
	return false
}

func toConfidence(v any) float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(t), "%"), 64)
		if err != nil {
			return 0
		}
		if strings.HasSuffix(strings.TrimSpace(t), "%") {
			parsed /= 100
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) {
		return 0
	}
	return min(max(f, 0), 1)
}
