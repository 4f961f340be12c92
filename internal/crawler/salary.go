package crawler

import (
	"regexp"
	"strconv"
)

var (
	salaryRangeRe  = regexp.MustCompile(`(\d+)-(\d+)K`)
	salarySingleRe = regexp.MustCompile(`(\d+)K`)
)

// ParseSalary extracts a monthly salary range from listing text such as
// "15-25K·13薪" or "20K以上". Values are in currency units (K multiplied out).
// Text without a recognizable figure, e.g. "面议", yields nil, nil.
func ParseSalary(text string) (*int, *int) {
	if m := salaryRangeRe.FindStringSubmatch(text); m != nil {
		lo, okLo := thousands(m[1])
		hi, okHi := thousands(m[2])
		if okLo && okHi {
			return &lo, &hi
		}
		return nil, nil
	}
	if m := salarySingleRe.FindStringSubmatch(text); m != nil {
		if v, ok := thousands(m[1]); ok {
			lo, hi := v, v
			return &lo, &hi
		}
	}
	return nil, nil
}

func thousands(digits string) (int, bool) {
	n, err := strconv.Atoi(digits)
	if err != nil || n > 1<<30/1000 {
		return 0, false
	}
	return n * 1000, true
}
