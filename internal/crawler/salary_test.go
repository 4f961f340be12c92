package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSalary(t *testing.T) {
	tests := []struct {
		text   string
		lo, hi int
		ok     bool
	}{
		{"15-25K", 15000, 25000, true},
		{"8-12K·13薪", 8000, 12000, true},
		{"20K以上", 20000, 20000, true},
		{"30-50k", 0, 0, false},
		{"12k", 0, 0, false},
		{"面议", 0, 0, false},
		{"", 0, 0, false},
		{"200-300元/天", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			lo, hi := ParseSalary(tt.text)
			if !tt.ok {
				assert.Nil(t, lo)
				assert.Nil(t, hi)
				return
			}
			if assert.NotNil(t, lo) && assert.NotNil(t, hi) {
				assert.Equal(t, tt.lo, *lo)
				assert.Equal(t, tt.hi, *hi)
			}
		})
	}
}

func TestParseSalary_Overflow(t *testing.T) {
	lo, hi := ParseSalary("99999999999999999999K")
	assert.Nil(t, lo)
	assert.Nil(t, hi)
}
