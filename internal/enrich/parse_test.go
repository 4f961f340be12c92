package enrich

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/jobinsight/internal/model"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"bare", `{"a":1}`, `{"a":1}`, true},
		{"prose around", `Sure! Here it is: {"a":1} hope that helps`, `{"a":1}`, true},
		{"nested", `x {"a":{"b":[1,2]},"c":3} y`, `{"a":{"b":[1,2]},"c":3}`, true},
		{"brace in string", `{"a":"}{","b":1}`, `{"a":"}{","b":1}`, true},
		{"escaped quote", `{"a":"say \"}\" now"}`, `{"a":"say \"}\" now"}`, true},
		{"code fence", "```json\n{\"a\":1}\n```", "{\"a\":1}\n", true},
		{"first of two", `{"a":1} {"b":2}`, `{"a":1}`, true},
		{"none", "no json here", "", false},
		{"unbalanced", `{"a":{"b":1}`, "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSONObject(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, strings.TrimSpace(tt.want), strings.TrimSpace(got))
		})
	}
}

func TestParseResponse_ProseWrapped(t *testing.T) {
	raw := `以下是提取结果：
{
  "skills": ["Solidity", "Go", "Rust"],
  "experience": "3-5年",
  "education": "本科及以上",
  "responsibilities": ["设计智能合约", "维护链上服务"],
  "category": "区块链开发",
  "seniority": "高级",
  "remote": false,
  "defi": true,
  "nft": false,
  "dao": false,
  "smart_contract": true,
  "confidence": 0.9
}
希望对你有帮助。`

	e, ok := ParseResponse(raw)
	require.True(t, ok)
	assert.Equal(t, []string{"Solidity", "Go", "Rust"}, e.Skills)
	assert.Equal(t, "3-5年", e.Experience)
	assert.Equal(t, "本科及以上", e.Education)
	assert.Equal(t, []string{"设计智能合约", "维护链上服务"}, e.Responsibilities)
	assert.Equal(t, "区块链开发", e.Category)
	assert.Equal(t, "高级", e.Seniority)
	assert.True(t, e.DeFi)
	assert.True(t, e.SmartContract)
	assert.False(t, e.NFT)
	assert.InDelta(t, 0.9, e.Confidence, 1e-9)
	assert.False(t, e.IsDefault())
}

func TestParseResponse_NoObject(t *testing.T) {
	e, ok := ParseResponse("I cannot help with that.")
	assert.False(t, ok)
	assert.Equal(t, model.DefaultEnrichment(), e)
	assert.Zero(t, e.Confidence)
}

func TestParseResponse_InvalidJSON(t *testing.T) {
	e, ok := ParseResponse(`{"skills": [Solidity, Go], "confidence": }`)
	assert.False(t, ok)
	assert.Equal(t, model.DefaultEnrichment(), e)
}

func TestParseResponse_ControlCharacters(t *testing.T) {
	raw := "{\"category\": \"后端\n开发\", \"confidence\": 0.5\u0085}"
	e, ok := ParseResponse(raw)
	require.True(t, ok)
	assert.Equal(t, "后端开发", e.Category)
	assert.InDelta(t, 0.5, e.Confidence, 1e-9)
}

func TestParseResponse_Coercion(t *testing.T) {
	raw := `{
		"skills": "Solidity, Go，Rust",
		"responsibilities": "开发合约；审计代码",
		"experience": 3,
		"remote": "yes",
		"defi": "是",
		"nft": "no",
		"dao": 1,
		"smart_contract": "TRUE",
		"confidence": "85%"
	}`
	e, ok := ParseResponse(raw)
	require.True(t, ok)
	assert.Equal(t, []string{"Solidity", "Go", "Rust"}, e.Skills)
	assert.Equal(t, []string{"开发合约", "审计代码"}, e.Responsibilities)
	assert.Equal(t, "3", e.Experience)
	assert.True(t, e.Remote)
	assert.True(t, e.DeFi)
	assert.False(t, e.NFT)
	assert.True(t, e.DAO)
	assert.True(t, e.SmartContract)
	assert.InDelta(t, 0.85, e.Confidence, 1e-9)
}

func TestParseResponse_ConfidenceClamped(t *testing.T) {
	e, ok := ParseResponse(`{"confidence": 7}`)
	require.True(t, ok)
	assert.InDelta(t, 1.0, e.Confidence, 0)

	e, ok = ParseResponse(`{"confidence": -0.3}`)
	require.True(t, ok)
	assert.Zero(t, e.Confidence)

	e, ok = ParseResponse(`{"confidence": "high"}`)
	require.True(t, ok)
	assert.Zero(t, e.Confidence)
}

func TestParseResponse_MissingFieldsKeepDefaults(t *testing.T) {
	e, ok := ParseResponse(`{"category": "产品经理"}`)
	require.True(t, ok)
	assert.Equal(t, "产品经理", e.Category)
	assert.NotNil(t, e.Skills)
	assert.Empty(t, e.Skills)
	assert.NotNil(t, e.Responsibilities)
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("  区块链开发工程师 ", "负责DeFi协议开发")
	assert.Contains(t, p, "职位标题: 区块链开发工程师\n")
	assert.Contains(t, p, "职位描述: 负责DeFi协议开发\n")
	for _, key := range []string{"skills", "experience", "education", "responsibilities", "category",
		"seniority", "remote", "defi", "nft", "dao", "smart_contract", "confidence"} {
		assert.Contains(t, p, `"`+key+`"`)
	}
	assert.True(t, strings.HasSuffix(p, "JSON:"))
	assert.Equal(t, p, BuildPrompt("区块链开发工程师", "负责DeFi协议开发"))
}

func TestPostingText(t *testing.T) {
	assert.Equal(t, "desc req", PostingText(&model.Posting{Description: "desc", Requirements: "req"}))
	assert.Equal(t, "desc", PostingText(&model.Posting{Description: "desc", Requirements: "desc"}))
	assert.Equal(t, "req", PostingText(&model.Posting{Requirements: "req"}))
	assert.Empty(t, PostingText(&model.Posting{}))
}
