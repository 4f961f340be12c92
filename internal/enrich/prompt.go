package enrich

import (
	"strings"

	"github.com/sells-group/jobinsight/internal/model"
)

const promptTemplate = `你是一个专业的HR分析师，请从以下职位描述中提取关键信息，并以JSON格式返回。

职位标题: {title}
职位描述: {text}

请提取以下信息并以严格的JSON格式返回（不要添加任何其他文字）:

{
    "skills": ["技能1", "技能2", "技能3"],
    "experience": "经验要求（如：3-5年）",
    "education": "学历要求（如：本科及以上）",
    "responsibilities": ["核心职责1", "核心职责2"],
    "category": "职位类别（如：后端开发、前端开发、产品经理等）",
    "seniority": "资历级别（如：初级、中级、高级、专家）",
    "remote": false,
    "defi": false,
    "nft": false,
    "dao": false,
    "smart_contract": false,
    "confidence": 0.85
}

注意：
1. skills应包含具体的技术技能、工具、编程语言等
2. 布尔值判断Web3相关特征：DeFi、NFT、DAO、智能合约
3. confidence表示提取信息的置信度(0-1)
4. 只返回JSON，不要添加任何解释文字

JSON:`

// BuildPrompt renders the extraction prompt. The same inputs always give the
// same prompt.
func BuildPrompt(title, text string) string {
	r := strings.NewReplacer("{title}", strings.TrimSpace(title), "{text}", strings.TrimSpace(text))
	return r.Replace(promptTemplate)
}

// PostingText is the body text sent for a posting: description then
// requirements. Requirements identical to the description are sent once.
func PostingText(p *model.Posting) string {
	desc := strings.TrimSpace(p.Description)
	req := strings.TrimSpace(p.Requirements)
	if req == "" || req == desc {
		return desc
	}
	if desc == "" {
		return req
	}
	return desc + " " + req
}
