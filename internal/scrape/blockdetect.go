package scrape

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// BlockType describes the kind of anti-bot page detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
)

// Marker checks only apply to small bodies; a full listing page can mention
// "captcha" in a script without being a challenge.
const blockBodyLimit = 32 << 10

// Challenge widgets embedded by captcha providers.
var captchaWidgets = []string{"g-recaptcha", "recaptcha/api.js", "h-captcha", "hcaptcha.com/1/api.js", "cf-turnstile"}

// Interstitial titles. Matched against <title> only, since posting text
// can legitimately talk about verification codes.
var captchaTitles = []string{"captcha", "安全验证", "人机验证", "请输入验证码", "verify you are human", "just a moment"}

// DetectBlock classifies a response as an anti-bot interstitial. It is used
// to report why a fetch came back empty; nothing attempts to get past one.
func DetectBlock(status int, header http.Header, body []byte) BlockType {
	if status == http.StatusForbidden || status == http.StatusServiceUnavailable {
		if header.Get("cf-ray") != "" || strings.EqualFold(header.Get("server"), "cloudflare") {
			return BlockCloudflare
		}
	}

	if len(body) > blockBodyLimit {
		return BlockNone
	}
	lower := strings.ToLower(string(body))

	if strings.Contains(lower, "checking your browser") || strings.Contains(lower, "cf-browser-verification") {
		return BlockCloudflare
	}
	for _, m := range captchaWidgets {
		if strings.Contains(lower, m) {
			return BlockCaptcha
		}
	}
	if title := pageTitle(body); title != "" {
		for _, m := range captchaTitles {
			if strings.Contains(title, m) {
				return BlockCaptcha
			}
		}
	}
	if len(body) < 2000 && strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
		return BlockJSShell
	}
	return BlockNone
}

func pageTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(doc.Find("title").First().Text()))
}
