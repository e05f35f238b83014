package website

import (
	"bytes"
	"net/http"
)

// BlockType describes the kind of anti-bot response detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
)

// DetectBlock reports whether a homepage response is a bot challenge rather
// than the company's content. A challenge would otherwise yield a brief
// built from "Just a moment..." and no links.
func DetectBlock(resp *http.Response, body []byte) (bool, BlockType) {
	if resp == nil {
		return false, BlockNone
	}

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable {
		if resp.Header.Get("cf-ray") != "" || resp.Header.Get("Server") == "cloudflare" {
			return true, BlockCloudflare
		}
	}

	lower := bytes.ToLower(body)
	if bytes.Contains(lower, []byte("checking your browser")) ||
		bytes.Contains(lower, []byte("cf-browser-verification")) ||
		bytes.Contains(lower, []byte("cf-challenge")) {
		return true, BlockCloudflare
	}

	// Only small pages: full sites often embed a recaptcha on a contact form.
	if len(body) < 4096 && (bytes.Contains(lower, []byte("g-recaptcha")) || bytes.Contains(lower, []byte("h-captcha"))) {
		return true, BlockCaptcha
	}

	return false, BlockNone
}
