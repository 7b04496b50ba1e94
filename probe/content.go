package probe

import (
	"io"
	"net/http"
	"strings"

	"github.com/opsmind/pulseguard/core"
)

const contentInspectionLimit = 5 * 1024 // 5 KiB

// securityPhrases are browser-level phishing/unsafe-site warning strings
// whose presence in an HTML body supersedes the HTTP status classification.
var securityPhrases = []string{
	"deceptive site ahead",
	"this site may harm your computer",
	"the site ahead contains malware",
	"phishing attack ahead",
	"this site has been reported as unsafe",
	"reported attack site",
	"suspected phishing site",
	"dangerous site",
	"unsafe website",
}

// challengePhrases and cdnMarkers implement the "security-challenge phrase
// combined with a CDN marker" rule: either alone is not a warning.
var challengePhrases = []string{
	"checking your browser",
	"security challenge",
	"please verify you are a human",
}

var cdnMarkers = []string{
	"cloudflare",
	"cf-ray",
	"attention required",
}

// classifyContent inspects an HTTP response for phishing/security warnings.
// It returns "" when nothing in the response triggers one.
func classifyContent(resp *http.Response) core.CheckStatus {
	if resp.Header.Get("x-phishing-warning") != "" || resp.Header.Get("x-malware-warning") != "" {
		return core.StatusPhishingWarning
	}

	if !strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "html") {
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, contentInspectionLimit))
	if err != nil {
		return ""
	}
	text := strings.ToLower(string(body))

	for _, phrase := range securityPhrases {
		if strings.Contains(text, phrase) {
			return core.StatusSecurityWarning
		}
	}

	hasChallenge := false
	for _, phrase := range challengePhrases {
		if strings.Contains(text, phrase) {
			hasChallenge = true
			break
		}
	}
	if hasChallenge {
		for _, marker := range cdnMarkers {
			if strings.Contains(text, marker) {
				return core.StatusSecurityWarning
			}
		}
	}

	return ""
}
