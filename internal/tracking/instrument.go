package tracking

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var hrefRe = regexp.MustCompile(`(?i)href=("[^"]*"|'[^']*')`)
var bodyCloseRe = regexp.MustCompile(`(?i)</body>`)

// Instrument rewrites outbound HTML to carry engagement instrumentation for a
// single delivery. It appends a 1x1 pixel before the closing body tag (or at
// the end of the document when there is none) and wraps every link in a click
// redirect, leaving mailto and unsubscribe links alone.
//
// It must be called exactly once per delivery. Calling it again double-wraps
// the links.
func Instrument(html, trackingId, openBaseURL, clickBaseURL string) string {

	html = hrefRe.ReplaceAllStringFunc(html, func(match string) string {
		quoted := hrefRe.FindStringSubmatch(match)[1]
		target := quoted[1 : len(quoted)-1]
		if strings.HasPrefix(strings.ToLower(target), "mailto:") {
			return match
		}
		if strings.Contains(target, "/unsubscribe/") {
			return match
		}
		redirect := fmt.Sprintf("%s/c/%s?url=%s", strings.TrimRight(clickBaseURL, "/"), trackingId, url.QueryEscape(target))
		return fmt.Sprintf(`href="%s"`, redirect)
	})

	pixel := fmt.Sprintf(
		`<img src="%s/t/open/%s.png" width="1" height="1" style="display:none;" alt="">`,
		strings.TrimRight(openBaseURL, "/"), trackingId)

	loc := bodyCloseRe.FindStringIndex(html)
	if loc == nil {
		return html + pixel
	}
	return html[:loc[0]] + pixel + html[loc[0]:]
}
