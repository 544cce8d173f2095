// internal/discovery/classify.go
package discovery

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/xkilldash9x/pagepilot/api/schemas"
)

var contactHints = []string{"email", "name", "message", "subject", "phone"}

func isLoginForm(fd schemas.FormDescriptor) bool {
	for _, in := range fd.Inputs {
		if in.Type == "password" {
			return true
		}
	}
	return false
}

// isContactForm wants a free-text area plus something that identifies the
// sender or the message.
func isContactForm(fd schemas.FormDescriptor) bool {
	hasTextarea, hasHint := false, false
	for _, in := range fd.Inputs {
		if in.Type == "textarea" {
			hasTextarea = true
		}
		text := fieldText(in)
		for _, h := range contactHints {
			if strings.Contains(text, h) {
				hasHint = true
			}
		}
	}
	if hasTextarea && hasHint {
		return true
	}
	return strings.Contains(strings.ToLower(fd.ID+" "+fd.ClassName), "contact") && hasHint
}

func isSearchForm(form *goquery.Selection, fd schemas.FormDescriptor) bool {
	if strings.EqualFold(attr(form, "role"), "search") {
		return true
	}
	for _, in := range fd.Inputs {
		if in.Type == "search" || strings.EqualFold(in.Name, "q") {
			return true
		}
		if strings.Contains(fieldText(in), "search") {
			return true
		}
	}
	return false
}

func fieldText(in schemas.FieldDescriptor) string {
	return strings.ToLower(strings.Join([]string{in.Name, in.Placeholder, in.ID, in.Label}, " "))
}

// navLinks collects links from navigation regions in document order,
// resolved against the page URL and de-duplicated by href.
func navLinks(doc *goquery.Document, pageURL string, limit int) []schemas.LinkDescriptor {
	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}

	links := []schemas.LinkDescriptor{}
	seen := make(map[string]bool)
	doc.Find(`nav a[href], [role="navigation"] a[href], header a[href]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href := resolve(base, attr(a, "href"))
		if href == "" || seen[href] {
			return true
		}
		seen[href] = true

		text := collapse(a.Text())
		if text == "" {
			text = attr(a, "aria-label")
		}
		links = append(links, schemas.LinkDescriptor{Text: text, Href: href})
		return limit <= 0 || len(links) < limit
	})
	return links
}

// resolve makes href absolute and drops links that do not lead to a page.
func resolve(base *url.URL, href string) string {
	lower := strings.ToLower(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	for _, scheme := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, scheme) {
			return ""
		}
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	ref.Fragment = ""
	return ref.String()
}
