// internal/discovery/extractor.go
package discovery

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/config"
)

// Extractor builds a PageContext from a settled page. It only reads the
// document: the DOM is serialized once and everything else happens on the
// parsed copy.
type Extractor struct {
	cfg    config.DiscoveryConfig
	logger *zap.Logger
}

// NewExtractor creates an Extractor.
func NewExtractor(cfg config.DiscoveryConfig, logger *zap.Logger) *Extractor {
	return &Extractor{cfg: cfg, logger: logger.Named("extractor")}
}

// Extract waits for the page to settle and snapshots it. Every failure is an
// *schemas.ExtractionError.
func (e *Extractor) Extract(ctx context.Context, page schemas.PageHandle) (*schemas.PageContext, error) {
	if page == nil || page.Closed() {
		return nil, &schemas.ExtractionError{Err: schemas.ErrPageClosed}
	}
	url, err := page.Location(ctx)
	if err != nil {
		return nil, &schemas.ExtractionError{Err: fmt.Errorf("read location: %w", err)}
	}

	// 1. Settle. The bound is the extractor's own, independent of the caller's.
	if err := page.WaitForIdle(ctx, e.cfg.SettleTimeout); err != nil {
		return nil, &schemas.ExtractionError{URL: url, Err: fmt.Errorf("page did not settle within %s: %w", e.cfg.SettleTimeout, err)}
	}

	// 2. Serialize.
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, &schemas.ExtractionError{URL: url, Err: err}
	}

	// 3. Parse and classify.
	pageCtx, err := Parse(html, url, e.cfg.MaxNavLinks)
	if err != nil {
		return nil, &schemas.ExtractionError{URL: url, Err: err}
	}

	e.logger.Debug("Page context extracted.",
		zap.String("url", url),
		zap.Int("forms", len(pageCtx.Forms)),
		zap.Int("nav_links", len(pageCtx.NavLinks)),
		zap.Bool("login", pageCtx.HasLoginForm),
		zap.Bool("contact", pageCtx.HasContactForm),
		zap.Bool("search", pageCtx.HasSearchForm),
	)
	return pageCtx, nil
}

// Parse builds a PageContext from serialized HTML. maxNavLinks <= 0 means no
// cap.
func Parse(html, pageURL string, maxNavLinks int) (*schemas.PageContext, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	pageCtx := &schemas.PageContext{
		Title:    collapse(doc.Find("title").First().Text()),
		URL:      pageURL,
		Forms:    []schemas.FormDescriptor{},
		NavLinks: navLinks(doc, pageURL, maxNavLinks),
	}

	doc.Find("form").Each(func(_ int, form *goquery.Selection) {
		fd := describeForm(doc, form)
		pageCtx.Forms = append(pageCtx.Forms, fd)

		switch {
		case isLoginForm(fd):
			pageCtx.HasLoginForm = true
		case isContactForm(fd):
			pageCtx.HasContactForm = true
		}
		if isSearchForm(form, fd) {
			pageCtx.HasSearchForm = true
		}
	})
	return pageCtx, nil
}

func describeForm(doc *goquery.Document, form *goquery.Selection) schemas.FormDescriptor {
	fd := schemas.FormDescriptor{
		ID:        attr(form, "id"),
		ClassName: attr(form, "class"),
		Action:    attr(form, "action"),
		Method:    strings.ToLower(attr(form, "method")),
		Inputs:    []schemas.FieldDescriptor{},
	}

	form.Find("input, textarea, select, button").Each(func(_ int, s *goquery.Selection) {
		fieldType := controlType(s)
		if fieldType == "hidden" {
			return
		}
		fd.Inputs = append(fd.Inputs, schemas.FieldDescriptor{
			Name:        attr(s, "name"),
			Type:        fieldType,
			Placeholder: attr(s, "placeholder"),
			ID:          attr(s, "id"),
			Label:       labelFor(doc, s),
		})
	})
	return fd
}

// controlType returns the effective type of a form control, applying the
// HTML defaults for missing attributes.
func controlType(s *goquery.Selection) string {
	tag := goquery.NodeName(s)
	t := strings.ToLower(attr(s, "type"))
	switch tag {
	case "textarea", "select":
		return tag
	case "button":
		if t == "" {
			return "submit"
		}
		return t
	default:
		if t == "" {
			return "text"
		}
		return t
	}
}

// labelFor resolves the human label of a control: <label for=id>, then an
// enclosing <label>, then aria-label.
func labelFor(doc *goquery.Document, s *goquery.Selection) string {
	if id := attr(s, "id"); id != "" {
		var text string
		doc.Find("label").EachWithBreak(func(_ int, l *goquery.Selection) bool {
			if attr(l, "for") == id {
				text = collapse(l.Text())
				return false
			}
			return true
		})
		if text != "" {
			return text
		}
	}
	if parent := s.Closest("label"); parent.Length() > 0 {
		clone := parent.Clone()
		clone.Find("input, textarea, select, button").Remove()
		if text := collapse(clone.Text()); text != "" {
			return text
		}
	}
	if goquery.NodeName(s) == "button" {
		if text := collapse(s.Text()); text != "" {
			return text
		}
	}
	return attr(s, "aria-label")
}

func attr(s *goquery.Selection, name string) string {
	v, _ := s.Attr(name)
	return strings.TrimSpace(v)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
