// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package mlr harvests proceedings.mlr.press (PMLR), which hosts several
// conferences behind one layout: a volume index page maps each conference
// year to a vNNN volume, and every paper has an abstract page with a
// direct PDF link.
package mlr

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/pdiddy/paperharvest/internal/source"
	"github.com/pdiddy/paperharvest/internal/transport"
	"github.com/pdiddy/paperharvest/pkg/types"
)

const defaultBaseURL = "https://proceedings.mlr.press"

// pmlrPolicy is shared across PMLR-hosted conferences: the site rate-limits
// aggressively, so the cooldown is long.
func pmlrPolicy() types.SourcePolicy {
	return types.SourcePolicy{
		MinDelay:        150 * time.Millisecond,
		Timeout:         45 * time.Second,
		MaxRetries:      3,
		CooldownDefault: 120 * time.Second,
	}
}

func init() {
	for name, display := range map[string]string{
		"icml":    "ICML",
		"colt":    "COLT",
		"uai":     "UAI",
		"aistats": "AISTATS",
	} {
		source.Register(source.Entry{
			Name:        name,
			DisplayName: display,
			BaseURL:     defaultBaseURL,
			Policy:      pmlrPolicy(),
			New: func(client *transport.Client, logger *zap.Logger) source.Adapter {
				return New(name, display, client, logger)
			},
		})
	}
}

var volumePattern = regexp.MustCompile(`^v\d+`)

// Adapter implements source.Adapter for one PMLR-hosted conference.
type Adapter struct {
	name    string
	display string
	client  *transport.Client
	logger  *zap.Logger
	baseURL string

	volumes map[int]string
}

// New builds an adapter for the named conference.
func New(name, display string, client *transport.Client, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		name:    name,
		display: display,
		client:  client,
		logger:  logger,
		baseURL: defaultBaseURL,
		volumes: map[int]string{},
	}
}

func (a *Adapter) Name() string { return a.name }

// ItemIDs resolves the year's volume from the PMLR index and lists the
// abstract-page URLs on the volume page.
func (a *Adapter) ItemIDs(ctx context.Context, p types.Partition) ([]string, error) {
	volume, err := a.volumeForYear(ctx, p.Year)
	if err != nil {
		return nil, err
	}

	volumeURL := fmt.Sprintf("%s/%s/", a.baseURL, volume)
	doc, err := a.fetchDocument(ctx, volumeURL)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", volumeURL, err)
	}

	var ids []string
	doc.Find("div.paper").Each(func(_ int, paper *goquery.Selection) {
		paper.Find("p.links a").EachWithBreak(func(_ int, link *goquery.Selection) bool {
			if strings.TrimSpace(link.Text()) != "abs" {
				return true
			}
			if href, ok := link.Attr("href"); ok && href != "" {
				ids = append(ids, a.resolve(href))
			}
			return false
		})
	})

	a.logger.Info("listed papers",
		zap.String("source", a.name),
		zap.String("volume", volume),
		zap.Int("count", len(ids)))
	return ids, nil
}

// ParseItem extracts a record from one abstract page.
func (a *Adapter) ParseItem(ctx context.Context, pageURL string) (*types.Paper, error) {
	doc, err := a.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(doc.Find("h1").First().Text())
	if title == "" {
		return nil, &source.ParseError{PageURL: pageURL, Reason: "missing title"}
	}

	var pdfURL string
	doc.Find("a[href]").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		href, _ := link.Attr("href")
		if strings.HasSuffix(href, ".pdf") {
			pdfURL = a.resolve(href)
			return false
		}
		return true
	})

	return &types.Paper{
		ID:       paperID(pageURL),
		Title:    title,
		Authors:  extractAuthors(doc),
		Abstract: strings.TrimSpace(doc.Find("div.abstract, #abstract").First().Text()),
		PageURL:  pageURL,
		PDFURL:   pdfURL,
	}, nil
}

// volumeForYear scans the PMLR index for the conference/year entry and
// caches the answer for the rest of the run.
func (a *Adapter) volumeForYear(ctx context.Context, year int) (string, error) {
	if v, ok := a.volumes[year]; ok {
		return v, nil
	}

	doc, err := a.fetchDocument(ctx, a.baseURL+"/")
	if err != nil {
		return "", fmt.Errorf("fetching proceedings index: %w", err)
	}

	entryPattern := regexp.MustCompile(fmt.Sprintf(
		`(?i)\b(?:Proceedings\s+of\s+%s\s+%d|%s\s+%d\s+Proceedings)\b\s*$`,
		a.display, year, a.display, year))

	var volume string
	doc.Find("li").EachWithBreak(func(_ int, li *goquery.Selection) bool {
		if !entryPattern.MatchString(strings.TrimSpace(li.Text())) {
			return true
		}
		href, ok := li.Find("a[href]").First().Attr("href")
		if !ok {
			return true
		}
		if m := volumePattern.FindString(strings.TrimPrefix(href, "/")); m != "" {
			volume = m
			return false
		}
		return true
	})
	if volume == "" {
		return "", fmt.Errorf("no %s volume found for year %d", a.display, year)
	}

	a.volumes[year] = volume
	a.logger.Info("resolved volume",
		zap.String("source", a.name),
		zap.Int("year", year),
		zap.String("volume", volume))
	return volume, nil
}

func (a *Adapter) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	resp, err := a.client.Get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", pageURL, err)
	}
	return doc, nil
}

func (a *Adapter) resolve(href string) string {
	base, err := url.Parse(a.baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func extractAuthors(doc *goquery.Document) []string {
	text := strings.TrimSpace(doc.Find("span.authors, #authors").First().Text())
	if text == "" {
		return nil
	}
	var authors []string
	for _, name := range strings.Split(text, ",") {
		if name = strings.TrimSpace(name); name != "" {
			authors = append(authors, name)
		}
	}
	return authors
}

// paperID uses the abstract page's final path component (PMLR slugs like
// "smith23a") as the record ID.
func paperID(pageURL string) string {
	last := pageURL[strings.LastIndex(pageURL, "/")+1:]
	return strings.TrimSuffix(last, ".html")
}
