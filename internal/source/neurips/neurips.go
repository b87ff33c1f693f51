// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package neurips harvests papers.nips.cc. Listing pages link each paper's
// abstract page through a content-hash URL; the PDF location is derived
// from the abstract URL rather than scraped.
package neurips

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/pdiddy/paperharvest/internal/source"
	"github.com/pdiddy/paperharvest/internal/transport"
	"github.com/pdiddy/paperharvest/pkg/types"
)

const defaultBaseURL = "https://papers.nips.cc"

func init() {
	source.Register(source.Entry{
		Name:        "neurips",
		DisplayName: "NeurIPS",
		BaseURL:     defaultBaseURL,
		Policy: types.SourcePolicy{
			MinDelay:        100 * time.Millisecond,
			Timeout:         30 * time.Second,
			MaxRetries:      3,
			CooldownDefault: 60 * time.Second,
		},
		New: func(client *transport.Client, logger *zap.Logger) source.Adapter {
			return New(client, logger)
		},
	})
}

var (
	hashPattern     = regexp.MustCompile(`/hash/([a-f0-9]+)`)
	abstractPattern = regexp.MustCompile(`-Abstract(?:-(\w+))?\.html$`)
)

// Adapter implements source.Adapter for NeurIPS proceedings.
type Adapter struct {
	client  *transport.Client
	logger  *zap.Logger
	baseURL string
}

// New builds a NeurIPS adapter over the given transport.
func New(client *transport.Client, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{client: client, logger: logger, baseURL: defaultBaseURL}
}

func (a *Adapter) Name() string { return "neurips" }

// ItemIDs lists the abstract-page URLs for one proceedings year.
func (a *Adapter) ItemIDs(ctx context.Context, p types.Partition) ([]string, error) {
	listURL := fmt.Sprintf("%s/paper_files/paper/%d", a.baseURL, p.Year)
	doc, err := a.fetchDocument(ctx, listURL)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", listURL, err)
	}

	year := strconv.Itoa(p.Year)
	seen := map[string]struct{}{}
	var ids []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if href == "" {
			return
		}
		if !strings.Contains(href, "/hash/") || !strings.Contains(href, year) {
			return
		}
		if !strings.Contains(href, "Abstract") && !strings.HasSuffix(href, ".html") {
			return
		}
		full := a.resolve(href)
		if _, dup := seen[full]; dup {
			return
		}
		seen[full] = struct{}{}
		ids = append(ids, full)
	})

	a.logger.Info("listed papers",
		zap.String("source", "neurips"),
		zap.Int("year", p.Year),
		zap.Int("count", len(ids)))
	return ids, nil
}

// ParseItem fetches one abstract page and extracts the record.
func (a *Adapter) ParseItem(ctx context.Context, pageURL string) (*types.Paper, error) {
	doc, err := a.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(doc.Find("div.col h4").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h4").First().Text())
	}
	if title == "" {
		return nil, &source.ParseError{PageURL: pageURL, Reason: "missing title"}
	}

	pdfURL, err := pdfURLFor(pageURL)
	if err != nil {
		return nil, &source.ParseError{PageURL: pageURL, Reason: err.Error()}
	}

	return &types.Paper{
		ID:       paperID(pageURL),
		Title:    title,
		Authors:  extractAuthors(doc),
		Abstract: extractAbstract(doc),
		PageURL:  pageURL,
		PDFURL:   pdfURL,
	}, nil
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

// extractAuthors reads the italicized author line after the Authors heading.
func extractAuthors(doc *goquery.Document) []string {
	var authors []string
	doc.Find("h4").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if strings.TrimSpace(sel.Text()) != "Authors" {
			return true
		}
		text := strings.TrimSpace(sel.NextAllFiltered("p").First().Find("i").Text())
		if text == "" {
			return false
		}
		for _, name := range strings.Split(text, ",") {
			if name = strings.TrimSpace(name); name != "" {
				authors = append(authors, name)
			}
		}
		return false
	})
	return authors
}

// extractAbstract returns the first substantial paragraph after the
// Abstract heading, skipping empty filler paragraphs.
func extractAbstract(doc *goquery.Document) string {
	var abstract string
	doc.Find("h4").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if strings.TrimSpace(sel.Text()) != "Abstract" {
			return true
		}
		sel.NextAllFiltered("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
			text := strings.TrimSpace(p.Text())
			if len(text) > 50 {
				abstract = text
				return false
			}
			return true
		})
		return false
	})
	return abstract
}

// paperID extracts the content hash from an abstract URL, falling back to
// the final path component.
func paperID(pageURL string) string {
	if m := hashPattern.FindStringSubmatch(pageURL); m != nil {
		return m[1]
	}
	last := pageURL[strings.LastIndex(pageURL, "/")+1:]
	last = strings.TrimSuffix(last, ".html")
	return strings.TrimSuffix(last, "-Abstract")
}

// pdfURLFor rewrites an abstract URL to its PDF: hash becomes file, and
// the Abstract suffix becomes Paper, keeping any track suffix
// (e.g. -Abstract-Datasets_and_Benchmarks.html).
func pdfURLFor(pageURL string) (string, error) {
	if !strings.Contains(pageURL, "/hash/") {
		return "", fmt.Errorf("unexpected paper URL format: %s", pageURL)
	}
	m := abstractPattern.FindStringSubmatch(pageURL)
	if m == nil {
		return "", fmt.Errorf("unrecognized abstract URL format: %s", pageURL)
	}

	pdfURL := strings.Replace(pageURL, "/hash/", "/file/", 1)
	suffix := "-Paper.pdf"
	if m[1] != "" {
		suffix = "-Paper-" + m[1] + ".pdf"
	}
	return abstractPattern.ReplaceAllLiteralString(pdfURL, suffix), nil
}
