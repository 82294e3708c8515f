// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

package builtin

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mosaic-dev/mosaic/internal/tool"
)

type webTools struct {
	cfg Config
}

func (w *webTools) searchWeb(ctx context.Context, call tool.Call) (tool.Output, error) {
	query := call.String("query")

	endpoint, err := url.Parse(w.cfg.SearchEndpoint)
	if err != nil {
		return errorOutput("Search error: %v", err), nil
	}
	q := endpoint.Query()
	q.Set("q", query)
	endpoint.RawQuery = q.Encode()

	doc, err := w.get(ctx, endpoint.String())
	if err != nil {
		return errorOutput("Search error: %v", err), nil
	}

	var results []string
	doc.Find(".result").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= w.cfg.SearchResults {
			return false
		}
		title := s.Find(".result__title").First()
		if title.Length() == 0 {
			return true
		}
		snippet := collapse(s.Find(".result__snippet").First().Text())
		results = append(results, fmt.Sprintf("**%s**\n%s\n", collapse(title.Text()), snippet))
		return true
	})

	if len(results) == 0 {
		return tool.Text("No results found"), nil
	}
	return tool.Text(strings.Join(results, "\n")), nil
}

func (w *webTools) fetchURL(ctx context.Context, call tool.Call) (tool.Output, error) {
	raw := call.String("url")

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errorOutput("Fetch error: unsupported URL %q", raw), nil
	}

	doc, err := w.get(ctx, u.String())
	if err != nil {
		return errorOutput("Fetch error: %v", err), nil
	}

	doc.Find("script, style, nav, footer, header").Remove()

	var lines []string
	collectText(doc.Selection, &lines)
	return tool.Text(truncate(strings.Join(lines, "\n"), w.cfg.FetchLimit)), nil
}

func (w *webTools) get(ctx context.Context, target string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", w.cfg.UserAgent)

	resp, err := w.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%s returned HTTP %d", target, resp.StatusCode)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

// collectText appends every non-blank text node under s in document order.
func collectText(s *goquery.Selection, lines *[]string) {
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		switch goquery.NodeName(c) {
		case "#text":
			if t := strings.TrimSpace(c.Text()); t != "" {
				*lines = append(*lines, t)
			}
		case "#comment", "#doctype":
		default:
			collectText(c, lines)
		}
	})
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
