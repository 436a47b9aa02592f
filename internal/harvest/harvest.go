// Package harvest collects candidate subscription URLs from the primary feed,
// the manual list and the page index.
package harvest

import (
	"context"
	"regexp"
	"strings"

	"github.com/samber/lo"

	"github.com/John-Robertt/submerge/internal/fetch"
	"github.com/John-Robertt/submerge/internal/log"
)

// urlPattern matches a URL that starts a line and runs to the first
// whitespace. RE2's \s is ASCII only and skips \v, so the class also
// excludes NEL, the information separators and Unicode separators.
var urlPattern = regexp.MustCompile(`(?m)^https?://[^\s\v\x{1c}-\x{1f}\x{85}\p{Z}]+`)

// ExtractURLs returns every line-leading http(s) URL in text, in first
// occurrence order, with exact duplicates collapsed.
func ExtractURLs(text string) []string {
	found := urlPattern.FindAllString(text, -1)
	if len(found) == 0 {
		return []string{}
	}
	return lo.Uniq(found)
}

// Sources are the three feed locations. Only Primary is mandatory for a run;
// empty Manual or PageIndex skip that source.
type Sources struct {
	Primary   string
	Manual    string
	PageIndex string
}

// Candidates keeps the harvested URLs per source.
type Candidates struct {
	Primary []string
	Manual  []string
	Pages   []string
}

// All concatenates every source. Cross-source duplicates are kept; the task
// builder collapses them.
func (c Candidates) All() []string {
	out := make([]string, 0, len(c.Primary)+len(c.Manual)+len(c.Pages))
	out = append(out, c.Primary...)
	out = append(out, c.Manual...)
	return append(out, c.Pages...)
}

func (c Candidates) Empty() bool {
	return len(c.Primary)+len(c.Manual)+len(c.Pages) == 0
}

type Harvester struct {
	Fetcher fetch.Fetcher
}

func New(f fetch.Fetcher) *Harvester {
	return &Harvester{Fetcher: f}
}

// Collect harvests all configured sources. Source failures are logged and
// yield an empty list; Collect itself never fails.
func (h *Harvester) Collect(ctx context.Context, src Sources) Candidates {
	var c Candidates

	c.Primary = h.harvest(ctx, fetch.KindPrimary, src.Primary)
	if len(c.Primary) == 0 {
		log.Warn("no subscription found in primary source", "url", src.Primary)
	}

	if manual := strings.TrimSpace(src.Manual); manual == "" {
		log.Warn("manual list not configured, skipped")
	} else {
		c.Manual = h.harvest(ctx, fetch.KindManual, manual)
		if len(c.Manual) == 0 {
			log.Warn("no subscription found in manual list", "url", manual)
		}
		for _, u := range c.Manual {
			log.Info("found subscription in manual list", "sub", u)
		}
	}

	if index := strings.TrimSpace(src.PageIndex); index == "" {
		log.Warn("page index not configured, skipped")
	} else {
		c.Pages = h.collectPages(ctx, index)
	}

	return c
}

// collectPages follows one level of indirection: the index lists pages, each
// page lists subscriptions. A URL already taken from an earlier page is
// skipped.
func (h *Harvester) collectPages(ctx context.Context, index string) []string {
	pages := h.harvest(ctx, fetch.KindPageIndex, index)
	if len(pages) == 0 {
		log.Warn("no page found in page index", "url", index)
		return nil
	}

	var out []string
	seen := make(map[string]struct{})
	for _, page := range pages {
		subs := h.harvest(ctx, fetch.KindPage, page)
		if len(subs) == 0 {
			log.Warn("no subscription found in page", "page", page)
			continue
		}
		for _, u := range subs {
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			log.Info("found subscription in page", "sub", u, "page", page)
			out = append(out, u)
		}
	}
	return out
}

func (h *Harvester) harvest(ctx context.Context, kind fetch.Kind, rawURL string) []string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil
	}
	text, err := h.Fetcher.FetchText(ctx, kind, rawURL)
	if err != nil {
		log.Warn("fetch failed", "stage", kind.String(), "url", rawURL, "error", err)
		return nil
	}
	return ExtractURLs(text)
}
