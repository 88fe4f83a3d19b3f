// Package titles resolves ASIN search terms ("b0fkp8tnds",
// "0063426285") to readable book titles, backed by a local JSON
// lookup file and an optional product-page scrape.
package titles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// DefaultLookupPath is where resolved titles are cached between runs.
const DefaultLookupPath = "data/asin_lookup.json"

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

var (
	// 10-char Kindle ASIN starting B0, or a 10-digit ISBN
	asinPattern = regexp.MustCompile(`^[Bb]0[A-Za-z0-9]{8}$`)
	isbnPattern = regexp.MustCompile(`^\d{10}$`)

	productTitlePattern = regexp.MustCompile(`(?s)id="productTitle"[^>]*>(.*?)</span>`)
	pageTitlePattern    = regexp.MustCompile(`(?s)<title[^>]*>(.*?)</title>`)

	storePrefixPattern  = regexp.MustCompile(`^Amazon\.com:\s*`)
	storeSuffixPattern  = regexp.MustCompile(`\s*:\s*(Books|Kindle Store)\s*$`)
	isbnSuffixPattern   = regexp.MustCompile(`:\s*\d{13,}:\s*Amazon\.com\s*$`)
	amazonSuffixPattern = regexp.MustCompile(`\s*:\s*Amazon\.com\s*$`)
	ebookSuffixPattern  = regexp.MustCompile(`\s*eBook\s*:\s*.+$`)
	authorSuffixPattern = regexp.MustCompile(`:\s*[A-Z][a-z]+,\s*[A-Z][a-z]+(?:\s+[A-Z][a-z]+)?\s*$`)
)

// IsASIN reports whether a search term looks like a product
// identifier rather than a real keyword.
func IsASIN(term string) bool {
	term = strings.TrimSpace(term)
	return asinPattern.MatchString(term) || isbnPattern.MatchString(term)
}

// Resolver maps ASIN search terms to display names. Known titles come
// from the lookup file; unknown ones are optionally scraped from the
// product page and cached back.
type Resolver struct {
	lookupPath string
	scrape     bool
	baseURL    string
	client     *http.Client
	delay      time.Duration
}

func NewResolver(lookupPath string, scrape bool) *Resolver {
	if lookupPath == "" {
		lookupPath = DefaultLookupPath
	}
	return &Resolver{
		lookupPath: lookupPath,
		scrape:     scrape,
		baseURL:    "https://www.amazon.com",
		client:     &http.Client{Timeout: 10 * time.Second},
		delay:      time.Second,
	}
}

// Resolve returns display names for the ASIN terms in the list,
// "Title (asin)" when resolved, "asin (unknown)" when a scrape came
// up empty. Terms that are not ASINs get no entry. With scraping off,
// unknown ASINs are simply left out. Newly scraped titles persist to
// the lookup file; a save failure returns the usable result alongside
// the error.
func (r *Resolver) Resolve(ctx context.Context, terms []string) (map[string]string, error) {
	lookup, err := loadLookup(r.lookupPath)
	if err != nil {
		return nil, err
	}
	index := make(map[string]string, len(lookup))
	for asin, title := range lookup {
		index[strings.ToLower(asin)] = title
	}

	result := make(map[string]string)
	var unknown []string
	for _, term := range terms {
		trimmed := strings.TrimSpace(term)
		if !IsASIN(trimmed) {
			continue
		}
		if title, ok := index[strings.ToLower(trimmed)]; ok {
			result[term] = fmt.Sprintf("%s (%s)", title, term)
		} else {
			unknown = append(unknown, term)
		}
	}

	if !r.scrape || len(unknown) == 0 {
		return result, nil
	}

	newlyResolved := make(map[string]string)
	for i, term := range unknown {
		if i > 0 {
			// Space out requests so the lookup run stays polite
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(r.delay):
			}
		}
		asin := strings.TrimSpace(term)
		title := r.scrapeTitle(ctx, asin)
		if title == "" {
			result[term] = fmt.Sprintf("%s (unknown)", term)
			continue
		}
		result[term] = fmt.Sprintf("%s (%s)", title, term)
		canonical := asin
		if strings.HasPrefix(strings.ToLower(asin), "b") {
			canonical = strings.ToUpper(asin)
		}
		newlyResolved[canonical] = title
	}

	if len(newlyResolved) > 0 {
		for asin, title := range newlyResolved {
			lookup[asin] = title
		}
		if err := saveLookup(lookup, r.lookupPath); err != nil {
			return result, err
		}
	}
	return result, nil
}

// scrapeTitle fetches the product page and extracts a cleaned title.
// Empty string means blocked, missing, or junk.
func (r *Resolver) scrapeTitle(ctx context.Context, asin string) string {
	url := fmt.Sprintf("%s/dp/%s", r.baseURL, strings.ToUpper(asin))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ""
	}
	page := string(body)

	// The productTitle span is the reliable source when present
	if m := productTitlePattern.FindStringSubmatch(page); m != nil {
		return cleanTitle(strings.TrimSpace(m[1]))
	}
	if m := pageTitlePattern.FindStringSubmatch(page); m != nil {
		return cleanTitle(strings.TrimSpace(m[1]))
	}
	return ""
}

// cleanTitle strips the marketing furniture product pages wrap around
// a title. Empty string means the page was a bot-block or error page.
func cleanTitle(raw string) string {
	raw = html.UnescapeString(raw)
	raw = storePrefixPattern.ReplaceAllString(raw, "")
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "amazon.com", "page not found":
		return ""
	}
	raw = storeSuffixPattern.ReplaceAllString(raw, "")
	raw = isbnSuffixPattern.ReplaceAllString(raw, "")
	raw = amazonSuffixPattern.ReplaceAllString(raw, "")
	raw = ebookSuffixPattern.ReplaceAllString(raw, "")
	raw = authorSuffixPattern.ReplaceAllString(raw, "")
	raw = strings.TrimRight(strings.TrimSpace(raw), ":")
	if raw == "" || strings.ToLower(raw) == "amazon.com" {
		return ""
	}
	return raw
}

func loadLookup(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, err
	}
	lookup := make(map[string]string)
	if err := json.Unmarshal(raw, &lookup); err != nil {
		return nil, fmt.Errorf("failed to parse lookup file %s: %w", path, err)
	}
	return lookup, nil
}

func saveLookup(lookup map[string]string, path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create lookup directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(lookup, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to save lookup file: %w", err)
	}
	return nil
}
