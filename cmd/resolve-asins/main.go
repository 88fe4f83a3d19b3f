// Command resolve-asins backfills display names for ASIN search terms
// already stored in the snapshot database, using the lookup file and
// (optionally) a product-page scrape for ASINs it has never seen.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/eshaffer321/kdp-ads-analytics/internal/adapters/titles"
	"github.com/eshaffer321/kdp-ads-analytics/internal/infrastructure/config"
	"github.com/eshaffer321/kdp-ads-analytics/internal/infrastructure/storage"
)

func main() {
	var (
		configPath = flag.String("config", "config/campaigns.yaml", "Path to campaign config YAML")
		dbPath     = flag.String("db", "", "Snapshot database path (default from config)")
		lookupPath = flag.String("lookup", titles.DefaultLookupPath, "Path to the ASIN lookup JSON file")
		scrape     = flag.Bool("scrape", false, "Scrape product pages for unknown ASINs")
	)
	flag.Parse()

	cfg := config.LoadOrEnv_WithPath(*configPath)
	path := *dbPath
	if path == "" {
		path = cfg.DatabasePath()
	}

	store, err := storage.NewStorage(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open snapshot database: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	terms, err := storedSearchTerms(store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read stored search terms: %v\n", err)
		os.Exit(1)
	}
	if len(terms) == 0 {
		fmt.Println("No stored search terms. Run 'report -save' first.")
		return
	}

	resolver := titles.NewResolver(*lookupPath, *scrape)
	resolved, err := resolver.Resolve(context.Background(), terms)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: title resolution incomplete: %v\n", err)
	}
	if len(resolved) == 0 {
		fmt.Println("No ASIN search terms resolved.")
		return
	}

	updated, err := store.UpdateSearchTermNames(resolved)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to update stored search terms: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Resolved %d ASINs, updated %d stored search term rows.\n", len(resolved), updated)
}

// storedSearchTerms collects the distinct search terms across every
// stored snapshot.
func storedSearchTerms(store storage.Repository) ([]string, error) {
	snapshots, err := store.ListSnapshots()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var terms []string
	for _, snapshot := range snapshots {
		detail, err := store.GetSnapshot(snapshot.WeekStart)
		if err != nil {
			return nil, err
		}
		if detail == nil {
			continue
		}
		for _, row := range detail.SearchTerms {
			if !seen[row.SearchTerm] {
				seen[row.SearchTerm] = true
				terms = append(terms, row.SearchTerm)
			}
		}
	}
	return terms, nil
}
