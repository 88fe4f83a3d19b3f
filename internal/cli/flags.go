// Package cli holds flag parsing and output helpers shared by the
// command binaries.
package cli

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/eshaffer321/kdp-ads-analytics/internal/application/report"
)

// StringList is a repeatable string flag (-search-terms a.csv
// -search-terms b.csv).
type StringList []string

func (s *StringList) String() string {
	return strings.Join(*s, ",")
}

func (s *StringList) Set(value string) error {
	*s = append(*s, value)
	return nil
}

// ReportFlags are the flags for the report command.
type ReportFlags struct {
	Week         string
	SearchTerms  StringList
	Campaign     string
	KDP          string
	Config       string
	DB           string
	Save         bool
	ResolveASINs bool
	NoTerminal   bool
	OutputDir    string
	Verbose      bool
}

// ParseReportFlags parses report command flags from the command line.
func ParseReportFlags() *ReportFlags {
	flags := &ReportFlags{}
	flag.StringVar(&flags.Week, "week", "", "Pull date (YYYY-MM-DD); the report covers the 7 days before it")
	flag.Var(&flags.SearchTerms, "search-terms", "Path to a Search Term Report (CSV or XLSX); repeatable")
	flag.StringVar(&flags.Campaign, "campaign", "", "Path to the Campaign Report CSV (optional, spend cross-check)")
	flag.StringVar(&flags.KDP, "kdp", "", "Path to the KDP Sales export (CSV or XLSX)")
	flag.StringVar(&flags.Config, "config", "config/campaigns.yaml", "Path to campaign config YAML")
	flag.StringVar(&flags.DB, "db", "", "Snapshot database path (default from config)")
	flag.BoolVar(&flags.Save, "save", false, "Save the week as a snapshot")
	flag.BoolVar(&flags.ResolveASINs, "resolve-asins", true, "Resolve ASIN search terms to book titles")
	flag.BoolVar(&flags.NoTerminal, "no-terminal", false, "Skip terminal output (only write markdown)")
	flag.StringVar(&flags.OutputDir, "output-dir", "reports", "Directory for markdown reports")
	flag.BoolVar(&flags.Verbose, "verbose", false, "Verbose output")
	flag.Parse()
	return flags
}

// Validate checks the required report flags.
func (f *ReportFlags) Validate() error {
	if f.Week == "" {
		return fmt.Errorf("-week is required")
	}
	if len(f.SearchTerms) == 0 {
		return fmt.Errorf("at least one -search-terms file is required")
	}
	if f.KDP == "" {
		return fmt.Errorf("-kdp is required")
	}
	return nil
}

// ToOptions converts the flags to pipeline options, parsing the pull
// date.
func (f *ReportFlags) ToOptions() (report.Options, error) {
	pullDate, err := time.Parse("2006-01-02", f.Week)
	if err != nil {
		return report.Options{}, fmt.Errorf("invalid -week %q: expected YYYY-MM-DD", f.Week)
	}
	return report.Options{
		PullDate:        pullDate,
		SearchTermPaths: f.SearchTerms,
		CampaignPath:    f.Campaign,
		KDPPath:         f.KDP,
		ResolveASINs:    f.ResolveASINs,
		Save:            f.Save,
	}, nil
}
