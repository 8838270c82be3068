// Package search finds datasets by loose name and records by loose text.
package search

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	lfuzzy "github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/sahilm/fuzzy"

	"github.com/mmcdole/lifetrack/internal/domain"
)

// datasetIndex implements sahilm/fuzzy.Source over dataset names
type datasetIndex []string

func (d datasetIndex) String(i int) string { return d[i] }
func (d datasetIndex) Len() int            { return len(d) }

// Candidates ranks dataset names against query, best first.
func Candidates(query string) []string {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}
	matches := fuzzy.FindFrom(query, datasetIndex(domain.DatasetNames()))
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Str
	}
	return out
}

// ResolveDataset maps a loose name ("prayer", "sleep") to a dataset.
// Exact names always win.
func ResolveDataset(query string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(query))
	if _, ok := domain.LookupDataset(name); ok {
		return name, nil
	}
	candidates := Candidates(name)
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownDataset, query)
	}
	return candidates[0], nil
}

// ResolveDatasetStrict is ResolveDataset for writes: the query must name
// a dataset exactly or fuzzy-match exactly one.
func ResolveDatasetStrict(query string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(query))
	if _, ok := domain.LookupDataset(name); ok {
		return name, nil
	}
	candidates := Candidates(name)
	switch len(candidates) {
	case 0:
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownDataset, query)
	case 1:
		return candidates[0], nil
	default:
		return "", fmt.Errorf("%w: %q is ambiguous (%s)", domain.ErrUnknownDataset, query, strings.Join(candidates, ", "))
	}
}

// Result is a record that matched a text filter.
type Result struct {
	Record   domain.Record `json:"record"`
	Distance int           `json:"distance"` // edit distance of the match (lower = better)
}

// FilterRecords keeps the records whose field contains term as a fuzzy,
// case-insensitive subsequence, closest matches first. An empty field
// searches every text field of the record.
func FilterRecords(records []domain.Record, field, term string) []Result {
	term = strings.TrimSpace(term)
	if term == "" {
		out := make([]Result, len(records))
		for i, r := range records {
			out[i] = Result{Record: r}
		}
		return out
	}

	targets := make([]string, len(records))
	for i, r := range records {
		targets[i] = searchText(r, field)
	}

	ranks := lfuzzy.RankFindNormalizedFold(term, targets)
	sort.Stable(ranks)

	out := make([]Result, len(ranks))
	for i, rank := range ranks {
		out[i] = Result{Record: records[rank.OriginalIndex], Distance: rank.Distance}
	}
	return out
}

// searchText is the text a record is matched on
func searchText(r domain.Record, field string) string {
	if field != "" {
		return r.String(field)
	}
	keys := make([]string, 0, len(r))
	for k, v := range r {
		if _, ok := v.(string); ok && k != "id" && k != "user_id" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = r.String(k)
	}
	return strings.Join(parts, " ")
}

// Cache is the read side of the offline snapshot cache.
type Cache interface {
	GetOfflineData(dataset string) ([]domain.Record, bool)
}

// Service searches cached data directly
type Service struct {
	cache  Cache
	logger *slog.Logger
}

// NewService creates a new search service
func NewService(cache Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{cache: cache, logger: logger}
}

// FilterLocal resolves datasetQuery and filters its cached records.
// It returns the resolved dataset name with the results.
func (s *Service) FilterLocal(datasetQuery, field, term string) (string, []Result, error) {
	dataset, err := ResolveDataset(datasetQuery)
	if err != nil {
		return "", nil, err
	}
	records, ok := s.cache.GetOfflineData(dataset)
	if !ok {
		s.logger.Debug("no cached data to search", "dataset", dataset)
	}
	results := FilterRecords(records, field, term)
	s.logger.Debug("filtered records", "dataset", dataset, "term", term, "results", len(results))
	return dataset, results, nil
}
