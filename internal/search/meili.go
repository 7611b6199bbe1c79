package search

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const (
	idxBuyers   = "bizbuddy_buyers"
	idxProjects = "bizbuddy_projects"
)

// Meili implements Searcher and Indexer via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures indexes.
// Returns a client even if the initial connection fails; the health loop
// reconfigures indexes once Meilisearch comes back.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	indexes := []struct {
		uid        string
		primaryKey string
		filterable []string
		searchable []string
	}{
		{
			uid:        idxBuyers,
			primaryKey: "id",
			filterable: []string{"country", "channel"},
			searchable: []string{"company", "contactName", "memo"},
		},
		{
			uid:        idxProjects,
			primaryKey: "id",
			filterable: []string{"stage", "buyerId"},
			searchable: []string{"name", "company"},
		},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        idx.uid,
			PrimaryKey: idx.primaryKey,
		}); err != nil {
			log.Printf("search: create index %s (may already exist): %v", idx.uid, err)
		}

		index := m.client.Index(idx.uid)
		filterableInterface := make([]interface{}, len(idx.filterable))
		for i, v := range idx.filterable {
			filterableInterface[i] = v
		}
		if _, err := index.UpdateFilterableAttributes(&filterableInterface); err != nil {
			log.Printf("search: update filterable attrs for %s: %v", idx.uid, err)
		}
		if _, err := index.UpdateSearchableAttributes(&idx.searchable); err != nil {
			log.Printf("search: update searchable attrs for %s: %v", idx.uid, err)
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries both indexes (or a filtered subset) and merges results.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	var queries []*meili.SearchRequest
	targetIndexes := []struct {
		uid  string
		rtyp ResultType
	}{
		{idxBuyers, ResultBuyer},
		{idxProjects, ResultProject},
	}

	for _, ti := range targetIndexes {
		if q.FilterType != "" && q.FilterType != ti.rtyp {
			continue
		}
		sr := &meili.SearchRequest{
			IndexUID:              ti.uid,
			Limit:                 limit,
			Offset:                int64(q.Offset),
			AttributesToHighlight: []string{"*"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
			ShowRankingScore:      true,
		}

		var filters []string
		if q.FilterCountry != "" && ti.rtyp == ResultBuyer {
			filters = append(filters, fmt.Sprintf("country = %q", q.FilterCountry))
		}
		if q.FilterStage != "" && ti.rtyp == ResultProject {
			filters = append(filters, fmt.Sprintf("stage = %q", q.FilterStage))
		}
		if len(filters) > 0 {
			sr.Filter = filters
		}
		queries = append(queries, sr)
	}

	if len(queries) == 0 {
		return nil, 0, nil
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: queries,
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		rtyp := indexToResultType(sr.IndexUID)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit, rtyp))
		}
	}

	return results, total, nil
}

func indexToResultType(uid string) ResultType {
	switch uid {
	case idxBuyers:
		return ResultBuyer
	case idxProjects:
		return ResultProject
	default:
		return ""
	}
}

func hitToResult(hit meili.Hit, rtyp ResultType) Result {
	r := Result{Type: rtyp}
	r.ID = decodeString(hit, "id")

	switch rtyp {
	case ResultBuyer:
		r.Title = firstNonBlank(decodeFormattedString(hit, "company"), decodeString(hit, "company"))
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "memo"), decodeString(hit, "contactName"))
		r.Country = decodeString(hit, "country")
		r.BuyerID = r.ID
	case ResultProject:
		r.Title = firstNonBlank(decodeFormattedString(hit, "name"), decodeString(hit, "name"))
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "company"), decodeString(hit, "company"))
		r.Stage = decodeString(hit, "stage")
		r.BuyerID = decodeString(hit, "buyerId")
	}
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]string
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	return strings.TrimSpace(formatted[key])
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// IndexBuyer adds or updates a buyer in the search index.
func (m *Meili) IndexBuyer(b BuyerRecord) error {
	_, err := m.client.Index(idxBuyers).AddDocuments([]BuyerRecord{b}, nil)
	return err
}

// IndexProject adds or updates a project in the search index.
func (m *Meili) IndexProject(p ProjectRecord) error {
	_, err := m.client.Index(idxProjects).AddDocuments([]ProjectRecord{p}, nil)
	return err
}

// DeleteBuyer removes a buyer from the search index.
func (m *Meili) DeleteBuyer(id string) error {
	_, err := m.client.Index(idxBuyers).DeleteDocument(id, nil)
	return err
}

// DeleteProject removes a project from the search index.
func (m *Meili) DeleteProject(id string) error {
	_, err := m.client.Index(idxProjects).DeleteDocument(id, nil)
	return err
}

// IndexBuyers bulk-indexes buyers.
func (m *Meili) IndexBuyers(buyers []BuyerRecord) error {
	if len(buyers) == 0 {
		return nil
	}
	_, err := m.client.Index(idxBuyers).AddDocuments(buyers, nil)
	return err
}

// IndexProjects bulk-indexes projects.
func (m *Meili) IndexProjects(projects []ProjectRecord) error {
	if len(projects) == 0 {
		return nil
	}
	_, err := m.client.Index(idxProjects).AddDocuments(projects, nil)
	return err
}
