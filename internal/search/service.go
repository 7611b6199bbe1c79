package search

import (
	"context"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili *Meili
	pgfts *PgFTS
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	return &Service{meili: meili, pgfts: pgfts}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}

	results, total, err := s.pgfts.Search(q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexBuyer indexes a buyer (fire-and-forget to Meilisearch).
func (s *Service) IndexBuyer(b BuyerRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexBuyer(b); err != nil {
			log.Printf("search: index buyer %s: %v", b.ID, err)
		}
	}()
}

// IndexProject indexes a project (fire-and-forget to Meilisearch).
func (s *Service) IndexProject(p ProjectRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexProject(p); err != nil {
			log.Printf("search: index project %s: %v", p.ID, err)
		}
	}()
}

// DeleteBuyer removes a buyer from the search index (fire-and-forget).
func (s *Service) DeleteBuyer(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteBuyer(id); err != nil {
			log.Printf("search: delete buyer %s: %v", id, err)
		}
	}()
}

// DeleteProject removes a project from the search index (fire-and-forget).
func (s *Service) DeleteProject(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteProject(id); err != nil {
			log.Printf("search: delete project %s: %v", id, err)
		}
	}()
}

// ReindexAll pushes a full set of records to Meilisearch.
func (s *Service) ReindexAll(buyers []BuyerRecord, projects []ProjectRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}

	if len(buyers) > 0 {
		if err := s.meili.IndexBuyers(buyers); err != nil {
			log.Printf("search: reindex buyers: %v", err)
		}
	}
	if len(projects) > 0 {
		if err := s.meili.IndexProjects(projects); err != nil {
			log.Printf("search: reindex projects: %v", err)
		}
	}
}

// ReindexAllFromPG reindexes all searchable entities from PostgreSQL into Meilisearch.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return
	}
	buyers, projects, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	s.ReindexAll(buyers, projects)
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
