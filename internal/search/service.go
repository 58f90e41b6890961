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

// IndexCard indexes a card (fire-and-forget to Meilisearch).
func (s *Service) IndexCard(c CardRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexCard(c); err != nil {
			log.Printf("search: index card %s: %v", c.ID, err)
		}
	}()
}

// IndexAgreement indexes an agreement (fire-and-forget to Meilisearch).
func (s *Service) IndexAgreement(a AgreementRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexAgreement(a); err != nil {
			log.Printf("search: index agreement %s: %v", a.ID, err)
		}
	}()
}

// DeleteCard removes a card from the search index (fire-and-forget).
func (s *Service) DeleteCard(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteCard(id); err != nil {
			log.Printf("search: delete card %s: %v", id, err)
		}
	}()
}

// DeleteAgreement removes an agreement from the search index (fire-and-forget).
func (s *Service) DeleteAgreement(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteAgreement(id); err != nil {
			log.Printf("search: delete agreement %s: %v", id, err)
		}
	}()
}

// ReindexSeries reads a series' records from PG and pushes them to
// Meilisearch.
func (s *Service) ReindexSeries(ctx context.Context, seriesID string) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return
	}
	cards, agreements, err := s.pgfts.LoadSeriesRecords(ctx, seriesID)
	if err != nil {
		log.Printf("search: reindex load for %s failed: %v", seriesID, err)
		return
	}
	if err := s.meili.IndexCards(cards); err != nil {
		log.Printf("search: reindex cards for %s: %v", seriesID, err)
	}
	if err := s.meili.IndexAgreements(agreements); err != nil {
		log.Printf("search: reindex agreements for %s: %v", seriesID, err)
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
