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
	idxCards      = "teambeat_cards"
	idxAgreements = "teambeat_agreements"
)

// Meili implements Searcher via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures indexes. The
// client starts unhealthy when the initial connection fails; a
// background loop keeps probing so a late-starting Meilisearch gets
// picked up without a restart.
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
		filterable []string
		searchable []string
	}{
		{
			uid:        idxCards,
			filterable: []string{"series_id", "board_id"},
			searchable: []string{"content"},
		},
		{
			uid:        idxAgreements,
			filterable: []string{"series_id", "board_id"},
			searchable: []string{"content"},
		},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        idx.uid,
			PrimaryKey: "id",
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

// Search queries cards and agreements (or a filtered subset) and
// merges results.
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
		{idxCards, ResultCard},
		{idxAgreements, ResultAgreement},
	}

	for _, ti := range targetIndexes {
		if q.FilterType != "" && q.FilterType != ti.rtyp {
			continue
		}
		sr := &meili.SearchRequest{
			IndexUID:              ti.uid,
			Query:                 q.Text,
			Limit:                 limit,
			Offset:                int64(q.Offset),
			AttributesToHighlight: []string{"*"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
			ShowRankingScore:      true,
			Filter:                []string{fmt.Sprintf("series_id = %q", q.SeriesID)},
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
	case idxCards:
		return ResultCard
	case idxAgreements:
		return ResultAgreement
	default:
		return ""
	}
}

func hitToResult(hit meili.Hit, rtyp ResultType) Result {
	r := Result{Type: rtyp}
	r.ID = decodeString(hit, "id")
	r.BoardID = decodeString(hit, "board_id")
	r.BoardName = decodeString(hit, "board_name")
	r.SeriesID = decodeString(hit, "series_id")
	r.AuthorName = decodeString(hit, "author_name")
	r.Snippet = firstNonBlank(decodeFormattedString(hit, "content"), decodeString(hit, "content"))
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

// IndexCard adds or updates a card in the search index.
func (m *Meili) IndexCard(c CardRecord) error {
	_, err := m.client.Index(idxCards).AddDocuments([]CardRecord{c}, nil)
	return err
}

// IndexAgreement adds or updates an agreement in the search index.
func (m *Meili) IndexAgreement(a AgreementRecord) error {
	_, err := m.client.Index(idxAgreements).AddDocuments([]AgreementRecord{a}, nil)
	return err
}

// DeleteCard removes a card from the search index.
func (m *Meili) DeleteCard(id string) error {
	_, err := m.client.Index(idxCards).DeleteDocument(id, nil)
	return err
}

// DeleteAgreement removes an agreement from the search index.
func (m *Meili) DeleteAgreement(id string) error {
	_, err := m.client.Index(idxAgreements).DeleteDocument(id, nil)
	return err
}

// IndexCards bulk-indexes cards.
func (m *Meili) IndexCards(cards []CardRecord) error {
	if len(cards) == 0 {
		return nil
	}
	_, err := m.client.Index(idxCards).AddDocuments(cards, nil)
	return err
}

// IndexAgreements bulk-indexes agreements.
func (m *Meili) IndexAgreements(agreements []AgreementRecord) error {
	if len(agreements) == 0 {
		return nil
	}
	_, err := m.client.Index(idxAgreements).AddDocuments(agreements, nil)
	return err
}
