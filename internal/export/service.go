package export

import (
	"context"
	"fmt"
	"time"

	"teambeat/api/internal/store"
)

// DataStore defines the data access the report needs
type DataStore interface {
	GetBoard(ctx context.Context, boardID string) (store.Board, error)
	GetSeries(ctx context.Context, seriesID string) (store.Series, error)
	ListColumns(ctx context.Context, boardID string) ([]store.Column, error)
	ListCardsByBoard(ctx context.Context, boardID string) ([]store.Card, error)
	ListAgreements(ctx context.Context, boardID string) ([]store.Agreement, error)
	HealthSummaries(ctx context.Context, boardID string) ([]store.HealthSummary, error)
}

// Service provides board report export functionality
type Service struct {
	store DataStore
}

// NewService creates a new export service
func NewService(store DataStore) *Service {
	return &Service{store: store}
}

// Export generates a board report in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	data, boardName, err := s.buildReportData(ctx, req.BoardID)
	if err != nil {
		return nil, err
	}

	html, err := RenderBoardHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatPDF:
		return exportPDF(html, boardName)
	case FormatDOCX:
		return exportDOCX(html, boardName)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}

func (s *Service) buildReportData(ctx context.Context, boardID string) (TemplateData, string, error) {
	board, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return TemplateData{}, "", fmt.Errorf("get board: %w", err)
	}
	series, err := s.store.GetSeries(ctx, board.SeriesID)
	if err != nil {
		return TemplateData{}, "", fmt.Errorf("get series: %w", err)
	}
	columns, err := s.store.ListColumns(ctx, boardID)
	if err != nil {
		return TemplateData{}, "", fmt.Errorf("list columns: %w", err)
	}
	cards, err := s.store.ListCardsByBoard(ctx, boardID)
	if err != nil {
		return TemplateData{}, "", fmt.Errorf("list cards: %w", err)
	}
	agreements, err := s.store.ListAgreements(ctx, boardID)
	if err != nil {
		return TemplateData{}, "", fmt.Errorf("list agreements: %w", err)
	}
	health, err := s.store.HealthSummaries(ctx, boardID)
	if err != nil {
		return TemplateData{}, "", fmt.Errorf("health summaries: %w", err)
	}

	cardsByColumn := make(map[string][]TemplateCard)
	for _, card := range cards {
		cardsByColumn[card.ColumnID] = append(cardsByColumn[card.ColumnID], TemplateCard{
			Content: card.Content,
			Author:  card.AuthorName,
			Votes:   card.VoteCount,
		})
	}

	data := TemplateData{
		BoardName:   board.Name,
		SeriesName:  series.Name,
		Status:      board.Status,
		GeneratedAt: time.Now(),
	}
	for _, column := range columns {
		data.Columns = append(data.Columns, TemplateColumn{
			Title: column.Title,
			Cards: cardsByColumn[column.ID],
		})
	}
	for _, agreement := range agreements {
		data.Agreements = append(data.Agreements, TemplateAgreement{
			Content:   agreement.Content,
			Author:    agreement.AuthorName,
			Completed: agreement.CompletedAt != nil,
		})
	}
	for _, summary := range health {
		data.Health = append(data.Health, TemplateHealth{
			Question:      summary.Question,
			AverageRating: summary.AverageRating,
			ResponseCount: summary.ResponseCount,
		})
	}
	return data, board.Name, nil
}
