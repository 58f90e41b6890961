package export

import (
	"context"
	"strings"
	"testing"
	"time"

	"teambeat/api/internal/store"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Sprint 42 Retro", "Sprint-42-Retro"},
		{"Retro v1.2", "Retro-v12"},
		{"Special!@#$%Chars", "SpecialChars"},
		{"", "board"},
		{"Very Long Board Name That Exceeds Fifty Characters Limit", "Very-Long-Board-Name-That-Exceeds-Fifty-Characters"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := sanitizeFilename(tt.input)
			if result != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello world", "hello%20world"},       // Spaces encoded as %20, not +
		{"test+sign", "test%2Bsign"},           // + signs are encoded
		{"special<>", "special%3C%3E"},         // Special chars encoded
		{"normal-text.txt", "normal-text.txt"}, // Unreserved chars pass through
		{"", ""},                               // Empty string
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := percentEncodeForDataURL(tt.input)
			if result != tt.expected {
				t.Errorf("percentEncodeForDataURL(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestRenderBoardHTML(t *testing.T) {
	data := TemplateData{
		BoardName:   "Sprint 42 Retro",
		SeriesName:  "Platform Team",
		Status:      "completed",
		GeneratedAt: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		Columns: []TemplateColumn{
			{
				Title: "What went well",
				Cards: []TemplateCard{
					{Content: "Deploys were smooth", Author: "Avery", Votes: 3},
				},
			},
			{Title: "What to improve"},
		},
		Agreements: []TemplateAgreement{
			{Content: "Rotate on-call weekly", Author: "Blair"},
			{Content: "Archive stale tickets", Author: "Casey", Completed: true},
		},
		Health: []TemplateHealth{
			{Question: "Team morale", AverageRating: 3.7, ResponseCount: 5},
		},
	}

	html, err := RenderBoardHTML(data)
	if err != nil {
		t.Fatalf("RenderBoardHTML() error = %v", err)
	}

	for _, want := range []string{
		"Sprint 42 Retro",
		"Platform Team",
		"What went well",
		"Deploys were smooth",
		"3 votes",
		"No cards.",
		"Rotate on-call weekly",
		"Team morale",
		"3.7",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("HTML missing %q", want)
		}
	}

	if !strings.Contains(html, `class="agreement done"`) {
		t.Error("completed agreement should carry the done class")
	}
}

type fakeExportStore struct {
	board      store.Board
	series     store.Series
	columns    []store.Column
	cards      []store.Card
	agreements []store.Agreement
	health     []store.HealthSummary
}

func (f *fakeExportStore) GetBoard(ctx context.Context, boardID string) (store.Board, error) {
	return f.board, nil
}

func (f *fakeExportStore) GetSeries(ctx context.Context, seriesID string) (store.Series, error) {
	return f.series, nil
}

func (f *fakeExportStore) ListColumns(ctx context.Context, boardID string) ([]store.Column, error) {
	return f.columns, nil
}

func (f *fakeExportStore) ListCardsByBoard(ctx context.Context, boardID string) ([]store.Card, error) {
	return f.cards, nil
}

func (f *fakeExportStore) ListAgreements(ctx context.Context, boardID string) ([]store.Agreement, error) {
	return f.agreements, nil
}

func (f *fakeExportStore) HealthSummaries(ctx context.Context, boardID string) ([]store.HealthSummary, error) {
	return f.health, nil
}

func TestBuildReportDataGroupsCardsByColumn(t *testing.T) {
	svc := NewService(&fakeExportStore{
		board:  store.Board{ID: "brd_1", SeriesID: "srs_1", Name: "Sprint 42", Status: "active"},
		series: store.Series{ID: "srs_1", Name: "Platform Team"},
		columns: []store.Column{
			{ID: "col_1", Title: "Went well"},
			{ID: "col_2", Title: "Improve"},
		},
		cards: []store.Card{
			{ID: "crd_1", ColumnID: "col_2", Content: "Too many meetings", AuthorName: "Avery"},
			{ID: "crd_2", ColumnID: "col_1", Content: "Shipped on time", AuthorName: "Blair", VoteCount: 2},
		},
	})

	data, boardName, err := svc.buildReportData(context.Background(), "brd_1")
	if err != nil {
		t.Fatalf("buildReportData failed: %v", err)
	}
	if boardName != "Sprint 42" {
		t.Errorf("expected board name Sprint 42, got %s", boardName)
	}
	if len(data.Columns) != 2 {
		t.Fatalf("expected 2 columns, got %d", len(data.Columns))
	}
	if len(data.Columns[0].Cards) != 1 || data.Columns[0].Cards[0].Content != "Shipped on time" {
		t.Errorf("column 1 should hold its own card, got %+v", data.Columns[0].Cards)
	}
	if len(data.Columns[1].Cards) != 1 || data.Columns[1].Cards[0].Content != "Too many meetings" {
		t.Errorf("column 2 should hold its own card, got %+v", data.Columns[1].Cards)
	}
}
