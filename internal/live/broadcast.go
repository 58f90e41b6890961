package live

import (
	"context"
	"fmt"
	"log"
	"sort"

	"teambeat/api/internal/scene"
	"teambeat/api/internal/store"
)

// BroadcastStore is the read surface the composer needs to enrich
// events with board state.
type BroadcastStore interface {
	ListCardsByBoard(ctx context.Context, boardID string) ([]store.Card, error)
	VoteCountsByCard(ctx context.Context, boardID string) (map[string]int, error)
	CountUserVotesOnCard(ctx context.Context, cardID, userID string) (int, error)
	CheckVotingAllocation(ctx context.Context, boardID, userID string) (store.VoteAllocation, error)
	HiddenColumnIDs(ctx context.Context, sceneID string) (map[string]bool, error)
	ListCommentsByCard(ctx context.Context, cardID string) ([]store.Comment, error)
	ListAgreements(ctx context.Context, boardID string) ([]store.Agreement, error)
}

// Broadcaster composes event payloads and pushes them through the
// registry. Vote payload failures surface to the caller; enrichment
// failures degrade to a minimal payload instead of failing the request.
type Broadcaster struct {
	registry *Registry
	store    BroadcastStore
	logger   *log.Logger
}

func NewBroadcaster(registry *Registry, st BroadcastStore, logger *log.Logger) *Broadcaster {
	if logger == nil {
		logger = log.Default()
	}
	return &Broadcaster{registry: registry, store: st, logger: logger}
}

// Registry exposes the underlying connection registry for the SSE
// handler and presence bookkeeping.
func (b *Broadcaster) Registry() *Registry {
	return b.registry
}

// Emit sends a board-wide event. An empty excludeUserID reaches everyone.
func (b *Broadcaster) Emit(boardID, eventType string, data map[string]any, excludeUserID string) {
	payload, err := Marshal(eventType, boardID, data)
	if err != nil {
		b.logger.Printf("marshal %s event: %v", eventType, err)
		return
	}
	b.registry.BroadcastToBoard(boardID, payload, excludeUserID)
}

// EmitToUser sends an event to one user's connections on the board.
func (b *Broadcaster) EmitToUser(boardID, userID, eventType string, data map[string]any) {
	payload, err := Marshal(eventType, boardID, data)
	if err != nil {
		b.logger.Printf("marshal %s event: %v", eventType, err)
		return
	}
	b.registry.BroadcastToUser(boardID, userID, payload)
}

// VoteChanged routes vote updates according to the scene's visibility:
// revealed scenes broadcast aggregate counts to the whole board, blind
// voting scenes tell only the actor their own tallies, and everything
// else stays silent. Store errors propagate so the vote request fails
// rather than leaving clients with stale counts.
func (b *Broadcaster) VoteChanged(ctx context.Context, boardID, cardID, actorUserID string, sc scene.Scene) error {
	switch scene.VoteVisibility(sc) {
	case scene.VotesRevealed:
		counts, err := b.store.VoteCountsByCard(ctx, boardID)
		if err != nil {
			return fmt.Errorf("vote counts for broadcast: %w", err)
		}
		b.Emit(boardID, EventVoteChanged, map[string]any{
			"card_id":    cardID,
			"vote_count": counts[cardID],
		}, "")
		b.Emit(boardID, EventVotingStatsUpdated, map[string]any{
			"counts": counts,
		}, "")
	case scene.VotesOwnOnly:
		own, err := b.store.CountUserVotesOnCard(ctx, cardID, actorUserID)
		if err != nil {
			return fmt.Errorf("own vote count for broadcast: %w", err)
		}
		allocation, err := b.store.CheckVotingAllocation(ctx, boardID, actorUserID)
		if err != nil {
			return fmt.Errorf("allocation for broadcast: %w", err)
		}
		b.EmitToUser(boardID, actorUserID, EventVoteChanged, map[string]any{
			"card_id":         cardID,
			"your_votes":      own,
			"remaining_votes": allocation.RemainingVotes,
		})
	case scene.VotesHidden:
	}
	return nil
}

// SceneChanged announces a scene switch. Entering present mode builds a
// per-user presentation view; a failed build for one user falls back to
// the minimal payload for that user only. Other modes get one shared
// payload carrying the full card list.
func (b *Broadcaster) SceneChanged(ctx context.Context, board store.Board, sc scene.Scene) {
	base := map[string]any{
		"scene_id":   sc.ID,
		"scene_mode": string(sc.Mode),
	}

	if sc.Mode == scene.ModePresent {
		for _, userID := range b.registry.ConnectedUsers(board.ID) {
			view, err := b.presentationView(ctx, board, sc)
			if err != nil {
				b.logger.Printf("presentation view for %s on %s: %v", userID, board.ID, err)
				b.EmitToUser(board.ID, userID, EventSceneChanged, base)
				continue
			}
			data := map[string]any{
				"scene_id":     sc.ID,
				"scene_mode":   string(sc.Mode),
				"presentation": view,
			}
			b.EmitToUser(board.ID, userID, EventSceneChanged, data)
		}
		return
	}

	cards, err := b.store.ListCardsByBoard(ctx, board.ID)
	if err != nil {
		b.logger.Printf("cards for scene broadcast on %s: %v", board.ID, err)
		b.Emit(board.ID, EventSceneChanged, base, "")
		return
	}
	base["cards"] = cardsJSON(cards)
	b.Emit(board.ID, EventSceneChanged, base, "")
}

// presentationView assembles the review material for present mode:
// visible cards ordered by vote count, the selected card with its
// discussion, and the notes-lock state.
func (b *Broadcaster) presentationView(ctx context.Context, board store.Board, sc scene.Scene) (map[string]any, error) {
	cards, err := b.store.ListCardsByBoard(ctx, board.ID)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	hidden, err := b.store.HiddenColumnIDs(ctx, sc.ID)
	if err != nil {
		return nil, fmt.Errorf("hidden columns: %w", err)
	}

	visible := make([]store.Card, 0, len(cards))
	for _, card := range cards {
		if hidden[card.ColumnID] {
			continue
		}
		visible = append(visible, card)
	}
	sort.SliceStable(visible, func(i, j int) bool {
		return visible[i].VoteCount > visible[j].VoteCount
	})

	view := map[string]any{
		"cards":        cardsJSON(visible),
		"notes_locked": board.NotesLocked,
	}
	if board.SelectedCardID != nil {
		view["selected_card_id"] = *board.SelectedCardID
		comments, err := b.store.ListCommentsByCard(ctx, *board.SelectedCardID)
		if err != nil {
			return nil, fmt.Errorf("selected card comments: %w", err)
		}
		items := make([]map[string]any, 0, len(comments))
		for _, comment := range comments {
			items = append(items, CommentJSON(comment))
		}
		view["comments"] = items
	}
	agreements, err := b.store.ListAgreements(ctx, board.ID)
	if err != nil {
		return nil, fmt.Errorf("agreements: %w", err)
	}
	items := make([]map[string]any, 0, len(agreements))
	for _, agreement := range agreements {
		items = append(items, AgreementJSON(agreement))
	}
	view["agreements"] = items
	return view, nil
}

// CardJSON is the wire shape of a card, shared by broadcasts and route
// responses so both sides stay in sync.
func CardJSON(card store.Card) map[string]any {
	return map[string]any{
		"id":            card.ID,
		"board_id":      card.BoardID,
		"column_id":     card.ColumnID,
		"user_id":       card.UserID,
		"content":       card.Content,
		"group_id":      card.GroupID,
		"is_group_lead": card.IsGroupLead,
		"author_name":   card.AuthorName,
		"vote_count":    card.VoteCount,
		"created_at":    card.CreatedAt,
		"updated_at":    card.UpdatedAt,
	}
}

func cardsJSON(cards []store.Card) []map[string]any {
	items := make([]map[string]any, 0, len(cards))
	for _, card := range cards {
		items = append(items, CardJSON(card))
	}
	return items
}

func CommentJSON(comment store.Comment) map[string]any {
	return map[string]any{
		"id":           comment.ID,
		"card_id":      comment.CardID,
		"user_id":      comment.UserID,
		"content":      comment.Content,
		"is_reaction":  comment.IsReaction,
		"is_agreement": comment.IsAgreement,
		"author_name":  comment.AuthorName,
		"created_at":   comment.CreatedAt,
	}
}

func AgreementJSON(agreement store.Agreement) map[string]any {
	return map[string]any{
		"id":                agreement.ID,
		"board_id":          agreement.BoardID,
		"content":           agreement.Content,
		"user_id":           agreement.UserID,
		"source_comment_id": agreement.SourceCommentID,
		"completed_at":      agreement.CompletedAt,
		"author_name":       agreement.AuthorName,
		"created_at":        agreement.CreatedAt,
		"updated_at":        agreement.UpdatedAt,
	}
}
