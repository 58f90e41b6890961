package live

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"teambeat/api/internal/scene"
	"teambeat/api/internal/store"
)

type fakeBroadcastStore struct {
	listCardsByBoard     func(ctx context.Context, boardID string) ([]store.Card, error)
	voteCountsByCard     func(ctx context.Context, boardID string) (map[string]int, error)
	countUserVotesOnCard func(ctx context.Context, cardID, userID string) (int, error)
	checkAllocation      func(ctx context.Context, boardID, userID string) (store.VoteAllocation, error)
	hiddenColumnIDs      func(ctx context.Context, sceneID string) (map[string]bool, error)
	listCommentsByCard   func(ctx context.Context, cardID string) ([]store.Comment, error)
	listAgreements       func(ctx context.Context, boardID string) ([]store.Agreement, error)
}

func (f *fakeBroadcastStore) ListCardsByBoard(ctx context.Context, boardID string) ([]store.Card, error) {
	return f.listCardsByBoard(ctx, boardID)
}

func (f *fakeBroadcastStore) VoteCountsByCard(ctx context.Context, boardID string) (map[string]int, error) {
	return f.voteCountsByCard(ctx, boardID)
}

func (f *fakeBroadcastStore) CountUserVotesOnCard(ctx context.Context, cardID, userID string) (int, error) {
	return f.countUserVotesOnCard(ctx, cardID, userID)
}

func (f *fakeBroadcastStore) CheckVotingAllocation(ctx context.Context, boardID, userID string) (store.VoteAllocation, error) {
	return f.checkAllocation(ctx, boardID, userID)
}

func (f *fakeBroadcastStore) HiddenColumnIDs(ctx context.Context, sceneID string) (map[string]bool, error) {
	return f.hiddenColumnIDs(ctx, sceneID)
}

func (f *fakeBroadcastStore) ListCommentsByCard(ctx context.Context, cardID string) ([]store.Comment, error) {
	return f.listCommentsByCard(ctx, cardID)
}

func (f *fakeBroadcastStore) ListAgreements(ctx context.Context, boardID string) ([]store.Agreement, error) {
	return f.listAgreements(ctx, boardID)
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func decodeAll(t *testing.T, conn *Conn) []map[string]any {
	t.Helper()
	var events []map[string]any
	for _, raw := range drain(conn) {
		event := map[string]any{}
		if err := json.Unmarshal(raw, &event); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		events = append(events, event)
	}
	return events
}

func TestMarshalEmitsFlatEnvelopeWithMillisTimestamp(t *testing.T) {
	before := time.Now().UnixMilli()
	raw, err := Marshal(EventCardCreated, "brd_1", map[string]any{"card_id": "crd_1"})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	after := time.Now().UnixMilli()

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	event := map[string]any{}
	if err := decoder.Decode(&event); err != nil {
		t.Fatalf("decode event: %v", err)
	}

	if event["type"] != EventCardCreated || event["board_id"] != "brd_1" {
		t.Errorf("unexpected tags: %v", event)
	}
	// Type-specific fields sit next to the tags, not under a nested key.
	if event["card_id"] != "crd_1" {
		t.Errorf("expected inline card_id, got %v", event)
	}
	number, ok := event["timestamp"].(json.Number)
	if !ok {
		t.Fatalf("timestamp must be a JSON number, got %T (%v)", event["timestamp"], event["timestamp"])
	}
	millis, err := number.Int64()
	if err != nil {
		t.Fatalf("timestamp must be integral millis: %v", err)
	}
	if millis < before || millis > after {
		t.Errorf("timestamp %d outside [%d, %d]", millis, before, after)
	}
}

func TestMarshalReservedTagsWinOverData(t *testing.T) {
	raw, err := Marshal(EventBoardUpdated, "brd_1", map[string]any{"type": "spoofed", "name": "Sprint 9"})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	event := map[string]any{}
	if err := json.Unmarshal(raw, &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if event["type"] != EventBoardUpdated {
		t.Errorf("payload data must not override the type tag, got %v", event["type"])
	}
	if event["name"] != "Sprint 9" {
		t.Errorf("expected inline name field, got %v", event)
	}
}

func TestVoteChangedRevealedBroadcastsAggregates(t *testing.T) {
	registry := NewRegistry()
	actor := registry.Join("brd_1", "usr_a")
	peer := registry.Join("brd_1", "usr_b")

	st := &fakeBroadcastStore{
		voteCountsByCard: func(ctx context.Context, boardID string) (map[string]int, error) {
			return map[string]int{"crd_1": 4, "crd_2": 1}, nil
		},
	}
	b := NewBroadcaster(registry, st, quietLogger())

	sc := scene.Scene{ID: "scn_1", Mode: scene.ModeReview, Flags: []scene.Capability{scene.ShowVotes}}
	if err := b.VoteChanged(context.Background(), "brd_1", "crd_1", "usr_a", sc); err != nil {
		t.Fatalf("VoteChanged failed: %v", err)
	}

	for name, conn := range map[string]*Conn{"actor": actor, "peer": peer} {
		envelopes := decodeAll(t, conn)
		if len(envelopes) != 2 {
			t.Fatalf("%s: expected vote_changed and voting_stats_updated, got %d events", name, len(envelopes))
		}
		if envelopes[0]["type"] != EventVoteChanged || envelopes[1]["type"] != EventVotingStatsUpdated {
			t.Errorf("%s: unexpected event types %v, %v", name, envelopes[0]["type"], envelopes[1]["type"])
		}
		if got := envelopes[0]["vote_count"].(float64); got != 4 {
			t.Errorf("%s: expected aggregate count 4, got %v", name, got)
		}
	}
}

func TestVoteChangedBlindVotingOnlyReachesActor(t *testing.T) {
	registry := NewRegistry()
	actor := registry.Join("brd_1", "usr_a")
	peer := registry.Join("brd_1", "usr_b")

	st := &fakeBroadcastStore{
		countUserVotesOnCard: func(ctx context.Context, cardID, userID string) (int, error) {
			return 2, nil
		},
		checkAllocation: func(ctx context.Context, boardID, userID string) (store.VoteAllocation, error) {
			return store.VoteAllocation{CurrentVotes: 2, RemainingVotes: 1, CanVote: true}, nil
		},
	}
	b := NewBroadcaster(registry, st, quietLogger())

	sc := scene.Scene{ID: "scn_1", Mode: scene.ModeColumns, Flags: []scene.Capability{scene.AllowVoting}}
	if err := b.VoteChanged(context.Background(), "brd_1", "crd_1", "usr_a", sc); err != nil {
		t.Fatalf("VoteChanged failed: %v", err)
	}

	actorEvents := decodeAll(t, actor)
	if len(actorEvents) != 1 || actorEvents[0]["type"] != EventVoteChanged {
		t.Fatalf("actor should receive one vote_changed, got %+v", actorEvents)
	}
	if got := actorEvents[0]["your_votes"].(float64); got != 2 {
		t.Errorf("expected your_votes 2, got %v", got)
	}
	if len(decodeAll(t, peer)) != 0 {
		t.Error("peers must not learn vote counts while votes are hidden")
	}
}

func TestVoteChangedHiddenStaysSilent(t *testing.T) {
	registry := NewRegistry()
	actor := registry.Join("brd_1", "usr_a")

	b := NewBroadcaster(registry, &fakeBroadcastStore{}, quietLogger())

	sc := scene.Scene{ID: "scn_1", Mode: scene.ModePresent}
	if err := b.VoteChanged(context.Background(), "brd_1", "crd_1", "usr_a", sc); err != nil {
		t.Fatalf("VoteChanged failed: %v", err)
	}
	if len(drain(actor)) != 0 {
		t.Error("no vote events expected when the scene hides votes")
	}
}

func TestVoteChangedPropagatesStoreErrors(t *testing.T) {
	registry := NewRegistry()
	registry.Join("brd_1", "usr_a")

	wantErr := errors.New("boom")
	st := &fakeBroadcastStore{
		voteCountsByCard: func(ctx context.Context, boardID string) (map[string]int, error) {
			return nil, wantErr
		},
	}
	b := NewBroadcaster(registry, st, quietLogger())

	sc := scene.Scene{ID: "scn_1", Flags: []scene.Capability{scene.ShowVotes}}
	if err := b.VoteChanged(context.Background(), "brd_1", "crd_1", "usr_a", sc); !errors.Is(err, wantErr) {
		t.Errorf("expected store error to propagate, got %v", err)
	}
}

func TestSceneChangedPresentBuildsPerUserViews(t *testing.T) {
	registry := NewRegistry()
	a := registry.Join("brd_1", "usr_a")
	b2 := registry.Join("brd_1", "usr_b")

	selected := "crd_2"
	st := &fakeBroadcastStore{
		listCardsByBoard: func(ctx context.Context, boardID string) ([]store.Card, error) {
			return []store.Card{
				{ID: "crd_1", ColumnID: "col_hidden", VoteCount: 9},
				{ID: "crd_2", ColumnID: "col_vis", VoteCount: 3},
				{ID: "crd_3", ColumnID: "col_vis", VoteCount: 5},
			}, nil
		},
		hiddenColumnIDs: func(ctx context.Context, sceneID string) (map[string]bool, error) {
			return map[string]bool{"col_hidden": true}, nil
		},
		listCommentsByCard: func(ctx context.Context, cardID string) ([]store.Comment, error) {
			return []store.Comment{{ID: "cmt_1", CardID: cardID}}, nil
		},
		listAgreements: func(ctx context.Context, boardID string) ([]store.Agreement, error) {
			return []store.Agreement{{ID: "agr_1", BoardID: boardID}}, nil
		},
	}
	broadcaster := NewBroadcaster(registry, st, quietLogger())

	board := store.Board{ID: "brd_1", SelectedCardID: &selected, NotesLocked: true}
	sc := scene.Scene{ID: "scn_1", Mode: scene.ModePresent}
	broadcaster.SceneChanged(context.Background(), board, sc)

	for name, conn := range map[string]*Conn{"usr_a": a, "usr_b": b2} {
		envelopes := decodeAll(t, conn)
		if len(envelopes) != 1 || envelopes[0]["type"] != EventSceneChanged {
			t.Fatalf("%s: expected one scene_changed, got %+v", name, envelopes)
		}
		view, ok := envelopes[0]["presentation"].(map[string]any)
		if !ok {
			t.Fatalf("%s: missing presentation view", name)
		}
		cards := view["cards"].([]any)
		if len(cards) != 2 {
			t.Errorf("%s: hidden-column card should be filtered, got %d cards", name, len(cards))
		}
		first := cards[0].(map[string]any)
		if first["id"] != "crd_3" {
			t.Errorf("%s: cards should be ordered by vote count, got %v first", name, first["id"])
		}
		if view["selected_card_id"] != "crd_2" {
			t.Errorf("%s: expected selected card crd_2, got %v", name, view["selected_card_id"])
		}
		if view["notes_locked"] != true {
			t.Errorf("%s: expected notes_locked true", name)
		}
	}
}

func TestSceneChangedPresentFallsBackPerUser(t *testing.T) {
	registry := NewRegistry()
	conn := registry.Join("brd_1", "usr_a")

	st := &fakeBroadcastStore{
		listCardsByBoard: func(ctx context.Context, boardID string) ([]store.Card, error) {
			return nil, errors.New("db down")
		},
	}
	broadcaster := NewBroadcaster(registry, st, quietLogger())

	sc := scene.Scene{ID: "scn_1", Mode: scene.ModePresent}
	broadcaster.SceneChanged(context.Background(), store.Board{ID: "brd_1"}, sc)

	envelopes := decodeAll(t, conn)
	if len(envelopes) != 1 || envelopes[0]["type"] != EventSceneChanged {
		t.Fatalf("expected fallback scene_changed, got %+v", envelopes)
	}
	if _, present := envelopes[0]["presentation"]; present {
		t.Error("fallback payload must not carry a presentation view")
	}
	if envelopes[0]["scene_id"] != "scn_1" {
		t.Error("fallback payload should still name the scene")
	}
}

func TestSceneChangedOtherModesShareOnePayload(t *testing.T) {
	registry := NewRegistry()
	conn := registry.Join("brd_1", "usr_a")

	st := &fakeBroadcastStore{
		listCardsByBoard: func(ctx context.Context, boardID string) ([]store.Card, error) {
			return []store.Card{{ID: "crd_1"}, {ID: "crd_2"}}, nil
		},
	}
	broadcaster := NewBroadcaster(registry, st, quietLogger())

	sc := scene.Scene{ID: "scn_2", Mode: scene.ModeColumns}
	broadcaster.SceneChanged(context.Background(), store.Board{ID: "brd_1"}, sc)

	envelopes := decodeAll(t, conn)
	if len(envelopes) != 1 || envelopes[0]["type"] != EventSceneChanged {
		t.Fatalf("expected one scene_changed, got %+v", envelopes)
	}
	cards, ok := envelopes[0]["cards"].([]any)
	if !ok || len(cards) != 2 {
		t.Errorf("shared payload should carry all cards, got %v", envelopes[0]["cards"])
	}
}
