package app

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"teambeat/api/internal/config"
	"teambeat/api/internal/live"
	"teambeat/api/internal/presence"
	"teambeat/api/internal/scene"
	"teambeat/api/internal/store"
)

type fakeStore struct {
	getBoardFn               func(context.Context, string) (store.Board, error)
	getSeriesRoleFn          func(context.Context, string, string) (string, error)
	getSceneFn               func(context.Context, string) (store.Scene, error)
	getCardFn                func(context.Context, string) (store.Card, error)
	getColumnFn              func(context.Context, string) (store.Column, error)
	createCardFn             func(context.Context, store.Card) error
	deleteCardFn             func(context.Context, string) error
	groupCardsFn             func(context.Context, []string) (string, error)
	checkVotingAllocationFn  func(context.Context, string, string) (store.VoteAllocation, error)
	addVoteFn                func(context.Context, store.Vote) error
	removeLatestVoteFn       func(context.Context, string, string) (bool, error)
	countUserVotesOnCardFn   func(context.Context, string, string) (int, error)
	voteCountsByCardFn       func(context.Context, string) (map[string]int, error)
	getCommentFn             func(context.Context, string) (store.Comment, error)
	markCommentAgreementFn   func(context.Context, string) error
	createAgreementFn        func(context.Context, store.Agreement) error
	getHealthQuestionFn      func(context.Context, string) (store.HealthQuestion, error)
	upsertHealthResponseFn   func(context.Context, store.HealthResponse) error
	createSeriesFn           func(context.Context, store.Series) error
	addSeriesMemberFn        func(context.Context, string, string, string) error
	removeSeriesMemberFn     func(context.Context, string, string) error
	updateBoardStatusFn      func(context.Context, string, string) error
	listCardsByBoardFn       func(context.Context, string) ([]store.Card, error)
	listColumnsFn            func(context.Context, string) ([]store.Column, error)
	listScenesFn             func(context.Context, string) ([]store.Scene, error)
	listAgreementsFn         func(context.Context, string) ([]store.Agreement, error)
	hiddenColumnIDsFn        func(context.Context, string) (map[string]bool, error)
	setupBoardTemplateFn     func(context.Context, string, []store.Column, []store.Scene) error
	pingFn                   func(context.Context) error
	createUserFn             func(context.Context, store.User) error
	getUserByEmailFn         func(context.Context, string) (store.User, error)
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}
func (f *fakeStore) WithTx(ctx context.Context, fn func(store.Querier) error) error {
	return fn(nil)
}

func (f *fakeStore) CreateUser(ctx context.Context, user store.User) error {
	if f.createUserFn != nil {
		return f.createUserFn(ctx, user)
	}
	return nil
}
func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if f.getUserByEmailFn != nil {
		return f.getUserByEmailFn(ctx, email)
	}
	return store.User{}, sql.ErrNoRows
}
func (f *fakeStore) GetUserByID(context.Context, string) (store.User, error) {
	return store.User{}, sql.ErrNoRows
}
func (f *fakeStore) UpdateUserPassword(context.Context, string, string) error { return nil }
func (f *fakeStore) UpdateUserName(context.Context, string, string) error     { return nil }
func (f *fakeStore) EnsureUserByEmail(_ context.Context, email, displayName string) (store.User, error) {
	return store.User{ID: "usr-invited", Email: email, DisplayName: displayName}, nil
}

func (f *fakeStore) CreateSeries(ctx context.Context, series store.Series) error {
	if f.createSeriesFn != nil {
		return f.createSeriesFn(ctx, series)
	}
	return nil
}
func (f *fakeStore) GetSeries(_ context.Context, seriesID string) (store.Series, error) {
	return store.Series{ID: seriesID, Name: "Sprint retros"}, nil
}
func (f *fakeStore) ListSeriesForUser(context.Context, string) ([]store.Series, error) {
	return nil, nil
}
func (f *fakeStore) UpdateSeriesName(context.Context, string, string) error { return nil }
func (f *fakeStore) DeleteSeries(context.Context, string) error             { return nil }
func (f *fakeStore) AddSeriesMember(ctx context.Context, seriesID, userID, role string) error {
	if f.addSeriesMemberFn != nil {
		return f.addSeriesMemberFn(ctx, seriesID, userID, role)
	}
	return nil
}
func (f *fakeStore) RemoveSeriesMember(ctx context.Context, seriesID, userID string) error {
	if f.removeSeriesMemberFn != nil {
		return f.removeSeriesMemberFn(ctx, seriesID, userID)
	}
	return nil
}
func (f *fakeStore) GetSeriesRole(ctx context.Context, seriesID, userID string) (string, error) {
	if f.getSeriesRoleFn != nil {
		return f.getSeriesRoleFn(ctx, seriesID, userID)
	}
	return "", nil
}
func (f *fakeStore) ListSeriesMembers(context.Context, string) ([]store.SeriesMember, error) {
	return nil, nil
}

func (f *fakeStore) CreateBoard(context.Context, store.Board) error { return nil }
func (f *fakeStore) GetBoard(ctx context.Context, boardID string) (store.Board, error) {
	if f.getBoardFn != nil {
		return f.getBoardFn(ctx, boardID)
	}
	return store.Board{}, sql.ErrNoRows
}
func (f *fakeStore) ListBoardsBySeries(context.Context, string) ([]store.Board, error) {
	return nil, nil
}
func (f *fakeStore) UpdateBoard(context.Context, string, string, int, bool) error { return nil }
func (f *fakeStore) UpdateBoardStatus(ctx context.Context, boardID, status string) error {
	if f.updateBoardStatusFn != nil {
		return f.updateBoardStatusFn(ctx, boardID, status)
	}
	return nil
}
func (f *fakeStore) SetCurrentScene(context.Context, string, string) error        { return nil }
func (f *fakeStore) SetBoardTimer(context.Context, string, *time.Time, int) error { return nil }
func (f *fakeStore) SetPresentation(context.Context, string, *string, bool) error { return nil }
func (f *fakeStore) DeleteBoard(context.Context, string) error                    { return nil }
func (f *fakeStore) SetupBoardTemplate(ctx context.Context, boardID string, columns []store.Column, scenes []store.Scene) error {
	if f.setupBoardTemplateFn != nil {
		return f.setupBoardTemplateFn(ctx, boardID, columns, scenes)
	}
	return nil
}

func (f *fakeStore) CreateColumn(context.Context, store.Column) error { return nil }
func (f *fakeStore) GetColumn(ctx context.Context, columnID string) (store.Column, error) {
	if f.getColumnFn != nil {
		return f.getColumnFn(ctx, columnID)
	}
	return store.Column{}, sql.ErrNoRows
}
func (f *fakeStore) ListColumns(ctx context.Context, boardID string) ([]store.Column, error) {
	if f.listColumnsFn != nil {
		return f.listColumnsFn(ctx, boardID)
	}
	return nil, nil
}
func (f *fakeStore) UpdateColumn(context.Context, string, string, string) error { return nil }
func (f *fakeStore) DeleteColumn(context.Context, string) error                 { return nil }
func (f *fakeStore) ReorderColumns(context.Context, string, []string) error     { return nil }
func (f *fakeStore) SetSceneColumnVisibility(context.Context, string, string, bool) error {
	return nil
}
func (f *fakeStore) HiddenColumnIDs(ctx context.Context, sceneID string) (map[string]bool, error) {
	if f.hiddenColumnIDsFn != nil {
		return f.hiddenColumnIDsFn(ctx, sceneID)
	}
	return map[string]bool{}, nil
}

func (f *fakeStore) CreateScene(context.Context, store.Scene) error { return nil }
func (f *fakeStore) GetScene(ctx context.Context, sceneID string) (store.Scene, error) {
	if f.getSceneFn != nil {
		return f.getSceneFn(ctx, sceneID)
	}
	return store.Scene{}, sql.ErrNoRows
}
func (f *fakeStore) ListScenes(ctx context.Context, boardID string) ([]store.Scene, error) {
	if f.listScenesFn != nil {
		return f.listScenesFn(ctx, boardID)
	}
	return nil, nil
}
func (f *fakeStore) UpdateScene(context.Context, string, string, string, int) error { return nil }
func (f *fakeStore) DeleteScene(context.Context, string) error                      { return nil }
func (f *fakeStore) SetSceneFlags(context.Context, string, []string) error          { return nil }

func (f *fakeStore) CreateCard(ctx context.Context, card store.Card) error {
	if f.createCardFn != nil {
		return f.createCardFn(ctx, card)
	}
	return nil
}
func (f *fakeStore) GetCard(ctx context.Context, cardID string) (store.Card, error) {
	if f.getCardFn != nil {
		return f.getCardFn(ctx, cardID)
	}
	return store.Card{}, sql.ErrNoRows
}
func (f *fakeStore) ListCardsByBoard(ctx context.Context, boardID string) ([]store.Card, error) {
	if f.listCardsByBoardFn != nil {
		return f.listCardsByBoardFn(ctx, boardID)
	}
	return nil, nil
}
func (f *fakeStore) UpdateCardContent(context.Context, string, string) error { return nil }
func (f *fakeStore) MoveCard(context.Context, string, string) error          { return nil }
func (f *fakeStore) DeleteCard(ctx context.Context, cardID string) error {
	if f.deleteCardFn != nil {
		return f.deleteCardFn(ctx, cardID)
	}
	return nil
}
func (f *fakeStore) GroupCards(ctx context.Context, cardIDs []string) (string, error) {
	if f.groupCardsFn != nil {
		return f.groupCardsFn(ctx, cardIDs)
	}
	return "grp-1", nil
}
func (f *fakeStore) UngroupCard(context.Context, string) error { return nil }

func (f *fakeStore) AddVote(ctx context.Context, vote store.Vote) error {
	if f.addVoteFn != nil {
		return f.addVoteFn(ctx, vote)
	}
	return nil
}
func (f *fakeStore) RemoveLatestVote(ctx context.Context, cardID, userID string) (bool, error) {
	if f.removeLatestVoteFn != nil {
		return f.removeLatestVoteFn(ctx, cardID, userID)
	}
	return false, nil
}
func (f *fakeStore) ClearVotes(context.Context, string) error { return nil }
func (f *fakeStore) CountUserVotesOnBoard(context.Context, string, string) (int, error) {
	return 0, nil
}
func (f *fakeStore) CountUserVotesOnCard(ctx context.Context, cardID, userID string) (int, error) {
	if f.countUserVotesOnCardFn != nil {
		return f.countUserVotesOnCardFn(ctx, cardID, userID)
	}
	return 0, nil
}
func (f *fakeStore) VoteCountsByCard(ctx context.Context, boardID string) (map[string]int, error) {
	if f.voteCountsByCardFn != nil {
		return f.voteCountsByCardFn(ctx, boardID)
	}
	return map[string]int{}, nil
}
func (f *fakeStore) CheckVotingAllocation(ctx context.Context, boardID, userID string) (store.VoteAllocation, error) {
	if f.checkVotingAllocationFn != nil {
		return f.checkVotingAllocationFn(ctx, boardID, userID)
	}
	return store.VoteAllocation{RemainingVotes: 3, CanVote: true}, nil
}

func (f *fakeStore) CreateComment(context.Context, store.Comment) error { return nil }
func (f *fakeStore) GetComment(ctx context.Context, commentID string) (store.Comment, error) {
	if f.getCommentFn != nil {
		return f.getCommentFn(ctx, commentID)
	}
	return store.Comment{}, sql.ErrNoRows
}
func (f *fakeStore) ListCommentsByCard(context.Context, string) ([]store.Comment, error) {
	return nil, nil
}
func (f *fakeStore) DeleteComment(context.Context, string) error { return nil }
func (f *fakeStore) ToggleReaction(context.Context, string, string, string, string) (bool, error) {
	return true, nil
}
func (f *fakeStore) MarkCommentAgreement(ctx context.Context, commentID string) error {
	if f.markCommentAgreementFn != nil {
		return f.markCommentAgreementFn(ctx, commentID)
	}
	return nil
}

func (f *fakeStore) CreateAgreement(ctx context.Context, agreement store.Agreement) error {
	if f.createAgreementFn != nil {
		return f.createAgreementFn(ctx, agreement)
	}
	return nil
}
func (f *fakeStore) GetAgreement(context.Context, string) (store.Agreement, error) {
	return store.Agreement{}, sql.ErrNoRows
}
func (f *fakeStore) ListAgreements(ctx context.Context, boardID string) ([]store.Agreement, error) {
	if f.listAgreementsFn != nil {
		return f.listAgreementsFn(ctx, boardID)
	}
	return nil, nil
}
func (f *fakeStore) UpdateAgreement(context.Context, string, string, bool) error { return nil }
func (f *fakeStore) DeleteAgreement(context.Context, string) error               { return nil }

func (f *fakeStore) CreateHealthQuestion(context.Context, store.HealthQuestion) error { return nil }
func (f *fakeStore) GetHealthQuestion(ctx context.Context, questionID string) (store.HealthQuestion, error) {
	if f.getHealthQuestionFn != nil {
		return f.getHealthQuestionFn(ctx, questionID)
	}
	return store.HealthQuestion{}, sql.ErrNoRows
}
func (f *fakeStore) ListHealthQuestions(context.Context, string) ([]store.HealthQuestion, error) {
	return nil, nil
}
func (f *fakeStore) DeleteHealthQuestion(context.Context, string) error { return nil }
func (f *fakeStore) UpsertHealthResponse(ctx context.Context, response store.HealthResponse) error {
	if f.upsertHealthResponseFn != nil {
		return f.upsertHealthResponseFn(ctx, response)
	}
	return nil
}
func (f *fakeStore) HealthSummaries(context.Context, string) ([]store.HealthSummary, error) {
	return nil, nil
}

func newTestService(fs *fakeStore) *Service {
	return New(config.Config{}, fs, Deps{
		Live:     live.NewBroadcaster(live.NewRegistry(), fs, nil),
		Presence: presence.NewTracker(time.Minute),
	})
}

// boardWorld wires a fakeStore around one board with the given scene
// flags and the caller's series role.
func boardWorld(fs *fakeStore, status, role string, flags []string) {
	sceneID := "scn-1"
	fs.getBoardFn = func(_ context.Context, boardID string) (store.Board, error) {
		return store.Board{
			ID:               boardID,
			SeriesID:         "srs-1",
			Name:             "Sprint 12 retro",
			Status:           status,
			CurrentSceneID:   &sceneID,
			VotingAllocation: 3,
		}, nil
	}
	fs.getSeriesRoleFn = func(context.Context, string, string) (string, error) {
		return role, nil
	}
	fs.getSceneFn = func(_ context.Context, id string) (store.Scene, error) {
		return store.Scene{ID: id, BoardID: "brd-1", Title: "Scene", Mode: "columns", Flags: flags}, nil
	}
}

func memberSession() Session {
	return Session{UserID: "usr-1", Email: "avery@example.com", DisplayName: "Avery"}
}

func TestCreateCardRequiresSceneCapability(t *testing.T) {
	fs := &fakeStore{}
	boardWorld(fs, "active", "member", []string{string(scene.AllowVoting)})
	svc := newTestService(fs)

	_, err := svc.CreateCard(context.Background(), "brd-1", "col-1", "Improve standups", memberSession())
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Status != 403 || domainErr.Code != "FORBIDDEN" {
		t.Fatalf("expected 403 FORBIDDEN, got %d %s", domainErr.Status, domainErr.Code)
	}
}

func TestCreateCardFacilitatorStillGatedByScene(t *testing.T) {
	fs := &fakeStore{}
	boardWorld(fs, "active", "facilitator", []string{string(scene.AllowVoting)})
	svc := newTestService(fs)

	if _, err := svc.CreateCard(context.Background(), "brd-1", "col-1", "Late card", memberSession()); err == nil {
		t.Fatalf("expected scene gate to apply to facilitators")
	}
}

func TestCreateCardRejectsColumnFromAnotherBoard(t *testing.T) {
	fs := &fakeStore{}
	boardWorld(fs, "active", "member", []string{string(scene.AllowAddCards)})
	fs.getColumnFn = func(_ context.Context, columnID string) (store.Column, error) {
		return store.Column{ID: columnID, BoardID: "brd-other"}, nil
	}
	svc := newTestService(fs)

	_, err := svc.CreateCard(context.Background(), "brd-1", "col-1", "Misplaced", memberSession())
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestCreateCardStampsAuthor(t *testing.T) {
	fs := &fakeStore{}
	boardWorld(fs, "active", "member", []string{string(scene.AllowAddCards)})
	fs.getColumnFn = func(_ context.Context, columnID string) (store.Column, error) {
		return store.Column{ID: columnID, BoardID: "brd-1"}, nil
	}
	var created store.Card
	fs.createCardFn = func(_ context.Context, card store.Card) error {
		created = card
		return nil
	}
	svc := newTestService(fs)

	payload, err := svc.CreateCard(context.Background(), "brd-1", "col-1", "  Ship smaller batches  ", memberSession())
	if err != nil {
		t.Fatalf("CreateCard() error = %v", err)
	}
	if created.Content != "Ship smaller batches" {
		t.Fatalf("expected trimmed content, got %q", created.Content)
	}
	if created.UserID != "usr-1" || created.AuthorName != "Avery" {
		t.Fatalf("expected author stamp, got %+v", created)
	}
	card, ok := payload["card"].(map[string]any)
	if !ok {
		t.Fatalf("expected card payload, got %v", payload)
	}
	if card["content"] != "Ship smaller batches" {
		t.Fatalf("unexpected payload content: %v", card["content"])
	}
}

func TestVoteRejectedWhenAllocationExhausted(t *testing.T) {
	fs := &fakeStore{}
	boardWorld(fs, "active", "member", []string{string(scene.AllowVoting)})
	fs.getCardFn = func(_ context.Context, cardID string) (store.Card, error) {
		return store.Card{ID: cardID, BoardID: "brd-1"}, nil
	}
	fs.checkVotingAllocationFn = func(context.Context, string, string) (store.VoteAllocation, error) {
		return store.VoteAllocation{CurrentVotes: 3, RemainingVotes: 0, CanVote: false}, nil
	}
	addVoteCalls := 0
	fs.addVoteFn = func(context.Context, store.Vote) error {
		addVoteCalls++
		return nil
	}
	svc := newTestService(fs)

	_, err := svc.Vote(context.Background(), "crd-1", 1, memberSession())
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Status != 409 || domainErr.Message != "No votes remaining" {
		t.Fatalf("unexpected error: %d %q", domainErr.Status, domainErr.Message)
	}
	if addVoteCalls != 0 {
		t.Fatalf("expected no AddVote call, got %d", addVoteCalls)
	}
}

func TestVoteAddWithinAllocation(t *testing.T) {
	fs := &fakeStore{}
	boardWorld(fs, "active", "member", []string{string(scene.AllowVoting)})
	fs.getCardFn = func(_ context.Context, cardID string) (store.Card, error) {
		return store.Card{ID: cardID, BoardID: "brd-1"}, nil
	}
	calls := 0
	fs.checkVotingAllocationFn = func(context.Context, string, string) (store.VoteAllocation, error) {
		calls++
		if calls == 1 {
			return store.VoteAllocation{CurrentVotes: 1, RemainingVotes: 2, CanVote: true}, nil
		}
		return store.VoteAllocation{CurrentVotes: 2, RemainingVotes: 1, CanVote: true}, nil
	}
	var added store.Vote
	fs.addVoteFn = func(_ context.Context, vote store.Vote) error {
		added = vote
		return nil
	}
	svc := newTestService(fs)

	payload, err := svc.Vote(context.Background(), "crd-1", 1, memberSession())
	if err != nil {
		t.Fatalf("Vote() error = %v", err)
	}
	if added.CardID != "crd-1" || added.UserID != "usr-1" {
		t.Fatalf("unexpected vote record: %+v", added)
	}
	if payload["action"] != "added" {
		t.Fatalf("expected action added, got %v", payload["action"])
	}
	if payload["remaining_votes"] != 1 {
		t.Fatalf("expected 1 remaining vote, got %v", payload["remaining_votes"])
	}
}

func TestVoteRemoveAtZeroReportsNone(t *testing.T) {
	fs := &fakeStore{}
	boardWorld(fs, "active", "member", []string{string(scene.AllowVoting)})
	fs.getCardFn = func(_ context.Context, cardID string) (store.Card, error) {
		return store.Card{ID: cardID, BoardID: "brd-1"}, nil
	}
	fs.removeLatestVoteFn = func(context.Context, string, string) (bool, error) {
		return false, nil
	}
	svc := newTestService(fs)

	payload, err := svc.Vote(context.Background(), "crd-1", -1, memberSession())
	if err != nil {
		t.Fatalf("Vote() error = %v", err)
	}
	if payload["action"] != "none" {
		t.Fatalf("expected action none, got %v", payload["action"])
	}
}

func TestVoteRejectsInvalidDelta(t *testing.T) {
	fs := &fakeStore{}
	boardWorld(fs, "active", "member", []string{string(scene.AllowVoting)})
	fs.getCardFn = func(_ context.Context, cardID string) (store.Card, error) {
		return store.Card{ID: cardID, BoardID: "brd-1"}, nil
	}
	svc := newTestService(fs)

	_, err := svc.Vote(context.Background(), "crd-1", 2, memberSession())
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestGroupCardsNeedsAtLeastTwo(t *testing.T) {
	fs := &fakeStore{}
	boardWorld(fs, "active", "member", []string{string(scene.AllowGroupCards)})
	svc := newTestService(fs)

	_, err := svc.GroupCards(context.Background(), "brd-1", []string{"crd-1"}, memberSession())
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestGroupCardsRejectsForeignCard(t *testing.T) {
	fs := &fakeStore{}
	boardWorld(fs, "active", "member", []string{string(scene.AllowGroupCards)})
	fs.getCardFn = func(_ context.Context, cardID string) (store.Card, error) {
		boardID := "brd-1"
		if cardID == "crd-2" {
			boardID = "brd-other"
		}
		return store.Card{ID: cardID, BoardID: boardID}, nil
	}
	svc := newTestService(fs)

	_, err := svc.GroupCards(context.Background(), "brd-1", []string{"crd-1", "crd-2"}, memberSession())
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestDeleteCardForbiddenOnCompletedBoard(t *testing.T) {
	fs := &fakeStore{}
	boardWorld(fs, "completed", "member", []string{string(scene.AllowAddCards)})
	fs.getCardFn = func(_ context.Context, cardID string) (store.Card, error) {
		return store.Card{ID: cardID, BoardID: "brd-1", UserID: "usr-1"}, nil
	}
	deleteCalls := 0
	fs.deleteCardFn = func(context.Context, string) error {
		deleteCalls++
		return nil
	}
	svc := newTestService(fs)

	err := svc.DeleteCard(context.Background(), "crd-1", memberSession())
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != 403 {
		t.Fatalf("expected 403, got %v", err)
	}
	if deleteCalls != 0 {
		t.Fatalf("expected no delete, got %d", deleteCalls)
	}
}

func TestDeleteCardOwnershipRequired(t *testing.T) {
	fs := &fakeStore{}
	boardWorld(fs, "active", "member", []string{string(scene.AllowAddCards)})
	fs.getCardFn = func(_ context.Context, cardID string) (store.Card, error) {
		return store.Card{ID: cardID, BoardID: "brd-1", UserID: "usr-other"}, nil
	}
	svc := newTestService(fs)

	err := svc.DeleteCard(context.Background(), "crd-1", memberSession())
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != 403 {
		t.Fatalf("expected 403 for non-author member, got %v", err)
	}
}

func TestNonMemberCannotReadBoard(t *testing.T) {
	fs := &fakeStore{}
	boardWorld(fs, "active", "member", nil)
	fs.getSeriesRoleFn = func(context.Context, string, string) (string, error) {
		return "", nil
	}
	svc := newTestService(fs)

	_, err := svc.GetBoardState(context.Background(), "brd-1", memberSession())
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Status != 403 || domainErr.Message != "Not a member of this series" {
		t.Fatalf("unexpected error: %d %q", domainErr.Status, domainErr.Message)
	}
}

func TestPromoteCommentRejectsDoublePromotion(t *testing.T) {
	fs := &fakeStore{}
	boardWorld(fs, "active", "facilitator", []string{string(scene.AllowComments)})
	fs.getCommentFn = func(_ context.Context, commentID string) (store.Comment, error) {
		return store.Comment{ID: commentID, CardID: "crd-1", UserID: "usr-2", Content: "Do it weekly", IsAgreement: true}, nil
	}
	fs.getCardFn = func(_ context.Context, cardID string) (store.Card, error) {
		return store.Card{ID: cardID, BoardID: "brd-1"}, nil
	}
	svc := newTestService(fs)

	_, err := svc.PromoteComment(context.Background(), "cmt-1", memberSession())
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != 409 {
		t.Fatalf("expected 409 for already-promoted comment, got %v", err)
	}
}

func TestPromoteCommentRequiresFacilitator(t *testing.T) {
	fs := &fakeStore{}
	boardWorld(fs, "active", "member", []string{string(scene.AllowComments)})
	fs.getCommentFn = func(_ context.Context, commentID string) (store.Comment, error) {
		return store.Comment{ID: commentID, CardID: "crd-1", Content: "Do it weekly"}, nil
	}
	fs.getCardFn = func(_ context.Context, cardID string) (store.Card, error) {
		return store.Card{ID: cardID, BoardID: "brd-1"}, nil
	}
	svc := newTestService(fs)

	_, err := svc.PromoteComment(context.Background(), "cmt-1", memberSession())
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != 403 {
		t.Fatalf("expected 403 for member, got %v", err)
	}
}

func TestPromoteCommentCarriesAuthorAndSource(t *testing.T) {
	fs := &fakeStore{}
	boardWorld(fs, "active", "facilitator", []string{string(scene.AllowComments)})
	fs.getCommentFn = func(_ context.Context, commentID string) (store.Comment, error) {
		return store.Comment{ID: commentID, CardID: "crd-1", UserID: "usr-2", Content: "Rotate scribe duty", AuthorName: "Blair"}, nil
	}
	fs.getCardFn = func(_ context.Context, cardID string) (store.Card, error) {
		return store.Card{ID: cardID, BoardID: "brd-1"}, nil
	}
	var created store.Agreement
	fs.createAgreementFn = func(_ context.Context, agreement store.Agreement) error {
		created = agreement
		return nil
	}
	marked := false
	fs.markCommentAgreementFn = func(context.Context, string) error {
		marked = true
		return nil
	}
	svc := newTestService(fs)

	if _, err := svc.PromoteComment(context.Background(), "cmt-1", memberSession()); err != nil {
		t.Fatalf("PromoteComment() error = %v", err)
	}
	if !marked {
		t.Fatalf("expected source comment to be marked")
	}
	if created.Content != "Rotate scribe duty" || created.UserID != "usr-2" || created.AuthorName != "Blair" {
		t.Fatalf("agreement should carry the comment's author: %+v", created)
	}
	if created.SourceCommentID == nil || *created.SourceCommentID != "cmt-1" {
		t.Fatalf("expected source comment link, got %v", created.SourceCommentID)
	}
}

func TestSubmitHealthResponseValidatesRating(t *testing.T) {
	fs := &fakeStore{}
	boardWorld(fs, "active", "member", []string{string(scene.AllowHealthResponses)})
	fs.getHealthQuestionFn = func(_ context.Context, questionID string) (store.HealthQuestion, error) {
		return store.HealthQuestion{ID: questionID, BoardID: "brd-1", Question: "Team morale?"}, nil
	}
	svc := newTestService(fs)

	for _, rating := range []int{0, 6, -1} {
		_, err := svc.SubmitHealthResponse(context.Background(), "hlq-1", rating, memberSession())
		var domainErr *DomainError
		if !errors.As(err, &domainErr) || domainErr.Code != "VALIDATION_ERROR" {
			t.Fatalf("rating %d: expected VALIDATION_ERROR, got %v", rating, err)
		}
	}

	if _, err := svc.SubmitHealthResponse(context.Background(), "hlq-1", 4, memberSession()); err != nil {
		t.Fatalf("valid rating rejected: %v", err)
	}
}

func TestSubmitHealthResponseRequiresSceneFlag(t *testing.T) {
	fs := &fakeStore{}
	boardWorld(fs, "active", "member", []string{string(scene.AllowComments)})
	fs.getHealthQuestionFn = func(_ context.Context, questionID string) (store.HealthQuestion, error) {
		return store.HealthQuestion{ID: questionID, BoardID: "brd-1"}, nil
	}
	svc := newTestService(fs)

	_, err := svc.SubmitHealthResponse(context.Background(), "hlq-1", 3, memberSession())
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != 403 {
		t.Fatalf("expected 403 outside health scene, got %v", err)
	}
}

func TestRemoveMemberSelfLeaveAllowed(t *testing.T) {
	fs := &fakeStore{}
	fs.getSeriesRoleFn = func(context.Context, string, string) (string, error) {
		return "member", nil
	}
	removed := false
	fs.removeSeriesMemberFn = func(_ context.Context, seriesID, userID string) error {
		removed = true
		if userID != "usr-1" {
			t.Fatalf("expected self removal, got %q", userID)
		}
		return nil
	}
	svc := newTestService(fs)

	if err := svc.RemoveMember(context.Background(), "srs-1", "usr-1", memberSession()); err != nil {
		t.Fatalf("RemoveMember() error = %v", err)
	}
	if !removed {
		t.Fatalf("expected RemoveSeriesMember call")
	}
}

func TestRemoveMemberOthersNeedAdmin(t *testing.T) {
	fs := &fakeStore{}
	fs.getSeriesRoleFn = func(context.Context, string, string) (string, error) {
		return "facilitator", nil
	}
	svc := newTestService(fs)

	err := svc.RemoveMember(context.Background(), "srs-1", "usr-2", memberSession())
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != 403 {
		t.Fatalf("expected 403 for facilitator removing others, got %v", err)
	}
}

func TestUpdateBoardStatusRejectsUnknownStatus(t *testing.T) {
	fs := &fakeStore{}
	boardWorld(fs, "active", "facilitator", nil)
	svc := newTestService(fs)

	_, err := svc.UpdateBoardStatus(context.Background(), "brd-1", "paused", memberSession())
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestCreateSeriesMakesCreatorAdmin(t *testing.T) {
	fs := &fakeStore{}
	var memberRole string
	fs.addSeriesMemberFn = func(_ context.Context, seriesID, userID, role string) error {
		memberRole = role
		return nil
	}
	svc := newTestService(fs)

	payload, err := svc.CreateSeries(context.Background(), "Platform retros", memberSession())
	if err != nil {
		t.Fatalf("CreateSeries() error = %v", err)
	}
	if memberRole != "admin" {
		t.Fatalf("expected creator to be admin, got %q", memberRole)
	}
	series, ok := payload["series"].(map[string]any)
	if !ok {
		t.Fatalf("expected series payload")
	}
	if series["your_role"] != "admin" {
		t.Fatalf("expected your_role admin, got %v", series["your_role"])
	}
}

func TestInviteExistingMemberMapsToConflict(t *testing.T) {
	fs := &fakeStore{}
	fs.getSeriesRoleFn = func(context.Context, string, string) (string, error) {
		return "admin", nil
	}
	fs.addSeriesMemberFn = func(context.Context, string, string, string) error {
		return store.ErrAlreadyMember
	}
	svc := newTestService(fs)

	_, err := svc.InviteMember(context.Background(), "srs-1", "blair@example.com", "member", memberSession())
	if err == nil {
		t.Fatalf("expected error for duplicate invite")
	}
	status, code, _, _ := mapError(err)
	if status != 409 || code != "CONFLICT" {
		t.Fatalf("expected 409 CONFLICT for duplicate invite, got %d %s", status, code)
	}
}

func TestValidationErrorsUseBadRequest(t *testing.T) {
	fs := &fakeStore{}
	boardWorld(fs, "active", "member", []string{string(scene.AllowVoting)})
	fs.getCardFn = func(_ context.Context, cardID string) (store.Card, error) {
		return store.Card{ID: cardID, BoardID: "brd-1"}, nil
	}
	svc := newTestService(fs)

	_, err := svc.Vote(context.Background(), "crd-1", 2, memberSession())
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Status != 400 {
		t.Fatalf("validation failures must report 400, got %d", domainErr.Status)
	}
}
