package app

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"teambeat/api/internal/archive"
	"teambeat/api/internal/export"
	"teambeat/api/internal/live"
	"teambeat/api/internal/minutes"
	"teambeat/api/internal/rbac"
	"teambeat/api/internal/scene"
	"teambeat/api/internal/store"
	"teambeat/api/internal/util"
)

var validBoardStatuses = map[string]struct{}{
	string(scene.StatusDraft):     {},
	string(scene.StatusActive):    {},
	string(scene.StatusCompleted): {},
	string(scene.StatusArchived):  {},
}

// boardContext loads the board, its current scene and the caller's role
// in the owning series. Every board-scoped operation starts here.
func (s *Service) boardContext(ctx context.Context, boardID, userID string) (store.Board, scene.Scene, rbac.Role, error) {
	board, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return store.Board{}, scene.Scene{}, "", err
	}
	role, err := s.roleInSeries(ctx, board.SeriesID, userID)
	if err != nil {
		return store.Board{}, scene.Scene{}, "", err
	}
	var current scene.Scene
	if board.CurrentSceneID != nil {
		raw, err := s.store.GetScene(ctx, *board.CurrentSceneID)
		if err != nil {
			return store.Board{}, scene.Scene{}, "", err
		}
		current = toSceneView(raw)
	}
	return board, current, role, nil
}

// requireCapability enforces the scene-flag gate. Facilitators are
// subject to it too; scene flags describe the meeting phase, not rank.
func requireCapability(board store.Board, sc scene.Scene, cap scene.Capability) error {
	if !scene.Allowed(sc, scene.BoardStatus(board.Status), cap) {
		return errForbidden("Not allowed in the current scene")
	}
	return nil
}

func toSceneView(raw store.Scene) scene.Scene {
	flags := make([]scene.Capability, 0, len(raw.Flags))
	for _, flag := range raw.Flags {
		flags = append(flags, scene.Capability(flag))
	}
	return scene.Scene{ID: raw.ID, Mode: scene.Mode(raw.Mode), Flags: flags}
}

// Boards

func (s *Service) CreateBoard(ctx context.Context, seriesID, name string, sess Session) (map[string]any, error) {
	if err := s.requireSeriesAction(ctx, seriesID, sess.UserID, rbac.ActionFacilitate); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errValidation("name is required")
	}
	board := store.Board{
		ID:               util.NewID("brd"),
		SeriesID:         seriesID,
		Name:             name,
		Status:           string(scene.StatusDraft),
		VotingAllocation: 3,
	}
	if err := s.store.CreateBoard(ctx, board); err != nil {
		return nil, err
	}
	return map[string]any{"board": boardJSON(board)}, nil
}

// GetBoardState returns the full board view for one participant:
// columns with current-scene visibility, cards shaped by the scene's
// vote visibility and obscuring rules, scenes, presence and the
// caller's voting allocation.
func (s *Service) GetBoardState(ctx context.Context, boardID string, sess Session) (map[string]any, error) {
	board, sc, role, err := s.boardContext(ctx, boardID, sess.UserID)
	if err != nil {
		return nil, err
	}

	columns, err := s.store.ListColumns(ctx, boardID)
	if err != nil {
		return nil, err
	}
	hidden := map[string]bool{}
	if sc.ID != "" {
		hidden, err = s.store.HiddenColumnIDs(ctx, sc.ID)
		if err != nil {
			return nil, err
		}
	}
	columnItems := make([]map[string]any, 0, len(columns))
	for _, column := range columns {
		columnItems = append(columnItems, map[string]any{
			"id":         column.ID,
			"title":      column.Title,
			"seq":        column.Seq,
			"appearance": column.Appearance,
			"visible":    !hidden[column.ID],
		})
	}

	cards, err := s.store.ListCardsByBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	cardItems, err := s.cardViews(ctx, board, sc, cards, sess.UserID)
	if err != nil {
		return nil, err
	}

	scenes, err := s.store.ListScenes(ctx, boardID)
	if err != nil {
		return nil, err
	}
	sceneItems := make([]map[string]any, 0, len(scenes))
	for _, item := range scenes {
		sceneItems = append(sceneItems, sceneJSON(item))
	}

	payload := map[string]any{
		"board":     boardJSON(board),
		"your_role": string(role),
		"columns":   columnItems,
		"cards":     cardItems,
		"scenes":    sceneItems,
	}
	if sc.ID != "" {
		payload["scene"] = map[string]any{
			"id":    sc.ID,
			"mode":  string(sc.Mode),
			"flags": sc.Flags,
		}
	}
	if s.presence != nil {
		payload["presence"] = s.presence.List(boardID)
	}
	if scene.Allowed(sc, scene.BoardStatus(board.Status), scene.AllowVoting) {
		allocation, err := s.store.CheckVotingAllocation(ctx, boardID, sess.UserID)
		if err != nil {
			return nil, err
		}
		payload["allocation"] = map[string]any{
			"current_votes":   allocation.CurrentVotes,
			"remaining_votes": allocation.RemainingVotes,
			"can_vote":        allocation.CanVote,
		}
	}
	return payload, nil
}

// cardViews shapes raw cards for one viewer: vote counts follow the
// scene's visibility, obscured scenes mask other authors' content, and
// blame-free boards drop author names entirely.
func (s *Service) cardViews(ctx context.Context, board store.Board, sc scene.Scene, cards []store.Card, viewerID string) ([]map[string]any, error) {
	visibility := scene.VoteVisibility(sc)
	var counts map[string]int
	if visibility == scene.VotesRevealed {
		var err error
		counts, err = s.store.VoteCountsByCard(ctx, board.ID)
		if err != nil {
			return nil, err
		}
	}

	obscure := sc.Has(scene.AllowObscureCards)
	items := make([]map[string]any, 0, len(cards))
	for _, card := range cards {
		item := live.CardJSON(card)
		switch visibility {
		case scene.VotesRevealed:
			item["vote_count"] = counts[card.ID]
		case scene.VotesOwnOnly:
			own, err := s.store.CountUserVotesOnCard(ctx, card.ID, viewerID)
			if err != nil {
				return nil, err
			}
			item["your_votes"] = own
			delete(item, "vote_count")
		default:
			delete(item, "vote_count")
		}
		if obscure && card.UserID != viewerID {
			item["content"] = ""
			item["obscured"] = true
		}
		if board.BlameFree {
			delete(item, "author_name")
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *Service) UpdateBoard(ctx context.Context, boardID, name string, votingAllocation int, blameFree bool, sess Session) (map[string]any, error) {
	board, _, _, err := s.boardContext(ctx, boardID, sess.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.requireSeriesAction(ctx, board.SeriesID, sess.UserID, rbac.ActionFacilitate); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = board.Name
	}
	if votingAllocation <= 0 {
		votingAllocation = board.VotingAllocation
	}
	if err := s.store.UpdateBoard(ctx, boardID, name, votingAllocation, blameFree); err != nil {
		return nil, err
	}
	updated, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{"board": boardJSON(updated)}
	s.live.Emit(boardID, live.EventBoardUpdated, payload, "")
	return payload, nil
}

// UpdateBoardStatus moves the board through its lifecycle. Completing a
// board also commits a minutes file to the series archive.
func (s *Service) UpdateBoardStatus(ctx context.Context, boardID, status string, sess Session) (map[string]any, error) {
	board, _, _, err := s.boardContext(ctx, boardID, sess.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.requireSeriesAction(ctx, board.SeriesID, sess.UserID, rbac.ActionFacilitate); err != nil {
		return nil, err
	}
	if _, ok := validBoardStatuses[status]; !ok {
		return nil, errValidation("unknown board status")
	}
	if err := s.store.UpdateBoardStatus(ctx, boardID, status); err != nil {
		return nil, err
	}
	if status == string(scene.StatusCompleted) {
		s.commitMinutes(ctx, board, sess)
	}
	updated, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{"board": boardJSON(updated)}
	s.live.Emit(boardID, live.EventBoardUpdated, payload, "")
	return payload, nil
}

// commitMinutes archives the board into the series' git repository.
// Failures are logged, never fatal to the status change.
func (s *Service) commitMinutes(ctx context.Context, board store.Board, sess Session) {
	if s.minutes == nil {
		return
	}
	summary, err := s.buildMinutesSummary(ctx, board)
	if err != nil {
		log.Printf("build minutes for board %s: %v", board.ID, err)
		return
	}
	if _, err := s.minutes.CommitBoardMinutes(board.SeriesID, summary, sess.DisplayName); err != nil {
		log.Printf("commit minutes for board %s: %v", board.ID, err)
	}
}

func (s *Service) buildMinutesSummary(ctx context.Context, board store.Board) (minutes.BoardSummary, error) {
	columns, err := s.store.ListColumns(ctx, board.ID)
	if err != nil {
		return minutes.BoardSummary{}, err
	}
	cards, err := s.store.ListCardsByBoard(ctx, board.ID)
	if err != nil {
		return minutes.BoardSummary{}, err
	}
	agreements, err := s.store.ListAgreements(ctx, board.ID)
	if err != nil {
		return minutes.BoardSummary{}, err
	}

	byColumn := make(map[string][]minutes.CardSummary)
	for _, card := range cards {
		byColumn[card.ColumnID] = append(byColumn[card.ColumnID], minutes.CardSummary{
			Content: card.Content,
			Author:  card.AuthorName,
			Votes:   card.VoteCount,
		})
	}
	summary := minutes.BoardSummary{
		BoardName: board.Name,
		Date:      time.Now(),
	}
	for _, column := range columns {
		summary.Columns = append(summary.Columns, minutes.ColumnSummary{
			Title: column.Title,
			Cards: byColumn[column.ID],
		})
	}
	for _, agreement := range agreements {
		summary.Agreements = append(summary.Agreements, minutes.AgreementSummary{
			Content:   agreement.Content,
			Author:    agreement.AuthorName,
			Completed: agreement.CompletedAt != nil,
		})
	}
	return summary, nil
}

func (s *Service) DeleteBoard(ctx context.Context, boardID string, sess Session) error {
	board, _, _, err := s.boardContext(ctx, boardID, sess.UserID)
	if err != nil {
		return err
	}
	if err := s.requireSeriesAction(ctx, board.SeriesID, sess.UserID, rbac.ActionAdmin); err != nil {
		return err
	}
	return s.store.DeleteBoard(ctx, boardID)
}

// SetupBoard seeds a fresh board with the standard retro template.
func (s *Service) SetupBoard(ctx context.Context, boardID string, sess Session) (map[string]any, error) {
	board, _, _, err := s.boardContext(ctx, boardID, sess.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.requireSeriesAction(ctx, board.SeriesID, sess.UserID, rbac.ActionFacilitate); err != nil {
		return nil, err
	}
	existing, err := s.store.ListColumns(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, errConflict("Board already has columns")
	}

	columns := []store.Column{
		{ID: util.NewID("col"), BoardID: boardID, Title: "Went well", Seq: 0, Appearance: "positive"},
		{ID: util.NewID("col"), BoardID: boardID, Title: "To improve", Seq: 1, Appearance: "negative"},
		{ID: util.NewID("col"), BoardID: boardID, Title: "Action items", Seq: 2, Appearance: "neutral"},
	}
	scenes := []store.Scene{
		templateScene(boardID, "Brainstorm", scene.ModeColumns, 0,
			scene.AllowAddCards, scene.AllowEditCards, scene.AllowObscureCards, scene.AllowComments),
		templateScene(boardID, "Group", scene.ModeColumns, 1,
			scene.AllowMoveCards, scene.AllowGroupCards, scene.AllowComments),
		templateScene(boardID, "Vote", scene.ModeColumns, 2,
			scene.AllowVoting, scene.AllowComments),
		templateScene(boardID, "Discuss", scene.ModePresent, 3,
			scene.ShowVotes, scene.AllowComments, scene.ShowComments),
		templateScene(boardID, "Health check", scene.ModeHealth, 4,
			scene.AllowHealthResponses),
		templateScene(boardID, "Review", scene.ModeReview, 5,
			scene.ShowVotes, scene.ShowComments),
	}
	if err := s.store.SetupBoardTemplate(ctx, boardID, columns, scenes); err != nil {
		return nil, err
	}
	return s.GetBoardState(ctx, boardID, sess)
}

func templateScene(boardID, title string, mode scene.Mode, seq int, flags ...scene.Capability) store.Scene {
	raw := make([]string, 0, len(flags))
	for _, flag := range flags {
		raw = append(raw, string(flag))
	}
	return store.Scene{
		ID:      util.NewID("scn"),
		BoardID: boardID,
		Title:   title,
		Mode:    string(mode),
		Seq:     seq,
		Flags:   raw,
	}
}

// SetTimer starts or stops the shared board timer.
func (s *Service) SetTimer(ctx context.Context, boardID, action string, seconds int, sess Session) (map[string]any, error) {
	board, _, _, err := s.boardContext(ctx, boardID, sess.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.requireSeriesAction(ctx, board.SeriesID, sess.UserID, rbac.ActionFacilitate); err != nil {
		return nil, err
	}

	var payload map[string]any
	switch action {
	case "start":
		if seconds <= 0 {
			return nil, errValidation("seconds must be positive")
		}
		now := time.Now()
		if err := s.store.SetBoardTimer(ctx, boardID, &now, seconds); err != nil {
			return nil, err
		}
		payload = map[string]any{"running": true, "seconds": seconds, "started_at": now}
	case "stop":
		if err := s.store.SetBoardTimer(ctx, boardID, nil, 0); err != nil {
			return nil, err
		}
		payload = map[string]any{"running": false}
	default:
		return nil, errValidation("action must be start or stop")
	}
	s.live.Emit(boardID, live.EventTimerUpdate, payload, "")
	return payload, nil
}

// SetPresentationState updates the facilitator-driven presentation
// pointer (selected card, notes lock) and pushes it to the room.
func (s *Service) SetPresentationState(ctx context.Context, boardID string, selectedCardID *string, notesLocked bool, sess Session) (map[string]any, error) {
	board, _, _, err := s.boardContext(ctx, boardID, sess.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.requireSeriesAction(ctx, board.SeriesID, sess.UserID, rbac.ActionFacilitate); err != nil {
		return nil, err
	}
	if selectedCardID != nil && *selectedCardID != "" {
		card, err := s.store.GetCard(ctx, *selectedCardID)
		if err != nil {
			return nil, err
		}
		if card.BoardID != boardID {
			return nil, errValidation("card belongs to another board")
		}
	}
	if err := s.store.SetPresentation(ctx, boardID, selectedCardID, notesLocked); err != nil {
		return nil, err
	}
	payload := map[string]any{
		"selected_card_id": selectedCardID,
		"notes_locked":     notesLocked,
	}
	s.live.Emit(boardID, live.EventPresentation, payload, "")
	return payload, nil
}

// ClearVotes wipes every vote on the board; the reset is announced only
// when the scene reveals votes.
func (s *Service) ClearVotes(ctx context.Context, boardID string, sess Session) error {
	board, sc, _, err := s.boardContext(ctx, boardID, sess.UserID)
	if err != nil {
		return err
	}
	if err := s.requireSeriesAction(ctx, board.SeriesID, sess.UserID, rbac.ActionFacilitate); err != nil {
		return err
	}
	if err := s.store.ClearVotes(ctx, boardID); err != nil {
		return err
	}
	if scene.VoteVisibility(sc) == scene.VotesRevealed {
		s.live.Emit(boardID, live.EventVotingStatsUpdated, map[string]any{"vote_counts": map[string]int{}}, "")
	}
	return nil
}

// ExportBoard renders the board report in the requested format and, when
// object storage is configured, archives a copy in the background.
func (s *Service) ExportBoard(ctx context.Context, boardID, format string, sess Session) (*export.Result, error) {
	if _, _, _, err := s.boardContext(ctx, boardID, sess.UserID); err != nil {
		return nil, err
	}
	if s.export == nil {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export is not configured", nil)
	}
	result, err := s.export.Export(ctx, export.Request{BoardID: boardID, Format: export.Format(format)})
	if err != nil {
		return nil, err
	}
	if s.archive.Enabled() {
		go func(res export.Result) {
			uploadCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			objectName := archive.ObjectName(boardID, res.Filename, time.Now())
			if err := s.archive.Upload(uploadCtx, objectName, res.Data, res.MimeType); err != nil {
				log.Printf("archive export for board %s: %v", boardID, err)
			}
		}(*result)
	}
	return result, nil
}

// Scenes

func (s *Service) CreateScene(ctx context.Context, boardID, title, mode string, seq int, flags []string, sess Session) (map[string]any, error) {
	board, _, _, err := s.boardContext(ctx, boardID, sess.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.requireSeriesAction(ctx, board.SeriesID, sess.UserID, rbac.ActionFacilitate); err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errValidation("title is required")
	}
	if err := validateFlags(flags); err != nil {
		return nil, err
	}
	if len(flags) == 0 {
		for _, flag := range scene.DefaultFlags(scene.Mode(mode)) {
			flags = append(flags, string(flag))
		}
	}
	item := store.Scene{
		ID:      util.NewID("scn"),
		BoardID: boardID,
		Title:   title,
		Mode:    mode,
		Seq:     seq,
		Flags:   flags,
	}
	if err := s.store.CreateScene(ctx, item); err != nil {
		return nil, err
	}
	return map[string]any{"scene": sceneJSON(item)}, nil
}

func (s *Service) UpdateScene(ctx context.Context, sceneID, title, mode string, seq int, sess Session) (map[string]any, error) {
	raw, err := s.store.GetScene(ctx, sceneID)
	if err != nil {
		return nil, err
	}
	board, _, _, err := s.boardContext(ctx, raw.BoardID, sess.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.requireSeriesAction(ctx, board.SeriesID, sess.UserID, rbac.ActionFacilitate); err != nil {
		return nil, err
	}
	if strings.TrimSpace(title) == "" {
		title = raw.Title
	}
	if mode == "" {
		mode = raw.Mode
	}
	if err := s.store.UpdateScene(ctx, sceneID, title, mode, seq); err != nil {
		return nil, err
	}
	updated, err := s.store.GetScene(ctx, sceneID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"scene": sceneJSON(updated)}, nil
}

func (s *Service) DeleteScene(ctx context.Context, sceneID string, sess Session) error {
	raw, err := s.store.GetScene(ctx, sceneID)
	if err != nil {
		return err
	}
	board, _, _, err := s.boardContext(ctx, raw.BoardID, sess.UserID)
	if err != nil {
		return err
	}
	if err := s.requireSeriesAction(ctx, board.SeriesID, sess.UserID, rbac.ActionFacilitate); err != nil {
		return err
	}
	if board.CurrentSceneID != nil && *board.CurrentSceneID == sceneID {
		return errConflict("Cannot delete the active scene")
	}
	return s.store.DeleteScene(ctx, sceneID)
}

func (s *Service) SetSceneFlags(ctx context.Context, sceneID string, flags []string, sess Session) (map[string]any, error) {
	raw, err := s.store.GetScene(ctx, sceneID)
	if err != nil {
		return nil, err
	}
	board, _, _, err := s.boardContext(ctx, raw.BoardID, sess.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.requireSeriesAction(ctx, board.SeriesID, sess.UserID, rbac.ActionFacilitate); err != nil {
		return nil, err
	}
	if err := validateFlags(flags); err != nil {
		return nil, err
	}
	if err := s.store.SetSceneFlags(ctx, sceneID, flags); err != nil {
		return nil, err
	}
	updated, err := s.store.GetScene(ctx, sceneID)
	if err != nil {
		return nil, err
	}
	// Flag changes on the active scene are a de facto scene change.
	if board.CurrentSceneID != nil && *board.CurrentSceneID == sceneID {
		s.live.SceneChanged(ctx, board, toSceneView(updated))
	}
	return map[string]any{"scene": sceneJSON(updated)}, nil
}

// ActivateScene switches the board to a new phase and triggers the
// scene-change broadcast, including the per-user presentation rebuild.
func (s *Service) ActivateScene(ctx context.Context, boardID, sceneID string, sess Session) (map[string]any, error) {
	board, _, _, err := s.boardContext(ctx, boardID, sess.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.requireSeriesAction(ctx, board.SeriesID, sess.UserID, rbac.ActionFacilitate); err != nil {
		return nil, err
	}
	raw, err := s.store.GetScene(ctx, sceneID)
	if err != nil {
		return nil, err
	}
	if raw.BoardID != boardID {
		return nil, errValidation("scene belongs to another board")
	}
	if err := s.store.SetCurrentScene(ctx, boardID, sceneID); err != nil {
		return nil, err
	}
	board.CurrentSceneID = &raw.ID
	s.live.SceneChanged(ctx, board, toSceneView(raw))
	return map[string]any{"scene": sceneJSON(raw)}, nil
}

func (s *Service) SetSceneColumnVisibility(ctx context.Context, sceneID, columnID string, visible bool, sess Session) error {
	raw, err := s.store.GetScene(ctx, sceneID)
	if err != nil {
		return err
	}
	board, _, _, err := s.boardContext(ctx, raw.BoardID, sess.UserID)
	if err != nil {
		return err
	}
	if err := s.requireSeriesAction(ctx, board.SeriesID, sess.UserID, rbac.ActionFacilitate); err != nil {
		return err
	}
	column, err := s.store.GetColumn(ctx, columnID)
	if err != nil {
		return err
	}
	if column.BoardID != raw.BoardID {
		return errValidation("column belongs to another board")
	}
	return s.store.SetSceneColumnVisibility(ctx, sceneID, columnID, visible)
}

func validateFlags(flags []string) error {
	for _, flag := range flags {
		if !scene.Valid(flag) {
			return errValidation("unknown scene flag: " + flag)
		}
	}
	return nil
}

// Columns

func (s *Service) CreateColumn(ctx context.Context, boardID, title, appearance string, seq int, sess Session) (map[string]any, error) {
	board, _, _, err := s.boardContext(ctx, boardID, sess.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.requireSeriesAction(ctx, board.SeriesID, sess.UserID, rbac.ActionFacilitate); err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errValidation("title is required")
	}
	column := store.Column{
		ID:         util.NewID("col"),
		BoardID:    boardID,
		Title:      title,
		Seq:        seq,
		Appearance: appearance,
	}
	if err := s.store.CreateColumn(ctx, column); err != nil {
		return nil, err
	}
	payload := map[string]any{"column": columnJSON(column)}
	s.live.Emit(boardID, live.EventBoardUpdated, payload, "")
	return payload, nil
}

func (s *Service) UpdateColumn(ctx context.Context, columnID, title, appearance string, sess Session) (map[string]any, error) {
	column, err := s.store.GetColumn(ctx, columnID)
	if err != nil {
		return nil, err
	}
	board, _, _, err := s.boardContext(ctx, column.BoardID, sess.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.requireSeriesAction(ctx, board.SeriesID, sess.UserID, rbac.ActionFacilitate); err != nil {
		return nil, err
	}
	if strings.TrimSpace(title) == "" {
		title = column.Title
	}
	if appearance == "" {
		appearance = column.Appearance
	}
	if err := s.store.UpdateColumn(ctx, columnID, title, appearance); err != nil {
		return nil, err
	}
	column.Title = title
	column.Appearance = appearance
	payload := map[string]any{"column": columnJSON(column)}
	s.live.Emit(column.BoardID, live.EventBoardUpdated, payload, "")
	return payload, nil
}

func (s *Service) DeleteColumn(ctx context.Context, columnID string, sess Session) error {
	column, err := s.store.GetColumn(ctx, columnID)
	if err != nil {
		return err
	}
	board, _, _, err := s.boardContext(ctx, column.BoardID, sess.UserID)
	if err != nil {
		return err
	}
	if err := s.requireSeriesAction(ctx, board.SeriesID, sess.UserID, rbac.ActionFacilitate); err != nil {
		return err
	}
	if err := s.store.DeleteColumn(ctx, columnID); err != nil {
		return err
	}
	s.live.Emit(column.BoardID, live.EventBoardUpdated, map[string]any{"deleted_column_id": columnID}, "")
	return nil
}

func (s *Service) ReorderColumns(ctx context.Context, boardID string, orderedIDs []string, sess Session) error {
	board, _, _, err := s.boardContext(ctx, boardID, sess.UserID)
	if err != nil {
		return err
	}
	if err := s.requireSeriesAction(ctx, board.SeriesID, sess.UserID, rbac.ActionFacilitate); err != nil {
		return err
	}
	if len(orderedIDs) == 0 {
		return errValidation("column order is required")
	}
	if err := s.store.ReorderColumns(ctx, boardID, orderedIDs); err != nil {
		return err
	}
	s.live.Emit(boardID, live.EventBoardUpdated, map[string]any{"column_order": orderedIDs}, "")
	return nil
}

// Payload helpers

func boardJSON(board store.Board) map[string]any {
	item := map[string]any{
		"id":                board.ID,
		"series_id":         board.SeriesID,
		"name":              board.Name,
		"status":            board.Status,
		"voting_allocation": board.VotingAllocation,
		"blame_free":        board.BlameFree,
		"notes_locked":      board.NotesLocked,
		"created_at":        board.CreatedAt,
	}
	if board.CurrentSceneID != nil {
		item["current_scene_id"] = *board.CurrentSceneID
	}
	if board.SelectedCardID != nil {
		item["selected_card_id"] = *board.SelectedCardID
	}
	if board.TimerStart != nil {
		item["timer_start"] = *board.TimerStart
		item["timer_seconds"] = board.TimerSeconds
	}
	return item
}

func sceneJSON(item store.Scene) map[string]any {
	flags := item.Flags
	if flags == nil {
		flags = []string{}
	}
	return map[string]any{
		"id":       item.ID,
		"board_id": item.BoardID,
		"title":    item.Title,
		"mode":     item.Mode,
		"seq":      item.Seq,
		"flags":    flags,
	}
}

func columnJSON(column store.Column) map[string]any {
	return map[string]any{
		"id":         column.ID,
		"board_id":   column.BoardID,
		"title":      column.Title,
		"seq":        column.Seq,
		"appearance": column.Appearance,
	}
}

// CheckBoardAccess verifies the caller can see the board at all; used
// by the event stream before attaching a connection.
func (s *Service) CheckBoardAccess(ctx context.Context, boardID string, sess Session) error {
	_, _, _, err := s.boardContext(ctx, boardID, sess.UserID)
	return err
}
