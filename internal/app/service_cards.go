package app

import (
	"context"
	"strings"

	"teambeat/api/internal/live"
	"teambeat/api/internal/rbac"
	"teambeat/api/internal/scene"
	"teambeat/api/internal/search"
	"teambeat/api/internal/store"
	"teambeat/api/internal/util"
)

// Cards

func (s *Service) CreateCard(ctx context.Context, boardID, columnID, content string, sess Session) (map[string]any, error) {
	board, sc, _, err := s.boardContext(ctx, boardID, sess.UserID)
	if err != nil {
		return nil, err
	}
	if err := requireCapability(board, sc, scene.AllowAddCards); err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errValidation("content is required")
	}
	column, err := s.store.GetColumn(ctx, columnID)
	if err != nil {
		return nil, err
	}
	if column.BoardID != boardID {
		return nil, errValidation("column belongs to another board")
	}
	card := store.Card{
		ID:         util.NewID("crd"),
		BoardID:    boardID,
		ColumnID:   columnID,
		UserID:     sess.UserID,
		Content:    content,
		AuthorName: sess.DisplayName,
	}
	if err := s.store.CreateCard(ctx, card); err != nil {
		return nil, err
	}
	s.indexCard(board, card)
	payload := map[string]any{"card": live.CardJSON(card)}
	s.live.Emit(boardID, live.EventCardCreated, payload, "")
	return payload, nil
}

func (s *Service) UpdateCard(ctx context.Context, cardID, content string, sess Session) (map[string]any, error) {
	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	board, sc, role, err := s.boardContext(ctx, card.BoardID, sess.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.requireCardOwnership(card, sess, role); err != nil {
		return nil, err
	}
	if err := requireCapability(board, sc, scene.AllowEditCards); err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errValidation("content is required")
	}
	if err := s.store.UpdateCardContent(ctx, cardID, content); err != nil {
		return nil, err
	}
	card.Content = content
	s.indexCard(board, card)
	payload := map[string]any{"card": live.CardJSON(card)}
	s.live.Emit(card.BoardID, live.EventCardUpdated, payload, "")
	return payload, nil
}

func (s *Service) MoveCard(ctx context.Context, cardID, columnID string, sess Session) (map[string]any, error) {
	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	board, sc, _, err := s.boardContext(ctx, card.BoardID, sess.UserID)
	if err != nil {
		return nil, err
	}
	if err := requireCapability(board, sc, scene.AllowMoveCards); err != nil {
		return nil, err
	}
	column, err := s.store.GetColumn(ctx, columnID)
	if err != nil {
		return nil, err
	}
	if column.BoardID != card.BoardID {
		return nil, errValidation("column belongs to another board")
	}
	if err := s.store.MoveCard(ctx, cardID, columnID); err != nil {
		return nil, err
	}
	card.ColumnID = columnID
	payload := map[string]any{"card": live.CardJSON(card)}
	s.live.Emit(card.BoardID, live.EventCardUpdated, payload, "")
	return payload, nil
}

func (s *Service) DeleteCard(ctx context.Context, cardID string, sess Session) error {
	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return err
	}
	board, _, role, err := s.boardContext(ctx, card.BoardID, sess.UserID)
	if err != nil {
		return err
	}
	if err := s.requireCardOwnership(card, sess, role); err != nil {
		return err
	}
	if !scene.Actionable(scene.BoardStatus(board.Status)) {
		return errForbidden("Board is read-only")
	}
	if err := s.store.DeleteCard(ctx, cardID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteCard(cardID)
	}
	s.live.Emit(card.BoardID, live.EventCardDeleted, map[string]any{"card_id": cardID}, "")
	return nil
}

// GroupCards merges a set of cards into one group. Grouping the same
// set again reuses the existing group id.
func (s *Service) GroupCards(ctx context.Context, boardID string, cardIDs []string, sess Session) (map[string]any, error) {
	board, sc, _, err := s.boardContext(ctx, boardID, sess.UserID)
	if err != nil {
		return nil, err
	}
	if err := requireCapability(board, sc, scene.AllowGroupCards); err != nil {
		return nil, err
	}
	if len(cardIDs) < 2 {
		return nil, errValidation("grouping needs at least two cards")
	}
	for _, cardID := range cardIDs {
		card, err := s.store.GetCard(ctx, cardID)
		if err != nil {
			return nil, err
		}
		if card.BoardID != boardID {
			return nil, errValidation("card belongs to another board")
		}
	}
	groupID, err := s.store.GroupCards(ctx, cardIDs)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{"group_id": groupID, "card_ids": cardIDs}
	s.live.Emit(boardID, live.EventCardUpdated, payload, "")
	return payload, nil
}

func (s *Service) UngroupCard(ctx context.Context, cardID string, sess Session) error {
	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return err
	}
	board, sc, _, err := s.boardContext(ctx, card.BoardID, sess.UserID)
	if err != nil {
		return err
	}
	if err := requireCapability(board, sc, scene.AllowGroupCards); err != nil {
		return err
	}
	if err := s.store.UngroupCard(ctx, cardID); err != nil {
		return err
	}
	s.live.Emit(card.BoardID, live.EventCardUpdated, map[string]any{"card_id": cardID, "group_id": nil}, "")
	return nil
}

func (s *Service) requireCardOwnership(card store.Card, sess Session, role rbac.Role) error {
	if card.UserID == sess.UserID {
		return nil
	}
	if rbac.Can(role, rbac.ActionFacilitate) {
		return nil
	}
	return errForbidden("Only the author or a facilitator may change this card")
}

func (s *Service) indexCard(board store.Board, card store.Card) {
	if s.search == nil {
		return
	}
	s.search.IndexCard(search.CardRecord{
		ID:         card.ID,
		Content:    card.Content,
		BoardID:    board.ID,
		BoardName:  board.Name,
		SeriesID:   board.SeriesID,
		AuthorName: card.AuthorName,
	})
}

// Votes

// Vote applies a single +1/-1 to the caller's votes on a card. Adding
// past the board allocation is rejected; removing at zero is a no-op
// reported as action "none". The broadcast respects blind voting.
func (s *Service) Vote(ctx context.Context, cardID string, delta int, sess Session) (map[string]any, error) {
	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	board, sc, _, err := s.boardContext(ctx, card.BoardID, sess.UserID)
	if err != nil {
		return nil, err
	}
	if err := requireCapability(board, sc, scene.AllowVoting); err != nil {
		return nil, err
	}

	var action string
	switch delta {
	case 1:
		allocation, err := s.store.CheckVotingAllocation(ctx, board.ID, sess.UserID)
		if err != nil {
			return nil, err
		}
		if !allocation.CanVote {
			return nil, errConflict("No votes remaining")
		}
		if err := s.store.AddVote(ctx, store.Vote{
			ID:     util.NewID("vot"),
			CardID: cardID,
			UserID: sess.UserID,
		}); err != nil {
			return nil, err
		}
		action = "added"
	case -1:
		removed, err := s.store.RemoveLatestVote(ctx, cardID, sess.UserID)
		if err != nil {
			return nil, err
		}
		if removed {
			action = "removed"
		} else {
			action = "none"
		}
	default:
		return nil, errValidation("delta must be 1 or -1")
	}

	if action != "none" {
		if err := s.live.VoteChanged(ctx, board.ID, cardID, sess.UserID, sc); err != nil {
			return nil, err
		}
	}

	allocation, err := s.store.CheckVotingAllocation(ctx, board.ID, sess.UserID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"action":          action,
		"card_id":         cardID,
		"current_votes":   allocation.CurrentVotes,
		"remaining_votes": allocation.RemainingVotes,
		"can_vote":        allocation.CanVote,
	}, nil
}

// Comments

func (s *Service) ListComments(ctx context.Context, cardID string, sess Session) (map[string]any, error) {
	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if _, _, _, err := s.boardContext(ctx, card.BoardID, sess.UserID); err != nil {
		return nil, err
	}
	comments, err := s.store.ListCommentsByCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(comments))
	for _, comment := range comments {
		items = append(items, live.CommentJSON(comment))
	}
	return map[string]any{"comments": items}, nil
}

func (s *Service) AddComment(ctx context.Context, cardID, content string, sess Session) (map[string]any, error) {
	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	board, sc, _, err := s.boardContext(ctx, card.BoardID, sess.UserID)
	if err != nil {
		return nil, err
	}
	if err := requireCapability(board, sc, scene.AllowComments); err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errValidation("content is required")
	}
	comment := store.Comment{
		ID:         util.NewID("cmt"),
		CardID:     cardID,
		UserID:     sess.UserID,
		Content:    content,
		AuthorName: sess.DisplayName,
	}
	if err := s.store.CreateComment(ctx, comment); err != nil {
		return nil, err
	}
	payload := map[string]any{"comment": live.CommentJSON(comment)}
	s.live.Emit(card.BoardID, live.EventCommentAdded, payload, "")
	return payload, nil
}

func (s *Service) DeleteComment(ctx context.Context, commentID string, sess Session) error {
	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return err
	}
	card, err := s.store.GetCard(ctx, comment.CardID)
	if err != nil {
		return err
	}
	_, _, role, err := s.boardContext(ctx, card.BoardID, sess.UserID)
	if err != nil {
		return err
	}
	if comment.UserID != sess.UserID && !rbac.Can(role, rbac.ActionFacilitate) {
		return errForbidden("Only the author or a facilitator may delete this comment")
	}
	return s.store.DeleteComment(ctx, commentID)
}

// ToggleReaction adds the caller's emoji reaction to a card, or removes
// it when it is already present.
func (s *Service) ToggleReaction(ctx context.Context, cardID, emoji string, sess Session) (map[string]any, error) {
	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	board, sc, _, err := s.boardContext(ctx, card.BoardID, sess.UserID)
	if err != nil {
		return nil, err
	}
	if err := requireCapability(board, sc, scene.AllowComments); err != nil {
		return nil, err
	}
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return nil, errValidation("emoji is required")
	}
	added, err := s.store.ToggleReaction(ctx, cardID, sess.UserID, emoji, util.NewID("cmt"))
	if err != nil {
		return nil, err
	}
	payload := map[string]any{"card_id": cardID, "emoji": emoji, "added": added}
	s.live.Emit(card.BoardID, live.EventCommentAdded, payload, "")
	return payload, nil
}

// PromoteComment turns a discussion comment into a board agreement,
// keeping the source comment marked so the UI can link them.
func (s *Service) PromoteComment(ctx context.Context, commentID string, sess Session) (map[string]any, error) {
	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	card, err := s.store.GetCard(ctx, comment.CardID)
	if err != nil {
		return nil, err
	}
	board, _, _, err := s.boardContext(ctx, card.BoardID, sess.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.requireSeriesAction(ctx, board.SeriesID, sess.UserID, rbac.ActionFacilitate); err != nil {
		return nil, err
	}
	if comment.IsAgreement {
		return nil, errConflict("Comment is already an agreement")
	}
	if err := s.store.MarkCommentAgreement(ctx, commentID); err != nil {
		return nil, err
	}
	agreement := store.Agreement{
		ID:              util.NewID("agr"),
		BoardID:         card.BoardID,
		Content:         comment.Content,
		UserID:          comment.UserID,
		SourceCommentID: &comment.ID,
		AuthorName:      comment.AuthorName,
	}
	if err := s.store.CreateAgreement(ctx, agreement); err != nil {
		return nil, err
	}
	s.indexAgreement(board, agreement)
	payload := map[string]any{"agreement": live.AgreementJSON(agreement)}
	s.live.Emit(card.BoardID, live.EventAgreementAdded, payload, "")
	return payload, nil
}

// Agreements

func (s *Service) ListBoardAgreements(ctx context.Context, boardID string, sess Session) (map[string]any, error) {
	if _, _, _, err := s.boardContext(ctx, boardID, sess.UserID); err != nil {
		return nil, err
	}
	agreements, err := s.store.ListAgreements(ctx, boardID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(agreements))
	for _, agreement := range agreements {
		items = append(items, live.AgreementJSON(agreement))
	}
	return map[string]any{"agreements": items}, nil
}

func (s *Service) CreateAgreement(ctx context.Context, boardID, content string, sess Session) (map[string]any, error) {
	board, _, role, err := s.boardContext(ctx, boardID, sess.UserID)
	if err != nil {
		return nil, err
	}
	if !rbac.Can(role, rbac.ActionContribute) {
		return nil, errForbidden("")
	}
	if !scene.Actionable(scene.BoardStatus(board.Status)) {
		return nil, errForbidden("Board is read-only")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errValidation("content is required")
	}
	agreement := store.Agreement{
		ID:         util.NewID("agr"),
		BoardID:    boardID,
		Content:    content,
		UserID:     sess.UserID,
		AuthorName: sess.DisplayName,
	}
	if err := s.store.CreateAgreement(ctx, agreement); err != nil {
		return nil, err
	}
	s.indexAgreement(board, agreement)
	payload := map[string]any{"agreement": live.AgreementJSON(agreement)}
	s.live.Emit(boardID, live.EventAgreementAdded, payload, "")
	return payload, nil
}

func (s *Service) UpdateAgreement(ctx context.Context, agreementID, content string, completed bool, sess Session) (map[string]any, error) {
	agreement, err := s.store.GetAgreement(ctx, agreementID)
	if err != nil {
		return nil, err
	}
	board, _, role, err := s.boardContext(ctx, agreement.BoardID, sess.UserID)
	if err != nil {
		return nil, err
	}
	if agreement.UserID != sess.UserID && !rbac.Can(role, rbac.ActionFacilitate) {
		return nil, errForbidden("Only the author or a facilitator may change this agreement")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		content = agreement.Content
	}
	if err := s.store.UpdateAgreement(ctx, agreementID, content, completed); err != nil {
		return nil, err
	}
	updated, err := s.store.GetAgreement(ctx, agreementID)
	if err != nil {
		return nil, err
	}
	s.indexAgreement(board, updated)
	return map[string]any{"agreement": live.AgreementJSON(updated)}, nil
}

func (s *Service) DeleteAgreement(ctx context.Context, agreementID string, sess Session) error {
	agreement, err := s.store.GetAgreement(ctx, agreementID)
	if err != nil {
		return err
	}
	board, _, _, err := s.boardContext(ctx, agreement.BoardID, sess.UserID)
	if err != nil {
		return err
	}
	if err := s.requireSeriesAction(ctx, board.SeriesID, sess.UserID, rbac.ActionFacilitate); err != nil {
		return err
	}
	if err := s.store.DeleteAgreement(ctx, agreementID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteAgreement(agreementID)
	}
	return nil
}

func (s *Service) indexAgreement(board store.Board, agreement store.Agreement) {
	if s.search == nil {
		return
	}
	s.search.IndexAgreement(search.AgreementRecord{
		ID:         agreement.ID,
		Content:    agreement.Content,
		BoardID:    board.ID,
		BoardName:  board.Name,
		SeriesID:   board.SeriesID,
		AuthorName: agreement.AuthorName,
	})
}

// Health checks

func (s *Service) CreateHealthQuestion(ctx context.Context, boardID, question string, seq int, sess Session) (map[string]any, error) {
	board, _, _, err := s.boardContext(ctx, boardID, sess.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.requireSeriesAction(ctx, board.SeriesID, sess.UserID, rbac.ActionFacilitate); err != nil {
		return nil, err
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errValidation("question is required")
	}
	item := store.HealthQuestion{
		ID:       util.NewID("hlq"),
		BoardID:  boardID,
		Question: question,
		Seq:      seq,
	}
	if err := s.store.CreateHealthQuestion(ctx, item); err != nil {
		return nil, err
	}
	return map[string]any{"question": healthQuestionJSON(item)}, nil
}

func (s *Service) ListHealthQuestions(ctx context.Context, boardID string, sess Session) (map[string]any, error) {
	if _, _, _, err := s.boardContext(ctx, boardID, sess.UserID); err != nil {
		return nil, err
	}
	questions, err := s.store.ListHealthQuestions(ctx, boardID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(questions))
	for _, question := range questions {
		items = append(items, healthQuestionJSON(question))
	}
	return map[string]any{"questions": items}, nil
}

func (s *Service) DeleteHealthQuestion(ctx context.Context, questionID string, sess Session) error {
	question, err := s.store.GetHealthQuestion(ctx, questionID)
	if err != nil {
		return err
	}
	board, _, _, err := s.boardContext(ctx, question.BoardID, sess.UserID)
	if err != nil {
		return err
	}
	if err := s.requireSeriesAction(ctx, board.SeriesID, sess.UserID, rbac.ActionFacilitate); err != nil {
		return err
	}
	return s.store.DeleteHealthQuestion(ctx, questionID)
}

// SubmitHealthResponse upserts the caller's rating for one question;
// answering again overwrites the previous rating.
func (s *Service) SubmitHealthResponse(ctx context.Context, questionID string, rating int, sess Session) (map[string]any, error) {
	question, err := s.store.GetHealthQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	board, sc, _, err := s.boardContext(ctx, question.BoardID, sess.UserID)
	if err != nil {
		return nil, err
	}
	if err := requireCapability(board, sc, scene.AllowHealthResponses); err != nil {
		return nil, err
	}
	if rating < 1 || rating > 5 {
		return nil, errValidation("rating must be between 1 and 5")
	}
	if err := s.store.UpsertHealthResponse(ctx, store.HealthResponse{
		ID:         util.NewID("hlr"),
		QuestionID: questionID,
		UserID:     sess.UserID,
		Rating:     rating,
	}); err != nil {
		return nil, err
	}
	return map[string]any{"question_id": questionID, "rating": rating}, nil
}

func (s *Service) HealthSummary(ctx context.Context, boardID string, sess Session) (map[string]any, error) {
	if _, _, _, err := s.boardContext(ctx, boardID, sess.UserID); err != nil {
		return nil, err
	}
	summaries, err := s.store.HealthSummaries(ctx, boardID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(summaries))
	for _, summary := range summaries {
		items = append(items, map[string]any{
			"question_id":    summary.QuestionID,
			"question":       summary.Question,
			"response_count": summary.ResponseCount,
			"average_rating": summary.AverageRating,
		})
	}
	return map[string]any{"summary": items}, nil
}

func healthQuestionJSON(question store.HealthQuestion) map[string]any {
	return map[string]any{
		"id":       question.ID,
		"board_id": question.BoardID,
		"question": question.Question,
		"seq":      question.Seq,
	}
}

// Presence

// Heartbeat records the caller's liveness on a board and fans the
// roster out to everyone connected.
func (s *Service) Heartbeat(ctx context.Context, boardID, activity string, sess Session) (map[string]any, error) {
	if _, _, _, err := s.boardContext(ctx, boardID, sess.UserID); err != nil {
		return nil, err
	}
	s.presence.Touch(boardID, sess.UserID, sess.DisplayName, activity)
	roster := s.presence.List(boardID)
	s.live.Emit(boardID, live.EventPresenceUpdate, map[string]any{"users": roster}, "")
	return map[string]any{"users": roster}, nil
}
