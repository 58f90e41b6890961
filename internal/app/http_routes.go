package app

import (
	"fmt"
	"net/http"
)

// route dispatches the path-parameterized API surface. parts holds the
// path segments after the leading "api"; returns false when no route
// matches so the caller can 404.
func (s *HTTPServer) route(w http.ResponseWriter, r *http.Request, sess Session, parts []string) bool {
	switch parts[0] {
	case "series":
		return s.routeSeries(w, r, sess, parts)
	case "boards":
		return s.routeBoards(w, r, sess, parts)
	case "scenes":
		return s.routeScenes(w, r, sess, parts)
	case "columns":
		return s.routeColumns(w, r, sess, parts)
	case "cards":
		return s.routeCards(w, r, sess, parts)
	case "comments":
		return s.routeComments(w, r, sess, parts)
	case "agreements":
		return s.routeAgreements(w, r, sess, parts)
	case "health-questions":
		return s.routeHealthQuestions(w, r, sess, parts)
	}
	return false
}

func (s *HTTPServer) routeSeries(w http.ResponseWriter, r *http.Request, sess Session, parts []string) bool {
	if len(parts) == 2 {
		seriesID := parts[1]
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.GetSeries(r.Context(), seriesID, sess)
			s.respond(w, payload, err)
		case http.MethodPut:
			var body struct {
				Name string `json:"name"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return true
			}
			payload, err := s.service.UpdateSeries(r.Context(), seriesID, body.Name, sess)
			s.respond(w, payload, err)
		case http.MethodDelete:
			s.respondErr(w, s.service.DeleteSeries(r.Context(), seriesID, sess))
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return true
	}

	if len(parts) == 3 && parts[2] == "members" && r.Method == http.MethodPost {
		var body struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		payload, err := s.service.InviteMember(r.Context(), parts[1], body.Email, body.Role, sess)
		s.respondStatus(w, http.StatusCreated, payload, err)
		return true
	}

	if len(parts) == 4 && parts[2] == "members" && r.Method == http.MethodDelete {
		s.respondErr(w, s.service.RemoveMember(r.Context(), parts[1], parts[3], sess))
		return true
	}

	if len(parts) == 3 && parts[2] == "boards" {
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.ListSeriesBoards(r.Context(), parts[1], sess)
			s.respond(w, payload, err)
		case http.MethodPost:
			var body struct {
				Name string `json:"name"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return true
			}
			payload, err := s.service.CreateBoard(r.Context(), parts[1], body.Name, sess)
			s.respondStatus(w, http.StatusCreated, payload, err)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return true
	}

	if len(parts) == 3 && parts[2] == "search" && r.Method == http.MethodGet {
		query := r.URL.Query()
		limit, err := queryInt(r, "limit", 20)
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return true
		}
		offset, err := queryInt(r, "offset", 0)
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return true
		}
		payload, err := s.service.SearchSeries(r.Context(), parts[1], query.Get("q"), query.Get("type"), limit, offset, sess)
		s.respond(w, payload, err)
		return true
	}

	return false
}

func (s *HTTPServer) routeBoards(w http.ResponseWriter, r *http.Request, sess Session, parts []string) bool {
	if len(parts) < 2 {
		return false
	}
	boardID := parts[1]

	if len(parts) == 2 {
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.GetBoardState(r.Context(), boardID, sess)
			s.respond(w, payload, err)
		case http.MethodPut:
			var body struct {
				Name             string `json:"name"`
				VotingAllocation int    `json:"voting_allocation"`
				BlameFree        bool   `json:"blame_free"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return true
			}
			payload, err := s.service.UpdateBoard(r.Context(), boardID, body.Name, body.VotingAllocation, body.BlameFree, sess)
			s.respond(w, payload, err)
		case http.MethodDelete:
			s.respondErr(w, s.service.DeleteBoard(r.Context(), boardID, sess))
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return true
	}

	if len(parts) == 3 {
		switch parts[2] {
		case "status":
			if r.Method != http.MethodPost {
				break
			}
			var body struct {
				Status string `json:"status"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return true
			}
			payload, err := s.service.UpdateBoardStatus(r.Context(), boardID, body.Status, sess)
			s.respond(w, payload, err)
			return true
		case "timer":
			if r.Method != http.MethodPost {
				break
			}
			var body struct {
				Action  string `json:"action"`
				Seconds int    `json:"seconds"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return true
			}
			payload, err := s.service.SetTimer(r.Context(), boardID, body.Action, body.Seconds, sess)
			s.respond(w, payload, err)
			return true
		case "setup":
			if r.Method != http.MethodPost {
				break
			}
			payload, err := s.service.SetupBoard(r.Context(), boardID, sess)
			s.respond(w, payload, err)
			return true
		case "presentation":
			if r.Method != http.MethodPost {
				break
			}
			var body struct {
				SelectedCardID *string `json:"selected_card_id"`
				NotesLocked    bool    `json:"notes_locked"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return true
			}
			payload, err := s.service.SetPresentationState(r.Context(), boardID, body.SelectedCardID, body.NotesLocked, sess)
			s.respond(w, payload, err)
			return true
		case "export":
			if r.Method != http.MethodGet {
				break
			}
			s.handleExport(w, r, sess, boardID)
			return true
		case "votes":
			if r.Method != http.MethodDelete {
				break
			}
			s.respondErr(w, s.service.ClearVotes(r.Context(), boardID, sess))
			return true
		case "agreements":
			switch r.Method {
			case http.MethodGet:
				payload, err := s.service.ListBoardAgreements(r.Context(), boardID, sess)
				s.respond(w, payload, err)
			case http.MethodPost:
				var body struct {
					Content string `json:"content"`
				}
				if err := decodeBody(r, &body); err != nil {
					writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
					return true
				}
				payload, err := s.service.CreateAgreement(r.Context(), boardID, body.Content, sess)
				s.respondStatus(w, http.StatusCreated, payload, err)
			default:
				writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			}
			return true
		case "presence":
			if r.Method != http.MethodPost {
				break
			}
			var body struct {
				Activity string `json:"activity"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return true
			}
			payload, err := s.service.Heartbeat(r.Context(), boardID, body.Activity, sess)
			s.respond(w, payload, err)
			return true
		case "events":
			if r.Method != http.MethodGet {
				break
			}
			s.handleEvents(w, r, sess, boardID)
			return true
		case "scenes":
			if r.Method != http.MethodPost {
				break
			}
			var body struct {
				Title string   `json:"title"`
				Mode  string   `json:"mode"`
				Seq   int      `json:"seq"`
				Flags []string `json:"flags"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return true
			}
			payload, err := s.service.CreateScene(r.Context(), boardID, body.Title, body.Mode, body.Seq, body.Flags, sess)
			s.respondStatus(w, http.StatusCreated, payload, err)
			return true
		case "columns":
			if r.Method != http.MethodPost {
				break
			}
			var body struct {
				Title      string `json:"title"`
				Appearance string `json:"appearance"`
				Seq        int    `json:"seq"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return true
			}
			payload, err := s.service.CreateColumn(r.Context(), boardID, body.Title, body.Appearance, body.Seq, sess)
			s.respondStatus(w, http.StatusCreated, payload, err)
			return true
		case "health":
			if r.Method != http.MethodGet {
				break
			}
			payload, err := s.service.HealthSummary(r.Context(), boardID, sess)
			s.respond(w, payload, err)
			return true
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return true
	}

	if len(parts) == 4 && parts[2] == "columns" && parts[3] == "reorder" && r.Method == http.MethodPost {
		var body struct {
			ColumnIDs []string `json:"column_ids"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		s.respondErr(w, s.service.ReorderColumns(r.Context(), boardID, body.ColumnIDs, sess))
		return true
	}

	if len(parts) == 4 && parts[2] == "cards" && parts[3] == "group" && r.Method == http.MethodPost {
		var body struct {
			CardIDs []string `json:"card_ids"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		payload, err := s.service.GroupCards(r.Context(), boardID, body.CardIDs, sess)
		s.respond(w, payload, err)
		return true
	}

	if len(parts) == 4 && parts[2] == "health" && parts[3] == "questions" {
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.ListHealthQuestions(r.Context(), boardID, sess)
			s.respond(w, payload, err)
		case http.MethodPost:
			var body struct {
				Question string `json:"question"`
				Seq      int    `json:"seq"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return true
			}
			payload, err := s.service.CreateHealthQuestion(r.Context(), boardID, body.Question, body.Seq, sess)
			s.respondStatus(w, http.StatusCreated, payload, err)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return true
	}

	if len(parts) == 5 && parts[2] == "scenes" && parts[4] == "activate" && r.Method == http.MethodPost {
		payload, err := s.service.ActivateScene(r.Context(), boardID, parts[3], sess)
		s.respond(w, payload, err)
		return true
	}

	if len(parts) == 3 && parts[2] == "cards" && r.Method == http.MethodPost {
		var body struct {
			ColumnID string `json:"column_id"`
			Content  string `json:"content"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		payload, err := s.service.CreateCard(r.Context(), boardID, body.ColumnID, body.Content, sess)
		s.respondStatus(w, http.StatusCreated, payload, err)
		return true
	}

	return false
}

func (s *HTTPServer) routeScenes(w http.ResponseWriter, r *http.Request, sess Session, parts []string) bool {
	if len(parts) == 2 {
		sceneID := parts[1]
		switch r.Method {
		case http.MethodPut:
			var body struct {
				Title string `json:"title"`
				Mode  string `json:"mode"`
				Seq   int    `json:"seq"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return true
			}
			payload, err := s.service.UpdateScene(r.Context(), sceneID, body.Title, body.Mode, body.Seq, sess)
			s.respond(w, payload, err)
		case http.MethodDelete:
			s.respondErr(w, s.service.DeleteScene(r.Context(), sceneID, sess))
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return true
	}

	if len(parts) == 3 && parts[2] == "flags" && r.Method == http.MethodPut {
		var body struct {
			Flags []string `json:"flags"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		payload, err := s.service.SetSceneFlags(r.Context(), parts[1], body.Flags, sess)
		s.respond(w, payload, err)
		return true
	}

	if len(parts) == 4 && parts[2] == "columns" && r.Method == http.MethodPut {
		var body struct {
			Visible bool `json:"visible"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		s.respondErr(w, s.service.SetSceneColumnVisibility(r.Context(), parts[1], parts[3], body.Visible, sess))
		return true
	}

	return false
}

func (s *HTTPServer) routeColumns(w http.ResponseWriter, r *http.Request, sess Session, parts []string) bool {
	if len(parts) != 2 {
		return false
	}
	columnID := parts[1]
	switch r.Method {
	case http.MethodPut:
		var body struct {
			Title      string `json:"title"`
			Appearance string `json:"appearance"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		payload, err := s.service.UpdateColumn(r.Context(), columnID, body.Title, body.Appearance, sess)
		s.respond(w, payload, err)
	case http.MethodDelete:
		s.respondErr(w, s.service.DeleteColumn(r.Context(), columnID, sess))
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
	return true
}

func (s *HTTPServer) routeCards(w http.ResponseWriter, r *http.Request, sess Session, parts []string) bool {
	if len(parts) == 2 {
		cardID := parts[1]
		switch r.Method {
		case http.MethodPut:
			var body struct {
				Content string `json:"content"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return true
			}
			payload, err := s.service.UpdateCard(r.Context(), cardID, body.Content, sess)
			s.respond(w, payload, err)
		case http.MethodDelete:
			s.respondErr(w, s.service.DeleteCard(r.Context(), cardID, sess))
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return true
	}

	if len(parts) != 3 {
		return false
	}
	cardID := parts[1]

	switch parts[2] {
	case "move":
		if r.Method != http.MethodPost {
			break
		}
		var body struct {
			ColumnID string `json:"column_id"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		payload, err := s.service.MoveCard(r.Context(), cardID, body.ColumnID, sess)
		s.respond(w, payload, err)
		return true
	case "vote":
		if r.Method != http.MethodPost {
			break
		}
		var body struct {
			Delta int `json:"delta"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		payload, err := s.service.Vote(r.Context(), cardID, body.Delta, sess)
		s.respond(w, payload, err)
		return true
	case "ungroup":
		if r.Method != http.MethodPost {
			break
		}
		s.respondErr(w, s.service.UngroupCard(r.Context(), cardID, sess))
		return true
	case "comments":
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.ListComments(r.Context(), cardID, sess)
			s.respond(w, payload, err)
		case http.MethodPost:
			var body struct {
				Content string `json:"content"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return true
			}
			payload, err := s.service.AddComment(r.Context(), cardID, body.Content, sess)
			s.respondStatus(w, http.StatusCreated, payload, err)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return true
	case "reactions":
		if r.Method != http.MethodPost {
			break
		}
		var body struct {
			Emoji string `json:"emoji"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		payload, err := s.service.ToggleReaction(r.Context(), cardID, body.Emoji, sess)
		s.respond(w, payload, err)
		return true
	}

	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	return true
}

func (s *HTTPServer) routeComments(w http.ResponseWriter, r *http.Request, sess Session, parts []string) bool {
	if len(parts) == 2 && r.Method == http.MethodDelete {
		s.respondErr(w, s.service.DeleteComment(r.Context(), parts[1], sess))
		return true
	}
	if len(parts) == 3 && parts[2] == "promote" && r.Method == http.MethodPost {
		payload, err := s.service.PromoteComment(r.Context(), parts[1], sess)
		s.respondStatus(w, http.StatusCreated, payload, err)
		return true
	}
	return false
}

func (s *HTTPServer) routeAgreements(w http.ResponseWriter, r *http.Request, sess Session, parts []string) bool {
	if len(parts) != 2 {
		return false
	}
	agreementID := parts[1]
	switch r.Method {
	case http.MethodPut:
		var body struct {
			Content   string `json:"content"`
			Completed bool   `json:"completed"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		payload, err := s.service.UpdateAgreement(r.Context(), agreementID, body.Content, body.Completed, sess)
		s.respond(w, payload, err)
	case http.MethodDelete:
		s.respondErr(w, s.service.DeleteAgreement(r.Context(), agreementID, sess))
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
	return true
}

func (s *HTTPServer) routeHealthQuestions(w http.ResponseWriter, r *http.Request, sess Session, parts []string) bool {
	if len(parts) == 2 && r.Method == http.MethodDelete {
		s.respondErr(w, s.service.DeleteHealthQuestion(r.Context(), parts[1], sess))
		return true
	}
	if len(parts) == 3 && parts[2] == "responses" && r.Method == http.MethodPost {
		var body struct {
			Rating int `json:"rating"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		payload, err := s.service.SubmitHealthResponse(r.Context(), parts[1], body.Rating, sess)
		s.respond(w, payload, err)
		return true
	}
	return false
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, sess Session, boardID string) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "pdf"
	}
	result, err := s.service.ExportBoard(r.Context(), boardID, format, sess)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}
