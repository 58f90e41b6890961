package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"teambeat/api/internal/archive"
	"teambeat/api/internal/auth"
	"teambeat/api/internal/authpw"
	"teambeat/api/internal/config"
	"teambeat/api/internal/email"
	"teambeat/api/internal/export"
	"teambeat/api/internal/live"
	"teambeat/api/internal/minutes"
	"teambeat/api/internal/presence"
	"teambeat/api/internal/rbac"
	"teambeat/api/internal/search"
	"teambeat/api/internal/session"
	"teambeat/api/internal/store"
	"teambeat/api/internal/util"
)

type Session struct {
	Token       string
	UserID      string
	Email       string
	DisplayName string
	ExpiresAt   time.Time
}

// dataStore is the repository surface the service consumes; satisfied
// by *store.PostgresStore and faked in tests.
type dataStore interface {
	Ping(context.Context) error
	WithTx(context.Context, func(store.Querier) error) error

	CreateUser(context.Context, store.User) error
	GetUserByEmail(context.Context, string) (store.User, error)
	GetUserByID(context.Context, string) (store.User, error)
	UpdateUserPassword(context.Context, string, string) error
	UpdateUserName(context.Context, string, string) error
	EnsureUserByEmail(context.Context, string, string) (store.User, error)

	CreateSeries(context.Context, store.Series) error
	GetSeries(context.Context, string) (store.Series, error)
	ListSeriesForUser(context.Context, string) ([]store.Series, error)
	UpdateSeriesName(context.Context, string, string) error
	DeleteSeries(context.Context, string) error
	AddSeriesMember(context.Context, string, string, string) error
	RemoveSeriesMember(context.Context, string, string) error
	GetSeriesRole(context.Context, string, string) (string, error)
	ListSeriesMembers(context.Context, string) ([]store.SeriesMember, error)

	CreateBoard(context.Context, store.Board) error
	GetBoard(context.Context, string) (store.Board, error)
	ListBoardsBySeries(context.Context, string) ([]store.Board, error)
	UpdateBoard(context.Context, string, string, int, bool) error
	UpdateBoardStatus(context.Context, string, string) error
	SetCurrentScene(context.Context, string, string) error
	SetBoardTimer(context.Context, string, *time.Time, int) error
	SetPresentation(context.Context, string, *string, bool) error
	DeleteBoard(context.Context, string) error
	SetupBoardTemplate(context.Context, string, []store.Column, []store.Scene) error

	CreateColumn(context.Context, store.Column) error
	GetColumn(context.Context, string) (store.Column, error)
	ListColumns(context.Context, string) ([]store.Column, error)
	UpdateColumn(context.Context, string, string, string) error
	DeleteColumn(context.Context, string) error
	ReorderColumns(context.Context, string, []string) error
	SetSceneColumnVisibility(context.Context, string, string, bool) error
	HiddenColumnIDs(context.Context, string) (map[string]bool, error)

	CreateScene(context.Context, store.Scene) error
	GetScene(context.Context, string) (store.Scene, error)
	ListScenes(context.Context, string) ([]store.Scene, error)
	UpdateScene(context.Context, string, string, string, int) error
	DeleteScene(context.Context, string) error
	SetSceneFlags(context.Context, string, []string) error

	CreateCard(context.Context, store.Card) error
	GetCard(context.Context, string) (store.Card, error)
	ListCardsByBoard(context.Context, string) ([]store.Card, error)
	UpdateCardContent(context.Context, string, string) error
	MoveCard(context.Context, string, string) error
	DeleteCard(context.Context, string) error
	GroupCards(context.Context, []string) (string, error)
	UngroupCard(context.Context, string) error

	AddVote(context.Context, store.Vote) error
	RemoveLatestVote(context.Context, string, string) (bool, error)
	ClearVotes(context.Context, string) error
	CountUserVotesOnBoard(context.Context, string, string) (int, error)
	CountUserVotesOnCard(context.Context, string, string) (int, error)
	VoteCountsByCard(context.Context, string) (map[string]int, error)
	CheckVotingAllocation(context.Context, string, string) (store.VoteAllocation, error)

	CreateComment(context.Context, store.Comment) error
	GetComment(context.Context, string) (store.Comment, error)
	ListCommentsByCard(context.Context, string) ([]store.Comment, error)
	DeleteComment(context.Context, string) error
	ToggleReaction(context.Context, string, string, string, string) (bool, error)
	MarkCommentAgreement(context.Context, string) error

	CreateAgreement(context.Context, store.Agreement) error
	GetAgreement(context.Context, string) (store.Agreement, error)
	ListAgreements(context.Context, string) ([]store.Agreement, error)
	UpdateAgreement(context.Context, string, string, bool) error
	DeleteAgreement(context.Context, string) error

	CreateHealthQuestion(context.Context, store.HealthQuestion) error
	GetHealthQuestion(context.Context, string) (store.HealthQuestion, error)
	ListHealthQuestions(context.Context, string) ([]store.HealthQuestion, error)
	DeleteHealthQuestion(context.Context, string) error
	UpsertHealthResponse(context.Context, store.HealthResponse) error
	HealthSummaries(context.Context, string) ([]store.HealthSummary, error)
}

// Deps bundles the side services wired in at boot. Search, archive,
// minutes, and email may be nil when not configured.
type Deps struct {
	Sessions session.Store
	Presence *presence.Tracker
	Live     *live.Broadcaster
	Auth     *authpw.Service
	Search   *search.Service
	Export   *export.Service
	Archive  *archive.Uploader
	Minutes  *minutes.Service
	Email    *email.Service
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions session.Store
	presence *presence.Tracker
	live     *live.Broadcaster
	authpw   *authpw.Service
	search   *search.Service
	export   *export.Service
	archive  *archive.Uploader
	minutes  *minutes.Service
	email    *email.Service
}

func New(cfg config.Config, dataStore dataStore, deps Deps) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: deps.Sessions,
		presence: deps.Presence,
		live:     deps.Live,
		authpw:   deps.Auth,
		search:   deps.Search,
		export:   deps.Export,
		archive:  deps.Archive,
		minutes:  deps.Minutes,
		email:    deps.Email,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) Broadcaster() *live.Broadcaster {
	return s.live
}

func (s *Service) Presence() *presence.Tracker {
	return s.presence
}

func (s *Service) SMTPConfigured() bool {
	return s.email != nil && s.email.IsConfigured()
}

// Sessions

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	token, err := auth.NewSessionToken()
	if err != nil {
		return Session{}, err
	}
	now := time.Now()
	rec := session.Record{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.cfg.SessionTTL),
	}
	if err := s.sessions.Save(ctx, auth.HashToken(token), rec); err != nil {
		return Session{}, fmt.Errorf("save session: %w", err)
	}
	return Session{
		Token:       token,
		UserID:      rec.UserID,
		Email:       rec.Email,
		DisplayName: rec.DisplayName,
		ExpiresAt:   rec.ExpiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	rec, err := s.sessions.Lookup(ctx, auth.HashToken(token))
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:       token,
		UserID:      rec.UserID,
		Email:       rec.Email,
		DisplayName: rec.DisplayName,
		ExpiresAt:   rec.ExpiresAt,
	}, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Revoke(ctx, auth.HashToken(token))
}

// Auth

func (s *Service) Register(ctx context.Context, emailAddr, password, displayName string) (Session, map[string]any, error) {
	user, err := s.authpw.Register(ctx, authpw.RegisterRequest{
		Email:       emailAddr,
		Password:    password,
		DisplayName: displayName,
	})
	if err != nil {
		if errors.Is(err, authpw.ErrEmailTaken) {
			return Session{}, nil, errConflict("Email already registered")
		}
		return Session{}, nil, domainError(http.StatusBadRequest, "REGISTRATION_FAILED", err.Error(), nil)
	}
	sess, err := s.issueSession(ctx, user)
	if err != nil {
		return Session{}, nil, err
	}
	return sess, userPayload(user), nil
}

func (s *Service) Login(ctx context.Context, emailAddr, password string) (Session, map[string]any, error) {
	user, err := s.authpw.Login(ctx, emailAddr, password)
	if err != nil {
		return Session{}, nil, domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
	}
	sess, err := s.issueSession(ctx, user)
	if err != nil {
		return Session{}, nil, err
	}
	return sess, userPayload(user), nil
}

// RequestPasswordReset mails a reset link when SMTP is configured. The
// returned token is surfaced in the response only as a dev bypass when
// it is not. Unknown emails report success either way.
func (s *Service) RequestPasswordReset(ctx context.Context, emailAddr string) (string, error) {
	token, user, err := s.authpw.RequestPasswordReset(ctx, emailAddr)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", nil
	}
	if s.SMTPConfigured() {
		resetURL := fmt.Sprintf("%s/reset-password?token=%s", strings.TrimRight(s.cfg.BaseURL, "/"), token)
		if err := s.email.SendPasswordResetEmail(user.Email, user.DisplayName, resetURL); err != nil {
			log.Printf("send password reset email to %s: %v", user.Email, err)
		}
		return "", nil
	}
	return token, nil
}

func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := s.authpw.ResetPassword(ctx, token, newPassword); err != nil {
		if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
			return domainError(http.StatusBadRequest, "RESET_FAILED", "Reset token is invalid or expired", nil)
		}
		return domainError(http.StatusBadRequest, "RESET_FAILED", err.Error(), nil)
	}
	return nil
}

func userPayload(user store.User) map[string]any {
	return map[string]any{
		"user": map[string]any{
			"id":           user.ID,
			"email":        user.Email,
			"display_name": user.DisplayName,
		},
	}
}

// Series

func (s *Service) CreateSeries(ctx context.Context, name string, sess Session) (map[string]any, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errValidation("name is required")
	}
	series := store.Series{
		ID:        util.NewID("srs"),
		Name:      name,
		CreatedBy: sess.UserID,
	}
	if err := s.store.CreateSeries(ctx, series); err != nil {
		return nil, err
	}
	if err := s.store.AddSeriesMember(ctx, series.ID, sess.UserID, string(rbac.RoleAdmin)); err != nil {
		return nil, err
	}
	if s.minutes != nil {
		if err := s.minutes.EnsureSeriesRepo(series.ID, series.Name); err != nil {
			log.Printf("init minutes repo for %s: %v", series.ID, err)
		}
	}
	return map[string]any{"series": seriesJSON(series, string(rbac.RoleAdmin))}, nil
}

func (s *Service) ListSeries(ctx context.Context, sess Session) (map[string]any, error) {
	items, err := s.store.ListSeriesForUser(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	payload := make([]map[string]any, 0, len(items))
	for _, series := range items {
		role, err := s.store.GetSeriesRole(ctx, series.ID, sess.UserID)
		if err != nil || role == "" {
			role = string(rbac.RoleMember)
		}
		payload = append(payload, seriesJSON(series, role))
	}
	return map[string]any{"series": payload}, nil
}

func (s *Service) GetSeries(ctx context.Context, seriesID string, sess Session) (map[string]any, error) {
	role, err := s.roleInSeries(ctx, seriesID, sess.UserID)
	if err != nil {
		return nil, err
	}
	series, err := s.store.GetSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	members, err := s.store.ListSeriesMembers(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	boards, err := s.store.ListBoardsBySeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}

	memberItems := make([]map[string]any, 0, len(members))
	for _, member := range members {
		memberItems = append(memberItems, map[string]any{
			"user_id":      member.UserID,
			"display_name": member.DisplayName,
			"email":        member.Email,
			"role":         member.Role,
		})
	}
	boardItems := make([]map[string]any, 0, len(boards))
	for _, board := range boards {
		boardItems = append(boardItems, boardJSON(board))
	}
	return map[string]any{
		"series":  seriesJSON(series, string(role)),
		"members": memberItems,
		"boards":  boardItems,
	}, nil
}

func (s *Service) ListSeriesBoards(ctx context.Context, seriesID string, sess Session) (map[string]any, error) {
	if _, err := s.roleInSeries(ctx, seriesID, sess.UserID); err != nil {
		return nil, err
	}
	boards, err := s.store.ListBoardsBySeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(boards))
	for _, board := range boards {
		items = append(items, boardJSON(board))
	}
	return map[string]any{"boards": items}, nil
}

func (s *Service) UpdateSeries(ctx context.Context, seriesID, name string, sess Session) (map[string]any, error) {
	if err := s.requireSeriesAction(ctx, seriesID, sess.UserID, rbac.ActionFacilitate); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errValidation("name is required")
	}
	if err := s.store.UpdateSeriesName(ctx, seriesID, name); err != nil {
		return nil, err
	}
	series, err := s.store.GetSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	role, _ := s.store.GetSeriesRole(ctx, seriesID, sess.UserID)
	return map[string]any{"series": seriesJSON(series, string(rbac.Normalize(role)))}, nil
}

func (s *Service) DeleteSeries(ctx context.Context, seriesID string, sess Session) error {
	if err := s.requireSeriesAction(ctx, seriesID, sess.UserID, rbac.ActionAdmin); err != nil {
		return err
	}
	return s.store.DeleteSeries(ctx, seriesID)
}

// InviteMember adds a user to the series by email, creating a
// placeholder account when no user exists yet, and mails an invitation
// when SMTP is configured.
func (s *Service) InviteMember(ctx context.Context, seriesID, emailAddr, role string, sess Session) (map[string]any, error) {
	if err := s.requireSeriesAction(ctx, seriesID, sess.UserID, rbac.ActionFacilitate); err != nil {
		return nil, err
	}
	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))
	if emailAddr == "" {
		return nil, errValidation("email is required")
	}
	memberRole := rbac.Normalize(role)
	series, err := s.store.GetSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	user, err := s.store.EnsureUserByEmail(ctx, emailAddr, displayNameFromEmail(emailAddr))
	if err != nil {
		return nil, err
	}
	if err := s.store.AddSeriesMember(ctx, seriesID, user.ID, string(memberRole)); err != nil {
		return nil, err
	}
	if s.SMTPConfigured() {
		seriesURL := fmt.Sprintf("%s/series/%s", strings.TrimRight(s.cfg.BaseURL, "/"), seriesID)
		if err := s.email.SendInvitationEmail(user.Email, sess.DisplayName, series.Name, seriesURL); err != nil {
			log.Printf("send invitation email to %s: %v", user.Email, err)
		}
	}
	return map[string]any{
		"member": map[string]any{
			"user_id":      user.ID,
			"display_name": user.DisplayName,
			"email":        user.Email,
			"role":         string(memberRole),
		},
	}, nil
}

func (s *Service) RemoveMember(ctx context.Context, seriesID, userID string, sess Session) error {
	// Members may leave on their own; removing someone else takes admin.
	if userID != sess.UserID {
		if err := s.requireSeriesAction(ctx, seriesID, sess.UserID, rbac.ActionAdmin); err != nil {
			return err
		}
	}
	return s.store.RemoveSeriesMember(ctx, seriesID, userID)
}

// SearchSeries queries cards and agreements within one series.
func (s *Service) SearchSeries(ctx context.Context, seriesID, text, filterType string, limit, offset int, sess Session) (map[string]any, error) {
	if _, err := s.roleInSeries(ctx, seriesID, sess.UserID); err != nil {
		return nil, err
	}
	if s.search == nil {
		return nil, domainError(http.StatusServiceUnavailable, "SEARCH_UNAVAILABLE", "Search is not configured", nil)
	}
	resp := s.search.Search(search.Query{
		Text:       text,
		SeriesID:   seriesID,
		FilterType: search.ResultType(filterType),
		Limit:      limit,
		Offset:     offset,
	})
	return map[string]any{
		"results": resp.Results,
		"total":   resp.Total,
		"query":   resp.Query,
	}, nil
}

// Role helpers

func (s *Service) roleInSeries(ctx context.Context, seriesID, userID string) (rbac.Role, error) {
	role, err := s.store.GetSeriesRole(ctx, seriesID, userID)
	if err != nil {
		return "", err
	}
	if role == "" {
		return "", errForbidden("Not a member of this series")
	}
	return rbac.Normalize(role), nil
}

func (s *Service) requireSeriesAction(ctx context.Context, seriesID, userID string, action rbac.Action) error {
	role, err := s.roleInSeries(ctx, seriesID, userID)
	if err != nil {
		return err
	}
	if !rbac.Can(role, action) {
		return errForbidden("")
	}
	return nil
}

func seriesJSON(series store.Series, role string) map[string]any {
	return map[string]any{
		"id":         series.ID,
		"name":       series.Name,
		"created_by": series.CreatedBy,
		"created_at": series.CreatedAt,
		"your_role":  role,
	}
}

func displayNameFromEmail(emailAddr string) string {
	local := emailAddr
	if at := strings.Index(emailAddr, "@"); at > 0 {
		local = emailAddr[:at]
	}
	if local == "" {
		return "Invited member"
	}
	return local
}
