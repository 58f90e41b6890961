package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"teambeat/api/internal/auth"
	"teambeat/api/internal/session"
	"teambeat/api/internal/store"
)

const sessionCookieName = "teambeat_session"

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}
		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}
		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	// Auth routes (no session required)
	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/register" {
		s.handleRegister(w, r)
		return
	}
	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/login" {
		s.handleLogin(w, r)
		return
	}
	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/reset-password/request" {
		s.handleRequestReset(w, r)
		return
	}
	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/reset-password" {
		s.handleResetPassword(w, r)
		return
	}
	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/logout" {
		_ = s.service.Logout(r.Context(), sessionToken(r))
		clearSessionCookie(w)
		writeOK(w, http.StatusOK, map[string]any{})
		return
	}

	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/auth/me" {
		writeOK(w, http.StatusOK, map[string]any{
			"user": map[string]any{
				"id":           session.UserID,
				"email":        session.Email,
				"display_name": session.DisplayName,
			},
			"expires_at": session.ExpiresAt,
		})
		return
	}

	if r.URL.Path == "/api/series" {
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.ListSeries(r.Context(), session)
			s.respond(w, payload, err)
		case http.MethodPost:
			var body struct {
				Name string `json:"name"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.CreateSeries(r.Context(), body.Name, session)
			s.respondStatus(w, http.StatusCreated, payload, err)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) >= 2 && parts[0] == "api" {
		if s.route(w, r, session, parts[1:]) {
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"display_name"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	sess, payload, err := s.service.Register(r.Context(), body.Email, body.Password, body.DisplayName)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	setSessionCookie(w, sess)
	payload["token"] = sess.Token
	writeOK(w, http.StatusCreated, payload)
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	sess, payload, err := s.service.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	setSessionCookie(w, sess)
	payload["token"] = sess.Token
	writeOK(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleRequestReset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	devToken, err := s.service.RequestPasswordReset(r.Context(), body.Email)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	payload := map[string]any{
		"message": "If an account exists, a reset email has been sent",
	}
	// Dev bypass: surface the token when email delivery is not configured.
	if devToken != "" {
		payload["dev_reset_token"] = devToken
	}
	writeOK(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := s.service.ResetPassword(r.Context(), body.Token, body.NewPassword); err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"message": "Password reset successfully"})
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := sessionToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return Session{}, false
	}
	sess, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Session is invalid or expired", nil)
		return Session{}, false
	}
	return sess, true
}

// respond writes a service payload or maps the error, the tail call of
// most handlers.
func (s *HTTPServer) respond(w http.ResponseWriter, payload map[string]any, err error) {
	s.respondStatus(w, http.StatusOK, payload, err)
}

func (s *HTTPServer) respondStatus(w http.ResponseWriter, status int, payload map[string]any, err error) {
	if err != nil {
		errStatus, code, message, details := mapError(err)
		writeError(w, errStatus, code, message, details)
		return
	}
	writeOK(w, status, payload)
}

func (s *HTTPServer) respondErr(w http.ResponseWriter, err error) {
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{})
}

// Session transport: HTTP-only cookie for browsers, bearer header as a
// fallback for API clients.

func sessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

func setSessionCookie(w http.ResponseWriter, sess Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Middleware: request id, CORS, structured request log.

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}

		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush lets the SSE handler stream through the recorder.
func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Access-Control-Allow-Credentials", "true")
	header.Set("Cache-Control", "no-store")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeOK wraps every successful payload in the success envelope.
func writeOK(w http.ResponseWriter, status int, payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["success"] = true
	writeJSON(w, status, payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"success": false,
		"code":    code,
		"error":   message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return parsed, nil
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, store.ErrAlreadyMember) {
		return http.StatusConflict, "CONFLICT", "User is already a member of this series", nil
	}
	if errors.Is(err, session.ErrNotFound) || errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
