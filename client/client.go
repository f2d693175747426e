package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/campusworks/campus/internal/models"
)

// ErrStaleSession marks a response that arrived after the session it was
// issued under ended. Callers drop the result.
var ErrStaleSession = errors.New("session changed while request was in flight")

// ErrNoSession is returned when an authenticated call is made without a
// live session.
var ErrNoSession = errors.New("not authenticated")

// APIError is a structured server-side failure for a single call. A 401
// surfaces here and does not tear the session down.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (%d %s)", e.Message, e.StatusCode, e.Code)
	}
	return fmt.Sprintf("request failed (%d %s)", e.StatusCode, e.Code)
}

// Unauthorized reports whether the failure was an authentication rejection.
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// API is the REST client for campusd. Authenticated calls attach the bearer
// token from the controller and tag themselves with the session epoch;
// results landing after a login or logout are discarded as stale.
type API struct {
	baseURL    string
	httpClient *http.Client
	controller *Controller
	logger     *zap.Logger
}

// NewAPI builds a client against baseURL, e.g. "http://localhost:4000/api/v1".
func NewAPI(baseURL string, controller *Controller, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		controller: controller,
		logger:     logger,
	}
}

type envelope struct {
	Data       json.RawMessage    `json:"data"`
	Error      *envelopeError     `json:"error"`
	Pagination *models.Pagination `json:"pagination"`
	Meta       map[string]any     `json:"meta"`
}

type envelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// Login exchanges credentials for a session and persists it through the
// controller before it becomes visible.
func (a *API) Login(ctx context.Context, email, password string) (*User, error) {
	payload := models.LoginRequest{Email: email, Password: password}
	var res models.AuthResponse
	if err := a.do(ctx, http.MethodPost, "/auth/login", nil, payload, &res, false); err != nil {
		return nil, err
	}
	return a.adopt(res)
}

// Register creates an account and signs straight in, matching the server's
// register-then-authenticate flow.
func (a *API) Register(ctx context.Context, name, email, password string, role models.UserRole) (*User, error) {
	payload := models.RegisterRequest{Name: name, Email: email, Password: password, Role: role}
	var res models.AuthResponse
	if err := a.do(ctx, http.MethodPost, "/auth/register", nil, payload, &res, false); err != nil {
		return nil, err
	}
	return a.adopt(res)
}

func (a *API) adopt(res models.AuthResponse) (*User, error) {
	user := &User{
		ID:        res.User.ID,
		Name:      res.User.Name,
		Email:     res.User.Email,
		Role:      res.User.Role,
		AvatarURL: res.User.AvatarURL,
		DarkMode:  res.User.DarkMode,
	}
	if err := a.controller.Login(user, res.Token); err != nil {
		return nil, err
	}
	return user, nil
}

// Logout ends the session locally. No network I/O happens here.
func (a *API) Logout() error {
	return a.controller.Logout()
}

// Profile fetches the caller's full profile.
func (a *API) Profile(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := a.do(ctx, http.MethodGet, "/users/profile/me", nil, nil, &user, true); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile saves profile edits and refreshes the persisted session
// snapshot so the stored user matches the server.
func (a *API) UpdateProfile(ctx context.Context, req models.UpdateProfileRequest) (*models.User, error) {
	var user models.User
	if err := a.do(ctx, http.MethodPut, "/users/profile", nil, req, &user, true); err != nil {
		return nil, err
	}

	token := a.controller.Token()
	if token != "" {
		refreshed := &User{
			ID:        user.ID,
			Name:      user.Name,
			Email:     user.Email,
			Role:      user.Role,
			AvatarURL: user.AvatarURL,
			DarkMode:  user.DarkMode,
		}
		if err := a.controller.Login(refreshed, token); err != nil {
			a.logger.Warn("failed to refresh stored session", zap.Error(err))
		}
	}
	return &user, nil
}

// SetDarkMode toggles the persisted dark-mode preference.
func (a *API) SetDarkMode(ctx context.Context, darkMode bool) error {
	return a.do(ctx, http.MethodPut, "/users/dark-mode", nil, models.DarkModeRequest{DarkMode: darkMode}, nil, true)
}

// Heartbeat refreshes the caller's presence.
func (a *API) Heartbeat(ctx context.Context, online bool) error {
	return a.do(ctx, http.MethodPost, "/users/online-status", nil, models.OnlineStatusRequest{Online: online}, nil, true)
}

// Users lists chat partner candidates, excluding the caller.
func (a *API) Users(ctx context.Context, search string) ([]models.UserSummary, error) {
	query := url.Values{"excludeCurrentUser": {"true"}}
	if search != "" {
		query.Set("search", search)
	}
	var users []models.UserSummary
	if err := a.do(ctx, http.MethodGet, "/users", query, nil, &users, true); err != nil {
		return nil, err
	}
	return users, nil
}

// Courses lists the catalog with the given filters.
func (a *API) Courses(ctx context.Context, search, category string, enrolledOnly bool) ([]models.CourseDetail, error) {
	query := url.Values{}
	if search != "" {
		query.Set("search", search)
	}
	if category != "" {
		query.Set("category", category)
	}
	if enrolledOnly {
		query.Set("enrolled", "true")
	}
	var courses []models.CourseDetail
	if err := a.do(ctx, http.MethodGet, "/courses", query, nil, &courses, true); err != nil {
		return nil, err
	}
	return courses, nil
}

// Enroll joins a course.
func (a *API) Enroll(ctx context.Context, courseID string) error {
	return a.do(ctx, http.MethodPost, "/courses/"+courseID+"/enroll", nil, nil, nil, true)
}

// Drop leaves a course.
func (a *API) Drop(ctx context.Context, courseID string) error {
	return a.do(ctx, http.MethodDelete, "/courses/"+courseID+"/enroll", nil, nil, nil, true)
}

// OpenChat finds or creates the conversation with a participant.
func (a *API) OpenChat(ctx context.Context, participantID string) (*models.Conversation, error) {
	var conversation models.Conversation
	if err := a.do(ctx, http.MethodGet, "/chat/with/"+participantID, nil, nil, &conversation, true); err != nil {
		return nil, err
	}
	return &conversation, nil
}

// ChatMessages polls messages in a conversation, newest after the watermark.
func (a *API) ChatMessages(ctx context.Context, conversationID string, after time.Time) ([]models.Message, error) {
	query := url.Values{}
	if !after.IsZero() {
		query.Set("after", after.Format(time.RFC3339))
	}
	var messages []models.Message
	if err := a.do(ctx, http.MethodGet, "/chat/"+conversationID+"/messages", query, nil, &messages, true); err != nil {
		return nil, err
	}
	return messages, nil
}

// SendMessage posts a message into a conversation.
func (a *API) SendMessage(ctx context.Context, conversationID, body string) (*models.Message, error) {
	payload := models.SendMessageRequest{ConversationID: conversationID, Body: body}
	var message models.Message
	if err := a.do(ctx, http.MethodPost, "/chat/message", nil, payload, &message, true); err != nil {
		return nil, err
	}
	return &message, nil
}

// Conversations lists the caller's threads.
func (a *API) Conversations(ctx context.Context) ([]models.ConversationSummary, error) {
	var conversations []models.ConversationSummary
	if err := a.do(ctx, http.MethodGet, "/chat", nil, nil, &conversations, true); err != nil {
		return nil, err
	}
	return conversations, nil
}

// Documents lists course materials.
func (a *API) Documents(ctx context.Context, courseID string) ([]models.Document, error) {
	query := url.Values{}
	if courseID != "" {
		query.Set("course_id", courseID)
	}
	var docs []models.Document
	if err := a.do(ctx, http.MethodGet, "/documents", query, nil, &docs, true); err != nil {
		return nil, err
	}
	return docs, nil
}

// DocumentLink requests a signed download link for a document.
func (a *API) DocumentLink(ctx context.Context, documentID string) (*models.DocumentLink, error) {
	var link models.DocumentLink
	if err := a.do(ctx, http.MethodGet, "/documents/"+documentID+"/link", nil, nil, &link, true); err != nil {
		return nil, err
	}
	return &link, nil
}

// UploadDocument pushes course material as a multipart upload.
func (a *API) UploadDocument(ctx context.Context, courseID, fileName, mimeType string, content io.Reader) (*models.Document, error) {
	epoch := a.controller.Epoch()
	token := a.controller.Token()
	if token == "" {
		return nil, ErrNoSession
	}

	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	header := make(map[string][]string)
	header["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name="file"; filename="%s"`, fileName)}
	if mimeType != "" {
		header["Content-Type"] = []string{mimeType}
	}
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("read upload content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finish upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/courses/"+courseID+"/documents", buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	var doc models.Document
	if err := a.send(req, epoch, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Dashboard returns the role-shaped landing summary as raw JSON; the shape
// depends on the caller's role.
func (a *API) Dashboard(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := a.do(ctx, http.MethodGet, "/dashboard", nil, nil, &raw, true); err != nil {
		return nil, err
	}
	return raw, nil
}

func (a *API) do(ctx context.Context, method, path string, query url.Values, body, out any, authed bool) error {
	epoch := a.controller.Epoch()

	var token string
	if authed {
		token = a.controller.Token()
		if token == "" {
			return ErrNoSession
		}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	endpoint := a.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return a.send(req, epoch, out)
}

// send executes the request and decodes the envelope. The epoch captured
// when the call was issued gates the result: if the session changed while
// the request was in flight, the response is dropped.
func (a *API) send(req *http.Request, epoch uint64, out any) error {
	res, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if !a.controller.StillCurrent(epoch) {
		a.logger.Debug("dropping stale response", zap.String("path", req.URL.Path))
		return ErrStaleSession
	}

	if res.StatusCode == http.StatusNoContent {
		return nil
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			if res.StatusCode >= 400 {
				return &APIError{StatusCode: res.StatusCode, Message: http.StatusText(res.StatusCode)}
			}
			return fmt.Errorf("decode response: %w", err)
		}
	}

	if res.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: res.StatusCode, Message: http.StatusText(res.StatusCode)}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
	}
	return nil
}
