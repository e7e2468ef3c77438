package server

import (
	"chat-live/auth"
	"chat-live/domain"
	"chat-live/errors"
	"chat-live/infrastructure/storage"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
)

const maxBodySize = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

type userResponse struct {
	ID            domain.UserID `json:"userId"`
	Name          string        `json:"name"`
	Email         string        `json:"email"`
	Status        domain.Status `json:"status"`
	StatusMessage string        `json:"statusMessage,omitempty"`
	Online        bool          `json:"online"`
	CreatedAt     time.Time     `json:"createdAt"`
}

type presenceResponse struct {
	UserID        domain.UserID `json:"userId"`
	Status        domain.Status `json:"status"`
	StatusMessage string        `json:"statusMessage,omitempty"`
}

type messageResponse struct {
	ID         domain.MessageID `json:"messageId"`
	RoomID     domain.RoomID    `json:"roomId"`
	SenderID   domain.UserID    `json:"senderId"`
	SenderName string           `json:"senderName"`
	Content    string           `json:"content"`
	CreatedAt  time.Time        `json:"createdAt"`
}

type messagesResponse struct {
	Messages   []messageResponse `json:"messages"`
	NextCursor *string           `json:"nextCursor"`
}

type searchResponse struct {
	Hits  []storage.SearchHit `json:"hits"`
	Total uint64              `json:"total"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError never leaks internal errors to clients.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := errors.MapToHTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.Log.Error("Request failed", "error", err)
		message = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Error: message})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	return nil
}

func roomParam(r *http.Request) (domain.RoomID, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "roomId"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: roomId: %v", errors.ErrInvalidPayload, err)
	}
	return domain.RoomID(id), nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body auth.RegisterRequest
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	creds, err := s.AuthService.Register(r.Context(), body)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.Log.Info("User registered", "user_id", creds.UserID)
	writeJSON(w, http.StatusCreated, creds)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body auth.LoginRequest
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	creds, err := s.AuthService.Login(r.Context(), body)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, creds)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	user, err := s.AuthService.Me(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{
		ID:            user.ID,
		Name:          user.Name,
		Email:         user.Email,
		Status:        user.Status,
		StatusMessage: user.StatusMessage,
		Online:        s.Hub.IsOnline(user.ID),
		CreatedAt:     user.CreatedAt,
	})
}

func (s *Server) handlePresence(w http.ResponseWriter, _ *http.Request) {
	online := lo.Map(s.Hub.OnlinePresence(), func(p domain.Presence, _ int) presenceResponse {
		return presenceResponse{UserID: p.UserID, Status: p.Status, StatusMessage: p.StatusMessage}
	})
	writeJSON(w, http.StatusOK, online)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	room, err := roomParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var cursor *string
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		cursor = &raw
	}

	messages, next, err := s.ChatService.GetMessages(r.Context(), room, cursor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messagesResponse{
		Messages: lo.Map(messages, func(m domain.Message, _ int) messageResponse {
			return messageResponse{
				ID:         m.ID,
				RoomID:     m.Room,
				SenderID:   m.SenderID,
				SenderName: m.SenderName,
				Content:    m.Content,
				CreatedAt:  m.CreatedAt,
			}
		}),
		NextCursor: next,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	room, err := roomParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	hits, total, err := s.ChatService.Search(r.Context(), room, r.URL.Query().Get("q"), offset)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if hits == nil {
		hits = []storage.SearchHit{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Hits: hits, Total: total})
}

func (s *Server) statsMap() map[string]any {
	stats := map[string]any{"hub": s.Hub.Stats()}
	if s.Monitoring != nil {
		stats["process"] = s.Monitoring.GetLatest()
	}
	return stats
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.statsMap())
}
