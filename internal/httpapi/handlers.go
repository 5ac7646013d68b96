package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ColinWang98/Intercultural-Town/internal/conversation"
	"github.com/ColinWang98/Intercultural-Town/internal/persona"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Detail string `json:"detail"`
}

// createRequest is the body of POST /conversations. PlayerName is optional;
// the opening exchange is between the personas, so it is not used until the
// player posts a message.
type createRequest struct {
	PersonaIDs      []string          `json:"persona_ids"`
	DynamicPersonas []persona.Profile `json:"dynamic_personas"`
	PlayerName      string            `json:"player_name"`
}

// postMessageRequest is the body of POST /conversations/{id}/messages.
type postMessageRequest struct {
	Content    string `json:"content"`
	PlayerName string `json:"player_name"`
}

// postMessageResponse carries the messages appended during one turn plus the
// composed reply text.
type postMessageResponse struct {
	Messages []conversation.Message `json:"messages"`
	Reply    string                 `json:"reply"`
}

// messagesResponse is one page of a conversation's log.
type messagesResponse struct {
	Messages []conversation.Message `json:"messages"`
	Total    int                    `json:"total"`
}

// summaryResponse is the body of GET /conversations/{id}/summary.
type summaryResponse struct {
	ConversationID string `json:"conversation_id"`
	Summary        string `json:"summary"`
	MessagesCount  int    `json:"messages_count"`
	Phase          string `json:"phase"`
}

// personaView is one entry of the GET /personas listing.
type personaView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "townchat",
		"endpoints": []string{
			"GET /personas",
			"POST /conversations",
			"GET /conversations",
			"GET /conversations/{id}",
			"DELETE /conversations/{id}",
			"GET /conversations/{id}/messages",
			"POST /conversations/{id}/messages",
			"GET /conversations/{id}/summary",
			"GET /conversations/{id}/watch",
			"GET /healthz",
			"GET /readyz",
			"GET /metrics",
		},
	})
}

func (s *Server) handleListPersonas(w http.ResponseWriter, _ *http.Request) {
	personas := s.registry.List()
	out := make([]personaView, 0, len(personas))
	for _, p := range personas {
		out = append(out, personaView{ID: p.ID, Name: p.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conv, err := s.orch.CreateConversation(r.Context(), req.PersonaIDs, req.DynamicPersonas)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.store.List(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.DropConversation(r.Context(), r.PathValue("id")); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := queryInt(r, "limit", -1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msgs, total, err := s.store.Messages(r.Context(), r.PathValue("id"), offset, limit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if msgs == nil {
		msgs = []conversation.Message{}
	}
	writeJSON(w, http.StatusOK, messagesResponse{Messages: msgs, Total: total})
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	var req postMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msgs, reply, err := s.orch.HandlePlayerMessage(r.Context(), r.PathValue("id"), req.Content, req.PlayerName)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, postMessageResponse{Messages: msgs, Reply: reply})
}

func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	summary, err := s.orch.Summarize(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	_, total, err := s.store.Messages(r.Context(), id, 0, 0)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{
		ConversationID: id,
		Summary:        summary,
		MessagesCount:  total,
		Phase:          string(s.orch.Phase(id)),
	})
}

// writeDomainError maps orchestrator and store errors onto HTTP statuses.
// Anything unrecognised is a 500, which in practice means a storage failure;
// model failures are absorbed upstream and never reach this path.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, conversation.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, conversation.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.log.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON decodes the request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("query parameter %q must be a non-negative integer, got %q", name, raw)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"detail":"encoding failed"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}
