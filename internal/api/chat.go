package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/ridelens/ridelens/internal/chat"
	"github.com/ridelens/ridelens/internal/query"
)

const maxQuestionBytes = 16 << 10

type askRequest struct {
	Question string `json:"question"`
}

// askResponse keeps the wire shape of the chat endpoint: exactly one of
// Answer and Error is non-null.
type askResponse struct {
	GeneratedSQL *string     `json:"generatedSql"`
	Answer       []query.Row `json:"answer"`
	Error        *string     `json:"error"`
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Chat == nil {
		writeChatError(w, http.StatusNotImplemented, "", "chat is not configured")
		return
	}

	var request askRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxQuestionBytes)).Decode(&request); err != nil {
		writeChatError(w, http.StatusBadRequest, "", "invalid request body: "+err.Error())
		return
	}
	question := strings.TrimSpace(request.Question)
	if question == "" {
		writeChatError(w, http.StatusBadRequest, "", "question is required")
		return
	}

	outcome := deps.Chat.Answer(r.Context(), question)
	if outcome.Err != nil {
		writeChatError(w, outcome.Err.Kind.HTTPStatus(), outcome.SQL, outcome.Err.Message)
		return
	}

	rows := outcome.Rows
	if rows == nil {
		rows = []query.Row{}
	}
	writeJSON(w, http.StatusOK, askResponse{GeneratedSQL: optional(outcome.SQL), Answer: rows})
}

func writeChatError(w http.ResponseWriter, status int, sql, message string) {
	writeJSON(w, status, askResponse{GeneratedSQL: optional(sql), Error: &message})
}

func writeChatRateLimited(w http.ResponseWriter, _ *http.Request) {
	writeChatError(w, http.StatusTooManyRequests, "", "Too many questions, slow down and try again shortly.")
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

var _ Answerer = (*chat.Service)(nil)
