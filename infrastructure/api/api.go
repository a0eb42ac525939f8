// Package api holds the request and response bodies of the HTTP gateway.
// Field names follow the published wire format.
package api

import (
	"anonchat/domain"
	"anonchat/domain/event"

	"github.com/samber/lo"
)

// Success is the status echoed in every successful response body.
const Success = 200

type SubmitMessageRequest struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

type SubmitMessageResponse struct {
	ID      int64  `json:"ID"`
	Sender  string `json:"sender"`
	Text    string `json:"text"`
	Success int    `json:"success"`
}

type AcknowledgeRequest struct {
	ID event.WireID `json:"ID"`
}

type AcknowledgeResponse struct {
	Success int `json:"success"`
}

type HistoryRequest struct {
	After int64 `json:"after"`
	Limit int   `json:"limit"`
}

type HistoryMessage struct {
	ID     int64  `json:"ID"`
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

type HistoryResponse struct {
	Messages []HistoryMessage `json:"messages"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func ToHistoryResponse(messages []domain.StoredMessage) *HistoryResponse {
	return &HistoryResponse{
		Messages: lo.Map(messages, func(item domain.StoredMessage, _ int) HistoryMessage {
			return HistoryMessage{ID: int64(item.ID), Sender: item.Sender, Text: item.Text}
		}),
	}
}
