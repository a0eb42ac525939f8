// Package gateway exposes the delivery coordinator over plain HTTP, the way
// the first web clients talked to it: JSON or form bodies in, JSON out, and a
// websocket carrying the broadcast events.
package gateway

import (
	"anonchat/contract"
	"anonchat/domain"
	"anonchat/domain/event"
	"anonchat/errors"
	"anonchat/infrastructure/api"
	"anonchat/sink"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const writeWait = 10 * time.Second

type Handler struct {
	log                  *slog.Logger
	coordinator          contract.Coordinator
	gatherer             prometheus.Gatherer
	connectionBufferSize int
	historyLimit         int
	upgrader             websocket.Upgrader
}

func NewHandler(log *slog.Logger, coordinator contract.Coordinator, gatherer prometheus.Gatherer,
	connectionBufferSize, historyLimit int) *Handler {
	return &Handler{
		log:                  log,
		coordinator:          coordinator,
		gatherer:             gatherer,
		connectionBufferSize: connectionBufferSize,
		historyLimit:         historyLimit,
		upgrader: websocket.Upgrader{
			// Anonymous clients come from anywhere.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Router registers every route of the gateway.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", h.health).Methods(http.MethodGet)
	r.HandleFunc("/messages", h.submitMessage).Methods(http.MethodPost)
	r.HandleFunc("/messages", h.history).Methods(http.MethodGet)
	r.HandleFunc("/delivered", h.acknowledgeDelivery).Methods(http.MethodPost)
	r.HandleFunc("/ws", h.events).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, api.ErrorResponse{Error: "Not Found"})
	})
	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, "It works!")
}

func (h *Handler) submitMessage(w http.ResponseWriter, r *http.Request) {
	var body api.SubmitMessageRequest
	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			h.writeError(w, fmt.Errorf("%w: %w", errors.ErrInvalidMessage, err))
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			h.writeError(w, fmt.Errorf("%w: %w", errors.ErrInvalidMessage, err))
			return
		}
		body.Sender = r.PostForm.Get("sender")
		body.Text = r.PostForm.Get("text")
	}

	id, err := h.coordinator.SubmitMessage(r.Context(), domain.SubmitMessageCommand{
		Sender: body.Sender,
		Text:   body.Text,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.SubmitMessageResponse{
		ID:      int64(id),
		Sender:  body.Sender,
		Text:    body.Text,
		Success: api.Success,
	})
}

func (h *Handler) acknowledgeDelivery(w http.ResponseWriter, r *http.Request) {
	var body api.AcknowledgeRequest
	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			h.writeError(w, fmt.Errorf("%w: %w", errors.ErrInvalidMessage, err))
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			h.writeError(w, fmt.Errorf("%w: %w", errors.ErrInvalidMessage, err))
			return
		}
		id, err := strconv.ParseInt(r.PostForm.Get("ID"), 10, 64)
		if err != nil {
			h.writeError(w, fmt.Errorf("%w: ID: %w", errors.ErrInvalidMessage, err))
			return
		}
		body.ID = event.WireID(id)
	}

	err := h.coordinator.AcknowledgeDelivery(r.Context(), domain.AcknowledgeCommand{ID: domain.ServerID(body.ID)})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.AcknowledgeResponse{Success: api.Success})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	after, err := intParam(query.Get("after"))
	if err != nil {
		h.writeError(w, fmt.Errorf("%w: after: %w", errors.ErrInvalidMessage, err))
		return
	}
	limit, err := intParam(query.Get("limit"))
	if err != nil {
		h.writeError(w, fmt.Errorf("%w: limit: %w", errors.ErrInvalidMessage, err))
		return
	}
	if limit <= 0 || (h.historyLimit > 0 && int(limit) > h.historyLimit) {
		limit = int64(h.historyLimit)
	}

	messages, err := h.coordinator.History(r.Context(), domain.HistoryCommand{
		After: domain.ServerID(after),
		Limit: int(limit),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.ToHistoryResponse(messages))
}

// events upgrades to a websocket and pushes every broadcast event as a text
// frame holding its envelope. Anything the client sends is discarded; the
// connection ends when the client goes away.
func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		h.log.Debug("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	connection := sink.NewConnectionSink(h.connectionBufferSize)
	subscriberID := uuid.NewString()
	if err = h.coordinator.Subscribe(subscriberID, connection); err != nil {
		h.log.Error("Websocket subscription failed", "error", err)
		return
	}
	defer h.coordinator.Unsubscribe(subscriberID)
	h.log.Info("Websocket subscribed", "subscriber", subscriberID, "remote", r.RemoteAddr)

	for {
		select {
		case <-ctx.Done():
			h.log.Info("Websocket unsubscribed", "subscriber", subscriberID)
			return
		case evt := <-connection.ConnectedUserEvent:
			raw, err := event.Encode(evt)
			if err != nil {
				h.log.Error("Event not encodable", "event", evt.Type(), "error", err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err = conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				h.log.Warn("Websocket write failed", "subscriber", subscriberID, "error", err)
				return
			}
		}
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	code := errors.MapToHTTPStatus(err)
	if code >= http.StatusInternalServerError {
		h.log.Error("Request failed", "status", code, "error", err)
	}
	writeJSON(w, code, api.ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

func intParam(value string) (int64, error) {
	if value == "" {
		return 0, nil
	}
	return strconv.ParseInt(value, 10, 64)
}
