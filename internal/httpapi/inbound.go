package httpapi

import (
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storebot/internal/bot"
)

type inboundMessage struct {
	From      string `json:"from"`
	Text      string `json:"text"`
	MessageID string `json:"message_id,omitempty"`
	IsAdmin   bool   `json:"is_admin,omitempty"`
}

type acceptedResponse struct {
	Accepted bool `json:"accepted"`
}

// chatMessage принимает сообщение от шлюза чата и обрабатывает его в фоне.
func (s *Server) chatMessage(w http.ResponseWriter, r *http.Request) {
	if s.chat == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "chat intake disabled"})
		return
	}
	if s.chatToken != "" && !secretEqual(bearerToken(r), s.chatToken) {
		writeText(w, http.StatusUnauthorized, "forbidden")
		return
	}

	var in inboundMessage
	if err := decodeJSON(w, r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return
	}
	if strings.TrimSpace(in.From) == "" || strings.TrimSpace(in.Text) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "from and text are required"})
		return
	}

	// Флаг is_admin принимается только от шлюза, прошедшего проверку токена.
	msg := bot.Message{
		From:      in.From,
		Text:      in.Text,
		MessageID: in.MessageID,
		IsAdmin:   in.IsAdmin && s.chatToken != "",
	}
	s.inbound.Add(1)
	go func() {
		defer s.inbound.Done()
		if err := s.chat.Handle(s.baseCtx, msg); err != nil {
			s.logger.WithError(err).WithFields(log.Fields{"buyer": msg.From}).Debug("chat message handled with error")
		}
	}()

	writeJSON(w, http.StatusAccepted, acceptedResponse{Accepted: true})
}
