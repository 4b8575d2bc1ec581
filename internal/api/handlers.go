package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vimbiso/vimbiso-chatserver/internal/flow"
	"github.com/vimbiso/vimbiso-chatserver/internal/models"
)

// whatsappPayload mirrors the WhatsApp Cloud API webhook envelope, reduced
// to the fields the extractor needs.
type whatsappPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []struct {
					From string `json:"from"`
					ID   string `json:"id"`
					Type string `json:"type"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
					Interactive struct {
						ListReply struct {
							ID string `json:"id"`
						} `json:"list_reply"`
						ButtonReply struct {
							ID string `json:"id"`
						} `json:"button_reply"`
					} `json:"interactive"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// extractWhatsAppInbound flattens a Cloud API payload into the processor's
// inbound shape. Payloads without a message (status callbacks) yield nil.
func extractWhatsAppInbound(body []byte, mockTesting bool) (*flow.Inbound, error) {
	var payload whatsappPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse webhook payload: %w", err)
	}
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, m := range change.Value.Messages {
				msg := &models.Message{ID: m.ID}
				switch m.Type {
				case "text":
					msg.Type = models.MessageTypeText
					msg.Body = m.Text.Body
				case "interactive":
					msg.Type = models.MessageTypeInteractive
					msg.InteractiveID = m.Interactive.ListReply.ID
					if msg.InteractiveID == "" {
						msg.InteractiveID = m.Interactive.ButtonReply.ID
					}
				default:
					slog.Debug("Server unsupported WhatsApp message type, skipping", "type", m.Type)
					continue
				}
				return &flow.Inbound{
					ChannelType: models.ChannelTypeWhatsApp,
					ChannelID:   m.From,
					MockTesting: mockTesting,
					Message:     msg,
				}, nil
			}
		}
	}
	return nil, nil
}

func (s *Server) whatsappWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	body, err := readBody(r)
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, webhookResponse{Error: "unreadable body"})
		return
	}

	mockTesting := r.Header.Get("X-Mock-Testing") == "true"
	in, err := extractWhatsAppInbound(body, mockTesting)
	if err != nil {
		slog.Warn("Server.whatsappWebhookHandler: bad payload", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, webhookResponse{Error: "invalid payload"})
		return
	}
	if in == nil {
		// Status callbacks and other non-message events are acknowledged.
		writeJSONResponse(w, http.StatusOK, webhookResponse{Success: true})
		return
	}

	slog.Debug("Server.whatsappWebhookHandler: message received", "from", in.ChannelID, "mock", mockTesting)
	reply := s.processor.ProcessMessage(r.Context(), in)
	turnsProcessed.WithLabelValues(string(models.ChannelTypeWhatsApp)).Inc()
	writeJSONResponse(w, http.StatusOK, webhookResponse{Success: true, Reply: reply})
}

// smsWebhookHandler accepts Twilio's form-encoded inbound SMS callback.
func (s *Server) smsWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, webhookResponse{Error: "invalid form payload"})
		return
	}
	from := strings.TrimPrefix(r.PostFormValue("From"), "+")
	body := r.PostFormValue("Body")
	if from == "" || body == "" {
		writeJSONResponse(w, http.StatusBadRequest, webhookResponse{Error: "missing From or Body"})
		return
	}

	in := &flow.Inbound{
		ChannelType: models.ChannelTypeSMS,
		ChannelID:   from,
		MockTesting: r.Header.Get("X-Mock-Testing") == "true",
		Message: &models.Message{
			ID:   r.PostFormValue("MessageSid"),
			Type: models.MessageTypeText,
			Body: body,
		},
	}

	slog.Debug("Server.smsWebhookHandler: message received", "from", from)
	reply := s.processor.ProcessMessage(r.Context(), in)
	turnsProcessed.WithLabelValues(string(models.ChannelTypeSMS)).Inc()
	writeJSONResponse(w, http.StatusOK, webhookResponse{Success: true, Reply: reply})
}

func readBody(r *http.Request) ([]byte, error) {
	const maxBody = 1 << 20
	return io.ReadAll(io.LimitReader(r.Body, maxBody))
}
