package app

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bft-labs/obsrelay/internal/domain"
	"github.com/bft-labs/obsrelay/internal/ports"
)

// Stream event types accepted by EventRelay.
const (
	StreamEventChat   = "chat"
	StreamEventGift   = "gift"
	StreamEventSocial = "social"
	StreamEventEnd    = "streamEnd"
)

const streamEndText = "Fin de la transmisión en vivo"

// StreamEvent is one live-stream notification.
type StreamEvent struct {
	Type string          `json:"eventType"`
	Data json.RawMessage `json:"data"`
}

type giftData struct {
	UniqueID    string `json:"uniqueId"`
	GiftName    string `json:"giftName"`
	GiftType    int    `json:"giftType"`
	RepeatCount int    `json:"repeatCount"`
	RepeatEnd   bool   `json:"repeatEnd"`
}

type socialData struct {
	UniqueID    string `json:"uniqueId"`
	DisplayType string `json:"displayType"`
}

// EventRelay turns stream events into chatbox lines.
type EventRelay struct {
	chat   ports.ChatSender
	delay  time.Duration
	logger ports.Logger
}

// NewEventRelay creates an EventRelay. delay applies to chat messages and
// running gift streaks.
func NewEventRelay(chat ports.ChatSender, delay time.Duration, logger ports.Logger) *EventRelay {
	return &EventRelay{chat: chat, delay: delay, logger: logger}
}

// Handle translates ev and schedules its line. It returns the line, or an
// empty string when the event produces nothing.
func (e *EventRelay) Handle(ev StreamEvent) (string, error) {
	text, delayed, err := Translate(ev)
	if err != nil {
		return "", err
	}
	if text == "" {
		e.logger.Debug("stream event ignored", ports.String("event_type", ev.Type))
		return "", nil
	}
	if delayed && e.delay > 0 {
		time.AfterFunc(e.delay, func() { e.send(text) })
	} else {
		e.send(text)
	}
	return text, nil
}

func (e *EventRelay) send(text string) {
	if err := e.chat.SendChat(text); err != nil {
		e.logger.Warn("chatbox send failed", ports.Err(err))
	}
}

// Translate maps ev to a chat line. delayed reports whether the line should
// wait before being sent.
func Translate(ev StreamEvent) (text string, delayed bool, err error) {
	switch ev.Type {
	case StreamEventChat:
		return chatText(ev.Data), true, nil
	case StreamEventGift:
		var g giftData
		if err := json.Unmarshal(ev.Data, &g); err != nil {
			return "", false, fmt.Errorf("%w: gift: %v", domain.ErrInvalidArgument, err)
		}
		line := fmt.Sprintf("%s envio %s x%d", g.UniqueID, g.GiftName, g.RepeatCount)
		switch {
		case g.RepeatEnd:
			return line, false, nil
		case g.GiftType == 1:
			return line, true, nil
		default:
			return line, false, nil
		}
	case StreamEventSocial:
		var s socialData
		if err := json.Unmarshal(ev.Data, &s); err != nil {
			return "", false, fmt.Errorf("%w: social: %v", domain.ErrInvalidArgument, err)
		}
		switch {
		case strings.Contains(s.DisplayType, "follow"):
			return s.UniqueID + " te sigue", false, nil
		case strings.Contains(s.DisplayType, "share"):
			return s.UniqueID + " ha compartido", false, nil
		}
		return "", false, nil
	case StreamEventEnd:
		return streamEndText, false, nil
	default:
		return "", false, fmt.Errorf("%w: unknown event type %q", domain.ErrInvalidArgument, ev.Type)
	}
}

// chatText accepts a bare string or an object with a message field.
func chatText(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var m struct {
		UniqueID string `json:"uniqueId"`
		Comment  string `json:"comment"`
		Message  string `json:"message"`
	}
	if json.Unmarshal(raw, &m) != nil {
		return ""
	}
	msg := m.Message
	if msg == "" {
		msg = m.Comment
	}
	if msg == "" {
		return ""
	}
	if m.UniqueID != "" {
		return m.UniqueID + ": " + msg
	}
	return msg
}
