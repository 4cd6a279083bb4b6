// Package wire defines the JSON contracts between the Corpus client core and
// the chat backend: transcript messages, realtime channel frames, and the
// single-shot chat request used when no channel is available.
package wire

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role identifies the author of a transcript message.
type Role string

const (
	// RoleUser marks a message authored by the local user.
	RoleUser Role = "user"
	// RoleAssistant marks a message authored by the assistant.
	RoleAssistant Role = "assistant"
)

// SourceCitation identifies a source document backing an assistant answer.
type SourceCitation struct {
	// DocumentID is the id of the cited document.
	DocumentID string `json:"document_id"`
	// Title is the display title of the cited document.
	Title string `json:"title,omitempty"`
	// Snippet is the excerpt the answer was grounded on.
	Snippet string `json:"snippet,omitempty"`
}

// MessageMetadata carries optional per-message context.
type MessageMetadata struct {
	// DocumentIDs is the document scope the message was sent under.
	DocumentIDs []string `json:"document_ids,omitempty"`
	// Citations lists the source documents backing an assistant answer.
	Citations []SourceCitation `json:"citations,omitempty"`
}

// Message is one transcript entry. Once created its ID never changes.
type Message struct {
	// ID is the client-generated or server-assigned message id.
	ID string `json:"id"`
	// Role is the message author.
	Role Role `json:"role"`
	// Content is the message text.
	Content string `json:"content"`
	// CreatedAt is when the message was created.
	CreatedAt time.Time `json:"created_at"`
	// Metadata carries optional scope and citation info.
	Metadata *MessageMetadata `json:"metadata,omitempty"`
}

// Channel frame types.
const (
	// FrameAuth is the first frame sent after a channel opens; it carries the
	// bearer credential.
	FrameAuth = "auth"
	// FrameMessage carries a chat message in either direction.
	FrameMessage = "message"
	// FrameTyping signals the assistant is composing a reply.
	FrameTyping = "typing"
	// FrameError signals a server-side failure for the current exchange.
	FrameError = "error"
)

// AuthFrame is the first payload sent on a freshly opened channel.
type AuthFrame struct {
	// Type is always FrameAuth.
	Type string `json:"type"`
	// Token is the bearer credential.
	Token string `json:"token"`
}

// OutboundFrame is a user chat message dispatched over the channel.
type OutboundFrame struct {
	// Type is always FrameMessage.
	Type string `json:"type"`
	// Content is the user message text.
	Content string `json:"content"`
	// DocumentIDs scopes the exchange to the selected documents.
	DocumentIDs []string `json:"document_ids,omitempty"`
	// Model is the assistant model to answer with.
	Model string `json:"model,omitempty"`
	// ContextData carries free-form conversation context (for example the
	// current conversation size).
	ContextData map[string]any `json:"context_data,omitempty"`
}

// InboundFrame is a decoded server-to-client channel frame.
//
// The wire shape reuses the "message" key for both payload kinds: it holds a
// Message object on FrameMessage and a plain error string on FrameError.
// ParseInbound resolves the ambiguity; transports should deliver raw bytes
// and leave interpretation to the session layer.
type InboundFrame struct {
	// Type is one of FrameMessage, FrameTyping, FrameError.
	Type string
	// Message is present on FrameMessage frames.
	Message *Message
	// ErrorText is present on FrameError frames.
	ErrorText string
}

type inboundEnvelope struct {
	Type    string          `json:"type"`
	Message json.RawMessage `json:"message,omitempty"`
}

// ParseInbound decodes a raw channel frame.
func ParseInbound(data []byte) (InboundFrame, error) {
	var env inboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return InboundFrame{}, fmt.Errorf("malformed channel frame: %w", err)
	}

	frame := InboundFrame{Type: env.Type}
	switch env.Type {
	case FrameMessage:
		var msg Message
		if err := json.Unmarshal(env.Message, &msg); err != nil {
			return InboundFrame{}, fmt.Errorf("malformed message frame: %w", err)
		}
		frame.Message = &msg
	case FrameTyping:
		// No payload.
	case FrameError:
		if len(env.Message) > 0 {
			if err := json.Unmarshal(env.Message, &frame.ErrorText); err != nil {
				return InboundFrame{}, fmt.Errorf("malformed error frame: %w", err)
			}
		}
	default:
		return InboundFrame{}, fmt.Errorf("unknown frame type %q", env.Type)
	}
	return frame, nil
}

// ChatRequest is the HTTP POST /v1/chat request body (fallback path).
type ChatRequest struct {
	// Message is the user message text.
	Message string `json:"message"`
	// ConversationID continues an existing conversation when present.
	ConversationID string `json:"conversation_id,omitempty"`
	// DocumentIDs scopes the exchange to the selected documents.
	DocumentIDs []string `json:"document_ids,omitempty"`
	// Model is the assistant model to answer with.
	Model string `json:"model"`
	// Stream is always false on the fallback path.
	Stream bool `json:"stream"`
	// ContextData carries free-form conversation context.
	ContextData map[string]any `json:"context_data,omitempty"`
}

// ChatResponse is the HTTP POST /v1/chat response body.
type ChatResponse struct {
	// ConversationID is the server-issued conversation id.
	ConversationID string `json:"conversation_id"`
	// Response is the assistant message answering the request.
	Response Message `json:"response"`
}
