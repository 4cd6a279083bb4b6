package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultRequestTimeout bounds the single-shot chat request used when no
// realtime channel is available.
const DefaultRequestTimeout = 30 * time.Second

type Config struct {
	// ServerURL is the base URL of the Corpus server API.
	ServerURL string

	// CorpusHome is the directory where the client stores local state.
	CorpusHome string
	// TokenPath is the path to the access token file.
	TokenPath string

	// Model is the assistant model requested for chat turns.
	Model string
	// DocumentIDs scopes chat turns to the selected documents.
	DocumentIDs []string

	// RequestTimeout bounds the fallback chat request.
	RequestTimeout time.Duration

	// Debug enables verbose logging.
	Debug bool
}

// Load loads configuration from environment and defaults.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	corpusHome := os.Getenv("CORPUS_HOME_DIR")
	if corpusHome == "" {
		corpusHome = filepath.Join(homeDir, ".corpus")
	}
	if err := os.MkdirAll(corpusHome, 0700); err != nil {
		return nil, fmt.Errorf("failed to create corpus home: %w", err)
	}

	serverURL := strings.TrimRight(os.Getenv("CORPUS_SERVER_URL"), "/")
	if serverURL == "" {
		serverURL = "https://api.corpus.chat"
	}

	model := os.Getenv("CORPUS_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}

	var documentIDs []string
	for _, id := range strings.Split(os.Getenv("CORPUS_DOCUMENTS"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			documentIDs = append(documentIDs, id)
		}
	}

	timeout := DefaultRequestTimeout
	if raw := os.Getenv("CORPUS_REQUEST_TIMEOUT"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid CORPUS_REQUEST_TIMEOUT %q: %w", raw, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("CORPUS_REQUEST_TIMEOUT must be positive, got %q", raw)
		}
		timeout = parsed
	}

	debug := os.Getenv("CORPUS_DEBUG") == "true" || os.Getenv("CORPUS_DEBUG") == "1"

	return &Config{
		ServerURL:      serverURL,
		CorpusHome:     corpusHome,
		TokenPath:      filepath.Join(corpusHome, "access.token"),
		Model:          model,
		DocumentIDs:    documentIDs,
		RequestTimeout: timeout,
		Debug:          debug,
	}, nil
}

// ChannelURL returns the websocket endpoint for a conversation's realtime
// channel. It is only meaningful once a conversation id is known.
func (c *Config) ChannelURL(conversationID string) string {
	base := c.ServerURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return fmt.Sprintf("%s/ws/chat/%s", base, conversationID)
}
