package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("CORPUS_HOME_DIR", home)
	t.Setenv("CORPUS_SERVER_URL", "")
	t.Setenv("CORPUS_MODEL", "")
	t.Setenv("CORPUS_DOCUMENTS", "")
	t.Setenv("CORPUS_REQUEST_TIMEOUT", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "https://api.corpus.chat", cfg.ServerURL)
	require.Equal(t, home, cfg.CorpusHome)
	require.Equal(t, filepath.Join(home, "access.token"), cfg.TokenPath)
	require.Equal(t, "gpt-4o-mini", cfg.Model)
	require.Empty(t, cfg.DocumentIDs)
	require.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CORPUS_HOME_DIR", t.TempDir())
	t.Setenv("CORPUS_SERVER_URL", "http://localhost:8080/")
	t.Setenv("CORPUS_MODEL", "gpt-4o")
	t.Setenv("CORPUS_DOCUMENTS", "d1, d2 ,,d3")
	t.Setenv("CORPUS_REQUEST_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080", cfg.ServerURL)
	require.Equal(t, "gpt-4o", cfg.Model)
	require.Equal(t, []string{"d1", "d2", "d3"}, cfg.DocumentIDs)
	require.Equal(t, 5*time.Second, cfg.RequestTimeout)
}

func TestLoadRejectsBadTimeout(t *testing.T) {
	t.Setenv("CORPUS_HOME_DIR", t.TempDir())

	t.Setenv("CORPUS_REQUEST_TIMEOUT", "soon")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("CORPUS_REQUEST_TIMEOUT", "-3s")
	_, err = Load()
	require.Error(t, err)
}

func TestChannelURL(t *testing.T) {
	cases := []struct {
		server string
		want   string
	}{
		{"https://api.corpus.chat", "wss://api.corpus.chat/ws/chat/abc"},
		{"http://localhost:8080", "ws://localhost:8080/ws/chat/abc"},
	}
	for _, tc := range cases {
		cfg := &Config{ServerURL: tc.server}
		require.Equal(t, tc.want, cfg.ChannelURL("abc"))
	}
}
