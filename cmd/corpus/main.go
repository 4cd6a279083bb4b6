package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/corpusai/corpus-cli/internal/auth"
	"github.com/corpusai/corpus-cli/internal/channel"
	"github.com/corpusai/corpus-cli/internal/config"
	"github.com/corpusai/corpus-cli/internal/httpapi"
	"github.com/corpusai/corpus-cli/internal/session"
	"github.com/corpusai/corpus-cli/internal/tui"
	"github.com/corpusai/corpus-cli/internal/version"
	"github.com/corpusai/corpus-cli/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	args, err := parseFlags(cfg, os.Args[1:])
	if err != nil {
		return err
	}

	logger.SetOutput(os.Stderr)
	if cfg.Debug {
		logger.SetLevel(logger.LevelDebug)
	} else {
		logger.SetLevel(logger.LevelWarn)
	}

	conversationID := ""
	if len(args) > 0 {
		switch args[0] {
		case "login":
			return loginCommand(cfg, args[1:])
		case "chat":
			if len(args) > 1 {
				conversationID = args[1]
			}
		case "help", "--help", "-h":
			printUsage()
			return nil
		case "version", "--version", "-v":
			fmt.Println("corpus " + version.RichVersion())
			return nil
		default:
			printUsage()
			return fmt.Errorf("unknown command %q", args[0])
		}
	}

	creds := &auth.FileProvider{Path: cfg.TokenPath}
	token, err := creds.Token()
	if err != nil {
		return err
	}
	if auth.ExpiringSoon(token, 24*time.Hour) {
		logger.Warnf("access token expires soon, run `corpus login <token>` to refresh")
	}

	ch := channel.NewClient(creds)
	api := httpapi.NewClient(cfg.ServerURL, creds, cfg.RequestTimeout)

	sink := tui.NewSink()
	orch := session.New(ch, api, cfg.ChannelURL, session.Options{
		ConversationID: conversationID,
		Model:          cfg.Model,
		DocumentIDs:    cfg.DocumentIDs,
		RequestTimeout: cfg.RequestTimeout,
		Listener:       sink,
	})
	orch.Start()
	defer orch.Close()

	program := tea.NewProgram(tui.New(orch, sink), tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("ui failed: %w", err)
	}
	return nil
}

func loginCommand(cfg *config.Config, args []string) error {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return fmt.Errorf("usage: corpus login <access-token>")
	}
	token := strings.TrimSpace(args[0])
	if exp, ok := auth.ExpiresAt(token); ok && time.Now().After(exp) {
		return fmt.Errorf("token expired at %s", exp.Format(time.RFC3339))
	}
	if err := auth.SaveToken(cfg.TokenPath, token); err != nil {
		return err
	}
	fmt.Printf("Token saved to %s\n", cfg.TokenPath)
	return nil
}

func parseFlags(cfg *config.Config, args []string) ([]string, error) {
	fs := flag.NewFlagSet("corpus", flag.ContinueOnError)
	fs.Usage = printUsage

	fs.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "Corpus server base URL")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "assistant model for chat turns")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "enable verbose logging")
	docs := fs.String("documents", "", "comma-separated document ids to scope the chat")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")
	if *docs != "" {
		cfg.DocumentIDs = nil
		for _, id := range strings.Split(*docs, ",") {
			if id = strings.TrimSpace(id); id != "" {
				cfg.DocumentIDs = append(cfg.DocumentIDs, id)
			}
		}
	}
	return fs.Args(), nil
}

func printUsage() {
	fmt.Println(`Usage: corpus [flags] [command]

Commands:
  chat [conversation-id]   start or resume a chat (default)
  login <access-token>     store the access token
  version                  print the version
  help                     show this help

Flags:
  -server <url>        Corpus server base URL (env CORPUS_SERVER_URL)
  -model <name>        assistant model (env CORPUS_MODEL)
  -documents <ids>     comma-separated document scope (env CORPUS_DOCUMENTS)
  -debug               verbose logging (env CORPUS_DEBUG)`)
}
