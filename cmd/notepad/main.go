package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/nzaccagnino/go-notepad/internal/api"
	"github.com/nzaccagnino/go-notepad/internal/chat"
	"github.com/nzaccagnino/go-notepad/internal/config"
	"github.com/nzaccagnino/go-notepad/internal/db"
	"github.com/nzaccagnino/go-notepad/internal/i18n"
	"github.com/nzaccagnino/go-notepad/internal/logging"
	"github.com/nzaccagnino/go-notepad/internal/syncer"
	"github.com/nzaccagnino/go-notepad/internal/ui"
	"go.uber.org/multierr"
	"golang.org/x/term"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath(), "path to config.yml")
	syncOnce := flag.Bool("sync-once", false, "push changed tabs and chat sessions, then exit")
	importOnce := flag.Bool("import", false, "import remote notes into tabs, then exit")
	flag.Parse()

	headless := *syncOnce || *importOnce
	if !headless {
		printLogo()
	}

	if !config.ConfigExists(*configPath) {
		if headless {
			fmt.Fprintf(os.Stderr, "Error: no config at %s\n", *configPath)
			os.Exit(1)
		}
		if err := firstTimeSetup(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Setup error: %v\n", err)
			os.Exit(1)
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Language != "" {
		i18n.SetLanguage(i18n.Language(cfg.Language))
	}
	t := i18n.T()

	logger, closeLog := openLogger(cfg, *configPath, headless)
	defer closeLog()

	database, err := db.New(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", t.Error, err)
		os.Exit(1)
	}
	defer database.Close()

	chats, err := chat.Open(cfg.ChatDBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", t.Error, err)
		os.Exit(1)
	}
	defer chats.Close()

	client := api.NewClient(cfg.Sync, &http.Client{Timeout: 30 * time.Second})
	reconciler, err := syncer.New(database, client, syncer.Options{
		Target:     cfg.Sync.Target,
		Extensions: cfg.Sync.Extensions,
		Sessions:   chats,
		Logger:     logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", t.Error, err)
		os.Exit(1)
	}
	defer reconciler.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if headless {
		if err := runHeadless(ctx, reconciler, *syncOnce, *importOnce); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", t.SyncError, err)
			os.Exit(1)
		}
		return
	}

	scheduler := syncer.NewScheduler(cfg.Sync.Interval, reconciler.Sync, logger)
	if cfg.Sync.Enabled {
		scheduler.Start(ctx)
	}
	defer scheduler.Stop()

	go func() {
		err := config.Watch(ctx, *configPath, func(next *config.Config) {
			logger.Infof("config reloaded")
			client.Configure(next.Sync)
			reconciler.Configure(next.Sync)
			scheduler.SetInterval(next.Sync.Interval)
			if next.Sync.Enabled {
				scheduler.Start(ctx)
			} else {
				scheduler.Stop()
			}
		}, func(err error) {
			logger.Warnf("config watch: %v", err)
		})
		if err != nil {
			logger.Warnf("config watcher stopped: %v", err)
		}
	}()

	saver := db.NewAutoSaver(database, cfg.AutoSaveInterval, func(err error) {
		logger.Errorf("autosave failed: %v", err)
	})
	defer func() {
		closeCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := saver.Close(closeCtx); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", t.Error, err)
		}
	}()

	m := ui.NewModel(ui.Options{
		Store:      database,
		Saver:      saver,
		Reconciler: reconciler,
		Scheduler:  scheduler,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", t.Error, err)
	}
}

func runHeadless(ctx context.Context, r *syncer.Reconciler, push, pull bool) error {
	t := i18n.T()
	if pull {
		res, err := r.Pull(ctx)
		if err != nil {
			return err
		}
		fmt.Printf(t.ImportSummary+"\n", res.Created, res.Updated)
		reportFailures(res.Err())
	}
	if push {
		res, err := r.Push(ctx)
		if err != nil {
			return err
		}
		fmt.Printf(t.SyncSummary+"\n", res.Synced, res.Failed)
		reportFailures(res.Err())

		chatRes, err := r.PushSessions(ctx)
		if err != nil {
			return err
		}
		reportFailures(chatRes.Err())
	}
	return nil
}

func reportFailures(err error) {
	for _, e := range multierr.Errors(err) {
		fmt.Fprintf(os.Stderr, "  - %v\n", e)
	}
}

// openLogger writes to stderr for headless runs. The TUI owns the terminal,
// so interactive sessions log to a file next to the config.
func openLogger(cfg *config.Config, configPath string, headless bool) (*logging.Logger, func()) {
	if headless {
		return logging.New(cfg.LogLevel), func() {}
	}
	path := filepath.Join(filepath.Dir(configPath), "notepad.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return logging.NewWithWriter(cfg.LogLevel, io.Discard), func() {}
	}
	return logging.NewWithWriter(cfg.LogLevel, f), func() { f.Close() }
}

func printLogo() {
	fmt.Println()
	fmt.Println("  ┌┐┌┌─┐┌┬┐┌─┐┌─┐┌─┐┌┬┐")
	fmt.Println("  ││││ │ │ ├┤ ├─┘├─┤ ││")
	fmt.Println("  ┘└┘└─┘ ┴ └─┘┴  ┴ ┴─┴┘")
	fmt.Println()
}

func firstTimeSetup(configPath string) error {
	fmt.Println("  Welcome! / Benvenuto!")
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)

	fmt.Println("  Select language / Seleziona lingua:")
	fmt.Println("  [1] English")
	fmt.Println("  [2] Italiano")
	fmt.Print("  > ")

	choice, err := readLine(reader)
	if err != nil {
		return err
	}
	language := "en"
	if choice == "2" {
		language = "it"
	}
	i18n.SetLanguage(i18n.Language(language))
	t := i18n.T()

	cfg := config.Default()
	cfg.Language = language

	fmt.Println()
	fmt.Print(t.SyncURLPrompt)
	url, err := readLine(reader)
	if err != nil {
		return err
	}
	if url != "" {
		fmt.Print(t.SyncKeyPrompt)
		key, err := readSecret(reader)
		if err != nil {
			return err
		}
		cfg.Sync.URL = strings.TrimRight(url, "/")
		cfg.Sync.Key = key
		cfg.Sync.Enabled = key != ""
	}

	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	fmt.Println(t.SetupDone)
	if !cfg.Sync.Enabled {
		fmt.Println(t.SkipHint)
	}
	fmt.Println()
	return nil
}

func readLine(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func readSecret(reader *bufio.Reader) (string, error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		secret, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		return strings.TrimSpace(string(secret)), nil
	}
	return readLine(reader)
}
