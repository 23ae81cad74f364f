package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"
	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/Beej126/gMaelstrom-sub000/internal/cache"
	"github.com/Beej126/gMaelstrom-sub000/internal/config"
	"github.com/Beej126/gMaelstrom-sub000/internal/db"
	"github.com/Beej126/gMaelstrom-sub000/internal/gmail"
	"github.com/Beej126/gMaelstrom-sub000/internal/logging"
	"github.com/Beej126/gMaelstrom-sub000/internal/services"
	"github.com/Beej126/gMaelstrom-sub000/internal/version"
	"github.com/Beej126/gMaelstrom-sub000/pkg/auth"
)

func main() {
	configPathFlag := flag.String("config", "", "Path to JSON configuration file (default: ~/.config/gmaelstrom/config.json)")
	credPathFlag := flag.String("credentials", "", "Path to OAuth client credentials JSON (default: ~/.config/gmaelstrom/credentials.json)")
	labelFlag := flag.String("label", "", "Label scope to sync (default: config default_label)")
	pageFlag := flag.Int("page", 0, "Zero-based page to fetch and print")
	pageSizeFlag := flag.Int("page-size", 0, "Messages per page (default: config page_size)")
	markReadFlag := flag.String("mark-read", "", "Comma-separated message IDs to mark as read after fetching")
	setupFlag := flag.Bool("setup", false, "Print setup instructions and create a default config")
	signOutFlag := flag.Bool("sign-out", false, "Revoke the session and clear persisted state")
	versionFlag := flag.Bool("version", false, "Show version information and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Println(version.GetDetailedVersionString())
		return
	}

	if *setupFlag {
		runSetup()
		return
	}

	configPath := *configPathFlag
	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Printf("Warning: could not load configuration: %v", err)
		cfg = config.DefaultConfig()
	}

	credPath := cfg.Credentials
	if *credPathFlag != "" {
		credPath = expandPath(*credPathFlag)
	}
	if credPath == "" {
		log.Fatal("OAuth credentials file is required. Provide it via --credentials or the config file.")
	}
	if _, err := os.Stat(credPath); err != nil {
		log.Fatalf("Credentials file not found at %s. Download client credentials from Google Cloud Console and place it there.", credPath)
	}

	logger, logCloser, err := logging.NewFileLogger(cfg.LogFile, cfg.Debug)
	if err != nil {
		log.Printf("Warning: could not open log file, logging disabled: %v", err)
		logger = logging.Discard()
	} else if logCloser != nil {
		defer logCloser.Close()
	}

	ctx := context.Background()

	store, err := db.Open(ctx, cfg.SessionDB)
	if err != nil {
		log.Fatalf("Could not open session database: %v", err)
	}
	defer store.Close()
	sessionStore := db.NewSessionStore(store)

	oauthCfg, err := auth.LoadOAuthConfig(credPath, auth.DefaultScopes...)
	if err != nil {
		log.Fatalf("Could not load OAuth configuration: %v", err)
	}

	manager := auth.NewManager(auth.Config{
		OAuth:  oauthCfg,
		Store:  sessionStore,
		Logger: logger,
	})

	if *signOutFlag {
		if err := manager.SignOut(ctx); err != nil {
			log.Fatalf("Sign-out failed: %v", err)
		}
		fmt.Println("Signed out.")
		return
	}

	cred, err := manager.GetCredential(ctx, false)
	if err != nil {
		log.Fatalf("Could not sign in: %v", err)
	}
	fmt.Printf("Signed in as %s <%s>\n", cred.DisplayName, cred.Email)

	svc, err := gmailv1.NewService(ctx, option.WithTokenSource(manager.TokenSource(ctx)))
	if err != nil {
		log.Fatalf("Could not initialize Gmail service: %v", err)
	}

	client := gmail.NewClient(svc, manager, logger,
		gmail.WithBatchSize(cfg.BatchSize),
		gmail.WithBatchDelay(rate.Every(time.Duration(cfg.BatchDelayMs)*time.Millisecond)),
	)

	labelService := services.NewLabelService(client, sessionStore, logger)
	if err := labelService.LoadLabels(ctx); err != nil {
		log.Fatalf("Could not load labels: %v", err)
	}

	scope := cfg.DefaultLabel
	if *labelFlag != "" {
		scope = *labelFlag
	}
	if _, ok := labelService.Label(scope); !ok {
		log.Fatalf("Unknown label %q; run with --label and one of the IDs below.\n%s", scope, labelSummary(labelService))
	}

	pageSize := cfg.PageSize
	if *pageSizeFlag > 0 {
		pageSize = *pageSizeFlag
	}

	msgCache := cache.NewMessageCache(client, client, scope, logger)
	emailService := services.NewEmailService(client, msgCache, logger)

	if err := msgCache.FetchPage(ctx, *pageFlag, pageSize); err != nil {
		log.Fatalf("Could not fetch page %d: %v", *pageFlag, err)
	}

	if *markReadFlag != "" {
		ids := strings.Split(*markReadFlag, ",")
		if err := emailService.BulkMarkAsRead(ctx, ids); err != nil {
			log.Fatalf("Could not mark messages as read: %v", err)
		}
		fmt.Printf("Marked %d message(s) as read\n", len(ids))
	}

	msgs := msgCache.GetPageSlice(*pageFlag, pageSize)
	fmt.Printf("%s: %d messages, page %d (%d shown)\n", scope, msgCache.TotalCount(), *pageFlag, len(msgs))
	for _, m := range msgs {
		marker := " "
		if m.Unread {
			marker = "*"
		}
		fmt.Printf("%s %-28s %s\n", marker, truncate(m.From, 28), m.Subject)
	}
}

func labelSummary(labelService *services.LabelServiceImpl) string {
	var b strings.Builder
	for _, l := range labelService.Labels() {
		fmt.Fprintf(&b, "  %-20s %s\n", l.ID, l.DisplayName)
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// expandPath expands ~ to the user's home directory
func expandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return home
	}

	return filepath.Join(home, path[2:])
}

// runSetup creates a default config file if none exists and prints what is
// still missing.
func runSetup() {
	configPath := config.DefaultConfigPath()
	credPath, sessionDB := config.DefaultSessionPaths()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := config.DefaultConfig()
		if err := cfg.SaveConfig(configPath); err != nil {
			fmt.Printf("Failed to create config file: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created configuration file: %s\n", configPath)
	} else {
		fmt.Printf("Configuration file already exists: %s\n", configPath)
	}

	if _, err := os.Stat(credPath); err == nil {
		fmt.Printf("Credentials file found: %s\n", credPath)
	} else {
		fmt.Printf("Credentials file missing: %s\n", credPath)
		fmt.Println()
		fmt.Println("To set up Gmail API credentials:")
		fmt.Println("1. Go to https://console.cloud.google.com/")
		fmt.Println("2. Create a project and enable the Gmail API")
		fmt.Println("3. Create OAuth 2.0 credentials (Desktop application)")
		fmt.Println("4. Download the JSON file and save it as:")
		fmt.Printf("   %s\n", credPath)
	}

	fmt.Printf("Session state will be stored in: %s\n", sessionDB)
}
