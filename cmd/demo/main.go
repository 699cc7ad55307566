// Package main is an interactive client for the auth API, exercising
// the session store end to end: login, signup, profile access, token
// refresh, and logout.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/atinyakov/authflow/internal/client"
	"github.com/atinyakov/authflow/internal/config"
	"github.com/atinyakov/authflow/internal/logger"
	"github.com/atinyakov/authflow/internal/models"
	"github.com/atinyakov/authflow/internal/session"
	"github.com/atinyakov/authflow/internal/storage"
	"github.com/atinyakov/authflow/internal/store"
)

var (
	version   string
	buildDate string
)

// repl runs the interactive shell loop, accepting session commands.
func repl(s *store.Store) {
	ctx := context.Background()

	// Drive the advisory refresh interval, if configured.
	if interval := s.RefreshInterval(); interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		go func() {
			for range ticker.C {
				if s.Snapshot().Authenticated {
					s.Refresh(ctx)
				}
			}
		}()
	}

	unsub := s.Subscribe(func(sess session.Session) {
		if sess.Initializing || sess.Refreshing {
			return
		}
		if sess.Authenticated {
			fmt.Printf("[session] authenticated as %v\n", sess.Profile["login"])
		} else {
			fmt.Println("[session] not authenticated")
		}
	})
	defer unsub()

	s.Initialize(ctx)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("authflow> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		switch args[0] {
		case "help":
			fmt.Println("Available commands: help, login <user> <pass>, signup <user> <pass>, whoami, name <display-name>, passwd <old> <new>, refresh, providers, logout, exit")
		case "login", "signup":
			if len(args) < 3 {
				fmt.Printf("Usage: %s <user> <pass>\n", args[0])
				continue
			}
			var res session.Result
			if args[0] == "login" {
				res = s.Login(ctx, args[1], args[2])
			} else {
				res = s.Signup(ctx, args[1], args[2])
			}
			if !res.Success {
				fmt.Println("Failed:", res.Error)
			}
		case "whoami":
			snap := s.Snapshot()
			if !snap.Authenticated {
				fmt.Println("Not authenticated")
				continue
			}
			b, _ := json.MarshalIndent(snap.Profile, "", "  ")
			fmt.Println(string(b))
		case "name":
			if len(args) < 2 {
				fmt.Println("Usage: name <display-name>")
				continue
			}
			res := s.UpdateProfile(ctx, models.Profile{"display_name": strings.Join(args[1:], " ")})
			if !res.Success {
				fmt.Println("Failed:", res.Error)
			}
		case "passwd":
			if len(args) < 3 {
				fmt.Println("Usage: passwd <old> <new>")
				continue
			}
			res := s.UpdatePassword(ctx, args[1], args[2])
			if !res.Success {
				fmt.Println("Failed:", res.Error)
			} else {
				fmt.Println("Password updated")
			}
		case "refresh":
			if s.Refresh(ctx) {
				fmt.Println("Refreshed")
			} else {
				fmt.Println("Refresh failed")
			}
		case "providers":
			for _, p := range s.EnabledProviders() {
				u, err := s.OAuthURL(p)
				if err != nil {
					fmt.Println(p, "error:", err)
					continue
				}
				fmt.Println(p, "→", u)
			}
		case "logout":
			s.Logout(ctx)
		case "exit":
			fmt.Println("Bye")
			return
		default:
			fmt.Println("Unknown command. Type 'help' for a list of commands.")
		}
	}
}

// main parses command-line flags and starts the shell.
func main() {
	var (
		baseURL   string
		statePath string
		strategy  string
		interval  time.Duration
		debug     bool
		showVer   bool
	)

	flag.StringVar(&baseURL, "url", "http://localhost:8080", "auth API base URL")
	flag.StringVar(&statePath, "state", "authflow-state.db", "path to the token storage file (sqlite)")
	flag.StringVar(&strategy, "strategy", "auto", "storage strategy: cookie-first | fallback-only | auto")
	flag.DurationVar(&interval, "refresh-interval", 0, "periodic token refresh interval (0 disables)")
	flag.BoolVar(&debug, "debug", false, "enable debug logging")
	flag.BoolVar(&showVer, "version", false, "show build version and date")
	flag.Parse()

	if showVer {
		fmt.Printf("authflow demo\nVersion: %s\nBuild Date: %s\n", version, buildDate)
		return
	}

	zl := logger.New()
	level := "warn"
	if debug {
		level = "debug"
	}
	if err := zl.Init(level); err != nil {
		log.Fatal(err)
	}
	defer func() { _ = zl.Log.Sync() }()

	cfg, err := config.Load(config.Config{
		APIBaseURL:           baseURL,
		StorageStrategy:      config.Strategy(strategy),
		TokenRefreshInterval: interval,
		Debug:                debug,
	}, zl.Log)
	if err != nil {
		log.Fatal(err)
	}

	adapter, err := storage.NewSQLiteAdapter(statePath, zl.Log)
	if err != nil {
		log.Fatal(err)
	}
	defer adapter.Close()

	tokens := storage.New(adapter, cfg.StorageStrategy)
	api := client.New(cfg, tokens, zl.Log)

	engine, err := session.New(cfg, api, tokens, nil, zl.Log)
	if err != nil {
		log.Fatal(err)
	}

	repl(store.New(engine))
}
