package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"foodsnap/internal/config"
	"foodsnap/internal/db"
	"foodsnap/internal/identity"
	"foodsnap/internal/repository"
	"foodsnap/internal/session"
)

// Cliente interactivo del núcleo de sesión: hidrata la sesión contra el
// proveedor de identidad real y muestra las decisiones del RouteGuard.
func main() {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := zap.NewExample()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	profileRepo := repository.NewPgProfileRepository(pool)
	entitlementRepo := repository.NewPgEntitlementRepository(pool)

	provider := identity.NewHTTPProvider(cfg.AuthBaseURL, cfg.AuthAnonKey, logger)
	if access := os.Getenv("ACCESS_TOKEN"); access != "" {
		if err := provider.SetSession(access, os.Getenv("REFRESH_TOKEN")); err != nil {
			log.Fatalf("set session: %v", err)
		}
	}

	resolver := session.NewResolver(logger, profileRepo, entitlementRepo)
	manager := session.NewManager(logger, provider, resolver, session.ManagerConfig{
		ResolveTimeout:   time.Duration(cfg.ResolveTimeoutSeconds) * time.Second,
		BootstrapTimeout: time.Duration(cfg.BootstrapTimeoutSeconds) * time.Second,
		SafetyTimeout:    time.Duration(cfg.SafetyTimeoutSeconds) * time.Second,
		SignOutTimeout:   time.Duration(cfg.SignOutTimeoutSeconds) * time.Second,
	})
	defer manager.Close()

	states, cancelStates := manager.Subscribe()
	defer cancelStates()
	go func() {
		for state := range states {
			printNavigation(state)
		}
	}()

	if err := manager.Start(ctx); err != nil {
		logger.Warn("session manager start", zap.Error(err))
	}

	fmt.Println("commands: state | refresh | signout | quit")
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		switch strings.TrimSpace(line) {
		case "state":
			printState(manager.State())
		case "refresh":
			if err := manager.Refresh(ctx); err != nil {
				fmt.Printf("refresh error: %v\n", err)
			}
			printState(manager.State())
		case "signout":
			if err := manager.SignOut(ctx); err != nil {
				fmt.Printf("signout error (local state cleared anyway): %v\n", err)
			}
			printState(manager.State())
		case "quit", "exit":
			return
		case "":
		default:
			fmt.Println("commands: state | refresh | signout | quit")
		}
	}
}

func printState(state session.State) {
	if state.IsLoading {
		fmt.Println("session: loading...")
		return
	}
	if state.User == nil {
		fmt.Println("session: signed out")
		return
	}
	fmt.Printf("session: %s <%s> plan=%s admin=%v incomplete=%v\n",
		state.User.Name, state.User.Email, state.User.Plan, state.User.IsAdmin, state.ProfileIncomplete)
}

func printNavigation(state session.State) {
	dashboard := session.Decide(state, session.Requirement{RequiresAuth: true})
	admin := session.Decide(state, session.Requirement{RequiresAuth: true, RequiresAdmin: true})
	fmt.Printf("[nav] /dashboard -> %s | /admin -> %s\n", dashboard, admin)
}
