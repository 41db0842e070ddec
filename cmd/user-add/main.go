// Command user-add creates an account from the shell:
//
//	user-add <email> <display name>
//
// The password is read from the terminal. The database configured through
// the usual environment variables is migrated first.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/aarangop/note-rags-web-ui/internal/config"
	"github.com/aarangop/note-rags-web-ui/internal/database"
	"github.com/aarangop/note-rags-web-ui/internal/plugins/auth"
)

func main() {
	args := os.Args[1:]
	if len(args) < 2 {
		usage()
		os.Exit(2)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if err := addUser(args[0], strings.Join(args[1:], " ")); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: user-add <email> <display name>")
}

func addUser(email, displayName string) error {
	email = strings.TrimSpace(email)
	displayName = strings.TrimSpace(displayName)

	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}
	confirm, err := promptPassword("Confirm: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return errors.New("passwords do not match")
	}
	if msg := auth.ValidateRegistration(email, displayName, password); msg != "" {
		return errors.New(msg)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, dialect, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if err := database.RunMigrations(db, dialect, cfg.Database.MigrationsDir()); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Registration never touches the session store.
	service := auth.NewAuthService(auth.NewUserRepository(db), nil, cfg.Auth.SessionTTL)
	user, err := service.Register(ctx, auth.RegisterInput{
		Email:       email,
		DisplayName: displayName,
		Password:    password,
	})
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}

	fmt.Fprintf(os.Stdout, "created user %s (%s)\n", user.Email, user.ID)
	return nil
}

func promptPassword(prompt string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errors.New("stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pass), nil
}
