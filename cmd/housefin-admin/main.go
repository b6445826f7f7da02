// Command housefin-admin performs operator tasks against the housefin
// database.
//
//	housefin-admin adduser -username alice -email alice@example.com -full-name "Alice"
//
// The password is prompted for on a terminal, or read from the first line
// of stdin otherwise.
package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"

	"housefin/internal/backend"
	"housefin/internal/cli"
	"housefin/internal/core"
	applog "housefin/internal/log"
	"housefin/internal/services"
)

const defaultDatabaseURL = "sqlite:///./data/housefin.db"

func main() {
	cli.LoadEnvFile()
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	switch args[0] {
	case "adduser":
		return addUser(ctx, args[1:], stdin, stdout, stderr)
	case "help", "-h", "-help", "--help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", args[0])
		usage(stderr)
		return 2
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: housefin-admin <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  adduser   create a user account")
}

func addUser(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbURL := fs.String("db", envOr("DATABASE_URL", defaultDatabaseURL), "database URL")
	cost := fs.Int("bcrypt-cost", 10, "bcrypt cost for the password hash")
	username := fs.String("username", "", "login name")
	email := fs.String("email", "", "email address")
	fullName := fs.String("full-name", "", "display name")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *username == "" || *email == "" || *fullName == "" {
		fmt.Fprintln(stderr, "adduser: -username, -email and -full-name are required")
		fs.Usage()
		return 2
	}

	password, err := readPassword(stdin, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "adduser: %v\n", err)
		return 1
	}

	logger := applog.New(applog.Config{Level: slog.LevelWarn, Component: applog.ComponentApp, Output: stderr})
	bcfg, err := backend.ParseDatabaseURL(*dbURL)
	if err != nil {
		fmt.Fprintf(stderr, "adduser: %v\n", err)
		return 1
	}
	res, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		fmt.Fprintf(stderr, "adduser: open database: %v\n", err)
		return 1
	}
	defer res.Cleanup()

	accounts := services.NewAccountService(res.Store, nil, *cost, logger)
	u, err := accounts.Register(ctx, core.Registration{
		Username: *username,
		Email:    *email,
		FullName: *fullName,
		Password: password,
	})
	if err != nil {
		if ve, ok := core.AsValidation(err); ok {
			fmt.Fprintf(stderr, "adduser: %s: %s\n", ve.Field, ve.Message())
			return 1
		}
		fmt.Fprintf(stderr, "adduser: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "created user %s (%s)\n", u.Username, u.ID)
	return 0
}

// readPassword prompts twice without echo on a terminal. Anything else is
// read as a single line so the command can be scripted.
func readPassword(stdin io.Reader, prompt io.Writer) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Password: ")
		first, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		fmt.Fprint(prompt, "Repeat password: ")
		second, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		if !bytes.Equal(first, second) {
			return "", errors.New("passwords do not match")
		}
		return string(first), nil
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password on stdin")
	}
	return line, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
