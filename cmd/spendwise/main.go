package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"golang.org/x/term"

	"spendwise/internal/app"
	"spendwise/internal/config"
	"spendwise/internal/logger"
)

var errNotLoggedIn = errors.New("not logged in: run 'spendwise login' first")

// env is what a subcommand sees of the process.
type env struct {
	app    *app.App
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
}

type command struct {
	summary string
	run     func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{
	"register":   {"create an account and log in", cmdRegister},
	"login":      {"log in with email and password", cmdLogin},
	"logout":     {"end the current session", cmdLogout},
	"whoami":     {"show the logged in user", cmdWhoami},
	"add":        {"record an expense", cmdAdd},
	"edit":       {"change fields of an expense", cmdEdit},
	"delete":     {"remove an expense", cmdDelete},
	"show":       {"print one expense", cmdShow},
	"list":       {"list expenses with search, filter and sort", cmdList},
	"total":      {"print the total of all expenses", cmdTotal},
	"categories": {"print totals per category", cmdCategories},
	"summary":    {"print the dashboard summary", cmdSummary},
	"report":     {"print a category report for a period, or CSV", cmdReport},
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("spendwise", flag.ContinueOnError)
	fs.SetOutput(stderr)

	dbPath := fs.String("db", "", "Path to sqlite database file (overrides DB_PATH)")
	backend := fs.String("backend", "", "Storage backend: sqlite, postgres, file or memory (overrides STORAGE_BACKEND)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		printUsage(stdout, fs)
		return fmt.Errorf("missing command")
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		printUsage(stdout, fs)
		return fmt.Errorf("unknown command %q", rest[0])
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *backend != "" {
		cfg.StorageBackend = *backend
	}

	lg := logger.New()
	if stderr == io.Writer(os.Stderr) {
		err = lg.Init(cfg.LogLevel)
	} else {
		err = lg.InitWriter(cfg.LogLevel, stderr)
	}
	if err != nil {
		return err
	}
	defer lg.Log.Sync()

	a, err := app.New(cfg, lg.Log)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer a.Close()

	ctx := context.Background()
	if err := a.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to restore session: %w", err)
	}

	e := &env{app: a, stdin: stdin, stdout: stdout, stderr: stderr, now: time.Now}
	return cmd.run(ctx, e, rest[1:])
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "Usage: spendwise [-db <db_path>] [-backend <backend>] <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-11s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(w)
	fs.SetOutput(w)
	fs.PrintDefaults()
}

// newFlagSet returns a subcommand flag set writing errors to e.stderr.
func newFlagSet(name string, e *env) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

// parseWithID accepts the expense id either before or after the flags.
func parseWithID(fs *flag.FlagSet, args []string) (string, error) {
	var id string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		id, args = args[0], args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if id == "" {
		id = fs.Arg(0)
	}
	if id == "" {
		return "", fmt.Errorf("missing expense id")
	}
	return id, nil
}

// passwordOrPrompt returns flagValue, or reads the password from stdin.
func passwordOrPrompt(e *env, flagValue string) (string, error) {
	password := flagValue
	if password == "" {
		fmt.Fprint(e.stdout, "Password: ")
		var err error
		password, err = readPassword(e.stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(e.stdout)
	}
	if strings.TrimSpace(password) == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	return password, nil
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(bytePassword), nil
	}

	// Not a terminal: pipes and tests.
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
