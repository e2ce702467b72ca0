package main

import (
	"bytes"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupEnv isolates the test from the caller's environment and returns a
// fresh database path.
func setupEnv(t *testing.T) string {
	t.Helper()
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("DB_PATH", "")
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("STORE_FILE", "")
	t.Setenv("PASSWORD_SCHEME", "")
	t.Setenv("SAVE_ATTEMPTS", "")
	t.Setenv("LOGIN_LATENCY", "0s")
	t.Setenv("LOG_LEVEL", "error")
	return filepath.Join(t.TempDir(), "test.db")
}

func runCLI(t *testing.T, dbPath, input string, args ...string) (string, error) {
	t.Helper()
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	stdin := bytes.NewBufferString(input)
	err := run(append([]string{"-db", dbPath}, args...), stdin, stdout, stderr)
	return stdout.String(), err
}

var addedID = regexp.MustCompile(`Expense (\S+) added`)

func addExpense(t *testing.T, dbPath string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, dbPath, "", append([]string{"add"}, args...)...)
	require.NoError(t, err)
	m := addedID.FindStringSubmatch(out)
	require.Len(t, m, 2, "unexpected add output: %q", out)
	return m[1]
}

func register(t *testing.T, dbPath, name, email string) {
	t.Helper()
	_, err := runCLI(t, dbPath, "", "register", "-name", name, "-email", email, "-password", "secret")
	require.NoError(t, err)
}

func TestRun_Register(t *testing.T) {
	dbPath := setupEnv(t)

	out, err := runCLI(t, dbPath, "", "register", "-name", "Ann", "-email", "ann@example.com", "-password", "secret")
	require.NoError(t, err)
	assert.Contains(t, out, "User ann@example.com registered and logged in")
}

func TestRun_DuplicateEmail(t *testing.T) {
	dbPath := setupEnv(t)
	register(t, dbPath, "Ann", "ann@example.com")

	_, err := runCLI(t, dbPath, "", "register", "-name", "Other", "-email", "ann@example.com", "-password", "x")
	require.Error(t, err, "expected error on duplicate email")
	assert.Contains(t, err.Error(), "registration failed")

	out, err := runCLI(t, dbPath, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Ann <ann@example.com>")
}

func TestRun_MissingCommand(t *testing.T) {
	dbPath := setupEnv(t)

	out, err := runCLI(t, dbPath, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing command")
	assert.Contains(t, out, "Usage:")
	assert.Contains(t, out, "register")
}

func TestRun_UnknownCommand(t *testing.T) {
	dbPath := setupEnv(t)

	_, err := runCLI(t, dbPath, "", "frobnicate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "frobnicate"`)
}

func TestRun_RegisterMissingFlags(t *testing.T) {
	dbPath := setupEnv(t)

	out, err := runCLI(t, dbPath, "", "register", "-password", "secret")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required flags: name, email")
	assert.Contains(t, out, "Usage:")
}

func TestRun_InteractivePassword(t *testing.T) {
	dbPath := setupEnv(t)

	out, err := runCLI(t, dbPath, "interactive_secret\n", "register", "-name", "Ann", "-email", "ann@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Password: ")
	assert.Contains(t, out, "registered and logged in")

	_, err = runCLI(t, dbPath, "", "logout")
	require.NoError(t, err)
	out, err = runCLI(t, dbPath, "interactive_secret\n", "login", "-email", "ann@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as Ann")
}

func TestRun_InteractivePassword_Empty(t *testing.T) {
	dbPath := setupEnv(t)

	_, err := runCLI(t, dbPath, "\n", "register", "-name", "Ann", "-email", "ann@example.com")
	require.Error(t, err, "expected error for empty password")
	assert.Contains(t, err.Error(), "password cannot be empty")
}

func TestRun_EnvVarOverride(t *testing.T) {
	dbPath := setupEnv(t)
	t.Setenv("DB_PATH", dbPath)

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	args := []string{"register", "-name", "Env", "-email", "env@example.com", "-password", "secret"}
	err := run(args, new(bytes.Buffer), stdout, stderr)
	require.NoError(t, err)

	assert.FileExists(t, dbPath)
}

func TestRun_InvalidDBPath(t *testing.T) {
	setupEnv(t)

	_, err := runCLI(t, t.TempDir(), "", "whoami")
	require.Error(t, err, "expected error for invalid db path")
	assert.Contains(t, err.Error(), "failed to open database")
}

func TestRun_InvalidBackend(t *testing.T) {
	dbPath := setupEnv(t)

	err := run([]string{"-db", dbPath, "-backend", "redis", "whoami"}, new(bytes.Buffer), new(bytes.Buffer), new(bytes.Buffer))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid storage backend")
}

func TestRun_InvalidFlag(t *testing.T) {
	setupEnv(t)

	err := run([]string{"-invalid"}, new(bytes.Buffer), new(bytes.Buffer), new(bytes.Buffer))
	require.Error(t, err, "expected error for invalid flag")
	assert.Contains(t, err.Error(), "flag provided but not defined")
}

func TestRun_SessionAcrossInvocations(t *testing.T) {
	dbPath := setupEnv(t)
	register(t, dbPath, "Ann", "ann@example.com")

	out, err := runCLI(t, dbPath, "", "whoami")
	require.NoError(t, err)
	assert.Equal(t, "Ann <ann@example.com>\nExpenses: 0\nTotal:    0.00\n", out)

	_, err = runCLI(t, dbPath, "", "logout")
	require.NoError(t, err)
	_, err = runCLI(t, dbPath, "", "whoami")
	assert.ErrorIs(t, err, errNotLoggedIn)

	_, err = runCLI(t, dbPath, "", "login", "-email", "ann@example.com", "-password", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid email or password")

	out, err = runCLI(t, dbPath, "", "login", "-email", "ann@example.com", "-password", "secret")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as Ann")
}

func TestRun_ExpenseLifecycle(t *testing.T) {
	dbPath := setupEnv(t)
	register(t, dbPath, "Ann", "ann@example.com")

	id := addExpense(t, dbPath, "-amount", "12.5", "-category", "Food & Dining", "-description", "Lunch", "-date", "2024-03-01")
	addExpense(t, dbPath, "-amount", "30", "-category", "Travel", "-description", "Train", "-date", "2024-03-02")

	out, err := runCLI(t, dbPath, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Lunch")
	assert.Contains(t, out, "Showing 2 of 2 expenses")

	out, err = runCLI(t, dbPath, "", "list", "-search", "lun")
	require.NoError(t, err)
	assert.Contains(t, out, "Showing 1 of 2 expenses")

	_, err = runCLI(t, dbPath, "", "edit", id, "-amount", "20")
	require.NoError(t, err)

	out, err = runCLI(t, dbPath, "", "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Amount:      20.00")
	assert.Contains(t, out, "Description: Lunch")
	assert.Contains(t, out, "Date:        2024-03-01")

	out, err = runCLI(t, dbPath, "", "total")
	require.NoError(t, err)
	assert.Equal(t, "Total: 50.00\n", out)

	out, err = runCLI(t, dbPath, "", "categories")
	require.NoError(t, err)
	assert.Contains(t, out, "Food & Dining  20.00")
	assert.Contains(t, out, "Travel         30.00")

	out, err = runCLI(t, dbPath, "", "delete", id)
	require.NoError(t, err)
	assert.Contains(t, out, "deleted")

	_, err = runCLI(t, dbPath, "", "show", id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	_, err = runCLI(t, dbPath, "", "delete", id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRun_AddRequiresSession(t *testing.T) {
	dbPath := setupEnv(t)

	_, err := runCLI(t, dbPath, "", "add", "-amount", "1", "-description", "x")
	assert.ErrorIs(t, err, errNotLoggedIn)
}

func TestRun_AddValidation(t *testing.T) {
	dbPath := setupEnv(t)
	register(t, dbPath, "Ann", "ann@example.com")

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"missing amount", []string{"-description", "x"}, "missing required flags"},
		{"bad amount", []string{"-amount", "ten", "-description", "x"}, `invalid amount "ten"`},
		{"zero amount", []string{"-amount", "0", "-description", "x"}, "greater than zero"},
		{"negative amount", []string{"-amount", "-4", "-description", "x"}, "greater than zero"},
		{"bad date", []string{"-amount", "4", "-description", "x", "-date", "03/01/2024"}, "invalid date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, dbPath, "", append([]string{"add"}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	out, err := runCLI(t, dbPath, "", "total")
	require.NoError(t, err)
	assert.Equal(t, "Total: 0.00\n", out)
}

func TestRun_UsersAreIsolated(t *testing.T) {
	dbPath := setupEnv(t)
	register(t, dbPath, "Ann", "ann@example.com")
	addExpense(t, dbPath, "-amount", "5", "-description", "Ann's coffee")

	register(t, dbPath, "Bob", "bob@example.com")
	out, err := runCLI(t, dbPath, "", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "Ann's coffee")
	assert.Contains(t, out, "Showing 0 of 0 expenses")

	_, err = runCLI(t, dbPath, "", "login", "-email", "ann@example.com", "-password", "secret")
	require.NoError(t, err)
	out, err = runCLI(t, dbPath, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Ann's coffee")
}

func TestRun_ReportCSV(t *testing.T) {
	dbPath := setupEnv(t)
	register(t, dbPath, "Ann", "ann@example.com")
	today := time.Now().Format("2006-01-02")
	id := addExpense(t, dbPath, "-amount", "7.25", "-category", "Shopping", "-description", "Socks")
	addExpense(t, dbPath, "-amount", "99", "-description", "Old", "-date", "2001-01-01")

	out, err := runCLI(t, dbPath, "", "report", "-period", "year", "-csv")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "id,date,category,description,amount", lines[0])
	assert.Equal(t, id+","+today+",Shopping,Socks,7.25", lines[1])
}

func TestRun_Report(t *testing.T) {
	dbPath := setupEnv(t)
	register(t, dbPath, "Ann", "ann@example.com")
	addExpense(t, dbPath, "-amount", "30", "-category", "Travel", "-description", "Train")
	addExpense(t, dbPath, "-amount", "10", "-category", "Shopping", "-description", "Socks")

	out, err := runCLI(t, dbPath, "", "report")
	require.NoError(t, err)
	assert.Contains(t, out, "Total:   40.00")
	assert.Contains(t, out, "Count:   2")
	assert.Contains(t, out, "75.0%")
	assert.Contains(t, out, "25.0%")

	_, err = runCLI(t, dbPath, "", "report", "-period", "week")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid period")
}

func TestRun_ReportCustomRange(t *testing.T) {
	dbPath := setupEnv(t)
	register(t, dbPath, "Ann", "ann@example.com")
	addExpense(t, dbPath, "-amount", "12", "-category", "Travel", "-description", "Bus", "-date", "2020-02-01")
	addExpense(t, dbPath, "-amount", "8", "-category", "Shopping", "-description", "Gloves", "-date", "2020-02-29")
	addExpense(t, dbPath, "-amount", "50", "-description", "Before", "-date", "2020-01-31")
	addExpense(t, dbPath, "-amount", "50", "-description", "After", "-date", "2020-03-01")

	out, err := runCLI(t, dbPath, "", "report", "-period", "year", "-from", "2020-02-01", "-to", "2020-02-29")
	require.NoError(t, err)
	assert.Contains(t, out, "Report 2020-02-01 to 2020-02-29")
	assert.Contains(t, out, "Total:   20.00")
	assert.Contains(t, out, "Count:   2")

	out, err = runCLI(t, dbPath, "", "report", "-from", "2020-02-01", "-to", "2020-02-29", "-csv")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "2020-02-01,Travel,Bus,12.00")
	assert.Contains(t, lines[2], "2020-02-29,Shopping,Gloves,8.00")
}

func TestRun_ReportCustomRangeValidation(t *testing.T) {
	dbPath := setupEnv(t)
	register(t, dbPath, "Ann", "ann@example.com")

	tests := []struct {
		name      string
		args      []string
		errString string
	}{
		{"missing to", []string{"-from", "2020-02-01"}, "needs both -from and -to"},
		{"missing from", []string{"-to", "2020-02-01"}, "needs both -from and -to"},
		{"bad date", []string{"-from", "2020-02-30", "-to", "2020-03-01"}, "invalid date"},
		{"reversed", []string{"-from", "2020-03-01", "-to", "2020-02-01"}, "is before start date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, dbPath, "", append([]string{"report"}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}
}

func TestRun_WhoamiProfile(t *testing.T) {
	dbPath := setupEnv(t)
	register(t, dbPath, "Ann", "ann@example.com")
	addExpense(t, dbPath, "-amount", "30", "-category", "Travel", "-description", "Train")
	addExpense(t, dbPath, "-amount", "2.5", "-description", "Coffee")

	out, err := runCLI(t, dbPath, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Ann <ann@example.com>")
	assert.Contains(t, out, "Expenses: 2")
	assert.Contains(t, out, "Total:    32.50")
}

func TestRun_Summary(t *testing.T) {
	dbPath := setupEnv(t)
	register(t, dbPath, "Ann", "ann@example.com")
	addExpense(t, dbPath, "-amount", "30", "-category", "Travel", "-description", "Train")
	addExpense(t, dbPath, "-amount", "10", "-category", "Shopping", "-description", "Socks")

	out, err := runCLI(t, dbPath, "", "summary")
	require.NoError(t, err)
	assert.Contains(t, out, "Welcome back, Ann")
	assert.Contains(t, out, "Total expenses:   40.00")
	assert.Contains(t, out, "This month:       40.00")
	assert.Contains(t, out, "Top category:     Travel (30.00)")
	assert.Contains(t, out, "Average expense:  20.00")
	assert.Contains(t, out, "Monthly summary:")
}

func TestRun_CategoriesKnown(t *testing.T) {
	dbPath := setupEnv(t)

	out, err := runCLI(t, dbPath, "", "categories", "-known")
	require.NoError(t, err)
	assert.Contains(t, out, "Food & Dining\n")
	assert.Contains(t, out, "Gifts & Donations\n")
}

func TestRun_ListRejectsBadSort(t *testing.T) {
	dbPath := setupEnv(t)
	register(t, dbPath, "Ann", "ann@example.com")

	_, err := runCLI(t, dbPath, "", "list", "-sort", "price")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid sort field")
}

func TestRun_EditUnknownID(t *testing.T) {
	dbPath := setupEnv(t)
	register(t, dbPath, "Ann", "ann@example.com")

	_, err := runCLI(t, dbPath, "", "edit", "nope", "-amount", "3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expense nope not found")
}
