package main

import (
	"context"
	"flag"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"spendwise/internal/models"
	"spendwise/internal/report"
)

func cmdRegister(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("register", e)
	name := fs.String("name", "", "Display name")
	email := fs.String("email", "", "Email address")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" || *email == "" {
		fmt.Fprintln(e.stdout, "Usage: spendwise register -name <name> -email <email> [-password <password>]")
		return fmt.Errorf("missing required flags: name, email")
	}

	password, err := passwordOrPrompt(e, *passwordFlag)
	if err != nil {
		return err
	}

	ok, err := e.app.Auth.Register(ctx, *name, *email, password)
	if err != nil {
		return fmt.Errorf("failed to register: %w", err)
	}
	if !ok {
		return fmt.Errorf("registration failed for %s", *email)
	}
	u, _ := e.app.Auth.CurrentUser()
	fmt.Fprintf(e.stdout, "User %s registered and logged in with ID %s\n", u.Email, u.ID)
	return nil
}

func cmdLogin(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("login", e)
	email := fs.String("email", "", "Email address")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		fmt.Fprintln(e.stdout, "Usage: spendwise login -email <email> [-password <password>]")
		return fmt.Errorf("missing required flags: email")
	}

	password, err := passwordOrPrompt(e, *passwordFlag)
	if err != nil {
		return err
	}

	ok, err := e.app.Auth.Login(ctx, *email, password)
	if err != nil {
		return fmt.Errorf("failed to log in: %w", err)
	}
	if !ok {
		return fmt.Errorf("invalid email or password")
	}
	u, _ := e.app.Auth.CurrentUser()
	fmt.Fprintf(e.stdout, "Logged in as %s\n", u.Name)
	return nil
}

func cmdLogout(ctx context.Context, e *env, _ []string) error {
	if err := e.app.Auth.Logout(ctx); err != nil {
		return fmt.Errorf("failed to log out: %w", err)
	}
	fmt.Fprintln(e.stdout, "Logged out")
	return nil
}

func cmdWhoami(_ context.Context, e *env, _ []string) error {
	u, ok := e.app.Auth.CurrentUser()
	if !ok {
		return errNotLoggedIn
	}
	fmt.Fprintf(e.stdout, "%s <%s>\n", u.Name, u.Email)
	fmt.Fprintf(e.stdout, "Expenses: %d\n", e.app.Expenses.Len())
	fmt.Fprintf(e.stdout, "Total:    %s\n", e.app.Expenses.Total().StringFixed(2))
	return nil
}

func requireSession(e *env) error {
	if !e.app.Auth.IsAuthenticated() {
		return errNotLoggedIn
	}
	return nil
}

// parseAmount accepts positive decimal amounts only.
func parseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount %q", s)
	}
	if !amount.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("amount must be greater than zero")
	}
	return amount, nil
}

func parseDate(s string) (string, error) {
	if _, err := time.Parse(models.DateLayout, s); err != nil {
		return "", fmt.Errorf("invalid date %q: use YYYY-MM-DD", s)
	}
	return s, nil
}

func cmdAdd(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("add", e)
	amountFlag := fs.String("amount", "", "Amount, e.g. 12.50")
	category := fs.String("category", models.DefaultCategory, "Category")
	description := fs.String("description", "", "Description")
	dateFlag := fs.String("date", "", "Date as YYYY-MM-DD (default today)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireSession(e); err != nil {
		return err
	}
	if *amountFlag == "" || strings.TrimSpace(*description) == "" {
		fmt.Fprintln(e.stdout, "Usage: spendwise add -amount <amount> -description <text> [-category <category>] [-date YYYY-MM-DD]")
		return fmt.Errorf("missing required flags: amount, description")
	}

	amount, err := parseAmount(*amountFlag)
	if err != nil {
		return err
	}
	date := e.now().Format(models.DateLayout)
	if *dateFlag != "" {
		if date, err = parseDate(*dateFlag); err != nil {
			return err
		}
	}
	if !models.IsKnownCategory(*category) {
		fmt.Fprintf(e.stderr, "Note: %q is not one of the standard categories\n", *category)
	}

	x, err := e.app.Expenses.Add(ctx, models.NewExpense{
		Amount:      amount,
		Category:    *category,
		Description: *description,
		Date:        date,
	})
	if err != nil {
		return fmt.Errorf("failed to add expense: %w", err)
	}
	fmt.Fprintf(e.stdout, "Expense %s added\n", x.ID)
	return nil
}

func cmdEdit(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("edit", e)
	amountFlag := fs.String("amount", "", "New amount")
	category := fs.String("category", "", "New category")
	description := fs.String("description", "", "New description")
	dateFlag := fs.String("date", "", "New date as YYYY-MM-DD")
	id, err := parseWithID(fs, args)
	if err != nil {
		return err
	}
	if err := requireSession(e); err != nil {
		return err
	}
	if _, ok := e.app.Expenses.GetByID(id); !ok {
		return fmt.Errorf("expense %s not found", id)
	}

	var patch models.ExpensePatch
	var parseErr error
	fs.Visit(func(f *flag.Flag) {
		if parseErr != nil {
			return
		}
		switch f.Name {
		case "amount":
			var amount decimal.Decimal
			if amount, parseErr = parseAmount(*amountFlag); parseErr == nil {
				patch.Amount = &amount
			}
		case "category":
			patch.Category = category
		case "description":
			if strings.TrimSpace(*description) == "" {
				parseErr = fmt.Errorf("description cannot be empty")
				return
			}
			patch.Description = description
		case "date":
			var date string
			if date, parseErr = parseDate(*dateFlag); parseErr == nil {
				patch.Date = &date
			}
		}
	})
	if parseErr != nil {
		return parseErr
	}

	if err := e.app.Expenses.Update(ctx, id, patch); err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	fmt.Fprintf(e.stdout, "Expense %s updated\n", id)
	return nil
}

func cmdDelete(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("delete", e)
	id, err := parseWithID(fs, args)
	if err != nil {
		return err
	}
	if err := requireSession(e); err != nil {
		return err
	}
	if _, ok := e.app.Expenses.GetByID(id); !ok {
		return fmt.Errorf("expense %s not found", id)
	}
	if err := e.app.Expenses.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	fmt.Fprintf(e.stdout, "Expense %s deleted\n", id)
	return nil
}

func cmdShow(_ context.Context, e *env, args []string) error {
	fs := newFlagSet("show", e)
	id, err := parseWithID(fs, args)
	if err != nil {
		return err
	}
	if err := requireSession(e); err != nil {
		return err
	}
	x, ok := e.app.Expenses.GetByID(id)
	if !ok {
		return fmt.Errorf("expense %s not found", id)
	}
	fmt.Fprintf(e.stdout, "ID:          %s\n", x.ID)
	fmt.Fprintf(e.stdout, "Date:        %s\n", x.Date)
	fmt.Fprintf(e.stdout, "Category:    %s\n", x.Category)
	fmt.Fprintf(e.stdout, "Description: %s\n", x.Description)
	fmt.Fprintf(e.stdout, "Amount:      %s\n", x.Amount.StringFixed(2))
	return nil
}

func cmdList(_ context.Context, e *env, args []string) error {
	fs := newFlagSet("list", e)
	search := fs.String("search", "", "Case-insensitive search in descriptions")
	category := fs.String("category", "", "Only this category")
	sortBy := fs.String("sort", string(report.SortByDate), "Sort by date, amount or category")
	order := fs.String("order", string(report.Desc), "Sort order: asc or desc")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireSession(e); err != nil {
		return err
	}

	q := report.Query{
		Search:   *search,
		Category: *category,
		SortBy:   report.SortBy(*sortBy),
		Order:    report.Order(*order),
	}
	if !q.SortBy.IsValid() {
		return fmt.Errorf("invalid sort field %q", *sortBy)
	}
	if !q.Order.IsValid() {
		return fmt.Errorf("invalid sort order %q", *order)
	}

	all := e.app.Expenses.List()
	shown := q.Apply(all)
	tw := tabwriter.NewWriter(e.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tCATEGORY\tDESCRIPTION\tAMOUNT")
	for _, x := range shown {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", x.ID, x.Date, x.Category, x.Description, x.Amount.StringFixed(2))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "Showing %d of %d expenses\n", len(shown), len(all))
	return nil
}

func cmdTotal(_ context.Context, e *env, _ []string) error {
	if err := requireSession(e); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "Total: %s\n", e.app.Expenses.Total().StringFixed(2))
	return nil
}

func cmdCategories(_ context.Context, e *env, args []string) error {
	fs := newFlagSet("categories", e)
	known := fs.Bool("known", false, "List the standard categories instead of totals")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *known {
		for _, c := range models.Categories {
			fmt.Fprintln(e.stdout, c)
		}
		return nil
	}
	if err := requireSession(e); err != nil {
		return err
	}

	totals := e.app.Expenses.ByCategory()
	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Strings(names)
	tw := tabwriter.NewWriter(e.stdout, 0, 0, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(tw, "%s\t%s\n", name, totals[name].StringFixed(2))
	}
	return tw.Flush()
}

func cmdSummary(_ context.Context, e *env, _ []string) error {
	if err := requireSession(e); err != nil {
		return err
	}
	u, _ := e.app.Auth.CurrentUser()
	s := report.Summarize(e.app.Expenses.List(), e.now())

	fmt.Fprintf(e.stdout, "Welcome back, %s\n\n", u.Name)
	fmt.Fprintf(e.stdout, "Total expenses:   %s\n", s.Total.StringFixed(2))
	fmt.Fprintf(e.stdout, "This month:       %s\n", s.ThisMonth.StringFixed(2))
	fmt.Fprintf(e.stdout, "Top category:     %s (%s)\n", s.TopCategory, s.TopTotal.StringFixed(2))
	fmt.Fprintf(e.stdout, "Average expense:  %s\n", s.Average.StringFixed(2))

	fmt.Fprintln(e.stdout, "\nRecent expenses:")
	tw := tabwriter.NewWriter(e.stdout, 0, 0, 2, ' ', 0)
	for _, x := range s.Recent {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", x.Date, x.Category, x.Description, x.Amount.StringFixed(2))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(e.stdout, "\nMonthly summary:")
	for _, m := range s.Months {
		fmt.Fprintf(e.stdout, "  %-16s %s\n", m.Label(), m.Total.StringFixed(2))
	}
	return nil
}

func cmdReport(_ context.Context, e *env, args []string) error {
	fs := newFlagSet("report", e)
	period := fs.String("period", string(report.PeriodMonth), "Period: month, quarter or year")
	from := fs.String("from", "", "First day of a custom range as YYYY-MM-DD (overrides -period)")
	to := fs.String("to", "", "Last day of a custom range as YYYY-MM-DD (overrides -period)")
	asCSV := fs.Bool("csv", false, "Write the expenses of the period as CSV")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireSession(e); err != nil {
		return err
	}

	var r report.Range
	if *from != "" || *to != "" {
		var err error
		if r, err = customRange(*from, *to); err != nil {
			return err
		}
	} else {
		p := report.Period(*period)
		if !p.IsValid() {
			return fmt.Errorf("invalid period %q: must be month, quarter or year", *period)
		}
		r = report.PeriodRange(p, e.now())
	}

	xs := report.InRange(e.app.Expenses.List(), r)
	if *asCSV {
		return report.WriteCSV(e.stdout, xs)
	}

	fmt.Fprintf(e.stdout, "Report %s\n", r)
	fmt.Fprintf(e.stdout, "Total:   %s\n", report.Total(xs).StringFixed(2))
	fmt.Fprintf(e.stdout, "Count:   %d\n", len(xs))
	fmt.Fprintf(e.stdout, "Average: %s\n\n", report.Average(xs).StringFixed(2))

	tw := tabwriter.NewWriter(e.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tCOUNT\tTOTAL\tSHARE")
	for _, st := range report.Breakdown(xs) {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s%%\n", st.Category, st.Count, st.Total.StringFixed(2), st.Percentage.StringFixed(1))
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "DATE\tTOTAL\t\t")
	for _, d := range report.ByDate(xs) {
		fmt.Fprintf(tw, "%s\t%s\t\t\n", d.Date, d.Total.StringFixed(2))
	}
	return tw.Flush()
}

// customRange builds the inclusive range between the dates from and to.
func customRange(from, to string) (report.Range, error) {
	if from == "" || to == "" {
		return report.Range{}, fmt.Errorf("a custom range needs both -from and -to")
	}
	if _, err := parseDate(from); err != nil {
		return report.Range{}, err
	}
	if _, err := parseDate(to); err != nil {
		return report.Range{}, err
	}
	return report.NewRange(from, to)
}
