package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"expensinator/internal/cache"
	"expensinator/internal/cli"
	"expensinator/internal/core"
	"expensinator/internal/receipt"
	"expensinator/internal/services"
	"expensinator/internal/sheets"
	"expensinator/internal/sheets/memory"
)

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return usagef("%s: %v", fs.Name(), err)
	}
	return nil
}

func runList(ctx context.Context, a *app, args []string) error {
	if err := parseFlags(newFlags("list"), args); err != nil {
		return err
	}
	if err := a.home.Refresh(ctx); err != nil {
		return err
	}
	printExpenses(ctx, a, os.Stdout, a.home.State().Expenses)
	printSummary(os.Stdout, a.home.Summary())
	return nil
}

func runCategories(ctx context.Context, a *app, args []string) error {
	if err := parseFlags(newFlags("categories"), args); err != nil {
		return err
	}
	cats, err := a.categories.All(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME")
	for _, c := range cats {
		fmt.Fprintf(w, "%d\t%s\n", c.ID(), c.Name)
	}
	return w.Flush()
}

func runAdd(ctx context.Context, a *app, args []string) error {
	fs := newFlags("add")
	amount := fs.String("amount", "", "amount, e.g. 12.50")
	category := fs.String("category", "", "category name or ID")
	description := fs.String("description", "", "what was bought")
	date := fs.String("date", "", "yyyy-MM-dd, defaults to today")
	receiptURL := fs.String("receipt-url", "", "optional receipt link")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	catID, err := categoryID(*category)
	if err != nil {
		return err
	}
	form := services.AddExpenseForm{
		UserID:      a.cfg.UserID,
		Amount:      *amount,
		Description: *description,
		CategoryID:  catID,
		ReceiptURL:  *receiptURL,
	}
	if *date != "" {
		d, err := core.ParseDate(*date)
		if err != nil {
			return &core.InvalidInputError{Field: "date", Err: err}
		}
		form.Date = d
	}

	_, msg, err := a.svc.SubmitExpense(ctx, form, time.Now())
	if err != nil {
		return err
	}
	fmt.Println(msg)
	return nil
}

func runEdit(ctx context.Context, a *app, args []string) error {
	fs := newFlags("edit")
	ids := fs.String("ids", "", "comma separated IDs of the expenses being replaced")
	file := fs.String("file", "", "JSON array with the replacement expenses, - for stdin")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	oldIDs, err := parseIDs(*ids)
	if err != nil {
		return err
	}
	if *file == "" {
		return usagef("edit: --file is required")
	}

	var r io.Reader = os.Stdin
	if *file != "-" {
		f, err := os.Open(*file)
		if err != nil {
			return usagef("edit: %v", err)
		}
		defer f.Close()
		r = f
	}
	var replacements []core.Expense
	if err := json.NewDecoder(r).Decode(&replacements); err != nil {
		return usagef("edit: invalid expenses file: %v", err)
	}
	for i := range replacements {
		if replacements[i].UserID == 0 {
			replacements[i].UserID = a.cfg.UserID
		}
		if err := replacements[i].Validate(); err != nil {
			return err
		}
	}

	if err := a.home.SaveEdited(ctx, oldIDs, replacements); err != nil {
		return err
	}
	fmt.Printf("Replaced %d expense(s) with %d.\n", len(oldIDs), len(replacements))
	return nil
}

func runDelete(ctx context.Context, a *app, args []string) error {
	fs := newFlags("delete")
	ids := fs.String("ids", "", "comma separated expense IDs")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	want, err := parseIDs(*ids)
	if err != nil {
		return err
	}
	if err := a.home.Refresh(ctx); err != nil {
		return err
	}
	if n := a.home.SelectByExpenseID(want...); n != len(want) {
		return usagef("delete: only %d of %d expenses exist on the server", n, len(want))
	}
	if err := a.home.DeleteSelected(ctx); err != nil {
		return err
	}
	fmt.Printf("Deleted %d expense(s).\n", len(want))
	return nil
}

func runScan(ctx context.Context, a *app, args []string) error {
	fs := newFlags("scan")
	contentType := fs.String("content-type", "", "image MIME type, detected when empty")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usagef("scan: expected one image path")
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return usagef("scan: %v", err)
	}
	img := receipt.Image{Data: data, ContentType: *contentType}
	if img.ContentType == "" {
		img.ContentType = http.DetectContentType(data)
	}

	scanner, err := a.scanner(ctx)
	if err != nil {
		return err
	}
	result, err := scanner.Scan(ctx, img)
	if err != nil {
		return err
	}
	if len(result.Items) == 0 {
		return receipt.ErrNoItems
	}

	draft, err := a.draftStore().SaveDraft(ctx, receipt.NewConfirmation(result, img, a.cfg.UserID, time.Now()))
	if err != nil {
		return err
	}
	printDraft(os.Stdout, draft)
	fmt.Printf("\nReview with 'revise %s', then 'confirm %s' or 'discard %s'.\n", draft.ID, draft.ID, draft.ID)
	return nil
}

func runDrafts(ctx context.Context, a *app, args []string) error {
	if err := parseFlags(newFlags("drafts"), args); err != nil {
		return err
	}
	drafts, err := a.draftStore().ListDrafts(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DRAFT\tDATE\tITEMS\tTOTAL\tEDITED\tSCANNED")
	for _, d := range drafts {
		c := d.Confirmation()
		fmt.Fprintf(w, "%s\t%s\t%d\t%s %s\t%t\t%s\n",
			d.ID, c.Date, len(c.Expenses), core.TotalSpent(c.Expenses), c.Currency, c.IsEdited(),
			d.CreatedAt.Local().Format(time.DateTime))
	}
	return w.Flush()
}

func runRevise(ctx context.Context, a *app, args []string) error {
	fs := newFlags("revise")
	item := fs.Int("item", 0, "1-based item to change")
	amount := fs.String("amount", "", "new amount for the item")
	category := fs.String("category", "", "new category name or ID for the item")
	description := fs.String("description", "", "new description for the item")
	remove := fs.Bool("remove", false, "drop the item")
	date := fs.String("date", "", "receipt date, yyyy-MM-dd")
	currency := fs.String("currency", "", "receipt currency")
	reset := fs.Bool("reset", false, "discard all edits")
	id, rest, err := draftArg("revise", args)
	if err != nil {
		return err
	}
	if err := parseFlags(fs, rest); err != nil {
		return err
	}

	store := a.draftStore()
	draft, err := store.GetDraft(ctx, id)
	if err != nil {
		return err
	}
	c := draft.Confirmation()

	if *reset {
		c.Reset()
	}
	if *date != "" {
		d, err := core.ParseDate(*date)
		if err != nil {
			return &core.InvalidInputError{Field: "date", Err: err}
		}
		c.Date = d
	}
	if *currency != "" {
		c.Currency = strings.ToUpper(strings.TrimSpace(*currency))
	}
	if *item != 0 {
		if *item < 1 || *item > len(c.Expenses) {
			return usagef("revise: item %d out of range 1-%d", *item, len(c.Expenses))
		}
		i := *item - 1
		if *remove {
			c.Expenses = append(c.Expenses[:i], c.Expenses[i+1:]...)
		} else {
			if err := editItem(&c.Expenses[i], *amount, *category, *description); err != nil {
				return err
			}
		}
	}

	if err := store.UpdateDraft(ctx, id, c); err != nil {
		return err
	}
	draft.State = c.State()
	printDraft(os.Stdout, draft)
	return nil
}

func editItem(e *core.Expense, amount, category, description string) error {
	if amount != "" {
		v, err := core.ParseAmount(amount)
		if err != nil {
			return &core.InvalidInputError{Field: "amount", Err: err}
		}
		e.Amount = v
	}
	if category != "" {
		id, err := categoryID(category)
		if err != nil {
			return err
		}
		e.CategoryID = id
	}
	if description != "" {
		e.Description = strings.TrimSpace(description)
	}
	return e.Validate()
}

func runConfirm(ctx context.Context, a *app, args []string) error {
	fs := newFlags("confirm")
	date := fs.String("date", "", "override the receipt date, yyyy-MM-dd")
	id, rest, err := draftArg("confirm", args)
	if err != nil {
		return err
	}
	if err := parseFlags(fs, rest); err != nil {
		return err
	}

	store := a.draftStore()
	draft, err := store.GetDraft(ctx, id)
	if err != nil {
		return err
	}
	c := draft.Confirmation()
	if *date != "" {
		d, err := core.ParseDate(*date)
		if err != nil {
			return &core.InvalidInputError{Field: "date", Err: err}
		}
		c.Date = d
	}

	res, err := a.importer().Import(ctx, c)
	if errors.Is(err, receipt.ErrPartialImport) {
		// Keep only what failed so a retry does not duplicate expenses.
		c.Expenses = c.Expenses[:0]
		for _, f := range res.Failed {
			c.Expenses = append(c.Expenses, f.Expense)
			fmt.Fprintf(os.Stderr, "not created: %s (%s)\n", f.Expense.Description, f.Expense.Amount)
		}
		if uerr := store.UpdateDraft(ctx, id, c); uerr != nil {
			a.logger.Warn("Could not keep failed items in draft", "draft_id", id, "error", uerr)
		}
		fmt.Printf("Created %d of %d expenses. Run 'confirm %s' again for the rest.\n",
			len(res.Created), len(res.Created)+len(res.Failed), id)
		return err
	}
	if err != nil {
		return err
	}

	if err := store.DeleteDraft(ctx, id); err != nil {
		return err
	}
	fmt.Printf("Created %d expense(s). Receipt: %s\n", len(res.Created), res.ReceiptURL)
	return nil
}

func runDiscard(ctx context.Context, a *app, args []string) error {
	id, rest, err := draftArg("discard", args)
	if err != nil {
		return err
	}
	if err := parseFlags(newFlags("discard"), rest); err != nil {
		return err
	}
	if err := a.draftStore().DeleteDraft(ctx, id); err != nil {
		return err
	}
	fmt.Println("Draft discarded.")
	return nil
}

func runExport(ctx context.Context, a *app, args []string) error {
	fs := newFlags("export")
	dryRun := fs.Bool("dry-run", false, "print the rows instead of writing them")
	all := fs.Bool("all", false, "include expenses exported before")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	list, err := a.svc.List(ctx)
	if err != nil {
		return err
	}
	pending := list
	if !*all {
		if pending, err = a.draftStore().Unexported(ctx, list); err != nil {
			return err
		}
	}

	var exporter sheets.ExpenseExporter
	var preview *memory.Store
	if *dryRun {
		preview = memory.New(a.categories)
		exporter = preview
	} else {
		client, err := a.sheetsClient(ctx)
		if err != nil {
			return err
		}
		exporter = client
	}

	n, err := exporter.Export(ctx, pending)
	if err != nil {
		return err
	}
	if preview != nil {
		_, err := preview.WriteTo(os.Stdout)
		return err
	}
	if err := a.draftStore().MarkExported(ctx, pending); err != nil {
		return err
	}
	fmt.Printf("Exported %d expense(s).\n", n)
	return nil
}

func runWatch(ctx context.Context, a *app, args []string) error {
	if err := parseFlags(newFlags("watch"), args); err != nil {
		return err
	}

	caches := cache.NewManager(a.logger)
	caches.Register(a.categories.Cache())
	interval := a.cfg.CategoryCacheTTL
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	caches.StartCleanup(interval)

	ctx, done := cli.GracefulShutdown(a.logger, 5*time.Second, caches.Stop)

	if bridge := a.eventBridge(); bridge != nil {
		go func() {
			if err := bridge.Consume(ctx, a.bus); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Warn("AMQP consumer stopped", "error", err)
			}
		}()
	}

	render := func(s services.HomeState, err error) {
		if err != nil {
			fmt.Fprintln(os.Stderr, s.ErrorMessage)
			return
		}
		fmt.Printf("\n--- %s ---\n", time.Now().Format(time.TimeOnly))
		printExpenses(ctx, a, os.Stdout, s.Expenses)
		printSummary(os.Stdout, core.Summarize(s.Expenses))
	}

	err := a.home.Refresh(ctx)
	render(a.home.State(), err)

	if err := a.home.Watch(ctx, a.bus, render); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	cli.WaitForShutdown(ctx, done)
	return nil
}

// draftArg splits the leading draft ID from the flags that follow it.
func draftArg(name string, args []string) (string, []string, error) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return "", nil, usagef("%s: expected a draft ID", name)
	}
	return args[0], args[1:], nil
}

// categoryID accepts a numeric ID or a category name. Either must match a
// known category.
func categoryID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		id = core.LookupCategoryID(s)
	}
	if _, ok := core.CategoryName(id); !ok {
		return 0, &core.InvalidInputError{
			Field: "category",
			Err:   fmt.Errorf("%w: %q", core.ErrUnknownCategory, strings.TrimSpace(s)),
		}
	}
	return id, nil
}

func parseIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, usagef("invalid expense ID %q", part)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, usagef("--ids is required")
	}
	return ids, nil
}
