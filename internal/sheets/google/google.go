package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"expensinator/internal/core"
	"expensinator/internal/log"
	ports "expensinator/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// DefaultSheetName is the base tab name; the current year is prefixed.
const DefaultSheetName = "Expenses"

// Config selects the spreadsheet and the service account used to reach it.
type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	expensesSheet string
	namer         ports.CategoryNamer
	logger        *log.Logger
}

var _ ports.ExpenseExporter = (*Client)(nil)

// NewClient creates a Sheets client. Extra options replace the service
// account credentials when given.
func NewClient(ctx context.Context, cfg Config, namer ports.CategoryNamer, logger *log.Logger, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	base := strings.TrimSpace(cfg.SheetName)
	if base == "" {
		base = DefaultSheetName
	}

	if len(opts) == 0 {
		creds, err := credentials(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		expensesSheet: yearPrefixedName(base, time.Now().Year()),
		namer:         namer,
		logger:        logger,
	}, nil
}

// credentials reads the service account from inline JSON, a file, or
// GOOGLE_APPLICATION_CREDENTIALS, in that order.
func credentials(ctx context.Context, cfg Config, logger *log.Logger) ([]byte, error) {
	inline := strings.TrimSpace(cfg.ServiceAccountJSON)
	file := strings.TrimSpace(cfg.ServiceAccountFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		logger.DebugContext(ctx, "Using inline JSON credentials")
		return []byte(inline), nil
	case file != "":
		logger.DebugContext(ctx, "Reading credentials from file", "path", file)
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// SheetName returns the year-prefixed tab the client writes to.
func (c *Client) SheetName() string { return c.expensesSheet }

// Export appends one row per expense after the last used row. An empty sheet
// gets the header first.
func (c *Client) Export(ctx context.Context, expenses []core.Expense) (int, error) {
	if c.svc == nil {
		return 0, errors.New("sheets service not initialized")
	}
	if len(expenses) == 0 {
		return 0, nil
	}

	rng := fmt.Sprintf("%s!A:A", c.expensesSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("failed to get sheet dimensions for %s: %w", c.expensesSheet, err)
	}

	rows := ports.Rows(ctx, c.namer, expenses)
	nextRow := len(resp.Values) + 1
	if len(resp.Values) == 0 {
		rows = append([][]any{ports.Header}, rows...)
	}
	lastRow := nextRow + len(rows) - 1

	dataRange := fmt.Sprintf("%s!A%d:F%d", c.expensesSheet, nextRow, lastRow)
	vr := &gsheet.ValueRange{Values: rows}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("failed to update %s: %w", dataRange, err)
	}

	c.logger.InfoContext(ctx, "Expenses exported",
		log.FieldOperation, log.OpExport,
		log.FieldCount, len(expenses),
		"range", dataRange)
	return len(expenses), nil
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
