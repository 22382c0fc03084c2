package receipt

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"expensinator/internal/core"
	"expensinator/internal/log"
)

var (
	ErrNoItems       = errors.New("receipt has no items")
	ErrPartialImport = errors.New("some expenses were not created")
)

// Uploader stores the receipt image and returns its URL.
type Uploader interface {
	UploadReceipt(ctx context.Context, image []byte) (string, error)
}

// Creator creates one expense, broadcasting on success.
type Creator interface {
	Add(ctx context.Context, e core.Expense) (string, error)
}

// Failure is an expense the server did not accept.
type Failure struct {
	Expense core.Expense
	Err     error
}

// Result reports what an import did.
type Result struct {
	ReceiptURL string
	Created    []core.Expense
	Failed     []Failure
}

// Importer uploads a confirmed receipt and creates its expenses.
type Importer struct {
	uploader    Uploader
	creator     Creator
	concurrency int
	logger      *log.Logger
}

// NewImporter builds an importer creating at most concurrency expenses at once.
func NewImporter(uploader Uploader, creator Creator, concurrency int, logger *log.Logger) *Importer {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Importer{
		uploader:    uploader,
		creator:     creator,
		concurrency: concurrency,
		logger:      logger.WithComponent(log.ComponentReceipt),
	}
}

// Import uploads the image once and then creates every expense with the
// confirmed date and the shared receipt URL. If the upload fails nothing is
// created. Creation failures do not stop the other creations; they are
// reported in Result.Failed and the returned error wraps ErrPartialImport.
func (im *Importer) Import(ctx context.Context, c *Confirmation) (Result, error) {
	if len(c.Expenses) == 0 {
		return Result{}, ErrNoItems
	}

	url, err := im.uploader.UploadReceipt(ctx, c.Image.Data)
	if err != nil {
		im.logger.ErrorContext(ctx, "Receipt upload failed, no expenses created",
			log.NewFields().WithOperation(log.OpUploadReceipt).WithError(err).ToSlice()...)
		return Result{}, fmt.Errorf("upload receipt: %w", err)
	}
	im.logger.InfoContext(ctx, "Receipt uploaded", log.FieldReceiptURL, url)

	prepared := c.Prepared(url)
	errs := make([]error, len(prepared))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.concurrency)
	for i := range prepared {
		g.Go(func() error {
			_, errs[i] = im.creator.Add(gctx, prepared[i])
			return nil
		})
	}
	_ = g.Wait()

	res := Result{ReceiptURL: url}
	var first error
	for i, e := range prepared {
		if errs[i] != nil {
			res.Failed = append(res.Failed, Failure{Expense: e, Err: errs[i]})
			if first == nil {
				first = errs[i]
			}
			continue
		}
		res.Created = append(res.Created, e)
	}

	im.logger.InfoContext(ctx, "Receipt imported",
		log.FieldOperation, log.OpImport,
		"created", len(res.Created),
		"failed", len(res.Failed))

	if first != nil {
		return res, fmt.Errorf("%w: %d of %d: %w", ErrPartialImport, len(res.Failed), len(prepared), first)
	}
	return res, nil
}
