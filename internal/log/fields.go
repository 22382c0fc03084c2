package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldMethod      = "method"
	FieldURL         = "url"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldSuccess     = "success"
	FieldError       = "error"
	FieldErrorType   = "error_type"
	FieldOperation   = "operation"
	FieldBody        = "body"
	FieldCount       = "count"
	FieldExpenseID   = "expense_id"
	FieldExpenseDesc = "expense_description"
	FieldAmount      = "amount"
	FieldCategoryID  = "category_id"
	FieldReceiptURL  = "receipt_url"
	FieldEvent       = "event"
	FieldDraftID     = "draft_id"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentRemote     = "remote"
	ComponentExpense    = "expense"
	ComponentCategories = "categories"
	ComponentReceipt    = "receipt"
	ComponentScanner    = "scanner"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentEvents     = "events"
	ComponentSheets     = "sheets"
	ComponentHome       = "home"
	ComponentCache      = "cache"
)

// Operations defines standard operation names
const (
	OpListExpenses   = "list_expenses"
	OpListCategories = "list_categories"
	OpAddExpense     = "add_expense"
	OpUpdateExpenses = "update_expenses"
	OpDeleteExpenses = "delete_expenses"
	OpUploadReceipt  = "upload_receipt"
	OpScan           = "scan"
	OpImport         = "import"
	OpExport         = "export"
	OpPublish        = "publish"
	OpConsume        = "consume"
	OpShutdown       = "shutdown"
	OpStartup        = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeRemote        = "remote_error"
	ErrorTypeDecoding      = "decoding_error"
	ErrorTypeTimeout       = "timeout_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithRequestID adds request ID field
func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithErrorType adds the error category
func (f LogFields) WithErrorType(kind string) LogFields {
	f[FieldErrorType] = kind
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithExpense adds expense-related fields
func (f LogFields) WithExpense(id int64, desc, amount string, categoryID int64) LogFields {
	if id != 0 {
		f[FieldExpenseID] = id
	}
	f[FieldExpenseDesc] = desc
	f[FieldAmount] = amount
	f[FieldCategoryID] = categoryID
	return f
}

// WithHTTPRequest adds outbound request fields
func (f LogFields) WithHTTPRequest(method, path string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// With adds an arbitrary field
func (f LogFields) With(key string, value any) LogFields {
	f[key] = value
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
