package remote

import (
	"net/http"

	"expensinator/internal/log"
)

// DefaultBaseURL is the production cloud functions host.
const DefaultBaseURL = "https://FunctionAppCCB2.azurewebsites.net/"

// Route is one cloud function endpoint.
type Route struct {
	Method    string
	Path      string
	Operation string
	// Success reports whether a status code counts as success for this route.
	Success func(status int) bool
}

func any2xx(status int) bool { return status >= 200 && status < 300 }

func exactly(code int) func(int) bool {
	return func(status int) bool { return status == code }
}

var (
	RouteGetExpenses = Route{
		Method: http.MethodGet, Path: "api/get_expenses",
		Operation: log.OpListExpenses, Success: any2xx,
	}
	RouteGetCategories = Route{
		Method: http.MethodGet, Path: "api/get_categories",
		Operation: log.OpListCategories, Success: any2xx,
	}
	RouteAddExpense = Route{
		Method: http.MethodPost, Path: "api/add_expense",
		Operation: log.OpAddExpense, Success: exactly(http.StatusCreated),
	}
	RouteUpdateExpenses = Route{
		Method: http.MethodPut, Path: "api/update_expenses",
		Operation: log.OpUpdateExpenses, Success: exactly(http.StatusOK),
	}
	RouteDeleteExpenses = Route{
		Method: http.MethodDelete, Path: "api/delete_expenses",
		Operation: log.OpDeleteExpenses, Success: exactly(http.StatusOK),
	}
	RouteUploadReceipt = Route{
		Method: http.MethodPost, Path: "api/upload_receipt_to_blob",
		Operation: log.OpUploadReceipt, Success: any2xx,
	}
)
