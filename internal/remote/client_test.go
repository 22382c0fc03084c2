package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensinator/internal/core"
)

type recorded struct {
	method      string
	path        string
	contentType string
	body        []byte
}

// fakeFunctions serves a fixed status and body and records the last request.
func fakeFunctions(t *testing.T, status int, body string) (*Client, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.contentType = r.Header.Get("Content-Type")
		rec.body, _ = io.ReadAll(r.Body)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c, rec
}

func amount(t *testing.T, s string) core.Amount {
	t.Helper()
	a, err := core.ParseAmount(s)
	require.NoError(t, err)
	return a
}

func TestNewClientValidatesBaseURL(t *testing.T) {
	for _, bad := range []string{"", "ftp://x", "://", "https://"} {
		_, err := NewClient(bad)
		assert.Error(t, err, bad)
	}
	c, err := NewClient("https://example.test/functions")
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/functions/", c.BaseURL())
}

func TestListExpenses(t *testing.T) {
	c, rec := fakeFunctions(t, http.StatusOK, `[
		{"expenseId":1,"userId":1,"amount":"3.50","categoryId":8,"description":"Coffee","date":"2024-11-10","createdAt":"2024-11-10 08:00:00"},
		{"expenseId":2,"userId":1,"amount":12.5,"categoryId":17,"description":"Pens","receiptUrl":"https://b/x.png","date":"2024-11-11","createdAt":"2024-11-11 08:00:00"}
	]`)

	list, err := c.ListExpenses(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, http.MethodGet, rec.method)
	assert.Equal(t, "/api/get_expenses", rec.path)
	assert.Equal(t, "3.50", list[0].Amount.String())
	assert.Equal(t, "12.50", list[1].Amount.String())
	assert.NotEqual(t, list[0].LocalID, list[1].LocalID)
}

func TestListExpensesFailures(t *testing.T) {
	t.Run("404 is a remote failure", func(t *testing.T) {
		c, _ := fakeFunctions(t, http.StatusNotFound, "No expenses found.")
		_, err := c.ListExpenses(context.Background())
		var rerr *RemoteOperationFailedError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, http.StatusNotFound, rerr.StatusCode)
		assert.Equal(t, "No expenses found.", rerr.Body)
		assert.Equal(t, http.StatusNotFound, StatusCode(err))
	})

	t.Run("malformed body is a decoding error", func(t *testing.T) {
		c, _ := fakeFunctions(t, http.StatusOK, `{"not":"a list"}`)
		_, err := c.ListExpenses(context.Background())
		var derr *DecodingError
		require.ErrorAs(t, err, &derr)
	})

	t.Run("non-decimal amount is a decoding error", func(t *testing.T) {
		c, _ := fakeFunctions(t, http.StatusOK, `[{"userId":1,"amount":"abc","categoryId":1,"description":"x","date":"2024-01-01","createdAt":"2024-01-01 00:00:00"}]`)
		_, err := c.ListExpenses(context.Background())
		var derr *DecodingError
		require.ErrorAs(t, err, &derr)
		assert.True(t, errors.Is(err, core.ErrInvalidAmount))
	})

	t.Run("missing createdAt is a decoding error", func(t *testing.T) {
		c, _ := fakeFunctions(t, http.StatusOK, `[{"expenseId":7,"userId":1,"amount":"1","categoryId":8,"description":"x","date":"2024-01-01"}]`)
		_, err := c.ListExpenses(context.Background())
		var derr *DecodingError
		require.ErrorAs(t, err, &derr)
		assert.ErrorIs(t, err, core.ErrMissingField)
	})

	t.Run("unreachable host is a transport error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		srv.Close()
		c, err := NewClient(srv.URL)
		require.NoError(t, err)
		_, err = c.ListExpenses(context.Background())
		var terr *TransportError
		require.ErrorAs(t, err, &terr)
	})

	t.Run("cancelled context is a transport error", func(t *testing.T) {
		c, _ := fakeFunctions(t, http.StatusOK, `[]`)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := c.ListExpenses(ctx)
		var terr *TransportError
		require.ErrorAs(t, err, &terr)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestListCategoriesRejectsNamelessCategories(t *testing.T) {
	c, rec := fakeFunctions(t, http.StatusOK, `[{"categoryId":1,"name":"Food"},{"categoryId":2,"name":""}]`)
	_, err := c.ListCategories(context.Background())
	var derr *DecodingError
	require.ErrorAs(t, err, &derr)
	assert.ErrorIs(t, err, core.ErrEmptyCategoryName)
	assert.Equal(t, "/api/get_categories", rec.path)
}

func TestAddExpense(t *testing.T) {
	e := core.Expense{
		UserID:      1,
		Amount:      amount(t, "100.00"),
		CategoryID:  20,
		Description: "Rent",
		Date:        core.NewDate(2024, 11, 1),
		CreatedAt:   core.NewTimestamp(time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC)),
	}

	t.Run("201 succeeds", func(t *testing.T) {
		c, rec := fakeFunctions(t, http.StatusCreated, "Expense added successfully.")
		msg, err := c.AddExpense(context.Background(), e)
		require.NoError(t, err)
		assert.Equal(t, MsgExpenseAdded, msg)
		assert.Equal(t, http.MethodPost, rec.method)
		assert.Equal(t, "/api/add_expense", rec.path)
		assert.Equal(t, "application/json", rec.contentType)
		body := string(rec.body)
		assert.Contains(t, body, `"amount":"100.00"`)
		assert.Contains(t, body, `"categoryId":20`)
		assert.Contains(t, body, `"date":"2024-11-01"`)
	})

	t.Run("empty body falls back to default message", func(t *testing.T) {
		c, _ := fakeFunctions(t, http.StatusCreated, "")
		msg, err := c.AddExpense(context.Background(), e)
		require.NoError(t, err)
		assert.Equal(t, MsgExpenseAdded, msg)
	})

	t.Run("200 is not success", func(t *testing.T) {
		c, _ := fakeFunctions(t, http.StatusOK, "ok")
		_, err := c.AddExpense(context.Background(), e)
		assert.Equal(t, http.StatusOK, StatusCode(err))
	})
}

func TestUpdateExpensesSendsBothArraysInOneRequest(t *testing.T) {
	var requests int
	var got UpdateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/update_expenses", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	newOnes := []core.Expense{
		{UserID: 1, Amount: amount(t, "5"), CategoryID: 8, Description: "a", Date: core.NewDate(2024, 1, 1)},
		{UserID: 1, Amount: amount(t, "6"), CategoryID: 8, Description: "b", Date: core.NewDate(2024, 1, 2)},
		{UserID: 1, Amount: amount(t, "7"), CategoryID: 8, Description: "c", Date: core.NewDate(2024, 1, 3)},
	}
	msg, err := c.UpdateExpenses(context.Background(), []int64{4, 9}, newOnes)
	require.NoError(t, err)
	assert.Equal(t, MsgExpensesUpdated, msg)
	assert.Equal(t, 1, requests)
	assert.Equal(t, []int64{4, 9}, got.OldExpenseIDs)
	require.Len(t, got.NewExpenses, 3)
	assert.Equal(t, "c", got.NewExpenses[2].Description)
}

func TestUpdateExpensesNilArraysAreEmptyLists(t *testing.T) {
	c, rec := fakeFunctions(t, http.StatusOK, "")
	_, err := c.UpdateExpenses(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"oldExpenseIDs":[],"newExpenses":[]}`, string(rec.body))
}

func TestDeleteExpenses(t *testing.T) {
	list := []core.Expense{{ExpenseID: core.Int64(3), UserID: 1, Amount: amount(t, "1"), Description: "x", Date: core.NewDate(2024, 1, 1)}}

	c, rec := fakeFunctions(t, http.StatusOK, "")
	msg, err := c.DeleteExpenses(context.Background(), list)
	require.NoError(t, err)
	assert.Equal(t, MsgExpensesDeleted, msg)
	assert.Equal(t, http.MethodDelete, rec.method)
	assert.Equal(t, "/api/delete_expenses", rec.path)
	assert.True(t, strings.HasPrefix(string(rec.body), `[{"expenseId":3`), string(rec.body))

	c, _ = fakeFunctions(t, http.StatusNoContent, "")
	_, err = c.DeleteExpenses(context.Background(), list)
	assert.Equal(t, http.StatusNoContent, StatusCode(err))
}

func TestUploadReceipt(t *testing.T) {
	c, rec := fakeFunctions(t, http.StatusOK, `{"blobUrl":"https://blob.test/receipts/1.png"}`)
	url, err := c.UploadReceipt(context.Background(), []byte{0x89, 'P', 'N', 'G'})
	require.NoError(t, err)
	assert.Equal(t, "https://blob.test/receipts/1.png", url)
	assert.Equal(t, "image/png", rec.contentType)
	assert.Equal(t, "/api/upload_receipt_to_blob", rec.path)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, rec.body)

	c, _ = fakeFunctions(t, http.StatusOK, `{"url":"x"}`)
	_, err = c.UploadReceipt(context.Background(), []byte{1})
	var derr *DecodingError
	assert.ErrorAs(t, err, &derr)

	_, err = c.UploadReceipt(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyImage)
}
