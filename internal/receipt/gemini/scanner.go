// Package gemini reads receipts with Google's Gemini models.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"expensinator/internal/core"
	"expensinator/internal/log"
	"expensinator/internal/receipt"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

var (
	ErrMissingAPIKey = errors.New("gemini api key is required")
	ErrEmptyResponse = errors.New("empty response from model")
)

// Scanner implements receipt.Scanner on top of the Gemini API.
type Scanner struct {
	client *genai.Client
	model  string
	logger *log.Logger
}

// NewScanner creates a Gemini-backed scanner.
func NewScanner(ctx context.Context, apiKey, model string, logger *log.Logger) (*Scanner, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = log.Discard()
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	return &Scanner{client: client, model: model, logger: logger.WithComponent(log.ComponentScanner)}, nil
}

// Scan sends the image with the extraction prompt and parses the reply.
func (s *Scanner) Scan(ctx context.Context, img receipt.Image) (receipt.ScanResult, error) {
	if len(img.Data) == 0 {
		return receipt.ScanResult{}, errors.New("empty receipt image")
	}
	mime := img.ContentType
	if mime == "" {
		mime = http.DetectContentType(img.Data)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(img.Data, mime),
			genai.NewPartFromText(Prompt()),
		}, genai.RoleUser),
	}

	s.logger.InfoContext(ctx, "Scanning receipt", log.FieldOperation, log.OpScan, "model", s.model, "bytes", len(img.Data))
	resp, err := s.client.Models.GenerateContent(ctx, s.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Receipt scan failed",
			log.NewFields().WithOperation(log.OpScan).WithError(err).ToSlice()...)
		return receipt.ScanResult{}, fmt.Errorf("generate content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return receipt.ScanResult{}, ErrEmptyResponse
	}
	var raw strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			raw.WriteString(part.Text)
		}
	}

	result, err := ParseResponse(raw.String())
	if err != nil {
		s.logger.WarnContext(ctx, "Could not parse scan response",
			log.NewFields().WithOperation(log.OpScan).WithError(err).With(log.FieldBody, raw.String()).ToSlice()...)
		return receipt.ScanResult{}, err
	}
	s.logger.InfoContext(ctx, "Receipt scanned", log.FieldCount, len(result.Items))
	return result, nil
}

// Prompt asks the model for line items using the fixed category names.
func Prompt() string {
	var b strings.Builder
	b.WriteString("Read this shopping receipt and return a RAW JSON object. Do NOT use markdown formatting.\n")
	b.WriteString(`The object must have "items" (array), "date" (YYYY-MM-DD or null) and "currency" (ISO 4217 code or null).` + "\n")
	b.WriteString(`Each item must have "name", "quantity" (number), "price" (unit price, number) and "category".` + "\n")
	b.WriteString("category must be one of: ")
	b.WriteString(strings.Join(core.CategoryNames(), ", "))
	b.WriteString(".\n")
	return b.String()
}

// ParseResponse strips markdown fences from the model output and decodes it.
func ParseResponse(text string) (receipt.ScanResult, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)
	if text == "" {
		return receipt.ScanResult{}, ErrEmptyResponse
	}

	var out receipt.ScanResult
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return receipt.ScanResult{}, fmt.Errorf("decode scan response: %w", err)
	}
	for i := range out.Items {
		out.Items[i].Name = strings.TrimSpace(out.Items[i].Name)
		if out.Items[i].Quantity <= 0 {
			out.Items[i].Quantity = 1
		}
	}
	return out, nil
}
