// Package llm calls an OpenAI-compatible chat completion API for drafting
// outreach emails, extracting trade document fields from pasted text, and
// building regulatory checklists. The client degrades gracefully: when no
// API key is configured every call returns ErrNotConfigured and the rest
// of the app keeps working.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/tradedoc"
)

// ErrNotConfigured indicates no LLM backend is configured.
var ErrNotConfigured = errors.New("llm not configured")

// Client talks to an OpenAI-compatible chat completion endpoint.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

// NewClient creates an LLM client. baseURL and apiKey may be empty; the
// client then reports unconfigured on every call.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   "gpt-4o-mini",
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// IsConfigured returns true if the client can make API calls.
func (c *Client) IsConfigured() bool {
	return c.baseURL != "" && c.apiKey != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Chat sends a system and user message and returns the assistant reply.
func (c *Client) Chat(ctx context.Context, system, user string) (string, error) {
	return c.complete(ctx, system, user, false)
}

func (c *Client) complete(ctx context.Context, system, user string, jsonMode bool) (string, error) {
	if !c.IsConfigured() {
		return "", ErrNotConfigured
	}

	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	if jsonMode {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("llm error: %s", parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("llm returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// EmailDraft is a drafted outreach email.
type EmailDraft struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

const draftSystemPrompt = `You draft concise, professional B2B outreach emails for a Korean cosmetics exporter.
Reply with a JSON object: {"subject": "...", "body": "..."}.`

// DraftOutreachEmail drafts an outreach email for a buyer.
func (c *Client) DraftOutreachEmail(ctx context.Context, buyerCompany, buyerCountry, productSummary string) (*EmailDraft, error) {
	user := fmt.Sprintf("Buyer: %s (%s)\nProducts: %s", buyerCompany, buyerCountry, productSummary)
	content, err := c.complete(ctx, draftSystemPrompt, user, true)
	if err != nil {
		return nil, err
	}

	var draft EmailDraft
	if err := json.Unmarshal([]byte(content), &draft); err != nil {
		return nil, fmt.Errorf("decode email draft: %w", err)
	}
	if draft.Subject == "" || draft.Body == "" {
		return nil, errors.New("draft missing subject or body")
	}
	return &draft, nil
}

const extractSystemPrompt = `You extract trade document fields from pasted text (an OCR dump or email thread).
Reply with a JSON object using these keys where present: companyName, address, contact,
buyerName, incoterms, portLoading, portDischarge, paymentTerms, leadTime, moq, currency,
hsCode, origin, totalAmount, items (array of {sku, qty, unitPrice, amount}).
Omit keys you cannot find. Do not guess numbers.`

// ExtractFields pulls trade document fields out of unstructured text.
func (c *Client) ExtractFields(ctx context.Context, text string) (tradedoc.Fields, error) {
	content, err := c.complete(ctx, extractSystemPrompt, text, true)
	if err != nil {
		return tradedoc.Fields{}, err
	}

	var fields tradedoc.Fields
	if err := json.Unmarshal([]byte(content), &fields); err != nil {
		return tradedoc.Fields{}, fmt.Errorf("decode extracted fields: %w", err)
	}
	return fields, nil
}

const regulatorySystemPrompt = `You list cosmetics import registration requirements for a destination country.
Reply with a JSON object: {"items": [{"name": "...", "status": "pending"}]}.
Every item starts as pending; the user marks progress in the app.`

type regulatoryReply struct {
	Items []tradedoc.RuleItem `json:"items"`
}

// RegulatoryChecklist builds a starting checklist of registration
// requirements for exporting cosmetics to the given country.
func (c *Client) RegulatoryChecklist(ctx context.Context, country string) ([]tradedoc.RuleItem, error) {
	content, err := c.complete(ctx, regulatorySystemPrompt, "Destination country: "+country, true)
	if err != nil {
		return nil, err
	}

	var reply regulatoryReply
	if err := json.Unmarshal([]byte(content), &reply); err != nil {
		return nil, fmt.Errorf("decode regulatory checklist: %w", err)
	}
	return reply.Items, nil
}
