package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/tidwall/gjson"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"

// classifier is the remote-classification boundary. Implementations return
// the proposed categories exactly as the service suggested them; all repair
// happens downstream in RepairCategories.
type classifier interface {
	Classify(ctx context.Context, records []TabRecord) ([]ProposedCategory, error)
}

// transportError: the classification service could not be reached at all.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return "classifier unreachable: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// rejectedError: the service was reached but declined the request
// (auth, rate limit, bad request).
type rejectedError struct {
	statusCode int
	message    string
}

func (e *rejectedError) Error() string {
	return fmt.Sprintf("classifier rejected request (status %d): %s", e.statusCode, e.message)
}

// malformedError: the call succeeded but the reply was not a parseable
// category list.
type malformedError struct {
	err error
}

func (e *malformedError) Error() string { return "malformed classifier response: " + e.err.Error() }
func (e *malformedError) Unwrap() error { return e.err }

// buildTabRecords pairs each snapshot tab with its learned preference hint.
// Pure; preserves snapshot order, since the positional index is the
// correlation key for the classifier reply.
func buildTabRecords(tabs []Tab, prefs map[string]string) []TabRecord {
	records := make([]TabRecord, len(tabs))
	for i, tab := range tabs {
		domain := domainOf(tab.URL)
		records[i] = TabRecord{
			Index:        i,
			Title:        tab.Title,
			Domain:       domain,
			LearnedGroup: prefs[domain],
		}
	}
	return records
}

func buildClassifyPrompts(records []TabRecord) (string, string) {
	systemPrompt := `You organize browser tabs into named groups.
Group the tabs below into 2-6 categories by topic or purpose.

Rules:
- Every tab index must appear in exactly one category.
- Use short, specific category names (e.g. "Development", "Shopping", "News").
- Never use generic names like "Other", "Misc" or "Random".
- When a tab lists a learned group, that exact name MUST be used verbatim as its category name.

Respond with JSON only (no markdown):
[{"name": "Development", "tabIndices": [0, 2]}, {"name": "News", "tabIndices": [1]}, ...]`

	var tabLines strings.Builder
	for _, r := range records {
		tabLines.WriteString(fmt.Sprintf("Tab %d: %q (domain: %s)", r.Index, strings.TrimSpace(r.Title), r.Domain))
		if r.LearnedGroup != "" {
			tabLines.WriteString(fmt.Sprintf(" [learned group: %q]", r.LearnedGroup))
		}
		tabLines.WriteString("\n")
	}

	userPrompt := "Organize these tabs:\n\n" + tabLines.String()
	return systemPrompt, userPrompt
}

type anthropicClassifier struct {
	apiKey string
	model  string
}

func newAnthropicClassifier(cfg Config) *anthropicClassifier {
	model := cfg.LLMModel
	if model == "" {
		model = defaultAnthropicModel
	}
	return &anthropicClassifier{apiKey: cfg.AnthropicAPIKey, model: model}
}

func (c *anthropicClassifier) Classify(ctx context.Context, records []TabRecord) ([]ProposedCategory, error) {
	systemPrompt, userPrompt := buildClassifyPrompts(records)

	client := anthropic.NewClient(option.WithAPIKey(c.apiKey))
	log.Printf("llm classify model=%s tabs=%d", c.model, len(records))

	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 2048,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		var apierr *anthropic.Error
		if errors.As(err, &apierr) {
			log.Printf("llm rejected status=%d: %v", apierr.StatusCode, err)
			return nil, &rejectedError{statusCode: apierr.StatusCode, message: apiErrorReason(apierr)}
		}
		log.Printf("llm transport error: %v", err)
		return nil, &transportError{err: err}
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			log.Printf("llm response size=%d tokens_in=%d tokens_out=%d",
				len(block.Text), message.Usage.InputTokens, message.Usage.OutputTokens)
			return parseCategoriesResponse(block.Text)
		}
	}
	return nil, &malformedError{err: fmt.Errorf("no text content in response")}
}

// apiErrorReason pulls the service's own message out of the error body when
// present, so the user sees "rate limited" rather than a JSON dump.
func apiErrorReason(apierr *anthropic.Error) string {
	if msg := gjson.Get(apierr.RawJSON(), "error.message"); msg.Exists() {
		return msg.String()
	}
	return apierr.Error()
}

// rawCategory tolerates index lists the model emits as numbers, strings, or
// a mix of both.
type rawCategory struct {
	Name       string          `json:"name"`
	TabIndices json.RawMessage `json:"tabIndices"`
}

func parseCategoriesResponse(responseText string) ([]ProposedCategory, error) {
	responseText = strings.TrimSpace(responseText)
	responseText = strings.TrimPrefix(responseText, "```json")
	responseText = strings.TrimPrefix(responseText, "```")
	responseText = strings.TrimSuffix(responseText, "```")
	responseText = strings.TrimSpace(responseText)

	// Some replies wrap the array in an object: {"categories": [...]}.
	if strings.HasPrefix(responseText, "{") {
		if wrapped := gjson.Get(responseText, "categories"); wrapped.IsArray() {
			responseText = wrapped.Raw
		}
	}

	var raw []rawCategory
	if err := json.Unmarshal([]byte(responseText), &raw); err != nil {
		truncated := responseText
		if len(truncated) > 512 {
			truncated = truncated[:512] + fmt.Sprintf("... [truncated, total_length=%d]", len(responseText))
		}
		return nil, &malformedError{err: fmt.Errorf("parsing categories: %w (response: %s)", err, truncated)}
	}

	categories := make([]ProposedCategory, 0, len(raw))
	for _, r := range raw {
		categories = append(categories, ProposedCategory{
			Name:       strings.TrimSpace(r.Name),
			TabIndices: parseIndicesField(r.TabIndices),
		})
	}
	return categories, nil
}

func parseIndicesField(raw json.RawMessage) []int {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	// Primary expected shape: [0, 1, 2]
	var asInts []int
	if err := json.Unmarshal(raw, &asInts); err == nil {
		return asInts
	}

	// Also accept model outputs like ["0", "1"] or mixed arrays.
	var asAnySlice []any
	if err := json.Unmarshal(raw, &asAnySlice); err == nil {
		out := make([]int, 0, len(asAnySlice))
		for _, v := range asAnySlice {
			switch x := v.(type) {
			case float64:
				out = append(out, int(x))
			case string:
				var n int
				if _, err := fmt.Sscanf(strings.TrimSpace(x), "%d", &n); err == nil {
					out = append(out, n)
				}
			}
		}
		return out
	}

	return nil
}
