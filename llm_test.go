package main

import (
	"errors"
	"strings"
	"testing"
)

func TestBuildTabRecordsPreservesOrderAndHints(t *testing.T) {
	tabs := []Tab{
		{Handle: 501, Title: "Pull requests", URL: "https://github.com/org/repo/pulls", GroupID: -1},
		{Handle: 502, Title: "Cart", URL: "https://example.com/cart", GroupID: 3},
		{Handle: 503, Title: "New Tab", URL: "about:blank", GroupID: -1},
	}
	prefs := map[string]string{"example.com": "Shopping"}

	records := buildTabRecords(tabs, prefs)

	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i, r := range records {
		if r.Index != i {
			t.Fatalf("record %d has index %d, order not preserved", i, r.Index)
		}
	}
	if records[0].Domain != "github.com" || records[0].LearnedGroup != "" {
		t.Fatalf("unexpected record 0: %+v", records[0])
	}
	if records[1].LearnedGroup != "Shopping" {
		t.Fatalf("expected learned group Shopping, got %q", records[1].LearnedGroup)
	}
	if records[2].Domain != "" {
		t.Fatalf("expected empty domain for about:blank, got %q", records[2].Domain)
	}
}

func TestBuildClassifyPromptsListsTabsAndHints(t *testing.T) {
	records := []TabRecord{
		{Index: 0, Title: "Pull requests", Domain: "github.com"},
		{Index: 1, Title: "Cart", Domain: "example.com", LearnedGroup: "Shopping"},
	}

	systemPrompt, userPrompt := buildClassifyPrompts(records)

	if !strings.Contains(systemPrompt, "MUST be used verbatim") {
		t.Fatalf("system prompt missing verbatim-hint instruction: %s", systemPrompt)
	}
	if !strings.Contains(systemPrompt, "JSON only") {
		t.Fatalf("system prompt missing output format instruction: %s", systemPrompt)
	}
	if !strings.Contains(userPrompt, `Tab 0: "Pull requests" (domain: github.com)`) {
		t.Fatalf("user prompt missing tab 0 line: %s", userPrompt)
	}
	if !strings.Contains(userPrompt, `Tab 1: "Cart" (domain: example.com) [learned group: "Shopping"]`) {
		t.Fatalf("user prompt missing learned-group hint: %s", userPrompt)
	}
	if strings.Contains(userPrompt, "Tab 0:") && strings.Contains(userPrompt, "[learned group") &&
		strings.Index(userPrompt, "[learned group") < strings.Index(userPrompt, "Tab 1:") {
		t.Fatalf("hint attached to wrong tab: %s", userPrompt)
	}
}

func TestParseCategoriesResponse(t *testing.T) {
	cases := []struct {
		name string
		text string
		want []ProposedCategory
	}{
		{
			"bare array",
			`[{"name": "Dev", "tabIndices": [0, 2]}, {"name": "News", "tabIndices": [1]}]`,
			[]ProposedCategory{{Name: "Dev", TabIndices: []int{0, 2}}, {Name: "News", TabIndices: []int{1}}},
		},
		{
			"json fences",
			"```json\n[{\"name\": \"Dev\", \"tabIndices\": [0]}, {\"name\": \"News\", \"tabIndices\": [1]}]\n```",
			[]ProposedCategory{{Name: "Dev", TabIndices: []int{0}}, {Name: "News", TabIndices: []int{1}}},
		},
		{
			"plain fences",
			"```\n[{\"name\": \"Dev\", \"tabIndices\": [0]}]\n```",
			[]ProposedCategory{{Name: "Dev", TabIndices: []int{0}}},
		},
		{
			"object wrapper",
			`{"categories": [{"name": "Dev", "tabIndices": [0, 1]}]}`,
			[]ProposedCategory{{Name: "Dev", TabIndices: []int{0, 1}}},
		},
		{
			"string indices",
			`[{"name": "Dev", "tabIndices": ["0", "2"]}]`,
			[]ProposedCategory{{Name: "Dev", TabIndices: []int{0, 2}}},
		},
		{
			"mixed indices",
			`[{"name": "Dev", "tabIndices": [0, "1", null]}]`,
			[]ProposedCategory{{Name: "Dev", TabIndices: []int{0, 1}}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseCategoriesResponse(tc.text)
			if err != nil {
				t.Fatalf("parseCategoriesResponse failed: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("expected %d categories, got %d: %+v", len(tc.want), len(got), got)
			}
			for i := range tc.want {
				if got[i].Name != tc.want[i].Name {
					t.Fatalf("category %d: expected name %q, got %q", i, tc.want[i].Name, got[i].Name)
				}
				if len(got[i].TabIndices) != len(tc.want[i].TabIndices) {
					t.Fatalf("category %d: expected indices %v, got %v", i, tc.want[i].TabIndices, got[i].TabIndices)
				}
				for j := range tc.want[i].TabIndices {
					if got[i].TabIndices[j] != tc.want[i].TabIndices[j] {
						t.Fatalf("category %d: expected indices %v, got %v", i, tc.want[i].TabIndices, got[i].TabIndices)
					}
				}
			}
		})
	}
}

func TestParseCategoriesResponseMalformed(t *testing.T) {
	cases := []struct {
		name string
		text string
	}{
		{"prose", "I organized your tabs into three groups."},
		{"empty", ""},
		{"object without categories", `{"result": "ok"}`},
		{"truncated json", `[{"name": "Dev", "tabIndices": [0`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseCategoriesResponse(tc.text)
			if err == nil {
				t.Fatalf("expected malformed error for %q", tc.text)
			}
			var malformed *malformedError
			if !errors.As(err, &malformed) {
				t.Fatalf("expected *malformedError, got %T: %v", err, err)
			}
		})
	}
}

func TestParseCategoriesResponseNullIndices(t *testing.T) {
	got, err := parseCategoriesResponse(`[{"name": "Dev", "tabIndices": null}, {"name": "News", "tabIndices": [0]}]`)
	if err != nil {
		t.Fatalf("parseCategoriesResponse failed: %v", err)
	}
	if got[0].TabIndices != nil {
		t.Fatalf("expected nil indices for null field, got %v", got[0].TabIndices)
	}
}
