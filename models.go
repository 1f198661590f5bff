package main

import (
	"net/url"
	"strings"
)

// Tab is a live browser tab as reported by the extension. Handle is the
// browser's tab ID and is only used on the daemon side to address mutation
// commands; it is never sent to the classifier.
type Tab struct {
	Handle  int    `json:"id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	GroupID int    `json:"groupId"` // -1 when the tab is not in a group
}

// TabRecord is one line of the classification request. Index is positional
// within the snapshot and is the only addressing key the classifier sees.
type TabRecord struct {
	Index        int
	Title        string
	Domain       string
	LearnedGroup string // preferred group name for the domain, empty if none
}

// ProposedCategory is one category from the classifier reply. Untrusted:
// indices may repeat, be missing, or be out of range.
type ProposedCategory struct {
	Name       string `json:"name"`
	TabIndices []int  `json:"tabIndices"`
}

// ValidatedCategory is a repaired category: non-empty non-generic name,
// indices unique across the whole returned sequence and all in range.
type ValidatedCategory struct {
	Name       string
	TabIndices []int
}

// GroupInfo describes the group a tab was manually moved into.
type GroupInfo struct {
	Title string `json:"title"`
	Color string `json:"color"`
}

// OrganizeResult is the outcome of one organize run.
type OrganizeResult struct {
	Success       bool   `json:"success"`
	GroupsCreated int    `json:"groupCount"`
	Remaining     int    `json:"remaining"`
	Reason        string `json:"error,omitempty"`
}

// UsageStats is the quota view exposed to the popup.
type UsageStats struct {
	Used       int    `json:"used"`
	Limit      int    `json:"limit"`
	Remaining  int    `json:"remaining"`
	ResetLabel string `json:"resetDate"`
}

// domainOf extracts the hostname used as the preference-learning key.
// Returns "" for URLs with no usable host (about:blank, chrome:// pages
// without a host, malformed input).
func domainOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return u.Hostname()
}
