package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"
)

// groupColors is the Chrome tab-group palette, cycled in emission order.
var groupColors = []string{"blue", "red", "yellow", "green", "pink", "purple", "cyan", "orange"}

// Organizer runs the organize pipeline: quota gate, clean-slate ungroup,
// snapshot, classification, repair, materialization. One run at a time.
type Organizer struct {
	cfg        Config
	db         *sql.DB
	host       BrowserHost
	classifier classifier
	inFlight   atomic.Bool
}

func NewOrganizer(cfg Config, db *sql.DB, host BrowserHost, cls classifier) *Organizer {
	return &Organizer{cfg: cfg, db: db, host: host, classifier: cls}
}

func failResult(reason string) OrganizeResult {
	return OrganizeResult{Success: false, Reason: reason}
}

// Organize performs one full organize run. The visible outcome is
// all-or-nothing: any failure reports success=false, even though groups
// created before a mid-sequence host failure are left in place.
func (o *Organizer) Organize(ctx context.Context) OrganizeResult {
	if !o.inFlight.CompareAndSwap(false, true) {
		return failResult("organize already in progress")
	}
	defer o.inFlight.Store(false)

	if strings.TrimSpace(o.cfg.AnthropicAPIKey) == "" {
		return failResult("anthropic_api_key is not configured")
	}

	stats, allowed, err := CheckAndConsumeQuota(o.db, o.cfg.FreeTierLimit, time.Now())
	if err != nil {
		return failResult(fmt.Sprintf("usage check failed: %v", err))
	}
	if !allowed {
		return failResult(fmt.Sprintf("monthly limit of %d organizes reached, resets %s", stats.Limit, stats.ResetLabel))
	}

	tabs, err := o.host.ListTabs(ctx)
	if err != nil {
		return failResult(fmt.Sprintf("listing tabs failed: %v", err))
	}
	log.Printf("organize: %d tabs in window", len(tabs))
	if len(tabs) == 0 {
		return OrganizeResult{Success: true, GroupsCreated: 0, Remaining: stats.Remaining}
	}

	// Clean slate: grouping is a full recompute, never incremental.
	var grouped []int
	for _, tab := range tabs {
		if tab.GroupID >= 0 {
			grouped = append(grouped, tab.Handle)
		}
	}
	if len(grouped) > 0 {
		if err := o.host.Ungroup(ctx, grouped); err != nil {
			return failResult(fmt.Sprintf("ungrouping tabs failed: %v", err))
		}
	}

	prefs, err := GetDomainPreferences(o.db)
	if err != nil {
		// Hints only bias the classifier; run without them.
		log.Printf("organize: preference read failed, continuing without hints: %v", err)
		prefs = nil
	}
	records := buildTabRecords(tabs, prefs)

	cctx, cancel := context.WithTimeout(ctx, o.cfg.ClassifyTimeout())
	defer cancel()
	proposed, err := o.classifier.Classify(cctx, records)
	if err != nil {
		return failResult(err.Error())
	}

	validated := RepairCategories(proposed, len(tabs))

	created, err := materializeGroups(ctx, o.host, validated, tabs)
	if err != nil {
		return failResult(fmt.Sprintf("group creation failed after %d groups: %v", created, err))
	}

	log.Printf("organize: created %d groups, %d organizes remaining this month", created, stats.Remaining)
	return OrganizeResult{Success: true, GroupsCreated: created, Remaining: stats.Remaining}
}

// UsageStats reports the current month's quota without consuming it.
func (o *Organizer) UsageStats() UsageStats {
	stats, err := GetUsageStats(o.db, o.cfg.FreeTierLimit, time.Now())
	if err != nil {
		log.Printf("usage stats read failed: %v", err)
		return UsageStats{Limit: o.cfg.FreeTierLimit, Remaining: o.cfg.FreeTierLimit, ResetLabel: quotaResetLabel(time.Now())}
	}
	return stats
}

// materializeGroups maps validated categories back to live tab handles and
// creates one browser group per category. Indices that no longer resolve to
// a snapshot tab are dropped silently (the tab closed mid-run). The color
// index advances only when a group was actually created.
func materializeGroups(ctx context.Context, host BrowserHost, categories []ValidatedCategory, tabs []Tab) (int, error) {
	colorIdx := 0
	created := 0
	for _, cat := range categories {
		handles := make([]int, 0, len(cat.TabIndices))
		for _, idx := range cat.TabIndices {
			if idx >= 0 && idx < len(tabs) {
				handles = append(handles, tabs[idx].Handle)
			}
		}
		if len(handles) == 0 {
			continue
		}

		groupID, err := host.Group(ctx, handles)
		if err != nil {
			return created, fmt.Errorf("grouping %q: %w", cat.Name, err)
		}
		created++
		color := groupColors[colorIdx%len(groupColors)]
		colorIdx++

		if err := host.UpdateGroup(ctx, groupID, cat.Name, color, false); err != nil {
			return created, fmt.Errorf("labeling %q: %w", cat.Name, err)
		}
		log.Printf("organize: created group %q tabs=%d color=%s", cat.Name, len(handles), color)
	}
	return created, nil
}
