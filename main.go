package main

import (
	"context"
	"log"
	"net/http"
)

func main() {
	cfg := LoadConfig()

	db, err := InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}
	defer db.Close()

	bridge := NewExtensionBridge(cfg.BridgeCallTimeout())
	org := NewOrganizer(cfg, db, bridge, newAnthropicClassifier(cfg))

	bridge.OnOrganize = func() OrganizeResult {
		return org.Organize(context.Background())
	}
	bridge.OnUsageStats = org.UsageStats
	bridge.OnTabAttached = func(tab Tab, group GroupInfo) {
		RecordObservation(db, domainOf(tab.URL), group.Title)
	}

	StartAutoOrganizeScheduler(cfg, org)

	http.Handle("/bridge", bridge)
	log.Printf("Tab organizer daemon listening on %s", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, nil); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
