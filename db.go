package main

import (
	"database/sql"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS preferences (
		domain     TEXT NOT NULL,
		group_name TEXT NOT NULL,
		count      INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (domain, group_name)
	);
	CREATE INDEX IF NOT EXISTS idx_preferences_domain ON preferences(domain);

	CREATE TABLE IF NOT EXISTS usage (
		period_key TEXT PRIMARY KEY,
		count      INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err = db.Exec(schema)
	if err != nil {
		return nil, err
	}

	return db, nil
}

// RecordObservation bumps the count for (domain, groupName) after the user
// manually moved a tab into a group. Learning is best-effort: storage errors
// are logged and swallowed, and empty inputs are ignored.
func RecordObservation(db *sql.DB, domain, groupName string) {
	if domain == "" || groupName == "" {
		return
	}
	_, err := db.Exec(
		`INSERT INTO preferences (domain, group_name, count) VALUES (?, ?, 1)
		 ON CONFLICT(domain, group_name) DO UPDATE SET count = count + 1, updated_at = CURRENT_TIMESTAMP`,
		domain, groupName,
	)
	if err != nil {
		log.Printf("preferences record error domain=%s group=%q: %v", domain, groupName, err)
		return
	}
	log.Printf("preferences learned domain=%s group=%q", domain, groupName)
}

// preferenceTrustThreshold is the observation count below which a learned
// group is not treated as a stable preference. A single manual move can be
// accidental.
const preferenceTrustThreshold = 2

// PreferredGroup returns the group name with the highest observation count
// for the domain, or "" when no group has reached the trust threshold.
// Tie-break order between equal max counts is unspecified.
func PreferredGroup(db *sql.DB, domain string) (string, error) {
	var name string
	var count int
	err := db.QueryRow(
		`SELECT group_name, count FROM preferences WHERE domain = ? ORDER BY count DESC LIMIT 1`,
		domain,
	).Scan(&name, &count)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if count < preferenceTrustThreshold {
		return "", nil
	}
	return name, nil
}

// GetDomainPreferences loads the trusted preference for every domain in one
// query, so a snapshot of N tabs costs one read instead of N.
func GetDomainPreferences(db *sql.DB) (map[string]string, error) {
	rows, err := db.Query(
		`SELECT domain, group_name, count FROM preferences ORDER BY domain, count ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	// Ascending count order: the last row per domain is a max-count group.
	best := make(map[string]string)
	bestCount := make(map[string]int)
	for rows.Next() {
		var domain, name string
		var count int
		if err := rows.Scan(&domain, &name, &count); err != nil {
			return nil, err
		}
		if count >= bestCount[domain] {
			bestCount[domain] = count
			best[domain] = name
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for domain, count := range bestCount {
		if count < preferenceTrustThreshold {
			delete(best, domain)
		}
	}
	return best, nil
}

func periodKey(now time.Time) string {
	return now.Format("2006-01")
}

// quotaResetLabel is the first day of the next period, shown to the user.
func quotaResetLabel(now time.Time) string {
	next := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, 1, 0)
	return next.Format("Jan 2, 2006")
}

// CheckAndConsumeQuota consumes one organize run from the monthly budget.
// The counter rolls over automatically when the period key changes; rows for
// past periods are left behind and ignored.
func CheckAndConsumeQuota(db *sql.DB, limit int, now time.Time) (UsageStats, bool, error) {
	key := periodKey(now)

	var used int
	err := db.QueryRow(`SELECT count FROM usage WHERE period_key = ?`, key).Scan(&used)
	if err != nil && err != sql.ErrNoRows {
		return UsageStats{}, false, err
	}

	stats := UsageStats{Used: used, Limit: limit, Remaining: limit - used, ResetLabel: quotaResetLabel(now)}
	if used >= limit {
		stats.Remaining = 0
		return stats, false, nil
	}

	_, err = db.Exec(
		`INSERT INTO usage (period_key, count) VALUES (?, 1)
		 ON CONFLICT(period_key) DO UPDATE SET count = count + 1, updated_at = CURRENT_TIMESTAMP`,
		key,
	)
	if err != nil {
		return stats, false, err
	}

	stats.Used = used + 1
	stats.Remaining = limit - stats.Used
	return stats, true, nil
}

// GetUsageStats reads the current period's usage without consuming.
func GetUsageStats(db *sql.DB, limit int, now time.Time) (UsageStats, error) {
	var used int
	err := db.QueryRow(`SELECT count FROM usage WHERE period_key = ?`, periodKey(now)).Scan(&used)
	if err != nil && err != sql.ErrNoRows {
		return UsageStats{}, err
	}
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return UsageStats{Used: used, Limit: limit, Remaining: remaining, ResetLabel: quotaResetLabel(now)}, nil
}
