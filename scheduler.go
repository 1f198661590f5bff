package main

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// StartAutoOrganizeScheduler starts a cron-based scheduler that periodically
// runs a full organize pass, for users who want their window tidied on a
// schedule rather than on demand.
// The schedule is a standard 5-field cron expression (minute hour day-of-month month day-of-week).
// Examples: "0 9 * * *" (daily 9am), "0 9 * * 1-5" (weekdays 9am).
func StartAutoOrganizeScheduler(cfg Config, org *Organizer) {
	schedule := strings.TrimSpace(cfg.AutoOrganizeSchedule)
	if schedule == "" {
		log.Println("Auto-organize disabled (auto_organize_schedule not set)")
		return
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		log.Printf("Invalid auto_organize_schedule '%s': %v — auto-organize disabled", schedule, err)
		return
	}

	log.Printf("Auto-organize scheduled (cron: %s)", schedule)

	go func() {
		for {
			now := time.Now()
			next := sched.Next(now)
			wait := next.Sub(now)
			log.Printf("Next auto-organize at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

			time.Sleep(wait)

			result := org.Organize(context.Background())
			if result.Success {
				log.Printf("Auto-organize complete: %d groups created", result.GroupsCreated)
			} else {
				log.Printf("Auto-organize failed: %s", result.Reason)
			}
		}
	}()
}
