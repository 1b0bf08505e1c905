// workers/daily_reset_worker.go
package workers

import (
	"log"
	"time"

	"board-arena-system/services"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

// DailyResetWorker closes out abandoned tournaments after the daily
// boundary. A user who walked away mid-run keeps a non-terminal slot
// forever otherwise, and StartSession would keep handing it back.
type DailyResetWorker struct {
	db         *gorm.DB
	tournament *services.TournamentService
}

func NewDailyResetWorker(db *gorm.DB, tournament *services.TournamentService) *DailyResetWorker {
	return &DailyResetWorker{db: db, tournament: tournament}
}

func (w *DailyResetWorker) Start() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Shortly after midnight, then hourly as a catch-up for rows the first
	// pass missed (e.g., DB hiccups).
	_, _ = sched.NewJob(
		gocron.CronJob("5 0 * * *", false),
		gocron.NewTask(w.sweep),
	)
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(w.sweep),
	)

	log.Println("🔁 Starting Daily Reset Worker (stale tournament sweep)…")
}

// startOfToday is local midnight, matching how the engine decides whether
// a slot was played "today". Truncate would give UTC midnight instead.
func startOfToday() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

func (w *DailyResetWorker) sweep() {
	midnight := startOfToday()

	var userIDs []string
	err := w.db.Raw(`
		SELECT id FROM user_records
		WHERE (neighborhood_tournament IS NOT NULL AND neighborhood_last_played_at < ?)
		   OR (national_tournament IS NOT NULL AND national_last_played_at < ?)
		   OR (world_tournament IS NOT NULL AND world_last_played_at < ?)
	`, midnight, midnight, midnight).Scan(&userIDs).Error
	if err != nil {
		log.Printf("[RESET] ❌ DB error scanning stale sessions: %v", err)
		return
	}
	if len(userIDs) == 0 {
		return
	}

	var expired, failed int
	for _, id := range userIDs {
		n, err := w.tournament.ExpireStaleSessions(id)
		if err != nil {
			failed++
			log.Printf("[RESET] ⚠️ Failed to expire sessions for user %s: %v", id, err)
			continue
		}
		expired += n
	}
	log.Printf("[RESET] ✅ Swept %d user(s): %d session(s) expired, %d error(s)",
		len(userIDs), expired, failed)
}
