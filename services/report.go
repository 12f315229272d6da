package services

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github-commit-notify/models"
)

// AuthorStat is one contributor's entry in the archived weekly stats.
type AuthorStat struct {
	Count        int     `json:"count"`
	UserID       uint    `json:"userId"`
	GithubLogin  *string `json:"githubLogin"`
	TelegramName string  `json:"telegramName"`
}

// ReportLocation resolves the digest time zone from REPORT_TIMEZONE.
func ReportLocation() *time.Location {
	name := os.Getenv("REPORT_TIMEZONE")
	if name == "" {
		name = "Europe/Moscow"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Printf("invalid REPORT_TIMEZONE %q, using UTC: %v", name, err)
		return time.UTC
	}
	return loc
}

// PreviousWeekWindow returns the Monday 00:00 of the week before now and the
// Monday 00:00 that ends it (exclusive), in now's location.
func PreviousWeekWindow(now time.Time) (start, end time.Time) {
	weekday := int(now.Weekday())
	if weekday == 0 {
		weekday = 7 // ISO weeks start on Monday
	}
	thisMonday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).
		AddDate(0, 0, -(weekday - 1))
	return thisMonday.AddDate(0, 0, -7), thisMonday
}

// RunWeeklyReport computes the previous week's contributor counts for every
// repository, sends a digest to each of its bindings and archives the stats.
// Delivery failures are isolated per binding; the archive row is written
// regardless of delivery outcome, including for repositories with no commits.
func RunWeeklyReport(db *gorm.DB, tg *TelegramClient, now time.Time) error {
	WeeklyReportRuns.Inc()
	weekStart, weekEnd := PreviousWeekWindow(now)

	var repos []models.Repository
	if err := db.Find(&repos).Error; err != nil {
		return err
	}

	for _, repo := range repos {
		var commits []models.Commit
		err := db.Preload("Author").
			Where("repository_id = ? AND committed_at >= ? AND committed_at < ?",
				repo.ID, weekStart, weekEnd).
			Find(&commits).Error
		if err != nil {
			log.Printf("weekly commit query failed (repo: %s): %v", repo.FullName, err)
			continue
		}

		// Commits without a resolvable author stay in the total but are
		// excluded from the ranking.
		stats := make(map[uint]*AuthorStat)
		var order []uint
		for _, commit := range commits {
			if commit.Author == nil {
				continue
			}
			entry, ok := stats[commit.Author.ID]
			if !ok {
				entry = &AuthorStat{
					UserID:       commit.Author.ID,
					GithubLogin:  commit.Author.GithubLogin,
					TelegramName: commit.Author.TelegramName,
				}
				stats[commit.Author.ID] = entry
				order = append(order, commit.Author.ID)
			}
			entry.Count++
		}

		ranked := make([]*AuthorStat, 0, len(order))
		for _, id := range order {
			ranked = append(ranked, stats[id])
		}
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].Count > ranked[j].Count
		})

		digest := formatWeeklyDigest(repo, weekStart, ranked, len(commits))

		var bindings []models.ChatBinding
		if err := db.Where("repository_id = ?", repo.ID).Find(&bindings).Error; err != nil {
			log.Printf("weekly binding query failed (repo: %s): %v", repo.FullName, err)
		}
		for _, binding := range bindings {
			err := tg.SendMessage(binding.ChatID, digest, &SendMessageOptions{ThreadID: binding.ThreadID})
			if err != nil {
				log.Printf("weekly digest send failed (chat: %d, repo: %s): %v",
					binding.ChatID, repo.FullName, err)
				WeeklyDigestsFailed.Inc()
				continue
			}
			WeeklyDigestsSent.Inc()
		}

		statsJSON, err := json.Marshal(stats)
		if err != nil {
			log.Printf("weekly stats marshal failed (repo: %s): %v", repo.FullName, err)
			statsJSON = []byte("{}")
		}

		report := models.WeeklyReport{
			ID:           uuid.NewString(),
			RepositoryID: repo.ID,
			WeekStart:    weekStart,
			WeekEnd:      weekStart.AddDate(0, 0, 6),
			Stats:        string(statsJSON),
			SentAt:       now,
		}
		if err := db.Create(&report).Error; err != nil {
			log.Printf("weekly report archive failed (repo: %s): %v", repo.FullName, err)
		}
	}

	return nil
}

func formatWeeklyDigest(repo models.Repository, weekStart time.Time, ranked []*AuthorStat, total int) string {
	weekEnd := weekStart.AddDate(0, 0, 6)

	digest := fmt.Sprintf("📊 *%s* %s\n", EscapeMarkdown("Weekly report for"), EscapeMarkdown(repo.Name))
	digest += fmt.Sprintf("*%s*: %s %s %s\n\n",
		EscapeMarkdown("Period"),
		EscapeMarkdown(weekStart.Format("02.01.2006")),
		"\\-",
		EscapeMarkdown(weekEnd.Format("02.01.2006")))

	if total == 0 {
		digest += EscapeMarkdown("No commits this week.")
		return digest
	}

	digest += fmt.Sprintf("*%s*\n", EscapeMarkdown("Top contributors:"))
	digest += EscapeMarkdown("----------------------------------") + "\n"

	for i, entry := range ranked {
		login := "N/A"
		if entry.GithubLogin != nil {
			login = *entry.GithubLogin
		}
		name := entry.TelegramName
		if name == "" {
			name = login
		}

		line := fmt.Sprintf("%d\\. ", i+1)
		if entry.TelegramName != "" {
			line += fmt.Sprintf("%s \\(GitHub: %s\\)", EscapeMarkdown(name), EscapeMarkdown(login))
		} else {
			line += EscapeMarkdown(name)
		}
		line += fmt.Sprintf(" — *%d* %s\n", entry.Count, EscapeMarkdown("commit(s)"))
		digest += line
	}

	digest += EscapeMarkdown("----------------------------------") + "\n"
	digest += fmt.Sprintf("\n*%s*: %d", EscapeMarkdown("Total commits"), total)
	return digest
}

// StartWeeklyReportScheduler fires the digest every Monday 08:00 in the
// report time zone. The next timer is armed only after the previous run
// returns, so runs never overlap.
func StartWeeklyReportScheduler(db *gorm.DB, tg *TelegramClient) {
	loc := ReportLocation()
	go func() {
		for {
			now := time.Now().In(loc)
			time.Sleep(nextMondayMorning(now).Sub(now))

			log.Println("starting weekly report run")
			if err := RunWeeklyReport(db, tg, time.Now().In(loc)); err != nil {
				log.Printf("weekly report run failed: %v", err)
			}
		}
	}()
}

func nextMondayMorning(now time.Time) time.Time {
	daysAhead := (int(time.Monday) - int(now.Weekday()) + 7) % 7
	candidate := time.Date(now.Year(), now.Month(), now.Day(), 8, 0, 0, 0, now.Location()).
		AddDate(0, 0, daysAhead)
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}
