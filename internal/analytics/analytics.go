package analytics

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/DivM11/social-fact-checker/internal/storage"
)

// DailyStats summarizes the reply journal for one day.
type DailyStats struct {
	Date          string                 `json:"date"`
	Processed     int                    `json:"processed"`
	ByStatus      map[string]int         `json:"by_status"`
	HandleStats   map[string]HandleStats `json:"handle_stats"`
	FailedPostIDs []string               `json:"failed_post_ids,omitempty"`
}

// HandleStats holds per-handle counters.
type HandleStats struct {
	Handle   string `json:"handle"`
	Posts    int    `json:"posts"`
	Replied  int    `json:"replied"`
	Failures int    `json:"failures"`
}

// AnalyzeDailyReplies aggregates the events of targetDate's day.
func AnalyzeDailyReplies(events []storage.ReplyEvent, targetDate time.Time) *DailyStats {
	startOfDay := time.Date(targetDate.Year(), targetDate.Month(), targetDate.Day(), 0, 0, 0, 0, targetDate.Location())
	endOfDay := startOfDay.Add(24 * time.Hour)

	stats := &DailyStats{
		Date:        startOfDay.Format("2006-01-02"),
		ByStatus:    make(map[string]int),
		HandleStats: make(map[string]HandleStats),
	}

	for _, event := range events {
		if event.Timestamp.Before(startOfDay) || !event.Timestamp.Before(endOfDay) {
			continue
		}
		stats.Processed++
		stats.ByStatus[event.Status]++

		hs, ok := stats.HandleStats[event.Handle]
		if !ok {
			hs = HandleStats{Handle: event.Handle}
		}
		hs.Posts++
		switch event.Status {
		case storage.StatusPosted:
			hs.Replied++
		case storage.StatusGenerationError, storage.StatusSubmitError:
			hs.Failures++
			stats.FailedPostIDs = append(stats.FailedPostIDs, event.PostID)
		}
		stats.HandleStats[event.Handle] = hs
	}
	return stats
}

// GenerateReportSummary renders a plain-text digest for the operator.
func (ds *DailyStats) GenerateReportSummary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Fact-checker digest for %s\n\n", ds.Date)
	fmt.Fprintf(&b, "Posts processed: %d\n", ds.Processed)
	fmt.Fprintf(&b, "Replies posted: %d\n", ds.ByStatus[storage.StatusPosted])
	fmt.Fprintf(&b, "Generation failures: %d\n", ds.ByStatus[storage.StatusGenerationError])
	fmt.Fprintf(&b, "Submission failures: %d\n", ds.ByStatus[storage.StatusSubmitError])
	if n := ds.ByStatus[storage.StatusDryRun]; n > 0 {
		fmt.Fprintf(&b, "Dry runs: %d\n", n)
	}

	if len(ds.HandleStats) > 0 {
		handles := make([]string, 0, len(ds.HandleStats))
		for h := range ds.HandleStats {
			handles = append(handles, h)
		}
		sort.Strings(handles)
		b.WriteString("\nBy handle:\n")
		for _, h := range handles {
			hs := ds.HandleStats[h]
			fmt.Fprintf(&b, "- @%s: %d posts, %d replied", hs.Handle, hs.Posts, hs.Replied)
			if hs.Failures > 0 {
				fmt.Fprintf(&b, ", %d failed", hs.Failures)
			}
			b.WriteString("\n")
		}
	}

	if len(ds.FailedPostIDs) > 0 {
		fmt.Fprintf(&b, "\nFailed posts: %s\n", strings.Join(ds.FailedPostIDs, ", "))
	}
	return b.String()
}

// ToJSON returns the stats as indented JSON.
func (ds *DailyStats) ToJSON() (string, error) {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
