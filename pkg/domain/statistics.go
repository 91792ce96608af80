package domain

import (
	"math"
	"sort"
)

// RecentLimit is how many history records Statistics reports.
const RecentLimit = 5

// Statistics aggregates the active set and the history log.
type Statistics struct {
	TotalExecutions int             `json:"totalExecutions"`
	ActiveProtocols int             `json:"activeProtocols"`
	SuccessRate     float64         `json:"successRate"`
	RecentProtocols []HistoryRecord `json:"recentProtocols"`
}

// ComputeStatistics derives Statistics from the stored documents.
// history is expected in append order; recent records are returned newest first.
func ComputeStatistics(activeCount int, history []HistoryRecord) Statistics {
	stats := Statistics{
		TotalExecutions: len(history),
		ActiveProtocols: activeCount,
		RecentProtocols: []HistoryRecord{},
	}
	if len(history) == 0 {
		return stats
	}

	ok := 0
	for _, h := range history {
		if h.Success {
			ok++
		}
	}
	stats.SuccessRate = math.Round(float64(ok)/float64(len(history))*1000) / 10

	start := len(history) - RecentLimit
	if start < 0 {
		start = 0
	}
	for i := len(history) - 1; i >= start; i-- {
		stats.RecentProtocols = append(stats.RecentProtocols, history[i])
	}
	return stats
}

// SortHistory orders records by completion time, oldest first, keeping insertion order for ties.
func SortHistory(history []HistoryRecord) {
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].CompletedAt.Before(history[j].CompletedAt)
	})
}
