package app

import (
	"sort"
	"time"

	"mente-maestra/internal/domain"
)

// ComputeScore turns correctness and latency into points: the milliseconds left
// on the clock when a correct answer lands, zero otherwise. Latency is clamped
// to the time limit, so an over-limit correct answer still scores zero.
func ComputeScore(timeLimit, responseTime time.Duration, correct bool) int64 {
	if !correct {
		return 0
	}
	if responseTime < 0 {
		responseTime = 0
	}
	if responseTime > timeLimit {
		responseTime = timeLimit
	}
	return (timeLimit - responseTime).Milliseconds()
}

// BuildPodium derives the final standings from the full answer history.
// Totals are always recomputed here, never cached on participant records.
// Ranking: total score descending, ties broken by ascending total time.
func BuildPodium(participants []domain.Participant, answers []domain.ParticipantAnswer) []domain.PodiumEntry {
	entries := make([]domain.PodiumEntry, 0, len(participants))
	for _, p := range participants {
		entry := domain.PodiumEntry{Participant: p}
		for _, a := range answers {
			if a.ParticipantID != p.ID {
				continue
			}
			entry.TotalScore += a.Score
			entry.TotalTimeMs += a.ResponseTimeMs
			entry.AnsweredCount++
			if a.IsCorrect {
				entry.CorrectAnswers++
			}
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].TotalScore != entries[j].TotalScore {
			return entries[i].TotalScore > entries[j].TotalScore
		}
		return entries[i].TotalTimeMs < entries[j].TotalTimeMs
	})

	for i := range entries {
		entries[i].Position = i + 1
	}
	return entries
}
