package stats

import (
	"math"
	"sort"

	"formica/internal/model"
)

// CurvePoint aggregates every agent's outcome of one episode.
type CurvePoint struct {
	Episode     int     `json:"episode"`
	Agents      int     `json:"agents"`
	Mean        float64 `json:"mean"`
	Std         float64 `json:"std"`
	Best        float64 `json:"best"`
	Rewards     int     `json:"rewards"`
	Punishments int     `json:"punishments"`
	MeanStates  float64 `json:"mean_states"`
}

// EpisodeCurve groups records by episode, in episode order.
func EpisodeCurve(records []model.EpisodeRecord) []CurvePoint {
	byEpisode := make(map[int][]model.EpisodeRecord)
	for _, record := range records {
		byEpisode[record.Episode] = append(byEpisode[record.Episode], record)
	}
	episodes := make([]int, 0, len(byEpisode))
	for episode := range byEpisode {
		episodes = append(episodes, episode)
	}
	sort.Ints(episodes)

	curve := make([]CurvePoint, 0, len(episodes))
	for _, episode := range episodes {
		group := byEpisode[episode]
		fitness := make([]float64, 0, len(group))
		states := make([]float64, 0, len(group))
		point := CurvePoint{Episode: episode, Agents: len(group)}
		for _, record := range group {
			fitness = append(fitness, record.Fitness)
			states = append(states, float64(record.States))
			point.Rewards += record.Rewards
			point.Punishments += record.Punishments
		}
		point.Mean, point.Std = avgStd(fitness)
		point.Best = maxFloat(fitness)
		point.MeanStates, _ = avgStd(states)
		curve = append(curve, point)
	}
	return curve
}

// Summary returns the best fitness over the whole curve and the mean fitness
// of its last episode.
func Summary(curve []CurvePoint) (best, finalMean float64) {
	if len(curve) == 0 {
		return 0, 0
	}
	best = curve[0].Best
	for _, point := range curve[1:] {
		best = math.Max(best, point.Best)
	}
	return best, curve[len(curve)-1].Mean
}

func avgStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, value := range values {
		sum += value
	}
	mean := sum / float64(len(values))
	variance := 0.0
	for _, value := range values {
		diff := value - mean
		variance += diff * diff
	}
	return mean, math.Sqrt(variance / float64(len(values)))
}

func maxFloat(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	best := values[0]
	for _, value := range values[1:] {
		if value > best {
			best = value
		}
	}
	return best
}
