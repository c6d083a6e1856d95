// Package scoring rates a finished run against age and gender benchmarks
// and computes the composite agility score.
package scoring

import (
	"fmt"
	"math"
	"strings"
)

// Rating buckets a total time against the athlete's benchmark.
type Rating string

const (
	Excellent Rating = "Excellent"
	Good      Rating = "Good"
	Average   Rating = "Average"
	Poor      Rating = "Poor"
)

// ageBand maps an inclusive age range to its group label.
type ageBand struct {
	min, max int
	group    string
}

// bands covers ages 4 through 120. Lookups below or above the table
// clamp to the nearest band.
var bands = []ageBand{
	{4, 5, "U6"},
	{6, 7, "U8"},
	{8, 9, "U10"},
	{10, 11, "U12"},
	{12, 13, "U14"},
	{14, 15, "U16"},
	{16, 17, "U18"},
	{18, 19, "U20"},
	{20, 34, "Senior"},
	{35, 44, "Masters-35-44"},
	{45, 54, "Masters-45-54"},
	{55, 120, "Masters-55-plus"},
}

// AgeGroup returns the group label for an age. Ages below the table map
// to the youngest group, ages above it to the oldest.
func AgeGroup(age int) string {
	if age < bands[0].min {
		return bands[0].group
	}
	for _, b := range bands {
		if age >= b.min && age <= b.max {
			return b.group
		}
	}
	return bands[len(bands)-1].group
}

// AgeGroups lists the group labels in band order.
func AgeGroups() []string {
	out := make([]string, len(bands))
	for i, b := range bands {
		out[i] = b.group
	}
	return out
}

// NormalizeGender maps the accepted spellings to the canonical "M"/"F".
func NormalizeGender(g string) (string, bool) {
	switch strings.ToUpper(strings.TrimSpace(g)) {
	case "M", "MALE":
		return "M", true
	case "F", "FEMALE":
		return "F", true
	}
	return "", false
}

// Benchmark holds the rating cut-offs for one age group and gender, in
// seconds of total run time.
type Benchmark struct {
	AgeGroup      string  `json:"age_group"`
	Gender        string  `json:"gender"`
	ExcellentMaxS float64 `json:"excellent_max_s"`
	GoodMaxS      float64 `json:"good_max_s"`
	AverageMaxS   float64 `json:"average_max_s"`
}

// BenchmarkSource resolves the benchmark for an age group and gender.
type BenchmarkSource interface {
	Benchmark(ageGroup, gender string) (Benchmark, error)
}

// Rate buckets a total time against the benchmark cut-offs.
func Rate(totalS float64, b Benchmark) Rating {
	switch {
	case totalS <= b.ExcellentMaxS:
		return Excellent
	case totalS <= b.GoodMaxS:
		return Good
	case totalS <= b.AverageMaxS:
		return Average
	}
	return Poor
}

// Input carries the run metrics the agility score is built from.
type Input struct {
	TotalTimeS   float64
	AvgTurnTimeS float64
	MaxSpeedMS   float64
}

// Agility turn and speed constants. A 0.4s turn is treated as optimal;
// 8 m/s is the sprint-speed ceiling of the acceleration component.
const (
	optimalTurnS   = 0.4
	turnPenaltyS   = 1.6
	speedCeilingMS = 8.0
	timeComponent  = 50.0
	turnComponent  = 30.0
	accelComponent = 20.0
)

// Agility computes the 0-100 composite score: up to 50 points for total
// time (linear between the excellent and average cut-offs), up to 30 for
// turn speed and up to 20 for top speed. Hostile inputs (NaN, negative,
// infinite) clamp to the score bounds instead of poisoning the result.
func Agility(in Input, b Benchmark) float64 {
	var timeScore float64
	if spread := b.AverageMaxS - b.ExcellentMaxS; spread > 0 {
		timeScore = timeComponent * clamp01((b.AverageMaxS-in.TotalTimeS)/spread)
	}
	turnScore := turnComponent * clamp01(1.0-(in.AvgTurnTimeS-optimalTurnS)/turnPenaltyS)
	accelScore := accelComponent * clamp01(in.MaxSpeedMS/speedCeilingMS)

	total := timeScore + turnScore + accelScore
	if math.IsNaN(total) {
		return 0
	}
	return math.Min(100, math.Max(0, total))
}

// Score is the full scoring outcome for one run.
type Score struct {
	AgeGroup     string    `json:"age_group"`
	Gender       string    `json:"gender"`
	Rating       Rating    `json:"rating"`
	AgilityScore float64   `json:"agility_score"`
	Benchmark    Benchmark `json:"benchmark"`
}

// Evaluate resolves the athlete's benchmark and scores the run against
// it. The gender must already be normalized.
func Evaluate(age int, gender string, in Input, src BenchmarkSource) (Score, error) {
	group := AgeGroup(age)
	bench, err := src.Benchmark(group, gender)
	if err != nil {
		return Score{}, fmt.Errorf("benchmark for %s/%s: %w", group, gender, err)
	}
	return Score{
		AgeGroup:     group,
		Gender:       gender,
		Rating:       Rate(in.TotalTimeS, bench),
		AgilityScore: Agility(in, bench),
		Benchmark:    bench,
	}, nil
}

// clamp01 bounds x to [0,1] and maps NaN to 0.
func clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
