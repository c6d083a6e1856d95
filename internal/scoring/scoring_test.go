package scoring

import (
	"errors"
	"math"
	"testing"
)

func TestAgeGroup_Bands(t *testing.T) {
	cases := []struct {
		age  int
		want string
	}{
		{4, "U6"},
		{5, "U6"},
		{6, "U8"},
		{9, "U10"},
		{10, "U12"},
		{11, "U12"},
		{12, "U14"},
		{17, "U18"},
		{19, "U20"},
		{20, "Senior"},
		{34, "Senior"},
		{35, "Masters-35-44"},
		{54, "Masters-45-54"},
		{55, "Masters-55-plus"},
		{120, "Masters-55-plus"},
	}
	for _, c := range cases {
		if got := AgeGroup(c.age); got != c.want {
			t.Errorf("AgeGroup(%d): expected %s, got %s", c.age, c.want, got)
		}
	}
}

func TestAgeGroup_ClampsOutOfRange(t *testing.T) {
	if got := AgeGroup(2); got != "U6" {
		t.Errorf("below-table age must clamp to U6, got %s", got)
	}
	if got := AgeGroup(130); got != "Masters-55-plus" {
		t.Errorf("above-table age must clamp to the oldest group, got %s", got)
	}
}

func TestAgeGroups_Order(t *testing.T) {
	groups := AgeGroups()
	if len(groups) != 12 {
		t.Fatalf("expected 12 groups, got %d", len(groups))
	}
	if groups[0] != "U6" || groups[8] != "Senior" || groups[11] != "Masters-55-plus" {
		t.Errorf("unexpected group order: %v", groups)
	}
}

func TestNormalizeGender(t *testing.T) {
	for _, in := range []string{"M", "m", "male", " Male "} {
		if got, ok := NormalizeGender(in); !ok || got != "M" {
			t.Errorf("NormalizeGender(%q) = %q, %v", in, got, ok)
		}
	}
	if got, ok := NormalizeGender("female"); !ok || got != "F" {
		t.Errorf("NormalizeGender(female) = %q, %v", got, ok)
	}
	if _, ok := NormalizeGender("x"); ok {
		t.Error("unknown gender must not normalize")
	}
}

func seniorM() Benchmark {
	return Benchmark{AgeGroup: "Senior", Gender: "M", ExcellentMaxS: 8.5, GoodMaxS: 10.0, AverageMaxS: 12.0}
}

func TestRate(t *testing.T) {
	b := seniorM()
	cases := []struct {
		total float64
		want  Rating
	}{
		{8.0, Excellent},
		{8.5, Excellent},
		{9.2, Good},
		{10.0, Good},
		{11.5, Average},
		{12.0, Average},
		{13.0, Poor},
	}
	for _, c := range cases {
		if got := Rate(c.total, b); got != c.want {
			t.Errorf("Rate(%.1f): expected %s, got %s", c.total, c.want, got)
		}
	}
	if got := Rate(13.0, b); got != Rating("Poor") {
		t.Errorf("fourth rating label must be Poor, got %q", got)
	}
}

func TestAgility_TypicalRun(t *testing.T) {
	in := Input{TotalTimeS: 10.25, AvgTurnTimeS: 0.4, MaxSpeedMS: 8.0}
	got := Agility(in, seniorM())
	// Time exactly mid-band gives 25, turn and speed both max out.
	if math.Abs(got-75.0) > 1e-9 {
		t.Errorf("expected 75.0, got %f", got)
	}
}

func TestAgility_Bounds(t *testing.T) {
	b := seniorM()
	if got := Agility(Input{TotalTimeS: 7, AvgTurnTimeS: 0.2, MaxSpeedMS: 12}, b); got != 100 {
		t.Errorf("elite run must score 100, got %f", got)
	}
	if got := Agility(Input{TotalTimeS: 30, AvgTurnTimeS: 5, MaxSpeedMS: 0}, b); got != 0 {
		t.Errorf("worst run must score 0, got %f", got)
	}
}

func TestAgility_HostileInputs(t *testing.T) {
	b := seniorM()
	cases := []Input{
		{TotalTimeS: math.NaN(), AvgTurnTimeS: 0.5, MaxSpeedMS: 5},
		{TotalTimeS: 10, AvgTurnTimeS: math.NaN(), MaxSpeedMS: 5},
		{TotalTimeS: 10, AvgTurnTimeS: 0.5, MaxSpeedMS: math.Inf(1)},
		{TotalTimeS: math.Inf(-1), AvgTurnTimeS: -3, MaxSpeedMS: -10},
		{TotalTimeS: -5, AvgTurnTimeS: 0, MaxSpeedMS: 1e18},
	}
	for i, in := range cases {
		got := Agility(in, b)
		if math.IsNaN(got) || got < 0 || got > 100 {
			t.Errorf("case %d: score %f out of [0,100]", i, got)
		}
	}
}

type fakeSource struct {
	bench Benchmark
	err   error
}

func (s fakeSource) Benchmark(ageGroup, gender string) (Benchmark, error) {
	if s.err != nil {
		return Benchmark{}, s.err
	}
	b := s.bench
	b.AgeGroup = ageGroup
	b.Gender = gender
	return b, nil
}

func TestEvaluate(t *testing.T) {
	src := fakeSource{bench: seniorM()}
	score, err := Evaluate(25, "M", Input{TotalTimeS: 9.0, AvgTurnTimeS: 0.6, MaxSpeedMS: 6.0}, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score.AgeGroup != "Senior" {
		t.Errorf("expected Senior, got %s", score.AgeGroup)
	}
	if score.Rating != Good {
		t.Errorf("expected Good, got %s", score.Rating)
	}
	if score.AgilityScore <= 0 || score.AgilityScore > 100 {
		t.Errorf("score %f out of range", score.AgilityScore)
	}
}

func TestEvaluate_MissingBenchmark(t *testing.T) {
	sentinel := errors.New("no such benchmark")
	_, err := Evaluate(25, "M", Input{}, fakeSource{err: sentinel})
	if !errors.Is(err, sentinel) {
		t.Errorf("expected the source error to be wrapped, got %v", err)
	}
}
