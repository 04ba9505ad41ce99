package papers

import (
	"mentorsim.ai/internal/sim/mathx"
	"mentorsim.ai/internal/sim/model"
	"mentorsim.ai/internal/sim/rng"
	"mentorsim.ai/internal/sim/tuning"
)

const (
	progressMin = 20
	progressMax = 40

	burstMin = 60
	burstMax = 100

	// ContributionPerPaper is how much accumulated progress one submission takes.
	ContributionPerPaper = 100
)

// CoreScore weighs the attributes that drive research output.
func CoreScore(s model.Student) float64 {
	return float64(s.Diligence)*0.45 + float64(s.Talent)*0.4 + float64(s.Luck)*0.15
}

func burstEligible(s model.Student) bool {
	return s.Talent >= 90 && s.Luck >= 85 && s.MentalState >= 75 && s.Stress <= 60
}

// BurstChance is the probability an eligible student has a breakthrough quarter.
func BurstChance(luck int) float64 {
	return mathx.ClampFloat(0.06+float64(luck-85)/220, 0.06, 0.18)
}

// QuarterProgress is the contribution a student earns in one quarter.
func QuarterProgress(s model.Student, activeProjects int, mentored bool, src rng.Source) int {
	if burstEligible(s) && rng.Chance(src, BurstChance(s.Luck)) {
		return rng.Roll(src, burstMin, burstMax)
	}

	v := 30 + (CoreScore(s)-50)*0.2
	v += float64(2 * mathx.ClampInt(activeProjects, 0, 2))
	if mentored {
		v += 2
	}
	switch {
	case s.MentalState >= 70:
		v += 2
	case s.MentalState < 25:
		v -= 5
	case s.MentalState < 40:
		v -= 3
	}
	switch {
	case s.Stress >= 80:
		v -= 4
	case s.Stress >= 60:
		v -= 2
	case s.Stress <= 30:
		v++
	}

	jitter := rng.Roll(src, -4, 4) + mathx.ClampInt(mathx.Round(float64(s.Luck-50)/25), -2, 2)
	return mathx.ClampInt(mathx.Round(v)+jitter, progressMin, progressMax)
}

// Accrue adds amount to the student's contribution. Each full
// ContributionPerPaper becomes one new submission (the remainder carries
// over) and costs the student some mental state and stress.
func Accrue(s model.Student, amount int, t tuning.PaperTuning) (model.Student, int) {
	total := s.Contribution + amount
	if total < 0 {
		total = 0
	}
	spawned := total / ContributionPerPaper
	s.Contribution = total % ContributionPerPaper
	if spawned == 0 {
		return s, 0
	}
	s = model.ApplyStudentDelta(s, model.StudentDelta{
		MentalState:   model.Int(t.SpawnMental * spawned),
		Stress:        model.Int(t.SpawnStress * spawned),
		PendingPapers: model.Int(spawned),
	})
	return s, spawned
}
