package tuning

import "mentorsim.ai/internal/sim/model"

func Defaults() Tuning {
	i := model.Int
	return Tuning{
		Mentor: MentorTuning{
			Start: model.MentorStats{
				Morale:    model.Gauge{Current: 70, Max: 100},
				Academia:  model.Gauge{Current: 50, Max: 100},
				Admin:     model.Gauge{Current: 50, Max: 100},
				Integrity: model.Gauge{Current: 80, Max: 100},
				Funding:   60000,
			},
			UpkeepPerStudent: 2500,
			BrokeMorale:      -3,
		},
		Recruit: RecruitTuning{
			DefaultType: model.StudentMaster,
			Stress:      model.Range{Min: 0, Max: 30},
			MentalState: model.Range{Min: 60, Max: 100},
		},
		Care: CareTuning{
			Whip:    model.StudentDelta{Diligence: i(3), Stress: i(6)},
			Comfort: model.StudentDelta{Stress: i(-6), MentalState: i(4)},
		},
		Projects: ProjectTuning{
			CompletionReputation: 1,
			CompletionMorale:     2,
		},
		Papers: PaperTuning{
			BaseAcceptance:     map[model.Tier]float64{model.TierA: 0.18, model.TierB: 0.28, model.TierC: 0.42},
			BaseRevision:       map[model.Tier]float64{model.TierA: 0.55, model.TierB: 0.45, model.TierC: 0.35},
			MajorChanceByRound: []float64{0.6, 0.4, 0.25, 0.15},
			AcceptMin:          0.06,
			AcceptMax:          0.85,
			CombinedMax:        0.95,
			ReviewQuarters:     map[model.Tier]int{model.TierA: 2, model.TierB: 2, model.TierC: 1},
			RevisionQuarters:   map[model.RevisionKind]int{model.RevisionMinor: 1, model.RevisionMajor: 2},
			DowngradeQuarters:  1,
			AcceptReward: map[model.Tier]Reward{
				model.TierA: {Reputation: 3, Funding: 12000},
				model.TierB: {Reputation: 2, Funding: 8000},
				model.TierC: {Reputation: 1, Funding: 5000},
			},
			AcceptStudent: model.StudentDelta{MentalState: i(4), Stress: i(-5), PendingPapers: i(-1), TotalPapers: i(1)},
			RejectMorale:  -2,
			RejectStudent: model.StudentDelta{MentalState: i(-5), Stress: i(4), PendingPapers: i(-1)},
			SpawnMental:   -2,
			SpawnStress:   3,
		},
		Grants: map[model.GrantType]GrantConfig{
			model.GrantNational: {
				Title:             "National Science Fund",
				OpeningQuarter:    1,
				ReviewQuarters:    2,
				ExecutionQuarters: 8,
				RejectBelow:       60,
				TierBFloor:        65,
				TierAFloor:        80,
				Tiers: map[model.Tier]GrantTierConfig{
					model.TierA: {
						Funding:              300000,
						Reputation:           model.Range{Min: 6, Max: 8},
						Requirement:          ClosureRequirement{Submissions: 4, Acceptances: 2, MinVenueTier: model.TierA},
						ProgressBoost:        6,
						CompletionReputation: 3,
						FailureReputation:    -4,
						FailureMorale:        -8,
					},
					model.TierB: {
						Funding:              180000,
						Reputation:           model.Range{Min: 4, Max: 5},
						Requirement:          ClosureRequirement{Submissions: 3, Acceptances: 1, MinVenueTier: model.TierB},
						ProgressBoost:        4,
						CompletionReputation: 2,
						FailureReputation:    -3,
						FailureMorale:        -6,
					},
					model.TierC: {
						Funding:              100000,
						Reputation:           model.Range{Min: 2, Max: 3},
						Requirement:          ClosureRequirement{Submissions: 2, Acceptances: 1},
						ProgressBoost:        2,
						CompletionReputation: 1,
						FailureReputation:    -2,
						FailureMorale:        -4,
					},
				},
				ReviewEventChance:    0.35,
				ExecutionEventChance: 0.3,
				RejectMorale:         -2,
			},
			model.GrantEnterprise: {
				Title:             "Enterprise Partnership",
				OpeningQuarter:    3,
				ReviewQuarters:    1,
				ExecutionQuarters: 4,
				RejectBelow:       55,
				TierBFloor:        65,
				TierAFloor:        78,
				Tiers: map[model.Tier]GrantTierConfig{
					model.TierA: {
						Funding:              150000,
						Reputation:           model.Range{Min: 3, Max: 4},
						Requirement:          ClosureRequirement{Submissions: 2, Acceptances: 1, MinVenueTier: model.TierB},
						ProgressBoost:        6,
						CompletionReputation: 2,
						FailureReputation:    -3,
						FailureMorale:        -6,
					},
					model.TierB: {
						Funding:              90000,
						Reputation:           model.Range{Min: 2, Max: 3},
						Requirement:          ClosureRequirement{Submissions: 2, Acceptances: 1},
						ProgressBoost:        4,
						CompletionReputation: 1,
						FailureReputation:    -2,
						FailureMorale:        -4,
					},
					model.TierC: {
						Funding:              50000,
						Reputation:           model.Range{Min: 1, Max: 2},
						Requirement:          ClosureRequirement{Submissions: 1},
						ProgressBoost:        2,
						CompletionReputation: 1,
						FailureReputation:    -1,
						FailureMorale:        -3,
					},
				},
				ReviewEventChance:    0.25,
				ExecutionEventChance: 0.3,
				RejectMorale:         -2,
			},
		},
		Events: EventTuning{
			StudentPaperChance: 0.25,
			QuarterExtraChance: 0.35,
			LeaveChance:        0.04,
			LeaveMinTeam:       2,
			TeamSummaryCap:     6,
		},
		Effects: model.EffectBounds{
			Morale:        model.Range{Min: -10, Max: 10},
			Academia:      model.Range{Min: -10, Max: 10},
			Admin:         model.Range{Min: -10, Max: 10},
			Integrity:     model.Range{Min: -10, Max: 10},
			Funding:       model.Range{Min: -20000, Max: 20000},
			Reputation:    model.Range{Min: -3, Max: 3},
			Attribute:     model.Range{Min: -10, Max: 10},
			Contribution:  model.Range{Min: -20, Max: 20},
			Papers:        model.Range{Min: -1, Max: 1},
			ScoreDelta:    model.Range{Min: -6, Max: 6},
			LuckDelta:     model.Range{Min: -3, Max: 3},
			ProgressDelta: model.Range{Min: -20, Max: 30},
		},
		Venues: map[model.Tier]VenueTuning{
			model.TierA: {Label: "Aim for a top venue", Hint: "hard to get in, big payoff", Stress: model.StudentDelta{Stress: i(4)}},
			model.TierB: {Label: "Submit to a solid venue", Hint: "balanced odds", Stress: model.StudentDelta{Stress: i(2)}},
			model.TierC: {Label: "Go for a safe venue", Hint: "likely accepted, small reward"},
		},
	}
}
