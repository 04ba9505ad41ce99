package tuning

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"mentorsim.ai/internal/sim/model"
)

// Tuning is the game balance. Defaults() carries the shipped numbers; a
// tuning.yaml only overrides what it names (map entries replace whole values).
type Tuning struct {
	Mentor   MentorTuning                    `yaml:"mentor" json:"mentor"`
	Recruit  RecruitTuning                   `yaml:"recruit" json:"recruit"`
	Care     CareTuning                      `yaml:"care" json:"care"`
	Projects ProjectTuning                   `yaml:"projects" json:"projects"`
	Papers   PaperTuning                     `yaml:"papers" json:"papers"`
	Grants   map[model.GrantType]GrantConfig `yaml:"grants" json:"grants"`
	Events   EventTuning                     `yaml:"events" json:"events"`
	Effects  model.EffectBounds              `yaml:"effect_bounds" json:"effect_bounds"`
	Venues   map[model.Tier]VenueTuning      `yaml:"venues" json:"venues"`
}

type MentorTuning struct {
	Start model.MentorStats `yaml:"start" json:"start"`
	// UpkeepPerStudent is charged from funding every quarter.
	UpkeepPerStudent int `yaml:"upkeep_per_student" json:"upkeep_per_student"`
	BrokeMorale      int `yaml:"broke_morale" json:"broke_morale"`
}

type RecruitTuning struct {
	DefaultType model.StudentType `yaml:"default_type" json:"default_type"`
	Stress      model.Range       `yaml:"stress" json:"stress"`
	MentalState model.Range       `yaml:"mental_state" json:"mental_state"`
}

type CareTuning struct {
	Whip    model.StudentDelta `yaml:"whip" json:"whip"`
	Comfort model.StudentDelta `yaml:"comfort" json:"comfort"`
}

type ProjectTuning struct {
	CompletionReputation int `yaml:"completion_reputation" json:"completion_reputation"`
	CompletionMorale     int `yaml:"completion_morale" json:"completion_morale"`
}

type Reward struct {
	Reputation int `yaml:"reputation" json:"reputation"`
	Funding    int `yaml:"funding" json:"funding"`
}

type PaperTuning struct {
	BaseAcceptance map[model.Tier]float64 `yaml:"base_acceptance" json:"base_acceptance"`
	BaseRevision   map[model.Tier]float64 `yaml:"base_revision" json:"base_revision"`
	// MajorChanceByRound is indexed by revision round; the last entry repeats.
	MajorChanceByRound []float64 `yaml:"major_chance_by_round" json:"major_chance_by_round"`

	AcceptMin   float64 `yaml:"accept_min" json:"accept_min"`
	AcceptMax   float64 `yaml:"accept_max" json:"accept_max"`
	CombinedMax float64 `yaml:"combined_max" json:"combined_max"`

	ReviewQuarters    map[model.Tier]int         `yaml:"review_quarters" json:"review_quarters"`
	RevisionQuarters  map[model.RevisionKind]int `yaml:"revision_quarters" json:"revision_quarters"`
	DowngradeQuarters int                        `yaml:"downgrade_quarters" json:"downgrade_quarters"`

	AcceptReward  map[model.Tier]Reward `yaml:"accept_reward" json:"accept_reward"`
	AcceptStudent model.StudentDelta    `yaml:"accept_student" json:"accept_student"`
	RejectMorale  int                   `yaml:"reject_morale" json:"reject_morale"`
	RejectStudent model.StudentDelta    `yaml:"reject_student" json:"reject_student"`

	// Cost paid by a student for every paper spawned from contribution.
	SpawnMental int `yaml:"spawn_mental" json:"spawn_mental"`
	SpawnStress int `yaml:"spawn_stress" json:"spawn_stress"`
}

type ClosureRequirement struct {
	Submissions  int        `yaml:"submissions" json:"submissions"`
	Acceptances  int        `yaml:"acceptances" json:"acceptances"`
	MinVenueTier model.Tier `yaml:"min_venue_tier,omitempty" json:"min_venue_tier,omitempty"`
}

type GrantTierConfig struct {
	Funding              int                `yaml:"funding" json:"funding"`
	Reputation           model.Range        `yaml:"reputation" json:"reputation"`
	Requirement          ClosureRequirement `yaml:"requirement" json:"requirement"`
	ProgressBoost        int                `yaml:"progress_boost" json:"progress_boost"`
	CompletionReputation int                `yaml:"completion_reputation" json:"completion_reputation"`
	FailureReputation    int                `yaml:"failure_reputation" json:"failure_reputation"`
	FailureMorale        int                `yaml:"failure_morale" json:"failure_morale"`
}

type GrantConfig struct {
	Title             string `yaml:"title" json:"title"`
	OpeningQuarter    int    `yaml:"opening_quarter" json:"opening_quarter"`
	ReviewQuarters    int    `yaml:"review_quarters" json:"review_quarters"`
	ExecutionQuarters int    `yaml:"execution_quarters" json:"execution_quarters"`

	RejectBelow int `yaml:"reject_below" json:"reject_below"`
	TierBFloor  int `yaml:"tier_b_floor" json:"tier_b_floor"`
	TierAFloor  int `yaml:"tier_a_floor" json:"tier_a_floor"`

	Tiers map[model.Tier]GrantTierConfig `yaml:"tiers" json:"tiers"`

	ReviewEventChance    float64 `yaml:"review_event_chance" json:"review_event_chance"`
	ExecutionEventChance float64 `yaml:"execution_event_chance" json:"execution_event_chance"`
	RejectMorale         int     `yaml:"reject_morale" json:"reject_morale"`
}

type EventTuning struct {
	StudentPaperChance float64 `yaml:"student_paper_chance" json:"student_paper_chance"`
	QuarterExtraChance float64 `yaml:"quarter_extra_chance" json:"quarter_extra_chance"`
	LeaveChance        float64 `yaml:"leave_chance" json:"leave_chance"`
	LeaveMinTeam       int     `yaml:"leave_min_team" json:"leave_min_team"`
	TeamSummaryCap     int     `yaml:"team_summary_cap" json:"team_summary_cap"`
}

// VenueTuning is what the venue-choice decision offers for a tier.
type VenueTuning struct {
	Label  string             `yaml:"label" json:"label"`
	Hint   string             `yaml:"hint" json:"hint"`
	Stress model.StudentDelta `yaml:"stress" json:"stress"`
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	for _, tier := range []model.Tier{model.TierA, model.TierB, model.TierC} {
		if _, ok := t.Papers.BaseAcceptance[tier]; !ok {
			return fmt.Errorf("papers.base_acceptance missing tier %s", tier)
		}
		if _, ok := t.Papers.BaseRevision[tier]; !ok {
			return fmt.Errorf("papers.base_revision missing tier %s", tier)
		}
		if t.Papers.ReviewQuarters[tier] <= 0 {
			return fmt.Errorf("papers.review_quarters[%s] must be > 0", tier)
		}
	}
	if len(t.Papers.MajorChanceByRound) == 0 {
		return fmt.Errorf("papers.major_chance_by_round is empty")
	}
	if t.Papers.AcceptMin > t.Papers.AcceptMax {
		return fmt.Errorf("papers.accept_min > accept_max")
	}
	if len(t.Grants) == 0 {
		return fmt.Errorf("no grant types configured")
	}
	for typ, g := range t.Grants {
		if g.OpeningQuarter < 1 || g.OpeningQuarter > 4 {
			return fmt.Errorf("grants.%s.opening_quarter must be 1..4", typ)
		}
		if g.ReviewQuarters <= 0 || g.ExecutionQuarters <= 0 {
			return fmt.Errorf("grants.%s: review/execution quarters must be > 0", typ)
		}
		if !(g.RejectBelow <= g.TierBFloor && g.TierBFloor <= g.TierAFloor) {
			return fmt.Errorf("grants.%s: thresholds must satisfy reject_below <= tier_b_floor <= tier_a_floor", typ)
		}
		for _, tier := range []model.Tier{model.TierA, model.TierB, model.TierC} {
			if _, ok := g.Tiers[tier]; !ok {
				return fmt.Errorf("grants.%s.tiers missing %s", typ, tier)
			}
		}
	}
	return nil
}

// Grant returns the config for typ.
func (t Tuning) Grant(typ model.GrantType) (GrantConfig, bool) {
	g, ok := t.Grants[typ]
	return g, ok
}

// MajorChance returns the chance that a revision at round is major.
func (p PaperTuning) MajorChance(round int) float64 {
	if len(p.MajorChanceByRound) == 0 {
		return 0
	}
	if round < 0 {
		round = 0
	}
	if round >= len(p.MajorChanceByRound) {
		round = len(p.MajorChanceByRound) - 1
	}
	return p.MajorChanceByRound[round]
}

// Digest is a stable hash of the effective tuning.
func (t Tuning) Digest() string {
	b, _ := json.Marshal(t)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
