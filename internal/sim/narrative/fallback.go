package narrative

import (
	"hash/fnv"

	"mentorsim.ai/internal/sim/catalogs"
	"mentorsim.ai/internal/sim/model"
)

// genericTemplate answers tags the catalog has no template for.
var genericTemplate = catalogs.NarrativeTemplate{
	Title:  "A quiet quarter",
	Prompt: "Nothing pressing came up. How do you spend the spare time?",
	Options: []model.DecisionOption{
		{Label: "Catch up on reading", Outcome: "You skim a stack of preprints.", Effects: &model.Effects{Mentor: &model.MentorDelta{Academia: model.Int(1)}}},
		{Label: "Take a break", Outcome: "You feel rested.", Effects: &model.Effects{Mentor: &model.MentorDelta{Morale: model.Int(1)}}},
	},
}

// Fallback builds the local decision for tag. The same id always yields the
// same template, so a retried quarter produces the same backlog.
func Fallback(cat catalogs.NarrativeCatalog, bounds model.EffectBounds, id, tag string, ctx model.DecisionContext, now model.Quarter) model.DecisionEvent {
	tmpl := genericTemplate
	if ts := cat.ByTag[tag]; len(ts) > 0 {
		h := fnv.New32a()
		_, _ = h.Write([]byte(id))
		tmpl = ts[int(h.Sum32()%uint32(len(ts)))]
	}

	d := Draft{Title: tmpl.Title, Prompt: tmpl.Prompt}
	for _, o := range tmpl.Options {
		opt := DraftOption{Label: o.Label, Outcome: o.Outcome, Hint: o.Hint}
		if o.Effects != nil {
			e := o.Effects.Clamp(bounds)
			if e.Mentor != nil || e.Student != nil {
				opt.Effects = &e
			}
		}
		m := o.Meta.Clamp(bounds)
		opt.Meta = &DraftMeta{ScoreDelta: m.ScoreDelta, LuckDelta: m.LuckDelta, ProgressDelta: m.ProgressDelta, Action: m.Action}
		d.Options = append(d.Options, opt)
	}
	return d.Event(id, tag, ctx, now)
}
