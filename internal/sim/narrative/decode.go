package narrative

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"mentorsim.ai/internal/sim/ids"
	"mentorsim.ai/internal/sim/model"
)

var ErrInvalidDraft = errors.New("invalid narrative draft")

const draftSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["title", "prompt", "options"],
  "additionalProperties": false,
  "properties": {
    "title": {"type": "string", "minLength": 1},
    "prompt": {"type": "string", "minLength": 1},
    "options": {
      "type": "array",
      "minItems": 2,
      "maxItems": 3,
      "items": {"$ref": "#/$defs/option"}
    }
  },
  "$defs": {
    "option": {
      "type": "object",
      "required": ["label", "outcome"],
      "additionalProperties": false,
      "properties": {
        "id": {"type": "string"},
        "label": {"type": "string", "minLength": 1},
        "outcome": {"type": "string"},
        "hint": {"type": "string"},
        "effects": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "mentor": {"$ref": "#/$defs/mentorDelta"},
            "student": {"$ref": "#/$defs/studentDelta"}
          }
        },
        "meta": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "score_delta": {"type": "integer"},
            "luck_delta": {"type": "integer"},
            "progress_delta": {"type": "integer"},
            "action": {"enum": ["", "leave"]}
          }
        }
      }
    },
    "mentorDelta": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "morale": {"type": "integer"},
        "academia": {"type": "integer"},
        "admin": {"type": "integer"},
        "integrity": {"type": "integer"},
        "funding": {"type": "integer"},
        "reputation": {"type": "integer"}
      }
    },
    "studentDelta": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "diligence": {"type": "integer"},
        "talent": {"type": "integer"},
        "luck": {"type": "integer"},
        "stress": {"type": "integer"},
        "mental_state": {"type": "integer"},
        "contribution": {"type": "integer"},
        "pending_papers": {"type": "integer"},
        "total_papers": {"type": "integer"}
      }
    }
  }
}`

var draftSchema = jsonschema.MustCompileString("draft.schema.json", draftSchemaJSON)

// Draft is a generator answer that passed the schema and was re-clamped.
type Draft struct {
	Title   string        `json:"title"`
	Prompt  string        `json:"prompt"`
	Options []DraftOption `json:"options"`
}

type DraftOption struct {
	ID      string         `json:"id,omitempty"`
	Label   string         `json:"label"`
	Outcome string         `json:"outcome"`
	Hint    string         `json:"hint,omitempty"`
	Effects *model.Effects `json:"effects,omitempty"`
	Meta    *DraftMeta     `json:"meta,omitempty"`
}

type DraftMeta struct {
	ScoreDelta    *int   `json:"score_delta,omitempty"`
	LuckDelta     *int   `json:"luck_delta,omitempty"`
	ProgressDelta *int   `json:"progress_delta,omitempty"`
	Action        string `json:"action,omitempty"`
}

// Decode validates raw against the draft schema, decodes it strictly and
// clamps every number to bounds.
func Decode(raw []byte, bounds model.EffectBounds) (Draft, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return Draft{}, fmt.Errorf("%w: %v", ErrInvalidDraft, err)
	}
	if err := draftSchema.Validate(v); err != nil {
		return Draft{}, fmt.Errorf("%w: %v", ErrInvalidDraft, err)
	}

	var d Draft
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&d); err != nil {
		return Draft{}, fmt.Errorf("%w: %v", ErrInvalidDraft, err)
	}
	if strings.TrimSpace(d.Title) == "" || strings.TrimSpace(d.Prompt) == "" {
		return Draft{}, fmt.Errorf("%w: blank title or prompt", ErrInvalidDraft)
	}
	for i := range d.Options {
		o := &d.Options[i]
		if strings.TrimSpace(o.Label) == "" {
			return Draft{}, fmt.Errorf("%w: option %d has a blank label", ErrInvalidDraft, i)
		}
		if o.Effects != nil {
			e := o.Effects.Clamp(bounds)
			o.Effects = &e
			if e.Mentor == nil && e.Student == nil {
				o.Effects = nil
			}
		}
		if o.Meta != nil {
			m := model.OptionMeta{ScoreDelta: o.Meta.ScoreDelta, LuckDelta: o.Meta.LuckDelta, ProgressDelta: o.Meta.ProgressDelta}.Clamp(bounds)
			o.Meta.ScoreDelta, o.Meta.LuckDelta, o.Meta.ProgressDelta = m.ScoreDelta, m.LuckDelta, m.ProgressDelta
		}
	}
	return d, nil
}

// Event turns the draft into a decision. Ids, kind and context come from the
// caller. Meta fields that do not apply to the tag are dropped: score and
// luck only steer grant reviews, progress only grant execution, and the
// leave action only the leave event.
func (d Draft) Event(id, tag string, ctx model.DecisionContext, now model.Quarter) model.DecisionEvent {
	ctx.Tag = tag
	ev := model.DecisionEvent{
		ID:        id,
		Kind:      KindFor(tag),
		Title:     strings.TrimSpace(d.Title),
		Prompt:    strings.TrimSpace(d.Prompt),
		CreatedAt: now,
		Context:   ctx,
	}
	for i, o := range d.Options {
		opt := model.DecisionOption{
			ID:      optionID(i),
			Label:   strings.TrimSpace(o.Label),
			Outcome: o.Outcome,
			Hint:    o.Hint,
			Effects: o.Effects,
		}
		if o.Meta != nil {
			switch tag {
			case TagGrantReview:
				opt.Meta.ScoreDelta = o.Meta.ScoreDelta
				opt.Meta.LuckDelta = o.Meta.LuckDelta
			case TagGrantExecution:
				opt.Meta.ProgressDelta = o.Meta.ProgressDelta
			case TagQuarterLeave:
				opt.Meta.Action = o.Meta.Action
			}
		}
		ev.Options = append(ev.Options, opt)
	}
	return ev
}

func optionID(i int) string {
	return ids.PrefixOption + "_" + strconv.Itoa(i+1)
}
