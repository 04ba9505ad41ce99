package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"mentorsim.ai/internal/sim/catalogs"
	"mentorsim.ai/internal/sim/model"
	"mentorsim.ai/internal/sim/tuning"
)

const goodDraft = `{
  "title": "Panel questions",
  "prompt": "The panel wants more detail.",
  "options": [
    {"label": "Answer at length", "outcome": "They liked it.",
     "effects": {"mentor": {"morale": -40, "funding": 999999}},
     "meta": {"score_delta": 50, "action": "leave"}},
    {"label": "Keep it short", "outcome": "Fine.", "meta": {"luck_delta": -9}}
  ]
}`

func bounds() model.EffectBounds { return tuning.Defaults().Effects }

func loadTemplates(t *testing.T) catalogs.NarrativeCatalog {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	return cats.Narratives
}

func TestDecodeClampsNumbers(t *testing.T) {
	d, err := Decode([]byte(goodDraft), bounds())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	m := d.Options[0].Effects.Mentor
	if *m.Morale != -10 || *m.Funding != 20000 {
		t.Fatalf("effects not clamped: morale %d funding %d", *m.Morale, *m.Funding)
	}
	if *d.Options[0].Meta.ScoreDelta != 6 || *d.Options[1].Meta.LuckDelta != -3 {
		t.Fatalf("meta not clamped: %+v %+v", d.Options[0].Meta, d.Options[1].Meta)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":        `{"title":`,
		"missing title":   `{"prompt":"p","options":[{"label":"a","outcome":"x"},{"label":"b","outcome":"y"}]}`,
		"one option":      `{"title":"t","prompt":"p","options":[{"label":"a","outcome":"x"}]}`,
		"four options":    `{"title":"t","prompt":"p","options":[{"label":"a","outcome":"x"},{"label":"b","outcome":"x"},{"label":"c","outcome":"x"},{"label":"d","outcome":"x"}]}`,
		"unknown field":   `{"title":"t","prompt":"p","extra":1,"options":[{"label":"a","outcome":"x"},{"label":"b","outcome":"y"}]}`,
		"unknown effect":  `{"title":"t","prompt":"p","options":[{"label":"a","outcome":"x","effects":{"mentor":{"karma":3}}},{"label":"b","outcome":"y"}]}`,
		"fractional":      `{"title":"t","prompt":"p","options":[{"label":"a","outcome":"x","effects":{"student":{"stress":1.5}}},{"label":"b","outcome":"y"}]}`,
		"blank title":     `{"title":"   ","prompt":"p","options":[{"label":"a","outcome":"x"},{"label":"b","outcome":"y"}]}`,
		"bad action":      `{"title":"t","prompt":"p","options":[{"label":"a","outcome":"x","meta":{"action":"fire"}},{"label":"b","outcome":"y"}]}`,
		"string in delta": `{"title":"t","prompt":"p","options":[{"label":"a","outcome":"x","effects":{"student":{"stress":"high"}}},{"label":"b","outcome":"y"}]}`,
	}
	for name, raw := range cases {
		if _, err := Decode([]byte(raw), bounds()); !errors.Is(err, ErrInvalidDraft) {
			t.Fatalf("%s: expected ErrInvalidDraft, got %v", name, err)
		}
	}
}

func TestDraftEventKeepsOnlyRelevantMeta(t *testing.T) {
	d, err := Decode([]byte(goodDraft), bounds())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	ev := d.Event("dec_1", TagGrantReview, model.DecisionContext{GrantID: "g"}, model.Quarter{Year: 1, Q: 1})
	if err := ev.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if ev.Options[0].Meta.Action != "" {
		t.Fatalf("leave action leaked into a grant review")
	}
	if ev.Options[0].ID != "opt_1" || ev.Options[1].ID != "opt_2" {
		t.Fatalf("option ids: %s %s", ev.Options[0].ID, ev.Options[1].ID)
	}
	ev = d.Event("dec_2", TagGrantExecution, model.DecisionContext{GrantID: "g"}, model.Quarter{Year: 1, Q: 1})
	if ev.Options[0].Meta.ScoreDelta != nil {
		t.Fatalf("score delta leaked into an execution event")
	}
}

func TestFallbackIsDeterministic(t *testing.T) {
	cat := loadTemplates(t)
	ctx := model.DecisionContext{GrantID: "g"}
	now := model.Quarter{Year: 2, Q: 3}
	a := Fallback(cat, bounds(), "dec_7", TagGrantReview, ctx, now)
	b := Fallback(cat, bounds(), "dec_7", TagGrantReview, ctx, now)
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	if string(ja) != string(jb) {
		t.Fatalf("fallback differs:\n%s\n%s", ja, jb)
	}
	if err := a.Validate(); err != nil {
		t.Fatalf("fallback invalid: %v", err)
	}
	if a.Kind != model.KindGrantReviewEvent || a.Context.Tag != TagGrantReview {
		t.Fatalf("kind/tag: %s %s", a.Kind, a.Context.Tag)
	}

	g := Fallback(cat, bounds(), "dec_8", "no.such.tag", model.DecisionContext{}, now)
	if err := g.Validate(); err != nil {
		t.Fatalf("generic fallback invalid: %v", err)
	}
}

func TestFallbackLeaveTemplateCarriesAction(t *testing.T) {
	cat := loadTemplates(t)
	ev := Fallback(cat, bounds(), "dec_1", TagQuarterLeave, model.DecisionContext{StudentID: "s"}, model.Quarter{Year: 1, Q: 1})
	found := false
	for _, o := range ev.Options {
		if o.Meta.Action == model.ActionLeave {
			found = true
		}
	}
	if !found {
		t.Fatalf("leave template lost its action: %+v", ev.Options)
	}
}

type stubGen struct {
	one   json.RawMessage
	batch []json.RawMessage
	err   error
}

func (s stubGen) Generate(context.Context, Situation) (json.RawMessage, error) { return s.one, s.err }
func (s stubGen) GenerateBatch(context.Context, []Situation) ([]json.RawMessage, error) {
	return s.batch, s.err
}

func TestServiceFallsBack(t *testing.T) {
	cat := loadTemplates(t)
	req := Request{
		ID:        "dec_1",
		Situation: Situation{Tag: TagGrantExecution, Now: model.Quarter{Year: 1, Q: 2}},
		Context:   model.DecisionContext{GrantID: "g"},
	}
	want := Fallback(cat, bounds(), req.ID, req.Situation.Tag, req.Context, req.Situation.Now)

	for name, gen := range map[string]Generator{
		"nil":     nil,
		"error":   stubGen{err: errors.New("down")},
		"garbage": stubGen{one: json.RawMessage(`{"title":"x"}`)},
	} {
		got := NewService(gen, cat, bounds(), nil).Event(context.Background(), req)
		if got.Title != want.Title || len(got.Options) != len(want.Options) {
			t.Fatalf("%s: expected fallback, got %+v", name, got)
		}
	}

	got := NewService(stubGen{one: json.RawMessage(goodDraft)}, cat, bounds(), nil).Event(context.Background(), req)
	if got.Title != "Panel questions" || got.ID != "dec_1" || got.Context.GrantID != "g" {
		t.Fatalf("generated event not used: %+v", got)
	}
}

func TestServiceQuarterMixesGeneratedAndFallback(t *testing.T) {
	cat := loadTemplates(t)
	now := model.Quarter{Year: 1, Q: 1}
	reqs := []Request{
		{ID: "dec_1", Situation: Situation{Tag: TagQuarterSchool, Now: now}},
		{ID: "dec_2", Situation: Situation{Tag: TagQuarterTeam, Now: now}},
	}
	svc := NewService(stubGen{batch: []json.RawMessage{json.RawMessage(goodDraft), json.RawMessage(`[]`)}}, cat, bounds(), nil)
	out := svc.Quarter(context.Background(), reqs)
	if len(out) != 2 || out[0].Title != "Panel questions" {
		t.Fatalf("first item should be generated: %+v", out)
	}
	want := Fallback(cat, bounds(), "dec_2", TagQuarterTeam, model.DecisionContext{}, now)
	if out[1].Title != want.Title {
		t.Fatalf("second item should fall back: %+v", out[1])
	}

	short := NewService(stubGen{batch: []json.RawMessage{json.RawMessage(goodDraft)}}, cat, bounds(), nil)
	out = short.Quarter(context.Background(), reqs)
	if out[0].Title == "Panel questions" {
		t.Fatalf("mismatched batch length should fall back entirely")
	}
}

func TestClientAgainstMessagesAPI(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		var req messagesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) != 1 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		text := "```json\n" + goodDraft + "\n```"
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content":     []map[string]string{{"type": "text", "text": text}},
			"stop_reason": "end_turn",
		})
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{URL: srv.URL, APIKey: "k"})
	raw, err := c.Generate(context.Background(), Situation{Tag: TagGrantReview})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if gotKey != "k" {
		t.Fatalf("api key header: %q", gotKey)
	}
	if _, err := Decode(raw, bounds()); err != nil {
		t.Fatalf("decode generated: %v", err)
	}
}

func TestClientErrors(t *testing.T) {
	if _, err := NewClient(ClientConfig{}).Generate(context.Background(), Situation{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("unconfigured: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	if _, err := NewClient(ClientConfig{URL: srv.URL, APIKey: "k"}).GenerateBatch(context.Background(), []Situation{{}}); err == nil {
		t.Fatalf("expected status error")
	}
}
