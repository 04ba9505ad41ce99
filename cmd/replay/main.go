package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"reflect"

	"mentorsim.ai/internal/persistence/snapshot"
	"mentorsim.ai/internal/sim/catalogs"
	"mentorsim.ai/internal/sim/ids"
	"mentorsim.ai/internal/sim/model"
	"mentorsim.ai/internal/sim/session"
	"mentorsim.ai/internal/sim/tuning"
)

func main() {
	var (
		snapPath   = flag.String("snapshot", "", "path to .snap.zst")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: defaults)")
		quarters   = flag.Int("quarters", 4, "quarters to play forward")
		verify     = flag.Bool("verify", true, "settle each quarter twice and compare")
		asJSON     = flag.Bool("json", false, "print reports as JSON lines")
	)
	flag.Parse()

	if *snapPath == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot")
		os.Exit(2)
	}

	snap, err := snapshot.Read(*snapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	st := snap.State
	fmt.Printf("snapshot v%d quarter=%s seed=%d students=%d papers=%d grants=%d backlog=%d\n",
		snap.Header.Version, snap.Header.Quarter, snap.Header.Seed,
		len(st.Students), len(st.Papers), len(st.Grants), len(st.Backlog))

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}
	tune := tuning.Defaults()
	if *tuningPath != "" {
		if tune, err = tuning.Load(*tuningPath); err != nil {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
	}
	if tune.Digest() != snap.Header.TuningDigest {
		fmt.Println("warning: tuning differs from the one the snapshot was saved with")
	}

	reports, err := forecast(cats, tune, st, *quarters, *verify)
	for _, r := range reports {
		if *asJSON {
			b, _ := json.Marshal(r)
			fmt.Println(string(b))
			continue
		}
		fmt.Printf("%s -> %s spawned=%d accepted=%d revisions=%d rejected=%d funded=%d completed=%d failed=%d upkeep=%d decisions=%d\n",
			r.Quarter, r.Next, r.Spawned, r.Accepted, r.Revisions, r.Rejected,
			r.GrantsFunded, r.GrantsCompleted, r.GrantsFailed, r.Upkeep, len(r.Decisions))
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *verify {
		fmt.Printf("OK: %d quarters settled deterministically\n", len(reports))
	}
}

// forecast plays st forward n quarters with template narratives, answering
// every decision with its first option. With verify set each quarter is
// settled twice from the same state and the reports must agree.
func forecast(cats *catalogs.Catalogs, tune tuning.Tuning, st model.State, n int, verify bool) ([]session.Report, error) {
	var out []session.Report
	for i := 0; i < n; i++ {
		next, rep, err := settleOnce(cats, tune, st)
		if err != nil {
			return out, err
		}
		if verify {
			_, again, err := settleOnce(cats, tune, st)
			if err != nil {
				return out, err
			}
			if !sameReport(rep, again) {
				return out, fmt.Errorf("settlement of %s is not deterministic", rep.Quarter)
			}
		}
		out = append(out, rep)
		st = next
	}
	return out, nil
}

func settleOnce(cats *catalogs.Catalogs, tune tuning.Tuning, st model.State) (model.State, session.Report, error) {
	sess, _ := session.Load(session.Options{Tuning: tune, Catalogs: cats, NewID: ids.Counter()}, st)
	ctx := context.Background()
	for {
		d, ok := sess.Active()
		if !ok {
			break
		}
		if _, err := sess.ChooseOption(ctx, d.ID, d.Options[0].ID); err != nil {
			return model.State{}, session.Report{}, fmt.Errorf("choose %s: %w", d.ID, err)
		}
	}
	rep, err := sess.EndQuarter(ctx)
	if err != nil {
		return model.State{}, rep, err
	}
	return sess.State(), rep, nil
}

// sameReport compares everything except decision ids, which narrative
// merges may list in any order.
func sameReport(a, b session.Report) bool {
	if len(a.Decisions) != len(b.Decisions) {
		return false
	}
	a.Decisions, b.Decisions = nil, nil
	return reflect.DeepEqual(a, b)
}
