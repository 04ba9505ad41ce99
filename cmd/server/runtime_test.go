package main

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	persistlog "mentorsim.ai/internal/persistence/log"
	"mentorsim.ai/internal/persistence/snapshot"
	"mentorsim.ai/internal/protocol"
	"mentorsim.ai/internal/sim/catalogs"
	"mentorsim.ai/internal/sim/ids"
	"mentorsim.ai/internal/sim/model"
	"mentorsim.ai/internal/sim/session"
	"mentorsim.ai/internal/sim/tuning"
)

func testRuntime(t *testing.T, disableIndex bool) (*runtime, *session.Session, string) {
	t.Helper()
	cats, err := catalogs.Load("../../configs")
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	dir := t.TempDir()
	logger := log.New(io.Discard, "", 0)
	rt, err := openRuntime(dir, disableIndex, cats, tuning.Defaults(), logger)
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	sess := session.New(session.Options{Tuning: tuning.Defaults(), Catalogs: cats, NewID: ids.Counter()}, "Prof", 3)
	rt.sess = sess
	return rt, sess, dir
}

func TestRuntimeLoadWithoutSnapshots(t *testing.T) {
	rt, _, _ := testRuntime(t, true)
	defer rt.Close()
	if _, ok, err := rt.load(""); err != nil || ok {
		t.Fatalf("load on empty dir: ok=%v err=%v", ok, err)
	}
}

func TestRuntimePersistsSettledQuarter(t *testing.T) {
	rt, sess, dir := testRuntime(t, false)

	rep, err := sess.EndQuarter(context.Background())
	if err != nil {
		t.Fatalf("end quarter: %v", err)
	}
	rt.onSettled(context.Background(), rep, sess.State())
	rt.onCommand("p_1", protocol.CommandMsg{ID: "c1", Command: protocol.CmdEndQuarter}, nil)
	rt.onCommand("p_1", protocol.CommandMsg{ID: "c2", Command: protocol.CmdWhip, StudentID: "stu_9"}, session.ErrNotFound)
	if err := rt.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	want := snapshot.Path(filepath.Join(dir, "snapshots"), model.Quarter{Year: 1, Q: 2})
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("snapshot not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "index", "session.sqlite")); err != nil {
		t.Fatalf("index not created: %v", err)
	}

	audits, err := filepath.Glob(filepath.Join(dir, "audit", "*.jsonl.zst"))
	if err != nil || len(audits) != 1 {
		t.Fatalf("audit files: %v %v", audits, err)
	}
	lines, err := persistlog.ReadLines(audits[0])
	if err != nil {
		t.Fatalf("read audit: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("audit lines = %d, want 2", len(lines))
	}

	rt2, _, _ := testRuntime(t, true)
	rt2.snapDir = filepath.Join(dir, "snapshots")
	defer rt2.Close()
	st, ok, err := rt2.load("")
	if err != nil || !ok {
		t.Fatalf("reload: ok=%v err=%v", ok, err)
	}
	if st.Now != (model.Quarter{Year: 1, Q: 2}) {
		t.Fatalf("reloaded quarter %s", st.Now)
	}
}

func TestRuntimeLoadRejectsGarbage(t *testing.T) {
	rt, _, dir := testRuntime(t, true)
	defer rt.Close()
	path := filepath.Join(dir, "bad.snap.zst")
	if err := os.WriteFile(path, []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := rt.load(path); err == nil {
		t.Fatalf("expected error")
	}
}

func TestCommandTarget(t *testing.T) {
	cases := []struct {
		cmd  protocol.CommandMsg
		want string
	}{
		{protocol.CommandMsg{DecisionID: "dec_1", OptionID: "a"}, "dec_1"},
		{protocol.CommandMsg{StudentID: "stu_1", MentorID: "stu_2"}, "stu_1"},
		{protocol.CommandMsg{Name: "Ada"}, "Ada"},
		{protocol.CommandMsg{GrantType: model.GrantNational}, "national"},
	}
	for _, tc := range cases {
		if got := commandTarget(tc.cmd); got != tc.want {
			t.Fatalf("commandTarget(%+v) = %q, want %q", tc.cmd, got, tc.want)
		}
	}
}
