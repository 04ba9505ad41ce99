package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	persistlog "mentorsim.ai/internal/persistence/log"
	"mentorsim.ai/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		case "journal":
			journalCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

// listCmd prints the snapshots in the data dir, oldest first.
func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	paths, err := filepath.Glob(filepath.Join(*dataDir, "snapshots", "*.snap.zst"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "glob:", err)
		os.Exit(1)
	}
	sort.Strings(paths)
	for _, p := range paths {
		h, err := snapshot.ReadHeader(p)
		if err != nil {
			fmt.Printf("%s\tunreadable: %v\n", filepath.Base(p), err)
			continue
		}
		fmt.Printf("%s\t%s\tmentor=%s\tsaved=%s\n", filepath.Base(p), h.Quarter, h.Mentor, h.SavedAt)
	}
}

func snapshotCmd(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	snapPath := fs.String("snapshot", "", "snapshot path (optional; defaults to latest)")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*snapPath)
	if path == "" {
		latest, err := snapshot.Latest(filepath.Join(*dataDir, "snapshots"))
		if err != nil {
			fmt.Fprintln(os.Stderr, "latest snapshot:", err)
			os.Exit(1)
		}
		path = latest
	}
	snap, err := snapshot.Read(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	fmt.Print(summarize(snap))
}

func summarize(snap snapshot.Snapshot) string {
	st := snap.State
	var b strings.Builder
	fmt.Fprintf(&b, "snapshot v%d quarter=%s seed=%d mentor=%s\n", snap.Header.Version, snap.Header.Quarter, snap.Header.Seed, snap.Header.Mentor)
	m := st.Mentor.Stats
	fmt.Fprintf(&b, "mentor morale=%d/%d academia=%d/%d admin=%d/%d integrity=%d/%d funding=%d reputation=%d\n",
		m.Morale.Current, m.Morale.Max, m.Academia.Current, m.Academia.Max, m.Admin.Current, m.Admin.Max,
		m.Integrity.Current, m.Integrity.Max, m.Funding, m.Reputation)
	fmt.Fprintf(&b, "students=%d projects=%d papers=%d grants=%d backlog=%d log=%d\n",
		len(st.Students), len(st.Projects), len(st.Papers), len(st.Grants), len(st.Backlog), len(st.Log))
	for _, s := range st.Students {
		fmt.Fprintf(&b, "  %s %s (%s y%d) stress=%d mental=%d contribution=%d papers=%d/%d traits=%s\n",
			s.ID, s.Name, s.Type, s.Year, s.Stress, s.MentalState, s.Contribution, s.PendingPapers, s.TotalPapers, strings.Join(s.Traits, ","))
	}
	for _, g := range st.Grants {
		fmt.Fprintf(&b, "  %s %s %s tier=%s progress=%d papers=%d\n", g.ID, g.Type, g.Status, g.Tier, g.PaperProgress, len(g.PaperIDs))
	}
	return b.String()
}

func journalCmd(args []string) {
	fs := flag.NewFlagSet("journal", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	kind := "quarters"
	if fs.NArg() > 0 {
		kind = strings.TrimSpace(fs.Arg(0))
	}
	if kind != "quarters" && kind != "audit" {
		fmt.Fprintln(os.Stderr, "journal must be quarters or audit")
		os.Exit(2)
	}
	paths, err := filepath.Glob(filepath.Join(*dataDir, kind, "*.jsonl.zst"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "glob:", err)
		os.Exit(1)
	}
	sort.Strings(paths)
	for _, p := range paths {
		lines, err := persistlog.ReadLines(p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", p, err)
		}
		for _, l := range lines {
			fmt.Println(string(l))
		}
	}
}
