package main

import (
	"database/sql"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	kind := fs.String("kind", "", "decision kind filter (decisions)")
	_ = fs.Parse(args)

	q := "quarters"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "session.sqlite")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := runQuery(db, os.Stdout, q, *kind, *limit); err != nil {
		fmt.Fprintln(os.Stderr, q+":", err)
		os.Exit(1)
	}
}

func runQuery(db *sql.DB, w io.Writer, q, kind string, limit int) error {
	if limit <= 0 {
		limit = 20
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	switch q {
	case "quarters":
		rows, err := db.Query(`SELECT year, q, spawned, accepted, revisions, rejected, grants_funded, upkeep, decisions
			FROM quarters ORDER BY quarter_index DESC LIMIT ?`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		fmt.Fprintln(tw, "QUARTER\tSPAWNED\tACCEPTED\tREVISIONS\tREJECTED\tFUNDED\tUPKEEP\tDECISIONS")
		for rows.Next() {
			var year, qq, spawned, accepted, revisions, rejected, funded, upkeep, decisions int
			if err := rows.Scan(&year, &qq, &spawned, &accepted, &revisions, &rejected, &funded, &upkeep, &decisions); err != nil {
				return err
			}
			fmt.Fprintf(tw, "Y%dQ%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n", year, qq, spawned, accepted, revisions, rejected, funded, upkeep, decisions)
		}
		return rows.Err()

	case "decisions":
		query := `SELECT id, kind, title, created_index, COALESCE(chosen_option, ''), COALESCE(resolved_index, -1)
			FROM decisions`
		var qargs []any
		if kind != "" {
			query += ` WHERE kind = ?`
			qargs = append(qargs, kind)
		}
		query += ` ORDER BY created_index DESC, id LIMIT ?`
		qargs = append(qargs, limit)
		rows, err := db.Query(query, qargs...)
		if err != nil {
			return err
		}
		defer rows.Close()
		fmt.Fprintln(tw, "ID\tKIND\tCREATED\tCHOSEN\tRESOLVED\tTITLE")
		for rows.Next() {
			var id, k, title, chosen string
			var created, resolved int
			if err := rows.Scan(&id, &k, &title, &created, &chosen, &resolved); err != nil {
				return err
			}
			res := "-"
			if resolved >= 0 {
				res = quarterLabel(resolved)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", id, k, quarterLabel(created), orDash(chosen), res, title)
		}
		return rows.Err()

	case "snapshots":
		rows, err := db.Query(`SELECT quarter_index, path, students, papers, grants, backlog
			FROM snapshots ORDER BY quarter_index DESC LIMIT ?`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		fmt.Fprintln(tw, "QUARTER\tSTUDENTS\tPAPERS\tGRANTS\tBACKLOG\tPATH")
		for rows.Next() {
			var idx, students, papers, grants, backlog int
			var path string
			if err := rows.Scan(&idx, &path, &students, &papers, &grants, &backlog); err != nil {
				return err
			}
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%s\n", quarterLabel(idx), students, papers, grants, backlog, path)
		}
		return rows.Err()
	}
	return fmt.Errorf("unknown query %q (want quarters, decisions or snapshots)", q)
}

// quarterLabel renders a quarter index (0 = Y1Q1).
func quarterLabel(idx int) string {
	return fmt.Sprintf("Y%dQ%d", idx/4+1, idx%4+1)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
