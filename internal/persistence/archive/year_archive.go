// Package archive keeps one snapshot per finished academic year.
package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"mentorsim.ai/internal/persistence/snapshot"
)

type YearMeta struct {
	Year      int    `json:"year"`
	Seed      int64  `json:"seed"`
	Mentor    string `json:"mentor"`
	Snapshot  string `json:"snapshot"`
	Students  int    `json:"students"`
	Accepted  int    `json:"accepted_papers"`
	CreatedAt string `json:"created_at"`
}

// ArchiveYear copies a snapshot taken at the start of Q1 into
// dataDir/archives/year_<NNN>/, where NNN is the year that just ended.
// Snapshots of any other quarter are ignored (archived=false).
func ArchiveYear(dataDir, snapshotPath string, snap snapshot.Snapshot) (year int, archivedPath string, archived bool, err error) {
	q := snap.Header.Quarter
	if q.Q != 1 || q.Year < 2 {
		return 0, "", false, nil
	}
	year = q.Year - 1

	dir := filepath.Join(dataDir, "archives", fmt.Sprintf("year_%03d", year))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, "", false, err
	}
	dst := filepath.Join(dir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return 0, "", false, err
	}

	accepted := 0
	for _, s := range snap.State.Students {
		accepted += s.TotalPapers
	}
	meta := YearMeta{
		Year:      year,
		Seed:      snap.Header.Seed,
		Mentor:    snap.Header.Mentor,
		Snapshot:  filepath.Base(dst),
		Students:  len(snap.State.Students),
		Accepted:  accepted,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(dir, "meta.json"), b, 0o644)
	}
	return year, dst, true, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
