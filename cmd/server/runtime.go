package main

import (
	"context"
	"errors"
	"log"
	"path/filepath"
	"strings"

	"mentorsim.ai/internal/persistence/archive"
	"mentorsim.ai/internal/persistence/indexdb"
	persistlog "mentorsim.ai/internal/persistence/log"
	"mentorsim.ai/internal/persistence/snapshot"
	"mentorsim.ai/internal/protocol"
	"mentorsim.ai/internal/sim/catalogs"
	"mentorsim.ai/internal/sim/model"
	"mentorsim.ai/internal/sim/session"
	"mentorsim.ai/internal/sim/tuning"
)

// runtime persists what the websocket server does: journals, snapshots,
// yearly archives and the optional sqlite index.
type runtime struct {
	dataDir string
	snapDir string
	logger  *log.Logger

	tuningDigest string
	traitsDigest string

	quarters *persistlog.QuarterLogger
	audit    *persistlog.AuditLogger
	idx      *indexdb.SQLiteIndex // nil when disabled

	sess *session.Session
}

func openRuntime(dataDir string, disableIndex bool, cats *catalogs.Catalogs, tune tuning.Tuning, logger *log.Logger) (*runtime, error) {
	r := &runtime{
		dataDir:      dataDir,
		snapDir:      filepath.Join(dataDir, "snapshots"),
		logger:       logger,
		tuningDigest: tune.Digest(),
		traitsDigest: cats.Traits.Digest,
		quarters:     persistlog.NewQuarterLogger(dataDir),
		audit:        persistlog.NewAuditLogger(dataDir),
	}
	if !disableIndex {
		idx, err := indexdb.OpenSQLite(filepath.Join(dataDir, "index", "session.sqlite"))
		if err != nil {
			return nil, errors.Join(err, r.quarters.Close(), r.audit.Close())
		}
		if err := idx.UpsertCatalogs(cats, tune); err != nil {
			logger.Printf("index: upsert catalogs: %v", err)
		}
		r.idx = idx
	}
	return r, nil
}

// load resumes from path, or from the newest snapshot when path is empty.
// It returns a zero state and false when there is nothing to resume.
func (r *runtime) load(path string) (model.State, bool, error) {
	if strings.TrimSpace(path) == "" {
		latest, err := snapshot.Latest(r.snapDir)
		if errors.Is(err, snapshot.ErrNoSnapshot) {
			return model.State{}, false, nil
		}
		if err != nil {
			return model.State{}, false, err
		}
		path = latest
	}
	snap, err := snapshot.Read(path)
	if err != nil {
		return model.State{}, false, err
	}
	if snap.Header.TuningDigest != r.tuningDigest {
		r.logger.Printf("snapshot %s was saved under different tuning; continuing with current tuning", filepath.Base(path))
	}
	if snap.Header.TraitsDigest != r.traitsDigest {
		r.logger.Printf("snapshot %s was saved under a different trait catalog; traits will be repaired", filepath.Base(path))
	}
	r.logger.Printf("resumed from snapshot=%s quarter=%s", filepath.Base(path), snap.Header.Quarter)
	return snap.State, true, nil
}

func (r *runtime) saveSnapshot(st model.State) (string, snapshot.Snapshot, error) {
	snap := snapshot.New(st, r.tuningDigest, r.traitsDigest)
	path := snapshot.Path(r.snapDir, st.Now)
	if err := snapshot.Write(path, snap); err != nil {
		return "", snap, err
	}
	if r.idx != nil {
		r.idx.RecordSnapshot(path, snap)
	}
	return path, snap, nil
}

func (r *runtime) onSettled(_ context.Context, rep session.Report, st model.State) {
	if err := r.quarters.WriteQuarter(rep); err != nil {
		r.logger.Printf("quarter log: %v", err)
	}
	if r.idx != nil {
		_ = r.idx.WriteQuarter(rep)
		r.idx.RecordDecisions(st.Backlog)
	}
	path, snap, err := r.saveSnapshot(st)
	if err != nil {
		r.logger.Printf("snapshot write: %v", err)
		return
	}
	if year, archived, ok, err := archive.ArchiveYear(r.dataDir, path, snap); err != nil {
		r.logger.Printf("archive year: %v", err)
	} else if ok {
		r.logger.Printf("archived year %d to %s", year, archived)
	}
}

func (r *runtime) onCommand(playerID string, cmd protocol.CommandMsg, err error) {
	e := persistlog.AuditEntry{
		Actor:   playerID,
		Command: cmd.Command,
		Target:  commandTarget(cmd),
	}
	if r.sess != nil {
		e.Quarter = r.sess.Now()
	}
	if cmd.Command == protocol.CmdChoose {
		e.Detail = cmd.OptionID
	}
	if err != nil {
		e.Error = err.Error()
	}
	if werr := r.audit.WriteAudit(e); werr != nil {
		r.logger.Printf("audit log: %v", werr)
	}
	if err == nil && cmd.Command == protocol.CmdChoose && r.idx != nil {
		r.idx.RecordChoice(cmd.DecisionID, cmd.OptionID, e.Quarter)
	}
}

func commandTarget(cmd protocol.CommandMsg) string {
	switch {
	case cmd.DecisionID != "":
		return cmd.DecisionID
	case cmd.StudentID != "":
		return cmd.StudentID
	case cmd.ProjectID != "":
		return cmd.ProjectID
	case cmd.GrantID != "":
		return cmd.GrantID
	case cmd.Name != "":
		return cmd.Name
	case cmd.Title != "":
		return cmd.Title
	}
	return string(cmd.GrantType)
}

func (r *runtime) Close() error {
	errs := []error{r.quarters.Close(), r.audit.Close()}
	if r.idx != nil {
		errs = append(errs, r.idx.Close())
	}
	return errors.Join(errs...)
}
