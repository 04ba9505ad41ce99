// Package snapshot persists whole sessions: one JSON header line followed by
// the JSON state, the pair compressed with zstd.
package snapshot

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"mentorsim.ai/internal/sim/model"
)

const (
	Version = 1
	ext     = ".snap.zst"
)

var ErrNoSnapshot = errors.New("no snapshot")

// Header is readable without decoding the state.
type Header struct {
	Version      int           `json:"version"`
	Quarter      model.Quarter `json:"quarter"`
	Seed         int64         `json:"seed"`
	Mentor       string        `json:"mentor"`
	TuningDigest string        `json:"tuning_digest,omitempty"`
	TraitsDigest string        `json:"traits_digest,omitempty"`
	SavedAt      string        `json:"saved_at"`
}

type Snapshot struct {
	Header Header      `json:"header"`
	State  model.State `json:"state"`
}

// New wraps st with a header describing it.
func New(st model.State, tuningDigest, traitsDigest string) Snapshot {
	return Snapshot{
		Header: Header{
			Version:      Version,
			Quarter:      st.Now,
			Seed:         st.Seed,
			Mentor:       st.Mentor.Name,
			TuningDigest: tuningDigest,
			TraitsDigest: traitsDigest,
			SavedAt:      time.Now().UTC().Format(time.RFC3339),
		},
		State: st,
	}
}

// Path names the snapshot taken at the start of quarter q.
func Path(dir string, q model.Quarter) string {
	return filepath.Join(dir, fmt.Sprintf("y%04d-q%d%s", q.Year, q.Q, ext))
}

// Write stores snap at path. The file is written beside the target and
// renamed into place, so a crash never leaves a half-written snapshot.
func Write(path string, snap Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := encode(f, snap); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func encode(f *os.File, snap Snapshot) error {
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)
	hb, err := json.Marshal(snap.Header)
	if err != nil {
		return err
	}
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := json.NewEncoder(bw).Encode(snap.State); err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return enc.Close()
}

// Read loads a snapshot written by Write.
func Read(path string) (Snapshot, error) {
	var snap Snapshot
	err := withReader(path, func(br *bufio.Reader) error {
		h, err := readHeader(br)
		if err != nil {
			return err
		}
		snap.Header = h
		if err := json.NewDecoder(br).Decode(&snap.State); err != nil {
			return fmt.Errorf("decode state: %w", err)
		}
		return nil
	})
	return snap, err
}

// ReadHeader decodes only the header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	err := withReader(path, func(br *bufio.Reader) error {
		var err error
		h, err = readHeader(br)
		return err
	})
	return h, err
}

func withReader(path string, fn func(*bufio.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()
	return fn(bufio.NewReaderSize(dec, 64*1024))
}

func readHeader(br *bufio.Reader) (Header, error) {
	var h Header
	line, err := br.ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	if h.Version != Version {
		return h, fmt.Errorf("unsupported snapshot version %d", h.Version)
	}
	return h, nil
}

// Latest returns the newest snapshot in dir by quarter.
func Latest(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoSnapshot
	}
	if err != nil {
		return "", err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ext) {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", ErrNoSnapshot
	}
	// Zero-padded years make lexical order chronological.
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1]), nil
}
