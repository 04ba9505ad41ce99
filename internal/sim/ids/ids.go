package ids

import (
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const (
	PrefixStudent  = "stu"
	PrefixProject  = "prj"
	PrefixPaper    = "ppr"
	PrefixGrant    = "grt"
	PrefixDecision = "dec"
	PrefixOption   = "opt"
)

// Generator mints ids for one entity prefix.
type Generator func(prefix string) string

// New returns "<prefix>_<uuid>".
func New(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// HasPrefix reports whether id was minted for prefix.
func HasPrefix(id, prefix string) bool {
	return strings.HasPrefix(id, prefix+"_")
}

// Counter returns a deterministic generator ("<prefix>_1", "<prefix>_2", ...)
// with one sequence per prefix.
func Counter() Generator {
	var mu sync.Mutex
	next := map[string]uint64{}
	return func(prefix string) string {
		mu.Lock()
		defer mu.Unlock()
		next[prefix]++
		return prefix + "_" + strconv.FormatUint(next[prefix], 10)
	}
}
