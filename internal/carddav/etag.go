package carddav

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/johnbchron/kith/internal/fact"
)

// FactStamp identifies one active fact for ETag purposes.
type FactStamp struct {
	FactID     uuid.UUID
	RecordedAt time.Time
}

// ComputeETag hashes the active fact set of a view into a quoted lowercase
// hex SHA-256 digest. The hash covers sorted (fact_id, recorded_at) pairs, so
// it is independent of insertion order, changes on any append / supersede /
// retract, and is stable across process restarts.
func ComputeETag(view *fact.ContactView) string {
	stamps := make([]FactStamp, 0, len(view.ActiveFacts))
	for _, rf := range view.ActiveFacts {
		stamps = append(stamps, FactStamp{
			FactID:     rf.Fact.FactID,
			RecordedAt: rf.Fact.RecordedAt,
		})
	}
	return ETagFromStamps(stamps)
}

// ETagFromStamps computes an ETag directly from fact stamps. The slice is
// sorted by fact id before hashing.
func ETagFromStamps(stamps []FactStamp) string {
	sort.Slice(stamps, func(i, j int) bool {
		a, b := stamps[i].FactID, stamps[j].FactID
		for k := range a {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return false
	})

	h := sha256.New()
	var micros [8]byte
	for _, s := range stamps {
		h.Write(s.FactID[:])
		binary.LittleEndian.PutUint64(micros[:], uint64(s.RecordedAt.UnixMicro()))
		h.Write(micros[:])
	}
	return `"` + hex.EncodeToString(h.Sum(nil)) + `"`
}
