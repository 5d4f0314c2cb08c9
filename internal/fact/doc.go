// Package fact defines the Kith domain model.
//
// The fundamental datum is a Fact: an immutable, timestamped claim about one
// subject. Facts are never updated or deleted; their lifecycle (supersession,
// retraction) is recorded in separate append-only event tables and resolved
// at query time. A "contact" as seen by CardDAV clients is a ContactView —
// a computed projection over the active facts of a subject.
package fact
