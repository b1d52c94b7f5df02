// Package notify derives user-facing notifications from match snapshots.
//
// Notifications are never pushed by the server. Each one is the output of a
// rule evaluated against the latest snapshot of a match:
//
//   - UPCOMING_MATCH (medium): confirmed and starting within 24 hours.
//   - PENDING_CONFIRMATION (high): the match is assembled and waiting for
//     players to confirm.
//   - AUTO_TRANSITION_IMMINENT (high): confirmed and starting within the
//     hour, or in progress and ending within 15 minutes.
//   - RECOMMENDATION (low): a search result scoring at least 0.8 that the
//     user has not joined. At most three are kept; the lowest score goes
//     first.
//
// Record ids are UUIDv5 hashes of kind and match id, so deriving the same
// snapshot twice never duplicates a record. Feed holds the derived set; the
// store's change events feed it and Sweep re-checks the time windows
// between polls.
package notify
