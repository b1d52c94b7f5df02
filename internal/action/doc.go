// Package action performs mutating calls with optimistic feedback.
//
// The coordinator records a Pending action, overlays the predicted snapshot
// on the match store, then calls the API. Failures roll the overlay back and
// return a *Failure with the message to show. Successes leave the overlay
// until the follow-up refresh (or the next poll) replaces it with the
// server's view. Only one action per match and kind may be in flight.
package action
