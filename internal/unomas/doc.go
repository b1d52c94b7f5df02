// Package unomas provides an HTTP client for the UnoMas matchmaking API.
//
// # Overview
//
// The client covers the endpoints the sync layer consumes: match detail,
// the user's matches, paged search, the user's profile, and the four
// mutations (join, confirm participation, change status, change strategy).
// CommunityAPI adds platform statistics and match comments. Wire payloads use
// the API's Spanish field names and are converted into immutable Match
// values on the way in.
//
// # Errors
//
// Non-2xx responses become *APIError. The message is taken from the body's
// mensaje, message, or error field, then the raw body text, then an
// HTTP-status fallback. 4xx errors are authoritative rejections; everything
// else (network failures, timeouts, 5xx, undecodable bodies) is transient:
//
//	if unomas.IsTransient(err) {
//		// retry on the next poll tick
//	}
//	fmt.Println(unomas.UserMessage(err))
//
// # Authentication
//
// GET /partidos/{id} is public. Every other call sends the configured token
// as a bearer credential.
package unomas
