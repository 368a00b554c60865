// Package pipeline defines the conversion stage ordering and the
// per-process state machine. Stage entry snaps overall progress to a
// fixed percentage; failure and cancellation freeze progress where it
// stood and make the state terminal. Terminal states are sticky and
// reject further transitions.
package pipeline
