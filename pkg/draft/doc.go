// Package draft drives a multi-step form session. A Controller walks the
// sections of a catalogue, gating required sections on validation, merging
// each section's normalised answers under its key, persisting the merged
// object to a Store after every section and performing one final submission.
//
// State is explicit: Start, Advance, Retreat and Submit each take a Session
// and return the next one. The phases are:
//
//	AtSection(0) -> ... -> AtSection(N-1) -> Submitting -> Submitted
//	                                             |  ^
//	                                             v  |
//	                                            Failed
//
// Drafts survive failed submissions and, unless WithClearOnSuccess is set,
// successful ones too.
package draft
