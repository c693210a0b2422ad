// Package transition derives per-subject temporal transitions from
// longitudinal observations held in a frame.Frame.
//
// Every operation validates the subject, timepoint and result columns,
// builds a read-only Dataset, and for each row locates the subject's
// immediately preceding timepoint. From there it reports the previous date,
// the previous result, or the transition between previous and current
// result under the cap/modulate rule implemented by Value.
//
// Operations never mutate their input. Coercions (integer or numeric
// timepoints to dates, integral numeric results to integers) are returned
// as Warnings; failures are returned as an *OpError wrapping one of the
// package sentinels, and no partial output is produced.
package transition
