// Package engine contains the turn pipeline and simulation logic.
//
// ARCHITECTURAL RULE: only the pipeline and direct operator commands mutate
// the reactor core. Subsystems read the core, write their own fields and
// report warnings; observers get snapshots through the event log.
package engine
