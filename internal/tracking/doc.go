// Package tracking assigns stable identities to per-frame person detections.
//
// A Tracker belongs to exactly one camera loop. It keeps the centre of every
// live track, matches the next frame's boxes against those centres with a
// greedy nearest-neighbour pass, spawns tracks for leftover boxes and prunes
// tracks that have gone unmatched for too long. Tracks are never shared
// between cameras and the tracker does no locking of its own.
//
// The package also carries the passthrough tracker used when no identity is
// wanted and the helpers that shape tracked boxes for the ingestion API.
package tracking
