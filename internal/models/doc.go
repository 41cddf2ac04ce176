// Package models defines the domain entities for the playlist reconciliation service.
//
// The central type is [Song], the provider-independent representation of a
// track. A Song carries a map of provider-native track ids that grows as
// matches against external catalogs are confirmed. [Playlist] holds an ordered
// sequence of Songs owned by one user and optionally shared with others.
//
// [Connection] tracks per-user per-provider credential state, and [Job]
// records one import/export operation with per-song progress so a partially
// failed run can be resumed. [Notification] is the persisted record produced
// by the fan-out after playlist events.
package models
