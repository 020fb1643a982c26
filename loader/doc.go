// SPDX-License-Identifier: EPL-2.0

// Package loader streams decoded audio into the slots of a buffer.Arena.
//
// Each slot is filled by at most one background task. A track that fits in
// a slot is decoded in one pass; a longer one is decoded a chunk at a time,
// the next chunk going into the other slot while the first one plays.
// LoadFile returns as soon as the first seconds are ready, so playback can
// start while the rest of the slot is still being decoded.
//
// Abort is synchronous: once it returns nothing writes into the slot.
package loader
