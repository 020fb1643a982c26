// SPDX-License-Identifier: EPL-2.0

// Package buffer holds decoded audio between the loader and the render
// callback.
//
// An Arena has two slots. The loader fills one while the render callback
// plays the other; at the end of the playing slot the callback moves to the
// other one if the controller asked for it. Everything the callback reads is
// an atomic with a single writer, so it never waits for a lock.
package buffer
