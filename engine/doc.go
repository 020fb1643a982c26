// SPDX-License-Identifier: EPL-2.0

// Package engine plays the two slots of a buffer.Arena on an output device.
//
// Playback goes through a fixed set of phases. InitiatePlayback opens the
// device, hogs it when configured, negotiates a format for the loaded slot
// and starts the render callback. A failure at any step undoes the earlier
// ones and leaves the engine Idle.
//
// The render callback runs on the device clock. It reads only atomics,
// converts frames to the device format and moves to the other slot at the
// end of the playing one when a change was requested. It never allocates
// and never blocks; it reports underruns, overloads and the end of the
// track through flags that a control goroutine turns into Callbacks.
//
// Output is held while any pause reason is set: an explicit pause, a
// sample rate change or a buffer size change. When the next track needs
// another rate the engine changes the device format between the tracks,
// and falls back to float samples if the device cannot keep integers.
package engine
