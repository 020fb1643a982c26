// SPDX-License-Identifier: EPL-2.0

// Package output abstracts the playback hardware.
//
// A Host lists devices and delivers their change notifications on a single
// channel. A Device is driven through asynchronous requests: Hog and
// SetFormat return at once and their outcome arrives as a Notification.
// Once started, a device pulls audio from a RenderFunc on its own clock.
//
// Two hosts are provided: output/malgo talks to the system audio API through
// miniaudio and can take a device exclusively, output/oto plays through one
// shared float device.
package output
