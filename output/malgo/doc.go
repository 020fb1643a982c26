// SPDX-License-Identifier: EPL-2.0

// Package malgo implements output.Host on miniaudio.
//
// Hogging maps to miniaudio's exclusive share mode, which bypasses the
// system mixer so integer samples reach the converter untouched. The
// device list is polled; devices that disappear are reported as
// DeviceRemoved.
package malgo
