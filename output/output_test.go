// SPDX-License-Identifier: EPL-2.0

package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ik5/bitperfect/audio"
)

func testInfo() DeviceInfo {
	return DeviceInfo{
		UID:         "dac",
		Name:        "USB DAC",
		Channels:    2,
		SampleRates: []int{44100, 48000, 88200, 96000, 176400, 192000},
		PhysicalFormats: []audio.StreamFormat{
			audio.IntFormat(0, 2, 32),
			audio.IntFormat(0, 2, 16),
			{Channels: 2, BitsPerChannel: 24, BytesPerSample: 4, AlignedHigh: true},
		},
		VirtualFormats:  []audio.StreamFormat{audio.Float32Format(0, 2)},
		MinBufferFrames: 64,
		MaxBufferFrames: 4096,
	}
}

func TestDeviceInfo_IntegerFormat(t *testing.T) {
	t.Parallel()

	info := testInfo()

	tests := []struct {
		name     string
		minBits  int
		wantBits int
		wantOK   bool
	}{
		{"16-bit source", 16, 16, true},
		{"24-bit source", 24, 24, true},
		{"20-bit source", 20, 24, true},
		{"32-bit source", 32, 32, true},
		{"too wide", 33, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f, ok := info.IntegerFormat(96000, tt.minBits)
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.wantBits, f.BitsPerChannel)
			assert.Equal(t, 96000, f.SampleRate)
			assert.False(t, f.Float)
		})
	}
}

func TestDeviceInfo_FloatFormat(t *testing.T) {
	t.Parallel()

	f := testInfo().FloatFormat(48000)
	assert.True(t, f.Float)
	assert.Equal(t, 48000, f.SampleRate)
	assert.Equal(t, 2, f.Channels)

	// A device without virtual formats still gets a float layout.
	bare := DeviceInfo{Channels: 6}.FloatFormat(44100)
	assert.Equal(t, audio.Float32Format(44100, 6), bare)
}

func TestDeviceInfo_Rates(t *testing.T) {
	t.Parallel()

	info := testInfo()
	assert.True(t, info.SupportsRate(88200))
	assert.False(t, info.SupportsRate(22050))
	assert.Equal(t, 192000, info.MaxRate())
	assert.Zero(t, DeviceInfo{}.MaxRate())
}

func TestDeviceInfo_ClampBufferFrames(t *testing.T) {
	t.Parallel()

	info := testInfo()
	assert.Equal(t, 64, info.ClampBufferFrames(1))
	assert.Equal(t, 512, info.ClampBufferFrames(512))
	assert.Equal(t, 4096, info.ClampBufferFrames(1<<20))
	assert.Equal(t, 7, DeviceInfo{}.ClampBufferFrames(7))
}

func TestNotificationKind_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "hog changed", HogChanged.String())
	assert.Equal(t, "device removed", DeviceRemoved.String())
	assert.Equal(t, "notification(99)", NotificationKind(99).String())
}
