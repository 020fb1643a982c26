// SPDX-License-Identifier: EPL-2.0

package malgo

import (
	"testing"

	"github.com/gen2brain/malgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ik5/bitperfect/audio"
	"github.com/ik5/bitperfect/output"
)

func TestDescribe(t *testing.T) {
	t.Parallel()

	info := describe("hw:1,0", "USB DAC", true, []malgo.DataFormat{
		{Format: malgo.FormatS16, Channels: 2, SampleRate: 44100},
		{Format: malgo.FormatS24, Channels: 2, SampleRate: 96000},
		{Format: malgo.FormatS32, Channels: 2, SampleRate: 44100},
		{Format: malgo.FormatS16, Channels: 2, SampleRate: 96000},
		{Format: malgo.FormatU8, Channels: 2, SampleRate: 44100},
	})

	assert.Equal(t, "hw:1,0", info.UID)
	assert.True(t, info.IsDefault)
	assert.Equal(t, 2, info.Channels)
	assert.Equal(t, []int{44100, 96000}, info.SampleRates)
	require.Len(t, info.PhysicalFormats, 3)
	assert.Equal(t, audio.IntFormat(0, 2, 16), info.PhysicalFormats[0])
	assert.Equal(t, 3, info.PhysicalFormats[1].BytesPerSample)
	assert.Equal(t, output.VolumeVirtual, info.Volume)
	require.Len(t, info.VirtualFormats, 1)
	assert.True(t, info.VirtualFormats[0].Float)

	f, ok := info.IntegerFormat(96000, 20)
	require.True(t, ok)
	assert.Equal(t, 24, f.BitsPerChannel)
}

func TestDescribe_AnyRate(t *testing.T) {
	t.Parallel()

	info := describe("default", "Default", false, []malgo.DataFormat{
		{Format: malgo.FormatF32, Channels: 0, SampleRate: 0},
	})

	assert.Equal(t, StandardRates, info.SampleRates)
	assert.Equal(t, 2, info.Channels)
	assert.Empty(t, info.PhysicalFormats)
	assert.Equal(t, audio.Float32Format(96000, 2), info.FloatFormat(96000))
}

func TestToMalgo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format  audio.StreamFormat
		want    malgo.FormatType
		wantErr bool
	}{
		{audio.Float32Format(44100, 2), malgo.FormatF32, false},
		{audio.IntFormat(44100, 2, 16), malgo.FormatS16, false},
		{audio.IntFormat(44100, 2, 24), malgo.FormatS24, false},
		{audio.IntFormat(44100, 2, 32), malgo.FormatS32, false},
		{audio.StreamFormat{Channels: 2, BitsPerChannel: 24, BytesPerSample: 4}, malgo.FormatS32, false},
		{audio.StreamFormat{Channels: 2, BitsPerChannel: 64, BytesPerSample: 8, Float: true}, malgo.FormatUnknown, true},
		{audio.IntFormat(44100, 2, 8), malgo.FormatUnknown, true},
	}

	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			t.Parallel()

			got, err := toMalgo(tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUIDOf(t *testing.T) {
	t.Parallel()

	var alsa malgo.DeviceID
	copy(alsa[:], "hw:1,0")
	assert.Equal(t, "hw:1,0", uidOf(alsa))

	var binary malgo.DeviceID
	copy(binary[:], []byte{0x01, 0xff, 0x10})
	assert.Equal(t, "01ff10", uidOf(binary))
}

func TestDiff(t *testing.T) {
	t.Parallel()

	removed, changed := diff([]string{"a", "b"}, []string{"a", "b"})
	assert.Empty(t, removed)
	assert.False(t, changed)

	removed, changed = diff([]string{"a", "b"}, []string{"a"})
	assert.Equal(t, []string{"b"}, removed)
	assert.True(t, changed)

	removed, changed = diff([]string{"a"}, []string{"a", "c"})
	assert.Empty(t, removed)
	assert.True(t, changed)

	removed, changed = diff([]string{"a", "b"}, []string{"a", "c"})
	assert.Equal(t, []string{"b"}, removed)
	assert.True(t, changed)
}
