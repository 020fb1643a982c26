// SPDX-License-Identifier: EPL-2.0

package audio

// ChannelMap routes the channels of a decoded frame onto the channels of an
// output device. It is built once, outside the render path, and then maps
// frames without allocating.
type ChannelMap struct {
	src   int
	dst   int
	route []int // per device channel: source channel or -1 for silence
	mix   bool  // device is mono and the source is not: average all channels
	inv   float32
}

// NewChannelMap builds the routing for srcChannels onto dstChannels. stereo
// names the device channels preferred for left and right; out-of-range
// values fall back to 0 and 1.
func NewChannelMap(srcChannels, dstChannels int, stereo [2]int) *ChannelMap {
	m := &ChannelMap{
		src:   srcChannels,
		dst:   dstChannels,
		route: make([]int, dstChannels),
	}

	if srcChannels > 0 {
		m.inv = 1 / float32(srcChannels)
	}

	for c := range m.route {
		m.route[c] = -1
	}

	if dstChannels == 1 {
		m.mix = srcChannels > 1
		m.route[0] = 0
		return m
	}

	left, right := stereo[0], stereo[1]
	if left < 0 || left >= dstChannels || right < 0 || right >= dstChannels || left == right {
		left, right = 0, 1
	}

	switch srcChannels {
	case 1:
		m.route[left] = 0
		m.route[right] = 0
	case 2:
		m.route[left] = 0
		m.route[right] = 1
	default:
		for c := range min(srcChannels, dstChannels) {
			m.route[c] = c
		}
	}

	return m
}

func (m *ChannelMap) SrcChannels() int { return m.src }
func (m *ChannelMap) DstChannels() int { return m.dst }

// Identity reports whether frames can be copied as they are.
func (m *ChannelMap) Identity() bool {
	if m.src != m.dst || m.mix {
		return false
	}
	for c, s := range m.route {
		if s != c {
			return false
		}
	}
	return true
}

// Float maps one frame. src must hold SrcChannels samples and dst DstChannels.
func (m *ChannelMap) Float(dst, src []float32) {
	if m.mix {
		sum := float32(0)
		for _, v := range src[:m.src] {
			sum += v
		}
		dst[0] = sum * m.inv
		return
	}

	for c, s := range m.route {
		if s < 0 {
			dst[c] = 0
			continue
		}
		dst[c] = src[s]
	}
}

// Int maps one frame of integer samples. Downmixing averages in 64-bit so
// the result stays within the source resolution.
func (m *ChannelMap) Int(dst, src []int32) {
	if m.mix {
		var sum int64
		for _, v := range src[:m.src] {
			sum += int64(v)
		}
		dst[0] = int32(sum / int64(m.src))
		return
	}

	for c, s := range m.route {
		if s < 0 {
			dst[c] = 0
			continue
		}
		dst[c] = src[s]
	}
}
