package platform

import (
	"encoding/binary"
	"time"
)

// audioSource is the narrow slice of gba.Machine the stream pulls from,
// kept minimal so this file doesn't import internal/gba just to read a
// method signature.
type audioSource interface {
	DrainAudio(max int) []int16
}

// machineStream implements io.Reader by pulling interleaved stereo PCM16
// frames out of the machine's sound FIFOs and packing them little-endian.
type machineStream struct {
	src   audioSource
	muted *bool

	underruns int
}

const sampleRate = 32768 // native GBA mixer rate

func (s *machineStream) Read(p []byte) (int, error) {
	if len(p) < 4 {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	if s.muted != nil && *s.muted {
		for i := range p {
			p[i] = 0
		}
		time.Sleep(5 * time.Millisecond)
		return len(p), nil
	}

	want := len(p) / 4
	frames := s.src.DrainAudio(want)
	if len(frames) == 0 {
		for i := range p {
			p[i] = 0
		}
		s.underruns++
		return len(p), nil
	}

	i := 0
	for j := 0; j+1 < len(frames) && i+3 < len(p); j += 2 {
		binary.LittleEndian.PutUint16(p[i:], uint16(frames[j]))
		binary.LittleEndian.PutUint16(p[i+2:], uint16(frames[j+1]))
		i += 4
	}
	for ; i < len(p); i++ {
		p[i] = 0
	}
	return i, nil
}
