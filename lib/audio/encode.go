package audio

import (
	"errors"
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// EncodeWAV renders c as 16 bit mono wav. Speech recognizers take this form.
func EncodeWAV(c *Clip) ([]byte, error) {
	ints := make([]int, len(c.Samples))
	for i, s := range c.Samples {
		ints[i] = int(math.Round(math.Max(-1, math.Min(1, s)) * 32767))
	}

	var buf seekBuffer
	enc := wav.NewEncoder(&buf, c.SampleRate, 16, 1, 1)
	if err := enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: c.SampleRate},
		Data:           ints,
		SourceBitDepth: 16,
	}); err != nil {
		return nil, fmt.Errorf("audio: can't encode wav: %w", err)
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("audio: can't finish wav: %w", err)
	}

	return buf.data, nil
}

// seekBuffer is an in-memory io.WriteSeeker. The wav encoder patches its
// header sizes after the data is written.
type seekBuffer struct {
	data []byte
	pos  int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if need := b.pos + len(p); need > len(b.data) {
		if need > cap(b.data) {
			grown := make([]byte, need, 2*need)
			copy(grown, b.data)
			b.data = grown
		} else {
			b.data = b.data[:need]
		}
	}

	n := copy(b.data[b.pos:], p)
	b.pos += n
	return n, nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(b.pos) + offset
	case io.SeekEnd:
		abs = int64(len(b.data)) + offset
	default:
		return 0, errors.New("audio: invalid whence")
	}

	if abs < 0 {
		return 0, errors.New("audio: negative position")
	}

	b.pos = int(abs)
	return abs, nil
}
