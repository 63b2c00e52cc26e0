package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"mime"
	"strconv"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// Format names a container Decode understands.
type Format string

const (
	FormatWAV   Format = "wav"
	FormatMP3   Format = "mp3"
	FormatPCM16 Format = "pcm16"
)

// Sniff guesses the container from a content type and the leading bytes.
// Raw PCM can't be sniffed and is only recognized through audio/L16.
func Sniff(contentType string, data []byte) (Format, int, error) {
	mediaType, params, _ := mime.ParseMediaType(contentType)
	switch strings.ToLower(mediaType) {
	case "audio/l16", "audio/pcm":
		rate := 16000
		if r, ok := params["rate"]; ok {
			n, err := strconv.Atoi(r)
			if err != nil || n <= 0 {
				return "", 0, fmt.Errorf("%w: bad rate parameter %q", ErrDecode, r)
			}
			rate = n
		}
		return FormatPCM16, rate, nil
	}

	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return FormatWAV, 0, nil
	case len(data) >= 3 && string(data[0:3]) == "ID3":
		return FormatMP3, 0, nil
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return FormatMP3, 0, nil
	}

	return "", 0, fmt.Errorf("%w: content type %q", ErrUnsupportedFormat, contentType)
}

// Decode reads an uploaded answer into a mono clip at its native rate.
func Decode(contentType string, data []byte) (*Clip, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrDecode)
	}

	format, rate, err := Sniff(contentType, data)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatWAV:
		return decodeWAV(data)
	case FormatMP3:
		return decodeMP3(data)
	case FormatPCM16:
		return decodePCM16(data, rate, 1)
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}

func decodeWAV(data []byte) (*Clip, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid wav file", ErrDecode)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	if buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: wav header has no format", ErrDecode)
	}

	depth := buf.SourceBitDepth
	if depth == 0 {
		depth = int(dec.BitDepth)
	}
	if depth <= 0 || depth > 32 {
		return nil, fmt.Errorf("%w: unsupported bit depth %d", ErrDecode, depth)
	}

	scale := float64(int64(1) << (depth - 1))
	if depth == 8 {
		// 8 bit wav is unsigned.
		samples := make([]float64, len(buf.Data))
		for i, s := range buf.Data {
			samples[i] = float64(s-128) / 128
		}
		return downmix(samples, buf.Format.NumChannels, buf.Format.SampleRate), nil
	}

	samples := make([]float64, len(buf.Data))
	for i, s := range buf.Data {
		samples[i] = float64(s) / scale
	}

	return downmix(samples, buf.Format.NumChannels, buf.Format.SampleRate), nil
}

func decodeMP3(data []byte) (*Clip, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	// go-mp3 always yields 16 bit little endian stereo.
	return decodePCM16(raw, dec.SampleRate(), 2)
}

func decodePCM16(data []byte, rate, channels int) (*Clip, error) {
	if len(data)%(2*channels) != 0 {
		return nil, fmt.Errorf("%w: pcm payload of %d bytes is not whole frames", ErrDecode, len(data))
	}

	samples := make([]float64, len(data)/2)
	for i := range samples {
		samples[i] = float64(int16(binary.LittleEndian.Uint16(data[i*2:]))) / 32768
	}

	return downmix(samples, channels, rate), nil
}

// downmix averages interleaved channels into one.
func downmix(samples []float64, channels, rate int) *Clip {
	if channels == 1 {
		return &Clip{Samples: samples, SampleRate: rate}
	}

	mono := make([]float64, len(samples)/channels)
	for i := range mono {
		var sum float64
		for c := range channels {
			sum += samples[i*channels+c]
		}
		mono[i] = sum / float64(channels)
	}

	return &Clip{Samples: mono, SampleRate: rate}
}
