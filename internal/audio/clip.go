// Package audio plays the looping hive alarm.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/wav"
)

// Clip is a decoded alarm sound as interleaved signed 16-bit little-endian PCM
type Clip struct {
	SampleRate int
	Channels   int
	PCM        []byte
}

// LoadClip decodes a WAV file from disk
func LoadClip(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open alarm file: %w", err)
	}
	defer f.Close()

	return DecodeClip(f)
}

// DecodeClip decodes 8, 16, 24 or 32-bit PCM WAV data into a Clip
func DecodeClip(r io.ReadSeeker) (*Clip, error) {
	decoder := wav.NewDecoder(r)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, errors.New("invalid WAV file format")
	}

	if decoder.NumChans != 1 && decoder.NumChans != 2 {
		return nil, fmt.Errorf("unsupported number of channels: %d", decoder.NumChans)
	}

	shift, err := shiftFor(int(decoder.BitDepth))
	if err != nil {
		return nil, err
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode WAV data: %w", err)
	}
	if len(buf.Data) == 0 {
		return nil, errors.New("alarm file contains no samples")
	}

	pcm := make([]byte, len(buf.Data)*2)
	for i, sample := range buf.Data {
		var s int
		if decoder.BitDepth == 8 {
			// 8-bit WAV is unsigned
			s = (sample - 128) << 8
		} else {
			s = sample >> shift
		}
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(s)))
	}

	return &Clip{
		SampleRate: int(decoder.SampleRate),
		Channels:   int(decoder.NumChans),
		PCM:        pcm,
	}, nil
}

func shiftFor(bitDepth int) (uint, error) {
	switch bitDepth {
	case 8, 16:
		return 0, nil
	case 24:
		return 8, nil
	case 32:
		return 16, nil
	default:
		return 0, fmt.Errorf("unsupported bit depth: %d", bitDepth)
	}
}

// FrameSize is the number of bytes per interleaved frame
func (c *Clip) FrameSize() int {
	return c.Channels * 2
}

// Frames is the clip length in frames
func (c *Clip) Frames() int {
	return len(c.PCM) / c.FrameSize()
}

// cursor walks a clip, optionally wrapping at the end
type cursor struct {
	clip *Clip
	pos  int
	loop bool
}

// fill copies PCM into out starting at the cursor. It returns false once a
// non-looping clip has been exhausted; remaining bytes are zeroed.
func (c *cursor) fill(out []byte) bool {
	n := 0
	for n < len(out) {
		if c.pos >= len(c.clip.PCM) {
			if !c.loop {
				clear(out[n:])
				return false
			}
			c.pos = 0
		}
		copied := copy(out[n:], c.clip.PCM[c.pos:])
		n += copied
		c.pos += copied
	}
	return true
}

// restartIfDone rewinds a non-looping cursor that has reached the end
func (c *cursor) restartIfDone() bool {
	if c.loop || c.pos < len(c.clip.PCM) {
		return false
	}
	c.pos = 0
	return true
}
