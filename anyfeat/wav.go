package anyfeat

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ReadWAV reads 16-bit PCM audio from a WAV file.
// Multi-channel audio is mixed down to mono.
func ReadWAV(r io.ReadSeeker) (pcm []int16, sampleRate int, err error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, 0, errors.New("read WAV: not a valid PCM WAV file")
	}
	if d.BitDepth != 16 {
		return nil, 0, fmt.Errorf("read WAV: unsupported bit depth %d", d.BitDepth)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("read WAV: %w", err)
	}
	channels := buf.Format.NumChannels
	pcm = make([]int16, len(buf.Data)/channels)
	for i := range pcm {
		var sum int
		for _, x := range buf.Data[i*channels : (i+1)*channels] {
			sum += x
		}
		pcm[i] = int16(sum / channels)
	}
	return pcm, buf.Format.SampleRate, nil
}

// WriteWAV writes mono 16-bit PCM audio as a WAV file.
func WriteWAV(w io.WriteSeeker, pcm []int16, sampleRate int) error {
	return writeWAV(w, pcm, sampleRate, 1)
}

// writeWAV writes interleaved 16-bit PCM.
func writeWAV(w io.WriteSeeker, pcm []int16, sampleRate, channels int) error {
	data := make([]int, len(pcm))
	for i, x := range pcm {
		data[i] = int(x)
	}
	enc := wav.NewEncoder(w, sampleRate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write WAV: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("write WAV: %w", err)
	}
	return nil
}
