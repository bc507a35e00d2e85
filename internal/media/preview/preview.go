// Package preview measures the playing time of submitted preview audio.
package preview

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-audio/wav"
	"github.com/tcolgate/mp3"
)

// ErrUnsupportedFormat is returned for extensions other than mp3 and wav.
var ErrUnsupportedFormat = errors.New("preview: unsupported audio format")

// Duration returns the length of data in seconds. ext selects the decoder and
// may carry a leading dot.
func Duration(data []byte, ext string) (float64, error) {
	switch strings.TrimPrefix(strings.ToLower(ext), ".") {
	case "mp3":
		return mp3Duration(data)
	case "wav":
		return wavDuration(data)
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

func mp3Duration(data []byte) (float64, error) {
	decoder := mp3.NewDecoder(bytes.NewReader(data))
	var (
		frame   mp3.Frame
		skipped int
		total   float64
		frames  int
	)
	for {
		err := decoder.Decode(&frame, &skipped)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return 0, fmt.Errorf("preview: decode mp3: %w", err)
		}
		total += frame.Duration().Seconds()
		frames++
	}
	if frames == 0 {
		return 0, errors.New("preview: no mp3 frames found")
	}
	return total, nil
}

func wavDuration(data []byte) (float64, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	if !decoder.IsValidFile() {
		return 0, errors.New("preview: invalid wav file")
	}
	// The RIFF-level estimate counts header bytes, so prefer the data chunk size.
	if err := decoder.FwdToPCM(); err == nil && decoder.PCMSize > 0 && decoder.AvgBytesPerSec > 0 {
		return float64(decoder.PCMSize) / float64(decoder.AvgBytesPerSec), nil
	}
	duration, err := decoder.Duration()
	if err != nil {
		return 0, fmt.Errorf("preview: wav duration: %w", err)
	}
	return duration.Seconds(), nil
}
