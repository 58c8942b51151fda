package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"

	"riffloop/engine"
)

// decodeFile decodes the whole file into a beep.Buffer keyed by extension.
// Buffering up front keeps segment scheduling a pure slice of frames and
// makes repeated loop restarts free of disk I/O.
func decodeFile(path string) (*beep.Buffer, beep.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("%w: %v", engine.ErrFileUnavailable, err)
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	case ".wav":
		streamer, format, err = wav.Decode(f)
	case ".flac":
		streamer, format, err = flac.Decode(f)
	case ".ogg", ".oga":
		streamer, format, err = vorbis.Decode(f)
	default:
		f.Close()
		return nil, beep.Format{}, fmt.Errorf("%w: unsupported format %q", engine.ErrFileUnavailable, filepath.Ext(path))
	}
	if err != nil {
		f.Close()
		return nil, beep.Format{}, fmt.Errorf("%w: decoding %s: %v", engine.ErrFileUnavailable, path, err)
	}

	buf := beep.NewBuffer(format)
	buf.Append(streamer)
	streamer.Close()

	if buf.Len() == 0 {
		return nil, beep.Format{}, fmt.Errorf("%w: %s decoded to zero frames", engine.ErrFileUnavailable, path)
	}
	return buf, format, nil
}
