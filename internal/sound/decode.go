package sound

import (
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/faiface/beep"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/vorbis"
	"github.com/faiface/beep/wav"
	"github.com/pkg/errors"
)

var ErrUnsupportedFormat = errors.New("unsupported audio format")

const resampleQuality = 4

// Decode reads a whole asset and returns it as a stereo buffer at rate. The
// codec is chosen by the extension of location.
func Decode(location string, rc io.ReadCloser, rate beep.SampleRate) (*beep.Buffer, error) {
	var (
		s      beep.StreamSeekCloser
		format beep.Format
		err    error
	)
	switch ext := extOf(location); ext {
	case ".wav":
		s, format, err = wav.Decode(rc)
	case ".mp3":
		s, format, err = mp3.Decode(rc)
	case ".flac":
		s, format, err = flac.Decode(rc)
	case ".ogg":
		s, format, err = vorbis.Decode(rc)
	default:
		_ = rc.Close()
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%q", ext)
	}
	if err != nil {
		_ = rc.Close()
		return nil, errors.Wrap(err, "decode")
	}
	defer s.Close()

	var src beep.Streamer = s
	if format.SampleRate != rate {
		src = beep.Resample(resampleQuality, format.SampleRate, rate, s)
	}
	buf := beep.NewBuffer(beep.Format{SampleRate: rate, NumChannels: 2, Precision: 2})
	buf.Append(src)
	if err := s.Err(); err != nil {
		return nil, errors.Wrap(err, "decode")
	}
	if buf.Len() == 0 {
		return nil, errors.New("decode: asset has no audio")
	}
	return buf, nil
}

func extOf(location string) string {
	p := location
	if u, err := url.Parse(location); err == nil && u.Scheme != "" && u.Path != "" {
		p = u.Path
	}
	return strings.ToLower(path.Ext(p))
}
