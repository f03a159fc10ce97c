// Package astiav backs the decoder interfaces with
// github.com/asticode/go-astiav, the same FFmpeg binding the teacher uses
// for its RTSP decode pipeline. This is the only package in the module
// that imports go-astiav; no AVFrame/AVPacket/AVCodecContext type crosses
// out of it.
package astiav

import (
	"errors"
	"fmt"
	"io"
	"os"

	astiav "github.com/asticode/go-astiav"
	"github.com/e1z0/mediacore/mediaerr"
)

// wrapFFmpegErr maps an astiav/os error into the closed mediaerr taxonomy.
// No raw FFmpeg error value is allowed to escape this function.
func wrapFFmpegErr(err error, context string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return mediaerr.NewFileNotFound(context)
	}
	if errors.Is(err, astiav.ErrEof) || errors.Is(err, io.EOF) {
		return mediaerr.NewEOF()
	}
	return mediaerr.NewDecodeFailed(fmt.Sprintf("%s: %v", context, err))
}

func isEAgain(err error) bool {
	return errors.Is(err, astiav.ErrEagain)
}

func isEOF(err error) bool {
	return errors.Is(err, astiav.ErrEof) || errors.Is(err, io.EOF)
}
