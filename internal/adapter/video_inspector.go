package adapter

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/gabriel-vasile/mimetype"

	"jira-video-session/internal/classifier"
	"jira-video-session/internal/port"
)

// supportedContainers lists the video containers the remote service accepts
var supportedContainers = []string{
	"video/mp4",
	"video/quicktime",
	"video/webm",
	"video/x-matroska",
	"video/x-msvideo",
	"video/x-flv",
	"video/3gpp",
	"video/3gpp2",
	"video/mpeg",
	"video/x-m4v",
}

// MimeVideoInspector implements port.VideoInspector by sniffing container signatures
type MimeVideoInspector struct{}

// NewMimeVideoInspector creates a new video inspector
func NewMimeVideoInspector() *MimeVideoInspector {
	return &MimeVideoInspector{}
}

// Inspect checks that videoPath is a readable regular file of a supported container
func (v *MimeVideoInspector) Inspect(videoPath string) (*port.VideoInfo, error) {
	info, err := os.Stat(videoPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &port.InputError{Signal: classifier.SignalFileNotFound, Message: fmt.Sprintf("video not found: %s", videoPath), Err: err}
		}
		return nil, &port.InputError{Signal: classifier.SignalFileNotFound, Message: fmt.Sprintf("video not accessible: %s", videoPath), Err: err}
	}
	if !info.Mode().IsRegular() {
		return nil, &port.InputError{Signal: classifier.SignalFileNotFound, Message: fmt.Sprintf("not a regular file: %s", videoPath)}
	}

	mtype, err := mimetype.DetectFile(videoPath)
	if err != nil {
		return nil, &port.InputError{Signal: classifier.SignalFileNotFound, Message: fmt.Sprintf("video not readable: %s", videoPath), Err: err}
	}

	if !isSupportedContainer(mtype) {
		return nil, &port.InputError{
			Signal:  classifier.SignalUnsupportedFormat,
			Message: fmt.Sprintf("unsupported format %s: %s", mtype.String(), videoPath),
		}
	}

	return &port.VideoInfo{
		Path:      videoPath,
		MimeType:  mtype.String(),
		Extension: mtype.Extension(),
		Size:      info.Size(),
	}, nil
}

func isSupportedContainer(mtype *mimetype.MIME) bool {
	for m := mtype; m != nil; m = m.Parent() {
		for _, supported := range supportedContainers {
			if m.Is(supported) {
				return true
			}
		}
	}
	return false
}
