package adapter

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"jira-video-session/internal/domain"
)

const frameTempPrefix = ".frame-*.tmp"

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".gif":  true,
	".bmp":  true,
}

// FileFrameCache implements port.FrameCache next to the session records.
//
// Layout: <root>/sessions/<sessionID>/frames/<frameID><ext>
type FileFrameCache struct {
	store *FileResultStore
}

// NewFileFrameCache creates a frame cache sharing the result store's layout
func NewFileFrameCache(store *FileResultStore) *FileFrameCache {
	return &FileFrameCache{store: store}
}

// Path returns the canonical location of a frame relative to the storage root,
// slash-separated so records stay valid when the root is moved
func (c *FileFrameCache) Path(sessionID string, frame domain.FrameRef) (string, error) {
	if err := domain.ValidateID("session id", sessionID); err != nil {
		return "", err
	}
	if err := domain.ValidateID("frame id", frame.FrameID); err != nil {
		return "", err
	}
	name := frame.FrameID + frameExtension(frame.RemoteLocator)
	return path.Join(sessionsDirName, sessionID, framesDirName, name), nil
}

// Read returns the cached bytes at a recorded location
func (c *FileFrameCache) Read(localPath string) ([]byte, error) {
	p := c.store.ResolvePath(localPath)
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("cached frame %s: %w", p, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read cached frame: %w", err)
	}
	return data, nil
}

// Write materializes data at the canonical path. A crash before the rename leaves
// only a hidden temp file; concurrent writers of identical bytes converge.
func (c *FileFrameCache) Write(sessionID string, frame domain.FrameRef, data []byte) (string, error) {
	localPath, err := c.Path(sessionID, frame)
	if err != nil {
		return "", err
	}
	finalPath := c.store.ResolvePath(localPath)
	dir := filepath.Dir(finalPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create frames directory: %w", err)
	}
	if err := replaceFile(finalPath, dir, frameTempPrefix, data); err != nil {
		return "", err
	}
	return localPath, nil
}

// frameExtension derives the cache file extension from the remote locator
func frameExtension(locator string) string {
	p := locator
	if u, err := url.Parse(locator); err == nil {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	if imageExtensions[ext] {
		return ext
	}
	return ".png"
}
