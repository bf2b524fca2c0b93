package adapter

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"jira-video-session/internal/domain"
)

const (
	manifestJSONName = "manifest.json"
	manifestMDName   = "manifest.md"
)

// ManifestGenerator implements port.ManifestWriter.
// It writes manifest.json for automated attachment and manifest.md for manual use.
type ManifestGenerator struct {
	now func() time.Time
}

// NewManifestGenerator creates a new manifest generator
func NewManifestGenerator() *ManifestGenerator {
	return &ManifestGenerator{now: time.Now}
}

// Write stores the manifest in dir and returns the written file paths
func (g *ManifestGenerator) Write(manifest *domain.Manifest, dir string) ([]string, error) {
	// Convert to absolute path for tooling that runs elsewhere
	absDir, err := filepath.Abs(dir)
	if err != nil {
		absDir = dir
	}

	jsonData, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	jsonPath := filepath.Join(absDir, manifestJSONName)
	if err := writeManifestFile(jsonPath, append(jsonData, '\n')); err != nil {
		return nil, err
	}

	mdPath := filepath.Join(absDir, manifestMDName)
	if err := writeManifestFile(mdPath, []byte(g.Render(manifest))); err != nil {
		return nil, err
	}

	return []string{jsonPath, mdPath}, nil
}

// Render builds the markdown body of a manifest
func (g *ManifestGenerator) Render(manifest *domain.Manifest) string {
	var content strings.Builder

	content.WriteString(fmt.Sprintf("# Session %s\n\n", manifest.SessionID))

	content.WriteString("## Session\n\n")
	content.WriteString(fmt.Sprintf("- **Video**: `%s`\n", manifest.VideoSourcePath))
	content.WriteString(fmt.Sprintf("- **Status**: %s\n", manifest.Status))
	content.WriteString(fmt.Sprintf("- **Frames**: %d\n", len(manifest.Entries)))
	content.WriteString(fmt.Sprintf("- **Generated**: %s\n", g.now().Format("2006-01-02 15:04:05")))
	content.WriteString("\n---\n\n")

	if len(manifest.Entries) > 0 {
		content.WriteString("## Frames\n\n")
		for i, entry := range manifest.Entries {
			content.WriteString(fmt.Sprintf("%d. ![%s](%s)\n", i+1, entry.FrameID, entry.LocalPath))
		}
		content.WriteString("\n")
	}

	if len(manifest.Failures) > 0 {
		content.WriteString("## Missing frames\n\n")
		for _, f := range manifest.Failures {
			content.WriteString(fmt.Sprintf("- `%s`: %s\n", f.FrameID, f.Reason))
		}
		content.WriteString("\n")
	}

	content.WriteString("## Transcript\n\n")
	switch {
	case manifest.Transcription == nil:
		content.WriteString("_No transcript available._\n")
	case len(manifest.Transcription.Segments) == 0:
		content.WriteString("_No speech detected._\n")
	default:
		for _, seg := range manifest.Transcription.Segments {
			content.WriteString(fmt.Sprintf("- `[%s - %s]` %s\n", formatTimestamp(seg.StartMs), formatTimestamp(seg.EndMs), strings.TrimSpace(seg.Text)))
		}
	}

	return content.String()
}

// formatTimestamp renders milliseconds as mm:ss, or h:mm:ss past an hour
func formatTimestamp(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

func writeManifestFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := ensureDir(dir); err != nil {
		return err
	}
	if err := replaceFile(path, dir, ".manifest-*.tmp", data); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
