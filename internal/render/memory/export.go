// internal/render/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hazardmap/mapservice/pkg/core"
)

// SessionExport is the JSON written when a session ends.
type SessionExport struct {
	SessionID string         `json:"sessionId"`
	StartedAt string         `json:"startedAt"`
	Basemap   string         `json:"basemap,omitempty"`
	Viewport  *core.Viewport `json:"viewport,omitempty"`
	Markers   []core.Marker  `json:"markers"`
	Layers    []string       `json:"layers"`
	Calls     []Call         `json:"calls"`
}

// exportJSON writes the session to OutputDir. Caller holds mu.
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	name := strings.ReplaceAll(b.sessionID, " ", "_")
	name = strings.ReplaceAll(name, ":", "_")
	if name == "" {
		name = "session"
	}
	timestamp := b.started.Format("20060102_150405")

	var filename string
	if b.cfg.CompressOutput {
		filename = fmt.Sprintf("%s_%s.json.gz", name, timestamp)
	} else {
		filename = fmt.Sprintf("%s_%s.json", name, timestamp)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	if b.cfg.CompressOutput {
		err = writeGzipJSON(outputPath, export)
	} else {
		err = writeJSON(outputPath, export)
	}
	if err != nil {
		return err
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport() SessionExport {
	export := SessionExport{
		SessionID: b.sessionID,
		StartedAt: b.started.UTC().Format("2006-01-02T15:04:05Z07:00"),
		Basemap:   b.basemap,
		Viewport:  b.viewport,
		Markers:   make([]core.Marker, 0, len(b.order)),
		Layers:    make([]string, 0, len(b.layers)),
		Calls:     b.calls,
	}
	if export.Calls == nil {
		export.Calls = []Call{}
	}

	for _, id := range b.order {
		export.Markers = append(export.Markers, b.markers[id])
	}
	for name := range b.layers {
		export.Layers = append(export.Layers, name)
	}
	slices.Sort(export.Layers)

	return export
}

func writeJSON(path string, data SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(data)
}

func writeGzipJSON(path string, data SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	defer gzWriter.Close()

	return json.NewEncoder(gzWriter).Encode(data)
}
