// Package loader reads simulated events from disk.
//
// An input file holds event bundles: the signal sub-event of one event and
// the pileup sub-events that came with it. Three formats are understood,
// picked by file extension:
//   - .json: one bundle, or an array of bundles
//   - .jsonl, .ndjson: one bundle per line
//   - .yaml, .yml: one bundle, or a sequence of bundles
//
// A collection left out of the file (tracks, vertices, a hit collection)
// stays nil and is reported as missing input when the event is processed.
// An explicitly empty collection is a valid empty collection.
package loader

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/orneryd/calotruth/pkg/truth"
)

// ErrUnsupportedFormat is returned for files with an unknown extension.
var ErrUnsupportedFormat = errors.New("unsupported input format")

// maxLineSize bounds one JSON Lines record.
const maxLineSize = 64 << 20

// Bundle is one event: its signal sub-event and any pileup sub-events.
type Bundle struct {
	Signal *truth.Event   `json:"signal" yaml:"signal"`
	Pileup []*truth.Event `json:"pileup,omitempty" yaml:"pileup,omitempty"`

	// Source is the file the bundle was read from.
	Source string `json:"-" yaml:"-"`
}

// EventID returns the id of the signal sub-event, or 0 without one.
func (b Bundle) EventID() uint64 {
	if b.Signal == nil {
		return 0
	}
	return b.Signal.ID
}

// LoadFile reads every bundle in a file.
func LoadFile(path string) ([]Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var bundles []Bundle
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		bundles, err = decodeJSON(data)
	case ".jsonl", ".ndjson":
		bundles, err = decodeJSONLines(data)
	case ".yaml", ".yml":
		bundles, err = decodeYAML(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	for i := range bundles {
		bundles[i].Source = path
	}
	return bundles, nil
}

func decodeJSON(data []byte) ([]Bundle, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var bundles []Bundle
		if err := json.Unmarshal(trimmed, &bundles); err != nil {
			return nil, err
		}
		return bundles, nil
	}
	var b Bundle
	if err := json.Unmarshal(trimmed, &b); err != nil {
		return nil, err
	}
	return []Bundle{b}, nil
}

func decodeJSONLines(data []byte) ([]Bundle, error) {
	var bundles []Bundle
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var b Bundle
		if err := json.Unmarshal(text, &b); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bundles = append(bundles, b)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return bundles, nil
}

func decodeYAML(data []byte) ([]Bundle, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if len(node.Content) == 0 {
		return nil, nil
	}
	root := node.Content[0]
	if root.Kind == yaml.SequenceNode {
		var bundles []Bundle
		if err := root.Decode(&bundles); err != nil {
			return nil, err
		}
		return bundles, nil
	}
	var b Bundle
	if err := root.Decode(&b); err != nil {
		return nil, err
	}
	return []Bundle{b}, nil
}

// LoadAll reads files concurrently, at most workers at a time, and returns
// their bundles in the order of paths. The first error cancels the rest.
func LoadAll(ctx context.Context, paths []string, workers int) ([]Bundle, error) {
	if workers <= 0 {
		workers = 1
	}
	perFile := make([][]Bundle, len(paths))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			bundles, err := LoadFile(path)
			if err != nil {
				return err
			}
			perFile[i] = bundles
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Bundle
	for _, bundles := range perFile {
		all = append(all, bundles...)
	}
	return all, nil
}
