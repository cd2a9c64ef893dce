// Package loader provides statemachine.ConfigSource implementations that
// fetch machine documents from files, embedded filesystems or HTTP endpoints.
//
// A source is consulted every time a machine initializes, so pointing a
// machine at a remote document and calling Initialize again picks up any
// change to that document.
//
//	src := loader.HTTP("https://config.example.com/machines/review.yaml")
//	m, err := statemachine.NewMachine(
//		statemachine.WithConfig(base),
//		statemachine.WithSource(src),
//	)
package loader

import (
	"context"
	"io/fs"

	"github.com/amp-labs/fsm/merge"
	"github.com/amp-labs/fsm/statemachine"
)

// FileSource reads a machine document from the local filesystem.
type FileSource struct {
	path string
}

var _ statemachine.ConfigSource = (*FileSource)(nil)

// File returns a source reading the YAML or JSON document at path.
func File(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Fetch(_ context.Context) (statemachine.RawConfig, error) {
	return statemachine.LoadConfig(s.path)
}

// FSSource reads a machine document from an fs.FS such as an embed.FS.
type FSSource struct {
	fsys fs.FS
	path string
}

var _ statemachine.ConfigSource = (*FSSource)(nil)

// FS returns a source reading path from fsys.
func FS(fsys fs.FS, path string) *FSSource {
	return &FSSource{fsys: fsys, path: path}
}

func (s *FSSource) Fetch(_ context.Context) (statemachine.RawConfig, error) {
	return statemachine.LoadConfigFromFS(s.fsys, s.path)
}

// StaticSource always returns the same fragment.
type StaticSource struct {
	raw statemachine.RawConfig
}

var _ statemachine.ConfigSource = (*StaticSource)(nil)

// Static returns a source for a fragment built in code.
func Static(raw statemachine.RawConfig) *StaticSource {
	return &StaticSource{raw: merge.Clone(raw)}
}

func (s *StaticSource) Fetch(_ context.Context) (statemachine.RawConfig, error) {
	return merge.Clone(s.raw), nil
}
