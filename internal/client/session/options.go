package session

import "github.com/openmined/treesync/internal/treebuilder"

type Option func(*Session)

func WithMode(mode Mode) Option {
	return func(s *Session) {
		s.mode = mode
	}
}

// WithBuilder sets the builder used by DetectLocalChanges.
func WithBuilder(builder *treebuilder.Builder) Option {
	return func(s *Session) {
		s.builder = builder
	}
}

// WithSnapshotPath persists the tree to path after every successful sync.
func WithSnapshotPath(path string) Option {
	return func(s *Session) {
		s.snapshotPath = path
	}
}

func WithRecorder(recorder Recorder) Option {
	return func(s *Session) {
		s.recorder = recorder
	}
}
