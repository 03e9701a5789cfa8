package services

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ArtifactWatcher reloads the knowledge base when its persisted artifact
// changes on disk, so a rebuilt index can be picked up without a restart.
// Searches keep hitting the old state until a reload succeeds.
type ArtifactWatcher struct {
	kb     *KnowledgeBase
	dir    string
	logger *zap.Logger
}

// NewArtifactWatcher watches the knowledge-base artifact directory.
func NewArtifactWatcher(kb *KnowledgeBase, dir string, logger *zap.Logger) *ArtifactWatcher {
	return &ArtifactWatcher{
		kb:     kb,
		dir:    dir,
		logger: logger,
	}
}

// Watch blocks until the context is cancelled, reloading the knowledge base
// whenever one of the artifact files is written.
func (w *ArtifactWatcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return NewKnowledgeBaseError("failed to create artifact watcher", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return NewKnowledgeBaseError("failed to watch artifact directory", err)
	}
	w.logger.Info("watching knowledge-base artifact", zap.String("dir", w.dir))

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isArtifactFile(event.Name) {
				continue
			}
			// Editors and the build step write files one by one; reloading on
			// the index file keeps us from loading a half-written artifact.
			if filepath.Base(event.Name) != indexFile {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.logger.Info("artifact changed, reloading knowledge base", zap.String("file", event.Name))
				if err := w.kb.Load(w.dir); err != nil {
					w.logger.Error("failed to reload knowledge base, keeping previous state", zap.Error(err))
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("artifact watcher error", zap.Error(err))

		case <-ctx.Done():
			w.logger.Info("artifact watcher shutting down")
			return nil
		}
	}
}

func isArtifactFile(path string) bool {
	switch filepath.Base(path) {
	case documentsFile, documentIDsFile, embeddingsFile, indexFile:
		return true
	default:
		return false
	}
}
