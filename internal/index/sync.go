package index

import (
	"log/slog"
	"path"

	"github.com/starford/citemark/internal/storage"
)

// Sync walks the vault and brings the file table up to date:
//   - new/changed files are upserted with their current checksum
//   - files removed from disk are deleted from the index
//
// It returns the vault-relative paths whose content changed.
func Sync(db FileIndex, store storage.Provider, logger *slog.Logger) ([]string, error) {
	metas, err := store.List("")
	if err != nil {
		return nil, err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return nil, err
	}

	var changed []string
	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}
		if checksums[m.Path] == m.Checksum {
			continue
		}
		if err := db.UpsertFile(FileRow{Path: m.Path, Name: path.Base(m.Path), Checksum: m.Checksum}); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		changed = append(changed, m.Path)
		logger.Debug("sync: indexed", slog.String("path", m.Path))
	}

	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := db.DeleteFile(p); err != nil {
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		changed = append(changed, p)
		logger.Debug("sync: removed stale", slog.String("path", p))
	}

	return changed, nil
}
