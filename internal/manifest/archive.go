package manifest

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"clipforge/internal/digest"
	"clipforge/internal/logging"
	"clipforge/internal/services"
)

// Archive bundles the manifest and every referenced file that still
// exists into a zip in the output directory. Files deleted since they
// were recorded are skipped with a warning. Returns the archive path.
func (m *Manager) Archive(archiveName string) (string, error) {
	if archiveName == "" {
		archiveName = fmt.Sprintf("artifacts_%s_%d.zip", m.document.ProcessID, m.now().Unix())
	}
	archivePath := filepath.Join(m.outputDir, archiveName)

	out, err := os.Create(archivePath)
	if err != nil {
		return "", services.Wrap(services.ErrStage, "manifest", "archive", "create archive", err)
	}
	writer := zip.NewWriter(out)

	added := map[string]bool{}
	addFile := func(path string) {
		name := filepath.Base(path)
		if added[name] {
			return
		}
		if err := m.addToArchive(writer, path, name); err != nil {
			m.logger.Warn("skipping archive member", logging.String("path", path), logging.Error(err))
			return
		}
		added[name] = true
	}

	entries := m.Entries()
	addFile(m.manifestPath)
	for _, entry := range entries {
		for _, value := range entry.Info {
			path, ok := value.(string)
			if !ok {
				continue
			}
			stat, err := os.Stat(path)
			if err != nil || !stat.Mode().IsRegular() {
				continue
			}
			addFile(path)
		}
	}

	if err := writer.Close(); err != nil {
		out.Close()
		return "", services.Wrap(services.ErrStage, "manifest", "archive", "finalize archive", err)
	}
	if err := out.Close(); err != nil {
		return "", services.Wrap(services.ErrStage, "manifest", "archive", "close archive", err)
	}

	fd, err := digest.File(archivePath)
	if err != nil {
		return "", err
	}
	if err := m.Record(map[string]any{
		"stage":          "artifacts_archive",
		"archive_path":   archivePath,
		"archive_hash":   fd.Hash,
		"archive_size":   fd.Size,
		"artifact_count": len(entries),
	}); err != nil {
		return "", err
	}
	m.logger.Info("artifacts archived", logging.String("path", archivePath))
	return archivePath, nil
}

func (m *Manager) addToArchive(writer *zip.Writer, path, name string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	member, err := writer.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(member, in)
	return err
}
