package vault

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"notesearch/internal/document"
)

const (
	markdownDir  = "markdown"
	bookmarksDir = "bookmarks"
	bookDir      = "markdown/book"
)

// ScannedFile represents a recognized source file found during scanning.
type ScannedFile struct {
	RelPath string // Relative path from content root (e.g., "markdown/book/9784003362211.md")
	Folder  string // Folder path (path components except filename, e.g., "markdown/book")
	AbsPath string
	Format  document.Format
	Kind    document.Kind
}

// DocID returns the stable document id for the file.
func (f ScannedFile) DocID() string {
	return "file:" + f.RelPath
}

// ScanAll walks the content root and returns every recognized file, sorted by path.
func (m *Manager) ScanAll(ctx context.Context) ([]ScannedFile, error) {
	var scannedFiles []ScannedFile

	err := filepath.WalkDir(m.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to access path %s: %w", p, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			// Skip editor and VCS metadata (.obsidian, .git)
			if p != m.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		relPath, err := filepath.Rel(m.root, p)
		if err != nil {
			return fmt.Errorf("failed to compute relative path for %s: %w", p, err)
		}
		relPath = filepath.ToSlash(relPath)

		format, kind, ok := classify(relPath)
		if !ok {
			return nil
		}

		folder := filepath.ToSlash(filepath.Dir(relPath))
		if folder == "." {
			folder = ""
		}

		scannedFiles = append(scannedFiles, ScannedFile{
			RelPath: relPath,
			Folder:  folder,
			AbsPath: p,
			Format:  format,
			Kind:    kind,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", m.root, err)
	}

	sort.Slice(scannedFiles, func(i, j int) bool {
		return scannedFiles[i].RelPath < scannedFiles[j].RelPath
	})
	return scannedFiles, nil
}

// ScanFile classifies a single file. path may be absolute or relative to the
// working directory but must lie under the content root.
func (m *Manager) ScanFile(path string) (ScannedFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return ScannedFile{}, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	root, err := filepath.Abs(m.root)
	if err != nil {
		return ScannedFile{}, fmt.Errorf("failed to resolve %s: %w", m.root, err)
	}
	relPath, err := filepath.Rel(root, abs)
	if err != nil || relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return ScannedFile{}, fmt.Errorf("%s is outside content root %s", path, m.root)
	}
	relPath = filepath.ToSlash(relPath)

	format, kind, ok := classify(relPath)
	if !ok {
		return ScannedFile{}, fmt.Errorf("%s is not a recognized source file", relPath)
	}

	folder := filepath.ToSlash(filepath.Dir(relPath))
	if folder == "." {
		folder = ""
	}
	return ScannedFile{RelPath: relPath, Folder: folder, AbsPath: abs, Format: format, Kind: kind}, nil
}

// classify maps a relative path to its document format and kind.
func classify(relPath string) (document.Format, document.Kind, bool) {
	dir := filepath.ToSlash(filepath.Dir(relPath))
	ext := strings.ToLower(filepath.Ext(relPath))

	switch {
	case ext == ".md" && dir == bookDir:
		return document.Structured, document.KindBooks, true
	case ext == ".md" && (dir == markdownDir || strings.HasPrefix(dir, markdownDir+"/")):
		return document.Structured, document.KindNotes, true
	case (ext == ".yaml" || ext == ".yml") && dir == bookmarksDir:
		return document.BookmarkList, document.KindArticles, true
	default:
		return 0, "", false
	}
}
