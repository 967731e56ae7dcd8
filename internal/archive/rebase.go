package archive

import (
	"path/filepath"
	"strings"
)

// Rebase moves path from oldRoot to newRoot. The longest run of leading path
// components shared by path and oldRoot is stripped and the remainder is
// joined onto newRoot. Components are compared whole, so "/src" never
// matches a "/srcx" prefix. An empty newRoot yields the relative remainder.
func Rebase(oldRoot, path, newRoot string) string {
	pathParts := splitPath(path)
	rootParts := splitPath(oldRoot)

	shared := 0
	for shared < len(rootParts) && shared < len(pathParts) && rootParts[shared] == pathParts[shared] {
		shared++
	}
	return filepath.Join(append([]string{newRoot}, pathParts[shared:]...)...)
}

// DestinationDir returns where an archive found under inputRoot unpacks when
// the layer writes into outputRoot: the archive's rebased parent directory
// joined with its file name minus the final extension. a/b/x.zip under
// output R lands at R/a/b/x. Archives sharing a stem in one directory, such
// as x.zip and x.rar, share that destination and their contents merge.
func DestinationDir(inputRoot, archivePath, outputRoot string) string {
	rebased := Rebase(inputRoot, archivePath, outputRoot)
	return filepath.Join(filepath.Dir(rebased), Stem(archivePath))
}

// Stem is the base name of path without its final extension, so
// "bundle.tar.gz" becomes "bundle.tar".
func Stem(path string) string {
	base := filepath.Base(path)
	if stem := strings.TrimSuffix(base, filepath.Ext(base)); stem != "" {
		return stem
	}
	return base
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	cleaned := filepath.Clean(path)
	if cleaned == "." {
		return nil
	}
	return strings.Split(cleaned, string(filepath.Separator))
}
