//go:build !windows

package enumerate

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/fruitsalade/folderview/internal/models"
)

// attributes maps Unix conventions to item state: dot-files are hidden and
// files without any write permission carry the lock badge.
func attributes(path string, info fs.FileInfo) (models.StateFlags, models.Overlay) {
	var state models.StateFlags
	if strings.HasPrefix(filepath.Base(path), ".") {
		state |= models.StateHidden
	}
	overlay := models.OverlayNone
	if info.Mode().IsRegular() && info.Mode().Perm()&0o222 == 0 {
		overlay = models.OverlayLocked
	}
	return state, overlay
}
