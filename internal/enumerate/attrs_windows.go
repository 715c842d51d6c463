//go:build windows

package enumerate

import (
	"io/fs"

	"golang.org/x/sys/windows"

	"github.com/fruitsalade/folderview/internal/models"
)

const fileAttributeRecallOnDataAccess = 0x00400000

// attributes reads the Windows file attributes of path.
func attributes(path string, _ fs.FileInfo) (models.StateFlags, models.Overlay) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, models.OverlayNone
	}
	attrs, err := windows.GetFileAttributes(p)
	if err != nil {
		return 0, models.OverlayNone
	}

	var state models.StateFlags
	if attrs&windows.FILE_ATTRIBUTE_HIDDEN != 0 {
		state |= models.StateHidden
	}
	if attrs&windows.FILE_ATTRIBUTE_SYSTEM != 0 {
		state |= models.StateSystem
	}

	overlay := models.OverlayNone
	switch {
	case attrs&windows.FILE_ATTRIBUTE_REPARSE_POINT != 0:
		overlay = models.OverlayLink
	case attrs&(windows.FILE_ATTRIBUTE_OFFLINE|fileAttributeRecallOnDataAccess) != 0:
		overlay = models.OverlayCloud
	case attrs&windows.FILE_ATTRIBUTE_READONLY != 0 && attrs&windows.FILE_ATTRIBUTE_DIRECTORY == 0:
		overlay = models.OverlayLocked
	}
	return state, overlay
}
