package assets

import (
	_ "embed"

	"fyne.io/fyne/v2"
)

//go:embed labdesk.png
var iconPNG []byte

// Icon returns the application icon used for windows and the system tray.
func Icon() fyne.Resource {
	if len(iconPNG) == 0 {
		return nil
	}
	return fyne.NewStaticResource("labdesk.png", iconPNG)
}
