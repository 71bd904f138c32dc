package main

import (
	"github.com/bryanchriswhite/fbcam/cmd/fbcam/commands"

	// Capture backends register themselves with the router.
	_ "github.com/bryanchriswhite/fbcam/internal/capture/gstlaunch"
	_ "github.com/bryanchriswhite/fbcam/internal/capture/gstreamer"
	_ "github.com/bryanchriswhite/fbcam/internal/capture/v4l2"
	_ "github.com/bryanchriswhite/fbcam/internal/capture/x11"
)

func main() {
	commands.Execute()
}
