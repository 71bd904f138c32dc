package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show framebuffer geometry",
	Long:  `Query the framebuffer once and print its geometry. Nothing is written.`,
	Example: `  # Show the configured framebuffer
  fbcam info

  # Show another device as JSON
  fbcam info --fb /dev/fb1 --json`,
	RunE: runInfo,
}

var infoJSON bool

func init() {
	rootCmd.AddCommand(infoCmd)

	infoCmd.Flags().String("fb", "", "framebuffer device")
	infoCmd.Flags().BoolVar(&infoJSON, "json", false, "print JSON")
}

func runInfo(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if dev, _ := cmd.Flags().GetString("fb"); dev != "" {
		cfg.Display.Device = dev
		cfg.Display.Geometry.BitsPerPixel = 0
	}

	geo, err := geometryFor(cfg.Display)
	if err != nil {
		return err
	}
	layout, _ := geo.Layout()

	if infoJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(map[string]any{
			"device":   cfg.Display.Device,
			"geometry": geo,
			"layout":   layout.String(),
			"stride":   geo.Stride(),
			"size":     geo.Size(),
		})
	}

	fmt.Printf("Device:   %s\n", cfg.Display.Device)
	fmt.Printf("Geometry: %s\n", geo)
	fmt.Printf("Layout:   %s\n", layout)
	fmt.Printf("Stride:   %d bytes\n", geo.Stride())
	fmt.Printf("Size:     %d bytes\n", geo.Size())
	return nil
}
