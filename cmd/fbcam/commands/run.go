package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bryanchriswhite/fbcam/internal/api"
	"github.com/bryanchriswhite/fbcam/internal/capture"
	"github.com/bryanchriswhite/fbcam/internal/config"
	"github.com/bryanchriswhite/fbcam/internal/fb"
	"github.com/bryanchriswhite/fbcam/internal/frame"
	"github.com/bryanchriswhite/fbcam/internal/input"
	"github.com/bryanchriswhite/fbcam/internal/logger"
	"github.com/bryanchriswhite/fbcam/internal/output"
	"github.com/bryanchriswhite/fbcam/internal/overlay"
	"github.com/bryanchriswhite/fbcam/internal/persist"
	"github.com/bryanchriswhite/fbcam/internal/pipeline"
	"github.com/bryanchriswhite/fbcam/internal/sidechannel"
	"github.com/bryanchriswhite/fbcam/internal/state"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Stream the camera onto the framebuffer",
	Long: `Open the camera and the framebuffer and display frames until stopped.

Press c to save a screenshot, r to start or stop a recording and q to quit.
Ctrl+C stops as well.`,
	Example: `  # Stream /dev/video0 onto /dev/fb0
  fbcam run

  # Use another camera and framebuffer
  fbcam run --camera /dev/video2 --fb /dev/fb1

  # Run without a camera, with the HTTP API on port 8080
  fbcam run --backend testpattern --port 8080

  # Start recording immediately
  fbcam run --record`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("backend", "", "capture backend (auto, v4l2, gstreamer, gstlaunch, x11, testpattern)")
	runCmd.Flags().String("camera", "", "camera device")
	runCmd.Flags().String("fb", "", "framebuffer device")
	runCmd.Flags().String("mode", "", "framebuffer access (file or mmap)")
	runCmd.Flags().Int("port", 0, "serve the HTTP API on this port")
	runCmd.Flags().Bool("record", false, "start recording immediately")

	viper.BindPFlag("camera.backend", runCmd.Flags().Lookup("backend"))
	viper.BindPFlag("camera.device", runCmd.Flags().Lookup("camera"))
	viper.BindPFlag("display.device", runCmd.Flags().Lookup("fb"))
	viper.BindPFlag("display.mode", runCmd.Flags().Lookup("mode"))
	viper.BindPFlag("server.port", runCmd.Flags().Lookup("port"))
	viper.BindPFlag("recording.enabled", runCmd.Flags().Lookup("record"))
}

// applyRunFlags overrides cfg with the flags given on the command line.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Camera.Backend = viper.GetString("camera.backend")
	}
	if flags.Changed("camera") {
		cfg.Camera.Device = viper.GetString("camera.device")
	}
	if flags.Changed("fb") {
		cfg.Display.Device = viper.GetString("display.device")
	}
	if flags.Changed("mode") {
		cfg.Display.Mode = viper.GetString("display.mode")
	}
	if flags.Changed("port") {
		cfg.Server.Enabled = true
		cfg.Server.Port = viper.GetInt("server.port")
	}
	if flags.Changed("record") {
		cfg.Recording.Enabled = viper.GetBool("recording.enabled")
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	configMgr, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := logger.WithComponent("main")
	log.Info().Str("config", configMgr.Path()).Msg("Configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully")
			cancel()
		case <-ctx.Done():
		}
	}()

	// Display
	geo, err := geometryFor(cfg.Display)
	if err != nil {
		return err
	}
	dev, err := openDevice(cfg.Display, geo)
	if err != nil {
		return err
	}
	defer dev.Close()
	writer, err := fb.NewWriter(dev, geo)
	if err != nil {
		return err
	}
	log.Info().
		Str("device", cfg.Display.Device).
		Str("mode", cfg.Display.Mode).
		Str("geometry", geo.String()).
		Msg("Framebuffer ready")

	// Camera
	src, err := capture.Open(ctx, capture.Config{
		Backend:  cfg.Camera.Backend,
		Device:   cfg.Camera.Device,
		Width:    cfg.Camera.Width,
		Height:   cfg.Camera.Height,
		FPS:      cfg.Camera.FPS,
		Pipeline: cfg.Camera.Pipeline,
	})
	if err != nil {
		return fmt.Errorf("failed to open camera: %w", err)
	}
	defer src.Stop()

	policy, err := pipeline.ParsePolicy(cfg.Camera.OnEmpty)
	if err != nil {
		return err
	}
	keymap, err := input.ParseKeymap(cfg.Input.ScreenshotKey, cfg.Input.RecordKey, cfg.Input.QuitKey)
	if err != nil {
		return err
	}

	shared := state.New()
	shared.SetRecording(cfg.Recording.Enabled)
	osFs := afero.NewOsFs()

	// Screenshots
	format, err := persist.ParseFormat(cfg.Screenshot.Format)
	if err != nil {
		return err
	}
	store, err := persist.NewImageStore(osFs, cfg.Screenshot.Dir, format, cfg.Screenshot.Quality)
	if err != nil {
		return err
	}
	worker := sidechannel.NewWorker(shared, store, cfg.Screenshot.PollInterval)

	// Recording
	fit, err := frame.ParseFit(cfg.Recording.Fit)
	if err != nil {
		return err
	}
	compositor := frame.NewCompositor(cfg.Recording.Width, cfg.Recording.Height, fit)
	if compositor.Interp, err = frame.ParseInterp(cfg.Recording.Scaler); err != nil {
		return err
	}
	stamps := overlay.NewRecordingOverlay(overlay.Options{
		Timestamp: cfg.Recording.Timestamp,
		Badge:     true,
		Label:     cfg.Recording.Label,
		FPS:       cfg.Recording.FPS,
	})
	recorder := persist.NewMJPEGRecorder(osFs, cfg.Recording.Path, cfg.Recording.Quality, stamps.Render)
	recording := sidechannel.NewRecording(shared, recorder, compositor.Compose, cfg.Recording.Buffer)

	tasks := []pipeline.Task{
		{Name: "screenshots", Run: worker.Run},
		{Name: "recording", Run: recording.Run},
	}

	// HTTP API and preview
	if cfg.Server.Enabled {
		preview := output.NewMJPEGOutput(output.Config{FPS: cfg.Server.PreviewFPS})
		pump := output.NewPump(&shared.Snapshot, preview, cfg.Server.PreviewFPS)
		server := api.NewServer(shared, geo, preview, configMgr, stamps)
		port := cfg.Server.Port
		tasks = append(tasks,
			pipeline.Task{Name: "preview", Run: pump.Run},
			pipeline.Task{Name: "api", Run: func(ctx context.Context) error {
				return server.Run(ctx, port)
			}},
		)
		log.Info().Msgf("Web UI: http://localhost:%d", port)
	}

	// Keyboard
	var keys input.Poller = input.None{}
	switch {
	case !cfg.Input.Enabled:
	case !input.IsTerminal(os.Stdin):
		log.Warn().Msg("stdin is not a terminal, keyboard input disabled")
	default:
		kb, err := input.OpenKeyboard(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to open keyboard: %w", err)
		}
		defer kb.Close()
		keys = kb
		log.Info().
			Str("screenshot", string(keymap.Screenshot)).
			Str("record", string(keymap.Record)).
			Str("quit", string(keymap.Quit)).
			Msg("Keyboard ready")
	}

	loop := &pipeline.Loop{
		Source:   src,
		Writer:   writer,
		Shared:   shared,
		Input:    keys,
		Keymap:   keymap,
		Recorder: recording,
		Policy:   policy,
		Center:   cfg.Display.Center,
	}

	err = pipeline.Run(ctx, loop, tasks...)

	st := shared.Stats()
	log.Info().
		Uint64("displayed", st.FramesDisplayed).
		Uint64("skipped", st.FramesSkipped).
		Uint64("screenshots", st.Screenshots).
		Uint64("recorded", st.FramesRecorded).
		Msg("Stopped")
	return err
}
