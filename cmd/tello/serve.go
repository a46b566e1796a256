package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/teslashibe/go-tello/internal/config"
	"github.com/teslashibe/go-tello/internal/log"
	"github.com/teslashibe/go-tello/pkg/drone"
	"github.com/teslashibe/go-tello/pkg/mjpeg"
	"github.com/teslashibe/go-tello/pkg/snapshot"
	"github.com/teslashibe/go-tello/pkg/tello"
	"github.com/teslashibe/go-tello/pkg/video"
	"github.com/teslashibe/go-tello/pkg/web"
)

func newServeCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Connect to the drone and serve video and commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return runServe(ctx, cfg, log.L())
		},
	}

	flags := cmd.Flags()
	flags.String("backend", config.BackendSDK, "drone backend: sdk (text protocol) or gobot (binary protocol)")
	flags.String("addr", config.DefaultDroneAddr, "drone command address (sdk backend)")
	flags.String("port", config.DefaultWebPort, "web server port")
	flags.Int("distance", drone.DefaultDistance, "cm moved by each directional command")
	flags.String("encoder", mjpeg.EncoderStd, "JPEG encoder: std or gocv")
	flags.Int("quality", mjpeg.DefaultQuality, "JPEG quality 1-100")
	flags.Float64("max-fps", 0, "cap the stream frame rate (0 = unlimited)")
	flags.Int("width", 0, "downscale the stream to this width (0 = native)")
	flags.String("ffmpeg", "ffmpeg", "ffmpeg binary used to decode H.264")
	flags.String("snapshot-dir", "", "directory for pictures saved through /api/picture")

	for key, flag := range map[string]string{
		"drone.backend":  "backend",
		"drone.addr":     "addr",
		"drone.distance": "distance",
		"web.port":       "port",
		"stream.encoder": "encoder",
		"stream.quality": "quality",
		"stream.max_fps": "max-fps",
		"stream.width":   "width",
		"video.ffmpeg":   "ffmpeg",
		"snapshot.dir":   "snapshot-dir",
	} {
		v.BindPFlag(key, flags.Lookup(flag))
	}
	return cmd
}

// newSDK builds the configured drone backend.
func newSDK(cfg config.Config, logger *slog.Logger) drone.SDK {
	vc := video.Config{FFmpeg: cfg.Video.FFmpeg, Width: cfg.Video.Width, Height: cfg.Video.Height}

	if cfg.Drone.Backend == config.BackendGobot {
		gc := tello.DefaultGobotConfig()
		gc.Port = cfg.Drone.GobotPort
		gc.Video = vc
		gc.Logger = logger
		return tello.NewGobotClient(gc)
	}

	return tello.NewClient(tello.Config{
		Addr:      cfg.Drone.Addr,
		LocalPort: cfg.Drone.LocalPort,
		StatePort: cfg.Drone.StatePort,
		VideoPort: cfg.Drone.VideoPort,
		Timeout:   cfg.Drone.Timeout,
		Video:     vc,
		Logger:    logger,
	})
}

func runServe(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	enc, err := mjpeg.NewEncoder(cfg.Stream.Encoder)
	if err != nil {
		return err
	}

	ctrl := drone.NewController(newSDK(cfg, logger),
		drone.WithLogger(logger),
		drone.WithDistance(cfg.Drone.Distance),
		drone.WithStreamOptions(mjpeg.Options{
			Encoder: enc,
			Quality: cfg.Stream.Quality,
			MaxFPS:  cfg.Stream.MaxFPS,
			Width:   cfg.Stream.Width,
		}),
	)

	logger.Info("starting", "backend", cfg.Drone.Backend, "addr", cfg.Drone.Addr, "encoder", cfg.Stream.Encoder)
	if err := ctrl.Start(ctx); err != nil {
		return fmt.Errorf("start drone: %w", err)
	}
	defer ctrl.Close()

	srv := web.NewServer(ctrl, web.Config{
		Port:     cfg.Web.Port,
		Pictures: snapshot.New(cfg.Snapshot.Dir),
		Logger:   logger,
	})
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("web server: %w", err)
	}

	logger.Info("shutting down")
	return nil
}
