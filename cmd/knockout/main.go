package main

import (
	"context"
	"fmt"
	"image"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/codegangsta/cli"
	"github.com/kevin-cantwell/knockout"
	"github.com/kevin-cantwell/knockout/internal/config"
	"github.com/kevin-cantwell/knockout/internal/logger"
	"github.com/nfnt/resize"
	"go.uber.org/zap"
)

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Version = "0.1.0"
	app.Name = "knockout"
	app.Usage = "Converts animated GIFs to animated WebPs with the white background made transparent."
	app.UsageText = "1) knockout [options] input.gif\n" +
		/*      */ "   2) knockout [options] a.gif b.gif c.gif\n" +
		/*      */ "   3) knockout inspect [--preview] output.webp"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "output,o",
			Usage: "`PATH` of the WebP to write. Defaults to the input path with a .webp extension. Only valid with a single input.",
		},
		cli.IntFlag{
			Name:  "threshold,t",
			Usage: "`THRESHOLD` = 240 knocks out pixels whose red, green and blue are all above 240. Must be between 0 and 255.",
			Value: 240,
		},
		cli.Float64Flag{
			Name:  "quality,q",
			Usage: "`QUALITY` of the lossy encoding, 0 (smallest) to 100 (best).",
			Value: 80,
		},
		cli.BoolFlag{
			Name:  "lossless",
			Usage: "Encodes frames losslessly. QUALITY then trades speed for size.",
		},
		cli.IntFlag{
			Name:  "duration,d",
			Usage: "`MILLIS` each frame is shown. Source frame delays are ignored.",
			Value: 30,
		},
		cli.IntFlag{
			Name:  "loop",
			Usage: "`COUNT` of plays, 0 loops forever.",
			Value: 0,
		},
		cli.StringFlag{
			Name:  "max-size",
			Usage: "`WIDTH,HEIGHT` = 320,240 shrinks frames to fit 320x240. 0 leaves a side unbounded.",
		},
		cli.BoolFlag{
			Name:  "preserve-alpha",
			Usage: "Keeps pixels that are already transparent in the source transparent.",
		},
		cli.IntFlag{
			Name:  "jobs,j",
			Usage: "`N` inputs converted at the same time.",
			Value: 4,
		},
		cli.StringFlag{
			Name:   "config,c",
			Usage:  "YAML `FILE` with default settings. KNOCKOUT_* environment variables override it.",
			EnvVar: "KNOCKOUT_CONFIG",
		},
		cli.BoolFlag{
			Name:  "progress,p",
			Usage: "Shows a live frame counter instead of log lines.",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "`LEVEL` of logging: debug, info, warn or error.",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:      "inspect",
			Usage:     "Describes an animated WebP.",
			ArgsUsage: "file.webp",
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:  "preview,p",
					Usage: "Draws what is left opaque in every frame, scaled to the terminal.",
				},
			},
			Action: inspect,
		},
	}
	app.Action = convert
	return app
}

func convert(c *cli.Context) error {
	if c.NArg() == 0 {
		cli.ShowAppHelp(c)
		return cli.NewExitError("missing input file", 1)
	}
	if c.IsSet("output") && c.NArg() > 1 {
		return cli.NewExitError("--output can only be used with a single input", 1)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer log.Sync()

	var observer knockout.Observer = knockout.LogObserver{Logger: log}
	if c.Bool("progress") {
		observer = knockout.NewProgress(os.Stderr, nil)
	}
	conv := knockout.NewConverter(
		knockout.WithFrameDuration(cfg.Duration()),
		knockout.WithLoopCount(cfg.LoopCount),
		knockout.WithQuality(cfg.Quality),
		knockout.WithLossless(cfg.Lossless),
		knockout.WithMaxSize(cfg.MaxWidth, cfg.MaxHeight),
		knockout.WithPreserveAlpha(cfg.PreserveAlpha),
		knockout.WithObserver(observer),
		knockout.WithLogger(log),
	)

	jobs := knockout.Jobs(c.Args()...)
	if c.IsSet("output") {
		jobs[0].Destination = c.String("output")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Debug("starting",
		zap.Int("inputs", len(jobs)),
		zap.Int("threshold", cfg.Threshold),
		zap.Int("jobs", cfg.Jobs),
	)
	results := conv.ConvertAll(ctx, jobs, cfg.Threshold, cfg.Jobs)

	var failed int
	for _, r := range results {
		if !r.OK() {
			failed++
		}
	}
	if failed > 0 {
		return cli.NewExitError(fmt.Sprintf("%d of %d conversions failed", failed, len(results)), 1)
	}
	return nil
}

// loadConfig layers explicitly set flags over the config file and
// environment.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("threshold") {
		cfg.Threshold = c.Int("threshold")
	}
	if c.IsSet("quality") {
		cfg.Quality = float32(c.Float64("quality"))
	}
	if c.IsSet("lossless") {
		cfg.Lossless = c.Bool("lossless")
	}
	if c.IsSet("duration") {
		cfg.DurationMs = c.Int("duration")
	}
	if c.IsSet("loop") {
		cfg.LoopCount = c.Int("loop")
	}
	if c.IsSet("max-size") {
		cfg.MaxWidth, cfg.MaxHeight, err = parseSize(c.String("max-size"))
		if err != nil {
			return nil, err
		}
	}
	if c.IsSet("preserve-alpha") {
		cfg.PreserveAlpha = c.Bool("preserve-alpha")
	}
	if c.IsSet("jobs") {
		cfg.Jobs = c.Int("jobs")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	return cfg, cfg.Validate()
}

func parseSize(s string) (width, height int, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("max-size must be WIDTH,HEIGHT, got %q", s)
	}
	width, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("max-size width: %w", err)
	}
	height, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("max-size height: %w", err)
	}
	if width < 0 || height < 0 {
		return 0, 0, fmt.Errorf("max-size %q must not be negative", s)
	}
	return width, height, nil
}

func inspect(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return cli.NewExitError("missing WebP file", 1)
	}
	f, err := os.Open(path)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer f.Close()

	anim, err := knockout.ReadAnimation(f)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("%s: %v", path, err), 1)
	}

	loop := "forever"
	if anim.LoopCount > 0 {
		loop = fmt.Sprintf("%d times", anim.LoopCount)
	}
	fmt.Printf("%s: %dx%d, %d frames, %v per loop, plays %s, alpha %t\n",
		path, anim.Width, anim.Height, len(anim.Frames), anim.Duration(), loop, anim.Alpha)

	cols, lines, err := getTerminalSize()
	if err != nil {
		cols, lines = 80, 25 // Small, but a pretty standard default
	}
	for i, frame := range anim.Frames {
		fmt.Printf("frame %d: %dx%d at %d,%d for %v, alpha %t\n",
			i, frame.Width, frame.Height, frame.X, frame.Y, frame.Duration, frame.HasAlpha())
		if !c.Bool("preview") {
			continue
		}
		img, err := frame.Decode()
		if err != nil {
			return cli.NewExitError(fmt.Sprintf("frame %d: %v", i, err), 1)
		}
		if err := knockout.PreviewMask(os.Stdout, fit(img, cols, lines)); err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
	}
	return nil
}

// fit scales img down so its braille preview fits cols x lines.
// Each braille symbol is 2 pixels wide and 4 pixels high.
func fit(img image.Image, cols, lines int) image.Image {
	if lines < 2 {
		lines = 2
	}
	width, height := uint(cols*2), uint((lines-1)*4)
	return resize.Thumbnail(width, height, img, resize.NearestNeighbor)
}
