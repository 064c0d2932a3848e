package main

import (
	"fmt"
	"os"
	"runtime"

	forward "github.com/gekko3d/forward"
	"github.com/gekko3d/forward/logging"
	"github.com/urfave/cli"
)

func init() {
	// GLFW and the surface must stay on the main thread.
	runtime.LockOSThread()
}

func main() {
	app := cli.NewApp()
	app.Name = "forward-demo"
	app.Usage = "draw a demo scene with the forward renderer"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
	}
	sceneFlags := []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "renderer config YAML; omitted keys keep their defaults",
		},
		cli.IntFlag{
			Name:  "width",
			Usage: "override the configured width",
		},
		cli.IntFlag{
			Name:  "height",
			Usage: "override the configured height",
		},
		cli.StringFlag{
			Name:  "accent",
			Value: "steelblue",
			Usage: "CSS color name of the spinning box",
		},
		cli.BoolFlag{
			Name:  "shadows",
			Usage: "enable shadow maps",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "render",
			Usage: "render frames on a recording device and print statistics",
			Description: `
Render the demo scene on a device that records every call instead of
drawing. Prints the renderer counters of the last frame and the compiled
programs.`,
			Flags: append([]cli.Flag{
				cli.IntFlag{
					Name:  "frames, n",
					Value: 3,
					Usage: "number of frames to render",
				},
				cli.BoolFlag{
					Name:  "dump",
					Usage: "dump the renderer config and counters",
				},
				cli.BoolFlag{
					Name:  "stream",
					Usage: "print the device calls of the last frame",
				},
			}, sceneFlags...),
			Action: renderHeadless,
		},
		{
			Name:  "window",
			Usage: "open a window and render the demo scene with WebGPU",
			Flags: append([]cli.Flag{
				cli.StringFlag{
					Name:  "title",
					Value: "forward",
					Usage: "window title",
				},
			}, sceneFlags...),
			Action: renderWindow,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// setupLogging returns a silent logger unless -v or -vv is given; -vv
// enables debug output.
func setupLogging(ctx *cli.Context) logging.Logger {
	if ctx.GlobalBool("vv") {
		return logging.NewDefaultLogger("forward", true)
	}
	if ctx.GlobalBool("v") {
		return logging.NewDefaultLogger("forward", false)
	}
	return logging.NewNopLogger()
}

// loadConfig reads --config, applies the flag overrides and validates.
func loadConfig(ctx *cli.Context) (forward.Config, error) {
	cfg := forward.DefaultConfig()
	if path := ctx.String("config"); path != "" {
		var err error
		if cfg, err = forward.LoadConfig(path); err != nil {
			return forward.Config{}, err
		}
	}
	if w := ctx.Int("width"); w > 0 {
		cfg.Width = w
	}
	if h := ctx.Int("height"); h > 0 {
		cfg.Height = h
	}
	if ctx.Bool("shadows") {
		cfg.ShadowMap.Enabled = true
	}
	return cfg, cfg.Validate()
}
