package main

import (
	"fmt"
	"os"

	forward "github.com/gekko3d/forward"
	"github.com/gekko3d/forward/rt/gpu"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

func renderHeadless(ctx *cli.Context) error {
	log := setupLogging(ctx)
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	frames := ctx.Int("frames")
	if frames < 1 {
		return errors.Errorf("frames must be positive, got %d", frames)
	}

	d, err := newDemo(float32(cfg.Width)/float32(cfg.Height), ctx.String("accent"))
	if err != nil {
		return err
	}

	rec := gpu.NewRecorder()
	r, err := forward.NewRendererBuilder(rec).UseConfig(cfg).UseLogger(log).Build()
	if err != nil {
		return err
	}
	defer r.Dispose()

	for i := 0; i < frames; i++ {
		if i == frames-1 {
			rec.Reset()
		}
		d.step(0.1)
		if err := r.Render(d.scene, d.camera); err != nil {
			return errors.Wrapf(err, "frame %d", i)
		}
	}
	log.Infof("rendered %d frames, %d programs, %d geometries, %d textures on the device",
		frames, rec.Programs(), rec.Geometries(), rec.Textures())

	if err := writeInfo(os.Stdout, r.Info()); err != nil {
		return err
	}
	if err := writePrograms(os.Stdout, r); err != nil {
		return err
	}
	if ctx.Bool("dump") {
		dumper.Fdump(os.Stdout, r.Config(), r.Info())
	}
	if ctx.Bool("stream") {
		fmt.Print(rec.Stream())
	}
	return nil
}
