package main

import (
	"time"

	forward "github.com/gekko3d/forward"
	"github.com/gekko3d/forward/rt/gpu/webgpu"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

func renderWindow(ctx *cli.Context) error {
	log := setupLogging(ctx)
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	if err := glfw.Init(); err != nil {
		return errors.Wrap(err, "glfw init")
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(cfg.Width, cfg.Height, ctx.String("title"), nil, nil)
	if err != nil {
		return errors.Wrap(err, "create window")
	}
	defer window.Destroy()

	cfg.Width, cfg.Height = window.GetFramebufferSize()
	dev, err := webgpu.Open(window, webgpu.Options{
		Width:              cfg.Width,
		Height:             cfg.Height,
		PremultipliedAlpha: cfg.PremultipliedAlpha,
		Log:                log,
	})
	if err != nil {
		return err
	}
	defer dev.Release()

	d, err := newDemo(float32(cfg.Width)/float32(cfg.Height), ctx.String("accent"))
	if err != nil {
		return err
	}
	r, err := forward.NewRendererBuilder(dev).UseConfig(cfg).UseLogger(log).Build()
	if err != nil {
		return err
	}
	defer r.Dispose()

	if err := r.Compile(d.scene, d.camera); err != nil {
		log.Warnf("precompile: %v", err)
	}

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		// Minimized windows report a zero size.
		if width == 0 || height == 0 {
			return
		}
		if err := dev.Resize(width, height); err != nil {
			log.Errorf("resize: %v", err)
			return
		}
		r.SetSize(width, height)
		d.resize(width, height)
	})
	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
		}
		if key == glfw.KeyS && action == glfw.Press {
			on := !r.Config().ShadowMap.Enabled
			r.SetShadowMapEnabled(on)
			log.Infof("shadows %v", on)
		}
	})

	last := time.Now()
	for !window.ShouldClose() {
		glfw.PollEvents()
		now := time.Now()
		d.step(float32(now.Sub(last).Seconds()))
		last = now
		if err := r.Render(d.scene, d.camera); err != nil {
			return err
		}
	}
	info := r.Info()
	log.Infof("frame %d: %d draws, %d programs", info.Frame, info.DrawCalls, info.Programs)
	return nil
}
