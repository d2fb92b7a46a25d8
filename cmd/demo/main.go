// Command demo renders the scene described by assets/scene.yaml: lit
// textured meshes, stencil outlines, sorted transparency, a skybox, a
// post-process pass and a text overlay.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"render-demo/core"
	"render-demo/core/window"
	"render-demo/internal/opengl/native"
	assetio "render-demo/io"
	"render-demo/scene"
	"render-demo/shader"
	"render-demo/text"
)

var programNames = []string{"lighting", "outline", "skybox", "screen", "text"}

func main() {
	if err := run(); err != nil {
		slog.Error("demo failed", "err", err)
		os.Exit(1)
	}
}

type flags struct {
	config string
	layout string
	maxFPS int
	effect int
	watch  bool
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.config, "config", "config.toml", "configuration file")
	flag.StringVar(&f.layout, "layout", "", "scene layout, overrides assets.layout")
	flag.IntVar(&f.maxFPS, "max-fps", -1, "frame cap, 0 for uncapped; overrides render.max_fps")
	flag.IntVar(&f.effect, "effect", -1, "initial post effect 0-5; overrides render.post_effect")
	flag.BoolVar(&f.watch, "watch", false, "reload shaders when their files change")
	flag.Parse()
	return f
}

func loadConfig(f flags) (core.Config, error) {
	cfg, err := core.LoadConfig(f.config)
	explicit := false
	flag.Visit(func(fl *flag.Flag) { explicit = explicit || fl.Name == "config" })
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		cfg, err = core.DefaultConfig(), nil
	}
	if err != nil {
		return cfg, err
	}
	if f.layout != "" {
		cfg.Assets.Layout = f.layout
	}
	if f.maxFPS >= 0 {
		cfg.Render.MaxFPS = f.maxFPS
	}
	if f.effect >= 0 {
		cfg.Render.PostEffect = f.effect
	}
	cfg.Assets.WatchShaders = cfg.Assets.WatchShaders || f.watch
	return cfg, cfg.Validate()
}

func sources(all map[string]shader.Source) scene.Sources {
	return scene.Sources{
		Lighting: all["lighting"],
		Outline:  all["outline"],
		Skybox:   all["skybox"],
		Screen:   all["screen"],
	}
}

func run() error {
	f := parseFlags()
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}
	level, _ := cfg.Log.SlogLevel()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Disk reads and decoding overlap with window and context creation.
	type loaded struct {
		layout  assetio.Layout
		assets  *assets
		sources map[string]shader.Source
		err     error
	}
	loadDone := make(chan loaded, 1)
	go func() {
		var l loaded
		defer func() { loadDone <- l }()
		if l.sources, l.err = assetio.ReadShaders(cfg.Assets.Path(cfg.Assets.Shaders), programNames...); l.err != nil {
			return
		}
		if l.layout, l.err = assetio.LoadLayout(cfg.Assets.Path(cfg.Assets.Layout)); l.err != nil {
			return
		}
		l.assets, l.err = loadAssets(ctx, l.layout)
	}()

	inputs := core.NewInputs()
	win, err := window.New(cfg.Window, inputs)
	if err != nil {
		return err
	}
	defer win.Destroy()

	dev, err := native.New(log)
	if err != nil {
		return err
	}

	start := time.Now()
	l := <-loadDone
	if l.err != nil {
		return fmt.Errorf("load assets: %w", l.err)
	}
	log.Info("assets loaded", "entities", len(l.layout.Entities), "models", len(l.assets.models),
		"images", len(l.assets.images), "took", time.Since(start))

	width, height := win.GetFramebufferSize()
	cam := scene.NewCamera(l.layout.Camera.Position.Vec3(), l.layout.Camera.Target.Vec3(), win.Aspect())
	cam.ApplyConfig(cfg.Camera)

	header := shader.Header(cfg.Render.GLSLProfile)
	sc, err := scene.New(dev, scene.Options{
		Header:       header,
		Sources:      sources(l.sources),
		Width:        width,
		Height:       height,
		Camera:       cam,
		PostProcess:  cfg.Render.PostProcess,
		OutlineScale: cfg.Render.OutlineScale,
		OutlineColor: core.Color{R: 0.04, G: 0.28, B: 0.26, A: 1}.Vec3(),
		ClearColor:   cfg.Render.ClearColor,
		Logger:       log,
	})
	if err != nil {
		return err
	}
	defer sc.Release()

	if err := populate(dev, sc, cam, l.layout, l.assets); err != nil {
		return err
	}

	shaper := text.NewShaper(1024, 1024)
	if err := registerFonts(shaper, l.assets); err != nil {
		return err
	}
	textProgram, err := shader.NewProgram(dev, header+"\n", l.sources["text"])
	if err != nil {
		return err
	}
	overlay, err := text.NewRenderer(dev, textProgram, shaper)
	if err != nil {
		textProgram.Delete()
		return err
	}
	sc.Overlays = append(sc.Overlays, overlay)
	defer func() { textProgram.Delete() }()

	win.OnResize(func(w, h int) {
		if err := sc.Resize(w, h); err != nil {
			log.Error("resize failed", "width", w, "height", h, "err", err)
			win.Close()
		}
	})

	var changes <-chan map[string]shader.Source
	if cfg.Assets.WatchShaders {
		sw, err := assetio.NewShaderWatcher(cfg.Assets.Path(cfg.Assets.Shaders), programNames, log)
		if err != nil {
			return err
		}
		go func() {
			if err := sw.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn("shader watcher stopped", "err", err)
			}
		}()
		changes = sw.Changes()
	}
	reload := func(all map[string]shader.Source) {
		if err := sc.ReloadPrograms(sources(all)); err != nil {
			return
		}
		p, err := shader.NewProgram(dev, header+"\n", all["text"])
		if err != nil {
			log.Warn("text program kept", "err", err)
			return
		}
		textProgram.Delete()
		textProgram = p
		overlay.SetProgram(p)
		log.Info("shaders reloaded")
	}

	loop := &loop{
		win:      win,
		inputs:   inputs,
		scene:    sc,
		camera:   cam,
		overlay:  overlay,
		labels:   labels(l.layout),
		hud:      newHUD(),
		effect:   scene.Effect(cfg.Render.PostEffect),
		interval: cfg.Render.DrawInterval(),
		log:      log,
	}
	loop.flashlight = l.layout.Lights.Flashlight != nil
	loop.run(changes, reload, func() {
		all, err := assetio.ReadShaders(cfg.Assets.Path(cfg.Assets.Shaders), programNames...)
		if err != nil {
			log.Warn("shader reload skipped", "err", err)
			return
		}
		reload(all)
	})
	return nil
}

type loop struct {
	win      *window.Window
	inputs   *core.Inputs
	scene    *scene.Scene
	camera   *scene.Camera
	overlay  *text.Renderer
	labels   []text.Section
	hud      *hud
	effect   scene.Effect
	interval time.Duration
	log      *slog.Logger

	flashlight bool
}

// untilDraw is how long the loop may block for input before the next
// draw is due. Zero means poll.
func untilDraw(now, lastDraw time.Time, interval time.Duration) time.Duration {
	if interval <= 0 || lastDraw.IsZero() {
		return 0
	}
	return max(lastDraw.Add(interval).Sub(now), 0)
}

// run polls and updates every iteration and draws when interval has
// passed since the previous draw.
func (lp *loop) run(changes <-chan map[string]shader.Source, reload func(map[string]shader.Source), reloadFromDisk func()) {
	start := time.Now()
	last, lastDraw := start, time.Time{}
	frames, fps, fpsSince := 0, 0, start

	for !lp.win.ShouldClose() {
		lp.win.WaitEvents(untilDraw(time.Now(), lastDraw, lp.interval))
		now := time.Now()
		dt := float32(now.Sub(last).Seconds())
		last = now

		in := lp.inputs
		if in.JustPressed(core.KeyEscape) {
			lp.win.Close()
			continue
		}
		if in.JustPressed(core.KeyTab) {
			lp.effect = lp.effect.Next()
			lp.log.Info("post effect", "effect", lp.effect)
		}
		if in.JustPressed(core.KeyF) {
			lp.flashlight = !lp.flashlight
			lp.scene.SetFlashlight(lp.flashlight)
		}
		if in.JustPressed(core.KeyO) {
			if e := lp.scene.Pick(scene.CrosshairRay(lp.camera)); e != nil {
				e.Outlined = !e.Outlined
				lp.log.Info("outline toggled", "entity", e.Name, "outlined", e.Outlined)
			}
		}
		if in.JustPressed(core.KeyR) {
			reloadFromDisk()
		}
		select {
		case all := <-changes:
			reload(all)
		default:
		}

		lp.camera.Update(dt, in)
		lp.scene.Update(float32(now.Sub(start).Seconds()), lp.camera)

		if !lastDraw.IsZero() && now.Sub(lastDraw) < lp.interval {
			continue
		}
		lastDraw = now

		frames++
		if since := now.Sub(fpsSince); since >= time.Second {
			fps, frames, fpsSince = frames, 0, now
			lp.log.Debug("frame rate", "fps", fps, "position", lp.camera.Position)
		}
		_, height := lp.scene.Size()
		lp.hud.clear()
		lp.hud.addLine("%d fps", fps)
		lp.hud.addLine("effect %s (tab)", lp.effect)
		lp.hud.addLine("flashlight %s (f)", map[bool]string{true: "on", false: "off"}[lp.flashlight])
		lp.hud.addLine("o outline  r reload shaders  esc quit")
		lp.overlay.Sections = append(append(lp.overlay.Sections[:0], lp.labels...), lp.hud.section(height))

		lp.scene.Draw(scene.FrameState{Camera: lp.camera, Effect: lp.effect})
		lp.win.SwapBuffers()
	}
}
