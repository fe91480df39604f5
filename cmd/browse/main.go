package main

import (
	"context"
	"flag"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"

	browserbridge "github.com/embedkit/browser-bridge"
	"github.com/embedkit/browser-bridge/bridge"
	"github.com/embedkit/browser-bridge/browser"
	"github.com/embedkit/browser-bridge/engine"
	"github.com/embedkit/browser-bridge/enginesim"
	"github.com/embedkit/browser-bridge/frame"
)

func main() {
	var (
		url         = flag.String("url", "https://example.com", "Initial URL to load")
		width       = flag.Int("width", 800, "Viewport width in pixels")
		height      = flag.Int("height", 600, "Viewport height in pixels")
		cache       = flag.String("cache", "", "Engine cache directory (default: temp dir)")
		pump        = flag.String("pump", "dedicated", "Pump policy: dedicated or coop")
		frames      = flag.Int("frames", 1, "Frames to wait for before capturing")
		out         = flag.String("o", "frame.bmp", "Output image (.bmp or .png)")
		gpu         = flag.Bool("gpu", false, "Enable GPU acceleration")
		debugPort   = flag.Int("debug-port", 0, "Remote debugging port (0 = off)")
		timeout     = flag.Duration("timeout", 10*time.Second, "Capture timeout")
		verbose     = flag.Bool("v", false, "Verbose logging")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	cfg, err := buildConfig(*cache, *pump, *gpu, *debugPort, *verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(cfg, *url, *width, *height); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := capture(cfg, *url, *width, *height, *frames, *out, *timeout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func buildConfig(cache, pump string, gpu bool, debugPort int, verbose bool) (engine.Config, error) {
	cfg := engine.Config{
		CachePath:           cache,
		GPUAcceleration:     gpu,
		RemoteDebuggingPort: debugPort,
	}
	if cfg.CachePath == "" {
		cfg.CachePath = filepath.Join(os.TempDir(), "browse-cache")
	}

	switch pump {
	case "dedicated":
		cfg.PumpPolicy = engine.PumpDedicated
	case "coop", "cooperative":
		cfg.PumpPolicy = engine.PumpCooperative
	default:
		return cfg, fmt.Errorf("unknown pump policy %q (want dedicated or coop)", pump)
	}

	if verbose {
		log, err := zap.NewDevelopment()
		if err != nil {
			return cfg, err
		}
		cfg.Logger = log
	}
	return cfg, nil
}

// capture opens one page off-screen, waits for it to render, and writes the
// latest frame to disk.
func capture(cfg engine.Config, url string, width, height, frames int, out string, timeout time.Duration) error {
	b, err := bridge.New(enginesim.New(enginesim.Options{}), cfg)
	if err != nil {
		return err
	}

	v, err := b.OpenBrowser(browser.Options{
		Viewport: browserbridge.Size{Width: width, Height: height},
		URL:      url,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Loading %s at %dx%d...\n", url, width, height)

	deadline := time.Now().Add(timeout)
	var buf *frame.Buffer
	for {
		if time.Now().After(deadline) {
			return fmt.Errorf("no frame within %v", timeout)
		}
		// Poll pumps the engine under the cooperative policy.
		got, ok := v.Poll()
		if ok {
			if buf != nil {
				buf.Release()
			}
			buf = got
			if v.State() == browser.StateReady && buf.Seq() >= uint64(frames) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	defer buf.Release()

	if err := writeImage(buf, out); err != nil {
		return err
	}
	fmt.Printf("Wrote %s (frame %d, %dx%d)\n", out, buf.Seq(), buf.Size().Width, buf.Size().Height)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go keepPumping(ctx, b)
	if err := b.CloseAll(ctx); err != nil {
		return err
	}
	return b.Shutdown(ctx)
}

// keepPumping services the cooperative pump while teardown waits on
// engine confirmations. A no-op under the dedicated policy.
func keepPumping(ctx context.Context, b *bridge.Bridge) {
	t := time.NewTicker(5 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			b.PumpStep()
		}
	}
}

func writeImage(buf *frame.Buffer, out string) error {
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(out)) {
	case ".png":
		return png.Encode(f, buf.RGBA())
	case ".bmp":
		return buf.EncodeBMP(f)
	default:
		return fmt.Errorf("unsupported output format %q (want .bmp or .png)", filepath.Ext(out))
	}
}
