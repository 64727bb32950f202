// Package capture turns an HTML document into a PNG of one element using a
// headless browser.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/png"

	"go.uber.org/zap"

	"github.com/raushankrgupta/meal-planner/capture/base"
	"github.com/raushankrgupta/meal-planner/config"
	"github.com/raushankrgupta/meal-planner/logger"
)

// ScaleFactor is the device pixel ratio used for every capture.
const ScaleFactor = 2

// Rasterizer renders html and returns a PNG of the element matched by
// selector.
type Rasterizer interface {
	Name() string
	Rasterize(ctx context.Context, html, selector string) ([]byte, error)
}

// Chain tries each strategy in order and returns the first valid image.
type Chain struct {
	strategies []Rasterizer
}

func NewChain(strategies ...Rasterizer) *Chain {
	return &Chain{strategies: strategies}
}

// Default returns the browser chain: ChromeDP first, Selenium as fallback.
func Default() *Chain {
	return NewChain(
		base.NewChromeDP(ScaleFactor),
		base.NewSelenium(config.ChromeDriverPath, ScaleFactor),
	)
}

func (c *Chain) Name() string { return "chain" }

func (c *Chain) Rasterize(ctx context.Context, html, selector string) ([]byte, error) {
	if len(c.strategies) == 0 {
		return nil, errors.New("no capture strategies configured")
	}
	var errs []error
	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := s.Rasterize(ctx, html, selector)
		if err != nil {
			logger.Warn("Capture strategy failed", zap.String("strategy", s.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		if err := Validate(img); err != nil {
			logger.Warn("Capture strategy yielded invalid image, trying fallbacks", zap.String("strategy", s.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		logger.Info("Capture succeeded", zap.String("strategy", s.Name()), zap.Int("bytes", len(img)))
		return img, nil
	}
	return nil, fmt.Errorf("all capture strategies failed: %w", errors.Join(errs...))
}

// Close releases browser resources held by the strategies.
func (c *Chain) Close() {
	for _, s := range c.strategies {
		if cl, ok := s.(interface{ Close() }); ok {
			cl.Close()
		}
	}
}

// Validate checks that data is a non-empty PNG.
func Validate(data []byte) error {
	if len(data) == 0 {
		return errors.New("empty image")
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	if format != "png" {
		return fmt.Errorf("unexpected image format %q", format)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return errors.New("image has no area")
	}
	return nil
}
