// Package overlay draws the blocking overlay and handles the tap-to-close
// gesture.
package overlay

import (
	"context"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/overlay_mon/internal/domain"
)

// ImageSource resolves an image path to a decoded image, nil when unusable.
type ImageSource interface {
	Get(path string) image.Image
}

// PresenterConfig holds overlay presenter configuration.
type PresenterConfig struct {
	TapsToClose      int           // 0 disables tap-to-close
	TapTimeout       time.Duration // Countdown after each tap
	HintBottomMargin int           // Pixels between the hint and the bottom edge
}

// DefaultPresenterConfig returns default presenter configuration.
func DefaultPresenterConfig() PresenterConfig {
	return PresenterConfig{
		TapsToClose:      3,
		TapTimeout:       time.Second,
		HintBottomMargin: 48,
	}
}

// HintText returns the tap-to-close hint for n taps.
func HintText(n int) string {
	return fmt.Sprintf("Tap %d times to close app", n)
}

// Presenter owns the overlay surface. Every surface call, the tap counter
// and the tap countdown live on the goroutine running Run.
type Presenter struct {
	config    PresenterConfig
	surface   domain.OverlaySurface
	images    ImageSource
	navigator domain.Navigator
	logger    *zap.Logger

	taps      *TapCounter
	tapTimer  *time.Timer
	shown     bool
	ruleKey   string
	onDismiss func(ruleKey string)
}

// NewPresenter creates a presenter.
func NewPresenter(
	config PresenterConfig,
	surface domain.OverlaySurface,
	images ImageSource,
	navigator domain.Navigator,
	logger *zap.Logger,
) *Presenter {
	return &Presenter{
		config:    config,
		surface:   surface,
		images:    images,
		navigator: navigator,
		logger:    logger,
		taps:      NewTapCounter(config.TapsToClose, config.TapTimeout),
	}
}

// OnUserDismiss registers fn to be called with the rule key after the user
// closes the overlay with the tap gesture. fn runs on the presenter
// goroutine and must not block.
func (p *Presenter) OnUserDismiss(fn func(ruleKey string)) {
	p.onDismiss = fn
}

// Run processes intents until ctx is done or intents is closed.
// The surface is closed on return.
func (p *Presenter) Run(ctx context.Context, intents <-chan domain.OverlayIntent) error {
	defer p.dismiss()

	for {
		var countdown <-chan time.Time
		if p.tapTimer != nil {
			countdown = p.tapTimer.C
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case intent, ok := <-intents:
			if !ok {
				return nil
			}
			p.handle(intent)

		case at := <-p.surface.Taps():
			p.handleTap(at)

		case at := <-countdown:
			p.tapTimer = nil
			if n := p.taps.Count(); p.taps.Expire(at) {
				p.logger.Debug("tap countdown expired", zap.Int("taps", n))
			}
		}
	}
}

// Shown reports whether the overlay is on screen.
func (p *Presenter) Shown() bool {
	return p.shown
}

func (p *Presenter) handle(intent domain.OverlayIntent) {
	switch intent.Kind {
	case domain.IntentShow:
		p.present(intent.RuleKey, intent.Presentation)
	case domain.IntentHide:
		p.dismiss()
	default:
		p.logger.Warn("ignoring unknown overlay intent", zap.Int("kind", int(intent.Kind)))
	}
}

// present opens the surface if needed and draws pres. Replacing an
// existing presentation restarts the tap gesture.
func (p *Presenter) present(ruleKey string, pres domain.Presentation) {
	size, err := p.surface.Open()
	if err != nil {
		p.logger.Error("failed to open overlay surface", zap.Error(err))
		return
	}

	p.stopCountdown()
	p.taps.Reset()

	frame := p.buildFrame(size, pres)
	if err := p.surface.Render(frame); err != nil {
		p.logger.Error("failed to render overlay", zap.Error(err))
	}

	p.shown = true
	p.ruleKey = ruleKey
	p.logger.Info("overlay shown",
		zap.String("rule", ruleKey),
		zap.String("image", pres.ImagePath),
		zap.Bool("image_loaded", frame.Image != nil))
}

func (p *Presenter) buildFrame(size domain.Size, pres domain.Presentation) domain.Frame {
	frame := domain.Frame{Text: pres.Text}

	if img := p.images.Get(pres.ImagePath); img != nil {
		frame.Image = img
		frame.ImageRect = ImageRect(img.Bounds().Size(), size,
			pres.ImageScale, pres.ImageOffsetX, pres.ImageOffsetY)
	}

	// Text is measured after the surface reports its size.
	textSize := p.surface.MeasureText(pres.Text)
	frame.TextRect = TextRect(size, textSize, pres.TextX, pres.TextY)

	if p.taps.Enabled() {
		frame.Hint = HintText(p.taps.Threshold())
		frame.HintOrigin = HintOrigin(size, p.surface.MeasureText(frame.Hint), p.config.HintBottomMargin)
	}
	return frame
}

func (p *Presenter) handleTap(at time.Time) {
	if !p.shown || !p.taps.Enabled() {
		return
	}

	if !p.taps.Tap(at) {
		p.stopCountdown()
		p.tapTimer = time.NewTimer(p.config.TapTimeout)
		return
	}

	ruleKey := p.ruleKey
	p.logger.Info("overlay closed by user", zap.String("rule", ruleKey))
	if err := p.navigator.GoHome(); err != nil {
		p.logger.Warn("failed to navigate home", zap.Error(err))
	}
	p.dismiss()
	if p.onDismiss != nil {
		p.onDismiss(ruleKey)
	}
}

// dismiss removes the overlay. Dismissing while hidden is a no-op.
func (p *Presenter) dismiss() {
	p.stopCountdown()
	p.taps.Reset()
	if !p.shown {
		return
	}
	if err := p.surface.Close(); err != nil {
		p.logger.Warn("failed to close overlay surface", zap.Error(err))
	}
	p.shown = false
	p.logger.Info("overlay hidden", zap.String("rule", p.ruleKey))
	p.ruleKey = ""
}

func (p *Presenter) stopCountdown() {
	if p.tapTimer != nil {
		p.tapTimer.Stop()
		p.tapTimer = nil
	}
}
