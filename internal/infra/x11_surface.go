package infra

import (
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/jezek/xgb/xproto"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/overlay_mon/internal/domain"
)

// putImageHeader is the fixed part of a PutImage request in bytes.
const putImageHeader = 24

// X11Surface is a fullscreen override-redirect window that sits above
// every other window until closed.
type X11Surface struct {
	display  string
	composer *FrameComposer
	logger   *zap.Logger
	taps     chan time.Time

	mu   sync.Mutex
	conn *x11Conn
	win  xproto.Window
	gc   xproto.Gcontext
	size domain.Size
	last *image.RGBA // redrawn on Expose
}

// NewX11Surface creates a closed surface on display ("" uses $DISPLAY).
func NewX11Surface(display string, composer *FrameComposer, logger *zap.Logger) *X11Surface {
	return &X11Surface{
		display:  display,
		composer: composer,
		logger:   logger,
		taps:     make(chan time.Time, 8),
	}
}

// Open creates and maps the window covering the default screen.
func (s *X11Surface) Open() (domain.Size, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return s.size, nil
	}

	c, err := dialX11(s.display)
	if err != nil {
		return domain.Size{}, err
	}

	win, err := xproto.NewWindowId(c.conn)
	if err != nil {
		c.Close()
		return domain.Size{}, fmt.Errorf("failed to allocate window id: %w", err)
	}
	screen := c.screen
	err = xproto.CreateWindowChecked(c.conn, screen.RootDepth, win, c.root,
		0, 0, screen.WidthInPixels, screen.HeightInPixels, 0,
		xproto.WindowClassInputOutput, screen.RootVisual,
		xproto.CwBackPixel|xproto.CwOverrideRedirect|xproto.CwEventMask,
		[]uint32{
			screen.BlackPixel,
			1,
			xproto.EventMaskExposure | xproto.EventMaskButtonPress,
		}).Check()
	if err != nil {
		c.Close()
		return domain.Size{}, fmt.Errorf("failed to create overlay window: %w", err)
	}

	gc, err := xproto.NewGcontextId(c.conn)
	if err != nil {
		c.Close()
		return domain.Size{}, fmt.Errorf("failed to allocate graphics context: %w", err)
	}
	if err := xproto.CreateGCChecked(c.conn, gc, xproto.Drawable(win), 0, nil).Check(); err != nil {
		c.Close()
		return domain.Size{}, fmt.Errorf("failed to create graphics context: %w", err)
	}

	if err := xproto.MapWindowChecked(c.conn, win).Check(); err != nil {
		c.Close()
		return domain.Size{}, fmt.Errorf("failed to map overlay window: %w", err)
	}

	s.conn, s.win, s.gc = c, win, gc
	s.size = domain.Size{Width: int(screen.WidthInPixels), Height: int(screen.HeightInPixels)}
	go s.readEvents(c)

	s.logger.Debug("overlay window mapped",
		zap.Int("width", s.size.Width),
		zap.Int("height", s.size.Height))
	return s.size, nil
}

// MeasureText returns the size of the text box the composer draws.
func (s *X11Surface) MeasureText(text string) domain.Size {
	return s.composer.MeasureText(text)
}

// Render composes frame and uploads it to the window.
func (s *X11Surface) Render(frame domain.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return fmt.Errorf("overlay surface is not open")
	}
	s.last = s.composer.Compose(s.size, frame)
	return s.put(s.last)
}

// put uploads img in bands of rows that fit in one request.
func (s *X11Surface) put(img *image.RGBA) error {
	b := img.Bounds()
	if b.Empty() {
		return nil
	}
	rowBytes := b.Dx() * 4
	rows := (s.conn.maxRequestBytes() - putImageHeader) / rowBytes
	if rows < 1 {
		return fmt.Errorf("screen row of %d bytes exceeds request limit", rowBytes)
	}

	for y := b.Min.Y; y < b.Max.Y; y += rows {
		end := min(y+rows, b.Max.Y)
		xproto.PutImage(s.conn.conn, xproto.ImageFormatZPixmap, xproto.Drawable(s.win), s.gc,
			uint16(b.Dx()), uint16(end-y), 0, int16(y), 0, s.conn.screen.RootDepth,
			ToBGRX(img, y, end))
	}
	// Round trip so upload errors surface here rather than in the event loop.
	if _, err := xproto.GetInputFocus(s.conn.conn).Reply(); err != nil {
		return fmt.Errorf("failed to upload overlay frame: %w", err)
	}
	return nil
}

// Taps delivers a timestamp per mouse button press on the window.
func (s *X11Surface) Taps() <-chan time.Time {
	return s.taps
}

// Close destroys the window and drops the connection.
func (s *X11Surface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	xproto.FreeGC(s.conn.conn, s.gc)
	xproto.DestroyWindow(s.conn.conn, s.win)
	s.conn.Close()
	s.conn, s.last = nil, nil
	s.logger.Debug("overlay window destroyed")
	return nil
}

func (s *X11Surface) readEvents(c *x11Conn) {
	for {
		ev, xerr := c.conn.WaitForEvent()
		if ev == nil && xerr == nil {
			return
		}
		if xerr != nil {
			s.logger.Debug("X error", zap.String("error", xerr.Error()))
			continue
		}

		switch e := ev.(type) {
		case xproto.ButtonPressEvent:
			select {
			case s.taps <- time.Now():
			default:
			}
		case xproto.ExposeEvent:
			if e.Count == 0 {
				s.redraw(c)
			}
		}
	}
}

func (s *X11Surface) redraw(c *x11Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != c || s.last == nil {
		return
	}
	if err := s.put(s.last); err != nil {
		s.logger.Warn("failed to redraw overlay", zap.Error(err))
	}
}

var _ domain.OverlaySurface = (*X11Surface)(nil)
