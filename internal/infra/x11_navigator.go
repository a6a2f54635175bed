package infra

import (
	"fmt"

	"github.com/jezek/xgb/xproto"

	"github.com/eliteGoblin/focusd/overlay_mon/internal/domain"
)

// X11Navigator goes "home" by asking the window manager to show the desktop.
type X11Navigator struct {
	display string
}

// NewX11Navigator creates a navigator for display ("" uses $DISPLAY).
func NewX11Navigator(display string) *X11Navigator {
	return &X11Navigator{display: display}
}

// GoHome sends _NET_SHOWING_DESKTOP=1 to the root window.
func (n *X11Navigator) GoHome() error {
	c, err := dialX11(n.display, atomShowDesktop)
	if err != nil {
		return err
	}
	defer c.Close()

	ev := showDesktopEvent(c.root, c.atoms[atomShowDesktop])
	mask := uint32(xproto.EventMaskSubstructureNotify | xproto.EventMaskSubstructureRedirect)
	if err := xproto.SendEventChecked(c.conn, false, c.root, mask, string(ev.Bytes())).Check(); err != nil {
		return fmt.Errorf("failed to request show desktop: %w", err)
	}
	return nil
}

func showDesktopEvent(root xproto.Window, atom xproto.Atom) xproto.ClientMessageEvent {
	return xproto.ClientMessageEvent{
		Format: 32,
		Window: root,
		Type:   atom,
		Data:   xproto.ClientMessageDataUnionData32New([]uint32{1, 0, 0, 0, 0}),
	}
}

var _ domain.Navigator = (*X11Navigator)(nil)
