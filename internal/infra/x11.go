package infra

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

const (
	atomActiveWindow = "_NET_ACTIVE_WINDOW"
	atomWMPID        = "_NET_WM_PID"
	atomWMClass      = "WM_CLASS"
	atomShowDesktop  = "_NET_SHOWING_DESKTOP"
)

// x11Conn is an X connection bound to the default screen with a set of
// interned atoms.
type x11Conn struct {
	conn   *xgb.Conn
	screen *xproto.ScreenInfo
	root   xproto.Window
	atoms  map[string]xproto.Atom

	closeOnce sync.Once
}

// dialX11 connects to display ("" uses $DISPLAY) and interns atomNames.
func dialX11(display string, atomNames ...string) (*x11Conn, error) {
	conn, err := xgb.NewConnDisplay(display)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	screen := xproto.Setup(conn).DefaultScreen(conn)
	c := &x11Conn{
		conn:   conn,
		screen: screen,
		root:   screen.Root,
		atoms:  make(map[string]xproto.Atom, len(atomNames)),
	}

	for _, name := range atomNames {
		reply, err := xproto.InternAtom(conn, false, uint16(len(name)), name).Reply()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to intern atom %s: %w", name, err)
		}
		c.atoms[name] = reply.Atom
	}
	return c, nil
}

// Close is safe to call more than once and from any goroutine.
func (c *x11Conn) Close() {
	c.closeOnce.Do(c.conn.Close)
}

func (c *x11Conn) maxRequestBytes() int {
	return int(xproto.Setup(c.conn).MaximumRequestLength) * 4
}

func (c *x11Conn) getProperty(window xproto.Window, atom, atomType xproto.Atom, length uint32) ([]byte, error) {
	reply, err := xproto.GetProperty(c.conn, false, window, atom, atomType, 0, length).Reply()
	if err != nil {
		return nil, err
	}
	return reply.Value, nil
}

// activeWindow returns the window named by _NET_ACTIVE_WINDOW, 0 if none.
func (c *x11Conn) activeWindow() xproto.Window {
	data, err := c.getProperty(c.root, c.atoms[atomActiveWindow], xproto.AtomWindow, 1)
	if err != nil || len(data) < 4 {
		return 0
	}
	return xproto.Window(binary.LittleEndian.Uint32(data))
}

func (c *x11Conn) windowClass(window xproto.Window) (instance, class string) {
	data, err := c.getProperty(window, c.atoms[atomWMClass], xproto.AtomString, 256)
	if err != nil {
		return "", ""
	}
	return parseWMClass(data)
}

func (c *x11Conn) windowPID(window xproto.Window) int {
	data, err := c.getProperty(window, c.atoms[atomWMPID], xproto.AtomCardinal, 1)
	if err != nil || len(data) < 4 {
		return 0
	}
	return int(binary.LittleEndian.Uint32(data))
}

// parseWMClass splits a WM_CLASS value: two NUL-terminated strings,
// instance then class.
func parseWMClass(data []byte) (instance, class string) {
	if len(data) == 0 {
		return "", ""
	}
	parts := strings.Split(strings.TrimRight(string(data), "\x00"), "\x00")
	instance = parts[0]
	if len(parts) >= 2 {
		class = parts[1]
	}
	return instance, class
}
