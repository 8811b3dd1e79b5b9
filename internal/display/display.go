// Package display checks that the X display being captured is reachable.
package display

import (
	"context"
	"fmt"
	"time"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
)

// DefaultTimeout bounds a single check.
const DefaultTimeout = 3 * time.Second

// ScreenInfo describes the default screen of an X display.
type ScreenInfo struct {
	Display   string `json:"display" example:":10.0" doc:"X display name"`
	Reachable bool   `json:"reachable" doc:"Whether the X server accepted a connection"`
	Width     int    `json:"width,omitempty" example:"1920" doc:"Root window width in pixels"`
	Height    int    `json:"height,omitempty" example:"1080" doc:"Root window height in pixels"`
	Depth     int    `json:"depth,omitempty" example:"24" doc:"Root window depth"`
	Vendor    string `json:"vendor,omitempty" example:"The X.Org Foundation" doc:"X server vendor"`
	Error     string `json:"error,omitempty" doc:"Connection error"`
}

// Check connects to name (e.g. ":10.0") and reads the default screen.
// The returned ScreenInfo is filled in even on error.
func Check(ctx context.Context, name string) (ScreenInfo, error) {
	info := ScreenInfo{Display: name}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	type dialResult struct {
		conn *xgb.Conn
		err  error
	}
	ch := make(chan dialResult, 1)
	go func() {
		conn, err := xgb.NewConnDisplay(name)
		ch <- dialResult{conn, err}
	}()

	var res dialResult
	select {
	case res = <-ch:
	case <-ctx.Done():
		// Close the connection if the dial completes after we gave up.
		go func() {
			if r := <-ch; r.conn != nil {
				r.conn.Close()
			}
		}()
		err := fmt.Errorf("connect to display %s: %w", name, ctx.Err())
		info.Error = err.Error()
		return info, err
	}

	if res.err != nil {
		err := fmt.Errorf("connect to display %s: %w", name, res.err)
		info.Error = err.Error()
		return info, err
	}
	defer res.conn.Close()

	setup := xproto.Setup(res.conn)
	screen := setup.DefaultScreen(res.conn)

	info.Reachable = true
	info.Width = int(screen.WidthInPixels)
	info.Height = int(screen.HeightInPixels)
	info.Depth = int(screen.RootDepth)
	info.Vendor = setup.Vendor
	return info, nil
}
