//go:build cgo

package hal

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"sparksched/internal/buildinfo"
	"sparksched/kernel"
)

const (
	windowWidth  = 640
	windowHeight = 400
	rowHeight    = 16
)

// RunWindow opens a monitor window that steps h's clock every frame and
// draws the snapshot returned by view. It blocks until the window closes or
// ctx ends.
func RunWindow(ctx context.Context, h *Host, view func() *kernel.Snapshot) error {
	g := &monitor{ctx: ctx, h: h, view: view}
	ebiten.SetWindowTitle("sparksched (" + buildinfo.Short() + ")")
	ebiten.SetWindowSize(windowWidth, windowHeight)
	ebiten.SetTPS(60)
	err := ebiten.RunGame(g)
	if errors.Is(err, ebiten.Termination) {
		return ctx.Err()
	}
	return err
}

type monitor struct {
	ctx  context.Context
	h    *Host
	view func() *kernel.Snapshot
}

func (g *monitor) Update() error {
	if g.ctx.Err() != nil {
		return ebiten.Termination
	}
	g.h.clock.Step()
	return nil
}

var stateColors = map[kernel.ThreadState]color.RGBA{
	kernel.StateReady:     {0x40, 0x80, 0xff, 0xff},
	kernel.StateRunning:   {0x40, 0xd0, 0x60, 0xff},
	kernel.StateSleeping:  {0x90, 0x90, 0x90, 0xff},
	kernel.StateBlocked:   {0xe0, 0x60, 0x40, 0xff},
	kernel.StateSuspended: {0xc0, 0xa0, 0x40, 0xff},
	kernel.StateExited:    {0x50, 0x50, 0x50, 0xff},
}

func (g *monitor) Draw(screen *ebiten.Image) {
	s := g.view()
	if s == nil {
		ebitenutil.DebugPrint(screen, "booting")
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "t=%v ticks=%d switches=%d postponed=%d\n", s.Now, s.Ticks, s.Stats.Switches, s.Stats.Postponed)
	fmt.Fprintf(&b, "run=%d sleeping=%d exiting=%d processes=%d\n", len(s.RunQueue), len(s.Sleeping), len(s.Exiting), s.Processes)
	ebitenutil.DebugPrint(screen, b.String())

	y := 3 * rowHeight
	for _, t := range s.Threads {
		if y+rowHeight > windowHeight {
			break
		}
		clr, ok := stateColors[t.State]
		if !ok {
			clr = color.RGBA{0xff, 0xff, 0xff, 0xff}
		}
		vector.DrawFilledRect(screen, 4, float32(y+3), 10, 10, clr, false)
		line := fmt.Sprintf("%3d %-12s %-9s %-6s %6d %v", t.TID, t.Name, t.State, t.Priority, t.Dispatches, t.RunTime)
		ebitenutil.DebugPrintAt(screen, line, 20, y)
		y += rowHeight
	}
}

func (g *monitor) Layout(outsideWidth, outsideHeight int) (int, int) {
	return windowWidth, windowHeight
}
