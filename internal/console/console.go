// Package console models an 80x25 text-mode display: a cell grid, a
// cursor, and the CSI escape-sequence subset spec §6 defines. Character
// writes are batched through microbatch.Batcher (a genuine dependency,
// _examples/joeycumines-go-utilpkg/microbatch/microbatch.go) so that a
// print_string syscall spanning many bytes coalesces into a single
// simulated VGA-memory write rather than one store per character,
// mirroring how a real text-mode console benefits from batched stores.
package console

import (
	"context"
	"sync"
	"time"

	"github.com/joeycumines/go-microbatch"
)

const (
	Cols = 80
	Rows = 25
)

// Attr is a cell's display attribute byte: bit 0x80 bright, low nibble
// foreground color, bits 4-6 (mask 0x70) background color.
type Attr uint8

const (
	AttrReset Attr = 0
	AttrBright Attr = 0x80
)

// Color indices per spec §6's mapping.
const (
	ColorBlack = iota
	ColorRed
	ColorGreen
	ColorAmber
	ColorBlue
	ColorMagenta
	ColorCyan
	ColorGray
)

// Cell is one character position on the grid.
type Cell struct {
	Ch   byte
	Attr Attr
}

// Console is an 80x25 cell grid with a cursor and a batched write path.
type Console struct {
	mu     sync.Mutex
	grid   [Rows][Cols]Cell
	row    int
	col    int
	savedR int
	savedC int
	attr   Attr

	batcher *microbatch.Batcher[byte]
}

// New returns a blank Console.
func New() *Console {
	c := &Console{}
	c.batcher = microbatch.NewBatcher(&microbatch.BatcherConfig{
		MaxSize:       256,
		FlushInterval: time.Millisecond,
	}, func(_ context.Context, bytes []byte) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		for _, b := range bytes {
			c.putRaw(b)
		}
		return nil
	})
	return c
}

// Close releases the console's batching resources.
func (c *Console) Close() error {
	return c.batcher.Close()
}

// WriteString submits s for batched display, honoring embedded CSI
// escape sequences. It blocks until every byte has been applied.
func (c *Console) WriteString(s string) error {
	var pending []*microbatch.JobResult[byte]
	flush := func() error {
		for _, r := range pending {
			if err := r.Wait(context.Background()); err != nil {
				return err
			}
		}
		pending = pending[:0]
		return nil
	}
	i := 0
	for i < len(s) {
		if s[i] == 0x1b && i+1 < len(s) && s[i+1] == '[' {
			if err := flush(); err != nil {
				return err
			}
			n := c.applyCSI(s[i:])
			if n > 0 {
				i += n
				continue
			}
		}
		r, err := c.batcher.Submit(context.Background(), s[i])
		if err != nil {
			return err
		}
		pending = append(pending, r)
		i++
	}
	return flush()
}

// putRaw writes one literal character at the cursor, advancing it and
// scrolling when it runs off the bottom row.
func (c *Console) putRaw(ch byte) {
	if ch == '\n' {
		c.row++
		c.col = 0
	} else {
		c.grid[c.row][c.col] = Cell{Ch: ch, Attr: c.attr}
		c.col++
		if c.col >= Cols {
			c.col = 0
			c.row++
		}
	}
	if c.row >= Rows {
		copy(c.grid[:Rows-1], c.grid[1:])
		c.grid[Rows-1] = [Cols]Cell{}
		c.row = Rows - 1
	}
}

// Cursor returns the current cursor position.
func (c *Console) Cursor() (row, col int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.row, c.col
}

// SetCursor moves the cursor, clamping to the grid's bounds.
func (c *Console) SetCursor(row, col int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.row = clamp(row, 0, Rows-1)
	c.col = clamp(col, 0, Cols-1)
}

// SetAttr sets the attribute byte applied to subsequently written cells.
func (c *Console) SetAttr(a Attr) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attr = a
}

// Cell returns the cell at (row, col).
func (c *Console) Cell(row, col int) Cell {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.grid[row][col]
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
