package console

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriteStringPlacesCharacters(t *testing.T) {
	c := New()
	defer c.Close()

	require.NoError(t, c.WriteString("hi"))
	require.Eventually(t, func() bool {
		return c.Cell(0, 0).Ch == 'h' && c.Cell(0, 1).Ch == 'i'
	}, time.Second, time.Millisecond)
}

func TestCursorMovementCSI(t *testing.T) {
	c := New()
	defer c.Close()

	require.NoError(t, c.WriteString("\x1b[5;10H"))
	row, col := c.Cursor()
	require.Equal(t, 4, row)
	require.Equal(t, 9, col)
}

func TestEraseToEOL(t *testing.T) {
	c := New()
	defer c.Close()

	require.NoError(t, c.WriteString("hello"))
	require.Eventually(t, func() bool { return c.Cell(0, 4).Ch == 'o' }, time.Second, time.Millisecond)

	c.SetCursor(0, 2)
	require.NoError(t, c.WriteString("\x1b[K"))
	require.Eventually(t, func() bool { return c.Cell(0, 2).Ch == 0 }, time.Second, time.Millisecond)
	require.Equal(t, byte('h'), c.Cell(0, 0).Ch)
}

func TestClearScreen(t *testing.T) {
	c := New()
	defer c.Close()

	require.NoError(t, c.WriteString("x"))
	require.NoError(t, c.WriteString("\x1b[2J"))
	require.Eventually(t, func() bool {
		row, col := c.Cursor()
		return row == 0 && col == 0 && c.Cell(0, 0).Ch == 0
	}, time.Second, time.Millisecond)
}

func TestAttrParsing(t *testing.T) {
	c := New()
	defer c.Close()

	require.NoError(t, c.WriteString("\x1b[1;31m"))
	require.NoError(t, c.WriteString("x"))
	require.Eventually(t, func() bool {
		a := c.Cell(0, 0).Attr
		return a&AttrBright != 0 && a&0x0f == ColorRed
	}, time.Second, time.Millisecond)
}
