package entity

import (
	"fmt"

	"github.com/rocketscienceinc/connect4-backend/internal/apperror"
)

const (
	NumRow    = 6
	NumCol    = 7
	WinLength = 4
)

// Color - content of a single board cell, serialized as "", "R" or "Y".
type Color string

const (
	Empty  Color = ""
	Red    Color = "R"
	Yellow Color = "Y"
)

// Board - grid stored [row][col], [0][0] is the bottom left cell.
type Board [NumRow][NumCol]Color

// axes - one direction per line through a cell; the opposite ray is the negation.
var axes = [4][2]int{
	{1, 0},  // vertical
	{0, 1},  // horizontal
	{1, 1},  // diagonal
	{1, -1}, // anti-diagonal
}

// FindDropRow - returns the lowest empty row of the column, ok is false when the column is full.
func (that *Board) FindDropRow(column int) (int, bool, error) {
	if column < 0 || column >= NumCol {
		return 0, false, fmt.Errorf("%w: %d", apperror.ErrInvalidColumn, column)
	}

	for row := 0; row < NumRow; row++ {
		if that[row][column] == Empty {
			return row, true, nil
		}
	}

	return 0, false, nil
}

// ApplyMove - writes the cell. Callers validate the row with FindDropRow first.
func (that *Board) ApplyMove(row, column int, color Color) {
	that[row][column] = color
}

// DetectWin - checks the four lines through the last placed cell and returns the winning color or Empty.
func (that *Board) DetectWin(row, column int) Color {
	color := that[row][column]
	if color == Empty {
		return Empty
	}

	for _, axis := range axes {
		count := that.countDir(row, column, axis[0], axis[1]) + that.countDir(row, column, -axis[0], -axis[1]) + 1
		if count >= WinLength {
			return color
		}
	}

	return Empty
}

// countDir - counts contiguous cells of the placed color outward from (row, column), not including it.
func (that *Board) countDir(row, column, rowDir, colDir int) int {
	color := that[row][column]
	count := 0

	for {
		row += rowDir
		column += colDir

		if row < 0 || row >= NumRow || column < 0 || column >= NumCol {
			return count
		}

		if that[row][column] != color {
			return count
		}

		count++
	}
}

// IsFull - true when no column accepts a drop.
func (that *Board) IsFull() bool {
	for _, cell := range that[NumRow-1] {
		if cell == Empty {
			return false
		}
	}

	return true
}
