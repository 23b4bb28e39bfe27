package entity

import (
	"fmt"
	"time"

	"github.com/rocketscienceinc/connect4-backend/internal/apperror"
)

const (
	StatusWaiting  = "waiting"
	StatusOngoing  = "ongoing"
	StatusFinished = "finished"
)

// Session - one connect four game. Field names are part of the stored document format.
type Session struct {
	ID           string    `json:"id"`
	Board        Board     `json:"board"`
	PlayerRed    string    `json:"playerRed,omitempty"`
	PlayerYellow string    `json:"playerYellow,omitempty"`
	Turn         string    `json:"turn"`
	Winner       string    `json:"winner,omitempty"`
	Draw         bool      `json:"draw"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Outcome - what a transition asks the store to persist.
type Outcome struct {
	Changed bool
	Deleted bool
	Listing ListingEventType
}

func NewSession(id, requesterID string, now time.Time) *Session {
	return &Session{
		ID:        id,
		PlayerRed: requesterID,
		Turn:      requesterID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (that *Session) Status() string {
	switch {
	case that.IsResolved():
		return StatusFinished
	case that.PlayerRed != "" && that.PlayerYellow != "":
		return StatusOngoing
	default:
		return StatusWaiting
	}
}

func (that *Session) IsResolved() bool {
	return that.Winner != "" || that.Draw
}

func (that *Session) HasPlayer(playerID string) bool {
	return playerID != "" && (that.PlayerRed == playerID || that.PlayerYellow == playerID)
}

// Players - ids of the occupied slots, red first.
func (that *Session) Players() []string {
	players := make([]string, 0, 2)
	if that.PlayerRed != "" {
		players = append(players, that.PlayerRed)
	}
	if that.PlayerYellow != "" {
		players = append(players, that.PlayerYellow)
	}

	return players
}

func (that *Session) ColorOf(playerID string) Color {
	switch {
	case playerID == "":
		return Empty
	case that.PlayerRed == playerID:
		return Red
	case that.PlayerYellow == playerID:
		return Yellow
	default:
		return Empty
	}
}

// Opponent - id holding the other slot, empty when that slot is vacant.
func (that *Session) Opponent(playerID string) string {
	if that.PlayerRed == playerID {
		return that.PlayerYellow
	}

	return that.PlayerRed
}

// Join - seats the requester in the vacant slot, red first.
func (that *Session) Join(requesterID string, now time.Time) (Outcome, error) {
	if that.HasPlayer(requesterID) {
		return Outcome{}, nil
	}

	wasOpen := len(that.Players()) < 2

	switch {
	case that.PlayerRed == "":
		that.PlayerRed = requesterID
	case that.PlayerYellow == "":
		that.PlayerYellow = requesterID
	default:
		return Outcome{}, apperror.ErrGameFull
	}

	if that.Turn == "" && !that.IsResolved() {
		that.Turn = requesterID
	}
	that.UpdatedAt = now

	outcome := Outcome{Changed: true}
	if wasOpen && len(that.Players()) == 2 {
		outcome.Listing = ListingDelete
	}

	return outcome, nil
}

// Leave - abandons a game nobody joined, or forfeits one in progress.
func (that *Session) Leave(requesterID string, now time.Time) (Outcome, error) {
	if !that.HasPlayer(requesterID) {
		return Outcome{}, apperror.ErrNotInGame
	}

	opponent := that.Opponent(requesterID)
	if opponent == "" {
		return Outcome{Deleted: true, Listing: ListingDelete}, nil
	}

	if that.IsResolved() {
		return Outcome{}, nil
	}

	that.Winner = opponent
	that.Turn = ""
	that.UpdatedAt = now

	return Outcome{Changed: true}, nil
}

// Move - drops a piece of the requester's color into the column and resolves the game if it ends.
func (that *Session) Move(requesterID string, column int, now time.Time) (Outcome, error) {
	if that.Winner != "" {
		return Outcome{}, apperror.ErrAlreadyWon
	}

	if that.Draw {
		return Outcome{}, apperror.ErrGameFinished
	}

	if that.PlayerRed == "" || that.PlayerYellow == "" {
		return Outcome{}, apperror.ErrNeedBothPlayers
	}

	if that.Turn != requesterID {
		return Outcome{}, apperror.ErrNotYourTurn
	}

	row, ok, err := that.Board.FindDropRow(column)
	if err != nil {
		return Outcome{}, err
	}

	if !ok {
		return Outcome{}, fmt.Errorf("%w: %d", apperror.ErrColumnFull, column)
	}

	color := that.ColorOf(requesterID)
	that.Board.ApplyMove(row, column, color)

	switch {
	case that.Board.DetectWin(row, column) != Empty:
		that.Winner = requesterID
		that.Turn = ""
	case that.Board.IsFull():
		that.Draw = true
		that.Turn = ""
	default:
		that.Turn = that.Opponent(requesterID)
	}
	that.UpdatedAt = now

	return Outcome{Changed: true}, nil
}
