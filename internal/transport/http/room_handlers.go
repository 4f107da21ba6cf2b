package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-minutes/internal/core"
	"github.com/vovakirdan/wirechat-minutes/internal/store"
	"github.com/vovakirdan/wirechat-minutes/internal/transcript"
)

// RoomLister exposes the active rooms.
type RoomLister interface {
	Rooms() []core.RoomInfo
}

// TranscriptReader exposes room transcripts.
type TranscriptReader interface {
	Text(ctx context.Context, room string) (string, error)
	Buckets(room string) []transcript.Bucket
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RoomsResponse lists active rooms.
type RoomsResponse struct {
	Rooms []core.RoomInfo `json:"rooms"`
}

// BucketsResponse is the structured form of a room transcript.
type BucketsResponse struct {
	Room    string              `json:"room"`
	Buckets []transcript.Bucket `json:"buckets"`
}

// RoomHandlers provides HTTP handlers for room endpoints.
type RoomHandlers struct {
	rooms       RoomLister
	transcripts TranscriptReader
	log         *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(rooms RoomLister, transcripts TranscriptReader, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		rooms:       rooms,
		transcripts: transcripts,
		log:         logger,
	}
}

// ListRooms returns active rooms with their member counts.
// GET /api/rooms
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, RoomsResponse{Rooms: h.rooms.Rooms()})
}

// Transcript returns a room transcript as text, or as time buckets with ?format=json.
// GET /api/rooms/:room/transcript
func (h *RoomHandlers) Transcript(c *gin.Context) {
	room := c.Param("room")

	if c.Query("format") == "json" {
		buckets := h.transcripts.Buckets(room)
		if buckets == nil {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "transcript not found"})
			return
		}
		c.JSON(http.StatusOK, BucketsResponse{Room: room, Buckets: buckets})
		return
	}

	text, err := h.transcripts.Text(c.Request.Context(), room)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "transcript not found"})
			return
		}
		h.log.Error().Err(err).Str("room", room).Msg("failed to read transcript")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.String(http.StatusOK, text)
}
