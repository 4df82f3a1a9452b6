package matchmaker

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"SobeSobe/internal/game/gameerr"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func fail(c *gin.Context, err error) {
	c.JSON(gameerr.HTTPStatus(err), gin.H{"error": err.Error(), "code": gameerr.CodeOf(err)})
}

// POST /lobby/join  body: {pool, seats}
func (h *Handler) Join(c *gin.Context) {
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	room, queued, err := h.svc.Join(c.Request.Context(), c.GetString("address"), req)
	if err != nil {
		fail(c, err)
		return
	}
	if queued {
		c.JSON(http.StatusOK, JoinResponse{Queued: true, Pool: req.Pool, Seats: req.Seats})
		return
	}
	c.JSON(http.StatusOK, JoinResponse{
		Queued: false, Pool: room.Pool, Seats: room.Seats, GameID: room.ID, Players: room.Players,
	})
}

// POST /lobby/cancel
func (h *Handler) Cancel(c *gin.Context) {
	if err := h.svc.Cancel(c.Request.Context(), c.GetString("address")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GET /lobby/:pool?seats=3
func (h *Handler) Waiting(c *gin.Context) {
	seats, err := strconv.Atoi(c.DefaultQuery("seats", "4"))
	if err != nil {
		fail(c, ErrInvalidSeats)
		return
	}
	n, err := h.svc.Waiting(c.Request.Context(), c.Param("pool"), seats)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pool": c.Param("pool"), "seats": seats, "waiting": n})
}
