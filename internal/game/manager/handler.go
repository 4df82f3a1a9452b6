package manager

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"SobeSobe/internal/game/engine"
	"SobeSobe/internal/game/gameerr"
	"SobeSobe/internal/game/table"
)

// Handler exposes the games over REST. The caller is the "address" set by
// the JWT middleware.
type Handler struct {
	mgr *GameManager
}

func NewHandler(mgr *GameManager) *Handler {
	return &Handler{mgr: mgr}
}

func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/games")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.View)
	g.GET("/:id/scores", h.Scores)
	g.POST("/:id/join", h.Join)
	g.POST("/:id/leave", h.Leave)
	g.POST("/:id/start", h.Start)
	g.POST("/:id/look", h.Look)
	g.POST("/:id/trump", h.SelectTrump)
	g.POST("/:id/decision", h.Decide)
	g.POST("/:id/exchange", h.Exchange)
	g.POST("/:id/play", h.PlayCard)
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := gameerr.HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.mgr.log.Error("request failed", "path", c.FullPath(), "game", c.Param("id"), "err", err)
		msg = "internal error"
	}
	c.JSON(status, gin.H{
		"error": msg,
		"code":  gameerr.CodeOf(err),
		"kind":  gameerr.KindOf(err).String(),
	})
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error": err.Error(),
		"code":  ErrBadPayload.Code,
		"kind":  gameerr.KindValidation.String(),
	})
}

func (h *Handler) engine(c *gin.Context) (*engine.Engine, bool) {
	eng, err := h.mgr.Engine(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	return eng, true
}

// POST /games  body: {maxPlayers}
func (h *Handler) Create(c *gin.Context) {
	var req struct {
		MaxPlayers int `json:"maxPlayers"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, err)
			return
		}
	}
	g, err := h.mgr.CreateGame(c.Request.Context(), c.GetString("address"), req.MaxPlayers)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

// GET /games?status=waiting
func (h *Handler) List(c *gin.Context) {
	status := table.GameStatus(c.Query("status"))
	switch status {
	case "", table.GameWaiting, table.GameInProgress, table.GameCompleted, table.GameAbandoned:
	default:
		h.fail(c, table.ErrInvalidTag)
		return
	}
	games, err := h.mgr.ListGames(c.Request.Context(), status)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"games": games})
}

func (h *Handler) View(c *gin.Context) {
	eng, ok := h.engine(c)
	if !ok {
		return
	}
	v, err := eng.View(c.Request.Context(), c.GetString("address"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *Handler) Scores(c *gin.Context) {
	eng, ok := h.engine(c)
	if !ok {
		return
	}
	scores, err := eng.Scores(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scores": scores})
}

func (h *Handler) Join(c *gin.Context) {
	p, err := h.mgr.JoinGame(c.Request.Context(), c.Param("id"), c.GetString("address"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) Leave(c *gin.Context) {
	if err := h.mgr.LeaveGame(c.Request.Context(), c.Param("id"), c.GetString("address")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Start(c *gin.Context) {
	eng, ok := h.engine(c)
	if !ok {
		return
	}
	if err := eng.Start(c.Request.Context(), c.GetString("address")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /games/:id/look  deals the opening cards; they arrive as cards_dealt
func (h *Handler) Look(c *gin.Context) {
	eng, ok := h.engine(c)
	if !ok {
		return
	}
	if err := eng.Look(c.Request.Context(), c.GetString("address")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /games/:id/trump  body: {suit, beforeDealing}
func (h *Handler) SelectTrump(c *gin.Context) {
	var req trumpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	eng, ok := h.engine(c)
	if !ok {
		return
	}
	if err := eng.SelectTrump(c.Request.Context(), c.GetString("address"), *req.Suit, req.BeforeDealing); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /games/:id/decision  body: {play}
func (h *Handler) Decide(c *gin.Context) {
	var req decideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	eng, ok := h.engine(c)
	if !ok {
		return
	}
	if err := eng.Decide(c.Request.Context(), c.GetString("address"), *req.Play); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /games/:id/exchange  body: {cards: ["7H", "2C"]}
func (h *Handler) Exchange(c *gin.Context) {
	var req exchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	eng, ok := h.engine(c)
	if !ok {
		return
	}
	hand, err := eng.Exchange(c.Request.Context(), c.GetString("address"), req.Cards)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, hand)
}

// POST /games/:id/play  body: {card: "AH"}
func (h *Handler) PlayCard(c *gin.Context) {
	var req playRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	eng, ok := h.engine(c)
	if !ok {
		return
	}
	res, err := eng.PlayCard(c.Request.Context(), c.GetString("address"), *req.Card)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
