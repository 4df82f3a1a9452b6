package matchmaker

import "time"

// JoinRequest 前端提交的排队请求，地址取自 JWT
type JoinRequest struct {
	Pool  string `json:"pool" binding:"required"`              // 例如 "casual"、"buyin-10"
	Seats int    `json:"seats" binding:"required,min=2,max=5"` // 2~5 人桌
}

// JoinResponse 返回是否已成桌；若已成桌则给出对局信息
type JoinResponse struct {
	Queued  bool     `json:"queued"`
	GameID  string   `json:"gameId,omitempty"`
	Players []string `json:"players,omitempty"`
	Pool    string   `json:"pool"`
	Seats   int      `json:"seats"`
}

// Room 组桌结果；ID 即对局 ID，Players[0] 为房主
type Room struct {
	ID        string    `json:"id"`
	Pool      string    `json:"pool"`
	Seats     int       `json:"seats"`
	Players   []string  `json:"players"`
	CreatedAt time.Time `json:"createdAt"`
}
