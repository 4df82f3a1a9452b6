package matchmaker

import (
	"context"
	"time"
)

// Repo 定义对排队池的抽象操作，池以 pool+seats 区分
type Repo interface {
	// Enqueue 将地址加入指定池
	Enqueue(ctx context.Context, pool string, seats int, address string, ttl time.Duration) error
	// PopN 池内不少于 n 人时随机弹出 n 人（原子），否则返回空
	PopN(ctx context.Context, pool string, seats int, n int) ([]string, error)
	// Remove 将玩家从当前池移除（用于取消）
	Remove(ctx context.Context, address string) error
	// Count 返回池内人数
	Count(ctx context.Context, pool string, seats int) (int64, error)
	// SaveRoom 记录成桌结果及玩家 → 对局映射
	SaveRoom(ctx context.Context, room *Room, ttl time.Duration) error
	// PlayerRoom 返回玩家所在对局，没有时为空串
	PlayerRoom(ctx context.Context, address string) (string, error)
	// Release 清除玩家 → 对局映射，使其可以重新排队
	Release(ctx context.Context, addresses ...string) error
}
