package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/devlpr-X/qr-attendance/config"
)

// Client Redis 客户端封装
// 用于扫码接口限流与设备绑定缓存；连接失败时调用方降级为直连数据库
type Client struct {
	rdb    *goredis.Client
	prefix string
	logger *zap.Logger
	now    func() time.Time
}

// NewClient 创建 Redis 连接并执行 Ping 健康检查
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return NewFromClient(rdb, cfg.KeyPrefix, logger), nil
}

// NewFromClient 包装已有的 go-redis 客户端
func NewFromClient(rdb *goredis.Client, prefix string, logger *zap.Logger) *Client {
	return &Client{rdb: rdb, prefix: prefix, logger: logger, now: time.Now}
}

func (c *Client) key(parts ...string) string {
	return c.prefix + strings.Join(parts, ":")
}

// ── 限流 ──

// CheckRateLimit 滑动窗口限流：窗口内请求数未超过 limit 时返回 true
// 使用有序集合记录请求时间戳，整个检查在一个 MULTI 管道内完成
// 成员带随机后缀，同一时刻的多次请求分别计数
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}

	k := c.key("rate", key)
	now := c.now()
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + uuid.NewString()

	pipe := c.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, k, "0", strconv.FormatInt(now.Add(-window).UnixNano(), 10))
	pipe.ZAdd(ctx, k, goredis.Z{Score: float64(now.UnixNano()), Member: member})
	count := pipe.ZCard(ctx, k)
	pipe.Expire(ctx, k, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	return count.Val() <= int64(limit), nil
}

// ── 设备绑定缓存 ──

// 绑定一经写入永不修改，缓存无需失效，只设置较长 TTL 回收冷数据
const deviceBindingTTL = 30 * 24 * time.Hour

// GetDeviceBinding 读取学生已绑定的设备 ID，未命中时 ok=false
func (c *Client) GetDeviceBinding(ctx context.Context, studentID string) (string, bool, error) {
	v, err := c.rdb.Get(ctx, c.key("device", studentID)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// SetDeviceBinding 写入学生设备绑定缓存
func (c *Client) SetDeviceBinding(ctx context.Context, studentID, deviceID string) error {
	return c.rdb.Set(ctx, c.key("device", studentID), deviceID, deviceBindingTTL).Err()
}

// Ping 健康检查
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
