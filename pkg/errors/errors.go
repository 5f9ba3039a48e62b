package errors

import "errors"

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrSessionNotLive 课次已取消或令牌已失效，条件写入未生效
var ErrSessionNotLive = errors.New("课次已取消或签到令牌已失效")

// ErrSessionCancelled 课次已取消，不能再签发令牌
var ErrSessionCancelled = errors.New("课次已取消")
