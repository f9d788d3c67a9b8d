package quota

import (
	"context"
	"time"

	"scribbly/internal/entity"

	"github.com/sirupsen/logrus"
)

// Deny reasons returned to clients verbatim.
const (
	ReasonGuestLimitReached = "guest_limit_reached"
	ReasonDailyLimitReached = "daily_limit_reached"
)

// UnlimitedRemaining 表示无限额度（付费账号）。
const UnlimitedRemaining = -1

// Limits 各档位的生成上限。
type Limits struct {
	// GuestLimit 游客在滚动窗口内的服务端上限
	GuestLimit int
	// GuestClientLimit 前端提示用的建议上限，服务端不执行
	GuestClientLimit int
	// GuestWindow 游客计数的滚动窗口长度
	GuestWindow time.Duration
	// FreeDailyLimit 免费账号的自然日上限（服务器本地时间）
	FreeDailyLimit int
}

// Identity 描述一次生成请求的归属方。
type Identity struct {
	GuestKey string
	UserID   uint
	Plan     string
}

// Registered 是否为登录用户。
func (i Identity) Registered() bool {
	return i.UserID != 0
}

// Decision 是一次配额判定的结果。
type Decision struct {
	Allowed   bool
	Reason    string
	Limit     int
	Used      int
	Remaining int
}

// GuestUsage 游客在当前窗口内的使用情况。
type GuestUsage struct {
	Count     int
	StartedAt time.Time
}

// GuestStore 保存游客的滚动窗口计数。
type GuestStore interface {
	// Usage 返回 key 当前窗口内的计数，窗口过期时返回零值。
	Usage(ctx context.Context, key string) (GuestUsage, error)
	// Increment 计数加一，窗口已过期时重新开窗。
	Increment(ctx context.Context, key string, now time.Time, window time.Duration) error
}

// UserUsageStore 保存注册用户的当日计数，由数据库仓储实现。
type UserUsageStore interface {
	UserUsage(ctx context.Context, userID uint) (count int, updatedAt time.Time, err error)
	ResetUserUsage(ctx context.Context, userID uint, count int, now time.Time) error
	IncrementUserUsage(ctx context.Context, userID uint, now time.Time) error
}

// Policy 在生成前判定配额、在生成成功后提交计数。
// 判定（Evaluate）从不修改任何计数；只有 Commit 会。
type Policy struct {
	guests GuestStore
	users  UserUsageStore
	limits Limits
	now    func() time.Time
}

// NewPolicy 构造配额策略。nowFn 为 nil 时使用 time.Now。
func NewPolicy(guests GuestStore, users UserUsageStore, limits Limits, nowFn func() time.Time) *Policy {
	if nowFn == nil {
		nowFn = time.Now
	}
	if limits.GuestWindow <= 0 {
		limits.GuestWindow = 24 * time.Hour
	}
	return &Policy{
		guests: guests,
		users:  users,
		limits: limits,
		now:    nowFn,
	}
}

// Limits 返回策略使用的上限配置。
func (p *Policy) Limits() Limits {
	return p.limits
}

// Evaluate 判定 id 是否还能生成。被拒绝的请求不会留下任何痕迹。
func (p *Policy) Evaluate(ctx context.Context, id Identity) Decision {
	if id.Registered() {
		return p.evaluateUser(ctx, id)
	}
	return p.evaluateGuest(ctx, id)
}

// Commit 在生成成功后记账。失败的生成不应调用 Commit。
func (p *Policy) Commit(ctx context.Context, id Identity) error {
	now := p.now()
	if id.Registered() {
		if id.Plan == entity.PlanPremium {
			return nil
		}
		count, updatedAt, err := p.users.UserUsage(ctx, id.UserID)
		if err != nil {
			return err
		}
		if !sameLocalDay(updatedAt, now) || count == 0 {
			return p.users.ResetUserUsage(ctx, id.UserID, 1, now)
		}
		return p.users.IncrementUserUsage(ctx, id.UserID, now)
	}
	return p.guests.Increment(ctx, id.GuestKey, now, p.limits.GuestWindow)
}

func (p *Policy) evaluateGuest(ctx context.Context, id Identity) Decision {
	limit := p.limits.GuestLimit
	usage, err := p.guests.Usage(ctx, id.GuestKey)
	if err != nil {
		// 计数存储故障时放行，避免把整个生成功能拖垮
		logrus.WithError(err).WithField("guest_key", id.GuestKey).Warn("guest usage lookup failed, allowing request")
		return Decision{Allowed: true, Limit: limit, Used: 0, Remaining: limit}
	}

	used := usage.Count
	// 窗口从第一次生成算起，满窗后视为清零
	if used > 0 && p.now().Sub(usage.StartedAt) >= p.limits.GuestWindow {
		used = 0
	}
	if used >= limit {
		return Decision{
			Allowed:   false,
			Reason:    ReasonGuestLimitReached,
			Limit:     limit,
			Used:      used,
			Remaining: 0,
		}
	}
	return Decision{Allowed: true, Limit: limit, Used: used, Remaining: limit - used}
}

func (p *Policy) evaluateUser(ctx context.Context, id Identity) Decision {
	if id.Plan == entity.PlanPremium {
		return Decision{Allowed: true, Limit: UnlimitedRemaining, Remaining: UnlimitedRemaining}
	}

	limit := p.limits.FreeDailyLimit
	count, updatedAt, err := p.users.UserUsage(ctx, id.UserID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", id.UserID).Warn("user usage lookup failed, allowing request")
		return Decision{Allowed: true, Limit: limit, Used: 0, Remaining: limit}
	}

	// 上次计数落在更早的自然日则视为清零
	if !sameLocalDay(updatedAt, p.now()) {
		count = 0
	}
	if count >= limit {
		return Decision{
			Allowed:   false,
			Reason:    ReasonDailyLimitReached,
			Limit:     limit,
			Used:      count,
			Remaining: 0,
		}
	}
	return Decision{Allowed: true, Limit: limit, Used: count, Remaining: limit - count}
}

func sameLocalDay(a, b time.Time) bool {
	ay, am, ad := a.Local().Date()
	by, bm, bd := b.Local().Date()
	return ay == by && am == bm && ad == bd
}
