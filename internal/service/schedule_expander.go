package service

import (
	"errors"
	"iter"
	"time"

	"github.com/devlpr-X/qr-attendance/internal/model"
)

// ── 排课规律展开 ──

var (
	ErrInvalidFrequency = errors.New("重复周期必须为不小于 1 的整数周")
	ErrInvalidDayOfWeek = errors.New("星期必须在 0（周一）到 6（周日）之间")
	ErrInvalidWindow    = errors.New("学期结束日期早于开始日期")
)

// Recurrence 规律的时间要素
type Recurrence struct {
	DayOfWeek      int // 0=周一 … 6=周日
	FrequencyWeeks int
	AnchorDate     time.Time
}

// RecurrenceOf 提取排课规律的时间要素
func RecurrenceOf(p *model.SchedulePattern) Recurrence {
	return Recurrence{
		DayOfWeek:      p.DayOfWeek,
		FrequencyWeeks: p.FrequencyWeeks,
		AnchorDate:     p.AnchorDate,
	}
}

// Validate 校验时间要素
func (r Recurrence) Validate() error {
	if r.FrequencyWeeks < 1 {
		return ErrInvalidFrequency
	}
	if r.DayOfWeek < 0 || r.DayOfWeek > 6 {
		return ErrInvalidDayOfWeek
	}
	return nil
}

// ExpandDates 返回规律在学期 [start, end]（含两端）内的上课日期序列。
// 首个日期为 max(anchor, start) 当天或之后第一个 DayOfWeek，之后每隔 FrequencyWeeks×7 天。
// 序列是纯函数结果，可重复遍历；anchor 晚于 end 时为空序列。
func ExpandDates(r Recurrence, start, end time.Time) (iter.Seq[time.Time], error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	start, end = model.CivilDate(start), model.CivilDate(end)
	if end.Before(start) {
		return nil, ErrInvalidWindow
	}

	from := start
	if anchor := model.CivilDate(r.AnchorDate); anchor.After(from) {
		from = anchor
	}
	first := from.AddDate(0, 0, (r.DayOfWeek-weekdayIndex(from)+7)%7)
	step := 7 * r.FrequencyWeeks

	return func(yield func(time.Time) bool) {
		for d := first; !d.After(end); d = d.AddDate(0, 0, step) {
			if !yield(d) {
				return
			}
		}
	}, nil
}

// weekdayIndex 周一为 0 的星期序号
func weekdayIndex(d time.Time) int {
	return (int(d.Weekday()) + 6) % 7
}
