package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/devlpr-X/qr-attendance/internal/model"
)

// ── ICS 解析器 ──────────────────────────────────────────────
//
// 将 iCalendar (RFC 5545) 课表中的每周重复事件转换为排课规律的时间要素：
//   - DTSTART 给出锚定日期与开始时间
//   - RRULE FREQ=WEEKLY 的 INTERVAL 即重复周期（周）
//   - BYDAY 含多个星期时，每个星期各生成一条
//   - 非每周重复、缺少 RRULE 的事件无法表示为规律，记入 skipped
// ─────────────────────────────────────────────────────────────

const (
	icsMaxFileSize  = 5 * 1024 * 1024 // 5MB
	icsFetchTimeout = 30 * time.Second
)

var (
	ErrICSInvalid = errors.New("ICS 格式解析失败")
	ErrICSFetch   = errors.New("获取 ICS 失败")
)

// icsRecurrence ICS 解析出的单条每周规律
type icsRecurrence struct {
	Summary        string
	DayOfWeek      int // 0=周一 … 6=周日
	FrequencyWeeks int
	AnchorDate     time.Time
	StartTime      string // HH:MM
	EndTime        string
}

// FetchICSContent 从 URL 获取 ICS 内容
func FetchICSContent(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	// webcal:// → https://
	u := rawURL
	if strings.HasPrefix(u, "webcal://") {
		u = "https://" + strings.TrimPrefix(u, "webcal://")
	}
	if !strings.HasPrefix(u, "https://") && !strings.HasPrefix(u, "http://") {
		return nil, fmt.Errorf("%w: 仅支持 http(s) 或 webcal 地址", ErrICSFetch)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrICSFetch, err)
	}
	client := &http.Client{Timeout: icsFetchTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrICSFetch, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: HTTP %d", ErrICSFetch, resp.StatusCode)
	}
	// 限制响应体大小，防止恶意 URL 返回超大内容导致 OOM
	return struct {
		io.Reader
		io.Closer
	}{
		Reader: io.LimitReader(resp.Body, icsMaxFileSize),
		Closer: resp.Body,
	}, nil
}

// ParsePatternsICS 解析 ICS 内容中的每周重复事件
// 返回可转换为规律的条目，以及被跳过事件的原因
func ParsePatternsICS(reader io.Reader, loc *time.Location) ([]icsRecurrence, []string, error) {
	cal, err := ics.ParseCalendar(reader)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrICSInvalid, err)
	}

	var (
		result  []icsRecurrence
		skipped []string
		seen    = make(map[icsRecurrence]bool)
	)
	for _, evt := range cal.Events() {
		recs, reason := parseWeeklyEvent(evt, loc)
		if reason != "" {
			skipped = append(skipped, reason)
			continue
		}
		for _, r := range recs {
			if seen[r] {
				continue
			}
			seen[r] = true
			result = append(result, r)
		}
	}
	return result, skipped, nil
}

// parseWeeklyEvent 解析单个 VEVENT；无法转换时返回跳过原因
func parseWeeklyEvent(evt *ics.VEvent, loc *time.Location) ([]icsRecurrence, string) {
	name := ""
	if summary := evt.GetProperty(ics.ComponentPropertySummary); summary != nil {
		name = strings.TrimSpace(summary.Value)
	}
	if name == "" {
		name = "(无标题)"
	}

	dtStart, err := parseICSDateTime(evt, ics.ComponentPropertyDtStart, loc)
	if err != nil {
		return nil, fmt.Sprintf("%s: 缺少或无法解析 DTSTART", name)
	}
	endTime := ""
	if dtEnd, err := parseICSDateTime(evt, ics.ComponentPropertyDtEnd, loc); err == nil {
		endTime = dtEnd.Format("15:04")
	}

	rruleProp := evt.GetProperty(ics.ComponentPropertyRrule)
	if rruleProp == nil {
		return nil, fmt.Sprintf("%s: 单次事件，无法生成每周规律", name)
	}
	rule := parseRRule(rruleProp.Value)
	if rule.freq != "WEEKLY" {
		return nil, fmt.Sprintf("%s: 仅支持 FREQ=WEEKLY，实际为 %s", name, rule.freq)
	}
	if rule.interval < 1 {
		return nil, fmt.Sprintf("%s: INTERVAL 必须不小于 1", name)
	}

	anchor := model.CivilDate(dtStart)
	days := rule.byDay
	if len(days) == 0 {
		days = []int{weekdayIndex(anchor)}
	}

	recs := make([]icsRecurrence, 0, len(days))
	for _, dow := range days {
		// 锚定到 DTSTART 当天或之后第一个该星期
		offset := (dow - weekdayIndex(anchor) + 7) % 7
		recs = append(recs, icsRecurrence{
			Summary:        name,
			DayOfWeek:      dow,
			FrequencyWeeks: rule.interval,
			AnchorDate:     anchor.AddDate(0, 0, offset),
			StartTime:      dtStart.Format("15:04"),
			EndTime:        endTime,
		})
	}
	return recs, ""
}

// rruleParams RRULE 解析结果
type rruleParams struct {
	freq     string
	interval int
	byDay    []int // 0=周一 … 6=周日
}

var icsDayCodes = map[string]int{"MO": 0, "TU": 1, "WE": 2, "TH": 3, "FR": 4, "SA": 5, "SU": 6}

// parseRRule 解析 RRULE 字符串（如 FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,WE）
func parseRRule(value string) rruleParams {
	r := rruleParams{interval: 1}
	for _, part := range strings.Split(value, ";") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToUpper(kv[0]) {
		case "FREQ":
			r.freq = strings.ToUpper(kv[1])
		case "INTERVAL":
			n, err := strconv.Atoi(kv[1])
			if err != nil {
				n = 0
			}
			r.interval = n
		case "BYDAY":
			for _, code := range strings.Split(strings.ToUpper(kv[1]), ",") {
				// 形如 1MO / -1FR 的序数前缀对每周规则无意义，只取末两位
				if len(code) >= 2 {
					if dow, ok := icsDayCodes[code[len(code)-2:]]; ok {
						r.byDay = append(r.byDay, dow)
					}
				}
			}
		}
	}
	return r
}

// parseICSDateTime 从 VEVENT 中解析日期时间属性
func parseICSDateTime(evt *ics.VEvent, propName ics.ComponentProperty, loc *time.Location) (time.Time, error) {
	prop := evt.GetProperty(propName)
	if prop == nil {
		return time.Time{}, fmt.Errorf("missing property %s", propName)
	}
	val := prop.Value

	tzid := ""
	for k, v := range prop.ICalParameters {
		if strings.ToUpper(k) == "TZID" && len(v) > 0 {
			tzid = v[0]
		}
	}

	for _, layout := range []string{"20060102T150405Z", "20060102T150405", "20060102"} {
		t, err := time.Parse(layout, val)
		if err != nil {
			continue
		}
		if strings.HasSuffix(layout, "Z") {
			return t.In(loc), nil
		}
		if tzid != "" {
			if tzLoc, err := time.LoadLocation(tzid); err == nil {
				return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, tzLoc).In(loc), nil
			}
		}
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), nil
	}

	return time.Time{}, fmt.Errorf("无法解析日期: %s", val)
}
