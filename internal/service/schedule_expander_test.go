package service

import (
	"errors"
	"slices"
	"testing"
	"time"
)

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func collectDates(t *testing.T, r Recurrence, start, end string) []time.Time {
	t.Helper()
	seq, err := ExpandDates(r, date(start), date(end))
	if err != nil {
		t.Fatalf("ExpandDates 失败: %v", err)
	}
	return slices.Collect(seq)
}

func TestExpandDates_WeeklyMondayAutumnTerm(t *testing.T) {
	r := Recurrence{DayOfWeek: 0, FrequencyWeeks: 1, AnchorDate: date("2024-09-02")}
	dates := collectDates(t, r, "2024-09-02", "2024-12-20")

	if len(dates) != 16 {
		t.Fatalf("期望 16 个周一，实际 %d", len(dates))
	}
	if !dates[0].Equal(date("2024-09-02")) {
		t.Errorf("首个日期期望 2024-09-02，实际 %s", dates[0].Format("2006-01-02"))
	}
	if !dates[15].Equal(date("2024-12-16")) {
		t.Errorf("最后日期期望 2024-12-16，实际 %s", dates[15].Format("2006-01-02"))
	}
	for _, d := range dates {
		if d.Weekday() != time.Monday {
			t.Errorf("%s 不是周一", d.Format("2006-01-02"))
		}
	}
}

func TestExpandDates_BiweeklyFourteenDaysApart(t *testing.T) {
	r := Recurrence{DayOfWeek: 2, FrequencyWeeks: 2, AnchorDate: date("2024-09-01")}
	dates := collectDates(t, r, "2024-09-02", "2024-12-20")

	if len(dates) < 2 {
		t.Fatalf("双周规律应至少生成 2 个日期，实际 %d", len(dates))
	}
	for i := 1; i < len(dates); i++ {
		if gap := dates[i].Sub(dates[i-1]); gap != 14*24*time.Hour {
			t.Errorf("第 %d 个间隔期望 14 天，实际 %v", i, gap)
		}
	}
	if dates[0].Weekday() != time.Wednesday {
		t.Errorf("day_of_week=2 应为周三，实际 %s", dates[0].Weekday())
	}
}

func TestExpandDates_AnchorAfterStart(t *testing.T) {
	// 锚点 2024-10-09（周三），规律为周五 → 首个日期 2024-10-11
	r := Recurrence{DayOfWeek: 4, FrequencyWeeks: 1, AnchorDate: date("2024-10-09")}
	dates := collectDates(t, r, "2024-09-02", "2024-10-31")

	want := []string{"2024-10-11", "2024-10-18", "2024-10-25"}
	if len(dates) != len(want) {
		t.Fatalf("期望 %d 个日期，实际 %d", len(want), len(dates))
	}
	for i, w := range want {
		if got := dates[i].Format("2006-01-02"); got != w {
			t.Errorf("dates[%d] 期望 %s，实际 %s", i, w, got)
		}
	}
}

func TestExpandDates_EndInclusive(t *testing.T) {
	// 学期恰好在周五结束，周五的课应包含在内
	r := Recurrence{DayOfWeek: 4, FrequencyWeeks: 1, AnchorDate: date("2024-12-01")}
	dates := collectDates(t, r, "2024-12-01", "2024-12-20")
	if len(dates) == 0 || !dates[len(dates)-1].Equal(date("2024-12-20")) {
		t.Errorf("学期结束日应包含在序列内: %v", dates)
	}
}

func TestExpandDates_AnchorAfterSemesterEnd(t *testing.T) {
	r := Recurrence{DayOfWeek: 0, FrequencyWeeks: 1, AnchorDate: date("2025-01-06")}
	dates := collectDates(t, r, "2024-09-02", "2024-12-20")
	if len(dates) != 0 {
		t.Errorf("锚点晚于学期结束应为空序列，实际 %d", len(dates))
	}
}

func TestExpandDates_InvalidFrequency(t *testing.T) {
	for _, freq := range []int{0, -1} {
		r := Recurrence{DayOfWeek: 0, FrequencyWeeks: freq, AnchorDate: date("2024-09-02")}
		_, err := ExpandDates(r, date("2024-09-02"), date("2024-12-20"))
		if !errors.Is(err, ErrInvalidFrequency) {
			t.Errorf("frequency=%d 期望 ErrInvalidFrequency，实际 %v", freq, err)
		}
	}
}

func TestExpandDates_InvalidDayOfWeek(t *testing.T) {
	for _, dow := range []int{-1, 7} {
		r := Recurrence{DayOfWeek: dow, FrequencyWeeks: 1, AnchorDate: date("2024-09-02")}
		if _, err := ExpandDates(r, date("2024-09-02"), date("2024-12-20")); !errors.Is(err, ErrInvalidDayOfWeek) {
			t.Errorf("day_of_week=%d 期望 ErrInvalidDayOfWeek，实际 %v", dow, err)
		}
	}
}

func TestExpandDates_InvalidWindow(t *testing.T) {
	r := Recurrence{DayOfWeek: 0, FrequencyWeeks: 1, AnchorDate: date("2024-09-02")}
	if _, err := ExpandDates(r, date("2024-12-20"), date("2024-09-02")); !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("期望 ErrInvalidWindow，实际 %v", err)
	}
}

func TestExpandDates_Restartable(t *testing.T) {
	r := Recurrence{DayOfWeek: 3, FrequencyWeeks: 3, AnchorDate: date("2024-09-02")}
	seq, err := ExpandDates(r, date("2024-09-02"), date("2024-12-20"))
	if err != nil {
		t.Fatalf("ExpandDates 失败: %v", err)
	}
	first := slices.Collect(seq)
	second := slices.Collect(seq)
	if !slices.EqualFunc(first, second, time.Time.Equal) {
		t.Error("两次遍历结果应一致")
	}
}

func TestExpandDates_EarlyStop(t *testing.T) {
	r := Recurrence{DayOfWeek: 0, FrequencyWeeks: 1, AnchorDate: date("2024-09-02")}
	seq, _ := ExpandDates(r, date("2024-09-02"), date("2024-12-20"))
	n := 0
	for range seq {
		n++
		if n == 3 {
			break
		}
	}
	if n != 3 {
		t.Errorf("提前终止后计数期望 3，实际 %d", n)
	}
}

func TestWeekdayIndex(t *testing.T) {
	// 2024-09-02 是周一
	for i := 0; i < 7; i++ {
		d := date("2024-09-02").AddDate(0, 0, i)
		if got := weekdayIndex(d); got != i {
			t.Errorf("%s 期望序号 %d，实际 %d", d.Format("2006-01-02"), i, got)
		}
	}
}
