package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/devlpr-X/qr-attendance/internal/model"
)

func TestReferenceService_GetCurrentSemester(t *testing.T) {
	store := seedStore()
	svc := NewReferenceService(store.repo(), zap.NewNop())

	sem, err := svc.GetCurrentSemester(context.Background())
	if err != nil {
		t.Fatalf("查询当前学期失败: %v", err)
	}
	if sem.ID != fxSemesterID || sem.StartDate != "2024-09-02" {
		t.Errorf("当前学期错误: %+v", sem)
	}
	// 9/2 至 12/20 共 110 天
	if sem.Weeks != 16 {
		t.Errorf("期望 16 周，实际 %d", sem.Weeks)
	}

	store.semesters[fxSemesterID].IsActive = false
	if _, err := svc.GetCurrentSemester(context.Background()); !errors.Is(err, ErrNoCurrentSemester) {
		t.Errorf("无启用学期期望 ErrNoCurrentSemester，实际 %v", err)
	}
}

func TestReferenceService_GetSemester_NotFound(t *testing.T) {
	svc := NewReferenceService(seedStore().repo(), zap.NewNop())
	if _, err := svc.GetSemester(context.Background(), "sem-x"); !errors.Is(err, ErrSemesterNotFound) {
		t.Errorf("期望 ErrSemesterNotFound，实际 %v", err)
	}
}

func TestReferenceService_ListTimeSlots(t *testing.T) {
	store := seedStore()
	store.timeSlots["slot-1000"] = &model.TimeSlot{TimeSlotID: "slot-1000", Name: "第2节", StartTime: "10:00:00", EndTime: "11:30:00", IsActive: true}
	store.timeSlots["slot-old"] = &model.TimeSlot{TimeSlotID: "slot-old", Name: "停用", StartTime: "07:00:00", EndTime: "07:45:00"}
	svc := NewReferenceService(store.repo(), zap.NewNop())

	slots, err := svc.ListTimeSlots(context.Background())
	if err != nil {
		t.Fatalf("列出节次失败: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("期望 2 个启用节次，实际 %d", len(slots))
	}
	if slots[0].ID != fxSlotID || slots[1].StartTime != "10:00" || slots[1].EndTime != "11:30" {
		t.Errorf("节次排序或时间格式错误: %+v", slots)
	}
}
