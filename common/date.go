package common

import (
	"time"
)

// 业务时区：开奖截止时间与日报表均按约翰内斯堡本地时间计算
func BusinessLocation() *time.Location {
	location, err := time.LoadLocation("Africa/Johannesburg")
	if err != nil {
		return time.Local
	}
	return location
}

// NextDrawTime 计算下一个开奖截止时间：
// 当天 hour:00 未过则取当天，否则取次日 hour:00
func NextDrawTime(t time.Time, hour int) time.Time {
	loc := BusinessLocation()
	t = t.In(loc)

	year, month, day := t.Date()
	deadline := time.Date(year, month, day, hour, 0, 0, 0, loc)
	if !t.Before(deadline) {
		deadline = deadline.AddDate(0, 0, 1)
	}

	return deadline
}

// 获取某天的0点0分0秒的时间戳
func GetDateTimeUnix(input time.Time) int64 {
	loc := BusinessLocation()

	year, month, day := input.In(loc).Date()
	midnight := time.Date(year, month, day, 0, 0, 0, 0, loc)

	return midnight.Unix()
}

// 获取当天 00:00:00 和 第二天 00:00:00
func GetTodayRange(t time.Time) (start, end int64) {
	loc := BusinessLocation()
	year, month, day := t.In(loc).Date()

	startTime := time.Date(year, month, day, 0, 0, 0, 0, loc)
	endTime := startTime.AddDate(0, 0, 1) // +1 天

	return startTime.Unix(), endTime.Unix()
}

// 获取当周周一 00:00:00 和 周日 00:00:00
func GetWeekRange(t time.Time) (start, end int64) {
	loc := BusinessLocation()
	t = t.In(loc)

	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // 让周日变成 7，方便计算
	}

	year, month, day := t.Date()
	monday := time.Date(year, month, day, 0, 0, 0, 0, loc).AddDate(0, 0, -(weekday - 1))
	sunday := monday.AddDate(0, 0, 7)

	return monday.Unix(), sunday.Unix()
}

// 获取当月第一天 00:00:00 和 下个月第一天 00:00:00
func GetMonthRange(t time.Time) (start, end int64) {
	loc := BusinessLocation()
	t = t.In(loc)

	year, month, _ := t.Date()
	firstDay := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	nextMonth := firstDay.AddDate(0, 1, 0)

	return firstDay.Unix(), nextMonth.Unix()
}
