// Package period は1日の固定時限表と、時刻から時限を判定するロジックを提供する。
// 時限表は起動時に構築する読み取り専用の値で、グローバルな可変状態は持たない。
package period

import (
	"fmt"
	"time"
)

// OutsideLabel は時限外の時刻に付与するラベル。
const OutsideLabel = "Outside Period Time"

// Period は1日の中の名前付き時間帯を表す。
// [StartMinute, EndMinute) の半開区間で、値は0時からの経過分。
type Period struct {
	Label       string
	StartMinute int
	EndMinute   int
}

// Contains は経過分が時限の範囲内かどうかを返す。
func (p Period) Contains(minuteOfDay int) bool {
	return p.StartMinute <= minuteOfDay && minuteOfDay < p.EndMinute
}

// DefaultPeriods は標準の7時限の時限表を返す。
func DefaultPeriods() []Period {
	return []Period{
		{Label: "Period 1", StartMinute: 525, EndMinute: 575}, // 08:45-09:35
		{Label: "Period 2", StartMinute: 575, EndMinute: 625}, // 09:35-10:25
		{Label: "Period 3", StartMinute: 640, EndMinute: 690}, // 10:40-11:30
		{Label: "Period 4", StartMinute: 690, EndMinute: 750}, // 11:30-12:30
		{Label: "Period 5", StartMinute: 810, EndMinute: 860}, // 13:30-14:20
		{Label: "Period 6", StartMinute: 860, EndMinute: 910}, // 14:20-15:10
		{Label: "Period 7", StartMinute: 925, EndMinute: 990}, // 15:25-16:30
	}
}

// Table は順序付きの時限表と、経過分・日付の判定に使うタイムゾーンを保持する。
type Table struct {
	periods []Period
	loc     *time.Location
}

// NewTable は時限表を検証して生成する。
// 各時限は開始 < 終了であり、前の時限の終了以降に開始しなければならない。
// locがnilの場合はUTCを使用する。
func NewTable(periods []Period, loc *time.Location) (*Table, error) {
	if len(periods) == 0 {
		return nil, fmt.Errorf("period table must not be empty")
	}
	if loc == nil {
		loc = time.UTC
	}

	prevEnd := 0
	for i, p := range periods {
		if p.Label == "" {
			return nil, fmt.Errorf("period %d has an empty label", i)
		}
		if p.StartMinute < 0 || p.EndMinute > 24*60 {
			return nil, fmt.Errorf("period %q is out of day range", p.Label)
		}
		if p.StartMinute >= p.EndMinute {
			return nil, fmt.Errorf("period %q must start before it ends", p.Label)
		}
		if p.StartMinute < prevEnd {
			return nil, fmt.Errorf("period %q overlaps the previous period", p.Label)
		}
		prevEnd = p.EndMinute
	}

	copied := make([]Period, len(periods))
	copy(copied, periods)
	return &Table{periods: copied, loc: loc}, nil
}

// MustDefault は標準時限表を指定タイムゾーンで生成する。
func MustDefault(loc *time.Location) *Table {
	t, err := NewTable(DefaultPeriods(), loc)
	if err != nil {
		panic(err)
	}
	return t
}

// Periods は時限表のコピーを返す。
func (t *Table) Periods() []Period {
	out := make([]Period, len(t.periods))
	copy(out, t.periods)
	return out
}

// Len は1日あたりの時限数を返す。
func (t *Table) Len() int {
	return len(t.periods)
}

// Location は時限表のタイムゾーンを返す。
func (t *Table) Location() *time.Location {
	return t.loc
}

// PeriodFor は経過分を含む最初の時限を返す。どの時限にも含まれない場合はfalseを返す。
func (t *Table) PeriodFor(minuteOfDay int) (Period, bool) {
	for _, p := range t.periods {
		if p.Contains(minuteOfDay) {
			return p, true
		}
	}
	return Period{}, false
}

// MinuteOfDay は時限表のタイムゾーンにおける0時からの経過分を返す。
func (t *Table) MinuteOfDay(at time.Time) int {
	local := at.In(t.loc)
	return local.Hour()*60 + local.Minute()
}

// At は指定時刻が属する時限を返す。
func (t *Table) At(at time.Time) (Period, bool) {
	return t.PeriodFor(t.MinuteOfDay(at))
}

// LabelFor は指定時刻の時限ラベルを返す。時限外の場合はOutsideLabelを返す。
func (t *Table) LabelFor(at time.Time) string {
	p, ok := t.At(at)
	if !ok {
		return OutsideLabel
	}
	return p.Label
}

// Window は指定時刻が属する「日付と時限」の枠 [start, end) を返す。
// 時限外の場合はokがfalseになる。
func (t *Table) Window(at time.Time) (start, end time.Time, p Period, ok bool) {
	p, ok = t.At(at)
	if !ok {
		return time.Time{}, time.Time{}, Period{}, false
	}
	start = t.wallClock(at, p.StartMinute)
	end = t.wallClock(at, p.EndMinute)
	return start, end, p, true
}

// Day は時限表のタイムゾーンにおける日付キー（YYYY-MM-DD）を返す。
func (t *Table) Day(at time.Time) string {
	return at.In(t.loc).Format(time.DateOnly)
}

// wallClock は時限表のタイムゾーンにおける当日の壁時計でminuteOfDay分の時刻を返す。
// 夏時間の切り替え日でもMinuteOfDayと同じ基準になる。
func (t *Table) wallClock(at time.Time, minuteOfDay int) time.Time {
	local := at.In(t.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, minuteOfDay, 0, 0, t.loc)
}

// FormatMinute は経過分をHH:MM形式に変換する。
func FormatMinute(minuteOfDay int) string {
	return fmt.Sprintf("%02d:%02d", minuteOfDay/60, minuteOfDay%60)
}
