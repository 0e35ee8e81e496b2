package handler

import (
	"net/http"

	"github.com/hitoshi/qrattend/internal/period"
)

type periodResponse struct {
	Label string `json:"label"`
	Start string `json:"start"`
	End   string `json:"end"`
}

type periodsResponse struct {
	Timezone string           `json:"timezone"`
	Periods  []periodResponse `json:"periods"`
}

// NewPeriodsHandler は時限表をHH:MM形式で返すハンドラーを生成する。
// 時限表は起動後に変わらないため、レスポンスは生成時に一度だけ組み立てる。
// GET /periods
func NewPeriodsHandler(periods *period.Table) http.HandlerFunc {
	resp := periodsResponse{Timezone: periods.Location().String()}
	for _, p := range periods.Periods() {
		resp.Periods = append(resp.Periods, periodResponse{
			Label: p.Label,
			Start: period.FormatMinute(p.StartMinute),
			End:   period.FormatMinute(p.EndMinute),
		})
	}

	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, resp)
	}
}
