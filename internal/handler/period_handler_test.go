package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPeriodsHandler(t *testing.T) {
	h := NewPeriodsHandler(testPeriods())

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/periods", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body periodsResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Timezone != "IST" {
		t.Errorf("timezone = %q, want %q", body.Timezone, "IST")
	}
	if len(body.Periods) != 7 {
		t.Fatalf("len(periods) = %d, want 7", len(body.Periods))
	}
	first := body.Periods[0]
	if first.Label != "Period 1" || first.Start != "08:45" || first.End != "09:35" {
		t.Errorf("first period = %+v", first)
	}
	last := body.Periods[6]
	if last.Label != "Period 7" || last.Start != "15:25" || last.End != "16:30" {
		t.Errorf("last period = %+v", last)
	}
}
