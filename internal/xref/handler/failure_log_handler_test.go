package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/Nickin919/WAIGO-sub001/internal/xref/entity"
	"github.com/Nickin919/WAIGO-sub001/internal/xref/testutil"
)

func TestFailureLogListAndResolve(t *testing.T) {
	router, _ := setupEngineTest(t)
	user := testutil.UserToken("u1")
	admin := testutil.AdminToken("admin-1")

	// 导入一个不存在的 WAGO 零件以产生失败日志
	body := map[string]interface{}{
		"rows": []map[string]string{{"partNumberA": "ABC-123", "manufactureName": "Acme", "wagoCrossA": "000-000"}},
	}
	w := testutil.DoRequest(router, "POST", "/api/v1/cross-references/import", body, user)
	expectStatus(t, http.StatusOK, w)

	w = testutil.DoRequest(router, "GET", "/api/v1/failure-logs?source="+entity.FailureSourceCrossRefImport+"&resolved=false", nil, user)
	expectStatus(t, http.StatusOK, w)
	data := testutil.ResponseData(w)
	entries := data["entries"].([]interface{})
	if len(entries) != 1 {
		t.Fatalf("Expected 1 failure log, got %d", len(entries))
	}
	entry := entries[0].(map[string]interface{})
	if entry["failure_type"] != entity.FailureTypeWagoPartNotFound {
		t.Errorf("Expected wago_part_not_found, got %v", entry["failure_type"])
	}
	id := entry["id"].(string)

	w = testutil.DoRequest(router, "POST", "/api/v1/failure-logs/"+id+"/resolve", map[string]string{"resolution": "added"}, user)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for non-admin resolve, got %d", w.Code)
	}

	w = testutil.DoRequest(router, "POST", "/api/v1/failure-logs/"+id+"/resolve", map[string]string{"resolution": "added"}, admin)
	expectStatus(t, http.StatusOK, w)
	if testutil.ResponseData(w)["resolved_by"] != "admin-1" {
		t.Errorf("Expected resolved_by admin-1, got %v", testutil.ResponseData(w)["resolved_by"])
	}

	w = testutil.DoRequest(router, "POST", "/api/v1/failure-logs/"+id+"/resolve", map[string]string{"resolution": "again"}, admin)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for second resolve, got %d", w.Code)
	}
}

func TestFailureLogListValidation(t *testing.T) {
	router, _ := setupEngineTest(t)
	token := testutil.UserToken("u1")

	for _, q := range []string{"resolved=maybe", "from=yesterday", "limit=ten", "from=2026-02-01&to=2026-01-01"} {
		w := testutil.DoRequest(router, "GET", "/api/v1/failure-logs?"+q, nil, token)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, w.Code)
		}
	}

	w := testutil.DoRequest(router, "GET", "/api/v1/failure-logs?limit=9999", nil, token)
	expectStatus(t, http.StatusOK, w)
	if testutil.ResponseData(w)["limit"] != float64(500) {
		t.Errorf("Expected limit clamped to 500, got %v", testutil.ResponseData(w)["limit"])
	}
}

func TestFailureLogListDateRange(t *testing.T) {
	router, _ := setupEngineTest(t)
	token := testutil.UserToken("u1")

	body := map[string]interface{}{
		"rows": []map[string]string{{"partNumberA": "ABC-123", "manufactureName": "Acme", "wagoCrossA": "000-000"}},
	}
	w := testutil.DoRequest(router, "POST", "/api/v1/cross-references/import", body, token)
	expectStatus(t, http.StatusOK, w)

	today := time.Now().Format(time.DateOnly)
	yesterday := time.Now().AddDate(0, 0, -1).Format(time.DateOnly)
	tomorrow := time.Now().AddDate(0, 0, 1).Format(time.DateOnly)

	cases := []struct {
		query string
		total float64
	}{
		{"", 1},
		{"from=" + today, 1},
		{"to=" + today, 1},
		{"from=" + today + "&to=" + today, 1},
		{"to=" + yesterday, 0},
		{"from=" + tomorrow, 0},
	}
	for _, tc := range cases {
		w := testutil.DoRequest(router, "GET", "/api/v1/failure-logs?"+tc.query, nil, token)
		expectStatus(t, http.StatusOK, w)
		if got := testutil.ResponseData(w)["total"]; got != tc.total {
			t.Errorf("%q: expected total %v, got %v", tc.query, tc.total, got)
		}
	}
}
