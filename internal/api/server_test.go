package api

import (
	"context"
	stdjson "encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"eve-jita-price/internal/config"
	"eve-jita-price/internal/inquiry"
	"eve-jita-price/internal/sde"
)

type fakeCatalogs struct {
	cat *sde.Catalog
	err error
}

func (f fakeCatalogs) Catalog(context.Context) (*sde.Catalog, error) { return f.cat, f.err }
func (f fakeCatalogs) Loaded() bool { return f.cat != nil }
func (f fakeCatalogs) Size() int {
	if f.cat == nil {
		return 0
	}
	return f.cat.Len()
}

type fakeInquirer struct {
	last inquiry.Request
	err  error
	opts inquiry.Options
}

func (f *fakeInquirer) Ask(_ context.Context, req inquiry.Request) (inquiry.Reply, error) {
	f.last = req
	if f.err != nil {
		return inquiry.Reply{}, f.err
	}
	return inquiry.Reply{ID: "abc", Text: "priced " + req.Text, Outcome: inquiry.OutcomeOK}, nil
}
func (f *fakeInquirer) Options() inquiry.Options { return f.opts }
func (f *fakeInquirer) SetOptions(o inquiry.Options) { f.opts = o }

type fakeHealth struct{ calls atomic.Int32 }

func (f *fakeHealth) HealthCheck(context.Context) bool {
	f.calls.Add(1)
	return true
}

type fakeStore struct {
	saved *config.Config
	err   error
}

func (f *fakeStore) SaveConfig(cfg *config.Config) error {
	if f.err != nil {
		return f.err
	}
	f.saved = cfg
	return nil
}

func testCatalog(t *testing.T) *sde.Catalog {
	t.Helper()
	cat, err := sde.NewCatalog([]sde.Item{
		{ID: 34, Name: sde.Names{EN: "Tritanium", ZH: "三钛合金"}, GroupID: 18},
		{ID: 35, Name: sde.Names{EN: "Pyerite", ZH: "类晶体胶矿"}, GroupID: 18},
		{ID: 36, Name: sde.Names{EN: "Mexallon", ZH: "类银超金属"}, GroupID: 18},
	})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	return cat
}

type fixture struct {
	srv    *Server
	inq    *fakeInquirer
	health *fakeHealth
	store  *fakeStore
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	f := fixture{
		inq:    &fakeInquirer{opts: inquiry.Options{MaxSearch: 10}},
		health: &fakeHealth{},
		store:  &fakeStore{},
	}
	f.srv = NewServer(config.Default(), fakeCatalogs{cat: testCatalog(t)}, f.inq, f.health, f.store)
	return f
}

func (f fixture) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleStatus_CachesHealth(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		rec := f.do(http.MethodGet, "/api/status", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var out map[string]interface{}
		if err := stdjson.NewDecoder(rec.Body).Decode(&out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if out["catalog_loaded"] != true || out["catalog_types"] != float64(3) || out["esi_ok"] != true {
			t.Errorf("status = %v", out)
		}
	}
	if f.health.calls.Load() != 1 {
		t.Errorf("health checks = %d, want 1", f.health.calls.Load())
	}
}

func TestHandlePrice(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/price/jita?q=Tritanium", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var out priceResponse
	if err := stdjson.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Text != "priced Tritanium" || out.Outcome != "ok" || out.ID != "abc" {
		t.Errorf("response = %+v", out)
	}
	if f.inq.last.RegionID != config.DefaultRegionID || f.inq.last.Command != "jita" {
		t.Errorf("request = %+v", f.inq.last)
	}
}

func TestHandlePrice_UnknownCommand(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(http.MethodGet, "/api/price/amarr?q=x", ""); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandlePrice_CatalogError(t *testing.T) {
	f := newFixture(t)
	f.inq.err = sde.ErrCatalogUnavailable
	if rec := f.do(http.MethodGet, "/api/price/jita?q=x", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestHandleSearch(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		target string
		code   int
		ids    []int32
	}{
		{"/api/search?q=tri", 200, []int32{34}},
		{"/api/search?q=%E7%B1%BB", 200, []int32{35, 36}},
		{"/api/search?q=%E7%B1%BB&limit=1", 200, []int32{35}},
		{"/api/search?q=", 200, []int32{}},
		{"/api/search?q=x&limit=-1", 400, nil},
		{"/api/search?q=x&limit=abc", 400, nil},
	}
	for _, tt := range tests {
		rec := f.do(http.MethodGet, tt.target, "")
		if rec.Code != tt.code {
			t.Errorf("%s: status = %d, want %d", tt.target, rec.Code, tt.code)
			continue
		}
		if tt.code != 200 {
			continue
		}
		var hits []searchHit
		if err := stdjson.NewDecoder(rec.Body).Decode(&hits); err != nil {
			t.Fatalf("%s: decode: %v", tt.target, err)
		}
		if len(hits) != len(tt.ids) {
			t.Errorf("%s: hits = %v, want ids %v", tt.target, hits, tt.ids)
			continue
		}
		for i, h := range hits {
			if h.ID != tt.ids[i] {
				t.Errorf("%s: hits[%d].ID = %d, want %d", tt.target, i, h.ID, tt.ids[i])
			}
		}
	}
}

func TestHandleSearch_CatalogError(t *testing.T) {
	f := newFixture(t)
	f.srv.catalogs = fakeCatalogs{err: errors.New("gone")}
	if rec := f.do(http.MethodGet, "/api/search?q=tri", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestHandleGetConfig_ReturnsLiveOptions(t *testing.T) {
	f := newFixture(t)
	f.inq.opts.MaxSearch = 42

	rec := f.do(http.MethodGet, "/api/config", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var out config.Config
	if err := stdjson.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if out.MaxSearch != 42 || len(out.PriceCommands) != 1 || out.PriceCommands[0].Command != "jita" {
		t.Errorf("config = %+v", out)
	}
	if strings.Contains(rec.Body.String(), "esi") {
		t.Errorf("config leaks transport settings: %s", rec.Body.String())
	}
}

func TestHandleSetConfig(t *testing.T) {
	f := newFixture(t)

	body := `{"maxSearch": 5, "customSpecialFields": [{"monitoringContent":"hi","response":"hello"}],
		"customPriceInquiryInstructionsAndLocation": [{"command":"jita","location":10000002},{"command":"amarr","location":10000043}]}`
	rec := f.do(http.MethodPost, "/api/config", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if f.inq.opts.MaxSearch != 5 || len(f.inq.opts.SpecialFields) != 1 {
		t.Errorf("options = %+v", f.inq.opts)
	}
	if f.store.saved == nil || f.store.saved.MaxSearch != 5 {
		t.Errorf("saved = %+v", f.store.saved)
	}
	if rec := f.do(http.MethodGet, "/api/price/amarr?q=x", ""); rec.Code != http.StatusOK {
		t.Errorf("new command status = %d, want 200", rec.Code)
	}
	if f.inq.last.RegionID != 10000043 {
		t.Errorf("RegionID = %d, want 10000043", f.inq.last.RegionID)
	}
}

func TestHandleSetConfig_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"unknown field", `{"theme":"dark"}`},
		{"wrong type", `{"maxSearch":"ten"}`},
		{"fails validation", `{"maxSearch":0}`},
		{"duplicate command", `{"customPriceInquiryInstructionsAndLocation":[{"command":"a","location":1},{"command":"a","location":2}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if rec := f.do(http.MethodPost, "/api/config", tt.body); rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if f.store.saved != nil {
				t.Error("rejected config was saved")
			}
			if f.inq.opts.MaxSearch != 10 {
				t.Errorf("options changed: %+v", f.inq.opts)
			}
		})
	}
}

func TestHandleSetConfig_SaveFailureKeepsOldConfig(t *testing.T) {
	f := newFixture(t)
	f.store.err = errors.New("disk full")

	if rec := f.do(http.MethodPost, "/api/config", `{"maxSearch":3}`); rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if f.inq.opts.MaxSearch != 10 {
		t.Errorf("MaxSearch = %d, want 10", f.inq.opts.MaxSearch)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(http.MethodGet, "/api/status", "")
	rec := f.do(http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "eve_jita_price_http_request_duration_seconds") {
		t.Error("missing HTTP duration histogram")
	}
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodOptions, "/api/config", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}
