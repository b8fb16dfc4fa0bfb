package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"tomobs/internal/facility"
	"tomobs/internal/facility/facilitytest"
	"tomobs/internal/models"
	"tomobs/internal/repository"
	"tomobs/internal/service"
	"tomobs/internal/storage"
	"tomobs/internal/testdb"
	"tomobs/internal/thumbnail"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
)

type testServer struct {
	engine  *gin.Engine
	lco     *facilitytest.Facility
	obsRepo repository.ObservationRepository
	target  *models.Target
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testdb.Open(t)
	lco := facilitytest.New("LCO", "101", "102")
	registry := facility.NewRegistry(lco, facilitytest.New("GEM", "g1"))

	obsRepo := repository.NewObservationRepository(db)
	targetRepo := repository.NewTargetRepository(db)
	productRepo := repository.NewDataProductRepository(db)

	store, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	observations := service.NewObservationService(registry, obsRepo, targetRepo)
	products := service.NewDataProductService(productRepo, repository.NewGroupRepository(db), targetRepo, obsRepo, nil, store,
		service.DataProductConfig{Thumbnail: thumbnail.Renderer{MaxWidth: 64, MaxHeight: 64}})
	targets := service.NewTargetService(targetRepo, observations, products)

	r := gin.New()
	RegisterRoutes(r.Group("/api/v1"), Handlers{
		Observations: NewObservationHandler(observations, service.NewStatusService(registry, obsRepo), "/api/v1"),
		DataProducts: NewDataProductHandler(products),
		Targets:      NewTargetHandler(targets),
		System: NewSystemHandler(map[string]Counter{
			"targets":      targetRepo,
			"observations": obsRepo,
			"dataproducts": productRepo,
		}, nil, registry.Names),
	})

	target := &models.Target{Identifier: "M42", Name: "Orion Nebula"}
	if err := targetRepo.Create(context.Background(), target); err != nil {
		t.Fatal(err)
	}
	return &testServer{engine: r, lco: lco, obsRepo: obsRepo, target: target}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) get(path string) *httptest.ResponseRecorder {
	return s.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (s *testServer) postForm(path string, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req)
}

func (s *testServer) targetID() string {
	return strconv.Itoa(int(s.target.ID))
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestSubmitObservation(t *testing.T) {
	s := newTestServer(t)

	w := s.postForm("/api/v1/observations/create/LCO", url.Values{
		"target_id": {s.targetID()},
		"exposure":  {"30"},
	})
	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if loc := w.Header().Get("Location"); loc != "/api/v1/targets/"+s.targetID() {
		t.Errorf("Location = %q", loc)
	}

	records, err := s.obsRepo.ListByTarget(context.Background(), s.target.ID)
	if err != nil || len(records) != 2 {
		t.Fatalf("records = %d, %v", len(records), err)
	}
}

func TestSubmitObservationErrors(t *testing.T) {
	withTarget := func(s *testServer, values url.Values) url.Values {
		values.Set("target_id", s.targetID())
		return values
	}

	tests := []struct {
		name       string
		path       string
		values     func(*testServer) url.Values
		setup      func(*testServer)
		wantStatus int
		wantField  string
	}{
		{
			name:       "missing target id",
			path:       "/api/v1/observations/create/LCO",
			values:     func(*testServer) url.Values { return url.Values{"exposure": {"30"}} },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed target id",
			path:       "/api/v1/observations/create/LCO",
			values:     func(*testServer) url.Values { return url.Values{"target_id": {"M42"}, "exposure": {"30"}} },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown target",
			path:       "/api/v1/observations/create/LCO",
			values:     func(*testServer) url.Values { return url.Values{"target_id": {"999"}, "exposure": {"30"}} },
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "unknown facility",
			path:       "/api/v1/observations/create/KECK",
			values:     func(s *testServer) url.Values { return withTarget(s, url.Values{"exposure": {"30"}}) },
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "unknown facility without target id",
			path:       "/api/v1/observations/create/KECK",
			values:     func(*testServer) url.Values { return url.Values{"exposure": {"30"}} },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid form",
			path:       "/api/v1/observations/create/LCO",
			values:     func(s *testServer) url.Values { return withTarget(s, url.Values{"exposure": {"0"}}) },
			wantStatus: http.StatusBadRequest,
			wantField:  "exposure",
		},
		{
			name:       "facility failure",
			path:       "/api/v1/observations/create/LCO",
			values:     func(s *testServer) url.Values { return withTarget(s, url.Values{"exposure": {"30"}}) },
			setup:      func(s *testServer) { s.lco.SubmitErr = errors.New("portal down") },
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			if tt.setup != nil {
				tt.setup(s)
			}

			w := s.postForm(tt.path, tt.values(s))
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body = %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantField != "" {
				var resp ErrorResponse
				decode(t, w, &resp)
				if resp.Fields[tt.wantField] == "" {
					t.Errorf("fields = %v, want %q", resp.Fields, tt.wantField)
				}
			}
			if count, _ := s.obsRepo.Count(context.Background()); count != 0 {
				t.Errorf("records created on failure: %d", count)
			}
		})
	}
}

func TestNewSubmission(t *testing.T) {
	s := newTestServer(t)

	if w := s.get("/api/v1/observations/create/LCO"); w.Code != http.StatusBadRequest {
		t.Errorf("without target_id status = %d, want 400", w.Code)
	}
	if w := s.get("/api/v1/observations/create/KECK"); w.Code != http.StatusBadRequest {
		t.Errorf("unknown facility without target_id status = %d, want 400", w.Code)
	}

	w := s.get("/api/v1/observations/create/LCO?target_id=" + s.targetID())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var sub service.Submission
	decode(t, w, &sub)
	if sub.Facility != "LCO" || sub.TargetID != s.target.ID || len(sub.Fields) == 0 {
		t.Errorf("submission = %+v", sub)
	}
}

func TestManualObservation(t *testing.T) {
	s := newTestServer(t)

	w := s.get("/api/v1/observations/manual?target_id=" + s.targetID())
	if w.Code != http.StatusOK {
		t.Fatalf("GET status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"choices":["GEM","LCO"]`) {
		t.Errorf("facility choices missing: %s", w.Body.String())
	}

	w = s.postForm("/api/v1/observations/manual", url.Values{
		"target_id":      {s.targetID()},
		"facility":       {"GEM"},
		"observation_id": {"GN-1"},
	})
	if w.Code != http.StatusFound {
		t.Fatalf("POST status = %d, body = %s", w.Code, w.Body.String())
	}
	if len(s.lco.Submissions) != 0 {
		t.Error("manual create contacted a facility")
	}

	w = s.postForm("/api/v1/observations/manual", url.Values{
		"target_id":      {s.targetID()},
		"facility":       {"KECK"},
		"observation_id": {"x"},
	})
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), `"facility"`) {
		t.Errorf("unknown facility: status = %d, body = %s", w.Code, w.Body.String())
	}

	w = s.postForm("/api/v1/observations/manual", url.Values{"facility": {"GEM"}, "observation_id": {"x"}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing target: status = %d", w.Code)
	}
}

func TestListObservationsFilters(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	for i, status := range []string{"PENDING", "COMPLETED", "completed"} {
		record := &models.ObservationRecord{TargetID: s.target.ID, Facility: "LCO", ObservationID: strconv.Itoa(i), Status: status}
		if err := s.obsRepo.Create(ctx, record); err != nil {
			t.Fatal(err)
		}
	}

	var resp struct {
		Count        int64                     `json:"count"`
		PageSize     int                       `json:"page_size"`
		Observations []service.ObservationItem `json:"observations"`
		Messages     []string                  `json:"messages"`
	}
	w := s.get("/api/v1/observations?status=COMPLETED")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	decode(t, w, &resp)
	if resp.Count != 1 || resp.PageSize != 100 || resp.Observations[0].ObservationID != "1" {
		t.Errorf("response = %+v", resp)
	}
	if resp.Observations[0].URL != "https://LCO.example/obs/1" {
		t.Errorf("url = %q", resp.Observations[0].URL)
	}

	if w := s.get("/api/v1/observations?target_id=abc"); w.Code != http.StatusBadRequest {
		t.Errorf("malformed target filter status = %d", w.Code)
	}
}

func TestListObservationsUpdateStatus(t *testing.T) {
	s := newTestServer(t)
	record := &models.ObservationRecord{TargetID: s.target.ID, Facility: "LCO", ObservationID: "101", Status: "PENDING"}
	if err := s.obsRepo.Create(context.Background(), record); err != nil {
		t.Fatal(err)
	}
	s.lco.Statuses["101"] = "COMPLETED"

	w := s.get("/api/v1/observations?update_status=1&facility=LCO")
	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/api/v1/observations" {
		t.Errorf("Location = %q, want the unfiltered list", loc)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/observations", nil)
	for _, cookie := range w.Result().Cookies() {
		req.AddCookie(cookie)
	}
	w = s.do(req)

	var resp struct {
		Observations []service.ObservationItem `json:"observations"`
		Messages     []string                  `json:"messages"`
	}
	decode(t, w, &resp)
	if len(resp.Messages) != 1 {
		t.Fatalf("messages = %v", resp.Messages)
	}
	for _, want := range []string{`Updated LCO observation 101: "PENDING" -> "COMPLETED"`, "1 updated, 0 failed"} {
		if !strings.Contains(resp.Messages[0], want) {
			t.Errorf("message %q does not contain %q", resp.Messages[0], want)
		}
	}
	if resp.Observations[0].Status != "COMPLETED" {
		t.Errorf("status = %q", resp.Observations[0].Status)
	}
}

func TestStatusMessage(t *testing.T) {
	short := "Updated LCO observation 1: \"PENDING\" -> \"COMPLETED\"\nChecked 1 observation(s): 1 updated, 0 failed\n"
	if got := statusMessage(short, 1500); got != strings.TrimSuffix(short, "\n") {
		t.Errorf("short output changed: %q", got)
	}

	var b strings.Builder
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&b, "Failed to update LCO observation %d: timeout\n", i)
	}
	b.WriteString("Checked 10 observation(s): 0 updated, 10 failed\n")

	got := statusMessage(b.String(), 150)
	lines := strings.Split(got, "\n")
	if lines[0] != "Failed to update LCO observation 0: timeout" {
		t.Errorf("first line = %q", lines[0])
	}
	if last := lines[len(lines)-1]; last != "Checked 10 observation(s): 0 updated, 10 failed" {
		t.Errorf("summary line = %q", last)
	}
	if more := lines[len(lines)-2]; more != fmt.Sprintf("... %d more", 10-(len(lines)-2)) {
		t.Errorf("tail = %q, lines = %d", more, len(lines))
	}
}

func TestExportObservations(t *testing.T) {
	s := newTestServer(t)

	w := s.get("/api/v1/observations/export?format=csv")
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "text/csv" {
		t.Errorf("csv export: status = %d, type = %q", w.Code, w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "observations.csv") {
		t.Errorf("Content-Disposition = %q", w.Header().Get("Content-Disposition"))
	}

	if w := s.get("/api/v1/observations/export?format=pdf"); w.Code != http.StatusBadRequest {
		t.Errorf("pdf export status = %d", w.Code)
	}
}

func (s *testServer) upload(t *testing.T, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("target_id", s.targetID())
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/dataproducts", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return s.do(req)
}

func TestDataProductEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := s.upload(t, "notes.txt", "plain text")
	if w.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body = %s", w.Code, w.Body.String())
	}
	var product models.DataProduct
	decode(t, w, &product)
	if product.Data != "M42/none/notes.txt" {
		t.Errorf("Data = %q", product.Data)
	}
	id := strconv.Itoa(int(product.ID))

	if w := s.get("/api/v1/dataproducts/" + id + "/thumbnail"); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("thumbnail of text file status = %d, want 422", w.Code)
	}
	if w := s.get("/api/v1/dataproducts/999/thumbnail"); w.Code != http.StatusNotFound {
		t.Errorf("thumbnail of missing product status = %d, want 404", w.Code)
	}

	w = s.get("/api/v1/dataproducts?target=M42")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"count":1`) {
		t.Errorf("list: status = %d, body = %s", w.Code, w.Body.String())
	}

	w = s.postForm("/api/v1/dataproducts/groups", url.Values{"name": {"Best"}})
	if w.Code != http.StatusCreated {
		t.Fatalf("create group status = %d", w.Code)
	}
	var group models.DataProductGroup
	decode(t, w, &group)

	w = s.postForm("/api/v1/dataproducts/groups/add", url.Values{
		"products": {id},
		"group":    {strconv.Itoa(int(group.ID))},
	})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Added 1 data product(s) to group Best") {
		t.Errorf("add to group: status = %d, body = %s", w.Code, w.Body.String())
	}

	w = s.postForm("/api/v1/dataproducts/groups/add", url.Values{"products": {"999"}, "group": {strconv.Itoa(int(group.ID))}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown product status = %d", w.Code)
	}

	if w := s.do(httptest.NewRequest(http.MethodDelete, "/api/v1/dataproducts/"+id, nil)); w.Code != http.StatusOK {
		t.Errorf("delete status = %d", w.Code)
	}
	if w := s.get("/api/v1/dataproducts/" + id); w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d", w.Code)
	}
}

func TestUploadRequiresFile(t *testing.T) {
	s := newTestServer(t)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("target_id", s.targetID())
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/dataproducts", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := s.do(req)
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), `"file"`) {
		t.Errorf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestTargetAndSystemEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := s.postForm("/api/v1/targets", url.Values{"identifier": {"M31"}, "name": {"Andromeda"}, "ra": {"10.68"}, "dec": {"41.27"}})
	if w.Code != http.StatusCreated {
		t.Fatalf("create target status = %d, body = %s", w.Code, w.Body.String())
	}
	w = s.postForm("/api/v1/targets", url.Values{"identifier": {"M33"}, "name": {"Triangulum"}, "dec": {"95"}})
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), `"dec"`) {
		t.Errorf("invalid dec: status = %d, body = %s", w.Code, w.Body.String())
	}

	if w := s.get("/api/v1/targets/" + s.targetID()); w.Code != http.StatusOK {
		t.Errorf("get target status = %d", w.Code)
	}
	if w := s.get("/api/v1/targets/999"); w.Code != http.StatusNotFound {
		t.Errorf("missing target status = %d", w.Code)
	}

	if w := s.get("/api/v1/health"); w.Code != http.StatusOK {
		t.Errorf("health status = %d", w.Code)
	}

	w = s.get("/api/v1/system/stats")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"targets":2`) {
		t.Errorf("stats: status = %d, body = %s", w.Code, w.Body.String())
	}

	w = s.get("/api/v1/facilities")
	if !strings.Contains(w.Body.String(), `["GEM","LCO"]`) {
		t.Errorf("facilities = %s", w.Body.String())
	}
}
