package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/netval-app/netval/internal/testutil"
	"github.com/netval-app/netval/pkg/jobs"
	"github.com/netval-app/netval/pkg/model"
	"github.com/netval-app/netval/pkg/remediate"
	"github.com/netval-app/netval/pkg/settings"
	"github.com/netval-app/netval/pkg/sshio"
	"github.com/netval-app/netval/pkg/store"
	"github.com/netval-app/netval/pkg/vault"
)

// newTestServer wires a full Server over an in-memory store and vault.
// The AI bridge points at a closed port so probes fail fast.
func newTestServer(t *testing.T) (http.Handler, *store.Store, *testutil.Campus) {
	t.Helper()
	st := testutil.OpenStore(t)
	c := testutil.SeedCampus(t, st)

	cfg := settings.Defaults()
	cfg.AI.BaseURL = "http://127.0.0.1:1"

	v := vault.NewMemory()
	ssh := sshio.NewService(st, v, sshio.NewPool(2, nil))
	jm := jobs.NewManager(st, jobs.NewHub())
	t.Cleanup(func() { jm.Shutdown(testutil.Context(t)) })
	remedy := remediate.NewEngine(st, ssh, 0)

	srv := New(cfg, st, v, jm, ssh, remedy)
	return srv.Handler(), st, c
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	h, _, _ := newTestServer(t)
	rec := doJSON(t, h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Status          string `json:"status"`
		OllamaAvailable bool   `json:"ollama_available"`
	}
	decode(t, rec, &body)
	if body.Status != "ok" || body.OllamaAvailable {
		t.Errorf("body = %+v", body)
	}
}

func TestProjectRoutes(t *testing.T) {
	h, _, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/projects", map[string]string{
		"name": "Branch 12", "description": "refresh",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("create = %d: %s", rec.Code, rec.Body)
	}
	var p model.Project
	decode(t, rec, &p)
	if p.ID == "" || p.Name != "Branch 12" {
		t.Errorf("project = %+v", p)
	}

	if rec := doJSON(t, h, http.MethodGet, "/api/v1/projects/"+p.ID, nil); rec.Code != http.StatusOK {
		t.Errorf("get = %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodGet, "/api/v1/projects/nope", nil); rec.Code != http.StatusNotFound {
		t.Errorf("get missing = %d, want 404", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodPost, "/api/v1/projects", map[string]string{"name": ""}); rec.Code != http.StatusBadRequest {
		t.Errorf("empty name = %d, want 400", rec.Code)
	}
	// Unknown fields are rejected by the strict decoder.
	if rec := doJSON(t, h, http.MethodPost, "/api/v1/projects", map[string]string{"name": "x", "extra": "y"}); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown field = %d, want 400", rec.Code)
	}

	if rec := doJSON(t, h, http.MethodDelete, "/api/v1/projects/"+p.ID, nil); rec.Code != http.StatusOK {
		t.Errorf("delete = %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodDelete, "/api/v1/projects/"+p.ID, nil); rec.Code != http.StatusNotFound {
		t.Errorf("double delete = %d, want 404", rec.Code)
	}
}

func TestDeviceRoutes(t *testing.T) {
	h, _, c := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/projects/"+c.ProjectID+"/devices", map[string]any{
		"hostname": "dist1", "role": "switch", "management_ip": "10.0.0.9",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("create = %d: %s", rec.Code, rec.Body)
	}
	var d model.Device
	decode(t, rec, &d)
	if d.Vendor != "cisco" || d.Platform != "ios-xe" {
		t.Errorf("defaults = %+v", d)
	}

	// Detail route must win over the list-by-project route.
	rec = doJSON(t, h, http.MethodGet, "/api/v1/devices/detail/"+d.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("detail = %d", rec.Code)
	}
	var got model.Device
	decode(t, rec, &got)
	if got.ID != d.ID {
		t.Errorf("detail returned %s", got.ID)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/devices/"+c.ProjectID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list = %d", rec.Code)
	}
	var list []model.Device
	decode(t, rec, &list)
	if len(list) != 5 {
		t.Errorf("devices = %d, want seeded 4 plus 1", len(list))
	}

	rec = doJSON(t, h, http.MethodPut, "/api/v1/devices/"+d.ID, map[string]any{"hostname": "dist1-renamed"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update = %d: %s", rec.Code, rec.Body)
	}
	decode(t, rec, &got)
	if got.Hostname != "dist1-renamed" {
		t.Errorf("hostname = %q", got.Hostname)
	}

	if rec := doJSON(t, h, http.MethodDelete, "/api/v1/devices/"+d.ID, nil); rec.Code != http.StatusOK {
		t.Errorf("delete = %d", rec.Code)
	}
}

func TestCredentialRoutes(t *testing.T) {
	h, st, c := newTestServer(t)
	ctx := testutil.Context(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/devices/"+c.Core.ID+"/credentials", map[string]string{
		"username": "admin", "password": "secret",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("set = %d: %s", rec.Code, rec.Body)
	}
	var body struct {
		CredentialRef string `json:"credential_ref"`
	}
	decode(t, rec, &body)
	if body.CredentialRef == "" {
		t.Fatal("no credential ref returned")
	}
	d, _ := st.GetDevice(ctx, c.Core.ID)
	if d.CredentialRef != body.CredentialRef {
		t.Error("ref not persisted on device")
	}

	// Replacing mints a new ref.
	rec = doJSON(t, h, http.MethodPost, "/api/v1/devices/"+c.Core.ID+"/credentials", map[string]string{
		"username": "admin2", "password": "rotated",
	})
	var second struct {
		CredentialRef string `json:"credential_ref"`
	}
	decode(t, rec, &second)
	if second.CredentialRef == body.CredentialRef {
		t.Error("ref not rotated on replace")
	}

	if rec := doJSON(t, h, http.MethodPost, "/api/v1/devices/"+c.Core.ID+"/credentials", map[string]string{"password": "x"}); rec.Code != http.StatusBadRequest {
		t.Errorf("missing username = %d, want 400", rec.Code)
	}

	if rec := doJSON(t, h, http.MethodDelete, "/api/v1/devices/"+c.Core.ID+"/credentials", nil); rec.Code != http.StatusOK {
		t.Errorf("delete = %d", rec.Code)
	}
	d, _ = st.GetDevice(ctx, c.Core.ID)
	if d.CredentialRef != "" {
		t.Error("ref survives credential delete")
	}
}

func TestConfigRoutes(t *testing.T) {
	h, st, c := newTestServer(t)
	ctx := testutil.Context(t)

	// JSON body upload.
	rec := doJSON(t, h, http.MethodPost, "/api/v1/devices/"+c.Core.ID+"/upload-config", map[string]string{
		"content": testutil.CoreConfig,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("upload = %d: %s", rec.Code, rec.Body)
	}
	var out struct {
		Snapshot model.ConfigSnapshot `json:"snapshot"`
		Parsed   model.DeviceConfig   `json:"parsed"`
	}
	decode(t, rec, &out)
	if out.Snapshot.Source != model.SourceUpload || out.Parsed.Hostname != "core1" {
		t.Errorf("upload out = %+v", out)
	}
	d, _ := st.GetDevice(ctx, c.Core.ID)
	if len(d.Interfaces) != 3 || len(d.Vlans) != 2 {
		t.Errorf("materialized %d interfaces, %d vlans", len(d.Interfaces), len(d.Vlans))
	}

	// Multipart upload.
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "access1.cfg")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(testutil.AccessConfig))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/devices/"+c.Access.ID+"/upload-config", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	mrec := httptest.NewRecorder()
	h.ServeHTTP(mrec, req)
	if mrec.Code != http.StatusOK {
		t.Fatalf("multipart upload = %d: %s", mrec.Code, mrec.Body)
	}

	// Latest config round trip.
	rec = doJSON(t, h, http.MethodGet, "/api/v1/configs/"+c.Core.ID+"/latest", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("latest = %d", rec.Code)
	}
	var snap model.ConfigSnapshot
	decode(t, rec, &snap)
	if snap.RawConfig != testutil.CoreConfig {
		t.Error("latest config mismatch")
	}

	if rec := doJSON(t, h, http.MethodPost, "/api/v1/configs/"+c.Core.ID, map[string]string{"content": "  "}); rec.Code != http.StatusBadRequest {
		t.Errorf("empty content = %d, want 400", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodGet, "/api/v1/configs/"+c.WLC.ID+"/latest", nil); rec.Code != http.StatusNotFound {
		t.Errorf("no snapshots = %d, want 404", rec.Code)
	}
}

// waitForJob polls the job route until the job is terminal.
func waitForJob(t *testing.T, h http.Handler, jobID string) *model.Job {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for {
		rec := doJSON(t, h, http.MethodGet, "/api/v1/jobs/"+jobID, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("get job = %d", rec.Code)
		}
		var j model.Job
		decode(t, rec, &j)
		if j.Status.Terminal() {
			return &j
		}
		if time.Now().After(deadline) {
			t.Fatalf("job %s never finished", jobID)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestValidateAndRemediateFlow(t *testing.T) {
	h, _, c := newTestServer(t)

	doJSON(t, h, http.MethodPost, "/api/v1/devices/"+c.Core.ID+"/upload-config", map[string]string{"content": testutil.CoreConfig})
	doJSON(t, h, http.MethodPost, "/api/v1/devices/"+c.Access.ID+"/upload-config", map[string]string{"content": testutil.AccessConfig})

	// No plan yet: remediate before any simulation is a 404.
	if rec := doJSON(t, h, http.MethodPost, "/api/v1/projects/"+c.ProjectID+"/remediate", nil); rec.Code != http.StatusNotFound {
		t.Errorf("premature remediate = %d, want 404", rec.Code)
	}

	rec := doJSON(t, h, http.MethodPost, "/api/v1/projects/"+c.ProjectID+"/validate", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("validate = %d: %s", rec.Code, rec.Body)
	}
	var started struct {
		JobID string `json:"job_id"`
	}
	decode(t, rec, &started)

	job := waitForJob(t, h, started.JobID)
	if job.Status != model.JobComplete {
		t.Fatalf("job = %+v", job)
	}
	var audit struct {
		Findings []map[string]any `json:"findings"`
		Summary  struct {
			TotalChecks int `json:"total_checks"`
			Failed      int `json:"failed"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(job.Result, &audit); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if audit.Summary.TotalChecks != 8 || audit.Summary.Failed == 0 {
		t.Errorf("summary = %+v", audit.Summary)
	}

	// Build a plan from the simulation findings.
	rec = doJSON(t, h, http.MethodPost, "/api/v1/projects/"+c.ProjectID+"/remediate", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("remediate = %d: %s", rec.Code, rec.Body)
	}
	var plan model.RemediationPlan
	decode(t, rec, &plan)
	if plan.Status != model.PlanPending || len(plan.Items) == 0 {
		t.Fatalf("plan = %+v", plan)
	}

	// Apply without confirmation is refused before anything happens.
	rec = doJSON(t, h, http.MethodPost, "/api/v1/projects/"+c.ProjectID+"/apply", map[string]any{"confirm": false})
	if rec.Code != http.StatusConflict {
		t.Errorf("unconfirmed apply = %d, want 409", rec.Code)
	}

	// Untick one item, approve the plan.
	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/v1/plans/%s/items/0", plan.ID), map[string]any{"approved": false})
	if rec.Code != http.StatusOK {
		t.Fatalf("untick = %d: %s", rec.Code, rec.Body)
	}
	decode(t, rec, &plan)
	if plan.Items[0].Approved {
		t.Error("item still approved")
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/plans/"+plan.ID+"/approve", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve = %d: %s", rec.Code, rec.Body)
	}
	decode(t, rec, &plan)
	if plan.Status != model.PlanApproved {
		t.Errorf("status = %q", plan.Status)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/projects/"+c.ProjectID+"/plan", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("latest plan = %d", rec.Code)
	}
}

func TestGenerateCLI(t *testing.T) {
	h, _, c := newTestServer(t)
	doJSON(t, h, http.MethodPost, "/api/v1/devices/"+c.Core.ID+"/upload-config", map[string]string{"content": testutil.CoreConfig})

	first := doJSON(t, h, http.MethodPost, "/api/v1/projects/"+c.ProjectID+"/generate-cli", nil)
	if first.Code != http.StatusOK {
		t.Fatalf("generate = %d: %s", first.Code, first.Body)
	}
	var out struct {
		Configs map[string]string `json:"configs"`
	}
	decode(t, first, &out)
	if !strings.Contains(out.Configs["core1"], "hostname core1") {
		t.Errorf("core1 config missing hostname:\n%s", out.Configs["core1"])
	}

	second := doJSON(t, h, http.MethodPost, "/api/v1/projects/"+c.ProjectID+"/generate-cli", nil)
	if first.Body.String() != second.Body.String() {
		t.Error("generate-cli output not deterministic")
	}
}

func TestAIRoutes(t *testing.T) {
	h, _, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/ai/settings", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get settings = %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/ai/models/openai", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("hosted models = %d", rec.Code)
	}
	var models struct {
		Models []string `json:"models"`
	}
	decode(t, rec, &models)
	if len(models.Models) == 0 {
		t.Error("empty hosted catalog")
	}

	if rec := doJSON(t, h, http.MethodGet, "/api/v1/ai/models/skynet", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown provider = %d, want 400", rec.Code)
	}
	// The configured ollama endpoint is down.
	if rec := doJSON(t, h, http.MethodGet, "/api/v1/ai/models/ollama", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("ollama down = %d, want 503", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	h, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("allow-origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("foreign origin allowed")
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/projects", nil)
	req.Header.Set("Origin", "app://netval")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight = %d, want 204", rec.Code)
	}
}
