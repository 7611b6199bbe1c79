package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/pipeline"
	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/tradedoc"
)

func newTestServer(t *testing.T) (*httptest.Server, *Service, *fakeStore) {
	t.Helper()
	svc, fs, _ := newTestService(t)
	server := httptest.NewServer(NewHTTPServer(svc, "*").Handler())
	t.Cleanup(server.Close)
	return server, svc, fs
}

func sessionToken(t *testing.T, svc *Service, fs *fakeStore, role string) string {
	t.Helper()
	id := "usr_" + role
	seedUser(fs, id, "Jiyoon Park", role)
	session, err := svc.CreateSession(t.Context(), id)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return session.Token
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func decodeResponse(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return payload
}

func TestHealthEndpoint(t *testing.T) {
	server, _, _ := newTestServer(t)
	resp, err := http.Get(server.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	payload := decodeResponse(t, resp)
	if payload["ok"] != true {
		t.Fatalf("payload = %v", payload)
	}
}

func TestRequireSession(t *testing.T) {
	server, _, _ := newTestServer(t)
	resp, err := http.Get(server.URL + "/api/buyers")
	if err != nil {
		t.Fatalf("GET buyers: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestBuyerEndpoints(t *testing.T) {
	server, svc, fs := newTestServer(t)
	token := sessionToken(t, svc, fs, "sales")

	resp := doJSON(t, http.MethodPost, server.URL+"/api/buyers", token, BuyerInput{
		Company: "Nordlicht Kosmetik GmbH",
		Country: "DE",
		Channel: "exhibition",
		Grade:   "A",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	created := decodeResponse(t, resp)
	buyerID, _ := created["id"].(string)
	if buyerID == "" {
		t.Fatalf("missing id in %v", created)
	}

	resp = doJSON(t, http.MethodGet, server.URL+"/api/buyers/"+buyerID, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	got := decodeResponse(t, resp)
	if got["company"] != "Nordlicht Kosmetik GmbH" {
		t.Fatalf("company = %v", got["company"])
	}

	resp = doJSON(t, http.MethodGet, server.URL+"/api/buyers/byr_missing", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing buyer status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestViewerCannotWrite(t *testing.T) {
	server, svc, fs := newTestServer(t)
	token := sessionToken(t, svc, fs, "viewer")

	resp := doJSON(t, http.MethodPost, server.URL+"/api/buyers", token, BuyerInput{Company: "Glow Imports"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
	payload := decodeResponse(t, resp)
	if payload["code"] != "FORBIDDEN" {
		t.Fatalf("code = %v", payload["code"])
	}
}

func TestSalesCannotDeleteBuyer(t *testing.T) {
	server, svc, fs := newTestServer(t)
	token := sessionToken(t, svc, fs, "sales")
	buyer, _ := seedProject(fs, string(pipeline.StageLead))

	resp := doJSON(t, http.MethodDelete, server.URL+"/api/buyers/"+buyer.ID, token, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestGateEndpoint(t *testing.T) {
	server, svc, fs := newTestServer(t)
	token := sessionToken(t, svc, fs, "manager")
	_, project := seedProject(fs, string(pipeline.StageSampleReview))

	resp := doJSON(t, http.MethodPost, server.URL+"/api/projects/"+project.ID+"/gate", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	payload := decodeResponse(t, resp)
	if payload["passed"] != false {
		t.Fatalf("empty doc set should fail the gate: %v", payload)
	}

	resp = doJSON(t, http.MethodGet, server.URL+"/api/projects/"+project.ID+"/gate/runs", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("runs status = %d", resp.StatusCode)
	}
	runs := decodeResponse(t, resp)
	if list, ok := runs["runs"].([]any); !ok || len(list) != 1 {
		t.Fatalf("runs payload = %v", runs)
	}
}

func TestAdvanceBlockedEndpoint(t *testing.T) {
	server, svc, fs := newTestServer(t)
	token := sessionToken(t, svc, fs, "manager")
	_, project := seedProject(fs, string(pipeline.StageSampleReview))

	resp := doJSON(t, http.MethodPost, server.URL+"/api/projects/"+project.ID+"/advance", token, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
	payload := decodeResponse(t, resp)
	if payload["code"] != "STAGE_BLOCKED" {
		t.Fatalf("code = %v", payload["code"])
	}
	details, _ := payload["details"].(map[string]any)
	if details["findings"] == nil {
		t.Fatalf("expected findings in details: %v", payload)
	}
}

func TestViewerCannotAdvance(t *testing.T) {
	server, svc, fs := newTestServer(t)
	token := sessionToken(t, svc, fs, "viewer")
	_, project := seedProject(fs, string(pipeline.StageLead))

	resp := doJSON(t, http.MethodPost, server.URL+"/api/projects/"+project.ID+"/advance", token, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestDocumentEndpoints(t *testing.T) {
	server, svc, fs := newTestServer(t)
	token := sessionToken(t, svc, fs, "sales")
	_, project := seedProject(fs, string(pipeline.StageSampleReview))

	resp := doJSON(t, http.MethodPut, server.URL+"/api/projects/"+project.ID+"/documents/sample_pi", token, saveDocumentBody{
		Fields: tradedoc.Fields{Currency: "USD", Incoterms: "FOB"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put status = %d", resp.StatusCode)
	}
	saved := decodeResponse(t, resp)
	if saved["docKey"] != "sample_pi" {
		t.Fatalf("docKey = %v", saved["docKey"])
	}

	resp = doJSON(t, http.MethodPut, server.URL+"/api/projects/"+project.ID+"/documents/love_letter", token, saveDocumentBody{})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("bad key status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, server.URL+"/api/projects/"+project.ID+"/documents", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	list := decodeResponse(t, resp)
	if docs, ok := list["documents"].([]any); !ok || len(docs) != 1 {
		t.Fatalf("documents payload = %v", list)
	}

	resp = doJSON(t, http.MethodGet, server.URL+"/api/projects/"+project.ID+"/documents/sample_pi/history", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history status = %d", resp.StatusCode)
	}
	commits := decodeResponse(t, resp)
	if c, ok := commits["commits"].([]any); !ok || len(c) != 1 {
		t.Fatalf("commits payload = %v", commits)
	}
}

func TestExportUnavailable(t *testing.T) {
	server, svc, fs := newTestServer(t)
	token := sessionToken(t, svc, fs, "manager")
	_, project := seedProject(fs, string(pipeline.StageBulkContract))

	resp := doJSON(t, http.MethodPost, server.URL+"/api/projects/"+project.ID+"/export/final_pi", token, nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
	payload := decodeResponse(t, resp)
	if payload["code"] != "EXPORT_UNAVAILABLE" {
		t.Fatalf("code = %v", payload["code"])
	}
}

func TestAssistantUnavailable(t *testing.T) {
	server, svc, fs := newTestServer(t)
	token := sessionToken(t, svc, fs, "sales")

	resp := doJSON(t, http.MethodPost, server.URL+"/api/assistant/regulatory", token, map[string]string{"country": "US"})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
	resp.Body.Close()
}
