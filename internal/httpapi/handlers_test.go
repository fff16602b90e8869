package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"facturia/internal/domain"
	"facturia/internal/kv"
	"facturia/internal/repository"
	"facturia/internal/service"
	"facturia/internal/settings"
	"facturia/internal/store/memory"
)

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()

	substrate := memory.New()
	repos := repository.New(kv.New(substrate))
	settingsSvc := settings.New(substrate, repos.History)
	svc := service.New(repos, settingsSvc)
	auth := NewAuthManager(testSecret, time.Hour, repos.Users)
	if _, err := auth.CreateAccount("admin", "secret-password", "admin"); err != nil {
		t.Fatalf("create account failed: %v", err)
	}

	api := New(svc, settingsSvc, auth, "http://127.0.0.1:3000")
	server := httptest.NewServer(api.Handler())
	t.Cleanup(server.Close)

	resp, err := auth.Login(domain.LoginRequest{Username: "admin", Password: "secret-password"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	return server, resp.AccessToken
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body failed: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestEndpointsRequireBearerToken(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/v1/clients")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestClientCRUDOverHTTP(t *testing.T) {
	server, token := newTestServer(t)

	created := struct {
		Client domain.Client `json:"client"`
	}{}
	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/clients", token, domain.Client{
		RaisonSocial: "ACME",
		Famille:      "Clients",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	decodeBody(t, resp, &created)
	if created.Client.ID == "" || created.Client.CodeTiers == "" {
		t.Fatalf("expected id and code tiers, got %+v", created.Client)
	}

	resp = doJSON(t, http.MethodGet, server.URL+"/api/v1/clients/"+created.Client.ID, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on get, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodDelete, server.URL+"/api/v1/clients/"+created.Client.ID, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on delete, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, server.URL+"/api/v1/clients/"+created.Client.ID, token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestDuplicateArticleRefIsConflict(t *testing.T) {
	server, token := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/articles", token, domain.Article{Ref: "A1"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, server.URL+"/api/v1/articles", token, domain.Article{Ref: "A1"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate ref, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSaleFlowOverHTTP(t *testing.T) {
	server, token := newTestServer(t)

	created := struct {
		Client domain.Client `json:"client"`
	}{}
	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/clients", token, domain.Client{RaisonSocial: "ACME"})
	decodeBody(t, resp, &created)

	resp = doJSON(t, http.MethodPost, server.URL+"/api/v1/articles", token, domain.Article{Ref: "A1", PrixVente: 100})
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, server.URL+"/api/v1/achats", token, domain.ConfirmPurchaseRequest{
		Fournisseur: "Fournisseur SARL",
		Lignes: []domain.LigneAchat{
			{Ref: "A1", Quantite: 10, Depot: "Main", PrixAchat: 60},
		},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 on purchase, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	saleResp := domain.ConfirmSaleResponse{}
	resp = doJSON(t, http.MethodPost, server.URL+"/api/v1/ventes/confirm", token, domain.ConfirmSaleRequest{
		ClientID: created.Client.ID,
		Items: []domain.SaleLine{
			{Ref: "A1", Quantite: 3, Depot: "Main", PrixVente: 100},
		},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on sale, got %d", resp.StatusCode)
	}
	decodeBody(t, resp, &saleResp)
	if saleResp.InvoiceID == "" {
		t.Fatalf("expected an invoice id")
	}

	// Oversell is a conflict.
	resp = doJSON(t, http.MethodPost, server.URL+"/api/v1/ventes/confirm", token, domain.ConfirmSaleRequest{
		ClientID: created.Client.ID,
		Items: []domain.SaleLine{
			{Ref: "A1", Quantite: 100, Depot: "Main", PrixVente: 100},
		},
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on oversell, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// The snapshot document renders from the stored facture.
	docURL := fmt.Sprintf("%s/api/v1/factures/%s/document", server.URL, saleResp.InvoiceID)
	resp = doJSON(t, http.MethodGet, docURL, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on document, got %d", resp.StatusCode)
	}
	doc := service.InvoiceDocument{}
	decodeBody(t, resp, &doc)
	if doc.Text == "" {
		t.Fatalf("expected rendered document text")
	}
}

func TestHistoryEndpointFiltersByKind(t *testing.T) {
	server, token := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/clients", token, domain.Client{RaisonSocial: "ACME"})
	resp.Body.Close()
	resp = doJSON(t, http.MethodPost, server.URL+"/api/v1/articles", token, domain.Article{Ref: "A1"})
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, server.URL+"/api/v1/history?kind=client_created", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := struct {
		History []domain.HistoryAction `json:"history"`
	}{}
	decodeBody(t, resp, &body)
	if len(body.History) != 1 || body.History[0].Kind != domain.HistoryClientCreated {
		t.Fatalf("kind filter returned %+v", body.History)
	}
}

func TestSettingsRoundTripOverHTTP(t *testing.T) {
	server, token := newTestServer(t)

	updated := struct {
		Settings domain.Settings `json:"settings"`
	}{}
	resp := doJSON(t, http.MethodPut, server.URL+"/api/v1/settings", token, domain.Settings{
		Devise:        "EUR",
		TauxTVA:       0.2,
		InvoicePrefix: "FX/25",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	decodeBody(t, resp, &updated)
	if updated.Settings.Devise != "EUR" {
		t.Fatalf("expected EUR, got %s", updated.Settings.Devise)
	}

	resp = doJSON(t, http.MethodGet, server.URL+"/api/v1/settings", token, nil)
	reread := struct {
		Settings domain.Settings `json:"settings"`
	}{}
	decodeBody(t, resp, &reread)
	if reread.Settings.InvoicePrefix != "FX/25" {
		t.Fatalf("settings not persisted: %+v", reread.Settings)
	}
}

func TestExportRequiresAdminRole(t *testing.T) {
	server, _ := newTestServer(t)

	// A plain user token signed with the same secret must not reach the
	// export endpoint.
	authOnly := NewAuthManager(testSecret, time.Hour, nil)
	if _, err := authOnly.CreateAccount("plain-user", "secret-password", "user"); err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	login, err := authOnly.Login(domain.LoginRequest{Username: "plain-user", Password: "secret-password"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	resp := doJSON(t, http.MethodGet, server.URL+"/api/v1/export", login.AccessToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for user role, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestExportImportOverHTTP(t *testing.T) {
	server, token := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/clients", token, domain.Client{RaisonSocial: "ACME"})
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, server.URL+"/api/v1/export", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on export, got %d", resp.StatusCode)
	}
	bundle := domain.ExportBundle{}
	decodeBody(t, resp, &bundle)
	if len(bundle.Clients) != 1 {
		t.Fatalf("expected one exported client, got %d", len(bundle.Clients))
	}

	resp = doJSON(t, http.MethodPost, server.URL+"/api/v1/import", token, bundle)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on import, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}
