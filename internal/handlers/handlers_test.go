package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/diewo77/go-billing/auth"
	"github.com/diewo77/go-billing/internal/billing"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/internal/services"
)

var testNow = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	seqs := []models.NumberSequence{
		{Kind: "quote", Prefix: "QUO", Padding: 4, Counter: 1, YearResetEnabled: true},
		{Kind: "invoice", Prefix: "INV", Padding: 4, Counter: 1, YearResetEnabled: true},
		{Kind: "customer", Prefix: "CUS", Padding: 6, Counter: 1},
	}
	if err := db.Create(&seqs).Error; err != nil {
		t.Fatalf("seed sequences: %v", err)
	}
	return db
}

// testAPI mounts every resource handler on a chi router without the auth
// middleware; requests carry the user id in their context instead.
func testAPI(t *testing.T) (*gorm.DB, http.Handler) {
	db := setupTestDB(t)
	svc := services.New(db, services.Options{
		Policy:           billing.Clamp,
		Currency:         "EUR",
		PaymentTermsDays: 30,
		Now:              func() time.Time { return testNow },
	})
	r := chi.NewRouter()
	r.Route("/customers", NewCustomerHandler(svc.Customers).Routes)
	r.Route("/catalog", NewCatalogHandler(svc.Catalog).Routes)
	r.Route("/quotes", NewQuoteHandler(svc.Quotes).Routes)
	r.Route("/public/quotes", NewQuoteHandler(svc.Quotes).PublicRoutes)
	r.Route("/invoices", NewInvoiceHandler(svc.Invoices).Routes)
	r.Route("/recurring", NewRecurringHandler(svc.Recurring).Routes)
	r.Route("/numbers", NewNumberHandler(svc.Numbers).Routes)
	return db, r
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Details map[string]string
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req = req.WithContext(auth.WithUserID(req.Context(), 1))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var env envelope
	if w.Code != http.StatusNoContent {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w, env
}

func into(t *testing.T, env envelope, dst any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
}

func createCustomer(t *testing.T, h http.Handler) models.Customer {
	t.Helper()
	w, env := do(t, h, http.MethodPost, "/customers", `{"name":"Acme","email":"billing@acme.test"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create customer: %d %s", w.Code, w.Body.String())
	}
	var c models.Customer
	into(t, env, &c)
	return c
}

const scenarioItems = `[
	{"description":"Consulting","quantity":2,"unit_price":"50"},
	{"description":"","quantity":9,"unit_price":9},
	{"description":"Support","quantity":"1","unit_price":100,"discount_percent":10}
]`

func TestCustomerEndpoints(t *testing.T) {
	_, h := testAPI(t)
	c := createCustomer(t, h)
	if c.Number != "CUS-000001" {
		t.Fatalf("unexpected number %q", c.Number)
	}

	w, env := do(t, h, http.MethodPost, "/customers", `{"name":" ","email":"nope"}`)
	if w.Code != http.StatusBadRequest || env.Error != "validation_failed" {
		t.Fatalf("expected validation error got %d %s", w.Code, w.Body.String())
	}
	if env.Details["name"] != "required" || env.Details["email"] == "" {
		t.Fatalf("unexpected details %v", env.Details)
	}

	w, _ = do(t, h, http.MethodDelete, fmt.Sprintf("/customers/%d", c.ID), "")
	if w.Code != http.StatusOK {
		t.Fatalf("archive: %d", w.Code)
	}
	_, env = do(t, h, http.MethodGet, "/customers", "")
	var p struct {
		Items []models.Customer `json:"items"`
		Total int64             `json:"total"`
		Limit int               `json:"limit"`
	}
	into(t, env, &p)
	if p.Total != 0 || p.Limit != defaultLimit {
		t.Fatalf("archived customer still listed: %+v", p)
	}
	_, env = do(t, h, http.MethodGet, "/customers?archived=true", "")
	into(t, env, &p)
	if p.Total != 1 {
		t.Fatalf("expected archived customer, got %+v", p)
	}

	w, env = do(t, h, http.MethodGet, "/customers/999", "")
	if w.Code != http.StatusNotFound || env.Error != "not_found" {
		t.Fatalf("expected 404 got %d %s", w.Code, w.Body.String())
	}
	w, _ = do(t, h, http.MethodGet, "/customers/abc", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id got %d", w.Code)
	}
	w, env = do(t, h, http.MethodPost, "/customers", `{"name":"x","unknown":1}`)
	if w.Code != http.StatusBadRequest || env.Error != "invalid_json" {
		t.Fatalf("unknown field accepted: %d %s", w.Code, w.Body.String())
	}
}

func TestQuoteLifecycleOverHTTP(t *testing.T) {
	_, h := testAPI(t)
	c := createCustomer(t, h)

	w, env := do(t, h, http.MethodPost, "/quotes", fmt.Sprintf(`{"customer_id":%d,"discount_percent":5,"items":%s}`, c.ID, scenarioItems))
	if w.Code != http.StatusCreated {
		t.Fatalf("create quote: %d %s", w.Code, w.Body.String())
	}
	var q models.Quote
	into(t, env, &q)
	if q.Number != "QUO-2025-0001" || len(q.Items) != 2 {
		t.Fatalf("unexpected quote %+v", q)
	}
	if !q.Subtotal.Equal(decimal.NewFromInt(190)) || !q.DiscountAmount.Equal(decimal.RequireFromString("9.5")) || !q.Total.Equal(decimal.RequireFromString("180.5")) {
		t.Fatalf("unexpected totals %s %s %s", q.Subtotal, q.DiscountAmount, q.Total)
	}

	w, env = do(t, h, http.MethodPost, fmt.Sprintf("/quotes/%d/status", q.ID), `{"status":"paid"}`)
	if w.Code != http.StatusBadRequest || env.Details["status"] != "invalid_choice" {
		t.Fatalf("expected invalid choice got %d %s", w.Code, w.Body.String())
	}
	w, _ = do(t, h, http.MethodPost, fmt.Sprintf("/quotes/%d/status", q.ID), `{"status":"accepted"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("draft -> accepted should conflict, got %d", w.Code)
	}
	w, _ = do(t, h, http.MethodPost, fmt.Sprintf("/quotes/%d/status", q.ID), `{"status":"sent"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("send: %d %s", w.Code, w.Body.String())
	}

	w, env = do(t, h, http.MethodGet, "/public/quotes/"+q.PublicToken.String(), "")
	if w.Code != http.StatusOK {
		t.Fatalf("public get: %d", w.Code)
	}
	w, _ = do(t, h, http.MethodGet, "/public/quotes/not-a-token", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("bad token should 404, got %d", w.Code)
	}
	w, env = do(t, h, http.MethodPost, "/public/quotes/"+q.PublicToken.String()+"/accept", "")
	if w.Code != http.StatusOK {
		t.Fatalf("accept: %d %s", w.Code, w.Body.String())
	}
	into(t, env, &q)
	if q.Status != models.QuoteStatusAccepted {
		t.Fatalf("expected accepted got %s", q.Status)
	}
	w, _ = do(t, h, http.MethodPost, "/public/quotes/"+q.PublicToken.String()+"/reject", "")
	if w.Code != http.StatusConflict {
		t.Fatalf("second answer should conflict, got %d", w.Code)
	}

	w, env = do(t, h, http.MethodPost, fmt.Sprintf("/quotes/%d/convert", q.ID), "")
	if w.Code != http.StatusCreated {
		t.Fatalf("convert: %d %s", w.Code, w.Body.String())
	}
	var inv models.Invoice
	into(t, env, &inv)
	if inv.Number != "INV-2025-0001" || inv.QuoteID == nil || *inv.QuoteID != q.ID || !inv.Total.Equal(q.Total) {
		t.Fatalf("unexpected invoice %+v", inv)
	}
	w, _ = do(t, h, http.MethodPost, fmt.Sprintf("/quotes/%d/convert", q.ID), "")
	if w.Code != http.StatusConflict {
		t.Fatalf("double conversion should conflict, got %d", w.Code)
	}
}

func TestInvoiceEndpoints(t *testing.T) {
	_, h := testAPI(t)
	c := createCustomer(t, h)

	w, env := do(t, h, http.MethodPost, "/invoices", fmt.Sprintf(`{"customer_id":%d,"items":[]}`, c.ID))
	if w.Code != http.StatusBadRequest || env.Details["items"] == "" {
		t.Fatalf("empty invoice accepted: %d %s", w.Code, w.Body.String())
	}

	w, env = do(t, h, http.MethodPost, "/invoices", fmt.Sprintf(`{"customer_id":%d,"items":%s}`, c.ID, scenarioItems))
	if w.Code != http.StatusCreated {
		t.Fatalf("create invoice: %d %s", w.Code, w.Body.String())
	}
	var inv models.Invoice
	into(t, env, &inv)
	if inv.Number != "INV-2025-0001" || inv.Currency != "EUR" || !inv.Total.Equal(decimal.NewFromInt(190)) {
		t.Fatalf("unexpected invoice %+v", inv)
	}
	if want := time.Date(2025, 4, 9, 0, 0, 0, 0, time.UTC); !inv.DueDate.Equal(want) {
		t.Fatalf("due date %s want %s", inv.DueDate, want)
	}

	id := inv.ID
	w, _ = do(t, h, http.MethodPost, fmt.Sprintf("/invoices/%d/status", id), `{"status":"sent"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("send: %d", w.Code)
	}
	w, env = do(t, h, http.MethodPut, fmt.Sprintf("/invoices/%d", id), fmt.Sprintf(`{"customer_id":%d,"items":%s}`, c.ID, scenarioItems))
	if w.Code != http.StatusConflict || env.Error != "document_not_editable" {
		t.Fatalf("sent invoice edited: %d %s", w.Code, w.Body.String())
	}
	w, _ = do(t, h, http.MethodPost, fmt.Sprintf("/invoices/%d/status", id), `{"status":"paid"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("pay: %d", w.Code)
	}
	_, env = do(t, h, http.MethodGet, "/invoices/revenue", "")
	var rev map[string]string
	into(t, env, &rev)
	if rev["paid_total"] != "190.00" {
		t.Fatalf("unexpected revenue %v", rev)
	}
	w, _ = do(t, h, http.MethodDelete, fmt.Sprintf("/invoices/%d", id), "")
	if w.Code != http.StatusConflict {
		t.Fatalf("paid invoice cancelled: %d", w.Code)
	}

	_, env = do(t, h, http.MethodGet, "/invoices?status=paid&limit=10", "")
	var p struct {
		Items []models.Invoice `json:"items"`
		Total int64            `json:"total"`
		Limit int              `json:"limit"`
	}
	into(t, env, &p)
	if p.Total != 1 || p.Limit != 10 || len(p.Items) != 1 {
		t.Fatalf("unexpected page %+v", p)
	}
}

func TestRecurringEndpoints(t *testing.T) {
	_, h := testAPI(t)
	c := createCustomer(t, h)

	body := fmt.Sprintf(`{"title":"Hosting","customer_id":%d,"interval":"monthly","start_date":"2025-01-31T00:00:00Z","items":%s}`, c.ID, scenarioItems)
	w, env := do(t, h, http.MethodPost, "/recurring", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create recurring: %d %s", w.Code, w.Body.String())
	}
	var rec models.RecurringInvoice
	into(t, env, &rec)

	w, env = do(t, h, http.MethodPost, fmt.Sprintf("/recurring/%d/generate", rec.ID), "")
	if w.Code != http.StatusCreated {
		t.Fatalf("generate: %d %s", w.Code, w.Body.String())
	}
	var res services.GenerateResult
	into(t, env, &res)
	if !res.Generated || res.Number != "INV-2025-0001" || !res.NextInvoiceDate.Equal(time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected result %+v", res)
	}

	w, _ = do(t, h, http.MethodPost, fmt.Sprintf("/recurring/%d/pause", rec.ID), "")
	if w.Code != http.StatusOK {
		t.Fatalf("pause: %d", w.Code)
	}
	w, env = do(t, h, http.MethodPost, fmt.Sprintf("/recurring/%d/generate", rec.ID), "")
	if w.Code != http.StatusConflict || env.Error != "schedule_not_active" {
		t.Fatalf("paused schedule generated: %d %s", w.Code, w.Body.String())
	}
	w, _ = do(t, h, http.MethodPost, fmt.Sprintf("/recurring/%d/resume", rec.ID), "")
	if w.Code != http.StatusOK {
		t.Fatalf("resume: %d", w.Code)
	}

	// 2025-02-28 is due at testNow, 2025-03-31 is not
	w, env = do(t, h, http.MethodPost, "/recurring/run", "")
	if w.Code != http.StatusOK {
		t.Fatalf("run: %d %s", w.Code, w.Body.String())
	}
	var report services.RunReport
	into(t, env, &report)
	if len(report.Invoices) != 1 || len(report.Failed) != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestNumberEndpoints(t *testing.T) {
	_, h := testAPI(t)
	w, env := do(t, h, http.MethodGet, "/numbers/invoice", "")
	var n numberResponse
	into(t, env, &n)
	if w.Code != http.StatusOK || n.Number != "INV-2025-0001" {
		t.Fatalf("peek: %d %+v", w.Code, n)
	}
	w, env = do(t, h, http.MethodPost, "/numbers/invoice", "")
	into(t, env, &n)
	if w.Code != http.StatusCreated || n.Number != "INV-2025-0001" {
		t.Fatalf("next: %d %+v", w.Code, n)
	}
	_, env = do(t, h, http.MethodPost, "/numbers/invoice", "")
	into(t, env, &n)
	if n.Number != "INV-2025-0002" {
		t.Fatalf("expected second number got %q", n.Number)
	}
	w, _ = do(t, h, http.MethodPost, "/numbers/receipt", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown kind: %d", w.Code)
	}
}

func TestCatalogEndpoints(t *testing.T) {
	_, h := testAPI(t)
	w, env := do(t, h, http.MethodPost, "/catalog", `{"code":"DEV","name":"Development","unit_price":"80","unit":"hour"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	var s models.Service
	into(t, env, &s)
	w, env = do(t, h, http.MethodPost, "/catalog", `{"code":"DEV","name":"Again","unit_price":"1"}`)
	if w.Code != http.StatusBadRequest || env.Details["code"] == "" {
		t.Fatalf("duplicate code accepted: %d %s", w.Code, w.Body.String())
	}
	w, _ = do(t, h, http.MethodDelete, fmt.Sprintf("/catalog/%d", s.ID), "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", w.Code)
	}
	w, _ = do(t, h, http.MethodGet, fmt.Sprintf("/catalog/%d", s.ID), "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("deleted service still visible: %d", w.Code)
	}
}

func TestLogin(t *testing.T) {
	db := setupTestDB(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := db.Create(&models.User{Email: "admin@example.com", Password: string(hash), Name: "Admin"}).Error; err != nil {
		t.Fatalf("user: %v", err)
	}
	h := NewAuthHandler(db)

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"Admin@Example.com","password":"secret"}`))
	w := httptest.NewRecorder()
	h.Login(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	if len(w.Result().Cookies()) == 0 {
		t.Fatalf("expected session cookie")
	}
	if strings.Contains(w.Body.String(), `"password"`) {
		t.Fatalf("password hash leaked: %s", w.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"admin@example.com","password":"wrong"}`))
	w = httptest.NewRecorder()
	h.Login(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: %d", w.Code)
	}
}

func TestPublicAcceptExpiredQuote(t *testing.T) {
	_, h := testAPI(t)
	c := createCustomer(t, h)
	w, env := do(t, h, http.MethodPost, "/quotes", fmt.Sprintf(
		`{"customer_id":%d,"issue_date":"2025-02-01T00:00:00Z","valid_until":"2025-03-01T00:00:00Z","items":%s}`, c.ID, scenarioItems))
	if w.Code != http.StatusCreated {
		t.Fatalf("create quote: %d %s", w.Code, w.Body.String())
	}
	var q models.Quote
	into(t, env, &q)
	if w, _ = do(t, h, http.MethodPost, fmt.Sprintf("/quotes/%d/status", q.ID), `{"status":"sent"}`); w.Code != http.StatusOK {
		t.Fatalf("send: %d %s", w.Code, w.Body.String())
	}

	w, env = do(t, h, http.MethodPost, "/public/quotes/"+q.PublicToken.String()+"/accept", "")
	if w.Code != http.StatusConflict || env.Error != "quote_expired" {
		t.Fatalf("expected 409 quote_expired, got %d %s", w.Code, w.Body.String())
	}
}
