package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/savegress/investdash/internal/config"
	"github.com/savegress/investdash/pkg/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(&config.BackendConfig{
		BaseURL:      srv.URL + "/",
		Timeout:      2 * time.Second,
		ServiceToken: "service-token",
	}, zerolog.Nop())
}

func TestClient_FetchTransactions(t *testing.T) {
	var gotAuth, gotPath, gotUser string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotUser = r.URL.Query().Get("userId")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"transactions":[{"id":"t1","companyName":"Acme","status":"completed","amount":100,"currencyType":"fiat","createdAt":"2025-03-01T10:00:00Z"}]}`))
	})

	txs, err := client.FetchTransactions(context.Background(), models.UserProfile{ID: "user 1", Token: "user-token"})
	if err != nil {
		t.Fatalf("FetchTransactions failed: %v", err)
	}
	if len(txs) != 1 || txs[0].ID != "t1" || txs[0].CompanyName != "Acme" {
		t.Errorf("unexpected transactions %+v", txs)
	}
	if gotAuth != "Bearer user-token" {
		t.Errorf("Authorization = %q, want user token", gotAuth)
	}
	if gotPath != "/transactions" {
		t.Errorf("path = %q, want /transactions", gotPath)
	}
	if gotUser != "user 1" {
		t.Errorf("userId = %q, want %q", gotUser, "user 1")
	}
}

func TestClient_FetchWithdrawals_ServiceTokenFallback(t *testing.T) {
	var gotAuth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`[{"id":"w1","userId":"u1","amount":25,"status":"successful","createdAt":"2025-03-01T10:00:00Z"}]`))
	})

	ws, err := client.FetchWithdrawals(context.Background(), models.UserProfile{ID: "u1"})
	if err != nil {
		t.Fatalf("FetchWithdrawals failed: %v", err)
	}
	if len(ws) != 1 || ws[0].Status != models.WithdrawalStatusSuccessful {
		t.Errorf("unexpected withdrawals %+v", ws)
	}
	if gotAuth != "Bearer service-token" {
		t.Errorf("Authorization = %q, want service token", gotAuth)
	}
}

func TestClient_HTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := client.FetchTransactions(context.Background(), models.UserProfile{ID: "u1"})
	if err == nil {
		t.Fatal("expected error for 502")
	}
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %T", err)
	}
	if fe.Stream != StreamTransactions || fe.Status != http.StatusBadGateway {
		t.Errorf("unexpected fetch error %+v", fe)
	}
}

func TestClient_ContextCanceled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchWithdrawals(ctx, models.UserProfile{ID: "u1"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
}

func TestDecodeList(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		count   int
		wantErr bool
	}{
		{"bare array", `[{"id":"a"},{"id":"b"}]`, 2, false},
		{"stream key", `{"transactions":[{"id":"a"}]}`, 1, false},
		{"data key", `{"data":[{"id":"a"}]}`, 1, false},
		{"nested envelope", `{"data":{"transactions":[{"id":"a"},{"id":"b"},{"id":"c"}]}}`, 3, false},
		{"missing key", `{"message":"ok"}`, 0, false},
		{"null key", `{"transactions":null}`, 0, false},
		{"null body", `null`, 0, false},
		{"empty body", ``, 0, false},
		{"empty array", `[]`, 0, false},
		{"non-object elements", `[{"id":"a"},5,null,"x",{"id":"b"}]`, 2, false},
		{"envelope too deep", `{"data":{"data":{"data":{"data":{"data":[{"id":"a"}]}}}}}`, 0, false},
		{"scalar body", `"nope"`, 0, true},
		{"broken json", `[{"id":`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeList[models.RawTransaction]([]byte(tt.body), StreamTransactions)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got == nil {
				t.Error("expected non-nil slice")
			}
			if len(got) != tt.count {
				t.Errorf("got %d records, want %d", len(got), tt.count)
			}
		})
	}
}

func TestDecodeList_MistypedFields(t *testing.T) {
	body := `{"data":[
		{"id":"t1","companyName":"Acme","status":"completed","amount":100,"createdAt":"2025-03-01T10:00:00Z"},
		{"id":42,"companyName":"Beta","status":1,"amount":"50","createdAt":1740823200000},
		{"id":"t3","companyName":{"name":"Gamma"},"amount":25,"createdAt":"2025-03-02T10:00:00Z"}
	]}`

	txs, err := decodeList[models.RawTransaction]([]byte(body), StreamTransactions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("got %d records, want 3", len(txs))
	}

	tests := []struct {
		name      string
		got       models.RawTransaction
		id        string
		company   string
		createdAt string
		coerced   int
	}{
		{"clean record", txs[0], "t1", "Acme", "2025-03-01T10:00:00Z", 0},
		{"numbers as strings", txs[1], "42", "Beta", "1740823200000", 3},
		{"object dropped", txs[2], "t3", "", "2025-03-02T10:00:00Z", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got.ID != tt.id {
				t.Errorf("id = %q, want %q", tt.got.ID, tt.id)
			}
			if tt.got.CompanyName != tt.company {
				t.Errorf("companyName = %q, want %q", tt.got.CompanyName, tt.company)
			}
			if tt.got.CreatedAt != tt.createdAt {
				t.Errorf("createdAt = %q, want %q", tt.got.CreatedAt, tt.createdAt)
			}
			if tt.got.CoercedFields != tt.coerced {
				t.Errorf("coerced = %d, want %d", tt.got.CoercedFields, tt.coerced)
			}
		})
	}
	if txs[1].Status != "1" || txs[1].Amount.Value.String() != "50" {
		t.Errorf("unexpected record %+v", txs[1])
	}
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	txPath := filepath.Join(dir, "transactions.json")
	if err := os.WriteFile(txPath, []byte(`{"data":[{"id":"t1","amount":"10"}]}`), 0o600); err != nil {
		t.Fatal(err)
	}

	src := &FileSource{TransactionsPath: txPath}

	txs, err := src.FetchTransactions(context.Background(), models.UserProfile{})
	if err != nil {
		t.Fatalf("FetchTransactions failed: %v", err)
	}
	if len(txs) != 1 || txs[0].Amount.Value.String() != "10" {
		t.Errorf("unexpected transactions %+v", txs)
	}

	ws, err := src.FetchWithdrawals(context.Background(), models.UserProfile{})
	if err != nil || len(ws) != 0 {
		t.Errorf("empty withdrawals path should yield empty list, got %v, %v", ws, err)
	}

	src.WithdrawalsPath = filepath.Join(dir, "missing.json")
	if _, err := src.FetchWithdrawals(context.Background(), models.UserProfile{}); err == nil {
		t.Error("expected error for missing dump")
	}
}
