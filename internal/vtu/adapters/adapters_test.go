package adapters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	providerdomain "github.com/boijelux-1st/doublea/internal/provider/domain"
	"github.com/boijelux-1st/doublea/internal/vtu/domain"
)

func newAdapter(t *testing.T, factory domain.AdapterFactory, baseURL string) domain.Adapter {
	t.Helper()
	adapter, err := factory.NewAdapter(domain.AdapterConfig{
		Name:    factory.Provider(),
		BaseURL: baseURL,
		APIKey:  "test-key",
		Timeout: time.Second,
	})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	return adapter
}

func airtime(amount int64) domain.PurchaseRequest {
	return domain.PurchaseRequest{
		Kind:      providerdomain.CapabilityAirtime,
		Network:   "glo",
		Recipient: "08050000000",
		Amount:    amount,
	}
}

func TestVTUNGSuccessByCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/airtime" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		fmt.Fprint(w, `{"code":"101","transactionId":"tx-9","message":"done"}`)
	}))
	defer server.Close()

	adapter := newAdapter(t, NewVTUNGFactory(), server.URL)
	res, err := adapter.Purchase(context.Background(), airtime(200))
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if !res.Success || res.UpstreamID != "tx-9" || res.Provider != ProviderVTUNG {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestVTUNGBusinessFailureIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":"400","status":"failed","message":"insufficient balance"}`)
	}))
	defer server.Close()

	adapter := newAdapter(t, NewVTUNGFactory(), server.URL)
	res, err := adapter.Purchase(context.Background(), airtime(200))
	if err != nil {
		t.Fatalf("business failure must not error: %v", err)
	}
	if res.Success || res.Message != "insufficient balance" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestVTUNGDataUsesPlan(t *testing.T) {
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotBody, _ = io.ReadAll(r.Body)
		fmt.Fprint(w, `{"status":"success","requestId":"rq-1"}`)
	}))
	defer server.Close()

	adapter := newAdapter(t, NewVTUNGFactory(), server.URL)
	req := airtime(1000)
	req.Kind = providerdomain.CapabilityData
	req.PlanID = "MTN_1GB_30"

	res, err := adapter.Purchase(context.Background(), req)
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if !res.Success || res.UpstreamID != "rq-1" {
		t.Fatalf("unexpected result: %+v", res)
	}

	var parsed map[string]any
	if err := json.Unmarshal(gotBody, &parsed); err != nil {
		t.Fatalf("unmarshal request: %v", err)
	}
	if parsed["plan"] != "MTN_1GB_30" {
		t.Fatalf("plan not forwarded, body %s", gotBody)
	}
}

func TestNon2xxIsUpstreamRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	adapter := newAdapter(t, NewEasyAccessFactory(), server.URL)
	_, err := adapter.Purchase(context.Background(), airtime(100))
	if !errors.Is(err, domain.ErrUpstreamRejected) {
		t.Fatalf("expected upstream rejected, got %v", err)
	}
}

func TestTimeoutIsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	adapter, err := NewEasyAccessFactory().NewAdapter(domain.AdapterConfig{
		BaseURL: server.URL,
		APIKey:  "k",
		Timeout: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}

	_, err = adapter.Purchase(context.Background(), airtime(100))
	if !errors.Is(err, domain.ErrNetwork) {
		t.Fatalf("expected network error on timeout, got %v", err)
	}
}

func TestMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>gateway error</html>`)
	}))
	defer server.Close()

	adapter := newAdapter(t, NewVTUNGFactory(), server.URL)
	_, err := adapter.Purchase(context.Background(), airtime(100))
	if !errors.Is(err, domain.ErrMalformedResponse) {
		t.Fatalf("expected malformed response, got %v", err)
	}
}

func TestEasyAccessBooleanSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":true,"reference":"ea-7","message":"ok"}`)
	}))
	defer server.Close()

	adapter := newAdapter(t, NewEasyAccessFactory(), server.URL)
	res, err := adapter.Purchase(context.Background(), airtime(300))
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if !res.Success || res.UpstreamID != "ea-7" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestClubKonnectSendsKobo(t *testing.T) {
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		fmt.Fprint(w, `{"statuscode":"ORDER_RECEIVED","orderid":"ck-3","remark":"queued"}`)
	}))
	defer server.Close()

	adapter := newAdapter(t, NewClubKonnectFactory(), server.URL)
	res, err := adapter.Purchase(context.Background(), airtime(250))
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if !res.Success || res.UpstreamID != "ck-3" {
		t.Fatalf("unexpected result: %+v", res)
	}
	// The normalized result stays in naira even though the wire amount
	// was kobo.
	if res.Amount != 250 {
		t.Fatalf("result amount should be naira, got %d", res.Amount)
	}

	var parsed map[string]any
	if err := json.Unmarshal(gotBody, &parsed); err != nil {
		t.Fatalf("unmarshal request: %v", err)
	}
	if amount, _ := parsed["Amount"].(float64); int64(amount) != 25000 {
		t.Fatalf("wire amount should be kobo, body %s", gotBody)
	}
}

func TestClubKonnectRejectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"statuscode":"INVALID_RECIPIENT","remark":"bad number"}`)
	}))
	defer server.Close()

	adapter := newAdapter(t, NewClubKonnectFactory(), server.URL)
	res, err := adapter.Purchase(context.Background(), airtime(100))
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if res.Success || res.Message != "bad number" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestKoboConversionRoundTrips(t *testing.T) {
	for _, naira := range []int64{1, 50, 100, 25000} {
		if got := KoboToNaira(NairaToKobo(naira)); got != naira {
			t.Fatalf("round trip %d -> %d", naira, got)
		}
	}
}
