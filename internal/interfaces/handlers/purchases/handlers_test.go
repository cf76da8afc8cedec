package purchases

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"energy-exchange/internal/application/backend"
	"energy-exchange/internal/application/ledger"
	listsvc "energy-exchange/internal/application/listings"
	purchasesvc "energy-exchange/internal/application/purchases"
	"energy-exchange/internal/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rejectingLedger struct{}

func (rejectingLedger) Submit(context.Context, ledger.Operation) (*ledger.TransactionReceipt, error) {
	return nil, ledger.ErrInsufficientFunds
}

func setupPurchasesTest(t *testing.T) (*fiber.App, *listsvc.MemoryStore, uuid.UUID) {
	store := listsvc.NewMemoryStore()
	id, err := store.Add(context.Background(), domain.Listing{
		Source:   domain.SourceSolar,
		Amount:   decimal.NewFromInt(20),
		Price:    decimal.RequireFromString("0.4"),
		Seller:   "seller-1",
		Location: "Austin, TX",
	})
	require.NoError(t, err)

	factory := func(mode backend.Mode) (backend.Backend, error) {
		switch mode {
		case backend.ModeSimulated:
			return backend.NewSimulated(store), nil
		case backend.ModeLive:
			return &backend.Live{Client: rejectingLedger{}, Listings: store}, nil
		}
		return nil, errors.New("unknown mode")
	}
	desk, err := purchasesvc.NewDesk(store, purchasesvc.NewLocalGuard(), factory, backend.ModeSimulated)
	require.NoError(t, err)

	h := &Handlers{Desk: desk, Store: store}
	app := fiber.New()
	app.Post("/begin", h.Begin)
	app.Post("/review", h.Review)
	app.Post("/confirm", h.Confirm)
	app.Post("/cancel", h.Cancel)
	app.Post("/retry", h.Retry)
	app.Post("/buy", h.Buy)
	app.Get("/get-attempt/:attempt_id", h.GetAttempt)
	app.Get("/mode", h.GetMode)
	app.Put("/mode", h.SetMode)
	return app, store, id
}

func call(t *testing.T, app *fiber.App, method, path string, body interface{}) (int, map[string]interface{}) {
	var req = httptest.NewRequest(method, path, nil)
	if body != nil {
		b, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	var result map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&result)
	return resp.StatusCode, result
}

func errorDetail(result map[string]interface{}) map[string]interface{} {
	e, _ := result["error"].(map[string]interface{})
	return e
}

func TestBuy_Success(t *testing.T) {
	app, store, id := setupPurchasesTest(t)
	status, result := call(t, app, "POST", "/buy", map[string]interface{}{"listing_id": id.String(), "buyer_id": "buyer-1"})
	require.Equal(t, 200, status)
	assert.Equal(t, "Transaction completed!", result["message"])
	data := result["data"].(map[string]interface{})
	assert.Equal(t, "succeeded", data["state"])
	meta := result["metadata"].(map[string]interface{})
	assert.Equal(t, "You purchased 20 kWh of solar energy for 0.4 tokens", meta["summary"])

	l, _ := store.Get(context.Background(), id)
	assert.False(t, l.Available)

	status, result = call(t, app, "POST", "/buy", map[string]interface{}{"listing_id": id.String(), "buyer_id": "buyer-2"})
	assert.Equal(t, 409, status)
	assert.Equal(t, true, errorDetail(result)["retryable"])
}

func TestBuy_BadInput(t *testing.T) {
	app, _, id := setupPurchasesTest(t)
	status, _ := call(t, app, "POST", "/buy", map[string]interface{}{"listing_id": id.String()})
	assert.Equal(t, 400, status)
	status, _ = call(t, app, "POST", "/buy", map[string]interface{}{"listing_id": "nope", "buyer_id": "b"})
	assert.Equal(t, 400, status)
	status, _ = call(t, app, "POST", "/buy", map[string]interface{}{"listing_id": uuid.NewString(), "buyer_id": "b"})
	assert.Equal(t, 404, status)
}

func TestAttemptFlow(t *testing.T) {
	app, _, id := setupPurchasesTest(t)

	status, result := call(t, app, "POST", "/begin", map[string]interface{}{"listing_id": id.String(), "buyer_id": "buyer-1"})
	require.Equal(t, 201, status)
	attemptID := result["data"].(map[string]interface{})["attempt_id"].(string)

	status, result = call(t, app, "POST", "/review", map[string]interface{}{"attempt_id": attemptID})
	require.Equal(t, 200, status)
	assert.Equal(t, "confirming", result["data"].(map[string]interface{})["state"])

	status, result = call(t, app, "GET", "/get-attempt/"+attemptID, nil)
	require.Equal(t, 200, status)
	assert.Equal(t, "confirming", result["data"].(map[string]interface{})["state"])

	status, result = call(t, app, "POST", "/confirm", map[string]interface{}{"attempt_id": attemptID})
	require.Equal(t, 200, status)
	assert.Equal(t, "succeeded", result["data"].(map[string]interface{})["state"])

	status, _ = call(t, app, "GET", "/get-attempt/"+attemptID, nil)
	assert.Equal(t, 404, status)
}

func TestCancel(t *testing.T) {
	app, _, id := setupPurchasesTest(t)
	_, result := call(t, app, "POST", "/begin", map[string]interface{}{"listing_id": id.String(), "buyer_id": "buyer-1"})
	attemptID := result["data"].(map[string]interface{})["attempt_id"].(string)

	status, _ := call(t, app, "POST", "/cancel", map[string]interface{}{"attempt_id": attemptID})
	assert.Equal(t, 200, status)
	status, _ = call(t, app, "POST", "/cancel", map[string]interface{}{"attempt_id": attemptID})
	assert.Equal(t, 404, status)
	status, _ = call(t, app, "POST", "/cancel", map[string]interface{}{})
	assert.Equal(t, 400, status)
}

func TestLiveFailureCopyAndRetry(t *testing.T) {
	app, store, id := setupPurchasesTest(t)

	status, result := call(t, app, "PUT", "/mode", map[string]interface{}{"mode": "live"})
	require.Equal(t, 200, status)
	assert.Equal(t, "live", result["data"].(map[string]interface{})["mode"])

	_, result = call(t, app, "POST", "/begin", map[string]interface{}{"listing_id": id.String(), "buyer_id": "buyer-1"})
	attemptID := result["data"].(map[string]interface{})["attempt_id"].(string)

	status, result = call(t, app, "POST", "/confirm", map[string]interface{}{"attempt_id": attemptID})
	require.Equal(t, 502, status)
	detail := errorDetail(result)
	assert.Equal(t, liveFailureCopy, detail["message"])
	assert.Equal(t, true, detail["retryable"])
	assert.Equal(t, "insufficient funds", detail["details"].(map[string]interface{})["reason"])

	l, _ := store.Get(context.Background(), id)
	assert.True(t, l.Available)

	status, result = call(t, app, "POST", "/retry", map[string]interface{}{"attempt_id": attemptID})
	require.Equal(t, 200, status)
	assert.Equal(t, "idle", result["data"].(map[string]interface{})["state"])

	status, _ = call(t, app, "POST", "/review", map[string]interface{}{"attempt_id": uuid.NewString()})
	assert.Equal(t, 404, status)
}

func TestMode(t *testing.T) {
	app, _, _ := setupPurchasesTest(t)
	status, result := call(t, app, "GET", "/mode", nil)
	require.Equal(t, 200, status)
	assert.Equal(t, "simulated", result["data"].(map[string]interface{})["mode"])

	status, _ = call(t, app, "PUT", "/mode", map[string]interface{}{"mode": "paper"})
	assert.Equal(t, 400, status)
	status, _ = call(t, app, "PUT", "/mode", map[string]interface{}{})
	assert.Equal(t, 400, status)
}
