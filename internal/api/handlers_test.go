package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/litefi/litevault-backend/internal/config"
	"github.com/litefi/litevault-backend/internal/events"
	"github.com/litefi/litevault-backend/internal/fulfiller"
	"github.com/litefi/litevault-backend/internal/metrics"
	"github.com/litefi/litevault-backend/internal/queue"
	"github.com/litefi/litevault-backend/internal/store"
	"github.com/litefi/litevault-backend/internal/token"
	"github.com/litefi/litevault-backend/internal/vault"
	"github.com/litefi/litevault-backend/internal/ws"
)

const (
	testVaultAddr     = "0xvault"
	testQueueAddr     = "0xqueue"
	testFulfillerAddr = "0xfulfiller"
	testOwnerAddr     = "0xowner"
	testBridgeAddr    = "0xbridge"
	testAliceAddr     = "0xalice"
)

func usdc(n int64) decimal.Decimal {
	return decimal.NewFromInt(n).Mul(decimal.NewFromInt(1_000_000))
}

type fixture struct {
	handler *Handler
	router  http.Handler
	asset   *token.Ledger
	vault   *vault.Service
	queue   *queue.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := zap.NewNop().Sugar()

	m, _, err := metrics.Setup("litevault-test")
	require.NoError(t, err)

	cache, err := store.NewCache("invalid:6379", logger, m)
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	cfg := &config.Config{
		Env: "test",
		Vault: config.VaultConfig{
			AssetSymbol:                "USDC",
			VaultAddress:               testVaultAddr,
			QueueAddress:               testQueueAddr,
			FulfillerAddress:           testFulfillerAddr,
			OwnerAddress:               testOwnerAddr,
			BridgeAddress:              testBridgeAddr,
			MinimumThresholdPercentage: 10_000_000,
			WithdrawFeePercentage:      10_000,
			WithdrawFeeAbsoluteMin:     "20000000",
			PenaltyFeePercentage:       2_000_000,
			InitialExchangePrice:       "2000000",
		},
	}

	bus := events.NewBus(logger)
	asset := token.NewLedger("USDC")

	vaultSvc := vault.NewService(asset, testVaultAddr, bus, logger)
	queueSvc, err := queue.NewService(vaultSvc, testQueueAddr, testOwnerAddr, cfg.Vault.PenaltyFeePercentage, bus, logger)
	require.NoError(t, err)
	fulfillerSvc, err := fulfiller.NewService(vaultSvc, queueSvc, testFulfillerAddr, bus, logger)
	require.NoError(t, err)

	hub := ws.NewHub(cache, logger, m)
	sse := ws.NewSSEHandler(cache, logger)

	h := NewHandler(vaultSvc, queueSvc, fulfillerSvc, nil, cache, hub, sse, cfg, logger, m)
	router := h.Routes(NewMiddleware(logger, m), nil, 6000)

	return &fixture{
		handler: h,
		router:  router,
		asset:   asset,
		vault:   vaultSvc,
		queue:   queueSvc,
	}
}

func (f *fixture) request(t *testing.T, method, path, caller string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if caller != "" {
		req.Header.Set(callerHeader, caller)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) initialize(t *testing.T) {
	t.Helper()
	rec := f.request(t, http.MethodPost, "/v1/vault/initialize", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func (f *fixture) fund(t *testing.T, addr string, amount decimal.Decimal) {
	t.Helper()
	require.NoError(t, f.asset.Mint(addr, amount))
	require.NoError(t, f.asset.Approve(addr, testVaultAddr, amount))
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(dest))
}

func TestInitializeEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodPost, "/v1/vault/initialize", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Second attempt conflicts
	rec = f.request(t, http.MethodPost, "/v1/vault/initialize", "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	var errResp ErrorResponse
	decodeJSON(t, rec, &errResp)
	assert.Equal(t, "ALREADY_INITIALIZED", errResp.Code)
}

func TestDepositEndpoint(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)
	f.fund(t, testAliceAddr, usdc(1000))

	rec := f.request(t, http.MethodPost, "/v1/vault/deposit", testAliceAddr, DepositRequest{
		Assets: usdc(1000).String(),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp DepositResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, usdc(1000).String(), resp.Shares)
	assert.True(t, f.vault.BalanceOf(testAliceAddr).Equal(usdc(1000)))
}

func TestDepositRequiresCallerHeader(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)

	rec := f.request(t, http.MethodPost, "/v1/vault/deposit", "", DepositRequest{
		Assets: usdc(100).String(),
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var errResp ErrorResponse
	decodeJSON(t, rec, &errResp)
	assert.Equal(t, "MISSING_CALLER", errResp.Code)
}

func TestDepositRejectsBadAmounts(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)

	for _, amount := range []string{"", "not-a-number"} {
		rec := f.request(t, http.MethodPost, "/v1/vault/deposit", testAliceAddr, DepositRequest{
			Assets: amount,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code, "amount %q", amount)
	}

	// Zero is rejected by the ledger, not the parser
	rec := f.request(t, http.MethodPost, "/v1/vault/deposit", testAliceAddr, DepositRequest{
		Assets: "0",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWithdrawEndpoint(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)
	f.fund(t, testAliceAddr, usdc(1000))

	rec := f.request(t, http.MethodPost, "/v1/vault/deposit", testAliceAddr, DepositRequest{
		Assets: usdc(1000).String(),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.request(t, http.MethodPost, "/v1/vault/withdraw", testAliceAddr, WithdrawRequest{
		Assets: usdc(1000).String(),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Absolute minimum fee of 20e6 applies at this size
	assert.True(t, f.asset.BalanceOf(testAliceAddr).Equal(usdc(980)),
		"got %s", f.asset.BalanceOf(testAliceAddr))
}

func TestWithdrawUnauthorizedOwner(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)
	f.fund(t, testAliceAddr, usdc(1000))

	rec := f.request(t, http.MethodPost, "/v1/vault/deposit", testAliceAddr, DepositRequest{
		Assets: usdc(1000).String(),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.request(t, http.MethodPost, "/v1/vault/withdraw", "0xmallory", WithdrawRequest{
		Assets: usdc(100).String(),
		Owner:  testAliceAddr,
	})
	require.Equal(t, http.StatusForbidden, rec.Code)

	var errResp ErrorResponse
	decodeJSON(t, rec, &errResp)
	assert.Equal(t, "UNAUTHORIZED", errResp.Code)
}

func TestToMainnetThresholdConflict(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)
	f.fund(t, testAliceAddr, usdc(2000))

	rec := f.request(t, http.MethodPost, "/v1/vault/deposit", testAliceAddr, DepositRequest{
		Assets: usdc(2000).String(),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.request(t, http.MethodPost, "/v1/vault/rebalancers", testOwnerAddr, RoleRequest{
		Address: testOwnerAddr,
		Allowed: true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Moving 1900 would leave less than the 10% threshold
	rec = f.request(t, http.MethodPost, "/v1/vault/to-mainnet", testOwnerAddr, MoveRequest{
		Amount: usdc(1900).String(),
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	var errResp ErrorResponse
	decodeJSON(t, rec, &errResp)
	assert.Equal(t, "MINIMUM_THRESHOLD", errResp.Code)

	rec = f.request(t, http.MethodPost, "/v1/vault/to-mainnet", testOwnerAddr, MoveRequest{
		Amount: usdc(1800).String(),
	})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestVaultStateEndpoint(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)
	f.fund(t, testAliceAddr, usdc(500))

	rec := f.request(t, http.MethodPost, "/v1/vault/deposit", testAliceAddr, DepositRequest{
		Assets: usdc(500).String(),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.request(t, http.MethodGet, "/v1/vault/state", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var state VaultStateDTO
	decodeJSON(t, rec, &state)
	assert.True(t, state.Initialized)
	assert.Equal(t, testOwnerAddr, state.Owner)
	assert.Equal(t, usdc(500).String(), state.LocalAssets)
	assert.Equal(t, usdc(500).String(), state.TotalShares)
	assert.Equal(t, int64(10_000_000), state.MinimumThresholdPct)
}

func TestWithdrawFeePreviewEndpoint(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)

	rec := f.request(t, http.MethodGet, "/v1/vault/fees/withdraw?assets="+usdc(1_000_000).String(), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var preview FeePreviewDTO
	decodeJSON(t, rec, &preview)
	// 0.01% of 1_000_000e6 = 100e6, above the 20e6 absolute minimum
	assert.Equal(t, usdc(100).String(), preview.Fee)
	assert.Equal(t, usdc(999_900).String(), preview.Payout)

	rec = f.request(t, http.MethodGet, "/v1/vault/fees/withdraw", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBalancesEndpoint(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)
	f.fund(t, testAliceAddr, usdc(300))

	rec := f.request(t, http.MethodPost, "/v1/vault/deposit", testAliceAddr, DepositRequest{
		Assets: usdc(200).String(),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.request(t, http.MethodGet, fmt.Sprintf("/v1/vault/balances/%s", testAliceAddr), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var balances BalancesDTO
	decodeJSON(t, rec, &balances)
	assert.Equal(t, testAliceAddr, balances.Address)
	assert.Equal(t, usdc(200).String(), balances.Shares)
	assert.Equal(t, usdc(100).String(), balances.Assets)
	assert.Equal(t, "0", balances.Queued)
}

func TestQueueWithdrawEndpoint(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)
	f.fund(t, testAliceAddr, usdc(1000))

	rec := f.request(t, http.MethodPost, "/v1/vault/deposit", testAliceAddr, DepositRequest{
		Assets: usdc(1000).String(),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, f.vault.ApproveShares(testAliceAddr, testQueueAddr, usdc(1000)))

	rec = f.request(t, http.MethodPost, "/v1/queue/withdraw", testAliceAddr, QueueWithdrawRequest{
		Assets:           usdc(1000).String(),
		MaxPenaltyFeePct: 2_000_000,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.request(t, http.MethodGet, "/v1/queue/state", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var state QueueStateDTO
	decodeJSON(t, rec, &state)
	// 2% penalty on 1000e6 leaves 980e6 owed
	assert.Equal(t, usdc(980).String(), state.TotalQueuedAmount)
	assert.Equal(t, usdc(1000).String(), state.EscrowedShares)
}

func TestQueueWithdrawPenaltyCeiling(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)
	f.fund(t, testAliceAddr, usdc(1000))

	rec := f.request(t, http.MethodPost, "/v1/vault/deposit", testAliceAddr, DepositRequest{
		Assets: usdc(1000).String(),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, f.vault.ApproveShares(testAliceAddr, testQueueAddr, usdc(1000)))

	// Caller only tolerates 1% but the queue charges 2%
	rec = f.request(t, http.MethodPost, "/v1/queue/withdraw", testAliceAddr, QueueWithdrawRequest{
		Assets:           usdc(1000).String(),
		MaxPenaltyFeePct: 1_000_000,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var errResp ErrorResponse
	decodeJSON(t, rec, &errResp)
	assert.Equal(t, "INVALID_PARAMS", errResp.Code)
}

func TestFulfillEndpoint(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)
	f.fund(t, testAliceAddr, usdc(10000))

	rec := f.request(t, http.MethodPost, "/v1/vault/deposit", testAliceAddr, DepositRequest{
		Assets: usdc(10000).String(),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Grant both roles to the operator and the fulfiller account
	for _, addr := range []string{"0xoperator", testFulfillerAddr} {
		rec = f.request(t, http.MethodPost, "/v1/vault/rebalancers", testOwnerAddr, RoleRequest{Address: addr, Allowed: true})
		require.Equal(t, http.StatusOK, rec.Code)
		rec = f.request(t, http.MethodPost, "/v1/queue/fulfillers", testOwnerAddr, RoleRequest{Address: addr, Allowed: true})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec = f.request(t, http.MethodPost, "/v1/vault/to-mainnet", "0xoperator", MoveRequest{
		Amount: usdc(7000).String(),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.NoError(t, f.vault.ApproveShares(testAliceAddr, testQueueAddr, usdc(3000)))
	rec = f.request(t, http.MethodPost, "/v1/queue/withdraw", testAliceAddr, QueueWithdrawRequest{
		Assets:           usdc(3000).String(),
		MaxPenaltyFeePct: 2_000_000,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Bridge releases funds back before the fulfiller replenishes
	require.NoError(t, f.asset.Mint(testBridgeAddr, usdc(2940)))
	require.NoError(t, f.asset.Approve(testBridgeAddr, testVaultAddr, usdc(2940)))

	rec = f.request(t, http.MethodPost, "/v1/fulfill", "0xoperator", FulfillRequest{
		Amount:       usdc(2940).String(),
		SharesToBurn: usdc(3000).String(),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.True(t, f.queue.BufferBalance().Equal(usdc(2920)),
		"got %s", f.queue.BufferBalance())
	assert.True(t, f.queue.TotalQueuedAmount().IsZero())
}

func TestFulfillRequiresBothRoles(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)

	rec := f.request(t, http.MethodPost, "/v1/fulfill", testAliceAddr, FulfillRequest{
		Amount:       usdc(10).String(),
		SharesToBurn: usdc(10).String(),
	})
	require.Equal(t, http.StatusForbidden, rec.Code)

	var errResp ErrorResponse
	decodeJSON(t, rec, &errResp)
	assert.Equal(t, "UNAUTHORIZED", errResp.Code)
}

func TestMalformedBodyRejected(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/vault/deposit", bytes.NewBufferString("{not json"))
	req.Header.Set(callerHeader, testAliceAddr)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var errResp ErrorResponse
	decodeJSON(t, rec, &errResp)
	assert.Equal(t, "INVALID_BODY", errResp.Code)
}

func TestHealthEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Not ready until the vault is initialized
	rec = f.request(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	f.initialize(t)

	rec = f.request(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestEventsEndpointWithoutJournal(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodGet, "/v1/events", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
