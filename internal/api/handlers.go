package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/litefi/litevault-backend/internal/config"
	"github.com/litefi/litevault-backend/internal/fulfiller"
	"github.com/litefi/litevault-backend/internal/metrics"
	"github.com/litefi/litevault-backend/internal/queue"
	"github.com/litefi/litevault-backend/internal/repository"
	"github.com/litefi/litevault-backend/internal/store"
	"github.com/litefi/litevault-backend/internal/token"
	"github.com/litefi/litevault-backend/internal/vault"
	"github.com/litefi/litevault-backend/internal/ws"
)

// callerHeader carries the account the request acts as. The engine trusts
// the header; authenticating it is the deployment's concern.
const callerHeader = "X-Caller-Address"

type Handler struct {
	vaultSvc     *vault.Service
	queueSvc     *queue.Service
	fulfillerSvc *fulfiller.Service
	repo         *repository.Repository
	cache        *store.Cache
	wsHub        *ws.Hub
	sseHandler   *ws.SSEHandler
	config       *config.Config
	logger       *zap.SugaredLogger
	metrics      *metrics.Metrics
}

func NewHandler(
	vaultSvc *vault.Service,
	queueSvc *queue.Service,
	fulfillerSvc *fulfiller.Service,
	repo *repository.Repository,
	cache *store.Cache,
	wsHub *ws.Hub,
	sseHandler *ws.SSEHandler,
	config *config.Config,
	logger *zap.SugaredLogger,
	metrics *metrics.Metrics,
) *Handler {
	return &Handler{
		vaultSvc:     vaultSvc,
		queueSvc:     queueSvc,
		fulfillerSvc: fulfillerSvc,
		repo:         repo,
		cache:        cache,
		wsHub:        wsHub,
		sseHandler:   sseHandler,
		config:       config,
		logger:       logger,
		metrics:      metrics,
	}
}

// Vault endpoints

func (h *Handler) InitializeVault(w http.ResponseWriter, r *http.Request) {
	vc := h.config.Vault

	feeMin, err := vc.GetWithdrawFeeAbsoluteMin()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "CONFIG_ERROR", err.Error())
		return
	}
	initialPrice, err := vc.GetInitialExchangePrice()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "CONFIG_ERROR", err.Error())
		return
	}

	params := vault.InitParams{
		Owner:                      vc.OwnerAddress,
		MinimumThresholdPercentage: vc.MinimumThresholdPercentage,
		WithdrawFeePercentage:      vc.WithdrawFeePercentage,
		WithdrawFeeAbsoluteMin:     feeMin,
		BridgeAddress:              vc.BridgeAddress,
		InitialExchangePrice:       initialPrice,
	}

	err = h.vaultSvc.Initialize(r.Context(), params)
	h.recordOp(r, "initialize", err)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, StatusResponse{Status: "initialized"})
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req DepositRequest
	if !h.decode(w, r, &req) {
		return
	}
	assets, err := parseAmount(req.Assets)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_AMOUNT", err.Error())
		return
	}

	receiver := req.Receiver
	if receiver == "" {
		receiver = caller
	}

	shares, err := h.vaultSvc.Deposit(r.Context(), caller, assets, receiver)
	h.recordOp(r, "deposit", err)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.invalidatePositions(r, caller, receiver)
	h.writeJSON(w, http.StatusOK, DepositResponse{Shares: shares.String()})
}

func (h *Handler) Mint(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req MintRequest
	if !h.decode(w, r, &req) {
		return
	}
	shares, err := parseAmount(req.Shares)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_AMOUNT", err.Error())
		return
	}

	receiver := req.Receiver
	if receiver == "" {
		receiver = caller
	}

	assets, err := h.vaultSvc.Mint(r.Context(), caller, shares, receiver)
	h.recordOp(r, "mint", err)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.invalidatePositions(r, caller, receiver)
	h.writeJSON(w, http.StatusOK, MintResponse{Assets: assets.String()})
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req WithdrawRequest
	if !h.decode(w, r, &req) {
		return
	}
	assets, err := parseAmount(req.Assets)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_AMOUNT", err.Error())
		return
	}

	receiver := req.Receiver
	if receiver == "" {
		receiver = caller
	}
	owner := req.Owner
	if owner == "" {
		owner = caller
	}

	shares, err := h.vaultSvc.Withdraw(r.Context(), caller, assets, receiver, owner)
	h.recordOp(r, "withdraw", err)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.invalidatePositions(r, caller, receiver, owner)
	h.writeJSON(w, http.StatusOK, WithdrawResponse{SharesBurned: shares.String()})
}

func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req RedeemRequest
	if !h.decode(w, r, &req) {
		return
	}
	shares, err := parseAmount(req.Shares)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_AMOUNT", err.Error())
		return
	}

	receiver := req.Receiver
	if receiver == "" {
		receiver = caller
	}
	owner := req.Owner
	if owner == "" {
		owner = caller
	}

	assets, err := h.vaultSvc.Redeem(r.Context(), caller, shares, receiver, owner)
	h.recordOp(r, "redeem", err)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.invalidatePositions(r, caller, receiver, owner)
	h.writeJSON(w, http.StatusOK, RedeemResponse{Assets: assets.String()})
}

func (h *Handler) RedeemExcess(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req RedeemExcessRequest
	if !h.decode(w, r, &req) {
		return
	}
	assets, err := parseAmount(req.Assets)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_AMOUNT", err.Error())
		return
	}
	sharesToBurn, err := parseAmount(req.SharesToBurn)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_AMOUNT", err.Error())
		return
	}

	err = h.vaultSvc.RedeemExcess(r.Context(), caller, assets, sharesToBurn)
	h.recordOp(r, "redeem_excess", err)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (h *Handler) ToMainnet(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req MoveRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_AMOUNT", err.Error())
		return
	}

	err = h.vaultSvc.ToMainnet(r.Context(), caller, amount)
	h.recordOp(r, "to_mainnet", err)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (h *Handler) FromMainnet(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req MoveRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_AMOUNT", err.Error())
		return
	}

	err = h.vaultSvc.FromMainnet(r.Context(), caller, amount)
	h.recordOp(r, "from_mainnet", err)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (h *Handler) UpdateExchangePrice(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req ExchangePriceRequest
	if !h.decode(w, r, &req) {
		return
	}
	price, err := parseAmount(req.Price)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_AMOUNT", err.Error())
		return
	}

	err = h.vaultSvc.UpdateMainnetExchangePrice(r.Context(), caller, price)
	h.recordOp(r, "exchange_price", err)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (h *Handler) SetRebalancer(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req RoleRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.vaultSvc.SetRebalancer(r.Context(), caller, req.Address, req.Allowed)
	h.recordOp(r, "set_rebalancer", err)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (h *Handler) SetBridgeAddress(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req AddressRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.vaultSvc.SetBridgeAddress(r.Context(), caller, req.Address)
	h.recordOp(r, "set_bridge_address", err)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (h *Handler) SetMinimumThreshold(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req PercentageRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.vaultSvc.SetMinimumThresholdPercentage(r.Context(), caller, req.Value)
	h.recordOp(r, "set_minimum_threshold", err)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (h *Handler) SetWithdrawFee(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req PercentageRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.vaultSvc.SetWithdrawFeePercentage(r.Context(), caller, req.Value)
	h.recordOp(r, "set_withdraw_fee", err)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (h *Handler) SetWithdrawFeeMin(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req AmountRequest
	if !h.decode(w, r, &req) {
		return
	}
	min, err := parseAmount(req.Value)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_AMOUNT", err.Error())
		return
	}

	err = h.vaultSvc.SetWithdrawFeeAbsoluteMin(r.Context(), caller, min)
	h.recordOp(r, "set_withdraw_fee_min", err)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (h *Handler) TransferVaultOwnership(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req AddressRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.vaultSvc.TransferOwnership(r.Context(), caller, req.Address)
	h.recordOp(r, "transfer_ownership", err)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (h *Handler) WithdrawFees(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req WithdrawFeesRequest
	if !h.decode(w, r, &req) {
		return
	}
	receiver := req.Receiver
	if receiver == "" {
		receiver = caller
	}

	amount, err := h.vaultSvc.WithdrawFees(r.Context(), caller, receiver)
	h.recordOp(r, "withdraw_fees", err)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.invalidatePositions(r, receiver)
	h.writeJSON(w, http.StatusOK, WithdrawFeesResponse{Amount: amount.String()})
}

func (h *Handler) GetVaultState(w http.ResponseWriter, r *http.Request) {
	s := h.vaultSvc

	dto := VaultStateDTO{
		Initialized:            s.Initialized(),
		Owner:                  s.Owner(),
		BridgeAddress:          s.BridgeAddress(),
		LocalAssets:            s.LocalAssets().String(),
		TotalInvestedAssets:    s.TotalInvestedAssets().String(),
		TotalAssets:            s.TotalAssets().String(),
		TotalShares:            s.TotalShares().String(),
		CollectedFees:          s.CollectedFees().String(),
		MainnetExchangePrice:   s.MainnetExchangePrice().String(),
		MinimumThresholdPct:    s.MinimumThresholdPercentage(),
		MinimumThresholdAmount: s.MinimumThresholdAmount().String(),
		WithdrawFeePct:         s.WithdrawFeePercentage(),
		WithdrawFeeAbsoluteMin: s.WithdrawFeeAbsoluteMin().String(),
		AsOf:                   time.Now().Unix(),
	}

	h.writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) GetWithdrawFeePreview(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("assets")
	if raw == "" {
		h.writeError(w, http.StatusBadRequest, "MISSING_PARAMETER", "assets is required")
		return
	}
	assets, err := parseAmount(raw)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_AMOUNT", err.Error())
		return
	}

	fee := h.vaultSvc.GetWithdrawFee(assets)

	h.writeJSON(w, http.StatusOK, FeePreviewDTO{
		Assets: assets.String(),
		Fee:    fee.String(),
		Payout: assets.Sub(fee).String(),
	})
}

func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	if address == "" {
		h.writeError(w, http.StatusBadRequest, "MISSING_PARAMETER", "address is required")
		return
	}

	var cached BalancesDTO
	if err := h.cache.GetPosition(r.Context(), address, &cached); err == nil {
		h.metrics.RecordCacheHit(r.Context(), store.KeyPosition)
		h.writeJSON(w, http.StatusOK, cached)
		return
	}
	h.metrics.RecordCacheMiss(r.Context(), store.KeyPosition)

	dto := BalancesDTO{
		Address:   address,
		Shares:    h.vaultSvc.BalanceOf(address).String(),
		Assets:    h.vaultSvc.Asset().BalanceOf(address).String(),
		Queued:    h.queueSvc.QueuedWithdrawAmount(address).String(),
		UpdatedAt: time.Now().Unix(),
	}

	if err := h.cache.SetPosition(r.Context(), address, dto, 15*time.Second); err != nil {
		h.logger.Debugw("Failed to cache position", "address", address, "error", err)
	}

	h.writeJSON(w, http.StatusOK, dto)
}

// Queue endpoints

func (h *Handler) QueueWithdraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req QueueWithdrawRequest
	if !h.decode(w, r, &req) {
		return
	}
	assets, err := parseAmount(req.Assets)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_AMOUNT", err.Error())
		return
	}

	receiver := req.Receiver
	if receiver == "" {
		receiver = caller
	}

	err = h.queueSvc.QueueExcessWithdraw(r.Context(), caller, assets, receiver, req.MaxPenaltyFeePct)
	h.recordOp(r, "queue_withdraw", err)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.invalidatePositions(r, caller, receiver)
	h.writeJSON(w, http.StatusOK, StatusResponse{Status: "queued"})
}

func (h *Handler) QueueRedeem(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req QueueRedeemRequest
	if !h.decode(w, r, &req) {
		return
	}
	shares, err := parseAmount(req.Shares)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_AMOUNT", err.Error())
		return
	}

	receiver := req.Receiver
	if receiver == "" {
		receiver = caller
	}

	err = h.queueSvc.QueueExcessRedeem(r.Context(), caller, shares, receiver, req.MaxPenaltyFeePct)
	h.recordOp(r, "queue_redeem", err)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.invalidatePositions(r, caller, receiver)
	h.writeJSON(w, http.StatusOK, StatusResponse{Status: "queued"})
}

func (h *Handler) ExecuteQueued(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Receiver == "" {
		h.writeError(w, http.StatusBadRequest, "MISSING_PARAMETER", "receiver is required")
		return
	}

	err := h.queueSvc.ExecuteExcessWithdraw(r.Context(), req.Receiver)
	h.recordOp(r, "execute_queued", err)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.invalidatePositions(r, req.Receiver)
	h.writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (h *Handler) QueueFromVault(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req FromVaultRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_AMOUNT", err.Error())
		return
	}
	sharesToBurn, err := parseAmount(req.SharesToBurn)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_AMOUNT", err.Error())
		return
	}

	err = h.queueSvc.FromVault(r.Context(), caller, amount, sharesToBurn)
	h.recordOp(r, "queue_from_vault", err)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (h *Handler) SetPenaltyFee(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req PercentageRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.queueSvc.SetPenaltyFee(r.Context(), caller, req.Value)
	h.recordOp(r, "set_penalty_fee", err)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (h *Handler) SetFeeSetter(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req RoleRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.queueSvc.SetFeeSetter(r.Context(), caller, req.Address, req.Allowed)
	h.recordOp(r, "set_fee_setter", err)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (h *Handler) SetFulfiller(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req RoleRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.queueSvc.SetFulfiller(r.Context(), caller, req.Address, req.Allowed)
	h.recordOp(r, "set_fulfiller", err)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (h *Handler) GetQueueState(w http.ResponseWriter, r *http.Request) {
	s := h.queueSvc

	dto := QueueStateDTO{
		TotalQueuedAmount: s.TotalQueuedAmount().String(),
		BufferBalance:     s.BufferBalance().String(),
		EscrowedShares:    s.EscrowedShares().String(),
		PenaltyFeePct:     s.PenaltyFeePercentage(),
		AsOf:              time.Now().Unix(),
	}

	h.writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) GetQueuedRequest(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	if address == "" {
		h.writeError(w, http.StatusBadRequest, "MISSING_PARAMETER", "address is required")
		return
	}

	h.writeJSON(w, http.StatusOK, QueuedRequestDTO{
		Address: address,
		Owed:    h.queueSvc.QueuedWithdrawAmount(address).String(),
	})
}

// Fulfiller endpoint

func (h *Handler) Fulfill(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req FulfillRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_AMOUNT", err.Error())
		return
	}
	sharesToBurn, err := parseAmount(req.SharesToBurn)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_AMOUNT", err.Error())
		return
	}

	err = h.fulfillerSvc.FulfillExcessWithdraw(r.Context(), caller, amount, sharesToBurn)
	h.recordOp(r, "fulfill", err)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// Events journal

func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		h.writeError(w, http.StatusServiceUnavailable, "JOURNAL_DISABLED", "event journal is not configured")
		return
	}

	q := r.URL.Query()
	limit := 100
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	var cursor int64
	if raw := q.Get("cursor"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			cursor = n
		}
	}

	items, nextCursor, err := h.repo.GetEvents(r.Context(), q.Get("type"), limit, cursor)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "JOURNAL_ERROR", err.Error())
		return
	}

	resp := PaginatedResponse{
		Data:    items,
		HasMore: nextCursor > 0,
	}
	if nextCursor > 0 {
		resp.Cursor = strconv.FormatInt(nextCursor, 10)
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// Health endpoints

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	var reasons []string

	if !h.vaultSvc.Initialized() {
		reasons = append(reasons, "VAULT_NOT_INITIALIZED")
	}
	if err := h.cache.Ping(r.Context()); err != nil {
		reasons = append(reasons, "CACHE_UNAVAILABLE")
	}
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			reasons = append(reasons, "DATABASE_UNAVAILABLE")
		}
	}

	if len(reasons) > 0 {
		h.writeJSON(w, http.StatusServiceUnavailable, HealthDTO{Status: "unavailable", Reasons: reasons})
		return
	}
	h.writeJSON(w, http.StatusOK, HealthDTO{Status: "ready"})
}

// Live updates

func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.wsHub.HandleWebSocket(w, r)
}

func (h *Handler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	h.sseHandler.HandleSSE(w, r)
}

// Helpers

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	caller := strings.TrimSpace(r.Header.Get(callerHeader))
	if caller == "" {
		h.writeError(w, http.StatusBadRequest, "MISSING_CALLER", callerHeader+" header is required")
		return "", false
	}
	return caller, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_BODY", "malformed JSON body")
		return false
	}
	return true
}

func parseAmount(raw string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, errors.New("amount is required")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.New("invalid amount format")
	}
	return d, nil
}

func (h *Handler) recordOp(r *http.Request, op string, err error) {
	if h.metrics != nil {
		h.metrics.RecordVaultOperation(r.Context(), op, err)
	}
}

func (h *Handler) invalidatePositions(r *http.Request, addresses ...string) {
	seen := make(map[string]struct{}, len(addresses))
	for _, addr := range addresses {
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		if err := h.cache.InvalidatePosition(r.Context(), addr); err != nil {
			h.logger.Debugw("Failed to invalidate cached position", "address", addr, "error", err)
		}
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.logger.Errorw("API error", "code", code, "message", message, "status", status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := ErrorResponse{
		Code:    code,
		Message: message,
	}
	json.NewEncoder(w).Encode(err)
}

// writeServiceError maps ledger errors onto HTTP statuses: authorization
// failures are 403, state conflicts 409, bad input 400.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, vault.ErrUnauthorized),
		errors.Is(err, queue.ErrUnauthorized),
		errors.Is(err, fulfiller.ErrUnauthorized):
		h.writeError(w, http.StatusForbidden, "UNAUTHORIZED", err.Error())
	case errors.Is(err, vault.ErrAlreadyInitialized):
		h.writeError(w, http.StatusConflict, "ALREADY_INITIALIZED", err.Error())
	case errors.Is(err, vault.ErrNotInitialized):
		h.writeError(w, http.StatusConflict, "NOT_INITIALIZED", err.Error())
	case errors.Is(err, vault.ErrExceedMinimumThreshold):
		h.writeError(w, http.StatusConflict, "MINIMUM_THRESHOLD", err.Error())
	case errors.Is(err, vault.ErrInsufficientLiquidity),
		errors.Is(err, queue.ErrInsufficientLiquidity):
		h.writeError(w, http.StatusConflict, "INSUFFICIENT_LIQUIDITY", err.Error())
	case errors.Is(err, vault.ErrInsufficientBalance),
		errors.Is(err, vault.ErrInsufficientAllowance),
		errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, token.ErrInsufficientAllowance):
		h.writeError(w, http.StatusConflict, "INSUFFICIENT_FUNDS", err.Error())
	case errors.Is(err, vault.ErrInvalidParams),
		errors.Is(err, queue.ErrInvalidParams),
		errors.Is(err, fulfiller.ErrInvalidParams),
		errors.Is(err, token.ErrInvalidRequest):
		h.writeError(w, http.StatusBadRequest, "INVALID_PARAMS", err.Error())
	default:
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}
