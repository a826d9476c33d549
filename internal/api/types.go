package api

type VaultStateDTO struct {
	Initialized            bool   `json:"initialized"`
	Owner                  string `json:"owner"`
	BridgeAddress          string `json:"bridgeAddress"`
	LocalAssets            string `json:"localAssets"`
	TotalInvestedAssets    string `json:"totalInvestedAssets"`
	TotalAssets            string `json:"totalAssets"`
	TotalShares            string `json:"totalShares"`
	CollectedFees          string `json:"collectedFees"`
	MainnetExchangePrice   string `json:"mainnetExchangePrice"`
	MinimumThresholdPct    int64  `json:"minimumThresholdPct"`
	MinimumThresholdAmount string `json:"minimumThresholdAmount"`
	WithdrawFeePct         int64  `json:"withdrawFeePct"`
	WithdrawFeeAbsoluteMin string `json:"withdrawFeeAbsoluteMin"`
	AsOf                   int64  `json:"asOf"`
}

type QueueStateDTO struct {
	TotalQueuedAmount string `json:"totalQueuedAmount"`
	BufferBalance     string `json:"bufferBalance"`
	EscrowedShares    string `json:"escrowedShares"`
	PenaltyFeePct     int64  `json:"penaltyFeePct"`
	AsOf              int64  `json:"asOf"`
}

type BalancesDTO struct {
	Address   string `json:"address"`
	Shares    string `json:"shares"`
	Assets    string `json:"assets"`
	Queued    string `json:"queued"`
	UpdatedAt int64  `json:"updatedAt"`
}

type FeePreviewDTO struct {
	Assets string `json:"assets"`
	Fee    string `json:"fee"`
	Payout string `json:"payout"`
}

type QueuedRequestDTO struct {
	Address string `json:"address"`
	Owed    string `json:"owed"`
}

type HealthDTO struct {
	Status  string   `json:"status"`
	Reasons []string `json:"reasons,omitempty"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type PaginatedResponse struct {
	Data    interface{} `json:"data"`
	Cursor  string      `json:"cursor,omitempty"`
	HasMore bool        `json:"hasMore"`
}

// Request bodies. Amounts travel as decimal strings in the asset's base
// units; percentages use the engine's fixed-point scale.

type DepositRequest struct {
	Assets   string `json:"assets"`
	Receiver string `json:"receiver"`
}

type DepositResponse struct {
	Shares string `json:"shares"`
}

type MintRequest struct {
	Shares   string `json:"shares"`
	Receiver string `json:"receiver"`
}

type MintResponse struct {
	Assets string `json:"assets"`
}

type WithdrawRequest struct {
	Assets   string `json:"assets"`
	Receiver string `json:"receiver"`
	Owner    string `json:"owner"`
}

type WithdrawResponse struct {
	SharesBurned string `json:"sharesBurned"`
}

type RedeemRequest struct {
	Shares   string `json:"shares"`
	Receiver string `json:"receiver"`
	Owner    string `json:"owner"`
}

type RedeemResponse struct {
	Assets string `json:"assets"`
}

type RedeemExcessRequest struct {
	Assets       string `json:"assets"`
	SharesToBurn string `json:"sharesToBurn"`
}

type MoveRequest struct {
	Amount string `json:"amount"`
}

type ExchangePriceRequest struct {
	Price string `json:"price"`
}

type RoleRequest struct {
	Address string `json:"address"`
	Allowed bool   `json:"allowed"`
}

type AddressRequest struct {
	Address string `json:"address"`
}

type PercentageRequest struct {
	Value int64 `json:"value"`
}

type AmountRequest struct {
	Value string `json:"value"`
}

type WithdrawFeesRequest struct {
	Receiver string `json:"receiver"`
}

type WithdrawFeesResponse struct {
	Amount string `json:"amount"`
}

type QueueWithdrawRequest struct {
	Assets           string `json:"assets"`
	Receiver         string `json:"receiver"`
	MaxPenaltyFeePct int64  `json:"maxPenaltyFeePct"`
}

type QueueRedeemRequest struct {
	Shares           string `json:"shares"`
	Receiver         string `json:"receiver"`
	MaxPenaltyFeePct int64  `json:"maxPenaltyFeePct"`
}

type ExecuteRequest struct {
	Receiver string `json:"receiver"`
}

type FromVaultRequest struct {
	Amount       string `json:"amount"`
	SharesToBurn string `json:"sharesToBurn"`
}

type FulfillRequest struct {
	Amount       string `json:"amount"`
	SharesToBurn string `json:"sharesToBurn"`
}
