package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (h *Handler) Routes(m *Middleware, corsOrigins []string, rateLimitRPM int) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(m.RequestID)
	r.Use(m.RequestLogger)
	r.Use(m.Recoverer)
	r.Use(m.SecurityHeaders)
	r.Use(m.Compress)
	r.Use(m.Timeout(15 * time.Second))
	r.Use(middleware.Heartbeat("/ping"))

	// CORS and rate limiting - configured from main
	r.Use(m.CORS(corsOrigins))
	r.Use(m.RateLimit(rateLimitRPM))

	// Health endpoints
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)

	// v1 API routes
	r.Route("/v1", func(r chi.Router) {
		r.Route("/vault", func(r chi.Router) {
			r.Post("/initialize", h.InitializeVault)
			r.Post("/deposit", h.Deposit)
			r.Post("/mint", h.Mint)
			r.Post("/withdraw", h.Withdraw)
			r.Post("/redeem", h.Redeem)
			r.Post("/redeem-excess", h.RedeemExcess)
			r.Post("/to-mainnet", h.ToMainnet)
			r.Post("/from-mainnet", h.FromMainnet)
			r.Post("/exchange-price", h.UpdateExchangePrice)
			r.Post("/withdraw-fees", h.WithdrawFees)

			// Owner setters
			r.Post("/rebalancers", h.SetRebalancer)
			r.Post("/bridge-address", h.SetBridgeAddress)
			r.Post("/threshold", h.SetMinimumThreshold)
			r.Post("/withdraw-fee", h.SetWithdrawFee)
			r.Post("/withdraw-fee-min", h.SetWithdrawFeeMin)
			r.Post("/owner", h.TransferVaultOwnership)

			r.Get("/state", h.GetVaultState)
			r.Get("/fees/withdraw", h.GetWithdrawFeePreview)
			r.Get("/balances/{address}", h.GetBalances)
		})

		r.Route("/queue", func(r chi.Router) {
			r.Post("/withdraw", h.QueueWithdraw)
			r.Post("/redeem", h.QueueRedeem)
			r.Post("/execute", h.ExecuteQueued)
			r.Post("/from-vault", h.QueueFromVault)
			r.Post("/penalty-fee", h.SetPenaltyFee)
			r.Post("/fee-setters", h.SetFeeSetter)
			r.Post("/fulfillers", h.SetFulfiller)

			r.Get("/state", h.GetQueueState)
			r.Get("/requests/{address}", h.GetQueuedRequest)
		})

		r.Post("/fulfill", h.Fulfill)

		r.Get("/events", h.GetEvents)

		// Live updates
		r.Get("/stream", h.HandleSSE)
		r.Get("/ws", h.HandleWebSocket)
	})

	return r
}
