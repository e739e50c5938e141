package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		giftCardsMintedTotal,
		giftCardCollisionsTotal,
		giftCardDeliveriesTotal,
		redemptionsTotal,
		giftCardsByState,
	)
}

var (
	giftCardsMintedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gift_cards_minted_total",
			Help: "Gift cards minted, by source (purchase/manual).",
		},
		[]string{"source"},
	)

	giftCardCollisionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gift_card_code_collisions_total",
			Help: "Generated codes rejected because they already existed.",
		},
	)

	giftCardDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gift_card_deliveries_total",
			Help: "Gift card delivery attempts by status.",
		},
		[]string{"status"}, // 'sent', 'error', 'dropped'
	)

	redemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gift_card_redemptions_total",
			Help: "Redemption attempts by result.",
		},
		[]string{"result"}, // 'ok', 'not_found', 'already_used', 'expired', 'error'
	)

	giftCardsByState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gift_cards_total",
			Help: "Current number of gift cards by state.",
		},
		[]string{"state"}, // 'unused', 'used', 'expired'
	)
)

func IncGiftCardMinted(source string) {
	giftCardsMintedTotal.WithLabelValues(norm(source)).Inc()
}

func IncGiftCardCollision() {
	giftCardCollisionsTotal.Inc()
}

func IncGiftCardDelivery(status string) {
	giftCardDeliveriesTotal.WithLabelValues(norm(status)).Inc()
}

func IncRedemption(result string) {
	redemptionsTotal.WithLabelValues(norm(result)).Inc()
}

func SetGiftCardsByState(counts map[string]int) {
	for _, state := range []string{"unused", "used", "expired"} {
		giftCardsByState.WithLabelValues(state).Set(float64(counts[state]))
	}
}
