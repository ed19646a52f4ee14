package events

// Event enumerates high-level topics inside the gateway.
type Event string

const (
	EventQuoteTick         Event = "quote_tick"
	EventOrderAccepted     Event = "order.accepted"
	EventOrderRejected     Event = "order.rejected"
	EventOrderSubmitFailed Event = "order.submit_failed"
	EventAssetCacheRefresh Event = "asset_cache.refreshed"
)
