package events

// Topics emitted by the checkout service.
const (
	// TopicCheckoutSubmitted fires when a session hands off to the order
	// collaborator.
	TopicCheckoutSubmitted = "checkout.submitted"
	// TopicVoucherApplied fires when a voucher lands in a session's slot.
	TopicVoucherApplied = "checkout.voucher_applied"
	// TopicQuoteComputed fires for every priced quote.
	TopicQuoteComputed = "checkout.quote_computed"
)
