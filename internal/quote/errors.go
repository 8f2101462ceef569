package quote

// Quote error codes. Business conditions discovered while pricing are data
// on the quote, not Go errors: a quote is always returned, and the caller
// decides what the errors block.
const (
	// CodeShippingNotSelected blocks submission until the store group has a
	// courier choice.
	CodeShippingNotSelected = "SHIPPING_NOT_SELECTED"
	// CodeVoucherNotFound records a voucher code with no catalog entry.
	CodeVoucherNotFound = "VOUCHER_NOT_FOUND"
	// CodeVoucherExpired records a voucher used outside its validity window.
	CodeVoucherExpired = "VOUCHER_EXPIRED"
	// CodeBelowMinimumPurchase records a subtotal under the voucher threshold.
	CodeBelowMinimumPurchase = "BELOW_MINIMUM_PURCHASE"
	// CodeVoucherInvalid records a malformed voucher definition.
	CodeVoucherInvalid = "VOUCHER_INVALID"
	// CodeCurrencyMismatch records arithmetic attempted across currencies.
	CodeCurrencyMismatch = "CURRENCY_MISMATCH"
)

// Error is one validation condition attached to a quote.
type Error struct {
	Code    string `json:"code"`
	StoreID string `json:"storeId,omitempty"`
	Message string `json:"message"`
}

// blocksSubmission reports whether this condition alone prevents checkout.
// Voucher failures do not: the order can proceed without the discount. A
// missing shipping selection always blocks.
func (e Error) blocksSubmission() bool {
	switch e.Code {
	case CodeVoucherNotFound, CodeVoucherExpired, CodeBelowMinimumPurchase, CodeVoucherInvalid:
		return false
	default:
		return true
	}
}
