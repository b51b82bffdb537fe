// Package gateway maps the payment provider's response vocabulary onto a
// closed outcome set. The decline table is data, not logic: every message a
// user can see is written down here, and nothing else ever reaches them.
package gateway

// Codes with special meaning in the gateway's vocabulary.
const (
	CodeApproved      = "00"
	CodeUserCancelled = "24"
)

type OutcomeKind string

const (
	KindApproved      OutcomeKind = "APPROVED"
	KindUserCancelled OutcomeKind = "USER_CANCELLED"
	KindDeclined      OutcomeKind = "DECLINED"
)

// Outcome is what we decided the gateway told us.
// Code carries the raw response code for logs and the ledger only;
// Message is the only part a user may see.
type Outcome struct {
	Kind    OutcomeKind
	Code    string
	Message string
}

// declineMessages maps known gateway response codes to pre-approved,
// user-safe explanations. Codes outside this table get the generic fallback
// and the raw code never appears in the message.
var declineMessages = map[string]string{
	"01": "Your bank declined the payment. Please contact your bank or try a different card.",
	"03": "This merchant account cannot accept the payment right now. Please try again later.",
	"05": "Your bank declined the payment. Please contact your bank or try a different card.",
	"12": "The payment could not be processed. Please try again.",
	"13": "The payment amount was not accepted. Please try again.",
	"14": "The card number was not recognised. Please check it and try again.",
	"41": "This card has been reported lost. Please use a different card.",
	"43": "This card cannot be used for this payment. Please use a different card.",
	"51": "The payment was declined due to insufficient funds.",
	"54": "This card has expired. Please use a different card.",
	"61": "The payment exceeds the limit on this card. Please contact your bank.",
	"91": "Your bank could not be reached. Please try again in a few minutes.",
}

const fallbackDeclineMessage = "The payment could not be completed. Please try again or use a different payment method."

const (
	approvedMessage  = "Payment approved."
	cancelledMessage = "The payment was cancelled. Your account has not been charged."
)

// Classify turns the response code / transaction status pair into an Outcome.
//
// The gateway reports success in two independent fields and both must agree;
// trusting either one alone is a known way to get burned by this provider.
// Cancellation is keyed on the response code only and kept apart from generic
// declines so the caller can show a non-alarming message.
func Classify(responseCode, transactionStatus string) Outcome {
	if responseCode == CodeApproved && transactionStatus == CodeApproved {
		return Outcome{Kind: KindApproved, Code: responseCode, Message: approvedMessage}
	}

	if responseCode == CodeUserCancelled {
		return Outcome{Kind: KindUserCancelled, Code: responseCode, Message: cancelledMessage}
	}

	message, known := declineMessages[responseCode]
	if !known {
		message = fallbackDeclineMessage
	}
	return Outcome{Kind: KindDeclined, Code: responseCode, Message: message}
}

// KnownDeclineCodes lists every code in the decline table so tests can cover
// it exhaustively.
func KnownDeclineCodes() []string {
	codes := make([]string, 0, len(declineMessages))
	for code := range declineMessages {
		codes = append(codes, code)
	}
	return codes
}
