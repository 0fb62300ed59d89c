package ledger

import (
	"strings"

	"github.com/LeJamon/goXRPLpay/internal/payout"
)

// classifySubmit maps a rippled engine result onto the pipeline's submit
// outcomes. The mapping follows how rippled treats each class:
//
//   - tes: applied; the transaction should validate within its ledger
//     window.
//   - tec: included in a ledger with the fee claimed and the sequence
//     consumed. The payment itself failed, but successors are still valid.
//   - tem, tef: never applied and the sequence not consumed. The artifact
//     is malformed or stale (tefPAST_SEQ and friends), which poisons every
//     sequence stamped behind it.
//   - ter, tel: not applied yet, but the same blob may succeed later.
//
// Unknown result strings fail closed as resigns: guessing wrong about
// whether a sequence was consumed corrupts every in-flight transaction.
func classifySubmit(engineResult, message string) payout.SubmitResult {
	res := payout.SubmitResult{
		EngineResult: engineResult,
		Reason:       reasonFor(engineResult, message),
	}

	switch {
	case strings.HasPrefix(engineResult, "tes"):
		res.Status = payout.SubmitAccepted

	case strings.HasPrefix(engineResult, "tec"):
		res.Status = payout.SubmitReject
		res.Invalidating = false

	case strings.HasPrefix(engineResult, "tem"),
		strings.HasPrefix(engineResult, "tef"):
		res.Status = payout.SubmitResign

	case strings.HasPrefix(engineResult, "ter"),
		strings.HasPrefix(engineResult, "tel"):
		res.Status = payout.SubmitTransient

	default:
		res.Status = payout.SubmitResign
		if res.Reason == "" {
			res.Reason = "unrecognized engine result " + engineResult
		}
	}

	return res
}

func reasonFor(engineResult, message string) string {
	if message != "" {
		return message
	}
	return engineResult
}
