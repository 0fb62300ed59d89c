package memory_test

import (
	"testing"

	"github.com/LeJamon/goXRPLpay/internal/payout"
	"github.com/LeJamon/goXRPLpay/internal/storage/paymentdb/memory"
	"github.com/LeJamon/goXRPLpay/internal/storage/paymentdb/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) payout.Store {
		s := memory.New()
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}
