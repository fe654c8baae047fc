package settlement

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/SMSDAO/aaveflashloan/internal/domain"
)

func testPlan() domain.SettlementPlan {
	return domain.SettlementPlan{
		Borrowed:     common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		Intermediate: common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"),
		BorrowAmount: big.NewInt(1_000_000),
		Leg1: domain.PlanLeg{
			Venue:   domain.VenueConcentratedLiquidity,
			Pool:    common.HexToAddress("0x1111111111111111111111111111111111111111"),
			FeeTier: 3000,
			MinOut:  big.NewInt(123_456_789),
		},
		Leg2: domain.PlanLeg{
			Venue:  domain.VenueStableSwap,
			Pool:   common.HexToAddress("0x2222222222222222222222222222222222222222"),
			CoinI:  2,
			CoinJ:  1,
			MinOut: big.NewInt(987_654_321),
		},
	}
}

func word(t *testing.T, data []byte, i int) []byte {
	t.Helper()
	if len(data) < (i+1)*32 {
		t.Fatalf("data too short for word %d: %d bytes", i, len(data))
	}
	return data[i*32 : (i+1)*32]
}

func wordInt(t *testing.T, data []byte, i int) *big.Int {
	t.Helper()
	return new(big.Int).SetBytes(word(t, data, i))
}

func wordAddr(t *testing.T, data []byte, i int) common.Address {
	t.Helper()
	w := word(t, data, i)
	for _, b := range w[:12] {
		if b != 0 {
			t.Fatalf("word %d has nonzero address padding: %x", i, w)
		}
	}
	return common.BytesToAddress(w[12:])
}

func TestEncodePlanLayout(t *testing.T) {
	p := testPlan()
	data, err := EncodePlan(p)
	if err != nil {
		t.Fatalf("EncodePlan() error = %v", err)
	}
	if len(data) != 14*32 {
		t.Fatalf("encoded plan is %d bytes, want %d", len(data), 14*32)
	}

	intWords := []struct {
		idx  int
		name string
		want int64
	}{
		{0, "venueLeg1", int64(domain.VenueConcentratedLiquidity)},
		{1, "venueLeg2", int64(domain.VenueStableSwap)},
		{4, "feeLeg1", 3000},
		{5, "feeLeg2", 0},
		{8, "coinInLeg1", 0},
		{9, "coinOutLeg1", 0},
		{10, "coinInLeg2", 2},
		{11, "coinOutLeg2", 1},
		{12, "minOutLeg1", 123_456_789},
		{13, "minOutLeg2", 987_654_321},
	}
	for _, w := range intWords {
		if got := wordInt(t, data, w.idx); got.Int64() != w.want {
			t.Errorf("word %d (%s) = %s, want %d", w.idx, w.name, got, w.want)
		}
	}

	addrWords := []struct {
		idx  int
		name string
		want common.Address
	}{
		{2, "borrowed", p.Borrowed},
		{3, "intermediate", p.Intermediate},
		{6, "poolLeg1", p.Leg1.Pool},
		{7, "poolLeg2", p.Leg2.Pool},
	}
	for _, w := range addrWords {
		if got := wordAddr(t, data, w.idx); got != w.want {
			t.Errorf("word %d (%s) = %s, want %s", w.idx, w.name, got.Hex(), w.want.Hex())
		}
	}
}

func TestPlanRoundTrip(t *testing.T) {
	p := testPlan()
	data, err := EncodePlan(p)
	if err != nil {
		t.Fatalf("EncodePlan() error = %v", err)
	}
	got, err := DecodePlan(data)
	if err != nil {
		t.Fatalf("DecodePlan() error = %v", err)
	}

	if got.Borrowed != p.Borrowed || got.Intermediate != p.Intermediate {
		t.Errorf("addresses = %s/%s, want %s/%s", got.Borrowed.Hex(), got.Intermediate.Hex(), p.Borrowed.Hex(), p.Intermediate.Hex())
	}
	legs := []struct {
		name      string
		got, want domain.PlanLeg
	}{
		{"leg1", got.Leg1, p.Leg1},
		{"leg2", got.Leg2, p.Leg2},
	}
	for _, l := range legs {
		if l.got.Venue != l.want.Venue || l.got.Pool != l.want.Pool || l.got.FeeTier != l.want.FeeTier {
			t.Errorf("%s = %+v, want %+v", l.name, l.got, l.want)
		}
		if l.got.CoinI != l.want.CoinI || l.got.CoinJ != l.want.CoinJ {
			t.Errorf("%s coins = %d/%d, want %d/%d", l.name, l.got.CoinI, l.got.CoinJ, l.want.CoinI, l.want.CoinJ)
		}
		if l.got.MinOut.Cmp(l.want.MinOut) != 0 {
			t.Errorf("%s MinOut = %s, want %s", l.name, l.got.MinOut, l.want.MinOut)
		}
	}
	// The borrow amount rides in the loan request, not the params.
	if got.BorrowAmount != nil {
		t.Errorf("decoded BorrowAmount = %s, want nil", got.BorrowAmount)
	}

	// Re-encoding the decoded plan reproduces the input byte for byte.
	again, err := EncodePlan(got)
	if err != nil {
		t.Fatalf("EncodePlan(decoded) error = %v", err)
	}
	if !bytes.Equal(data, again) {
		t.Errorf("re-encoded plan differs:\n  first:  %x\n  second: %x", data, again)
	}
}

func TestEncodePlanNilMinOut(t *testing.T) {
	p := testPlan()
	p.Leg1.MinOut = nil
	data, err := EncodePlan(p)
	if err != nil {
		t.Fatalf("EncodePlan() error = %v", err)
	}
	if got := wordInt(t, data, 12); got.Sign() != 0 {
		t.Errorf("minOutLeg1 word = %s, want 0", got)
	}
	decoded, err := DecodePlan(data)
	if err != nil {
		t.Fatalf("DecodePlan() error = %v", err)
	}
	if decoded.Leg1.MinOut == nil || decoded.Leg1.MinOut.Sign() != 0 {
		t.Errorf("decoded MinOut = %v, want 0", decoded.Leg1.MinOut)
	}
}

func TestEncodePlanRejectsUnknownVenue(t *testing.T) {
	p := testPlan()
	p.Leg2.Venue = domain.VenueKind(99)
	if _, err := EncodePlan(p); !errors.Is(err, domain.ErrUnknownVenue) {
		t.Fatalf("EncodePlan() error = %v, want %v", err, domain.ErrUnknownVenue)
	}
}

func TestDecodePlanRejectsUnknownVenue(t *testing.T) {
	data, err := EncodePlan(testPlan())
	if err != nil {
		t.Fatalf("EncodePlan() error = %v", err)
	}
	// Corrupt the venueLeg1 word in place.
	data[31] = 9
	if _, err := DecodePlan(data); !errors.Is(err, domain.ErrUnknownVenue) {
		t.Fatalf("DecodePlan() error = %v, want %v", err, domain.ErrUnknownVenue)
	}
}

func TestDecodePlanRejectsShortData(t *testing.T) {
	if _, err := DecodePlan([]byte{0x01, 0x02, 0x03}); err == nil {
		t.Fatal("DecodePlan() accepted truncated data")
	}
}
