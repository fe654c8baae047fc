package journal

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/SMSDAO/aaveflashloan/internal/domain"
)

type sinkCalls struct {
	inserts     []domain.Opportunity
	upserts     []domain.SettlementRecord
	quoteSets   int
	published   []string
	notified    []string
	insertErr   error
	notifierErr error
}

func (s *sinkCalls) Insert(_ context.Context, opp domain.Opportunity) error {
	s.inserts = append(s.inserts, opp)
	return s.insertErr
}

func (s *sinkCalls) Upsert(_ context.Context, rec domain.SettlementRecord) error {
	s.upserts = append(s.upserts, rec)
	return nil
}

func (s *sinkCalls) SetQuotes(context.Context, string, []domain.VenueQuote) error {
	s.quoteSets++
	return nil
}

func (s *sinkCalls) PublishOpportunity(_ context.Context, opp domain.Opportunity) error {
	s.published = append(s.published, "opp:"+opp.ID)
	return nil
}

func (s *sinkCalls) PublishSettlement(_ context.Context, rec domain.SettlementRecord) error {
	s.published = append(s.published, "settlement:"+rec.ID)
	return nil
}

func (s *sinkCalls) OpportunityFound(_ context.Context, opp domain.Opportunity) error {
	s.notified = append(s.notified, "found:"+opp.ID)
	return s.notifierErr
}

func (s *sinkCalls) SettlementSubmitted(_ context.Context, rec domain.SettlementRecord) error {
	s.notified = append(s.notified, "submitted:"+rec.ID)
	return nil
}

func (s *sinkCalls) SettlementSettled(_ context.Context, rec domain.SettlementRecord) error {
	s.notified = append(s.notified, "settled:"+rec.ID)
	return nil
}

func (s *sinkCalls) SettlementFailed(_ context.Context, rec domain.SettlementRecord) error {
	s.notified = append(s.notified, "failed:"+rec.ID)
	return nil
}

func newTestRecorder(s *sinkCalls) *Recorder {
	return New(s, s, s, s, s, slog.New(slog.DiscardHandler))
}

func TestRecordOpportunitiesFansOut(t *testing.T) {
	s := &sinkCalls{}
	r := newTestRecorder(s)
	opps := []domain.Opportunity{
		{ID: "o1", SpreadBps: 50},
		{ID: "o2", SpreadBps: 20},
	}

	r.RecordOpportunities(context.Background(), opps)

	if len(s.inserts) != 2 {
		t.Errorf("inserts = %d, want 2", len(s.inserts))
	}
	if len(s.published) != 2 || s.published[0] != "opp:o1" || s.published[1] != "opp:o2" {
		t.Errorf("published = %v", s.published)
	}
	// Only the best opportunity is worth an operator ping.
	if len(s.notified) != 1 || s.notified[0] != "found:o1" {
		t.Errorf("notified = %v, want only found:o1", s.notified)
	}
}

func TestRecordSettlementRoutesByStatus(t *testing.T) {
	tests := []struct {
		name       string
		status     domain.SettlementStatus
		wantNotify string
	}{
		{"settled", domain.SettlementSettled, "settled:r1"},
		{"failed", domain.SettlementFailed, "failed:r1"},
		{"pending stays quiet", domain.SettlementPending, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &sinkCalls{}
			r := newTestRecorder(s)
			rec := domain.SettlementRecord{ID: "r1", Status: tt.status}

			r.RecordSettlement(context.Background(), rec)

			if len(s.upserts) != 1 {
				t.Errorf("upserts = %d, want 1", len(s.upserts))
			}
			if len(s.published) != 1 || s.published[0] != "settlement:r1" {
				t.Errorf("published = %v", s.published)
			}
			if tt.wantNotify == "" {
				if len(s.notified) != 0 {
					t.Errorf("notified = %v, want none", s.notified)
				}
				return
			}
			if len(s.notified) != 1 || s.notified[0] != tt.wantNotify {
				t.Errorf("notified = %v, want %s", s.notified, tt.wantNotify)
			}
		})
	}
}

func TestSettlementSubmittedCheckpoint(t *testing.T) {
	s := &sinkCalls{}
	r := newTestRecorder(s)
	rec := domain.SettlementRecord{ID: "r1", Status: domain.SettlementSubmitted}

	r.SettlementSubmitted(context.Background(), rec)

	if len(s.upserts) != 1 {
		t.Errorf("upserts = %d, want 1", len(s.upserts))
	}
	if len(s.notified) != 1 || s.notified[0] != "submitted:r1" {
		t.Errorf("notified = %v, want submitted:r1", s.notified)
	}
	// The checkpoint does not hit the stream; the final record does.
	if len(s.published) != 0 {
		t.Errorf("published = %v, want none", s.published)
	}
}

func TestSinkFailuresAreAbsorbed(t *testing.T) {
	s := &sinkCalls{insertErr: errors.New("pg down"), notifierErr: errors.New("telegram down")}
	r := newTestRecorder(s)

	// Must not panic or stop on failing sinks; the stream still gets both.
	r.RecordOpportunities(context.Background(), []domain.Opportunity{{ID: "o1"}, {ID: "o2"}})
	if len(s.published) != 2 {
		t.Errorf("published = %v, want both opportunities", s.published)
	}
}

func TestNilSinksAreSkipped(t *testing.T) {
	r := New(nil, nil, nil, nil, nil, slog.New(slog.DiscardHandler))

	// All writes become no-ops without a backend.
	r.RecordQuotes(context.Background(), "WETH/USDC", nil)
	r.RecordOpportunities(context.Background(), []domain.Opportunity{{ID: "o1"}})
	r.SettlementSubmitted(context.Background(), domain.SettlementRecord{ID: "r1"})
	r.RecordSettlement(context.Background(), domain.SettlementRecord{ID: "r1", Status: domain.SettlementSettled})
}

func TestRecordQuotes(t *testing.T) {
	s := &sinkCalls{}
	r := newTestRecorder(s)
	r.RecordQuotes(context.Background(), "WETH/USDC", []domain.VenueQuote{{Venue: "a"}})
	if s.quoteSets != 1 {
		t.Errorf("quote sets = %d, want 1", s.quoteSets)
	}
}
