package service

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"time"
)

// NextInvoiceNumber scans the existing invoices for ids matching
// prefix-NNNN, takes the highest numeric suffix and returns prefix-(max+1)
// zero-padded to four digits. Ids under other prefixes are ignored, so
// changing the prefix restarts the sequence at 0001. Each returned number is
// reserved under the numbering mutex: a second caller sees it as issued even
// while the first caller's facture write is still in flight.
func (s *Service) NextInvoiceNumber(ctx context.Context, prefix string) (string, error) {
	s.numberingMu.Lock()
	defer s.numberingMu.Unlock()

	factures, err := s.repos.Factures.List(ctx)
	if err != nil {
		// A timestamp id keeps the sale usable when the invoice table is
		// unreadable, at the cost of breaking the visible sequence.
		log.Printf("[service] WARN: invoice scan failed, falling back to timestamp id: %v", err)
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixMilli()), nil
	}

	pattern, err := regexp.Compile("^" + regexp.QuoteMeta(prefix) + `-(\d+)$`)
	if err != nil {
		return "", fmt.Errorf("invoice prefix %q: %w", prefix, err)
	}

	max := s.lastIssued[prefix]
	for _, facture := range factures {
		m := pattern.FindStringSubmatch(facture.ID)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}

	next := max + 1
	s.lastIssued[prefix] = next
	return fmt.Sprintf("%s-%04d", prefix, next), nil
}
