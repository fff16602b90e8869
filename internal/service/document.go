package service

import (
	"context"
	"fmt"
	"strings"
)

// InvoiceDocument is the printable rendition of a stored invoice snapshot.
type InvoiceDocument struct {
	InvoiceID string `json:"invoiceId"`
	FileName  string `json:"fileName"`
	Text      string `json:"text"`
}

// BuildInvoiceDocument renders the stored snapshot as plain text. It reads
// only the Facture: nothing is re-derived from the Vente or the catalog, so
// later price edits never change an issued invoice.
func (s *Service) BuildInvoiceDocument(ctx context.Context, invoiceID string) (InvoiceDocument, error) {
	facture, err := s.repos.Factures.Get(ctx, invoiceID)
	if err != nil {
		return InvoiceDocument{}, err
	}

	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format+"\n", args...)
	}

	if facture.Company.Nom != "" {
		line("%s", facture.Company.Nom)
		if facture.Company.Adresse != "" {
			line("%s", facture.Company.Adresse)
		}
		for _, id := range []struct{ label, value string }{
			{"RC", facture.Company.RC}, {"NIF", facture.Company.NIF},
			{"NIS", facture.Company.NIS}, {"AI", facture.Company.AI},
		} {
			if id.value != "" {
				line("%s: %s", id.label, id.value)
			}
		}
		line("")
	}

	line("FACTURE %s", facture.ID)
	line("Date: %s", facture.Date)
	line("")
	line("Client: %s (%s)", facture.Client.RaisonSocial, facture.Client.CodeTiers)
	if facture.Client.Adresse != "" {
		line("%s", facture.Client.Adresse)
	}
	line("")
	line("%-12s %-24s %5s %12s %12s", "Ref", "Designation", "Qte", "PU HT", "Montant HT")
	line("%s", strings.Repeat("-", 70))
	for _, item := range facture.Items {
		line("%-12s %-24s %5d %12.2f %12.2f",
			item.Ref, truncate(item.Designation, 24), item.Quantite, item.PrixVente, item.MontantHT)
	}
	line("%s", strings.Repeat("-", 70))
	line("%-44s %24.2f %s", "Total HT", facture.Totals.HT, facture.Devise)
	line("%-44s %24.2f %s", fmt.Sprintf("TVA %.0f%%", facture.Totals.Taux*100), facture.Totals.TVA, facture.Devise)
	line("%-44s %24.2f %s", "Total TTC", facture.Totals.TTC, facture.Devise)

	return InvoiceDocument{
		InvoiceID: facture.ID,
		FileName:  fmt.Sprintf("facture-%s.txt", strings.ReplaceAll(facture.ID, "/", "-")),
		Text:      b.String(),
	}, nil
}

// truncate cuts on rune boundaries so accented designations never end in a
// broken UTF-8 sequence.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
