package domain

import (
	"fmt"
	"time"
)

// Meta carries the identity and timestamps shared by every persisted record.
// The repository layer assigns ID on create when the caller left it empty and
// restamps UpdatedAt on every write.
type Meta struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (m *Meta) RecordID() string { return m.ID }

func (m *Meta) SetRecordID(id string) { m.ID = id }

func (m *Meta) Stamp(now time.Time, isNew bool) {
	if isNew && m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
}

func (m *Meta) Created() time.Time { return m.CreatedAt }

func (m *Meta) SetCreated(t time.Time) { m.CreatedAt = t }

// Client is a business party (tiers). CodeTiers is a display code generated
// with collision-avoidance against the codes already in the table.
type Client struct {
	Meta
	CodeTiers    string `json:"codeTiers"`
	RaisonSocial string `json:"raisonSocial"`
	Famille      string `json:"famille"`
	Activite     string `json:"activite,omitempty"`
	Adresse      string `json:"adresse,omitempty"`
	Tel          string `json:"tel,omitempty"`
	Email        string `json:"email,omitempty"`
	RC           string `json:"rc,omitempty"`
	NIF          string `json:"nif,omitempty"`
	NIS          string `json:"nis,omitempty"`
	AI           string `json:"ai,omitempty"`
}

// Article is a catalog entry. Ref is unique-checked by the safe create path.
type Article struct {
	Meta
	Ref         string  `json:"ref"`
	Designation string  `json:"designation"`
	Famille     string  `json:"famille,omitempty"`
	PrixAchat   float64 `json:"prixAchat"`
	PrixVente   float64 `json:"prixVente"`
	Qte         int     `json:"qte"`
}

// LigneAchat is one purchase line. Lines are never persisted on their own;
// the achat is the unit of audit.
type LigneAchat struct {
	Ref         string  `json:"ref"`
	Designation string  `json:"designation"`
	Quantite    int     `json:"quantite"`
	Depot       string  `json:"depot"`
	PrixAchat   float64 `json:"prixAchat"`
}

// Achat is a confirmed purchase.
type Achat struct {
	Meta
	Fournisseur string       `json:"fournisseur"`
	Date        string       `json:"date"`
	Montant     float64      `json:"montant"`
	Lignes      []LigneAchat `json:"lignes"`
}

// StockItem tracks the quantity of one article in one depot. Its record id is
// the composite key StockKey(ref, depot) so lookups are keyed, not scanned.
type StockItem struct {
	Meta
	Ref      string `json:"ref"`
	Depot    string `json:"depot"`
	Quantite int    `json:"quantite"`
}

// StockKey builds the composite identity of a stock row.
func StockKey(ref, depot string) string {
	return ref + "::" + depot
}

// Vente is the light sale record. Its ID is the invoice number and always
// equals the ID of the Facture snapshot written in the same confirmation.
type Vente struct {
	Meta
	Client      string  `json:"client"`
	Date        string  `json:"date"`
	Montant     float64 `json:"montant"`
	PrixHT      float64 `json:"prixHT"`
	UnitPrice   float64 `json:"unitPrice"`
	NombreItems int     `json:"nombreItems"`
}

// Facture is the immutable complete-invoice snapshot taken at confirmation
// time. It is never re-derived from the Vente.
type Facture struct {
	Meta
	Company FactureCompany `json:"company"`
	Client  FactureClient  `json:"client"`
	Items   []FactureItem  `json:"items"`
	Totals  FactureTotals  `json:"totals"`
	Devise  string         `json:"devise"`
	Date    string         `json:"date"`
}

type FactureCompany struct {
	Nom     string `json:"nom"`
	Adresse string `json:"adresse,omitempty"`
	Tel     string `json:"tel,omitempty"`
	RC      string `json:"rc,omitempty"`
	NIF     string `json:"nif,omitempty"`
	NIS     string `json:"nis,omitempty"`
	AI      string `json:"ai,omitempty"`
}

type FactureClient struct {
	CodeTiers    string `json:"codeTiers"`
	RaisonSocial string `json:"raisonSocial"`
	Adresse      string `json:"adresse,omitempty"`
	RC           string `json:"rc,omitempty"`
	NIF          string `json:"nif,omitempty"`
	NIS          string `json:"nis,omitempty"`
	AI           string `json:"ai,omitempty"`
}

type FactureItem struct {
	Ref         string  `json:"ref"`
	Designation string  `json:"designation"`
	Quantite    int     `json:"quantite"`
	Depot       string  `json:"depot"`
	PrixVente   float64 `json:"prixVente"`
	MontantHT   float64 `json:"montantHT"`
}

type FactureTotals struct {
	HT   float64 `json:"ht"`
	TVA  float64 `json:"tva"`
	TTC  float64 `json:"ttc"`
	Taux float64 `json:"taux"`
}

// HistoryKind enumerates the audit action kinds.
type HistoryKind string

const (
	HistoryClientCreated   HistoryKind = "client_created"
	HistoryClientUpdated   HistoryKind = "client_updated"
	HistoryClientDeleted   HistoryKind = "client_deleted"
	HistoryArticleCreated  HistoryKind = "article_created"
	HistoryArticleUpdated  HistoryKind = "article_updated"
	HistoryArticleDeleted  HistoryKind = "article_deleted"
	HistoryAchatCreated    HistoryKind = "achat_created"
	HistoryAchatUpdated    HistoryKind = "achat_updated"
	HistoryAchatDeleted    HistoryKind = "achat_deleted"
	HistoryStockCreated    HistoryKind = "stock_created"
	HistoryStockUpdated    HistoryKind = "stock_updated"
	HistoryStockDeleted    HistoryKind = "stock_deleted"
	HistoryVenteCreated    HistoryKind = "vente_created"
	HistoryVenteUpdated    HistoryKind = "vente_updated"
	HistoryVenteDeleted    HistoryKind = "vente_deleted"
	HistoryFactureCreated  HistoryKind = "facture_created"
	HistoryFactureUpdated  HistoryKind = "facture_updated"
	HistoryFactureDeleted  HistoryKind = "facture_deleted"
	HistorySettingsUpdated HistoryKind = "settings_updated"
	HistoryImportCompleted HistoryKind = "import_completed"
)

// HistoryAction is one immutable audit entry. Appended on every repository
// mutation, never updated or deleted afterwards.
type HistoryAction struct {
	Meta
	Kind        HistoryKind       `json:"kind"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	EntityID    string            `json:"entityId"`
	EntityType  string            `json:"entityType"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// HistoryFilter narrows a history read. Zero fields match everything.
type HistoryFilter struct {
	Kinds      []HistoryKind
	EntityType string
	From       time.Time
	To         time.Time
}

// Settings is the process-wide configuration consumed by invoice numbering
// and amount formatting. Persisted as a single-row table and always passed in
// explicitly, never read through an ambient global.
type Settings struct {
	Devise             string         `json:"devise"`
	TauxTVA            float64        `json:"tauxTVA"`
	InvoicePrefix      string         `json:"invoicePrefix"`
	AllowNegativeStock bool           `json:"allowNegativeStock"`
	Company            FactureCompany `json:"company"`
	UpdatedAt          time.Time      `json:"updatedAt"`
}

// FormatAmount renders an amount with the configured currency, e.g. "80.00 DA".
func (s Settings) FormatAmount(v float64) string {
	devise := s.Devise
	if devise == "" {
		devise = "DA"
	}
	return fmt.Sprintf("%.2f %s", v, devise)
}

// SaleLine is one line of a sale confirmation request. The depot rides on the
// line, matching the stock row it decrements.
type SaleLine struct {
	Ref         string  `json:"ref"`
	Designation string  `json:"designation"`
	Quantite    int     `json:"quantite"`
	Depot       string  `json:"depot"`
	PrixVente   float64 `json:"prixVente"`
}

// ConfirmSaleRequest drives the three-write sale confirmation. InvoiceID is
// empty for a new sale (the next number is generated) and set when editing an
// existing invoice.
type ConfirmSaleRequest struct {
	InvoiceID string     `json:"invoiceId,omitempty"`
	ClientID  string     `json:"clientId"`
	Date      string     `json:"date,omitempty"`
	Items     []SaleLine `json:"items"`
}

type ConfirmSaleResponse struct {
	InvoiceID string  `json:"invoiceId"`
	Vente     Vente   `json:"vente"`
	Facture   Facture `json:"facture"`
}

type ConfirmPurchaseRequest struct {
	Fournisseur string       `json:"fournisseur"`
	Date        string       `json:"date,omitempty"`
	Lignes      []LigneAchat `json:"lignes"`
}

type ConfirmPurchaseResponse struct {
	Achat Achat `json:"achat"`
}

// IntentStatus tracks the write-ahead record of a sale confirmation.
type IntentStatus string

const (
	IntentPending  IntentStatus = "pending"
	IntentComplete IntentStatus = "complete"
)

// Intent step names, recorded in order as the confirmation progresses.
const (
	StepVente   = "vente"
	StepFacture = "facture"
	StepStock   = "stock"
)

// SaleIntent is the durable write-ahead record for one sale confirmation.
// It carries the full payload so an interrupted flow can be replayed from the
// last recorded step.
type SaleIntent struct {
	Meta
	SaleID    string       `json:"saleId"`
	Status    IntentStatus `json:"status"`
	StepsDone []string     `json:"stepsDone"`
	Vente     Vente        `json:"vente"`
	Facture   Facture      `json:"facture"`
	Items     []SaleLine   `json:"items"`
}

// ExportBundle is the bulk export/import document: one top-level key per
// table, each holding the full array for that table.
type ExportBundle struct {
	Clients    []Client        `json:"clients"`
	Articles   []Article       `json:"articles"`
	Achats     []Achat         `json:"achats"`
	Ventes     []Vente         `json:"ventes"`
	StockItems []StockItem     `json:"stock_items"`
	Factures   []Facture       `json:"factures"`
	History    []HistoryAction `json:"history"`
}

// Actor identifies the authenticated caller, carried in the request context.
type Actor struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// UserAccount is a stored API credential. Password holds a bcrypt hash.
type UserAccount struct {
	Meta
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Active   bool   `json:"active"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}
