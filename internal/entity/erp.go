// Package entity maps the ERP tables read by the ledger pipeline. Column
// names follow the ERP schema verbatim.
package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Order is a sales order header (PEDIDOVENDA).
type Order struct {
	bun.BaseModel `bun:"table:PEDIDOVENDA,alias:P"`

	ID            int64     `bun:"CDPEDIDOVENDA,pk"`
	Date          time.Time `bun:"DATA"`
	CustomerName  string    `bun:"NOMECLIENTE"`
	CustomerID    int64     `bun:"CDCLIENTE"`
	SalespersonID int64     `bun:"CDFUNC"`
	Discount      Numeric   `bun:"DESCONTO"`
	Total         Numeric   `bun:"VALORTOTAL"`
}

// OrderItem is a sales order line (ITENSPEDIDOVENDA). Quantity is kept raw
// because legacy rows may hold NULL or non-numeric values.
type OrderItem struct {
	bun.BaseModel `bun:"table:ITENSPEDIDOVENDA,alias:I"`

	OrderID      int64    `bun:"CDPEDIDOVENDA"`
	ProductID    int64    `bun:"CDPRODUTO"`
	ExternalCode string   `bun:"NUMORIGINAL"`
	Quantity     NullText `bun:"QUANTIDADE"`
	UnitPrice    Numeric  `bun:"VALORUNITARIOCDESC"`
	Description  string   `bun:"DESCRICAO"`
}

// Client is a customer record (CLIENTE).
type Client struct {
	bun.BaseModel `bun:"table:CLIENTE,alias:C"`

	ID         int64  `bun:"CDCLIENTE,pk"`
	TaxID      string `bun:"CPF_CNPJ"`
	PostalCode string `bun:"CEP"`
	City       string `bun:"CIDADE"`
	State      string `bun:"ESTADO"`
}

// Phone is one of a client's phone numbers (FONE).
type Phone struct {
	bun.BaseModel `bun:"table:FONE,alias:F"`

	ClientID int64  `bun:"CDCLIENTE"`
	Number   string `bun:"FONE"`
}

// Employee is a salesperson (FUNCIONARIO). The credential column is
// repurposed by the ERP users to store the sales channel.
type Employee struct {
	bun.BaseModel `bun:"table:FUNCIONARIO,alias:FU"`

	ID         int64  `bun:"CDFUNC,pk"`
	Credential string `bun:"NUMCNH"`
}

// Event kinds stored in the TIPO column of the history partitions.
const (
	EventOrder    = "PEDIDO"
	EventPurchase = "NF COMPRA"
)

// HistoryEvent is a row of one of the HISTORICOPRODUTO<n> partitions.
type HistoryEvent struct {
	ProductID int64     `bun:"CDPRODUTO"`
	Date      time.Time `bun:"DATA"`
	Document  string    `bun:"NUMDOCUMENTO"`
	Kind      string    `bun:"TIPO"`
}

// PurchaseInvoiceLine is a purchase invoice item joined to its header
// (NOTACOMPRA x ITENSNOTACOMPRA). IPI and ICMS are stored as percentages.
type PurchaseInvoiceLine struct {
	Document  string  `bun:"NUMNOTA" json:"document"`
	ProductID int64   `bun:"CDPRODUTO" json:"product_id"`
	UnitCost  Numeric `bun:"VALORUNITARIO" json:"unit_cost"`
	IPI       Numeric `bun:"IPI" json:"ipi"`
	ICMS      Numeric `bun:"ICMS" json:"icms"`
}
