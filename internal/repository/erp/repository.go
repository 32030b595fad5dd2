package erp

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/salesledger/internal/chunk"
	"github.com/Additional-Code/salesledger/internal/database"
	"github.com/Additional-Code/salesledger/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/salesledger/repository/erp")

// Reader runs the bulk queries of one chunk over a single checked-out
// connection. Every method taking ids issues exactly one statement; callers
// split ids into blocks below the engine's parameter ceiling.
//
// Model aliases are upper case and predicates name them through
// ?TableAlias: firebird folds unquoted identifiers to upper case, so a
// quoted lower-case alias would not match them.
type Reader interface {
	Orders(ctx context.Context, legalEntityTaxID string, r chunk.Range) ([]entity.Order, error)
	Items(ctx context.Context, orderIDs []int64) ([]entity.OrderItem, error)
	Clients(ctx context.Context, clientIDs []int64) ([]entity.Client, error)
	Phones(ctx context.Context, clientIDs []int64) ([]entity.Phone, error)
	Employees(ctx context.Context, employeeIDs []int64) ([]entity.Employee, error)
	History(ctx context.Context, table string, productIDs []int64, until time.Time) ([]entity.HistoryEvent, error)
	PurchaseLines(ctx context.Context, documents []string) ([]entity.PurchaseInvoiceLine, error)
}

// Repository gives scoped, pooled read access to the ERP database.
type Repository struct {
	pool *database.Pool
}

// NewRepository wires a repository over the ERP connection pool.
func NewRepository(pool *database.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithReader checks out one connection for the duration of fn.
func (r *Repository) WithReader(ctx context.Context, fn func(Reader) error) error {
	return r.pool.WithConn(ctx, func(conn bun.Conn) error {
		return fn(queries{db: conn})
	})
}

type queries struct {
	db bun.Conn
}

func (q queries) Orders(ctx context.Context, legalEntityTaxID string, r chunk.Range) ([]entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "ERPRepository.Orders", trace.WithAttributes(
		attribute.String("chunk", r.String()),
	))
	defer span.End()

	var orders []entity.Order
	err := q.db.NewSelect().
		Model(&orders).
		Where("?TableAlias.DATA >= ?", r.Start.Format(time.DateOnly)).
		Where("?TableAlias.DATA < ?", r.End.AddDate(0, 0, 1).Format(time.DateOnly)).
		Where("?TableAlias.EFETIVADO = ?", "S").
		Where("EXISTS (SELECT 1 FROM EMPRESA E WHERE E.CNPJ = ?)", legalEntityTaxID).
		Scan(ctx)
	return orders, record(span, err)
}

func (q queries) Items(ctx context.Context, orderIDs []int64) ([]entity.OrderItem, error) {
	ctx, span := startBlock(ctx, "ERPRepository.Items", len(orderIDs))
	defer span.End()

	var items []entity.OrderItem
	err := q.db.NewSelect().Model(&items).Where("?TableAlias.CDPEDIDOVENDA IN (?)", bun.In(orderIDs)).Scan(ctx)
	return items, record(span, err)
}

func (q queries) Clients(ctx context.Context, clientIDs []int64) ([]entity.Client, error) {
	ctx, span := startBlock(ctx, "ERPRepository.Clients", len(clientIDs))
	defer span.End()

	var clients []entity.Client
	err := q.db.NewSelect().Model(&clients).Where("?TableAlias.CDCLIENTE IN (?)", bun.In(clientIDs)).Scan(ctx)
	return clients, record(span, err)
}

func (q queries) Phones(ctx context.Context, clientIDs []int64) ([]entity.Phone, error) {
	ctx, span := startBlock(ctx, "ERPRepository.Phones", len(clientIDs))
	defer span.End()

	var phones []entity.Phone
	err := q.db.NewSelect().Model(&phones).Where("?TableAlias.CDCLIENTE IN (?)", bun.In(clientIDs)).Scan(ctx)
	return phones, record(span, err)
}

func (q queries) Employees(ctx context.Context, employeeIDs []int64) ([]entity.Employee, error) {
	ctx, span := startBlock(ctx, "ERPRepository.Employees", len(employeeIDs))
	defer span.End()

	var employees []entity.Employee
	err := q.db.NewSelect().Model(&employees).Where("?TableAlias.CDFUNC IN (?)", bun.In(employeeIDs)).Scan(ctx)
	return employees, record(span, err)
}

func (q queries) History(ctx context.Context, table string, productIDs []int64, until time.Time) ([]entity.HistoryEvent, error) {
	ctx, span := startBlock(ctx, "ERPRepository.History", len(productIDs))
	span.SetAttributes(attribute.String("history.table", table))
	defer span.End()

	var events []entity.HistoryEvent
	err := q.db.NewRaw(
		"SELECT CDPRODUTO, DATA, NUMDOCUMENTO, TIPO FROM ? WHERE TIPO IN (?) AND CDPRODUTO IN (?) AND DATA < ?",
		bun.Ident(table),
		bun.In([]string{entity.EventOrder, entity.EventPurchase}),
		bun.In(productIDs),
		until.AddDate(0, 0, 1).Format(time.DateOnly),
	).Scan(ctx, &events)
	return events, record(span, err)
}

func (q queries) PurchaseLines(ctx context.Context, documents []string) ([]entity.PurchaseInvoiceLine, error) {
	ctx, span := startBlock(ctx, "ERPRepository.PurchaseLines", len(documents))
	defer span.End()

	var lines []entity.PurchaseInvoiceLine
	err := q.db.NewRaw(
		`SELECT NC.NUMNOTA, INC.CDPRODUTO, INC.VALORUNITARIO, INC.IPI, INC.ICMS
		FROM NOTACOMPRA NC
		JOIN ITENSNOTACOMPRA INC ON NC.CDNOTACOMPRA = INC.CDNOTACOMPRA
		WHERE NC.NUMNOTA IN (?)`,
		bun.In(documents),
	).Scan(ctx, &lines)
	return lines, record(span, err)
}

func startBlock(ctx context.Context, name string, size int) (context.Context, trace.Span) {
	return repoTracer.Start(ctx, name, trace.WithAttributes(attribute.Int("block.size", size)))
}

func record(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
	}
	return err
}
