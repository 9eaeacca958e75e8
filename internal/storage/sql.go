package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"safepiggy/internal/core"
	"safepiggy/internal/query"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL flavour and database/sql driver.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

func (d Dialect) driverName() string {
	return string(d)
}

const expenseColumns = "id, description, amount, category, date, payment_method, recurring"

// SQLStore implements Store on database/sql for SQLite and PostgreSQL.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

var _ Store = (*SQLStore)(nil)

// NewSQLiteStore opens (creating if needed) the database file at dbPath
// and applies migrations. Writes are serialized on a single connection.
func NewSQLiteStore(dbPath string) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(SQLite, dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("SQLite store ready", "path", dbPath)
	return &SQLStore{db: db, dialect: SQLite}, nil
}

// NewPostgresStore connects with lib/pq and applies migrations.
func NewPostgresStore(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(Postgres, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.InfoContext(ctx, "Postgres store ready")
	return &SQLStore{db: db, dialect: Postgres}, nil
}

func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Insert(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	q := s.rebind(`INSERT INTO expenses (description, amount, category, date, payment_method, recurring)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING ` + expenseColumns)

	saved, err := scanExpense(s.db.QueryRowContext(ctx, q,
		e.Description, e.Amount, string(e.Category), e.Date, string(e.PaymentMethod), e.Recurring))
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	return saved, nil
}

func (s *SQLStore) Get(ctx context.Context, id int64) (core.Expense, error) {
	q := s.rebind(`SELECT ` + expenseColumns + ` FROM expenses WHERE id = ?`)
	e, err := scanExpense(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, err)
	}
	return e, nil
}

func (s *SQLStore) Update(ctx context.Context, id int64, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", id, err)
	}
	q := s.rebind(`UPDATE expenses
		SET description = ?, amount = ?, category = ?, date = ?, payment_method = ?, recurring = ?
		WHERE id = ? RETURNING ` + expenseColumns)

	saved, err := scanExpense(s.db.QueryRowContext(ctx, q,
		e.Description, e.Amount, string(e.Category), e.Date, string(e.PaymentMethod), e.Recurring, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", id, err)
	}
	return saved, nil
}

func (s *SQLStore) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM expenses WHERE id = ?`), id)
	if err != nil {
		return false, fmt.Errorf("delete expense %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete expense %d: rows affected: %w", id, err)
	}
	return n > 0, nil
}

func (s *SQLStore) Query(ctx context.Context, p query.Predicate, o query.Ordering) ([]core.Expense, error) {
	where, args := whereClause(p)
	q := `SELECT ` + expenseColumns + ` FROM expenses` + where + orderClause(o)
	if o.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, o.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	items := make([]core.Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return items, nil
}

func (s *SQLStore) Sum(ctx context.Context, p query.Predicate) (float64, error) {
	where, args := whereClause(p)
	var total float64
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COALESCE(SUM(amount), 0) FROM expenses`+where), args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum expenses: %w", err)
	}
	return core.NormalizeTotal(total), nil
}

func (s *SQLStore) Breakdown(ctx context.Context, p query.Predicate) ([]core.CategoryTotal, error) {
	where, args := whereClause(p)
	q := `SELECT category, SUM(amount) FROM expenses` + where + ` GROUP BY category ORDER BY category ASC`

	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("category breakdown: %w", err)
	}
	defer rows.Close()

	out := make([]core.CategoryTotal, 0)
	for rows.Next() {
		var (
			category string
			total    float64
		)
		if err := rows.Scan(&category, &total); err != nil {
			return nil, fmt.Errorf("scan breakdown row: %w", err)
		}
		out = append(out, core.CategoryTotal{Category: core.Category(category), Total: core.NormalizeTotal(total)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate breakdown: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e             core.Expense
		category      string
		paymentMethod string
	)
	if err := row.Scan(&e.ID, &e.Description, &e.Amount, &category, &e.Date, &paymentMethod, &e.Recurring); err != nil {
		return core.Expense{}, err
	}
	e.Category = core.Category(category)
	e.PaymentMethod = core.PaymentMethod(paymentMethod)
	return e, nil
}

// whereClause renders a predicate with ? placeholders. Values are always
// bound, never interpolated.
func whereClause(p query.Predicate) (string, []any) {
	if p.IsEmpty() {
		return "", nil
	}
	conds := make([]string, 0, len(p.Clauses))
	args := make([]any, 0, len(p.Clauses))
	for _, c := range p.Clauses {
		switch c.Kind {
		case query.CategoryIs:
			conds = append(conds, "category = ?")
		case query.DateFrom:
			conds = append(conds, "date >= ?")
		case query.DateTo:
			conds = append(conds, "date <= ?")
		default:
			conds = append(conds, "1 = 0")
			continue
		}
		args = append(args, c.Value)
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func orderClause(o query.Ordering) string {
	if o.By == query.SortByAmount {
		return " ORDER BY amount DESC, id DESC"
	}
	return " ORDER BY date DESC, id DESC"
}

// rebind rewrites ? placeholders to $1..$n for PostgreSQL.
func (s *SQLStore) rebind(q string) string {
	if s.dialect != Postgres {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}
