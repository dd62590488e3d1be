package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	pingTimeout     = 5 * time.Second
	maxStatementLen = 512
)

var dbTracer = otel.Tracer("keepmore/postgres")

// Pool sizes the connection pool. Supabase's pooler caps client
// connections per role, so the limits come from configuration.
type Pool struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DB is *sql.DB with a span around every statement and Postgres errors
// mapped to *Error.
type DB struct {
	*sql.DB
}

func New(connStr string, pool Pool) (*DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", translate(err))
	}

	return &DB{db}, nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	ctx, span := startSpan(ctx, query)
	defer span.End()

	rows, err := db.DB.QueryContext(ctx, query, args...)
	return rows, finish(span, err)
}

func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, span := startSpan(ctx, query)
	defer span.End()

	result, err := db.DB.ExecContext(ctx, query, args...)
	if err == nil {
		if n, rerr := result.RowsAffected(); rerr == nil {
			span.SetAttributes(attribute.Int64("db.rows_affected", n))
		}
	}
	return result, finish(span, err)
}

// Row is the result of QueryRowContext. sql.Row reports every error from
// Scan, so the span stays open until then.
type Row struct {
	row  *sql.Row
	span trace.Span
}

func (r *Row) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	if r.span == nil {
		return translate(err)
	}
	if err == sql.ErrNoRows {
		r.span.End()
		r.span = nil
		return err
	}
	err = finish(r.span, err)
	r.span.End()
	r.span = nil
	return err
}

func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *Row {
	ctx, span := startSpan(ctx, query)
	return &Row{row: db.DB.QueryRowContext(ctx, query, args...), span: span}
}

// startSpan names the span "<OPERATION> <table>" so bulk upserts of
// different resources are told apart in traces.
func startSpan(ctx context.Context, query string) (context.Context, trace.Span) {
	op, table := describe(query)
	name := op
	attrs := []attribute.KeyValue{
		semconv.DBSystemPostgreSQL,
		semconv.DBOperationName(op),
		semconv.DBQueryText(summarize(query)),
	}
	if table != "" {
		name += " " + table
		attrs = append(attrs, semconv.DBCollectionName(table))
	}
	return dbTracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}

func finish(span trace.Span, err error) error {
	if err == nil {
		return nil
	}
	err = translate(err)
	if pgErr, ok := err.(*Error); ok {
		span.SetAttributes(attribute.String("db.response.status_code", pgErr.Code))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

var (
	tableAfter   = regexp.MustCompile(`(?i)\b(?:FROM|INTO|UPDATE|JOIN)\s+([a-z_][a-z0-9_."]*)`)
	valuesTuples = regexp.MustCompile(`(?is)\bVALUES\s*(\([^()]*\))(?:\s*,\s*\([^()]*\))+`)
	whitespace   = regexp.MustCompile(`\s+`)
	literal      = regexp.MustCompile(`'(?:[^']|'')*'`)
)

// describe returns the leading SQL keyword and the first table the
// statement touches.
func describe(query string) (op, table string) {
	q := strings.TrimSpace(query)
	if i := strings.IndexFunc(q, func(r rune) bool { return r == ' ' || r == '\n' || r == '\t' || r == '(' }); i > 0 {
		op = strings.ToUpper(q[:i])
	} else {
		op = strings.ToUpper(q)
	}
	if m := tableAfter.FindStringSubmatch(q); m != nil {
		table = strings.Trim(m[1], `"`)
	}
	return op, table
}

// summarize collapses whitespace, masks string literals and folds the
// tuple list of a multi-row insert to its first tuple and a row count.
func summarize(query string) string {
	s := whitespace.ReplaceAllString(strings.TrimSpace(query), " ")
	s = literal.ReplaceAllString(s, "'?'")
	s = valuesTuples.ReplaceAllStringFunc(s, func(m string) string {
		first := valuesTuples.FindStringSubmatch(m)[1]
		rows := strings.Count(m, "(")
		return fmt.Sprintf("VALUES %s, ... /* %d rows */", first, rows)
	})
	if len(s) > maxStatementLen {
		return s[:maxStatementLen] + "..."
	}
	return s
}
