package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Diagnostic is the log-only view of a failure. None of it reaches clients.
type Diagnostic struct {
	Message string
	Code    Code
	Chain   []string

	SQLState   string
	Constraint string
	Table      string
	Column     string
	Detail     string
}

// Diagnose walks the wrap chain and pulls driver details from whichever
// postgres driver produced the error.
func Diagnose(err error) Diagnostic {
	if err == nil {
		return Diagnostic{}
	}

	d := Diagnostic{Message: err.Error()}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgxErr):
		d.SQLState = pgxErr.Code
		d.Constraint = pgxErr.ConstraintName
		d.Table = pgxErr.TableName
		d.Column = pgxErr.ColumnName
		d.Detail = pgxErr.Detail
	case errors.As(err, &pqErr):
		d.SQLState = string(pqErr.Code)
		d.Constraint = pqErr.Constraint
		d.Table = pqErr.Table
		d.Column = pqErr.Column
		d.Detail = pqErr.Detail
	}
	return d
}

// Fields flattens the diagnostic into log fields, skipping empty values.
func (d Diagnostic) Fields() map[string]any {
	fields := map[string]any{"error": d.Message}
	set := func(key, value string) {
		if value != "" {
			fields[key] = value
		}
	}
	set("error_code", string(d.Code))
	set("sql_state", d.SQLState)
	set("sql_constraint", d.Constraint)
	set("sql_table", d.Table)
	set("sql_column", d.Column)
	set("sql_detail", d.Detail)
	if len(d.Chain) > 1 {
		fields["error_chain"] = d.Chain
	}
	return fields
}
