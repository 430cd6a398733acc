package reportrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/yusufsyaifudin/katalog/pkg/tracer"
	"github.com/yusufsyaifudin/katalog/pkg/validator"
	"go.opentelemetry.io/otel/trace"
)

const reportColumns = `id, app_id, app_name, reasons, timestamp`

const (
	sqlListReports   = `SELECT ` + reportColumns + ` FROM reports ORDER BY timestamp DESC;`
	sqlCreateReport  = `INSERT INTO reports (` + reportColumns + `) VALUES ($1, $2, $3, $4, $5) RETURNING ` + reportColumns + `;`
	sqlDeleteReport  = `DELETE FROM reports WHERE id = $1;`
	sqlDeleteByAppID = `DELETE FROM reports WHERE app_id = $1;`
)

// pgForeignKeyViolation is the SQLSTATE of foreign_key_violation.
const pgForeignKeyViolation = pq.ErrorCode("23503")

type RepoPostgresConfig struct {
	Connection sqlx.ExtContext `validate:"required"`
}

type RepoPostgres struct {
	Config RepoPostgresConfig
}

var _ Repo = (*RepoPostgres)(nil)

// Postgres return repo interface which implements using PgSQL
func Postgres(conf RepoPostgresConfig) (service *RepoPostgres, err error) {
	err = validator.Validate(conf)
	if err != nil {
		return nil, err
	}

	service = &RepoPostgres{
		Config: conf,
	}
	return
}

func (p *RepoPostgres) List(ctx context.Context) (out OutList, err error) {
	var span trace.Span
	ctx, span = tracer.StartSpan(ctx, "reportrepo.List")
	defer span.End()

	reports := make([]Report, 0)
	err = sqlx.SelectContext(ctx, p.Config.Connection, &reports, sqlListReports)
	if err != nil {
		err = fmt.Errorf("cannot list reports: %w", err)
		return
	}

	out = OutList{Reports: reports}
	return
}

func (p *RepoPostgres) Create(ctx context.Context, in InputCreate) (out OutCreate, err error) {
	var span trace.Span
	ctx, span = tracer.StartSpan(ctx, "reportrepo.Create")
	defer span.End()

	err = validator.Validate(in)
	if err != nil {
		err = fmt.Errorf("%w: %s", ErrValidation, err)
		return
	}

	r := in.Report
	inserted := Report{}
	err = sqlx.GetContext(ctx, p.Config.Connection, &inserted, sqlCreateReport,
		r.ID, r.AppID, r.AppName, r.Reasons, r.Timestamp,
	)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgForeignKeyViolation {
		err = fmt.Errorf("%w: %s", ErrAppNotFound, r.AppID)
		return
	}

	if err != nil {
		err = fmt.Errorf("cannot insert report: %w", err)
		return
	}

	out = OutCreate{Report: inserted}
	return
}

func (p *RepoPostgres) Delete(ctx context.Context, in InputDelete) (out OutDelete, err error) {
	var span trace.Span
	ctx, span = tracer.StartSpan(ctx, "reportrepo.Delete")
	defer span.End()

	err = validator.Validate(in)
	if err != nil {
		err = fmt.Errorf("%w: %s", ErrValidation, err)
		return
	}

	res, err := p.Config.Connection.ExecContext(ctx, sqlDeleteReport, in.ID)
	if err != nil {
		err = fmt.Errorf("cannot delete report %s: %w", in.ID, err)
		return
	}

	n, err := res.RowsAffected()
	if err != nil {
		err = fmt.Errorf("cannot count deleted report: %w", err)
		return
	}

	if n == 0 {
		err = ErrNotFound
		return
	}

	return
}

// DeleteByApp is not an error when the app has no reports.
func (p *RepoPostgres) DeleteByApp(ctx context.Context, in InputDeleteByApp) (out OutDeleteByApp, err error) {
	var span trace.Span
	ctx, span = tracer.StartSpan(ctx, "reportrepo.DeleteByApp")
	defer span.End()

	err = validator.Validate(in)
	if err != nil {
		err = fmt.Errorf("%w: %s", ErrValidation, err)
		return
	}

	res, err := p.Config.Connection.ExecContext(ctx, sqlDeleteByAppID, in.AppID)
	if err != nil {
		err = fmt.Errorf("cannot delete reports of app %s: %w", in.AppID, err)
		return
	}

	n, err := res.RowsAffected()
	if err != nil {
		err = fmt.Errorf("cannot count deleted reports: %w", err)
		return
	}

	out = OutDeleteByApp{Deleted: n}
	return
}
