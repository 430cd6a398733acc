package apprepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/yusufsyaifudin/katalog/pkg/tracer"
	"github.com/yusufsyaifudin/katalog/pkg/validator"
	"github.com/yusufsyaifudin/ylog"
	"go.opentelemetry.io/otel/trace"
)

const appColumns = `id, name, description, url, category, tags, added_at, clicks, featured, approved`

const (
	sqlListApproved = `SELECT ` + appColumns + ` FROM apps WHERE approved = true ORDER BY added_at DESC;`
	sqlListAll      = `SELECT ` + appColumns + ` FROM apps ORDER BY added_at DESC;`

	sqlCreateApp = `INSERT INTO apps (` + appColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING ` + appColumns + `;`

	// the increment is evaluated by postgres under the row lock, concurrent clicks never lose an update
	sqlIncrementClicks = `UPDATE apps SET clicks = clicks + 1 WHERE id = $1 RETURNING clicks;`
	sqlSetApproval     = `UPDATE apps SET approved = $2 WHERE id = $1 RETURNING ` + appColumns + `;`

	sqlDeleteReportsOfApp = `DELETE FROM reports WHERE app_id = $1;`
	sqlDeleteApp          = `DELETE FROM apps WHERE id = $1;`
)

// Conn is satisfied by *sqlx.DB.
type Conn interface {
	sqlx.ExtContext
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type RepoPostgresConfig struct {
	Connection Conn `validate:"required"`
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

func (p *RepoPostgres) ListApproved(ctx context.Context) (out OutList, err error) {
	var span trace.Span
	ctx, span = tracer.StartSpan(ctx, "apprepo.ListApproved")
	defer span.End()

	apps := make([]App, 0)
	err = sqlx.SelectContext(ctx, p.Config.Connection, &apps, sqlListApproved)
	if err != nil {
		err = fmt.Errorf("cannot list approved apps: %w", err)
		return
	}

	out = OutList{Apps: apps}
	return
}

func (p *RepoPostgres) ListAll(ctx context.Context) (out OutList, err error) {
	var span trace.Span
	ctx, span = tracer.StartSpan(ctx, "apprepo.ListAll")
	defer span.End()

	apps := make([]App, 0)
	err = sqlx.SelectContext(ctx, p.Config.Connection, &apps, sqlListAll)
	if err != nil {
		err = fmt.Errorf("cannot list all apps: %w", err)
		return
	}

	out = OutList{Apps: apps}
	return
}

func (p *RepoPostgres) Create(ctx context.Context, in InputCreate) (out OutCreate, err error) {
	var span trace.Span
	ctx, span = tracer.StartSpan(ctx, "apprepo.Create")
	defer span.End()

	err = validator.Validate(in)
	if err != nil {
		err = fmt.Errorf("%w: %s", ErrValidation, err)
		return
	}

	app := in.App
	if app.Tags == nil {
		app.Tags = Tags{}
	}

	inserted := App{}
	err = sqlx.GetContext(ctx, p.Config.Connection, &inserted, sqlCreateApp,
		app.ID, app.Name, app.Description, app.URL, app.Category, app.Tags,
		app.AddedAt, app.Clicks, app.Featured, app.Approved,
	)
	if err != nil {
		err = fmt.Errorf("cannot insert app: %w", err)
		return
	}

	out = OutCreate{App: inserted}
	return
}

// Update only touches the columns set in the patch.
func (p *RepoPostgres) Update(ctx context.Context, in InputUpdate) (out OutUpdate, err error) {
	var span trace.Span
	ctx, span = tracer.StartSpan(ctx, "apprepo.Update")
	defer span.End()

	err = validator.Validate(in)
	if err != nil {
		err = fmt.Errorf("%w: %s", ErrValidation, err)
		return
	}

	query, args := buildUpdate(in.ID, in.Patch)
	if query == "" {
		err = ErrEmptyPatch
		return
	}

	updated := App{}
	err = sqlx.GetContext(ctx, p.Config.Connection, &updated, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
		return
	}

	if err != nil {
		err = fmt.Errorf("cannot update app %s: %w", in.ID, err)
		return
	}

	out = OutUpdate{App: updated}
	return
}

func buildUpdate(id string, patch Patch) (query string, args []interface{}) {
	sets := make([]string, 0, 7)
	add := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.URL != nil {
		add("url", *patch.URL)
	}
	if patch.Category != nil {
		add("category", *patch.Category)
	}
	if patch.Tags != nil {
		add("tags", Tags(*patch.Tags))
	}
	if patch.Featured != nil {
		add("featured", *patch.Featured)
	}
	if patch.Approved != nil {
		add("approved", *patch.Approved)
	}

	if len(sets) == 0 {
		return "", nil
	}

	args = append(args, id)
	query = fmt.Sprintf("UPDATE apps SET %s WHERE id = $%d RETURNING %s;", strings.Join(sets, ", "), len(args), appColumns)
	return query, args
}

// Delete removes the reports of the app before the app itself in one transaction,
// so it does not depend on the foreign key having ON DELETE CASCADE.
func (p *RepoPostgres) Delete(ctx context.Context, in InputDelete) (out OutDelete, err error) {
	var span trace.Span
	ctx, span = tracer.StartSpan(ctx, "apprepo.Delete")
	defer span.End()

	err = validator.Validate(in)
	if err != nil {
		err = fmt.Errorf("%w: %s", ErrValidation, err)
		return
	}

	tx, err := p.Config.Connection.BeginTxx(ctx, nil)
	if err != nil {
		err = fmt.Errorf("cannot begin delete app transaction: %w", err)
		return
	}

	defer func() {
		if err == nil {
			return
		}

		if _err := tx.Rollback(); _err != nil && !errors.Is(_err, sql.ErrTxDone) {
			ylog.Error(ctx, "rollback delete app failed", ylog.KV("error", _err), ylog.KV("app_id", in.ID))
		}
	}()

	res, err := tx.ExecContext(ctx, sqlDeleteReportsOfApp, in.ID)
	if err != nil {
		err = fmt.Errorf("cannot delete reports of app %s: %w", in.ID, err)
		return
	}

	reportsDeleted, err := res.RowsAffected()
	if err != nil {
		err = fmt.Errorf("cannot count deleted reports: %w", err)
		return
	}

	res, err = tx.ExecContext(ctx, sqlDeleteApp, in.ID)
	if err != nil {
		err = fmt.Errorf("cannot delete app %s: %w", in.ID, err)
		return
	}

	appsDeleted, err := res.RowsAffected()
	if err != nil {
		err = fmt.Errorf("cannot count deleted apps: %w", err)
		return
	}

	if appsDeleted == 0 {
		err = ErrNotFound
		return
	}

	err = tx.Commit()
	if err != nil {
		err = fmt.Errorf("cannot commit delete app %s: %w", in.ID, err)
		return
	}

	out = OutDelete{ReportsDeleted: reportsDeleted}
	return
}

func (p *RepoPostgres) IncrementClicks(ctx context.Context, in InputIncrementClicks) (out OutIncrementClicks, err error) {
	var span trace.Span
	ctx, span = tracer.StartSpan(ctx, "apprepo.IncrementClicks")
	defer span.End()

	err = validator.Validate(in)
	if err != nil {
		err = fmt.Errorf("%w: %s", ErrValidation, err)
		return
	}

	var clicks int64
	err = sqlx.GetContext(ctx, p.Config.Connection, &clicks, sqlIncrementClicks, in.ID)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
		return
	}

	if err != nil {
		err = fmt.Errorf("cannot increment clicks of app %s: %w", in.ID, err)
		return
	}

	out = OutIncrementClicks{Clicks: clicks}
	return
}

func (p *RepoPostgres) SetApproval(ctx context.Context, in InputSetApproval) (out OutSetApproval, err error) {
	var span trace.Span
	ctx, span = tracer.StartSpan(ctx, "apprepo.SetApproval")
	defer span.End()

	err = validator.Validate(in)
	if err != nil {
		err = fmt.Errorf("%w: %s", ErrValidation, err)
		return
	}

	app := App{}
	err = sqlx.GetContext(ctx, p.Config.Connection, &app, sqlSetApproval, in.ID, in.Approved)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
		return
	}

	if err != nil {
		err = fmt.Errorf("cannot set approval of app %s: %w", in.ID, err)
		return
	}

	out = OutSetApproval{App: app}
	return
}
