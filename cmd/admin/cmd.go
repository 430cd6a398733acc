package admin

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mitchellh/cli"
	"github.com/yusufsyaifudin/katalog/internal/console"
	"github.com/yusufsyaifudin/katalog/internal/viewstate"
	"github.com/yusufsyaifudin/katalog/pkg/apiclient"
	"github.com/yusufsyaifudin/katalog/pkg/worker"
	"github.com/yusufsyaifudin/katalog/transport/restapi/httptyped"
)

const defaultBaseURL = "http://localhost:3001"

var errUsage = errors.New("invalid usage")

// session is what every action works with, the store is shared by the console.
type session struct {
	client  *apiclient.HTTP
	store   *viewstate.Store
	console *console.Console
	out     io.Writer
	getenv  func(string) string
}

type action struct {
	usage string
	run   func(ctx context.Context, s *session, args []string) error
}

var actions = map[string]action{
	"login":     {"login [-password P]", login},
	"browse":    {"browse [-category C] [-search S] [-sort NEWEST|POPULAR|FEATURED|ALPHABETICAL]", browse},
	"submit":    {"submit -name N -url U [-description D] [-category C]", submit},
	"report":    {"report APP_ID REASON...", report},
	"pending":   {"pending", pending},
	"manage":    {"manage [-sort NEWEST|POPULAR|FEATURED|ALPHABETICAL|REPORTED]", manage},
	"reports":   {"reports", reports},
	"approve":   {"approve APP_ID", byID(func(ctx context.Context, c *console.Console, id string) error { return c.Approve(ctx, id) })},
	"unpublish": {"unpublish APP_ID", byID(func(ctx context.Context, c *console.Console, id string) error { return c.Unpublish(ctx, id) })},
	"reject":    {"reject APP_ID", byID(func(ctx context.Context, c *console.Console, id string) error { return c.Reject(ctx, id) })},
	"feature":   {"feature APP_ID", byID(func(ctx context.Context, c *console.Console, id string) error { return c.ToggleFeatured(ctx, id) })},
	"ban":       {"ban APP_ID", byID(func(ctx context.Context, c *console.Console, id string) error { return c.Ban(ctx, id) })},
	"dismiss":   {"dismiss REPORT_ID", byID(func(ctx context.Context, c *console.Console, id string) error { return c.Dismiss(ctx, id) })},
	"create":    {"create -name N -url U [-description D] [-category C] [-tags a,b] [-featured] [-approved]", create},
	"edit":      {"edit APP_ID [-name N] [-url U] [-description D] [-category C] [-tags a,b] [-featured=bool]", edit},
}

type Cmd struct {
	out    io.Writer
	errOut io.Writer
	getenv func(string) string

	// httpClient nil lets apiclient log every call.
	httpClient *http.Client
}

func NewCmd() func() (cli.Command, error) {
	return func() (cli.Command, error) {
		return &Cmd{
			out:    os.Stdout,
			errOut: os.Stderr,
			getenv: os.Getenv,
		}, nil
	}
}

var _ cli.Command = (*Cmd)(nil)

func (c *Cmd) Help() string {
	names := make([]string, 0, len(actions))
	for name := range actions {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Usage: katalog admin [-url URL] [-token TOKEN] [-timeout 30s] <action> [args]\n\n")
	b.WriteString("  URL defaults to $KATALOG_API_URL, TOKEN to $KATALOG_TOKEN. Run login first and export the token.\n\n")
	for _, name := range names {
		b.WriteString("  " + actions[name].usage + "\n")
	}

	return b.String()
}

func (c *Cmd) Synopsis() string {
	return "Browse the directory and moderate submissions and reports"
}

func (c *Cmd) Run(args []string) int {
	err := c.run(context.Background(), args)
	if errors.Is(err, errUsage) {
		_, _ = fmt.Fprintln(c.errOut, err)
		return cli.RunResultHelp
	}

	if err != nil {
		_, _ = fmt.Fprintln(c.errOut, "error:", err)
		return 1
	}

	return 0
}

func (c *Cmd) run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("admin", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	baseURL := fs.String("url", envOr(c.getenv, "KATALOG_API_URL", defaultBaseURL), "API base url")
	token := fs.String("token", c.getenv("KATALOG_TOKEN"), "admin bearer token")
	timeout := fs.Duration("timeout", apiclient.DefaultTimeout, "timeout of every call")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s", errUsage, err)
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return fmt.Errorf("%w: missing action", errUsage)
	}

	act, ok := actions[rest[0]]
	if !ok {
		return fmt.Errorf("%w: unknown action %q", errUsage, rest[0])
	}

	client, err := apiclient.New(apiclient.Config{
		BaseURL:    *baseURL,
		Timeout:    *timeout,
		HTTPClient: c.httpClient,
		Token:      *token,
	})
	if err != nil {
		return err
	}

	pool := worker.NewWorker(1, 8)
	defer pool.Done()

	idGen, err := worker.NewIDGen(1)
	if err != nil {
		return err
	}

	store, err := viewstate.New(viewstate.Config{
		Client: client,
		Worker: pool,
		IDGen:  idGen,
	})
	if err != nil {
		return err
	}

	con, err := console.New(store)
	if err != nil {
		return err
	}

	return act.run(ctx, &session{
		client:  client,
		store:   store,
		console: con,
		out:     c.out,
		getenv:  c.getenv,
	}, rest[1:])
}

func login(ctx context.Context, s *session, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	password := fs.String("password", s.getenv("KATALOG_ADMIN_PASSWORD"), "admin password")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s", errUsage, err)
	}

	if *password == "" {
		return fmt.Errorf("%w: password is required", errUsage)
	}

	sess, err := s.client.Login(ctx, *password)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(s.out, "export KATALOG_TOKEN=%s\n# expires %s\n",
		sess.Token, time.UnixMilli(sess.ExpiresAt).UTC().Format(time.RFC3339))
	return err
}

func browse(ctx context.Context, s *session, args []string) error {
	fs := flag.NewFlagSet("browse", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	category := fs.String("category", viewstate.CategoryAll, "category")
	search := fs.String("search", "", "search term")
	sortMode := fs.String("sort", string(viewstate.SortFeatured), "sort order")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s", errUsage, err)
	}

	mode := viewstate.Sort(strings.ToUpper(*sortMode))
	if !mode.Valid() {
		return fmt.Errorf("%w: unknown sort %q", errUsage, *sortMode)
	}

	if err := s.store.LoadPublic(ctx); err != nil {
		return err
	}

	s.store.SetCategory(*category)
	s.store.SetSearch(*search)
	s.store.SetSort(mode)
	return printApps(s.out, s.store.Visible(), nil)
}

func submit(ctx context.Context, s *session, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	sub := viewstate.Submission{}
	fs.StringVar(&sub.Name, "name", "", "name")
	fs.StringVar(&sub.URL, "url", "", "url")
	fs.StringVar(&sub.Description, "description", "", "description")
	fs.StringVar(&sub.Category, "category", console.DefaultCategory, "category")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s", errUsage, err)
	}

	app, err := s.store.Submit(ctx, sub)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(s.out, "submitted %s (%s), waiting for review\n", app.Name, app.ID)
	return err
}

func report(ctx context.Context, s *session, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: report needs an app id and at least one reason", errUsage)
	}

	if err := s.store.LoadPublic(ctx); err != nil {
		return err
	}

	var target *viewstate.App
	for _, app := range s.store.Apps() {
		if app.ID == args[0] {
			app := app
			target = &app
			break
		}
	}

	if target == nil {
		return fmt.Errorf("app %s is not in the public listing", args[0])
	}

	r, err := s.store.Report(ctx, *target, args[1:])
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(s.out, "report %s filed against %s\n", r.ID, r.AppName)
	return err
}

func pending(ctx context.Context, s *session, _ []string) error {
	if err := s.console.Load(ctx); err != nil {
		return err
	}

	return printApps(s.out, s.console.Pending(), nil)
}

func manage(ctx context.Context, s *session, args []string) error {
	fs := flag.NewFlagSet("manage", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	sortMode := fs.String("sort", string(viewstate.SortNewest), "sort order")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s", errUsage, err)
	}

	mode := viewstate.Sort(strings.ToUpper(*sortMode))
	valid := false
	for _, m := range console.ManageSorts {
		valid = valid || m == mode
	}

	if !valid {
		return fmt.Errorf("%w: unknown sort %q", errUsage, *sortMode)
	}

	if err := s.console.Load(ctx); err != nil {
		return err
	}

	return printApps(s.out, s.console.Manage(mode), s.console.ReportCounts())
}

func reports(ctx context.Context, s *session, _ []string) error {
	if err := s.console.Load(ctx); err != nil {
		return err
	}

	w := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tAPP\tAPP ID\tREASONS\tFILED")
	for _, r := range s.console.Reports() {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.AppName, r.AppID, strings.Join(r.Reasons, "; "), formatMillis(r.Timestamp))
	}

	return w.Flush()
}

func byID(fn func(ctx context.Context, c *console.Console, id string) error) func(context.Context, *session, []string) error {
	return func(ctx context.Context, s *session, args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("%w: exactly one id is required", errUsage)
		}

		if err := s.console.Load(ctx); err != nil {
			return err
		}

		if err := fn(ctx, s.console, args[0]); err != nil {
			return err
		}

		_, err := fmt.Fprintln(s.out, "ok")
		return err
	}
}

func create(ctx context.Context, s *session, args []string) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	form := console.NewForm()
	tags := ""
	fs.StringVar(&form.Name, "name", "", "name")
	fs.StringVar(&form.URL, "url", "", "url")
	fs.StringVar(&form.Description, "description", "", "description")
	fs.StringVar(&form.Category, "category", form.Category, "category")
	fs.StringVar(&tags, "tags", "", "comma separated tags")
	fs.BoolVar(&form.Featured, "featured", false, "feature the app")
	fs.BoolVar(&form.Approved, "approved", false, "publish at once")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s", errUsage, err)
	}

	if tags != "" {
		form.Tags = splitTags(tags)
	}

	if err := s.console.Load(ctx); err != nil {
		return err
	}

	app, err := s.console.Create(ctx, form)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(s.out, "created %s (%s)\n", app.Name, app.ID)
	return err
}

func edit(ctx context.Context, s *session, args []string) error {
	if len(args) < 1 || strings.HasPrefix(args[0], "-") {
		return fmt.Errorf("%w: edit needs an app id first", errUsage)
	}

	id := args[0]
	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	name := fs.String("name", "", "name")
	url := fs.String("url", "", "url")
	description := fs.String("description", "", "description")
	category := fs.String("category", "", "category")
	tags := fs.String("tags", "", "comma separated tags")
	featured := fs.Bool("featured", false, "featured")
	if err := fs.Parse(args[1:]); err != nil {
		return fmt.Errorf("%w: %s", errUsage, err)
	}

	// only flags given on the command line end up in the patch
	patch := httptyped.AppUpdateReq{}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			patch.Name = name
		case "url":
			normalized := viewstate.NormalizeURL(*url)
			patch.URL = &normalized
		case "description":
			patch.Description = description
		case "category":
			patch.Category = category
		case "tags":
			t := splitTags(*tags)
			patch.Tags = &t
		case "featured":
			patch.Featured = featured
		}
	})

	if err := s.console.Load(ctx); err != nil {
		return err
	}

	app, err := s.console.Edit(ctx, id, patch)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(s.out, "updated %s (%s)\n", app.Name, app.ID)
	return err
}

func printApps(out io.Writer, apps []viewstate.App, reportCounts map[string]int) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	header := "ID\tNAME\tCATEGORY\tCLICKS\tFEATURED\tADDED\tURL"
	if reportCounts != nil {
		header += "\tREPORTS"
	}
	_, _ = fmt.Fprintln(w, header)

	for _, app := range apps {
		line := fmt.Sprintf("%s\t%s\t%s\t%d\t%t\t%s\t%s",
			app.ID, app.Name, app.Category, app.Clicks, app.Featured, formatMillis(app.AddedAt), app.URL)
		if reportCounts != nil {
			line += fmt.Sprintf("\t%d", reportCounts[app.ID])
		}
		_, _ = fmt.Fprintln(w, line)
	}

	return w.Flush()
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04")
}

func splitTags(s string) []string {
	tags := make([]string, 0)
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}

	return tags
}

func envOr(getenv func(string) string, key, fallback string) string {
	if v := getenv(key); v != "" {
		return v
	}

	return fallback
}
