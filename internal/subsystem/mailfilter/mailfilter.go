package mailfilter

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"hostconfd/internal/commit"
	"hostconfd/internal/config"
	"hostconfd/internal/datastore"
	"hostconfd/internal/reconciler"
	"hostconfd/internal/subsystem"
	"hostconfd/internal/template"
	"hostconfd/pkg/logging"
)

const name = "mailfilter"

var limitsTemplate = template.Must("limits", `# generated by hostconfd
# address burst rate
{{ range . -}}
{{ .Address }} {{ .Burst }} {{ .Rate }}
{{ end -}}
`)

// Reconciler writes the outbound mail limits table. With no limits left
// the table is removed.
type Reconciler struct {
	cfg  config.MailFilterConfig
	deps subsystem.Deps
	memo reconciler.Memo
}

// New returns the mail filter reconciler.
func New(cfg config.MailFilterConfig, deps subsystem.Deps) *Reconciler {
	return &Reconciler{cfg: cfg, deps: deps}
}

func (r *Reconciler) Name() string { return name }

func (r *Reconciler) Sources() []string { return []string{datastore.SourceMailLimits} }

func (r *Reconciler) Rebuild(ctx context.Context, pass *reconciler.Pass) error {
	limits, err := r.deps.Store.MailLimits(ctx)
	if err != nil {
		return err
	}
	for _, l := range limits {
		if err := validate(l); err != nil {
			return err
		}
	}
	slices.SortFunc(limits, func(a, b datastore.MailLimit) int { return strings.Compare(a.Address, b.Address) })

	path := r.cfg.LimitsFile
	if len(limits) == 0 {
		r.memo.Reset()
		_, err := pass.Commit(commit.Artifact{Path: path, Absent: true})
		return err
	}

	token := limitsToken(limits)
	pass.Observe(path, token)
	if r.memo.Unchanged(path, token) && exists(path) {
		return nil
	}

	uid, gid, err := subsystem.Owner(r.deps.IDs, r.cfg.Owner, r.cfg.Group)
	if err != nil {
		return err
	}
	content, err := limitsTemplate.Render(limits)
	if err != nil {
		return err
	}
	res, err := pass.Commit(commit.Artifact{Path: path, Content: content, UID: uid, GID: gid, Mode: 0o640})
	if err != nil {
		r.memo.Forget(path)
		return err
	}
	r.memo.Record(path, token)
	if res == commit.Changed {
		logging.Info(name, "Wrote %d mail limits", len(limits))
	}
	return nil
}

// Restart reloads the filter service when one is configured.
func (r *Reconciler) Restart(ctx context.Context, pass *reconciler.Pass) error {
	if r.cfg.Unit == "" {
		return nil
	}
	return r.deps.Services.ReloadOrRestart(ctx, r.cfg.Unit)
}

func validate(l datastore.MailLimit) error {
	switch {
	case l.Address == "" || strings.ContainsAny(l.Address, " \t\r\n#"):
		return fmt.Errorf("mail limit: invalid address %q", l.Address)
	case l.Burst < 0 || l.Rate < 0:
		return fmt.Errorf("mail limit %s: negative limit", l.Address)
	}
	return nil
}

func limitsToken(limits []datastore.MailLimit) string {
	parts := make([][]byte, 0, 3*len(limits))
	for _, l := range limits {
		parts = append(parts,
			[]byte(l.Address),
			[]byte(strconv.Itoa(l.Burst)),
			[]byte(strconv.Itoa(l.Rate)))
	}
	return reconciler.ContentToken(parts...)
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
