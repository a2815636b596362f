package deploy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackdeploy/stackdeploy/internal/env"
	"github.com/stackdeploy/stackdeploy/internal/secrets"
	"github.com/stackdeploy/stackdeploy/internal/stack"
)

type call struct {
	op   string
	dir  string
	vars env.Vars
}

type fakeLauncher struct {
	calls []call
	fail  map[string]error
}

func (f *fakeLauncher) Up(_ context.Context, dir string, vars env.Vars) error {
	f.calls = append(f.calls, call{op: "up", dir: dir, vars: vars})
	return f.fail[dir]
}

func (f *fakeLauncher) Down(_ context.Context, dir string) error {
	f.calls = append(f.calls, call{op: "down", dir: dir})
	return f.fail[dir]
}

func (f *fakeLauncher) dirs() []string {
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.op+" "+c.dir)
	}
	return out
}

func sampleSequence() stack.Sequence {
	return stack.Sequence{
		{Name: "db", RunsOn: []string{"*"}, Origin: "/srv/db/stack-deploy.toml"},
		{
			Name:      "app",
			DependsOn: []string{"db"},
			RunsOn:    []string{"*"},
			SecretEnv: map[string]string{"DB_PASSWORD": "root/infra/db/password/password", "API_KEY": "Root/Apps/App/Key"},
			Origin:    "/srv/app/stack-deploy.toml",
		},
		{Name: "web", DependsOn: []string{"app"}, RunsOn: []string{"*"}, Origin: "/srv/web/stack-deploy.toml"},
	}
}

func sampleSecrets() *secrets.Tree {
	return secrets.NewTree(&secrets.Group{
		Name: "Root",
		Children: []secrets.Node{
			&secrets.Group{Name: "Infra", Children: []secrets.Node{
				&secrets.Group{Name: "DB", Children: []secrets.Node{
					&secrets.Entry{Title: "Password", Fields: map[string]string{"Password": "hunter2"}},
				}},
			}},
			&secrets.Group{Name: "Apps", Children: []secrets.Node{
				&secrets.Entry{Title: "App", Fields: map[string]string{"Key": "k-123"}},
			}},
		},
	})
}

func TestDeployRunsInOrderWithSecrets(t *testing.T) {
	launcher := &fakeLauncher{}
	d := NewDriver(launcher, sampleSecrets(), nil)

	report := d.Deploy(context.Background(), sampleSequence())
	require.NoError(t, report.Err())
	assert.Equal(t, ActionDeploy, report.Action)
	assert.Equal(t, []string{"up /srv/db", "up /srv/app", "up /srv/web"}, launcher.dirs())

	appVars := launcher.calls[1].vars
	assert.Equal(t, "hunter2", appVars["DB_PASSWORD"])
	assert.Equal(t, "k-123", appVars["API_KEY"])
	assert.NotContains(t, launcher.calls[0].vars, "DB_PASSWORD")

	for _, o := range report.Outcomes {
		assert.False(t, o.Finished.Before(o.Started))
	}
}

func TestDeployMissingSecretSkipsStackAndContinues(t *testing.T) {
	seq := sampleSequence()
	seq[1].SecretEnv["EXTRA"] = "Root/Apps/Unknown/Field"
	launcher := &fakeLauncher{}
	d := NewDriver(launcher, sampleSecrets(), nil)

	report := d.Deploy(context.Background(), seq)
	assert.Equal(t, []string{"up /srv/db", "up /srv/web"}, launcher.dirs())

	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "app", failed[0].Stack)
	var missing *MissingSecretsError
	require.ErrorAs(t, failed[0].Err, &missing)
	assert.Equal(t, []string{"EXTRA"}, missing.Vars)
	assert.ErrorContains(t, report.Err(), "deploy app: stack app: unresolved secrets for EXTRA")
}

func TestDeployWithoutSecretSource(t *testing.T) {
	launcher := &fakeLauncher{}
	d := NewDriver(launcher, nil, nil)

	report := d.Deploy(context.Background(), sampleSequence())
	var missing *MissingSecretsError
	require.ErrorAs(t, report.Err(), &missing)
	assert.Equal(t, []string{"API_KEY", "DB_PASSWORD"}, missing.Vars)
	assert.Len(t, launcher.calls, 2)
}

func TestDeployContinuesAfterLauncherFailure(t *testing.T) {
	boom := errors.New("compose exploded")
	launcher := &fakeLauncher{fail: map[string]error{"/srv/db": boom}}
	d := NewDriver(launcher, sampleSecrets(), nil)

	report := d.Deploy(context.Background(), sampleSequence())
	assert.Len(t, launcher.calls, 3)
	require.Len(t, report.Failed(), 1)
	assert.ErrorIs(t, report.Err(), boom)
}

func TestStopRunsInReverse(t *testing.T) {
	launcher := &fakeLauncher{}
	d := NewDriver(launcher, nil, nil)

	report := d.Stop(context.Background(), sampleSequence())
	require.NoError(t, report.Err())
	assert.Equal(t, ActionStop, report.Action)
	assert.Equal(t, []string{"down /srv/web", "down /srv/app", "down /srv/db"}, launcher.dirs())
}

func TestCancelledContextSkipsRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	launcher := &fakeLauncher{}
	d := NewDriver(launcher, sampleSecrets(), nil)

	report := d.Deploy(ctx, sampleSequence())
	assert.Empty(t, launcher.calls)
	assert.Len(t, report.Failed(), 3)
	assert.ErrorIs(t, report.Err(), context.Canceled)
}
