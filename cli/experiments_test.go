package cli_test

import (
	"bytes"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/absmach/siteguard/cli"
	"github.com/absmach/siteguard/coordinator"
	"github.com/absmach/siteguard/coordinator/api"
	"github.com/absmach/siteguard/pkg/dataset"
	"github.com/absmach/siteguard/pkg/fl"
	"github.com/absmach/siteguard/pkg/sdk"
	"github.com/absmach/siteguard/pkg/storage"
	"github.com/absmach/siteguard/pkg/trainer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) sdk.SDK {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	svc := coordinator.NewService(
		storage.NewMemoryRepositories(),
		fl.NewFedAvgAggregator(),
		trainer.NewGradientDescent(),
		dataset.NewSynthetic(32, 0.01, 1),
		nil,
		coordinator.Config{},
		logger,
	)
	ts := httptest.NewServer(api.MakeHandler(svc, logger, "test"))
	t.Cleanup(ts.Close)

	return sdk.NewSDK(sdk.Config{CoordinatorURL: ts.URL})
}

func execute(args ...string) (string, string) {
	var out, errOut bytes.Buffer
	cmd := cli.NewExperimentsCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	_ = cmd.Execute()

	return out.String(), errOut.String()
}

func TestExperimentsCmd(t *testing.T) {
	client := newClient(t)
	cli.SetSDK(client)
	cli.SetToken("site-a")

	exp, err := client.CreateExperiment(sdk.Experiment{Name: "scaffold-audit", ParticipantThreshold: 1})
	require.NoError(t, err)

	// Cases share the experiment and run in order.
	cases := []struct {
		desc   string
		args   []string
		out    []string
		errOut string
	}{
		{
			desc: "create experiment",
			args: []string{"create", "tower-crane", "--threshold", "2"},
			out:  []string{"tower-crane", "CREATED"},
		},
		{
			desc: "create with too many arguments",
			args: []string{"create", "a", "b"},
			out:  []string{"usage: create [name]"},
		},
		{
			desc: "view experiment",
			args: []string{"view", exp.ID},
			out:  []string{exp.ID, "scaffold-audit"},
		},
		{
			desc:   "view missing experiment",
			args:   []string{"view", "missing"},
			errOut: "404",
		},
		{
			desc: "list experiments",
			args: []string{"list", "--limit", "5"},
			out:  []string{"scaffold-audit", "tower-crane"},
		},
		{
			desc: "join experiment",
			args: []string{"join", exp.ID},
			out:  []string{"site-a"},
		},
		{
			desc: "view own participant",
			args: []string{"participant", exp.ID},
			out:  []string{"site-a"},
		},
		{
			desc: "list participants",
			args: []string{"participants", exp.ID},
			out:  []string{"site-a"},
		},
		{
			desc: "start experiment",
			args: []string{"start", exp.ID},
			out:  []string{"STARTED"},
		},
		{
			desc:   "upload malformed weights",
			args:   []string{"upload", exp.ID, "{", "10"},
			errOut: "error",
		},
		{
			desc:   "upload malformed dataset size",
			args:   []string{"upload", exp.ID, `{"w":[1.0]}`, "ten"},
			errOut: "error",
		},
		{
			desc: "upload contribution",
			args: []string{"upload", exp.ID, `{"w":[1.0]}`, "10"},
			out:  []string{exp.ID},
		},
		{
			desc: "upload contribution as cbor",
			args: []string{"upload", exp.ID, `{"w":[3.0]}`, "30", "--cbor"},
			out:  []string{exp.ID},
		},
		{
			desc: "list contributions of round",
			args: []string{"contributions", exp.ID, "--round", "0"},
			out:  []string{"site-a"},
		},
		{
			desc:   "aggregate wrong round",
			args:   []string{"aggregate", exp.ID, "--round", "4"},
			errOut: "400",
		},
		{
			desc: "aggregate current round",
			args: []string{"aggregate", exp.ID, "--round", "0"},
			out:  []string{"site-a"},
		},
		{
			desc: "view global model",
			args: []string{"model", exp.ID, "--round", "1"},
			out:  []string{"architecture"},
		},
		{
			desc: "predict",
			args: []string{"predict", exp.ID, "[[2.0]]"},
			out:  []string{"predictions"},
		},
		{
			desc:   "predict malformed inputs",
			args:   []string{"predict", exp.ID, "[2.0]"},
			errOut: "error",
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			out, errOut := execute(tc.args...)
			for _, want := range tc.out {
				assert.Contains(t, out, want)
			}
			if tc.errOut != "" {
				assert.Contains(t, errOut, tc.errOut)
			}
		})
	}
}
