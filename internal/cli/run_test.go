package cli

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/industrial-sec/uaenum/internal/output"
)

func TestBuildOptions(t *testing.T) {
	base := options{mode: ModeAll, policy: "auto", format: output.FormatText}

	tests := []struct {
		name    string
		args    []string
		mutate  func(*options)
		wantErr string
	}{
		{
			name: "defaults are valid",
			args: []string{"192.168.0.10", "4840"},
		},
		{
			name:    "port must be numeric",
			args:    []string{"192.168.0.10", "opc"},
			wantErr: "invalid port",
		},
		{
			name:    "port must be in range",
			args:    []string{"192.168.0.10", "70000"},
			wantErr: "invalid port",
		},
		{
			name:   "enum-objects accepts depth",
			args:   []string{"10.0.0.2", "4840"},
			mutate: func(o *options) { o.mode = ModeEnumObjects; o.depth = 3 },
		},
		{
			name:    "negative depth rejected",
			args:    []string{"10.0.0.2", "4840"},
			mutate:  func(o *options) { o.mode = ModeEnumObjects; o.depth = -1 },
			wantErr: "invalid depth",
		},
		{
			name:    "show-object requires nodeid",
			args:    []string{"10.0.0.2", "4840"},
			mutate:  func(o *options) { o.mode = ModeShowObject },
			wantErr: "--nodeid is required",
		},
		{
			name:   "show-object with nodeid",
			args:   []string{"10.0.0.2", "4840"},
			mutate: func(o *options) { o.mode = ModeShowObject; o.nodeID = "ns=2;s=Boiler" },
		},
		{
			name:    "unknown mode rejected",
			args:    []string{"10.0.0.2", "4840"},
			mutate:  func(o *options) { o.mode = "browse-everything" },
			wantErr: "unknown mode",
		},
		{
			name:    "unknown policy rejected",
			args:    []string{"10.0.0.2", "4840"},
			mutate:  func(o *options) { o.policy = "Basic128" },
			wantErr: "unknown security policy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := base
			if tt.mutate != nil {
				tt.mutate(&o)
			}
			got, err := buildOptions(tt.args, o)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "opc.tcp://"+tt.args[0]+":"+tt.args[1], got.endpoint)
		})
	}
}

func TestRootCmdArgCount(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"192.168.0.10"})
	err := cmd.Execute()
	require.Error(t, err)
}

type fakeCloser struct {
	err error
}

func (f fakeCloser) Close(ctx context.Context) error {
	return f.err
}

func TestCloseSessionLogsError(t *testing.T) {
	logger, hook := logtest.NewNullLogger()

	closeSession(context.Background(), fakeCloser{err: errors.New("secure channel gone")}, logger)

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Contains(t, hook.LastEntry().Message, "close session")
}

func TestCloseSessionQuietOnSuccess(t *testing.T) {
	logger, hook := logtest.NewNullLogger()

	closeSession(context.Background(), fakeCloser{}, logger)

	assert.Empty(t, hook.Entries)
}
