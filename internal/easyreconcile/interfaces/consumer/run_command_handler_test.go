package consumer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/easyreconcile/internal/easyreconcile/application"
	"github.com/wyfcoding/easyreconcile/internal/easyreconcile/domain"
	"github.com/wyfcoding/easyreconcile/pkg/mq"
)

type fakeRunner struct {
	ids    []uint64
	allRun bool
	err    error
}

func (f *fakeRunner) RunReconcile(_ context.Context, ids ...uint64) ([]*application.HistoryDTO, error) {
	f.ids = append(f.ids, ids...)
	return []*application.HistoryDTO{{TaskID: 1}}, f.err
}

func (f *fakeRunner) RunAll(context.Context) ([]*application.HistoryDTO, error) {
	f.allRun = true
	return nil, f.err
}

func message(v string) *mq.Message {
	return &mq.Message{Topic: "easyreconcile.run.command", Value: []byte(v)}
}

func TestHandleRunCommand(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		err     error
		wantIDs []uint64
		wantAll bool
		wantErr error
	}{
		{name: "ids", payload: `{"task_ids":[3,1]}`, wantIDs: []uint64{3, 1}},
		{name: "all", payload: `{"all":true,"task_ids":[9]}`, wantAll: true},
		{name: "empty", payload: `{}`},
		{name: "busy", payload: `{"task_ids":[2]}`, err: domain.ErrRunInProgress, wantIDs: []uint64{2}},
		{name: "missing task", payload: `{"task_ids":[5]}`, err: domain.ErrTaskNotFound, wantIDs: []uint64{5}, wantErr: domain.ErrTaskNotFound},
		{name: "garbage", payload: `not json`, wantErr: domain.ErrInvalidArgument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := &fakeRunner{err: tc.err}
			err := NewRunCommandHandler(r).Handle(context.Background(), message(tc.payload))
			if tc.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tc.wantErr), err.Error())
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tc.wantIDs, r.ids)
			assert.Equal(t, tc.wantAll, r.allRun)
		})
	}
}
