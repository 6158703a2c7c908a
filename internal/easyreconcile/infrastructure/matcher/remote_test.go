package matcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/easyreconcile/internal/easyreconcile/domain"
)

func TestRemoteReconcile(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"reconciled_line_ids":[4,5],"partial_line_ids":[9]}`))
	}))
	defer srv.Close()

	journal := uint64(3)
	params := domain.RunParams{AccountID: 512, ReconcileOptions: domain.DefaultOptions()}
	params.WriteOff = decimal.RequireFromString("0.5")
	params.JournalID = &journal

	c := NewClient(srv.URL, time.Second)
	rec, err := c.Factory(domain.MethodSimplePartner)(context.Background(), params)
	require.NoError(t, err)

	full, partial, err := rec.AutomaticReconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint64{4, 5}, full)
	assert.Equal(t, []uint64{9}, partial)

	assert.Equal(t, "/methods/easy.reconcile.simple.partner/reconcile", gotPath)
	assert.EqualValues(t, 512, gotBody["account_id"])
	assert.Equal(t, "0.5", gotBody["write_off"])
	assert.EqualValues(t, 3, gotBody["journal_id"])
	assert.Equal(t, string(domain.DefaultDateBase), gotBody["date_base_on"])
	assert.NotContains(t, gotBody, "account_lost_id")
}

func TestRemoteReconcileError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"account not reconcilable"}`))
	}))
	defer srv.Close()

	rec, err := NewClient(srv.URL, time.Second).Factory(domain.MethodSimpleName)(context.Background(), domain.RunParams{})
	require.NoError(t, err)

	_, _, err = rec.AutomaticReconcile(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account not reconcilable")
	assert.Contains(t, err.Error(), "422")
}
