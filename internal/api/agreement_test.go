package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vultisig/schedpay/internal/service"
	"github.com/vultisig/schedpay/reconcile"
)

var errNotFound = errors.New("agreement not found")

type fakeResolver struct {
	res      reconcile.Resolution
	err      error
	lastOpts service.Options
}

func (f *fakeResolver) Reconcile(_ context.Context, id uuid.UUID, opts service.Options) (reconcile.Resolution, error) {
	f.lastOpts = opts
	if f.err != nil {
		return reconcile.Resolution{}, f.err
	}
	res := f.res
	res.AgreementID = id.String()
	return res, nil
}

func resolution() reconcile.Resolution {
	due := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	statuses := []reconcile.InstallmentStatus{reconcile.StatusExecuted, reconcile.StatusFailed, reconcile.StatusPending}
	timeline := make([]reconcile.ResolvedInstallment, len(statuses))
	for i, st := range statuses {
		timeline[i] = reconcile.ResolvedInstallment{
			MonthIndex:   i,
			DueTime:      due.AddDate(0, 0, 30*i),
			Amount:       decimal.RequireFromString("5"),
			Status:       st,
			IsHistorical: st.IsHistorical(),
		}
	}
	return reconcile.Resolution{
		Status:   reconcile.PaymentActive,
		Statuses: statuses,
		Progress: reconcile.ProgressOf(statuses),
		Timeline: timeline,
	}
}

func newTestServer(r Resolver) http.Handler {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewServer("127.0.0.1", 0, logger, r, errNotFound).Handler()
}

func do(t *testing.T, h http.Handler, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealthz(t *testing.T) {
	rec, _ := do(t, newTestServer(&fakeResolver{}), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetStatus(t *testing.T) {
	id := uuid.New()
	rec, body := do(t, newTestServer(&fakeResolver{res: resolution()}), "/agreements/"+id.String()+"/status")
	require.Equal(t, http.StatusOK, rec.Code)

	data := body["data"].(map[string]any)
	assert.Equal(t, id.String(), data["agreement_id"])
	assert.Equal(t, "active", data["status"])
	assert.Equal(t, []any{"executed", "failed", "pending"}, data["statuses"])
	progress := data["progress"].(map[string]any)
	assert.EqualValues(t, 1, progress["executed"])
	assert.EqualValues(t, 1, progress["failed"])
}

func TestGetTimeline_Views(t *testing.T) {
	h := newTestServer(&fakeResolver{res: resolution()})
	path := "/agreements/" + uuid.NewString() + "/timeline"

	rec, body := do(t, h, path)
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, "all", data["view"])
	assert.Len(t, data["installments"], 3)

	rec, body = do(t, h, path+"?view=history")
	require.Equal(t, http.StatusOK, rec.Code)
	data = body["data"].(map[string]any)
	assert.Equal(t, "history", data["view"])
	assert.Len(t, data["installments"], 2)
}

func TestGetTimeline_PassesLead(t *testing.T) {
	r := &fakeResolver{res: resolution()}
	lead := "0x00000000000000000000000000000000000000B3"

	rec, _ := do(t, newTestServer(r), "/agreements/"+uuid.NewString()+"/timeline?lead="+lead)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, lead, r.lastOpts.PreferredLead)
}

func TestGetTimeline_BadRequests(t *testing.T) {
	h := newTestServer(&fakeResolver{res: resolution()})
	for _, target := range []string{
		"/agreements/not-a-uuid/timeline",
		"/agreements/" + uuid.NewString() + "/timeline?view=future",
		"/agreements/" + uuid.NewString() + "/timeline?lead=bob",
	} {
		rec, body := do(t, h, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Equal(t, MsgInvalidRequest, body["error"].(map[string]any)["message"], target)
	}
}

func TestErrors(t *testing.T) {
	rec, body := do(t, newTestServer(&fakeResolver{err: errNotFound}), "/agreements/"+uuid.NewString()+"/status")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, MsgAgreementNotFound, body["error"].(map[string]any)["message"])

	rec, body = do(t, newTestServer(&fakeResolver{err: errors.New("boom")}), "/agreements/"+uuid.NewString()+"/status")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, MsgInternalError, body["error"].(map[string]any)["message"])
}
