package wire

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zhtp/zhtp/pkg/errs"
)

func TestNewErrorResponseSanitizesInternalCause(t *testing.T) {
	var id [16]byte
	copy(id[:], []byte("req-id-0000000001"))

	err := errs.New(errs.Protocol, errs.CodeMACMismatch, "mac mismatch for peer internal-db-conn-string", nil)
	resp := NewErrorResponse(id, err)

	require.Equal(t, uint16(401), resp.Status)
	require.Equal(t, string(errs.CodeMACMismatch), resp.ErrorCode)
	require.NotContains(t, resp.ErrorMessage, "internal-db-conn-string")
}

func TestNewErrorResponseFallsBackForPlainError(t *testing.T) {
	var id [16]byte
	resp := NewErrorResponse(id, errors.New("unclassified failure"))
	require.Equal(t, uint16(500), resp.Status)
	require.Equal(t, string(errs.CodeInternal), resp.ErrorCode)
}

func TestNewOKResponseCarriesPayload(t *testing.T) {
	var id [16]byte
	resp := NewOKResponse(id, map[string]int{"ok": 1})
	require.Equal(t, uint16(200), resp.Status)
	require.Equal(t, id, resp.RequestID)
}

func TestDemuxDeliversToWaiter(t *testing.T) {
	d := NewDemux()
	var id [16]byte
	copy(id[:], []byte("req-id-0000000002"))

	ch, err := d.Register(id)
	require.NoError(t, err)

	resp := NewOKResponse(id, "done")
	require.True(t, d.Deliver(&resp))

	got := <-ch
	require.Equal(t, "done", got.Response)
	require.Equal(t, 0, d.Pending())
}

func TestDemuxRejectsDuplicateRegistration(t *testing.T) {
	d := NewDemux()
	var id [16]byte
	_, err := d.Register(id)
	require.NoError(t, err)

	_, err = d.Register(id)
	require.Error(t, err)
}

func TestDemuxDeliverUnmatchedReturnsFalse(t *testing.T) {
	d := NewDemux()
	var id [16]byte
	resp := NewOKResponse(id, "orphan")
	require.False(t, d.Deliver(&resp))
}

func TestDemuxForgetRemovesWaiter(t *testing.T) {
	d := NewDemux()
	var id [16]byte
	_, err := d.Register(id)
	require.NoError(t, err)

	d.Forget(id)
	require.Equal(t, 0, d.Pending())

	resp := NewOKResponse(id, "late")
	require.False(t, d.Deliver(&resp))
}
