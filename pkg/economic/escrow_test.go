package economic

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewEscrowAccountStartsActiveWithFullLock(t *testing.T) {
	account := NewEscrowAccount("contract-1", nil, nil, nil, 1000, nil, 100)
	require.Equal(t, EscrowActive, account.Status)
	require.Equal(t, uint64(1000), account.Balance)
	require.Equal(t, uint64(1000), account.LockedAmount)
	require.EqualValues(t, 2, account.SignatureThreshold)
}

func TestEscrowStatusMachineHappyPath(t *testing.T) {
	account := NewEscrowAccount("contract-1", nil, nil, nil, 1000, nil, 100)
	require.NoError(t, account.Lock())
	require.Equal(t, EscrowLocked, account.Status)
	require.NoError(t, account.Release())
	require.Equal(t, EscrowReleased, account.Status)
}

func TestEscrowStatusMachineDisputePath(t *testing.T) {
	account := NewEscrowAccount("contract-1", nil, nil, nil, 1000, nil, 100)
	require.NoError(t, account.Dispute())
	require.Equal(t, EscrowDisputed, account.Status)
	require.NoError(t, account.Close())
	require.Equal(t, EscrowClosed, account.Status)
}

func TestEscrowRejectsIllegalTransitions(t *testing.T) {
	account := NewEscrowAccount("contract-1", nil, nil, nil, 1000, nil, 100)
	require.Error(t, account.Release())
	require.Error(t, account.Close())

	require.NoError(t, account.Lock())
	require.Error(t, account.Lock())
	require.Error(t, account.Close())
}
