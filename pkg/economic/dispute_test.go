package economic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCreateDisputeLocksEscrowAndAssignsArbitrators(t *testing.T) {
	p := NewProcessor()
	now := time.Unix(1700000000, 0)
	p.CreateEscrowAccount("contract-1", nil, nil, nil, 1000, nil, now)

	d := NewDisputes(p, []string{"arb-1", "arb-2", "arb-3", "arb-4"})
	disputeID, err := d.CreateDispute("contract-1", 200, DisputeSlaViolation, "client", nil, now.Unix())
	require.NoError(t, err)

	account, _ := p.EscrowAccountByID(d.escrowIDForContract("contract-1"))
	require.Equal(t, EscrowDisputed, account.Status)

	dispute, ok := d.Get(disputeID)
	require.True(t, ok)
	require.Len(t, dispute.Arbitrators, arbitratorPanelSize)
	require.Equal(t, DisputeOpen, dispute.Status)
}

func TestResolveDisputeReleasesEscrow(t *testing.T) {
	p := NewProcessor()
	now := time.Unix(1700000000, 0)
	p.CreateEscrowAccount("contract-1", nil, nil, nil, 1000, nil, now)

	d := NewDisputes(p, []string{"arb-1"})
	disputeID, err := d.CreateDispute("contract-1", 200, DisputeDataLoss, "client", nil, now.Unix())
	require.NoError(t, err)

	require.NoError(t, d.Resolve(disputeID, ResolutionArbitration, true))

	account, _ := p.EscrowAccountByID(d.escrowIDForContract("contract-1"))
	require.Equal(t, EscrowReleased, account.Status)

	dispute, _ := d.Get(disputeID)
	require.Equal(t, DisputeResolved, dispute.Status)
	require.NotNil(t, dispute.Resolution)
	require.Equal(t, ResolutionArbitration, *dispute.Resolution)
}

func TestResolveDisputeCanClose(t *testing.T) {
	p := NewProcessor()
	now := time.Unix(1700000000, 0)
	p.CreateEscrowAccount("contract-1", nil, nil, nil, 1000, nil, now)

	d := NewDisputes(p, []string{"arb-1"})
	disputeID, err := d.CreateDispute("contract-1", 200, DisputeContractBreach, "provider", nil, now.Unix())
	require.NoError(t, err)

	require.NoError(t, d.Resolve(disputeID, ResolutionMediation, false))

	account, _ := p.EscrowAccountByID(d.escrowIDForContract("contract-1"))
	require.Equal(t, EscrowClosed, account.Status)
}

func TestCreateDisputeUnknownContractErrors(t *testing.T) {
	p := NewProcessor()
	d := NewDisputes(p, []string{"arb-1"})
	_, err := d.CreateDispute("missing", 100, DisputeServiceNotProvided, "client", nil, time.Now().Unix())
	require.Error(t, err)
}
