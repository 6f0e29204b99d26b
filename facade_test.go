package arisankit

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testOwner  = common.HexToAddress("0x0000000000000000000000000000000000000011")
	testMember = common.HexToAddress("0x0000000000000000000000000000000000000022")
	testOther  = common.HexToAddress("0x0000000000000000000000000000000000000033")
)

// facadeFixture wires a ContractReader over a scripted mock chain.
type facadeFixture struct {
	reader  *mockChainReader
	builder *CallBuilder
	facade  *ContractReader

	// responses per view method; a nil entry means "return error"
	responses map[string]func(data []byte) ([]byte, error)
}

func newFacadeFixture(t *testing.T) *facadeFixture {
	reader := &mockChainReader{}
	builder := newTestBuilder(t, reader)
	f := &facadeFixture{
		reader:    reader,
		builder:   builder,
		facade:    NewContractReader(builder, reader),
		responses: map[string]func(data []byte) ([]byte, error){},
	}
	reader.CallFn = func(from, to string, data []byte) ([]byte, error) {
		method := methodOf(builder, data)
		if respond, ok := f.responses[method]; ok {
			return respond(data)
		}
		return nil, fmt.Errorf("no scripted response for %q", method)
	}
	return f
}

func (f *facadeFixture) respond(t *testing.T, method string, values ...interface{}) {
	out := packOutputs(t, f.builder, method, values...)
	f.responses[method] = func([]byte) ([]byte, error) {
		return out, nil
	}
}

func (f *facadeFixture) respondGroup(t *testing.T, group rawGroup) {
	f.respond(t, "get_arisan", group)
}

func TestGetGroup(t *testing.T) {
	f := newFacadeFixture(t)
	f.respondGroup(t, testGroupTuple(testOwner, []common.Address{testMember}, 3, 100, true))

	group := f.facade.GetGroup(context.Background(), 1)
	require.NotNil(t, group)
	assert.Equal(t, uint32(1), group.ID)
	assert.Equal(t, testOwner, group.Owner)
	assert.Equal(t, []common.Address{testMember}, group.Members)
	assert.Equal(t, uint32(3), group.RoundCount)
	assert.Equal(t, big.NewInt(100), group.DueAmount)
	assert.True(t, group.IsActive)
}

func TestGetGroupAbsentOnReadFailure(t *testing.T) {
	f := newFacadeFixture(t)
	// no scripted response: every read fails

	assert.Nil(t, f.facade.GetGroup(context.Background(), 1))
}

func TestGetGroupAbsentOnZeroOwner(t *testing.T) {
	f := newFacadeFixture(t)
	f.respondGroup(t, testGroupTuple(common.Address{}, nil, 0, 0, false))

	assert.Nil(t, f.facade.GetGroup(context.Background(), 1))
}

func TestLookupGroupDistinguishesFailureFromAbsence(t *testing.T) {
	f := newFacadeFixture(t)

	_, found, err := f.facade.LookupGroup(context.Background(), 1)
	assert.False(t, found)
	assert.Error(t, err)

	f.respondGroup(t, testGroupTuple(common.Address{}, nil, 0, 0, false))
	_, found, err = f.facade.LookupGroup(context.Background(), 1)
	assert.False(t, found)
	assert.NoError(t, err)
}

func TestGetPaymentStatusDefaultsFalse(t *testing.T) {
	f := newFacadeFixture(t)

	// read failure degrades to unpaid
	assert.False(t, f.facade.GetPaymentStatus(context.Background(), 1, 1))

	f.respond(t, "get_payment", true)
	assert.True(t, f.facade.GetPaymentStatus(context.Background(), 1, 1))

	f.respond(t, "get_payment", false)
	assert.False(t, f.facade.GetPaymentStatus(context.Background(), 1, 1))
}

func TestGetGroupCountDefaultsZero(t *testing.T) {
	f := newFacadeFixture(t)
	assert.Equal(t, uint32(0), f.facade.GetGroupCount(context.Background()))

	f.respond(t, "get_arisan_count", uint32(4))
	assert.Equal(t, uint32(4), f.facade.GetGroupCount(context.Background()))
}

func TestGetAllGroupsSkipsFailingIDs(t *testing.T) {
	f := newFacadeFixture(t)
	f.respond(t, "get_arisan_count", uint32(3))

	good := packOutputs(t, f.builder, "get_arisan", testGroupTuple(testOwner, []common.Address{testMember}, 3, 100, true))
	f.responses["get_arisan"] = func(data []byte) ([]byte, error) {
		var id uint32
		args, err := f.builder.abi.Methods["get_arisan"].Inputs.Unpack(data[4:])
		require.NoError(t, err)
		id = args[0].(uint32)
		if id == 2 {
			return nil, fmt.Errorf("storage miss")
		}
		return good, nil
	}

	groups := f.facade.GetAllGroups(context.Background())
	require.Len(t, groups, 2)
	assert.Equal(t, uint32(1), groups[0].ID)
	assert.Equal(t, uint32(3), groups[1].ID)
}

func TestGetCurrentRoundStopsAtFirstUnpaid(t *testing.T) {
	f := newFacadeFixture(t)
	f.respondGroup(t, testGroupTuple(testOwner, []common.Address{testMember}, 3, 100, true))

	paid := map[uint32]bool{1: true, 2: true}
	f.responses["get_payment"] = func(data []byte) ([]byte, error) {
		args, err := f.builder.abi.Methods["get_payment"].Inputs.Unpack(data[4:])
		require.NoError(t, err)
		round := args[1].(uint32)
		return packOutputs(t, f.builder, "get_payment", paid[round]), nil
	}

	assert.Equal(t, uint32(3), f.facade.GetCurrentRound(context.Background(), 1))
}

func TestGetCurrentRoundAllPaid(t *testing.T) {
	f := newFacadeFixture(t)
	f.respondGroup(t, testGroupTuple(testOwner, []common.Address{testMember}, 3, 100, true))
	f.respond(t, "get_payment", true)

	assert.Equal(t, uint32(4), f.facade.GetCurrentRound(context.Background(), 1))
}

func TestGetCurrentRoundNothingPaid(t *testing.T) {
	f := newFacadeFixture(t)
	f.respondGroup(t, testGroupTuple(testOwner, []common.Address{testMember}, 3, 100, true))
	f.respond(t, "get_payment", false)

	assert.Equal(t, uint32(1), f.facade.GetCurrentRound(context.Background(), 1))
}

func TestGetCurrentRoundAbsentGroup(t *testing.T) {
	f := newFacadeFixture(t)
	assert.Equal(t, uint32(0), f.facade.GetCurrentRound(context.Background(), 1))
}

func TestGetWinner(t *testing.T) {
	f := newFacadeFixture(t)
	f.respond(t, "get_winner", rawWinner{Winner: testMember, Timestamp: 1700000000, IsReleased: false, Exists: true})

	winner := f.facade.GetWinner(context.Background(), 1, 2)
	require.NotNil(t, winner)
	assert.Equal(t, testMember, winner.Winner)
	assert.Equal(t, uint32(1), winner.GroupID)
	assert.Equal(t, uint32(2), winner.Round)
	assert.False(t, winner.IsReleased)
}

func TestGetWinnerAbsentWhenNoDraw(t *testing.T) {
	f := newFacadeFixture(t)
	f.respond(t, "get_winner", rawWinner{Exists: false})

	assert.Nil(t, f.facade.GetWinner(context.Background(), 1, 2))
}

func TestGetUserGroups(t *testing.T) {
	f := newFacadeFixture(t)
	f.respond(t, "get_user_arisans", []uint32{1, 2})
	f.respondGroup(t, testGroupTuple(testOwner, []common.Address{testMember}, 3, 100, true))

	groups := f.facade.GetUserGroups(context.Background(), testMember)
	assert.Len(t, groups, 2)
}

func TestGetUserActivitiesSortedNewestFirst(t *testing.T) {
	f := newFacadeFixture(t)
	f.respond(t, "get_activities", []rawActivity{
		{ArisanId: 1, Round: 1, Kind: "payment", Amount: big.NewInt(10), Timestamp: 100, Status: "done"},
		{ArisanId: 1, Round: 3, Kind: "winning", Amount: big.NewInt(30), Timestamp: 300, Status: "done"},
		{ArisanId: 1, Round: 2, Kind: "payment", Amount: big.NewInt(20), Timestamp: 200, Status: "done"},
	})

	activities := f.facade.GetUserActivities(context.Background(), testMember)
	require.Len(t, activities, 3)
	assert.Equal(t, uint64(300), activities[0].Timestamp)
	assert.Equal(t, uint64(200), activities[1].Timestamp)
	assert.Equal(t, uint64(100), activities[2].Timestamp)
	assert.Equal(t, "winning", activities[0].Kind)
}

func TestUserProjectionsEmptyOnFailure(t *testing.T) {
	f := newFacadeFixture(t)

	assert.Empty(t, f.facade.GetUserActivities(context.Background(), testMember))
	assert.Empty(t, f.facade.GetUserPayments(context.Background(), testMember))
	assert.Empty(t, f.facade.GetUserWinnings(context.Background(), testMember))
	assert.Empty(t, f.facade.GetUserGroups(context.Background(), testMember))
}

func TestGetUserPayments(t *testing.T) {
	f := newFacadeFixture(t)
	f.respond(t, "get_payments", []rawHistoryEntry{
		{ArisanId: 2, Round: 1, Amount: big.NewInt(100), Timestamp: 50, Status: "confirmed"},
	})

	payments := f.facade.GetUserPayments(context.Background(), testMember)
	require.Len(t, payments, 1)
	assert.Equal(t, uint32(2), payments[0].GroupID)
	assert.Equal(t, big.NewInt(100), payments[0].Amount)
}

func TestIsMemberAndIsOwner(t *testing.T) {
	f := newFacadeFixture(t)
	f.respondGroup(t, testGroupTuple(testOwner, []common.Address{testMember}, 3, 100, true))
	ctx := context.Background()

	assert.True(t, f.facade.IsMember(ctx, 1, testMember))
	assert.False(t, f.facade.IsMember(ctx, 1, testOther))
	assert.True(t, f.facade.IsOwner(ctx, 1, testOwner))
	assert.False(t, f.facade.IsOwner(ctx, 1, testMember))
}

func TestMembershipFalseWhenGroupAbsent(t *testing.T) {
	f := newFacadeFixture(t)
	ctx := context.Background()

	assert.False(t, f.facade.IsMember(ctx, 1, testMember))
	assert.False(t, f.facade.IsOwner(ctx, 1, testOwner))
}
