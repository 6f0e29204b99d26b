package arisankit

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/KyberNetwork/logger"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// readSource is the dummy zero-balance account used as the source of every
// read-only simulated call.
var readSource = common.Address{}

// ContractReader is the read facade over contract state. It is stateless and
// issues read-only simulated calls only; nothing here is ever signed or
// submitted.
//
// The exported methods keep the degrade-to-default contract the UI relies on:
// they catch every failure and return empty/false/zero. The Lookup variants
// expose (value, found, error) for callers that need to distinguish "no data"
// from "read failed".
type ContractReader struct {
	builder *CallBuilder
	reader  ChainReader
}

// NewContractReader creates a facade over the given builder's contract.
func NewContractReader(builder *CallBuilder, reader ChainReader) *ContractReader {
	return &ContractReader{builder: builder, reader: reader}
}

// call packs, simulates and unpacks one view method.
func (cr *ContractReader) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := cr.builder.packRead(method, args...)
	if err != nil {
		return nil, fmt.Errorf("couldn't encode %q read: %w", method, err)
	}
	retval, err := cr.reader.Call(ctx, readSource.Hex(), cr.builder.Contract().Hex(), data)
	if err != nil {
		return nil, fmt.Errorf("read %q failed: %w", method, err)
	}
	if len(retval) == 0 {
		return nil, nil
	}
	out, err := cr.builder.ABI().Unpack(method, retval)
	if err != nil {
		return nil, fmt.Errorf("couldn't decode %q result: %w", method, err)
	}
	return out, nil
}

// rawGroup mirrors the get_arisan tuple layout.
type rawGroup struct {
	Owner      common.Address
	Members    []common.Address
	RoundCount uint32
	DueAmount  *big.Int
	TotalPool  *big.Int
	IsActive   bool
}

// rawWinner mirrors the get_winner tuple layout.
type rawWinner struct {
	Winner     common.Address
	Timestamp  uint64
	IsReleased bool
	Exists     bool
}

// rawHistoryEntry mirrors the per-user projection tuple layouts.
type rawHistoryEntry struct {
	ArisanId  uint32
	Round     uint32
	Amount    *big.Int
	Timestamp uint64
	Status    string
}

// rawActivity mirrors the get_activities tuple layout.
type rawActivity struct {
	ArisanId    uint32
	Round       uint32
	Kind        string
	Description string
	Amount      *big.Int
	Timestamp   uint64
	Status      string
}

// LookupGroup fetches one group record. found is false when the id does not
// resolve to a group; err reports an actual read failure.
func (cr *ContractReader) LookupGroup(ctx context.Context, id uint32) (GroupRecord, bool, error) {
	out, err := cr.call(ctx, "get_arisan", id)
	if err != nil {
		return GroupRecord{}, false, err
	}
	if len(out) == 0 {
		return GroupRecord{}, false, nil
	}
	raw := abi.ConvertType(out[0], new(rawGroup)).(*rawGroup)
	if raw.Owner == (common.Address{}) {
		return GroupRecord{}, false, nil
	}
	return GroupRecord{
		ID:         id,
		Owner:      raw.Owner,
		Members:    raw.Members,
		RoundCount: raw.RoundCount,
		DueAmount:  raw.DueAmount,
		TotalPool:  raw.TotalPool,
		IsActive:   raw.IsActive,
	}, true, nil
}

// GetGroup returns the group record or nil when absent or on any failure.
func (cr *ContractReader) GetGroup(ctx context.Context, id uint32) *GroupRecord {
	group, found, err := cr.LookupGroup(ctx, id)
	if err != nil {
		logger.WithFields(logger.Fields{"arisan_id": id, "error": err}).Debug("Group read degraded to absent")
		return nil
	}
	if !found {
		return nil
	}
	return &group
}

// LookupPaymentStatus reports whether the round's due has been paid.
func (cr *ContractReader) LookupPaymentStatus(ctx context.Context, id, round uint32) (bool, error) {
	out, err := cr.call(ctx, "get_payment", id, round)
	if err != nil {
		return false, err
	}
	if len(out) == 0 {
		return false, nil
	}
	paid, ok := out[0].(bool)
	return ok && paid, nil
}

// GetPaymentStatus returns false for any (id, round) with no prior payment
// and never errors, including for non-existent groups.
func (cr *ContractReader) GetPaymentStatus(ctx context.Context, id, round uint32) bool {
	paid, err := cr.LookupPaymentStatus(ctx, id, round)
	if err != nil {
		return false
	}
	return paid
}

// LookupWinner fetches the winner record for (id, round) if a draw happened.
func (cr *ContractReader) LookupWinner(ctx context.Context, id, round uint32) (WinnerRecord, bool, error) {
	out, err := cr.call(ctx, "get_winner", id, round)
	if err != nil {
		return WinnerRecord{}, false, err
	}
	if len(out) == 0 {
		return WinnerRecord{}, false, nil
	}
	raw := abi.ConvertType(out[0], new(rawWinner)).(*rawWinner)
	if !raw.Exists {
		return WinnerRecord{}, false, nil
	}
	return WinnerRecord{
		GroupID:    id,
		Round:      round,
		Winner:     raw.Winner,
		Timestamp:  raw.Timestamp,
		IsReleased: raw.IsReleased,
	}, true, nil
}

// GetWinner returns the winner record or nil when absent or on any failure.
func (cr *ContractReader) GetWinner(ctx context.Context, id, round uint32) *WinnerRecord {
	winner, found, err := cr.LookupWinner(ctx, id, round)
	if err != nil || !found {
		return nil
	}
	return &winner
}

// GetGroupCount returns the number of groups ever created, 0 on any failure.
func (cr *ContractReader) GetGroupCount(ctx context.Context) uint32 {
	out, err := cr.call(ctx, "get_arisan_count")
	if err != nil || len(out) == 0 {
		return 0
	}
	count, ok := out[0].(uint32)
	if !ok {
		return 0
	}
	return count
}

// GetAllGroups iterates ids 1..count, skipping any id that fails to resolve.
func (cr *ContractReader) GetAllGroups(ctx context.Context) []GroupRecord {
	count := cr.GetGroupCount(ctx)
	groups := make([]GroupRecord, 0, count)
	for id := uint32(1); id <= count; id++ {
		if group := cr.GetGroup(ctx, id); group != nil {
			groups = append(groups, *group)
		}
	}
	return groups
}

// GetCurrentRound scans from round 1 upward while each round is paid,
// stopping at the first unpaid round, or at roundCount+1 when every round is
// settled. Returns 0 when the group is absent. O(roundCount) simulated calls;
// acceptable because round counts are small and this is UI-triggered.
func (cr *ContractReader) GetCurrentRound(ctx context.Context, id uint32) uint32 {
	group := cr.GetGroup(ctx, id)
	if group == nil {
		return 0
	}

	current := uint32(1)
	for round := uint32(1); round <= group.RoundCount; round++ {
		if !cr.GetPaymentStatus(ctx, id, round) {
			break
		}
		current = round + 1
	}
	if current > group.RoundCount+1 {
		current = group.RoundCount + 1
	}
	return current
}

// GetUserGroups resolves the groups the user belongs to, empty on failure.
func (cr *ContractReader) GetUserGroups(ctx context.Context, user common.Address) []GroupRecord {
	out, err := cr.call(ctx, "get_user_arisans", user)
	if err != nil || len(out) == 0 {
		return nil
	}
	ids, ok := out[0].([]uint32)
	if !ok {
		return nil
	}
	groups := make([]GroupRecord, 0, len(ids))
	for _, id := range ids {
		if group := cr.GetGroup(ctx, id); group != nil {
			groups = append(groups, *group)
		}
	}
	return groups
}

// GetUserActivities returns the user's activity feed, newest first, empty on
// any failure.
func (cr *ContractReader) GetUserActivities(ctx context.Context, user common.Address) []ActivityRecord {
	out, err := cr.call(ctx, "get_activities", user)
	if err != nil || len(out) == 0 {
		return nil
	}
	raws := abi.ConvertType(out[0], new([]rawActivity)).(*[]rawActivity)
	activities := make([]ActivityRecord, 0, len(*raws))
	for _, raw := range *raws {
		activities = append(activities, ActivityRecord{
			GroupID:     raw.ArisanId,
			Round:       raw.Round,
			Kind:        raw.Kind,
			Description: raw.Description,
			Amount:      raw.Amount,
			Timestamp:   raw.Timestamp,
			Status:      raw.Status,
		})
	}
	sort.Slice(activities, func(i, j int) bool {
		return activities[i].Timestamp > activities[j].Timestamp
	})
	return activities
}

// GetUserPayments returns the user's payment history, newest first, empty on
// any failure.
func (cr *ContractReader) GetUserPayments(ctx context.Context, user common.Address) []PaymentRecord {
	out, err := cr.call(ctx, "get_payments", user)
	if err != nil || len(out) == 0 {
		return nil
	}
	raws := abi.ConvertType(out[0], new([]rawHistoryEntry)).(*[]rawHistoryEntry)
	payments := make([]PaymentRecord, 0, len(*raws))
	for _, raw := range *raws {
		payments = append(payments, PaymentRecord{
			GroupID:   raw.ArisanId,
			Round:     raw.Round,
			Amount:    raw.Amount,
			Timestamp: raw.Timestamp,
			Status:    raw.Status,
		})
	}
	sort.Slice(payments, func(i, j int) bool {
		return payments[i].Timestamp > payments[j].Timestamp
	})
	return payments
}

// GetUserWinnings returns the user's winnings, newest first, empty on any
// failure.
func (cr *ContractReader) GetUserWinnings(ctx context.Context, user common.Address) []WinningRecord {
	out, err := cr.call(ctx, "get_winnings", user)
	if err != nil || len(out) == 0 {
		return nil
	}
	raws := abi.ConvertType(out[0], new([]rawHistoryEntry)).(*[]rawHistoryEntry)
	winnings := make([]WinningRecord, 0, len(*raws))
	for _, raw := range *raws {
		winnings = append(winnings, WinningRecord{
			GroupID:   raw.ArisanId,
			Round:     raw.Round,
			Amount:    raw.Amount,
			Timestamp: raw.Timestamp,
			Status:    raw.Status,
		})
	}
	sort.Slice(winnings, func(i, j int) bool {
		return winnings[i].Timestamp > winnings[j].Timestamp
	})
	return winnings
}

// IsMember reports whether the user is a member of the group, false when the
// group is absent.
func (cr *ContractReader) IsMember(ctx context.Context, id uint32, user common.Address) bool {
	group := cr.GetGroup(ctx, id)
	if group == nil {
		return false
	}
	for _, member := range group.Members {
		if member == user {
			return true
		}
	}
	return false
}

// IsOwner reports whether the user owns the group, false when the group is
// absent.
func (cr *ContractReader) IsOwner(ctx context.Context, id uint32, user common.Address) bool {
	group := cr.GetGroup(ctx, id)
	if group == nil {
		return false
	}
	return group.Owner == user
}
