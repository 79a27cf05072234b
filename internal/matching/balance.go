package matching

import (
	"fenrir/internal/errs"
	"fenrir/internal/types"
)

// ApplyBalance handles Deposit, Withdraw and GetBalances. GetBalances is
// a read-only query supplementing the two mutating ops, modeled on the
// account service in original_source.
func (e *Engine) ApplyBalance(req types.BalanceRequest) Result {
	if _, err := e.registry.GetToken(req.TokenID); err != nil && req.Op != types.BalanceGetBalances {
		return rejectBalance(req.RequestID, err)
	}

	switch req.Op {
	case types.BalanceDeposit:
		return e.applyDeposit(req)
	case types.BalanceWithdraw:
		return e.applyWithdraw(req)
	case types.BalanceGetBalances:
		return e.applyGetBalances(req)
	default:
		return rejectBalance(req.RequestID, types.ErrUnknownTag)
	}
}

func (e *Engine) applyDeposit(req types.BalanceRequest) Result {
	if req.Amount <= 0 {
		return rejectBalance(req.RequestID, errs.ErrInvalidQuantity)
	}
	if err := e.ledger.Credit(req.UserID, req.TokenID, req.Amount); err != nil {
		return rejectBalance(req.RequestID, err)
	}
	bal := e.ledger.Balance(req.UserID, req.TokenID)
	return Result{
		BalanceReply: &types.BalanceReply{
			RequestID:  req.RequestID,
			Success:    true,
			NewBalance: &bal.Available,
		},
		Persistence: []types.PersistenceEvent{balanceUpdatedEvent(req.UserID, req.TokenID, bal)},
	}
}

func (e *Engine) applyWithdraw(req types.BalanceRequest) Result {
	if req.Amount <= 0 {
		return rejectBalance(req.RequestID, errs.ErrInvalidQuantity)
	}
	if err := e.ledger.Debit(req.UserID, req.TokenID, req.Amount); err != nil {
		return rejectBalance(req.RequestID, err)
	}
	bal := e.ledger.Balance(req.UserID, req.TokenID)
	return Result{
		BalanceReply: &types.BalanceReply{
			RequestID:  req.RequestID,
			Success:    true,
			NewBalance: &bal.Available,
		},
		Persistence: []types.PersistenceEvent{balanceUpdatedEvent(req.UserID, req.TokenID, bal)},
	}
}

func (e *Engine) applyGetBalances(req types.BalanceRequest) Result {
	return Result{
		BalanceReply: &types.BalanceReply{
			RequestID: req.RequestID,
			Success:   true,
			Balances:  e.ledger.Balances(req.UserID),
		},
	}
}

func rejectBalance(requestID string, err error) Result {
	return Result{
		BalanceReply: &types.BalanceReply{
			RequestID: requestID,
			Success:   false,
			Message:   errMessage(err),
		},
	}
}
