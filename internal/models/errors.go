package models

import "errors"

var (
	ErrInsufficientFunds         = errors.New("insufficient funds")
	ErrQuotaExceeded             = errors.New("daily quota exceeded")
	ErrNotAuthorized             = errors.New("not chat member")
	ErrCommentRequired           = errors.New("comment is required for a downvote")
	ErrInvalidAmount             = errors.New("invalid amount")
	ErrSelfVote                  = errors.New("cannot vote for own content")
	ErrTargetNotFound            = errors.New("vote target not found")
	ErrUnsupportedTarget         = errors.New("unsupported target type")
	ErrPoolNotFound              = errors.New("investment pool not found")
	ErrPoolExists                = errors.New("investment pool already configured")
	ErrContractPercentOutOfRange = errors.New("contract percent outside community bounds")
	ErrInvestingDisabled         = errors.New("investing is disabled in this community")
	ErrNothingToWithdraw         = errors.New("nothing to withdraw")
	ErrInvalidTransaction        = errors.New("invalid transaction")
)
