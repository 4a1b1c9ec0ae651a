package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"merit/internal/uri"
)

type TransactionType string

const (
	TypeForPublication            TransactionType = "forPublication"
	TypeWithdrawalFromPublication TransactionType = "withdrawalFromPublication"
	TypeExchange                  TransactionType = "exchange"
	TypeForTransaction            TransactionType = "forTransaction"
	TypeWithdrawalFromTransaction TransactionType = "withdrawalFromTransaction"
	TypeReward                    TransactionType = "reward"
)

const TransactionDomain = "transaction"

// VoteTypes are the transaction types folded into target metrics.
var VoteTypes = []TransactionType{TypeForPublication, TypeForTransaction}

func (t TransactionType) Valid() bool {
	_, err := NewMeta(t)
	return err == nil
}

func (t TransactionType) IsVote() bool {
	return t == TypeForPublication || t == TypeForTransaction
}

// Transaction is an immutable ledger entry.
type Transaction struct {
	UID                 string          `json:"uid"`
	DomainName          string          `json:"domainName"`
	Type                TransactionType `json:"type"`
	FocusAssetURI       uri.URI         `json:"focusAssetUri"`
	InitiatorsActorURIs []uri.URI       `json:"initiatorsActorUris"`
	SubjectsActorURIs   []uri.URI       `json:"subjectsActorUris"`
	SpacesActorURIs     []uri.URI       `json:"spacesActorUris"`
	Value               int64           `json:"value"`
	Meta                Meta            `json:"meta"`
	CreatedAt           time.Time       `json:"createdAt"`
}

func (t *Transaction) UnmarshalJSON(data []byte) error {
	type plain Transaction
	var aux struct {
		plain
		Meta json.RawMessage `json:"meta"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	meta, err := DecodeMeta(aux.Type, aux.Meta)
	if err != nil {
		return err
	}
	*t = Transaction(aux.plain)
	t.Meta = meta
	return nil
}

func (t Transaction) Amounts() Amounts {
	if t.Meta == nil {
		return Amounts{}
	}
	return t.Meta.Base().Amounts
}

func (t Transaction) Metrics() Metrics {
	if t.Meta == nil {
		return Metrics{}
	}
	return t.Meta.Base().Metrics
}

func (t Transaction) Comment() string {
	if t.Meta == nil {
		return ""
	}
	return t.Meta.Base().Comment
}

func (t Transaction) URI() uri.URI {
	return uri.Transaction(t.UID)
}

func (t Transaction) Initiator() uri.URI { return first(t.InitiatorsActorURIs) }
func (t Transaction) Subject() uri.URI   { return first(t.SubjectsActorURIs) }
func (t Transaction) Space() uri.URI     { return first(t.SpacesActorURIs) }

// Validate checks the structural invariants every stored transaction holds,
// which are also the ones the legacy shape can represent.
func (t Transaction) Validate() error {
	if t.UID == "" {
		return invalid("uid is required")
	}
	if t.DomainName != TransactionDomain {
		return invalid("domainName must be %q", TransactionDomain)
	}
	if t.Meta == nil {
		return invalid("meta is required")
	}
	if !t.Meta.accepts(t.Type) {
		return invalid("meta %T does not match type %q", t.Meta, t.Type)
	}
	if err := t.validateFocus(); err != nil {
		return err
	}
	if len(t.InitiatorsActorURIs) != 1 || !t.Initiator().Is(uri.KindActor, uri.DomainUser) {
		return invalid("exactly one user initiator is required")
	}
	if len(t.SubjectsActorURIs) > 1 || (len(t.SubjectsActorURIs) == 1 && !t.Subject().Is(uri.KindActor, uri.DomainUser)) {
		return invalid("at most one user subject is allowed")
	}
	if len(t.SpacesActorURIs) > 1 || (len(t.SpacesActorURIs) == 1 && !t.Space().Is(uri.KindActor, uri.DomainHashtag)) {
		return invalid("at most one community space is allowed")
	}
	a := t.Amounts()
	if t.Value != a.Total {
		return invalid("value %d differs from total %d", t.Value, a.Total)
	}
	if a.Total >= 0 {
		if a.Personal < 0 || a.Free < 0 || a.Total != a.Personal+a.Free {
			return invalid("positive total must equal personal + free")
		}
	} else if a.Free != 0 || a.Personal != a.Total {
		return invalid("negative total must be wallet-funded only")
	}
	if !t.Metrics().Consistent() {
		return invalid("metrics plus - minus must equal sum")
	}
	return nil
}

func (t Transaction) validateFocus() error {
	var want string
	switch t.Type {
	case TypeForPublication, TypeWithdrawalFromPublication:
		want = uri.DomainPublication
	case TypeForTransaction, TypeWithdrawalFromTransaction:
		want = uri.DomainTransaction
	}
	focus := t.FocusAssetURI
	isPublication := focus.Is(uri.KindAsset, uri.DomainPublication)
	isTransaction := focus.Is(uri.KindAgreement, uri.DomainTransaction)
	switch {
	case want == uri.DomainPublication && !isPublication:
		_, err := focus.Expect(uri.KindAsset, uri.DomainPublication)
		return err
	case want == uri.DomainTransaction && !isTransaction:
		_, err := focus.Expect(uri.KindAgreement, uri.DomainTransaction)
		return err
	case !isPublication && !isTransaction:
		return fmt.Errorf("%w: focus %q must be a publication or a transaction", uri.ErrURITypeMismatch, focus.String())
	}
	return nil
}

func first(uris []uri.URI) uri.URI {
	if len(uris) == 0 {
		return uri.URI{}
	}
	return uris[0]
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidTransaction, fmt.Sprintf(format, args...))
}

// IsInvalid reports errors raised by Validate.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalidTransaction) || errors.Is(err, uri.ErrURITypeMismatch)
}
