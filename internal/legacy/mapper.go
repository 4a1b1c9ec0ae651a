// Package legacy translates between the flat transaction document served to
// old clients and the ledger's Transaction.
//
// NewToOld followed by OldToNew reproduces every field of a valid Transaction
// except the ones the flat shape has no slot for:
//   - DomainName: always "transaction", restored as a constant.
//   - extra initiators, subjects or spaces: Validate admits one of each.
//   - URI kind/domain of actors: restored from the fixed user and hashtag domains.
//   - metrics on non-vote types are carried, but legacy clients ignore them.
package legacy

import (
	"fmt"

	"merit/internal/amount"
	"merit/internal/models"
	"merit/internal/uri"
)

// NewToOld projects a Transaction into the legacy shape. The focus URI kind
// decides which of forPublicationSlug and forTransactionId is written; the
// other is left absent.
func NewToOld(t models.Transaction) (models.OldTransaction, error) {
	if err := t.Validate(); err != nil {
		return models.OldTransaction{}, err
	}
	a := t.Amounts()
	m := t.Metrics()
	old := models.OldTransaction{
		ID:                          t.UID,
		Reason:                      string(t.Type),
		Amount:                      amount.Abs(a.Personal),
		AmountFree:                  a.Free,
		AmountTotal:                 amount.Abs(a.Total),
		DirectionPlus:               t.Value >= 0,
		Plus:                        m.Plus,
		Minus:                       m.Minus,
		Sum:                         m.Sum,
		Comment:                     t.Comment(),
		CurrencyOfCommunityTgChatID: a.CurrencyOfCommunityTgChatID,
		FromUserTgID:                t.Initiator().ID,
		ToUserTgID:                  t.Subject().ID,
		InSpaceSlug:                 t.Space().ID,
		Ts:                          t.CreatedAt,
	}

	switch focus := t.FocusAssetURI; {
	case focus.Is(uri.KindAsset, uri.DomainPublication):
		old.ForPublicationSlug = focus.ID
	case focus.Is(uri.KindAgreement, uri.DomainTransaction):
		old.ForTransactionID = focus.ID
	}

	switch meta := t.Meta.(type) {
	case *models.VoteMeta:
		old.InPublicationSlug = meta.ParentPublicationURI.ID
	case *models.ExchangeMeta:
		old.ExchangeTransactionID = meta.ExchangeTransactionURI.ID
	case *models.RewardMeta:
		old.RewardReason = meta.RewardReason
	}
	return old, nil
}

// OldToNew rebuilds a Transaction from the legacy shape and validates it.
// Identifiers are re-encoded through the URI parser, so a transaction id given
// in slug form fails with uri.ErrURITypeMismatch.
func OldToNew(o models.OldTransaction) (models.Transaction, error) {
	typ := models.TransactionType(o.Reason)
	meta, err := models.NewMeta(typ)
	if err != nil {
		return models.Transaction{}, err
	}

	focus, err := oldFocus(o)
	if err != nil {
		return models.Transaction{}, err
	}

	sign := int64(1)
	if !o.DirectionPlus {
		sign = -1
	}
	base := meta.Base()
	base.Amounts = models.Amounts{
		Personal:                    sign * o.Amount,
		Free:                        o.AmountFree,
		Total:                       sign * o.AmountTotal,
		CurrencyOfCommunityTgChatID: o.CurrencyOfCommunityTgChatID,
	}
	base.Metrics = models.Metrics{Plus: o.Plus, Minus: o.Minus, Sum: o.Sum}
	base.Comment = o.Comment

	switch meta := meta.(type) {
	case *models.VoteMeta:
		if o.InPublicationSlug != "" {
			meta.ParentPublicationURI = uri.Publication(o.InPublicationSlug)
		}
	case *models.ExchangeMeta:
		if o.ExchangeTransactionID != "" {
			if meta.ExchangeTransactionURI, err = parseAs(uri.KindAgreement, uri.DomainTransaction, "", o.ExchangeTransactionID); err != nil {
				return models.Transaction{}, err
			}
		}
	case *models.RewardMeta:
		meta.RewardReason = o.RewardReason
	}

	t := models.Transaction{
		UID:           o.ID,
		DomainName:    models.TransactionDomain,
		Type:          typ,
		FocusAssetURI: focus,
		Value:         sign * o.AmountTotal,
		Meta:          meta,
		CreatedAt:     o.Ts,
	}
	if t.InitiatorsActorURIs, err = actors(uri.DomainUser, uri.SchemeTelegram, o.FromUserTgID); err != nil {
		return models.Transaction{}, err
	}
	if t.SubjectsActorURIs, err = actors(uri.DomainUser, uri.SchemeTelegram, o.ToUserTgID); err != nil {
		return models.Transaction{}, err
	}
	if t.SpacesActorURIs, err = actors(uri.DomainHashtag, uri.SchemeSlug, o.InSpaceSlug); err != nil {
		return models.Transaction{}, err
	}
	if err := t.Validate(); err != nil {
		return models.Transaction{}, err
	}
	return t, nil
}

// NewToOldAll maps a page of ledger rows for the legacy endpoint.
func NewToOldAll(txs []models.Transaction) ([]models.OldTransaction, error) {
	out := make([]models.OldTransaction, 0, len(txs))
	for _, t := range txs {
		old, err := NewToOld(t)
		if err != nil {
			return nil, fmt.Errorf("map transaction %s: %w", t.UID, err)
		}
		out = append(out, old)
	}
	return out, nil
}

func oldFocus(o models.OldTransaction) (uri.URI, error) {
	switch {
	case o.ForPublicationSlug != "" && o.ForTransactionID != "":
		return uri.URI{}, fmt.Errorf("%w: both forPublicationSlug and forTransactionId are set", uri.ErrURITypeMismatch)
	case o.ForPublicationSlug != "":
		return parseAs(uri.KindAsset, uri.DomainPublication, "", o.ForPublicationSlug)
	case o.ForTransactionID != "":
		return parseAs(uri.KindAgreement, uri.DomainTransaction, "", o.ForTransactionID)
	default:
		return uri.URI{}, fmt.Errorf("%w: transaction %s has no focus", models.ErrInvalidTransaction, o.ID)
	}
}

func actors(domain, scheme, id string) ([]uri.URI, error) {
	if id == "" {
		return nil, nil
	}
	u, err := parseAs(uri.KindActor, domain, scheme, id)
	if err != nil {
		return nil, err
	}
	return []uri.URI{u}, nil
}

// parseAs encodes id under kind.domain and runs it through uri.Parse so the
// legacy identifiers get the same checks as stored URIs.
func parseAs(kind, domain, scheme, id string) (uri.URI, error) {
	return uri.Parse(kind + "." + domain + "://" + scheme + id)
}
