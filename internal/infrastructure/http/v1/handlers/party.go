package handlers

import (
	"coldledger/internal/domain/catalogs/party"
	"coldledger/internal/infrastructure/http/v1/dto"
)

// NewPartyHandler serves /parties.
func NewPartyHandler(base *BaseHandler, svc *party.Service) *CatalogHandler[*party.Party, dto.PartyRequest, dto.PartyResponse] {
	return NewCatalogHandler(base, CatalogHandlerConfig[*party.Party, dto.PartyRequest, dto.PartyResponse]{
		Service:   svc.CatalogService,
		MapCreate: dto.PartyRequest.ToEntity,
		MapUpdate: func(req dto.PartyRequest, existing *party.Party) error {
			return req.ApplyTo(existing)
		},
		MapToDTO: dto.FromParty,
	})
}
