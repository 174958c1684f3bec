package services

import "moments/internal/models"

// CanView is the single visibility rule: public albums are visible to
// everyone, private albums only to their owner.
func CanView(requester *models.Requester, album models.Album) bool {
	if album.Public {
		return true
	}
	return requester != nil && requester.ID == album.OwnerID
}

// PublicOnly reports whether a query over ownerName's albums has to be
// restricted to public ones for this requester. It is CanView applied before
// the rows are known.
func PublicOnly(requester *models.Requester, ownerName string) bool {
	return requester == nil || requester.Username != ownerName
}
