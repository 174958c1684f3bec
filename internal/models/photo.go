package models

// Photo is an image stored in an album. Title may be empty; Image is the storage key.
type Photo struct {
	ID      int64
	AlbumID int64
	Title   string
	Image   string
}
