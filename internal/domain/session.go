package domain

import "time"

// Session is the per-user media vault: created on start, cleared on explicit
// reset, never persisted.
type Session struct {
	ID        string       `json:"id"`
	Covers    []MediaAsset `json:"covers"`
	Photos    []MediaAsset `json:"photos"`
	Music     []MediaAsset `json:"music"`
	Captions  []string     `json:"captions"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func (s *Session) Pool(kind AssetKind) *[]MediaAsset {
	switch kind {
	case KindCover:
		return &s.Covers
	case KindPhoto:
		return &s.Photos
	case KindMusic:
		return &s.Music
	}
	return nil
}

// Clone copies the slices so the result can be read without the store lock.
func (s *Session) Clone() Session {
	c := *s
	c.Covers = append([]MediaAsset(nil), s.Covers...)
	c.Photos = append([]MediaAsset(nil), s.Photos...)
	c.Music = append([]MediaAsset(nil), s.Music...)
	c.Captions = append([]string(nil), s.Captions...)
	return c
}
