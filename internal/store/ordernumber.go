package store

import (
	"strings"
	"time"

	"github.com/google/uuid"
	hashids "github.com/speps/go-hashids/v2"
)

// OrderNumberGenerator produces short human-readable order references like
// MKT-9QK3VD72. They are decorative: uniqueness is still enforced by the
// orders table.
type OrderNumberGenerator struct {
	h *hashids.HashID
}

func NewOrderNumberGenerator(salt string) (*OrderNumberGenerator, error) {
	data := hashids.NewData()
	data.Salt = salt
	data.MinLength = 8
	data.Alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

	h, err := hashids.NewWithData(data)
	if err != nil {
		return nil, err
	}
	return &OrderNumberGenerator{h: h}, nil
}

func (g *OrderNumberGenerator) Generate(userID int64) string {
	nonce := int64(uuid.New().ID())
	ref, err := g.h.EncodeInt64([]int64{userID, time.Now().Unix(), nonce})
	if err != nil {
		// hashids only fails on bad input; fall back to a raw nonce
		ref = strings.ToUpper(uuid.NewString()[:8])
	}
	return "MKT-" + ref
}
