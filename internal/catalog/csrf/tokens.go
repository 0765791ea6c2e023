// Package csrf issues and verifies the per-product tokens a caller must
// present to delete a product.
package csrf

import (
	"errors"
	"strconv"
	"time"

	"github.com/gorilla/securecookie"
)

const intentionDelete = "delete"

var (
	ErrEmptySecret = errors.New("delete token secret is required")
	// securecookie counts age in whole seconds and treats 0 as no expiry.
	ErrInvalidTTL = errors.New("delete token ttl must be a whole number of seconds")
)

// Tokens signs "delete<id>" intentions with an HMAC key. Tokens expire after ttl.
type Tokens struct {
	codec *securecookie.SecureCookie
}

func New(secret []byte, ttl time.Duration) (*Tokens, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	if ttl < time.Second || ttl%time.Second != 0 {
		return nil, ErrInvalidTTL
	}

	codec := securecookie.New(secret, nil)
	codec.SetSerializer(securecookie.JSONEncoder{})
	codec.MaxAge(int(ttl / time.Second))

	return &Tokens{codec: codec}, nil
}

func (t *Tokens) Issue(id int64) (string, error) {
	return t.codec.Encode(intention(id), id)
}

// Verify reports whether token was issued for id and has not expired.
func (t *Tokens) Verify(id int64, token string) bool {
	if token == "" {
		return false
	}
	var got int64
	if err := t.codec.Decode(intention(id), token, &got); err != nil {
		return false
	}
	return got == id
}

func intention(id int64) string {
	return intentionDelete + strconv.FormatInt(id, 10)
}
