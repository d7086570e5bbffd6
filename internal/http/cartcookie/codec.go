package cartcookie

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

var ErrInvalid = errors.New("invalid cart cookie")

// Line mirrors one cart snapshot line. UnitPrice is the price captured when
// the line was added, in the store currency unit.
type Line struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
	UnitPrice int64  `json:"unit_price"`
}

type Cart struct {
	Lines []Line `json:"lines"`
}

// Codec signs the client-held cart so the snapshot prices cannot be edited
// in the browser.
type Codec struct {
	Secret     []byte
	CookieName string
	Secure     bool
}

func New(secret []byte, name string, secure bool) *Codec {
	return &Codec{Secret: secret, CookieName: name, Secure: secure}
}

// value format: base64(json).base64(hmac)
func (c *Codec) Encode(cart Cart) (string, error) {
	b, err := json.Marshal(cart)
	if err != nil {
		return "", err
	}
	payload := base64.RawURLEncoding.EncodeToString(b)
	return payload + "." + sign(c.Secret, payload), nil
}

func (c *Codec) Decode(v string) (*Cart, error) {
	parts := strings.Split(v, ".")
	if len(parts) != 2 {
		return nil, ErrInvalid
	}
	payload, sig := parts[0], parts[1]
	if !verify(c.Secret, payload, sig) {
		return nil, ErrInvalid
	}
	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return nil, ErrInvalid
	}
	var cart Cart
	if err := json.Unmarshal(raw, &cart); err != nil {
		return nil, ErrInvalid
	}
	return &cart, nil
}

func (c *Codec) Get(ctx *gin.Context) (*Cart, bool) {
	v, err := ctx.Cookie(c.CookieName)
	if err != nil || v == "" {
		return nil, false
	}
	cart, err := c.Decode(v)
	if err != nil {
		c.Clear(ctx)
		return nil, false
	}
	return cart, true
}

func (c *Codec) Set(ctx *gin.Context, cart Cart) error {
	val, err := c.Encode(cart)
	if err != nil {
		return err
	}
	maxAge := int((30 * 24 * time.Hour).Seconds())
	ctx.SetSameSite(2) // Lax
	ctx.SetCookie(c.CookieName, val, maxAge, "/", "", c.Secure, true)
	return nil
}

func (c *Codec) Clear(ctx *gin.Context) {
	ctx.SetSameSite(2) // Lax
	ctx.SetCookie(c.CookieName, "", -1, "/", "", c.Secure, true)
}

func sign(secret []byte, payload string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func verify(secret []byte, payload, sig string) bool {
	return hmac.Equal([]byte(sign(secret, payload)), []byte(sig))
}
