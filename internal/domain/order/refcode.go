package order

import (
	"context"
	"crypto/rand"
	"math/big"

	"github.com/go-faster/errors"
)

const (
	refCodeLen      = 20
	refCodeAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	refCodeAttempts = 5
)

// NewRefCode returns a random 20-character lowercase alphanumeric code.
func NewRefCode() (string, error) {
	base := big.NewInt(int64(len(refCodeAlphabet)))
	buf := make([]byte, refCodeLen)
	for i := range buf {
		n, err := rand.Int(rand.Reader, base)
		if err != nil {
			return "", errors.Wrap(err, "read random")
		}
		buf[i] = refCodeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// uniqueRefCode draws codes until one is not taken.
func (s *Service) uniqueRefCode(ctx context.Context, orders Repository) (string, error) {
	for range refCodeAttempts {
		code, err := s.refCode()
		if err != nil {
			return "", err
		}
		taken, err := orders.RefCodeExists(ctx, code)
		if err != nil {
			return "", errors.Wrap(err, "check ref code")
		}
		if !taken {
			return code, nil
		}
	}
	return "", errors.Errorf("no free reference code after %d attempts", refCodeAttempts)
}
