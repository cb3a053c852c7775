package redemption

import (
	"fmt"

	"github.com/jaevor/go-nanoid"
)

// CodeAlphabet leaves out characters that are easily misread (0/O, 1/I/L).
const CodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const (
	DefaultCodeLength = 8
	MinCodeLength     = 6
)

// CodeGenerator returns a fresh random redeem code.
type CodeGenerator func() string

// NewCodeGenerator builds a crypto-random generator over CodeAlphabet.
func NewCodeGenerator(length int) (CodeGenerator, error) {
	if length == 0 {
		length = DefaultCodeLength
	}
	if length < MinCodeLength {
		return nil, fmt.Errorf("redeem code length must be at least %d, got %d", MinCodeLength, length)
	}
	gen, err := nanoid.CustomASCII(CodeAlphabet, length)
	if err != nil {
		return nil, fmt.Errorf("failed to create code generator: %w", err)
	}
	return gen, nil
}
