package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShortId(t *testing.T) {
	assert.Equal(t, "none", ShortId(""))
	assert.Equal(t, "V1", ShortId("V1"))
	assert.Equal(t, "8f14e45f...", ShortId("8f14e45f-ceea-467f-a0e6-4f3c5b2d1a90"))
}

func TestFormatVoucherIds(t *testing.T) {
	assert.Equal(t, "V1, 8f14e45f...", FormatVoucherIds([]string{"V1", "8f14e45f-ceea-467f"}))
	assert.Equal(t, "", FormatVoucherIds(nil))
}
