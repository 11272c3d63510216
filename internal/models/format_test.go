package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComma(t *testing.T) {
	assert.Equal(t, "0", Comma(0))
	assert.Equal(t, "999", Comma(999))
	assert.Equal(t, "1,000", Comma(1000))
	assert.Equal(t, "1,234,567", Comma(1234567))
	assert.Equal(t, "-1,000", Comma(-1000))
	assert.Equal(t, "-999", Comma(-999))
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "$0.00", Money(0))
	assert.Equal(t, "$1234.50", Money(1234.5))
}

func TestRates(t *testing.T) {
	assert.Equal(t, "2.5", Rate1(2.46))
	assert.Equal(t, "2.46", Rate2(2.456))
}
