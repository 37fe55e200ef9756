package wallet

import (
	"errors"
	"math/big"
	"testing"

	"github.com/edudao/scholarship/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcError struct {
	code int
	msg  string
}

func (e *rpcError) Error() string  { return e.msg }
func (e *rpcError) ErrorCode() int { return e.code }

func TestAmountToWei(t *testing.T) {
	assert.Equal(t, big.NewInt(500000000000000000), AmountToWei(0.5))
	assert.Equal(t, big.NewInt(750000000000000000), AmountToWei(0.75))
	assert.Equal(t, new(big.Int).Mul(big.NewInt(1), big.NewInt(1000000000000000000)), AmountToWei(1.0))
	assert.Equal(t, int64(0), AmountToWei(0).Int64())
}

func TestClassifyPaymentErrorUserRejection(t *testing.T) {
	err := ClassifyPaymentError(&rpcError{code: 4001, msg: "User rejected the request."})
	require.NotNil(t, err)
	assert.Equal(t, common.ErrCodePaymentRejected, err.Code)
}

func TestClassifyPaymentErrorOther(t *testing.T) {
	err := ClassifyPaymentError(&rpcError{code: -32000, msg: "insufficient funds for gas * price + value"})
	require.NotNil(t, err)
	assert.Equal(t, common.ErrCodePaymentFailed, err.Code)

	err = ClassifyPaymentError(errors.New("connection refused"))
	require.NotNil(t, err)
	assert.Equal(t, common.ErrCodePaymentFailed, err.Code)
}

func TestClassifyPaymentErrorNil(t *testing.T) {
	assert.Nil(t, ClassifyPaymentError(nil))
}
