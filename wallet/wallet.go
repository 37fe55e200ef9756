/*
 * Copyright 2017-2022 Provide Technologies Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package wallet

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/edudao/scholarship/common"
)

// userRejectedRequestCode is the EIP-1193 error code emitted when the wallet
// owner declines the payment prompt
const userRejectedRequestCode = 4001

// Receipt confirms a submitted native currency payment
type Receipt struct {
	TransactionHash string `json:"transaction_hash"`
}

// Provider is the consumed wallet collaborator; implementations submit native
// currency payments and await on-chain confirmation
type Provider interface {
	ChainID(ctx context.Context) (uint64, error)
	SendPayment(ctx context.Context, toAddress string, amount float64) (*Receipt, error)
}

// AmountToWei converts a native currency amount denominated in whole units
// (i.e. EDU) to wei
func AmountToWei(amount float64) *big.Int {
	wei, _ := new(big.Float).Mul(
		big.NewFloat(amount),
		new(big.Float).SetFloat64(params.Ether),
	).Int(nil)
	return wei
}

// ClassifyPaymentError translates a payment submission failure into the
// workflow error taxonomy; a wallet-owner rejection is surfaced distinctly
// from every other on-chain failure
func ClassifyPaymentError(err error) *common.Error {
	if err == nil {
		return nil
	}

	if rpcErr, rpcErrOk := err.(rpc.Error); rpcErrOk && rpcErr.ErrorCode() == userRejectedRequestCode {
		return common.WrapError(common.ErrCodePaymentRejected, "payment rejected by the wallet owner", err)
	}

	return common.WrapError(common.ErrCodePaymentFailed, "payment submission failed", err)
}
