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
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/edudao/scholarship/common"
)

// transfer gas limit for a plain native currency send
const transferGasLimit = uint64(21000)

// EVMProvider submits native currency payments on an EVM chain using a locally
// held signing key
type EVMProvider struct {
	client  *ethclient.Client
	chainID uint64
	key     *ecdsa.PrivateKey
	address ethcommon.Address
}

// NewEVMProvider dials the configured JSON-RPC endpoint and verifies the
// remote network matches the expected chain id; the signing key is read from
// WALLET_PRIVATE_KEY
func NewEVMProvider() (*EVMProvider, error) {
	rawKey := os.Getenv("WALLET_PRIVATE_KEY")
	if rawKey == "" {
		return nil, common.NewError(common.ErrCodeWalletUnavailable, "no wallet signing key configured")
	}

	key, err := crypto.HexToECDSA(rawKey)
	if err != nil {
		return nil, common.WrapError(common.ErrCodeWalletUnavailable, "failed to parse wallet signing key", err)
	}

	client, err := ethclient.Dial(common.ChainRPCURL)
	if err != nil {
		return nil, common.WrapError(common.ErrCodeWalletUnavailable, fmt.Sprintf("failed to dial %s", common.ChainRPCURL), err)
	}

	provider := &EVMProvider{
		client:  client,
		chainID: common.ChainID,
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}

	remoteChainID, err := provider.ChainID(context.Background())
	if err != nil {
		return nil, common.WrapError(common.ErrCodeWalletUnavailable, "failed to resolve remote chain id", err)
	}
	if remoteChainID != provider.chainID {
		return nil, common.NewError(
			common.ErrCodeWalletUnavailable,
			fmt.Sprintf("connected to chain %d; expected %d", remoteChainID, provider.chainID),
		)
	}

	common.Log.Debugf("initialized evm wallet provider for %s on chain %d", provider.address.Hex(), provider.chainID)
	return provider, nil
}

// Address is the signing account address
func (p *EVMProvider) Address() string {
	return p.address.Hex()
}

// ChainID resolves the connected network id
func (p *EVMProvider) ChainID(ctx context.Context) (uint64, error) {
	chainID, err := p.client.ChainID(ctx)
	if err != nil {
		return 0, err
	}
	return chainID.Uint64(), nil
}

// SendPayment transfers the given native currency amount to the given address
// and blocks until the transaction is mined
func (p *EVMProvider) SendPayment(ctx context.Context, toAddress string, amount float64) (*Receipt, error) {
	if !ethcommon.IsHexAddress(toAddress) {
		return nil, common.NewError(common.ErrCodePaymentFailed, fmt.Sprintf("invalid recipient address: %s", toAddress))
	}
	to := ethcommon.HexToAddress(toAddress)

	nonce, err := p.client.PendingNonceAt(ctx, p.address)
	if err != nil {
		return nil, ClassifyPaymentError(err)
	}

	gasPrice, err := p.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, ClassifyPaymentError(err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    AmountToWei(amount),
		Gas:      transferGasLimit,
		GasPrice: gasPrice,
	})

	signer := types.LatestSignerForChainID(new(big.Int).SetUint64(p.chainID))
	signedTx, err := types.SignTx(tx, signer, p.key)
	if err != nil {
		return nil, ClassifyPaymentError(err)
	}

	if err := p.client.SendTransaction(ctx, signedTx); err != nil {
		return nil, ClassifyPaymentError(err)
	}

	common.Log.Debugf("submitted payment of %f %s to %s: %s", amount, common.NativeCurrencySymbol, to.Hex(), signedTx.Hash().Hex())

	receipt, err := bind.WaitMined(ctx, p.client, signedTx)
	if err != nil {
		return nil, ClassifyPaymentError(err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, common.NewError(common.ErrCodePaymentFailed, fmt.Sprintf("payment reverted on-chain: %s", signedTx.Hash().Hex()))
	}

	return &Receipt{TransactionHash: signedTx.Hash().Hex()}, nil
}

var _ Provider = (*EVMProvider)(nil)
