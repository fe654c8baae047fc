package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Wallet is one secp256k1 identity bound to a chain id.
type Wallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
}

// Load resolves the key from src and binds it to chainID.
func Load(src KeySource, chainID *big.Int) (*Wallet, error) {
	raw, err := resolveKey(src)
	if err != nil {
		return nil, err
	}
	key, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("wallet: key: %w", err)
	}
	return &Wallet{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
	}, nil
}

func (w *Wallet) Address() common.Address { return w.address }

// Transactor builds signing transact opts for contract bindings.
func (w *Wallet) Transactor() (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(w.key, w.chainID)
	if err != nil {
		return nil, fmt.Errorf("wallet: transactor: %w", err)
	}
	return opts, nil
}

// SignTx signs a transaction with the latest signer for the wallet's chain.
func (w *Wallet) SignTx(tx *types.Transaction) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(w.chainID), w.key)
	if err != nil {
		return nil, fmt.Errorf("wallet: sign tx: %w", err)
	}
	return signed, nil
}

// SignText signs msg under the EIP-191 personal-message prefix. The relay
// authenticates request bodies with exactly this scheme.
func (w *Wallet) SignText(msg []byte) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(msg), w.key)
	if err != nil {
		return nil, fmt.Errorf("wallet: sign text: %w", err)
	}
	return sig, nil
}
