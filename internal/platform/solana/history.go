// Package solana implements domain.TransactionHistory against a Solana
// JSON-RPC node. It is consumed only by the historical backfill scanner.
package solana

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/lenslabs/lplens/internal/domain"
)

// HistoryClient reads a wallet's transaction history over JSON-RPC.
type HistoryClient struct {
	rpc *rpc.Client
}

// NewHistoryClient creates a history client for the given RPC endpoint.
func NewHistoryClient(endpoint string) *HistoryClient {
	return &HistoryClient{rpc: rpc.New(endpoint)}
}

// Signatures returns up to limit recent transaction signatures for the
// wallet, newest first, with block time and success flag.
func (c *HistoryClient) Signatures(ctx context.Context, wallet string, limit int) ([]domain.SignatureInfo, error) {
	pubkey, err := solana.PublicKeyFromBase58(wallet)
	if err != nil {
		return nil, fmt.Errorf("solana: parse wallet %q: %w", wallet, err)
	}

	sigs, err := c.rpc.GetSignaturesForAddressWithOpts(ctx, pubkey, &rpc.GetSignaturesForAddressOpts{
		Limit: &limit,
	})
	if err != nil {
		return nil, fmt.Errorf("solana: get signatures for %s: %w", wallet, err)
	}

	out := make([]domain.SignatureInfo, 0, len(sigs))
	for _, s := range sigs {
		var blockTime int64
		if s.BlockTime != nil {
			blockTime = s.BlockTime.Time().Unix()
		}
		out = append(out, domain.SignatureInfo{
			Signature: s.Signature.String(),
			BlockTime: blockTime,
			Failed:    s.Err != nil,
		})
	}
	return out, nil
}

// Transaction fetches and decodes one transaction: account keys, log
// messages, and the pre/post token and native balances the scanner needs to
// reconstruct withdrawals.
func (c *HistoryClient) Transaction(ctx context.Context, signature string) (*domain.TransactionDetail, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("solana: parse signature %q: %w", signature, err)
	}

	maxVersion := uint64(0)
	res, err := c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("solana: get transaction %s: %w", signature, err)
	}
	if res == nil || res.Meta == nil {
		return nil, fmt.Errorf("solana: transaction %s: %w", signature, domain.ErrNotFound)
	}

	detail := &domain.TransactionDetail{
		Signature:   signature,
		LogMessages: res.Meta.LogMessages,
		PreNative:   res.Meta.PreBalances,
		PostNative:  res.Meta.PostBalances,
	}
	if res.BlockTime != nil {
		detail.BlockTime = res.BlockTime.Time().Unix()
	}

	if res.Transaction != nil {
		tx, err := res.Transaction.GetTransaction()
		if err != nil {
			return nil, fmt.Errorf("solana: decode transaction %s: %w", signature, err)
		}
		detail.AccountKeys = make([]string, 0, len(tx.Message.AccountKeys))
		for _, key := range tx.Message.AccountKeys {
			detail.AccountKeys = append(detail.AccountKeys, key.String())
		}
	}

	detail.PreTokenBalances = convertTokenBalances(res.Meta.PreTokenBalances)
	detail.PostTokenBalances = convertTokenBalances(res.Meta.PostTokenBalances)
	return detail, nil
}

func convertTokenBalances(balances []rpc.TokenBalance) []domain.TokenBalance {
	out := make([]domain.TokenBalance, 0, len(balances))
	for _, b := range balances {
		tb := domain.TokenBalance{
			AccountIndex: int(b.AccountIndex),
			Mint:         b.Mint.String(),
		}
		if b.Owner != nil {
			tb.Owner = b.Owner.String()
		}
		if b.UiTokenAmount != nil {
			tb.Amount = b.UiTokenAmount.Amount
			tb.Decimals = int(b.UiTokenAmount.Decimals)
		}
		out = append(out, tb)
	}
	return out
}

// Compile-time interface check.
var _ domain.TransactionHistory = (*HistoryClient)(nil)
